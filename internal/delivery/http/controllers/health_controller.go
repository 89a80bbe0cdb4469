package controllers

import (
	"net/http"

	"signupboard/internal/delivery/http/helpers"
)

// ReadinessChecker reports whether the service can take clicks and how many
// published messages it currently routes.
type ReadinessChecker interface {
	Ready() bool
	Len() int
}

type HealthController struct {
	Readiness ReadinessChecker
}

func NewHealthController(readiness ReadinessChecker) *HealthController {
	return &HealthController{Readiness: readiness}
}

// Live godoc
// @Summary Liveness probe
// @Tags health
// @Produce json
// @Success 200 {object} helpers.APIResponse "data.status: ok"
// @Router /healthz [get]
func (c *HealthController) Live(w http.ResponseWriter, r *http.Request) {
	helpers.WriteJSONSuccess(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Ready godoc
// @Summary Readiness probe
// @Description Ready once published boards have been reattached after start-up.
// @Tags health
// @Produce json
// @Success 200 {object} helpers.APIResponse "data.status: ready, data.routed_messages"
// @Failure 503 {object} helpers.APIResponse "error.code: not_ready"
// @Router /readyz [get]
func (c *HealthController) Ready(w http.ResponseWriter, r *http.Request) {
	if !c.Readiness.Ready() {
		w.Header().Set("Retry-After", "1")
		helpers.WriteJSONError(w, http.StatusServiceUnavailable, helpers.ErrCodeNotReady, "reconciliation in progress")
		return
	}
	helpers.WriteJSONSuccess(w, http.StatusOK, map[string]any{
		"status":          "ready",
		"routed_messages": c.Readiness.Len(),
	})
}
