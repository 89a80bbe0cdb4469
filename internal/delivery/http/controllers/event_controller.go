package controllers

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"signupboard/internal/delivery/http/helpers"
	"signupboard/internal/delivery/http/middleware"
	"signupboard/internal/domain"
)

// ListEventsResponse is the response body for GET /guilds/{guildID}/events.
// Text is the ready-to-post listing, one "**<id>** - <#channel>" line per event.
type ListEventsResponse struct {
	Events []domain.EventSummary `json:"events"`
	Text   string                `json:"text"`
}

// ListEventsSuccessResponse is the success envelope for GET /guilds/{guildID}/events (200).
type ListEventsSuccessResponse struct {
	Data  ListEventsResponse `json:"data"`
	Error *helpers.APIError  `json:"error"`
}

// DeleteEventResponse is the response body for DELETE /guilds/{guildID}/events/{eventID}.
type DeleteEventResponse struct {
	Status string `json:"status"`
}

type EventController struct {
	Logger  *slog.Logger
	Service domain.EventService
}

func NewEventController(logger *slog.Logger, svc domain.EventService) *EventController {
	return &EventController{
		Logger:  logger,
		Service: svc,
	}
}

// ListEvents godoc
// @Summary List active events in a guild
// @Tags events
// @Produce json
// @Security BearerAuth
// @Param guildID path string true "Guild ID"
// @Success 200 {object} controllers.ListEventsSuccessResponse "data contains event summaries and listing text"
// @Failure 400 {object} helpers.APIResponse "error.code: bad_request"
// @Failure 401 {object} helpers.APIResponse "error.code: unauthorized"
// @Failure 500 {object} helpers.APIResponse "error.code: internal_error"
// @Router /guilds/{guildID}/events [get]
func (c *EventController) ListEvents(w http.ResponseWriter, r *http.Request) {
	guildID := r.PathValue("guildID")
	if guildID == "" {
		helpers.WriteJSONError(w, http.StatusBadRequest, helpers.ErrCodeBadRequest, "missing guildID")
		return
	}
	events, err := c.Service.List(r.Context(), guildID)
	if err != nil {
		helpers.WriteDomainError(w, r, c.Logger, err)
		return
	}
	var b strings.Builder
	for _, e := range events {
		fmt.Fprintf(&b, "**%s** - <#%s>\n", e.ID, e.ChannelID)
	}
	helpers.WriteJSONSuccess(w, http.StatusOK, ListEventsResponse{Events: events, Text: b.String()})
}

// DeleteEvent godoc
// @Summary Delete an event
// @Description Removes the published board, the stored event and its pending expiry. No roster is posted.
// @Tags events
// @Produce json
// @Security BearerAuth
// @Param guildID path string true "Guild ID"
// @Param eventID path string true "Event ID"
// @Success 200 {object} helpers.APIResponse "data.status: deleted"
// @Failure 400 {object} helpers.APIResponse "error.code: bad_request"
// @Failure 401 {object} helpers.APIResponse "error.code: unauthorized"
// @Failure 404 {object} helpers.APIResponse "error.code: not_found"
// @Failure 500 {object} helpers.APIResponse "error.code: internal_error"
// @Router /guilds/{guildID}/events/{eventID} [delete]
func (c *EventController) DeleteEvent(w http.ResponseWriter, r *http.Request) {
	guildID := r.PathValue("guildID")
	eventID := r.PathValue("eventID")
	if guildID == "" || eventID == "" {
		helpers.WriteJSONError(w, http.StatusBadRequest, helpers.ErrCodeBadRequest, "missing guildID or eventID")
		return
	}
	if err := c.Service.Delete(r.Context(), guildID, eventID); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			helpers.WriteJSONError(w, http.StatusNotFound, helpers.ErrCodeNotFound, "There is no event by that ID.")
			return
		}
		helpers.WriteDomainError(w, r, c.Logger, err)
		return
	}
	gateway, _ := middleware.PrincipalFromContext(r.Context())
	c.Logger.Info("event deleted", "guild_id", guildID, "event_id", eventID, "gateway", gateway)
	helpers.WriteJSONSuccess(w, http.StatusOK, DeleteEventResponse{Status: "deleted"})
}
