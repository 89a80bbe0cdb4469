package http

import (
	"log/slog"
	"net/http"

	"signupboard/internal/delivery/http/controllers"
	"signupboard/internal/delivery/http/middleware"
	"signupboard/internal/domain"

	httpSwagger "github.com/swaggo/http-swagger"
)

// Controllers groups the handlers mounted by NewRouter.
type Controllers struct {
	Interaction *controllers.InteractionController
	Event       *controllers.EventController
	Setup       *controllers.SetupController
	Health      *controllers.HealthController
}

// NewRouter initializes the HTTP router with all application routes.
// Everything the gateway calls sits behind RequireAuth; probes, metrics and
// the API docs do not.
func NewRouter(c Controllers, verifier domain.TokenVerifier, metrics http.Handler, logger *slog.Logger) *http.ServeMux {
	mux := http.NewServeMux()
	auth := middleware.RequireAuth(verifier, logger)

	// Interactions
	mux.HandleFunc("POST /interactions/clicks", auth(c.Interaction.HandleClick))

	// Events
	mux.HandleFunc("GET /guilds/{guildID}/events", auth(c.Event.ListEvents))
	mux.HandleFunc("DELETE /guilds/{guildID}/events/{eventID}", auth(c.Event.DeleteEvent))

	// Setup wizard
	mux.HandleFunc("POST /guilds/{guildID}/setup", auth(c.Setup.StartSetup))
	mux.HandleFunc("GET /guilds/{guildID}/setup", auth(c.Setup.GetSetup))
	mux.HandleFunc("DELETE /guilds/{guildID}/setup", auth(c.Setup.CancelSetup))
	mux.HandleFunc("POST /guilds/{guildID}/setup/replies", auth(c.Setup.ReplySetup))

	// Probes
	mux.HandleFunc("GET /healthz", c.Health.Live)
	mux.HandleFunc("GET /readyz", c.Health.Ready)

	if metrics != nil {
		mux.Handle("GET /metrics", metrics)
	}

	// Swagger
	mux.Handle("/swagger/", httpSwagger.WrapHandler)

	return mux
}
