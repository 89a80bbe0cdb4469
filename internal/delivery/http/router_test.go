package http

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"signupboard/internal/adapters/relay"
	"signupboard/internal/delivery/http/controllers"
	"signupboard/internal/domain"

	"github.com/stretchr/testify/assert"
)

type stubVerifier struct{}

func (stubVerifier) Verify(token string) (string, error) {
	if token != "good" {
		return "", domain.ErrUnauthorized
	}
	return "gateway-1", nil
}

type stubEvents struct{}

func (stubEvents) List(ctx context.Context, guildID string) ([]domain.EventSummary, error) {
	return []domain.EventSummary{{ID: "ev-1", ChannelID: "c-1"}}, nil
}

func (stubEvents) Delete(ctx context.Context, guildID, eventID string) error {
	if eventID != "ev-1" {
		return domain.ErrNotFound
	}
	return nil
}

type stubInteractions struct{}

func (stubInteractions) HandleClick(ctx context.Context, click domain.Click) (*domain.ClickResult, error) {
	return nil, domain.ErrNotFound
}

type stubSetup struct{}

func (stubSetup) Begin(ctx context.Context, guildID, authorID string) (*domain.SetupSession, error) {
	return nil, errors.New("not used")
}

func (stubSetup) Run(ctx context.Context, s *domain.SetupSession, p domain.Prompter) (*domain.Event, error) {
	return nil, errors.New("not used")
}

func (stubSetup) Release(s *domain.SetupSession) {}

type stubReadiness bool

func (s stubReadiness) Ready() bool { return bool(s) }

func (s stubReadiness) Len() int { return 0 }

func newTestRouter(ready bool) *http.ServeMux {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	metrics := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("# metrics"))
	})
	return NewRouter(Controllers{
		Interaction: controllers.NewInteractionController(logger, stubInteractions{}),
		Event:       controllers.NewEventController(logger, stubEvents{}),
		Setup:       controllers.NewSetupController(context.Background(), logger, stubSetup{}, relay.NewHub(), 10*time.Millisecond),
		Health:      controllers.NewHealthController(stubReadiness(ready)),
	}, stubVerifier{}, metrics, logger)
}

func TestNewRouter(t *testing.T) {
	router := newTestRouter(true)

	tests := []struct {
		name       string
		method     string
		path       string
		token      string
		wantStatus int
	}{
		{name: "list events", method: http.MethodGet, path: "/guilds/g-1/events", token: "good", wantStatus: http.StatusOK},
		{name: "list events without token", method: http.MethodGet, path: "/guilds/g-1/events", wantStatus: http.StatusUnauthorized},
		{name: "list events with bad token", method: http.MethodGet, path: "/guilds/g-1/events", token: "bad", wantStatus: http.StatusUnauthorized},
		{name: "delete event", method: http.MethodDelete, path: "/guilds/g-1/events/ev-1", token: "good", wantStatus: http.StatusOK},
		{name: "delete unknown event", method: http.MethodDelete, path: "/guilds/g-1/events/nope", token: "good", wantStatus: http.StatusNotFound},
		{name: "setup state without a wizard", method: http.MethodGet, path: "/guilds/g-1/setup", token: "good", wantStatus: http.StatusNotFound},
		{name: "cancel without a wizard", method: http.MethodDelete, path: "/guilds/g-1/setup", token: "good", wantStatus: http.StatusNotFound},
		{name: "liveness needs no token", method: http.MethodGet, path: "/healthz", wantStatus: http.StatusOK},
		{name: "readiness", method: http.MethodGet, path: "/readyz", wantStatus: http.StatusOK},
		{name: "metrics", method: http.MethodGet, path: "/metrics", wantStatus: http.StatusOK},
		{name: "wrong method", method: http.MethodPut, path: "/guilds/g-1/events", token: "good", wantStatus: http.StatusMethodNotAllowed},
		{name: "unknown path", method: http.MethodGet, path: "/nope", wantStatus: http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, tt.path, nil)
			if tt.token != "" {
				req.Header.Set("Authorization", "Bearer "+tt.token)
			}
			rr := httptest.NewRecorder()

			router.ServeHTTP(rr, req)

			assert.Equal(t, tt.wantStatus, rr.Code)
		})
	}
}

func TestNewRouter_NotReady(t *testing.T) {
	router := newTestRouter(false)

	req := httptest.NewRequest(http.MethodGet, "/readyz", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
	assert.Equal(t, "1", rr.Header().Get("Retry-After"))
}
