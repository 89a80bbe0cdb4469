package controllers

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http/httptest"
	"sync"
	"testing"

	"signupboard/internal/delivery/http/helpers"
	"signupboard/internal/domain"

	"github.com/stretchr/testify/require"
)

// testLogger is a no-op logger for controller tests so we don't assert on log output.
var testLogger = slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError}))

type fakeInteractionService struct {
	result    *domain.ClickResult
	err       error
	lastClick domain.Click
}

func (f *fakeInteractionService) HandleClick(ctx context.Context, click domain.Click) (*domain.ClickResult, error) {
	f.lastClick = click
	if f.err != nil {
		return nil, f.err
	}
	return f.result, nil
}

type fakeEventService struct {
	summaries     []domain.EventSummary
	listErr       error
	deleteErr     error
	lastGuildID   string
	lastDeletedID string
}

func (f *fakeEventService) List(ctx context.Context, guildID string) ([]domain.EventSummary, error) {
	f.lastGuildID = guildID
	return f.summaries, f.listErr
}

func (f *fakeEventService) Delete(ctx context.Context, guildID, eventID string) error {
	f.lastGuildID = guildID
	f.lastDeletedID = eventID
	return f.deleteErr
}

// fakeSetupService asks a single title prompt and then closes. A non-nil hold
// delays the close until it is closed.
type fakeSetupService struct {
	mu       sync.Mutex
	beginErr error
	hold     chan struct{}
	titles   []string
	released int
}

func (f *fakeSetupService) Begin(ctx context.Context, guildID, authorID string) (*domain.SetupSession, error) {
	if f.beginErr != nil {
		return nil, f.beginErr
	}
	return &domain.SetupSession{GuildID: guildID, AuthorID: authorID}, nil
}

func (f *fakeSetupService) Run(ctx context.Context, s *domain.SetupSession, p domain.Prompter) (*domain.Event, error) {
	defer f.Release(s)
	reply, err := p.Ask(ctx, domain.Prompt{Step: domain.StepTitle, Text: "What is the title of the event?"})
	if err != nil {
		return nil, err
	}
	if reply.Cancelled {
		_ = p.Close(ctx, domain.Notice{Title: "Setup cancelled", Text: "Operation cancelled."})
		return nil, domain.ErrSetupCancelled
	}
	f.mu.Lock()
	f.titles = append(f.titles, reply.Text)
	f.mu.Unlock()
	if f.hold != nil {
		<-f.hold
	}
	_ = p.Close(ctx, domain.Notice{Success: true, Title: "Event created", Text: reply.Text})
	return &domain.Event{ID: "ev-1", Title: reply.Text}, nil
}

func (f *fakeSetupService) Release(s *domain.SetupSession) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.released++
}

type fakeReadiness bool

func (f fakeReadiness) Ready() bool { return bool(f) }

func (f fakeReadiness) Len() int {
	if f {
		return 3
	}
	return 0
}

// decodeEnvelope decodes the response envelope and, when data is non-nil,
// re-decodes envelope.Data into it.
func decodeEnvelope(t *testing.T, rr *httptest.ResponseRecorder, data any) helpers.APIResponse {
	t.Helper()
	var envelope helpers.APIResponse
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&envelope))
	if data != nil && envelope.Data != nil {
		raw, err := json.Marshal(envelope.Data)
		require.NoError(t, err)
		require.NoError(t, json.Unmarshal(raw, data))
	}
	return envelope
}
