package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"signupboard/internal/domain"
	"signupboard/internal/metrics"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestControlRouter_ResolveWaitsForReady(t *testing.T) {
	r := NewControlRouter(metrics.New())
	ev := testEvent("ev-1", domain.NewCategory("Red", "🔴", domain.StyleRed, nil))
	r.Register(ev.MessageID, domain.ControlsFor(ev))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := r.Resolve(ctx, ev.MessageID, "ev-1:Red")
	require.ErrorIs(t, err, domain.ErrNotReady)

	go func() {
		time.Sleep(10 * time.Millisecond)
		r.MarkReady()
	}()
	ctrl, err := r.Resolve(context.Background(), ev.MessageID, "ev-1:Red")
	require.NoError(t, err)
	assert.Equal(t, "Red", ctrl.Category)
	assert.Equal(t, "ev-1", ctrl.EventID)
}

func TestControlRouter_ResolveRejectsStaleControls(t *testing.T) {
	r := NewControlRouter(nil)
	ev := testEvent("ev-1", domain.NewCategory("Red", "🔴", domain.StyleRed, nil))
	r.Register(ev.MessageID, domain.ControlsFor(ev))
	r.MarkReady()
	ctx := context.Background()

	tests := []struct {
		name      string
		messageID string
		customID  string
		want      error
	}{
		{name: "unknown category", messageID: ev.MessageID, customID: "ev-1:Blue", want: domain.ErrNotFound},
		{name: "other event", messageID: ev.MessageID, customID: "ev-2:Red", want: domain.ErrNotFound},
		{name: "unknown message", messageID: "msg-x", customID: "ev-1:Red", want: domain.ErrNotFound},
		{name: "malformed", messageID: ev.MessageID, customID: "nocolon", want: domain.ErrInvalidFormat},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := r.Resolve(ctx, tt.messageID, tt.customID)
			require.True(t, errors.Is(err, tt.want), "got %v", err)
		})
	}

	r.Unregister(ev.MessageID)
	_, err := r.Resolve(ctx, ev.MessageID, "ev-1:Red")
	require.ErrorIs(t, err, domain.ErrNotFound)
	assert.Zero(t, r.Len())
}

func TestReconciler_ReconcileIsIdempotent(t *testing.T) {
	withMessage := testEvent("ev-1",
		domain.NewCategory("Red", "🔴", domain.StyleRed, nil),
		domain.NewCategory("Blue", "🔵", domain.StyleBlurple, intPtr(3)),
	)
	second := testEvent("ev-2", domain.NewCategory("Tank", "🛡", domain.StyleGrey, intPtr(2)))
	orphan := testEvent("ev-3", domain.NewCategory("Heal", "💚", domain.StyleGreen, nil))
	orphan.MessageID = ""

	repo := newFakeEventRepo(withMessage, second, orphan)
	router := NewControlRouter(metrics.New())
	rec := NewReconciler(repo, router, testLogger)

	n, err := rec.Reconcile(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.True(t, router.Ready())
	first := map[string][]domain.Control{
		withMessage.MessageID: router.controls(withMessage.MessageID),
		second.MessageID:      router.controls(second.MessageID),
	}
	assert.Len(t, first[withMessage.MessageID], 2)

	n, err = rec.Reconcile(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, first[withMessage.MessageID], router.controls(withMessage.MessageID))
	assert.Equal(t, first[second.MessageID], router.controls(second.MessageID))
	assert.Equal(t, 2, router.Len())
}

func TestReconciler_StoreFailureLeavesRouterNotReady(t *testing.T) {
	router := NewControlRouter(nil)
	rec := NewReconciler(failingLister{}, router, testLogger)

	_, err := rec.Reconcile(context.Background())
	require.Error(t, err)
	assert.False(t, router.Ready())
}

func TestReconciler_ReconcileUntilReadyRetriesStoreFailures(t *testing.T) {
	router := NewControlRouter(nil)
	ev := testEvent("ev-1", domain.NewCategory("Red", "🔴", domain.StyleRed, nil))
	repo := &flakyLister{failures: 2, events: []*domain.Event{ev}}
	rec := NewReconciler(repo, router, testLogger)

	n, err := rec.ReconcileUntilReady(context.Background(), time.Millisecond, 4*time.Millisecond)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, 3, repo.calls)
	assert.True(t, router.Ready())
}

func TestReconciler_ReconcileUntilReadyStopsWithContext(t *testing.T) {
	router := NewControlRouter(nil)
	rec := NewReconciler(failingLister{}, router, testLogger)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := rec.ReconcileUntilReady(ctx, time.Millisecond, 5*time.Millisecond)
	require.ErrorIs(t, err, context.DeadlineExceeded)
	assert.False(t, router.Ready())
}

type flakyLister struct {
	domain.EventRepository
	failures int
	calls    int
	events   []*domain.Event
}

func (f *flakyLister) ListAll(ctx context.Context) ([]*domain.Event, error) {
	f.calls++
	if f.calls <= f.failures {
		return nil, errors.New("connection refused")
	}
	return f.events, nil
}

type failingLister struct{ domain.EventRepository }

func (failingLister) ListAll(ctx context.Context) ([]*domain.Event, error) {
	return nil, errors.New("connection refused")
}
