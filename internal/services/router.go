package services

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"signupboard/internal/domain"
	"signupboard/internal/metrics"
)

// ControlRouter maps published message ids to their live controls. Until the
// first reconciliation completes it refuses to resolve anything.
type ControlRouter struct {
	mu        sync.RWMutex
	byMessage map[string][]domain.Control
	ready     chan struct{}
	readyOnce sync.Once
	metrics   *metrics.Metrics
}

func NewControlRouter(m *metrics.Metrics) *ControlRouter {
	return &ControlRouter{
		byMessage: make(map[string][]domain.Control),
		ready:     make(chan struct{}),
		metrics:   m,
	}
}

// Register attaches controls to messageID, replacing any previous set.
func (r *ControlRouter) Register(messageID string, controls []domain.Control) {
	r.mu.Lock()
	r.byMessage[messageID] = append([]domain.Control(nil), controls...)
	n := len(r.byMessage)
	r.mu.Unlock()
	r.metrics.SetRoutedMessages(n)
}

func (r *ControlRouter) Unregister(messageID string) {
	r.mu.Lock()
	delete(r.byMessage, messageID)
	n := len(r.byMessage)
	r.mu.Unlock()
	r.metrics.SetRoutedMessages(n)
}

// Replace swaps in a complete routing table.
func (r *ControlRouter) Replace(table map[string][]domain.Control) {
	r.mu.Lock()
	r.byMessage = table
	n := len(table)
	r.mu.Unlock()
	r.metrics.SetRoutedMessages(n)
}

func (r *ControlRouter) MarkReady() {
	r.readyOnce.Do(func() { close(r.ready) })
}

func (r *ControlRouter) Ready() bool {
	select {
	case <-r.ready:
		return true
	default:
		return false
	}
}

// Len returns the number of published messages with registered controls.
func (r *ControlRouter) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byMessage)
}

func (r *ControlRouter) controls(messageID string) []domain.Control {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]domain.Control(nil), r.byMessage[messageID]...)
}

// Resolve finds the control a click refers to. It waits for readiness until
// ctx ends, then fails with ErrNotReady.
func (r *ControlRouter) Resolve(ctx context.Context, messageID, customID string) (domain.Control, error) {
	if !r.Ready() {
		select {
		case <-r.ready:
		case <-ctx.Done():
			return domain.Control{}, domain.ErrNotReady
		}
	}
	eventID, category, err := domain.ParseCustomID(customID)
	if err != nil {
		return domain.Control{}, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, c := range r.byMessage[messageID] {
		if c.EventID == eventID && c.Category == category {
			return c, nil
		}
	}
	return domain.Control{}, fmt.Errorf("control %s on message %s: %w", customID, messageID, domain.ErrNotFound)
}

// Reconciler rebuilds the routing table from the store after a restart.
type Reconciler struct {
	events domain.EventRepository
	router *ControlRouter
	logger *slog.Logger
}

func NewReconciler(events domain.EventRepository, router *ControlRouter, logger *slog.Logger) *Reconciler {
	return &Reconciler{events: events, router: router, logger: logger}
}

// Reconcile registers controls for every stored event and marks the router
// ready. Running it again yields the same table.
func (r *Reconciler) Reconcile(ctx context.Context) (int, error) {
	const op = "services.Reconciler.Reconcile"
	log := r.logger.With(slog.String("op", op))

	events, err := r.events.ListAll(ctx)
	if err != nil {
		return 0, fmt.Errorf("%s: list events: %w", op, err)
	}
	table := make(map[string][]domain.Control, len(events))
	for _, e := range events {
		if e.MessageID == "" {
			log.Warn("event has no message, skipping", "event_id", e.ID)
			continue
		}
		table[e.MessageID] = append(table[e.MessageID], domain.ControlsFor(e)...)
	}
	r.router.Replace(table)
	r.router.MarkReady()
	log.Info("controls reattached", "events", len(events), "messages", len(table))
	return len(table), nil
}

// ReconcileUntilReady retries Reconcile with doubling backoff, capped at
// ceiling, until it succeeds or ctx ends.
func (r *Reconciler) ReconcileUntilReady(ctx context.Context, initial, ceiling time.Duration) (int, error) {
	const op = "services.Reconciler.ReconcileUntilReady"
	log := r.logger.With(slog.String("op", op))

	wait := initial
	for attempt := 1; ; attempt++ {
		n, err := r.Reconcile(ctx)
		if err == nil {
			return n, nil
		}
		log.Warn("reconciliation failed, retrying", "attempt", attempt, "retry_in", wait.String(), "err", err)
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return 0, fmt.Errorf("%s: %w", op, ctx.Err())
		case <-timer.C:
		}
		wait = min(wait*2, ceiling)
	}
}
