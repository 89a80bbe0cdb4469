package timers

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"signupboard/internal/domain"
)

const dueBatch = 50

// Scheduler is a durable one-shot timer service. Timers live in the store and
// are polled; a timer is deleted only after its handler returned, so a crash
// in between fires it again.
type Scheduler struct {
	repo     domain.TimerRepository
	logger   *slog.Logger
	interval time.Duration
	now      func() time.Time

	mu       sync.RWMutex
	handlers map[string]domain.TimerHandler

	started  bool
	stopOnce sync.Once
	stopChan chan struct{}
	done     chan struct{}
}

func NewScheduler(repo domain.TimerRepository, logger *slog.Logger, interval time.Duration) *Scheduler {
	return &Scheduler{
		repo:     repo,
		logger:   logger,
		interval: interval,
		now:      time.Now,
		handlers: make(map[string]domain.TimerHandler),
		stopChan: make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Handle registers the callback for timers of kind.
func (s *Scheduler) Handle(kind string, h domain.TimerHandler) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handlers[kind] = h
}

func (s *Scheduler) ScheduleOnce(ctx context.Context, expires time.Time, kind, guildID, userID, channelID, note string) (int64, error) {
	t := &domain.Timer{
		GuildID:   guildID,
		UserID:    userID,
		ChannelID: channelID,
		Kind:      kind,
		Expires:   expires.UTC(),
		Note:      note,
	}
	if err := s.repo.Create(ctx, t); err != nil {
		return 0, fmt.Errorf("schedule %s timer: %w", kind, err)
	}
	return t.ID, nil
}

func (s *Scheduler) Cancel(ctx context.Context, guildID, kind, note string) error {
	if _, err := s.repo.DeleteByNote(ctx, guildID, kind, note); err != nil {
		return fmt.Errorf("cancel %s timer: %w", kind, err)
	}
	return nil
}

// RunDue fires every timer whose instant has passed and returns how many ran.
func (s *Scheduler) RunDue(ctx context.Context) (int, error) {
	const op = "timers.Scheduler.RunDue"
	log := s.logger.With(slog.String("op", op))

	due, err := s.repo.ListDue(ctx, s.now().UTC(), dueBatch)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	for _, t := range due {
		s.mu.RLock()
		h, ok := s.handlers[t.Kind]
		s.mu.RUnlock()

		if !ok {
			log.Warn("no handler for timer kind, dropping", "timer_id", t.ID, "kind", t.Kind)
		} else if err := h(ctx, t); err != nil {
			log.Error("timer handler failed", "timer_id", t.ID, "kind", t.Kind, "note", t.Note, "err", err)
		}
		if err := s.repo.Delete(ctx, t.ID); err != nil {
			return 0, fmt.Errorf("%s: delete timer %d: %w", op, t.ID, err)
		}
	}
	return len(due), nil
}

// Start polls for due timers until ctx ends or Stop is called.
func (s *Scheduler) Start(ctx context.Context) {
	const op = "timers.Scheduler.Start"
	log := s.logger.With(slog.String("op", op))
	log.Info("starting timer loop", slog.Duration("interval", s.interval))

	s.mu.Lock()
	s.started = true
	s.mu.Unlock()

	go func() {
		defer close(s.done)
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		for {
			if _, err := s.RunDue(ctx); err != nil {
				log.Error("failed to run due timers", "err", err)
			}
			select {
			case <-ctx.Done():
				return
			case <-s.stopChan:
				return
			case <-ticker.C:
			}
		}
	}()
}

// Stop ends the loop started by Start and waits for it.
func (s *Scheduler) Stop() {
	s.stopOnce.Do(func() { close(s.stopChan) })
	s.mu.RLock()
	started := s.started
	s.mu.RUnlock()
	if started {
		<-s.done
	}
}
