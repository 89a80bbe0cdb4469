package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"signupboard/internal/domain"
)

type eventService struct {
	events         domain.EventRepository
	cache          domain.EventCache
	platform       domain.Platform
	scheduler      domain.TimerScheduler
	router         *ControlRouter
	locks          *KeyedLocks
	activity       domain.ActivityPublisher
	logger         *slog.Logger
	contextTimeout time.Duration
	now            func() time.Time
}

func NewEventService(
	events domain.EventRepository,
	cache domain.EventCache,
	platform domain.Platform,
	scheduler domain.TimerScheduler,
	router *ControlRouter,
	locks *KeyedLocks,
	activity domain.ActivityPublisher,
	logger *slog.Logger,
	timeout time.Duration,
) domain.EventService {
	return &eventService{
		events:         events,
		cache:          cache,
		platform:       platform,
		scheduler:      scheduler,
		router:         router,
		locks:          locks,
		activity:       activity,
		logger:         logger,
		contextTimeout: timeout,
		now:            time.Now,
	}
}

// List reads the cache without locking; counts may lag a concurrent click.
func (s *eventService) List(ctx context.Context, guildID string) ([]domain.EventSummary, error) {
	ctx, cancel := context.WithTimeout(ctx, s.contextTimeout)
	defer cancel()

	events, err := s.cache.Get(ctx, guildID)
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	out := make([]domain.EventSummary, 0, len(events))
	for _, e := range events {
		sum := domain.EventSummary{
			ID:         e.ID,
			ChannelID:  e.ChannelID,
			MessageID:  e.MessageID,
			Title:      e.Title,
			Categories: make([]domain.CategoryCount, 0, len(e.Categories)),
		}
		for _, c := range e.Categories {
			sum.Categories = append(sum.Categories, domain.CategoryCount{Name: c.Name, Count: len(c.Members), Capacity: c.Capacity})
		}
		out = append(out, sum)
	}
	return out, nil
}

// Delete removes an event on operator request: the published message, the
// row, and the pending expiry timer.
func (s *eventService) Delete(ctx context.Context, guildID, eventID string) error {
	ctx, cancel := context.WithTimeout(ctx, s.contextTimeout)
	defer cancel()

	unlock, err := s.locks.Lock(ctx, eventID)
	if err != nil {
		return fmt.Errorf("lock event %s: %w", eventID, err)
	}
	defer unlock()

	ev, err := s.events.GetByID(ctx, eventID)
	if err != nil {
		return fmt.Errorf("get event: %w", err)
	}
	if ev.GuildID != guildID {
		return fmt.Errorf("get event: %w", domain.ErrNotFound)
	}

	if err := s.platform.DeleteMessage(ctx, ev.ChannelID, ev.MessageID); err != nil && !errors.Is(err, domain.ErrNotFound) {
		s.logger.Warn("delete board message failed", "event_id", ev.ID, "message_id", ev.MessageID, "err", err)
	}
	if err := s.events.Delete(ctx, ev.ID); err != nil {
		return fmt.Errorf("delete event: %w", err)
	}
	if err := s.scheduler.Cancel(ctx, ev.GuildID, domain.TimerKindEvent, ev.ID); err != nil {
		// a leftover timer finds no row and does nothing
		s.logger.Warn("cancel expiry timer failed", "event_id", ev.ID, "err", err)
	}
	if err := s.cache.Refresh(ctx, ev.GuildID); err != nil {
		s.logger.Warn("cache refresh failed", "guild_id", ev.GuildID, "err", err)
	}
	s.router.Unregister(ev.MessageID)

	if err := s.activity.Publish(ctx, domain.Activity{
		Kind:    domain.ActivityDeleted,
		EventID: ev.ID,
		GuildID: ev.GuildID,
		At:      s.now().UTC(),
	}); err != nil {
		s.logger.Warn("publish activity failed", "event_id", ev.ID, "err", err)
	}
	return nil
}
