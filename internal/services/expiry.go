package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"
	"unicode/utf8"

	"signupboard/internal/domain"
	"signupboard/internal/metrics"
)

// ExpiryHandler finalises an event when its expiry timer fires. It is safe to
// run more than once for the same event.
type ExpiryHandler struct {
	events   domain.EventRepository
	cache    domain.EventCache
	platform domain.Platform
	renderer domain.RosterRenderer
	router   *ControlRouter
	locks    *KeyedLocks
	activity domain.ActivityPublisher
	metrics  *metrics.Metrics
	logger   *slog.Logger
	now      func() time.Time
}

func NewExpiryHandler(
	events domain.EventRepository,
	cache domain.EventCache,
	platform domain.Platform,
	renderer domain.RosterRenderer,
	router *ControlRouter,
	locks *KeyedLocks,
	activity domain.ActivityPublisher,
	m *metrics.Metrics,
	logger *slog.Logger,
) *ExpiryHandler {
	return &ExpiryHandler{
		events:   events,
		cache:    cache,
		platform: platform,
		renderer: renderer,
		router:   router,
		locks:    locks,
		activity: activity,
		metrics:  m,
		logger:   logger,
		now:      time.Now,
	}
}

// Handle implements domain.TimerHandler. The timer note is the event id.
func (h *ExpiryHandler) Handle(ctx context.Context, t *domain.Timer) error {
	const op = "services.ExpiryHandler.Handle"
	log := h.logger.With(slog.String("op", op), "event_id", t.Note)

	ev, roster, err := h.finalise(ctx, t.Note)
	switch {
	case errors.Is(err, domain.ErrNotFound):
		h.metrics.Expiry("noop")
		log.Debug("event already gone")
		return nil
	case err != nil:
		h.metrics.Expiry("error")
		return fmt.Errorf("%s: %w", op, err)
	}

	if err := h.activity.Publish(ctx, domain.Activity{
		Kind:    domain.ActivityExpired,
		EventID: ev.ID,
		GuildID: ev.GuildID,
		At:      h.now().UTC(),
	}); err != nil {
		log.Warn("publish activity failed", "err", err)
	}

	if utf8.RuneCountInString(roster) > domain.MaxMessageLen {
		h.metrics.Expiry("too_large")
		log.Error("roster exceeds message limit", "length", utf8.RuneCountInString(roster))
		return fmt.Errorf("%s: event %s: %w", op, ev.ID, domain.ErrRosterTooLarge)
	}

	if err := h.platform.PostMessage(ctx, ev.ChannelID, roster); err != nil {
		if errors.Is(err, domain.ErrForbidden) {
			h.metrics.Expiry("post_forbidden")
			log.Info("no permission to post roster", "channel_id", ev.ChannelID)
			return nil
		}
		h.metrics.Expiry("error")
		return fmt.Errorf("%s: post roster: %w", op, err)
	}
	h.metrics.Expiry("posted")
	return nil
}

// finalise strips the controls, renders the roster and deletes the event, all
// under the event lock.
func (h *ExpiryHandler) finalise(ctx context.Context, eventID string) (*domain.Event, string, error) {
	unlock, err := h.locks.Lock(ctx, eventID)
	if err != nil {
		return nil, "", fmt.Errorf("lock event %s: %w", eventID, err)
	}
	defer unlock()

	ev, err := h.events.GetByID(ctx, eventID)
	if err != nil {
		return nil, "", err
	}

	if err := h.platform.StripControls(ctx, ev.ChannelID, ev.MessageID); err != nil && !errors.Is(err, domain.ErrNotFound) {
		h.logger.Warn("strip controls failed", "event_id", ev.ID, "message_id", ev.MessageID, "err", err)
	}

	roster, err := h.renderer.RenderRoster(h.roster(ctx, ev))
	if err != nil {
		return nil, "", fmt.Errorf("render roster: %w", err)
	}

	if err := h.events.Delete(ctx, ev.ID); err != nil {
		return nil, "", fmt.Errorf("delete event: %w", err)
	}
	if err := h.cache.Refresh(ctx, ev.GuildID); err != nil {
		h.logger.Warn("cache refresh failed", "guild_id", ev.GuildID, "err", err)
	}
	h.router.Unregister(ev.MessageID)
	return ev, roster, nil
}

// roster resolves member mentions; members that cannot be resolved are dropped.
func (h *ExpiryHandler) roster(ctx context.Context, ev *domain.Event) domain.Roster {
	r := domain.Roster{Title: ev.Title, Lines: make([]domain.RosterLine, 0, len(ev.Categories))}
	for _, c := range ev.Categories {
		line := domain.RosterLine{Category: c.Name, Mentions: make([]string, 0, len(c.Members))}
		for _, id := range c.Members {
			m, err := h.platform.Member(ctx, ev.GuildID, id)
			if err != nil {
				if !errors.Is(err, domain.ErrNotFound) {
					h.logger.Warn("member lookup failed", "guild_id", ev.GuildID, "user_id", id, "err", err)
				}
				continue
			}
			line.Mentions = append(line.Mentions, m.Mention())
		}
		r.Lines = append(r.Lines, line)
	}
	return r
}
