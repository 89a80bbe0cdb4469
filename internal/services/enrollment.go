package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"signupboard/internal/domain"
	"signupboard/internal/metrics"
)

const maxEnrollAttempts = 3

type enrollmentService struct {
	events         domain.EventRepository
	cache          domain.EventCache
	locks          *KeyedLocks
	activity       domain.ActivityPublisher
	metrics        *metrics.Metrics
	logger         *slog.Logger
	contextTimeout time.Duration
	now            func() time.Time
}

func NewEnrollmentService(
	events domain.EventRepository,
	cache domain.EventCache,
	locks *KeyedLocks,
	activity domain.ActivityPublisher,
	m *metrics.Metrics,
	logger *slog.Logger,
	timeout time.Duration,
) domain.EnrollmentService {
	return &enrollmentService{
		events:         events,
		cache:          cache,
		locks:          locks,
		activity:       activity,
		metrics:        m,
		logger:         logger,
		contextTimeout: timeout,
		now:            time.Now,
	}
}

func (s *enrollmentService) Enroll(ctx context.Context, req domain.EnrollRequest) (*domain.EnrollResult, error) {
	ctx, cancel := context.WithTimeout(ctx, s.contextTimeout)
	defer cancel()

	res, err := s.enrollLocked(ctx, req)
	s.metrics.Enrollment(outcomeLabel(res, err))
	if err != nil {
		return nil, err
	}

	if err := s.activity.Publish(ctx, domain.Activity{
		Kind:     domain.ActivityEnrolled,
		EventID:  res.Event.ID,
		GuildID:  res.Event.GuildID,
		UserID:   req.UserID,
		Category: res.Category,
		Outcome:  res.Outcome,
		At:       s.now().UTC(),
	}); err != nil {
		s.logger.Warn("publish activity failed", "event_id", req.EventID, "err", err)
	}
	return res, nil
}

// enrollLocked holds the event's lock across read, decision, write and cache
// refresh. The decision is always made on a fresh store read.
func (s *enrollmentService) enrollLocked(ctx context.Context, req domain.EnrollRequest) (*domain.EnrollResult, error) {
	unlock, err := s.locks.Lock(ctx, req.EventID)
	if err != nil {
		return nil, fmt.Errorf("lock event %s: %w", req.EventID, err)
	}
	defer unlock()

	var guildID string
	defer func() {
		if guildID != "" {
			s.refresh(ctx, guildID)
		}
	}()

	for attempt := 1; ; attempt++ {
		ev, err := s.events.GetByID(ctx, req.EventID)
		if err != nil {
			return nil, fmt.Errorf("get event: %w", err)
		}
		t, err := ev.Enroll(req.Category, req.UserID, req.Roles)
		if err != nil {
			return nil, err
		}

		guildID = ev.GuildID
		version, err := s.events.UpdateCategories(ctx, ev.ID, ev.Categories, ev.Version)
		if errors.Is(err, domain.ErrVersionConflict) && attempt < maxEnrollAttempts {
			s.logger.Debug("version conflict, retrying", "event_id", ev.ID, "attempt", attempt)
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("update categories: %w", err)
		}
		ev.Version = version
		return &domain.EnrollResult{Transition: t, Event: ev}, nil
	}
}

func (s *enrollmentService) refresh(ctx context.Context, guildID string) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.contextTimeout)
	defer cancel()
	if err := s.cache.Refresh(ctx, guildID); err != nil {
		s.logger.Warn("cache refresh failed", "guild_id", guildID, "err", err)
	}
}

func outcomeLabel(res *domain.EnrollResult, err error) string {
	switch {
	case err == nil:
		return string(res.Outcome)
	case errors.Is(err, domain.ErrCategoryFull):
		return "category_full"
	case errors.Is(err, domain.ErrForbidden):
		return "forbidden"
	case errors.Is(err, domain.ErrNotFound):
		return "not_found"
	default:
		return "error"
	}
}

type interactionService struct {
	router     *ControlRouter
	enrollment domain.EnrollmentService
	platform   domain.Platform
	logger     *slog.Logger
	readyWait  time.Duration
}

// NewInteractionService wires clicks to the enrollment engine. Clicks that
// arrive before reconciliation wait up to readyWait.
func NewInteractionService(
	router *ControlRouter,
	enrollment domain.EnrollmentService,
	platform domain.Platform,
	logger *slog.Logger,
	readyWait time.Duration,
) domain.InteractionService {
	return &interactionService{
		router:     router,
		enrollment: enrollment,
		platform:   platform,
		logger:     logger,
		readyWait:  readyWait,
	}
}

func (s *interactionService) HandleClick(ctx context.Context, click domain.Click) (*domain.ClickResult, error) {
	waitCtx, cancel := context.WithTimeout(ctx, s.readyWait)
	ctrl, err := s.router.Resolve(waitCtx, click.MessageID, click.CustomID)
	cancel()
	if err != nil {
		return nil, err
	}

	res, err := s.enrollment.Enroll(ctx, domain.EnrollRequest{
		EventID:  ctrl.EventID,
		Category: ctrl.Category,
		UserID:   click.UserID,
		Roles:    click.Roles,
	})
	if err != nil {
		return nil, err
	}

	board := domain.BuildBoard(res.Event)
	if err := s.platform.EditBoard(ctx, res.Event.ChannelID, res.Event.MessageID, board); err != nil {
		s.logger.Warn("board edit failed", "event_id", res.Event.ID, "message_id", res.Event.MessageID, "err", err)
	}
	return &domain.ClickResult{
		Transition: res.Transition,
		Text:       res.Message(),
		Board:      board,
	}, nil
}
