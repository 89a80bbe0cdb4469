package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"signupboard/internal/domain"
	"signupboard/internal/metrics"

	"github.com/google/uuid"
)

// StepTimeouts bounds how long the wizard waits for each answer.
type StepTimeouts struct {
	Channel      time.Duration
	Title        time.Duration
	Description  time.Duration
	Expiry       time.Duration
	CategoryName time.Duration
	Reaction     time.Duration
	Style        time.Duration
	Capacity     time.Duration
	Another      time.Duration
	Roles        time.Duration
}

func DefaultStepTimeouts() StepTimeouts {
	return StepTimeouts{
		Channel:      180 * time.Second,
		Title:        180 * time.Second,
		Description:  300 * time.Second,
		Expiry:       300 * time.Second,
		CategoryName: 180 * time.Second,
		Reaction:     60 * time.Second,
		Style:        180 * time.Second,
		Capacity:     180 * time.Second,
		Another:      120 * time.Second,
		Roles:        180 * time.Second,
	}
}

// SetupConfig holds the wizard's bounds.
type SetupConfig struct {
	MaxCategories     int
	MaxEventsPerGuild int
	Timeouts          StepTimeouts
}

type setupService struct {
	events    domain.EventRepository
	cache     domain.EventCache
	platform  domain.Platform
	parser    domain.TimeParser
	scheduler domain.TimerScheduler
	router    *ControlRouter
	activity  domain.ActivityPublisher
	metrics   *metrics.Metrics
	logger    *slog.Logger
	cfg       SetupConfig
	now       func() time.Time
	newID     func() string

	slots    *KeyedLocks
	mu       sync.Mutex
	sessions map[string]setupSlot
}

type setupSlot struct {
	session *domain.SetupSession
	release func()
}

func NewSetupService(
	events domain.EventRepository,
	cache domain.EventCache,
	platform domain.Platform,
	parser domain.TimeParser,
	scheduler domain.TimerScheduler,
	router *ControlRouter,
	activity domain.ActivityPublisher,
	m *metrics.Metrics,
	logger *slog.Logger,
	cfg SetupConfig,
) domain.SetupService {
	if cfg.MaxCategories <= 0 {
		cfg.MaxCategories = domain.DefaultMaxCategories
	}
	if cfg.MaxEventsPerGuild <= 0 {
		cfg.MaxEventsPerGuild = domain.DefaultMaxEventsPerGuild
	}
	return &setupService{
		events:    events,
		cache:     cache,
		platform:  platform,
		parser:    parser,
		scheduler: scheduler,
		router:    router,
		activity:  activity,
		metrics:   m,
		logger:    logger,
		cfg:       cfg,
		now:       time.Now,
		newID:     uuid.NewString,
		slots:     NewKeyedLocks(),
		sessions:  make(map[string]setupSlot),
	}
}

// Begin reserves the guild's single wizard slot. A second caller is rejected
// at once, never queued.
func (s *setupService) Begin(ctx context.Context, guildID, authorID string) (*domain.SetupSession, error) {
	release, ok := s.slots.TryLock(guildID)
	if !ok {
		s.metrics.Setup("conflict")
		return nil, domain.ErrSessionConflict
	}

	active, err := s.cache.Get(ctx, guildID)
	if err != nil {
		release()
		return nil, fmt.Errorf("count events: %w", err)
	}
	if len(active) >= s.cfg.MaxEventsPerGuild {
		release()
		return nil, domain.ErrTooManyEvents
	}

	sess := &domain.SetupSession{GuildID: guildID, AuthorID: authorID, StartedAt: s.now().UTC()}
	s.mu.Lock()
	s.sessions[guildID] = setupSlot{session: sess, release: release}
	s.mu.Unlock()
	return sess, nil
}

func (s *setupService) Release(sess *domain.SetupSession) {
	s.mu.Lock()
	slot, ok := s.sessions[sess.GuildID]
	if ok && slot.session == sess {
		delete(s.sessions, sess.GuildID)
	}
	s.mu.Unlock()
	if ok && slot.session == sess {
		slot.release()
	}
}

func (s *setupService) Run(ctx context.Context, sess *domain.SetupSession, p domain.Prompter) (*domain.Event, error) {
	const op = "services.SetupService.Run"
	log := s.logger.With(slog.String("op", op), "guild_id", sess.GuildID, "author_id", sess.AuthorID)
	defer s.Release(sess)

	ev, err := s.run(ctx, sess, p)
	closeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()
	if err != nil {
		result := setupResult(err)
		s.metrics.Setup(result)
		if result == "error" {
			log.Error("setup failed", "err", err)
		} else {
			log.Info("setup aborted", "result", result, "err", err)
		}
		if cerr := p.Close(closeCtx, failureNotice(err)); cerr != nil {
			log.Warn("close prompter failed", "err", cerr)
		}
		return nil, err
	}

	s.metrics.Setup("created")
	log.Info("event created", "event_id", ev.ID, "message_id", ev.MessageID)
	if cerr := p.Close(closeCtx, domain.Notice{
		Success: true,
		Title:   "Event created",
		Text:    fmt.Sprintf("Event **%s** has been created with ID `%s`.", ev.Title, ev.ID),
	}); cerr != nil {
		log.Warn("close prompter failed", "err", cerr)
	}
	return ev, nil
}

func (s *setupService) run(ctx context.Context, sess *domain.SetupSession, p domain.Prompter) (*domain.Event, error) {
	steps := []func(context.Context, *domain.SetupSession, domain.Prompter) error{
		s.askChannel,
		s.askTitle,
		s.askDescription,
		s.askExpiry,
		s.askCategories,
		s.askRoles,
	}
	for _, step := range steps {
		if err := step(ctx, sess, p); err != nil {
			return nil, err
		}
	}
	return s.complete(ctx, sess)
}

// ask puts one prompt under its own deadline.
func (s *setupService) ask(ctx context.Context, p domain.Prompter, prompt domain.Prompt, timeout time.Duration) (domain.Reply, error) {
	stepCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	prompt.Timeout = timeout

	reply, err := p.Ask(stepCtx, prompt)
	if err != nil {
		if errors.Is(stepCtx.Err(), context.DeadlineExceeded) {
			return domain.Reply{}, fmt.Errorf("%s: %w", prompt.Step, domain.ErrTimeoutAbort)
		}
		return domain.Reply{}, fmt.Errorf("ask %s: %w", prompt.Step, err)
	}
	if reply.Cancelled {
		return domain.Reply{}, domain.ErrSetupCancelled
	}
	return reply, nil
}

// answer returns the first selected value, or the typed text.
func answer(r domain.Reply) string {
	if len(r.Values) > 0 {
		return strings.TrimSpace(r.Values[0])
	}
	return strings.TrimSpace(r.Text)
}

func (s *setupService) askChannel(ctx context.Context, sess *domain.SetupSession, p domain.Prompter) error {
	channels, err := s.platform.Channels(ctx, sess.GuildID)
	if err != nil {
		return fmt.Errorf("list channels: %w", err)
	}
	opts := make([]domain.Option, 0, len(channels))
	for _, c := range channels {
		opts = append(opts, domain.Option{Label: "#" + c.Name, Value: c.ID})
	}
	reply, err := s.ask(ctx, p, domain.Prompt{
		Step:      domain.StepChannel,
		Text:      "Please specify the channel where you want the event message to be sent!",
		Options:   opts,
		MaxValues: 1,
	}, s.cfg.Timeouts.Channel)
	if err != nil {
		return err
	}

	want := strings.TrimSuffix(strings.TrimPrefix(answer(reply), "<#"), ">")
	want = strings.TrimPrefix(want, "#")
	for _, c := range channels {
		if c.ID == want || strings.EqualFold(c.Name, want) {
			sess.ChannelID = c.ID
			return nil
		}
	}
	return domain.NewInputError("channel", "unable to locate channel")
}

func (s *setupService) askTitle(ctx context.Context, sess *domain.SetupSession, p domain.Prompter) error {
	reply, err := s.ask(ctx, p, domain.Prompt{
		Step: domain.StepTitle,
		Text: fmt.Sprintf("What is the title of the event? Please note that your title cannot exceed **%d** characters.", domain.MaxTitleLen),
	}, s.cfg.Timeouts.Title)
	if err != nil {
		return err
	}
	title := strings.TrimSpace(reply.Text)
	if title == "" {
		return domain.NewInputError("title", "title cannot be empty")
	}
	if utf8.RuneCountInString(title) > domain.MaxTitleLen {
		return domain.NewInputError("title", fmt.Sprintf("title cannot exceed %d characters", domain.MaxTitleLen))
	}
	sess.Title = title
	return nil
}

func (s *setupService) askDescription(ctx context.Context, sess *domain.SetupSession, p domain.Prompter) error {
	reply, err := s.ask(ctx, p, domain.Prompt{
		Step: domain.StepDescription,
		Text: fmt.Sprintf("Type the description of the event. Please note there is a maximum length of **%d** characters.", domain.MaxDescriptionLen),
	}, s.cfg.Timeouts.Description)
	if err != nil {
		return err
	}
	desc := strings.TrimSpace(reply.Text)
	if utf8.RuneCountInString(desc) > domain.MaxDescriptionLen {
		return domain.NewInputError("description", fmt.Sprintf("description cannot exceed %d characters", domain.MaxDescriptionLen))
	}
	sess.Description = desc
	return nil
}

func (s *setupService) askExpiry(ctx context.Context, sess *domain.SetupSession, p domain.Prompter) error {
	reply, err := s.ask(ctx, p, domain.Prompt{
		Step: domain.StepExpiry,
		Text: "When should the event end? Absolute times are UTC: `YYYY-MM-DD hh:mm` or `YYYY-MM-DD`. " +
			"Relative examples: `in 5 days`, `1 week`, `2M`.",
	}, s.cfg.Timeouts.Expiry)
	if err != nil {
		return err
	}
	at, text, err := s.parser.Parse(reply.Text, s.now())
	if err != nil {
		return err
	}
	sess.Expiry = at
	sess.ExpiryText = text
	return nil
}

func (s *setupService) askCategories(ctx context.Context, sess *domain.SetupSession, p domain.Prompter) error {
	for {
		cat, err := s.askCategory(ctx, sess, p)
		if err != nil {
			return err
		}
		sess.Categories = append(sess.Categories, cat)
		if len(sess.Categories) >= s.cfg.MaxCategories {
			return nil
		}

		reply, err := s.ask(ctx, p, domain.Prompt{
			Step:    domain.StepAnother,
			Text:    "Category added! Would you like to add another?",
			Options: []domain.Option{{Label: "Yes", Value: "yes"}, {Label: "No", Value: "no"}},
		}, s.cfg.Timeouts.Another)
		if err != nil {
			return err
		}
		if !reply.Confirmed && !strings.EqualFold(answer(reply), "yes") {
			return nil
		}
	}
}

func (s *setupService) askCategory(ctx context.Context, sess *domain.SetupSession, p domain.Prompter) (*domain.Category, error) {
	text := fmt.Sprintf("Type the name of the category below! Maximum **%d** characters!", domain.MaxCategoryNameLen)
	if len(sess.Categories) == 0 {
		text = "Now we will set up the first category for this event. " + text + " Examples: `Red Team` or `Attackers`"
	}
	reply, err := s.ask(ctx, p, domain.Prompt{Step: domain.StepCategoryName, Text: text}, s.cfg.Timeouts.CategoryName)
	if err != nil {
		return nil, err
	}
	name := strings.TrimSpace(reply.Text)
	switch {
	case name == "":
		return nil, domain.NewInputError("category_name", "category name cannot be empty")
	case utf8.RuneCountInString(name) > domain.MaxCategoryNameLen:
		return nil, domain.NewInputError("category_name", fmt.Sprintf("category name cannot exceed %d characters", domain.MaxCategoryNameLen))
	case sess.Categories.Get(name) != nil:
		return nil, domain.NewInputError("category_name", "you already have a category with the same name")
	}

	reply, err = s.ask(ctx, p, domain.Prompt{
		Step: domain.StepReaction,
		Text: "React with the emoji you want to appear on the sign-up button!",
	}, s.cfg.Timeouts.Reaction)
	if err != nil {
		return nil, err
	}
	emoji := answer(reply)
	if emoji == "" {
		return nil, domain.NewInputError("emoji", "no emoji received")
	}

	styles := domain.ButtonStyles()
	opts := make([]domain.Option, 0, len(styles))
	for _, st := range styles {
		opts = append(opts, domain.Option{Label: string(st), Value: string(st)})
	}
	reply, err = s.ask(ctx, p, domain.Prompt{
		Step:      domain.StepStyle,
		Text:      "Select the style of the sign-up button!",
		Options:   opts,
		MaxValues: 1,
	}, s.cfg.Timeouts.Style)
	if err != nil {
		return nil, err
	}
	style, err := domain.ParseButtonStyle(answer(reply))
	if err != nil {
		return nil, err
	}

	reply, err = s.ask(ctx, p, domain.Prompt{
		Step: domain.StepCapacity,
		Text: "Type in how many people should be able to join this category as a positive integer! If you do not wish to limit this, type `skip`.",
	}, s.cfg.Timeouts.Capacity)
	if err != nil {
		return nil, err
	}
	capacity, err := parseCapacity(reply)
	if err != nil {
		return nil, err
	}

	return domain.NewCategory(name, emoji, style, capacity), nil
}

func parseCapacity(r domain.Reply) (*int, error) {
	text := strings.ToLower(strings.TrimSpace(r.Text))
	if r.Skipped || text == "skip" || text == "unlimited" {
		return nil, nil
	}
	n, err := strconv.Atoi(text)
	if err != nil || n <= 0 || n > domain.MaxCapacity {
		return nil, domain.NewInputError("capacity", fmt.Sprintf("value must be a positive integer up to %d", domain.MaxCapacity))
	}
	return &n, nil
}

func (s *setupService) askRoles(ctx context.Context, sess *domain.SetupSession, p domain.Prompter) error {
	roles, err := s.platform.Roles(ctx, sess.GuildID)
	if err != nil {
		return fmt.Errorf("list roles: %w", err)
	}
	if len(roles) == 0 {
		return nil
	}
	opts := make([]domain.Option, 0, len(roles))
	for _, r := range roles {
		label := r.Name
		if utf8.RuneCountInString(label) > 25 {
			label = string([]rune(label)[:20]) + "..."
		}
		opts = append(opts, domain.Option{Label: label, Value: r.ID})
	}
	reply, err := s.ask(ctx, p, domain.Prompt{
		Step:      domain.StepRoles,
		Text:      fmt.Sprintf("Select up to %d roles that are allowed to sign up to this event! Skip if anyone may sign up.", domain.MaxPermittedRoles),
		Options:   opts,
		MaxValues: min(domain.MaxPermittedRoles, len(opts)),
	}, s.cfg.Timeouts.Roles)
	if err != nil {
		return err
	}
	if reply.Skipped || strings.EqualFold(strings.TrimSpace(reply.Text), "skip") {
		sess.PermittedRoles = nil
		return nil
	}
	if len(reply.Values) == 0 {
		return domain.NewInputError("roles", "select at least one role or skip")
	}
	if len(reply.Values) > domain.MaxPermittedRoles {
		return domain.NewInputError("roles", fmt.Sprintf("at most %d roles can be selected", domain.MaxPermittedRoles))
	}
	picked := make([]string, 0, len(reply.Values))
	for _, v := range reply.Values {
		if !slices.ContainsFunc(roles, func(r domain.GuildRole) bool { return r.ID == v }) {
			return domain.NewInputError("roles", fmt.Sprintf("unknown role %q", v))
		}
		if !slices.Contains(picked, v) {
			picked = append(picked, v)
		}
	}
	sess.PermittedRoles = picked
	return nil
}

// complete publishes and persists the event. Each step undoes the earlier
// ones on failure so no partial event survives.
func (s *setupService) complete(ctx context.Context, sess *domain.SetupSession) (*domain.Event, error) {
	expiry := sess.Expiry
	ev := &domain.Event{
		ID:             s.newID(),
		GuildID:        sess.GuildID,
		ChannelID:      sess.ChannelID,
		Title:          sess.Title,
		Description:    sess.Description,
		CreatedBy:      sess.AuthorID,
		CreatedAt:      s.now().UTC(),
		Expiry:         &expiry,
		PermittedRoles: sess.PermittedRoles,
		Categories:     sess.Categories.Clone(),
	}
	if err := domain.ValidateEvent(ev, s.cfg.MaxCategories); err != nil {
		return nil, err
	}

	msgID, err := s.platform.SendBoard(ctx, ev.ChannelID, domain.BuildBoard(ev))
	if err != nil {
		return nil, fmt.Errorf("publish board: %w", err)
	}
	ev.MessageID = msgID

	if err := s.events.Create(ctx, ev); err != nil {
		s.discardMessage(ctx, ev)
		return nil, fmt.Errorf("create event: %w", err)
	}
	if _, err := s.scheduler.ScheduleOnce(ctx, expiry, domain.TimerKindEvent, ev.GuildID, ev.CreatedBy, ev.ChannelID, ev.ID); err != nil {
		if derr := s.events.Delete(context.WithoutCancel(ctx), ev.ID); derr != nil {
			s.logger.Error("rollback event row failed", "event_id", ev.ID, "err", derr)
		}
		s.discardMessage(ctx, ev)
		return nil, fmt.Errorf("schedule expiry: %w", err)
	}
	if err := s.cache.Refresh(ctx, ev.GuildID); err != nil {
		s.logger.Warn("cache refresh failed", "guild_id", ev.GuildID, "err", err)
	}
	s.router.Register(ev.MessageID, domain.ControlsFor(ev))

	if err := s.activity.Publish(ctx, domain.Activity{
		Kind:    domain.ActivityCreated,
		EventID: ev.ID,
		GuildID: ev.GuildID,
		UserID:  ev.CreatedBy,
		At:      ev.CreatedAt,
	}); err != nil {
		s.logger.Warn("publish activity failed", "event_id", ev.ID, "err", err)
	}
	return ev, nil
}

func (s *setupService) discardMessage(ctx context.Context, ev *domain.Event) {
	if err := s.platform.DeleteMessage(context.WithoutCancel(ctx), ev.ChannelID, ev.MessageID); err != nil && !errors.Is(err, domain.ErrNotFound) {
		s.logger.Error("rollback board message failed", "event_id", ev.ID, "message_id", ev.MessageID, "err", err)
	}
}

func setupResult(err error) string {
	switch {
	case errors.Is(err, domain.ErrTimeoutAbort):
		return "timeout"
	case errors.Is(err, domain.ErrSetupCancelled):
		return "cancelled"
	case errors.Is(err, domain.ErrInvalidFormat):
		return "invalid"
	default:
		return "error"
	}
}

func failureNotice(err error) domain.Notice {
	var inErr *domain.InputError
	switch {
	case errors.Is(err, domain.ErrTimeoutAbort):
		return domain.Notice{Title: "Setup timed out", Text: "No response received in time. Operation cancelled."}
	case errors.Is(err, domain.ErrSetupCancelled):
		return domain.Notice{Title: "Setup cancelled", Text: "Operation cancelled."}
	case errors.As(err, &inErr):
		return domain.Notice{Title: "Invalid input", Text: capitalize(inErr.Reason) + ". Operation cancelled."}
	default:
		return domain.Notice{Title: "Setup failed", Text: "The event could not be created. Operation cancelled."}
	}
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
