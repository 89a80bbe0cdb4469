package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"sync"
	"time"

	"signupboard/internal/domain"
)

// testLogger is a no-op logger so tests don't assert on log output.
var testLogger = slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError}))

// fakeEventRepo is an in-memory EventRepository with version checks.
type fakeEventRepo struct {
	mu        sync.Mutex
	byID      map[string]*domain.Event
	createErr error
	updateErr error
	deleteErr error
	// conflicts makes the next n UpdateCategories calls fail with ErrVersionConflict.
	conflicts int
	updates   int
}

func newFakeEventRepo(events ...*domain.Event) *fakeEventRepo {
	f := &fakeEventRepo{byID: make(map[string]*domain.Event)}
	for _, e := range events {
		if e.Version == 0 {
			e.Version = 1
		}
		f.byID[e.ID] = e.Clone()
	}
	return f
}

func (f *fakeEventRepo) Create(ctx context.Context, e *domain.Event) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return f.createErr
	}
	e.Version = 1
	f.byID[e.ID] = e.Clone()
	return nil
}

func (f *fakeEventRepo) GetByID(ctx context.Context, id string) (*domain.Event, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if e, ok := f.byID[id]; ok {
		return e.Clone(), nil
	}
	return nil, domain.ErrNotFound
}

func (f *fakeEventRepo) ListByGuild(ctx context.Context, guildID string) ([]*domain.Event, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*domain.Event
	for _, e := range f.byID {
		if e.GuildID == guildID {
			out = append(out, e.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (f *fakeEventRepo) ListAll(ctx context.Context) ([]*domain.Event, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*domain.Event
	for _, e := range f.byID {
		out = append(out, e.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (f *fakeEventRepo) UpdateCategories(ctx context.Context, id string, cats domain.CategorySet, version int) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.updates++
	if f.updateErr != nil {
		return 0, f.updateErr
	}
	e, ok := f.byID[id]
	if !ok {
		return 0, domain.ErrNotFound
	}
	if f.conflicts > 0 {
		f.conflicts--
		e.Version++
		return 0, domain.ErrVersionConflict
	}
	if e.Version != version {
		return 0, domain.ErrVersionConflict
	}
	e.Categories = cats.Clone()
	e.Version++
	return e.Version, nil
}

func (f *fakeEventRepo) Delete(ctx context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.deleteErr != nil {
		return f.deleteErr
	}
	if _, ok := f.byID[id]; !ok {
		return domain.ErrNotFound
	}
	delete(f.byID, id)
	return nil
}

func (f *fakeEventRepo) get(id string) *domain.Event {
	f.mu.Lock()
	defer f.mu.Unlock()
	if e, ok := f.byID[id]; ok {
		return e.Clone()
	}
	return nil
}

// fakeCache reads straight from the repo and counts refreshes.
type fakeCache struct {
	mu         sync.Mutex
	repo       *fakeEventRepo
	refreshes  map[string]int
	getErr     error
	refreshErr error
}

func newFakeCache(repo *fakeEventRepo) *fakeCache {
	return &fakeCache{repo: repo, refreshes: make(map[string]int)}
}

func (c *fakeCache) Get(ctx context.Context, guildID string) ([]*domain.Event, error) {
	if c.getErr != nil {
		return nil, c.getErr
	}
	return c.repo.ListByGuild(ctx, guildID)
}

func (c *fakeCache) Refresh(ctx context.Context, guildID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.refreshes[guildID]++
	return c.refreshErr
}

func (c *fakeCache) refreshCount(guildID string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.refreshes[guildID]
}

// fakePlatform records outbound calls.
type fakePlatform struct {
	mu        sync.Mutex
	nextMsg   int
	members   map[string]*domain.Member
	channels  []domain.Channel
	roles     []domain.GuildRole
	sent      []*domain.BoardMessage
	edits     int
	stripped  []string
	deleted   []string
	posts     []string
	sendErr   error
	stripErr  error
	deleteErr error
	postErr   error
}

func newFakePlatform() *fakePlatform {
	return &fakePlatform{
		members:  make(map[string]*domain.Member),
		channels: []domain.Channel{{ID: "c-1", Name: "events"}, {ID: "c-2", Name: "general"}},
		roles:    []domain.GuildRole{{ID: "r-1", Name: "Members"}, {ID: "r-2", Name: "Raiders"}},
	}
}

func (p *fakePlatform) SendBoard(ctx context.Context, channelID string, board *domain.BoardMessage) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.sendErr != nil {
		return "", p.sendErr
	}
	p.nextMsg++
	p.sent = append(p.sent, board)
	return fmt.Sprintf("m-%d", p.nextMsg), nil
}

func (p *fakePlatform) EditBoard(ctx context.Context, channelID, messageID string, board *domain.BoardMessage) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.edits++
	return nil
}

func (p *fakePlatform) StripControls(ctx context.Context, channelID, messageID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.stripped = append(p.stripped, messageID)
	return p.stripErr
}

func (p *fakePlatform) DeleteMessage(ctx context.Context, channelID, messageID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.deleted = append(p.deleted, messageID)
	return p.deleteErr
}

func (p *fakePlatform) PostMessage(ctx context.Context, channelID, content string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.postErr != nil {
		return p.postErr
	}
	p.posts = append(p.posts, content)
	return nil
}

func (p *fakePlatform) Member(ctx context.Context, guildID, userID string) (*domain.Member, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if m, ok := p.members[userID]; ok {
		return m, nil
	}
	return nil, domain.ErrNotFound
}

func (p *fakePlatform) Channels(ctx context.Context, guildID string) ([]domain.Channel, error) {
	return p.channels, nil
}

func (p *fakePlatform) Roles(ctx context.Context, guildID string) ([]domain.GuildRole, error) {
	return p.roles, nil
}

func (p *fakePlatform) addMembers(ids ...string) {
	for _, id := range ids {
		p.members[id] = &domain.Member{ID: id, DisplayName: "user " + id}
	}
}

// fakePublisher records published activities.
type fakePublisher struct {
	mu   sync.Mutex
	sent []domain.Activity
}

func (p *fakePublisher) Publish(ctx context.Context, a domain.Activity) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.sent = append(p.sent, a)
	return nil
}

func (p *fakePublisher) Close() error { return nil }

func (p *fakePublisher) kinds() []domain.ActivityKind {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]domain.ActivityKind, 0, len(p.sent))
	for _, a := range p.sent {
		out = append(out, a.Kind)
	}
	return out
}

// fakeScheduler records scheduled and cancelled timers.
type fakeScheduler struct {
	mu        sync.Mutex
	scheduled []domain.Timer
	cancelled []string
	err       error
}

func (s *fakeScheduler) ScheduleOnce(ctx context.Context, expires time.Time, kind, guildID, userID, channelID, note string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return 0, s.err
	}
	s.scheduled = append(s.scheduled, domain.Timer{Kind: kind, GuildID: guildID, UserID: userID, ChannelID: channelID, Expires: expires, Note: note})
	return int64(len(s.scheduled)), nil
}

func (s *fakeScheduler) Cancel(ctx context.Context, guildID, kind, note string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cancelled = append(s.cancelled, note)
	return s.err
}

// fakeParser accepts "tomorrow" only.
type fakeParser struct{}

func (fakeParser) Parse(text string, now time.Time) (time.Time, string, error) {
	if text == "tomorrow" {
		return now.Add(24 * time.Hour), "1 day", nil
	}
	return time.Time{}, "", domain.NewInputError("expiry", "cannot read "+text)
}

// scriptedPrompter answers prompts from a fixed script. A nil entry blocks
// until the step deadline.
type scriptedPrompter struct {
	mu      sync.Mutex
	replies []*domain.Reply
	asked   []domain.Prompt
	notice  *domain.Notice
}

func (p *scriptedPrompter) Ask(ctx context.Context, prompt domain.Prompt) (domain.Reply, error) {
	p.mu.Lock()
	p.asked = append(p.asked, prompt)
	if len(p.replies) == 0 {
		p.mu.Unlock()
		return domain.Reply{}, errors.New("script exhausted")
	}
	next := p.replies[0]
	p.replies = p.replies[1:]
	p.mu.Unlock()

	if next == nil {
		<-ctx.Done()
		return domain.Reply{}, ctx.Err()
	}
	return *next, nil
}

func (p *scriptedPrompter) Close(ctx context.Context, n domain.Notice) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.notice = &n
	return nil
}

func (p *scriptedPrompter) steps() []domain.SetupStep {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]domain.SetupStep, 0, len(p.asked))
	for _, a := range p.asked {
		out = append(out, a.Step)
	}
	return out
}

func text(s string) *domain.Reply    { return &domain.Reply{Text: s} }
func pick(v ...string) *domain.Reply { return &domain.Reply{Values: v} }
func yes() *domain.Reply             { return &domain.Reply{Confirmed: true} }
func no() *domain.Reply              { return &domain.Reply{} }
func skip() *domain.Reply            { return &domain.Reply{Skipped: true} }

func intPtr(n int) *int { return &n }

func testEvent(id string, cats ...*domain.Category) *domain.Event {
	return &domain.Event{
		ID:         id,
		GuildID:    "g-1",
		ChannelID:  "c-1",
		MessageID:  "msg-" + id,
		Title:      "Scrim " + id,
		CreatedAt:  time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
		Categories: cats,
		Version:    1,
	}
}
