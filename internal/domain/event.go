package domain

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"strings"
	"time"
)

// Limits applied to events and their categories.
const (
	MaxTitleLen              = 100
	MaxDescriptionLen        = 2500
	MaxCategoryNameLen       = 25
	MaxCapacity              = 100
	MaxPermittedRoles        = 5
	DefaultMaxCategories     = 9
	DefaultMaxEventsPerGuild = 10
	DisplayedMembers         = 5
	MaxMessageLen            = 2000
)

// ButtonStyle is the display style of a category control.
type ButtonStyle string

const (
	StyleBlurple ButtonStyle = "Blurple"
	StyleGrey    ButtonStyle = "Grey"
	StyleGreen   ButtonStyle = "Green"
	StyleRed     ButtonStyle = "Red"
)

// ButtonStyles lists the selectable styles in menu order.
func ButtonStyles() []ButtonStyle {
	return []ButtonStyle{StyleBlurple, StyleGrey, StyleGreen, StyleRed}
}

// ParseButtonStyle matches s case-insensitively against the known styles.
func ParseButtonStyle(s string) (ButtonStyle, error) {
	s = strings.TrimSpace(s)
	if strings.EqualFold(s, "gray") {
		return StyleGrey, nil
	}
	for _, st := range ButtonStyles() {
		if strings.EqualFold(s, string(st)) {
			return st, nil
		}
	}
	return "", NewInputError("style", fmt.Sprintf("%q is not one of Blurple, Grey, Green, Red", s))
}

// Category is a named, optionally capacity-bounded enrollment bucket.
// Members are kept in join order.
type Category struct {
	Name     string      `json:"name" validate:"required,max=25"`
	Emoji    string      `json:"emoji" validate:"required"`
	Label    string      `json:"label"`
	Style    ButtonStyle `json:"style" validate:"oneof=Blurple Grey Green Red"`
	Capacity *int        `json:"capacity,omitempty" validate:"omitempty,min=1,max=100"`
	Members  []string    `json:"members"`
}

// NewCategory returns an empty category. A nil capacity means unlimited.
func NewCategory(name, emoji string, style ButtonStyle, capacity *int) *Category {
	return &Category{
		Name:     name,
		Emoji:    emoji,
		Label:    name,
		Style:    style,
		Capacity: capacity,
		Members:  []string{},
	}
}

// Has reports whether userID is a member.
func (c *Category) Has(userID string) bool {
	return slices.Contains(c.Members, userID)
}

// Full reports whether the capacity is set and reached.
func (c *Category) Full() bool {
	return c.Capacity != nil && len(c.Members) >= *c.Capacity
}

func (c *Category) remove(userID string) {
	c.Members = slices.DeleteFunc(c.Members, func(m string) bool { return m == userID })
}

func (c *Category) clone() *Category {
	cp := *c
	if c.Capacity != nil {
		n := *c.Capacity
		cp.Capacity = &n
	}
	cp.Members = append(make([]string, 0, len(c.Members)), c.Members...)
	return &cp
}

// CategorySet is the ordered category mapping of an event.
// It serialises as a JSON object keyed by category name, in definition order.
type CategorySet []*Category

// Get returns the category called name, or nil.
func (s CategorySet) Get(name string) *Category {
	for _, c := range s {
		if c.Name == name {
			return c
		}
	}
	return nil
}

// Names returns the category names in order.
func (s CategorySet) Names() []string {
	names := make([]string, len(s))
	for i, c := range s {
		names[i] = c.Name
	}
	return names
}

// Clone returns a deep copy.
func (s CategorySet) Clone() CategorySet {
	if s == nil {
		return nil
	}
	out := make(CategorySet, len(s))
	for i, c := range s {
		out[i] = c.clone()
	}
	return out
}

// categoryRecord is the stored shape of one category.
type categoryRecord struct {
	Emoji       string   `json:"emoji"`
	ButtonLabel string   `json:"buttonlabel"`
	ButtonStyle string   `json:"buttonstyle"`
	MemberCap   *int     `json:"member_cap"`
	Members     []string `json:"members"`
}

func (s CategorySet) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, c := range s {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(c.Name)
		if err != nil {
			return nil, err
		}
		members := c.Members
		if members == nil {
			members = []string{}
		}
		val, err := json.Marshal(categoryRecord{
			Emoji:       c.Emoji,
			ButtonLabel: c.Label,
			ButtonStyle: string(c.Style),
			MemberCap:   c.Capacity,
			Members:     members,
		})
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func (s *CategorySet) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return fmt.Errorf("decode categories: %w", err)
	}
	if tok == nil {
		*s = nil
		return nil
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return fmt.Errorf("decode categories: expected object, got %v", tok)
	}
	out := CategorySet{}
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return fmt.Errorf("decode categories: %w", err)
		}
		name, ok := tok.(string)
		if !ok {
			return fmt.Errorf("decode categories: expected key, got %v", tok)
		}
		var rec categoryRecord
		if err := dec.Decode(&rec); err != nil {
			return fmt.Errorf("decode category %q: %w", name, err)
		}
		if rec.Members == nil {
			rec.Members = []string{}
		}
		out = append(out, &Category{
			Name:     name,
			Emoji:    rec.Emoji,
			Label:    rec.ButtonLabel,
			Style:    ButtonStyle(rec.ButtonStyle),
			Capacity: rec.MemberCap,
			Members:  rec.Members,
		})
	}
	if _, err := dec.Token(); err != nil {
		return fmt.Errorf("decode categories: %w", err)
	}
	*s = out
	return nil
}

// Event is a published sign-up board.
type Event struct {
	ID             string      `json:"id" validate:"required"`
	GuildID        string      `json:"guild_id" validate:"required"`
	ChannelID      string      `json:"channel_id" validate:"required"`
	MessageID      string      `json:"message_id"`
	Title          string      `json:"title" validate:"required,max=100"`
	Description    string      `json:"description" validate:"max=2500"`
	CreatedBy      string      `json:"created_by"`
	CreatedAt      time.Time   `json:"created_at"`
	Expiry         *time.Time  `json:"expiry,omitempty"`
	PermittedRoles []string    `json:"permitted_roles,omitempty" validate:"max=5"`
	Categories     CategorySet `json:"categories" validate:"min=1,dive"`
	Version        int         `json:"version"`
}

// Clone returns a deep copy of e.
func (e *Event) Clone() *Event {
	cp := *e
	if e.Expiry != nil {
		t := *e.Expiry
		cp.Expiry = &t
	}
	if e.PermittedRoles != nil {
		cp.PermittedRoles = slices.Clone(e.PermittedRoles)
	}
	cp.Categories = e.Categories.Clone()
	return &cp
}

// Restricted reports whether enrollment requires one of the permitted roles.
func (e *Event) Restricted() bool {
	return len(e.PermittedRoles) > 0
}

// Permits reports whether a holder of roles may join a category.
func (e *Event) Permits(roles []string) bool {
	if !e.Restricted() {
		return true
	}
	for _, r := range roles {
		if slices.Contains(e.PermittedRoles, r) {
			return true
		}
	}
	return false
}

// CategoryOf returns the category userID belongs to, or nil.
func (e *Event) CategoryOf(userID string) *Category {
	for _, c := range e.Categories {
		if c.Has(userID) {
			return c
		}
	}
	return nil
}

// Enroll applies one click by userID on category. Removal is checked first and
// is always allowed; joining checks capacity, then roles, then moves the user
// out of any other category. A failed call leaves e unchanged.
func (e *Event) Enroll(category, userID string, roles []string) (Transition, error) {
	target := e.Categories.Get(category)
	if target == nil {
		return Transition{}, fmt.Errorf("category %q: %w", category, ErrNotFound)
	}
	if target.Has(userID) {
		target.remove(userID)
		return Transition{Outcome: OutcomeRemoved, Category: category}, nil
	}
	if target.Full() {
		return Transition{}, ErrCategoryFull
	}
	if !e.Permits(roles) {
		return Transition{}, ErrForbidden
	}
	t := Transition{Outcome: OutcomeAdded, Category: category}
	if prev := e.CategoryOf(userID); prev != nil {
		prev.remove(userID)
		t.Outcome = OutcomeMoved
		t.From = prev.Name
	}
	target.Members = append(target.Members, userID)
	return t, nil
}

// EventRepository is the durable event store.
type EventRepository interface {
	Create(ctx context.Context, event *Event) error
	GetByID(ctx context.Context, id string) (*Event, error)
	ListByGuild(ctx context.Context, guildID string) ([]*Event, error)
	ListAll(ctx context.Context) ([]*Event, error)
	// UpdateCategories writes cats if the stored version still equals version,
	// and returns the new version.
	UpdateCategories(ctx context.Context, id string, cats CategorySet, version int) (int, error)
	Delete(ctx context.Context, id string) error
}

// EventCache is the read-through per-guild cache in front of EventRepository.
// It is not authoritative and must be refreshed after every store write.
type EventCache interface {
	Get(ctx context.Context, guildID string) ([]*Event, error)
	Refresh(ctx context.Context, guildID string) error
}
