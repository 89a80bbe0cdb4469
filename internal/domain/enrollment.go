package domain

import (
	"context"
	"fmt"
)

// Outcome is the result of an accepted click.
type Outcome string

const (
	OutcomeAdded   Outcome = "added"
	OutcomeRemoved Outcome = "removed"
	OutcomeMoved   Outcome = "moved"
)

// Transition describes a membership change. From is set only for moves.
type Transition struct {
	Outcome  Outcome `json:"outcome"`
	Category string  `json:"category"`
	From     string  `json:"from,omitempty"`
}

// Message is the confirmation shown to the acting user.
func (t Transition) Message() string {
	switch t.Outcome {
	case OutcomeRemoved:
		return fmt.Sprintf("Removed from category: **%s**", t.Category)
	case OutcomeMoved:
		return fmt.Sprintf("Moved to category: **%s**", t.Category)
	default:
		return fmt.Sprintf("Added to category: **%s**", t.Category)
	}
}

// EnrollRequest is one click on a category control.
type EnrollRequest struct {
	EventID  string
	Category string
	UserID   string
	Roles    []string
}

// EnrollResult is the committed transition and the event state it produced.
type EnrollResult struct {
	Transition
	Event *Event
}

// Click is an interaction delivered by the platform gateway.
type Click struct {
	GuildID   string
	ChannelID string
	MessageID string
	CustomID  string
	UserID    string
	Roles     []string
}

// ClickResult is returned to the gateway after a click was applied.
type ClickResult struct {
	Transition
	Text  string
	Board *BoardMessage
}

// EnrollmentService applies clicks under per-event mutual exclusion.
type EnrollmentService interface {
	Enroll(ctx context.Context, req EnrollRequest) (*EnrollResult, error)
}

// InteractionService routes platform clicks to the enrollment engine.
type InteractionService interface {
	HandleClick(ctx context.Context, click Click) (*ClickResult, error)
}

// EventSummary is one line of the active-event listing.
type EventSummary struct {
	ID         string          `json:"id"`
	ChannelID  string          `json:"channel_id"`
	MessageID  string          `json:"message_id"`
	Title      string          `json:"title"`
	Categories []CategoryCount `json:"categories"`
}

// CategoryCount is a category's current fill.
type CategoryCount struct {
	Name     string `json:"name"`
	Count    int    `json:"count"`
	Capacity *int   `json:"capacity,omitempty"`
}

// EventService is the operator-facing listing and deletion of events.
type EventService interface {
	List(ctx context.Context, guildID string) ([]EventSummary, error)
	Delete(ctx context.Context, guildID, eventID string) error
}
