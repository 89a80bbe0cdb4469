package domain

import (
	"context"
	"time"
)

// ActivityKind names a lifecycle change of an event.
type ActivityKind string

const (
	ActivityCreated  ActivityKind = "created"
	ActivityEnrolled ActivityKind = "enrolled"
	ActivityExpired  ActivityKind = "expired"
	ActivityDeleted  ActivityKind = "deleted"
)

// Activity is a record published to the activity stream.
type Activity struct {
	Kind     ActivityKind `json:"kind"`
	EventID  string       `json:"event_id"`
	GuildID  string       `json:"guild_id"`
	UserID   string       `json:"user_id,omitempty"`
	Category string       `json:"category,omitempty"`
	Outcome  Outcome      `json:"outcome,omitempty"`
	At       time.Time    `json:"at"`
}

// ActivityPublisher delivers activities to downstream consumers.
type ActivityPublisher interface {
	Publish(ctx context.Context, a Activity) error
	Close() error
}
