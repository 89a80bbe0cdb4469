package domain

import (
	"context"
	"time"
)

// TimerKindEvent is the timer kind that expires an event. Its note is the event id.
const TimerKindEvent = "event"

// Timer is a persisted one-shot callback.
type Timer struct {
	ID        int64     `json:"id"`
	GuildID   string    `json:"guild_id"`
	UserID    string    `json:"user_id"`
	ChannelID string    `json:"channel_id"`
	Kind      string    `json:"event"`
	Expires   time.Time `json:"expires"`
	Note      string    `json:"notes"`
}

// TimerRepository stores pending timers.
type TimerRepository interface {
	Create(ctx context.Context, t *Timer) error
	ListDue(ctx context.Context, now time.Time, limit int) ([]*Timer, error)
	Delete(ctx context.Context, id int64) error
	DeleteByNote(ctx context.Context, guildID, kind, note string) (int64, error)
}

// TimeParser turns operator text into an absolute instant plus a normalised description.
type TimeParser interface {
	Parse(text string, now time.Time) (time.Time, string, error)
}

// TimerScheduler schedules durable one-shot callbacks. Delivery is at-least-once.
type TimerScheduler interface {
	ScheduleOnce(ctx context.Context, expires time.Time, kind, guildID, userID, channelID, note string) (int64, error)
	Cancel(ctx context.Context, guildID, kind, note string) error
}

// TimerHandler is invoked when a timer of its kind fires.
type TimerHandler func(ctx context.Context, t *Timer) error
