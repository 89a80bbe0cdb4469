package domain

import (
	"context"
	"time"
)

// SetupStep identifies one prompt of the setup wizard.
type SetupStep string

const (
	StepChannel      SetupStep = "channel"
	StepTitle        SetupStep = "title"
	StepDescription  SetupStep = "description"
	StepExpiry       SetupStep = "expiry"
	StepCategoryName SetupStep = "category_name"
	StepReaction     SetupStep = "reaction"
	StepStyle        SetupStep = "style"
	StepCapacity     SetupStep = "capacity"
	StepAnother      SetupStep = "another"
	StepRoles        SetupStep = "roles"
)

// Option is a selectable answer to a prompt.
type Option struct {
	Label string `json:"label"`
	Value string `json:"value"`
}

// Prompt is one question put to the operator running the wizard.
type Prompt struct {
	Step      SetupStep     `json:"step"`
	Text      string        `json:"text"`
	Options   []Option      `json:"options,omitempty"`
	MaxValues int           `json:"max_values,omitempty"`
	Timeout   time.Duration `json:"timeout"`
}

// Reply is the operator's answer. Values carries selections, Text free-form input.
type Reply struct {
	Text      string   `json:"text"`
	Values    []string `json:"values"`
	Confirmed bool     `json:"confirmed"`
	Skipped   bool     `json:"skipped"`
	Cancelled bool     `json:"cancelled"`
}

// Notice is the final message of a wizard run.
type Notice struct {
	Success bool   `json:"success"`
	Title   string `json:"title"`
	Text    string `json:"text"`
}

// Prompter carries the wizard conversation. Ask blocks until a reply arrives
// or ctx ends.
type Prompter interface {
	Ask(ctx context.Context, p Prompt) (Reply, error)
	Close(ctx context.Context, n Notice) error
}

// SetupSession accumulates wizard answers. It is never persisted.
type SetupSession struct {
	GuildID        string
	AuthorID       string
	StartedAt      time.Time
	ChannelID      string
	Title          string
	Description    string
	Expiry         time.Time
	ExpiryText     string
	Categories     CategorySet
	PermittedRoles []string
}

// SetupService runs the single-flight per-guild event wizard.
type SetupService interface {
	// Begin reserves the guild's wizard slot.
	Begin(ctx context.Context, guildID, authorID string) (*SetupSession, error)
	// Run drives the wizard and releases the slot when it returns.
	Run(ctx context.Context, s *SetupSession, p Prompter) (*Event, error)
	// Release frees the slot of a session that will not be run.
	Release(s *SetupSession)
}
