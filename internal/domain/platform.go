package domain

import "context"

// Member is a guild member as seen by the chat platform.
type Member struct {
	ID          string   `json:"id"`
	DisplayName string   `json:"display_name"`
	Roles       []string `json:"roles"`
}

// Mention is the inline reference to the member.
func (m Member) Mention() string {
	return "<@" + m.ID + ">"
}

// Channel is a guild channel that can carry a board.
type Channel struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// GuildRole is a guild role that may be permitted to enroll.
type GuildRole struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Platform is the chat-platform transport. Missing messages or members yield
// ErrNotFound and missing permissions yield ErrForbidden.
type Platform interface {
	SendBoard(ctx context.Context, channelID string, board *BoardMessage) (messageID string, err error)
	EditBoard(ctx context.Context, channelID, messageID string, board *BoardMessage) error
	StripControls(ctx context.Context, channelID, messageID string) error
	DeleteMessage(ctx context.Context, channelID, messageID string) error
	PostMessage(ctx context.Context, channelID, content string) error
	Member(ctx context.Context, guildID, userID string) (*Member, error)
	Channels(ctx context.Context, guildID string) ([]Channel, error)
	Roles(ctx context.Context, guildID string) ([]GuildRole, error)
}

// TokenIssuer mints gateway tokens.
type TokenIssuer interface {
	Issue(subject string) (string, error)
}

// TokenVerifier verifies a gateway token and returns its subject.
type TokenVerifier interface {
	Verify(token string) (subject string, err error)
}
