package platform

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"

	"signupboard/internal/domain"
)

// noopPlatform accepts every call and reports what it would have sent.
type noopPlatform struct {
	logger *slog.Logger
	seq    atomic.Int64
}

func (n *noopPlatform) SendBoard(ctx context.Context, channelID string, board *domain.BoardMessage) (string, error) {
	id := fmt.Sprintf("noop-%d", n.seq.Add(1))
	n.logger.Info("board would be sent (noop)", "channel_id", channelID, "event_id", board.EventID, "message_id", id)
	return id, nil
}

func (n *noopPlatform) EditBoard(ctx context.Context, channelID, messageID string, board *domain.BoardMessage) error {
	n.logger.Debug("board would be edited (noop)", "channel_id", channelID, "message_id", messageID)
	return nil
}

func (n *noopPlatform) StripControls(ctx context.Context, channelID, messageID string) error {
	n.logger.Debug("controls would be removed (noop)", "channel_id", channelID, "message_id", messageID)
	return nil
}

func (n *noopPlatform) DeleteMessage(ctx context.Context, channelID, messageID string) error {
	n.logger.Debug("message would be deleted (noop)", "channel_id", channelID, "message_id", messageID)
	return nil
}

func (n *noopPlatform) PostMessage(ctx context.Context, channelID, content string) error {
	n.logger.Info("message would be posted (noop)", "channel_id", channelID, "length", len(content))
	return nil
}

func (n *noopPlatform) Member(ctx context.Context, guildID, userID string) (*domain.Member, error) {
	return &domain.Member{ID: userID, DisplayName: userID}, nil
}

func (n *noopPlatform) Channels(ctx context.Context, guildID string) ([]domain.Channel, error) {
	return nil, nil
}

func (n *noopPlatform) Roles(ctx context.Context, guildID string) ([]domain.GuildRole, error) {
	return nil, nil
}
