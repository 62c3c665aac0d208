package telegram

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"telegram-channel-gate/internal/domain/ports/adapter"
)

var _ adapter.ChannelGateway = (*NoopGateway)(nil)

// NoopGateway logs every gateway call instead of hitting Telegram. Used in
// dev mode when no bot token is configured, so the sweep and admin surface
// can run against a real database without a live bot.
type NoopGateway struct {
	log *zerolog.Logger
}

func NewNoopGateway(logger *zerolog.Logger) *NoopGateway {
	noopLog := logger.With().Str("component", "NoopGateway").Logger()
	return &NoopGateway{log: &noopLog}
}

func (n *NoopGateway) SendMessage(ctx context.Context, userID int64, text string) error {
	n.log.Info().Int64("user_id", userID).Str("text", text).Msg("noop send message")
	return nil
}

func (n *NoopGateway) CreateInviteLink(ctx context.Context, expiresAt time.Time) (string, error) {
	n.log.Info().Time("expires_at", expiresAt).Msg("noop create invite link")
	return fmt.Sprintf("https://t.me/+noop-%d", expiresAt.Unix()), nil
}

func (n *NoopGateway) BanMember(ctx context.Context, userID int64) error {
	n.log.Info().Int64("user_id", userID).Msg("noop ban member")
	return nil
}

func (n *NoopGateway) UnbanMember(ctx context.Context, userID int64) error {
	n.log.Info().Int64("user_id", userID).Msg("noop unban member")
	return nil
}
