package adapter

import (
	"context"
	"time"
)

// ChannelGateway abstracts the Telegram operations the lifecycle engine
// performs against the one managed channel. Every call is fallible; the
// caller decides which failures are best-effort and which abort the flow.
type ChannelGateway interface {
	SendMessage(ctx context.Context, userID int64, text string) error
	// CreateInviteLink creates a single-use join link that expires together
	// with the subscription it was issued for.
	CreateInviteLink(ctx context.Context, expiresAt time.Time) (string, error)
	BanMember(ctx context.Context, userID int64) error
	UnbanMember(ctx context.Context, userID int64) error
}
