package repository

import (
	"context"
	"time"

	"telegram-channel-gate/internal/domain/model"
)

// MemberRepository is the port for the subscription records table.
// The lifecycle engine is the only writer.
type MemberRepository interface {
	// Save creates or updates a member record.
	Save(ctx context.Context, tx Tx, m *model.Member) error
	// FindByID returns domain.ErrNotFound for an absent record.
	FindByID(ctx context.Context, tx Tx, userID int64) (*model.Member, error)
	// Delete removes the record; deleting an absent record is a no-op.
	Delete(ctx context.Context, tx Tx, userID int64) error
	// ListExpired returns ids of members whose expiry is strictly before the
	// given instant.
	ListExpired(ctx context.Context, tx Tx, before time.Time) ([]int64, error)
	CountMembers(ctx context.Context, tx Tx) (int, error)
	CountActive(ctx context.Context, tx Tx, at time.Time) (int, error)
}
