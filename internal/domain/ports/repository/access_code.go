package repository

import (
	"context"

	"telegram-channel-gate/internal/domain/model"
)

// AccessCodeRepository is the port for the pre-seeded code table.
type AccessCodeRepository interface {
	// Save inserts a code if absent. An existing code is left untouched so
	// that re-running the seeder never resurrects a used code.
	Save(ctx context.Context, tx Tx, code *model.AccessCode) error
	// MarkUsed atomically flips an unused code to used and returns the
	// duration in days it grants. Returns domain.ErrCodeInvalidOrUsed when
	// no unused row matches; under concurrent redemption exactly one caller
	// wins the conditional update.
	MarkUsed(ctx context.Context, tx Tx, code string) (int, error)
	ListAll(ctx context.Context, tx Tx) ([]*model.AccessCode, error)
}
