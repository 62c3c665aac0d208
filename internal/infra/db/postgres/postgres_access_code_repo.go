package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"telegram-channel-gate/internal/domain"
	"telegram-channel-gate/internal/domain/model"
	"telegram-channel-gate/internal/domain/ports/repository"
)

// Ensure implementation satisfies the interface.
var _ repository.AccessCodeRepository = (*accessCodeRepo)(nil)

type accessCodeRepo struct {
	pool *pgxpool.Pool
}

func NewAccessCodeRepo(pool *pgxpool.Pool) repository.AccessCodeRepository {
	return &accessCodeRepo{pool: pool}
}

// Save inserts a code if absent. ON CONFLICT DO NOTHING keeps re-seeding
// from ever reviving a used code.
func (r *accessCodeRepo) Save(ctx context.Context, tx repository.Tx, code *model.AccessCode) error {
	const q = `
INSERT INTO access_codes (code, duration_days, used)
VALUES ($1, $2, $3)
ON CONFLICT (code) DO NOTHING;
`
	_, err := execSQL(ctx, r.pool, tx, q,
		model.NormalizeCode(code.Code), code.DurationDays, code.Used,
	)
	return err
}

// MarkUsed is the single point where used flips false -> true. The
// conditional UPDATE makes it the storage-level tie-break: under concurrent
// redemption of the same code exactly one caller gets a row back.
func (r *accessCodeRepo) MarkUsed(ctx context.Context, tx repository.Tx, code string) (int, error) {
	const q = `
UPDATE access_codes SET used = TRUE
 WHERE code = $1 AND used = FALSE
RETURNING duration_days;
`
	row, err := pickRow(ctx, r.pool, tx, q, code)
	if err != nil {
		return 0, err
	}
	var days int
	if err := row.Scan(&days); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, domain.ErrCodeInvalidOrUsed
		}
		return 0, domain.ErrReadDatabaseRow
	}
	return days, nil
}

func (r *accessCodeRepo) ListAll(ctx context.Context, tx repository.Tx) ([]*model.AccessCode, error) {
	const q = `SELECT code, duration_days, used FROM access_codes ORDER BY code;`
	rows, err := pickRows(ctx, r.pool, tx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*model.AccessCode
	for rows.Next() {
		var c model.AccessCode
		if err := rows.Scan(&c.Code, &c.DurationDays, &c.Used); err != nil {
			return nil, domain.ErrReadDatabaseRow
		}
		out = append(out, &c)
	}
	return out, rows.Err()
}
