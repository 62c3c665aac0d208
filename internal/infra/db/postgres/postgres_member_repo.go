package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"telegram-channel-gate/internal/domain"
	"telegram-channel-gate/internal/domain/model"
	"telegram-channel-gate/internal/domain/ports/repository"
)

// Ensure implementation satisfies the interface.
var _ repository.MemberRepository = (*memberRepo)(nil)

type memberRepo struct {
	pool *pgxpool.Pool
}

func NewMemberRepo(pool *pgxpool.Pool) repository.MemberRepository {
	return &memberRepo{pool: pool}
}

func (r *memberRepo) Save(ctx context.Context, tx repository.Tx, m *model.Member) error {
	const q = `
INSERT INTO members (user_id, phone, access_code, joined_at, expires_at, duration_days)
VALUES ($1, $2, $3, $4, $5, $6)
ON CONFLICT (user_id) DO UPDATE SET
  phone = EXCLUDED.phone,
  access_code = EXCLUDED.access_code,
  joined_at = EXCLUDED.joined_at,
  expires_at = EXCLUDED.expires_at,
  duration_days = EXCLUDED.duration_days;
`
	_, err := execSQL(ctx, r.pool, tx, q,
		m.UserID, m.Phone, m.AccessCode, m.JoinedAt, m.ExpiresAt, m.DurationDays,
	)
	return err
}

func (r *memberRepo) FindByID(ctx context.Context, tx repository.Tx, userID int64) (*model.Member, error) {
	const q = `
SELECT user_id, phone, access_code, joined_at, expires_at, duration_days
  FROM members WHERE user_id = $1;
`
	row, err := pickRow(ctx, r.pool, tx, q, userID)
	if err != nil {
		return nil, err
	}
	var m model.Member
	if err := row.Scan(&m.UserID, &m.Phone, &m.AccessCode, &m.JoinedAt, &m.ExpiresAt, &m.DurationDays); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, domain.ErrReadDatabaseRow
	}
	return &m, nil
}

// Delete removes the record if present. Zero rows affected is not an error;
// the expiry timer and the sweep may both try to remove the same user.
func (r *memberRepo) Delete(ctx context.Context, tx repository.Tx, userID int64) error {
	_, err := execSQL(ctx, r.pool, tx, `DELETE FROM members WHERE user_id = $1;`, userID)
	return err
}

func (r *memberRepo) ListExpired(ctx context.Context, tx repository.Tx, before time.Time) ([]int64, error) {
	const q = `
SELECT user_id FROM members
 WHERE expires_at IS NOT NULL AND expires_at < $1;
`
	rows, err := pickRows(ctx, r.pool, tx, q, before)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, domain.ErrReadDatabaseRow
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (r *memberRepo) CountMembers(ctx context.Context, tx repository.Tx) (int, error) {
	row, err := pickRow(ctx, r.pool, tx, `SELECT COUNT(*) FROM members;`)
	if err != nil {
		return 0, err
	}
	var n int
	if err := row.Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}

func (r *memberRepo) CountActive(ctx context.Context, tx repository.Tx, at time.Time) (int, error) {
	row, err := pickRow(ctx, r.pool, tx,
		`SELECT COUNT(*) FROM members WHERE expires_at IS NOT NULL AND expires_at >= $1;`, at)
	if err != nil {
		return 0, err
	}
	var n int
	if err := row.Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}
