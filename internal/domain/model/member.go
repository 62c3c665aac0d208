package model

import (
	"time"

	"telegram-channel-gate/internal/domain"
)

// Member is one user's subscription record, keyed by Telegram user id.
// Pointer fields map to NULL columns: Phone is nil until the contact step,
// and the four subscription fields are nil until a code is redeemed.
// They are always set (or cleared) together.
type Member struct {
	UserID       int64
	Phone        *string
	AccessCode   *string
	JoinedAt     *time.Time
	ExpiresAt    *time.Time
	DurationDays *int
}

// NewMember creates an empty record for a user on first contact.
func NewMember(userID int64) (*Member, error) {
	if userID <= 0 {
		return nil, domain.ErrInvalidArgument
	}
	return &Member{UserID: userID}, nil
}

// Onboarded reports whether the member has shared a phone number.
// Redemption is refused until this is true.
func (m *Member) Onboarded() bool {
	return m != nil && m.Phone != nil && *m.Phone != ""
}

// Active reports whether the member holds a live-looking subscription.
func (m *Member) Active() bool {
	return m != nil && m.ExpiresAt != nil
}

// Activate populates the subscription fields granted by a redeemed code.
// Expiry is exactly joined_at + days.
func (m *Member) Activate(code string, now time.Time, days int) {
	expires := now.Add(time.Duration(days) * 24 * time.Hour)
	m.AccessCode = &code
	m.JoinedAt = &now
	m.ExpiresAt = &expires
	m.DurationDays = &days
}

// ExpiredAt reports whether the subscription has lapsed as of now.
func (m *Member) ExpiredAt(now time.Time) bool {
	return m.Active() && m.ExpiresAt.Before(now)
}

func (m *Member) IsZero() bool { return m == nil || m.UserID == 0 }
