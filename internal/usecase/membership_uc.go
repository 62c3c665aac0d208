// File: internal/usecase/membership_uc.go
package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/rs/zerolog"

	"telegram-channel-gate/internal/domain"
	"telegram-channel-gate/internal/domain/model"
	"telegram-channel-gate/internal/domain/ports/adapter"
	"telegram-channel-gate/internal/domain/ports/repository"
	"telegram-channel-gate/internal/infra/i18n"
	"telegram-channel-gate/internal/infra/logging"
	"telegram-channel-gate/internal/infra/metrics"
)

const (
	// reminderLead is how long before expiry the warning goes out.
	reminderLead = 24 * time.Hour
	// unbanDelay separates the kick (ban) from the unban that lets the user
	// rejoin later with a fresh code.
	unbanDelay = 60 * time.Second

	expiryTimeLayout = "2006-01-02 15:04:05"
)

const (
	TriggerTimer = "timer"
	TriggerSweep = "sweep"
)

// FormatExpiry renders an expiry timestamp the way every user-facing
// message shows it.
func FormatExpiry(t time.Time) string { return t.Format(expiryTimeLayout) }

// Scheduler registers deferred one-shot work. Timers are fire-and-forget and
// in-memory only; the sweep is the safety net after a restart.
type Scheduler interface {
	// ScheduleAt registers fn to run at the given instant. Returns false,
	// without registering, when the instant is already in the past.
	ScheduleAt(at time.Time, name string, fn func(ctx context.Context)) bool
	// ScheduleAfter registers fn to run after d.
	ScheduleAfter(d time.Duration, name string, fn func(ctx context.Context))
}

// Activation is what a successful redemption hands back for the reply.
type Activation struct {
	DurationDays int
	ExpiresAt    time.Time
	InviteLink   string
}

// Stats is the snapshot served by the admin API.
type Stats struct {
	Members int `json:"members"`
	Active  int `json:"active"`
}

// MembershipUseCase drives the whole subscription lifecycle: onboarding,
// code redemption, reminders, and expiry enforcement. It is the only owner
// of the members and access_codes tables.
type MembershipUseCase interface {
	StartOnboarding(ctx context.Context, userID int64) error
	AttachPhone(ctx context.Context, userID int64, phone string) error
	Redeem(ctx context.Context, userID int64, codeText string) (*Activation, error)
	RemoveExpired(ctx context.Context, userID int64, trigger string) error
	SweepExpired(ctx context.Context) (int, error)
	Stats(ctx context.Context) (*Stats, error)
}

// Compile-time check
var _ MembershipUseCase = (*membershipUC)(nil)

type membershipUC struct {
	members repository.MemberRepository
	codes   repository.AccessCodeRepository
	tm      repository.TransactionManager
	gateway adapter.ChannelGateway
	sched   Scheduler
	tr      *i18n.Translator
	log     *zerolog.Logger
	dev     bool
}

func NewMembershipUseCase(
	members repository.MemberRepository,
	codes repository.AccessCodeRepository,
	tm repository.TransactionManager,
	gateway adapter.ChannelGateway,
	sched Scheduler,
	tr *i18n.Translator,
	logger *zerolog.Logger,
	dev bool,
) *membershipUC {
	ucLog := logger.With().Str("component", "MembershipUC").Logger()
	return &membershipUC{
		members: members,
		codes:   codes,
		tm:      tm,
		gateway: gateway,
		sched:   sched,
		tr:      tr,
		log:     &ucLog,
		dev:     dev,
	}
}

// StartOnboarding creates an empty member record (all subscription fields
// null) on first contact. An existing record is left untouched.
func (u *membershipUC) StartOnboarding(ctx context.Context, userID int64) error {
	defer logging.TraceDuration(u.log, "MembershipUC.StartOnboarding")()

	_, err := u.members.FindByID(ctx, repository.NoTX, userID)
	if err == nil {
		return nil
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return err
	}
	m, err := model.NewMember(userID)
	if err != nil {
		return err
	}
	return u.members.Save(ctx, repository.NoTX, m)
}

// AttachPhone stores the shared contact on the member record, creating the
// record if the user skipped /start. The find and save run in one
// transaction so near-simultaneous updates cannot clobber each other.
func (u *membershipUC) AttachPhone(ctx context.Context, userID int64, phone string) error {
	defer logging.TraceDuration(u.log, "MembershipUC.AttachPhone")()

	if phone == "" {
		return domain.ErrInvalidArgument
	}

	txOpts := pgx.TxOptions{IsoLevel: pgx.Serializable}
	err := u.tm.WithTx(ctx, txOpts, func(ctx context.Context, tx repository.Tx) error {
		m, err := u.members.FindByID(ctx, tx, userID)
		if errors.Is(err, domain.ErrNotFound) {
			if m, err = model.NewMember(userID); err != nil {
				return err
			}
		} else if err != nil {
			return err
		}
		m.Phone = &phone
		return u.members.Save(ctx, tx, m)
	})
	if err != nil {
		return err
	}
	u.log.Info().Int64("user_id", userID).
		Str("phone", logging.Redact(phone, u.dev)).Msg("phone attached")
	return nil
}

// Redeem validates a code for an onboarded user, burns it, activates the
// subscription, issues a scoped invite link, and registers the reminder and
// expiry timers.
//
// The conditional mark-used and the member update share one transaction, so
// a failed redemption burns nothing and two concurrent redemptions of the
// same code have exactly one winner.
func (u *membershipUC) Redeem(ctx context.Context, userID int64, codeText string) (*Activation, error) {
	defer logging.TraceDuration(u.log, "MembershipUC.Redeem")()

	member, err := u.members.FindByID(ctx, repository.NoTX, userID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			metrics.IncRedemption("not_onboarded")
			return nil, domain.ErrNotOnboarded
		}
		metrics.IncRedemption("error")
		return nil, err
	}
	// The phone check always precedes code validation.
	if !member.Onboarded() {
		metrics.IncRedemption("not_onboarded")
		return nil, domain.ErrNotOnboarded
	}

	code := model.NormalizeCode(codeText)
	now := time.Now().UTC()

	txOpts := pgx.TxOptions{IsoLevel: pgx.ReadCommitted}
	err = u.tm.WithTx(ctx, txOpts, func(ctx context.Context, tx repository.Tx) error {
		days, err := u.codes.MarkUsed(ctx, tx, code)
		if err != nil {
			return err
		}
		member.Activate(code, now, days)
		return u.members.Save(ctx, tx, member)
	})
	if err != nil {
		if errors.Is(err, domain.ErrCodeInvalidOrUsed) {
			metrics.IncRedemption("invalid_code")
			return nil, domain.ErrCodeInvalidOrUsed
		}
		metrics.IncRedemption("error")
		return nil, err
	}

	expiresAt := *member.ExpiresAt
	link, err := u.gateway.CreateInviteLink(ctx, expiresAt)
	if err != nil {
		// The code is burned and the record looks active, but the user never
		// got a link. Kept as-is for the sweep to clean up; logged loudly so
		// an operator can re-issue a code.
		u.log.Error().Err(err).Int64("user_id", userID).Str("code", code).
			Msg("invite link creation failed after code was consumed")
		metrics.IncRedemption("gateway_failure")
		return nil, domain.ErrGatewayFailure
	}

	u.scheduleLifecycle(userID, expiresAt)
	metrics.IncRedemption("ok")
	u.log.Info().Int64("user_id", userID).Str("code", code).
		Int("duration_days", *member.DurationDays).
		Time("expires_at", expiresAt).Msg("subscription activated")

	return &Activation{
		DurationDays: *member.DurationDays,
		ExpiresAt:    expiresAt,
		InviteLink:   link,
	}, nil
}

// scheduleLifecycle registers the two one-shot timers for a redemption.
// The expiry timestamp is copied into the payloads at scheduling time;
// callbacks never re-read it from storage. A reminder instant already in the
// past is skipped, no backfill.
func (u *membershipUC) scheduleLifecycle(userID int64, expiresAt time.Time) {
	expiry := expiresAt
	u.sched.ScheduleAt(expiry.Add(-reminderLead), fmt.Sprintf("reminder:%d", userID),
		func(ctx context.Context) {
			u.sendReminder(ctx, userID, expiry)
		})
	u.sched.ScheduleAt(expiry, fmt.Sprintf("expiry:%d", userID),
		func(ctx context.Context) {
			if err := u.RemoveExpired(ctx, userID, TriggerTimer); err != nil {
				u.log.Error().Err(err).Int64("user_id", userID).Msg("timed removal failed")
			}
		})
}

// sendReminder delivers the 24h warning. Best effort: failures are logged
// and never propagate. The member may already be gone, which is fine.
func (u *membershipUC) sendReminder(ctx context.Context, userID int64, expiresAt time.Time) {
	text := u.tr.T("reminder", expiresAt.Format(expiryTimeLayout))
	if err := u.gateway.SendMessage(ctx, userID, text); err != nil {
		u.log.Warn().Err(err).Int64("user_id", userID).Msg("reminder send failed")
		return
	}
	metrics.IncReminderSent()
}

// RemoveExpired enforces expiry for one user: best-effort notice, ban (the
// one-time kick), a deferred unban 60s later so the user can rejoin with a
// fresh code, then unconditional record deletion. Idempotent: an already
// removed user is a no-op, so the timer and the sweep can race safely.
func (u *membershipUC) RemoveExpired(ctx context.Context, userID int64, trigger string) error {
	defer logging.TraceDuration(u.log, "MembershipUC.RemoveExpired")()

	_, err := u.members.FindByID(ctx, repository.NoTX, userID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil
		}
		return err
	}

	noticeKey := "expired_notice"
	if trigger == TriggerSweep {
		noticeKey = "expired_notice_auto"
	}
	if err := u.gateway.SendMessage(ctx, userID, u.tr.T(noticeKey)); err != nil {
		u.log.Warn().Err(err).Int64("user_id", userID).Msg("expiry notice send failed")
	}

	if err := u.gateway.BanMember(ctx, userID); err != nil {
		u.log.Warn().Err(err).Int64("user_id", userID).Msg("cannot remove user from channel")
	} else {
		// Deferred continuation, never a blocking sleep on the dispatch path.
		u.sched.ScheduleAfter(unbanDelay, fmt.Sprintf("unban:%d", userID),
			func(ctx context.Context) {
				if err := u.gateway.UnbanMember(ctx, userID); err != nil {
					u.log.Warn().Err(err).Int64("user_id", userID).Msg("unban failed")
				}
			})
	}

	if err := u.members.Delete(ctx, repository.NoTX, userID); err != nil {
		return err
	}
	metrics.IncRemoval(trigger)
	u.log.Info().Int64("user_id", userID).Str("trigger", trigger).Msg("expired member removed")
	return nil
}

// SweepExpired scans for members whose expiry is strictly before now and
// removes each one. Per-user failures are isolated; the next cycle retries
// whatever is still expired.
func (u *membershipUC) SweepExpired(ctx context.Context) (int, error) {
	defer logging.TraceDuration(u.log, "MembershipUC.SweepExpired")()

	ids, err := u.members.ListExpired(ctx, repository.NoTX, time.Now().UTC())
	if err != nil {
		return 0, err
	}
	removed := 0
	for _, id := range ids {
		if err := u.RemoveExpired(ctx, id, TriggerSweep); err != nil {
			u.log.Error().Err(err).Int64("user_id", id).Msg("sweep removal failed")
			continue
		}
		removed++
	}
	return removed, nil
}

func (u *membershipUC) Stats(ctx context.Context) (*Stats, error) {
	defer logging.TraceDuration(u.log, "MembershipUC.Stats")()

	total, err := u.members.CountMembers(ctx, repository.NoTX)
	if err != nil {
		return nil, err
	}
	active, err := u.members.CountActive(ctx, repository.NoTX, time.Now().UTC())
	if err != nil {
		return nil, err
	}
	metrics.SetActiveMembers(active)
	return &Stats{Members: total, Active: active}, nil
}
