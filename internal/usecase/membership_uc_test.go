//go:build !integration

package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"telegram-channel-gate/internal/domain"
	"telegram-channel-gate/internal/domain/model"
	"telegram-channel-gate/internal/domain/ports/repository"
)

type ucFixture struct {
	members *memMemberRepo
	codes   *memCodeRepo
	gateway *mockGateway
	sched   *mockScheduler
	uc      *membershipUC
}

func newFixture() *ucFixture {
	f := &ucFixture{
		members: newMemMemberRepo(),
		codes:   newMemCodeRepo(),
		gateway: newMockGateway(),
		sched:   newMockScheduler(),
	}
	f.uc = NewMembershipUseCase(
		f.members, f.codes, mockTxManager{}, f.gateway, f.sched,
		newTestTranslator(), newTestLogger(), false)
	return f
}

func (f *ucFixture) seedOnboarded(t *testing.T, userID int64, phone string) {
	t.Helper()
	m, _ := model.NewMember(userID)
	m.Phone = &phone
	if err := f.members.Save(context.Background(), repository.NoTX, m); err != nil {
		t.Fatalf("seed member: %v", err)
	}
}

func (f *ucFixture) seedCode(t *testing.T, code string, days int) {
	t.Helper()
	if err := f.codes.Save(context.Background(), repository.NoTX, &model.AccessCode{Code: code, DurationDays: days}); err != nil {
		t.Fatalf("seed code: %v", err)
	}
}

func TestMembershipUC_Redeem(t *testing.T) {
	ctx := context.Background()

	t.Run("activates the subscription and schedules both timers", func(t *testing.T) {
		f := newFixture()
		f.seedOnboarded(t, 1, "+100")
		f.seedCode(t, "gg01bb", 3)

		act, err := f.uc.Redeem(ctx, 1, "GG01BB") // upper-case input is normalized
		if err != nil {
			t.Fatalf("expected no error, got: %v", err)
		}
		if act.DurationDays != 3 {
			t.Errorf("expected duration 3, got %d", act.DurationDays)
		}
		if act.InviteLink != f.gateway.InviteLink {
			t.Errorf("expected the gateway invite link, got %q", act.InviteLink)
		}

		m, err := f.members.FindByID(ctx, repository.NoTX, 1)
		if err != nil {
			t.Fatalf("member vanished: %v", err)
		}
		if m.AccessCode == nil || *m.AccessCode != "gg01bb" {
			t.Error("expected normalized code on the record")
		}
		want := m.JoinedAt.Add(3 * 24 * time.Hour)
		if !m.ExpiresAt.Equal(want) {
			t.Errorf("expires_at must equal joined_at + 3d, got %v want %v", m.ExpiresAt, want)
		}
		if !act.ExpiresAt.Equal(*m.ExpiresAt) {
			t.Error("activation must carry the stored expiry")
		}

		if len(f.gateway.InviteExpires) != 1 || !f.gateway.InviteExpires[0].Equal(*m.ExpiresAt) {
			t.Error("invite link must be scoped to the subscription expiry")
		}

		rem := f.sched.find("reminder:1")
		if rem == nil {
			t.Fatal("reminder timer not registered")
		}
		if !rem.at.Equal(m.ExpiresAt.Add(-24 * time.Hour)) {
			t.Errorf("reminder must fire at expires-24h, got %v", rem.at)
		}
		exp := f.sched.find("expiry:1")
		if exp == nil {
			t.Fatal("expiry timer not registered")
		}
		if !exp.at.Equal(*m.ExpiresAt) {
			t.Errorf("expiry timer must fire at expires_at, got %v", exp.at)
		}
	})

	t.Run("fails with NotOnboarded before any code check", func(t *testing.T) {
		f := newFixture()
		f.seedCode(t, "gg01bb", 3)

		// No record at all.
		if _, err := f.uc.Redeem(ctx, 2, "gg01bb"); !errors.Is(err, domain.ErrNotOnboarded) {
			t.Errorf("expected ErrNotOnboarded, got %v", err)
		}
		// Record without a phone; the code is valid but must not be touched.
		m, _ := model.NewMember(2)
		_ = f.members.Save(ctx, repository.NoTX, m)
		if _, err := f.uc.Redeem(ctx, 2, "gg01bb"); !errors.Is(err, domain.ErrNotOnboarded) {
			t.Errorf("expected ErrNotOnboarded, got %v", err)
		}
		codes, _ := f.codes.ListAll(ctx, repository.NoTX)
		if codes[0].Used {
			t.Error("code must not be consumed by a non-onboarded user")
		}
	})

	t.Run("rejects an unknown code as retryable", func(t *testing.T) {
		f := newFixture()
		f.seedOnboarded(t, 1, "+100")

		if _, err := f.uc.Redeem(ctx, 1, "nope"); !errors.Is(err, domain.ErrCodeInvalidOrUsed) {
			t.Errorf("expected ErrCodeInvalidOrUsed, got %v", err)
		}
		m, _ := f.members.FindByID(ctx, repository.NoTX, 1)
		if m.Active() {
			t.Error("failed redemption must not activate the member")
		}
	})

	t.Run("a code redeems exactly once", func(t *testing.T) {
		f := newFixture()
		f.seedOnboarded(t, 1, "+100")
		f.seedOnboarded(t, 2, "+200")
		f.seedCode(t, "gg01bb", 3)

		if _, err := f.uc.Redeem(ctx, 1, "gg01bb"); err != nil {
			t.Fatalf("first redemption: %v", err)
		}
		if _, err := f.uc.Redeem(ctx, 2, "gg01bb"); !errors.Is(err, domain.ErrCodeInvalidOrUsed) {
			t.Errorf("expected ErrCodeInvalidOrUsed for the loser, got %v", err)
		}
	})

	t.Run("gateway failure surfaces as activation error without rollback", func(t *testing.T) {
		f := newFixture()
		f.seedOnboarded(t, 1, "+100")
		f.seedCode(t, "gg01bb", 3)
		f.gateway.CreateInviteErr = fmt.Errorf("telegram is down")

		if _, err := f.uc.Redeem(ctx, 1, "gg01bb"); !errors.Is(err, domain.ErrGatewayFailure) {
			t.Fatalf("expected ErrGatewayFailure, got %v", err)
		}
		// Known gap: the code stays burned and the record looks active.
		codes, _ := f.codes.ListAll(ctx, repository.NoTX)
		if !codes[0].Used {
			t.Error("code must remain consumed after a gateway failure")
		}
		m, _ := f.members.FindByID(ctx, repository.NoTX, 1)
		if !m.Active() {
			t.Error("record must remain active after a gateway failure")
		}
		if f.sched.find("expiry:1") != nil {
			t.Error("no timers should be registered when activation did not complete")
		}
	})

	t.Run("save failure inside the transaction propagates", func(t *testing.T) {
		f := newFixture()
		f.seedOnboarded(t, 1, "+100")
		f.seedCode(t, "gg01bb", 3)
		f.members.saveErr = fmt.Errorf("disk on fire")

		if _, err := f.uc.Redeem(ctx, 1, "gg01bb"); err == nil {
			t.Fatal("expected an error")
		}
	})
}

func TestMembershipUC_RemoveExpired(t *testing.T) {
	ctx := context.Background()

	t.Run("notifies, kicks, defers the unban, and deletes the record", func(t *testing.T) {
		f := newFixture()
		f.seedOnboarded(t, 1, "+100")

		if err := f.uc.RemoveExpired(ctx, 1, TriggerTimer); err != nil {
			t.Fatalf("expected no error, got: %v", err)
		}
		if len(f.gateway.Sent) != 1 {
			t.Errorf("expected one expiry notice, got %d messages", len(f.gateway.Sent))
		}
		if len(f.gateway.Banned) != 1 || f.gateway.Banned[0] != 1 {
			t.Error("expected the user to be banned")
		}

		unban := f.sched.find("unban:1")
		if unban == nil {
			t.Fatal("unban must be scheduled as a deferred continuation")
		}
		if unban.after != 60*time.Second {
			t.Errorf("unban must be deferred 60s, got %v", unban.after)
		}
		if len(f.gateway.Unbanned) != 0 {
			t.Error("unban must not run inline")
		}
		f.sched.fire(ctx, "unban:1")
		if len(f.gateway.Unbanned) != 1 {
			t.Error("deferred unban did not reach the gateway")
		}

		if _, err := f.members.FindByID(ctx, repository.NoTX, 1); !errors.Is(err, domain.ErrNotFound) {
			t.Error("record must be deleted")
		}
	})

	t.Run("second run on a removed user is a no-op", func(t *testing.T) {
		f := newFixture()
		f.seedOnboarded(t, 1, "+100")

		if err := f.uc.RemoveExpired(ctx, 1, TriggerTimer); err != nil {
			t.Fatalf("first removal: %v", err)
		}
		sent := len(f.gateway.Sent)
		if err := f.uc.RemoveExpired(ctx, 1, TriggerSweep); err != nil {
			t.Errorf("second removal must not error, got: %v", err)
		}
		if len(f.gateway.Sent) != sent || len(f.gateway.Banned) != 1 {
			t.Error("second removal must not touch the gateway")
		}
	})

	t.Run("ban failure is logged only and never blocks deletion", func(t *testing.T) {
		f := newFixture()
		f.seedOnboarded(t, 1, "+100")
		f.gateway.BanErr = fmt.Errorf("not an admin")

		if err := f.uc.RemoveExpired(ctx, 1, TriggerTimer); err != nil {
			t.Fatalf("expected no error, got: %v", err)
		}
		if _, err := f.members.FindByID(ctx, repository.NoTX, 1); !errors.Is(err, domain.ErrNotFound) {
			t.Error("record must be deleted even when the ban fails")
		}
		if f.sched.find("unban:1") != nil {
			t.Error("no unban should be scheduled when the ban failed")
		}
	})

	t.Run("notice failure does not stop the removal", func(t *testing.T) {
		f := newFixture()
		f.seedOnboarded(t, 1, "+100")
		f.gateway.SendMessageErr = fmt.Errorf("user blocked the bot")

		if err := f.uc.RemoveExpired(ctx, 1, TriggerTimer); err != nil {
			t.Fatalf("expected no error, got: %v", err)
		}
		if len(f.gateway.Banned) != 1 {
			t.Error("ban must still be attempted")
		}
	})
}

func TestMembershipUC_SweepExpired(t *testing.T) {
	ctx := context.Background()

	t.Run("removes exactly the members whose expiry has passed", func(t *testing.T) {
		f := newFixture()
		now := time.Now().UTC()

		lapsed, _ := model.NewMember(1)
		phone := "+1"
		lapsed.Phone = &phone
		lapsed.Activate("aa01", now.Add(-48*time.Hour), 1) // expired yesterday
		live, _ := model.NewMember(2)
		live.Phone = &phone
		live.Activate("aa02", now, 5)
		pending, _ := model.NewMember(3) // onboarding, never activated
		for _, m := range []*model.Member{lapsed, live, pending} {
			_ = f.members.Save(ctx, repository.NoTX, m)
		}

		removed, err := f.uc.SweepExpired(ctx)
		if err != nil {
			t.Fatalf("sweep: %v", err)
		}
		if removed != 1 {
			t.Errorf("expected 1 removal, got %d", removed)
		}
		if _, err := f.members.FindByID(ctx, repository.NoTX, 1); !errors.Is(err, domain.ErrNotFound) {
			t.Error("lapsed member must be gone")
		}
		if _, err := f.members.FindByID(ctx, repository.NoTX, 2); err != nil {
			t.Error("live member must survive the sweep")
		}
		if len(f.gateway.Sent) != 1 || len(f.gateway.Banned) != 1 {
			t.Error("sweep removal must notify and kick exactly once")
		}
	})

	t.Run("an empty table sweeps clean", func(t *testing.T) {
		f := newFixture()
		removed, err := f.uc.SweepExpired(ctx)
		if err != nil || removed != 0 {
			t.Errorf("expected 0 removals and no error, got %d, %v", removed, err)
		}
	})
}

func TestMembershipUC_ReminderFire(t *testing.T) {
	ctx := context.Background()

	f := newFixture()
	f.seedOnboarded(t, 1, "+100")
	f.seedCode(t, "gg01bb", 3)

	if _, err := f.uc.Redeem(ctx, 1, "gg01bb"); err != nil {
		t.Fatalf("redeem: %v", err)
	}
	sentBefore := len(f.gateway.Sent)
	if !f.sched.fire(ctx, "reminder:1") {
		t.Fatal("reminder timer missing")
	}
	if len(f.gateway.Sent) != sentBefore+1 {
		t.Fatal("reminder message not sent")
	}
	m, _ := f.members.FindByID(ctx, repository.NoTX, 1)
	reminder := f.gateway.Sent[len(f.gateway.Sent)-1]
	if !strings.Contains(reminder, FormatExpiry(*m.ExpiresAt)) {
		t.Error("reminder must carry the expiry timestamp from its payload")
	}
}

func TestMembershipUC_ExpiryTimerFire(t *testing.T) {
	ctx := context.Background()

	f := newFixture()
	f.seedOnboarded(t, 1, "+100")
	f.seedCode(t, "gg01bb", 3)

	if _, err := f.uc.Redeem(ctx, 1, "gg01bb"); err != nil {
		t.Fatalf("redeem: %v", err)
	}
	if !f.sched.fire(ctx, "expiry:1") {
		t.Fatal("expiry timer missing")
	}
	if _, err := f.members.FindByID(ctx, repository.NoTX, 1); !errors.Is(err, domain.ErrNotFound) {
		t.Error("expiry timer must remove the member")
	}
}

func TestMembershipUC_Onboarding(t *testing.T) {
	ctx := context.Background()

	t.Run("start creates an empty record once", func(t *testing.T) {
		f := newFixture()
		if err := f.uc.StartOnboarding(ctx, 1); err != nil {
			t.Fatalf("start: %v", err)
		}
		m, err := f.members.FindByID(ctx, repository.NoTX, 1)
		if err != nil {
			t.Fatalf("record missing: %v", err)
		}
		if m.Onboarded() || m.Active() {
			t.Error("fresh record must be all nulls")
		}

		phone := "+100"
		m.Phone = &phone
		_ = f.members.Save(ctx, repository.NoTX, m)
		if err := f.uc.StartOnboarding(ctx, 1); err != nil {
			t.Fatalf("repeat start: %v", err)
		}
		m, _ = f.members.FindByID(ctx, repository.NoTX, 1)
		if !m.Onboarded() {
			t.Error("repeat /start must not wipe an existing record")
		}
	})

	t.Run("attach phone creates the record when absent", func(t *testing.T) {
		f := newFixture()
		if err := f.uc.AttachPhone(ctx, 5, "+500"); err != nil {
			t.Fatalf("attach: %v", err)
		}
		m, err := f.members.FindByID(ctx, repository.NoTX, 5)
		if err != nil || !m.Onboarded() {
			t.Errorf("expected an onboarded record, got %v, %v", m, err)
		}
	})

	t.Run("attach rejects an empty phone", func(t *testing.T) {
		f := newFixture()
		if err := f.uc.AttachPhone(ctx, 5, ""); !errors.Is(err, domain.ErrInvalidArgument) {
			t.Errorf("expected ErrInvalidArgument, got %v", err)
		}
	})
}

func TestMembershipUC_Stats(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	now := time.Now().UTC()

	active, _ := model.NewMember(1)
	phone := "+1"
	active.Phone = &phone
	active.Activate("aa01", now, 5)
	idle, _ := model.NewMember(2)
	_ = f.members.Save(ctx, repository.NoTX, active)
	_ = f.members.Save(ctx, repository.NoTX, idle)

	stats, err := f.uc.Stats(ctx)
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if stats.Members != 2 || stats.Active != 1 {
		t.Errorf("expected members=2 active=1, got %+v", stats)
	}
}
