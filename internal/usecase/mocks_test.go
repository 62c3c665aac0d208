//go:build !integration

// File: internal/usecase/mocks_test.go
package usecase

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"telegram-channel-gate/internal/domain"
	"telegram-channel-gate/internal/domain/model"
	"telegram-channel-gate/internal/domain/ports/repository"
	"telegram-channel-gate/internal/infra/i18n"

	"github.com/jackc/pgx/v4"
)

func newTestLogger() *zerolog.Logger {
	l := zerolog.Nop()
	return &l
}

func newTestTranslator() *i18n.Translator {
	tr, err := i18n.NewTranslator(i18n.LocalesFS, "en")
	if err != nil {
		panic(err)
	}
	return tr
}

// memMemberRepo is a small in-memory implementation used by unit tests.
type memMemberRepo struct {
	mu      sync.RWMutex
	store   map[int64]*model.Member
	saveErr error // simulate save failures
	findErr error
}

func newMemMemberRepo() *memMemberRepo {
	return &memMemberRepo{store: make(map[int64]*model.Member)}
}

func (m *memMemberRepo) Save(ctx context.Context, tx repository.Tx, mem *model.Member) error {
	if m.saveErr != nil {
		return m.saveErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *mem
	m.store[mem.UserID] = &cp
	return nil
}

func (m *memMemberRepo) FindByID(ctx context.Context, tx repository.Tx, userID int64) (*model.Member, error) {
	if m.findErr != nil {
		return nil, m.findErr
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	mem, ok := m.store[userID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *mem
	return &cp, nil
}

func (m *memMemberRepo) Delete(ctx context.Context, tx repository.Tx, userID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.store, userID)
	return nil
}

func (m *memMemberRepo) ListExpired(ctx context.Context, tx repository.Tx, before time.Time) ([]int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var ids []int64
	for id, mem := range m.store {
		if mem.ExpiresAt != nil && mem.ExpiresAt.Before(before) {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

func (m *memMemberRepo) CountMembers(ctx context.Context, tx repository.Tx) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.store), nil
}

func (m *memMemberRepo) CountActive(ctx context.Context, tx repository.Tx, at time.Time) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	cnt := 0
	for _, mem := range m.store {
		if mem.ExpiresAt != nil && !mem.ExpiresAt.Before(at) {
			cnt++
		}
	}
	return cnt, nil
}

// memCodeRepo mirrors the conditional-update semantics of the Postgres repo.
type memCodeRepo struct {
	mu    sync.Mutex
	store map[string]*model.AccessCode
}

func newMemCodeRepo() *memCodeRepo {
	return &memCodeRepo{store: make(map[string]*model.AccessCode)}
}

func (m *memCodeRepo) Save(ctx context.Context, tx repository.Tx, code *model.AccessCode) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := model.NormalizeCode(code.Code)
	if _, exists := m.store[key]; exists {
		return nil // insert-if-absent, like ON CONFLICT DO NOTHING
	}
	cp := *code
	cp.Code = key
	m.store[key] = &cp
	return nil
}

func (m *memCodeRepo) MarkUsed(ctx context.Context, tx repository.Tx, code string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.store[code]
	if !ok || c.Used {
		return 0, domain.ErrCodeInvalidOrUsed
	}
	c.Used = true
	return c.DurationDays, nil
}

func (m *memCodeRepo) ListAll(ctx context.Context, tx repository.Tx) ([]*model.AccessCode, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*model.AccessCode, 0, len(m.store))
	for _, c := range m.store {
		cp := *c
		out = append(out, &cp)
	}
	return out, nil
}

// mockTxManager runs the callback directly; the in-memory repos have no
// real transactions to manage.
type mockTxManager struct{}

func (mockTxManager) WithTx(ctx context.Context, txOpt pgx.TxOptions, fn func(ctx context.Context, tx repository.Tx) error) error {
	return fn(ctx, repository.NoTX)
}

// mockGateway records calls and lets tests inject failures per operation.
type mockGateway struct {
	mu sync.Mutex

	SendMessageErr      error
	CreateInviteErr     error
	BanErr              error
	UnbanErr            error
	InviteLink          string

	Sent          []string
	SentTo        []int64
	InviteExpires []time.Time
	Banned        []int64
	Unbanned      []int64
}

func newMockGateway() *mockGateway {
	return &mockGateway{InviteLink: "https://t.me/+abcdef"}
}

func (g *mockGateway) SendMessage(ctx context.Context, userID int64, text string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.SendMessageErr != nil {
		return g.SendMessageErr
	}
	g.Sent = append(g.Sent, text)
	g.SentTo = append(g.SentTo, userID)
	return nil
}

func (g *mockGateway) CreateInviteLink(ctx context.Context, expiresAt time.Time) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.CreateInviteErr != nil {
		return "", g.CreateInviteErr
	}
	g.InviteExpires = append(g.InviteExpires, expiresAt)
	return g.InviteLink, nil
}

func (g *mockGateway) BanMember(ctx context.Context, userID int64) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.BanErr != nil {
		return g.BanErr
	}
	g.Banned = append(g.Banned, userID)
	return nil
}

func (g *mockGateway) UnbanMember(ctx context.Context, userID int64) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.UnbanErr != nil {
		return g.UnbanErr
	}
	g.Unbanned = append(g.Unbanned, userID)
	return nil
}

// scheduledEntry is one registration captured by the mock scheduler.
type scheduledEntry struct {
	name  string
	at    time.Time
	after time.Duration
	fn    func(ctx context.Context)
}

// mockScheduler records registrations and lets tests fire them on demand.
type mockScheduler struct {
	mu      sync.Mutex
	entries []scheduledEntry
}

func newMockScheduler() *mockScheduler { return &mockScheduler{} }

func (s *mockScheduler) ScheduleAt(at time.Time, name string, fn func(ctx context.Context)) bool {
	if time.Until(at) <= 0 {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = append(s.entries, scheduledEntry{name: name, at: at, fn: fn})
	return true
}

func (s *mockScheduler) ScheduleAfter(d time.Duration, name string, fn func(ctx context.Context)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = append(s.entries, scheduledEntry{name: name, after: d, fn: fn})
}

func (s *mockScheduler) find(name string) *scheduledEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.entries {
		if s.entries[i].name == name {
			return &s.entries[i]
		}
	}
	return nil
}

func (s *mockScheduler) fire(ctx context.Context, name string) bool {
	e := s.find(name)
	if e == nil {
		return false
	}
	e.fn(ctx)
	return true
}
