package sched

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// TimerRegistry tracks fire-and-forget one-shot timers (per-user reminder,
// expiry, deferred unban). Timers live only in memory: a restart loses them
// all, and the sweep worker is the documented safety net. There is no
// cancellation path when a user is deleted early; callbacks must tolerate
// operating on an already-removed record.
type TimerRegistry struct {
	base context.Context
	log  *zerolog.Logger

	mu     sync.Mutex
	timers map[string]*time.Timer
}

// NewTimerRegistry creates a registry whose callbacks receive ctx. Once ctx
// is cancelled, pending timers that fire become no-ops.
func NewTimerRegistry(ctx context.Context, logger *zerolog.Logger) *TimerRegistry {
	regLog := logger.With().Str("component", "TimerRegistry").Logger()
	return &TimerRegistry{
		base:   ctx,
		log:    &regLog,
		timers: make(map[string]*time.Timer),
	}
}

// ScheduleAt registers fn to run at the given instant. An instant already in
// the past is not registered (no backfill) and false is returned.
func (r *TimerRegistry) ScheduleAt(at time.Time, name string, fn func(ctx context.Context)) bool {
	d := time.Until(at)
	if d <= 0 {
		r.log.Debug().Str("timer", name).Time("at", at).Msg("instant already past, not registered")
		return false
	}
	r.ScheduleAfter(d, name, fn)
	return true
}

// ScheduleAfter registers fn to run after d. A timer registered under the
// same name replaces the previous one.
func (r *TimerRegistry) ScheduleAfter(d time.Duration, name string, fn func(ctx context.Context)) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if old, ok := r.timers[name]; ok {
		old.Stop()
	}
	r.timers[name] = time.AfterFunc(d, func() {
		r.remove(name)
		select {
		case <-r.base.Done():
			return
		default:
		}
		fn(r.base)
	})
	r.log.Debug().Str("timer", name).Dur("in", d).Msg("timer registered")
}

// Len reports how many timers are currently pending.
func (r *TimerRegistry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.timers)
}

// Stop cancels all pending timers. Callbacks already in flight are not
// interrupted.
func (r *TimerRegistry) Stop() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for name, t := range r.timers {
		t.Stop()
		delete(r.timers, name)
	}
}

func (r *TimerRegistry) remove(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.timers, name)
}
