package sched

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"telegram-channel-gate/internal/infra/metrics"
)

// sweeper is the minimal surface the worker needs from the membership
// use case.
type sweeper interface {
	SweepExpired(ctx context.Context) (int, error)
}

// SweepWorker periodically reconciles lapsed subscriptions straight from
// storage. It is the only expiry mechanism that survives a process restart,
// since the per-user one-shot timers are in-memory only.
type SweepWorker struct {
	interval     time.Duration
	startupDelay time.Duration
	membership   sweeper
	log          *zerolog.Logger
}

func NewSweepWorker(interval, startupDelay time.Duration, membership sweeper, logger *zerolog.Logger) *SweepWorker {
	if interval <= 0 {
		interval = time.Hour
	}
	sweepLog := logger.With().Str("component", "SweepWorker").Logger()
	return &SweepWorker{
		interval:     interval,
		startupDelay: startupDelay,
		membership:   membership,
		log:          &sweepLog,
	}
}

// Run blocks until ctx is cancelled. The first sweep runs shortly after
// startup so lapsed members whose timers were lost are caught quickly.
func (w *SweepWorker) Run(ctx context.Context) error {
	w.log.Info().Dur("interval", w.interval).Dur("startup_delay", w.startupDelay).
		Msg("starting sweep worker")

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(w.startupDelay):
	}
	w.runSweep(ctx)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.log.Info().Msg("stopping sweep worker")
			return ctx.Err()
		case <-ticker.C:
			w.runSweep(ctx)
		}
	}
}

func (w *SweepWorker) runSweep(ctx context.Context) {
	removed, err := w.membership.SweepExpired(ctx)
	metrics.IncSweepRun()
	if err != nil {
		w.log.Error().Err(err).Msg("sweep failed")
		return
	}
	if removed > 0 {
		w.log.Info().Int("count", removed).Msg("expired members removed by sweep")
	}
}
