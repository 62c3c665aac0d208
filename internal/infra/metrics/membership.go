package metrics

import (
	"strings"

	"github.com/prometheus/client_golang/prometheus"
)

func init() {
	register(
		redemptionsTotal,
		removalsTotal,
		remindersSentTotal,
		sweepRunsTotal,
		membersActive,
	)
}

var (
	redemptionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "redemptions_total",
			Help: "Code redemption attempts by result (ok/invalid_code/not_onboarded/gateway_failure/error).",
		},
		[]string{"result"},
	)

	removalsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "removals_total",
			Help: "Expired members removed, by trigger (timer/sweep).",
		},
		[]string{"trigger"},
	)

	remindersSentTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "reminders_sent_total",
			Help: "24h expiry reminders delivered.",
		},
	)

	sweepRunsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "sweep_runs_total",
			Help: "Reconciliation sweep cycles completed.",
		},
	)

	membersActive = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "members_active",
			Help: "Current number of members holding an unexpired subscription.",
		},
	)
)

func norm(s string) string { return strings.ToLower(strings.TrimSpace(s)) }

func IncRedemption(result string) {
	redemptionsTotal.WithLabelValues(norm(result)).Inc()
}

func IncRemoval(trigger string) {
	removalsTotal.WithLabelValues(norm(trigger)).Inc()
}

func IncReminderSent() { remindersSentTotal.Inc() }

func IncSweepRun() { sweepRunsTotal.Inc() }

func SetActiveMembers(n int) { membersActive.Set(float64(n)) }
