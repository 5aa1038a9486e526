package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	VotesCast           prometheus.Counter
	DuplicateCasts      prometheus.Counter
	IneligibleRejected  prometheus.Counter
	LedgerSubmissions   prometheus.Counter
	LedgerFailures      prometheus.Counter
	PendingLedgerVotes  prometheus.Gauge
	VerificationResults *prometheus.CounterVec
	SweepRuns           prometheus.Counter
	SweepRecovered      prometheus.Counter
}

func New() *Metrics {
	return &Metrics{
		VotesCast: promauto.NewCounter(prometheus.CounterOpts{
			Name: "ballotcore_votes_cast_total",
			Help: "Total number of votes durably recorded in the vote store",
		}),
		DuplicateCasts: promauto.NewCounter(prometheus.CounterOpts{
			Name: "ballotcore_votes_duplicate_total",
			Help: "Total number of cast requests resolved idempotently against an existing vote",
		}),
		IneligibleRejected: promauto.NewCounter(prometheus.CounterOpts{
			Name: "ballotcore_votes_ineligible_total",
			Help: "Total number of cast requests rejected as ineligible",
		}),
		LedgerSubmissions: promauto.NewCounter(prometheus.CounterOpts{
			Name: "ballotcore_ledger_submissions_total",
			Help: "Total number of commitments accepted by the ledger",
		}),
		LedgerFailures: promauto.NewCounter(prometheus.CounterOpts{
			Name: "ballotcore_ledger_failures_total",
			Help: "Total number of failed ledger append attempts",
		}),
		PendingLedgerVotes: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "ballotcore_ledger_pending_votes",
			Help: "Votes currently awaiting ledger confirmation",
		}),
		VerificationResults: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "ballotcore_verifications_total",
			Help: "Verification lookups by outcome",
		}, []string{"status"}),
		SweepRuns: promauto.NewCounter(prometheus.CounterOpts{
			Name: "ballotcore_reconcile_sweeps_total",
			Help: "Total number of reconciliation sweep runs",
		}),
		SweepRecovered: promauto.NewCounter(prometheus.CounterOpts{
			Name: "ballotcore_reconcile_recovered_total",
			Help: "Total number of pending votes confirmed by the reconciliation sweep",
		}),
	}
}

func (m *Metrics) IncrementVotesCast()          { m.VotesCast.Inc() }
func (m *Metrics) IncrementDuplicateCasts()     { m.DuplicateCasts.Inc() }
func (m *Metrics) IncrementIneligibleRejected() { m.IneligibleRejected.Inc() }
func (m *Metrics) IncrementLedgerSubmissions()  { m.LedgerSubmissions.Inc() }
func (m *Metrics) IncrementLedgerFailures()     { m.LedgerFailures.Inc() }
func (m *Metrics) SetPendingLedgerVotes(n int)  { m.PendingLedgerVotes.Set(float64(n)) }
func (m *Metrics) IncrementSweepRuns()          { m.SweepRuns.Inc() }
func (m *Metrics) IncrementSweepRecovered()     { m.SweepRecovered.Inc() }

func (m *Metrics) ObserveVerification(status string) {
	m.VerificationResults.WithLabelValues(status).Inc()
}
