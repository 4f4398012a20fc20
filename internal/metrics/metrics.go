package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Settlement collects counters for the payment, session and reward flow.
// A nil *Settlement is valid and records nothing.
type Settlement struct {
	paymentsRecorded   prometheus.Counter
	sessionsFinalized  *prometheus.CounterVec
	authorizations     *prometheus.CounterVec
	claimsRecorded     prometheus.Counter
	confirmFailures    *prometheus.CounterVec
	confirmationWait   *prometheus.HistogramVec
	settlementsStarted prometheus.Counter
}

// New registers the settlement collectors on reg.
func New(reg prometheus.Registerer) *Settlement {
	m := &Settlement{
		paymentsRecorded: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "quiz_payments_recorded_total",
			Help: "Payments accepted into the ledger.",
		}),
		sessionsFinalized: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "quiz_sessions_finalized_total",
			Help: "Quiz sessions that reached a terminal state, by state.",
		}, []string{"state"}),
		authorizations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "quiz_reward_authorizations_total",
			Help: "Reward authorization decisions, by result.",
		}, []string{"result"}),
		claimsRecorded: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "quiz_reward_claims_total",
			Help: "Reward claims recorded after mint confirmation.",
		}),
		confirmFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "quiz_external_confirmation_failures_total",
			Help: "External transactions that failed upstream, by step.",
		}, []string{"step"}),
		confirmationWait: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "quiz_confirmation_wait_seconds",
			Help:    "Time spent waiting for external confirmations, by step.",
			Buckets: []float64{0.5, 1, 2, 5, 10, 30, 60, 120, 300},
		}, []string{"step"}),
		settlementsStarted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "quiz_settlements_started_total",
			Help: "Settlements opened by players.",
		}),
	}
	if reg != nil {
		reg.MustRegister(
			m.paymentsRecorded,
			m.sessionsFinalized,
			m.authorizations,
			m.claimsRecorded,
			m.confirmFailures,
			m.confirmationWait,
			m.settlementsStarted,
		)
	}
	return m
}

func (m *Settlement) PaymentRecorded() {
	if m == nil {
		return
	}
	m.paymentsRecorded.Inc()
}

func (m *Settlement) SessionFinalized(state string) {
	if m == nil {
		return
	}
	m.sessionsFinalized.WithLabelValues(state).Inc()
}

// Authorization records an authorizer result; "approved" or the rejection reason.
func (m *Settlement) Authorization(result string) {
	if m == nil {
		return
	}
	m.authorizations.WithLabelValues(result).Inc()
}

func (m *Settlement) ClaimRecorded() {
	if m == nil {
		return
	}
	m.claimsRecorded.Inc()
}

func (m *Settlement) ConfirmationFailed(step string) {
	if m == nil {
		return
	}
	m.confirmFailures.WithLabelValues(step).Inc()
}

func (m *Settlement) ObserveConfirmation(step string, d time.Duration) {
	if m == nil {
		return
	}
	m.confirmationWait.WithLabelValues(step).Observe(d.Seconds())
}

func (m *Settlement) SettlementStarted() {
	if m == nil {
		return
	}
	m.settlementsStarted.Inc()
}
