package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the Prometheus instruments for the ledger service.
type Metrics struct {
	EventsAccepted  *prometheus.CounterVec
	EventsRejected  *prometheus.CounterVec
	DuplicateRefs   *prometheus.CounterVec
	Settlements     prometheus.Counter
	SettlementAccts prometheus.Histogram
	GeneratorFires  *prometheus.CounterVec
	EventDuration   *prometheus.HistogramVec
}

// NewMetrics registers all instruments on the given registerer. Pass a fresh
// registry in tests to avoid duplicate registration panics.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		EventsAccepted: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "vineledger_events_accepted_total",
			Help: "Trade events accepted, by action and source.",
		}, []string{"action", "source"}),
		EventsRejected: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "vineledger_events_rejected_total",
			Help: "Trade events rejected, by reason.",
		}, []string{"reason"}),
		DuplicateRefs: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "vineledger_duplicate_references_total",
			Help: "Duplicate external references detected, by tier (cache or db).",
		}, []string{"tier"}),
		Settlements: factory.NewCounter(prometheus.CounterOpts{
			Name: "vineledger_settlements_total",
			Help: "Settlement records committed.",
		}),
		SettlementAccts: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "vineledger_settlement_accounts",
			Help:    "Accounts credited or debited per settlement.",
			Buckets: prometheus.ExponentialBuckets(1, 2, 12),
		}),
		GeneratorFires: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "vineledger_generator_fires_total",
			Help: "Generator firings, by outcome (traded, capped, skipped, failed).",
		}, []string{"outcome"}),
		EventDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "vineledger_event_duration_seconds",
			Help:    "End to end processing time per trade event.",
			Buckets: prometheus.DefBuckets,
		}, []string{"action"}),
	}
}
