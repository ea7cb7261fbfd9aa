package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	usecasecontract "github.com/mikiasgoitom/articulate-engage/internal/usecase/contract"
)

// EngagementMetrics records coordinator and cache activity on a Prometheus registry.
type EngagementMetrics struct {
	actions      *prometheus.CounterVec
	transport    *prometheus.HistogramVec
	corrections  *prometheus.CounterVec
	propagations prometheus.Counter
}

// New registers the engagement collectors on reg. Pass prometheus.DefaultRegisterer to expose them on /metrics.
func New(reg prometheus.Registerer) *EngagementMetrics {
	factory := promauto.With(reg)
	return &EngagementMetrics{
		actions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "engagement_actions_total",
				Help: "Engagement actions by final outcome.",
			},
			[]string{"action", "outcome"},
		),
		transport: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "engagement_transport_seconds",
				Help:    "Latency of engagement service calls.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"action"},
		),
		corrections: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "engagement_revalidation_corrections_total",
				Help: "Re-validations that changed the cached state.",
			},
			[]string{"action"},
		),
		propagations: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "engagement_cache_propagations_total",
				Help: "List page slots rewritten by subject writes.",
			},
		),
	}
}

func (m *EngagementMetrics) ObserveAction(action, outcome string) {
	m.actions.WithLabelValues(action, outcome).Inc()
}

func (m *EngagementMetrics) ObserveTransport(action string, d time.Duration) {
	m.transport.WithLabelValues(action).Observe(d.Seconds())
}

func (m *EngagementMetrics) ObserveRevalidationCorrection(action string) {
	m.corrections.WithLabelValues(action).Inc()
}

// ObservePropagation matches the cache store's propagation observer signature.
func (m *EngagementMetrics) ObservePropagation(pages int) {
	m.propagations.Add(float64(pages))
}

var _ usecasecontract.IEngagementMetrics = (*EngagementMetrics)(nil)
