package orchestrator

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics exposes Prometheus collectors that report orchestrator activity.
type Metrics struct {
	actions         *prometheus.CounterVec
	installs        *prometheus.CounterVec
	duplicates      prometheus.Counter
	inFlight        prometheus.Gauge
	installDuration prometheus.Histogram
}

var (
	defaultMetricsOnce sync.Once
	sharedMetrics      *Metrics
)

// defaultMetrics returns the package-level instance registered with the
// global registry. Collectors are created once so building several
// orchestrators does not panic on duplicate registration.
func defaultMetrics() *Metrics {
	defaultMetricsOnce.Do(func() {
		sharedMetrics = MustNewMetrics(prometheus.DefaultRegisterer)
	})
	return sharedMetrics
}

// MustNewMetrics constructs Metrics registered on reg. It panics when
// registration fails, mirroring promauto.
func MustNewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	m := &Metrics{
		actions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "acquire",
				Subsystem: "orchestrator",
				Name:      "outcome_actions_total",
				Help:      "Download outcomes handled, by action taken.",
			},
			[]string{"action"},
		),
		installs: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "acquire",
				Subsystem: "orchestrator",
				Name:      "installs_total",
				Help:      "Install tasks chained after a download, by result.",
			},
			[]string{"result"},
		),
		duplicates: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: "acquire",
				Subsystem: "orchestrator",
				Name:      "duplicate_outcomes_total",
				Help:      "Outcomes dropped because their request was already handled.",
			},
		),
		inFlight: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: "acquire",
				Subsystem: "orchestrator",
				Name:      "outcomes_in_flight",
				Help:      "Outcomes currently being handled.",
			},
		),
		installDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: "acquire",
				Subsystem: "orchestrator",
				Name:      "install_duration_seconds",
				Help:      "Time spent waiting on chained install tasks.",
				Buckets:   prometheus.ExponentialBuckets(0.1, 2, 12),
			},
		),
	}
	reg.MustRegister(m.actions, m.installs, m.duplicates, m.inFlight, m.installDuration)
	return m
}
