package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/nerrad567/automation-creator/internal/infrastructure/config"
)

// submissionBuckets cover an inline reply (sub-second) up to a slow model
// plus the full fetch budget.
var submissionBuckets = []float64{0.25, 0.5, 1, 2, 5, 10, 20, 30, 60, 120}

// Metrics holds the Prometheus collectors.
//
// Thread Safety: all methods are safe for concurrent use.
type Metrics struct {
	namespace string
	registry  *prometheus.Registry

	submissions        *prometheus.CounterVec
	submissionDuration *prometheus.HistogramVec
	fetchAttempts      prometheus.Histogram
	generations        *prometheus.CounterVec
	generationDuration *prometheus.HistogramVec
}

// New creates the collectors and registers them, together with the Go
// runtime and process collectors, on a private registry.
func New(cfg config.MetricsConfig) (*Metrics, error) {
	namespace := cfg.Namespace

	m := &Metrics{
		namespace: namespace,
		registry:  prometheus.NewRegistry(),

		submissions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "submissions_total",
				Help:      "Submissions resolved, by outcome",
			},
			[]string{"outcome", "corroborated"},
		),
		submissionDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "submission_duration_seconds",
				Help:      "Time from creation call to resolved outcome",
				Buckets:   submissionBuckets,
			},
			[]string{"outcome"},
		),
		fetchAttempts: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "submission_fetch_attempts",
				Help:      "Fetch calls made per submission",
				Buckets:   prometheus.LinearBuckets(0, 1, 6),
			},
		),
		generations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "generations_total",
				Help:      "Language model calls, by model and status",
			},
			[]string{"model", "status"},
		),
		generationDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "generation_duration_seconds",
				Help:      "Duration of language model calls",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"model"},
		),
	}

	toRegister := []prometheus.Collector{
		m.submissions,
		m.submissionDuration,
		m.fetchAttempts,
		m.generations,
		m.generationDuration,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	}
	for _, c := range toRegister {
		if err := m.registry.Register(c); err != nil {
			return nil, err
		}
	}

	return m, nil
}

// ObserveSubmission records one resolved submission.
func (m *Metrics) ObserveSubmission(outcome string, attempts int, corroborated bool, duration time.Duration) {
	m.submissions.WithLabelValues(outcome, boolLabel(corroborated)).Inc()
	m.submissionDuration.WithLabelValues(outcome).Observe(duration.Seconds())
	m.fetchAttempts.Observe(float64(attempts))
}

// WriteGeneration records one model call. The name matches the influxdb
// client so both satisfy the same recorder interface.
func (m *Metrics) WriteGeneration(model string, ok bool, duration time.Duration) {
	status := "ok"
	if !ok {
		status = "error"
	}
	m.generations.WithLabelValues(model, status).Inc()
	m.generationDuration.WithLabelValues(model).Observe(duration.Seconds())
}

// TrackSessions exposes the number of open sessions, read from count at
// scrape time.
func (m *Metrics) TrackSessions(count func() int) error {
	return m.registry.Register(prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Namespace: m.namespace,
			Name:      "sessions_open",
			Help:      "Panel sessions currently open",
		},
		func() float64 { return float64(count()) },
	))
}

// Handler returns the scrape endpoint for the private registry.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func boolLabel(b bool) string {
	if b {
		return "true"
	}
	return "false"
}
