package monitoring

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	RunsTotal     *prometheus.CounterVec
	ErrorsTotal   *prometheus.CounterVec
	ImagesTotal   *prometheus.CounterVec
	FetchDuration prometheus.Histogram
}

// NewMetrics registers the metrics on reg. A nil reg uses the default registerer.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)
	return &Metrics{
		RunsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "archiver_runs_total",
			Help: "The total number of archive runs",
		}, []string{"status"}), // 'completed', 'failed', 'skipped'
		ErrorsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "archiver_errors_total",
			Help: "The total number of errors encountered",
		}, []string{"type"}), // e.g., 'fetch_failed', 'image_failed'
		ImagesTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "archiver_images_total",
			Help: "The total number of images handled",
		}, []string{"result"}),
		FetchDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "archiver_fetch_duration_seconds",
			Help:    "Duration of article page fetches",
			Buckets: []float64{0.25, 0.5, 1, 2, 5, 10, 30, 60},
		}),
	}
}

func (m *Metrics) IncRuns(status string) {
	m.RunsTotal.WithLabelValues(status).Inc()
}

func (m *Metrics) IncErrors(errorType string) {
	m.ErrorsTotal.WithLabelValues(errorType).Inc()
}

func (m *Metrics) IncImages(result string) {
	m.ImagesTotal.WithLabelValues(result).Inc()
}

func (m *Metrics) ObserveFetch(d time.Duration) {
	m.FetchDuration.Observe(d.Seconds())
}
