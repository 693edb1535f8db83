package pipeline

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics counts batch progress. A nil *Metrics records nothing.
type Metrics struct {
	rows     *prometheus.CounterVec
	dropped  prometheus.Counter
	duration prometheus.Histogram
}

// NewMetrics registers the batch metrics on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		rows: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "phish",
			Name:      "batch_rows_written_total",
			Help:      "Feature rows written, by whether the page was fetched.",
		}, []string{"page"}),
		dropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "phish",
			Name:      "batch_duplicates_total",
			Help:      "Targets dropped as duplicates.",
		}),
		duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "phish",
			Name:      "feature_extraction_seconds",
			Help:      "Time to acquire evidence and compute one feature vector.",
			Buckets:   prometheus.ExponentialBuckets(0.05, 2, 10),
		}),
	}
	reg.MustRegister(m.rows, m.dropped, m.duration)
	return m
}

func (m *Metrics) written(fetched bool) {
	if m == nil {
		return
	}
	page := "fetched"
	if !fetched {
		page = "absent"
	}
	m.rows.WithLabelValues(page).Inc()
}

func (m *Metrics) duplicates(n int) {
	if m == nil {
		return
	}
	m.dropped.Add(float64(n))
}

func (m *Metrics) extracted(d time.Duration) {
	if m == nil {
		return
	}
	m.duration.Observe(d.Seconds())
}
