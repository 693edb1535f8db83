package evidence

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Evidence sources, used as metric and log labels.
const (
	SourceURL      = "url"
	SourceFetch    = "fetch"
	SourceRegistry = "registry"
	SourceSearch   = "search"
)

// Metrics counts acquisition outcomes per source. A nil *Metrics is valid
// and records nothing.
type Metrics struct {
	acquisitions *prometheus.CounterVec
	duration     prometheus.Histogram
}

// NewMetrics registers the acquisition collectors on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		acquisitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "phish",
			Name:      "evidence_acquisitions_total",
			Help:      "Evidence acquisition attempts by source and outcome.",
		}, []string{"source", "outcome"}),
		duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "phish",
			Name:      "evidence_acquire_seconds",
			Help:      "Wall time to acquire the evidence bundle for one URL.",
			Buckets:   prometheus.ExponentialBuckets(0.05, 2, 10),
		}),
	}
	reg.MustRegister(m.acquisitions, m.duration)
	return m
}

func (m *Metrics) observe(source string, err error) {
	if m == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "failed"
	}
	m.acquisitions.WithLabelValues(source, outcome).Inc()
}

func (m *Metrics) skipped(source string) {
	if m == nil {
		return
	}
	m.acquisitions.WithLabelValues(source, "skipped").Inc()
}

func (m *Metrics) since(start time.Time) {
	if m == nil {
		return
	}
	m.duration.Observe(time.Since(start).Seconds())
}
