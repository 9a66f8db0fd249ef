package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus collectors for the transcoding pipeline.
type Metrics struct {
	JobsSubmitted  prometheus.Counter
	JobsCompleted  prometheus.Counter
	JobsFailed     prometheus.Counter
	JobsActive     prometheus.Gauge
	EncodeFailures *prometheus.CounterVec
	JobDuration    prometheus.Histogram
}

// NewMetrics creates and registers pipeline metrics on the given registerer.
// Pass prometheus.DefaultRegisterer for normal operation or a fresh registry
// in tests.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		JobsSubmitted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "hlsforge",
			Name:      "jobs_submitted_total",
			Help:      "Number of transcode jobs accepted into the queue.",
		}),
		JobsCompleted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "hlsforge",
			Name:      "jobs_completed_total",
			Help:      "Number of transcode jobs that reached terminal success.",
		}),
		JobsFailed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "hlsforge",
			Name:      "jobs_failed_total",
			Help:      "Number of transcode jobs that reached terminal failure.",
		}),
		JobsActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "hlsforge",
			Name:      "jobs_active",
			Help:      "Number of jobs currently being processed.",
		}),
		EncodeFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "hlsforge",
			Name:      "encode_task_failures_total",
			Help:      "Per-quality encode subprocess failures.",
		}, []string{"quality"}),
		JobDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "hlsforge",
			Name:      "job_duration_seconds",
			Help:      "Wall-clock duration of completed transcode jobs.",
			Buckets:   prometheus.ExponentialBuckets(10, 2, 10),
		}),
	}

	reg.MustRegister(
		m.JobsSubmitted,
		m.JobsCompleted,
		m.JobsFailed,
		m.JobsActive,
		m.EncodeFailures,
		m.JobDuration,
	)

	return m
}
