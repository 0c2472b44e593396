// Package metrics collects and exposes Prometheus metrics for the bot.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Collector gathers the bot's operational metrics. Services receive it
// through the narrow hook interfaces they define.
type Collector struct {
	consultations      prometheus.Counter
	consultLatency     prometheus.Histogram
	llmErrors          *prometheus.CounterVec
	decryptionFailures prometheus.Counter
	retentionDeleted   prometheus.Counter
}

// NewCollector creates the Collector and registers its metrics on reg.
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		consultations: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "counselbot_consultations_total",
			Help: "Completed consultation turns.",
		}),
		consultLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "counselbot_consultation_seconds",
			Help:    "End-to-end consultation turn latency in seconds.",
			Buckets: prometheus.DefBuckets,
		}),
		llmErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "counselbot_llm_errors_total",
			Help: "Model call failures by category.",
		}, []string{"category"}),
		decryptionFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "counselbot_decryption_failures_total",
			Help: "Stored messages that could not be decrypted.",
		}),
		retentionDeleted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "counselbot_retention_deleted_total",
			Help: "Records removed by retention cycles.",
		}),
	}

	reg.MustRegister(
		c.consultations,
		c.consultLatency,
		c.llmErrors,
		c.decryptionFailures,
		c.retentionDeleted,
	)
	return c
}

// ObserveConsultation records one completed consultation turn.
func (c *Collector) ObserveConsultation(d time.Duration) {
	c.consultations.Inc()
	c.consultLatency.Observe(d.Seconds())
}

// LLMErrorInc counts one model call failure in the given category.
func (c *Collector) LLMErrorInc(category string) {
	c.llmErrors.WithLabelValues(category).Inc()
}

// DecryptionFailureInc counts one unreadable stored message.
func (c *Collector) DecryptionFailureInc() {
	c.decryptionFailures.Inc()
}

// RetentionDeletedAdd counts records removed by one retention cycle.
func (c *Collector) RetentionDeletedAdd(n int64) {
	c.retentionDeleted.Add(float64(n))
}
