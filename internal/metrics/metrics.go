package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics
type Metrics struct {
	CycleCount       prometheus.Counter
	EmailsChecked    prometheus.Counter
	EmailsForwarded  prometheus.Counter
	ForwardFailures  prometheus.Counter
	CommandsExecuted prometheus.Counter
	CycleDuration    prometheus.Histogram
	ActiveRules      prometheus.Gauge
	ShadowRules      prometheus.Gauge
}

// NewMetrics creates metrics registered with the default registry
func NewMetrics() *Metrics {
	return NewMetricsWith(prometheus.DefaultRegisterer)
}

// NewMetricsWith creates metrics registered with the given registerer
func NewMetricsWith(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		CycleCount: factory.NewCounter(prometheus.CounterOpts{
			Name: "receipt_sentinel_cycle_count",
			Help: "Total number of processing cycles started",
		}),
		EmailsChecked: factory.NewCounter(prometheus.CounterOpts{
			Name: "receipt_sentinel_emails_checked",
			Help: "Total number of emails fetched for classification",
		}),
		EmailsForwarded: factory.NewCounter(prometheus.CounterOpts{
			Name: "receipt_sentinel_emails_forwarded",
			Help: "Total number of receipts forwarded",
		}),
		ForwardFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "receipt_sentinel_forward_failures",
			Help: "Total number of failed forward attempts",
		}),
		CommandsExecuted: factory.NewCounter(prometheus.CounterOpts{
			Name: "receipt_sentinel_commands_executed",
			Help: "Total number of operator commands executed",
		}),
		CycleDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "receipt_sentinel_cycle_duration_seconds",
			Help:    "Time spent per processing cycle",
			Buckets: prometheus.DefBuckets,
		}),
		ActiveRules: factory.NewGauge(prometheus.GaugeOpts{
			Name: "receipt_sentinel_active_rules",
			Help: "Number of active manual rules",
		}),
		ShadowRules: factory.NewGauge(prometheus.GaugeOpts{
			Name: "receipt_sentinel_shadow_rules",
			Help: "Number of rules still in shadow mode",
		}),
	}
}
