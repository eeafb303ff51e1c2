package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/simaogato/standing-orders/internal/domain"
)

const namespace = "standing_orders"

// Collector exposes run, transfer and notification counters
type Collector struct {
	runs          prometheus.Counter
	runDuration   prometheus.Histogram
	lastExecuted  prometheus.Gauge
	lastSkipped   prometheus.Gauge
	failures      *prometheus.CounterVec
	transfers     *prometheus.CounterVec
	notifications *prometheus.CounterVec
}

// NewCollector creates the collectors and registers them on reg
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		runs: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_total",
			Help:      "Number of completed scheduling runs.",
		}),
		runDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "run_duration_seconds",
			Help:      "Duration of scheduling runs.",
			Buckets:   prometheus.ExponentialBuckets(0.01, 4, 8),
		}),
		lastExecuted: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_run_executed",
			Help:      "Orders executed by the most recent run.",
		}),
		lastSkipped: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_run_skipped",
			Help:      "Candidates skipped by the most recent run.",
		}),
		failures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "run_failures_total",
			Help:      "Orders that failed during a run, by reason.",
		}, []string{"reason"}),
		transfers: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transfers_total",
			Help:      "Execution attempts, by outcome.",
		}, []string{"outcome"}),
		notifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notifications_total",
			Help:      "Notifications handed to the sink, by kind and whether they were new.",
		}, []string{"kind", "delivered"}),
	}

	reg.MustRegister(
		c.runs,
		c.runDuration,
		c.lastExecuted,
		c.lastSkipped,
		c.failures,
		c.transfers,
		c.notifications,
	)
	return c
}

// RunCompleted records the totals of one run
func (c *Collector) RunCompleted(executed, skipped int, failures map[string]int, duration time.Duration) {
	c.runs.Inc()
	c.runDuration.Observe(duration.Seconds())
	c.lastExecuted.Set(float64(executed))
	c.lastSkipped.Set(float64(skipped))
	for reason, n := range failures {
		c.failures.WithLabelValues(reason).Add(float64(n))
	}
}

// TransferOutcome counts one execution attempt
func (c *Collector) TransferOutcome(outcome string) {
	c.transfers.WithLabelValues(outcome).Inc()
}

// NotificationEmitted counts one notification
func (c *Collector) NotificationEmitted(kind domain.NotificationKind, delivered bool) {
	label := "false"
	if delivered {
		label = "true"
	}
	c.notifications.WithLabelValues(string(kind), label).Inc()
}
