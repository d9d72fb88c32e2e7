package services

import (
	"github.com/prometheus/client_golang/prometheus"
)

// ScannerMetrics exposes scanner activity to Prometheus. A nil *ScannerMetrics is a no-op.
type ScannerMetrics struct {
	ticks            prometheus.Counter
	tickErrors       prometheus.Counter
	remindersSent    prometheus.Counter
	deliveryFailures prometheus.Counter
	alreadyMarked    prometheus.Counter
	missedTasks      prometheus.Gauge
	pendingTasks     prometheus.Gauge
	tickDuration     prometheus.Histogram
}

// NewScannerMetrics registers the scanner collectors on reg.
func NewScannerMetrics(reg prometheus.Registerer) *ScannerMetrics {
	m := &ScannerMetrics{
		ticks: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "taskbot",
			Subsystem: "scanner",
			Name:      "ticks_total",
			Help:      "Completed scanner ticks.",
		}),
		tickErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "taskbot",
			Subsystem: "scanner",
			Name:      "tick_errors_total",
			Help:      "Scanner ticks aborted by a storage failure.",
		}),
		remindersSent: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "taskbot",
			Subsystem: "scanner",
			Name:      "reminders_sent_total",
			Help:      "Reminders handed to the transport successfully.",
		}),
		deliveryFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "taskbot",
			Subsystem: "scanner",
			Name:      "delivery_failures_total",
			Help:      "Reminders whose delivery failed or timed out.",
		}),
		alreadyMarked: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "taskbot",
			Subsystem: "scanner",
			Name:      "already_marked_total",
			Help:      "Due tasks found already reminded or removed when marking.",
		}),
		missedTasks: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "taskbot",
			Subsystem: "scanner",
			Name:      "missed_tasks",
			Help:      "Pending tasks whose deadline passed without a reminder, as of the last tick.",
		}),
		pendingTasks: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "taskbot",
			Subsystem: "scanner",
			Name:      "pending_tasks",
			Help:      "Unreminded tasks seen by the last tick.",
		}),
		tickDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "taskbot",
			Subsystem: "scanner",
			Name:      "tick_duration_seconds",
			Help:      "Duration of scanner ticks.",
			Buckets:   prometheus.DefBuckets,
		}),
	}

	if reg != nil {
		reg.MustRegister(
			m.ticks,
			m.tickErrors,
			m.remindersSent,
			m.deliveryFailures,
			m.alreadyMarked,
			m.missedTasks,
			m.pendingTasks,
			m.tickDuration,
		)
	}
	return m
}

func (m *ScannerMetrics) observeTick(result TickResult) {
	if m == nil {
		return
	}
	m.ticks.Inc()
	m.pendingTasks.Set(float64(result.Pending))
	m.missedTasks.Set(float64(result.Missed))
	m.tickDuration.Observe(result.Duration.Seconds())
}

func (m *ScannerMetrics) observeTickError() {
	if m == nil {
		return
	}
	m.tickErrors.Inc()
}

func (m *ScannerMetrics) observeSent() {
	if m == nil {
		return
	}
	m.remindersSent.Inc()
}

func (m *ScannerMetrics) observeDeliveryFailure() {
	if m == nil {
		return
	}
	m.deliveryFailures.Inc()
}

func (m *ScannerMetrics) observeAlreadyMarked() {
	if m == nil {
		return
	}
	m.alreadyMarked.Inc()
}
