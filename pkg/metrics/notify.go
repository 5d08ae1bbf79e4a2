package metrics

import "github.com/prometheus/client_golang/prometheus"

// NotifyMetrics tracks the notification queue and delivery outcomes.
type NotifyMetrics struct {
	queueDepth prometheus.Gauge
	delivered  *prometheus.CounterVec
	retries    prometheus.Counter
	dropped    prometheus.Counter
}

// NewNotifyMetrics registers notification metrics on the provided registerer.
func NewNotifyMetrics(reg prometheus.Registerer) *NotifyMetrics {
	if reg == nil {
		return &NotifyMetrics{}
	}
	queueDepth := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "notify_queue_depth",
		Help: "Notifications waiting in the delivery queue.",
	})
	delivered := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "notify_deliveries_total",
		Help: "Notification delivery attempts by final outcome.",
	}, []string{"outcome"})
	retries := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "notify_retries_total",
		Help: "Notification delivery retries.",
	})
	dropped := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "notify_dropped_total",
		Help: "Notifications dropped because the queue was full.",
	})
	reg.MustRegister(queueDepth, delivered, retries, dropped)
	return &NotifyMetrics{
		queueDepth: queueDepth,
		delivered:  delivered,
		retries:    retries,
		dropped:    dropped,
	}
}

// SetQueueDepth records the current queue length.
func (n *NotifyMetrics) SetQueueDepth(depth int) {
	if n == nil || n.queueDepth == nil {
		return
	}
	n.queueDepth.Set(float64(depth))
}

// IncDelivered counts a finished delivery with its outcome, "sent" or "failed".
func (n *NotifyMetrics) IncDelivered(outcome string) {
	if n == nil || n.delivered == nil {
		return
	}
	n.delivered.WithLabelValues(normalizeLabel(outcome)).Inc()
}

// IncRetry counts one scheduled retry.
func (n *NotifyMetrics) IncRetry() {
	if n == nil || n.retries == nil {
		return
	}
	n.retries.Inc()
}

// IncDropped counts a notification rejected by a full queue.
func (n *NotifyMetrics) IncDropped() {
	if n == nil || n.dropped == nil {
		return
	}
	n.dropped.Inc()
}
