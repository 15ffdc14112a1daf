package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// RelayMetrics tracks what the outbox publisher did with each row it claimed.
// A nil receiver or one built without a registerer is a no-op.
type RelayMetrics struct {
	events  *prometheus.CounterVec
	publish *prometheus.HistogramVec
	batches prometheus.Histogram
}

func NewRelayMetrics(reg prometheus.Registerer) *RelayMetrics {
	if reg == nil {
		return &RelayMetrics{}
	}
	events := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "outbox_relay_events_total",
		Help: "Outbox rows handled by the publisher, by event type and outcome.",
	}, []string{"event_type", "outcome"})
	publish := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "outbox_relay_publish_seconds",
		Help:    "Time from publish call to broker acknowledgement.",
		Buckets: prometheus.ExponentialBuckets(0.005, 2, 12),
	}, []string{"topic"})
	batches := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "outbox_relay_batch_rows",
		Help:    "Rows claimed per non-empty batch.",
		Buckets: []float64{1, 5, 10, 25, 50, 100, 250},
	})
	reg.MustRegister(events, publish, batches)
	return &RelayMetrics{events: events, publish: publish, batches: batches}
}

func (m *RelayMetrics) IncEvent(eventType, outcome string) {
	if m == nil || m.events == nil {
		return
	}
	m.events.WithLabelValues(eventType, outcome).Inc()
}

func (m *RelayMetrics) ObservePublish(topic string, d time.Duration) {
	if m == nil || m.publish == nil {
		return
	}
	m.publish.WithLabelValues(topic).Observe(d.Seconds())
}

func (m *RelayMetrics) ObserveBatch(rows int) {
	if m == nil || m.batches == nil || rows <= 0 {
		return
	}
	m.batches.Observe(float64(rows))
}
