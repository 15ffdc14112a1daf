package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

func TestRelayMetricsCountsOutcomes(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewRelayMetrics(reg)

	m.IncEvent("booking.confirmed", "published")
	m.IncEvent("booking.confirmed", "published")
	m.IncEvent("booking.confirmed", "retry")
	m.ObservePublish("bookings", 40*time.Millisecond)
	m.ObserveBatch(3)
	m.ObserveBatch(0)

	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}
	got, err := fetchCounterValue(mfs, "outbox_relay_events_total", map[string]string{"event_type": "booking.confirmed", "outcome": "published"})
	if err != nil {
		t.Fatalf("fetch published: %v", err)
	}
	if got != 2 {
		t.Fatalf("expected 2 published got %v", got)
	}
	sum, err := fetchHistogramSum(mfs, "outbox_relay_publish_seconds", "topic", "bookings")
	if err != nil {
		t.Fatalf("fetch publish latency: %v", err)
	}
	if sum < 0.039 || sum > 0.041 {
		t.Fatalf("unexpected latency sum %v", sum)
	}
	batches := findMetricFamily(mfs, "outbox_relay_batch_rows")
	if batches == nil || batches.GetMetric()[0].GetHistogram().GetSampleCount() != 1 {
		t.Fatalf("expected only the non-empty batch to be observed")
	}
}

func TestRelayMetricsNilSafe(t *testing.T) {
	var m *RelayMetrics
	m.IncEvent("x", "published")
	m.ObservePublish("t", time.Second)
	m.ObserveBatch(1)

	NewRelayMetrics(nil).IncEvent("x", "retry")
}
