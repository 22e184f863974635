package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestCheckoutMetrics_Counters(t *testing.T) {
	registry := prometheus.NewRegistry()
	m := newCheckoutMetricsWithRegisterer(registry)

	m.RecordCheckoutStarted()
	m.RecordCheckoutStarted()
	m.RecordCheckoutCompleted()
	m.RecordCheckoutFailed()
	m.RecordCompensatedLines(3)
	m.RecordWebhookEvent("processed")
	m.RecordWebhookEvent("processed")
	m.RecordWebhookEvent("rejected")
	m.RecordWebhookDuplicate()
	m.RecordCompensationEnqueued()

	checks := []struct {
		name string
		got  float64
		want float64
	}{
		{"started", testutil.ToFloat64(m.checkoutStarted), 2},
		{"completed", testutil.ToFloat64(m.checkoutCompleted), 1},
		{"failed", testutil.ToFloat64(m.checkoutFailed), 1},
		{"compensated lines", testutil.ToFloat64(m.checkoutCompensated), 3},
		{"webhook processed", testutil.ToFloat64(m.webhookEvents.WithLabelValues("processed")), 2},
		{"webhook rejected", testutil.ToFloat64(m.webhookEvents.WithLabelValues("rejected")), 1},
		{"webhook duplicates", testutil.ToFloat64(m.webhookDuplicates), 1},
		{"compensations enqueued", testutil.ToFloat64(m.compensationsEnqueued), 1},
	}
	for _, check := range checks {
		if check.got != check.want {
			t.Errorf("%s: got %v, want %v", check.name, check.got, check.want)
		}
	}
}

func TestCheckoutMetrics_Histograms(t *testing.T) {
	registry := prometheus.NewRegistry()
	m := newCheckoutMetricsWithRegisterer(registry)

	m.RecordCheckoutDuration(120 * time.Millisecond)
	m.RecordStepDuration("reserve", 5*time.Millisecond)
	m.RecordStepDuration("reserve", 7*time.Millisecond)

	if got := testutil.CollectAndCount(m.checkoutDuration); got != 1 {
		t.Errorf("expected 1 duration metric, got %d", got)
	}
	if got := testutil.CollectAndCount(m.stepDuration); got != 1 {
		t.Errorf("expected 1 step series, got %d", got)
	}
}

// Повторное создание метрик на одном registerer должно переиспользовать
// зарегистрированные коллекторы, а не падать.
func TestCheckoutMetrics_ReuseOnSameRegisterer(t *testing.T) {
	registry := prometheus.NewRegistry()

	first := newCheckoutMetricsWithRegisterer(registry)
	second := newCheckoutMetricsWithRegisterer(registry)

	first.RecordCheckoutStarted()
	second.RecordCheckoutStarted()

	if got := testutil.ToFloat64(first.checkoutStarted); got != 2 {
		t.Errorf("expected shared counter value 2, got %v", got)
	}
}
