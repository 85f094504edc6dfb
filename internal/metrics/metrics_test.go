package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	dto "github.com/prometheus/client_model/go"
)

func TestNewCheckoutMetrics(t *testing.T) {
	m := NewCheckoutMetricsWithRegisterer(prometheus.NewRegistry())

	if m.ordersPlaced == nil || m.ordersCancelled == nil || m.refundedMinor == nil {
		t.Fatal("order counters should not be nil")
	}
	if m.paymentResults == nil || m.stockConflicts == nil || m.lockConflicts == nil {
		t.Fatal("payment and conflict counters should not be nil")
	}
	if m.stepDuration == nil || m.stepFailures == nil || m.inFlight == nil {
		t.Fatal("step metrics should not be nil")
	}
}

func TestCheckoutMetrics_ReRegistrationReturnsExistingCollectors(t *testing.T) {
	reg := prometheus.NewRegistry()

	first := NewCheckoutMetricsWithRegisterer(reg)
	second := NewCheckoutMetricsWithRegisterer(reg)

	first.RecordOrderPlaced("cod")
	second.RecordOrderPlaced("cod")

	if got := testutil.ToFloat64(first.ordersPlaced.WithLabelValues("cod")); got != 2 {
		t.Fatalf("expected shared counter value 2, got %v", got)
	}
}

func TestRecordOrderCancelledAddsRefund(t *testing.T) {
	m := NewCheckoutMetricsWithRegisterer(prometheus.NewRegistry())

	m.RecordOrderCancelled(2500)
	m.RecordOrderCancelled(0)
	m.RecordRefund(500)
	m.RecordRefund(-1)

	if got := testutil.ToFloat64(m.ordersCancelled); got != 2 {
		t.Errorf("expected 2 cancellations, got %v", got)
	}
	if got := testutil.ToFloat64(m.refundedMinor); got != 3000 {
		t.Errorf("expected refunded 3000, got %v", got)
	}
}

func TestRecordPaymentResults(t *testing.T) {
	m := NewCheckoutMetricsWithRegisterer(prometheus.NewRegistry())

	m.RecordPaymentResult("verified")
	m.RecordPaymentResult("failed")
	m.RecordPaymentResult("failed")

	if got := testutil.ToFloat64(m.paymentResults.WithLabelValues("failed")); got != 2 {
		t.Errorf("expected 2 failed payments, got %v", got)
	}
	if got := testutil.ToFloat64(m.paymentResults.WithLabelValues("verified")); got != 1 {
		t.Errorf("expected 1 verified payment, got %v", got)
	}
}

func TestRecordStepDuration(t *testing.T) {
	m := NewCheckoutMetricsWithRegisterer(prometheus.NewRegistry())

	m.RecordStepDuration("place", 50*time.Millisecond)
	m.RecordStepDuration("place", 150*time.Millisecond)
	m.RecordStepDuration("cancel", 25*time.Millisecond)

	metric := &dto.Metric{}
	if err := m.stepDuration.WithLabelValues("place").(prometheus.Histogram).Write(metric); err != nil {
		t.Fatalf("failed to write place metric: %v", err)
	}
	if metric.Histogram.GetSampleCount() != 2 {
		t.Errorf("expected 2 samples for place, got %d", metric.Histogram.GetSampleCount())
	}
	sum := metric.Histogram.GetSampleSum()
	if sum < 0.19 || sum > 0.21 {
		t.Errorf("expected sum around 0.2, got %f", sum)
	}
}

func TestInFlightLifecycle(t *testing.T) {
	m := NewCheckoutMetricsWithRegisterer(prometheus.NewRegistry())

	m.InFlightStarted()
	m.InFlightStarted()
	m.InFlightFinished()

	if got := testutil.ToFloat64(m.inFlight); got != 1 {
		t.Errorf("expected 1 in flight, got %v", got)
	}
}

func TestConflictsAndEvents(t *testing.T) {
	m := NewCheckoutMetricsWithRegisterer(prometheus.NewRegistry())

	m.RecordStockConflict()
	m.RecordVersionConflict()
	m.RecordVersionConflict()
	m.RecordTimelineEvent()
	m.RecordOutboxEvent()
	m.RecordStepFailure("place", "validation")

	if got := testutil.ToFloat64(m.lockConflicts); got != 2 {
		t.Errorf("expected 2 version conflicts, got %v", got)
	}
	if got := testutil.ToFloat64(m.stockConflicts); got != 1 {
		t.Errorf("expected 1 stock conflict, got %v", got)
	}
	if got := testutil.ToFloat64(m.stepFailures.WithLabelValues("place", "validation")); got != 1 {
		t.Errorf("expected 1 step failure, got %v", got)
	}
}

func TestHTTPMetrics_Observe(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewHTTPMetricsWithRegisterer(reg)

	m.Started()
	m.Observe("POST", "/api/v1/orders", 201, 20*time.Millisecond)
	m.Started()
	m.Observe("GET", "", 404, time.Millisecond)

	if got := testutil.ToFloat64(m.requests.WithLabelValues("POST", "/api/v1/orders", "201")); got != 1 {
		t.Errorf("expected 1 request, got %v", got)
	}
	if got := testutil.ToFloat64(m.requests.WithLabelValues("GET", "unmatched", "404")); got != 1 {
		t.Errorf("expected unmatched route label, got %v", got)
	}
	if got := testutil.ToFloat64(m.inFlight); got != 0 {
		t.Errorf("expected no in-flight requests, got %v", got)
	}
}
