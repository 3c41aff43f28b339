package metrics

import (
	"context"
	"testing"

	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func newTestMetrics(t *testing.T) (*Metrics, *sdkmetric.ManualReader) {
	t.Helper()
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))

	metrics, err := NewMetrics(mp.Meter("test"))
	if err != nil {
		t.Fatalf("NewMetrics() failed: %v", err)
	}
	return metrics, reader
}

func collect(t *testing.T, reader *sdkmetric.ManualReader) map[string]metricdata.Metrics {
	t.Helper()
	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("Failed to collect metrics: %v", err)
	}

	byName := make(map[string]metricdata.Metrics)
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			byName[m.Name] = m
		}
	}
	return byName
}

func TestInitializeMetrics(t *testing.T) {
	t.Run("initializes all metric instruments successfully", func(t *testing.T) {
		metrics, _ := newTestMetrics(t)

		if metrics.checkoutsTotal == nil {
			t.Error("checkoutsTotal is nil")
		}
		if metrics.checkoutDuration == nil {
			t.Error("checkoutDuration is nil")
		}
		if metrics.discountRejections == nil {
			t.Error("discountRejections is nil")
		}
		if metrics.paymentCallbacks == nil {
			t.Error("paymentCallbacks is nil")
		}
		if metrics.transitionsTotal == nil {
			t.Error("transitionsTotal is nil")
		}
	})
}

func TestRecordCheckout(t *testing.T) {
	t.Run("records count and duration per outcome", func(t *testing.T) {
		metrics, reader := newTestMetrics(t)
		ctx := context.Background()

		metrics.RecordCheckout(ctx, OutcomeSuccess, 0.2)
		metrics.RecordCheckout(ctx, OutcomeRejected, 0.01)
		metrics.RecordCheckout(ctx, OutcomeSuccess, 0.3)

		byName := collect(t, reader)

		sum, ok := byName["checkouts_total"].Data.(metricdata.Sum[int64])
		if !ok {
			t.Fatal("Expected Sum[int64] data type for checkouts_total")
		}
		if len(sum.DataPoints) != 2 {
			t.Errorf("Expected 2 data points, got %d", len(sum.DataPoints))
		}

		histogram, ok := byName["checkout_duration_seconds"].Data.(metricdata.Histogram[float64])
		if !ok {
			t.Fatal("Expected Histogram[float64] data type for checkout_duration_seconds")
		}
		var total uint64
		for _, dp := range histogram.DataPoints {
			total += dp.Count
		}
		if total != 3 {
			t.Errorf("Expected 3 observations, got %d", total)
		}
	})
}

func TestRecordCounters(t *testing.T) {
	t.Run("records callbacks, transitions and discount rejections", func(t *testing.T) {
		metrics, reader := newTestMetrics(t)
		ctx := context.Background()

		metrics.RecordPaymentCallback(ctx, "paid", OutcomeSuccess)
		metrics.RecordPaymentCallback(ctx, "paid", OutcomeDuplicate)
		metrics.RecordTransition(ctx, "complete", OutcomeSuccess)
		metrics.RecordDiscountRejected(ctx, "expired")

		byName := collect(t, reader)

		expected := map[string]int{
			"payment_callbacks_total":   2,
			"order_transitions_total":   1,
			"discount_rejections_total": 1,
		}
		for name, points := range expected {
			sum, ok := byName[name].Data.(metricdata.Sum[int64])
			if !ok {
				t.Fatalf("Expected Sum[int64] data type for %s", name)
			}
			if len(sum.DataPoints) != points {
				t.Errorf("%s: expected %d data points, got %d", name, points, len(sum.DataPoints))
			}
		}
	})
}
