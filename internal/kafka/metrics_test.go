package kafka

import (
	"context"
	"errors"
	"testing"

	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func TestRecordPublish(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))

	metrics, err := NewMetrics(mp.Meter("test"))
	if err != nil {
		t.Fatalf("NewMetrics() failed: %v", err)
	}

	ctx := context.Background()
	metrics.RecordPublish(ctx, "order.created", 0.02, nil)
	metrics.RecordPublish(ctx, "order.created", 0.03, nil)
	metrics.RecordPublish(ctx, "order.paid", 0.5, errors.New("broker unavailable"))

	var rm metricdata.ResourceMetrics
	if err := reader.Collect(ctx, &rm); err != nil {
		t.Fatalf("failed to collect metrics: %v", err)
	}

	counts := map[string]int64{}
	var histogramPoints int
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			switch m.Name {
			case "order_events_published_total":
				sum, ok := m.Data.(metricdata.Sum[int64])
				if !ok {
					t.Fatalf("expected Sum[int64], got %T", m.Data)
				}
				for _, dp := range sum.DataPoints {
					eventType, _ := dp.Attributes.Value("event_type")
					outcome, _ := dp.Attributes.Value("outcome")
					counts[eventType.AsString()+"/"+outcome.AsString()] = dp.Value
				}
			case "order_event_publish_seconds":
				histogram, ok := m.Data.(metricdata.Histogram[float64])
				if !ok {
					t.Fatalf("expected Histogram[float64], got %T", m.Data)
				}
				histogramPoints = len(histogram.DataPoints)
			}
		}
	}

	if counts["order.created/delivered"] != 2 {
		t.Errorf("expected 2 delivered order.created events, got %d", counts["order.created/delivered"])
	}
	if counts["order.paid/failed"] != 1 {
		t.Errorf("expected 1 failed order.paid event, got %d", counts["order.paid/failed"])
	}
	if histogramPoints != 2 {
		t.Errorf("expected 2 latency series, got %d", histogramPoints)
	}
}
