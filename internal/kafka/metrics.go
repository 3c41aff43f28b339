package kafka

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metrics tracks order event delivery to the broker.
type Metrics struct {
	publishLatency  metric.Float64Histogram
	eventsPublished metric.Int64Counter
}

func NewMetrics(meter metric.Meter) (*Metrics, error) {
	m := &Metrics{}

	var err error

	m.publishLatency, err = meter.Float64Histogram(
		"order_event_publish_seconds",
		metric.WithDescription("Time to hand an order event to the broker"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("create order_event_publish_seconds histogram: %w", err)
	}

	m.eventsPublished, err = meter.Int64Counter(
		"order_events_published_total",
		metric.WithDescription("Order lifecycle events by type and delivery outcome"),
	)
	if err != nil {
		return nil, fmt.Errorf("create order_events_published_total counter: %w", err)
	}

	return m, nil
}

// RecordPublish records one delivery attempt. A non-nil err marks it failed.
func (m *Metrics) RecordPublish(ctx context.Context, eventType string, durationSeconds float64, err error) {
	outcome := "delivered"
	if err != nil {
		outcome = "failed"
	}
	attrs := metric.WithAttributes(
		attribute.String("event_type", eventType),
		attribute.String("outcome", outcome),
	)
	m.publishLatency.Record(ctx, durationSeconds, attrs)
	m.eventsPublished.Add(ctx, 1, attrs)
}
