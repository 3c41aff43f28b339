package metrics

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Outcome labels shared by the order metrics.
const (
	OutcomeSuccess   = "success"
	OutcomeRejected  = "rejected"
	OutcomeDuplicate = "duplicate"
	OutcomeReplayed  = "replayed"
	OutcomeError     = "error"
)

type Metrics struct {
	checkoutsTotal     metric.Int64Counter
	checkoutDuration   metric.Float64Histogram
	discountRejections metric.Int64Counter
	paymentCallbacks   metric.Int64Counter
	transitionsTotal   metric.Int64Counter
}

func NewMetrics(meter metric.Meter) (*Metrics, error) {
	m := &Metrics{}

	var err error

	m.checkoutsTotal, err = meter.Int64Counter(
		"checkouts_total",
		metric.WithDescription("Total number of checkout submissions by outcome"),
		metric.WithUnit("{checkout}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create checkouts_total counter: %w", err)
	}

	m.checkoutDuration, err = meter.Float64Histogram(
		"checkout_duration_seconds",
		metric.WithDescription("Duration of checkout submissions"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("create checkout_duration histogram: %w", err)
	}

	m.discountRejections, err = meter.Int64Counter(
		"discount_rejections_total",
		metric.WithDescription("Discount codes refused at checkout by reason"),
		metric.WithUnit("{code}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create discount_rejections_total counter: %w", err)
	}

	m.paymentCallbacks, err = meter.Int64Counter(
		"payment_callbacks_total",
		metric.WithDescription("Payment processor callbacks by payment status and outcome"),
		metric.WithUnit("{callback}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create payment_callbacks_total counter: %w", err)
	}

	m.transitionsTotal, err = meter.Int64Counter(
		"order_transitions_total",
		metric.WithDescription("Operator and buyer driven order transitions"),
		metric.WithUnit("{transition}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create order_transitions_total counter: %w", err)
	}

	return m, nil
}

func (m *Metrics) RecordCheckout(ctx context.Context, outcome string, durationSeconds float64) {
	m.checkoutsTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String("outcome", outcome),
	))
	m.checkoutDuration.Record(ctx, durationSeconds, metric.WithAttributes(
		attribute.String("outcome", outcome),
	))
}

func (m *Metrics) RecordDiscountRejected(ctx context.Context, reason string) {
	m.discountRejections.Add(ctx, 1, metric.WithAttributes(
		attribute.String("reason", reason),
	))
}

func (m *Metrics) RecordPaymentCallback(ctx context.Context, paymentStatus, outcome string) {
	m.paymentCallbacks.Add(ctx, 1, metric.WithAttributes(
		attribute.String("payment_status", paymentStatus),
		attribute.String("outcome", outcome),
	))
}

func (m *Metrics) RecordTransition(ctx context.Context, action, outcome string) {
	m.transitionsTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String("action", action),
		attribute.String("outcome", outcome),
	))
}
