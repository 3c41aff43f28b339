package adapters

import (
	"context"
	"time"

	"github.com/dejobratic/lantern/internal/kafka"
	"github.com/dejobratic/lantern/internal/orders/ports"
	"github.com/dejobratic/lantern/internal/telemetry"
	"go.opentelemetry.io/otel/attribute"
)

// ObservableEventBus wraps each publish in a producer span so the trace context
// injected into message headers points at it.
type ObservableEventBus struct {
	bus     ports.EventBus
	metrics *kafka.Metrics
}

func NewObservableEventBus(bus ports.EventBus, metrics *kafka.Metrics) *ObservableEventBus {
	return &ObservableEventBus{bus: bus, metrics: metrics}
}

func (e *ObservableEventBus) Publish(ctx context.Context, event ports.OrderEvent) (err error) {
	ctx, span := telemetry.StartProducerSpan(ctx, string(event.Type),
		attribute.String("order.id", event.OrderID),
		attribute.String("order.state", event.Status+"/"+event.PaymentStatus),
		attribute.Int64("order.version", event.Version),
	)
	defer func() { telemetry.EndSpan(span, err) }()

	start := time.Now()
	err = e.bus.Publish(ctx, event)
	e.metrics.RecordPublish(ctx, string(event.Type), time.Since(start).Seconds(), err)

	return err
}
