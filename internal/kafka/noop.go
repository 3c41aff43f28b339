package kafka

import (
	"context"
	"log/slog"

	"github.com/dejobratic/lantern/internal/orders/ports"
)

// NoopEventBus logs events instead of sending them. Used when no brokers are configured.
type NoopEventBus struct {
	logger *slog.Logger
}

func NewNoopEventBus(logger *slog.Logger) *NoopEventBus {
	return &NoopEventBus{logger: logger}
}

func (n *NoopEventBus) Publish(ctx context.Context, event ports.OrderEvent) error {
	n.logger.DebugContext(ctx, "event::"+string(event.Type),
		"order_id", event.OrderID,
		"status", event.Status,
		"payment_status", event.PaymentStatus,
		"version", event.Version,
	)
	return nil
}
