package commands

import (
	"context"
	"log/slog"

	"github.com/dejobratic/lantern/internal/orders/domain"
	"github.com/dejobratic/lantern/internal/orders/ports"
)

// publish emits a lifecycle event after the state change is committed. Delivery
// failures are logged and never undo the change.
func publish(ctx context.Context, bus ports.EventBus, logger *slog.Logger, order domain.Order, eventType ports.EventType) {
	event := ports.OrderEvent{
		Type:          eventType,
		OrderID:       order.ID,
		BuyerID:       order.BuyerID,
		VenueID:       order.VenueID,
		Status:        string(order.State.Status()),
		PaymentStatus: string(order.State.PaymentStatus()),
		TotalAmount:   order.TotalAmount,
		Version:       order.Version,
		OccurredAt:    order.UpdatedAt,
	}

	if err := bus.Publish(ctx, event); err != nil {
		logger.WarnContext(ctx, "failed to publish order event",
			"event_type", eventType,
			"order_id", order.ID,
			"error", err,
		)
	}
}
