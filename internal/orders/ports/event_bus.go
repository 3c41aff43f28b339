package ports

import (
	"context"
	"time"
)

type EventType string

const (
	EventOrderCreated       EventType = "order.created"
	EventOrderPaid          EventType = "order.paid"
	EventOrderPaymentFailed EventType = "order.payment_failed"
	EventOrderProcessing    EventType = "order.processing"
	EventOrderCompleted     EventType = "order.completed"
	EventOrderCancelled     EventType = "order.cancelled"
	EventOrderRefunded      EventType = "order.refunded"
)

// OrderEvent is the payload published for every lifecycle change.
type OrderEvent struct {
	Type          EventType `json:"type"`
	OrderID       string    `json:"order_id"`
	BuyerID       string    `json:"buyer_id"`
	VenueID       string    `json:"venue_id"`
	Status        string    `json:"status"`
	PaymentStatus string    `json:"payment_status"`
	TotalAmount   int64     `json:"total_amount"`
	Version       int64     `json:"version"`
	OccurredAt    time.Time `json:"occurred_at"`
}

// EventBus defines the contract for publishing order lifecycle events.
type EventBus interface {
	Publish(ctx context.Context, event OrderEvent) error
}
