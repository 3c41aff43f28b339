package ports

import (
	"context"

	discountapp "github.com/dejobratic/lantern/internal/discount/app"
	"github.com/dejobratic/lantern/internal/orders/domain"
	"github.com/dejobratic/lantern/internal/payment"
)

// Discounts evaluates codes at checkout and redeems them once payment is confirmed.
type Discounts interface {
	Evaluate(ctx context.Context, code, buyerID string, subtotal int64) (discountapp.Evaluation, error)
	Redeem(ctx context.Context, code, buyerID, orderID string) error
}

// PaymentGateway hides the processor's hand-off and callback signing scheme.
type PaymentGateway interface {
	CreateHandoff(ctx context.Context, req payment.HandoffRequest) (payment.Handoff, error)
	VerifyCallback(fields map[string]string) (payment.Confirmation, error)
}

// CartClearer empties a buyer's cart.
type CartClearer interface {
	Clear(ctx context.Context, ownerID string) error
}

// Notifier hands completion notices to the external notification service.
type Notifier interface {
	OrderCompleted(ctx context.Context, order domain.Order, items []domain.PurchasedItem) error
}
