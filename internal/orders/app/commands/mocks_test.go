package commands_test

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"

	cartdomain "github.com/dejobratic/lantern/internal/cart/domain"
	discountapp "github.com/dejobratic/lantern/internal/discount/app"
	"github.com/dejobratic/lantern/internal/orders/adapters/memory"
	"github.com/dejobratic/lantern/internal/orders/domain"
	"github.com/dejobratic/lantern/internal/orders/ports"
	"github.com/dejobratic/lantern/internal/payment"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// mockRepository delegates to the memory repository unless a fn field overrides a call.
type mockRepository struct {
	*memory.Repository
	createFn     func(ctx context.Context, order domain.Order) error
	transitionFn func(ctx context.Context, order domain.Order, expectedVersion int64, items []domain.PurchasedItem) error
}

func newMockRepository() *mockRepository {
	return &mockRepository{Repository: memory.NewRepository()}
}

func (m *mockRepository) Create(ctx context.Context, order domain.Order) error {
	if m.createFn != nil {
		return m.createFn(ctx, order)
	}
	return m.Repository.Create(ctx, order)
}

func (m *mockRepository) Transition(ctx context.Context, order domain.Order, expectedVersion int64, items []domain.PurchasedItem) error {
	if m.transitionFn != nil {
		return m.transitionFn(ctx, order, expectedVersion, items)
	}
	return m.Repository.Transition(ctx, order, expectedVersion, items)
}

type mockDiscounts struct {
	evaluateFn func(ctx context.Context, code, buyerID string, subtotal int64) (discountapp.Evaluation, error)
	redeemFn   func(ctx context.Context, code, buyerID, orderID string) error
}

func (m *mockDiscounts) Evaluate(ctx context.Context, code, buyerID string, subtotal int64) (discountapp.Evaluation, error) {
	if m.evaluateFn != nil {
		return m.evaluateFn(ctx, code, buyerID, subtotal)
	}
	return discountapp.Evaluation{}, nil
}

func (m *mockDiscounts) Redeem(ctx context.Context, code, buyerID, orderID string) error {
	if m.redeemFn != nil {
		return m.redeemFn(ctx, code, buyerID, orderID)
	}
	return nil
}

type mockGateway struct {
	createHandoffFn func(ctx context.Context, req payment.HandoffRequest) (payment.Handoff, error)
}

func (m *mockGateway) CreateHandoff(ctx context.Context, req payment.HandoffRequest) (payment.Handoff, error) {
	if m.createHandoffFn != nil {
		return m.createHandoffFn(ctx, req)
	}
	return payment.Handoff{
		RedirectURL: "https://payment.example.com/checkout",
		Fields:      map[string]string{"MerchantTradeNo": req.OrderID},
	}, nil
}

func (m *mockGateway) VerifyCallback(map[string]string) (payment.Confirmation, error) {
	return payment.Confirmation{}, nil
}

type mockEventBus struct {
	mu     sync.Mutex
	events []ports.OrderEvent
	err    error
}

func (m *mockEventBus) Publish(_ context.Context, event ports.OrderEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, event)
	return m.err
}

func (m *mockEventBus) types() []ports.EventType {
	m.mu.Lock()
	defer m.mu.Unlock()
	types := make([]ports.EventType, 0, len(m.events))
	for _, e := range m.events {
		types = append(types, e.Type)
	}
	return types
}

type mockCarts struct {
	cleared []string
	err     error
}

func (m *mockCarts) Clear(_ context.Context, ownerID string) error {
	m.cleared = append(m.cleared, ownerID)
	return m.err
}

type mockNotifier struct {
	calls int
	items []domain.PurchasedItem
	err   error
}

func (m *mockNotifier) OrderCompleted(_ context.Context, _ domain.Order, items []domain.PurchasedItem) error {
	m.calls++
	m.items = items
	return m.err
}

func lanternCart(t *testing.T, ownerID string, lines ...cartdomain.Line) *cartdomain.Cart {
	t.Helper()
	cart := cartdomain.New(ownerID)
	for _, line := range lines {
		if err := cart.AddLine(line); err != nil {
			t.Fatalf("failed to add line %s: %v", line.OfferingID, err)
		}
	}
	return cart
}

func guangming(believer string) cartdomain.Line {
	return cartdomain.Line{
		OfferingID:     "guangming",
		OfferingName:   "Guangming lantern",
		VenueID:        "venue-1",
		VenueName:      "Longshan Temple",
		UnitPrice:      1200,
		Quantity:       1,
		DurationMonths: 12,
		BelieverName:   believer,
	}
}

func validBuyer() domain.Buyer {
	return domain.Buyer{Name: "Chen Mei", Email: "mei@example.com", Phone: "0912345678"}
}
