package commands_test

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"testing"

	"github.com/dejobratic/lantern/internal/orders/app/commands"
	"github.com/dejobratic/lantern/internal/orders/domain"
	"github.com/dejobratic/lantern/internal/orders/ports"
)

var (
	buyer    = domain.Actor{ID: "buyer-1", Role: domain.RoleBuyer}
	operator = domain.Actor{ID: "op-1", Role: domain.RoleOperator, VenueID: "venue-1"}
	admin    = domain.Actor{ID: "admin-1", Role: domain.RoleAdmin}
)

type transitionFixture struct {
	repo     *mockRepository
	events   *mockEventBus
	notifier *mockNotifier
	handler  *commands.TransitionOrderCommandHandler
}

func newTransitionFixture(t *testing.T, state domain.State) *transitionFixture {
	t.Helper()
	f := &transitionFixture{
		repo:     newMockRepository(),
		events:   &mockEventBus{},
		notifier: &mockNotifier{},
	}
	f.handler = commands.NewTransitionOrderCommandHandler(f.repo, f.events, f.notifier, discardLogger(),
		commands.FulfillmentOptions{DefaultDurationMonths: 6, CertificateBaseURL: "https://cdn.example.com/certs/"})

	order := pendingOrder("order-1")
	order.State = state
	if err := f.repo.Create(context.Background(), order); err != nil {
		t.Fatalf("failed to seed order: %v", err)
	}
	return f
}

func TestTransitionOrder(t *testing.T) {
	ctx := context.Background()

	t.Run("operator drives a paid order to completion", func(t *testing.T) {
		f := newTransitionFixture(t, domain.PendingPaid)

		order, err := f.handler.Handle(ctx, commands.TransitionOrderCommand{OrderID: "order-1", Action: commands.ActionConfirmReceipt, Actor: operator})
		if err != nil {
			t.Fatalf("confirm receipt failed: %v", err)
		}
		if order.State != domain.ProcessingPaid {
			t.Fatalf("expected processing/paid, got %s", order.State)
		}

		order, err = f.handler.Handle(ctx, commands.TransitionOrderCommand{OrderID: "order-1", Action: commands.ActionComplete, Actor: operator})
		if err != nil {
			t.Fatalf("complete failed: %v", err)
		}
		if order.State != domain.CompletedPaid {
			t.Fatalf("expected completed/paid, got %s", order.State)
		}

		items, err := f.repo.ListPurchasedItems(ctx, "buyer-1")
		if err != nil {
			t.Fatalf("ListPurchasedItems() failed: %v", err)
		}
		if len(items) != 2 {
			t.Fatalf("expected one item per line, got %d", len(items))
		}

		months := map[string]int{}
		for _, item := range items {
			if item.OrderID != "order-1" || item.BuyerID != "buyer-1" {
				t.Errorf("unexpected item ownership %+v", item)
			}
			if !strings.HasPrefix(item.CertificateURL, "https://cdn.example.com/certs/") {
				t.Errorf("unexpected certificate url %s", item.CertificateURL)
			}
			months[item.OfferingID] = int(item.ExpiryDate.Sub(item.StartDate).Hours() / 24 / 28)
		}
		if months["guangming"] < 12 || months["guangming"] > 13 {
			t.Errorf("expected roughly a year for guangming, got %d four-week periods", months["guangming"])
		}
		if months["taisui"] < 6 || months["taisui"] > 7 {
			t.Errorf("expected the default six months for taisui, got %d four-week periods", months["taisui"])
		}

		if f.notifier.calls != 1 || len(f.notifier.items) != 2 {
			t.Errorf("expected one completion notice with 2 items, got %d calls", f.notifier.calls)
		}

		want := []ports.EventType{ports.EventOrderProcessing, ports.EventOrderCompleted}
		got := f.events.types()
		if len(got) != len(want) || got[0] != want[0] || got[1] != want[1] {
			t.Errorf("expected events %v, got %v", want, got)
		}
	})

	t.Run("illegal transitions conflict", func(t *testing.T) {
		tests := []struct {
			name   string
			state  domain.State
			action commands.Action
		}{
			{"receipt before payment", domain.PendingUnpaid, commands.ActionConfirmReceipt},
			{"complete before receipt", domain.PendingPaid, commands.ActionComplete},
			{"cancel completed", domain.CompletedPaid, commands.ActionCancel},
			{"refund unpaid", domain.PendingUnpaid, commands.ActionRefund},
			{"refund processing", domain.ProcessingPaid, commands.ActionRefund},
			{"refund twice", domain.CompletedRefunded, commands.ActionRefund},
		}

		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				f := newTransitionFixture(t, tt.state)

				_, err := f.handler.Handle(ctx, commands.TransitionOrderCommand{OrderID: "order-1", Action: tt.action, Actor: admin})
				if !errors.Is(err, domain.ErrStateConflict) {
					t.Errorf("expected ErrStateConflict, got %v", err)
				}
				if len(f.events.types()) != 0 {
					t.Errorf("expected no events, got %v", f.events.types())
				}
			})
		}
	})

	t.Run("authorization", func(t *testing.T) {
		otherBuyer := domain.Actor{ID: "buyer-2", Role: domain.RoleBuyer}
		otherVenue := domain.Actor{ID: "op-2", Role: domain.RoleOperator, VenueID: "venue-2"}

		tests := []struct {
			name    string
			actor   domain.Actor
			action  commands.Action
			allowed bool
		}{
			{"buyer cancels own order", buyer, commands.ActionCancel, true},
			{"buyer cannot confirm receipt", buyer, commands.ActionConfirmReceipt, false},
			{"other buyer cannot cancel", otherBuyer, commands.ActionCancel, false},
			{"operator of another venue cannot confirm", otherVenue, commands.ActionConfirmReceipt, false},
			{"operator confirms receipt", operator, commands.ActionConfirmReceipt, true},
			{"admin cancels", admin, commands.ActionCancel, true},
		}

		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				f := newTransitionFixture(t, domain.PendingPaid)

				_, err := f.handler.Handle(ctx, commands.TransitionOrderCommand{OrderID: "order-1", Action: tt.action, Actor: tt.actor, Reason: "requested"})
				if tt.allowed && err != nil {
					t.Errorf("expected success, got %v", err)
				}
				if !tt.allowed && !errors.Is(err, domain.ErrForbidden) {
					t.Errorf("expected ErrForbidden, got %v", err)
				}
			})
		}
	})

	t.Run("paid cancellation can be refunded", func(t *testing.T) {
		f := newTransitionFixture(t, domain.ProcessingPaid)

		order, err := f.handler.Handle(ctx, commands.TransitionOrderCommand{OrderID: "order-1", Action: commands.ActionCancel, Actor: operator, Reason: " venue closed "})
		if err != nil {
			t.Fatalf("cancel failed: %v", err)
		}
		if order.State.Status() != domain.StatusCancelled || order.CancelReason != "venue closed" {
			t.Fatalf("unexpected cancelled order %s %q", order.State, order.CancelReason)
		}

		order, err = f.handler.Handle(ctx, commands.TransitionOrderCommand{OrderID: "order-1", Action: commands.ActionRefund, Actor: admin})
		if err != nil {
			t.Fatalf("refund failed: %v", err)
		}
		if order.State.PaymentStatus() != domain.PaymentRefunded {
			t.Errorf("expected refunded, got %s", order.State)
		}
	})

	t.Run("stale write conflicts", func(t *testing.T) {
		f := newTransitionFixture(t, domain.PendingPaid)
		f.repo.transitionFn = func(context.Context, domain.Order, int64, []domain.PurchasedItem) error {
			return domain.ErrStateConflict
		}

		_, err := f.handler.Handle(ctx, commands.TransitionOrderCommand{OrderID: "order-1", Action: commands.ActionConfirmReceipt, Actor: operator})
		if !errors.Is(err, domain.ErrStateConflict) {
			t.Errorf("expected ErrStateConflict, got %v", err)
		}
	})

	t.Run("notifier failure does not undo completion", func(t *testing.T) {
		f := newTransitionFixture(t, domain.ProcessingPaid)
		f.notifier.err = errors.New("mail relay down")

		order, err := f.handler.Handle(ctx, commands.TransitionOrderCommand{OrderID: "order-1", Action: commands.ActionComplete, Actor: admin})
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if order.State != domain.CompletedPaid {
			t.Errorf("expected completed/paid, got %s", order.State)
		}
	})

	t.Run("validates command", func(t *testing.T) {
		tests := []commands.TransitionOrderCommand{
			{OrderID: "", Action: commands.ActionComplete},
			{OrderID: "order-1", Action: "teleport"},
		}
		for i, cmd := range tests {
			t.Run(strconv.Itoa(i), func(t *testing.T) {
				if err := cmd.Validate(); err == nil {
					t.Error("expected validation error")
				}
			})
		}
		if err := (commands.TransitionOrderCommand{OrderID: "order-1", Action: "teleport"}).Validate(); !errors.Is(err, commands.ErrUnknownAction) {
			t.Errorf("expected ErrUnknownAction, got %v", err)
		}
	})
}
