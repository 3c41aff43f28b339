package app_test

import (
	"context"
	"errors"
	"testing"

	"github.com/dejobratic/lantern/internal/cart/adapters/memory"
	"github.com/dejobratic/lantern/internal/cart/app"
	"github.com/dejobratic/lantern/internal/cart/domain"
)

type mockRepository struct {
	loadFn  func(ctx context.Context, ownerID string) (*domain.Cart, error)
	saveFn  func(ctx context.Context, cart *domain.Cart) error
	clearFn func(ctx context.Context, ownerID string) error
}

func (m *mockRepository) Load(ctx context.Context, ownerID string) (*domain.Cart, error) {
	if m.loadFn != nil {
		return m.loadFn(ctx, ownerID)
	}
	return domain.New(ownerID), nil
}

func (m *mockRepository) Save(ctx context.Context, cart *domain.Cart) error {
	if m.saveFn != nil {
		return m.saveFn(ctx, cart)
	}
	return nil
}

func (m *mockRepository) Clear(ctx context.Context, ownerID string) error {
	if m.clearFn != nil {
		return m.clearFn(ctx, ownerID)
	}
	return nil
}

func testLine(offeringID string, price int64) domain.Line {
	return domain.Line{
		OfferingID:   offeringID,
		OfferingName: "Peace lantern",
		VenueID:      "venue-1",
		VenueName:    "Longshan Temple",
		UnitPrice:    price,
		Quantity:     1,
		BelieverName: "Wang Fang",
	}
}

func TestServiceAddLine(t *testing.T) {
	t.Run("persists the new line", func(t *testing.T) {
		repo := memory.NewRepository()
		svc := app.NewService(repo)
		ctx := context.Background()

		cart, err := svc.AddLine(ctx, "buyer-1", testLine("a", 1200))
		if err != nil {
			t.Fatalf("AddLine() failed: %v", err)
		}
		if cart.UpdatedAt.IsZero() {
			t.Error("expected UpdatedAt to be set")
		}

		stored, err := svc.Get(ctx, "buyer-1")
		if err != nil {
			t.Fatalf("Get() failed: %v", err)
		}
		if stored.Subtotal() != 1200 {
			t.Errorf("expected stored subtotal 1200, got %d", stored.Subtotal())
		}
	})

	t.Run("does not save when the mutation fails", func(t *testing.T) {
		saved := false
		repo := &mockRepository{
			saveFn: func(ctx context.Context, cart *domain.Cart) error {
				saved = true
				return nil
			},
		}
		svc := app.NewService(repo)

		line := testLine("a", 1200)
		line.Quantity = 0
		_, err := svc.AddLine(context.Background(), "buyer-1", line)

		if !errors.Is(err, domain.ErrInvalidQuantity) {
			t.Errorf("expected ErrInvalidQuantity, got %v", err)
		}
		if saved {
			t.Error("expected Save not to be called")
		}
	})

	t.Run("propagates repository errors", func(t *testing.T) {
		repoErr := errors.New("redis unavailable")
		repo := &mockRepository{
			loadFn: func(ctx context.Context, ownerID string) (*domain.Cart, error) {
				return nil, repoErr
			},
		}
		svc := app.NewService(repo)

		if _, err := svc.AddLine(context.Background(), "buyer-1", testLine("a", 100)); !errors.Is(err, repoErr) {
			t.Errorf("expected repository error, got %v", err)
		}
	})

	t.Run("requires an owner", func(t *testing.T) {
		svc := app.NewService(memory.NewRepository())

		if _, err := svc.AddLine(context.Background(), " ", testLine("a", 100)); !errors.Is(err, app.ErrOwnerRequired) {
			t.Errorf("expected ErrOwnerRequired, got %v", err)
		}
	})
}

func TestServiceUpdateAndRemove(t *testing.T) {
	repo := memory.NewRepository()
	svc := app.NewService(repo)
	ctx := context.Background()

	if _, err := svc.AddLine(ctx, "buyer-1", testLine("a", 1000)); err != nil {
		t.Fatalf("AddLine() failed: %v", err)
	}
	if _, err := svc.AddLine(ctx, "buyer-1", testLine("b", 300)); err != nil {
		t.Fatalf("AddLine() failed: %v", err)
	}

	qty := 0
	if _, err := svc.UpdateLine(ctx, "buyer-1", "a", domain.Patch{Quantity: &qty}); !errors.Is(err, domain.ErrInvalidQuantity) {
		t.Fatalf("expected ErrInvalidQuantity, got %v", err)
	}

	qty = 2
	cart, err := svc.UpdateLine(ctx, "buyer-1", "a", domain.Patch{Quantity: &qty})
	if err != nil {
		t.Fatalf("UpdateLine() failed: %v", err)
	}
	if cart.Subtotal() != 2300 {
		t.Errorf("expected 2300, got %d", cart.Subtotal())
	}

	cart, err = svc.RemoveLine(ctx, "buyer-1", "b")
	if err != nil {
		t.Fatalf("RemoveLine() failed: %v", err)
	}
	if cart.Subtotal() != 2000 {
		t.Errorf("expected 2000, got %d", cart.Subtotal())
	}

	if err := svc.Clear(ctx, "buyer-1"); err != nil {
		t.Fatalf("Clear() failed: %v", err)
	}
	cart, err = svc.Get(ctx, "buyer-1")
	if err != nil {
		t.Fatalf("Get() failed: %v", err)
	}
	if !cart.IsEmpty() {
		t.Error("expected cart to be empty after Clear")
	}
}

func TestMemoryRepositoryIsolation(t *testing.T) {
	repo := memory.NewRepository()
	ctx := context.Background()

	cart := domain.New("buyer-1")
	if err := cart.AddLine(testLine("a", 500)); err != nil {
		t.Fatalf("AddLine() failed: %v", err)
	}
	if err := repo.Save(ctx, cart); err != nil {
		t.Fatalf("Save() failed: %v", err)
	}

	cart.Lines[0].Quantity = 99

	loaded, err := repo.Load(ctx, "buyer-1")
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}
	if loaded.Lines[0].Quantity != 1 {
		t.Errorf("expected stored copy to be unaffected, got quantity %d", loaded.Lines[0].Quantity)
	}
}
