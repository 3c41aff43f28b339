package domain_test

import (
	"errors"
	"testing"

	"github.com/dejobratic/lantern/internal/cart/domain"
)

func lantern(id string, price int64, qty int) domain.Line {
	return domain.Line{
		OfferingID:   id,
		OfferingName: "Guangming lantern " + id,
		VenueID:      "venue-1",
		VenueName:    "Longshan Temple",
		UnitPrice:    price,
		Quantity:     qty,
		BelieverName: "Chen Mei",
	}
}

func intPtr(v int) *int { return &v }
func strPtr(v string) *string { return &v }

func TestCartSubtotal(t *testing.T) {
	t.Run("sums unit price times quantity", func(t *testing.T) {
		cart := domain.New("buyer-1")
		mustAdd(t, cart, lantern("a", 1200, 1))
		mustAdd(t, cart, lantern("b", 600, 3))

		if got := cart.Subtotal(); got != 3000 {
			t.Errorf("expected subtotal 3000, got %d", got)
		}
	})

	t.Run("empty cart has zero subtotal", func(t *testing.T) {
		if got := domain.New("buyer-1").Subtotal(); got != 0 {
			t.Errorf("expected 0, got %d", got)
		}
	})

	t.Run("add then remove restores the prior subtotal", func(t *testing.T) {
		cart := domain.New("buyer-1")
		mustAdd(t, cart, lantern("a", 1200, 2))
		before := cart.Subtotal()

		mustAdd(t, cart, lantern("b", 777, 4))
		if err := cart.RemoveLine("b"); err != nil {
			t.Fatalf("RemoveLine() failed: %v", err)
		}

		if got := cart.Subtotal(); got != before {
			t.Errorf("expected subtotal %d after round trip, got %d", before, got)
		}
	})

	t.Run("reflects quantity updates immediately", func(t *testing.T) {
		cart := domain.New("buyer-1")
		mustAdd(t, cart, lantern("a", 500, 1))

		if err := cart.UpdateLine("a", domain.Patch{Quantity: intPtr(4)}); err != nil {
			t.Fatalf("UpdateLine() failed: %v", err)
		}

		if got := cart.Subtotal(); got != 2000 {
			t.Errorf("expected 2000, got %d", got)
		}
	})
}

func TestCartAddLine(t *testing.T) {
	t.Run("merges quantity for an offering already in the cart", func(t *testing.T) {
		cart := domain.New("buyer-1")
		mustAdd(t, cart, lantern("a", 1000, 1))
		mustAdd(t, cart, lantern("a", 1000, 2))

		if len(cart.Lines) != 1 {
			t.Fatalf("expected 1 line, got %d", len(cart.Lines))
		}
		if cart.Lines[0].Quantity != 3 {
			t.Errorf("expected quantity 3, got %d", cart.Lines[0].Quantity)
		}
	})

	t.Run("rejects invalid lines", func(t *testing.T) {
		tests := []struct {
			name    string
			line    domain.Line
			wantErr error
		}{
			{"missing offering", domain.Line{VenueID: "v", UnitPrice: 1, Quantity: 1}, domain.ErrInvalidLine},
			{"missing venue", domain.Line{OfferingID: "a", UnitPrice: 1, Quantity: 1}, domain.ErrInvalidLine},
			{"negative price", domain.Line{OfferingID: "a", VenueID: "v", UnitPrice: -1, Quantity: 1}, domain.ErrInvalidLine},
			{"zero quantity", domain.Line{OfferingID: "a", VenueID: "v", UnitPrice: 1, Quantity: 0}, domain.ErrInvalidQuantity},
		}

		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				cart := domain.New("buyer-1")
				err := cart.AddLine(tt.line)
				if !errors.Is(err, tt.wantErr) {
					t.Errorf("expected %v, got %v", tt.wantErr, err)
				}
				if !cart.IsEmpty() {
					t.Error("expected cart to stay empty")
				}
			})
		}
	})
}

func TestCartUpdateLine(t *testing.T) {
	t.Run("rejects quantity below one without touching the line", func(t *testing.T) {
		cart := domain.New("buyer-1")
		mustAdd(t, cart, lantern("a", 1000, 2))

		err := cart.UpdateLine("a", domain.Patch{Quantity: intPtr(0), BelieverName: strPtr("Lin Hui")})

		if !errors.Is(err, domain.ErrInvalidQuantity) {
			t.Fatalf("expected ErrInvalidQuantity, got %v", err)
		}
		if cart.Lines[0].Quantity != 2 {
			t.Errorf("expected quantity to stay 2, got %d", cart.Lines[0].Quantity)
		}
		if cart.Lines[0].BelieverName != "Chen Mei" {
			t.Errorf("expected believer name untouched, got %q", cart.Lines[0].BelieverName)
		}
	})

	t.Run("updates customization fields", func(t *testing.T) {
		cart := domain.New("buyer-1")
		mustAdd(t, cart, lantern("a", 1000, 1))

		err := cart.UpdateLine("a", domain.Patch{
			BelieverName: strPtr("  Lin Hui "),
			BirthDate:    strPtr("1988-02-14"),
			WishText:     strPtr("health for the family"),
		})
		if err != nil {
			t.Fatalf("UpdateLine() failed: %v", err)
		}

		line := cart.Lines[0]
		if line.BelieverName != "Lin Hui" {
			t.Errorf("expected trimmed believer name, got %q", line.BelieverName)
		}
		if line.BirthDate != "1988-02-14" || line.WishText != "health for the family" {
			t.Errorf("unexpected customization %+v", line)
		}
	})

	t.Run("returns not found for unknown offering", func(t *testing.T) {
		cart := domain.New("buyer-1")
		if err := cart.UpdateLine("missing", domain.Patch{}); !errors.Is(err, domain.ErrLineNotFound) {
			t.Errorf("expected ErrLineNotFound, got %v", err)
		}
		if err := cart.RemoveLine("missing"); !errors.Is(err, domain.ErrLineNotFound) {
			t.Errorf("expected ErrLineNotFound, got %v", err)
		}
	})
}

func TestCartCheckoutReadiness(t *testing.T) {
	cart := domain.New("buyer-1")
	mustAdd(t, cart, lantern("a", 1000, 1))
	unnamed := lantern("b", 800, 1)
	unnamed.BelieverName = "   "
	unnamed.VenueID = "venue-2"
	mustAdd(t, cart, unnamed)

	missing := cart.MissingBelieverNames()
	if len(missing) != 1 || missing[0] != "b" {
		t.Errorf("expected [b] missing believer names, got %v", missing)
	}

	venues := cart.VenueIDs()
	if len(venues) != 2 || venues[0] != "venue-1" || venues[1] != "venue-2" {
		t.Errorf("unexpected venues %v", venues)
	}

	cart.Clear()
	if !cart.IsEmpty() || cart.Subtotal() != 0 {
		t.Error("expected cleared cart to be empty")
	}
}

func TestCartContentHash(t *testing.T) {
	first := domain.New("buyer-1")
	mustAdd(t, first, lantern("a", 1000, 1))
	mustAdd(t, first, lantern("b", 500, 2))

	second := domain.New("buyer-1")
	mustAdd(t, second, lantern("b", 500, 2))
	mustAdd(t, second, lantern("a", 1000, 1))

	if first.ContentHash() != second.ContentHash() {
		t.Error("expected hash to ignore line order")
	}

	if err := second.UpdateLine("a", domain.Patch{WishText: strPtr("peace")}); err != nil {
		t.Fatalf("UpdateLine() failed: %v", err)
	}
	if first.ContentHash() == second.ContentHash() {
		t.Error("expected hash to change with customization")
	}
}

func mustAdd(t *testing.T, cart *domain.Cart, line domain.Line) {
	t.Helper()
	if err := cart.AddLine(line); err != nil {
		t.Fatalf("AddLine() failed: %v", err)
	}
}
