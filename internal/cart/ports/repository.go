package ports

import (
	"context"

	"github.com/dejobratic/lantern/internal/cart/domain"
)

// CartRepository persists the shopper's cart between requests. Load returns an empty
// cart when the owner has none.
type CartRepository interface {
	Load(ctx context.Context, ownerID string) (*domain.Cart, error)
	Save(ctx context.Context, cart *domain.Cart) error
	Clear(ctx context.Context, ownerID string) error
}
