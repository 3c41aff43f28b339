package memory

import (
	"context"
	"sync"

	"github.com/dejobratic/lantern/internal/cart/domain"
)

// Repository keeps carts in process memory. Useful for local development and tests.
type Repository struct {
	mu    sync.RWMutex
	carts map[string]domain.Cart
}

func NewRepository() *Repository {
	return &Repository{carts: make(map[string]domain.Cart)}
}

func (r *Repository) Load(_ context.Context, ownerID string) (*domain.Cart, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	stored, ok := r.carts[ownerID]
	if !ok {
		return domain.New(ownerID), nil
	}

	cart := stored
	cart.Lines = stored.Snapshot()
	return &cart, nil
}

func (r *Repository) Save(_ context.Context, cart *domain.Cart) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored := *cart
	stored.Lines = cart.Snapshot()
	r.carts[cart.OwnerID] = stored
	return nil
}

func (r *Repository) Clear(_ context.Context, ownerID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.carts, ownerID)
	return nil
}
