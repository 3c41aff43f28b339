package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/dejobratic/lantern/internal/orders/domain"
	"github.com/dejobratic/lantern/internal/orders/ports"
)

// Repository provides an in-memory store useful for local development and tests.
type Repository struct {
	mu     sync.RWMutex
	orders map[string]domain.Order
	items  map[string][]domain.PurchasedItem
}

// NewRepository constructs a new in-memory repository.
func NewRepository() *Repository {
	return &Repository{
		orders: make(map[string]domain.Order),
		items:  make(map[string][]domain.PurchasedItem),
	}
}

// Create stores a new order instance.
func (r *Repository) Create(_ context.Context, order domain.Order) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.orders[order.ID]; ok {
		return fmt.Errorf("order %s already exists", order.ID)
	}
	r.orders[order.ID] = order.Clone()
	return nil
}

// GetByID fetches a single order by identifier.
func (r *Repository) GetByID(_ context.Context, id string) (*domain.Order, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	order, ok := r.orders[id]
	if !ok {
		return nil, ports.ErrNotFound
	}
	copy := order.Clone()
	return &copy, nil
}

// List returns orders respecting the provided filter, newest first. Pagination is 1-based.
func (r *Repository) List(_ context.Context, filter ports.ListFilter) ([]domain.Order, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	filter = filter.Normalize()

	var result []domain.Order
	for _, order := range r.orders {
		if filter.BuyerID != "" && order.BuyerID != filter.BuyerID {
			continue
		}
		if filter.VenueID != "" && order.VenueID != filter.VenueID {
			continue
		}
		if filter.Status != nil && order.State.Status() != *filter.Status {
			continue
		}
		result = append(result, order.Clone())
	}

	sort.Slice(result, func(i, j int) bool {
		if result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].ID > result[j].ID
		}
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})

	start := filter.Offset()
	if start >= len(result) {
		return []domain.Order{}, nil
	}
	end := min(start+filter.PageSize, len(result))

	return result[start:end], nil
}

// Transition replaces the order when the stored version matches expectedVersion.
func (r *Repository) Transition(_ context.Context, order domain.Order, expectedVersion int64, items []domain.PurchasedItem) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored, ok := r.orders[order.ID]
	if !ok {
		return ports.ErrNotFound
	}
	if stored.Version != expectedVersion {
		return fmt.Errorf("%w: order %s is at version %d, expected %d",
			domain.ErrStateConflict, order.ID, stored.Version, expectedVersion)
	}

	r.orders[order.ID] = order.Clone()
	if len(items) > 0 {
		r.items[order.BuyerID] = append(r.items[order.BuyerID], items...)
	}
	return nil
}

func (r *Repository) ListStalePending(_ context.Context, olderThan time.Time, limit int) ([]domain.Order, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var result []domain.Order
	for _, order := range r.orders {
		if order.State == domain.PendingUnpaid && order.CreatedAt.Before(olderThan) {
			result = append(result, order.Clone())
		}
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.Before(result[j].CreatedAt)
	})
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

func (r *Repository) ListPurchasedItems(_ context.Context, buyerID string) ([]domain.PurchasedItem, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	items := append([]domain.PurchasedItem(nil), r.items[buyerID]...)
	sort.Slice(items, func(i, j int) bool {
		return items[i].ExpiryDate.Before(items[j].ExpiryDate)
	})
	return items, nil
}
