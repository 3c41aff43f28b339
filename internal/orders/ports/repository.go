package ports

import (
	"context"
	"errors"
	"time"

	"github.com/dejobratic/lantern/internal/orders/domain"
)

// OrderRepository exposes persistence operations required by the application layer.
type OrderRepository interface {
	Create(ctx context.Context, order domain.Order) error
	GetByID(ctx context.Context, id string) (*domain.Order, error)
	List(ctx context.Context, filter ListFilter) ([]domain.Order, error)
	// Transition stores order only if the stored version still equals expectedVersion.
	// Items, when present, are written in the same transaction. A version mismatch
	// returns an error wrapping domain.ErrStateConflict.
	Transition(ctx context.Context, order domain.Order, expectedVersion int64, items []domain.PurchasedItem) error
	// ListStalePending returns pending/unpaid orders created before olderThan, oldest first.
	ListStalePending(ctx context.Context, olderThan time.Time, limit int) ([]domain.Order, error)
	ListPurchasedItems(ctx context.Context, buyerID string) ([]domain.PurchasedItem, error)
}

// ListFilter narrows list queries. Empty fields do not filter.
type ListFilter struct {
	BuyerID  string
	VenueID  string
	Status   *domain.Status
	Page     int
	PageSize int
}

const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

// Normalize applies paging defaults and bounds.
func (f ListFilter) Normalize() ListFilter {
	if f.Page <= 0 {
		f.Page = 1
	}
	if f.PageSize <= 0 {
		f.PageSize = DefaultPageSize
	}
	if f.PageSize > MaxPageSize {
		f.PageSize = MaxPageSize
	}
	return f
}

func (f ListFilter) Offset() int {
	return (f.Page - 1) * f.PageSize
}

var (
	// ErrNotFound is returned when the requested order does not exist.
	ErrNotFound = errors.New("order not found")
)
