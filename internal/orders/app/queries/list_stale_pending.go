package queries

import (
	"context"
	"errors"
	"time"

	"github.com/dejobratic/lantern/internal/orders/domain"
	"github.com/dejobratic/lantern/internal/orders/ports"
)

const defaultStaleLimit = 100

// ListStalePendingQuery selects pending/unpaid orders whose callback never arrived,
// for the external reconciliation sweep.
type ListStalePendingQuery struct {
	OlderThan time.Duration
	Limit     int
}

type ListStalePendingQueryHandler struct {
	repo ports.OrderRepository
	now  func() time.Time
}

func NewListStalePendingQueryHandler(repo ports.OrderRepository) *ListStalePendingQueryHandler {
	return &ListStalePendingQueryHandler{repo: repo, now: func() time.Time { return time.Now().UTC() }}
}

func (h *ListStalePendingQueryHandler) Handle(ctx context.Context, query ListStalePendingQuery) ([]domain.Order, error) {
	if query.OlderThan <= 0 {
		return nil, errors.New("older_than must be positive")
	}
	limit := query.Limit
	if limit <= 0 || limit > ports.MaxPageSize*10 {
		limit = defaultStaleLimit
	}

	return h.repo.ListStalePending(ctx, h.now().Add(-query.OlderThan), limit)
}
