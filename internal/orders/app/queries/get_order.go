package queries

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/dejobratic/lantern/internal/orders/domain"
	"github.com/dejobratic/lantern/internal/orders/ports"
)

// GetOrderQuery represents a request to retrieve an order by its ID.
type GetOrderQuery struct {
	OrderID string
	Actor   domain.Actor
}

// Validate ensures the query has valid parameters.
func (q GetOrderQuery) Validate() error {
	if strings.TrimSpace(q.OrderID) == "" {
		return errors.New("order_id is required")
	}
	return nil
}

// GetOrderQueryHandler executes GetOrderQuery and returns the order if the actor may see it.
type GetOrderQueryHandler struct {
	repo ports.OrderRepository
}

func NewGetOrderQueryHandler(repo ports.OrderRepository) *GetOrderQueryHandler {
	return &GetOrderQueryHandler{repo: repo}
}

// Handle hides orders the actor may not view behind ErrNotFound.
func (h *GetOrderQueryHandler) Handle(ctx context.Context, query GetOrderQuery) (*domain.Order, error) {
	if err := query.Validate(); err != nil {
		return nil, err
	}

	order, err := h.repo.GetByID(ctx, query.OrderID)
	if err != nil {
		return nil, err
	}

	if !query.Actor.CanView(*order) {
		return nil, fmt.Errorf("%w: %s", ports.ErrNotFound, query.OrderID)
	}

	return order, nil
}
