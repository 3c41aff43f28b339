package queries

import (
	"context"

	"github.com/dejobratic/lantern/internal/orders/domain"
	"github.com/dejobratic/lantern/internal/orders/ports"
)

type ListOrdersQuery struct {
	Actor  domain.Actor
	Filter ports.ListFilter
}

type ListOrdersQueryHandler struct {
	repo ports.OrderRepository
}

func NewListOrdersQueryHandler(repo ports.OrderRepository) *ListOrdersQueryHandler {
	return &ListOrdersQueryHandler{repo: repo}
}

// Handle scopes the filter to what the actor may see: buyers get their own orders
// and operators get their venue's orders.
func (h *ListOrdersQueryHandler) Handle(ctx context.Context, query ListOrdersQuery) ([]domain.Order, error) {
	filter := query.Filter.Normalize()

	switch query.Actor.Role {
	case domain.RoleAdmin:
	case domain.RoleOperator:
		if query.Actor.VenueID == "" {
			return nil, domain.ErrForbidden
		}
		filter.VenueID = query.Actor.VenueID
	default:
		if query.Actor.ID == "" {
			return nil, domain.ErrForbidden
		}
		filter.BuyerID = query.Actor.ID
	}

	return h.repo.List(ctx, filter)
}
