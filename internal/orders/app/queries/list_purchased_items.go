package queries

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dejobratic/lantern/internal/orders/domain"
	"github.com/dejobratic/lantern/internal/orders/ports"
	"github.com/dejobratic/lantern/internal/validity"
)

// PurchasedItemView is a purchased item with its validity computed at read time.
type PurchasedItemView struct {
	domain.PurchasedItem
	Status   validity.Status
	DaysLeft int
}

type ListPurchasedItemsQuery struct {
	BuyerID string
}

type ListPurchasedItemsQueryHandler struct {
	repo    ports.OrderRepository
	tracker validity.Tracker
	now     func() time.Time
}

func NewListPurchasedItemsQueryHandler(repo ports.OrderRepository, tracker validity.Tracker) *ListPurchasedItemsQueryHandler {
	return &ListPurchasedItemsQueryHandler{
		repo:    repo,
		tracker: tracker,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

func (h *ListPurchasedItemsQueryHandler) Handle(ctx context.Context, query ListPurchasedItemsQuery) ([]PurchasedItemView, error) {
	if query.BuyerID == "" {
		return nil, errors.New("buyer_id is required")
	}

	items, err := h.repo.ListPurchasedItems(ctx, query.BuyerID)
	if err != nil {
		return nil, fmt.Errorf("list purchased items: %w", err)
	}

	now := h.now()
	views := make([]PurchasedItemView, 0, len(items))
	for _, item := range items {
		status, daysLeft := h.tracker.Evaluate(item.ExpiryDate, now)
		views = append(views, PurchasedItemView{PurchasedItem: item, Status: status, DaysLeft: daysLeft})
	}

	return views, nil
}
