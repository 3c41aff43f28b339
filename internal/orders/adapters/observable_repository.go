package adapters

import (
	"context"
	"time"

	"github.com/dejobratic/lantern/internal/database"
	"github.com/dejobratic/lantern/internal/orders/domain"
	"github.com/dejobratic/lantern/internal/orders/ports"
	"github.com/dejobratic/lantern/internal/telemetry"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

type ObservableRepository struct {
	repo    ports.OrderRepository
	metrics *database.Metrics
}

func NewObservableRepository(repo ports.OrderRepository, metrics *database.Metrics) *ObservableRepository {
	return &ObservableRepository{
		repo:    repo,
		metrics: metrics,
	}
}

// observe runs fn inside a span and records its latency under operation.
func (r *ObservableRepository) observe(ctx context.Context, spanName, operation string, fn func(ctx context.Context, span trace.Span) error, attrs ...attribute.KeyValue) error {
	ctx, span := telemetry.StartSpan(ctx, spanName)
	telemetry.AddSpanAttributes(span, append(attrs, attribute.String("operation", operation))...)

	start := time.Now()
	err := fn(ctx, span)
	r.metrics.RecordQuery(ctx, operation, time.Since(start).Seconds(), err)

	telemetry.EndSpan(span, err)
	return err
}

func (r *ObservableRepository) Create(ctx context.Context, order domain.Order) error {
	return r.observe(ctx, "OrderRepository.Create", "create_order", func(ctx context.Context, _ trace.Span) error {
		return r.repo.Create(ctx, order)
	}, attribute.String("order.id", order.ID))
}

func (r *ObservableRepository) GetByID(ctx context.Context, id string) (*domain.Order, error) {
	var order *domain.Order
	err := r.observe(ctx, "OrderRepository.GetByID", "get_order_by_id", func(ctx context.Context, _ trace.Span) error {
		var err error
		order, err = r.repo.GetByID(ctx, id)
		return err
	}, attribute.String("order.id", id))
	if err != nil {
		return nil, err
	}
	return order, nil
}

func (r *ObservableRepository) List(ctx context.Context, filter ports.ListFilter) ([]domain.Order, error) {
	attrs := []attribute.KeyValue{
		attribute.Int("page", filter.Page),
		attribute.Int("page_size", filter.PageSize),
	}
	if filter.Status != nil {
		attrs = append(attrs, attribute.String("filter.status", string(*filter.Status)))
	}
	if filter.VenueID != "" {
		attrs = append(attrs, attribute.String("filter.venue_id", filter.VenueID))
	}

	var orders []domain.Order
	err := r.observe(ctx, "OrderRepository.List", "list_orders", func(ctx context.Context, span trace.Span) error {
		var err error
		orders, err = r.repo.List(ctx, filter)
		if err == nil {
			telemetry.AddSpanAttributes(span, attribute.Int("result.count", len(orders)))
		}
		return err
	}, attrs...)
	if err != nil {
		return nil, err
	}
	return orders, nil
}

func (r *ObservableRepository) Transition(ctx context.Context, order domain.Order, expectedVersion int64, items []domain.PurchasedItem) error {
	return r.observe(ctx, "OrderRepository.Transition", "transition_order", func(ctx context.Context, _ trace.Span) error {
		return r.repo.Transition(ctx, order, expectedVersion, items)
	},
		attribute.String("order.id", order.ID),
		attribute.String("order.state", order.State.String()),
		attribute.Int64("order.expected_version", expectedVersion),
		attribute.Int("purchased_items.count", len(items)),
	)
}

func (r *ObservableRepository) ListStalePending(ctx context.Context, olderThan time.Time, limit int) ([]domain.Order, error) {
	var orders []domain.Order
	err := r.observe(ctx, "OrderRepository.ListStalePending", "list_stale_pending", func(ctx context.Context, span trace.Span) error {
		var err error
		orders, err = r.repo.ListStalePending(ctx, olderThan, limit)
		if err == nil {
			telemetry.AddSpanAttributes(span, attribute.Int("result.count", len(orders)))
		}
		return err
	}, attribute.Int("limit", limit))
	if err != nil {
		return nil, err
	}
	return orders, nil
}

func (r *ObservableRepository) ListPurchasedItems(ctx context.Context, buyerID string) ([]domain.PurchasedItem, error) {
	var items []domain.PurchasedItem
	err := r.observe(ctx, "OrderRepository.ListPurchasedItems", "list_purchased_items", func(ctx context.Context, _ trace.Span) error {
		var err error
		items, err = r.repo.ListPurchasedItems(ctx, buyerID)
		return err
	}, attribute.String("buyer.id", buyerID))
	if err != nil {
		return nil, err
	}
	return items, nil
}
