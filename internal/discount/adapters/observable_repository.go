package adapters

import (
	"context"
	"time"

	"github.com/dejobratic/lantern/internal/database"
	"github.com/dejobratic/lantern/internal/discount/domain"
	"github.com/dejobratic/lantern/internal/discount/ports"
	"github.com/dejobratic/lantern/internal/telemetry"
	"go.opentelemetry.io/otel/attribute"
)

// ObservableRepository traces discount queries and records them in the shared
// database metrics.
type ObservableRepository struct {
	repo    ports.CodeRepository
	metrics *database.Metrics
}

func NewObservableRepository(repo ports.CodeRepository, metrics *database.Metrics) *ObservableRepository {
	return &ObservableRepository{repo: repo, metrics: metrics}
}

func (r *ObservableRepository) observe(ctx context.Context, operation, code string, fn func(context.Context) error) error {
	ctx, span := telemetry.StartSpan(ctx, "CodeRepository."+operation)
	telemetry.AddSpanAttributes(span,
		attribute.String("operation", operation),
		attribute.String("discount.code", code),
	)

	start := time.Now()
	err := fn(ctx)
	r.metrics.RecordQuery(ctx, operation, time.Since(start).Seconds(), err)

	telemetry.EndSpan(span, err)
	return err
}

func (r *ObservableRepository) GetByCode(ctx context.Context, code string) (*domain.Code, error) {
	var found *domain.Code
	err := r.observe(ctx, "get_discount_code", code, func(ctx context.Context) error {
		var err error
		found, err = r.repo.GetByCode(ctx, code)
		return err
	})
	return found, err
}

func (r *ObservableRepository) CountBuyerRedemptions(ctx context.Context, code, buyerID string) (int, error) {
	var count int
	err := r.observe(ctx, "count_buyer_redemptions", code, func(ctx context.Context) error {
		var err error
		count, err = r.repo.CountBuyerRedemptions(ctx, code, buyerID)
		return err
	})
	return count, err
}

func (r *ObservableRepository) Redeem(ctx context.Context, redemption ports.Redemption) error {
	return r.observe(ctx, "redeem_discount_code", redemption.Code, func(ctx context.Context) error {
		return r.repo.Redeem(ctx, redemption)
	})
}

func (r *ObservableRepository) Create(ctx context.Context, code domain.Code) error {
	return r.observe(ctx, "create_discount_code", code.Code, func(ctx context.Context) error {
		return r.repo.Create(ctx, code)
	})
}

func (r *ObservableRepository) SetActive(ctx context.Context, code string, active bool, at time.Time) (*domain.Code, error) {
	var updated *domain.Code
	err := r.observe(ctx, "set_discount_code_active", code, func(ctx context.Context) error {
		var err error
		updated, err = r.repo.SetActive(ctx, code, active, at)
		return err
	})
	return updated, err
}
