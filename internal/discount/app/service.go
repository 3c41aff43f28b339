package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dejobratic/lantern/internal/discount/domain"
	"github.com/dejobratic/lantern/internal/discount/ports"
)

// Evaluation is the outcome of applying a code to an order subtotal.
type Evaluation struct {
	Code           string
	DiscountAmount int64
}

// CreateInput describes a new discount code as submitted by an operator.
type CreateInput struct {
	Code              string
	Kind              domain.Kind
	Value             int64
	MinOrderAmount    int64
	MaxDiscountAmount *int64
	UsageLimitTotal   int
	UsageLimitPerUser int
	ValidFrom         time.Time
	ValidUntil        time.Time
	IsActive          bool
}

type Service struct {
	repo ports.CodeRepository
	now  func() time.Time
}

func NewService(repo ports.CodeRepository) *Service {
	return &Service{repo: repo, now: func() time.Time { return time.Now().UTC() }}
}

// Evaluate looks the code up and computes its discount for subtotal without
// consuming a use.
func (s *Service) Evaluate(ctx context.Context, rawCode, buyerID string, subtotal int64) (Evaluation, error) {
	code := domain.Canonicalize(rawCode)
	if code == "" {
		return Evaluation{}, domain.Reject(code, domain.ReasonNotFound)
	}

	found, err := s.repo.GetByCode(ctx, code)
	if err != nil {
		if errors.Is(err, ports.ErrNotFound) {
			return Evaluation{}, domain.Reject(code, domain.ReasonNotFound)
		}
		return Evaluation{}, fmt.Errorf("get discount code: %w", err)
	}

	redemptions := 0
	if buyerID != "" && found.UsageLimitPerUser > 0 {
		redemptions, err = s.repo.CountBuyerRedemptions(ctx, code, buyerID)
		if err != nil {
			return Evaluation{}, fmt.Errorf("count buyer redemptions: %w", err)
		}
	}

	amount, err := domain.Evaluate(found, domain.OrderContext{
		Subtotal:         subtotal,
		BuyerID:          buyerID,
		Now:              s.now(),
		BuyerRedemptions: redemptions,
	})
	if err != nil {
		return Evaluation{}, err
	}

	return Evaluation{Code: code, DiscountAmount: amount}, nil
}

// Redeem consumes one use of the code for orderID. Calling it again for the same
// order has no effect.
func (s *Service) Redeem(ctx context.Context, rawCode, buyerID, orderID string) error {
	code := domain.Canonicalize(rawCode)
	if code == "" || orderID == "" {
		return domain.Reject(code, domain.ReasonNotFound)
	}

	err := s.repo.Redeem(ctx, ports.Redemption{
		Code:       code,
		BuyerID:    buyerID,
		OrderID:    orderID,
		RedeemedAt: s.now(),
	})
	if err != nil {
		if _, ok := domain.ReasonOf(err); ok {
			return err
		}
		return fmt.Errorf("redeem discount code: %w", err)
	}

	return nil
}

func (s *Service) Create(ctx context.Context, input CreateInput) (*domain.Code, error) {
	now := s.now()
	code := domain.Code{
		Code:              domain.Canonicalize(input.Code),
		Kind:              input.Kind,
		Value:             input.Value,
		MinOrderAmount:    input.MinOrderAmount,
		MaxDiscountAmount: input.MaxDiscountAmount,
		UsageLimitTotal:   input.UsageLimitTotal,
		UsageLimitPerUser: input.UsageLimitPerUser,
		ValidFrom:         input.ValidFrom.UTC(),
		ValidUntil:        input.ValidUntil.UTC(),
		IsActive:          input.IsActive,
		CreatedAt:         now,
		UpdatedAt:         now,
	}

	if err := code.Validate(); err != nil {
		return nil, err
	}

	if err := s.repo.Create(ctx, code); err != nil {
		if errors.Is(err, ports.ErrAlreadyExists) {
			return nil, err
		}
		return nil, fmt.Errorf("create discount code: %w", err)
	}

	return &code, nil
}

func (s *Service) Get(ctx context.Context, rawCode string) (*domain.Code, error) {
	code, err := s.repo.GetByCode(ctx, domain.Canonicalize(rawCode))
	if err != nil {
		if errors.Is(err, ports.ErrNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("get discount code: %w", err)
	}
	return code, nil
}

func (s *Service) SetActive(ctx context.Context, rawCode string, active bool) (*domain.Code, error) {
	code, err := s.repo.SetActive(ctx, domain.Canonicalize(rawCode), active, s.now())
	if err != nil {
		if errors.Is(err, ports.ErrNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("set discount code active: %w", err)
	}
	return code, nil
}
