package ports

import (
	"context"
	"errors"
	"time"

	"github.com/dejobratic/lantern/internal/discount/domain"
)

var (
	// ErrNotFound is returned when no code matches the lookup.
	ErrNotFound = errors.New("discount code not found")
	// ErrAlreadyExists is returned when creating a code that is already stored.
	ErrAlreadyExists = errors.New("discount code already exists")
)

// Redemption records that a buyer used a code on an order.
type Redemption struct {
	Code       string
	BuyerID    string
	OrderID    string
	RedeemedAt time.Time
}

// CodeRepository persists discount codes and their redemptions.
type CodeRepository interface {
	GetByCode(ctx context.Context, code string) (*domain.Code, error)
	CountBuyerRedemptions(ctx context.Context, code, buyerID string) (int, error)
	// Redeem increments used_count and stores the redemption in one atomic step.
	// Redeeming the same (code, order) twice is a no-op. Limit violations are
	// reported as *domain.Error.
	Redeem(ctx context.Context, redemption Redemption) error
	Create(ctx context.Context, code domain.Code) error
	SetActive(ctx context.Context, code string, active bool, at time.Time) (*domain.Code, error)
}
