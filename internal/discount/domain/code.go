package domain

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Kind selects how a code turns a subtotal into a discount.
type Kind string

const (
	KindPercentage  Kind = "percentage"
	KindFixedAmount Kind = "fixed_amount"
)

func (k Kind) Valid() bool {
	return k == KindPercentage || k == KindFixedAmount
}

var ErrInvalidCode = errors.New("invalid discount code")

// Code is a promotional discount code. Amounts are in the smallest currency unit;
// Value is a whole percent for percentage codes.
type Code struct {
	Code              string    `json:"code"`
	Kind              Kind      `json:"kind"`
	Value             int64     `json:"value"`
	MinOrderAmount    int64     `json:"min_order_amount"`
	MaxDiscountAmount *int64    `json:"max_discount_amount,omitempty"`
	UsageLimitTotal   int       `json:"usage_limit_total"`
	UsageLimitPerUser int       `json:"usage_limit_per_user"`
	UsedCount         int       `json:"used_count"`
	ValidFrom         time.Time `json:"valid_from"`
	ValidUntil        time.Time `json:"valid_until"`
	IsActive          bool      `json:"is_active"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
}

// Canonicalize normalizes user input to the stored form of a code.
func Canonicalize(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// Validate checks the invariants a code must hold before it is stored.
func (c Code) Validate() error {
	if c.Code == "" || c.Code != Canonicalize(c.Code) {
		return fmt.Errorf("%w: code must be non-empty upper-case", ErrInvalidCode)
	}
	if !c.Kind.Valid() {
		return fmt.Errorf("%w: unknown kind %q", ErrInvalidCode, c.Kind)
	}
	if c.Value <= 0 {
		return fmt.Errorf("%w: value must be positive", ErrInvalidCode)
	}
	if c.Kind == KindPercentage && c.Value > 100 {
		return fmt.Errorf("%w: percentage must not exceed 100", ErrInvalidCode)
	}
	if c.MaxDiscountAmount != nil {
		if c.Kind != KindPercentage {
			return fmt.Errorf("%w: max_discount_amount applies to percentage codes only", ErrInvalidCode)
		}
		if *c.MaxDiscountAmount <= 0 {
			return fmt.Errorf("%w: max_discount_amount must be positive", ErrInvalidCode)
		}
	}
	if c.MinOrderAmount < 0 || c.UsageLimitTotal < 0 || c.UsageLimitPerUser < 0 {
		return fmt.Errorf("%w: amounts and limits must not be negative", ErrInvalidCode)
	}
	if c.UsedCount > c.UsageLimitTotal {
		return fmt.Errorf("%w: used_count exceeds usage_limit_total", ErrInvalidCode)
	}
	if c.ValidUntil.Before(c.ValidFrom) {
		return fmt.Errorf("%w: valid_until precedes valid_from", ErrInvalidCode)
	}
	return nil
}

// Redeemable reports whether the code can be used at now, ignoring per-buyer limits
// and the order amount.
func (c Code) Redeemable(now time.Time) bool {
	return c.IsActive && !now.Before(c.ValidFrom) && !now.After(c.ValidUntil) && c.UsedCount < c.UsageLimitTotal
}
