package domain

import (
	"errors"
	"fmt"
	"time"
)

// Reason explains why a code was refused.
type Reason string

const (
	ReasonNotFound            Reason = "not_found"
	ReasonInactive            Reason = "inactive"
	ReasonNotStarted          Reason = "not_started"
	ReasonExpired             Reason = "expired"
	ReasonExhausted           Reason = "exhausted"
	ReasonPerUserLimitReached Reason = "per_user_limit_reached"
	ReasonBelowMinimum        Reason = "below_minimum"
)

// Error is returned whenever a code cannot be applied.
type Error struct {
	Code   string
	Reason Reason
}

func (e *Error) Error() string {
	return fmt.Sprintf("discount code %q rejected: %s", e.Code, e.Reason)
}

func Reject(code string, reason Reason) *Error {
	return &Error{Code: code, Reason: reason}
}

// ReasonOf extracts the rejection reason from err, if it carries one.
func ReasonOf(err error) (Reason, bool) {
	var de *Error
	if errors.As(err, &de) {
		return de.Reason, true
	}
	return "", false
}

// OrderContext is what Evaluate needs to know about the order being priced.
type OrderContext struct {
	Subtotal         int64
	BuyerID          string
	Now              time.Time
	BuyerRedemptions int
}

// Evaluate computes the discount a code grants for an order. It has no side effects;
// redemption is a separate step performed once payment is confirmed.
func Evaluate(code *Code, order OrderContext) (int64, error) {
	if code == nil {
		return 0, Reject("", ReasonNotFound)
	}
	if !code.IsActive {
		return 0, Reject(code.Code, ReasonInactive)
	}
	if order.Now.Before(code.ValidFrom) {
		return 0, Reject(code.Code, ReasonNotStarted)
	}
	if order.Now.After(code.ValidUntil) {
		return 0, Reject(code.Code, ReasonExpired)
	}
	if code.UsedCount >= code.UsageLimitTotal {
		return 0, Reject(code.Code, ReasonExhausted)
	}
	if code.UsageLimitPerUser > 0 && order.BuyerRedemptions >= code.UsageLimitPerUser {
		return 0, Reject(code.Code, ReasonPerUserLimitReached)
	}
	if order.Subtotal < code.MinOrderAmount {
		return 0, Reject(code.Code, ReasonBelowMinimum)
	}

	return amount(code, order.Subtotal), nil
}

func amount(code *Code, subtotal int64) int64 {
	if subtotal <= 0 {
		return 0
	}

	switch code.Kind {
	case KindPercentage:
		discount := subtotal * code.Value / 100
		if code.MaxDiscountAmount != nil && discount > *code.MaxDiscountAmount {
			discount = *code.MaxDiscountAmount
		}
		return min(discount, subtotal)
	case KindFixedAmount:
		return min(code.Value, subtotal)
	default:
		return 0
	}
}
