package commands

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrPaymentSetup wraps gateway rejections while building the hand-off. The order
	// stays pending/unpaid.
	ErrPaymentSetup = errors.New("payment setup failed")
	// ErrCheckoutInProgress is returned while an identical submission is still running.
	ErrCheckoutInProgress = errors.New("checkout already in progress")
	// ErrAmountMismatch is returned when a paid callback reports a different amount
	// than the order total.
	ErrAmountMismatch = errors.New("payment amount does not match order total")
)

type ValidationReason string

const (
	ReasonEmptyCart            ValidationReason = "empty_cart"
	ReasonMissingBelieverNames ValidationReason = "missing_believer_names"
	ReasonIncompleteBuyerInfo  ValidationReason = "incomplete_buyer_info"
	ReasonInvalidPaymentMethod ValidationReason = "invalid_payment_method"
	ReasonMixedVenues          ValidationReason = "mixed_venues"
	// ReasonZeroTotal rejects carts a discount covers completely; the processor
	// cannot take a payment of zero.
	ReasonZeroTotal ValidationReason = "zero_total"
)

// ValidationError reports a checkout precondition that failed before anything was persisted.
type ValidationError struct {
	Reason  ValidationReason
	Details []string
}

func (e *ValidationError) Error() string {
	if len(e.Details) == 0 {
		return fmt.Sprintf("checkout rejected: %s", e.Reason)
	}
	return fmt.Sprintf("checkout rejected: %s (%s)", e.Reason, strings.Join(e.Details, ", "))
}

func invalid(reason ValidationReason, details ...string) *ValidationError {
	return &ValidationError{Reason: reason, Details: details}
}
