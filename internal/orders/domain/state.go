package domain

import (
	"errors"
	"fmt"
)

// Status is the fulfillment side of an order's lifecycle.
type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusCancelled  Status = "cancelled"
)

// PaymentStatus is the money side of an order's lifecycle.
type PaymentStatus string

const (
	PaymentUnpaid   PaymentStatus = "unpaid"
	PaymentPaid     PaymentStatus = "paid"
	PaymentFailed   PaymentStatus = "failed"
	PaymentRefunded PaymentStatus = "refunded"
)

var ErrIllegalState = errors.New("illegal order state")

// State is a legal (status, payment status) pair. The zero value is not legal;
// values come from NewState or the package-level states.
type State struct {
	status  Status
	payment PaymentStatus
}

var (
	PendingUnpaid     = State{StatusPending, PaymentUnpaid}
	PendingPaid       = State{StatusPending, PaymentPaid}
	PendingFailed     = State{StatusPending, PaymentFailed}
	ProcessingPaid    = State{StatusProcessing, PaymentPaid}
	CompletedPaid     = State{StatusCompleted, PaymentPaid}
	CompletedRefunded = State{StatusCompleted, PaymentRefunded}
)

var legalStates = map[State]struct{}{
	PendingUnpaid:     {},
	PendingPaid:       {},
	PendingFailed:     {},
	ProcessingPaid:    {},
	CompletedPaid:     {},
	CompletedRefunded: {},

	{StatusCancelled, PaymentUnpaid}:   {},
	{StatusCancelled, PaymentPaid}:     {},
	{StatusCancelled, PaymentFailed}:   {},
	{StatusCancelled, PaymentRefunded}: {},
}

func NewState(status Status, payment PaymentStatus) (State, error) {
	s := State{status: status, payment: payment}
	if _, ok := legalStates[s]; !ok {
		return State{}, fmt.Errorf("%w: %s/%s", ErrIllegalState, status, payment)
	}
	return s, nil
}

func (s State) Status() Status               { return s.status }
func (s State) PaymentStatus() PaymentStatus { return s.payment }

func (s State) IsTerminal() bool {
	return s.status == StatusCompleted || s.status == StatusCancelled
}

func (s State) String() string {
	return string(s.status) + "/" + string(s.payment)
}

func (s State) with(status Status, payment PaymentStatus) State {
	next, err := NewState(status, payment)
	if err != nil {
		panic(err)
	}
	return next
}
