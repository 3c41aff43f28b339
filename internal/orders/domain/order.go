package domain

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	// ErrStateConflict is returned when an event does not apply to the order's
	// current state, or when a concurrent writer changed the order first.
	ErrStateConflict = errors.New("order already processed")
	// ErrDuplicateConfirmation is returned when a payment outcome for the same
	// transaction is delivered again.
	ErrDuplicateConfirmation = errors.New("duplicate payment confirmation")
	ErrInvalidOrder          = errors.New("invalid order")
)

type PaymentMethod string

const (
	PaymentMethodCard             PaymentMethod = "card"
	PaymentMethodBankTransfer     PaymentMethod = "bank_transfer"
	PaymentMethodConvenienceStore PaymentMethod = "convenience_store"
)

func (m PaymentMethod) Valid() bool {
	switch m {
	case PaymentMethodCard, PaymentMethodBankTransfer, PaymentMethodConvenienceStore:
		return true
	default:
		return false
	}
}

// Step names a timeline entry.
type Step string

const (
	StepCreated          Step = "created"
	StepPaymentConfirmed Step = "payment_confirmed"
	StepPaymentFailed    Step = "payment_failed"
	StepReceiptConfirmed Step = "receipt_confirmed"
	StepCompleted        Step = "completed"
	StepCancelled        Step = "cancelled"
	StepRefunded         Step = "refunded"
)

type TimelineEntry struct {
	Step Step      `json:"step"`
	At   time.Time `json:"at"`
	Note string    `json:"note,omitempty"`
}

// Line is the immutable snapshot of a cart line taken at checkout.
type Line struct {
	OfferingID     string `json:"offering_id"`
	OfferingName   string `json:"offering_name"`
	VenueID        string `json:"venue_id"`
	VenueName      string `json:"venue_name"`
	UnitPrice      int64  `json:"unit_price"`
	Quantity       int    `json:"quantity"`
	DurationMonths int    `json:"duration_months,omitempty"`
	BelieverName   string `json:"believer_name"`
	BirthDate      string `json:"birth_date,omitempty"`
	WishText       string `json:"wish_text,omitempty"`
}

type Buyer struct {
	Name  string `json:"name" validate:"required"`
	Email string `json:"email" validate:"required,email"`
	Phone string `json:"phone" validate:"required"`
}

// Order is a checkout that was handed to the payment processor. Amounts are in the
// smallest currency unit.
type Order struct {
	ID             string
	BuyerID        string
	VenueID        string
	Lines          []Line
	Subtotal       int64
	CouponCode     string
	DiscountAmount int64
	TotalAmount    int64
	PlatformFee    int64
	VenuePayout    int64
	PaymentMethod  PaymentMethod
	State          State
	TransactionID  string
	CancelReason   string
	Buyer          Buyer
	Timeline       []TimelineEntry
	Version        int64
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Validate checks the structural invariants of an order.
func (o Order) Validate() error {
	if strings.TrimSpace(o.ID) == "" || strings.TrimSpace(o.BuyerID) == "" {
		return fmt.Errorf("%w: id and buyer_id are required", ErrInvalidOrder)
	}
	if len(o.Lines) == 0 {
		return fmt.Errorf("%w: at least one line is required", ErrInvalidOrder)
	}
	if _, err := NewState(o.State.status, o.State.payment); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidOrder, err)
	}
	if o.DiscountAmount < 0 || o.TotalAmount != max(0, o.Subtotal-o.DiscountAmount) {
		return fmt.Errorf("%w: total %d does not match subtotal %d less discount %d",
			ErrInvalidOrder, o.TotalAmount, o.Subtotal, o.DiscountAmount)
	}
	if o.PlatformFee < 0 || o.PlatformFee+o.VenuePayout != o.TotalAmount {
		return fmt.Errorf("%w: fee and payout must split the total", ErrInvalidOrder)
	}
	return nil
}

// Clone returns a deep copy so a transition can be attempted without touching the
// loaded order.
func (o Order) Clone() Order {
	c := o
	c.Lines = append([]Line(nil), o.Lines...)
	c.Timeline = append([]TimelineEntry(nil), o.Timeline...)
	return c
}

func (o Order) IsTerminal() bool {
	return o.State.IsTerminal()
}

// ConfirmPayment records a successful payment for transactionID.
func (o *Order) ConfirmPayment(transactionID string, at time.Time) error {
	if transactionID != "" && o.TransactionID == transactionID {
		return ErrDuplicateConfirmation
	}
	if o.State != PendingUnpaid {
		return o.conflict("confirm payment for")
	}
	o.TransactionID = transactionID
	o.advance(PendingPaid, StepPaymentConfirmed, at, "")
	return nil
}

// FailPayment records a declined or abandoned payment. The order stays pending.
func (o *Order) FailPayment(transactionID, reason string, at time.Time) error {
	if transactionID != "" && o.TransactionID == transactionID {
		return ErrDuplicateConfirmation
	}
	if o.State != PendingUnpaid {
		return o.conflict("fail payment for")
	}
	o.TransactionID = transactionID
	o.advance(PendingFailed, StepPaymentFailed, at, reason)
	return nil
}

// ConfirmReceipt is the venue operator acknowledging a paid order.
func (o *Order) ConfirmReceipt(at time.Time) error {
	if o.State != PendingPaid {
		return o.conflict("confirm receipt of")
	}
	o.advance(ProcessingPaid, StepReceiptConfirmed, at, "")
	return nil
}

// Complete marks a processing order as fulfilled.
func (o *Order) Complete(at time.Time) error {
	if o.State != ProcessingPaid {
		return o.conflict("complete")
	}
	o.advance(CompletedPaid, StepCompleted, at, "")
	return nil
}

// Cancel stops a pending or processing order. The payment status is kept so a paid
// cancellation can still be refunded.
func (o *Order) Cancel(reason string, at time.Time) error {
	if o.State.status != StatusPending && o.State.status != StatusProcessing {
		return o.conflict("cancel")
	}
	o.CancelReason = strings.TrimSpace(reason)
	o.advance(o.State.with(StatusCancelled, o.State.payment), StepCancelled, at, o.CancelReason)
	return nil
}

// Refund returns the money of a completed or cancelled paid order.
func (o *Order) Refund(at time.Time) error {
	if o.State.payment != PaymentPaid || !o.State.IsTerminal() {
		return o.conflict("refund")
	}
	o.advance(o.State.with(o.State.status, PaymentRefunded), StepRefunded, at, "")
	return nil
}

func (o *Order) advance(next State, step Step, at time.Time, note string) {
	o.State = next
	o.Timeline = append(o.Timeline, TimelineEntry{Step: step, At: at, Note: note})
	o.UpdatedAt = at
	o.Version++
}

func (o *Order) conflict(action string) error {
	return fmt.Errorf("%w: cannot %s order %s in state %s", ErrStateConflict, action, o.ID, o.State)
}
