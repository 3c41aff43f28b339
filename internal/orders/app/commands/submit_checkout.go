package commands

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	cartdomain "github.com/dejobratic/lantern/internal/cart/domain"
	"github.com/dejobratic/lantern/internal/orders/domain"
	"github.com/dejobratic/lantern/internal/orders/ports"
	"github.com/dejobratic/lantern/internal/payment"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const DefaultIdempotencyWindow = 15 * time.Minute

var validate = validator.New(validator.WithRequiredStructEnabled())

type SubmitCheckoutCommand struct {
	BuyerID       string
	Cart          *cartdomain.Cart
	CouponCode    string
	Buyer         domain.Buyer
	PaymentMethod domain.PaymentMethod
	// IdempotencyToken defaults to the cart content hash.
	IdempotencyToken string
}

// Validate checks every precondition that must hold before anything is persisted.
func (c SubmitCheckoutCommand) Validate() error {
	if c.Cart == nil || c.Cart.IsEmpty() {
		return invalid(ReasonEmptyCart)
	}
	if missing := c.Cart.MissingBelieverNames(); len(missing) > 0 {
		return invalid(ReasonMissingBelieverNames, missing...)
	}
	if strings.TrimSpace(c.BuyerID) == "" {
		return invalid(ReasonIncompleteBuyerInfo, "buyer_id")
	}
	if err := validate.Struct(trimBuyer(c.Buyer)); err != nil {
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) {
			fields := make([]string, 0, len(fieldErrs))
			for _, fe := range fieldErrs {
				fields = append(fields, strings.ToLower(fe.Field()))
			}
			return invalid(ReasonIncompleteBuyerInfo, fields...)
		}
		return invalid(ReasonIncompleteBuyerInfo, err.Error())
	}
	if !c.PaymentMethod.Valid() {
		return invalid(ReasonInvalidPaymentMethod, string(c.PaymentMethod))
	}
	if venues := c.Cart.VenueIDs(); len(venues) > 1 {
		return invalid(ReasonMixedVenues, venues...)
	}
	return nil
}

func (c SubmitCheckoutCommand) idempotencyKey() string {
	token := strings.TrimSpace(c.IdempotencyToken)
	if token == "" {
		token = c.Cart.ContentHash()
	}
	return "checkout:" + c.BuyerID + ":" + token
}

// CheckoutResult is what the client needs to continue to the payment processor.
type CheckoutResult struct {
	OrderID        string            `json:"order_id"`
	RedirectURL    string            `json:"redirect_url"`
	Fields         map[string]string `json:"fields"`
	Subtotal       int64             `json:"subtotal"`
	DiscountAmount int64             `json:"discount_amount"`
	TotalAmount    int64             `json:"total_amount"`
	Replayed       bool              `json:"-"`
}

type SubmitCheckoutHandler interface {
	Handle(ctx context.Context, cmd SubmitCheckoutCommand) (*CheckoutResult, error)
}

type CheckoutOptions struct {
	IdempotencyWindow time.Duration
	PlatformFeeRate   decimal.Decimal
}

type SubmitCheckoutCommandHandler struct {
	repo      ports.OrderRepository
	discounts ports.Discounts
	gateway   ports.PaymentGateway
	idem      ports.IdempotencyStore
	events    ports.EventBus
	logger    *slog.Logger
	opts      CheckoutOptions
	now       func() time.Time
	newID     func() (string, error)
}

func NewSubmitCheckoutCommandHandler(
	repo ports.OrderRepository,
	discounts ports.Discounts,
	gateway ports.PaymentGateway,
	idem ports.IdempotencyStore,
	events ports.EventBus,
	logger *slog.Logger,
	opts CheckoutOptions,
) *SubmitCheckoutCommandHandler {
	if opts.IdempotencyWindow <= 0 {
		opts.IdempotencyWindow = DefaultIdempotencyWindow
	}
	return &SubmitCheckoutCommandHandler{
		repo:      repo,
		discounts: discounts,
		gateway:   gateway,
		idem:      idem,
		events:    events,
		logger:    logger,
		opts:      opts,
		now:       func() time.Time { return time.Now().UTC() },
		newID:     newOrderID,
	}
}

func (h *SubmitCheckoutCommandHandler) Handle(ctx context.Context, cmd SubmitCheckoutCommand) (*CheckoutResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, err
	}

	key := cmd.idempotencyKey()
	stored, err := h.claim(ctx, key)
	if err != nil {
		return nil, err
	}
	if stored != nil {
		return replay(stored)
	}

	result, err := h.submit(ctx, cmd)
	if err != nil {
		if relErr := h.idem.Release(context.WithoutCancel(ctx), key); relErr != nil {
			h.logger.WarnContext(ctx, "failed to release idempotency key", "key", key, "error", relErr)
		}
		return nil, err
	}

	body, err := json.Marshal(result)
	if err != nil {
		return nil, fmt.Errorf("encode checkout result: %w", err)
	}
	response := ports.StoredResponse{OrderID: result.OrderID, Body: body}
	if err := h.idem.Complete(ctx, key, response, h.opts.IdempotencyWindow); err != nil {
		h.logger.WarnContext(ctx, "failed to store checkout result for replay",
			"key", key,
			"order_id", result.OrderID,
			"error", err,
		)
	}

	return result, nil
}

// claim reserves key for this submission, or returns the stored result to replay.
// A stored result is only replayed while its order still awaits payment; once that
// order was paid, failed or cancelled the key is forgotten and claimed again.
func (h *SubmitCheckoutCommandHandler) claim(ctx context.Context, key string) (*ports.StoredResponse, error) {
	for attempt := 0; ; attempt++ {
		claim, err := h.idem.Claim(ctx, key, h.opts.IdempotencyWindow)
		if err != nil {
			return nil, fmt.Errorf("claim idempotency key: %w", err)
		}
		if claim.Acquired {
			return nil, nil
		}
		if claim.Stored == nil || attempt > 0 {
			return nil, ErrCheckoutInProgress
		}

		payable, err := h.awaitsPayment(ctx, claim.Stored.OrderID)
		if err != nil {
			return nil, err
		}
		if payable {
			return claim.Stored, nil
		}

		h.logger.InfoContext(ctx, "previous checkout can no longer be paid, starting a new order",
			"key", key,
			"order_id", claim.Stored.OrderID,
		)
		if err := h.idem.Forget(ctx, key, claim.Stored.OrderID); err != nil {
			return nil, fmt.Errorf("forget idempotency key: %w", err)
		}
	}
}

func (h *SubmitCheckoutCommandHandler) awaitsPayment(ctx context.Context, orderID string) (bool, error) {
	order, err := h.repo.GetByID(ctx, orderID)
	if errors.Is(err, ports.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("load replayed order: %w", err)
	}
	return order.State == domain.PendingUnpaid, nil
}

func (h *SubmitCheckoutCommandHandler) submit(ctx context.Context, cmd SubmitCheckoutCommand) (*CheckoutResult, error) {
	lines := snapshotLines(cmd.Cart)
	subtotal := cmd.Cart.Subtotal()

	var discount int64
	var couponCode string
	if strings.TrimSpace(cmd.CouponCode) != "" {
		eval, err := h.discounts.Evaluate(ctx, cmd.CouponCode, cmd.BuyerID, subtotal)
		if err != nil {
			return nil, fmt.Errorf("evaluate discount: %w", err)
		}
		discount = eval.DiscountAmount
		couponCode = eval.Code
	}

	total := max(0, subtotal-discount)
	if total == 0 {
		return nil, invalid(ReasonZeroTotal, couponCode)
	}
	fee := PlatformFee(total, h.opts.PlatformFeeRate)

	orderID, err := h.newID()
	if err != nil {
		return nil, err
	}

	now := h.now()
	order := domain.Order{
		ID:             orderID,
		BuyerID:        cmd.BuyerID,
		VenueID:        lines[0].VenueID,
		Lines:          lines,
		Subtotal:       subtotal,
		CouponCode:     couponCode,
		DiscountAmount: discount,
		TotalAmount:    total,
		PlatformFee:    fee,
		VenuePayout:    total - fee,
		PaymentMethod:  cmd.PaymentMethod,
		State:          domain.PendingUnpaid,
		Buyer:          trimBuyer(cmd.Buyer),
		Timeline:       []domain.TimelineEntry{{Step: domain.StepCreated, At: now}},
		Version:        1,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	if err := order.Validate(); err != nil {
		return nil, err
	}

	if err := h.repo.Create(ctx, order); err != nil {
		return nil, fmt.Errorf("persist order: %w", err)
	}

	publish(ctx, h.events, h.logger, order, ports.EventOrderCreated)

	handoff, err := h.gateway.CreateHandoff(ctx, payment.HandoffRequest{
		OrderID:       order.ID,
		Amount:        order.TotalAmount,
		Description:   lines[0].VenueName,
		PaymentMethod: string(order.PaymentMethod),
		Items:         handoffItems(lines),
		CreatedAt:     now,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: order %s: %w", ErrPaymentSetup, order.ID, err)
	}

	return &CheckoutResult{
		OrderID:        order.ID,
		RedirectURL:    handoff.RedirectURL,
		Fields:         handoff.Fields,
		Subtotal:       order.Subtotal,
		DiscountAmount: order.DiscountAmount,
		TotalAmount:    order.TotalAmount,
	}, nil
}

// PlatformFee is the platform's share of total at rate, rounded half away from zero
// and never more than total.
func PlatformFee(total int64, rate decimal.Decimal) int64 {
	if total <= 0 || !rate.IsPositive() {
		return 0
	}
	fee := decimal.NewFromInt(total).Mul(rate).Round(0).IntPart()
	return min(fee, total)
}

func replay(stored *ports.StoredResponse) (*CheckoutResult, error) {
	var result CheckoutResult
	if err := json.Unmarshal(stored.Body, &result); err != nil {
		return nil, fmt.Errorf("decode stored checkout result: %w", err)
	}
	result.Replayed = true
	return &result, nil
}

func snapshotLines(cart *cartdomain.Cart) []domain.Line {
	src := cart.Snapshot()
	lines := make([]domain.Line, 0, len(src))
	for _, l := range src {
		lines = append(lines, domain.Line{
			OfferingID:     l.OfferingID,
			OfferingName:   l.OfferingName,
			VenueID:        l.VenueID,
			VenueName:      l.VenueName,
			UnitPrice:      l.UnitPrice,
			Quantity:       l.Quantity,
			DurationMonths: l.DurationMonths,
			BelieverName:   strings.TrimSpace(l.BelieverName),
			BirthDate:      l.BirthDate,
			WishText:       l.WishText,
		})
	}
	return lines
}

func handoffItems(lines []domain.Line) []payment.Item {
	items := make([]payment.Item, 0, len(lines))
	for _, l := range lines {
		items = append(items, payment.Item{Name: l.OfferingName, Quantity: l.Quantity})
	}
	return items
}

func trimBuyer(b domain.Buyer) domain.Buyer {
	return domain.Buyer{
		Name:  strings.TrimSpace(b.Name),
		Email: strings.TrimSpace(b.Email),
		Phone: strings.TrimSpace(b.Phone),
	}
}

func newOrderID() (string, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return "", fmt.Errorf("generate order id: %w", err)
	}
	return id.String(), nil
}
