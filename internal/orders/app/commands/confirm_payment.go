package commands

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/dejobratic/lantern/internal/orders/domain"
	"github.com/dejobratic/lantern/internal/orders/ports"
	"github.com/dejobratic/lantern/internal/payment"
)

// ConfirmPaymentCommand carries a verified processor callback.
type ConfirmPaymentCommand struct {
	Confirmation payment.Confirmation
}

type ConfirmPaymentHandler interface {
	Handle(ctx context.Context, cmd ConfirmPaymentCommand) (*domain.Order, error)
}

type ConfirmPaymentCommandHandler struct {
	repo      ports.OrderRepository
	discounts ports.Discounts
	carts     ports.CartClearer
	events    ports.EventBus
	logger    *slog.Logger
	now       func() time.Time
}

func NewConfirmPaymentCommandHandler(
	repo ports.OrderRepository,
	discounts ports.Discounts,
	carts ports.CartClearer,
	events ports.EventBus,
	logger *slog.Logger,
) *ConfirmPaymentCommandHandler {
	return &ConfirmPaymentCommandHandler{
		repo:      repo,
		discounts: discounts,
		carts:     carts,
		events:    events,
		logger:    logger,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

func (h *ConfirmPaymentCommandHandler) Handle(ctx context.Context, cmd ConfirmPaymentCommand) (*domain.Order, error) {
	conf := cmd.Confirmation
	if strings.TrimSpace(conf.OrderID) == "" {
		return nil, fmt.Errorf("%w: order id is required", payment.ErrMalformedCallback)
	}

	// A version conflict here usually means a concurrent delivery of the same
	// callback; one reload turns that into ErrDuplicateConfirmation.
	var order domain.Order
	for attempt := 0; ; attempt++ {
		next, expected, err := h.apply(ctx, conf)
		if err != nil {
			return nil, err
		}

		err = h.repo.Transition(ctx, next, expected, nil)
		if err == nil {
			order = next
			break
		}
		if errors.Is(err, domain.ErrStateConflict) && attempt == 0 {
			continue
		}
		return nil, fmt.Errorf("store payment outcome: %w", err)
	}

	if order.State.PaymentStatus() == domain.PaymentPaid {
		h.afterPaid(ctx, order)
		publish(ctx, h.events, h.logger, order, ports.EventOrderPaid)
	} else {
		publish(ctx, h.events, h.logger, order, ports.EventOrderPaymentFailed)
	}

	return &order, nil
}

func (h *ConfirmPaymentCommandHandler) apply(ctx context.Context, conf payment.Confirmation) (domain.Order, int64, error) {
	current, err := h.repo.GetByID(ctx, conf.OrderID)
	if err != nil {
		return domain.Order{}, 0, err
	}

	if conf.TransactionID != "" && conf.TransactionID == current.TransactionID {
		return domain.Order{}, 0, domain.ErrDuplicateConfirmation
	}

	next := current.Clone()
	now := h.now()

	switch conf.Status {
	case payment.StatusPaid:
		if conf.Amount != 0 && conf.Amount != current.TotalAmount {
			return domain.Order{}, 0, fmt.Errorf("%w: order %s total %d, callback %d",
				ErrAmountMismatch, current.ID, current.TotalAmount, conf.Amount)
		}
		err = next.ConfirmPayment(conf.TransactionID, now)
	default:
		err = next.FailPayment(conf.TransactionID, conf.Message, now)
	}
	if err != nil {
		return domain.Order{}, 0, err
	}

	return next, current.Version, nil
}

// afterPaid performs the follow-ups of a confirmed payment. The payment already
// happened, so failures are logged rather than returned.
func (h *ConfirmPaymentCommandHandler) afterPaid(ctx context.Context, order domain.Order) {
	if order.CouponCode != "" {
		if err := h.discounts.Redeem(ctx, order.CouponCode, order.BuyerID, order.ID); err != nil {
			h.logger.WarnContext(ctx, "failed to redeem discount code for paid order",
				"order_id", order.ID,
				"coupon_code", order.CouponCode,
				"error", err,
			)
		}
	}

	if err := h.carts.Clear(ctx, order.BuyerID); err != nil {
		h.logger.WarnContext(ctx, "failed to clear cart after payment",
			"order_id", order.ID,
			"buyer_id", order.BuyerID,
			"error", err,
		)
	}
}
