package commands

import (
	"context"
	"errors"
	"log/slog"
	"time"

	discountdomain "github.com/dejobratic/lantern/internal/discount/domain"
	"github.com/dejobratic/lantern/internal/orders/domain"
	"github.com/dejobratic/lantern/internal/orders/metrics"
	"github.com/dejobratic/lantern/internal/telemetry"
	"go.opentelemetry.io/otel/attribute"
)

type ObservableSubmitCheckoutHandler struct {
	handler SubmitCheckoutHandler
	logger  *slog.Logger
	metrics *metrics.Metrics
}

func NewObservableSubmitCheckoutHandler(handler SubmitCheckoutHandler, logger *slog.Logger, metrics *metrics.Metrics) *ObservableSubmitCheckoutHandler {
	return &ObservableSubmitCheckoutHandler{
		handler: handler,
		logger:  logger,
		metrics: metrics,
	}
}

func (o *ObservableSubmitCheckoutHandler) Handle(ctx context.Context, cmd SubmitCheckoutCommand) (*CheckoutResult, error) {
	ctx, span := telemetry.StartSpan(ctx, "SubmitCheckoutCommand.Handle")
	defer span.End()

	start := time.Now()
	outcome := metrics.OutcomeError
	defer func() {
		o.metrics.RecordCheckout(ctx, outcome, time.Since(start).Seconds())
	}()

	lineCount := 0
	if cmd.Cart != nil {
		lineCount = len(cmd.Cart.Lines)
	}
	telemetry.AddSpanAttributes(span,
		attribute.String("buyer.id", cmd.BuyerID),
		attribute.Int("cart.lines", lineCount),
		attribute.String("payment.method", string(cmd.PaymentMethod)),
		attribute.Bool("coupon.present", cmd.CouponCode != ""),
	)

	o.logger.InfoContext(ctx, "submitting checkout",
		"buyer_id", cmd.BuyerID,
		"lines", lineCount,
		"payment_method", cmd.PaymentMethod,
		"coupon_code", cmd.CouponCode,
	)

	result, err := o.handler.Handle(ctx, cmd)
	if err != nil {
		telemetry.RecordSpanError(span, err)

		var validationErr *ValidationError
		var discountErr *discountdomain.Error
		switch {
		case errors.As(err, &validationErr):
			outcome = metrics.OutcomeRejected
			o.logger.WarnContext(ctx, "checkout rejected",
				"buyer_id", cmd.BuyerID,
				"reason", validationErr.Reason,
				"details", validationErr.Details,
			)
		case errors.As(err, &discountErr):
			outcome = metrics.OutcomeRejected
			o.metrics.RecordDiscountRejected(ctx, string(discountErr.Reason))
			o.logger.WarnContext(ctx, "checkout discount refused",
				"buyer_id", cmd.BuyerID,
				"coupon_code", discountErr.Code,
				"reason", discountErr.Reason,
			)
		case errors.Is(err, ErrCheckoutInProgress):
			outcome = metrics.OutcomeDuplicate
			o.logger.WarnContext(ctx, "duplicate checkout while first is in flight", "buyer_id", cmd.BuyerID)
		default:
			o.logger.ErrorContext(ctx, "failed to submit checkout",
				"error", err,
				"buyer_id", cmd.BuyerID,
			)
		}
		return nil, err
	}

	outcome = metrics.OutcomeSuccess
	if result.Replayed {
		outcome = metrics.OutcomeReplayed
	}

	telemetry.AddSpanAttributes(span,
		attribute.String("order.id", result.OrderID),
		attribute.Int64("order.total_amount", result.TotalAmount),
		attribute.Bool("checkout.replayed", result.Replayed),
	)

	o.logger.InfoContext(ctx, "checkout submitted",
		"order_id", result.OrderID,
		"buyer_id", cmd.BuyerID,
		"total_amount", result.TotalAmount,
		"replayed", result.Replayed,
	)

	telemetry.SetSpanSuccess(span)
	return result, nil
}

type ObservableConfirmPaymentHandler struct {
	handler ConfirmPaymentHandler
	logger  *slog.Logger
	metrics *metrics.Metrics
}

func NewObservableConfirmPaymentHandler(handler ConfirmPaymentHandler, logger *slog.Logger, metrics *metrics.Metrics) *ObservableConfirmPaymentHandler {
	return &ObservableConfirmPaymentHandler{
		handler: handler,
		logger:  logger,
		metrics: metrics,
	}
}

func (o *ObservableConfirmPaymentHandler) Handle(ctx context.Context, cmd ConfirmPaymentCommand) (*domain.Order, error) {
	ctx, span := telemetry.StartSpan(ctx, "ConfirmPaymentCommand.Handle")
	defer span.End()

	conf := cmd.Confirmation
	telemetry.AddSpanAttributes(span,
		attribute.String("order.id", conf.OrderID),
		attribute.String("payment.transaction_id", conf.TransactionID),
		attribute.String("payment.status", string(conf.Status)),
	)

	o.logger.InfoContext(ctx, "applying payment outcome",
		"order_id", conf.OrderID,
		"transaction_id", conf.TransactionID,
		"payment_status", conf.Status,
	)

	order, err := o.handler.Handle(ctx, cmd)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrDuplicateConfirmation):
			o.metrics.RecordPaymentCallback(ctx, string(conf.Status), metrics.OutcomeDuplicate)
			o.logger.InfoContext(ctx, "duplicate payment callback dropped",
				"order_id", conf.OrderID,
				"transaction_id", conf.TransactionID,
			)
			telemetry.SetSpanSuccess(span)
		case errors.Is(err, domain.ErrStateConflict), errors.Is(err, ErrAmountMismatch):
			o.metrics.RecordPaymentCallback(ctx, string(conf.Status), metrics.OutcomeRejected)
			telemetry.RecordSpanError(span, err)
			o.logger.WarnContext(ctx, "payment callback rejected",
				"order_id", conf.OrderID,
				"error", err,
			)
		default:
			o.metrics.RecordPaymentCallback(ctx, string(conf.Status), metrics.OutcomeError)
			telemetry.RecordSpanError(span, err)
			o.logger.ErrorContext(ctx, "failed to apply payment outcome",
				"order_id", conf.OrderID,
				"error", err,
			)
		}
		return nil, err
	}

	o.metrics.RecordPaymentCallback(ctx, string(conf.Status), metrics.OutcomeSuccess)
	telemetry.AddSpanAttributes(span, attribute.String("order.state", order.State.String()))
	o.logger.InfoContext(ctx, "payment outcome applied",
		"order_id", order.ID,
		"state", order.State.String(),
	)

	telemetry.SetSpanSuccess(span)
	return order, nil
}

type ObservableTransitionOrderHandler struct {
	handler TransitionOrderHandler
	logger  *slog.Logger
	metrics *metrics.Metrics
}

func NewObservableTransitionOrderHandler(handler TransitionOrderHandler, logger *slog.Logger, metrics *metrics.Metrics) *ObservableTransitionOrderHandler {
	return &ObservableTransitionOrderHandler{
		handler: handler,
		logger:  logger,
		metrics: metrics,
	}
}

func (o *ObservableTransitionOrderHandler) Handle(ctx context.Context, cmd TransitionOrderCommand) (*domain.Order, error) {
	ctx, span := telemetry.StartSpan(ctx, "TransitionOrderCommand.Handle")
	defer span.End()

	telemetry.AddSpanAttributes(span,
		attribute.String("order.id", cmd.OrderID),
		attribute.String("order.action", string(cmd.Action)),
		attribute.String("actor.role", string(cmd.Actor.Role)),
	)

	order, err := o.handler.Handle(ctx, cmd)
	if err != nil {
		telemetry.RecordSpanError(span, err)
		if errors.Is(err, domain.ErrStateConflict) || errors.Is(err, domain.ErrForbidden) {
			o.metrics.RecordTransition(ctx, string(cmd.Action), metrics.OutcomeRejected)
			o.logger.WarnContext(ctx, "order transition rejected",
				"order_id", cmd.OrderID,
				"action", cmd.Action,
				"actor_id", cmd.Actor.ID,
				"error", err,
			)
			return nil, err
		}
		o.metrics.RecordTransition(ctx, string(cmd.Action), metrics.OutcomeError)
		o.logger.ErrorContext(ctx, "failed to transition order",
			"order_id", cmd.OrderID,
			"action", cmd.Action,
			"error", err,
		)
		return nil, err
	}

	o.metrics.RecordTransition(ctx, string(cmd.Action), metrics.OutcomeSuccess)
	o.logger.InfoContext(ctx, "order transitioned",
		"order_id", order.ID,
		"action", cmd.Action,
		"actor_id", cmd.Actor.ID,
		"state", order.State.String(),
	)

	telemetry.SetSpanSuccess(span)
	return order, nil
}
