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
	"github.com/google/uuid"
)

var ErrUnknownAction = errors.New("unknown order action")

// Action is an operator or buyer driven lifecycle event.
type Action string

const (
	ActionConfirmReceipt Action = "confirm_receipt"
	ActionComplete       Action = "complete"
	ActionCancel         Action = "cancel"
	ActionRefund         Action = "refund"
)

type TransitionOrderCommand struct {
	OrderID string
	Action  Action
	Actor   domain.Actor
	Reason  string
}

func (c TransitionOrderCommand) Validate() error {
	if strings.TrimSpace(c.OrderID) == "" {
		return errors.New("order_id is required")
	}
	switch c.Action {
	case ActionConfirmReceipt, ActionComplete, ActionCancel, ActionRefund:
		return nil
	default:
		return fmt.Errorf("%w: %q", ErrUnknownAction, c.Action)
	}
}

type TransitionOrderHandler interface {
	Handle(ctx context.Context, cmd TransitionOrderCommand) (*domain.Order, error)
}

// FulfillmentOptions controls the purchased items issued on completion.
type FulfillmentOptions struct {
	DefaultDurationMonths int
	CertificateBaseURL    string
}

type TransitionOrderCommandHandler struct {
	repo      ports.OrderRepository
	events    ports.EventBus
	notifier  ports.Notifier
	logger    *slog.Logger
	opts      FulfillmentOptions
	now       func() time.Time
	newItemID func() string
}

func NewTransitionOrderCommandHandler(
	repo ports.OrderRepository,
	events ports.EventBus,
	notifier ports.Notifier,
	logger *slog.Logger,
	opts FulfillmentOptions,
) *TransitionOrderCommandHandler {
	if opts.DefaultDurationMonths <= 0 {
		opts.DefaultDurationMonths = 12
	}
	return &TransitionOrderCommandHandler{
		repo:      repo,
		events:    events,
		notifier:  notifier,
		logger:    logger,
		opts:      opts,
		now:       func() time.Time { return time.Now().UTC() },
		newItemID: func() string { return uuid.Must(uuid.NewV7()).String() },
	}
}

func (h *TransitionOrderCommandHandler) Handle(ctx context.Context, cmd TransitionOrderCommand) (*domain.Order, error) {
	if err := cmd.Validate(); err != nil {
		return nil, err
	}

	current, err := h.repo.GetByID(ctx, cmd.OrderID)
	if err != nil {
		return nil, err
	}

	if !authorized(cmd.Actor, cmd.Action, *current) {
		return nil, fmt.Errorf("%w: %s %s on order %s", domain.ErrForbidden, cmd.Actor.Role, cmd.Action, current.ID)
	}

	next := current.Clone()
	now := h.now()

	var items []domain.PurchasedItem
	var eventType ports.EventType
	switch cmd.Action {
	case ActionConfirmReceipt:
		err = next.ConfirmReceipt(now)
		eventType = ports.EventOrderProcessing
	case ActionComplete:
		err = next.Complete(now)
		eventType = ports.EventOrderCompleted
		if err == nil {
			items = domain.IssueItems(next, now, h.opts.DefaultDurationMonths, h.opts.CertificateBaseURL, h.newItemID)
		}
	case ActionCancel:
		err = next.Cancel(cmd.Reason, now)
		eventType = ports.EventOrderCancelled
	case ActionRefund:
		err = next.Refund(now)
		eventType = ports.EventOrderRefunded
	}
	if err != nil {
		return nil, err
	}

	if err := h.repo.Transition(ctx, next, current.Version, items); err != nil {
		return nil, fmt.Errorf("store %s: %w", cmd.Action, err)
	}

	publish(ctx, h.events, h.logger, next, eventType)

	if cmd.Action == ActionComplete {
		if err := h.notifier.OrderCompleted(ctx, next, items); err != nil {
			h.logger.WarnContext(ctx, "failed to notify order completion",
				"order_id", next.ID,
				"error", err,
			)
		}
	}

	return &next, nil
}

// Buyers may only cancel their own orders; everything else is venue or admin work.
func authorized(actor domain.Actor, action Action, order domain.Order) bool {
	if action == ActionCancel {
		return actor.CanView(order)
	}
	return actor.CanOperate(order)
}
