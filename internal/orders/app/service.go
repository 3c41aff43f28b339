package app

import (
	"context"
	"log/slog"
	"time"

	"github.com/dejobratic/lantern/internal/orders/app/commands"
	"github.com/dejobratic/lantern/internal/orders/app/queries"
	"github.com/dejobratic/lantern/internal/orders/domain"
	"github.com/dejobratic/lantern/internal/orders/metrics"
	"github.com/dejobratic/lantern/internal/orders/ports"
	"github.com/dejobratic/lantern/internal/payment"
	"github.com/dejobratic/lantern/internal/validity"
)

// Dependencies are the ports the order use cases run against.
type Dependencies struct {
	Repo        ports.OrderRepository
	Discounts   ports.Discounts
	Gateway     ports.PaymentGateway
	Idempotency ports.IdempotencyStore
	Events      ports.EventBus
	Carts       ports.CartClearer
	Notifier    ports.Notifier
	Tracker     validity.Tracker
}

type Options struct {
	Checkout    commands.CheckoutOptions
	Fulfillment commands.FulfillmentOptions
}

// Service bundles use cases for handling orders via the API.
type Service struct {
	gateway ports.PaymentGateway

	submitCheckout  commands.SubmitCheckoutHandler
	confirmPayment  commands.ConfirmPaymentHandler
	transitionOrder commands.TransitionOrderHandler

	getOrder           *queries.GetOrderQueryHandler
	listOrders         *queries.ListOrdersQueryHandler
	listPurchasedItems *queries.ListPurchasedItemsQueryHandler
	listStalePending   *queries.ListStalePendingQueryHandler
}

// NewService wires required dependencies. Every command handler is wrapped with
// tracing, logging and metrics.
func NewService(deps Dependencies, opts Options, logger *slog.Logger, m *metrics.Metrics) *Service {
	submit := commands.NewSubmitCheckoutCommandHandler(
		deps.Repo, deps.Discounts, deps.Gateway, deps.Idempotency, deps.Events, logger, opts.Checkout)
	confirm := commands.NewConfirmPaymentCommandHandler(
		deps.Repo, deps.Discounts, deps.Carts, deps.Events, logger)
	transition := commands.NewTransitionOrderCommandHandler(
		deps.Repo, deps.Events, deps.Notifier, logger, opts.Fulfillment)

	return &Service{
		gateway:            deps.Gateway,
		submitCheckout:     commands.NewObservableSubmitCheckoutHandler(submit, logger, m),
		confirmPayment:     commands.NewObservableConfirmPaymentHandler(confirm, logger, m),
		transitionOrder:    commands.NewObservableTransitionOrderHandler(transition, logger, m),
		getOrder:           queries.NewGetOrderQueryHandler(deps.Repo),
		listOrders:         queries.NewListOrdersQueryHandler(deps.Repo),
		listPurchasedItems: queries.NewListPurchasedItemsQueryHandler(deps.Repo, deps.Tracker),
		listStalePending:   queries.NewListStalePendingQueryHandler(deps.Repo),
	}
}

func (s *Service) SubmitCheckout(ctx context.Context, cmd commands.SubmitCheckoutCommand) (*commands.CheckoutResult, error) {
	return s.submitCheckout.Handle(ctx, cmd)
}

// HandlePaymentCallback verifies the processor's MAC before the outcome touches
// any order.
func (s *Service) HandlePaymentCallback(ctx context.Context, fields map[string]string) (*domain.Order, error) {
	conf, err := s.gateway.VerifyCallback(fields)
	if err != nil {
		return nil, err
	}
	return s.confirmPayment.Handle(ctx, commands.ConfirmPaymentCommand{Confirmation: conf})
}

func (s *Service) Transition(ctx context.Context, cmd commands.TransitionOrderCommand) (*domain.Order, error) {
	return s.transitionOrder.Handle(ctx, cmd)
}

func (s *Service) GetOrder(ctx context.Context, actor domain.Actor, id string) (*domain.Order, error) {
	return s.getOrder.Handle(ctx, queries.GetOrderQuery{OrderID: id, Actor: actor})
}

func (s *Service) ListOrders(ctx context.Context, actor domain.Actor, filter ports.ListFilter) ([]domain.Order, error) {
	return s.listOrders.Handle(ctx, queries.ListOrdersQuery{Actor: actor, Filter: filter})
}

func (s *Service) ListPurchasedItems(ctx context.Context, buyerID string) ([]queries.PurchasedItemView, error) {
	return s.listPurchasedItems.Handle(ctx, queries.ListPurchasedItemsQuery{BuyerID: buyerID})
}

func (s *Service) ListStalePending(ctx context.Context, olderThan time.Duration, limit int) ([]domain.Order, error) {
	return s.listStalePending.Handle(ctx, queries.ListStalePendingQuery{OlderThan: olderThan, Limit: limit})
}

var _ ports.PaymentGateway = (*payment.Gateway)(nil)
