package http

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/dejobratic/lantern/internal/auth"
	cartdomain "github.com/dejobratic/lantern/internal/cart/domain"
	discountdomain "github.com/dejobratic/lantern/internal/discount/domain"
	"github.com/dejobratic/lantern/internal/httpx"
	"github.com/dejobratic/lantern/internal/orders/app/commands"
	"github.com/dejobratic/lantern/internal/orders/app/queries"
	"github.com/dejobratic/lantern/internal/orders/domain"
	"github.com/dejobratic/lantern/internal/orders/ports"
	"github.com/dejobratic/lantern/internal/payment"
	"github.com/go-chi/chi/v5"
)

const defaultStaleAfter = 30 * time.Minute

// OrderService is the slice of the order application service the handlers use.
type OrderService interface {
	SubmitCheckout(ctx context.Context, cmd commands.SubmitCheckoutCommand) (*commands.CheckoutResult, error)
	HandlePaymentCallback(ctx context.Context, fields map[string]string) (*domain.Order, error)
	Transition(ctx context.Context, cmd commands.TransitionOrderCommand) (*domain.Order, error)
	GetOrder(ctx context.Context, actor domain.Actor, id string) (*domain.Order, error)
	ListOrders(ctx context.Context, actor domain.Actor, filter ports.ListFilter) ([]domain.Order, error)
	ListPurchasedItems(ctx context.Context, buyerID string) ([]queries.PurchasedItemView, error)
	ListStalePending(ctx context.Context, olderThan time.Duration, limit int) ([]domain.Order, error)
}

// CartReader loads the buyer's cart for checkout.
type CartReader interface {
	Get(ctx context.Context, ownerID string) (*cartdomain.Cart, error)
}

// Handler exposes HTTP endpoints for order operations.
type Handler struct {
	service OrderService
	carts   CartReader
	logger  *slog.Logger
}

func NewHandler(service OrderService, carts CartReader, logger *slog.Logger) *Handler {
	return &Handler{service: service, carts: carts, logger: logger}
}

// RegisterCallback binds the processor callback. It is authenticated by its MAC,
// not by a bearer token, so it must sit outside the auth middleware.
func (h *Handler) RegisterCallback(r chi.Router) {
	r.Post("/v1/payments/callback", h.paymentCallback)
}

// Register binds the authenticated order routes.
func (h *Handler) Register(r chi.Router) {
	r.Post("/v1/checkout", h.checkout)
	r.Get("/v1/orders", h.listOrders)
	r.Get("/v1/orders/{id}", h.getOrder)
	r.Post("/v1/orders/{id}/cancel", h.transition(commands.ActionCancel))
	r.Get("/v1/me/items", h.listItems)

	r.Group(func(r chi.Router) {
		r.Use(auth.RequireRole(domain.RoleOperator, domain.RoleAdmin))
		r.Post("/v1/orders/{id}/confirm-receipt", h.transition(commands.ActionConfirmReceipt))
		r.Post("/v1/orders/{id}/complete", h.transition(commands.ActionComplete))
		r.Post("/v1/orders/{id}/refund", h.transition(commands.ActionRefund))
	})

	r.Group(func(r chi.Router) {
		r.Use(auth.RequireRole(domain.RoleAdmin))
		r.Get("/v1/admin/orders/stale", h.listStale)
	})
}

type customerInfo struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	Phone string `json:"phone"`
}

type checkoutRequest struct {
	CustomerInfo     customerInfo `json:"customerInfo"`
	PaymentMethod    string       `json:"paymentMethod"`
	CouponCode       string       `json:"couponCode"`
	IdempotencyToken string       `json:"idempotencyToken"`
}

type checkoutResponse struct {
	Success        bool              `json:"success"`
	OrderID        string            `json:"orderId"`
	PaymentURL     string            `json:"paymentUrl"`
	Params         map[string]string `json:"params"`
	Subtotal       int64             `json:"subtotal"`
	DiscountAmount int64             `json:"discountAmount"`
	TotalAmount    int64             `json:"totalAmount"`
}

type checkoutError struct {
	Success bool     `json:"success"`
	Error   string   `json:"error"`
	Reason  string   `json:"reason,omitempty"`
	Details []string `json:"details,omitempty"`
}

func (h *Handler) checkout(w http.ResponseWriter, r *http.Request) {
	var req checkoutRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.WriteJSON(w, http.StatusBadRequest, checkoutError{Error: err.Error()})
		return
	}

	actor, _ := auth.ActorFrom(r.Context())
	cart, err := h.carts.Get(r.Context(), actor.ID)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "failed to load cart for checkout", "buyer_id", actor.ID, "error", err)
		httpx.WriteJSON(w, http.StatusInternalServerError, checkoutError{Error: "internal error"})
		return
	}

	token := req.IdempotencyToken
	if header := strings.TrimSpace(r.Header.Get("Idempotency-Key")); header != "" {
		token = header
	}

	result, err := h.service.SubmitCheckout(r.Context(), commands.SubmitCheckoutCommand{
		BuyerID:    actor.ID,
		Cart:       cart,
		CouponCode: req.CouponCode,
		Buyer: domain.Buyer{
			Name:  req.CustomerInfo.Name,
			Email: req.CustomerInfo.Email,
			Phone: req.CustomerInfo.Phone,
		},
		PaymentMethod:    domain.PaymentMethod(req.PaymentMethod),
		IdempotencyToken: token,
	})
	if err != nil {
		writeCheckoutError(w, err)
		return
	}

	httpx.WriteJSON(w, http.StatusOK, checkoutResponse{
		Success:        true,
		OrderID:        result.OrderID,
		PaymentURL:     result.RedirectURL,
		Params:         result.Fields,
		Subtotal:       result.Subtotal,
		DiscountAmount: result.DiscountAmount,
		TotalAmount:    result.TotalAmount,
	})
}

func writeCheckoutError(w http.ResponseWriter, err error) {
	var validationErr *commands.ValidationError
	var discountErr *discountdomain.Error
	switch {
	case errors.As(err, &validationErr):
		httpx.WriteJSON(w, http.StatusBadRequest, checkoutError{
			Error:   "checkout rejected",
			Reason:  string(validationErr.Reason),
			Details: validationErr.Details,
		})
	case errors.As(err, &discountErr):
		httpx.WriteJSON(w, http.StatusUnprocessableEntity, checkoutError{
			Error:  "discount code rejected",
			Reason: string(discountErr.Reason),
		})
	case errors.Is(err, commands.ErrCheckoutInProgress):
		httpx.WriteJSON(w, http.StatusConflict, checkoutError{Error: err.Error()})
	case errors.Is(err, commands.ErrPaymentSetup):
		httpx.WriteJSON(w, http.StatusBadGateway, checkoutError{Error: "payment setup failed"})
	default:
		httpx.WriteJSON(w, http.StatusInternalServerError, checkoutError{Error: "internal error"})
	}
}

// paymentCallback answers in the processor's plain-text protocol. Accepted and
// duplicate deliveries both answer 1|OK so the processor stops retrying.
func (h *Handler) paymentCallback(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")

	if err := r.ParseForm(); err != nil {
		h.logger.WarnContext(r.Context(), "unreadable payment callback", "error", err)
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte("0|malformed callback"))
		return
	}

	fields := make(map[string]string, len(r.PostForm))
	for key := range r.PostForm {
		fields[key] = r.PostForm.Get(key)
	}

	_, err := h.service.HandlePaymentCallback(r.Context(), fields)
	switch {
	case err == nil, errors.Is(err, domain.ErrDuplicateConfirmation):
		_, _ = w.Write([]byte("1|OK"))
	case errors.Is(err, payment.ErrInvalidSignature):
		h.logger.WarnContext(r.Context(), "dropped payment callback with invalid signature",
			"order_id", fields["MerchantTradeNo"])
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte("0|invalid signature"))
	case errors.Is(err, payment.ErrMalformedCallback):
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte("0|malformed callback"))
	case errors.Is(err, ports.ErrNotFound):
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte("0|order not found"))
	case errors.Is(err, domain.ErrStateConflict):
		w.WriteHeader(http.StatusConflict)
		_, _ = w.Write([]byte("0|order already processed"))
	case errors.Is(err, commands.ErrAmountMismatch):
		w.WriteHeader(http.StatusUnprocessableEntity)
		_, _ = w.Write([]byte("0|amount mismatch"))
	default:
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte("0|internal error"))
	}
}

type lineResponse struct {
	OfferingID     string `json:"offeringId"`
	OfferingName   string `json:"offeringName"`
	VenueID        string `json:"venueId"`
	VenueName      string `json:"venueName"`
	UnitPrice      int64  `json:"unitPrice"`
	Quantity       int    `json:"quantity"`
	DurationMonths int    `json:"durationMonths,omitempty"`
	BelieverName   string `json:"believerName"`
	BirthDate      string `json:"birthDate,omitempty"`
	WishText       string `json:"wishText,omitempty"`
}

type orderResponse struct {
	ID             string                 `json:"id"`
	BuyerID        string                 `json:"buyerId"`
	VenueID        string                 `json:"venueId"`
	Lines          []lineResponse         `json:"lines"`
	Subtotal       int64                  `json:"subtotal"`
	CouponCode     string                 `json:"couponCode,omitempty"`
	DiscountAmount int64                  `json:"discountAmount"`
	TotalAmount    int64                  `json:"totalAmount"`
	PlatformFee    int64                  `json:"platformFee"`
	VenuePayout    int64                  `json:"venuePayout"`
	PaymentMethod  string                 `json:"paymentMethod"`
	Status         string                 `json:"status"`
	PaymentStatus  string                 `json:"paymentStatus"`
	TransactionID  string                 `json:"transactionId,omitempty"`
	CancelReason   string                 `json:"cancelReason,omitempty"`
	Buyer          domain.Buyer           `json:"customerInfo"`
	Timeline       []domain.TimelineEntry `json:"timeline"`
	CreatedAt      time.Time              `json:"createdAt"`
	UpdatedAt      time.Time              `json:"updatedAt"`
}

func toOrderResponse(o domain.Order) orderResponse {
	lines := make([]lineResponse, 0, len(o.Lines))
	for _, l := range o.Lines {
		lines = append(lines, lineResponse(l))
	}
	timeline := o.Timeline
	if timeline == nil {
		timeline = []domain.TimelineEntry{}
	}
	return orderResponse{
		ID:             o.ID,
		BuyerID:        o.BuyerID,
		VenueID:        o.VenueID,
		Lines:          lines,
		Subtotal:       o.Subtotal,
		CouponCode:     o.CouponCode,
		DiscountAmount: o.DiscountAmount,
		TotalAmount:    o.TotalAmount,
		PlatformFee:    o.PlatformFee,
		VenuePayout:    o.VenuePayout,
		PaymentMethod:  string(o.PaymentMethod),
		Status:         string(o.State.Status()),
		PaymentStatus:  string(o.State.PaymentStatus()),
		TransactionID:  o.TransactionID,
		CancelReason:   o.CancelReason,
		Buyer:          o.Buyer,
		Timeline:       timeline,
		CreatedAt:      o.CreatedAt,
		UpdatedAt:      o.UpdatedAt,
	}
}

func toOrderResponses(orders []domain.Order) []orderResponse {
	out := make([]orderResponse, 0, len(orders))
	for _, o := range orders {
		out = append(out, toOrderResponse(o))
	}
	return out
}

func (h *Handler) getOrder(w http.ResponseWriter, r *http.Request) {
	actor, _ := auth.ActorFrom(r.Context())
	order, err := h.service.GetOrder(r.Context(), actor, chi.URLParam(r, "id"))
	if err != nil {
		h.writeOrderError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{"order": toOrderResponse(*order)})
}

func (h *Handler) listOrders(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	filter := ports.ListFilter{VenueID: query.Get("venue_id")}
	if statusParam := query.Get("status"); statusParam != "" {
		status := domain.Status(statusParam)
		filter.Status = &status
	}
	if page, err := strconv.Atoi(query.Get("page")); err == nil {
		filter.Page = page
	}
	if pageSize, err := strconv.Atoi(query.Get("page_size")); err == nil {
		filter.PageSize = pageSize
	}

	actor, _ := auth.ActorFrom(r.Context())
	orders, err := h.service.ListOrders(r.Context(), actor, filter)
	if err != nil {
		h.writeOrderError(w, r, err)
		return
	}

	normalized := filter.Normalize()
	httpx.WriteJSON(w, http.StatusOK, map[string]any{
		"orders":    toOrderResponses(orders),
		"page":      normalized.Page,
		"page_size": normalized.PageSize,
	})
}

type transitionRequest struct {
	Reason string `json:"reason"`
}

func (h *Handler) transition(action commands.Action) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req transitionRequest
		if err := httpx.DecodeJSON(r, &req); err != nil {
			httpx.WriteError(w, http.StatusBadRequest, err.Error())
			return
		}

		actor, _ := auth.ActorFrom(r.Context())
		order, err := h.service.Transition(r.Context(), commands.TransitionOrderCommand{
			OrderID: chi.URLParam(r, "id"),
			Action:  action,
			Actor:   actor,
			Reason:  req.Reason,
		})
		if err != nil {
			h.writeOrderError(w, r, err)
			return
		}
		httpx.WriteJSON(w, http.StatusOK, map[string]any{"order": toOrderResponse(*order)})
	}
}

type itemResponse struct {
	ID             string    `json:"id"`
	OrderID        string    `json:"orderId"`
	OfferingID     string    `json:"offeringId"`
	OfferingName   string    `json:"offeringName"`
	VenueName      string    `json:"venueName"`
	BelieverName   string    `json:"believerName"`
	StartDate      time.Time `json:"startDate"`
	ExpiryDate     time.Time `json:"expiryDate"`
	CertificateURL string    `json:"certificateUrl"`
	Status         string    `json:"status"`
	DaysLeft       int       `json:"daysLeft"`
}

func (h *Handler) listItems(w http.ResponseWriter, r *http.Request) {
	actor, _ := auth.ActorFrom(r.Context())
	views, err := h.service.ListPurchasedItems(r.Context(), actor.ID)
	if err != nil {
		h.writeOrderError(w, r, err)
		return
	}

	items := make([]itemResponse, 0, len(views))
	for _, v := range views {
		items = append(items, itemResponse{
			ID:             v.ID,
			OrderID:        v.OrderID,
			OfferingID:     v.OfferingID,
			OfferingName:   v.OfferingName,
			VenueName:      v.VenueName,
			BelieverName:   v.BelieverName,
			StartDate:      v.StartDate,
			ExpiryDate:     v.ExpiryDate,
			CertificateURL: v.CertificateURL,
			Status:         string(v.Status),
			DaysLeft:       v.DaysLeft,
		})
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{"items": items})
}

func (h *Handler) listStale(w http.ResponseWriter, r *http.Request) {
	olderThan := defaultStaleAfter
	if raw := r.URL.Query().Get("older_than"); raw != "" {
		parsed, err := time.ParseDuration(raw)
		if err != nil {
			httpx.WriteError(w, http.StatusBadRequest, "older_than must be a duration such as 30m")
			return
		}
		olderThan = parsed
	}
	if olderThan <= 0 {
		httpx.WriteError(w, http.StatusBadRequest, "older_than must be positive")
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	orders, err := h.service.ListStalePending(r.Context(), olderThan, limit)
	if err != nil {
		h.writeOrderError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{"orders": toOrderResponses(orders)})
}

func (h *Handler) writeOrderError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, ports.ErrNotFound):
		httpx.WriteError(w, http.StatusNotFound, "order not found")
	case errors.Is(err, domain.ErrForbidden):
		httpx.WriteError(w, http.StatusForbidden, "forbidden")
	case errors.Is(err, domain.ErrStateConflict):
		httpx.WriteError(w, http.StatusConflict, domain.ErrStateConflict.Error())
	case errors.Is(err, commands.ErrUnknownAction):
		httpx.WriteError(w, http.StatusBadRequest, err.Error())
	default:
		h.logger.ErrorContext(r.Context(), "order request failed", "error", err)
		httpx.WriteError(w, http.StatusInternalServerError, "internal error")
	}
}
