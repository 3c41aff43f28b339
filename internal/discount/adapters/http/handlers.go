package http

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/dejobratic/lantern/internal/auth"
	"github.com/dejobratic/lantern/internal/discount/app"
	"github.com/dejobratic/lantern/internal/discount/domain"
	"github.com/dejobratic/lantern/internal/discount/ports"
	"github.com/dejobratic/lantern/internal/httpx"
	ordersdomain "github.com/dejobratic/lantern/internal/orders/domain"
	"github.com/go-chi/chi/v5"
)

type DiscountService interface {
	Evaluate(ctx context.Context, rawCode, buyerID string, subtotal int64) (app.Evaluation, error)
	Create(ctx context.Context, input app.CreateInput) (*domain.Code, error)
	Get(ctx context.Context, rawCode string) (*domain.Code, error)
	SetActive(ctx context.Context, rawCode string, active bool) (*domain.Code, error)
}

type Handler struct {
	service DiscountService
}

func NewHandler(service DiscountService) *Handler {
	return &Handler{service: service}
}

// Register binds the discount routes. Code management is limited to operators and admins.
func (h *Handler) Register(r chi.Router) {
	r.Post("/v1/discounts/evaluate", h.evaluate)

	r.Group(func(r chi.Router) {
		r.Use(auth.RequireRole(ordersdomain.RoleOperator, ordersdomain.RoleAdmin))
		r.Post("/v1/discount-codes", h.create)
		r.Get("/v1/discount-codes/{code}", h.get)
		r.Patch("/v1/discount-codes/{code}", h.setActive)
	})
}

type evaluateRequest struct {
	Code        string `json:"code"`
	OrderAmount int64  `json:"orderAmount"`
}

type evaluateResponse struct {
	Valid          bool   `json:"valid"`
	Code           string `json:"code,omitempty"`
	DiscountAmount int64  `json:"discountAmount"`
	Reason         string `json:"reason,omitempty"`
}

// evaluate previews a code against an order amount. Rejections are a normal answer,
// not an error status.
func (h *Handler) evaluate(w http.ResponseWriter, r *http.Request) {
	var req evaluateRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.OrderAmount < 0 {
		httpx.WriteError(w, http.StatusBadRequest, "orderAmount must not be negative")
		return
	}

	actor, _ := auth.ActorFrom(r.Context())
	eval, err := h.service.Evaluate(r.Context(), req.Code, actor.ID, req.OrderAmount)
	if err != nil {
		if reason, ok := domain.ReasonOf(err); ok {
			httpx.WriteJSON(w, http.StatusOK, evaluateResponse{Valid: false, Reason: string(reason)})
			return
		}
		httpx.WriteError(w, http.StatusInternalServerError, "internal error")
		return
	}

	httpx.WriteJSON(w, http.StatusOK, evaluateResponse{Valid: true, Code: eval.Code, DiscountAmount: eval.DiscountAmount})
}

type createRequest struct {
	Code              string      `json:"code"`
	Kind              domain.Kind `json:"kind"`
	Value             int64       `json:"value"`
	MinOrderAmount    int64       `json:"min_order_amount"`
	MaxDiscountAmount *int64      `json:"max_discount_amount"`
	UsageLimitTotal   int         `json:"usage_limit_total"`
	UsageLimitPerUser int         `json:"usage_limit_per_user"`
	ValidFrom         time.Time   `json:"valid_from"`
	ValidUntil        time.Time   `json:"valid_until"`
	IsActive          *bool       `json:"is_active"`
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	var req createRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	active := true
	if req.IsActive != nil {
		active = *req.IsActive
	}

	code, err := h.service.Create(r.Context(), app.CreateInput{
		Code:              req.Code,
		Kind:              req.Kind,
		Value:             req.Value,
		MinOrderAmount:    req.MinOrderAmount,
		MaxDiscountAmount: req.MaxDiscountAmount,
		UsageLimitTotal:   req.UsageLimitTotal,
		UsageLimitPerUser: req.UsageLimitPerUser,
		ValidFrom:         req.ValidFrom,
		ValidUntil:        req.ValidUntil,
		IsActive:          active,
	})
	if err != nil {
		writeManagementError(w, err)
		return
	}

	httpx.WriteJSON(w, http.StatusCreated, map[string]any{"discount_code": code})
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	code, err := h.service.Get(r.Context(), chi.URLParam(r, "code"))
	if err != nil {
		writeManagementError(w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{"discount_code": code})
}

type setActiveRequest struct {
	IsActive *bool `json:"is_active"`
}

func (h *Handler) setActive(w http.ResponseWriter, r *http.Request) {
	var req setActiveRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.IsActive == nil {
		httpx.WriteError(w, http.StatusBadRequest, "is_active is required")
		return
	}

	code, err := h.service.SetActive(r.Context(), chi.URLParam(r, "code"), *req.IsActive)
	if err != nil {
		writeManagementError(w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{"discount_code": code})
}

func writeManagementError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrInvalidCode):
		httpx.WriteError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, ports.ErrAlreadyExists):
		httpx.WriteError(w, http.StatusConflict, "discount code already exists")
	case errors.Is(err, ports.ErrNotFound):
		httpx.WriteError(w, http.StatusNotFound, "discount code not found")
	default:
		httpx.WriteError(w, http.StatusInternalServerError, "internal error")
	}
}
