package http

import (
	"context"
	"errors"
	"net/http"

	"github.com/dejobratic/lantern/internal/auth"
	"github.com/dejobratic/lantern/internal/cart/app"
	"github.com/dejobratic/lantern/internal/cart/domain"
	"github.com/dejobratic/lantern/internal/httpx"
	"github.com/go-chi/chi/v5"
)

// CartService is the slice of the cart application service the handlers use.
type CartService interface {
	Get(ctx context.Context, ownerID string) (*domain.Cart, error)
	AddLine(ctx context.Context, ownerID string, line domain.Line) (*domain.Cart, error)
	UpdateLine(ctx context.Context, ownerID, offeringID string, patch domain.Patch) (*domain.Cart, error)
	RemoveLine(ctx context.Context, ownerID, offeringID string) (*domain.Cart, error)
	Clear(ctx context.Context, ownerID string) error
}

// Handler exposes the authenticated buyer's cart.
type Handler struct {
	service CartService
}

func NewHandler(service CartService) *Handler {
	return &Handler{service: service}
}

// Register binds the cart routes. The router must already authenticate requests.
func (h *Handler) Register(r chi.Router) {
	r.Get("/v1/cart", h.getCart)
	r.Delete("/v1/cart", h.clearCart)
	r.Post("/v1/cart/lines", h.addLine)
	r.Patch("/v1/cart/lines/{offeringID}", h.updateLine)
	r.Delete("/v1/cart/lines/{offeringID}", h.removeLine)
}

type cartResponse struct {
	Cart     *domain.Cart `json:"cart"`
	Subtotal int64        `json:"subtotal"`
}

func respondCart(w http.ResponseWriter, cart *domain.Cart) {
	httpx.WriteJSON(w, http.StatusOK, cartResponse{Cart: cart, Subtotal: cart.Subtotal()})
}

func (h *Handler) getCart(w http.ResponseWriter, r *http.Request) {
	actor, _ := auth.ActorFrom(r.Context())
	cart, err := h.service.Get(r.Context(), actor.ID)
	if err != nil {
		writeCartError(w, err)
		return
	}
	respondCart(w, cart)
}

func (h *Handler) clearCart(w http.ResponseWriter, r *http.Request) {
	actor, _ := auth.ActorFrom(r.Context())
	if err := h.service.Clear(r.Context(), actor.ID); err != nil {
		writeCartError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) addLine(w http.ResponseWriter, r *http.Request) {
	var line domain.Line
	if err := httpx.DecodeJSON(r, &line); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	if line.Quantity == 0 {
		line.Quantity = 1
	}

	actor, _ := auth.ActorFrom(r.Context())
	cart, err := h.service.AddLine(r.Context(), actor.ID, line)
	if err != nil {
		writeCartError(w, err)
		return
	}
	respondCart(w, cart)
}

func (h *Handler) updateLine(w http.ResponseWriter, r *http.Request) {
	var patch domain.Patch
	if err := httpx.DecodeJSON(r, &patch); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	actor, _ := auth.ActorFrom(r.Context())
	cart, err := h.service.UpdateLine(r.Context(), actor.ID, chi.URLParam(r, "offeringID"), patch)
	if err != nil {
		writeCartError(w, err)
		return
	}
	respondCart(w, cart)
}

func (h *Handler) removeLine(w http.ResponseWriter, r *http.Request) {
	actor, _ := auth.ActorFrom(r.Context())
	cart, err := h.service.RemoveLine(r.Context(), actor.ID, chi.URLParam(r, "offeringID"))
	if err != nil {
		writeCartError(w, err)
		return
	}
	respondCart(w, cart)
}

func writeCartError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, app.ErrOwnerRequired):
		httpx.WriteError(w, http.StatusUnauthorized, err.Error())
	case errors.Is(err, domain.ErrLineNotFound):
		httpx.WriteError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, domain.ErrInvalidLine), errors.Is(err, domain.ErrInvalidQuantity):
		httpx.WriteError(w, http.StatusBadRequest, err.Error())
	default:
		httpx.WriteError(w, http.StatusInternalServerError, "internal error")
	}
}
