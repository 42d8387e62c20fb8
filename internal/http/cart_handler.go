package http

import (
	"context"
	"net/http"
	"strconv"

	"github.com/fjod/shopcart/internal/domain"
	"github.com/fjod/shopcart/internal/service"
	"github.com/go-chi/chi/v5"
)

// CartService is the part of the cart service the handlers use.
type CartService interface {
	GetCart(ctx context.Context, userID string) (*domain.CartView, error)
	AddItem(ctx context.Context, userID, productID string, quantity int) (*domain.CartView, error)
	UpdateItemQuantity(ctx context.Context, userID, productID string, quantity int) (*domain.CartView, error)
	RemoveItem(ctx context.Context, userID, productID string) (*domain.CartView, error)
	ClearCart(ctx context.Context, userID string) (*domain.CartView, error)
	ListCarts(ctx context.Context, page, limit int) (*service.CartPage, error)
}

type CartHandler struct {
	service CartService
}

func NewCartHandler(service CartService) *CartHandler {
	return &CartHandler{service: service}
}

func (h *CartHandler) GetCart(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	view, err := h.service.GetCart(r.Context(), userID)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	respondCart(w, r, "", view)
}

func (h *CartHandler) AddItem(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	var req AddItemRequestDTO
	if !decodeAndValidate(w, r, &req) {
		return
	}

	view, err := h.service.AddItem(r.Context(), userID, req.ProductID, req.Quantity)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	respondCart(w, r, "Item added to cart successfully", view)
}

func (h *CartHandler) UpdateItem(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	var req UpdateItemRequestDTO
	if !decodeAndValidate(w, r, &req) {
		return
	}

	view, err := h.service.UpdateItemQuantity(r.Context(), userID, chi.URLParam(r, "productId"), *req.Quantity)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	respondCart(w, r, "Cart item updated successfully", view)
}

func (h *CartHandler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	view, err := h.service.RemoveItem(r.Context(), userID, chi.URLParam(r, "productId"))
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	respondCart(w, r, "Item removed from cart successfully", view)
}

func (h *CartHandler) ClearCart(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	view, err := h.service.ClearCart(r.Context(), userID)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	respondCart(w, r, "Cart cleared successfully", view)
}

// ListCarts serves the admin listing. Invalid page or limit values fall back
// to the defaults.
func (h *CartHandler) ListCarts(w http.ResponseWriter, r *http.Request) {
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	result, err := h.service.ListCarts(r.Context(), page, limit)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	carts := make([]CartDTO, 0, len(result.Carts))
	for _, view := range result.Carts {
		dto := toCartDTO(view)
		dto.UserID = view.UserID
		carts = append(carts, dto)
	}

	respondJSON(w, r, http.StatusOK, Envelope{
		Success: true,
		Data: map[string]any{
			"carts": carts,
			"pagination": PaginationDTO{
				Page:  result.Page,
				Pages: result.Pages,
				Total: result.Total,
			},
		},
	})
}

func requireUser(w http.ResponseWriter, r *http.Request) (string, bool) {
	user, ok := UserFromContext(r.Context())
	if !ok {
		respondError(w, r, http.StatusUnauthorized, "Not authorized to access this route")
		return "", false
	}
	return user.ID, true
}
