package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/fjod/shopcart/internal/domain"
	"github.com/fjod/shopcart/internal/product"
	"github.com/fjod/shopcart/internal/service"
	"github.com/rs/zerolog"
)

// Envelope is the body of every API response.
type Envelope struct {
	Success bool         `json:"success"`
	Message string       `json:"message,omitempty"`
	Errors  []FieldError `json:"errors,omitempty"`
	Data    any          `json:"data,omitempty"`
}

type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

type ImageDTO struct {
	URL       string `json:"url"`
	Alt       string `json:"alt,omitempty"`
	IsPrimary bool   `json:"isPrimary"`
}

type ProductDTO struct {
	ID            string     `json:"id"`
	Name          string     `json:"name"`
	Slug          string     `json:"slug"`
	Price         float64    `json:"price"`
	StockQuantity int        `json:"stockQuantity"`
	Images        []ImageDTO `json:"images"`
}

type CartLineDTO struct {
	ProductID string `json:"productId"`
	// Product is null when the product no longer exists.
	Product  *ProductDTO `json:"product"`
	Quantity int         `json:"quantity"`
	AddedAt  time.Time   `json:"addedAt"`
}

type CartDTO struct {
	ID         string        `json:"id"`
	UserID     string        `json:"userId,omitempty"`
	Lines      []CartLineDTO `json:"lines"`
	TotalItems int           `json:"totalItems"`
	TotalPrice float64       `json:"totalPrice"`
	CreatedAt  time.Time     `json:"createdAt"`
	UpdatedAt  time.Time     `json:"updatedAt"`
}

type PaginationDTO struct {
	Page  int   `json:"page"`
	Pages int   `json:"pages"`
	Total int64 `json:"total"`
}

func toCartDTO(view *domain.CartView) CartDTO {
	lines := make([]CartLineDTO, 0, len(view.Items))
	for _, item := range view.Items {
		line := CartLineDTO{
			ProductID: item.ProductID,
			Quantity:  item.Quantity,
			AddedAt:   item.AddedAt,
		}
		if item.Product != nil {
			line.Product = toProductDTO(item.Product)
		}
		lines = append(lines, line)
	}
	return CartDTO{
		ID:         view.ID,
		Lines:      lines,
		TotalItems: view.TotalItems,
		TotalPrice: view.TotalPrice.InexactFloat64(),
		CreatedAt:  view.CreatedAt,
		UpdatedAt:  view.UpdatedAt,
	}
}

func toProductDTO(p *domain.ProductSnapshot) *ProductDTO {
	images := make([]ImageDTO, 0, len(p.Images))
	for _, img := range p.Images {
		images = append(images, ImageDTO{URL: img.URL, Alt: img.Alt, IsPrimary: img.IsPrimary})
	}
	return &ProductDTO{
		ID:            p.ID,
		Name:          p.Name,
		Slug:          p.Slug,
		Price:         p.Price.InexactFloat64(),
		StockQuantity: p.StockQuantity,
		Images:        images,
	}
}

func respondJSON(w http.ResponseWriter, r *http.Request, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		zerolog.Ctx(r.Context()).Error().Err(err).Msg("failed to encode response")
	}
}

func respondCart(w http.ResponseWriter, r *http.Request, message string, view *domain.CartView) {
	respondJSON(w, r, http.StatusOK, Envelope{
		Success: true,
		Message: message,
		Data:    map[string]CartDTO{"cart": toCartDTO(view)},
	})
}

func respondError(w http.ResponseWriter, r *http.Request, status int, message string) {
	respondJSON(w, r, status, Envelope{Success: false, Message: message})
}

// handleServiceError maps cart service errors to responses. Anything it does
// not recognise is logged and reported as an internal error.
func handleServiceError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, service.ErrInsufficientStock):
		respondError(w, r, http.StatusBadRequest, "Insufficient stock")
	case errors.Is(err, domain.ErrInvalidQuantity):
		respondError(w, r, http.StatusBadRequest, "Quantity must be at least 1")
	case errors.Is(err, product.ErrProductNotFound):
		respondError(w, r, http.StatusNotFound, "Product not found")
	case errors.Is(err, domain.ErrItemNotFound):
		respondError(w, r, http.StatusNotFound, "Item not found in cart")
	case errors.Is(err, service.ErrPersistenceConflict):
		respondError(w, r, http.StatusConflict, "Cart was modified concurrently, please retry")
	case errors.Is(err, product.ErrCatalogUnavailable):
		respondError(w, r, http.StatusServiceUnavailable, "Product catalog unavailable")
	case errors.Is(err, context.DeadlineExceeded):
		respondError(w, r, http.StatusGatewayTimeout, "Request timed out")
	default:
		zerolog.Ctx(r.Context()).Error().Ctx(r.Context()).Err(err).Msg("unhandled cart error")
		respondError(w, r, http.StatusInternalServerError, "Server error")
	}
}
