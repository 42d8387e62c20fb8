package repository

import (
	"context"
	"errors"

	"github.com/fjod/shopcart/internal/domain"
)

var (
	ErrCartNotFound    = errors.New("cart not found")
	ErrVersionConflict = errors.New("cart was modified concurrently")
)

// CartRepository defines the interface for cart data operations
// Consumers define this interface, not the MongoDB implementation
type CartRepository interface {
	GetCart(ctx context.Context, userID string) (*domain.Cart, error)
	// GetOrCreate returns the user's cart, inserting an empty one if none exists.
	GetOrCreate(ctx context.Context, userID string) (*domain.Cart, error)
	// Save writes items, totals and timestamps in a single document update.
	// It fails with ErrVersionConflict when the stored version moved on.
	Save(ctx context.Context, cart *domain.Cart) error
	ListCarts(ctx context.Context, page, limit int) ([]*domain.Cart, int64, error)
}
