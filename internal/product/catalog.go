package product

import (
	"context"
	"errors"

	"github.com/fjod/shopcart/internal/domain"
)

var (
	ErrProductNotFound    = errors.New("product not found")
	ErrCatalogUnavailable = errors.New("product catalog unavailable")
)

// Catalog is the product lookup the cart depends on. Fetch fails with
// ErrProductNotFound; FetchMany leaves unknown ids out of the index.
type Catalog interface {
	Fetch(ctx context.Context, productID string) (*domain.ProductSnapshot, error)
	FetchMany(ctx context.Context, productIDs []string) (domain.ProductIndex, error)
}
