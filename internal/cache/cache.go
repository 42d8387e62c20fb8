package cache

import (
	"context"
	"errors"

	"github.com/fjod/shopcart/internal/domain"
)

// CartCache holds storage-form carts only. Totals read from it are whatever was
// last persisted; callers re-resolve prices before presenting them.
type CartCache interface {
	Get(ctx context.Context, userID string) (*domain.Cart, error)
	Set(ctx context.Context, userID string, cart *domain.Cart) error
	Delete(ctx context.Context, userID string) error
}

var ErrCacheMiss = errors.New("cache miss")
