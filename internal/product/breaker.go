package product

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/fjod/shopcart/internal/domain"
	"github.com/sony/gobreaker/v2"
)

type BreakerConfig struct {
	// ConsecutiveFailures trips the breaker.
	ConsecutiveFailures uint32
	// OpenTimeout is how long the breaker stays open before probing again.
	OpenTimeout   time.Duration
	OnStateChange func(name string, from, to gobreaker.State)
}

// BreakerCatalog guards a Catalog with a circuit breaker. A missing product is
// a successful lookup and never counts towards tripping.
type BreakerCatalog struct {
	next Catalog
	cb   *gobreaker.CircuitBreaker[any]
}

func NewBreakerCatalog(next Catalog, cfg BreakerConfig) *BreakerCatalog {
	failures := cfg.ConsecutiveFailures
	if failures == 0 {
		failures = 5
	}
	settings := gobreaker.Settings{
		Name:        "product-catalog",
		MaxRequests: 1,
		Timeout:     cfg.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= failures
		},
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, ErrProductNotFound) || errors.Is(err, context.Canceled)
		},
		OnStateChange: cfg.OnStateChange,
	}
	return &BreakerCatalog{
		next: next,
		cb:   gobreaker.NewCircuitBreaker[any](settings),
	}
}

func (b *BreakerCatalog) Fetch(ctx context.Context, productID string) (*domain.ProductSnapshot, error) {
	v, err := b.cb.Execute(func() (any, error) {
		return b.next.Fetch(ctx, productID)
	})
	if err != nil {
		return nil, mapBreakerError(err)
	}
	return v.(*domain.ProductSnapshot), nil
}

func (b *BreakerCatalog) FetchMany(ctx context.Context, productIDs []string) (domain.ProductIndex, error) {
	v, err := b.cb.Execute(func() (any, error) {
		return b.next.FetchMany(ctx, productIDs)
	})
	if err != nil {
		return nil, mapBreakerError(err)
	}
	return v.(domain.ProductIndex), nil
}

func (b *BreakerCatalog) State() gobreaker.State {
	return b.cb.State()
}

func mapBreakerError(err error) error {
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return fmt.Errorf("%w: %v", ErrCatalogUnavailable, err)
	}
	return err
}
