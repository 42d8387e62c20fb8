package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/fjod/shopcart/internal/cache"
	"github.com/fjod/shopcart/internal/domain"
	"github.com/fjod/shopcart/internal/logger"
	"github.com/fjod/shopcart/internal/metrics"
	"github.com/fjod/shopcart/internal/product"
	"github.com/fjod/shopcart/internal/repository"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/singleflight"
)

var (
	ErrInsufficientStock   = errors.New("insufficient stock")
	ErrPersistenceConflict = errors.New("cart was modified concurrently, retries exhausted")
)

const (
	defaultMaxRetries = 5
	defaultPageLimit  = 10
	maxPageLimit      = 100
)

var tracer = otel.Tracer("github.com/fjod/shopcart/internal/service")

type CartService struct {
	repo       repository.CartRepository
	cache      cache.CartCache
	catalog    product.Catalog
	metrics    *metrics.Cart
	maxRetries int
	now        func() time.Time
	sfg        singleflight.Group // Prevents cache stampede
}

type Option func(*CartService)

// WithMaxRetries bounds how many times a mutation is replayed after a
// concurrent write. Values below one are ignored.
func WithMaxRetries(n int) Option {
	return func(s *CartService) {
		if n > 0 {
			s.maxRetries = n
		}
	}
}

func WithMetrics(m *metrics.Cart) Option {
	return func(s *CartService) { s.metrics = m }
}

func WithClock(now func() time.Time) Option {
	return func(s *CartService) { s.now = now }
}

func NewCartService(repo repository.CartRepository, cache cache.CartCache, catalog product.Catalog, opts ...Option) *CartService {
	s := &CartService{
		repo:       repo,
		cache:      cache,
		catalog:    catalog,
		maxRetries: defaultMaxRetries,
		now:        func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CartPage is one page of the admin cart listing.
type CartPage struct {
	Carts []*domain.CartView
	Page  int
	Limit int
	Pages int
	Total int64
}

// GetCart returns the user's cart priced against the live catalog, creating an
// empty cart on first access. Totals that drifted from the stored ones are
// written back; losing that write to a concurrent mutation is fine since the
// winner stored fresh totals itself.
func (s *CartService) GetCart(ctx context.Context, userID string) (*domain.CartView, error) {
	ctx, span := tracer.Start(ctx, "CartService GetCart", trace.WithAttributes(attribute.String("user.id", userID)))
	defer span.End()

	log := zerolog.Ctx(ctx).With().
		Str(logger.KeyTag, "CartService GetCart").
		Str(logger.KeyUserID, userID).
		Logger()

	cart, err := s.load(ctx, userID)
	if err != nil {
		handleError(span, err)
		log.Error().Ctx(ctx).Err(err).Msg("failed loading cart")
		return nil, err
	}

	products, err := s.catalog.FetchMany(ctx, cart.ProductIDs())
	if err != nil {
		err = fmt.Errorf("failed to resolve cart products: %w", err)
		handleError(span, err)
		log.Error().Ctx(ctx).Err(err).Msg(err.Error())
		return nil, err
	}

	stored := cart.Clone()
	cart.RecomputeTotals(products)
	if cart.TotalsEqual(stored) {
		return cart.View(products), nil
	}

	log.Debug().Ctx(ctx).
		Int("storedItems", stored.TotalItems).
		Str("storedPrice", stored.TotalPrice.String()).
		Str("currentPrice", cart.TotalPrice.String()).
		Msg("cart totals drifted, persisting")

	err = s.repo.Save(ctx, cart)
	switch {
	case errors.Is(err, repository.ErrVersionConflict):
		s.metrics.ObserveConflict()
		log.Debug().Ctx(ctx).Msg("cart changed while refreshing totals")
	case err != nil:
		err = fmt.Errorf("failed to persist refreshed totals: %w", err)
		handleError(span, err)
		log.Error().Ctx(ctx).Err(err).Msg(err.Error())
		return nil, err
	}
	s.invalidateCache(ctx, userID)

	return cart.View(products), nil
}

// load reads the storage-form cart through the cache. The result is a private
// copy the caller may modify.
func (s *CartService) load(ctx context.Context, userID string) (*domain.Cart, error) {
	// Use singleflight to prevent multiple concurrent cache misses for same key
	v, err, _ := s.sfg.Do(userID, func() (interface{}, error) {
		cart, err := s.cache.Get(ctx, userID)
		if err == nil {
			return cart, nil
		}
		if !errors.Is(err, cache.ErrCacheMiss) {
			zerolog.Ctx(ctx).Warn().Ctx(ctx).Err(err).Str(logger.KeyUserID, userID).Msg("cache get failed, reading store")
		}

		cart, err = s.repo.GetOrCreate(ctx, userID)
		if err != nil {
			return nil, fmt.Errorf("failed to get cart: %w", err)
		}

		// set before returning so a following mutation's invalidation cannot be
		// overtaken by this write
		setCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), time.Second)
		defer cancel()
		if errSet := s.cache.Set(setCtx, userID, cart); errSet != nil {
			zerolog.Ctx(ctx).Warn().Ctx(ctx).Err(errSet).Str(logger.KeyUserID, userID).Msg("cache set failed")
		}

		return cart, nil
	})
	if err != nil {
		return nil, err
	}

	return v.(*domain.Cart).Clone(), nil
}

// AddItem adds quantity units of a product, merging into an existing line.
// Stock is checked against the requested quantity only.
func (s *CartService) AddItem(ctx context.Context, userID, productID string, quantity int) (view *domain.CartView, err error) {
	ctx, span := tracer.Start(ctx, "CartService AddItem", trace.WithAttributes(
		attribute.String("user.id", userID),
		attribute.String("product.id", productID),
		attribute.Int("quantity", quantity),
	))
	defer span.End()
	defer func() { s.observe("add", err) }()

	if quantity < 1 {
		return nil, domain.ErrInvalidQuantity
	}

	p, err := s.catalog.Fetch(ctx, productID)
	if err != nil {
		handleError(span, err)
		return nil, err
	}
	if p.StockQuantity < quantity {
		err = fmt.Errorf("%w: %d available", ErrInsufficientStock, p.StockQuantity)
		handleError(span, err)
		return nil, err
	}

	return s.mutate(ctx, "CartService AddItem", userID, func(cart *domain.Cart) error {
		return cart.AddItem(productID, quantity, s.now())
	})
}

// UpdateItemQuantity replaces the quantity of a line; zero removes it. The
// product must still exist, and stock is only checked for a positive quantity.
func (s *CartService) UpdateItemQuantity(ctx context.Context, userID, productID string, quantity int) (view *domain.CartView, err error) {
	ctx, span := tracer.Start(ctx, "CartService UpdateItemQuantity", trace.WithAttributes(
		attribute.String("user.id", userID),
		attribute.String("product.id", productID),
		attribute.Int("quantity", quantity),
	))
	defer span.End()
	defer func() { s.observe("update", err) }()

	p, err := s.catalog.Fetch(ctx, productID)
	if err != nil {
		handleError(span, err)
		return nil, err
	}
	if quantity > 0 && p.StockQuantity < quantity {
		err = fmt.Errorf("%w: %d available", ErrInsufficientStock, p.StockQuantity)
		handleError(span, err)
		return nil, err
	}

	return s.mutate(ctx, "CartService UpdateItemQuantity", userID, func(cart *domain.Cart) error {
		return cart.UpdateItemQuantity(productID, quantity)
	})
}

// RemoveItem drops a line. Removing a product that is not in the cart succeeds.
func (s *CartService) RemoveItem(ctx context.Context, userID, productID string) (view *domain.CartView, err error) {
	ctx, span := tracer.Start(ctx, "CartService RemoveItem", trace.WithAttributes(
		attribute.String("user.id", userID),
		attribute.String("product.id", productID),
	))
	defer span.End()
	defer func() { s.observe("remove", err) }()

	return s.mutate(ctx, "CartService RemoveItem", userID, func(cart *domain.Cart) error {
		cart.RemoveItem(productID)
		return nil
	})
}

// ClearCart empties the cart and keeps the record.
func (s *CartService) ClearCart(ctx context.Context, userID string) (view *domain.CartView, err error) {
	ctx, span := tracer.Start(ctx, "CartService ClearCart", trace.WithAttributes(attribute.String("user.id", userID)))
	defer span.End()
	defer func() { s.observe("clear", err) }()

	return s.mutate(ctx, "CartService ClearCart", userID, func(cart *domain.Cart) error {
		cart.Clear()
		return nil
	})
}

// mutate runs load, apply, reprice and save against the store, replaying the
// whole sequence when another writer saved the cart first. Prices are
// re-resolved on every attempt.
func (s *CartService) mutate(ctx context.Context, tag, userID string, apply func(*domain.Cart) error) (*domain.CartView, error) {
	span := trace.SpanFromContext(ctx)
	log := zerolog.Ctx(ctx).With().
		Str(logger.KeyTag, tag).
		Str(logger.KeyUserID, userID).
		Logger()

	for attempt := 1; attempt <= s.maxRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		cart, err := s.repo.GetOrCreate(ctx, userID)
		if err != nil {
			err = fmt.Errorf("failed to get cart: %w", err)
			handleError(span, err)
			log.Error().Ctx(ctx).Err(err).Msg(err.Error())
			return nil, err
		}

		if err := apply(cart); err != nil {
			handleError(span, err)
			return nil, err
		}

		products, err := s.catalog.FetchMany(ctx, cart.ProductIDs())
		if err != nil {
			err = fmt.Errorf("failed to resolve cart products: %w", err)
			handleError(span, err)
			log.Error().Ctx(ctx).Err(err).Msg(err.Error())
			return nil, err
		}
		cart.RecomputeTotals(products)

		err = s.repo.Save(ctx, cart)
		if errors.Is(err, repository.ErrVersionConflict) {
			s.metrics.ObserveConflict()
			log.Debug().Ctx(ctx).Int("attempt", attempt).Msg("cart version conflict, retrying")
			continue
		}
		if err != nil {
			err = fmt.Errorf("failed to save cart: %w", err)
			handleError(span, err)
			log.Error().Ctx(ctx).Err(err).Msg(err.Error())
			return nil, err
		}

		s.invalidateCache(ctx, userID)
		log.Info().Ctx(ctx).
			Int("totalItems", cart.TotalItems).
			Str("totalPrice", cart.TotalPrice.String()).
			Msg("cart saved")
		return cart.View(products), nil
	}

	handleError(span, ErrPersistenceConflict)
	log.Warn().Ctx(ctx).Int("attempts", s.maxRetries).Msg(ErrPersistenceConflict.Error())
	return nil, ErrPersistenceConflict
}

// ListCarts returns carts newest first, priced against the live catalog. Totals
// are projected only; nothing is written back.
func (s *CartService) ListCarts(ctx context.Context, page, limit int) (*CartPage, error) {
	ctx, span := tracer.Start(ctx, "CartService ListCarts")
	defer span.End()

	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = defaultPageLimit
	}
	if limit > maxPageLimit {
		limit = maxPageLimit
	}

	carts, total, err := s.repo.ListCarts(ctx, page, limit)
	if err != nil {
		handleError(span, err)
		return nil, err
	}

	var ids []string
	seen := make(map[string]struct{})
	for _, cart := range carts {
		for _, id := range cart.ProductIDs() {
			if _, ok := seen[id]; !ok {
				seen[id] = struct{}{}
				ids = append(ids, id)
			}
		}
	}
	products, err := s.catalog.FetchMany(ctx, ids)
	if err != nil {
		err = fmt.Errorf("failed to resolve cart products: %w", err)
		handleError(span, err)
		return nil, err
	}

	views := make([]*domain.CartView, 0, len(carts))
	for _, cart := range carts {
		cart.RecomputeTotals(products)
		views = append(views, cart.View(products))
	}

	return &CartPage{
		Carts: views,
		Page:  page,
		Limit: limit,
		Pages: int((total + int64(limit) - 1) / int64(limit)),
		Total: total,
	}, nil
}

func (s *CartService) invalidateCache(ctx context.Context, userID string) {
	delCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), time.Second)
	defer cancel()
	if err := s.cache.Delete(delCtx, userID); err != nil {
		zerolog.Ctx(ctx).Warn().Ctx(ctx).Err(err).Str(logger.KeyUserID, userID).Msg("cache invalidate failed")
	}
}

func (s *CartService) observe(op string, err error) {
	switch {
	case err == nil:
		s.metrics.ObserveMutation(op, metrics.ResultOK)
	case isRejection(err):
		s.metrics.ObserveMutation(op, metrics.ResultRejected)
	default:
		s.metrics.ObserveMutation(op, metrics.ResultError)
	}
}

func isRejection(err error) bool {
	return errors.Is(err, domain.ErrItemNotFound) ||
		errors.Is(err, domain.ErrInvalidQuantity) ||
		errors.Is(err, product.ErrProductNotFound) ||
		errors.Is(err, ErrInsufficientStock)
}

func handleError(span trace.Span, err error) {
	if err == nil {
		return
	}
	span.SetStatus(codes.Error, err.Error())
	span.RecordError(err)
}
