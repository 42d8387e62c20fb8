package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fjod/shopcart/internal/account"
	c "github.com/fjod/shopcart/internal/cache"
	"github.com/fjod/shopcart/internal/config"
	h "github.com/fjod/shopcart/internal/http"
	"github.com/fjod/shopcart/internal/logger"
	"github.com/fjod/shopcart/internal/metrics"
	"github.com/fjod/shopcart/internal/poller"
	"github.com/fjod/shopcart/internal/product"
	"github.com/fjod/shopcart/internal/repository"
	s "github.com/fjod/shopcart/internal/service"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/extra/redisotel/v9"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	zl "github.com/rs/zerolog/log"
	"github.com/sony/gobreaker/v2"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		zl.Fatal().Err(err).Msg("failed to load config")
	}

	log := logger.New(logger.Config{Level: cfg.Log.Level, File: cfg.Log.File, Env: cfg.Env})
	zerolog.DefaultContextLogger = &log

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	ctx = log.WithContext(ctx)

	if err := run(ctx, cfg, log); err != nil {
		log.Error().Err(err).Msg("cart service failed")
		stop()
		os.Exit(1)
	}
	log.Info().Msg("cart service stopped")
}

func run(ctx context.Context, cfg *config.Config, log zerolog.Logger) error {
	// Set up MongoDB connection
	connectCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()
	mongoDB, err := repository.ConnectMongoDB(connectCtx, cfg.Mongo.URI, cfg.Mongo.Database)
	if err != nil {
		return err
	}
	defer func() {
		if err := mongoDB.Client().Disconnect(context.Background()); err != nil {
			log.Error().Err(err).Msg("failed to disconnect from MongoDB")
		}
	}()
	log.Info().Str("database", cfg.Mongo.Database).Msg("connected to MongoDB")

	if err := repository.RunMigrations(mongoDB, cfg.Mongo.MigrationsPath); err != nil {
		return err
	}

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer redisClient.Close()
	if err := redisotel.InstrumentTracing(redisClient); err != nil {
		return fmt.Errorf("failed to instrument redis: %w", err)
	}
	cartCache := c.NewRedisCache(redisClient, cfg.Cart.CacheTTL)
	if err := cartCache.Ping(connectCtx); err != nil {
		return fmt.Errorf("redis connection failed: %w", err)
	}
	log.Info().Str("addr", cfg.Redis.Addr).Msg("redis ping succeeded")

	cartMetrics := metrics.NewCart(prometheus.DefaultRegisterer)
	catalog := product.NewBreakerCatalog(product.NewMongoCatalog(mongoDB), product.BreakerConfig{
		OpenTimeout: cfg.Catalog.BreakerTimeout,
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn().Str("breaker", name).Stringer("from", from).Stringer("to", to).Msg("catalog breaker state changed")
			cartMetrics.ObserveBreaker(name, from, to)
		},
	})

	service := s.NewCartService(
		repository.NewMongoRepository(mongoDB),
		cartCache,
		catalog,
		s.WithMaxRetries(cfg.Cart.MaxRetries),
		s.WithMetrics(cartMetrics),
	)

	if len(cfg.Kafka.Brokers) > 0 {
		checkoutPoller := poller.NewPoller(service, poller.Config{
			Brokers: cfg.Kafka.Brokers,
			Topic:   cfg.Kafka.Topic,
			GroupID: cfg.Kafka.GroupID,
		}, log)
		defer checkoutPoller.Close()
		go checkoutPoller.Run(ctx)
	} else {
		log.Warn().Msg("no kafka brokers configured, checkout poller disabled")
	}

	router := h.NewRouter(h.RouterConfig{
		Service:        service,
		Users:          account.NewMongoUserStore(mongoDB),
		JWTSecret:      []byte(cfg.Auth.JWTSecret),
		Logger:         log,
		RequestTimeout: cfg.HTTP.RequestTimeout,
		HealthChecks: map[string]h.HealthCheck{
			"mongo": func(ctx context.Context) error { return mongoDB.Client().Ping(ctx, nil) },
			"redis": cartCache.Ping,
		},
		Metrics: promhttp.Handler(),
	})

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.HTTP.Port),
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: cfg.HTTP.RequestTimeout + 5*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Int("port", cfg.HTTP.Port).Msg("cart service listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	// Graceful shutdown
	select {
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
	}

	log.Info().Msg("shutting down cart service...")
	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer cancelShutdown()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}
	return nil
}
