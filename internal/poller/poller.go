package poller

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/fjod/shopcart/internal/domain"
	"github.com/fjod/shopcart/internal/logger"
	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"
)

const readErrorBackoff = time.Second

// MessageReader is the part of *kafka.Reader the poller uses.
type MessageReader interface {
	ReadMessage(ctx context.Context) (kafka.Message, error)
	Close() error
}

// CartClearer empties a user's cart.
type CartClearer interface {
	ClearCart(ctx context.Context, userID string) (*domain.CartView, error)
}

type Config struct {
	Brokers []string
	Topic   string
	GroupID string
}

// CheckoutCompleted is the outbox event published once a checkout is paid.
type CheckoutCompleted struct {
	CheckoutID string `json:"checkout_id"`
	UserID     string `json:"user_id"`
}

// Poller consumes checkout events and clears the cart of the user who checked
// out. The cart record itself is kept.
type Poller struct {
	carts  CartClearer
	reader MessageReader
	log    zerolog.Logger
}

func NewPoller(carts CartClearer, cfg Config, log zerolog.Logger) *Poller {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  cfg.Brokers,
		Topic:    cfg.Topic,
		GroupID:  cfg.GroupID,
		MaxBytes: 10e6, // 10MB
	})
	return NewPollerWithReader(carts, reader, log)
}

func NewPollerWithReader(carts CartClearer, reader MessageReader, log zerolog.Logger) *Poller {
	return &Poller{
		carts:  carts,
		reader: reader,
		log:    log.With().Str(logger.KeyTag, "Poller").Logger(),
	}
}

// Run consumes until ctx is cancelled.
func (p *Poller) Run(ctx context.Context) {
	p.log.Info().Msg("checkout poller started")
	for {
		if ctx.Err() != nil {
			p.log.Info().Msg("checkout poller stopped")
			return
		}
		if err := p.poll(ctx); err != nil {
			p.log.Error().Err(err).Msg("error reading message")
			select {
			case <-ctx.Done():
			case <-time.After(readErrorBackoff):
			}
		}
	}
}

func (p *Poller) Close() {
	if err := p.reader.Close(); err != nil {
		p.log.Error().Err(err).Msg("error closing reader")
	}
}

// poll handles one message. Only read failures are returned; a message that
// cannot be processed is logged and skipped.
func (p *Poller) poll(ctx context.Context) error {
	m, err := p.reader.ReadMessage(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return nil
		}
		return err
	}

	log := p.log.With().
		Int("partition", m.Partition).
		Int64("offset", m.Offset).
		Logger()

	var event CheckoutCompleted
	if err := json.Unmarshal(m.Value, &event); err != nil {
		log.Error().Err(err).Msg("error parsing message")
		return nil
	}
	if event.UserID == "" {
		log.Error().Msg("missing or invalid user_id")
		return nil
	}

	log = log.With().Str(logger.KeyUserID, event.UserID).Str("checkoutId", event.CheckoutID).Logger()
	if _, err := p.carts.ClearCart(log.WithContext(ctx), event.UserID); err != nil {
		if errors.Is(err, context.Canceled) {
			return nil
		}
		log.Error().Err(err).Msg("failed to clear cart")
		return nil
	}

	log.Info().Msg("cart cleared after checkout")
	return nil
}
