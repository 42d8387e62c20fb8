package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("CONFIG_FILE", "")
	t.Setenv("SHOPCART_AUTH_JWT_SECRET", testSecret)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.HTTP.Port)
	assert.Equal(t, 15*time.Second, cfg.HTTP.RequestTimeout)
	assert.Equal(t, "checkout-outbox", cfg.Kafka.Topic)
	assert.Equal(t, 5, cfg.Cart.MaxRetries)
	assert.Equal(t, 15*time.Minute, cfg.Cart.CacheTTL)
	assert.False(t, cfg.IsDevelopment())
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("CONFIG_FILE", "")
	t.Setenv("SHOPCART_AUTH_JWT_SECRET", testSecret)
	t.Setenv("SHOPCART_HTTP_PORT", "9090")
	t.Setenv("SHOPCART_CART_MAX_RETRIES", "9")
	t.Setenv("SHOPCART_CART_CACHE_TTL", "2m")
	t.Setenv("SHOPCART_KAFKA_BROKERS", "k1:9092,k2:9092")
	t.Setenv("SHOPCART_ENV", "development")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.HTTP.Port)
	assert.Equal(t, 9, cfg.Cart.MaxRetries)
	assert.Equal(t, 2*time.Minute, cfg.Cart.CacheTTL)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.Kafka.Brokers)
	assert.True(t, cfg.IsDevelopment())
}

func TestLoad_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
auth:
  jwt_secret: "`+testSecret+`"
mongo:
  database: carts_test
redis:
  addr: cache:6380
`), 0o600))
	t.Setenv("CONFIG_FILE", path)
	t.Setenv("SHOPCART_REDIS_ADDR", "")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "carts_test", cfg.Mongo.Database)
	assert.Equal(t, "cache:6380", cfg.Redis.Addr)
	assert.Equal(t, testSecret, cfg.Auth.JWTSecret)
}

func TestLoad_MissingFile(t *testing.T) {
	t.Setenv("CONFIG_FILE", filepath.Join(t.TempDir(), "absent.yaml"))

	_, err := Load()

	assert.ErrorContains(t, err, "error reading config file")
}

func TestLoad_RejectsSecrets(t *testing.T) {
	tests := []struct {
		name   string
		secret string
		want   error
	}{
		{"missing", "", ErrMissingJWTSecret},
		{"short", "too-short", ErrWeakJWTSecret},
		{"legacy default", legacyJWTSecret, ErrLegacyJWTSecret},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("CONFIG_FILE", "")
			t.Setenv("SHOPCART_AUTH_JWT_SECRET", tt.secret)

			cfg, err := Load()

			assert.ErrorIs(t, err, tt.want)
			assert.Nil(t, cfg)
		})
	}
}

func TestValidate_Ranges(t *testing.T) {
	cfg := Config{
		Auth: Auth{JWTSecret: testSecret},
		HTTP: HTTP{Port: 0},
		Cart: Cart{MaxRetries: 1},
	}
	assert.ErrorContains(t, cfg.Validate(), "http.port")

	cfg.HTTP.Port = 80
	cfg.Cart.MaxRetries = 0
	assert.ErrorContains(t, cfg.Validate(), "cart.max_retries")
}
