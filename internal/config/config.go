package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// legacyJWTSecret is the signing key that shipped as a silent default in the
// previous backend. Tokens signed with it must never be accepted.
const legacyJWTSecret = "rynott_super_secret_jwt_key_change_in_production_2024"

const minJWTSecretLength = 32

var (
	ErrMissingJWTSecret = errors.New("auth.jwt_secret is required")
	ErrWeakJWTSecret    = fmt.Errorf("auth.jwt_secret must be at least %d bytes", minJWTSecretLength)
	ErrLegacyJWTSecret  = errors.New("auth.jwt_secret is the known legacy default")
)

type HTTP struct {
	Port            int           `mapstructure:"port"`
	RequestTimeout  time.Duration `mapstructure:"request_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

type Mongo struct {
	URI            string `mapstructure:"uri"`
	Database       string `mapstructure:"database"`
	MigrationsPath string `mapstructure:"migrations_path"`
}

type Redis struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type Kafka struct {
	Brokers []string `mapstructure:"brokers"`
	Topic   string   `mapstructure:"topic"`
	GroupID string   `mapstructure:"group_id"`
}

type Auth struct {
	JWTSecret string `mapstructure:"jwt_secret"`
}

type Cart struct {
	MaxRetries int           `mapstructure:"max_retries"`
	CacheTTL   time.Duration `mapstructure:"cache_ttl"`
}

type Catalog struct {
	BreakerTimeout time.Duration `mapstructure:"breaker_timeout"`
}

type Log struct {
	Level string `mapstructure:"level"`
	File  string `mapstructure:"file"`
}

type Config struct {
	Env     string  `mapstructure:"env"`
	HTTP    HTTP    `mapstructure:"http"`
	Mongo   Mongo   `mapstructure:"mongo"`
	Redis   Redis   `mapstructure:"redis"`
	Kafka   Kafka   `mapstructure:"kafka"`
	Auth    Auth    `mapstructure:"auth"`
	Cart    Cart    `mapstructure:"cart"`
	Catalog Catalog `mapstructure:"catalog"`
	Log     Log     `mapstructure:"log"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("env", "production")
	v.SetDefault("http.port", 8080)
	v.SetDefault("http.request_timeout", 15*time.Second)
	v.SetDefault("http.shutdown_timeout", 10*time.Second)
	v.SetDefault("mongo.uri", "mongodb://localhost:27017")
	v.SetDefault("mongo.database", "shop")
	v.SetDefault("mongo.migrations_path", "migrations")
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("kafka.brokers", []string{})
	v.SetDefault("kafka.topic", "checkout-outbox")
	v.SetDefault("kafka.group_id", "cart-service-consumer")
	// no default: the secret must come from the environment or the config file
	v.SetDefault("auth.jwt_secret", "")
	v.SetDefault("cart.max_retries", 5)
	v.SetDefault("cart.cache_ttl", 15*time.Minute)
	v.SetDefault("catalog.breaker_timeout", 30*time.Second)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.file", "")
}

// Load reads configuration from SHOPCART_* environment variables, layered over
// the YAML file named by CONFIG_FILE when set.
func Load() (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("shopcart")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if file := os.Getenv("CONFIG_FILE"); file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("error reading config file %s: %w", file, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	if err := ValidateJWTSecret(c.Auth.JWTSecret); err != nil {
		return err
	}
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("http.port %d out of range", c.HTTP.Port)
	}
	if c.Cart.MaxRetries < 1 {
		return fmt.Errorf("cart.max_retries must be positive, got %d", c.Cart.MaxRetries)
	}
	return nil
}

func ValidateJWTSecret(secret string) error {
	switch {
	case secret == "":
		return ErrMissingJWTSecret
	case secret == legacyJWTSecret:
		return ErrLegacyJWTSecret
	case len(secret) < minJWTSecretLength:
		return ErrWeakJWTSecret
	}
	return nil
}

func (c *Config) IsDevelopment() bool {
	return c.Env == "development"
}
