package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

type Config struct {
	Env  string `validate:"required,oneof=development stage production"`
	Http Http

	Cors CORS `validate:"required"`

	Kafka Kafka `validate:"required"`

	Postgres Postgres `validate:"required"`

	Revolut Revolut `validate:"required"`
	Stripe  Stripe  `validate:"required"`

	BankTransfer BankTransfer `validate:"required"`

	Cache Cache
}

type Http struct {
	Host string `validate:"required,hostname|ip"`
	Port string `validate:"required,gt=0,lte=65535"`
}

type Kafka struct {
	Brokers []string `validate:"required,min=1,dive,hostname_port"`
	Topic   string   `validate:"required"`

	BatchTimeout time.Duration `validate:"gte=0"`
}

type Postgres struct {
	Host     string `validate:"required,hostname|ip"`
	Port     int    `validate:"required,gt=0,lte=65535"`
	DBName   string `validate:"required"`
	User     string `validate:"required"`
	Password string `validate:"required"`

	SSLMode string `validate:"required,oneof=disable require verify-ca verify-full"`

	MaxOpenConns    int           `validate:"gte=1"`
	MaxIdleConns    int           `validate:"gte=0"`
	ConnMaxLifetime time.Duration `validate:"gte=0"`
}

type Revolut struct {
	BaseURL       string `validate:"required,url"`
	APIKey        string `validate:"required"`
	WebhookSecret string `validate:"required"`

	SuccessURL string `validate:"required,url"`
	CancelURL  string `validate:"required,url"`

	Timeout time.Duration `validate:"gte=0"`
}

type Stripe struct {
	BaseURL       string `validate:"required,url"`
	SecretKey     string `validate:"required"`
	WebhookSecret string `validate:"required"`

	Timeout time.Duration `validate:"gte=0"`
}

type BankTransfer struct {
	IBAN        string `validate:"required"`
	BIC         string
	Beneficiary string `validate:"required"`
}

type Cache struct {
	Capacity int           `validate:"gte=1"`
	TTL      time.Duration `validate:"gt=0"`
}

type CORS struct {
	AllowedOrigins []string `validate:"required,min=1,dive,url"`
}

func New() Config {
	return Config{
		Env: env("ENV", "development"),

		Http: Http{
			Host: env("HOST", "localhost"),
			Port: env("PORT", "8080"),
		},

		Cors: CORS{
			AllowedOrigins: strings.Split(env("ALLOWED_CORS_ORIGINS", "http://localhost:3000"), ","),
		},

		Kafka: Kafka{
			Topic:   env("KAFKA_TOPIC", "orders"),
			Brokers: strings.Split(env("KAFKA_BROKERS", "localhost:9092"), ","),

			BatchTimeout: envDuration("KAFKA_BATCH_TIMEOUT", 10*time.Millisecond),
		},

		Postgres: Postgres{
			Port:     envInt("POSTGRES_PORT", 5432),
			Host:     env("POSTGRES_HOST", "localhost"),
			DBName:   env("POSTGRES_DB", "payments"),
			User:     env("POSTGRES_USER", ""),
			Password: env("POSTGRES_PASSWORD", ""),

			SSLMode: env("POSTGRES_SSL_MODE", "disable"),

			MaxOpenConns:    envInt("POSTGRES_MAX_OPEN_CONNS", 25),
			MaxIdleConns:    envInt("POSTGRES_MAX_IDLE_CONNS", 25),
			ConnMaxLifetime: envDuration("POSTGRES_CONN_MAX_LIFETIME", 5*time.Minute),
		},

		Revolut: Revolut{
			BaseURL:       env("REVOLUT_BASE_URL", "https://sandbox-merchant.revolut.com"),
			APIKey:        env("REVOLUT_API_KEY", ""),
			WebhookSecret: env("REVOLUT_WEBHOOK_SECRET", ""),

			SuccessURL: env("REVOLUT_SUCCESS_URL", "http://localhost:3000/checkout/success"),
			CancelURL:  env("REVOLUT_CANCEL_URL", "http://localhost:3000/checkout/cancel"),

			Timeout: envDuration("REVOLUT_TIMEOUT", 10*time.Second),
		},

		Stripe: Stripe{
			BaseURL:       env("STRIPE_BASE_URL", "https://api.stripe.com"),
			SecretKey:     env("STRIPE_SECRET_KEY", ""),
			WebhookSecret: env("STRIPE_WEBHOOK_SECRET", ""),

			Timeout: envDuration("STRIPE_TIMEOUT", 10*time.Second),
		},

		BankTransfer: BankTransfer{
			IBAN:        env("BANK_TRANSFER_IBAN", ""),
			BIC:         env("BANK_TRANSFER_BIC", ""),
			Beneficiary: env("BANK_TRANSFER_BENEFICIARY", ""),
		},

		Cache: Cache{
			Capacity: envInt("CACHE_CAPACITY", 1000),
			TTL:      envDuration("CACHE_TTL", 10*time.Minute),
		},
	}
}

func (c Config) Validate() error {
	validate := validator.New()
	return validate.Struct(c)
}

func env(key string, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	if len(fallback) == 0 {
		return ""
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if value, ok := os.LookupEnv(key); ok {
		i, err := strconv.Atoi(value)
		if err == nil {
			return i
		}
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if value, ok := os.LookupEnv(key); ok {
		d, err := time.ParseDuration(value)
		if err == nil {
			return d
		}
	}
	return fallback
}
