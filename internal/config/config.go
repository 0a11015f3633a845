package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// Store drivers selectable with STORE_DRIVER.
const (
	StoreFirestore = "firestore"
	StoreMongo     = "mongo"
	StoreMemory    = "memory"
)

// Config holds all configuration for the application.
type Config struct {
	Port            string        `mapstructure:"PORT" validate:"required"`
	GinMode         string        `mapstructure:"GIN_MODE" validate:"oneof=debug release test"`
	ShutdownTimeout time.Duration `mapstructure:"SHUTDOWN_TIMEOUT"`

	StoreDriver             string `mapstructure:"STORE_DRIVER" validate:"oneof=firestore mongo memory"`
	UsersCollection         string `mapstructure:"USERS_COLLECTION" validate:"required"`
	BillingEventsCollection string `mapstructure:"BILLING_EVENTS_COLLECTION" validate:"required"`

	FirebaseProjectID                string `mapstructure:"FIREBASE_PROJECT_ID"`
	GoogleApplicationCredentials     string `mapstructure:"GOOGLE_APPLICATION_CREDENTIALS"`
	FirebaseServiceAccountJSONBase64 string `mapstructure:"FIREBASE_SERVICE_ACCOUNT_JSON_BASE64"`

	MongoURL      string `mapstructure:"MONGODB_URL"`
	MongoDatabase string `mapstructure:"MONGODB_DATABASE"`

	StripeSecretKey         string        `mapstructure:"STRIPE_SECRET_KEY"`
	StripeWebhookSecret     string        `mapstructure:"STRIPE_WEBHOOK_SECRET" validate:"required"`
	StripeWebhookTolerance  time.Duration `mapstructure:"STRIPE_WEBHOOK_TOLERANCE" validate:"gt=0"`
	StripeMaxNetworkRetries int64         `mapstructure:"STRIPE_MAX_NETWORK_RETRIES" validate:"gte=0"`
	// Empty allows any price at checkout.
	StripePriceIDs     []string `mapstructure:"STRIPE_PRICE_IDS"`
	CheckoutSuccessURL string   `mapstructure:"CHECKOUT_SUCCESS_URL" validate:"omitempty,url"`
	CheckoutCancelURL  string   `mapstructure:"CHECKOUT_CANCEL_URL" validate:"omitempty,url"`
	PortalReturnURL    string   `mapstructure:"PORTAL_RETURN_URL" validate:"omitempty,url"`
	ClientURL          string   `mapstructure:"CLIENT_URL" validate:"required"`

	RedisURL        string        `mapstructure:"REDIS_URL"`
	LockTTL         time.Duration `mapstructure:"LOCK_TTL" validate:"gt=0"`
	NATSURL         string        `mapstructure:"NATS_URL"`
	NATSPlanSubject string        `mapstructure:"NATS_PLAN_SUBJECT" validate:"required"`
}

var envKeys = []string{
	"PORT", "GIN_MODE", "SHUTDOWN_TIMEOUT",
	"STORE_DRIVER", "USERS_COLLECTION", "BILLING_EVENTS_COLLECTION",
	"FIREBASE_PROJECT_ID", "GOOGLE_APPLICATION_CREDENTIALS", "FIREBASE_SERVICE_ACCOUNT_JSON_BASE64",
	"MONGODB_URL", "MONGODB_DATABASE",
	"STRIPE_SECRET_KEY", "STRIPE_WEBHOOK_SECRET", "STRIPE_WEBHOOK_TOLERANCE", "STRIPE_MAX_NETWORK_RETRIES",
	"STRIPE_PRICE_IDS", "CHECKOUT_SUCCESS_URL", "CHECKOUT_CANCEL_URL", "PORTAL_RETURN_URL", "CLIENT_URL",
	"REDIS_URL", "LOCK_TTL", "NATS_URL", "NATS_PLAN_SUBJECT",
}

// LoadConfig loads configuration from environment variables using Viper.
func LoadConfig() (*Config, error) {
	v := viper.New()
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// Set default values
	v.SetDefault("PORT", "8080")
	v.SetDefault("GIN_MODE", "debug")
	v.SetDefault("SHUTDOWN_TIMEOUT", "10s")
	v.SetDefault("STORE_DRIVER", StoreFirestore)
	v.SetDefault("USERS_COLLECTION", "users")
	v.SetDefault("BILLING_EVENTS_COLLECTION", "billing_events")
	v.SetDefault("MONGODB_DATABASE", "plansync")
	v.SetDefault("STRIPE_WEBHOOK_TOLERANCE", "5m")
	v.SetDefault("STRIPE_MAX_NETWORK_RETRIES", 2)
	v.SetDefault("CLIENT_URL", "http://localhost:3000")
	v.SetDefault("LOCK_TTL", "10s")
	v.SetDefault("NATS_PLAN_SUBJECT", "billing.plan.changed")

	// Bind environment variables
	for _, key := range envKeys {
		_ = v.BindEnv(key)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, errors.New("failed to unmarshal config: " + err.Error())
	}
	cfg.StripePriceIDs = splitList(cfg.StripePriceIDs)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks field formats and the settings each store driver needs.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	switch c.StoreDriver {
	case StoreFirestore:
		if c.FirebaseProjectID == "" {
			return errors.New("FIREBASE_PROJECT_ID is required when STORE_DRIVER=firestore")
		}
	case StoreMongo:
		if c.MongoURL == "" {
			return errors.New("MONGODB_URL is required when STORE_DRIVER=mongo")
		}
		if c.MongoDatabase == "" {
			return errors.New("MONGODB_DATABASE is required when STORE_DRIVER=mongo")
		}
	}

	if c.StripeSecretKey != "" && (c.CheckoutSuccessURL == "" || c.CheckoutCancelURL == "") {
		return errors.New("CHECKOUT_SUCCESS_URL and CHECKOUT_CANCEL_URL are required when STRIPE_SECRET_KEY is set")
	}
	return nil
}

// FirebaseConfigured reports whether any Firebase setting is present. Firebase
// Auth backs the authenticated routes regardless of the store driver.
func (c *Config) FirebaseConfigured() bool {
	return c.FirebaseProjectID != "" || c.GoogleApplicationCredentials != "" || c.FirebaseServiceAccountJSONBase64 != ""
}

// IsRelease reports whether gin runs in release mode.
func (c *Config) IsRelease() bool {
	return strings.EqualFold(c.GinMode, "release")
}

func splitList(in []string) []string {
	var out []string
	for _, item := range in {
		for _, part := range strings.Split(item, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}
