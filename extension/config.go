package extension

import "time"

// Config holds the checkout extension configuration.
// Fields can be set programmatically via Option functions or loaded from
// YAML configuration files (under "extensions.checkout" or "checkout" keys).
type Config struct {
	// DisableRoutes prevents the webhook and health routes from being built.
	DisableRoutes bool `json:"disable_routes" mapstructure:"disable_routes" yaml:"disable_routes"`

	// DisableMigrate prevents auto-migration and background workers on start.
	DisableMigrate bool `json:"disable_migrate" mapstructure:"disable_migrate" yaml:"disable_migrate"`

	// BasePath is the URL prefix for checkout routes (default: "/checkout").
	BasePath string `json:"base_path" mapstructure:"base_path" yaml:"base_path"`

	// SweepInterval is how often pending orders are re-checked with the
	// gateway (default: 10s). Negative disables the sweep.
	SweepInterval time.Duration `json:"sweep_interval" mapstructure:"sweep_interval" yaml:"sweep_interval"`

	// SweepConcurrency bounds parallel gateway checks per sweep (default: 4).
	SweepConcurrency int `json:"sweep_concurrency" mapstructure:"sweep_concurrency" yaml:"sweep_concurrency"`

	// SweepBatch bounds how many orders one sweep looks at (default: 100).
	SweepBatch int `json:"sweep_batch" mapstructure:"sweep_batch" yaml:"sweep_batch"`

	// PrecheckTimeout bounds the answer to a native pre-checkout query
	// (default: 3s).
	PrecheckTimeout time.Duration `json:"precheck_timeout" mapstructure:"precheck_timeout" yaml:"precheck_timeout"`

	// VerifyWebhooks re-checks every webhook with the gateway.
	VerifyWebhooks bool `json:"verify_webhooks" mapstructure:"verify_webhooks" yaml:"verify_webhooks"`

	// NativePayments settles paid checkouts through in-chat invoices.
	NativePayments bool `json:"native_payments" mapstructure:"native_payments" yaml:"native_payments"`

	// Currency is the single catalog currency (default: "rub").
	Currency string `json:"currency" mapstructure:"currency" yaml:"currency"`

	// ReturnURL is where the gateway sends the user after paying.
	ReturnURL string `json:"return_url" mapstructure:"return_url" yaml:"return_url"`

	// YooKassaShopID and YooKassaSecretKey enable the YooKassa gateway.
	YooKassaShopID    string `json:"yookassa_shop_id" mapstructure:"yookassa_shop_id" yaml:"yookassa_shop_id"`
	YooKassaSecretKey string `json:"yookassa_secret_key" mapstructure:"yookassa_secret_key" yaml:"yookassa_secret_key"`

	// GatewayTimeout bounds every gateway request (default: 10s).
	GatewayTimeout time.Duration `json:"gateway_timeout" mapstructure:"gateway_timeout" yaml:"gateway_timeout"`

	// TestPayments uses the in-memory gateway, which settles every payment
	// instantly, when no real gateway is configured. Never enable in
	// production.
	TestPayments bool `json:"test_payments" mapstructure:"test_payments" yaml:"test_payments"`

	// RedisURL enables a Redis lease so only one instance sweeps per tick.
	RedisURL string `json:"redis_url" mapstructure:"redis_url" yaml:"redis_url"`

	// RequireConfig requires config to be present in YAML files.
	// If true and no config is found, Register returns an error.
	RequireConfig bool `json:"-" yaml:"-"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		BasePath:         "/checkout",
		SweepInterval:    10 * time.Second,
		SweepConcurrency: 4,
		SweepBatch:       100,
		PrecheckTimeout:  3 * time.Second,
		Currency:         "rub",
		ReturnURL:        "https://t.me",
		GatewayTimeout:   10 * time.Second,
	}
}
