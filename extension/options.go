package extension

import (
	"time"

	"github.com/xraph/checkout"
	"github.com/xraph/checkout/gateway"
	"github.com/xraph/checkout/plugin"
	"github.com/xraph/checkout/store"
)

// Option configures the checkout Forge extension.
type Option func(*Extension)

// WithStore sets the store for the checkout engine.
func WithStore(s store.Store) Option {
	return func(e *Extension) {
		e.store = s
	}
}

// WithGateway sets the payment gateway, overriding the configured one.
func WithGateway(g gateway.Gateway) Option {
	return func(e *Extension) {
		e.gateway = g
	}
}

// WithCheckoutOption passes a checkout.Option through to the underlying engine.
func WithCheckoutOption(opt checkout.Option) Option {
	return func(e *Extension) {
		e.checkoutOpts = append(e.checkoutOpts, opt)
	}
}

// WithPlugin registers a checkout plugin.
func WithPlugin(p plugin.Plugin) Option {
	return func(e *Extension) {
		e.checkoutOpts = append(e.checkoutOpts, checkout.WithPlugin(p))
	}
}

// WithConfig sets the Forge extension configuration.
func WithConfig(cfg Config) Option {
	return func(e *Extension) { e.config = cfg }
}

// WithDisableRoutes prevents HTTP route registration.
func WithDisableRoutes() Option {
	return func(e *Extension) { e.config.DisableRoutes = true }
}

// WithDisableMigrate prevents auto-migration on start.
func WithDisableMigrate() Option {
	return func(e *Extension) { e.config.DisableMigrate = true }
}

// WithBasePath sets the URL prefix for checkout routes.
func WithBasePath(path string) Option {
	return func(e *Extension) { e.config.BasePath = path }
}

// WithRequireConfig requires config to be present in YAML files.
// If true and no config is found, Register returns an error.
func WithRequireConfig(require bool) Option {
	return func(e *Extension) { e.config.RequireConfig = require }
}

// WithSweepInterval sets how often pending orders are polled.
func WithSweepInterval(d time.Duration) Option {
	return func(e *Extension) { e.config.SweepInterval = d }
}

// WithNativePayments settles paid checkouts through in-chat invoices.
func WithNativePayments() Option {
	return func(e *Extension) { e.config.NativePayments = true }
}

// WithYooKassa configures the YooKassa gateway credentials.
func WithYooKassa(shopID, secretKey string) Option {
	return func(e *Extension) {
		e.config.YooKassaShopID = shopID
		e.config.YooKassaSecretKey = secretKey
	}
}

// WithRedisURL shares the sweep between instances through Redis.
func WithRedisURL(url string) Option {
	return func(e *Extension) { e.config.RedisURL = url }
}
