// Package extension provides the Forge extension adapter for checkout.
//
// It implements the forge.Extension interface to integrate checkout
// into a Forge application with DI registration, gateway and sweep-lock
// construction from configuration, and lifecycle management.
//
// Configuration can be provided programmatically via Option functions
// or via YAML configuration files under "extensions.checkout" or "checkout" keys.
package extension

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/redis/go-redis/v9"
	"github.com/xraph/forge"
	"github.com/xraph/vessel"

	"github.com/xraph/checkout"
	"github.com/xraph/checkout/api"
	"github.com/xraph/checkout/gateway"
	gwmemory "github.com/xraph/checkout/gateway/memory"
	"github.com/xraph/checkout/gateway/yookassa"
	"github.com/xraph/checkout/store"
	"github.com/xraph/checkout/store/memory"
	"github.com/xraph/checkout/sweeplock"
)

// ExtensionName is the name registered with Forge.
const ExtensionName = "checkout"

// ExtensionDescription is the human-readable description.
const ExtensionDescription = "Order and payment reconciliation engine"

// ExtensionVersion is the semantic version.
const ExtensionVersion = "0.1.0"

// Ensure Extension implements forge.Extension at compile time.
var _ forge.Extension = (*Extension)(nil)

// Extension adapts checkout as a Forge extension.
type Extension struct {
	*forge.BaseExtension

	config       Config
	engine       *checkout.Checkout
	store        store.Store
	gateway      gateway.Gateway
	redis        *redis.Client
	handler      http.Handler
	checkoutOpts []checkout.Option
}

// New creates a new checkout Forge extension with the given options.
func New(opts ...Option) *Extension {
	e := &Extension{
		BaseExtension: forge.NewBaseExtension(ExtensionName, ExtensionVersion, ExtensionDescription),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Engine returns the underlying checkout instance.
// This is nil until Register is called.
func (e *Extension) Engine() *checkout.Checkout { return e.engine }

// Handler returns the webhook and health routes, mounted under BasePath.
// It is nil until Register is called, or when routes are disabled.
func (e *Extension) Handler() http.Handler { return e.handler }

// Config returns the resolved configuration.
func (e *Extension) Config() Config { return e.config }

// Register implements [forge.Extension]. It loads configuration,
// initializes the checkout engine, and registers it in the DI container.
func (e *Extension) Register(fapp forge.App) error {
	if err := e.BaseExtension.Register(fapp); err != nil {
		return err
	}

	if err := e.loadConfiguration(); err != nil {
		return err
	}

	if e.store == nil {
		e.store = memory.New()
	}

	opts, err := e.buildCheckoutOpts()
	if err != nil {
		return err
	}

	e.engine = checkout.New(e.store, opts...)

	if !e.config.DisableRoutes {
		e.handler = api.NewRouter(api.NewHandler(e.engine, e.store, nil), e.config.BasePath)
	}

	return vessel.Provide(fapp.Container(), func() (*checkout.Checkout, error) {
		return e.engine, nil
	})
}

// Start implements [forge.Extension].
func (e *Extension) Start(ctx context.Context) error {
	if e.engine == nil {
		return errors.New("checkout: extension not initialized")
	}

	if !e.config.DisableMigrate {
		if err := e.engine.Start(ctx); err != nil {
			return err
		}
	}

	e.MarkStarted()
	return nil
}

// Stop implements [forge.Extension].
func (e *Extension) Stop(_ context.Context) error {
	var errs checkout.MultiError
	if e.engine != nil {
		errs.Add(e.engine.Stop())
	}
	if e.redis != nil {
		errs.Add(e.redis.Close())
	}
	e.MarkStopped()
	if errs.HasErrors() {
		return errs
	}
	return nil
}

// Health implements [forge.Extension].
func (e *Extension) Health(ctx context.Context) error {
	if e.store == nil {
		return errors.New("checkout: store not initialized")
	}
	return e.store.Ping(ctx)
}

// buildCheckoutOpts constructs checkout.Option values from the resolved config.
func (e *Extension) buildCheckoutOpts() ([]checkout.Option, error) {
	cfg := e.config
	opts := make([]checkout.Option, 0, len(e.checkoutOpts)+12)

	sweepInterval := cfg.SweepInterval
	if sweepInterval < 0 {
		sweepInterval = 0
	}
	opts = append(opts,
		checkout.WithSweepInterval(sweepInterval),
		checkout.WithSweepConcurrency(cfg.SweepConcurrency),
		checkout.WithSweepBatch(cfg.SweepBatch),
		checkout.WithPrecheckTimeout(cfg.PrecheckTimeout),
		checkout.WithVerifyWebhooks(cfg.VerifyWebhooks),
		checkout.WithNativePayments(cfg.NativePayments),
		checkout.WithCurrency(cfg.Currency),
		checkout.WithReturnURL(cfg.ReturnURL),
	)

	gw, err := e.resolveGateway()
	if err != nil {
		return nil, err
	}
	if gw != nil {
		opts = append(opts, checkout.WithGateway(gw))
	}

	if cfg.RedisURL != "" {
		client, err := sweeplock.Connect(cfg.RedisURL)
		if err != nil {
			return nil, err
		}
		e.redis = client
		opts = append(opts, checkout.WithSweepLock(sweeplock.NewRedis(client)))
	}

	// Pass-through options win over config.
	opts = append(opts, e.checkoutOpts...)

	return opts, nil
}

// resolveGateway picks the programmatic gateway, then YooKassa, then the
// test gateway. Nil means paid checkouts are refused.
func (e *Extension) resolveGateway() (gateway.Gateway, error) {
	if e.gateway != nil {
		return e.gateway, nil
	}

	cfg := e.config
	if cfg.YooKassaShopID != "" || cfg.YooKassaSecretKey != "" {
		gw, err := yookassa.New(cfg.YooKassaShopID, cfg.YooKassaSecretKey,
			yookassa.WithTimeout(cfg.GatewayTimeout),
		)
		if err != nil {
			return nil, fmt.Errorf("checkout: configure gateway: %w", err)
		}
		e.gateway = gw
		return gw, nil
	}

	if cfg.TestPayments {
		e.Logger().Warn("checkout: test payments enabled, every payment settles instantly")
		e.gateway = gwmemory.New()
		return e.gateway, nil
	}

	return nil, nil
}

// --- Config Loading (mirrors grove/shield extension pattern) ---

// loadConfiguration loads config from YAML files or programmatic sources.
func (e *Extension) loadConfiguration() error {
	programmaticConfig := e.config

	fileConfig, configLoaded := e.tryLoadFromConfigFile()

	if !configLoaded {
		if programmaticConfig.RequireConfig {
			return errors.New("checkout: configuration is required but not found in config files; " +
				"ensure 'extensions.checkout' or 'checkout' key exists in your config")
		}

		e.config = mergeWithDefaults(programmaticConfig)
	} else {
		e.config = mergeConfigurations(fileConfig, programmaticConfig)
	}

	e.Logger().Debug("checkout: configuration loaded",
		forge.F("disable_routes", e.config.DisableRoutes),
		forge.F("disable_migrate", e.config.DisableMigrate),
		forge.F("base_path", e.config.BasePath),
		forge.F("sweep_interval", e.config.SweepInterval),
		forge.F("sweep_concurrency", e.config.SweepConcurrency),
		forge.F("native_payments", e.config.NativePayments),
		forge.F("verify_webhooks", e.config.VerifyWebhooks),
		forge.F("yookassa", e.config.YooKassaShopID != ""),
		forge.F("redis_lock", e.config.RedisURL != ""),
	)

	return nil
}

// tryLoadFromConfigFile attempts to load config from YAML files.
func (e *Extension) tryLoadFromConfigFile() (Config, bool) {
	cm := e.App().Config()
	var cfg Config

	for _, key := range []string{"extensions.checkout", "checkout"} {
		if !cm.IsSet(key) {
			continue
		}
		if err := cm.Bind(key, &cfg); err == nil {
			e.Logger().Debug("checkout: loaded config from file",
				forge.F("key", key),
			)
			return cfg, true
		}
		e.Logger().Warn("checkout: failed to bind config",
			forge.F("key", key),
			forge.F("error", "bind failed"),
		)
	}

	return Config{}, false
}

// mergeWithDefaults fills zero-valued fields with defaults.
func mergeWithDefaults(cfg Config) Config {
	defaults := DefaultConfig()
	if cfg.BasePath == "" {
		cfg.BasePath = defaults.BasePath
	}
	if cfg.SweepInterval == 0 {
		cfg.SweepInterval = defaults.SweepInterval
	}
	if cfg.SweepConcurrency == 0 {
		cfg.SweepConcurrency = defaults.SweepConcurrency
	}
	if cfg.SweepBatch == 0 {
		cfg.SweepBatch = defaults.SweepBatch
	}
	if cfg.PrecheckTimeout == 0 {
		cfg.PrecheckTimeout = defaults.PrecheckTimeout
	}
	if cfg.Currency == "" {
		cfg.Currency = defaults.Currency
	}
	if cfg.ReturnURL == "" {
		cfg.ReturnURL = defaults.ReturnURL
	}
	if cfg.GatewayTimeout == 0 {
		cfg.GatewayTimeout = defaults.GatewayTimeout
	}
	return cfg
}

// mergeConfigurations merges YAML config with programmatic options.
// YAML config takes precedence for most fields; programmatic values fill gaps
// and programmatic bool flags override when true.
func mergeConfigurations(yamlConfig, programmaticConfig Config) Config {
	if programmaticConfig.DisableRoutes {
		yamlConfig.DisableRoutes = true
	}
	if programmaticConfig.DisableMigrate {
		yamlConfig.DisableMigrate = true
	}
	if programmaticConfig.VerifyWebhooks {
		yamlConfig.VerifyWebhooks = true
	}
	if programmaticConfig.NativePayments {
		yamlConfig.NativePayments = true
	}
	if programmaticConfig.TestPayments {
		yamlConfig.TestPayments = true
	}

	fillString := func(dst *string, src string) {
		if *dst == "" && src != "" {
			*dst = src
		}
	}
	fillString(&yamlConfig.BasePath, programmaticConfig.BasePath)
	fillString(&yamlConfig.Currency, programmaticConfig.Currency)
	fillString(&yamlConfig.ReturnURL, programmaticConfig.ReturnURL)
	fillString(&yamlConfig.YooKassaShopID, programmaticConfig.YooKassaShopID)
	fillString(&yamlConfig.YooKassaSecretKey, programmaticConfig.YooKassaSecretKey)
	fillString(&yamlConfig.RedisURL, programmaticConfig.RedisURL)

	if yamlConfig.SweepInterval == 0 && programmaticConfig.SweepInterval != 0 {
		yamlConfig.SweepInterval = programmaticConfig.SweepInterval
	}
	if yamlConfig.SweepConcurrency == 0 && programmaticConfig.SweepConcurrency != 0 {
		yamlConfig.SweepConcurrency = programmaticConfig.SweepConcurrency
	}
	if yamlConfig.SweepBatch == 0 && programmaticConfig.SweepBatch != 0 {
		yamlConfig.SweepBatch = programmaticConfig.SweepBatch
	}
	if yamlConfig.PrecheckTimeout == 0 && programmaticConfig.PrecheckTimeout != 0 {
		yamlConfig.PrecheckTimeout = programmaticConfig.PrecheckTimeout
	}
	if yamlConfig.GatewayTimeout == 0 && programmaticConfig.GatewayTimeout != 0 {
		yamlConfig.GatewayTimeout = programmaticConfig.GatewayTimeout
	}

	return mergeWithDefaults(yamlConfig)
}
