package checkout

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/xraph/checkout/catalog"
	"github.com/xraph/checkout/gateway"
	"github.com/xraph/checkout/plugin"
	"github.com/xraph/checkout/store"
	"github.com/xraph/checkout/sweeplock"
	"github.com/xraph/checkout/types"
)

// Engine defaults.
const (
	DefaultSweepInterval    = 10 * time.Second
	DefaultSweepConcurrency = 4
	DefaultSweepBatch       = 100
	DefaultPrecheckTimeout  = 3 * time.Second
	DefaultReturnURL        = "https://t.me"
)

// Checkout is the order and payment reconciliation engine.
type Checkout struct {
	store    store.Store
	plugins  *plugin.Registry
	logger   *slog.Logger
	gateway  gateway.Gateway
	snapshot catalog.Snapshot
	locker   sweeplock.Locker

	// Background workers
	stopChan chan struct{}
	stopOnce sync.Once
	cancel   context.CancelFunc
	wg       sync.WaitGroup

	// Configuration
	sweepInterval    time.Duration
	sweepConcurrency int
	sweepBatch       int
	precheckTimeout  time.Duration
	verifyWebhooks   bool
	nativePayments   bool
	currency         string
	returnURL        string

	now func() time.Time
}

// New creates a new Checkout instance.
func New(s store.Store, opts ...Option) *Checkout {
	c := &Checkout{
		store:            s,
		plugins:          plugin.NewRegistry(),
		logger:           slog.Default(),
		stopChan:         make(chan struct{}),
		sweepInterval:    DefaultSweepInterval,
		sweepConcurrency: DefaultSweepConcurrency,
		sweepBatch:       DefaultSweepBatch,
		precheckTimeout:  DefaultPrecheckTimeout,
		currency:         types.DefaultCurrency,
		returnURL:        DefaultReturnURL,
		now:              func() time.Time { return time.Now().UTC() },
	}

	for _, opt := range opts {
		opt(c)
	}

	if c.snapshot == nil {
		c.snapshot = &storeSnapshot{store: s}
	}

	return c
}

// Option configures a Checkout instance.
type Option func(*Checkout)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Checkout) {
		c.logger = logger
		c.plugins.WithLogger(logger)
	}
}

// WithPlugin registers a plugin.
func WithPlugin(p plugin.Plugin) Option {
	return func(c *Checkout) {
		_ = c.plugins.Register(p) //nolint:errcheck // best-effort plugin registration during init
	}
}

// WithGateway sets the payment provider used for redirect payments,
// manual checks and the sweep. Without one, paid checkouts fail with
// ErrGatewayNotConfigured and the sweep only re-drives fulfillment.
func WithGateway(g gateway.Gateway) Option {
	return func(c *Checkout) {
		c.gateway = g
	}
}

// WithSnapshot replaces the store-backed price snapshot.
func WithSnapshot(s catalog.Snapshot) Option {
	return func(c *Checkout) {
		c.snapshot = s
	}
}

// WithSweepInterval sets how often pending orders are polled. Zero
// disables the background sweep.
func WithSweepInterval(d time.Duration) Option {
	return func(c *Checkout) {
		c.sweepInterval = d
	}
}

// WithSweepConcurrency bounds the parallel gateway checks of one sweep.
func WithSweepConcurrency(n int) Option {
	return func(c *Checkout) {
		if n > 0 {
			c.sweepConcurrency = n
		}
	}
}

// WithSweepBatch bounds how many orders one sweep looks at.
func WithSweepBatch(n int) Option {
	return func(c *Checkout) {
		if n > 0 {
			c.sweepBatch = n
		}
	}
}

// WithSweepLock shares sweeps between instances through l.
func WithSweepLock(l sweeplock.Locker) Option {
	return func(c *Checkout) {
		c.locker = l
	}
}

// WithPrecheckTimeout bounds PreCheckout. The platform gives only a few
// seconds to answer.
func WithPrecheckTimeout(d time.Duration) Option {
	return func(c *Checkout) {
		if d > 0 {
			c.precheckTimeout = d
		}
	}
}

// WithVerifyWebhooks re-checks every webhook with the gateway before
// confirming.
func WithVerifyWebhooks(verify bool) Option {
	return func(c *Checkout) {
		c.verifyWebhooks = verify
	}
}

// WithNativePayments settles paid checkouts through in-chat invoices
// instead of gateway redirects.
func WithNativePayments(enabled bool) Option {
	return func(c *Checkout) {
		c.nativePayments = enabled
	}
}

// WithCurrency sets the single currency of the catalog.
func WithCurrency(currency string) Option {
	return func(c *Checkout) {
		if currency != "" {
			c.currency = types.Zero(currency).Currency
		}
	}
}

// WithReturnURL sets where the gateway sends the user after paying.
func WithReturnURL(url string) Option {
	return func(c *Checkout) {
		c.returnURL = url
	}
}

// Store returns the underlying store.
func (c *Checkout) Store() store.Store { return c.store }

// Plugins returns the plugin registry.
func (c *Checkout) Plugins() *plugin.Registry { return c.plugins }

// Gateway returns the configured payment provider, or nil.
func (c *Checkout) Gateway() gateway.Gateway { return c.gateway }

// Start migrates the store and begins background workers.
func (c *Checkout) Start(ctx context.Context) error {
	if err := c.store.Migrate(ctx); err != nil {
		return err
	}

	c.plugins.EmitInit(ctx, c)

	if c.sweepInterval > 0 {
		runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
		c.cancel = cancel
		c.wg.Add(1)
		go c.sweepWorker(runCtx)
	}

	c.logger.Info("checkout started",
		"gateway", c.gatewayName(),
		"sweep_interval", c.sweepInterval,
		"sweep_concurrency", c.sweepConcurrency,
		"native_payments", c.nativePayments,
		"verify_webhooks", c.verifyWebhooks,
	)

	return nil
}

// Stop shuts down background workers and closes the store. An in-flight
// sweep is abandoned.
func (c *Checkout) Stop() error {
	c.stopOnce.Do(func() {
		close(c.stopChan)
		if c.cancel != nil {
			c.cancel()
		}
	})
	c.wg.Wait()

	ctx := context.Background()
	c.plugins.EmitShutdown(ctx)

	return c.store.Close()
}

func (c *Checkout) gatewayName() string {
	if c.gateway == nil {
		return "none"
	}
	return c.gateway.Name()
}
