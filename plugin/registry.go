package plugin

import (
	"context"
	"fmt"
	"log/slog"
	"reflect"
	"sync"
	"time"

	"github.com/xraph/checkout/order"
	"github.com/xraph/checkout/payment"
	"github.com/xraph/checkout/purchase"
	"github.com/xraph/checkout/user"
)

// DefaultHookTimeout bounds every plugin call.
const DefaultHookTimeout = 5 * time.Second

// Registry manages all registered plugins and provides efficient dispatch.
// It uses type-cached discovery so emitting never type-asserts.
type Registry struct {
	mu      sync.RWMutex
	plugins []Plugin
	logger  *slog.Logger
	timeout time.Duration

	// Type-cached plugin lists for efficient dispatch
	onInit             []OnInit
	onShutdown         []OnShutdown
	onUserCreated      []OnUserCreated
	onOrderCreated     []OnOrderCreated
	onPaymentCreated   []OnPaymentCreated
	onOrderPaid        []OnOrderPaid
	onOrderFulfilled   []OnOrderFulfilled
	onPurchaseRecorded []OnPurchaseRecorded
	onConfirmation     []OnConfirmation
	onWebhookReceived  []OnWebhookReceived
	onGatewayError     []OnGatewayError
	onSweepCompleted   []OnSweepCompleted
}

// NewRegistry creates a new plugin registry.
func NewRegistry() *Registry {
	return &Registry{
		logger:  slog.Default(),
		timeout: DefaultHookTimeout,
	}
}

// WithLogger sets the logger for the registry.
func (r *Registry) WithLogger(logger *slog.Logger) *Registry {
	r.logger = logger
	return r
}

// WithTimeout sets the per-call hook timeout.
func (r *Registry) WithTimeout(d time.Duration) *Registry {
	if d > 0 {
		r.timeout = d
	}
	return r
}

// Register adds a plugin to the registry and caches its interfaces.
func (r *Registry) Register(p Plugin) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, existing := range r.plugins {
		if existing.Name() == p.Name() {
			return fmt.Errorf("plugin: duplicate registration: %s", p.Name())
		}
	}

	r.plugins = append(r.plugins, p)

	if v, ok := p.(OnInit); ok {
		r.onInit = append(r.onInit, v)
	}
	if v, ok := p.(OnShutdown); ok {
		r.onShutdown = append(r.onShutdown, v)
	}
	if v, ok := p.(OnUserCreated); ok {
		r.onUserCreated = append(r.onUserCreated, v)
	}
	if v, ok := p.(OnOrderCreated); ok {
		r.onOrderCreated = append(r.onOrderCreated, v)
	}
	if v, ok := p.(OnPaymentCreated); ok {
		r.onPaymentCreated = append(r.onPaymentCreated, v)
	}
	if v, ok := p.(OnOrderPaid); ok {
		r.onOrderPaid = append(r.onOrderPaid, v)
	}
	if v, ok := p.(OnOrderFulfilled); ok {
		r.onOrderFulfilled = append(r.onOrderFulfilled, v)
	}
	if v, ok := p.(OnPurchaseRecorded); ok {
		r.onPurchaseRecorded = append(r.onPurchaseRecorded, v)
	}
	if v, ok := p.(OnConfirmation); ok {
		r.onConfirmation = append(r.onConfirmation, v)
	}
	if v, ok := p.(OnWebhookReceived); ok {
		r.onWebhookReceived = append(r.onWebhookReceived, v)
	}
	if v, ok := p.(OnGatewayError); ok {
		r.onGatewayError = append(r.onGatewayError, v)
	}
	if v, ok := p.(OnSweepCompleted); ok {
		r.onSweepCompleted = append(r.onSweepCompleted, v)
	}

	r.logger.Info("plugin registered",
		"name", p.Name(),
		"interfaces", implementedInterfaces(p),
	)

	return nil
}

// implementedInterfaces returns the hook names a plugin implements.
func implementedInterfaces(p Plugin) []string {
	var interfaces []string
	v := reflect.TypeOf(p)

	check := func(iface reflect.Type, name string) {
		if v.Implements(iface) {
			interfaces = append(interfaces, name)
		}
	}

	check(reflect.TypeOf((*OnInit)(nil)).Elem(), "OnInit")
	check(reflect.TypeOf((*OnShutdown)(nil)).Elem(), "OnShutdown")
	check(reflect.TypeOf((*OnUserCreated)(nil)).Elem(), "OnUserCreated")
	check(reflect.TypeOf((*OnOrderCreated)(nil)).Elem(), "OnOrderCreated")
	check(reflect.TypeOf((*OnPaymentCreated)(nil)).Elem(), "OnPaymentCreated")
	check(reflect.TypeOf((*OnOrderPaid)(nil)).Elem(), "OnOrderPaid")
	check(reflect.TypeOf((*OnOrderFulfilled)(nil)).Elem(), "OnOrderFulfilled")
	check(reflect.TypeOf((*OnPurchaseRecorded)(nil)).Elem(), "OnPurchaseRecorded")
	check(reflect.TypeOf((*OnConfirmation)(nil)).Elem(), "OnConfirmation")
	check(reflect.TypeOf((*OnWebhookReceived)(nil)).Elem(), "OnWebhookReceived")
	check(reflect.TypeOf((*OnGatewayError)(nil)).Elem(), "OnGatewayError")
	check(reflect.TypeOf((*OnSweepCompleted)(nil)).Elem(), "OnSweepCompleted")

	return interfaces
}

// Get returns a plugin by name.
func (r *Registry) Get(name string) Plugin {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, p := range r.plugins {
		if p.Name() == name {
			return p
		}
	}
	return nil
}

// List returns all registered plugins.
func (r *Registry) List() []Plugin {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]Plugin, len(r.plugins))
	copy(result, r.plugins)
	return result
}

// Count returns the number of registered plugins.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.plugins)
}

// ──────────────────────────────────────────────────
// Event emission methods
// ──────────────────────────────────────────────────

// EmitInit calls OnInit for all plugins that implement it.
func (r *Registry) EmitInit(ctx context.Context, engine any) {
	emit(ctx, r, "OnInit", snapshot(r, &r.onInit), func(p OnInit) error {
		return p.OnInit(ctx, engine)
	})
}

// EmitShutdown calls OnShutdown for all plugins that implement it.
func (r *Registry) EmitShutdown(ctx context.Context) {
	emit(ctx, r, "OnShutdown", snapshot(r, &r.onShutdown), func(p OnShutdown) error {
		return p.OnShutdown(ctx)
	})
}

// EmitUserCreated emits a user created event.
func (r *Registry) EmitUserCreated(ctx context.Context, u *user.User) {
	emit(ctx, r, "OnUserCreated", snapshot(r, &r.onUserCreated), func(p OnUserCreated) error {
		return p.OnUserCreated(ctx, u)
	})
}

// EmitOrderCreated emits an order created event.
func (r *Registry) EmitOrderCreated(ctx context.Context, o *order.Order) {
	emit(ctx, r, "OnOrderCreated", snapshot(r, &r.onOrderCreated), func(p OnOrderCreated) error {
		return p.OnOrderCreated(ctx, o)
	})
}

// EmitPaymentCreated emits a payment created event.
func (r *Registry) EmitPaymentCreated(ctx context.Context, o *order.Order, gateway, ref string) {
	emit(ctx, r, "OnPaymentCreated", snapshot(r, &r.onPaymentCreated), func(p OnPaymentCreated) error {
		return p.OnPaymentCreated(ctx, o, gateway, ref)
	})
}

// EmitOrderPaid emits an order paid event.
func (r *Registry) EmitOrderPaid(ctx context.Context, o *order.Order, source payment.Source) {
	emit(ctx, r, "OnOrderPaid", snapshot(r, &r.onOrderPaid), func(p OnOrderPaid) error {
		return p.OnOrderPaid(ctx, o, source)
	})
}

// EmitOrderFulfilled emits an order fulfilled event.
func (r *Registry) EmitOrderFulfilled(ctx context.Context, o *order.Order) {
	emit(ctx, r, "OnOrderFulfilled", snapshot(r, &r.onOrderFulfilled), func(p OnOrderFulfilled) error {
		return p.OnOrderFulfilled(ctx, o)
	})
}

// EmitPurchaseRecorded emits a purchase recorded event.
func (r *Registry) EmitPurchaseRecorded(ctx context.Context, records []*purchase.Record) {
	emit(ctx, r, "OnPurchaseRecorded", snapshot(r, &r.onPurchaseRecorded), func(p OnPurchaseRecorded) error {
		return p.OnPurchaseRecorded(ctx, records)
	})
}

// EmitConfirmation emits a confirmation event.
func (r *Registry) EmitConfirmation(ctx context.Context, c payment.Confirmation, result string) {
	emit(ctx, r, "OnConfirmation", snapshot(r, &r.onConfirmation), func(p OnConfirmation) error {
		return p.OnConfirmation(ctx, c, result)
	})
}

// EmitWebhookReceived emits a webhook received event.
func (r *Registry) EmitWebhookReceived(ctx context.Context, provider string, event payment.WebhookEvent) {
	emit(ctx, r, "OnWebhookReceived", snapshot(r, &r.onWebhookReceived), func(p OnWebhookReceived) error {
		return p.OnWebhookReceived(ctx, provider, event)
	})
}

// EmitGatewayError emits a gateway error event.
func (r *Registry) EmitGatewayError(ctx context.Context, gateway, op string, err error) {
	emit(ctx, r, "OnGatewayError", snapshot(r, &r.onGatewayError), func(p OnGatewayError) error {
		return p.OnGatewayError(ctx, gateway, op, err)
	})
}

// EmitSweepCompleted emits a sweep completed event.
func (r *Registry) EmitSweepCompleted(ctx context.Context, checked, confirmed, failed int, elapsed time.Duration) {
	emit(ctx, r, "OnSweepCompleted", snapshot(r, &r.onSweepCompleted), func(p OnSweepCompleted) error {
		return p.OnSweepCompleted(ctx, checked, confirmed, failed, elapsed)
	})
}

// snapshot reads a cached hook list under the read lock.
func snapshot[T any](r *Registry, list *[]T) []T {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return *list
}

// emit calls fn for every plugin, logging failures. Hooks never fail the
// operation that emitted them.
func emit[T Plugin](ctx context.Context, r *Registry, hook string, plugins []T, fn func(T) error) {
	for _, p := range plugins {
		if err := r.callWithTimeout(ctx, p.Name(), func() error {
			return fn(p)
		}); err != nil {
			r.logger.Warn("plugin "+hook+" failed",
				"plugin", p.Name(),
				"error", err,
			)
		}
	}
}

// callWithTimeout calls a plugin function with a timeout.
// Plugins should never block the payment pipeline.
func (r *Registry) callWithTimeout(ctx context.Context, pluginName string, fn func() error) error {
	done := make(chan error, 1)

	go func() {
		done <- fn()
	}()

	timer := time.NewTimer(r.timeout)
	defer timer.Stop()

	select {
	case err := <-done:
		return err
	case <-timer.C:
		return fmt.Errorf("plugin timeout: %s", pluginName)
	case <-ctx.Done():
		return ctx.Err()
	}
}
