// Package plugin provides an extensible plugin system for checkout.
// Plugins hook into lifecycle events to add notifications, metrics and
// audit trails without the engine knowing about them.
package plugin

import (
	"context"
	"time"

	"github.com/xraph/checkout/order"
	"github.com/xraph/checkout/payment"
	"github.com/xraph/checkout/purchase"
	"github.com/xraph/checkout/user"
)

// Plugin is the base interface that all plugins must implement.
type Plugin interface {
	Name() string
}

// ──────────────────────────────────────────────────
// Lifecycle hooks
// ──────────────────────────────────────────────────

// OnInit is called when the engine starts.
type OnInit interface {
	Plugin
	OnInit(ctx context.Context, engine any) error
}

// OnShutdown is called when the engine stops.
type OnShutdown interface {
	Plugin
	OnShutdown(ctx context.Context) error
}

// ──────────────────────────────────────────────────
// Identity hooks
// ──────────────────────────────────────────────────

// OnUserCreated is called once per newly resolved identity.
type OnUserCreated interface {
	Plugin
	OnUserCreated(ctx context.Context, u *user.User) error
}

// ──────────────────────────────────────────────────
// Order lifecycle hooks
// ──────────────────────────────────────────────────

// OnOrderCreated is called after an order is persisted.
type OnOrderCreated interface {
	Plugin
	OnOrderCreated(ctx context.Context, o *order.Order) error
}

// OnPaymentCreated is called after a gateway payment is opened for an order.
type OnPaymentCreated interface {
	Plugin
	OnPaymentCreated(ctx context.Context, o *order.Order, gateway, ref string) error
}

// OnOrderPaid is called exactly once per order, by whichever confirmation
// performed the pending -> paid transition. User notifications belong here.
type OnOrderPaid interface {
	Plugin
	OnOrderPaid(ctx context.Context, o *order.Order, source payment.Source) error
}

// OnOrderFulfilled is called when the post-payment side effects completed.
type OnOrderFulfilled interface {
	Plugin
	OnOrderFulfilled(ctx context.Context, o *order.Order) error
}

// OnPurchaseRecorded is called with the records newly inserted for an order.
type OnPurchaseRecorded interface {
	Plugin
	OnPurchaseRecorded(ctx context.Context, records []*purchase.Record) error
}

// ──────────────────────────────────────────────────
// Reconciliation hooks
// ──────────────────────────────────────────────────

// OnConfirmation is called for every confirmation signal with its result:
// "confirmed", "already_handled" or "observed".
type OnConfirmation interface {
	Plugin
	OnConfirmation(ctx context.Context, c payment.Confirmation, result string) error
}

// OnWebhookReceived is called for every decoded provider webhook.
type OnWebhookReceived interface {
	Plugin
	OnWebhookReceived(ctx context.Context, provider string, event payment.WebhookEvent) error
}

// OnGatewayError is called when a gateway call fails.
type OnGatewayError interface {
	Plugin
	OnGatewayError(ctx context.Context, gateway, op string, err error) error
}

// OnSweepCompleted is called after each sweep pass.
type OnSweepCompleted interface {
	Plugin
	OnSweepCompleted(ctx context.Context, checked, confirmed, failed int, elapsed time.Duration) error
}
