// Package observability provides a metrics extension for checkout that
// records order and reconciliation counts via a MetricFactory.
package observability

import (
	"context"
	"time"

	"github.com/xraph/checkout/order"
	"github.com/xraph/checkout/payment"
	"github.com/xraph/checkout/plugin"
	"github.com/xraph/checkout/purchase"
	"github.com/xraph/checkout/user"
)

// Ensure MetricsExtension implements required interfaces.
var (
	_ plugin.Plugin             = (*MetricsExtension)(nil)
	_ plugin.OnInit             = (*MetricsExtension)(nil)
	_ plugin.OnUserCreated      = (*MetricsExtension)(nil)
	_ plugin.OnOrderCreated     = (*MetricsExtension)(nil)
	_ plugin.OnPaymentCreated   = (*MetricsExtension)(nil)
	_ plugin.OnOrderPaid        = (*MetricsExtension)(nil)
	_ plugin.OnOrderFulfilled   = (*MetricsExtension)(nil)
	_ plugin.OnPurchaseRecorded = (*MetricsExtension)(nil)
	_ plugin.OnConfirmation     = (*MetricsExtension)(nil)
	_ plugin.OnWebhookReceived  = (*MetricsExtension)(nil)
	_ plugin.OnGatewayError     = (*MetricsExtension)(nil)
	_ plugin.OnSweepCompleted   = (*MetricsExtension)(nil)
)

// Counter interface for metric counters.
type Counter interface {
	Inc()
	Add(float64)
}

// Histogram interface for metric histograms.
type Histogram interface {
	Observe(float64)
}

// MetricFactory creates metrics.
type MetricFactory interface {
	Counter(name string) Counter
	Histogram(name string) Histogram
}

// MetricsExtension records system-wide lifecycle metrics.
// Register it as a checkout plugin to track orders and payments.
type MetricsExtension struct {
	factory MetricFactory

	// Identity metrics
	UserCreated Counter

	// Order metrics
	OrderCreated   Counter
	OrderTotal     Histogram
	OrderPaid      Counter
	OrderFulfilled Counter
	PaidBySource   map[payment.Source]Counter

	// Purchase metrics
	PurchasesRecorded Counter

	// Reconciliation metrics
	ConfirmationsConfirmed      Counter
	ConfirmationsAlreadyHandled Counter
	ConfirmationsObserved       Counter
	WebhookReceived             Counter

	// Gateway metrics
	PaymentCreated Counter
	GatewayErrors  Counter

	// Sweep metrics
	SweepChecked   Counter
	SweepConfirmed Counter
	SweepFailed    Counter
	SweepLatency   Histogram
}

// NewMetricsExtension creates a MetricsExtension with the provided MetricFactory.
// Use app.Metrics() in forge extensions.
func NewMetricsExtension(factory MetricFactory) *MetricsExtension {
	m := &MetricsExtension{
		factory: factory,

		UserCreated: factory.Counter("checkout.user.created"),

		OrderCreated:   factory.Counter("checkout.order.created"),
		OrderTotal:     factory.Histogram("checkout.order.total_amount"),
		OrderPaid:      factory.Counter("checkout.order.paid"),
		OrderFulfilled: factory.Counter("checkout.order.fulfilled"),
		PaidBySource:   make(map[payment.Source]Counter),

		PurchasesRecorded: factory.Counter("checkout.purchase.recorded"),

		ConfirmationsConfirmed:      factory.Counter("checkout.confirmation.confirmed"),
		ConfirmationsAlreadyHandled: factory.Counter("checkout.confirmation.already_handled"),
		ConfirmationsObserved:       factory.Counter("checkout.confirmation.observed"),
		WebhookReceived:             factory.Counter("checkout.webhook.received"),

		PaymentCreated: factory.Counter("checkout.gateway.payment.created"),
		GatewayErrors:  factory.Counter("checkout.gateway.errors"),

		SweepChecked:   factory.Counter("checkout.sweep.checked"),
		SweepConfirmed: factory.Counter("checkout.sweep.confirmed"),
		SweepFailed:    factory.Counter("checkout.sweep.failed"),
		SweepLatency:   factory.Histogram("checkout.sweep.latency_ms"),
	}

	for _, s := range []payment.Source{
		payment.SourceWebhook,
		payment.SourceNative,
		payment.SourceManual,
		payment.SourceSweep,
		payment.SourceFree,
		payment.SourceGateway,
	} {
		m.PaidBySource[s] = factory.Counter("checkout.order.paid." + string(s))
	}

	return m
}

// Name implements plugin.Plugin.
func (m *MetricsExtension) Name() string { return "observability-metrics" }

// OnInit implements plugin.OnInit.
func (m *MetricsExtension) OnInit(_ context.Context, _ any) error {
	return nil
}

// OnUserCreated implements plugin.OnUserCreated.
func (m *MetricsExtension) OnUserCreated(_ context.Context, _ *user.User) error {
	m.UserCreated.Inc()
	return nil
}

// ──────────────────────────────────────────────────
// Order lifecycle hooks
// ──────────────────────────────────────────────────

// OnOrderCreated implements plugin.OnOrderCreated.
func (m *MetricsExtension) OnOrderCreated(_ context.Context, o *order.Order) error {
	m.OrderCreated.Inc()
	m.OrderTotal.Observe(float64(o.Total.Amount))
	return nil
}

// OnPaymentCreated implements plugin.OnPaymentCreated.
func (m *MetricsExtension) OnPaymentCreated(_ context.Context, _ *order.Order, _, _ string) error {
	m.PaymentCreated.Inc()
	return nil
}

// OnOrderPaid implements plugin.OnOrderPaid.
func (m *MetricsExtension) OnOrderPaid(_ context.Context, _ *order.Order, source payment.Source) error {
	m.OrderPaid.Inc()
	if c, ok := m.PaidBySource[source]; ok {
		c.Inc()
	}
	return nil
}

// OnOrderFulfilled implements plugin.OnOrderFulfilled.
func (m *MetricsExtension) OnOrderFulfilled(_ context.Context, _ *order.Order) error {
	m.OrderFulfilled.Inc()
	return nil
}

// OnPurchaseRecorded implements plugin.OnPurchaseRecorded.
func (m *MetricsExtension) OnPurchaseRecorded(_ context.Context, records []*purchase.Record) error {
	m.PurchasesRecorded.Add(float64(len(records)))
	return nil
}

// ──────────────────────────────────────────────────
// Reconciliation hooks
// ──────────────────────────────────────────────────

// OnConfirmation implements plugin.OnConfirmation.
func (m *MetricsExtension) OnConfirmation(_ context.Context, _ payment.Confirmation, result string) error {
	switch result {
	case "confirmed":
		m.ConfirmationsConfirmed.Inc()
	case "already_handled":
		m.ConfirmationsAlreadyHandled.Inc()
	default:
		m.ConfirmationsObserved.Inc()
	}
	return nil
}

// OnWebhookReceived implements plugin.OnWebhookReceived.
func (m *MetricsExtension) OnWebhookReceived(_ context.Context, _ string, _ payment.WebhookEvent) error {
	m.WebhookReceived.Inc()
	return nil
}

// OnGatewayError implements plugin.OnGatewayError.
func (m *MetricsExtension) OnGatewayError(_ context.Context, _, _ string, _ error) error {
	m.GatewayErrors.Inc()
	return nil
}

// OnSweepCompleted implements plugin.OnSweepCompleted.
func (m *MetricsExtension) OnSweepCompleted(_ context.Context, checked, confirmed, failed int, elapsed time.Duration) error {
	m.SweepChecked.Add(float64(checked))
	m.SweepConfirmed.Add(float64(confirmed))
	m.SweepFailed.Add(float64(failed))
	m.SweepLatency.Observe(float64(elapsed.Milliseconds()))
	return nil
}
