// Package audithook bridges checkout lifecycle events to an audit trail backend.
//
// It defines a local Recorder interface so the package does not import
// Chronicle directly. Callers inject a RecorderFunc adapter that bridges
// to Chronicle at wiring time.
package audithook

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/xraph/checkout/order"
	"github.com/xraph/checkout/payment"
	"github.com/xraph/checkout/plugin"
	"github.com/xraph/checkout/purchase"
	"github.com/xraph/checkout/user"
)

// Compile-time interface checks.
var (
	_ plugin.Plugin             = (*Extension)(nil)
	_ plugin.OnUserCreated      = (*Extension)(nil)
	_ plugin.OnOrderCreated     = (*Extension)(nil)
	_ plugin.OnPaymentCreated   = (*Extension)(nil)
	_ plugin.OnOrderPaid        = (*Extension)(nil)
	_ plugin.OnOrderFulfilled   = (*Extension)(nil)
	_ plugin.OnPurchaseRecorded = (*Extension)(nil)
	_ plugin.OnConfirmation     = (*Extension)(nil)
	_ plugin.OnWebhookReceived  = (*Extension)(nil)
	_ plugin.OnGatewayError     = (*Extension)(nil)
	_ plugin.OnSweepCompleted   = (*Extension)(nil)
)

// Recorder is the interface that audit backends must implement.
// This matches chronicle.Emitter but is defined locally so that the
// audit_hook package does not import Chronicle directly. Callers inject
// the concrete *chronicle.Chronicle at wiring time.
type Recorder interface {
	Record(ctx context.Context, event *AuditEvent) error
}

// AuditEvent is a local representation of an audit event.
// It mirrors chronicle/audit.Event but avoids a module dependency.
type AuditEvent struct {
	Action     string         `json:"action"`
	Resource   string         `json:"resource"`
	Category   string         `json:"category"`
	ResourceID string         `json:"resource_id,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
	Outcome    string         `json:"outcome"`
	Severity   string         `json:"severity"`
	Reason     string         `json:"reason,omitempty"`
}

// RecorderFunc is an adapter to use a plain function as a Recorder.
type RecorderFunc func(ctx context.Context, event *AuditEvent) error

// Record implements Recorder.
func (f RecorderFunc) Record(ctx context.Context, event *AuditEvent) error {
	return f(ctx, event)
}

// Extension bridges checkout lifecycle events to an audit trail backend.
type Extension struct {
	recorder Recorder
	enabled  map[string]bool // nil = all enabled
	logger   *slog.Logger
}

// New creates an Extension that emits audit events through the provided Recorder.
func New(r Recorder, opts ...Option) *Extension {
	e := &Extension{
		recorder: r,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Name implements plugin.Plugin.
func (e *Extension) Name() string { return "audit-hook" }

// OnUserCreated implements plugin.OnUserCreated.
func (e *Extension) OnUserCreated(ctx context.Context, u *user.User) error {
	return e.record(ctx, ActionUserCreated, SeverityInfo, OutcomeSuccess,
		ResourceUser, u.ID.String(), CategoryIdentity, nil,
		"principal_id", u.PrincipalID,
	)
}

// ──────────────────────────────────────────────────
// Order lifecycle hooks
// ──────────────────────────────────────────────────

// OnOrderCreated implements plugin.OnOrderCreated.
func (e *Extension) OnOrderCreated(ctx context.Context, o *order.Order) error {
	return e.record(ctx, ActionOrderCreated, SeverityInfo, OutcomeSuccess,
		ResourceOrder, o.ID.String(), CategoryOrder, nil,
		"user_id", o.UserID.String(),
		"total", o.Total.String(),
		"lines", len(o.Lines),
	)
}

// OnPaymentCreated implements plugin.OnPaymentCreated.
func (e *Extension) OnPaymentCreated(ctx context.Context, o *order.Order, gateway, ref string) error {
	return e.record(ctx, ActionPaymentCreated, SeverityInfo, OutcomeSuccess,
		ResourcePayment, ref, CategoryPayment, nil,
		"order_id", o.ID.String(),
		"gateway", gateway,
		"amount", o.Total.String(),
	)
}

// OnOrderPaid implements plugin.OnOrderPaid.
func (e *Extension) OnOrderPaid(ctx context.Context, o *order.Order, source payment.Source) error {
	return e.record(ctx, ActionOrderPaid, SeverityInfo, OutcomeSuccess,
		ResourceOrder, o.ID.String(), CategoryPayment, nil,
		"user_id", o.UserID.String(),
		"total", o.Total.String(),
		"payment_ref", o.PaymentRef,
		"source", string(source),
	)
}

// OnOrderFulfilled implements plugin.OnOrderFulfilled.
func (e *Extension) OnOrderFulfilled(ctx context.Context, o *order.Order) error {
	return e.record(ctx, ActionOrderFulfilled, SeverityInfo, OutcomeSuccess,
		ResourceOrder, o.ID.String(), CategoryOrder, nil,
		"user_id", o.UserID.String(),
	)
}

// OnPurchaseRecorded implements plugin.OnPurchaseRecorded.
func (e *Extension) OnPurchaseRecorded(ctx context.Context, records []*purchase.Record) error {
	for _, r := range records {
		if err := e.record(ctx, ActionPurchaseRecorded, SeverityInfo, OutcomeSuccess,
			ResourcePurchase, r.ID.String(), CategoryAccess, nil,
			"user_id", r.UserID.String(),
			"product_id", r.ProductID.String(),
			"order_id", r.OrderID.String(),
			"price", r.Price.String(),
		); err != nil {
			return err
		}
	}
	return nil
}

// ──────────────────────────────────────────────────
// Reconciliation hooks
// ──────────────────────────────────────────────────

// OnConfirmation implements plugin.OnConfirmation. Confirmed transitions
// are audited through OnOrderPaid; only the other outcomes land here.
func (e *Extension) OnConfirmation(ctx context.Context, c payment.Confirmation, result string) error {
	action := ActionPaymentObserved
	switch result {
	case "confirmed":
		return nil
	case "already_handled":
		action = ActionPaymentAlreadyHandled
	}
	return e.record(ctx, action, SeverityInfo, OutcomeSuccess,
		ResourceOrder, c.OrderID.String(), CategoryPayment, nil,
		"payment_ref", c.PaymentRef,
		"status", string(c.Status),
		"source", string(c.Source),
	)
}

// OnWebhookReceived implements plugin.OnWebhookReceived.
func (e *Extension) OnWebhookReceived(ctx context.Context, provider string, ev payment.WebhookEvent) error {
	return e.record(ctx, ActionWebhookReceived, SeverityInfo, OutcomeSuccess,
		ResourceWebhook, ev.Object.ID, CategoryIntegration, nil,
		"provider", provider,
		"event", ev.Event,
		"status", string(ev.Object.Status),
	)
}

// OnGatewayError implements plugin.OnGatewayError.
func (e *Extension) OnGatewayError(ctx context.Context, gateway, op string, err error) error {
	return e.record(ctx, ActionGatewayError, SeverityError, OutcomeFailure,
		ResourceGateway, gateway, CategoryIntegration, err,
		"op", op,
	)
}

// OnSweepCompleted implements plugin.OnSweepCompleted.
func (e *Extension) OnSweepCompleted(ctx context.Context, checked, confirmed, failed int, elapsed time.Duration) error {
	if checked == 0 && failed == 0 {
		return nil
	}
	outcome := OutcomeSuccess
	severity := SeverityInfo
	if failed > 0 {
		outcome = OutcomePartial
		severity = SeverityWarning
	}
	return e.record(ctx, ActionSweepCompleted, severity, outcome,
		ResourceSweep, "", CategoryPayment, nil,
		"checked", checked,
		"confirmed", confirmed,
		"failed", failed,
		"elapsed_ms", elapsed.Milliseconds(),
	)
}

// ──────────────────────────────────────────────────
// Internal helpers
// ──────────────────────────────────────────────────

// record builds and sends an audit event if the action is enabled.
func (e *Extension) record(
	ctx context.Context,
	action, severity, outcome string,
	resource, resourceID, category string,
	err error,
	kvPairs ...any,
) error {
	if e.enabled != nil && !e.enabled[action] {
		return nil
	}

	meta := make(map[string]any, len(kvPairs)/2+1)
	for i := 0; i+1 < len(kvPairs); i += 2 {
		key, ok := kvPairs[i].(string)
		if !ok {
			key = fmt.Sprintf("%v", kvPairs[i])
		}
		meta[key] = kvPairs[i+1]
	}

	var reason string
	if err != nil {
		reason = err.Error()
		meta["error"] = err.Error()
	}

	evt := &AuditEvent{
		Action:     action,
		Resource:   resource,
		Category:   category,
		ResourceID: resourceID,
		Metadata:   meta,
		Outcome:    outcome,
		Severity:   severity,
		Reason:     reason,
	}

	if recErr := e.recorder.Record(ctx, evt); recErr != nil {
		e.logger.Warn("audit_hook: failed to record audit event",
			"action", action,
			"resource_id", resourceID,
			"error", recErr,
		)
	}
	return nil
}
