// Package payment defines the confirmation signals that drive an order to
// its paid state, and the native payment payload wire form.
package payment

import (
	"time"

	"github.com/xraph/checkout/id"
	"github.com/xraph/checkout/types"
)

// Source identifies which channel reported a payment.
type Source string

const (
	SourceWebhook Source = "webhook"
	SourceNative  Source = "native"
	SourceManual  Source = "manual"
	SourceSweep   Source = "sweep"
	// SourceFree marks zero-total orders that need no payment at all.
	SourceFree Source = "free"
	// SourceGateway marks gateways that settle synchronously, without a
	// confirmation URL.
	SourceGateway Source = "gateway"
)

// Status is a provider payment status.
type Status string

const (
	StatusPending           Status = "pending"
	StatusWaitingForCapture Status = "waiting_for_capture"
	StatusSucceeded         Status = "succeeded"
	StatusCanceled          Status = "canceled"
	// StatusPaid is reported by test gateways that settle instantly.
	StatusPaid Status = "paid"
)

// IsSuccess reports whether the status means money was received.
func (s Status) IsSuccess() bool {
	return s == StatusSucceeded || s == StatusPaid
}

// IsTerminal reports whether the provider will never change the status again.
func (s Status) IsTerminal() bool {
	return s.IsSuccess() || s == StatusCanceled
}

// Confirmation is one report, from any source, that a payment changed state.
type Confirmation struct {
	OrderID    id.OrderID
	PaymentRef string
	Status     Status
	Source     Source
}

// EventPaymentSucceeded is the only actionable webhook event.
const EventPaymentSucceeded = "payment.succeeded"

// WebhookEvent is the decoded provider push notification.
type WebhookEvent struct {
	Event  string        `json:"event"`
	Object WebhookObject `json:"object"`
}

// WebhookObject is the payment carried by a webhook.
type WebhookObject struct {
	ID     string `json:"id"`
	Status Status `json:"status"`
}

// Actionable reports whether the event should be reconciled at all.
func (e WebhookEvent) Actionable() bool {
	return e.Event == EventPaymentSucceeded && e.Object.Status == StatusSucceeded && e.Object.ID != ""
}

// NativePayment is a successful in-chat payment reported by the messaging
// platform.
type NativePayment struct {
	PrincipalID int64
	Payload     string
	ChargeID    string
	Amount      types.Money
	PaidAt      time.Time
}

// PrecheckResult answers the platform's pre-checkout query.
type PrecheckResult struct {
	OK     bool
	Reason string
}
