package checkout

import (
	"context"
	"errors"
	"fmt"

	"github.com/xraph/checkout/id"
	"github.com/xraph/checkout/order"
	"github.com/xraph/checkout/payment"
)

// Result classifies what a confirmation did.
type Result string

const (
	// ResultConfirmed means this confirmation moved the order to paid.
	ResultConfirmed Result = "confirmed"
	// ResultAlreadyHandled means another confirmation got there first.
	ResultAlreadyHandled Result = "already_handled"
	// ResultObserved means the status was not a success and nothing changed.
	ResultObserved Result = "observed"
)

// Outcome is the result of Confirm.
type Outcome struct {
	OrderID id.OrderID
	Result  Result
	// Order is the order as read after the transition. Nil unless
	// Result is ResultConfirmed.
	Order *order.Order
	// Recorded is the number of purchase records this confirmation added.
	Recorded int
}

// Confirmed reports whether this call performed the pending -> paid
// transition.
func (o *Outcome) Confirmed() bool { return o.Result == ResultConfirmed }

// CheckResult is the answer to a manual payment check.
type CheckResult struct {
	Order   *order.Order
	Status  payment.Status
	Paid    bool
	Outcome *Outcome
}

// Pending reports whether the payment has not been confirmed yet. It is a
// normal answer, not an error.
func (r *CheckResult) Pending() bool { return !r.Paid }

// ──────────────────────────────────────────────────
// Reconciliation
// ──────────────────────────────────────────────────

// Confirm converges an order to paid. Any number of confirmations for the
// same order, from any source and in any order, perform the transition and
// its side effects exactly once.
func (c *Checkout) Confirm(ctx context.Context, conf payment.Confirmation) (*Outcome, error) {
	if !conf.Status.IsSuccess() {
		c.plugins.EmitConfirmation(ctx, conf, string(ResultObserved))
		c.logger.Debug("payment not successful",
			"order_id", conf.OrderID.String(),
			"status", string(conf.Status),
			"source", string(conf.Source),
		)
		return &Outcome{OrderID: conf.OrderID, Result: ResultObserved}, nil
	}

	won, err := c.store.SetOrderPaid(ctx, conf.OrderID, conf.PaymentRef, c.now())
	if err != nil {
		return nil, err
	}
	if !won {
		c.plugins.EmitConfirmation(ctx, conf, string(ResultAlreadyHandled))
		c.logger.Debug("order already paid",
			"order_id", conf.OrderID.String(),
			"source", string(conf.Source),
		)
		return &Outcome{OrderID: conf.OrderID, Result: ResultAlreadyHandled}, nil
	}

	o, err := c.store.GetOrder(ctx, conf.OrderID)
	if err != nil {
		return nil, err
	}

	c.logger.Info("order paid",
		"order_id", o.ID.String(),
		"user_id", o.UserID.String(),
		"total", o.Total.String(),
		"payment_ref", o.PaymentRef,
		"source", string(conf.Source),
	)

	recorded, err := c.fulfill(ctx, o, conf.Source)
	if err != nil {
		return nil, err
	}

	c.plugins.EmitConfirmation(ctx, conf, string(ResultConfirmed))
	return &Outcome{
		OrderID:  o.ID,
		Result:   ResultConfirmed,
		Order:    o,
		Recorded: recorded,
	}, nil
}

// fulfill runs the side effects of a paid order. Every step is idempotent,
// so a crash between SetOrderPaid and the end of fulfill is repaired by
// running it again. Only the caller that marks the order fulfilled bumps
// popularity and notifies.
func (c *Checkout) fulfill(ctx context.Context, o *order.Order, source payment.Source) (int, error) {
	recorded, err := c.RecordFromOrder(ctx, o)
	if err != nil {
		return 0, fmt.Errorf("record purchases of %s: %w", o.ID, err)
	}

	for _, productID := range o.ProductIDs() {
		if err := c.store.RemoveCartLine(ctx, o.UserID, productID); err != nil {
			return recorded, fmt.Errorf("clear cart of %s: %w", o.ID, err)
		}
	}

	at := c.now()
	won, err := c.store.MarkOrderFulfilled(ctx, o.ID, at)
	if err != nil {
		return recorded, fmt.Errorf("mark %s fulfilled: %w", o.ID, err)
	}
	if !won {
		return recorded, nil
	}
	o.FulfilledAt = &at

	for _, productID := range o.ProductIDs() {
		if err := c.store.BumpPopularity(ctx, productID); err != nil {
			c.logger.Warn("bump popularity failed",
				"product_id", productID.String(),
				"order_id", o.ID.String(),
				"error", err,
			)
		}
	}

	c.plugins.EmitOrderFulfilled(ctx, o)
	c.plugins.EmitOrderPaid(ctx, o, source)
	return recorded, nil
}

// HandleWebhook reconciles a provider push notification. Events that are
// not a payment success, and refs no order knows, are acknowledged
// without effect. Returned errors mean the provider should retry.
func (c *Checkout) HandleWebhook(ctx context.Context, ev payment.WebhookEvent) error {
	c.plugins.EmitWebhookReceived(ctx, c.gatewayName(), ev)

	if !ev.Actionable() {
		c.logger.Debug("webhook ignored",
			"event", ev.Event,
			"payment_ref", ev.Object.ID,
			"status", string(ev.Object.Status),
		)
		return nil
	}

	ref := ev.Object.ID
	o, err := c.store.GetOrderByPaymentRef(ctx, ref)
	if err != nil {
		if errors.Is(err, ErrOrderNotFound) {
			c.logger.Warn("webhook for unknown payment ref", "payment_ref", ref)
			return nil
		}
		return err
	}

	status := ev.Object.Status
	if c.verifyWebhooks && c.gateway != nil {
		status, err = c.checkGateway(ctx, ref)
		if err != nil {
			return err
		}
		if !status.IsSuccess() {
			c.logger.Warn("webhook not confirmed by gateway",
				"order_id", o.ID.String(),
				"payment_ref", ref,
				"status", string(status),
			)
			return nil
		}
	}

	_, err = c.Confirm(ctx, payment.Confirmation{
		OrderID:    o.ID,
		PaymentRef: ref,
		Status:     status,
		Source:     payment.SourceWebhook,
	})
	return err
}

// HandleNativePayment reconciles a successful in-chat payment. The charge
// id becomes the order's payment ref when it has none.
func (c *Checkout) HandleNativePayment(ctx context.Context, np payment.NativePayment) error {
	p, err := payment.ParsePayload(np.Payload)
	if err != nil {
		c.logger.Warn("native payment dropped",
			"principal_id", np.PrincipalID,
			"charge_id", np.ChargeID,
			"error", err,
		)
		return err
	}

	o, err := c.store.GetOrder(ctx, p.OrderID)
	if err != nil {
		if errors.Is(err, ErrOrderNotFound) {
			c.logger.Warn("native payment for unknown order",
				"order_id", p.OrderID.String(),
				"charge_id", np.ChargeID,
			)
		}
		return err
	}

	payer, err := c.store.GetUserByPrincipal(ctx, np.PrincipalID)
	switch {
	case errors.Is(err, ErrUserNotFound):
		return c.rejectNative(np, o, ErrOrderOwnerMismatch)
	case err != nil:
		return err
	case payer.ID != o.UserID:
		return c.rejectNative(np, o, ErrOrderOwnerMismatch)
	}

	if !np.Amount.IsZero() && !np.Amount.Equal(o.Total) {
		return c.rejectNative(np, o, ErrAmountMismatch)
	}

	_, err = c.Confirm(ctx, payment.Confirmation{
		OrderID:    o.ID,
		PaymentRef: np.ChargeID,
		Status:     payment.StatusSucceeded,
		Source:     payment.SourceNative,
	})
	return err
}

func (c *Checkout) rejectNative(np payment.NativePayment, o *order.Order, err error) error {
	c.logger.Warn("native payment rejected",
		"order_id", o.ID.String(),
		"principal_id", np.PrincipalID,
		"charge_id", np.ChargeID,
		"error", err,
	)
	return err
}

// PreCheckout answers the platform's query before a native payment is
// charged. It never writes. Malformed payloads and orders that are unknown
// or already paid are refused; store trouble approves the payment, since
// the confirmation path re-validates anyway.
func (c *Checkout) PreCheckout(ctx context.Context, payload string) payment.PrecheckResult {
	p, err := payment.ParsePayload(payload)
	if err != nil {
		return payment.PrecheckResult{Reason: "Invalid order"}
	}

	ctx, cancel := context.WithTimeout(ctx, c.precheckTimeout)
	defer cancel()

	o, err := c.store.GetOrder(ctx, p.OrderID)
	switch {
	case errors.Is(err, ErrOrderNotFound):
		return payment.PrecheckResult{Reason: "Order not found"}
	case err != nil:
		c.logger.Warn("precheck failed open",
			"order_id", p.OrderID.String(),
			"error", err,
		)
		return payment.PrecheckResult{OK: true}
	case o.IsPaid():
		return payment.PrecheckResult{Reason: "Order already paid"}
	}
	return payment.PrecheckResult{OK: true}
}

// CheckOrder asks the gateway about an order on the user's request. An
// empty paymentRef checks the ref stored on the order.
func (c *Checkout) CheckOrder(ctx context.Context, userID id.UserID, orderID id.OrderID, paymentRef string) (*CheckResult, error) {
	o, err := c.store.GetOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if o.UserID != userID {
		return nil, ErrOrderOwnerMismatch
	}
	if o.IsPaid() {
		return &CheckResult{Order: o, Status: payment.StatusSucceeded, Paid: true}, nil
	}

	if paymentRef == "" {
		paymentRef = o.PaymentRef
	}
	if paymentRef == "" || paymentRef != o.PaymentRef {
		return nil, ErrPaymentRefMismatch
	}
	if c.gateway == nil {
		return nil, ErrGatewayNotConfigured
	}

	status, err := c.checkGateway(ctx, paymentRef)
	if err != nil {
		return nil, err
	}
	if !status.IsSuccess() {
		return &CheckResult{Order: o, Status: status}, nil
	}

	out, err := c.Confirm(ctx, payment.Confirmation{
		OrderID:    o.ID,
		PaymentRef: paymentRef,
		Status:     status,
		Source:     payment.SourceManual,
	})
	if err != nil {
		return nil, err
	}
	if out.Order != nil {
		o = out.Order
	}
	return &CheckResult{Order: o, Status: status, Paid: true, Outcome: out}, nil
}

// checkGateway polls the gateway, reporting failures as ErrGatewayTransient.
func (c *Checkout) checkGateway(ctx context.Context, ref string) (payment.Status, error) {
	status, err := c.gateway.CheckPayment(ctx, ref)
	if err != nil {
		c.plugins.EmitGatewayError(ctx, c.gateway.Name(), "check_payment", err)
		c.logger.Warn("check payment failed",
			"payment_ref", ref,
			"gateway", c.gateway.Name(),
			"error", err,
		)
		return "", fmt.Errorf("%w: %w", ErrGatewayTransient, err)
	}
	return status, nil
}
