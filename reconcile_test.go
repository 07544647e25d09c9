package checkout_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xraph/checkout"
	"github.com/xraph/checkout/catalog"
	"github.com/xraph/checkout/id"
	"github.com/xraph/checkout/order"
	"github.com/xraph/checkout/payment"
	"github.com/xraph/checkout/store/memory"
	"github.com/xraph/checkout/types"
	"github.com/xraph/checkout/user"
)

// pendingOrder places a redirect order for two products and returns it
// together with its buyer.
func (f *fixture) pendingOrder(principal int64) (*user.User, *order.Order, []*catalog.Product) {
	f.t.Helper()
	u := f.user(principal)
	products := []*catalog.Product{f.product("P1", 500), f.product("P2", 0)}
	f.addToCart(u, products...)

	intent, err := f.c.Checkout(f.ctx, u.ID)
	require.NoError(f.t, err)
	require.Equal(f.t, checkout.MethodRedirect, intent.Method)
	return u, intent.Order, products
}

func (f *fixture) assertFulfilledOnce(u *user.User, o *order.Order, products []*catalog.Product) {
	f.t.Helper()

	stored := f.order(o.ID)
	assert.Equal(f.t, order.StatusPaid, stored.Status)
	assert.True(f.t, stored.IsFulfilled())

	records, err := f.store.ListPurchases(f.ctx, u.ID)
	require.NoError(f.t, err)
	assert.Len(f.t, records, len(products))

	lines, err := f.c.ListCart(f.ctx, u.ID)
	require.NoError(f.t, err)
	assert.Empty(f.t, lines)

	for _, p := range products {
		got, err := f.store.GetProduct(f.ctx, p.ID)
		require.NoError(f.t, err)
		assert.Equal(f.t, int64(1), got.Popularity, "popularity of %s", p.Name)
	}
	assert.Equal(f.t, 1, f.rec.paidCount(o.ID))
}

func TestConfirmConcurrentSignalsConvergeOnce(t *testing.T) {
	f := newFixture(t)
	u, o, products := f.pendingOrder(1)

	sources := []payment.Source{
		payment.SourceWebhook, payment.SourceNative, payment.SourceManual, payment.SourceSweep,
	}
	const n = 40
	results := make([]checkout.Result, n)
	errs := make([]error, n)

	var wg sync.WaitGroup
	for i := range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			out, err := f.c.Confirm(f.ctx, payment.Confirmation{
				OrderID:    o.ID,
				PaymentRef: o.PaymentRef,
				Status:     payment.StatusSucceeded,
				Source:     sources[i%len(sources)],
			})
			errs[i] = err
			if out != nil {
				results[i] = out.Result
			}
		}()
	}
	wg.Wait()

	confirmed := 0
	for i := range n {
		require.NoError(t, errs[i])
		if results[i] == checkout.ResultConfirmed {
			confirmed++
		} else {
			assert.Equal(t, checkout.ResultAlreadyHandled, results[i])
		}
	}
	assert.Equal(t, 1, confirmed)
	f.assertFulfilledOnce(u, o, products)
}

func TestConfirmKeepsFirstPaymentRef(t *testing.T) {
	f := newFixture(t)
	u := f.user(1)
	p := f.product("Course", 500)

	o, err := f.c.CreateOrderFromLines(f.ctx, u.ID, []order.Line{{ProductID: p.ID, Quantity: 1, UnitPrice: p.Price}})
	require.NoError(t, err)

	_, err = f.c.Confirm(f.ctx, payment.Confirmation{OrderID: o.ID, PaymentRef: "charge-1", Status: payment.StatusSucceeded})
	require.NoError(t, err)
	out, err := f.c.Confirm(f.ctx, payment.Confirmation{OrderID: o.ID, PaymentRef: "charge-2", Status: payment.StatusSucceeded})
	require.NoError(t, err)

	assert.Equal(t, checkout.ResultAlreadyHandled, out.Result)
	assert.Equal(t, "charge-1", f.order(o.ID).PaymentRef)
}

func TestConfirmIgnoresNonSuccess(t *testing.T) {
	f := newFixture(t)
	_, o, _ := f.pendingOrder(1)

	for _, s := range []payment.Status{payment.StatusPending, payment.StatusWaitingForCapture, payment.StatusCanceled} {
		out, err := f.c.Confirm(f.ctx, payment.Confirmation{OrderID: o.ID, Status: s, Source: payment.SourceSweep})
		require.NoError(t, err)
		assert.Equal(t, checkout.ResultObserved, out.Result)
	}
	assert.Equal(t, order.StatusPending, f.order(o.ID).Status)
}

func TestConfirmUnknownOrder(t *testing.T) {
	f := newFixture(t)

	_, err := f.c.Confirm(f.ctx, payment.Confirmation{OrderID: id.NewOrderID(), Status: payment.StatusSucceeded})
	assert.ErrorIs(t, err, checkout.ErrOrderNotFound)
}

func TestEntitlementIsMonotonic(t *testing.T) {
	f := newFixture(t)
	u, o, products := f.pendingOrder(1)

	_, err := f.c.Confirm(f.ctx, payment.Confirmation{OrderID: o.ID, Status: payment.StatusSucceeded})
	require.NoError(t, err)

	// Late and contradictory signals change nothing.
	_, err = f.c.Confirm(f.ctx, payment.Confirmation{OrderID: o.ID, Status: payment.StatusCanceled})
	require.NoError(t, err)
	require.NoError(t, f.c.HandleWebhook(f.ctx, payment.WebhookEvent{
		Event:  payment.EventPaymentSucceeded,
		Object: payment.WebhookObject{ID: o.PaymentRef, Status: payment.StatusSucceeded},
	}))

	for _, p := range products {
		owned, err := f.c.Owns(f.ctx, u.ID, p.ID)
		require.NoError(t, err)
		assert.True(t, owned)
	}
	f.assertFulfilledOnce(u, o, products)
}

// ──────────────────────────────────────────────────
// Entry points
// ──────────────────────────────────────────────────

func TestWebhookAndManualCheckRace(t *testing.T) {
	f := newFixture(t)
	u, o, products := f.pendingOrder(1)

	var wg sync.WaitGroup
	var webhookErr, checkErr error
	wg.Add(2)
	go func() {
		defer wg.Done()
		webhookErr = f.c.HandleWebhook(f.ctx, payment.WebhookEvent{
			Event:  payment.EventPaymentSucceeded,
			Object: payment.WebhookObject{ID: o.PaymentRef, Status: payment.StatusSucceeded},
		})
	}()
	go func() {
		defer wg.Done()
		_, checkErr = f.c.CheckOrder(f.ctx, u.ID, o.ID, o.PaymentRef)
	}()
	wg.Wait()

	require.NoError(t, webhookErr)
	require.NoError(t, checkErr)
	f.assertFulfilledOnce(u, o, products)
}

func TestManualCheckPendingHasNoSideEffects(t *testing.T) {
	f := newFixture(t)
	u, o, _ := f.pendingOrder(1)
	f.gw.SetStatus(o.PaymentRef, payment.StatusPending)

	res, err := f.c.CheckOrder(f.ctx, u.ID, o.ID, "")
	require.NoError(t, err)
	assert.True(t, res.Pending())
	assert.Equal(t, payment.StatusPending, res.Status)

	assert.Equal(t, order.StatusPending, f.order(o.ID).Status)
	records, err := f.store.ListPurchases(f.ctx, u.ID)
	require.NoError(t, err)
	assert.Empty(t, records)
	lines, err := f.c.ListCart(f.ctx, u.ID)
	require.NoError(t, err)
	assert.Len(t, lines, 2)
}

func TestManualCheckConfirms(t *testing.T) {
	f := newFixture(t)
	u, o, products := f.pendingOrder(1)
	f.gw.SetStatus(o.PaymentRef, payment.StatusSucceeded)

	res, err := f.c.CheckOrder(f.ctx, u.ID, o.ID, o.PaymentRef)
	require.NoError(t, err)
	assert.True(t, res.Paid)
	require.NotNil(t, res.Outcome)
	assert.True(t, res.Outcome.Confirmed())
	f.assertFulfilledOnce(u, o, products)

	again, err := f.c.CheckOrder(f.ctx, u.ID, o.ID, o.PaymentRef)
	require.NoError(t, err)
	assert.True(t, again.Paid)
	assert.Equal(t, 1, f.gw.Checks(o.PaymentRef), "paid orders are not polled again")
}

func TestManualCheckRejections(t *testing.T) {
	f := newFixture(t)
	u, o, _ := f.pendingOrder(1)
	stranger := f.user(2)

	_, err := f.c.CheckOrder(f.ctx, stranger.ID, o.ID, o.PaymentRef)
	assert.ErrorIs(t, err, checkout.ErrOrderOwnerMismatch)

	_, err = f.c.CheckOrder(f.ctx, u.ID, o.ID, "some-other-payment")
	assert.ErrorIs(t, err, checkout.ErrPaymentRefMismatch)

	f.gw.FailCheck(errors.New("timeout"))
	_, err = f.c.CheckOrder(f.ctx, u.ID, o.ID, o.PaymentRef)
	assert.ErrorIs(t, err, checkout.ErrGatewayTransient)

	assert.Equal(t, order.StatusPending, f.order(o.ID).Status)
}

func TestWebhookUnknownRefIsAcknowledged(t *testing.T) {
	f := newFixture(t)
	u, o, _ := f.pendingOrder(1)

	err := f.c.HandleWebhook(f.ctx, payment.WebhookEvent{
		Event:  payment.EventPaymentSucceeded,
		Object: payment.WebhookObject{ID: "never-issued", Status: payment.StatusSucceeded},
	})
	require.NoError(t, err)

	assert.Equal(t, order.StatusPending, f.order(o.ID).Status)
	records, err := f.store.ListPurchases(f.ctx, u.ID)
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestWebhookNonActionableEvents(t *testing.T) {
	f := newFixture(t)
	_, o, _ := f.pendingOrder(1)

	events := []payment.WebhookEvent{
		{Event: "payment.waiting_for_capture", Object: payment.WebhookObject{ID: o.PaymentRef, Status: payment.StatusWaitingForCapture}},
		{Event: "payment.canceled", Object: payment.WebhookObject{ID: o.PaymentRef, Status: payment.StatusCanceled}},
		{Event: payment.EventPaymentSucceeded, Object: payment.WebhookObject{ID: o.PaymentRef, Status: payment.StatusPending}},
		{Event: payment.EventPaymentSucceeded, Object: payment.WebhookObject{Status: payment.StatusSucceeded}},
	}
	for _, ev := range events {
		require.NoError(t, f.c.HandleWebhook(f.ctx, ev))
	}
	assert.Equal(t, order.StatusPending, f.order(o.ID).Status)
}

func TestWebhookVerification(t *testing.T) {
	f := newFixture(t, checkout.WithVerifyWebhooks(true))
	_, o, _ := f.pendingOrder(1)
	succeeded := payment.WebhookEvent{
		Event:  payment.EventPaymentSucceeded,
		Object: payment.WebhookObject{ID: o.PaymentRef, Status: payment.StatusSucceeded},
	}

	f.gw.SetStatus(o.PaymentRef, payment.StatusPending)
	require.NoError(t, f.c.HandleWebhook(f.ctx, succeeded))
	assert.Equal(t, order.StatusPending, f.order(o.ID).Status)

	f.gw.FailCheck(errors.New("connection refused"))
	err := f.c.HandleWebhook(f.ctx, succeeded)
	assert.ErrorIs(t, err, checkout.ErrGatewayTransient)

	f.gw.FailCheck(nil)
	f.gw.SetStatus(o.PaymentRef, payment.StatusSucceeded)
	require.NoError(t, f.c.HandleWebhook(f.ctx, succeeded))
	assert.Equal(t, order.StatusPaid, f.order(o.ID).Status)
}

// ──────────────────────────────────────────────────
// Native payments
// ──────────────────────────────────────────────────

func (f *fixture) nativeOrder(principal int64) (*user.User, *checkout.PaymentIntent) {
	f.t.Helper()
	u := f.user(principal)
	_, err := f.c.SetUserEmail(f.ctx, u.ID, "buyer@example.com")
	require.NoError(f.t, err)
	f.addToCart(u, f.product("Course", 500))

	intent, err := f.c.Checkout(f.ctx, u.ID)
	require.NoError(f.t, err)
	require.Equal(f.t, checkout.MethodNative, intent.Method)
	return u, intent
}

func TestNativePaymentConfirms(t *testing.T) {
	f := newFixture(t, checkout.WithNativePayments(true))
	_, intent := f.nativeOrder(100)

	err := f.c.HandleNativePayment(f.ctx, payment.NativePayment{
		PrincipalID: 100,
		Payload:     intent.Payload,
		ChargeID:    "tg-charge-1",
		Amount:      types.RUB(500),
	})
	require.NoError(t, err)

	o := f.order(intent.Order.ID)
	assert.True(t, o.IsPaid())
	assert.Equal(t, "tg-charge-1", o.PaymentRef)
	assert.Equal(t, []payment.Source{payment.SourceNative}, f.rec.sources)

	// The platform may redeliver the callback.
	require.NoError(t, f.c.HandleNativePayment(f.ctx, payment.NativePayment{
		PrincipalID: 100,
		Payload:     intent.Payload,
		ChargeID:    "tg-charge-1",
	}))
	assert.Equal(t, 1, f.rec.paidCount(o.ID))
}

func TestNativePaymentRejectsOtherPayer(t *testing.T) {
	f := newFixture(t, checkout.WithNativePayments(true))
	_, intent := f.nativeOrder(100)
	f.user(200)

	for _, principal := range []int64{200, 300} {
		err := f.c.HandleNativePayment(f.ctx, payment.NativePayment{
			PrincipalID: principal,
			Payload:     intent.Payload,
			ChargeID:    "tg-charge-1",
		})
		assert.ErrorIs(t, err, checkout.ErrOrderOwnerMismatch)
		assert.True(t, checkout.IsDroppable(err))
	}
	assert.Equal(t, order.StatusPending, f.order(intent.Order.ID).Status)
}

func TestNativePaymentRejectsAmountMismatch(t *testing.T) {
	f := newFixture(t, checkout.WithNativePayments(true))
	_, intent := f.nativeOrder(100)

	err := f.c.HandleNativePayment(f.ctx, payment.NativePayment{
		PrincipalID: 100,
		Payload:     intent.Payload,
		ChargeID:    "tg-charge-1",
		Amount:      types.RUB(1),
	})
	assert.ErrorIs(t, err, checkout.ErrAmountMismatch)
	assert.Equal(t, order.StatusPending, f.order(intent.Order.ID).Status)
}

func TestNativePaymentMalformedPayload(t *testing.T) {
	f := newFixture(t, checkout.WithNativePayments(true))

	for _, raw := range []string{"", "order:5:product:3", "order:ord_x:product", "garbage"} {
		err := f.c.HandleNativePayment(f.ctx, payment.NativePayment{PrincipalID: 1, Payload: raw})
		assert.ErrorIs(t, err, checkout.ErrMalformedPayload, "payload %q", raw)
		assert.True(t, checkout.IsDroppable(err))
	}
}

func TestPreCheckout(t *testing.T) {
	f := newFixture(t, checkout.WithNativePayments(true))
	_, intent := f.nativeOrder(100)

	res := f.c.PreCheckout(f.ctx, intent.Payload)
	assert.True(t, res.OK)

	res = f.c.PreCheckout(f.ctx, "order:1:product:0")
	assert.False(t, res.OK)
	assert.NotEmpty(t, res.Reason)

	res = f.c.PreCheckout(f.ctx, payment.Payload{OrderID: id.NewOrderID()}.String())
	assert.False(t, res.OK)

	require.NoError(t, f.c.HandleNativePayment(f.ctx, payment.NativePayment{
		PrincipalID: 100,
		Payload:     intent.Payload,
		ChargeID:    "tg-charge-1",
	}))
	res = f.c.PreCheckout(f.ctx, intent.Payload)
	assert.False(t, res.OK)
	assert.Equal(t, "Order already paid", res.Reason)
}

type brokenOrderStore struct {
	*memory.Store
}

func (brokenOrderStore) GetOrder(context.Context, id.OrderID) (*order.Order, error) {
	return nil, errors.New("database is locked")
}

func TestPreCheckoutFailsOpen(t *testing.T) {
	c := checkout.New(brokenOrderStore{memory.New()},
		checkout.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
	)

	res := c.PreCheckout(context.Background(), payment.Payload{OrderID: id.NewOrderID()}.String())
	assert.True(t, res.OK)
}
