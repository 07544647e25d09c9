package checkout_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xraph/checkout"
	gwmemory "github.com/xraph/checkout/gateway/memory"
	"github.com/xraph/checkout/order"
	"github.com/xraph/checkout/payment"
	"github.com/xraph/checkout/store/memory"
	"github.com/xraph/checkout/sweeplock"
)

func TestSweepConfirmsPaidOrders(t *testing.T) {
	f := newFixture(t, checkout.WithSweepConcurrency(2))

	var orders []*order.Order
	for principal := int64(1); principal <= 3; principal++ {
		_, o, _ := f.pendingOrder(principal)
		orders = append(orders, o)
	}
	f.gw.SetStatus(orders[2].PaymentRef, payment.StatusPending)

	report := f.c.Sweep(f.ctx)

	assert.Equal(t, 3, report.Checked)
	assert.Equal(t, 2, report.Confirmed)
	assert.Equal(t, 1, report.StillPending)
	assert.Zero(t, report.Failed)
	assert.False(t, report.Skipped)

	assert.True(t, f.order(orders[0].ID).IsPaid())
	assert.True(t, f.order(orders[1].ID).IsPaid())
	assert.False(t, f.order(orders[2].ID).IsPaid())

	// A second pass only looks at what is still pending.
	report = f.c.Sweep(f.ctx)
	assert.Equal(t, 1, report.Checked)
	assert.Zero(t, report.Confirmed)
}

func TestSweepSkipsOrdersWithoutRef(t *testing.T) {
	f := newFixture(t)
	u := f.user(1)
	p := f.product("Course", 500)

	_, err := f.c.CreateOrderFromLines(f.ctx, u.ID, []order.Line{{ProductID: p.ID, Quantity: 1, UnitPrice: p.Price}})
	require.NoError(t, err)

	report := f.c.Sweep(f.ctx)
	assert.Zero(t, report.Checked)
}

func TestSweepCountsGatewayFailures(t *testing.T) {
	f := newFixture(t)
	for principal := int64(1); principal <= 2; principal++ {
		f.pendingOrder(principal)
	}
	f.gw.FailCheck(errors.New("502 bad gateway"))

	report := f.c.Sweep(f.ctx)

	assert.Equal(t, 2, report.Checked)
	assert.Equal(t, 2, report.Failed)
	assert.Zero(t, report.Confirmed)
}

func TestSweepHonoursLock(t *testing.T) {
	locker := sweeplock.NewMemory()
	f := newFixture(t, checkout.WithSweepLock(locker))
	_, o, _ := f.pendingOrder(1)

	held, err := locker.Acquire(context.Background(), "sweep", time.Minute)
	require.NoError(t, err)
	require.True(t, held)

	report := f.c.Sweep(f.ctx)
	assert.True(t, report.Skipped)
	assert.Zero(t, f.gw.Checks(o.PaymentRef))

	require.NoError(t, locker.Release(context.Background(), "sweep"))
	report = f.c.Sweep(f.ctx)
	assert.False(t, report.Skipped)
	assert.Equal(t, 1, report.Confirmed)

	// The sweep gives its lease back when done.
	free, err := locker.Acquire(context.Background(), "sweep", time.Minute)
	require.NoError(t, err)
	assert.True(t, free)
}

func TestSweepRedrivesInterruptedFulfillment(t *testing.T) {
	f := newFixture(t)
	u, o, products := f.pendingOrder(1)

	// A confirmer that won the transition and then died.
	won, err := f.store.SetOrderPaid(f.ctx, o.ID, o.PaymentRef, time.Now())
	require.NoError(t, err)
	require.True(t, won)

	report := f.c.Sweep(f.ctx)

	assert.Equal(t, 1, report.Redriven)
	f.assertFulfilledOnce(u, o, products)

	report = f.c.Sweep(f.ctx)
	assert.Zero(t, report.Redriven)
}

func TestSweepWithoutGatewayOnlyRedrives(t *testing.T) {
	f := newFixtureWith(t, memory.New(), nil)
	report := f.c.Sweep(f.ctx)
	assert.Zero(t, report.Checked)
	assert.Zero(t, report.Redriven)
}

func TestStartRunsBackgroundSweep(t *testing.T) {
	s := memory.New()
	gw := gwmemory.New(gwmemory.WithConfirmationURL("https://pay.test/confirm"))
	f := newFixtureWith(t, s, gw, checkout.WithSweepInterval(10*time.Millisecond))
	_, o, _ := f.pendingOrder(1)

	require.NoError(t, f.c.Start(f.ctx))

	assert.Eventually(t, func() bool {
		got, err := s.GetOrder(f.ctx, o.ID)
		return err == nil && got.IsPaid() && got.IsFulfilled()
	}, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, f.c.Stop())
	require.NoError(t, f.c.Stop(), "Stop is idempotent")
}
