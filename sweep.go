package checkout

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/xraph/checkout/order"
	"github.com/xraph/checkout/payment"
)

const sweepLockKey = "sweep"

// SweepReport summarises one sweep pass.
type SweepReport struct {
	Checked        int
	Confirmed      int
	AlreadyHandled int
	StillPending   int
	Failed         int
	// Redriven counts paid orders whose interrupted fulfillment this pass
	// completed.
	Redriven int
	// Skipped is true when another instance held the sweep lease.
	Skipped bool
	Elapsed time.Duration
}

// ──────────────────────────────────────────────────
// Sweep
// ──────────────────────────────────────────────────

// sweepWorker runs Sweep on every tick until Stop.
func (c *Checkout) sweepWorker(ctx context.Context) {
	defer c.wg.Done()

	ticker := time.NewTicker(c.sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.stopChan:
			return
		case <-ticker.C:
			c.Sweep(ctx)
		}
	}
}

// Sweep polls the gateway for every pending order carrying a payment ref
// and confirms the paid ones. It also finishes fulfillment of paid orders
// that were interrupted. Per-order failures are logged and counted; they
// never stop the pass.
func (c *Checkout) Sweep(ctx context.Context) SweepReport {
	start := time.Now()
	var report SweepReport

	if c.locker != nil {
		ok, err := c.locker.Acquire(ctx, sweepLockKey, c.sweepLease())
		switch {
		case err != nil:
			c.logger.Warn("sweep lock unavailable, sweeping anyway", "error", err)
		case !ok:
			report.Skipped = true
			return report
		default:
			defer func() {
				//nolint:errcheck // best-effort release, the lease expires anyway
				_ = c.locker.Release(context.WithoutCancel(ctx), sweepLockKey)
			}()
		}
	}

	report.Redriven = c.redrive(ctx)

	if c.gateway != nil {
		c.sweepPending(ctx, &report)
	}

	report.Elapsed = time.Since(start)
	c.plugins.EmitSweepCompleted(ctx, report.Checked, report.Confirmed, report.Failed, report.Elapsed)

	if report.Checked > 0 || report.Redriven > 0 || report.Failed > 0 {
		c.logger.Info("sweep completed",
			"checked", report.Checked,
			"confirmed", report.Confirmed,
			"already_handled", report.AlreadyHandled,
			"pending", report.StillPending,
			"failed", report.Failed,
			"redriven", report.Redriven,
			"elapsed_ms", report.Elapsed.Milliseconds(),
		)
	}
	return report
}

func (c *Checkout) sweepPending(ctx context.Context, report *SweepReport) {
	orders, err := c.store.ListPendingOrders(ctx, c.sweepBatch)
	if err != nil {
		c.logger.Error("sweep: list pending orders", "error", err)
		report.Failed++
		return
	}

	var (
		mu sync.Mutex
		g  errgroup.Group
	)
	g.SetLimit(c.sweepConcurrency)

	for _, o := range orders {
		if ctx.Err() != nil {
			break
		}
		g.Go(func() error {
			result, err := c.sweepOne(ctx, o)

			mu.Lock()
			defer mu.Unlock()
			report.Checked++
			switch {
			case err != nil:
				report.Failed++
			case result == ResultConfirmed:
				report.Confirmed++
			case result == ResultAlreadyHandled:
				report.AlreadyHandled++
			default:
				report.StillPending++
			}
			return nil
		})
	}
	_ = g.Wait() //nolint:errcheck // workers never return errors
}

func (c *Checkout) sweepOne(ctx context.Context, o *order.Order) (Result, error) {
	status, err := c.checkGateway(ctx, o.PaymentRef)
	if err != nil {
		return "", err
	}
	out, err := c.Confirm(ctx, payment.Confirmation{
		OrderID:    o.ID,
		PaymentRef: o.PaymentRef,
		Status:     status,
		Source:     payment.SourceSweep,
	})
	if err != nil {
		c.logger.Error("sweep: confirm order",
			"order_id", o.ID.String(),
			"error", err,
		)
		return "", err
	}
	return out.Result, nil
}

// redrive completes fulfillment of paid orders whose confirmer stopped
// half way.
func (c *Checkout) redrive(ctx context.Context) int {
	orders, err := c.store.ListUnfulfilledOrders(ctx, c.sweepBatch)
	if err != nil {
		c.logger.Error("sweep: list unfulfilled orders", "error", err)
		return 0
	}

	done := 0
	for _, o := range orders {
		if ctx.Err() != nil {
			break
		}
		if _, err := c.fulfill(ctx, o, payment.SourceSweep); err != nil {
			c.logger.Error("sweep: redrive fulfillment",
				"order_id", o.ID.String(),
				"error", err,
			)
			continue
		}
		done++
	}
	return done
}

// sweepLease is how long one instance owns the sweep. It outlives a tick
// so a slow pass is not doubled, and is released as soon as the pass ends.
func (c *Checkout) sweepLease() time.Duration {
	if c.sweepInterval <= 0 {
		return DefaultSweepInterval
	}
	return c.sweepInterval
}
