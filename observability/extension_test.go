package observability

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/xraph/checkout/order"
	"github.com/xraph/checkout/payment"
	"github.com/xraph/checkout/purchase"
	"github.com/xraph/checkout/types"
)

type fakeMetric struct {
	mu       sync.Mutex
	total    float64
	observed []float64
}

func (f *fakeMetric) Inc() { f.Add(1) }

func (f *fakeMetric) Add(v float64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.total += v
}

func (f *fakeMetric) Observe(v float64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.observed = append(f.observed, v)
}

type fakeFactory struct {
	metrics map[string]*fakeMetric
}

func newFakeFactory() *fakeFactory {
	return &fakeFactory{metrics: make(map[string]*fakeMetric)}
}

func (f *fakeFactory) get(name string) *fakeMetric {
	m, ok := f.metrics[name]
	if !ok {
		m = &fakeMetric{}
		f.metrics[name] = m
	}
	return m
}

func (f *fakeFactory) Counter(name string) Counter     { return f.get(name) }
func (f *fakeFactory) Histogram(name string) Histogram { return f.get(name) }

func TestOrderLifecycleCounters(t *testing.T) {
	f := newFakeFactory()
	m := NewMetricsExtension(f)
	ctx := context.Background()
	o := &order.Order{Total: types.RUB(1500)}

	_ = m.OnOrderCreated(ctx, o)
	_ = m.OnOrderPaid(ctx, o, payment.SourceSweep)
	_ = m.OnOrderFulfilled(ctx, o)
	_ = m.OnPurchaseRecorded(ctx, []*purchase.Record{{}, {}})

	checks := map[string]float64{
		"checkout.order.created":     1,
		"checkout.order.paid":        1,
		"checkout.order.paid.sweep":  1,
		"checkout.order.paid.native": 0,
		"checkout.order.fulfilled":   1,
		"checkout.purchase.recorded": 2,
	}
	for name, want := range checks {
		if got := f.get(name).total; got != want {
			t.Errorf("%s = %v, want %v", name, got, want)
		}
	}
	if obs := f.get("checkout.order.total_amount").observed; len(obs) != 1 || obs[0] != 1500 {
		t.Errorf("order total observations = %v", obs)
	}
}

func TestConfirmationResults(t *testing.T) {
	f := newFakeFactory()
	m := NewMetricsExtension(f)
	ctx := context.Background()

	for _, r := range []string{"confirmed", "already_handled", "already_handled", "observed"} {
		_ = m.OnConfirmation(ctx, payment.Confirmation{}, r)
	}

	if got := f.get("checkout.confirmation.confirmed").total; got != 1 {
		t.Errorf("confirmed = %v, want 1", got)
	}
	if got := f.get("checkout.confirmation.already_handled").total; got != 2 {
		t.Errorf("already_handled = %v, want 2", got)
	}
	if got := f.get("checkout.confirmation.observed").total; got != 1 {
		t.Errorf("observed = %v, want 1", got)
	}
}

func TestSweepMetrics(t *testing.T) {
	f := newFakeFactory()
	m := NewMetricsExtension(f)

	_ = m.OnSweepCompleted(context.Background(), 5, 2, 1, 40*time.Millisecond)

	if got := f.get("checkout.sweep.checked").total; got != 5 {
		t.Errorf("checked = %v, want 5", got)
	}
	if got := f.get("checkout.sweep.failed").total; got != 1 {
		t.Errorf("failed = %v, want 1", got)
	}
	if obs := f.get("checkout.sweep.latency_ms").observed; len(obs) != 1 || obs[0] != 40 {
		t.Errorf("latency = %v, want [40]", obs)
	}
}
