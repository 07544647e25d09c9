package audithook

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/xraph/checkout/id"
	"github.com/xraph/checkout/order"
	"github.com/xraph/checkout/payment"
	"github.com/xraph/checkout/types"
)

type captureRecorder struct {
	mu     sync.Mutex
	events []*AuditEvent
	err    error
}

func (c *captureRecorder) Record(_ context.Context, ev *AuditEvent) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, ev)
	return c.err
}

func (c *captureRecorder) actions() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, len(c.events))
	for i, ev := range c.events {
		out[i] = ev.Action
	}
	return out
}

func testOrder() *order.Order {
	return &order.Order{
		ID:         id.NewOrderID(),
		UserID:     id.NewUserID(),
		Total:      types.RUB(50000),
		Status:     order.StatusPaid,
		PaymentRef: "pay-1",
	}
}

func TestOrderPaidRecordsSource(t *testing.T) {
	rec := &captureRecorder{}
	ext := New(rec)
	o := testOrder()

	if err := ext.OnOrderPaid(context.Background(), o, payment.SourceWebhook); err != nil {
		t.Fatalf("OnOrderPaid: %v", err)
	}
	if len(rec.events) != 1 {
		t.Fatalf("got %d events, want 1", len(rec.events))
	}
	ev := rec.events[0]
	if ev.Action != ActionOrderPaid || ev.ResourceID != o.ID.String() {
		t.Errorf("event = %s/%s, want %s/%s", ev.Action, ev.ResourceID, ActionOrderPaid, o.ID)
	}
	if ev.Metadata["source"] != "webhook" {
		t.Errorf("source = %v, want webhook", ev.Metadata["source"])
	}
}

func TestConfirmationOutcomes(t *testing.T) {
	tests := []struct {
		result string
		want   []string
	}{
		{"confirmed", nil},
		{"already_handled", []string{ActionPaymentAlreadyHandled}},
		{"observed", []string{ActionPaymentObserved}},
	}

	for _, tt := range tests {
		t.Run(tt.result, func(t *testing.T) {
			rec := &captureRecorder{}
			ext := New(rec)
			conf := payment.Confirmation{OrderID: id.NewOrderID(), Status: payment.StatusPending, Source: payment.SourceManual}

			if err := ext.OnConfirmation(context.Background(), conf, tt.result); err != nil {
				t.Fatalf("OnConfirmation: %v", err)
			}
			got := rec.actions()
			if len(got) != len(tt.want) {
				t.Fatalf("actions = %v, want %v", got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("actions[%d] = %s, want %s", i, got[i], tt.want[i])
				}
			}
		})
	}
}

func TestGatewayErrorCarriesReason(t *testing.T) {
	rec := &captureRecorder{}
	ext := New(rec)

	_ = ext.OnGatewayError(context.Background(), "yookassa", "check_payment", errors.New("timeout"))

	ev := rec.events[0]
	if ev.Severity != SeverityError || ev.Outcome != OutcomeFailure {
		t.Errorf("severity/outcome = %s/%s", ev.Severity, ev.Outcome)
	}
	if ev.Reason != "timeout" {
		t.Errorf("reason = %q, want timeout", ev.Reason)
	}
}

func TestSweepCompletedSkipsIdlePasses(t *testing.T) {
	rec := &captureRecorder{}
	ext := New(rec)
	ctx := context.Background()

	_ = ext.OnSweepCompleted(ctx, 0, 0, 0, time.Millisecond)
	if len(rec.events) != 0 {
		t.Fatalf("idle sweep recorded %d events", len(rec.events))
	}

	_ = ext.OnSweepCompleted(ctx, 3, 1, 1, time.Millisecond)
	if len(rec.events) != 1 || rec.events[0].Outcome != OutcomePartial {
		t.Fatalf("events = %+v, want one partial sweep", rec.events)
	}
}

func TestEnabledActionsFilter(t *testing.T) {
	rec := &captureRecorder{}
	ext := New(rec, WithEnabledActions(ActionOrderPaid))
	ctx := context.Background()
	o := testOrder()

	_ = ext.OnOrderCreated(ctx, o)
	_ = ext.OnOrderPaid(ctx, o, payment.SourceNative)

	got := rec.actions()
	if len(got) != 1 || got[0] != ActionOrderPaid {
		t.Fatalf("actions = %v, want [%s]", got, ActionOrderPaid)
	}
}

func TestDisabledActionsFilter(t *testing.T) {
	rec := &captureRecorder{}
	ext := New(rec, WithDisabledActions(ActionOrderCreated))
	ctx := context.Background()
	o := testOrder()

	_ = ext.OnOrderCreated(ctx, o)
	_ = ext.OnOrderFulfilled(ctx, o)

	got := rec.actions()
	if len(got) != 1 || got[0] != ActionOrderFulfilled {
		t.Fatalf("actions = %v, want [%s]", got, ActionOrderFulfilled)
	}
}

func TestRecorderFailureIsSwallowed(t *testing.T) {
	rec := &captureRecorder{err: errors.New("backend down")}
	ext := New(rec)

	if err := ext.OnOrderCreated(context.Background(), testOrder()); err != nil {
		t.Fatalf("OnOrderCreated returned %v, want nil", err)
	}
}
