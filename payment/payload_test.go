package payment_test

import (
	"errors"
	"testing"

	"github.com/xraph/checkout/id"
	"github.com/xraph/checkout/payment"
)

func TestPayloadRoundTrip(t *testing.T) {
	orderID := id.NewOrderID()
	productID := id.NewProductID()

	tests := []struct {
		name    string
		payload payment.Payload
	}{
		{"cart order", payment.Payload{OrderID: orderID}},
		{"single product", payment.Payload{OrderID: orderID, ProductID: productID}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			parsed, err := payment.ParsePayload(tt.payload.String())
			if err != nil {
				t.Fatalf("ParsePayload: %v", err)
			}
			if parsed != tt.payload {
				t.Errorf("got %+v, want %+v", parsed, tt.payload)
			}
		})
	}
}

func TestPayloadCartWireForm(t *testing.T) {
	orderID := id.NewOrderID()
	want := "order:" + orderID.String() + ":product:0"
	if got := (payment.Payload{OrderID: orderID}).String(); got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestParsePayloadRejects(t *testing.T) {
	orderID := id.NewOrderID().String()
	productID := id.NewProductID().String()

	tests := []struct {
		name  string
		input string
	}{
		{"empty", ""},
		{"garbage", "hello"},
		{"legacy integer order", "order:42:product:0"},
		{"missing product", "order:" + orderID},
		{"wrong keyword", "cart:" + orderID + ":product:0"},
		{"wrong product keyword", "order:" + orderID + ":item:0"},
		{"product prefix as order", "order:" + productID + ":product:0"},
		{"order prefix as product", "order:" + orderID + ":product:" + orderID},
		{"trailing field", "order:" + orderID + ":product:0:x"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := payment.ParsePayload(tt.input)
			if !errors.Is(err, payment.ErrMalformedPayload) {
				t.Errorf("expected ErrMalformedPayload, got %v", err)
			}
		})
	}
}

func TestStatusPredicates(t *testing.T) {
	tests := []struct {
		status   payment.Status
		success  bool
		terminal bool
	}{
		{payment.StatusPending, false, false},
		{payment.StatusWaitingForCapture, false, false},
		{payment.StatusSucceeded, true, true},
		{payment.StatusPaid, true, true},
		{payment.StatusCanceled, false, true},
	}

	for _, tt := range tests {
		t.Run(string(tt.status), func(t *testing.T) {
			if got := tt.status.IsSuccess(); got != tt.success {
				t.Errorf("IsSuccess: got %v, want %v", got, tt.success)
			}
			if got := tt.status.IsTerminal(); got != tt.terminal {
				t.Errorf("IsTerminal: got %v, want %v", got, tt.terminal)
			}
		})
	}
}

func TestWebhookActionable(t *testing.T) {
	tests := []struct {
		name  string
		event payment.WebhookEvent
		want  bool
	}{
		{"succeeded", payment.WebhookEvent{Event: "payment.succeeded", Object: payment.WebhookObject{ID: "p1", Status: "succeeded"}}, true},
		{"waiting", payment.WebhookEvent{Event: "payment.waiting_for_capture", Object: payment.WebhookObject{ID: "p1", Status: "waiting_for_capture"}}, false},
		{"status mismatch", payment.WebhookEvent{Event: "payment.succeeded", Object: payment.WebhookObject{ID: "p1", Status: "pending"}}, false},
		{"no id", payment.WebhookEvent{Event: "payment.succeeded", Object: payment.WebhookObject{Status: "succeeded"}}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.event.Actionable(); got != tt.want {
				t.Errorf("got %v, want %v", got, tt.want)
			}
		})
	}
}
