package id_test

import (
	"strings"
	"testing"

	"github.com/xraph/checkout/id"
)

func TestConstructors(t *testing.T) {
	tests := []struct {
		name   string
		newFn  func() id.ID
		prefix string
	}{
		{"UserID", id.NewUserID, "usr_"},
		{"ProductID", id.NewProductID, "prod_"},
		{"OrderID", id.NewOrderID, "ord_"},
		{"PurchaseID", id.NewPurchaseID, "pur_"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.newFn().String()
			if !strings.HasPrefix(got, tt.prefix) {
				t.Errorf("expected prefix %q, got %q", tt.prefix, got)
			}
		})
	}
}

func TestParseRoundTrip(t *testing.T) {
	tests := []struct {
		name    string
		newFn   func() id.ID
		parseFn func(string) (id.ID, error)
	}{
		{"UserID", id.NewUserID, id.ParseUserID},
		{"ProductID", id.NewProductID, id.ParseProductID},
		{"OrderID", id.NewOrderID, id.ParseOrderID},
		{"PurchaseID", id.NewPurchaseID, id.ParsePurchaseID},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			original := tt.newFn()
			parsed, err := tt.parseFn(original.String())
			if err != nil {
				t.Fatalf("parse failed: %v", err)
			}
			if parsed != original {
				t.Errorf("round-trip mismatch: %q != %q", parsed.String(), original.String())
			}
		})
	}
}

func TestCrossTypeRejection(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		parseFn func(string) (id.ID, error)
	}{
		{"ProductAsOrder", id.NewProductID().String(), id.ParseOrderID},
		{"OrderAsProduct", id.NewOrderID().String(), id.ParseProductID},
		{"UserAsPurchase", id.NewUserID().String(), id.ParsePurchaseID},
		{"PurchaseAsUser", id.NewPurchaseID().String(), id.ParseUserID},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := tt.parseFn(tt.input); err == nil {
				t.Errorf("expected error for cross-type parse of %q", tt.input)
			}
		})
	}
}

func TestParseEmpty(t *testing.T) {
	if _, err := id.Parse(""); err == nil {
		t.Fatal("expected error for empty string")
	}
	if _, err := id.ParseOrderID("order:1"); err == nil {
		t.Fatal("expected error for garbage input")
	}
}

func TestNilID(t *testing.T) {
	var i id.ID
	if !i.IsNil() {
		t.Error("zero-value ID should be nil")
	}
	if i.String() != "" {
		t.Errorf("expected empty string, got %q", i.String())
	}
	if i.Prefix() != "" {
		t.Errorf("expected empty prefix, got %q", i.Prefix())
	}
}

func TestMarshalUnmarshalText(t *testing.T) {
	original := id.NewOrderID()
	data, err := original.MarshalText()
	if err != nil {
		t.Fatalf("MarshalText: %v", err)
	}

	var restored id.ID
	if err := restored.UnmarshalText(data); err != nil {
		t.Fatalf("UnmarshalText: %v", err)
	}
	if restored != original {
		t.Errorf("mismatch: %q != %q", restored.String(), original.String())
	}

	var empty id.ID
	if err := empty.UnmarshalText([]byte{}); err != nil {
		t.Fatalf("UnmarshalText empty: %v", err)
	}
	if !empty.IsNil() {
		t.Error("expected nil after empty unmarshal")
	}
}

func TestValueScan(t *testing.T) {
	original := id.NewPurchaseID()
	val, err := original.Value()
	if err != nil {
		t.Fatalf("Value: %v", err)
	}

	var fromString id.ID
	if err := fromString.Scan(val); err != nil {
		t.Fatalf("Scan string: %v", err)
	}
	if fromString != original {
		t.Errorf("mismatch: %q != %q", fromString.String(), original.String())
	}

	var fromBytes id.ID
	if err := fromBytes.Scan([]byte(original.String())); err != nil {
		t.Fatalf("Scan bytes: %v", err)
	}
	if fromBytes != original {
		t.Errorf("mismatch: %q != %q", fromBytes.String(), original.String())
	}

	var fromNil id.ID
	if err := fromNil.Scan(nil); err != nil {
		t.Fatalf("Scan nil: %v", err)
	}
	if !fromNil.IsNil() {
		t.Error("expected nil after scanning nil")
	}

	nilVal, err := id.Nil.Value()
	if err != nil {
		t.Fatalf("Value nil: %v", err)
	}
	if nilVal != nil {
		t.Errorf("expected nil driver value, got %v", nilVal)
	}

	var bad id.ID
	if err := bad.Scan(42); err == nil {
		t.Error("expected error scanning int")
	}
}

func TestUniqueness(t *testing.T) {
	seen := make(map[string]struct{}, 1000)
	for range 1000 {
		s := id.NewOrderID().String()
		if _, ok := seen[s]; ok {
			t.Fatalf("duplicate ID generated: %s", s)
		}
		seen[s] = struct{}{}
	}
}
