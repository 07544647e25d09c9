// Package storetest holds behavioral tests shared by every store.Store
// backend. Each backend's test file calls Run with a constructor for a
// fresh, migrated store.
package storetest

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/xraph/checkout"
	"github.com/xraph/checkout/cart"
	"github.com/xraph/checkout/id"
	"github.com/xraph/checkout/order"
	"github.com/xraph/checkout/purchase"
	"github.com/xraph/checkout/store"
	"github.com/xraph/checkout/types"
	"github.com/xraph/checkout/user"
)

// Factory returns an empty store ready for use. It registers its own
// cleanup on t.
type Factory func(t *testing.T) store.Store

// Run executes the shared cases, each against a fresh store from newStore.
func Run(t *testing.T, newStore Factory) {
	t.Helper()

	tests := []struct {
		name string
		fn   func(t *testing.T, s store.Store)
	}{
		{"SetOrderPaidExactlyOneWinner", testSetOrderPaidExactlyOneWinner},
		{"SetOrderPaidUnknownOrder", testSetOrderPaidUnknownOrder},
		{"SetOrderPaidKeepsAttachedRef", testSetOrderPaidKeepsAttachedRef},
		{"SetOrderPaidSkipsRefOfAnotherOrder", testSetOrderPaidSkipsRefOfAnotherOrder},
		{"AttachPaymentRef", testAttachPaymentRef},
		{"MarkOrderFulfilledOnlyOnceAndOnlyWhenPaid", testMarkOrderFulfilled},
		{"ListPendingOrdersNeedsRef", testListPendingOrdersNeedsRef},
		{"AddCartLineIsNoOpOnRepeat", testAddCartLineIsNoOpOnRepeat},
		{"RecordPurchasesIgnoresReplays", testRecordPurchasesIgnoresReplays},
		{"ListPurchasesNewestFirst", testListPurchasesNewestFirst},
		{"CreateUserUniquePrincipal", testCreateUserUniquePrincipal},
		{"CreateUserConcurrentPrincipal", testCreateUserConcurrentPrincipal},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.fn(t, newStore(t))
		})
	}
}

// NewPendingOrder persists a one-line pending order for a fresh user.
func NewPendingOrder(t *testing.T, s store.Store) *order.Order {
	t.Helper()
	o := &order.Order{
		ID:        id.NewOrderID(),
		UserID:    id.NewUserID(),
		Total:     types.RUB(500),
		Status:    order.StatusPending,
		Lines:     []order.Line{{ProductID: id.NewProductID(), Quantity: 1, UnitPrice: types.RUB(500)}},
		CreatedAt: time.Now().UTC(),
	}
	if err := s.CreateOrder(context.Background(), o); err != nil {
		t.Fatalf("CreateOrder: %v", err)
	}
	return o
}

func testSetOrderPaidExactlyOneWinner(t *testing.T, s store.Store) {
	o := NewPendingOrder(t, s)

	var (
		wg   sync.WaitGroup
		wins atomic.Int32
	)
	for i := range 16 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			won, err := s.SetOrderPaid(context.Background(), o.ID, "ref-"+string(rune('a'+i)), time.Now())
			if err != nil {
				t.Errorf("SetOrderPaid: %v", err)
			}
			if won {
				wins.Add(1)
			}
		}()
	}
	wg.Wait()

	if got := wins.Load(); got != 1 {
		t.Fatalf("winners = %d, want 1", got)
	}
	got, err := s.GetOrder(context.Background(), o.ID)
	if err != nil {
		t.Fatalf("GetOrder: %v", err)
	}
	if !got.IsPaid() || got.PaidAt == nil || got.PaymentRef == "" {
		t.Fatalf("order = %+v, want paid with ref", got)
	}
}

func testSetOrderPaidUnknownOrder(t *testing.T, s store.Store) {
	_, err := s.SetOrderPaid(context.Background(), id.NewOrderID(), "ref", time.Now())
	if !errors.Is(err, checkout.ErrOrderNotFound) {
		t.Fatalf("err = %v, want ErrOrderNotFound", err)
	}
}

func testSetOrderPaidKeepsAttachedRef(t *testing.T, s store.Store) {
	ctx := context.Background()
	o := NewPendingOrder(t, s)

	if err := s.AttachPaymentRef(ctx, o.ID, "gateway-ref"); err != nil {
		t.Fatalf("AttachPaymentRef: %v", err)
	}
	if won, err := s.SetOrderPaid(ctx, o.ID, "charge-ref", time.Now()); err != nil || !won {
		t.Fatalf("SetOrderPaid = %v, %v, want transition", won, err)
	}
	got, _ := s.GetOrder(ctx, o.ID)
	if got.PaymentRef != "gateway-ref" {
		t.Fatalf("PaymentRef = %q, want gateway-ref", got.PaymentRef)
	}
	byRef, err := s.GetOrderByPaymentRef(ctx, "gateway-ref")
	if err != nil || byRef.ID.String() != o.ID.String() {
		t.Fatalf("GetOrderByPaymentRef = %v, %v", byRef, err)
	}
}

func testSetOrderPaidSkipsRefOfAnotherOrder(t *testing.T, s store.Store) {
	ctx := context.Background()
	owner := NewPendingOrder(t, s)
	other := NewPendingOrder(t, s)

	if err := s.AttachPaymentRef(ctx, owner.ID, "shared-ref"); err != nil {
		t.Fatalf("AttachPaymentRef: %v", err)
	}

	won, err := s.SetOrderPaid(ctx, other.ID, "shared-ref", time.Now())
	if err != nil || !won {
		t.Fatalf("SetOrderPaid = %v, %v, want transition", won, err)
	}
	got, _ := s.GetOrder(ctx, other.ID)
	if !got.IsPaid() || got.PaymentRef != "" {
		t.Fatalf("order = %+v, want paid without ref", got)
	}
	byRef, err := s.GetOrderByPaymentRef(ctx, "shared-ref")
	if err != nil || byRef.ID.String() != owner.ID.String() {
		t.Fatalf("GetOrderByPaymentRef = %v, %v, want owner", byRef, err)
	}
}

func testAttachPaymentRef(t *testing.T, s store.Store) {
	ctx := context.Background()
	o := NewPendingOrder(t, s)
	other := NewPendingOrder(t, s)

	if err := s.AttachPaymentRef(ctx, o.ID, "ref-1"); err != nil {
		t.Fatalf("first attach: %v", err)
	}
	if err := s.AttachPaymentRef(ctx, o.ID, "ref-1"); err != nil {
		t.Fatalf("repeat attach: %v", err)
	}
	if err := s.AttachPaymentRef(ctx, o.ID, "ref-2"); !errors.Is(err, checkout.ErrPaymentRefConflict) {
		t.Fatalf("different ref err = %v, want conflict", err)
	}
	if err := s.AttachPaymentRef(ctx, other.ID, "ref-1"); !errors.Is(err, checkout.ErrPaymentRefConflict) {
		t.Fatalf("shared ref err = %v, want conflict", err)
	}
}

func testMarkOrderFulfilled(t *testing.T, s store.Store) {
	ctx := context.Background()
	o := NewPendingOrder(t, s)

	if won, _ := s.MarkOrderFulfilled(ctx, o.ID, time.Now()); won {
		t.Fatal("pending order must not be fulfilled")
	}
	if _, err := s.SetOrderPaid(ctx, o.ID, "ref", time.Now()); err != nil {
		t.Fatalf("SetOrderPaid: %v", err)
	}

	unfulfilled, err := s.ListUnfulfilledOrders(ctx, 10)
	if err != nil || len(unfulfilled) != 1 || unfulfilled[0].ID.String() != o.ID.String() {
		t.Fatalf("ListUnfulfilledOrders = %v, %v", unfulfilled, err)
	}

	if won, _ := s.MarkOrderFulfilled(ctx, o.ID, time.Now()); !won {
		t.Fatal("expected first fulfillment to win")
	}
	if won, _ := s.MarkOrderFulfilled(ctx, o.ID, time.Now()); won {
		t.Fatal("second fulfillment must lose")
	}

	got, _ := s.GetOrder(ctx, o.ID)
	if got.FulfilledAt == nil {
		t.Fatal("FulfilledAt not set")
	}
	unfulfilled, _ = s.ListUnfulfilledOrders(ctx, 10)
	if len(unfulfilled) != 0 {
		t.Fatalf("ListUnfulfilledOrders = %v, want none", unfulfilled)
	}
}

func testListPendingOrdersNeedsRef(t *testing.T, s store.Store) {
	ctx := context.Background()
	withRef := NewPendingOrder(t, s)
	NewPendingOrder(t, s)

	if err := s.AttachPaymentRef(ctx, withRef.ID, "ref-pending"); err != nil {
		t.Fatalf("AttachPaymentRef: %v", err)
	}
	pending, err := s.ListPendingOrders(ctx, 10)
	if err != nil {
		t.Fatalf("ListPendingOrders: %v", err)
	}
	if len(pending) != 1 || pending[0].ID.String() != withRef.ID.String() {
		t.Fatalf("pending = %v, want only the order with a ref", pending)
	}
}

func testAddCartLineIsNoOpOnRepeat(t *testing.T, s store.Store) {
	ctx := context.Background()
	userID, productID := id.NewUserID(), id.NewProductID()

	added, err := s.AddCartLine(ctx, &cart.Line{UserID: userID, ProductID: productID, Quantity: 1, AddedAt: time.Now().UTC()})
	if err != nil || !added {
		t.Fatalf("first add = %v, %v, want insert", added, err)
	}
	added, err = s.AddCartLine(ctx, &cart.Line{UserID: userID, ProductID: productID, Quantity: 5, AddedAt: time.Now().UTC()})
	if err != nil || added {
		t.Fatalf("repeat add = %v, %v, want no-op", added, err)
	}

	lines, err := s.ListCart(ctx, userID)
	if err != nil {
		t.Fatalf("ListCart: %v", err)
	}
	if len(lines) != 1 || lines[0].Quantity != 1 {
		t.Fatalf("lines = %+v, want one line of quantity 1", lines)
	}

	if err := s.ClearCart(ctx, userID); err != nil {
		t.Fatalf("ClearCart: %v", err)
	}
	if err := s.ClearCart(ctx, userID); err != nil {
		t.Fatalf("ClearCart on empty cart: %v", err)
	}
	if has, _ := s.CartHas(ctx, userID, productID); has {
		t.Fatal("cart should be empty")
	}
}

func testRecordPurchasesIgnoresReplays(t *testing.T, s store.Store) {
	ctx := context.Background()
	o := NewPendingOrder(t, s)
	rec := &purchase.Record{
		ID:          id.NewPurchaseID(),
		UserID:      o.UserID,
		ProductID:   o.Lines[0].ProductID,
		OrderID:     o.ID,
		Price:       types.RUB(500),
		PurchasedAt: time.Now().UTC(),
	}

	n, err := s.RecordPurchases(ctx, []*purchase.Record{rec})
	if err != nil || n != 1 {
		t.Fatalf("first insert = %d, %v, want 1", n, err)
	}
	replay := *rec
	replay.ID = id.NewPurchaseID()
	n, err = s.RecordPurchases(ctx, []*purchase.Record{&replay})
	if err != nil || n != 0 {
		t.Fatalf("replay insert = %d, %v, want 0", n, err)
	}

	owned, err := s.HasPurchase(ctx, rec.UserID, rec.ProductID)
	if err != nil || !owned {
		t.Fatalf("HasPurchase = %v, %v, want ownership", owned, err)
	}
	history, _ := s.ListPurchases(ctx, rec.UserID)
	if len(history) != 1 {
		t.Fatalf("history = %d records, want 1", len(history))
	}
}

func testListPurchasesNewestFirst(t *testing.T, s store.Store) {
	ctx := context.Background()
	first := NewPendingOrder(t, s)
	second := NewPendingOrder(t, s)
	userID := id.NewUserID()
	base := time.Now().UTC().Truncate(time.Second)

	older := &purchase.Record{
		ID:          id.NewPurchaseID(),
		UserID:      userID,
		ProductID:   first.Lines[0].ProductID,
		OrderID:     first.ID,
		Price:       types.RUB(500),
		PurchasedAt: base.Add(-time.Hour),
	}
	newer := &purchase.Record{
		ID:          id.NewPurchaseID(),
		UserID:      userID,
		ProductID:   second.Lines[0].ProductID,
		OrderID:     second.ID,
		Price:       types.RUB(700),
		PurchasedAt: base,
	}
	if _, err := s.RecordPurchases(ctx, []*purchase.Record{older}); err != nil {
		t.Fatalf("RecordPurchases: %v", err)
	}
	if _, err := s.RecordPurchases(ctx, []*purchase.Record{newer}); err != nil {
		t.Fatalf("RecordPurchases: %v", err)
	}

	history, err := s.ListPurchases(ctx, userID)
	if err != nil {
		t.Fatalf("ListPurchases: %v", err)
	}
	if len(history) != 2 {
		t.Fatalf("history = %d records, want 2", len(history))
	}
	if history[0].ID.String() != newer.ID.String() || history[1].ID.String() != older.ID.String() {
		t.Fatalf("order = [%s %s], want newest first", history[0].ID, history[1].ID)
	}
	if !history[0].PurchasedAt.Equal(base) {
		t.Fatalf("PurchasedAt = %v, want %v", history[0].PurchasedAt, base)
	}
}

func testCreateUserUniquePrincipal(t *testing.T, s store.Store) {
	ctx := context.Background()

	first := &user.User{ID: id.NewUserID(), PrincipalID: 7, Entity: types.NewEntity()}
	if err := s.CreateUser(ctx, first); err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	second := &user.User{ID: id.NewUserID(), PrincipalID: 7, Entity: types.NewEntity()}
	if err := s.CreateUser(ctx, second); !errors.Is(err, checkout.ErrAlreadyExists) {
		t.Fatalf("duplicate principal err = %v, want ErrAlreadyExists", err)
	}

	got, err := s.GetUserByPrincipal(ctx, 7)
	if err != nil || got.ID.String() != first.ID.String() {
		t.Fatalf("GetUserByPrincipal = %v, %v, want first user", got, err)
	}
}

func testCreateUserConcurrentPrincipal(t *testing.T, s store.Store) {
	const n = 16
	var (
		wg      sync.WaitGroup
		created atomic.Int32
	)
	for range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			u := &user.User{ID: id.NewUserID(), PrincipalID: 42, Entity: types.NewEntity()}
			err := s.CreateUser(context.Background(), u)
			switch {
			case err == nil:
				created.Add(1)
			case !errors.Is(err, checkout.ErrAlreadyExists):
				t.Errorf("CreateUser: %v", err)
			}
		}()
	}
	wg.Wait()

	if got := created.Load(); got != 1 {
		t.Fatalf("created = %d, want 1", got)
	}
}
