package order

import (
	"context"
	"time"

	"github.com/xraph/checkout/id"
)

type Store interface {
	// CreateOrder persists the order together with its lines in a single
	// write.
	CreateOrder(ctx context.Context, o *Order) error
	GetOrder(ctx context.Context, orderID id.OrderID) (*Order, error)
	GetOrderByPaymentRef(ctx context.Context, ref string) (*Order, error)
	ListOrdersByUser(ctx context.Context, userID id.UserID, opts ListOpts) ([]*Order, error)
	// ListPendingOrders returns pending orders that carry a payment ref,
	// oldest first.
	ListPendingOrders(ctx context.Context, limit int) ([]*Order, error)
	// ListUnfulfilledOrders returns paid orders whose fulfillment has not
	// been marked complete.
	ListUnfulfilledOrders(ctx context.Context, limit int) ([]*Order, error)

	// AttachPaymentRef stores ref on a pending order. Setting the same ref
	// again is a no-op; a different existing ref is kept and reported as
	// checkout.ErrPaymentRefConflict.
	AttachPaymentRef(ctx context.Context, orderID id.OrderID, ref string) error
	// SetOrderPaid performs the single pending -> paid transition. It
	// returns true only for the caller that performed it. An empty stored
	// ref is filled with ref; a non-empty one is never overwritten.
	SetOrderPaid(ctx context.Context, orderID id.OrderID, ref string, paidAt time.Time) (bool, error)
	// MarkOrderFulfilled sets fulfilled_at once on a paid order and returns
	// true only for the caller that set it.
	MarkOrderFulfilled(ctx context.Context, orderID id.OrderID, at time.Time) (bool, error)
}
