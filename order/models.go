// Package order defines immutable orders with frozen line prices.
package order

import (
	"time"

	"github.com/xraph/checkout/id"
	"github.com/xraph/checkout/types"
)

// Status is the order lifecycle state. Transitions are monotone:
// pending -> paid, never back.
type Status string

const (
	StatusPending Status = "pending"
	StatusPaid    Status = "paid"
)

// Order is a frozen snapshot of what the user agreed to buy. Total and
// Lines never change after creation.
type Order struct {
	ID          id.OrderID  `json:"id"`
	UserID      id.UserID   `json:"user_id"`
	Total       types.Money `json:"total"`
	Status      Status      `json:"status"`
	PaymentRef  string      `json:"payment_ref,omitempty"`
	Lines       []Line      `json:"lines"`
	CreatedAt   time.Time   `json:"created_at"`
	PaidAt      *time.Time  `json:"paid_at,omitempty"`
	FulfilledAt *time.Time  `json:"fulfilled_at,omitempty"`
}

// Line is one product at the price seen at order creation.
type Line struct {
	ProductID id.ProductID `json:"product_id"`
	Quantity  int          `json:"quantity"`
	UnitPrice types.Money  `json:"unit_price"`
}

// Amount returns the line total.
func (l Line) Amount() types.Money {
	return l.UnitPrice.Multiply(int64(l.Quantity))
}

// IsPaid reports whether the order reached its terminal state.
func (o *Order) IsPaid() bool { return o.Status == StatusPaid }

// IsFulfilled reports whether post-payment side effects completed.
func (o *Order) IsFulfilled() bool { return o.FulfilledAt != nil }

// ProductIDs returns the distinct products of the order in line order.
func (o *Order) ProductIDs() []id.ProductID {
	seen := make(map[id.ProductID]struct{}, len(o.Lines))
	out := make([]id.ProductID, 0, len(o.Lines))
	for _, l := range o.Lines {
		if _, ok := seen[l.ProductID]; ok {
			continue
		}
		seen[l.ProductID] = struct{}{}
		out = append(out, l.ProductID)
	}
	return out
}

// ListOpts paginates order listings.
type ListOpts struct {
	Status Status
	Limit  int
	Offset int
}
