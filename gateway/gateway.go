// Package gateway defines the external payment provider used to create
// redirect payments and poll their status.
package gateway

import (
	"context"

	"github.com/xraph/checkout/id"
	"github.com/xraph/checkout/payment"
	"github.com/xraph/checkout/types"
)

// Gateway is an external payment provider. Implementations bound every
// call with their own timeout.
type Gateway interface {
	// Name identifies the provider in logs and metrics.
	Name() string
	CreatePayment(ctx context.Context, req CreateRequest) (*Payment, error)
	CheckPayment(ctx context.Context, ref string) (payment.Status, error)
}

// CreateRequest describes a payment to open for an order.
type CreateRequest struct {
	OrderID     id.OrderID
	Amount      types.Money
	Description string
	ReturnURL   string
}

// Payment is a created provider payment. ConfirmationURL is empty when the
// provider settled synchronously.
type Payment struct {
	Ref             string
	ConfirmationURL string
}
