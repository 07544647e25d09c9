// Package catalog defines products and the read-only price snapshot used
// when an order is created.
package catalog

import (
	"context"

	"github.com/xraph/checkout/id"
	"github.com/xraph/checkout/types"
)

// Product is a purchasable catalog item.
type Product struct {
	types.Entity
	ID          id.ProductID `json:"id"`
	Name        string       `json:"name"`
	Description string       `json:"description,omitempty"`
	Price       types.Money  `json:"price"`
	Active      bool         `json:"active"`
	DownloadURL string       `json:"download_url,omitempty"`
	Popularity  int64        `json:"popularity"`
}

// IsFree reports whether the product costs nothing.
func (p *Product) IsFree() bool { return p.Price.IsZero() }

// Snapshot reads current prices. It is consulted exactly once per line at
// order creation; the returned price is then frozen into the order.
type Snapshot interface {
	PriceOf(ctx context.Context, productID id.ProductID) (types.Money, error)
}

// ListOpts filters product listings.
type ListOpts struct {
	ActiveOnly bool
	Limit      int
	Offset     int
}
