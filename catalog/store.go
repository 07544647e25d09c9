package catalog

import (
	"context"

	"github.com/xraph/checkout/id"
)

type Store interface {
	CreateProduct(ctx context.Context, p *Product) error
	GetProduct(ctx context.Context, productID id.ProductID) (*Product, error)
	UpdateProduct(ctx context.Context, p *Product) error
	DeleteProduct(ctx context.Context, productID id.ProductID) error
	ListProducts(ctx context.Context, opts ListOpts) ([]*Product, error)
	// ListProductsByID returns the products that still exist among ids.
	// Missing ids are skipped, not reported.
	ListProductsByID(ctx context.Context, ids []id.ProductID) ([]*Product, error)
	// BumpPopularity atomically increments the popularity counter.
	BumpPopularity(ctx context.Context, productID id.ProductID) error
	// ListPopular ranks active products by popularity, then recency.
	ListPopular(ctx context.Context, limit int) ([]*Product, error)
}
