package cart

import (
	"context"

	"github.com/xraph/checkout/id"
)

type Store interface {
	// AddCartLine inserts l unless a line for the same (user, product)
	// exists, in which case it returns false and leaves the quantity alone.
	AddCartLine(ctx context.Context, l *Line) (bool, error)
	RemoveCartLine(ctx context.Context, userID id.UserID, productID id.ProductID) error
	ListCart(ctx context.Context, userID id.UserID) ([]*Line, error)
	ClearCart(ctx context.Context, userID id.UserID) error
	CartHas(ctx context.Context, userID id.UserID, productID id.ProductID) (bool, error)
}
