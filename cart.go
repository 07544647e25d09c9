package checkout

import (
	"context"

	"github.com/xraph/checkout/cart"
	"github.com/xraph/checkout/id"
)

// ──────────────────────────────────────────────────
// Cart
// ──────────────────────────────────────────────────

// AddToCart puts a product in the user's cart. A product already in the
// cart is left as is and added is false. Quantities below one become one.
func (c *Checkout) AddToCart(ctx context.Context, userID id.UserID, productID id.ProductID, qty int) (bool, error) {
	p, err := c.store.GetProduct(ctx, productID)
	if err != nil {
		return false, err
	}
	if !p.Active {
		return false, ErrProductNotFound
	}
	if qty <= 0 {
		qty = 1
	}

	added, err := c.store.AddCartLine(ctx, &cart.Line{
		UserID:    userID,
		ProductID: productID,
		Quantity:  qty,
		AddedAt:   c.now(),
	})
	if err != nil {
		return false, err
	}

	c.logger.Debug("cart add",
		"user_id", userID.String(),
		"product_id", productID.String(),
		"added", added,
	)
	return added, nil
}

// RemoveFromCart drops a product from the cart. Absent lines are ignored.
func (c *Checkout) RemoveFromCart(ctx context.Context, userID id.UserID, productID id.ProductID) error {
	return c.store.RemoveCartLine(ctx, userID, productID)
}

// ListCart returns the user's cart lines, oldest first.
func (c *Checkout) ListCart(ctx context.Context, userID id.UserID) ([]*cart.Line, error) {
	return c.store.ListCart(ctx, userID)
}

// ClearCart empties the user's cart.
func (c *Checkout) ClearCart(ctx context.Context, userID id.UserID) error {
	return c.store.ClearCart(ctx, userID)
}

// InCart reports whether the product is in the user's cart.
func (c *Checkout) InCart(ctx context.Context, userID id.UserID, productID id.ProductID) (bool, error) {
	return c.store.CartHas(ctx, userID, productID)
}
