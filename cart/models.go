// Package cart defines the per-user cart: a set of products keyed by
// (user, product).
package cart

import (
	"time"

	"github.com/xraph/checkout/id"
)

// Line is one cart entry. At most one line exists per (user, product).
type Line struct {
	UserID    id.UserID    `json:"user_id"`
	ProductID id.ProductID `json:"product_id"`
	Quantity  int          `json:"quantity"`
	AddedAt   time.Time    `json:"added_at"`
}
