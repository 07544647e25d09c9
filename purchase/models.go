// Package purchase defines the append-only entitlement ledger.
package purchase

import (
	"time"

	"github.com/xraph/checkout/id"
	"github.com/xraph/checkout/types"
)

// Record grants a user a product. Existence of any record for
// (user, product) is the entitlement; records are never removed.
type Record struct {
	ID          id.PurchaseID `json:"id"`
	UserID      id.UserID     `json:"user_id"`
	ProductID   id.ProductID  `json:"product_id"`
	OrderID     id.OrderID    `json:"order_id"`
	Price       types.Money   `json:"price"`
	PurchasedAt time.Time     `json:"purchased_at"`
}
