package checkout

import "github.com/xraph/checkout/id"

// ID is the primary identifier type for all checkout entities.
type ID = id.ID

// Prefix identifies the entity type encoded in a TypeID.
type Prefix = id.Prefix

// Typed identifiers re-exported for callers that only import the root package.
type (
	UserID     = id.UserID
	ProductID  = id.ProductID
	OrderID    = id.OrderID
	PurchaseID = id.PurchaseID
)
