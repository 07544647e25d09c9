package purchase

import (
	"context"

	"github.com/xraph/checkout/id"
)

type Store interface {
	// RecordPurchases inserts records, silently skipping any whose
	// (order, product) pair already exists. It returns the number inserted.
	RecordPurchases(ctx context.Context, records []*Record) (int, error)
	HasPurchase(ctx context.Context, userID id.UserID, productID id.ProductID) (bool, error)
	// ListPurchases returns all records of a user, newest first.
	ListPurchases(ctx context.Context, userID id.UserID) ([]*Record, error)
}
