// Package store defines the unified persistence interface shared by the
// memory, postgres, sqlite and mongo backends.
package store

import (
	"context"

	"github.com/xraph/checkout/cart"
	"github.com/xraph/checkout/catalog"
	"github.com/xraph/checkout/order"
	"github.com/xraph/checkout/purchase"
	"github.com/xraph/checkout/user"
)

// Store is the unified storage interface for all checkout entities.
//
// Every conditional transition (SetOrderPaid, MarkOrderFulfilled,
// AttachPaymentRef, BumpPopularity, AddCartLine, RecordPurchases) must be
// a single atomic statement in the backend. The engine holds no lock of
// its own.
type Store interface {
	user.Store
	catalog.Store
	cart.Store
	order.Store
	purchase.Store

	// Core methods
	Migrate(ctx context.Context) error
	Ping(ctx context.Context) error
	Close() error
}
