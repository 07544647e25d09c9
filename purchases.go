package checkout

import (
	"context"

	"github.com/xraph/checkout/catalog"
	"github.com/xraph/checkout/id"
	"github.com/xraph/checkout/order"
	"github.com/xraph/checkout/purchase"
)

// PurchaseEntry is one owned product in a user's history.
type PurchaseEntry struct {
	Record  *purchase.Record
	Product *catalog.Product
}

// ──────────────────────────────────────────────────
// Purchases
// ──────────────────────────────────────────────────

// RecordFromOrder writes one purchase record per order line at the frozen
// line price. Replays insert nothing. It returns the number of new records.
func (c *Checkout) RecordFromOrder(ctx context.Context, o *order.Order) (int, error) {
	if len(o.Lines) == 0 {
		return 0, nil
	}

	at := c.now()
	if o.PaidAt != nil {
		at = *o.PaidAt
	}

	records := make([]*purchase.Record, len(o.Lines))
	for i, l := range o.Lines {
		records[i] = &purchase.Record{
			ID:          id.NewPurchaseID(),
			UserID:      o.UserID,
			ProductID:   l.ProductID,
			OrderID:     o.ID,
			Price:       l.Amount(),
			PurchasedAt: at,
		}
	}

	n, err := c.store.RecordPurchases(ctx, records)
	if err != nil {
		return 0, err
	}
	if n > 0 {
		c.plugins.EmitPurchaseRecorded(ctx, records)
		c.logger.Debug("purchases recorded",
			"order_id", o.ID.String(),
			"inserted", n,
		)
	}
	return n, nil
}

// Owns reports whether the user has ever paid for the product. Ownership
// is never revoked.
func (c *Checkout) Owns(ctx context.Context, userID id.UserID, productID id.ProductID) (bool, error) {
	return c.store.HasPurchase(ctx, userID, productID)
}

// PurchaseHistory lists the user's products, newest purchase first. A
// product bought twice appears once, with its latest record. Products
// that left the catalog are omitted.
func (c *Checkout) PurchaseHistory(ctx context.Context, userID id.UserID) ([]PurchaseEntry, error) {
	records, err := c.store.ListPurchases(ctx, userID)
	if err != nil {
		return nil, err
	}

	seen := make(map[id.ProductID]struct{}, len(records))
	latest := make([]*purchase.Record, 0, len(records))
	ids := make([]id.ProductID, 0, len(records))
	for _, r := range records {
		if _, ok := seen[r.ProductID]; ok {
			continue
		}
		seen[r.ProductID] = struct{}{}
		latest = append(latest, r)
		ids = append(ids, r.ProductID)
	}

	products, err := c.store.ListProductsByID(ctx, ids)
	if err != nil {
		return nil, err
	}
	byID := make(map[id.ProductID]*catalog.Product, len(products))
	for _, p := range products {
		byID[p.ID] = p
	}

	entries := make([]PurchaseEntry, 0, len(latest))
	for _, r := range latest {
		p, ok := byID[r.ProductID]
		if !ok {
			continue
		}
		entries = append(entries, PurchaseEntry{Record: r, Product: p})
	}
	return entries, nil
}

// ListPopular ranks active products by how many paid orders included them.
func (c *Checkout) ListPopular(ctx context.Context, limit int) ([]*catalog.Product, error) {
	return c.store.ListPopular(ctx, limit)
}
