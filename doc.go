// Package checkout provides an order and payment reconciliation engine for
// Go applications that sell digital products.
//
// Checkout is designed as a library, not a service. It turns a user's cart
// into an immutable order and drives that order to paid exactly once, no
// matter which of its payment signals arrives first or how often each is
// repeated:
//
//   - Provider webhooks (HandleWebhook)
//   - Native in-chat payment callbacks (PreCheckout, HandleNativePayment)
//   - Manual status checks requested by the user (CheckOrder)
//   - A periodic sweep over pending orders (Sweep)
//
// # Quick Start
//
//	import (
//	    "github.com/xraph/checkout"
//	    "github.com/xraph/checkout/gateway/yookassa"
//	    "github.com/xraph/checkout/store/postgres"
//	)
//
//	gw, err := yookassa.New(shopID, secretKey)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	c := checkout.New(postgres.New(db),
//	    checkout.WithGateway(gw),
//	    checkout.WithSweepInterval(10*time.Second),
//	)
//	if err := c.Start(ctx); err != nil {
//	    log.Fatal(err)
//	}
//	defer c.Stop()
//
// # Orders
//
// Prices are read from the catalog once, when the order is created, and
// frozen into its lines. Catalog edits never change an existing order:
//
//	u, _ := c.ResolveUser(ctx, principalID, "Ada")
//	_, _ = c.AddToCart(ctx, u.ID, productID, 1)
//	intent, err := c.Checkout(ctx, u.ID)
//	// intent.ConfirmationURL for redirect payments,
//	// intent.Payload for native invoices.
//
// # Reconciliation
//
// Every signal ends in Confirm, which performs one conditional
// pending -> paid write. Exactly one caller wins it; that caller records
// the purchases, removes the bought products from the cart and bumps
// their popularity. Everyone else gets ResultAlreadyHandled.
//
// Purchase records are the only authority on ownership and are never
// deleted:
//
//	owned, _ := c.Owns(ctx, u.ID, productID)
//
// # Plugins
//
// Notifications, metrics and audit trails hook in through the plugin
// package. OnOrderPaid fires once per order and is where user
// notifications belong.
//
// # TypeID
//
// All entities use TypeID for globally unique, type-safe identifiers:
//
//	usr_01h2xcejqtf2nbrexx3vqjhp41   // User ID
//	ord_01h2xcejqtf2nbrexx3vqjhp41   // Order ID
//	pur_01h455vb4pex5vsknk084sn02q   // Purchase ID
package checkout
