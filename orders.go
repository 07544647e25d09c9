package checkout

import (
	"context"
	"fmt"

	"github.com/xraph/checkout/catalog"
	"github.com/xraph/checkout/gateway"
	"github.com/xraph/checkout/id"
	"github.com/xraph/checkout/order"
	"github.com/xraph/checkout/payment"
	"github.com/xraph/checkout/types"
)

// PaymentMethod says how the user is expected to pay for an order.
type PaymentMethod string

const (
	// MethodFree orders cost nothing and were fulfilled immediately.
	MethodFree PaymentMethod = "free"
	// MethodNative orders are paid through an in-chat invoice carrying
	// PaymentIntent.Payload.
	MethodNative PaymentMethod = "native"
	// MethodRedirect orders are paid on the gateway page at
	// PaymentIntent.ConfirmationURL.
	MethodRedirect PaymentMethod = "redirect"
	// MethodInstant orders were settled synchronously by the gateway.
	MethodInstant PaymentMethod = "instant"
)

// PaymentIntent tells the caller what to show the user after an order was
// placed.
type PaymentIntent struct {
	Order           *order.Order
	Method          PaymentMethod
	PaymentRef      string
	ConfirmationURL string
	Payload         string
	Receipt         *Receipt
	// Outcome is set when the order was confirmed during checkout.
	Outcome *Outcome
}

// Receipt carries the fiscal receipt data required for card payments.
type Receipt struct {
	Email       string
	Description string
	Amount      types.Money
}

// storeSnapshot prices lines straight from the catalog store.
type storeSnapshot struct {
	store catalog.Store
}

func (s *storeSnapshot) PriceOf(ctx context.Context, productID id.ProductID) (types.Money, error) {
	p, err := s.store.GetProduct(ctx, productID)
	if err != nil {
		return types.Money{}, err
	}
	if !p.Active {
		return types.Money{}, ErrProductNotFound
	}
	return p.Price, nil
}

// ──────────────────────────────────────────────────
// Orders
// ──────────────────────────────────────────────────

// CreateOrderFromLines persists a pending order whose total is the sum of
// its lines. Lines and total never change afterwards.
func (c *Checkout) CreateOrderFromLines(ctx context.Context, userID id.UserID, lines []order.Line) (*order.Order, error) {
	if userID.IsNil() {
		return nil, ValidationError{Field: "user_id", Message: "required"}
	}

	total := types.Zero(c.currency)
	seen := make(map[id.ProductID]struct{}, len(lines))
	for i, l := range lines {
		field := fmt.Sprintf("lines[%d]", i)
		switch {
		case l.ProductID.IsNil():
			return nil, ValidationError{Field: field, Message: "product required"}
		case l.Quantity <= 0:
			return nil, ValidationError{Field: field, Message: "quantity must be positive"}
		case l.UnitPrice.IsNegative():
			return nil, ValidationError{Field: field, Message: "price must not be negative"}
		case l.UnitPrice.Currency != c.currency:
			return nil, ValidationError{Field: field, Message: "currency must be " + c.currency}
		}
		if _, dup := seen[l.ProductID]; dup {
			return nil, ValidationError{Field: field, Message: "duplicate product " + l.ProductID.String()}
		}
		seen[l.ProductID] = struct{}{}
		total = total.Add(l.Amount())
	}

	o := &order.Order{
		ID:        id.NewOrderID(),
		UserID:    userID,
		Total:     total,
		Status:    order.StatusPending,
		Lines:     append([]order.Line(nil), lines...),
		CreatedAt: c.now(),
	}
	if err := c.store.CreateOrder(ctx, o); err != nil {
		return nil, err
	}

	c.plugins.EmitOrderCreated(ctx, o)
	c.logger.Info("order created",
		"order_id", o.ID.String(),
		"user_id", userID.String(),
		"lines", len(o.Lines),
		"total", o.Total.String(),
	)
	return o, nil
}

// Checkout turns the user's cart into an order at current catalog prices
// and opens the payment for it. The cart is only emptied once the order is
// paid.
func (c *Checkout) Checkout(ctx context.Context, userID id.UserID) (*PaymentIntent, error) {
	cartLines, err := c.store.ListCart(ctx, userID)
	if err != nil {
		return nil, err
	}
	if len(cartLines) == 0 {
		return nil, ErrEmptyCart
	}

	lines := make([]order.Line, 0, len(cartLines))
	for _, cl := range cartLines {
		price, err := c.snapshot.PriceOf(ctx, cl.ProductID)
		if err != nil {
			return nil, fmt.Errorf("price %s: %w", cl.ProductID, err)
		}
		lines = append(lines, order.Line{
			ProductID: cl.ProductID,
			Quantity:  cl.Quantity,
			UnitPrice: price,
		})
	}

	email, err := c.receiptEmail(ctx, userID, lines)
	if err != nil {
		return nil, err
	}

	o, err := c.CreateOrderFromLines(ctx, userID, lines)
	if err != nil {
		return nil, err
	}
	return c.openPayment(ctx, o, email, payment.Payload{OrderID: o.ID}, "Order #"+o.ID.String())
}

// BuyProduct places a single-product order outside the cart.
func (c *Checkout) BuyProduct(ctx context.Context, userID id.UserID, productID id.ProductID) (*PaymentIntent, error) {
	p, err := c.store.GetProduct(ctx, productID)
	if err != nil {
		return nil, err
	}
	price, err := c.snapshot.PriceOf(ctx, productID)
	if err != nil {
		return nil, err
	}

	if price.IsZero() {
		owned, err := c.store.HasPurchase(ctx, userID, productID)
		if err != nil {
			return nil, err
		}
		if owned {
			return nil, ErrAlreadyPurchased
		}
	}

	lines := []order.Line{{
		ProductID: productID,
		Quantity:  1,
		UnitPrice: price,
	}}
	email, err := c.receiptEmail(ctx, userID, lines)
	if err != nil {
		return nil, err
	}

	o, err := c.CreateOrderFromLines(ctx, userID, lines)
	if err != nil {
		return nil, err
	}

	description := p.Description
	if description == "" {
		description = p.Name
	}
	return c.openPayment(ctx, o, email, payment.Payload{OrderID: o.ID, ProductID: productID}, description)
}

// receiptEmail returns the address a native receipt is sent to. Native
// payments for a user without one fail before any order is written.
func (c *Checkout) receiptEmail(ctx context.Context, userID id.UserID, lines []order.Line) (string, error) {
	if !c.nativePayments {
		return "", nil
	}
	free := true
	for _, l := range lines {
		if l.UnitPrice.IsPositive() && l.Quantity > 0 {
			free = false
			break
		}
	}
	if free {
		return "", nil
	}

	u, err := c.store.GetUser(ctx, userID)
	if err != nil {
		return "", err
	}
	if !u.HasEmail() {
		return "", ErrEmailRequired
	}
	return u.Email, nil
}

// openPayment picks the payment method for a fresh order. email is the
// receipt address resolved by receiptEmail.
func (c *Checkout) openPayment(ctx context.Context, o *order.Order, email string, payload payment.Payload, description string) (*PaymentIntent, error) {
	if o.Total.IsZero() {
		out, err := c.Confirm(ctx, payment.Confirmation{
			OrderID: o.ID,
			Status:  payment.StatusPaid,
			Source:  payment.SourceFree,
		})
		if err != nil {
			return nil, err
		}
		return &PaymentIntent{Order: out.Order, Method: MethodFree, Outcome: out}, nil
	}

	if c.nativePayments {
		if email == "" {
			return nil, ErrEmailRequired
		}
		return &PaymentIntent{
			Order:   o,
			Method:  MethodNative,
			Payload: payload.String(),
			Receipt: &Receipt{
				Email:       email,
				Description: truncate(description, 128),
				Amount:      o.Total,
			},
		}, nil
	}

	if c.gateway == nil {
		return nil, ErrGatewayNotConfigured
	}

	p, err := c.gateway.CreatePayment(ctx, gateway.CreateRequest{
		OrderID:     o.ID,
		Amount:      o.Total,
		Description: truncate(description, 128),
		ReturnURL:   c.returnURL,
	})
	if err != nil {
		c.plugins.EmitGatewayError(ctx, c.gateway.Name(), "create_payment", err)
		c.logger.Error("create payment failed",
			"order_id", o.ID.String(),
			"gateway", c.gateway.Name(),
			"error", err,
		)
		return nil, fmt.Errorf("%w: %w", ErrGatewayTransient, err)
	}

	if err := c.store.AttachPaymentRef(ctx, o.ID, p.Ref); err != nil {
		return nil, err
	}
	o.PaymentRef = p.Ref
	c.plugins.EmitPaymentCreated(ctx, o, c.gateway.Name(), p.Ref)

	if p.ConfirmationURL != "" {
		return &PaymentIntent{
			Order:           o,
			Method:          MethodRedirect,
			PaymentRef:      p.Ref,
			ConfirmationURL: p.ConfirmationURL,
		}, nil
	}

	out, err := c.Confirm(ctx, payment.Confirmation{
		OrderID:    o.ID,
		PaymentRef: p.Ref,
		Status:     payment.StatusPaid,
		Source:     payment.SourceGateway,
	})
	if err != nil {
		return nil, err
	}
	return &PaymentIntent{
		Order:      out.Order,
		Method:     MethodInstant,
		PaymentRef: p.Ref,
		Outcome:    out,
	}, nil
}

// GetOrder retrieves an order by ID.
func (c *Checkout) GetOrder(ctx context.Context, orderID id.OrderID) (*order.Order, error) {
	return c.store.GetOrder(ctx, orderID)
}

// ListOrdersByUser lists a user's orders, newest first.
func (c *Checkout) ListOrdersByUser(ctx context.Context, userID id.UserID, opts order.ListOpts) ([]*order.Order, error) {
	return c.store.ListOrdersByUser(ctx, userID, opts)
}

// ──────────────────────────────────────────────────
// Catalog
// ──────────────────────────────────────────────────

// CreateProduct adds a product to the catalog.
func (c *Checkout) CreateProduct(ctx context.Context, p *catalog.Product) error {
	if p.ID.IsNil() {
		p.ID = id.NewProductID()
	}
	if p.Price.Currency == "" {
		p.Price.Currency = c.currency
	}
	switch {
	case p.Name == "":
		return ValidationError{Field: "name", Message: "required"}
	case p.Price.IsNegative():
		return ValidationError{Field: "price", Message: "must not be negative"}
	case p.Price.Currency != c.currency:
		return ValidationError{Field: "price", Message: "currency must be " + c.currency}
	}
	p.Entity = types.NewEntity()

	return c.store.CreateProduct(ctx, p)
}

// GetProduct retrieves a product by ID.
func (c *Checkout) GetProduct(ctx context.Context, productID id.ProductID) (*catalog.Product, error) {
	return c.store.GetProduct(ctx, productID)
}

// truncate cuts s to at most n runes.
func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
