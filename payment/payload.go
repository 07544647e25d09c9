package payment

import (
	"errors"
	"fmt"
	"strings"

	"github.com/xraph/checkout/id"
)

// ErrMalformedPayload is returned when a native payload does not match
// order:<order id>:product:<product id|0>.
var ErrMalformedPayload = errors.New("checkout: malformed payment payload")

const noProduct = "0"

// Payload ties a native payment back to its order. ProductID is Nil for
// cart checkouts.
type Payload struct {
	OrderID   id.OrderID
	ProductID id.ProductID
}

// String encodes the payload in its wire form.
func (p Payload) String() string {
	product := noProduct
	if !p.ProductID.IsNil() {
		product = p.ProductID.String()
	}
	return "order:" + p.OrderID.String() + ":product:" + product
}

// ParsePayload strictly decodes the wire form. Anything other than exactly
// four colon-separated fields with valid identifiers is rejected.
func ParsePayload(s string) (Payload, error) {
	parts := strings.Split(s, ":")
	if len(parts) != 4 || parts[0] != "order" || parts[2] != "product" {
		return Payload{}, fmt.Errorf("%w: %q", ErrMalformedPayload, s)
	}

	orderID, err := id.ParseOrderID(parts[1])
	if err != nil {
		return Payload{}, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}

	p := Payload{OrderID: orderID}
	if parts[3] != noProduct {
		productID, err := id.ParseProductID(parts[3])
		if err != nil {
			return Payload{}, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
		}
		p.ProductID = productID
	}
	return p, nil
}
