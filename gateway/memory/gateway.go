// Package memory provides an in-process payment gateway for tests and
// local development.
package memory

import (
	"context"
	"sync"

	"github.com/xraph/checkout/gateway"
	"github.com/xraph/checkout/payment"
)

// compile-time interface check
var _ gateway.Gateway = (*Gateway)(nil)

// Gateway settles payments in memory. By default every payment is
// created as TEST-PAY-<order> without a confirmation URL and reports
// payment.StatusPaid.
type Gateway struct {
	mu sync.Mutex

	confirmationURL string
	defaultStatus   payment.Status
	statuses        map[string]payment.Status
	createErr       error
	checkErr        error

	created []gateway.CreateRequest
	checks  map[string]int
}

// Option configures the gateway.
type Option func(*Gateway)

// WithConfirmationURL makes created payments redirect-style.
func WithConfirmationURL(url string) Option {
	return func(g *Gateway) { g.confirmationURL = url }
}

// WithDefaultStatus sets the status reported for refs without an explicit one.
func WithDefaultStatus(s payment.Status) Option {
	return func(g *Gateway) { g.defaultStatus = s }
}

// New creates a memory gateway.
func New(opts ...Option) *Gateway {
	g := &Gateway{
		defaultStatus: payment.StatusPaid,
		statuses:      make(map[string]payment.Status),
		checks:        make(map[string]int),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Name implements gateway.Gateway.
func (g *Gateway) Name() string { return "memory" }

// CreatePayment implements gateway.Gateway.
func (g *Gateway) CreatePayment(_ context.Context, req gateway.CreateRequest) (*gateway.Payment, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.createErr != nil {
		return nil, g.createErr
	}
	g.created = append(g.created, req)
	return &gateway.Payment{
		Ref:             RefFor(req),
		ConfirmationURL: g.confirmationURL,
	}, nil
}

// CheckPayment implements gateway.Gateway.
func (g *Gateway) CheckPayment(_ context.Context, ref string) (payment.Status, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.checks[ref]++
	if g.checkErr != nil {
		return "", g.checkErr
	}
	if s, ok := g.statuses[ref]; ok {
		return s, nil
	}
	return g.defaultStatus, nil
}

// SetStatus scripts the status reported for ref.
func (g *Gateway) SetStatus(ref string, s payment.Status) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.statuses[ref] = s
}

// FailCreate makes CreatePayment return err until cleared with nil.
func (g *Gateway) FailCreate(err error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.createErr = err
}

// FailCheck makes CheckPayment return err until cleared with nil.
func (g *Gateway) FailCheck(err error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.checkErr = err
}

// Created returns every request passed to CreatePayment.
func (g *Gateway) Created() []gateway.CreateRequest {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make([]gateway.CreateRequest, len(g.created))
	copy(out, g.created)
	return out
}

// Checks returns how many times ref was polled.
func (g *Gateway) Checks(ref string) int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.checks[ref]
}

// RefFor returns the ref the gateway assigns to req.
func RefFor(req gateway.CreateRequest) string {
	return "TEST-PAY-" + req.OrderID.String()
}
