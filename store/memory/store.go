// Package memory provides an in-memory store.Store for tests and local
// development. Conditional updates run under a single mutex so they keep
// the same atomicity the SQL backends get from their WHERE clauses.
package memory

import (
	"context"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/xraph/checkout"
	"github.com/xraph/checkout/cart"
	"github.com/xraph/checkout/catalog"
	"github.com/xraph/checkout/id"
	"github.com/xraph/checkout/order"
	"github.com/xraph/checkout/purchase"
	"github.com/xraph/checkout/store"
	"github.com/xraph/checkout/user"
)

// compile-time interface check
var _ store.Store = (*Store)(nil)

type cartKey struct {
	user    id.UserID
	product id.ProductID
}

type purchaseKey struct {
	order   id.OrderID
	product id.ProductID
}

// Store is a mutex-guarded store.Store.
type Store struct {
	mu sync.RWMutex

	users       map[id.UserID]*user.User
	principals  map[int64]id.UserID
	products    map[id.ProductID]*catalog.Product
	cartLines   map[cartKey]*cart.Line
	orders      map[id.OrderID]*order.Order
	paymentRefs map[string]id.OrderID
	purchases   []*purchase.Record
	purchaseSet map[purchaseKey]struct{}

	closed bool
}

// New creates an empty in-memory store.
func New() *Store {
	return &Store{
		users:       make(map[id.UserID]*user.User),
		principals:  make(map[int64]id.UserID),
		products:    make(map[id.ProductID]*catalog.Product),
		cartLines:   make(map[cartKey]*cart.Line),
		orders:      make(map[id.OrderID]*order.Order),
		paymentRefs: make(map[string]id.OrderID),
		purchaseSet: make(map[purchaseKey]struct{}),
	}
}

// ==================== User Store ====================

func (s *Store) CreateUser(_ context.Context, u *user.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.users[u.ID]; exists {
		return checkout.ErrAlreadyExists
	}
	if _, taken := s.principals[u.PrincipalID]; taken {
		return checkout.ErrAlreadyExists
	}
	c := *u
	s.users[u.ID] = &c
	s.principals[u.PrincipalID] = u.ID
	return nil
}

func (s *Store) GetUser(_ context.Context, userID id.UserID) (*user.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if u, ok := s.users[userID]; ok {
		c := *u
		return &c, nil
	}
	return nil, checkout.ErrUserNotFound
}

func (s *Store) GetUserByPrincipal(_ context.Context, principalID int64) (*user.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if userID, ok := s.principals[principalID]; ok {
		c := *s.users[userID]
		return &c, nil
	}
	return nil, checkout.ErrUserNotFound
}

func (s *Store) UpdateUser(_ context.Context, u *user.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.users[u.ID]
	if !ok {
		return checkout.ErrUserNotFound
	}
	c := *u
	c.PrincipalID = existing.PrincipalID
	c.CreatedAt = existing.CreatedAt
	c.UpdatedAt = now()
	s.users[u.ID] = &c
	return nil
}

// ==================== Catalog Store ====================

func (s *Store) CreateProduct(_ context.Context, p *catalog.Product) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.products[p.ID]; exists {
		return checkout.ErrAlreadyExists
	}
	c := *p
	s.products[p.ID] = &c
	return nil
}

func (s *Store) GetProduct(_ context.Context, productID id.ProductID) (*catalog.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if p, ok := s.products[productID]; ok {
		c := *p
		return &c, nil
	}
	return nil, checkout.ErrProductNotFound
}

func (s *Store) UpdateProduct(_ context.Context, p *catalog.Product) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.products[p.ID]
	if !ok {
		return checkout.ErrProductNotFound
	}
	c := *p
	// Popularity is owned by BumpPopularity.
	c.Popularity = existing.Popularity
	c.UpdatedAt = now()
	s.products[p.ID] = &c
	return nil
}

func (s *Store) DeleteProduct(_ context.Context, productID id.ProductID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.products[productID]; !ok {
		return checkout.ErrProductNotFound
	}
	delete(s.products, productID)
	return nil
}

func (s *Store) ListProducts(_ context.Context, opts catalog.ListOpts) ([]*catalog.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*catalog.Product, 0, len(s.products))
	for _, p := range s.products {
		if opts.ActiveOnly && !p.Active {
			continue
		}
		c := *p
		result = append(result, &c)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.Before(result[j].CreatedAt)
	})
	return paginate(result, opts.Limit, opts.Offset), nil
}

func (s *Store) ListProductsByID(_ context.Context, ids []id.ProductID) ([]*catalog.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*catalog.Product, 0, len(ids))
	for _, pid := range ids {
		if p, ok := s.products[pid]; ok {
			c := *p
			result = append(result, &c)
		}
	}
	return result, nil
}

func (s *Store) BumpPopularity(_ context.Context, productID id.ProductID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.products[productID]
	if !ok {
		return checkout.ErrProductNotFound
	}
	p.Popularity++
	return nil
}

func (s *Store) ListPopular(_ context.Context, limit int) ([]*catalog.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*catalog.Product, 0, len(s.products))
	for _, p := range s.products {
		if p.Active {
			c := *p
			result = append(result, &c)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].Popularity != result[j].Popularity {
			return result[i].Popularity > result[j].Popularity
		}
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})
	return paginate(result, limit, 0), nil
}

// ==================== Cart Store ====================

func (s *Store) AddCartLine(_ context.Context, l *cart.Line) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := cartKey{l.UserID, l.ProductID}
	if _, exists := s.cartLines[key]; exists {
		return false, nil
	}
	c := *l
	s.cartLines[key] = &c
	return true, nil
}

func (s *Store) RemoveCartLine(_ context.Context, userID id.UserID, productID id.ProductID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.cartLines, cartKey{userID, productID})
	return nil
}

func (s *Store) ListCart(_ context.Context, userID id.UserID) ([]*cart.Line, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*cart.Line, 0)
	for key, l := range s.cartLines {
		if key.user == userID {
			c := *l
			result = append(result, &c)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].AddedAt.Before(result[j].AddedAt)
	})
	return result, nil
}

func (s *Store) ClearCart(_ context.Context, userID id.UserID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for key := range s.cartLines {
		if key.user == userID {
			delete(s.cartLines, key)
		}
	}
	return nil
}

func (s *Store) CartHas(_ context.Context, userID id.UserID, productID id.ProductID) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	_, ok := s.cartLines[cartKey{userID, productID}]
	return ok, nil
}

// ==================== Order Store ====================

func (s *Store) CreateOrder(_ context.Context, o *order.Order) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.orders[o.ID]; exists {
		return checkout.ErrAlreadyExists
	}
	if o.PaymentRef != "" {
		if _, taken := s.paymentRefs[o.PaymentRef]; taken {
			return checkout.ErrAlreadyExists
		}
		s.paymentRefs[o.PaymentRef] = o.ID
	}
	s.orders[o.ID] = cloneOrder(o)
	return nil
}

func (s *Store) GetOrder(_ context.Context, orderID id.OrderID) (*order.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if o, ok := s.orders[orderID]; ok {
		return cloneOrder(o), nil
	}
	return nil, checkout.ErrOrderNotFound
}

func (s *Store) GetOrderByPaymentRef(_ context.Context, ref string) (*order.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if orderID, ok := s.paymentRefs[ref]; ok && ref != "" {
		return cloneOrder(s.orders[orderID]), nil
	}
	return nil, checkout.ErrOrderNotFound
}

func (s *Store) ListOrdersByUser(_ context.Context, userID id.UserID, opts order.ListOpts) ([]*order.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*order.Order, 0)
	for _, o := range s.orders {
		if o.UserID != userID {
			continue
		}
		if opts.Status != "" && o.Status != opts.Status {
			continue
		}
		result = append(result, cloneOrder(o))
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})
	return paginate(result, opts.Limit, opts.Offset), nil
}

func (s *Store) ListPendingOrders(_ context.Context, limit int) ([]*order.Order, error) {
	return s.listOrders(limit, func(o *order.Order) bool {
		return o.Status == order.StatusPending && o.PaymentRef != ""
	}), nil
}

func (s *Store) ListUnfulfilledOrders(_ context.Context, limit int) ([]*order.Order, error) {
	return s.listOrders(limit, func(o *order.Order) bool {
		return o.Status == order.StatusPaid && o.FulfilledAt == nil
	}), nil
}

func (s *Store) listOrders(limit int, match func(*order.Order) bool) []*order.Order {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*order.Order, 0)
	for _, o := range s.orders {
		if match(o) {
			result = append(result, cloneOrder(o))
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.Before(result[j].CreatedAt)
	})
	return paginate(result, limit, 0)
}

func (s *Store) AttachPaymentRef(_ context.Context, orderID id.OrderID, ref string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	o, ok := s.orders[orderID]
	if !ok {
		return checkout.ErrOrderNotFound
	}
	if o.PaymentRef == ref {
		return nil
	}
	if o.PaymentRef != "" || o.Status != order.StatusPending {
		return checkout.ErrPaymentRefConflict
	}
	if other, taken := s.paymentRefs[ref]; taken && other != orderID {
		return checkout.ErrPaymentRefConflict
	}
	o.PaymentRef = ref
	s.paymentRefs[ref] = orderID
	return nil
}

func (s *Store) SetOrderPaid(_ context.Context, orderID id.OrderID, ref string, paidAt time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	o, ok := s.orders[orderID]
	if !ok {
		return false, checkout.ErrOrderNotFound
	}
	if o.Status != order.StatusPending {
		return false, nil
	}
	o.Status = order.StatusPaid
	t := paidAt.UTC()
	o.PaidAt = &t
	if o.PaymentRef == "" && ref != "" {
		if _, taken := s.paymentRefs[ref]; !taken {
			o.PaymentRef = ref
			s.paymentRefs[ref] = orderID
		}
	}
	return true, nil
}

func (s *Store) MarkOrderFulfilled(_ context.Context, orderID id.OrderID, at time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	o, ok := s.orders[orderID]
	if !ok {
		return false, checkout.ErrOrderNotFound
	}
	if o.Status != order.StatusPaid || o.FulfilledAt != nil {
		return false, nil
	}
	t := at.UTC()
	o.FulfilledAt = &t
	return true, nil
}

// ==================== Purchase Store ====================

func (s *Store) RecordPurchases(_ context.Context, records []*purchase.Record) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	inserted := 0
	for _, r := range records {
		key := purchaseKey{r.OrderID, r.ProductID}
		if _, exists := s.purchaseSet[key]; exists {
			continue
		}
		s.purchaseSet[key] = struct{}{}
		c := *r
		s.purchases = append(s.purchases, &c)
		inserted++
	}
	return inserted, nil
}

func (s *Store) HasPurchase(_ context.Context, userID id.UserID, productID id.ProductID) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, r := range s.purchases {
		if r.UserID == userID && r.ProductID == productID {
			return true, nil
		}
	}
	return false, nil
}

func (s *Store) ListPurchases(_ context.Context, userID id.UserID) ([]*purchase.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*purchase.Record, 0)
	for _, r := range s.purchases {
		if r.UserID == userID {
			c := *r
			result = append(result, &c)
		}
	}
	// Stable sort keeps insertion order for equal timestamps, reversed
	// below so the latest insert comes first.
	slices.Reverse(result)
	sort.SliceStable(result, func(i, j int) bool {
		return result[i].PurchasedAt.After(result[j].PurchasedAt)
	})
	return result, nil
}

// ==================== Core ====================

func (s *Store) Migrate(_ context.Context) error {
	return nil // No migration needed for memory store
}

func (s *Store) Ping(_ context.Context) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return checkout.ErrStoreClosed
	}
	return nil
}

func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.closed = true
	return nil
}

// ==================== Helpers ====================

func now() time.Time {
	return time.Now().UTC()
}

func cloneOrder(o *order.Order) *order.Order {
	c := *o
	c.Lines = slices.Clone(o.Lines)
	if o.PaidAt != nil {
		t := *o.PaidAt
		c.PaidAt = &t
	}
	if o.FulfilledAt != nil {
		t := *o.FulfilledAt
		c.FulfilledAt = &t
	}
	return &c
}

func paginate[T any](items []T, limit, offset int) []T {
	start := min(offset, len(items))
	end := len(items)
	if limit > 0 && start+limit < end {
		end = start + limit
	}
	return items[start:end]
}
