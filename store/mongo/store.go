// Package mongo implements store.Store on MongoDB via Grove ORM. Order lines
// are embedded in the order document, and every conditional transition is
// a single filtered update.
package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/xraph/grove"
	"github.com/xraph/grove/drivers/mongodriver"

	"github.com/xraph/checkout"
	"github.com/xraph/checkout/cart"
	"github.com/xraph/checkout/catalog"
	"github.com/xraph/checkout/id"
	"github.com/xraph/checkout/order"
	"github.com/xraph/checkout/purchase"
	checkoutstore "github.com/xraph/checkout/store"
	"github.com/xraph/checkout/user"
)

// Collection name constants.
const (
	colUsers     = "checkout_users"
	colProducts  = "checkout_products"
	colCartLines = "checkout_cart_lines"
	colOrders    = "checkout_orders"
	colPurchases = "checkout_purchases"
)

// compile-time interface check
var _ checkoutstore.Store = (*Store)(nil)

// Store implements store.Store using MongoDB via Grove ORM.
type Store struct {
	db  *grove.DB
	mdb *mongodriver.MongoDB
}

// New creates a new MongoDB store backed by Grove ORM.
func New(db *grove.DB) *Store {
	return &Store{
		db:  db,
		mdb: mongodriver.Unwrap(db),
	}
}

// DB returns the underlying grove database for direct access.
func (s *Store) DB() *grove.DB { return s.db }

// Migrate creates indexes for all checkout collections.
func (s *Store) Migrate(ctx context.Context) error {
	for col, models := range migrationIndexes() {
		if len(models) == 0 {
			continue
		}
		if _, err := s.mdb.Collection(col).Indexes().CreateMany(ctx, models); err != nil {
			return fmt.Errorf("checkout/mongo: %w: %s indexes: %w", checkout.ErrMigrationFailed, col, err)
		}
	}
	return nil
}

// Ping checks database connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.Ping(ctx)
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// ==================== User Store ====================

func (s *Store) CreateUser(ctx context.Context, u *user.User) error {
	_, err := s.mdb.NewInsert(toUserModel(u)).Exec(ctx)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return checkout.ErrAlreadyExists
		}
		return fmt.Errorf("checkout/mongo: create user: %w", err)
	}
	return nil
}

func (s *Store) GetUser(ctx context.Context, userID id.UserID) (*user.User, error) {
	var m userModel
	err := s.mdb.NewFind(&m).
		Filter(bson.M{"_id": userID.String()}).
		Scan(ctx)
	if err != nil {
		if isNoDocuments(err) {
			return nil, checkout.ErrUserNotFound
		}
		return nil, fmt.Errorf("checkout/mongo: get user: %w", err)
	}
	return fromUserModel(&m)
}

func (s *Store) GetUserByPrincipal(ctx context.Context, principalID int64) (*user.User, error) {
	var m userModel
	err := s.mdb.NewFind(&m).
		Filter(bson.M{"principal_id": principalID}).
		Scan(ctx)
	if err != nil {
		if isNoDocuments(err) {
			return nil, checkout.ErrUserNotFound
		}
		return nil, fmt.Errorf("checkout/mongo: get user by principal: %w", err)
	}
	return fromUserModel(&m)
}

func (s *Store) UpdateUser(ctx context.Context, u *user.User) error {
	res, err := s.mdb.NewUpdate((*userModel)(nil)).
		Filter(bson.M{"_id": u.ID.String()}).
		Set("display_name", u.DisplayName).
		Set("login", u.Login).
		Set("email", u.Email).
		Set("updated_at", now()).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("checkout/mongo: update user: %w", err)
	}
	if res.MatchedCount() == 0 {
		return checkout.ErrUserNotFound
	}
	return nil
}

// ==================== Catalog Store ====================

func (s *Store) CreateProduct(ctx context.Context, p *catalog.Product) error {
	_, err := s.mdb.NewInsert(toProductModel(p)).Exec(ctx)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return checkout.ErrAlreadyExists
		}
		return fmt.Errorf("checkout/mongo: create product: %w", err)
	}
	return nil
}

func (s *Store) GetProduct(ctx context.Context, productID id.ProductID) (*catalog.Product, error) {
	var m productModel
	err := s.mdb.NewFind(&m).
		Filter(bson.M{"_id": productID.String()}).
		Scan(ctx)
	if err != nil {
		if isNoDocuments(err) {
			return nil, checkout.ErrProductNotFound
		}
		return nil, fmt.Errorf("checkout/mongo: get product: %w", err)
	}
	return fromProductModel(&m)
}

// UpdateProduct rewrites the editable fields. Popularity is owned by
// BumpPopularity and is left untouched.
func (s *Store) UpdateProduct(ctx context.Context, p *catalog.Product) error {
	res, err := s.mdb.NewUpdate((*productModel)(nil)).
		Filter(bson.M{"_id": p.ID.String()}).
		Set("name", p.Name).
		Set("description", p.Description).
		Set("price", toMoneyModel(p.Price)).
		Set("active", p.Active).
		Set("download_url", p.DownloadURL).
		Set("updated_at", now()).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("checkout/mongo: update product: %w", err)
	}
	if res.MatchedCount() == 0 {
		return checkout.ErrProductNotFound
	}
	return nil
}

func (s *Store) DeleteProduct(ctx context.Context, productID id.ProductID) error {
	res, err := s.mdb.NewDelete((*productModel)(nil)).
		Filter(bson.M{"_id": productID.String()}).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("checkout/mongo: delete product: %w", err)
	}
	if res.DeletedCount() == 0 {
		return checkout.ErrProductNotFound
	}
	return nil
}

func (s *Store) ListProducts(ctx context.Context, opts catalog.ListOpts) ([]*catalog.Product, error) {
	var models []productModel

	filter := bson.M{}
	if opts.ActiveOnly {
		filter["active"] = true
	}

	q := s.mdb.NewFind(&models).
		Filter(filter).
		Sort(bson.D{{Key: "created_at", Value: 1}})
	if opts.Limit > 0 {
		q = q.Limit(int64(opts.Limit))
	}
	if opts.Offset > 0 {
		q = q.Skip(int64(opts.Offset))
	}

	if err := q.Scan(ctx); err != nil {
		return nil, fmt.Errorf("checkout/mongo: list products: %w", err)
	}
	return fromProductModels(models)
}

func (s *Store) ListProductsByID(ctx context.Context, ids []id.ProductID) ([]*catalog.Product, error) {
	if len(ids) == 0 {
		return []*catalog.Product{}, nil
	}
	keys := make([]string, len(ids))
	for i, pid := range ids {
		keys[i] = pid.String()
	}

	var models []productModel
	err := s.mdb.NewFind(&models).
		Filter(bson.M{"_id": bson.M{"$in": keys}}).
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("checkout/mongo: list products by id: %w", err)
	}
	return fromProductModels(models)
}

func (s *Store) BumpPopularity(ctx context.Context, productID id.ProductID) error {
	res, err := s.mdb.NewUpdate((*productModel)(nil)).
		Filter(bson.M{"_id": productID.String()}).
		SetUpdate(bson.M{"$inc": bson.M{"popularity": 1}}).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("checkout/mongo: bump popularity: %w", err)
	}
	if res.MatchedCount() == 0 {
		return checkout.ErrProductNotFound
	}
	return nil
}

func (s *Store) ListPopular(ctx context.Context, limit int) ([]*catalog.Product, error) {
	var models []productModel
	q := s.mdb.NewFind(&models).
		Filter(bson.M{"active": true}).
		Sort(bson.D{{Key: "popularity", Value: -1}, {Key: "created_at", Value: -1}})
	if limit > 0 {
		q = q.Limit(int64(limit))
	}
	if err := q.Scan(ctx); err != nil {
		return nil, fmt.Errorf("checkout/mongo: list popular: %w", err)
	}
	return fromProductModels(models)
}

// ==================== Cart Store ====================

func (s *Store) AddCartLine(ctx context.Context, l *cart.Line) (bool, error) {
	_, err := s.mdb.NewInsert(toCartLineModel(l)).Exec(ctx)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return false, nil
		}
		return false, fmt.Errorf("checkout/mongo: add cart line: %w", err)
	}
	return true, nil
}

func (s *Store) RemoveCartLine(ctx context.Context, userID id.UserID, productID id.ProductID) error {
	_, err := s.mdb.NewDelete((*cartLineModel)(nil)).
		Filter(bson.M{"_id": cartKey(userID, productID)}).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("checkout/mongo: remove cart line: %w", err)
	}
	return nil
}

func (s *Store) ListCart(ctx context.Context, userID id.UserID) ([]*cart.Line, error) {
	var models []cartLineModel
	err := s.mdb.NewFind(&models).
		Filter(bson.M{"user_id": userID.String()}).
		Sort(bson.D{{Key: "added_at", Value: 1}}).
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("checkout/mongo: list cart: %w", err)
	}

	result := make([]*cart.Line, len(models))
	for i := range models {
		l, err := fromCartLineModel(&models[i])
		if err != nil {
			return nil, err
		}
		result[i] = l
	}
	return result, nil
}

func (s *Store) ClearCart(ctx context.Context, userID id.UserID) error {
	_, err := s.mdb.Collection(colCartLines).
		DeleteMany(ctx, bson.M{"user_id": userID.String()})
	if err != nil {
		return fmt.Errorf("checkout/mongo: clear cart: %w", err)
	}
	return nil
}

func (s *Store) CartHas(ctx context.Context, userID id.UserID, productID id.ProductID) (bool, error) {
	n, err := s.mdb.Collection(colCartLines).
		CountDocuments(ctx, bson.M{"_id": cartKey(userID, productID)})
	if err != nil {
		return false, fmt.Errorf("checkout/mongo: cart has: %w", err)
	}
	return n > 0, nil
}

// ==================== Order Store ====================

func (s *Store) CreateOrder(ctx context.Context, o *order.Order) error {
	_, err := s.mdb.NewInsert(toOrderModel(o)).Exec(ctx)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return checkout.ErrAlreadyExists
		}
		return fmt.Errorf("checkout/mongo: create order: %w", err)
	}
	return nil
}

func (s *Store) GetOrder(ctx context.Context, orderID id.OrderID) (*order.Order, error) {
	var m orderModel
	err := s.mdb.NewFind(&m).
		Filter(bson.M{"_id": orderID.String()}).
		Scan(ctx)
	if err != nil {
		if isNoDocuments(err) {
			return nil, checkout.ErrOrderNotFound
		}
		return nil, fmt.Errorf("checkout/mongo: get order: %w", err)
	}
	return fromOrderModel(&m)
}

func (s *Store) GetOrderByPaymentRef(ctx context.Context, ref string) (*order.Order, error) {
	if ref == "" {
		return nil, checkout.ErrOrderNotFound
	}
	var m orderModel
	err := s.mdb.NewFind(&m).
		Filter(bson.M{"payment_ref": ref}).
		Scan(ctx)
	if err != nil {
		if isNoDocuments(err) {
			return nil, checkout.ErrOrderNotFound
		}
		return nil, fmt.Errorf("checkout/mongo: get order by payment ref: %w", err)
	}
	return fromOrderModel(&m)
}

func (s *Store) ListOrdersByUser(ctx context.Context, userID id.UserID, opts order.ListOpts) ([]*order.Order, error) {
	var models []orderModel

	filter := bson.M{"user_id": userID.String()}
	if opts.Status != "" {
		filter["status"] = string(opts.Status)
	}

	q := s.mdb.NewFind(&models).
		Filter(filter).
		Sort(bson.D{{Key: "created_at", Value: -1}})
	if opts.Limit > 0 {
		q = q.Limit(int64(opts.Limit))
	}
	if opts.Offset > 0 {
		q = q.Skip(int64(opts.Offset))
	}

	if err := q.Scan(ctx); err != nil {
		return nil, fmt.Errorf("checkout/mongo: list orders: %w", err)
	}
	return fromOrderModels(models)
}

func (s *Store) ListPendingOrders(ctx context.Context, limit int) ([]*order.Order, error) {
	return s.listOrders(ctx, bson.M{
		"status":      string(order.StatusPending),
		"payment_ref": bson.M{"$gt": ""},
	}, limit)
}

func (s *Store) ListUnfulfilledOrders(ctx context.Context, limit int) ([]*order.Order, error) {
	return s.listOrders(ctx, bson.M{
		"status":       string(order.StatusPaid),
		"fulfilled_at": nil,
	}, limit)
}

func (s *Store) listOrders(ctx context.Context, filter bson.M, limit int) ([]*order.Order, error) {
	var models []orderModel
	q := s.mdb.NewFind(&models).
		Filter(filter).
		Sort(bson.D{{Key: "created_at", Value: 1}})
	if limit > 0 {
		q = q.Limit(int64(limit))
	}
	if err := q.Scan(ctx); err != nil {
		return nil, fmt.Errorf("checkout/mongo: list orders: %w", err)
	}
	return fromOrderModels(models)
}

func (s *Store) AttachPaymentRef(ctx context.Context, orderID id.OrderID, ref string) error {
	res, err := s.mdb.NewUpdate((*orderModel)(nil)).
		Filter(bson.M{
			"_id":         orderID.String(),
			"status":      string(order.StatusPending),
			"payment_ref": "",
		}).
		Set("payment_ref", ref).
		Exec(ctx)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return checkout.ErrPaymentRefConflict
		}
		return fmt.Errorf("checkout/mongo: attach payment ref: %w", err)
	}
	if res.MatchedCount() == 1 {
		return nil
	}

	o, err := s.GetOrder(ctx, orderID)
	if err != nil {
		return err
	}
	if o.PaymentRef == ref {
		return nil
	}
	return checkout.ErrPaymentRefConflict
}

// SetOrderPaid uses a pipeline update so the stored ref is only filled
// when empty, within the same conditional write as the status change. A
// ref that already belongs to another order is left unclaimed and the
// order is still paid.
func (s *Store) SetOrderPaid(ctx context.Context, orderID id.OrderID, ref string, paidAt time.Time) (bool, error) {
	won, err := s.setOrderPaid(ctx, orderID, ref, paidAt)
	if err != nil && ref != "" && mongo.IsDuplicateKeyError(err) {
		won, err = s.setOrderPaid(ctx, orderID, "", paidAt)
	}
	if err != nil {
		return false, fmt.Errorf("checkout/mongo: set order paid: %w", err)
	}
	if won {
		return true, nil
	}
	return false, s.orderExists(ctx, orderID)
}

func (s *Store) setOrderPaid(ctx context.Context, orderID id.OrderID, ref string, paidAt time.Time) (bool, error) {
	filter := bson.M{
		"_id":    orderID.String(),
		"status": string(order.StatusPending),
	}
	// $literal keeps a ref starting with "$" from being read as a field path.
	update := bson.A{
		bson.M{"$set": bson.M{
			"status":  string(order.StatusPaid),
			"paid_at": paidAt.UTC(),
			"payment_ref": bson.M{"$cond": bson.A{
				bson.M{"$eq": bson.A{"$payment_ref", ""}},
				bson.M{"$literal": ref},
				"$payment_ref",
			}},
		}},
	}

	res, err := s.mdb.Collection(colOrders).UpdateOne(ctx, filter, update)
	if err != nil {
		return false, err
	}
	return res.MatchedCount == 1, nil
}

func (s *Store) MarkOrderFulfilled(ctx context.Context, orderID id.OrderID, at time.Time) (bool, error) {
	res, err := s.mdb.NewUpdate((*orderModel)(nil)).
		Filter(bson.M{
			"_id":          orderID.String(),
			"status":       string(order.StatusPaid),
			"fulfilled_at": nil,
		}).
		Set("fulfilled_at", at.UTC()).
		Exec(ctx)
	if err != nil {
		return false, fmt.Errorf("checkout/mongo: mark order fulfilled: %w", err)
	}
	if res.MatchedCount() == 1 {
		return true, nil
	}
	return false, s.orderExists(ctx, orderID)
}

// orderExists returns ErrOrderNotFound when no document has orderID.
func (s *Store) orderExists(ctx context.Context, orderID id.OrderID) error {
	n, err := s.mdb.Collection(colOrders).CountDocuments(ctx, bson.M{"_id": orderID.String()})
	if err != nil {
		return fmt.Errorf("checkout/mongo: order exists: %w", err)
	}
	if n == 0 {
		return checkout.ErrOrderNotFound
	}
	return nil
}

// ==================== Purchase Store ====================

func (s *Store) RecordPurchases(ctx context.Context, records []*purchase.Record) (int, error) {
	inserted := 0
	for _, r := range records {
		_, err := s.mdb.NewInsert(toPurchaseModel(r)).Exec(ctx)
		if err != nil {
			// (order_id, product_id) is unique; a replay skips the record.
			if mongo.IsDuplicateKeyError(err) {
				continue
			}
			return inserted, fmt.Errorf("checkout/mongo: record purchase: %w", err)
		}
		inserted++
	}
	return inserted, nil
}

func (s *Store) HasPurchase(ctx context.Context, userID id.UserID, productID id.ProductID) (bool, error) {
	n, err := s.mdb.Collection(colPurchases).CountDocuments(ctx, bson.M{
		"user_id":    userID.String(),
		"product_id": productID.String(),
	})
	if err != nil {
		return false, fmt.Errorf("checkout/mongo: has purchase: %w", err)
	}
	return n > 0, nil
}

func (s *Store) ListPurchases(ctx context.Context, userID id.UserID) ([]*purchase.Record, error) {
	var models []purchaseModel
	err := s.mdb.NewFind(&models).
		Filter(bson.M{"user_id": userID.String()}).
		Sort(bson.D{{Key: "purchased_at", Value: -1}, {Key: "_id", Value: -1}}).
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("checkout/mongo: list purchases: %w", err)
	}

	result := make([]*purchase.Record, len(models))
	for i := range models {
		r, err := fromPurchaseModel(&models[i])
		if err != nil {
			return nil, err
		}
		result[i] = r
	}
	return result, nil
}

// ==================== Helpers ====================

// now returns the current UTC time.
func now() time.Time {
	return time.Now().UTC()
}

// isNoDocuments checks if an error wraps mongo.ErrNoDocuments.
func isNoDocuments(err error) bool {
	return errors.Is(err, mongo.ErrNoDocuments)
}

// migrationIndexes returns the index definitions for all checkout collections.
func migrationIndexes() map[string][]mongo.IndexModel {
	return map[string][]mongo.IndexModel{
		colUsers: {
			{
				Keys:    bson.D{{Key: "principal_id", Value: 1}},
				Options: options.Index().SetUnique(true),
			},
		},
		colProducts: {
			{Keys: bson.D{{Key: "active", Value: 1}, {Key: "popularity", Value: -1}, {Key: "created_at", Value: -1}}},
		},
		colCartLines: {
			{Keys: bson.D{{Key: "user_id", Value: 1}, {Key: "added_at", Value: 1}}},
		},
		colOrders: {
			{Keys: bson.D{{Key: "user_id", Value: 1}, {Key: "created_at", Value: -1}}},
			{Keys: bson.D{{Key: "status", Value: 1}, {Key: "created_at", Value: 1}}},
			{
				Keys: bson.D{{Key: "payment_ref", Value: 1}},
				Options: options.Index().
					SetUnique(true).
					SetPartialFilterExpression(bson.M{"payment_ref": bson.M{"$gt": ""}}),
			},
		},
		colPurchases: {
			{
				Keys:    bson.D{{Key: "order_id", Value: 1}, {Key: "product_id", Value: 1}},
				Options: options.Index().SetUnique(true),
			},
			{Keys: bson.D{{Key: "user_id", Value: 1}, {Key: "product_id", Value: 1}}},
			{Keys: bson.D{{Key: "user_id", Value: 1}, {Key: "purchased_at", Value: -1}}},
		},
	}
}
