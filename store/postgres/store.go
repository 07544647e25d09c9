// Package postgres implements store.Store on PostgreSQL via Grove ORM.
// Every conditional transition is a single UPDATE guarded by its WHERE
// clause, so concurrent confirmations never need an application lock.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/xraph/grove"
	"github.com/xraph/grove/drivers/pgdriver"
	"github.com/xraph/grove/migrate"

	"github.com/xraph/checkout"
	"github.com/xraph/checkout/cart"
	"github.com/xraph/checkout/catalog"
	"github.com/xraph/checkout/id"
	"github.com/xraph/checkout/order"
	"github.com/xraph/checkout/purchase"
	checkoutstore "github.com/xraph/checkout/store"
	"github.com/xraph/checkout/user"
)

// compile-time interface check
var _ checkoutstore.Store = (*Store)(nil)

// uniqueViolation is the PostgreSQL SQLSTATE for unique_violation.
const uniqueViolation = "23505"

// Store implements store.Store using PostgreSQL via Grove ORM.
type Store struct {
	db *grove.DB
	pg *pgdriver.PgDB
}

// New creates a new PostgreSQL store backed by Grove ORM.
func New(db *grove.DB) *Store {
	return &Store{
		db: db,
		pg: pgdriver.Unwrap(db),
	}
}

// DB returns the underlying grove database for direct access.
func (s *Store) DB() *grove.DB { return s.db }

// Migrate creates the required tables and indexes using the grove orchestrator.
func (s *Store) Migrate(ctx context.Context) error {
	executor, err := migrate.NewExecutorFor(s.pg)
	if err != nil {
		return fmt.Errorf("checkout/postgres: create migration executor: %w", err)
	}
	orch := migrate.NewOrchestrator(executor, Migrations)
	if _, err := orch.Migrate(ctx); err != nil {
		return fmt.Errorf("checkout/postgres: %w: %w", checkout.ErrMigrationFailed, err)
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
	_, err := s.pg.NewInsert(toUserModel(u)).Exec(ctx)
	if err != nil {
		if isUniqueViolation(err) {
			return checkout.ErrAlreadyExists
		}
		return fmt.Errorf("checkout/postgres: create user: %w", err)
	}
	return nil
}

func (s *Store) GetUser(ctx context.Context, userID id.UserID) (*user.User, error) {
	m := new(userModel)
	err := s.pg.NewSelect(m).
		Where("id = $1", userID.String()).
		Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return nil, checkout.ErrUserNotFound
		}
		return nil, err
	}
	return fromUserModel(m)
}

func (s *Store) GetUserByPrincipal(ctx context.Context, principalID int64) (*user.User, error) {
	m := new(userModel)
	err := s.pg.NewSelect(m).
		Where("principal_id = $1", principalID).
		Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return nil, checkout.ErrUserNotFound
		}
		return nil, err
	}
	return fromUserModel(m)
}

func (s *Store) UpdateUser(ctx context.Context, u *user.User) error {
	res, err := s.pg.NewUpdate((*userModel)(nil)).
		Set("display_name = $1", u.DisplayName).
		Set("login = $2", u.Login).
		Set("email = $3", u.Email).
		Set("updated_at = $4", now()).
		Where("id = $5", u.ID.String()).
		Exec(ctx)
	if err != nil {
		return err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return checkout.ErrUserNotFound
	}
	return nil
}

// ==================== Catalog Store ====================

func (s *Store) CreateProduct(ctx context.Context, p *catalog.Product) error {
	_, err := s.pg.NewInsert(toProductModel(p)).Exec(ctx)
	if err != nil {
		if isUniqueViolation(err) {
			return checkout.ErrAlreadyExists
		}
		return err
	}
	return nil
}

func (s *Store) GetProduct(ctx context.Context, productID id.ProductID) (*catalog.Product, error) {
	m := new(productModel)
	err := s.pg.NewSelect(m).
		Where("id = $1", productID.String()).
		Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return nil, checkout.ErrProductNotFound
		}
		return nil, err
	}
	return fromProductModel(m)
}

func (s *Store) UpdateProduct(ctx context.Context, p *catalog.Product) error {
	res, err := s.pg.NewUpdate((*productModel)(nil)).
		Set("name = $1", p.Name).
		Set("description = $2", p.Description).
		Set("price_amount = $3", p.Price.Amount).
		Set("price_currency = $4", p.Price.Currency).
		Set("active = $5", p.Active).
		Set("download_url = $6", p.DownloadURL).
		Set("updated_at = $7", now()).
		Where("id = $8", p.ID.String()).
		Exec(ctx)
	if err != nil {
		return err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return checkout.ErrProductNotFound
	}
	return nil
}

func (s *Store) DeleteProduct(ctx context.Context, productID id.ProductID) error {
	res, err := s.pg.NewDelete((*productModel)(nil)).
		Where("id = $1", productID.String()).
		Exec(ctx)
	if err != nil {
		return err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return checkout.ErrProductNotFound
	}
	return nil
}

func (s *Store) ListProducts(ctx context.Context, opts catalog.ListOpts) ([]*catalog.Product, error) {
	var models []productModel
	q := s.pg.NewSelect(&models)
	if opts.ActiveOnly {
		q = q.Where("active = $1", true)
	}
	if opts.Limit > 0 {
		q = q.Limit(opts.Limit)
	}
	if opts.Offset > 0 {
		q = q.Offset(opts.Offset)
	}
	q = q.OrderExpr("created_at ASC")

	if err := q.Scan(ctx); err != nil {
		return nil, err
	}
	return fromProductModels(models)
}

func (s *Store) ListProductsByID(ctx context.Context, ids []id.ProductID) ([]*catalog.Product, error) {
	if len(ids) == 0 {
		return []*catalog.Product{}, nil
	}
	placeholders := make([]string, len(ids))
	args := make([]any, len(ids))
	for i, pid := range ids {
		placeholders[i] = fmt.Sprintf("$%d", i+1)
		args[i] = pid.String()
	}

	var models []productModel
	err := s.pg.NewSelect(&models).
		Where("id IN ("+strings.Join(placeholders, ", ")+")", args...).
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return fromProductModels(models)
}

func (s *Store) BumpPopularity(ctx context.Context, productID id.ProductID) error {
	res, err := s.pg.NewUpdate((*productModel)(nil)).
		Set("popularity = popularity + 1").
		Where("id = $1", productID.String()).
		Exec(ctx)
	if err != nil {
		return err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return checkout.ErrProductNotFound
	}
	return nil
}

func (s *Store) ListPopular(ctx context.Context, limit int) ([]*catalog.Product, error) {
	var models []productModel
	q := s.pg.NewSelect(&models).
		Where("active = $1", true).
		OrderExpr("popularity DESC, created_at DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Scan(ctx); err != nil {
		return nil, err
	}
	return fromProductModels(models)
}

// ==================== Cart Store ====================

func (s *Store) AddCartLine(ctx context.Context, l *cart.Line) (bool, error) {
	res, err := s.pg.NewInsert(toCartLineModel(l)).
		OnConflict("(user_id, product_id) DO NOTHING").
		Exec(ctx)
	if err != nil {
		return false, err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return rows == 1, nil
}

func (s *Store) RemoveCartLine(ctx context.Context, userID id.UserID, productID id.ProductID) error {
	_, err := s.pg.NewDelete((*cartLineModel)(nil)).
		Where("user_id = $1", userID.String()).
		Where("product_id = $2", productID.String()).
		Exec(ctx)
	return err
}

func (s *Store) ListCart(ctx context.Context, userID id.UserID) ([]*cart.Line, error) {
	var models []cartLineModel
	err := s.pg.NewSelect(&models).
		Where("user_id = $1", userID.String()).
		OrderExpr("added_at ASC").
		Scan(ctx)
	if err != nil {
		return nil, err
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
	_, err := s.pg.NewDelete((*cartLineModel)(nil)).
		Where("user_id = $1", userID.String()).
		Exec(ctx)
	return err
}

func (s *Store) CartHas(ctx context.Context, userID id.UserID, productID id.ProductID) (bool, error) {
	var exists bool
	err := s.pg.NewRaw(`
		SELECT EXISTS (SELECT 1 FROM checkout_cart_lines WHERE user_id = $1 AND product_id = $2)
	`, userID.String(), productID.String()).Scan(ctx, &exists)
	if err != nil {
		return false, err
	}
	return exists, nil
}

// ==================== Order Store ====================

func (s *Store) CreateOrder(ctx context.Context, o *order.Order) error {
	m, err := toOrderModel(o)
	if err != nil {
		return err
	}
	if _, err := s.pg.NewInsert(m).Exec(ctx); err != nil {
		if isUniqueViolation(err) {
			return checkout.ErrAlreadyExists
		}
		return fmt.Errorf("checkout/postgres: create order: %w", err)
	}
	return nil
}

func (s *Store) GetOrder(ctx context.Context, orderID id.OrderID) (*order.Order, error) {
	m := new(orderModel)
	err := s.pg.NewSelect(m).
		Where("id = $1", orderID.String()).
		Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return nil, checkout.ErrOrderNotFound
		}
		return nil, err
	}
	return fromOrderModel(m)
}

func (s *Store) GetOrderByPaymentRef(ctx context.Context, ref string) (*order.Order, error) {
	if ref == "" {
		return nil, checkout.ErrOrderNotFound
	}
	m := new(orderModel)
	err := s.pg.NewSelect(m).
		Where("payment_ref = $1", ref).
		Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return nil, checkout.ErrOrderNotFound
		}
		return nil, err
	}
	return fromOrderModel(m)
}

func (s *Store) ListOrdersByUser(ctx context.Context, userID id.UserID, opts order.ListOpts) ([]*order.Order, error) {
	var models []orderModel
	q := s.pg.NewSelect(&models).Where("user_id = $1", userID.String())
	if opts.Status != "" {
		q = q.Where("status = $2", string(opts.Status))
	}
	if opts.Limit > 0 {
		q = q.Limit(opts.Limit)
	}
	if opts.Offset > 0 {
		q = q.Offset(opts.Offset)
	}
	q = q.OrderExpr("created_at DESC")

	if err := q.Scan(ctx); err != nil {
		return nil, err
	}
	return fromOrderModels(models)
}

func (s *Store) ListPendingOrders(ctx context.Context, limit int) ([]*order.Order, error) {
	var models []orderModel
	q := s.pg.NewSelect(&models).
		Where("status = $1", string(order.StatusPending)).
		Where("payment_ref != ''").
		OrderExpr("created_at ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Scan(ctx); err != nil {
		return nil, err
	}
	return fromOrderModels(models)
}

func (s *Store) ListUnfulfilledOrders(ctx context.Context, limit int) ([]*order.Order, error) {
	var models []orderModel
	q := s.pg.NewSelect(&models).
		Where("status = $1", string(order.StatusPaid)).
		Where("fulfilled_at IS NULL").
		OrderExpr("created_at ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Scan(ctx); err != nil {
		return nil, err
	}
	return fromOrderModels(models)
}

func (s *Store) AttachPaymentRef(ctx context.Context, orderID id.OrderID, ref string) error {
	res, err := s.pg.NewUpdate((*orderModel)(nil)).
		Set("payment_ref = $1", ref).
		Where("id = $2", orderID.String()).
		Where("status = $3", string(order.StatusPending)).
		Where("payment_ref = ''").
		Exec(ctx)
	if err != nil {
		if isUniqueViolation(err) {
			return checkout.ErrPaymentRefConflict
		}
		return err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 1 {
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

// SetOrderPaid fills payment_ref only when it is empty. A ref that already
// belongs to another order is left unclaimed and the order is still paid.
func (s *Store) SetOrderPaid(ctx context.Context, orderID id.OrderID, ref string, paidAt time.Time) (bool, error) {
	won, err := s.setOrderPaid(ctx, orderID, ref, paidAt)
	if err != nil && ref != "" && isUniqueViolation(err) {
		won, err = s.setOrderPaid(ctx, orderID, "", paidAt)
	}
	if err != nil {
		return false, fmt.Errorf("checkout/postgres: set order paid: %w", err)
	}
	if won {
		return true, nil
	}
	return false, s.orderExists(ctx, orderID)
}

func (s *Store) setOrderPaid(ctx context.Context, orderID id.OrderID, ref string, paidAt time.Time) (bool, error) {
	res, err := s.pg.NewUpdate((*orderModel)(nil)).
		Set("status = $1", string(order.StatusPaid)).
		Set("payment_ref = CASE WHEN payment_ref = '' THEN $2 ELSE payment_ref END", ref).
		Set("paid_at = $3", paidAt.UTC()).
		Where("id = $4", orderID.String()).
		Where("status = $5", string(order.StatusPending)).
		Exec(ctx)
	if err != nil {
		return false, err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return rows == 1, nil
}

func (s *Store) MarkOrderFulfilled(ctx context.Context, orderID id.OrderID, at time.Time) (bool, error) {
	res, err := s.pg.NewUpdate((*orderModel)(nil)).
		Set("fulfilled_at = $1", at.UTC()).
		Where("id = $2", orderID.String()).
		Where("status = $3", string(order.StatusPaid)).
		Where("fulfilled_at IS NULL").
		Exec(ctx)
	if err != nil {
		return false, err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	if rows == 1 {
		return true, nil
	}
	return false, s.orderExists(ctx, orderID)
}

// orderExists returns ErrOrderNotFound when no row has orderID.
func (s *Store) orderExists(ctx context.Context, orderID id.OrderID) error {
	var exists bool
	err := s.pg.NewRaw(`SELECT EXISTS (SELECT 1 FROM checkout_orders WHERE id = $1)`, orderID.String()).
		Scan(ctx, &exists)
	if err != nil {
		return err
	}
	if !exists {
		return checkout.ErrOrderNotFound
	}
	return nil
}

// ==================== Purchase Store ====================

func (s *Store) RecordPurchases(ctx context.Context, records []*purchase.Record) (int, error) {
	if len(records) == 0 {
		return 0, nil
	}
	models := make([]purchaseModel, len(records))
	for i, r := range records {
		models[i] = *toPurchaseModel(r)
	}
	res, err := s.pg.NewInsert(&models).
		OnConflict("(order_id, product_id) DO NOTHING").
		Exec(ctx)
	if err != nil {
		return 0, fmt.Errorf("checkout/postgres: record purchases: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	return int(rows), nil
}

func (s *Store) HasPurchase(ctx context.Context, userID id.UserID, productID id.ProductID) (bool, error) {
	var exists bool
	err := s.pg.NewRaw(`
		SELECT EXISTS (SELECT 1 FROM checkout_purchases WHERE user_id = $1 AND product_id = $2)
	`, userID.String(), productID.String()).Scan(ctx, &exists)
	if err != nil {
		return false, err
	}
	return exists, nil
}

func (s *Store) ListPurchases(ctx context.Context, userID id.UserID) ([]*purchase.Record, error) {
	var models []purchaseModel
	err := s.pg.NewSelect(&models).
		Where("user_id = $1", userID.String()).
		OrderExpr("purchased_at DESC, id DESC").
		Scan(ctx)
	if err != nil {
		return nil, err
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

func fromProductModels(models []productModel) ([]*catalog.Product, error) {
	result := make([]*catalog.Product, len(models))
	for i := range models {
		p, err := fromProductModel(&models[i])
		if err != nil {
			return nil, err
		}
		result[i] = p
	}
	return result, nil
}

// isNoRows checks for the standard sql.ErrNoRows sentinel.
func isNoRows(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}

// isUniqueViolation reports whether err carries SQLSTATE 23505.
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}
