package mongo

import (
	"time"

	"github.com/xraph/grove"

	"github.com/xraph/checkout/cart"
	"github.com/xraph/checkout/catalog"
	"github.com/xraph/checkout/id"
	"github.com/xraph/checkout/order"
	"github.com/xraph/checkout/purchase"
	"github.com/xraph/checkout/types"
	"github.com/xraph/checkout/user"
)

// ==================== User models ====================

type userModel struct {
	grove.BaseModel `grove:"table:checkout_users"`

	ID          string    `grove:"id,pk"        bson:"_id"`
	PrincipalID int64     `grove:"principal_id" bson:"principal_id"`
	DisplayName string    `grove:"display_name" bson:"display_name"`
	Login       string    `grove:"login"        bson:"login"`
	Email       string    `grove:"email"        bson:"email"`
	CreatedAt   time.Time `grove:"created_at"   bson:"created_at"`
	UpdatedAt   time.Time `grove:"updated_at"   bson:"updated_at"`
}

func toUserModel(u *user.User) *userModel {
	return &userModel{
		ID:          u.ID.String(),
		PrincipalID: u.PrincipalID,
		DisplayName: u.DisplayName,
		Login:       u.Login,
		Email:       u.Email,
		CreatedAt:   u.CreatedAt,
		UpdatedAt:   u.UpdatedAt,
	}
}

func fromUserModel(m *userModel) (*user.User, error) {
	userID, err := id.ParseUserID(m.ID)
	if err != nil {
		return nil, err
	}
	return &user.User{
		Entity:      types.Entity{CreatedAt: m.CreatedAt, UpdatedAt: m.UpdatedAt},
		ID:          userID,
		PrincipalID: m.PrincipalID,
		DisplayName: m.DisplayName,
		Login:       m.Login,
		Email:       m.Email,
	}, nil
}

// ==================== Product models ====================

type productModel struct {
	grove.BaseModel `grove:"table:checkout_products"`

	ID          string     `grove:"id,pk"        bson:"_id"`
	Name        string     `grove:"name"         bson:"name"`
	Description string     `grove:"description"  bson:"description"`
	Price       moneyModel `grove:"price"        bson:"price"`
	Active      bool       `grove:"active"       bson:"active"`
	DownloadURL string     `grove:"download_url" bson:"download_url"`
	Popularity  int64      `grove:"popularity"   bson:"popularity"`
	CreatedAt   time.Time  `grove:"created_at"   bson:"created_at"`
	UpdatedAt   time.Time  `grove:"updated_at"   bson:"updated_at"`
}

type moneyModel struct {
	Amount   int64  `bson:"amount"`
	Currency string `bson:"currency"`
}

func toMoneyModel(m types.Money) moneyModel {
	return moneyModel{Amount: m.Amount, Currency: m.Currency}
}

func (m moneyModel) money() types.Money {
	return types.Money{Amount: m.Amount, Currency: m.Currency}
}

func toProductModel(p *catalog.Product) *productModel {
	return &productModel{
		ID:          p.ID.String(),
		Name:        p.Name,
		Description: p.Description,
		Price:       toMoneyModel(p.Price),
		Active:      p.Active,
		DownloadURL: p.DownloadURL,
		Popularity:  p.Popularity,
		CreatedAt:   p.CreatedAt,
		UpdatedAt:   p.UpdatedAt,
	}
}

func fromProductModel(m *productModel) (*catalog.Product, error) {
	productID, err := id.ParseProductID(m.ID)
	if err != nil {
		return nil, err
	}
	return &catalog.Product{
		Entity:      types.Entity{CreatedAt: m.CreatedAt, UpdatedAt: m.UpdatedAt},
		ID:          productID,
		Name:        m.Name,
		Description: m.Description,
		Price:       m.Price.money(),
		Active:      m.Active,
		DownloadURL: m.DownloadURL,
		Popularity:  m.Popularity,
	}, nil
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

// ==================== Cart models ====================

// cartLineModel is keyed by "<user>:<product>" so the primary key alone
// enforces one line per pair.
type cartLineModel struct {
	grove.BaseModel `grove:"table:checkout_cart_lines"`

	Key       string    `grove:"id,pk"      bson:"_id"`
	UserID    string    `grove:"user_id"    bson:"user_id"`
	ProductID string    `grove:"product_id" bson:"product_id"`
	Quantity  int       `grove:"quantity"   bson:"quantity"`
	AddedAt   time.Time `grove:"added_at"   bson:"added_at"`
}

func cartKey(userID id.UserID, productID id.ProductID) string {
	return userID.String() + ":" + productID.String()
}

func toCartLineModel(l *cart.Line) *cartLineModel {
	return &cartLineModel{
		Key:       cartKey(l.UserID, l.ProductID),
		UserID:    l.UserID.String(),
		ProductID: l.ProductID.String(),
		Quantity:  l.Quantity,
		AddedAt:   l.AddedAt,
	}
}

func fromCartLineModel(m *cartLineModel) (*cart.Line, error) {
	userID, err := id.ParseUserID(m.UserID)
	if err != nil {
		return nil, err
	}
	productID, err := id.ParseProductID(m.ProductID)
	if err != nil {
		return nil, err
	}
	return &cart.Line{
		UserID:    userID,
		ProductID: productID,
		Quantity:  m.Quantity,
		AddedAt:   m.AddedAt,
	}, nil
}

// ==================== Order models ====================

type orderModel struct {
	grove.BaseModel `grove:"table:checkout_orders"`

	ID          string           `grove:"id,pk"        bson:"_id"`
	UserID      string           `grove:"user_id"      bson:"user_id"`
	Total       moneyModel       `grove:"total"        bson:"total"`
	Status      string           `grove:"status"       bson:"status"`
	PaymentRef  string           `grove:"payment_ref"  bson:"payment_ref"`
	Lines       []orderLineModel `grove:"lines"        bson:"lines"`
	CreatedAt   time.Time        `grove:"created_at"   bson:"created_at"`
	PaidAt      *time.Time       `grove:"paid_at"      bson:"paid_at,omitempty"`
	FulfilledAt *time.Time       `grove:"fulfilled_at" bson:"fulfilled_at,omitempty"`
}

type orderLineModel struct {
	ProductID string     `bson:"product_id"`
	Quantity  int        `bson:"quantity"`
	UnitPrice moneyModel `bson:"unit_price"`
}

func toOrderModel(o *order.Order) *orderModel {
	lines := make([]orderLineModel, len(o.Lines))
	for i, l := range o.Lines {
		lines[i] = orderLineModel{
			ProductID: l.ProductID.String(),
			Quantity:  l.Quantity,
			UnitPrice: toMoneyModel(l.UnitPrice),
		}
	}
	return &orderModel{
		ID:          o.ID.String(),
		UserID:      o.UserID.String(),
		Total:       toMoneyModel(o.Total),
		Status:      string(o.Status),
		PaymentRef:  o.PaymentRef,
		Lines:       lines,
		CreatedAt:   o.CreatedAt,
		PaidAt:      o.PaidAt,
		FulfilledAt: o.FulfilledAt,
	}
}

func fromOrderModel(m *orderModel) (*order.Order, error) {
	orderID, err := id.ParseOrderID(m.ID)
	if err != nil {
		return nil, err
	}
	userID, err := id.ParseUserID(m.UserID)
	if err != nil {
		return nil, err
	}

	lines := make([]order.Line, len(m.Lines))
	for i, l := range m.Lines {
		productID, err := id.ParseProductID(l.ProductID)
		if err != nil {
			return nil, err
		}
		lines[i] = order.Line{
			ProductID: productID,
			Quantity:  l.Quantity,
			UnitPrice: l.UnitPrice.money(),
		}
	}

	return &order.Order{
		ID:          orderID,
		UserID:      userID,
		Total:       m.Total.money(),
		Status:      order.Status(m.Status),
		PaymentRef:  m.PaymentRef,
		Lines:       lines,
		CreatedAt:   m.CreatedAt,
		PaidAt:      m.PaidAt,
		FulfilledAt: m.FulfilledAt,
	}, nil
}

func fromOrderModels(models []orderModel) ([]*order.Order, error) {
	result := make([]*order.Order, len(models))
	for i := range models {
		o, err := fromOrderModel(&models[i])
		if err != nil {
			return nil, err
		}
		result[i] = o
	}
	return result, nil
}

// ==================== Purchase models ====================

type purchaseModel struct {
	grove.BaseModel `grove:"table:checkout_purchases"`

	ID          string     `grove:"id,pk"        bson:"_id"`
	UserID      string     `grove:"user_id"      bson:"user_id"`
	ProductID   string     `grove:"product_id"   bson:"product_id"`
	OrderID     string     `grove:"order_id"     bson:"order_id"`
	Price       moneyModel `grove:"price"        bson:"price"`
	PurchasedAt time.Time  `grove:"purchased_at" bson:"purchased_at"`
}

func toPurchaseModel(r *purchase.Record) *purchaseModel {
	return &purchaseModel{
		ID:          r.ID.String(),
		UserID:      r.UserID.String(),
		ProductID:   r.ProductID.String(),
		OrderID:     r.OrderID.String(),
		Price:       toMoneyModel(r.Price),
		PurchasedAt: r.PurchasedAt,
	}
}

func fromPurchaseModel(m *purchaseModel) (*purchase.Record, error) {
	purchaseID, err := id.ParsePurchaseID(m.ID)
	if err != nil {
		return nil, err
	}
	userID, err := id.ParseUserID(m.UserID)
	if err != nil {
		return nil, err
	}
	productID, err := id.ParseProductID(m.ProductID)
	if err != nil {
		return nil, err
	}
	orderID, err := id.ParseOrderID(m.OrderID)
	if err != nil {
		return nil, err
	}
	return &purchase.Record{
		ID:          purchaseID,
		UserID:      userID,
		ProductID:   productID,
		OrderID:     orderID,
		Price:       m.Price.money(),
		PurchasedAt: m.PurchasedAt,
	}, nil
}
