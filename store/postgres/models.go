package postgres

import (
	"encoding/json"
	"fmt"
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

	ID          string    `grove:"id,pk"`
	PrincipalID int64     `grove:"principal_id"`
	DisplayName string    `grove:"display_name"`
	Login       string    `grove:"login"`
	Email       string    `grove:"email"`
	CreatedAt   time.Time `grove:"created_at"`
	UpdatedAt   time.Time `grove:"updated_at"`
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
		Entity: types.Entity{
			CreatedAt: m.CreatedAt,
			UpdatedAt: m.UpdatedAt,
		},
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

	ID            string    `grove:"id,pk"`
	Name          string    `grove:"name"`
	Description   string    `grove:"description"`
	PriceAmount   int64     `grove:"price_amount"`
	PriceCurrency string    `grove:"price_currency"`
	Active        bool      `grove:"active"`
	DownloadURL   string    `grove:"download_url"`
	Popularity    int64     `grove:"popularity"`
	CreatedAt     time.Time `grove:"created_at"`
	UpdatedAt     time.Time `grove:"updated_at"`
}

func toProductModel(p *catalog.Product) *productModel {
	return &productModel{
		ID:            p.ID.String(),
		Name:          p.Name,
		Description:   p.Description,
		PriceAmount:   p.Price.Amount,
		PriceCurrency: p.Price.Currency,
		Active:        p.Active,
		DownloadURL:   p.DownloadURL,
		Popularity:    p.Popularity,
		CreatedAt:     p.CreatedAt,
		UpdatedAt:     p.UpdatedAt,
	}
}

func fromProductModel(m *productModel) (*catalog.Product, error) {
	productID, err := id.ParseProductID(m.ID)
	if err != nil {
		return nil, err
	}
	return &catalog.Product{
		Entity: types.Entity{
			CreatedAt: m.CreatedAt,
			UpdatedAt: m.UpdatedAt,
		},
		ID:          productID,
		Name:        m.Name,
		Description: m.Description,
		Price:       types.Money{Amount: m.PriceAmount, Currency: m.PriceCurrency},
		Active:      m.Active,
		DownloadURL: m.DownloadURL,
		Popularity:  m.Popularity,
	}, nil
}

// ==================== Cart models ====================

type cartLineModel struct {
	grove.BaseModel `grove:"table:checkout_cart_lines"`

	UserID    string    `grove:"user_id,pk"`
	ProductID string    `grove:"product_id,pk"`
	Quantity  int       `grove:"quantity"`
	AddedAt   time.Time `grove:"added_at"`
}

func toCartLineModel(l *cart.Line) *cartLineModel {
	return &cartLineModel{
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

	ID            string          `grove:"id,pk"`
	UserID        string          `grove:"user_id"`
	TotalAmount   int64           `grove:"total_amount"`
	TotalCurrency string          `grove:"total_currency"`
	Status        string          `grove:"status"`
	PaymentRef    string          `grove:"payment_ref"`
	Lines         json.RawMessage `grove:"lines,type:jsonb"`
	CreatedAt     time.Time       `grove:"created_at"`
	PaidAt        *time.Time      `grove:"paid_at"`
	FulfilledAt   *time.Time      `grove:"fulfilled_at"`
}

func toOrderModel(o *order.Order) (*orderModel, error) {
	lines, err := json.Marshal(o.Lines)
	if err != nil {
		return nil, fmt.Errorf("encode order lines: %w", err)
	}
	return &orderModel{
		ID:            o.ID.String(),
		UserID:        o.UserID.String(),
		TotalAmount:   o.Total.Amount,
		TotalCurrency: o.Total.Currency,
		Status:        string(o.Status),
		PaymentRef:    o.PaymentRef,
		Lines:         lines,
		CreatedAt:     o.CreatedAt,
		PaidAt:        o.PaidAt,
		FulfilledAt:   o.FulfilledAt,
	}, nil
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

	var lines []order.Line
	if len(m.Lines) > 0 {
		if err := json.Unmarshal(m.Lines, &lines); err != nil {
			return nil, fmt.Errorf("decode lines of order %s: %w", m.ID, err)
		}
	}

	return &order.Order{
		ID:          orderID,
		UserID:      userID,
		Total:       types.Money{Amount: m.TotalAmount, Currency: m.TotalCurrency},
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

	ID            string    `grove:"id,pk"`
	UserID        string    `grove:"user_id"`
	ProductID     string    `grove:"product_id"`
	OrderID       string    `grove:"order_id"`
	PriceAmount   int64     `grove:"price_amount"`
	PriceCurrency string    `grove:"price_currency"`
	PurchasedAt   time.Time `grove:"purchased_at"`
}

func toPurchaseModel(r *purchase.Record) *purchaseModel {
	return &purchaseModel{
		ID:            r.ID.String(),
		UserID:        r.UserID.String(),
		ProductID:     r.ProductID.String(),
		OrderID:       r.OrderID.String(),
		PriceAmount:   r.Price.Amount,
		PriceCurrency: r.Price.Currency,
		PurchasedAt:   r.PurchasedAt,
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
		Price:       types.Money{Amount: m.PriceAmount, Currency: m.PriceCurrency},
		PurchasedAt: m.PurchasedAt,
	}, nil
}
