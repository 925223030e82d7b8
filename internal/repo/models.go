package repo

import (
	"database/sql"
	"time"

	"github.com/fbr-shop/payment-service/internal/entities"
	"github.com/shopspring/decimal"
)

type Order struct {
	ID                string          `db:"id"`
	OrderNumber       string          `db:"order_number"`
	CustomerEmail     string          `db:"customer_email"`
	CustomerID        sql.NullString  `db:"customer_id"`
	Status            string          `db:"status"`
	PaymentStatus     string          `db:"payment_status"`
	PaymentMethod     string          `db:"payment_method"`
	Currency          string          `db:"currency"`
	TotalAmount       decimal.Decimal `db:"total_amount"`
	ShippingName      sql.NullString  `db:"shipping_name"`
	ShippingStreet    sql.NullString  `db:"shipping_street"`
	ShippingCity      sql.NullString  `db:"shipping_city"`
	ShippingZIP       sql.NullString  `db:"shipping_zip"`
	ShippingCountry   sql.NullString  `db:"shipping_country"`
	BillingName       sql.NullString  `db:"billing_name"`
	BillingStreet     sql.NullString  `db:"billing_street"`
	BillingCity       sql.NullString  `db:"billing_city"`
	BillingZIP        sql.NullString  `db:"billing_zip"`
	BillingCountry    sql.NullString  `db:"billing_country"`
	ProviderPaymentID sql.NullString  `db:"provider_payment_id"`
	PaymentReference  sql.NullString  `db:"payment_reference"`
	Notes             sql.NullString  `db:"notes"`
	CreatedAt         time.Time       `db:"created_at"`
	UpdatedAt         time.Time       `db:"updated_at"`
}

type OrderItem struct {
	OrderID   string          `db:"order_id"`
	ProductID string          `db:"product_id"`
	Quantity  int             `db:"quantity"`
	Price     decimal.Decimal `db:"price"`
	Total     decimal.Decimal `db:"total"`
}

func OrderToEntity(o Order, items []OrderItem) entities.Order {
	order := entities.Order{
		ID:            o.ID,
		OrderNumber:   o.OrderNumber,
		CustomerEmail: o.CustomerEmail,
		CustomerID:    nullStringToString(o.CustomerID),
		Status:        entities.OrderStatus(o.Status),
		PaymentStatus: entities.PaymentStatus(o.PaymentStatus),
		PaymentMethod: entities.PaymentMethod(o.PaymentMethod),
		Currency:      o.Currency,
		TotalAmount:   o.TotalAmount,
		ShippingAddress: entities.Address{
			Name:    nullStringToString(o.ShippingName),
			Street:  nullStringToString(o.ShippingStreet),
			City:    nullStringToString(o.ShippingCity),
			ZIP:     nullStringToString(o.ShippingZIP),
			Country: nullStringToString(o.ShippingCountry),
		},
		BillingAddress: entities.Address{
			Name:    nullStringToString(o.BillingName),
			Street:  nullStringToString(o.BillingStreet),
			City:    nullStringToString(o.BillingCity),
			ZIP:     nullStringToString(o.BillingZIP),
			Country: nullStringToString(o.BillingCountry),
		},
		ProviderPaymentID: nullStringToString(o.ProviderPaymentID),
		PaymentReference:  nullStringToString(o.PaymentReference),
		Notes:             nullStringToString(o.Notes),
		CreatedAt:         o.CreatedAt,
		UpdatedAt:         o.UpdatedAt,
	}

	if len(items) > 0 {
		order.Items = make([]entities.OrderItem, 0, len(items))
		for _, it := range items {
			order.Items = append(order.Items, ItemToEntity(it))
		}
	}

	return order
}

func ItemToEntity(i OrderItem) entities.OrderItem {
	return entities.OrderItem{
		OrderID:   i.OrderID,
		ProductID: i.ProductID,
		Quantity:  i.Quantity,
		Price:     i.Price,
		Total:     i.Total,
	}
}

func nullStringToString(ns sql.NullString) string {
	if ns.Valid {
		return ns.String
	}
	return ""
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}
