package entities

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

type OrderStatus string

const (
	OrderStatusPending    OrderStatus = "pending"
	OrderStatusProcessing OrderStatus = "processing"
	OrderStatusAuthorised OrderStatus = "authorised"
	OrderStatusPaid       OrderStatus = "paid"
	OrderStatusFailed     OrderStatus = "failed"
	OrderStatusCancelled  OrderStatus = "cancelled"
	OrderStatusShipped    OrderStatus = "shipped"
	OrderStatusDelivered  OrderStatus = "delivered"
)

type PaymentStatus string

const (
	PaymentStatusPending    PaymentStatus = "pending"
	PaymentStatusAuthorised PaymentStatus = "authorised"
	PaymentStatusPaid       PaymentStatus = "paid"
	PaymentStatusFailed     PaymentStatus = "failed"
	PaymentStatusCancelled  PaymentStatus = "cancelled"
	PaymentStatusRefunded   PaymentStatus = "refunded"
)

type PaymentMethod string

const (
	PaymentMethodCard         PaymentMethod = "card"
	PaymentMethodCardAlt      PaymentMethod = "card_alt"
	PaymentMethodBankTransfer PaymentMethod = "bank_transfer"
	PaymentMethodCOD          PaymentMethod = "cod"
)

type Address struct {
	Name    string
	Street  string
	City    string
	ZIP     string
	Country string
}

type Order struct {
	ID                string
	OrderNumber       string
	CustomerEmail     string
	CustomerID        string
	Status            OrderStatus
	PaymentStatus     PaymentStatus
	PaymentMethod     PaymentMethod
	Currency          string
	TotalAmount       decimal.Decimal
	ShippingAddress   Address
	BillingAddress    Address
	ProviderPaymentID string
	PaymentReference  string
	Notes             string
	CreatedAt         time.Time
	UpdatedAt         time.Time

	Items []OrderItem
}

type OrderItem struct {
	OrderID   string
	ProductID string
	Quantity  int
	Price     decimal.Decimal
	Total     decimal.Decimal
}

// OrderUpdate holds the partially updatable order fields. Nil means keep.
type OrderUpdate struct {
	Status            *OrderStatus
	PaymentStatus     *PaymentStatus
	ProviderPaymentID *string
	PaymentReference  *string
	Notes             *string
}

var (
	ErrOrderNotFound  = errors.New("order not found")
	ErrInvalidOrder   = errors.New("invalid order")
	ErrOrderCancelled = errors.New("order already cancelled")
)

// ItemsTotal recomputes every line total from price*quantity and returns the
// sum. Line totals are never trusted from the caller.
func (o *Order) ItemsTotal() decimal.Decimal {
	sum := decimal.Zero
	for i := range o.Items {
		o.Items[i].Total = o.Items[i].Price.Mul(decimal.NewFromInt(int64(o.Items[i].Quantity)))
		sum = sum.Add(o.Items[i].Total)
	}
	return sum
}

// paymentStatusRank orders payment statuses along the lifecycle. A transition
// is applied only when it moves strictly forward, so a stale or duplicate
// webhook for an already settled order is a no-op.
var paymentStatusRank = map[PaymentStatus]int{
	PaymentStatusPending:    0,
	PaymentStatusAuthorised: 1,
	PaymentStatusPaid:       2,
	PaymentStatusFailed:     2,
	PaymentStatusCancelled:  2,
	PaymentStatusRefunded:   3,
}

func CanTransitionPayment(from, to PaymentStatus) bool {
	return paymentStatusRank[to] > paymentStatusRank[from]
}

var orderStatusRank = map[OrderStatus]int{
	OrderStatusPending:    0,
	OrderStatusProcessing: 1,
	OrderStatusAuthorised: 2,
	OrderStatusPaid:       3,
	OrderStatusFailed:     3,
	OrderStatusCancelled:  3,
	OrderStatusShipped:    4,
	OrderStatusDelivered:  5,
}

func CanTransitionOrder(from, to OrderStatus) bool {
	if from == OrderStatusCancelled || from == OrderStatusDelivered {
		return false
	}
	return orderStatusRank[to] > orderStatusRank[from]
}
