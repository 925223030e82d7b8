package handler

import (
	"time"

	"github.com/fbr-shop/payment-service/internal/banktransfer"
	"github.com/fbr-shop/payment-service/internal/entities"
	"github.com/fbr-shop/payment-service/internal/provider"
	"github.com/shopspring/decimal"
)

// Address is the JSON form of a postal address
type Address struct {
	Name    string `json:"name,omitempty"`
	Street  string `json:"street,omitempty"`
	City    string `json:"city,omitempty"`
	ZIP     string `json:"zip,omitempty"`
	Country string `json:"country,omitempty"`
}

// OrderItem is a single order line
type OrderItem struct {
	ProductID string          `json:"product_id" validate:"required"`
	Quantity  int             `json:"quantity" validate:"required,gt=0"`
	Price     decimal.Decimal `json:"price" validate:"required"`
	Total     decimal.Decimal `json:"total,omitempty"`
}

// CreateOrderRequest is the payload for creating a new order
type CreateOrderRequest struct {
	CustomerEmail   string          `json:"customer_email" validate:"required,email"`
	CustomerID      string          `json:"customer_id,omitempty"`
	PaymentMethod   string          `json:"payment_method" validate:"required,oneof=card card_alt bank_transfer cod"`
	Currency        string          `json:"currency" validate:"required,len=3"`
	TotalAmount     decimal.Decimal `json:"total_amount" validate:"required"`
	Items           []OrderItem     `json:"items" validate:"required,min=1,dive"`
	ShippingAddress Address         `json:"shipping_address"`
	BillingAddress  Address         `json:"billing_address"`
	Notes           string          `json:"notes,omitempty"`
}

// UpdateOrderRequest carries a partial order update. PaymentStatus is how the
// back office confirms a bank transfer after checking the account statement.
type UpdateOrderRequest struct {
	Status        *string `json:"status,omitempty" validate:"omitempty,oneof=pending processing authorised paid failed cancelled shipped delivered"`
	PaymentStatus *string `json:"payment_status,omitempty" validate:"omitempty,oneof=pending authorised paid failed cancelled refunded"`
	Notes         *string `json:"notes,omitempty"`
}

// Order represents an order in API responses
type Order struct {
	ID                string          `json:"id"`
	OrderNumber       string          `json:"order_number"`
	CustomerEmail     string          `json:"customer_email"`
	CustomerID        string          `json:"customer_id,omitempty"`
	Status            string          `json:"status"`
	PaymentStatus     string          `json:"payment_status"`
	PaymentMethod     string          `json:"payment_method"`
	Currency          string          `json:"currency"`
	TotalAmount       decimal.Decimal `json:"total_amount"`
	ShippingAddress   Address         `json:"shipping_address"`
	BillingAddress    Address         `json:"billing_address"`
	ProviderPaymentID string          `json:"provider_payment_id,omitempty"`
	PaymentReference  string          `json:"payment_reference,omitempty"`
	Notes             string          `json:"notes,omitempty"`
	Items             []OrderItem     `json:"items"`
	CreatedAt         time.Time       `json:"created_at"`
	UpdatedAt         time.Time       `json:"updated_at"`
}

// CreateCardPaymentRequest starts a card checkout for an order
type CreateCardPaymentRequest struct {
	Provider string `json:"provider" validate:"required,oneof=revolut stripe"`
	OrderID  string `json:"order_id" validate:"required"`
}

// PaymentIntent is the provider-side payment resource in API responses
type PaymentIntent struct {
	ID           string          `json:"id"`
	CheckoutURL  string          `json:"checkout_url,omitempty"`
	ClientSecret string          `json:"client_secret,omitempty"`
	Amount       decimal.Decimal `json:"amount"`
	Currency     string          `json:"currency"`
	State        string          `json:"state"`
}

// BankTransferDetails carries everything the customer needs to pay by transfer
type BankTransferDetails struct {
	IBAN         string               `json:"iban"`
	BIC          string               `json:"bic,omitempty"`
	Beneficiary  string               `json:"beneficiary"`
	Amount       decimal.Decimal      `json:"amount"`
	Currency     string               `json:"currency"`
	Reference    string               `json:"reference"`
	Description  string               `json:"description"`
	QRPayload    string               `json:"qr_payload"`
	Instructions TransferInstructions `json:"instructions"`
}

type TransferInstructions struct {
	Title  string          `json:"title"`
	Steps  []string        `json:"steps"`
	Fields []TransferField `json:"fields"`
}

type TransferField struct {
	Label string `json:"label"`
	Value string `json:"value"`
}

// BankTransferStatus reports whether a transfer was matched to its order
type BankTransferStatus struct {
	Status     string           `json:"status"`
	Amount     *decimal.Decimal `json:"amount,omitempty"`
	ReceivedAt *time.Time       `json:"received_at,omitempty"`
}

// WebhookAck acknowledges a processed provider notification
type WebhookAck struct {
	Received bool `json:"received"`
}

func AddressEntityToJSON(a entities.Address) Address {
	return Address{
		Name:    a.Name,
		Street:  a.Street,
		City:    a.City,
		ZIP:     a.ZIP,
		Country: a.Country,
	}
}

func AddressJSONToEntity(a Address) entities.Address {
	return entities.Address{
		Name:    a.Name,
		Street:  a.Street,
		City:    a.City,
		ZIP:     a.ZIP,
		Country: a.Country,
	}
}

func ItemEntityToJSON(i entities.OrderItem) OrderItem {
	return OrderItem{
		ProductID: i.ProductID,
		Quantity:  i.Quantity,
		Price:     i.Price,
		Total:     i.Total,
	}
}

func OrderEntityToJSON(o entities.Order) Order {
	items := make([]OrderItem, 0, len(o.Items))
	for _, it := range o.Items {
		items = append(items, ItemEntityToJSON(it))
	}

	return Order{
		ID:                o.ID,
		OrderNumber:       o.OrderNumber,
		CustomerEmail:     o.CustomerEmail,
		CustomerID:        o.CustomerID,
		Status:            string(o.Status),
		PaymentStatus:     string(o.PaymentStatus),
		PaymentMethod:     string(o.PaymentMethod),
		Currency:          o.Currency,
		TotalAmount:       o.TotalAmount,
		ShippingAddress:   AddressEntityToJSON(o.ShippingAddress),
		BillingAddress:    AddressEntityToJSON(o.BillingAddress),
		ProviderPaymentID: o.ProviderPaymentID,
		PaymentReference:  o.PaymentReference,
		Notes:             o.Notes,
		Items:             items,
		CreatedAt:         o.CreatedAt,
		UpdatedAt:         o.UpdatedAt,
	}
}

func CreateOrderRequestToEntity(req CreateOrderRequest) entities.Order {
	items := make([]entities.OrderItem, 0, len(req.Items))
	for _, it := range req.Items {
		items = append(items, entities.OrderItem{
			ProductID: it.ProductID,
			Quantity:  it.Quantity,
			Price:     it.Price,
		})
	}

	return entities.Order{
		CustomerEmail:   req.CustomerEmail,
		CustomerID:      req.CustomerID,
		PaymentMethod:   entities.PaymentMethod(req.PaymentMethod),
		Currency:        req.Currency,
		TotalAmount:     req.TotalAmount,
		ShippingAddress: AddressJSONToEntity(req.ShippingAddress),
		BillingAddress:  AddressJSONToEntity(req.BillingAddress),
		Notes:           req.Notes,
		Items:           items,
	}
}

func IntentToJSON(pi provider.PaymentIntent) PaymentIntent {
	return PaymentIntent{
		ID:           pi.ID,
		CheckoutURL:  pi.CheckoutURL,
		ClientSecret: pi.ClientSecret,
		Amount:       pi.Amount,
		Currency:     pi.Currency,
		State:        pi.State,
	}
}

func TransferDetailsToJSON(d banktransfer.PaymentDetails) BankTransferDetails {
	instr := banktransfer.FormatInstructions(d)
	fields := make([]TransferField, 0, len(instr.Fields))
	for _, f := range instr.Fields {
		fields = append(fields, TransferField{Label: f.Label, Value: f.Value})
	}

	return BankTransferDetails{
		IBAN:        d.IBAN,
		BIC:         d.BIC,
		Beneficiary: d.Beneficiary,
		Amount:      d.Amount,
		Currency:    d.Currency,
		Reference:   d.Reference,
		Description: d.Description,
		QRPayload:   banktransfer.BuildQRPayload(d),
		Instructions: TransferInstructions{
			Title:  instr.Title,
			Steps:  instr.Steps,
			Fields: fields,
		},
	}
}
