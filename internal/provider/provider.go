// Package provider defines the contract shared by the card payment adapters.
package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/shopspring/decimal"
)

// PaymentIntent mirrors the provider-side authorization resource. The provider
// owns it; we hold the id and a snapshot of its state.
type PaymentIntent struct {
	ID           string
	CheckoutURL  string
	ClientSecret string
	Amount       decimal.Decimal
	Currency     string
	State        string
	Metadata     map[string]string
}

// OrderDetails carries the checkout context attached to a payment request.
type OrderDetails struct {
	OrderID      string
	Amount       decimal.Decimal
	Currency     string
	Email        string
	ItemsSummary []ItemSummary
	Shipping     AddressSummary
	Billing      AddressSummary
	Subtotal     decimal.Decimal
	ShippingCost decimal.Decimal
}

type ItemSummary struct {
	ProductID string          `json:"product_id"`
	Name      string          `json:"name,omitempty"`
	Quantity  int             `json:"quantity"`
	Price     decimal.Decimal `json:"price"`
}

type AddressSummary struct {
	Name    string `json:"name,omitempty"`
	Street  string `json:"street,omitempty"`
	City    string `json:"city,omitempty"`
	ZIP     string `json:"zip,omitempty"`
	Country string `json:"country,omitempty"`
}

// WebhookEvent is the normalized form of a provider notification, produced
// only after the signature has been verified.
type WebhookEvent struct {
	ID        string
	Type      string
	PaymentID string
	OrderID   string
	Metadata  map[string]string
}

// CheckoutProvider is the conceptual contract both card adapters implement.
type CheckoutProvider interface {
	Name() string
	// SignatureHeader names the HTTP header carrying the webhook HMAC.
	SignatureHeader() string
	CreatePayment(ctx context.Context, details OrderDetails) (PaymentIntent, error)
	GetPayment(ctx context.Context, id string) (PaymentIntent, error)
	// VerifyWebhookSignature must run over the exact raw bytes, before any
	// JSON parsing. The full header set is passed because some providers
	// carry the timestamp in a separate header. Missing headers never pass.
	VerifyWebhookSignature(rawBody []byte, header http.Header) bool
	ParseWebhook(rawBody []byte) (WebhookEvent, error)
}

// ProviderError carries the provider's HTTP status and raw error body for
// diagnostics.
type ProviderError struct {
	Provider string
	Status   int
	Body     string
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("%s: provider returned %d: %s", e.Provider, e.Status, e.Body)
}

// MinorUnits converts a decimal currency amount to integer minor units,
// rounding half up rather than truncating.
func MinorUnits(amount decimal.Decimal) int64 {
	return amount.Mul(decimal.NewFromInt(100)).Round(0).IntPart()
}

// FromMinorUnits is the single place a provider response amount becomes a
// decimal again. Callers must not convert twice.
func FromMinorUnits(minor int64) decimal.Decimal {
	return decimal.New(minor, -2)
}

// FlattenMetadata JSON-serializes the nested order context into the flat
// string map provider metadata fields require.
func FlattenMetadata(details OrderDetails) (map[string]string, error) {
	items, err := json.Marshal(details.ItemsSummary)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal items summary: %w", err)
	}
	shipping, err := json.Marshal(details.Shipping)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal shipping address: %w", err)
	}
	billing, err := json.Marshal(details.Billing)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal billing address: %w", err)
	}

	return map[string]string{
		"order_id":      details.OrderID,
		"email":         details.Email,
		"items":         string(items),
		"shipping":      string(shipping),
		"billing":       string(billing),
		"subtotal":      details.Subtotal.StringFixed(2),
		"shipping_cost": details.ShippingCost.StringFixed(2),
	}, nil
}
