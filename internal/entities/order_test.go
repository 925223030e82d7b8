package entities_test

import (
	"testing"

	"github.com/fbr-shop/payment-service/internal/entities"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOrder_ItemsTotal(t *testing.T) {
	order := entities.Order{
		Items: []entities.OrderItem{
			{ProductID: "p1", Quantity: 2, Price: decimal.RequireFromString("10.00")},
			{ProductID: "p2", Quantity: 1, Price: decimal.RequireFromString("4.99")},
			// line total supplied by the caller must be ignored and recomputed
			{ProductID: "p3", Quantity: 3, Price: decimal.RequireFromString("1.50"), Total: decimal.RequireFromString("999")},
		},
	}

	sum := order.ItemsTotal()

	assert.True(t, sum.Equal(decimal.RequireFromString("29.49")), "got %s", sum)
	require.Len(t, order.Items, 3)
	assert.True(t, order.Items[0].Total.Equal(decimal.RequireFromString("20.00")))
	assert.True(t, order.Items[2].Total.Equal(decimal.RequireFromString("4.50")))
}

func TestCanTransitionPayment(t *testing.T) {
	testCases := []struct {
		name string
		from entities.PaymentStatus
		to   entities.PaymentStatus
		want bool
	}{
		{"pending to paid", entities.PaymentStatusPending, entities.PaymentStatusPaid, true},
		{"pending to authorised", entities.PaymentStatusPending, entities.PaymentStatusAuthorised, true},
		{"authorised to paid (capture)", entities.PaymentStatusAuthorised, entities.PaymentStatusPaid, true},
		{"authorised to cancelled", entities.PaymentStatusAuthorised, entities.PaymentStatusCancelled, true},
		{"paid to authorised (stale webhook)", entities.PaymentStatusPaid, entities.PaymentStatusAuthorised, false},
		{"paid to paid (duplicate)", entities.PaymentStatusPaid, entities.PaymentStatusPaid, false},
		{"paid to failed", entities.PaymentStatusPaid, entities.PaymentStatusFailed, false},
		{"paid to cancelled", entities.PaymentStatusPaid, entities.PaymentStatusCancelled, false},
		{"paid to refunded", entities.PaymentStatusPaid, entities.PaymentStatusRefunded, true},
		{"cancelled to paid", entities.PaymentStatusCancelled, entities.PaymentStatusPaid, false},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, entities.CanTransitionPayment(tc.from, tc.to))
		})
	}
}

func TestCanTransitionOrder(t *testing.T) {
	testCases := []struct {
		name string
		from entities.OrderStatus
		to   entities.OrderStatus
		want bool
	}{
		{"pending to processing", entities.OrderStatusPending, entities.OrderStatusProcessing, true},
		{"processing to paid", entities.OrderStatusProcessing, entities.OrderStatusPaid, true},
		{"paid to shipped", entities.OrderStatusPaid, entities.OrderStatusShipped, true},
		{"shipped to delivered", entities.OrderStatusShipped, entities.OrderStatusDelivered, true},
		{"paid to authorised (regression)", entities.OrderStatusPaid, entities.OrderStatusAuthorised, false},
		{"cancelled is terminal", entities.OrderStatusCancelled, entities.OrderStatusPaid, false},
		{"delivered is terminal", entities.OrderStatusDelivered, entities.OrderStatusShipped, false},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, entities.CanTransitionOrder(tc.from, tc.to))
		})
	}
}

func TestOrder_MarshalRoundTrip(t *testing.T) {
	order := entities.Order{
		ID:          "c2a8f9e0-0000-0000-0000-000000000001",
		OrderNumber: "FBR-1700000000000-A1B2",
		TotalAmount: decimal.RequireFromString("49.99"),
		Items: []entities.OrderItem{
			{ProductID: "p1", Quantity: 1, Price: decimal.RequireFromString("49.99"), Total: decimal.RequireFromString("49.99")},
		},
	}

	data, err := order.Marshal()
	require.NoError(t, err)

	var got entities.Order
	require.NoError(t, got.Unmarshal(data))
	assert.Equal(t, order.OrderNumber, got.OrderNumber)
	assert.True(t, got.TotalAmount.Equal(order.TotalAmount))

	assert.ErrorIs(t, got.Unmarshal([]byte("broken")), entities.ErrInvalidOrder)
}
