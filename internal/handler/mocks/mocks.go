// Package mocks provides hand-written testify mocks for the handler
// dependencies.
package mocks

import (
	"context"

	"github.com/fbr-shop/payment-service/internal/banktransfer"
	"github.com/fbr-shop/payment-service/internal/entities"
	"github.com/fbr-shop/payment-service/internal/provider"
	"github.com/fbr-shop/payment-service/internal/service"
	"github.com/stretchr/testify/mock"
)

type MockOrderService struct {
	mock.Mock
}

func (m *MockOrderService) CreateOrder(ctx context.Context, order entities.Order) (entities.Order, error) {
	args := m.Called(ctx, order)
	return args.Get(0).(entities.Order), args.Error(1)
}

func (m *MockOrderService) GetOrderByID(ctx context.Context, orderID string) (entities.Order, error) {
	args := m.Called(ctx, orderID)
	return args.Get(0).(entities.Order), args.Error(1)
}

func (m *MockOrderService) GetOrderByNumber(ctx context.Context, orderNumber string) (entities.Order, error) {
	args := m.Called(ctx, orderNumber)
	return args.Get(0).(entities.Order), args.Error(1)
}

func (m *MockOrderService) UpdateOrder(ctx context.Context, orderID string, upd entities.OrderUpdate) (entities.Order, error) {
	args := m.Called(ctx, orderID, upd)
	return args.Get(0).(entities.Order), args.Error(1)
}

func (m *MockOrderService) CancelOrder(ctx context.Context, orderID string) (entities.Order, error) {
	args := m.Called(ctx, orderID)
	return args.Get(0).(entities.Order), args.Error(1)
}

type MockPaymentService struct {
	mock.Mock
}

func (m *MockPaymentService) CreateCardPayment(ctx context.Context, providerName, orderID string) (provider.PaymentIntent, error) {
	args := m.Called(ctx, providerName, orderID)
	return args.Get(0).(provider.PaymentIntent), args.Error(1)
}

func (m *MockPaymentService) GetCardPayment(ctx context.Context, providerName, paymentID string) (provider.PaymentIntent, error) {
	args := m.Called(ctx, providerName, paymentID)
	return args.Get(0).(provider.PaymentIntent), args.Error(1)
}

func (m *MockPaymentService) BankTransferDetails(ctx context.Context, orderID string) (banktransfer.PaymentDetails, error) {
	args := m.Called(ctx, orderID)
	return args.Get(0).(banktransfer.PaymentDetails), args.Error(1)
}

func (m *MockPaymentService) BankTransferStatus(ctx context.Context, reference string) (service.BankTransferStatus, error) {
	args := m.Called(ctx, reference)
	return args.Get(0).(service.BankTransferStatus), args.Error(1)
}

type MockReconciler struct {
	mock.Mock
}

func (m *MockReconciler) HandleEvent(ctx context.Context, prov provider.CheckoutProvider, event provider.WebhookEvent) error {
	args := m.Called(ctx, prov, event)
	return args.Error(0)
}
