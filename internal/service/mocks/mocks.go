// Package mocks holds testify mocks for the service-layer dependencies.
package mocks

import (
	"context"
	"net/http"

	"github.com/fbr-shop/payment-service/internal/entities"
	"github.com/fbr-shop/payment-service/internal/provider"
	"github.com/fbr-shop/payment-service/pkg/trm"

	"github.com/stretchr/testify/mock"
)

type MockRepo struct {
	mock.Mock
}

func (m *MockRepo) CreateOrder(ctx context.Context, o entities.Order) error {
	return m.Called(ctx, o).Error(0)
}

func (m *MockRepo) InsertItems(ctx context.Context, orderID string, items []entities.OrderItem) error {
	return m.Called(ctx, orderID, items).Error(0)
}

func (m *MockRepo) GetOrderByID(ctx context.Context, orderID string) (entities.Order, error) {
	args := m.Called(ctx, orderID)
	return args.Get(0).(entities.Order), args.Error(1)
}

func (m *MockRepo) GetOrderByNumber(ctx context.Context, orderNumber string) (entities.Order, error) {
	args := m.Called(ctx, orderNumber)
	return args.Get(0).(entities.Order), args.Error(1)
}

func (m *MockRepo) GetOrderByProviderPaymentID(ctx context.Context, providerPaymentID string) (entities.Order, error) {
	args := m.Called(ctx, providerPaymentID)
	return args.Get(0).(entities.Order), args.Error(1)
}

func (m *MockRepo) GetOrderByPaymentReference(ctx context.Context, reference string) (entities.Order, error) {
	args := m.Called(ctx, reference)
	return args.Get(0).(entities.Order), args.Error(1)
}

func (m *MockRepo) UpdateOrder(ctx context.Context, orderID string, upd entities.OrderUpdate) error {
	return m.Called(ctx, orderID, upd).Error(0)
}

func (m *MockRepo) LatestOrders(ctx context.Context, count int) ([]entities.Order, error) {
	args := m.Called(ctx, count)
	orders, _ := args.Get(0).([]entities.Order)
	return orders, args.Error(1)
}

func (m *MockRepo) RecordPaymentEvent(ctx context.Context, providerName, eventID, paymentID string, status entities.PaymentStatus) (bool, error) {
	args := m.Called(ctx, providerName, eventID, paymentID, status)
	return args.Bool(0), args.Error(1)
}

func (m *MockRepo) DecrementInventory(ctx context.Context, productID string, quantity int) error {
	return m.Called(ctx, productID, quantity).Error(0)
}

func (m *MockRepo) ReserveInventory(ctx context.Context, productID string, quantity int) error {
	return m.Called(ctx, productID, quantity).Error(0)
}

func (m *MockRepo) ReleaseInventory(ctx context.Context, productID string, quantity int) error {
	return m.Called(ctx, productID, quantity).Error(0)
}

type MockNotifier struct {
	mock.Mock
}

func (m *MockNotifier) Notify(ctx context.Context, event string, order entities.Order) {
	m.Called(ctx, event, order)
}

type MockCache struct {
	mock.Mock
}

func (m *MockCache) Get(key string) ([]byte, bool) {
	args := m.Called(key)
	data, _ := args.Get(0).([]byte)
	return data, args.Bool(1)
}

func (m *MockCache) Set(key string, value []byte) {
	m.Called(key, value)
}

func (m *MockCache) Delete(key string) {
	m.Called(key)
}

type MockProvider struct {
	mock.Mock
	ProviderName string
}

func (m *MockProvider) Name() string {
	if m.ProviderName != "" {
		return m.ProviderName
	}
	return "mock"
}

func (m *MockProvider) SignatureHeader() string {
	return "X-Test-Signature"
}

func (m *MockProvider) CreatePayment(ctx context.Context, details provider.OrderDetails) (provider.PaymentIntent, error) {
	args := m.Called(ctx, details)
	return args.Get(0).(provider.PaymentIntent), args.Error(1)
}

func (m *MockProvider) GetPayment(ctx context.Context, id string) (provider.PaymentIntent, error) {
	args := m.Called(ctx, id)
	return args.Get(0).(provider.PaymentIntent), args.Error(1)
}

func (m *MockProvider) VerifyWebhookSignature(rawBody []byte, header http.Header) bool {
	return m.Called(rawBody, header).Bool(0)
}

func (m *MockProvider) ParseWebhook(rawBody []byte) (provider.WebhookEvent, error) {
	args := m.Called(rawBody)
	return args.Get(0).(provider.WebhookEvent), args.Error(1)
}

// TxManagerStub runs callbacks without a real transaction.
type TxManagerStub struct {
	Err error
}

func (s *TxManagerStub) BeginTx(ctx context.Context) (context.Context, trm.Transaction, error) {
	return ctx, nopTx{}, s.Err
}

func (s *TxManagerStub) Do(ctx context.Context, callback func(ctx context.Context) error) error {
	if s.Err != nil {
		return s.Err
	}
	return callback(ctx)
}

type nopTx struct{}

func (nopTx) Commit() error   { return nil }
func (nopTx) Rollback() error { return nil }
