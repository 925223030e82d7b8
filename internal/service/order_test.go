package service_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"regexp"
	"sync"
	"testing"

	"github.com/fbr-shop/payment-service/internal/entities"
	"github.com/fbr-shop/payment-service/internal/service"
	"github.com/fbr-shop/payment-service/internal/service/mocks"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func validCheckout() entities.Order {
	return entities.Order{
		CustomerEmail: "customer@example.com",
		Currency:      "EUR",
		PaymentMethod: entities.PaymentMethodBankTransfer,
		TotalAmount:   decimal.RequireFromString("20.00"),
		Items: []entities.OrderItem{
			{ProductID: "p1", Quantity: 2, Price: decimal.RequireFromString("10.00")},
		},
	}
}

func TestOrderService_CreateOrder(t *testing.T) {
	dbError := errors.New("db error")

	testCases := []struct {
		name         string
		order        entities.Order
		mockBehavior func(repo *mocks.MockRepo, notifier *mocks.MockNotifier)
		wantErr      error
	}{
		{
			name:  "OK",
			order: validCheckout(),
			mockBehavior: func(repo *mocks.MockRepo, notifier *mocks.MockNotifier) {
				repo.On("CreateOrder", mock.Anything, mock.Anything).Return(nil)
				repo.On("InsertItems", mock.Anything, mock.Anything, mock.Anything).Return(nil)
				repo.On("DecrementInventory", mock.Anything, "p1", 2).Return(nil)
				notifier.On("Notify", mock.Anything, "order.created", mock.Anything).Return()
			},
		},
		{
			name: "missing email",
			order: func() entities.Order {
				o := validCheckout()
				o.CustomerEmail = ""
				return o
			}(),
			mockBehavior: func(*mocks.MockRepo, *mocks.MockNotifier) {},
			wantErr:      entities.ErrInvalidOrder,
		},
		{
			name: "no items",
			order: func() entities.Order {
				o := validCheckout()
				o.Items = nil
				return o
			}(),
			mockBehavior: func(*mocks.MockRepo, *mocks.MockNotifier) {},
			wantErr:      entities.ErrInvalidOrder,
		},
		{
			name: "total does not match items",
			order: func() entities.Order {
				o := validCheckout()
				o.TotalAmount = decimal.RequireFromString("19.99")
				return o
			}(),
			mockBehavior: func(*mocks.MockRepo, *mocks.MockNotifier) {},
			wantErr:      entities.ErrInvalidOrder,
		},
		{
			name:  "order insert fails",
			order: validCheckout(),
			mockBehavior: func(repo *mocks.MockRepo, notifier *mocks.MockNotifier) {
				repo.On("CreateOrder", mock.Anything, mock.Anything).Return(dbError)
			},
			wantErr: dbError,
		},
		{
			name:  "item insert fails, order rolled back, nothing published",
			order: validCheckout(),
			mockBehavior: func(repo *mocks.MockRepo, notifier *mocks.MockNotifier) {
				repo.On("CreateOrder", mock.Anything, mock.Anything).Return(nil)
				repo.On("InsertItems", mock.Anything, mock.Anything, mock.Anything).Return(dbError)
			},
			wantErr: dbError,
		},
		{
			name:  "inventory failure does not fail the order",
			order: validCheckout(),
			mockBehavior: func(repo *mocks.MockRepo, notifier *mocks.MockNotifier) {
				repo.On("CreateOrder", mock.Anything, mock.Anything).Return(nil)
				repo.On("InsertItems", mock.Anything, mock.Anything, mock.Anything).Return(nil)
				repo.On("DecrementInventory", mock.Anything, "p1", 2).Return(errors.New("stock gone"))
				notifier.On("Notify", mock.Anything, "order.created", mock.Anything).Return()
			},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			repo := new(mocks.MockRepo)
			notifier := new(mocks.MockNotifier)
			cache := new(mocks.MockCache)
			tc.mockBehavior(repo, notifier)

			svc := service.NewOrderService(discardLogger(), &mocks.TxManagerStub{}, repo, notifier, cache)

			created, err := svc.CreateOrder(context.Background(), tc.order)
			if tc.wantErr != nil {
				require.ErrorIs(t, err, tc.wantErr)
				return
			}
			require.NoError(t, err)

			assert.Regexp(t, regexp.MustCompile(`^FBR-\d+-[A-Z0-9]{4}$`), created.OrderNumber)
			assert.Equal(t, entities.OrderStatusPending, created.Status)
			assert.Equal(t, entities.PaymentStatusPending, created.PaymentStatus)
			assert.True(t, created.TotalAmount.Equal(created.ItemsTotal()))
			repo.AssertExpectations(t)
			notifier.AssertExpectations(t)
		})
	}
}

func TestGenerateOrderNumber_ConcurrentUniqueness(t *testing.T) {
	const n = 500

	var mu sync.Mutex
	seen := make(map[string]struct{}, n)

	var g errgroup.Group
	for i := 0; i < n; i++ {
		g.Go(func() error {
			num := service.GenerateOrderNumber()
			mu.Lock()
			seen[num] = struct{}{}
			mu.Unlock()
			return nil
		})
	}
	require.NoError(t, g.Wait())

	assert.Len(t, seen, n, "order numbers must be distinct")
	for num := range seen {
		assert.Regexp(t, `^FBR-\d+-[A-Z0-9]{4}$`, num)
	}
}

func TestOrderService_GetOrderByID(t *testing.T) {
	validOrder := entities.Order{ID: "ord-1", OrderNumber: "FBR-1-AAAA"}
	validData, err := validOrder.Marshal()
	require.NoError(t, err)

	testCases := []struct {
		name         string
		mockBehavior func(repo *mocks.MockRepo, cache *mocks.MockCache)
		wantErr      error
	}{
		{
			name: "from cache",
			mockBehavior: func(repo *mocks.MockRepo, cache *mocks.MockCache) {
				cache.On("Get", "ord-1").Return(validData, true).Once()
			},
		},
		{
			name: "from repo, cached after",
			mockBehavior: func(repo *mocks.MockRepo, cache *mocks.MockCache) {
				cache.On("Get", "ord-1").Return(nil, false).Once()
				repo.On("GetOrderByID", mock.Anything, "ord-1").Return(validOrder, nil).Once()
				cache.On("Set", "ord-1", validData).Return().Once()
			},
		},
		{
			name: "not found is not retried",
			mockBehavior: func(repo *mocks.MockRepo, cache *mocks.MockCache) {
				cache.On("Get", "ord-1").Return(nil, false).Once()
				repo.On("GetOrderByID", mock.Anything, "ord-1").
					Return(entities.Order{}, entities.ErrOrderNotFound).Once()
			},
			wantErr: entities.ErrOrderNotFound,
		},
		{
			name: "transient error retried",
			mockBehavior: func(repo *mocks.MockRepo, cache *mocks.MockCache) {
				cache.On("Get", "ord-1").Return(nil, false).Once()
				repo.On("GetOrderByID", mock.Anything, "ord-1").
					Return(entities.Order{}, errors.New("connection reset")).Once()
				repo.On("GetOrderByID", mock.Anything, "ord-1").Return(validOrder, nil).Once()
				cache.On("Set", "ord-1", validData).Return().Once()
			},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			repo := new(mocks.MockRepo)
			cache := new(mocks.MockCache)
			tc.mockBehavior(repo, cache)

			svc := service.NewOrderService(discardLogger(), &mocks.TxManagerStub{}, repo, new(mocks.MockNotifier), cache)

			got, err := svc.GetOrderByID(context.Background(), "ord-1")
			if tc.wantErr != nil {
				require.ErrorIs(t, err, tc.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, validOrder.OrderNumber, got.OrderNumber)
			repo.AssertExpectations(t)
			cache.AssertExpectations(t)
		})
	}
}

func TestOrderService_GetOrderByNumber(t *testing.T) {
	validOrder := entities.Order{ID: "ord-1", OrderNumber: "FBR-1-AAAA"}
	validData, err := validOrder.Marshal()
	require.NoError(t, err)

	repo := new(mocks.MockRepo)
	cache := new(mocks.MockCache)
	repo.On("GetOrderByNumber", mock.Anything, "FBR-1-AAAA").Return(validOrder, nil).Once()
	cache.On("Set", "ord-1", validData).Return().Once()

	svc := service.NewOrderService(discardLogger(), &mocks.TxManagerStub{}, repo, new(mocks.MockNotifier), cache)

	got, err := svc.GetOrderByNumber(context.Background(), "FBR-1-AAAA")
	require.NoError(t, err)
	assert.Equal(t, "ord-1", got.ID)
	repo.AssertExpectations(t)
	cache.AssertExpectations(t)
}

func TestOrderService_CancelOrder(t *testing.T) {
	t.Run("soft cancel releases authorised hold", func(t *testing.T) {
		repo := new(mocks.MockRepo)
		notifier := new(mocks.MockNotifier)
		cache := new(mocks.MockCache)

		order := entities.Order{
			ID:            "ord-1",
			OrderNumber:   "FBR-1-AAAA",
			Status:        entities.OrderStatusAuthorised,
			PaymentStatus: entities.PaymentStatusAuthorised,
			Items: []entities.OrderItem{
				{ProductID: "p1", Quantity: 3},
			},
		}
		cancelled := order
		cancelled.Status = entities.OrderStatusCancelled
		cancelled.PaymentStatus = entities.PaymentStatusCancelled

		repo.On("GetOrderByID", mock.Anything, "ord-1").Return(order, nil).Once()
		repo.On("UpdateOrder", mock.Anything, "ord-1", mock.MatchedBy(func(upd entities.OrderUpdate) bool {
			return upd.Status != nil && *upd.Status == entities.OrderStatusCancelled
		})).Return(nil).Once()
		repo.On("ReleaseInventory", mock.Anything, "p1", 3).Return(nil).Once()
		repo.On("GetOrderByID", mock.Anything, "ord-1").Return(cancelled, nil).Once()
		cache.On("Set", "ord-1", mock.Anything).Return()
		notifier.On("Notify", mock.Anything, "order.cancelled", mock.Anything).Return()

		svc := service.NewOrderService(discardLogger(), &mocks.TxManagerStub{}, repo, notifier, cache)

		got, err := svc.CancelOrder(context.Background(), "ord-1")
		require.NoError(t, err)
		assert.Equal(t, entities.OrderStatusCancelled, got.Status)
		repo.AssertExpectations(t)
	})

	t.Run("cancelling twice fails", func(t *testing.T) {
		repo := new(mocks.MockRepo)
		repo.On("GetOrderByID", mock.Anything, "ord-1").
			Return(entities.Order{ID: "ord-1", Status: entities.OrderStatusCancelled}, nil).Once()

		svc := service.NewOrderService(discardLogger(), &mocks.TxManagerStub{}, repo, new(mocks.MockNotifier), new(mocks.MockCache))

		_, err := svc.CancelOrder(context.Background(), "ord-1")
		assert.ErrorIs(t, err, entities.ErrOrderCancelled)
	})
}

func TestOrderService_UpdateOrder_ConfirmsBankTransfer(t *testing.T) {
	repo := new(mocks.MockRepo)
	cache := new(mocks.MockCache)

	order := entities.Order{
		ID:               "ord-1",
		Status:           entities.OrderStatusPending,
		PaymentStatus:    entities.PaymentStatusPending,
		PaymentMethod:    entities.PaymentMethodBankTransfer,
		PaymentReference: "4242123456",
	}
	confirmed := order
	confirmed.Status = entities.OrderStatusPaid
	confirmed.PaymentStatus = entities.PaymentStatusPaid

	repo.On("GetOrderByID", mock.Anything, "ord-1").Return(order, nil).Once()
	repo.On("UpdateOrder", mock.Anything, "ord-1", mock.MatchedBy(func(upd entities.OrderUpdate) bool {
		return upd.PaymentStatus != nil && *upd.PaymentStatus == entities.PaymentStatusPaid
	})).Return(nil).Once()
	repo.On("GetOrderByID", mock.Anything, "ord-1").Return(confirmed, nil).Once()
	cache.On("Set", "ord-1", mock.Anything).Return()

	svc := service.NewOrderService(discardLogger(), &mocks.TxManagerStub{}, repo, new(mocks.MockNotifier), cache)

	paid := entities.PaymentStatusPaid
	paidOrder := entities.OrderStatusPaid
	got, err := svc.UpdateOrder(context.Background(), "ord-1", entities.OrderUpdate{Status: &paidOrder, PaymentStatus: &paid})
	require.NoError(t, err)
	assert.Equal(t, entities.PaymentStatusPaid, got.PaymentStatus)
	repo.AssertExpectations(t)
}

func TestOrderService_UpdateOrder_RejectsPaymentRegression(t *testing.T) {
	repo := new(mocks.MockRepo)
	repo.On("GetOrderByID", mock.Anything, "ord-1").
		Return(entities.Order{ID: "ord-1", PaymentStatus: entities.PaymentStatusPaid}, nil).Once()

	svc := service.NewOrderService(discardLogger(), &mocks.TxManagerStub{}, repo, new(mocks.MockNotifier), new(mocks.MockCache))

	pending := entities.PaymentStatusPending
	_, err := svc.UpdateOrder(context.Background(), "ord-1", entities.OrderUpdate{PaymentStatus: &pending})
	assert.ErrorIs(t, err, entities.ErrInvalidOrder)
	repo.AssertNotCalled(t, "UpdateOrder", mock.Anything, mock.Anything, mock.Anything)
}

func TestOrderService_UpdateOrder_RejectsRegression(t *testing.T) {
	repo := new(mocks.MockRepo)
	repo.On("GetOrderByID", mock.Anything, "ord-1").
		Return(entities.Order{ID: "ord-1", Status: entities.OrderStatusPaid}, nil).Once()

	svc := service.NewOrderService(discardLogger(), &mocks.TxManagerStub{}, repo, new(mocks.MockNotifier), new(mocks.MockCache))

	pending := entities.OrderStatusPending
	_, err := svc.UpdateOrder(context.Background(), "ord-1", entities.OrderUpdate{Status: &pending})
	assert.ErrorIs(t, err, entities.ErrInvalidOrder)
}
