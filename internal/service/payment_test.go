package service_test

import (
	"context"
	"testing"

	"github.com/fbr-shop/payment-service/internal/entities"
	"github.com/fbr-shop/payment-service/internal/provider"
	"github.com/fbr-shop/payment-service/internal/service"
	"github.com/fbr-shop/payment-service/internal/service/mocks"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

var testAccount = service.BankAccount{
	IBAN:        "DE89370400440532013000",
	BIC:         "COBADEFFXXX",
	Beneficiary: "FBR Shop s.r.o.",
}

func TestPaymentService_CreateCardPayment(t *testing.T) {
	repo := new(mocks.MockRepo)
	prov := &mocks.MockProvider{ProviderName: "revolut"}

	order := pendingOrder()
	order.Status = entities.OrderStatusPending
	order.ProviderPaymentID = ""

	intent := provider.PaymentIntent{ID: "rev_777", CheckoutURL: "https://checkout/rev_777", State: "pending"}

	repo.On("GetOrderByID", mock.Anything, "ord-1").Return(order, nil).Once()
	prov.On("CreatePayment", mock.Anything, mock.MatchedBy(func(d provider.OrderDetails) bool {
		return d.OrderID == "ord-1" && d.Amount.Equal(order.TotalAmount) && len(d.ItemsSummary) == 1
	})).Return(intent, nil).Once()
	repo.On("UpdateOrder", mock.Anything, "ord-1", mock.MatchedBy(func(upd entities.OrderUpdate) bool {
		return upd.ProviderPaymentID != nil && *upd.ProviderPaymentID == "rev_777" &&
			upd.Status != nil && *upd.Status == entities.OrderStatusProcessing
	})).Return(nil).Once()

	svc := service.NewPaymentService(discardLogger(), repo, testAccount, prov)

	got, err := svc.CreateCardPayment(context.Background(), "revolut", "ord-1")
	require.NoError(t, err)
	assert.Equal(t, "rev_777", got.ID)
	repo.AssertExpectations(t)
	prov.AssertExpectations(t)
}

func TestPaymentService_CreateCardPayment_UnknownProvider(t *testing.T) {
	svc := service.NewPaymentService(discardLogger(), new(mocks.MockRepo), testAccount)

	_, err := svc.CreateCardPayment(context.Background(), "nope", "ord-1")
	assert.ErrorIs(t, err, service.ErrUnknownProvider)
}

func TestPaymentService_CreateCardPayment_CancelledOrder(t *testing.T) {
	repo := new(mocks.MockRepo)
	prov := &mocks.MockProvider{ProviderName: "revolut"}

	cancelled := pendingOrder()
	cancelled.Status = entities.OrderStatusCancelled
	repo.On("GetOrderByID", mock.Anything, "ord-1").Return(cancelled, nil).Once()

	svc := service.NewPaymentService(discardLogger(), repo, testAccount, prov)

	_, err := svc.CreateCardPayment(context.Background(), "revolut", "ord-1")
	assert.ErrorIs(t, err, entities.ErrOrderCancelled)
	prov.AssertNotCalled(t, "CreatePayment", mock.Anything, mock.Anything)
}

func TestPaymentService_BankTransferDetails(t *testing.T) {
	t.Run("first request persists the reference", func(t *testing.T) {
		repo := new(mocks.MockRepo)

		order := pendingOrder()
		order.PaymentMethod = entities.PaymentMethodBankTransfer
		order.PaymentReference = ""

		var savedRef string
		repo.On("GetOrderByID", mock.Anything, "ord-1").Return(order, nil).Once()
		repo.On("UpdateOrder", mock.Anything, "ord-1", mock.MatchedBy(func(upd entities.OrderUpdate) bool {
			if upd.PaymentReference == nil {
				return false
			}
			savedRef = *upd.PaymentReference
			return true
		})).Return(nil).Once()

		svc := service.NewPaymentService(discardLogger(), repo, testAccount)

		details, err := svc.BankTransferDetails(context.Background(), "ord-1")
		require.NoError(t, err)
		assert.Equal(t, savedRef, details.Reference)
		assert.Len(t, details.Reference, 10)
		assert.Equal(t, testAccount.IBAN, details.IBAN)
		assert.Equal(t, "Order FBR-1-AAAA", details.Description)
		assert.True(t, details.Amount.Equal(order.TotalAmount))
	})

	t.Run("re-query returns the stored reference unchanged", func(t *testing.T) {
		repo := new(mocks.MockRepo)

		order := pendingOrder()
		order.PaymentReference = "4242123456"
		repo.On("GetOrderByID", mock.Anything, "ord-1").Return(order, nil).Once()

		svc := service.NewPaymentService(discardLogger(), repo, testAccount)

		details, err := svc.BankTransferDetails(context.Background(), "ord-1")
		require.NoError(t, err)
		assert.Equal(t, "4242123456", details.Reference)
		repo.AssertNotCalled(t, "UpdateOrder", mock.Anything, mock.Anything, mock.Anything)
	})
}

func TestPaymentService_BankTransferStatus(t *testing.T) {
	testCases := []struct {
		name       string
		payment    entities.PaymentStatus
		wantStatus string
		wantAmount bool
	}{
		{"pending", entities.PaymentStatusPending, "pending", false},
		{"received", entities.PaymentStatusPaid, "received", true},
		{"failed", entities.PaymentStatusFailed, "failed", false},
		{"cancelled maps to failed", entities.PaymentStatusCancelled, "failed", false},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			repo := new(mocks.MockRepo)

			order := pendingOrder()
			order.PaymentStatus = tc.payment
			order.TotalAmount = decimal.RequireFromString("49.99")
			repo.On("GetOrderByPaymentReference", mock.Anything, "4242123456").Return(order, nil).Once()

			svc := service.NewPaymentService(discardLogger(), repo, testAccount)

			status, err := svc.BankTransferStatus(context.Background(), "4242123456")
			require.NoError(t, err)
			assert.Equal(t, tc.wantStatus, status.Status)
			if tc.wantAmount {
				require.NotNil(t, status.Amount)
				assert.Equal(t, "49.99", status.Amount.StringFixed(2))
				assert.NotNil(t, status.ReceivedAt)
			} else {
				assert.Nil(t, status.Amount)
			}
		})
	}
}
