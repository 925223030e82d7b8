package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/fbr-shop/payment-service/internal/banktransfer"
	"github.com/fbr-shop/payment-service/internal/entities"
	"github.com/fbr-shop/payment-service/internal/provider"

	"github.com/shopspring/decimal"
)

var ErrUnknownProvider = errors.New("unknown payment provider")

type PaymentRepo interface {
	GetOrderByID(ctx context.Context, orderID string) (entities.Order, error)
	GetOrderByPaymentReference(ctx context.Context, reference string) (entities.Order, error)
	UpdateOrder(ctx context.Context, orderID string, upd entities.OrderUpdate) error
}

// BankAccount is the merchant account customers transfer to.
type BankAccount struct {
	IBAN        string
	BIC         string
	Beneficiary string
}

type paymentService struct {
	logger    *slog.Logger
	repo      PaymentRepo
	providers map[string]provider.CheckoutProvider
	account   BankAccount
}

func NewPaymentService(logger *slog.Logger, repo PaymentRepo, account BankAccount, providers ...provider.CheckoutProvider) *paymentService {
	byName := make(map[string]provider.CheckoutProvider, len(providers))
	for _, p := range providers {
		byName[p.Name()] = p
	}
	return &paymentService{
		logger:    logger.With(slog.String("service", "payment")),
		repo:      repo,
		providers: byName,
		account:   account,
	}
}

func (s *paymentService) Provider(name string) (provider.CheckoutProvider, bool) {
	p, ok := s.providers[name]
	return p, ok
}

// CreateCardPayment opens a payment with the chosen provider for an existing
// order and records the provider's reference on it.
func (s *paymentService) CreateCardPayment(ctx context.Context, providerName, orderID string) (provider.PaymentIntent, error) {
	prov, ok := s.providers[providerName]
	if !ok {
		return provider.PaymentIntent{}, fmt.Errorf("%w: %s", ErrUnknownProvider, providerName)
	}

	order, err := s.repo.GetOrderByID(ctx, orderID)
	if err != nil {
		return provider.PaymentIntent{}, err
	}
	if order.Status == entities.OrderStatusCancelled {
		return provider.PaymentIntent{}, entities.ErrOrderCancelled
	}

	intent, err := prov.CreatePayment(ctx, orderToDetails(order))
	if err != nil {
		return provider.PaymentIntent{}, err
	}

	processing := entities.OrderStatusProcessing
	upd := entities.OrderUpdate{ProviderPaymentID: &intent.ID}
	if entities.CanTransitionOrder(order.Status, processing) {
		upd.Status = &processing
	}
	if err := s.repo.UpdateOrder(ctx, orderID, upd); err != nil {
		return provider.PaymentIntent{}, err
	}

	s.logger.InfoContext(ctx, "card payment created",
		slog.String("provider", providerName),
		slog.String("order_number", order.OrderNumber),
		slog.String("payment_id", intent.ID),
	)
	return intent, nil
}

// GetCardPayment polls the provider for the current payment state.
func (s *paymentService) GetCardPayment(ctx context.Context, providerName, paymentID string) (provider.PaymentIntent, error) {
	prov, ok := s.providers[providerName]
	if !ok {
		return provider.PaymentIntent{}, fmt.Errorf("%w: %s", ErrUnknownProvider, providerName)
	}
	return prov.GetPayment(ctx, paymentID)
}

// BankTransferDetails synthesizes transfer instructions for an order. The
// payment reference is generated once and persisted so re-querying the same
// order always yields the same value.
func (s *paymentService) BankTransferDetails(ctx context.Context, orderID string) (banktransfer.PaymentDetails, error) {
	order, err := s.repo.GetOrderByID(ctx, orderID)
	if err != nil {
		return banktransfer.PaymentDetails{}, err
	}

	reference := order.PaymentReference
	if reference == "" {
		reference = banktransfer.GenerateReference(order.ID)
		if err := s.repo.UpdateOrder(ctx, orderID, entities.OrderUpdate{PaymentReference: &reference}); err != nil {
			return banktransfer.PaymentDetails{}, err
		}
	}

	return banktransfer.PaymentDetails{
		IBAN:        s.account.IBAN,
		BIC:         s.account.BIC,
		Beneficiary: s.account.Beneficiary,
		Amount:      order.TotalAmount,
		Currency:    order.Currency,
		Reference:   reference,
		Description: "Order " + order.OrderNumber,
	}, nil
}

// BankTransferStatus reports the manual-confirmation state for a reference.
type BankTransferStatus struct {
	Status     string
	Amount     *decimal.Decimal
	ReceivedAt *time.Time
}

func (s *paymentService) BankTransferStatus(ctx context.Context, reference string) (BankTransferStatus, error) {
	order, err := s.repo.GetOrderByPaymentReference(ctx, reference)
	if err != nil {
		return BankTransferStatus{}, err
	}

	switch order.PaymentStatus {
	case entities.PaymentStatusPaid:
		amount := order.TotalAmount
		receivedAt := order.UpdatedAt
		return BankTransferStatus{Status: "received", Amount: &amount, ReceivedAt: &receivedAt}, nil
	case entities.PaymentStatusFailed, entities.PaymentStatusCancelled:
		return BankTransferStatus{Status: "failed"}, nil
	default:
		return BankTransferStatus{Status: "pending"}, nil
	}
}

func orderToDetails(order entities.Order) provider.OrderDetails {
	items := make([]provider.ItemSummary, 0, len(order.Items))
	subtotal := decimal.Zero
	for _, it := range order.Items {
		items = append(items, provider.ItemSummary{
			ProductID: it.ProductID,
			Quantity:  it.Quantity,
			Price:     it.Price,
		})
		subtotal = subtotal.Add(it.Total)
	}

	return provider.OrderDetails{
		OrderID:      order.ID,
		Amount:       order.TotalAmount,
		Currency:     order.Currency,
		Email:        order.CustomerEmail,
		ItemsSummary: items,
		Shipping:     toAddressSummary(order.ShippingAddress),
		Billing:      toAddressSummary(order.BillingAddress),
		Subtotal:     subtotal,
		ShippingCost: order.TotalAmount.Sub(subtotal),
	}
}

func toAddressSummary(a entities.Address) provider.AddressSummary {
	return provider.AddressSummary{
		Name:    a.Name,
		Street:  a.Street,
		City:    a.City,
		ZIP:     a.ZIP,
		Country: a.Country,
	}
}
