package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/fbr-shop/payment-service/internal/entities"
	"github.com/fbr-shop/payment-service/internal/provider"
	"github.com/fbr-shop/payment-service/pkg/trm"

	"github.com/google/uuid"
)

type ReconcileRepo interface {
	CreateOrder(ctx context.Context, o entities.Order) error
	InsertItems(ctx context.Context, orderID string, items []entities.OrderItem) error
	GetOrderByID(ctx context.Context, orderID string) (entities.Order, error)
	GetOrderByProviderPaymentID(ctx context.Context, providerPaymentID string) (entities.Order, error)
	UpdateOrder(ctx context.Context, orderID string, upd entities.OrderUpdate) error
	RecordPaymentEvent(ctx context.Context, providerName, eventID, paymentID string, status entities.PaymentStatus) (bool, error)

	DecrementInventory(ctx context.Context, productID string, quantity int) error
	ReserveInventory(ctx context.Context, productID string, quantity int) error
	ReleaseInventory(ctx context.Context, productID string, quantity int) error
}

// eventTargets maps each provider's event vocabulary onto the internal
// payment status. Types missing here are acknowledged and ignored so the
// provider does not retry them forever.
var eventTargets = map[string]entities.PaymentStatus{
	// hosted checkout (merchant orders API)
	"ORDER_COMPLETED":        entities.PaymentStatusPaid,
	"ORDER_AUTHORISED":       entities.PaymentStatusAuthorised,
	"ORDER_PAYMENT_FAILED":   entities.PaymentStatusFailed,
	"ORDER_PAYMENT_DECLINED": entities.PaymentStatusFailed,
	"ORDER_CANCELLED":        entities.PaymentStatusCancelled,

	// payment intents API
	"payment_intent.succeeded":                 entities.PaymentStatusPaid,
	"payment_intent.amount_capturable_updated": entities.PaymentStatusAuthorised,
	"payment_intent.payment_failed":            entities.PaymentStatusFailed,
	"payment_intent.canceled":                  entities.PaymentStatusCancelled,
}

var paymentToOrderStatus = map[entities.PaymentStatus]entities.OrderStatus{
	entities.PaymentStatusPaid:       entities.OrderStatusPaid,
	entities.PaymentStatusAuthorised: entities.OrderStatusAuthorised,
	entities.PaymentStatusFailed:     entities.OrderStatusFailed,
	entities.PaymentStatusCancelled:  entities.OrderStatusCancelled,
}

var notificationEvents = map[entities.PaymentStatus]string{
	entities.PaymentStatusPaid:      "order.paid",
	entities.PaymentStatusFailed:    "order.payment_failed",
	entities.PaymentStatusCancelled: "order.cancelled",
}

type reconcileService struct {
	logger    *slog.Logger
	txManager trm.Manager
	repo      ReconcileRepo
	notifier  Notifier
	cache     Cache
}

func NewReconcileService(logger *slog.Logger, txManager trm.Manager, repo ReconcileRepo, notifier Notifier, cache Cache) *reconcileService {
	return &reconcileService{
		logger:    logger.With(slog.String("service", "reconcile")),
		txManager: txManager,
		repo:      repo,
		notifier:  notifier,
		cache:     cache,
	}
}

// HandleEvent applies one verified webhook event to the order state machine.
// Redeliveries are no-ops keyed on (provider, payment id, resulting status);
// stale events for an already settled order are no-ops too. The dedupe record
// commits in the same transaction as the state change, so a failed attempt
// leaves no record behind and the provider's redelivery starts clean. A
// returned error makes the webhook endpoint answer 500 so the provider
// redelivers.
func (s *reconcileService) HandleEvent(ctx context.Context, prov provider.CheckoutProvider, event provider.WebhookEvent) error {
	log := s.logger.With(
		slog.String("provider", prov.Name()),
		slog.String("event_type", event.Type),
		slog.String("payment_id", event.PaymentID),
	)

	target, known := eventTargets[event.Type]
	if !known {
		log.InfoContext(ctx, "ignoring unrecognized webhook event")
		return nil
	}

	order, err := s.findOrder(ctx, event)
	if errors.Is(err, entities.ErrOrderNotFound) {
		if target != entities.PaymentStatusPaid && target != entities.PaymentStatusAuthorised {
			log.WarnContext(ctx, "webhook for unknown order, nothing to do")
			return nil
		}
		return s.createFromProvider(ctx, prov, event, target)
	}
	if err != nil {
		return err
	}

	if !entities.CanTransitionPayment(order.PaymentStatus, target) {
		log.InfoContext(ctx, "stale webhook event, keeping current status",
			slog.String("current", string(order.PaymentStatus)),
			slog.String("target", string(target)),
		)
		return nil
	}

	upd := entities.OrderUpdate{PaymentStatus: &target}
	if orderStatus, ok := paymentToOrderStatus[target]; ok && entities.CanTransitionOrder(order.Status, orderStatus) {
		upd.Status = &orderStatus
	}

	var applied bool
	err = s.txManager.Do(ctx, func(ctx context.Context) error {
		var err error
		applied, err = s.repo.RecordPaymentEvent(ctx, prov.Name(), event.ID, event.PaymentID, target)
		if err != nil {
			return err
		}
		if !applied {
			return nil
		}
		return s.repo.UpdateOrder(ctx, order.ID, upd)
	})
	if err != nil {
		return err
	}
	if !applied {
		log.DebugContext(ctx, "webhook event already processed")
		return nil
	}

	// drop the stale cached copy so reads see the settled status
	s.cache.Delete(order.ID)

	s.applyInventory(ctx, order, order.PaymentStatus, target)

	if name, ok := notificationEvents[target]; ok {
		order.PaymentStatus = target
		s.notifier.Notify(ctx, name, order)
	}

	log.InfoContext(ctx, "order reconciled",
		slog.String("order_number", order.OrderNumber),
		slog.String("payment_status", string(target)),
	)
	return nil
}

func (s *reconcileService) findOrder(ctx context.Context, event provider.WebhookEvent) (entities.Order, error) {
	order, err := s.repo.GetOrderByProviderPaymentID(ctx, event.PaymentID)
	if err == nil || !errors.Is(err, entities.ErrOrderNotFound) {
		return order, err
	}
	if event.OrderID == "" {
		return entities.Order{}, entities.ErrOrderNotFound
	}
	return s.repo.GetOrderByID(ctx, event.OrderID)
}

// applyInventory performs the stock side effect of a payment transition.
// Stock was already decremented when the order was created, so only
// reservations move here. Failures are logged, never fatal.
func (s *reconcileService) applyInventory(ctx context.Context, order entities.Order, prior, target entities.PaymentStatus) {
	var adjust func(ctx context.Context, productID string, quantity int) error
	switch {
	case target == entities.PaymentStatusAuthorised:
		adjust = s.repo.ReserveInventory
	case prior == entities.PaymentStatusAuthorised:
		// capture, failure or cancellation all end the hold
		adjust = s.repo.ReleaseInventory
	default:
		return
	}

	for _, it := range order.Items {
		if err := adjust(ctx, it.ProductID, it.Quantity); err != nil {
			s.logger.ErrorContext(ctx, "failed to adjust reservation",
				slog.String("order_number", order.OrderNumber),
				slog.String("product_id", it.ProductID),
				slog.Any("error", err),
			)
		}
	}
}

// createFromProvider handles a webhook arriving before the storefront created
// the order. The payment is fetched from the provider to corroborate the
// webhook claim, and the order is rebuilt from the metadata that round-trips
// through the payment intent.
func (s *reconcileService) createFromProvider(ctx context.Context, prov provider.CheckoutProvider, event provider.WebhookEvent, target entities.PaymentStatus) error {
	intent, err := prov.GetPayment(ctx, event.PaymentID)
	if err != nil {
		return fmt.Errorf("failed to corroborate webhook with provider: %w", err)
	}

	meta := intent.Metadata
	if len(meta) == 0 {
		meta = event.Metadata
	}

	order, err := orderFromMetadata(event, intent, meta, target)
	if err != nil {
		s.logger.WarnContext(ctx, "cannot rebuild order from payment metadata",
			slog.String("payment_id", event.PaymentID),
			slog.Any("error", err),
		)
		return nil
	}

	var applied bool
	err = s.txManager.Do(ctx, func(ctx context.Context) error {
		var err error
		applied, err = s.repo.RecordPaymentEvent(ctx, prov.Name(), event.ID, event.PaymentID, target)
		if err != nil {
			return err
		}
		if !applied {
			return nil
		}
		if err := s.repo.CreateOrder(ctx, order); err != nil {
			return fmt.Errorf("failed to create order: %w", err)
		}
		if err := s.repo.InsertItems(ctx, order.ID, order.Items); err != nil {
			// rolls the order and the dedupe record back so the provider
			// retry starts clean
			return fmt.Errorf("failed to insert items: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}
	if !applied {
		s.logger.DebugContext(ctx, "webhook event already processed",
			slog.String("payment_id", event.PaymentID))
		return nil
	}

	for _, it := range order.Items {
		var invErr error
		if target == entities.PaymentStatusAuthorised {
			invErr = s.repo.ReserveInventory(ctx, it.ProductID, it.Quantity)
		} else {
			invErr = s.repo.DecrementInventory(ctx, it.ProductID, it.Quantity)
		}
		if invErr != nil {
			s.logger.ErrorContext(ctx, "failed to adjust inventory",
				slog.String("order_number", order.OrderNumber),
				slog.String("product_id", it.ProductID),
				slog.Any("error", invErr),
			)
		}
	}

	if name, ok := notificationEvents[target]; ok {
		s.notifier.Notify(ctx, name, order)
	}

	s.logger.InfoContext(ctx, "order created from webhook",
		slog.String("provider", prov.Name()),
		slog.String("order_number", order.OrderNumber),
		slog.String("payment_status", string(target)),
	)
	return nil
}

func orderFromMetadata(event provider.WebhookEvent, intent provider.PaymentIntent, meta map[string]string, target entities.PaymentStatus) (entities.Order, error) {
	if meta["email"] == "" {
		return entities.Order{}, fmt.Errorf("%w: metadata has no customer email", entities.ErrInvalidOrder)
	}

	var summaries []provider.ItemSummary
	if err := json.Unmarshal([]byte(meta["items"]), &summaries); err != nil {
		return entities.Order{}, fmt.Errorf("%w: bad items metadata: %v", entities.ErrInvalidOrder, err)
	}
	if len(summaries) == 0 {
		return entities.Order{}, fmt.Errorf("%w: metadata has no items", entities.ErrInvalidOrder)
	}

	// keeping the original order id makes creation idempotent on the
	// order reference when webhooks race
	orderID := meta["order_id"]
	if orderID == "" {
		orderID = uuid.NewString()
	}

	now := time.Now()
	order := entities.Order{
		ID:                orderID,
		OrderNumber:       GenerateOrderNumber(),
		CustomerEmail:     meta["email"],
		Status:            paymentToOrderStatus[target],
		PaymentStatus:     target,
		PaymentMethod:     entities.PaymentMethodCard,
		Currency:          intent.Currency,
		TotalAmount:       intent.Amount,
		ShippingAddress:   addressFromMetadata(meta["shipping"]),
		BillingAddress:    addressFromMetadata(meta["billing"]),
		ProviderPaymentID: event.PaymentID,
		CreatedAt:         now,
		UpdatedAt:         now,
	}

	order.Items = make([]entities.OrderItem, 0, len(summaries))
	for _, it := range summaries {
		order.Items = append(order.Items, entities.OrderItem{
			OrderID:   orderID,
			ProductID: it.ProductID,
			Quantity:  it.Quantity,
			Price:     it.Price,
		})
	}
	order.ItemsTotal()

	return order, nil
}

func addressFromMetadata(raw string) entities.Address {
	var summary provider.AddressSummary
	if raw == "" || json.Unmarshal([]byte(raw), &summary) != nil {
		return entities.Address{}
	}
	return entities.Address{
		Name:    summary.Name,
		Street:  summary.Street,
		City:    summary.City,
		ZIP:     summary.ZIP,
		Country: summary.Country,
	}
}
