package service

import (
	"context"
	"crypto/rand"
	"fmt"
	"log/slog"
	"time"

	"github.com/fbr-shop/payment-service/internal/entities"
	"github.com/fbr-shop/payment-service/pkg/trm"
	"github.com/fbr-shop/payment-service/pkg/utils"

	"github.com/google/uuid"
)

type OrderRepo interface {
	CreateOrder(ctx context.Context, o entities.Order) error
	InsertItems(ctx context.Context, orderID string, items []entities.OrderItem) error
	GetOrderByID(ctx context.Context, orderID string) (entities.Order, error)
	GetOrderByNumber(ctx context.Context, orderNumber string) (entities.Order, error)
	UpdateOrder(ctx context.Context, orderID string, upd entities.OrderUpdate) error
	LatestOrders(ctx context.Context, count int) ([]entities.Order, error)

	DecrementInventory(ctx context.Context, productID string, quantity int) error
	ReleaseInventory(ctx context.Context, productID string, quantity int) error
}

type Notifier interface {
	Notify(ctx context.Context, event string, order entities.Order)
}

type Cache interface {
	Get(key string) ([]byte, bool)
	Set(key string, value []byte)
	Delete(key string)
}

type orderService struct {
	logger    *slog.Logger
	txManager trm.Manager
	repo      OrderRepo
	notifier  Notifier
	cache     Cache
}

func NewOrderService(logger *slog.Logger, txManager trm.Manager, repo OrderRepo, notifier Notifier, cache Cache) *orderService {
	return &orderService{
		logger:    logger.With(slog.String("service", "order")),
		txManager: txManager,
		repo:      repo,
		notifier:  notifier,
		cache:     cache,
	}
}

// CreateOrder validates the checkout payload, assigns the order number and
// persists the order with its items in one transaction. A failed item insert
// rolls the order back, so a half-written order is never visible. Inventory
// decrement runs after commit and is best effort per item.
func (s *orderService) CreateOrder(ctx context.Context, order entities.Order) (entities.Order, error) {
	if order.CustomerEmail == "" {
		return entities.Order{}, fmt.Errorf("%w: customer_email is required", entities.ErrInvalidOrder)
	}
	if len(order.Items) == 0 {
		return entities.Order{}, fmt.Errorf("%w: order must have at least one item", entities.ErrInvalidOrder)
	}
	for _, it := range order.Items {
		if it.Quantity <= 0 {
			return entities.Order{}, fmt.Errorf("%w: item %s has non-positive quantity", entities.ErrInvalidOrder, it.ProductID)
		}
	}

	itemsTotal := order.ItemsTotal()
	if !order.TotalAmount.Equal(itemsTotal) {
		return entities.Order{}, fmt.Errorf("%w: total_amount %s does not match items total %s",
			entities.ErrInvalidOrder, order.TotalAmount.StringFixed(2), itemsTotal.StringFixed(2))
	}

	now := time.Now()
	order.ID = uuid.NewString()
	order.OrderNumber = GenerateOrderNumber()
	if order.Status == "" {
		order.Status = entities.OrderStatusPending
	}
	if order.PaymentStatus == "" {
		order.PaymentStatus = entities.PaymentStatusPending
	}
	order.CreatedAt = now
	order.UpdatedAt = now
	for i := range order.Items {
		order.Items[i].OrderID = order.ID
	}

	err := s.txManager.Do(ctx, func(ctx context.Context) error {
		if err := s.repo.CreateOrder(ctx, order); err != nil {
			return fmt.Errorf("failed to create order: %w", err)
		}
		if err := s.repo.InsertItems(ctx, order.ID, order.Items); err != nil {
			return fmt.Errorf("failed to insert items: %w", err)
		}
		return nil
	})
	if err != nil {
		return entities.Order{}, err
	}

	s.adjustInventory(ctx, order)
	s.logger.InfoContext(ctx, "order created",
		slog.String("order_number", order.OrderNumber),
		slog.String("payment_method", string(order.PaymentMethod)),
	)
	s.notifier.Notify(ctx, "order.created", order)

	return order, nil
}

// adjustInventory decrements stock per item. One item's failure is logged and
// the rest still run; the committed order is never aborted over inventory.
func (s *orderService) adjustInventory(ctx context.Context, order entities.Order) {
	for _, it := range order.Items {
		if err := s.repo.DecrementInventory(ctx, it.ProductID, it.Quantity); err != nil {
			s.logger.ErrorContext(ctx, "failed to adjust inventory",
				slog.String("order_number", order.OrderNumber),
				slog.String("product_id", it.ProductID),
				slog.Any("error", err),
			)
		}
	}
}

func (s *orderService) GetOrderByID(ctx context.Context, orderID string) (entities.Order, error) {
	if data, ok := s.cache.Get(orderID); ok {
		var order entities.Order
		if err := order.Unmarshal(data); err != nil {
			s.logger.Error("failed to unmarshal cached order", slog.String("order_id", orderID), slog.Any("error", err))
			return entities.Order{}, err
		}
		return order, nil
	}

	var order entities.Order
	fn := func() error {
		var err error
		order, err = s.repo.GetOrderByID(ctx, orderID)
		return err
	}
	cfg := utils.RetryConfig{
		InitialDelay: 100 * time.Millisecond,
		MaxAttempts:  5,
		Multiplier:   2,
	}
	if err := utils.Retry(cfg, fn, entities.ErrOrderNotFound); err != nil {
		return entities.Order{}, err
	}

	s.cacheOrder(order)
	return order, nil
}

// GetOrderByNumber looks up an order by its customer-facing number. Numbers
// are not cache keys, so this always hits the repo.
func (s *orderService) GetOrderByNumber(ctx context.Context, orderNumber string) (entities.Order, error) {
	order, err := s.repo.GetOrderByNumber(ctx, orderNumber)
	if err != nil {
		return entities.Order{}, err
	}
	s.cacheOrder(order)
	return order, nil
}

func (s *orderService) UpdateOrder(ctx context.Context, orderID string, upd entities.OrderUpdate) (entities.Order, error) {
	current, err := s.repo.GetOrderByID(ctx, orderID)
	if err != nil {
		return entities.Order{}, err
	}

	if upd.Status != nil && !entities.CanTransitionOrder(current.Status, *upd.Status) {
		return entities.Order{}, fmt.Errorf("%w: cannot move order from %s to %s",
			entities.ErrInvalidOrder, current.Status, *upd.Status)
	}
	// manual payment confirmation (bank transfers) goes through the same
	// monotonic check as webhook transitions
	if upd.PaymentStatus != nil && !entities.CanTransitionPayment(current.PaymentStatus, *upd.PaymentStatus) {
		return entities.Order{}, fmt.Errorf("%w: cannot move payment from %s to %s",
			entities.ErrInvalidOrder, current.PaymentStatus, *upd.PaymentStatus)
	}

	if err := s.repo.UpdateOrder(ctx, orderID, upd); err != nil {
		return entities.Order{}, err
	}

	order, err := s.repo.GetOrderByID(ctx, orderID)
	if err != nil {
		return entities.Order{}, err
	}
	s.cacheOrder(order)
	return order, nil
}

// CancelOrder is a soft status change; the row is never deleted. Reserved
// inventory is released and the customer is notified.
func (s *orderService) CancelOrder(ctx context.Context, orderID string) (entities.Order, error) {
	current, err := s.repo.GetOrderByID(ctx, orderID)
	if err != nil {
		return entities.Order{}, err
	}
	if current.Status == entities.OrderStatusCancelled {
		return entities.Order{}, entities.ErrOrderCancelled
	}

	cancelled := entities.OrderStatusCancelled
	cancelledPayment := entities.PaymentStatusCancelled
	upd := entities.OrderUpdate{Status: &cancelled}
	if entities.CanTransitionPayment(current.PaymentStatus, cancelledPayment) {
		upd.PaymentStatus = &cancelledPayment
	}
	if err := s.repo.UpdateOrder(ctx, orderID, upd); err != nil {
		return entities.Order{}, err
	}

	if current.PaymentStatus == entities.PaymentStatusAuthorised {
		for _, it := range current.Items {
			if err := s.repo.ReleaseInventory(ctx, it.ProductID, it.Quantity); err != nil {
				s.logger.ErrorContext(ctx, "failed to release inventory",
					slog.String("order_number", current.OrderNumber),
					slog.String("product_id", it.ProductID),
					slog.Any("error", err),
				)
			}
		}
	}

	order, err := s.repo.GetOrderByID(ctx, orderID)
	if err != nil {
		return entities.Order{}, err
	}
	s.cacheOrder(order)
	s.notifier.Notify(ctx, "order.cancelled", order)
	return order, nil
}

func (s *orderService) WarmUpCache(ctx context.Context, count int) error {
	orders, err := s.repo.LatestOrders(ctx, count)
	if err != nil {
		return fmt.Errorf("failed to warm up cache: %w", err)
	}
	for _, order := range orders {
		s.cacheOrder(order)
	}
	s.logger.Info("cache warmed up", slog.Int("orders", len(orders)))
	return nil
}

func (s *orderService) cacheOrder(order entities.Order) {
	data, err := order.Marshal()
	if err != nil {
		s.logger.Error("failed to marshal order for cache", slog.String("order_id", order.ID), slog.Any("error", err))
		return
	}
	s.cache.Set(order.ID, data)
}

const orderNumberPrefix = "FBR"

const suffixAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// GenerateOrderNumber builds FBR-<unix millis>-<4 random chars>. The random
// suffix makes collisions between orders created in the same millisecond
// negligible, though not cryptographically guaranteed.
func GenerateOrderNumber() string {
	buf := make([]byte, 4)
	rand.Read(buf)
	suffix := make([]byte, 4)
	for i, b := range buf {
		suffix[i] = suffixAlphabet[int(b)%len(suffixAlphabet)]
	}
	return fmt.Sprintf("%s-%d-%s", orderNumberPrefix, time.Now().UnixMilli(), suffix)
}
