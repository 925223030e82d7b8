package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/fbr-shop/payment-service/internal/entities"
	"github.com/fbr-shop/payment-service/pkg/trm"

	sq "github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"
)

var orderColumns = []string{
	"id", "order_number", "customer_email", "customer_id",
	"status", "payment_status", "payment_method", "currency", "total_amount",
	"shipping_name", "shipping_street", "shipping_city", "shipping_zip", "shipping_country",
	"billing_name", "billing_street", "billing_city", "billing_zip", "billing_country",
	"provider_payment_id", "payment_reference", "notes", "created_at", "updated_at",
}

type postgresRepo struct {
	db *sqlx.DB
	qb sq.StatementBuilderType
}

func NewPostgresRepo(db *sqlx.DB) *postgresRepo {
	return &postgresRepo{
		db: db,
		qb: sq.StatementBuilder.PlaceholderFormat(sq.Dollar),
	}
}

func (r *postgresRepo) CreateOrder(ctx context.Context, o entities.Order) error {
	query, args := r.qb.Insert("orders").
		Columns(orderColumns...).
		Values(
			o.ID, o.OrderNumber, o.CustomerEmail, nullString(o.CustomerID),
			string(o.Status), string(o.PaymentStatus), string(o.PaymentMethod), o.Currency, o.TotalAmount,
			nullString(o.ShippingAddress.Name), nullString(o.ShippingAddress.Street),
			nullString(o.ShippingAddress.City), nullString(o.ShippingAddress.ZIP),
			nullString(o.ShippingAddress.Country),
			nullString(o.BillingAddress.Name), nullString(o.BillingAddress.Street),
			nullString(o.BillingAddress.City), nullString(o.BillingAddress.ZIP),
			nullString(o.BillingAddress.Country),
			nullString(o.ProviderPaymentID), nullString(o.PaymentReference), nullString(o.Notes),
			o.CreatedAt, o.UpdatedAt,
		).
		MustSql()

	if _, err := r.execContext(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to insert order: %w", err)
	}
	return nil
}

func (r *postgresRepo) InsertItems(ctx context.Context, orderID string, items []entities.OrderItem) error {
	if len(items) == 0 {
		return nil
	}

	q := r.qb.Insert("order_items").
		Columns("order_id", "product_id", "quantity", "price", "total")
	for _, it := range items {
		q = q.Values(orderID, it.ProductID, it.Quantity, it.Price, it.Total)
	}

	query, args := q.MustSql()
	if _, err := r.execContext(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to insert order items: %w", err)
	}
	return nil
}

func (r *postgresRepo) GetOrderByID(ctx context.Context, orderID string) (entities.Order, error) {
	return r.getOrder(ctx, sq.Eq{"id": orderID})
}

func (r *postgresRepo) GetOrderByNumber(ctx context.Context, orderNumber string) (entities.Order, error) {
	return r.getOrder(ctx, sq.Eq{"order_number": orderNumber})
}

func (r *postgresRepo) GetOrderByProviderPaymentID(ctx context.Context, providerPaymentID string) (entities.Order, error) {
	return r.getOrder(ctx, sq.Eq{"provider_payment_id": providerPaymentID})
}

func (r *postgresRepo) GetOrderByPaymentReference(ctx context.Context, reference string) (entities.Order, error) {
	return r.getOrder(ctx, sq.Eq{"payment_reference": reference})
}

func (r *postgresRepo) getOrder(ctx context.Context, where sq.Eq) (entities.Order, error) {
	query, args := r.qb.Select(orderColumns...).
		From("orders").
		Where(where).
		MustSql()

	var order Order
	err := r.getContext(ctx, &order, query, args...)
	if errors.Is(err, sql.ErrNoRows) {
		return entities.Order{}, entities.ErrOrderNotFound
	}
	if err != nil {
		return entities.Order{}, fmt.Errorf("failed to get order: %w", err)
	}

	query, args = r.qb.Select("order_id", "product_id", "quantity", "price", "total").
		From("order_items").
		Where(sq.Eq{"order_id": order.ID}).
		MustSql()

	var items []OrderItem
	if err := r.selectContext(ctx, &items, query, args...); err != nil {
		return entities.Order{}, fmt.Errorf("failed to get order items: %w", err)
	}

	return OrderToEntity(order, items), nil
}

func (r *postgresRepo) LatestOrders(ctx context.Context, count int) ([]entities.Order, error) {
	query, args := r.qb.Select(orderColumns...).
		From("orders").
		OrderBy("created_at DESC").
		Limit(uint64(count)).
		MustSql()

	var orders []Order
	if err := r.selectContext(ctx, &orders, query, args...); err != nil {
		return nil, fmt.Errorf("failed to select orders: %w", err)
	}
	if len(orders) == 0 {
		return []entities.Order{}, nil
	}

	ids := make([]string, len(orders))
	for i, o := range orders {
		ids[i] = o.ID
	}

	query, args = r.qb.Select("order_id", "product_id", "quantity", "price", "total").
		From("order_items").
		Where(sq.Eq{"order_id": ids}).
		MustSql()

	var items []OrderItem
	if err := r.selectContext(ctx, &items, query, args...); err != nil {
		return nil, fmt.Errorf("failed to select order items: %w", err)
	}
	itemsMap := make(map[string][]OrderItem, len(ids))
	for _, it := range items {
		itemsMap[it.OrderID] = append(itemsMap[it.OrderID], it)
	}

	result := make([]entities.Order, 0, len(orders))
	for _, o := range orders {
		result = append(result, OrderToEntity(o, itemsMap[o.ID]))
	}
	return result, nil
}

func (r *postgresRepo) UpdateOrder(ctx context.Context, orderID string, upd entities.OrderUpdate) error {
	q := r.qb.Update("orders").Set("updated_at", time.Now())
	if upd.Status != nil {
		q = q.Set("status", string(*upd.Status))
	}
	if upd.PaymentStatus != nil {
		q = q.Set("payment_status", string(*upd.PaymentStatus))
	}
	if upd.ProviderPaymentID != nil {
		q = q.Set("provider_payment_id", *upd.ProviderPaymentID)
	}
	if upd.PaymentReference != nil {
		q = q.Set("payment_reference", *upd.PaymentReference)
	}
	if upd.Notes != nil {
		q = q.Set("notes", *upd.Notes)
	}

	query, args := q.Where(sq.Eq{"id": orderID}).MustSql()
	res, err := r.execContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to update order: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return entities.ErrOrderNotFound
	}
	return nil
}

// RecordPaymentEvent inserts the (provider, payment id, resulting status)
// triple and reports whether the insert applied. A second delivery of the
// same event hits the conflict and returns false, making redeliveries no-ops.
func (r *postgresRepo) RecordPaymentEvent(ctx context.Context, providerName, eventID, paymentID string, status entities.PaymentStatus) (bool, error) {
	query, args := r.qb.Insert("payment_events").
		Columns("provider", "event_id", "payment_id", "status", "processed_at").
		Values(providerName, eventID, paymentID, string(status), time.Now()).
		Suffix("ON CONFLICT (provider, payment_id, status) DO NOTHING").
		MustSql()

	res, err := r.execContext(ctx, query, args...)
	if err != nil {
		return false, fmt.Errorf("failed to record payment event: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read affected rows: %w", err)
	}
	return n > 0, nil
}

func (r *postgresRepo) DecrementInventory(ctx context.Context, productID string, quantity int) error {
	query, args := r.qb.Update("products").
		Set("inventory_quantity", sq.Expr("inventory_quantity - ?", quantity)).
		Where(sq.Eq{"id": productID}).
		MustSql()

	if _, err := r.execContext(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to decrement inventory for %s: %w", productID, err)
	}
	return nil
}

func (r *postgresRepo) ReserveInventory(ctx context.Context, productID string, quantity int) error {
	query, args := r.qb.Update("products").
		Set("reserved_quantity", sq.Expr("reserved_quantity + ?", quantity)).
		Where(sq.Eq{"id": productID}).
		MustSql()

	if _, err := r.execContext(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to reserve inventory for %s: %w", productID, err)
	}
	return nil
}

func (r *postgresRepo) ReleaseInventory(ctx context.Context, productID string, quantity int) error {
	query, args := r.qb.Update("products").
		Set("reserved_quantity", sq.Expr("GREATEST(reserved_quantity - ?, 0)", quantity)).
		Where(sq.Eq{"id": productID}).
		MustSql()

	if _, err := r.execContext(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to release inventory for %s: %w", productID, err)
	}
	return nil
}

func (r *postgresRepo) execContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	tx := trm.ExtractTx(ctx)
	if tx != nil {
		return tx.ExecContext(ctx, query, args...)
	}
	return r.db.ExecContext(ctx, query, args...)
}

func (r *postgresRepo) getContext(ctx context.Context, dest any, query string, args ...any) error {
	tx := trm.ExtractTx(ctx)
	if tx != nil {
		return tx.GetContext(ctx, dest, query, args...)
	}
	return r.db.GetContext(ctx, dest, query, args...)
}

func (r *postgresRepo) selectContext(ctx context.Context, dest any, query string, args ...any) error {
	tx := trm.ExtractTx(ctx)
	if tx != nil {
		return tx.SelectContext(ctx, dest, query, args...)
	}
	return r.db.SelectContext(ctx, dest, query, args...)
}
