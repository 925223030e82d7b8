// Package notifier publishes order lifecycle events to Kafka; the
// notification worker that emails customers consumes them downstream.
package notifier

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/fbr-shop/payment-service/internal/config"
	"github.com/fbr-shop/payment-service/internal/entities"

	"github.com/segmentio/kafka-go"
)

type Notification struct {
	Event         string    `json:"event"`
	OrderID       string    `json:"order_id"`
	OrderNumber   string    `json:"order_number"`
	CustomerEmail string    `json:"customer_email"`
	Status        string    `json:"status"`
	PaymentStatus string    `json:"payment_status"`
	Currency      string    `json:"currency"`
	TotalAmount   string    `json:"total_amount"`
	OccurredAt    time.Time `json:"occurred_at"`
}

type kafkaNotifier struct {
	logger *slog.Logger
	writer *kafka.Writer
	topic  string
}

func NewKafkaNotifier(logger *slog.Logger, cfg config.Kafka) *kafkaNotifier {
	return &kafkaNotifier{
		logger: logger.With(slog.String("service", "notifier")),
		writer: &kafka.Writer{
			Addr:         kafka.TCP(cfg.Brokers...),
			Balancer:     &kafka.LeastBytes{},
			BatchTimeout: cfg.BatchTimeout,
		},
		topic: cfg.Topic,
	}
}

// Notify publishes the event. Failures are logged and swallowed; a lost
// notification must never fail the payment flow that produced it.
func (n *kafkaNotifier) Notify(ctx context.Context, event string, order entities.Order) {
	payload := Notification{
		Event:         event,
		OrderID:       order.ID,
		OrderNumber:   order.OrderNumber,
		CustomerEmail: order.CustomerEmail,
		Status:        string(order.Status),
		PaymentStatus: string(order.PaymentStatus),
		Currency:      order.Currency,
		TotalAmount:   order.TotalAmount.StringFixed(2),
		OccurredAt:    time.Now(),
	}

	if err := n.publish(ctx, payload); err != nil {
		n.logger.ErrorContext(ctx, "failed to publish notification",
			slog.String("event", event),
			slog.String("order_number", order.OrderNumber),
			slog.Any("error", err),
		)
	}
}

func (n *kafkaNotifier) publish(ctx context.Context, payload Notification) error {
	value, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal notification: %w", err)
	}
	return n.writer.WriteMessages(ctx, kafka.Message{
		Topic: n.topic,
		Key:   []byte(payload.OrderNumber),
		Value: value,
	})
}

func (n *kafkaNotifier) Close() error {
	return n.writer.Close()
}
