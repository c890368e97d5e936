package consumers

import (
	"context"
	"encoding/json"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"storefront-order-service/config"
	"storefront-order-service/models"
)

// Notifier delivers order events to customers or back-office staff.
type Notifier interface {
	Notify(ctx context.Context, event models.OrderEvent) error
}

type OrderConsumer struct {
	notifier Notifier
	logger   *zap.Logger
}

func NewOrderConsumer(notifier Notifier, logger *zap.Logger) *OrderConsumer {
	return &OrderConsumer{notifier: notifier, logger: logger}
}

// Start consumes the order queue and the dead letter queue until ctx is
// cancelled or the channel closes.
func (c *OrderConsumer) Start(ctx context.Context, ch *amqp.Channel, cfg *config.Config) error {
	msgs, err := ch.Consume(
		cfg.OrderQueue,
		"order-service", // consumer tag
		false,           // auto-ack
		false,           // exclusive
		false,           // no-local
		false,           // no-wait
		nil,
	)
	if err != nil {
		return fmt.Errorf("consume %s: %w", cfg.OrderQueue, err)
	}

	dlqMsgs, err := ch.Consume(
		cfg.DeadLetterQueue,
		"order-service-dlq",
		false, // auto-ack
		false, // exclusive
		false, // no-local
		false, // no-wait
		nil,
	)
	if err != nil {
		return fmt.Errorf("consume %s: %w", cfg.DeadLetterQueue, err)
	}

	go c.loop(ctx, msgs, c.processOrderMessage)
	go c.loop(ctx, dlqMsgs, c.processDeadLetterMessage)
	return nil
}

func (c *OrderConsumer) loop(ctx context.Context, msgs <-chan amqp.Delivery, handle func(context.Context, amqp.Delivery)) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-msgs:
			if !ok {
				return
			}
			handle(ctx, msg)
		}
	}
}

func (c *OrderConsumer) processOrderMessage(ctx context.Context, msg amqp.Delivery) {
	defer func() {
		if r := recover(); r != nil {
			c.logger.Error("Recovered from panic in message processing", zap.Any("panic", r))
			c.nack(msg)
		}
	}()

	var event models.OrderEvent
	if err := json.Unmarshal(msg.Body, &event); err != nil || event.Type == "" {
		c.logger.Warn("Invalid order message", zap.ByteString("body", msg.Body), zap.Error(err))
		c.nack(msg)
		return
	}

	switch event.Type {
	case models.EventOrderCreated, models.EventStatusUpdated, models.EventBatchCompleted:
	default:
		c.logger.Warn("Unknown event type", zap.String("type", event.Type))
		c.nack(msg)
		return
	}

	if err := c.notifier.Notify(ctx, event); err != nil {
		c.logger.Error("Failed to notify",
			zap.String("type", event.Type),
			zap.String("order_number", event.OrderNumber),
			zap.Error(err),
		)
		c.nack(msg)
		return
	}

	if err := msg.Ack(false); err != nil {
		c.logger.Warn("Failed to ack message", zap.Error(err))
	}
}

func (c *OrderConsumer) processDeadLetterMessage(ctx context.Context, msg amqp.Delivery) {
	c.logger.Error("Received dead letter",
		zap.ByteString("body", msg.Body),
		zap.Any("death", msg.Headers["x-death"]),
	)
	if err := msg.Ack(false); err != nil {
		c.logger.Warn("Failed to ack dead letter", zap.Error(err))
	}
}

// nack rejects without requeue so the broker dead-letters the message.
func (c *OrderConsumer) nack(msg amqp.Delivery) {
	if err := msg.Nack(false, false); err != nil {
		c.logger.Warn("Failed to nack message", zap.Error(err))
	}
}
