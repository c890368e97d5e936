package rabbitmq

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"storefront-order-service/config"
	"storefront-order-service/models"
)

type RabbitMQ struct {
	Conn    *amqp.Connection
	Channel *amqp.Channel
	Cfg     *config.Config

	logger *zap.Logger
	mu     sync.Mutex
}

func NewRabbitMQ(cfg *config.Config, logger *zap.Logger) (*RabbitMQ, error) {
	conn, err := amqp.Dial(cfg.RabbitMQURL)
	if err != nil {
		return nil, fmt.Errorf("dial rabbitmq: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}

	return &RabbitMQ{
		Conn:    conn,
		Channel: ch,
		Cfg:     cfg,
		logger:  logger,
	}, nil
}

func (r *RabbitMQ) SetupQueues() error {
	dlx := r.Cfg.DeadLetterQueue + "_exchange"

	if err := r.Channel.ExchangeDeclare(
		dlx,
		"direct",
		true,  // durable
		false, // auto-delete
		false, // internal
		false, // no-wait
		nil,
	); err != nil {
		return fmt.Errorf("declare dead letter exchange: %w", err)
	}

	if _, err := r.Channel.QueueDeclare(
		r.Cfg.DeadLetterQueue,
		true,  // durable
		false, // auto-delete
		false, // exclusive
		false, // no-wait
		amqp.Table{"x-queue-type": "classic"},
	); err != nil {
		return fmt.Errorf("declare dead letter queue: %w", err)
	}

	if err := r.Channel.QueueBind(r.Cfg.DeadLetterQueue, r.Cfg.DeadLetterQueue, dlx, false, nil); err != nil {
		return fmt.Errorf("bind dead letter queue: %w", err)
	}

	if err := r.Channel.ExchangeDeclare(
		r.Cfg.OrderExchange,
		"fanout",
		true,  // durable
		false, // auto-delete
		false, // internal
		false, // no-wait
		nil,
	); err != nil {
		return fmt.Errorf("declare order exchange: %w", err)
	}

	if _, err := r.Channel.QueueDeclare(
		r.Cfg.OrderQueue,
		true,  // durable
		false, // auto-delete
		false, // exclusive
		false, // no-wait
		amqp.Table{
			"x-max-priority":            r.Cfg.MaxPriority,
			"x-dead-letter-exchange":    dlx,
			"x-dead-letter-routing-key": r.Cfg.DeadLetterQueue,
		},
	); err != nil {
		return fmt.Errorf("declare order queue: %w", err)
	}

	if err := r.Channel.QueueBind(r.Cfg.OrderQueue, "", r.Cfg.OrderExchange, false, nil); err != nil {
		return fmt.Errorf("bind order queue: %w", err)
	}

	return nil
}

// PublishOrderEvent implements services.EventPublisher.
func (r *RabbitMQ) PublishOrderEvent(ctx context.Context, event models.OrderEvent) error {
	msg, err := encodeEvent(event)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.Channel.PublishWithContext(ctx,
		r.Cfg.OrderExchange,
		"",
		false, // mandatory
		false, // immediate
		msg,
	); err != nil {
		return fmt.Errorf("publish %s event: %w", event.Type, err)
	}

	r.logger.Debug("Order event published",
		zap.String("type", event.Type),
		zap.String("order_number", event.OrderNumber),
		zap.Uint8("priority", msg.Priority),
	)
	return nil
}

func encodeEvent(event models.OrderEvent) (amqp.Publishing, error) {
	body, err := json.Marshal(event)
	if err != nil {
		return amqp.Publishing{}, fmt.Errorf("marshal order event: %w", err)
	}

	return amqp.Publishing{
		DeliveryMode: amqp.Persistent,
		Timestamp:    event.Occurred,
		ContentType:  "application/json",
		Type:         event.Type,
		MessageId:    event.OrderNumber,
		Body:         body,
		Priority:     eventPriority(event),
	}, nil
}

// eventPriority favours large orders, then cancellations.
func eventPriority(event models.OrderEvent) uint8 {
	switch {
	case event.Total.GreaterThan(models.LargeOrderThreshold):
		return 9
	case event.Status == models.StatusCancelled:
		return 8
	default:
		return 5
	}
}

func (r *RabbitMQ) Close() {
	if r.Channel != nil {
		if err := r.Channel.Close(); err != nil {
			r.logger.Warn("Failed to close channel", zap.Error(err))
		}
	}
	if r.Conn != nil {
		if err := r.Conn.Close(); err != nil {
			r.logger.Warn("Failed to close connection", zap.Error(err))
		}
	}
}
