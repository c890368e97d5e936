package consumers

import (
	"context"

	"go.uber.org/zap"

	"storefront-order-service/models"
)

// LogNotifier writes notifications to the structured log. It stands in for
// the mail and SMS senders of a deployment.
type LogNotifier struct {
	logger *zap.Logger
}

func NewLogNotifier(logger *zap.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

func (n *LogNotifier) Notify(ctx context.Context, event models.OrderEvent) error {
	fields := []zap.Field{
		zap.String("type", event.Type),
		zap.String("email", event.Email),
		zap.String("status", string(event.Status)),
		zap.String("total", event.Total.StringFixed(2)),
	}

	switch event.Type {
	case models.EventOrderCreated:
		n.logger.Info("Order confirmation queued", append(fields, zap.String("order_number", event.OrderNumber))...)
	case models.EventStatusUpdated:
		n.logger.Info("Status notification queued", append(fields, zap.String("order_number", event.OrderNumber))...)
	case models.EventBatchCompleted:
		n.logger.Info("Checkout summary queued", append(fields, zap.String("batch_id", event.BatchID))...)
	}
	return nil
}
