package services

import (
	"context"
	"errors"
	"strconv"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"storefront-order-service/models"
	"storefront-order-service/repositories"
	"storefront-order-service/utils"
)

type LineResult struct {
	Line  int           `json:"line"`
	Order *models.Order `json:"order,omitempty"`
	Err   error         `json:"-"`
}

// CheckoutResult reports every cart line in request order. Lines are placed
// independently: a failed line leaves the other lines' orders committed.
type CheckoutResult struct {
	BatchID string       `json:"batch_id"`
	Lines   []LineResult `json:"lines"`
}

// Batch is the committed part of a checkout as read back from storage.
type Batch struct {
	BatchID         string          `json:"batch_id"`
	Orders          []models.Order  `json:"orders"`
	ShippingCharged decimal.Decimal `json:"shipping_charged"`
	Total           decimal.Decimal `json:"total"`
}

func (r *CheckoutResult) Placed() []models.Order {
	orders := make([]models.Order, 0, len(r.Lines))
	for _, l := range r.Lines {
		if l.Order != nil {
			orders = append(orders, *l.Order)
		}
	}
	return orders
}

func (r *CheckoutResult) Failed() []LineResult {
	var failed []LineResult
	for _, l := range r.Lines {
		if l.Err != nil {
			failed = append(failed, l)
		}
	}
	return failed
}

func (r *CheckoutResult) ShippingCharged() decimal.Decimal {
	total := decimal.Zero
	for _, l := range r.Lines {
		if l.Order != nil {
			total = total.Add(l.Order.ShippingFee)
		}
	}
	return total
}

func (s *orderService) Checkout(ctx context.Context, req *models.CheckoutRequest) (*CheckoutResult, error) {
	ctx, span := s.tracer.Start(ctx, "OrderService.Checkout")
	defer span.End()

	if len(req.Lines) == 0 {
		return nil, newValidationError("lines", "lines must contain at least 1 entry")
	}
	if req.ShippingFee.IsNegative() {
		return nil, newValidationError("shipping_fee", "shipping_fee must not be negative")
	}

	batchID := uuid.NewString()
	if req.BatchID != nil && *req.BatchID != "" {
		batchID = *req.BatchID
	}

	span.SetAttributes(
		attribute.String("batch_id", batchID),
		attribute.Int("lines", len(req.Lines)),
	)

	shares := ApportionShipping(req.ShippingFee, s.lineSubtotals(ctx, req.Lines))

	result := &CheckoutResult{
		BatchID: batchID,
		Lines:   make([]LineResult, len(req.Lines)),
	}

	g := new(errgroup.Group)
	g.SetLimit(s.concurrency)
	for i, line := range req.Lines {
		lineReq := &models.CreateOrderRequest{
			Customer:     req.Customer,
			ProductID:    line.ProductID,
			ProductPrice: line.ProductPrice,
			ProductSize:  line.ProductSize,
			ProductColor: line.ProductColor,
			Quantity:     line.Quantity,
			ShippingFee:  shares[i],
			BatchID:      &batchID,
			Notes:        req.Notes,
		}

		g.Go(func() error {
			order, err := s.placeOrder(ctx, lineReq)
			result.Lines[i] = LineResult{Line: i, Order: order, Err: err}
			if err == nil {
				s.publish(ctx, order, models.EventOrderCreated)
			}
			return nil
		})
	}
	_ = g.Wait()

	placed := result.Placed()
	failed := result.Failed()

	if len(failed) > 0 {
		fields := []zap.Field{
			zap.String("batch_id", batchID),
			zap.Int("placed", len(placed)),
			zap.Int("failed", len(failed)),
		}
		for _, f := range failed {
			fields = append(fields, zap.NamedError("line_"+strconv.Itoa(f.Line), f.Err))
		}
		utils.LogWarn(ctx, s.logger, "Checkout completed with rejected lines", fields...)
	}

	if len(placed) > 0 {
		s.publishBatch(ctx, batchID, placed)
	}

	return result, nil
}

// lineSubtotals prices each line the way the intake will. Lines whose product
// cannot be read fall back to the caller's price, or zero.
func (s *orderService) lineSubtotals(ctx context.Context, lines []models.CartLine) []decimal.Decimal {
	now := s.now()
	subtotals := make([]decimal.Decimal, len(lines))

	for i, line := range lines {
		price := decimal.Zero
		product, err := s.store.GetProduct(ctx, line.ProductID)
		switch {
		case err == nil:
			price, _ = EffectivePrice(product, now)
		case line.ProductPrice != nil:
			price = *line.ProductPrice
		}
		if err != nil && !errors.Is(err, repositories.ErrProductNotFound) {
			utils.LogWarn(ctx, s.logger, "Failed to price cart line",
				zap.Uint64("product_id", line.ProductID),
				zap.Error(err),
			)
		}

		qty := line.Quantity
		if qty < 0 {
			qty = 0
		}
		subtotals[i] = lineSubtotal(price, qty)
	}
	return subtotals
}

func (s *orderService) publishBatch(ctx context.Context, batchID string, placed []models.Order) {
	if s.publisher == nil {
		return
	}

	total := decimal.Zero
	for _, o := range placed {
		total = total.Add(o.TotalAmount)
	}

	event := models.OrderEvent{
		BatchID:  batchID,
		Type:     models.EventBatchCompleted,
		Status:   models.StatusPending,
		Total:    total,
		Email:    placed[0].CustomerEmail,
		Occurred: s.now(),
	}
	if err := s.publisher.PublishOrderEvent(ctx, event); err != nil {
		utils.LogWarn(ctx, s.logger, "Failed to publish batch event",
			zap.String("batch_id", batchID),
			zap.Error(err),
		)
	}
}

func (s *orderService) GetBatch(ctx context.Context, batchID string) (*Batch, error) {
	orders, err := s.store.ListBatch(ctx, batchID)
	if err != nil {
		utils.LogError(ctx, s.logger, "Failed to read batch", zap.String("batch_id", batchID), zap.Error(err))
		return nil, &InternalError{Err: err}
	}
	if len(orders) == 0 {
		return nil, &NotFoundError{Resource: "batch", ID: batchID}
	}

	batch := &Batch{
		BatchID:         batchID,
		Orders:          orders,
		ShippingCharged: decimal.Zero,
		Total:           decimal.Zero,
	}
	for _, o := range orders {
		batch.ShippingCharged = batch.ShippingCharged.Add(o.ShippingFee)
		batch.Total = batch.Total.Add(o.TotalAmount)
	}
	return batch, nil
}
