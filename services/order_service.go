package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"storefront-order-service/models"
	"storefront-order-service/repositories"
	"storefront-order-service/utils"
)

type OrderService interface {
	PlaceOrder(ctx context.Context, req *models.CreateOrderRequest) (*models.Order, error)
	Checkout(ctx context.Context, req *models.CheckoutRequest) (*CheckoutResult, error)
	GetBatch(ctx context.Context, batchID string) (*Batch, error)
	UpdateStatus(ctx context.Context, id uint64, status models.OrderStatus, notes string) (*models.Order, error)
	GetOrder(ctx context.Context, id uint64) (*models.Order, error)
	GetOrderByNumber(ctx context.Context, number string) (*models.Order, error)
	ListOrders(ctx context.Context, filter models.OrderFilter) (*models.OrderPage, error)
}

// EventPublisher receives order events after the owning transaction has
// committed.
type EventPublisher interface {
	PublishOrderEvent(ctx context.Context, event models.OrderEvent) error
}

type Options struct {
	// LockRetries is how many times a transaction that hit a deadlock or
	// lock wait timeout is replayed.
	LockRetries int
	// CheckoutConcurrency bounds the cart lines placed at the same time.
	CheckoutConcurrency int
	Now                 func() time.Time
}

type orderService struct {
	store       repositories.Store
	publisher   EventPublisher
	logger      *zap.Logger
	tracer      trace.Tracer
	now         func() time.Time
	lockRetries int
	concurrency int
}

func NewOrderService(store repositories.Store, publisher EventPublisher, logger *zap.Logger, opts Options) OrderService {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.CheckoutConcurrency < 1 {
		opts.CheckoutConcurrency = 1
	}
	if opts.LockRetries < 0 {
		opts.LockRetries = 0
	}

	return &orderService{
		store:       store,
		publisher:   publisher,
		logger:      logger,
		tracer:      otel.Tracer("order_service"),
		now:         opts.Now,
		lockRetries: opts.LockRetries,
		concurrency: opts.CheckoutConcurrency,
	}
}

func (s *orderService) PlaceOrder(ctx context.Context, req *models.CreateOrderRequest) (*models.Order, error) {
	ctx, span := s.tracer.Start(ctx, "OrderService.PlaceOrder")
	defer span.End()

	span.SetAttributes(
		attribute.Int64("product_id", int64(req.ProductID)),
		attribute.String("size", req.ProductSize),
		attribute.Int("quantity", req.Quantity),
	)

	order, err := s.placeOrder(ctx, req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	s.publish(ctx, order, models.EventOrderCreated)
	return order, nil
}

func (s *orderService) placeOrder(ctx context.Context, req *models.CreateOrderRequest) (*models.Order, error) {
	if err := validateOrderRequest(req); err != nil {
		return nil, err
	}

	var (
		order *models.Order
		err   error
	)
	for attempt := 0; ; attempt++ {
		order, err = s.placeOnce(ctx, req)
		if err == nil || !repositories.IsLockConflict(err) || attempt >= s.lockRetries {
			break
		}

		utils.LogWarn(ctx, s.logger, "Lock conflict while placing order, retrying",
			zap.Uint64("product_id", req.ProductID),
			zap.String("size", req.ProductSize),
			zap.Int("attempt", attempt+1),
			zap.Error(err),
		)
	}

	if err != nil {
		return nil, s.translateError(ctx, req, err)
	}

	utils.LogInfo(ctx, s.logger, "Order placed",
		zap.String("order_number", order.OrderNumber),
		zap.Uint64("product_id", order.ProductID),
		zap.String("size", order.ProductSize),
		zap.Int("quantity", order.Quantity),
		zap.String("total", order.TotalAmount.StringFixed(2)),
	)
	return order, nil
}

// placeOnce checks and decrements stock and inserts the order in one
// transaction. Stock rows are locked before the sufficiency check, so
// concurrent orders for the same row are evaluated one after another.
func (s *orderService) placeOnce(ctx context.Context, req *models.CreateOrderRequest) (*models.Order, error) {
	var order *models.Order

	err := s.store.Transaction(ctx, func(repo repositories.Repository) error {
		product, err := repo.FindProduct(ctx, req.ProductID)
		if err != nil {
			return err
		}

		now := s.now()
		price, campaign := EffectivePrice(product, now)
		if req.ProductPrice != nil && !req.ProductPrice.Round(2).Equal(price) {
			fields := []zap.Field{
				zap.Uint64("product_id", product.ID),
				zap.String("asserted_price", req.ProductPrice.StringFixed(2)),
				zap.String("effective_price", price.StringFixed(2)),
			}
			if campaign != nil {
				fields = append(fields, zap.Uint64("campaign_id", campaign.ID))
			}
			utils.LogWarn(ctx, s.logger, "Client price differs from effective price", fields...)
		}

		order = newOrder(req, product, price, now)

		movement := &models.StockMovement{
			ProductID:      product.ID,
			QuantityChange: -req.Quantity,
			OrderNumber:    order.OrderNumber,
		}

		switch stock := product.Stock().(type) {
		case models.SizedStock:
			size := strings.TrimSpace(req.ProductSize)
			if size == "" {
				return &ValidationError{
					Fields:         map[string]string{"product_size": "size required"},
					AvailableSizes: stock.AvailableSizes(),
				}
			}

			row, err := repo.LockSizeStock(ctx, product.ID, size)
			if errors.Is(err, repositories.ErrSizeNotFound) {
				return &ValidationError{
					Fields:         map[string]string{"product_size": fmt.Sprintf("size %s is not available", size)},
					AvailableSizes: stock.AvailableSizes(),
				}
			}
			if err != nil {
				return err
			}

			if row.Quantity < req.Quantity {
				return &InsufficientStockError{Available: row.Quantity}
			}
			if err := repo.DecrementSizeStock(ctx, row.ID, req.Quantity); err != nil {
				if errors.Is(err, repositories.ErrInsufficientStock) {
					return &InsufficientStockError{Available: row.Quantity}
				}
				return err
			}

			order.ProductSize = row.Size
			movement.Size = row.Size
			movement.QuantityBefore = row.Quantity

		case models.FlatStock:
			locked, err := repo.LockProduct(ctx, product.ID)
			if err != nil {
				return err
			}

			available := 0
			if locked.StockQuantity != nil {
				available = *locked.StockQuantity
			}
			if available < req.Quantity {
				return &InsufficientStockError{Available: available}
			}
			if err := repo.DecrementFlatStock(ctx, product.ID, req.Quantity); err != nil {
				if errors.Is(err, repositories.ErrInsufficientStock) {
					return &InsufficientStockError{Available: available}
				}
				return err
			}

			movement.QuantityBefore = available
		}

		movement.QuantityAfter = movement.QuantityBefore - req.Quantity

		if err := repo.CreateOrder(ctx, order); err != nil {
			return err
		}
		return repo.RecordMovement(ctx, movement)
	})
	if err != nil {
		return nil, err
	}

	return order, nil
}

func (s *orderService) translateError(ctx context.Context, req *models.CreateOrderRequest, err error) error {
	var (
		validationErr *ValidationError
		stockErr      *InsufficientStockError
	)

	switch {
	case errors.As(err, &validationErr), errors.As(err, &stockErr):
		return err
	case errors.Is(err, repositories.ErrProductNotFound):
		return &NotFoundError{Resource: "product", ID: req.ProductID}
	case repositories.IsLockConflict(err):
		utils.LogWarn(ctx, s.logger, "Lock conflict retries exhausted",
			zap.Uint64("product_id", req.ProductID),
			zap.String("size", req.ProductSize),
			zap.Error(err),
		)
		return &ConflictError{Err: err}
	}

	utils.LogError(ctx, s.logger, "Failed to place order",
		zap.Uint64("product_id", req.ProductID),
		zap.String("size", req.ProductSize),
		zap.Int("quantity", req.Quantity),
		zap.String("customer_email", req.Email),
		zap.Error(err),
	)
	return &InternalError{Err: err}
}

func validateOrderRequest(req *models.CreateOrderRequest) error {
	fields := make(map[string]string)

	if req.ProductID == 0 {
		fields["product_id"] = "product_id is required"
	}
	if req.Quantity < 1 {
		fields["quantity"] = "quantity must be at least 1"
	}
	if req.ShippingFee.IsNegative() {
		fields["shipping_fee"] = "shipping_fee must not be negative"
	}
	if strings.TrimSpace(req.FullName) == "" {
		fields["customer_full_name"] = "customer_full_name is required"
	}
	if strings.TrimSpace(req.Email) == "" {
		fields["customer_email"] = "customer_email is required"
	}
	switch req.Country {
	case models.CountryAlbania, models.CountryKosovo, models.CountryMacedonia:
	default:
		fields["customer_country"] = "customer_country must be one of: albania, kosovo, macedonia"
	}

	if len(fields) > 0 {
		return &ValidationError{Fields: fields}
	}
	return nil
}

func newOrder(req *models.CreateOrderRequest, product *models.Product, price decimal.Decimal, now time.Time) *models.Order {
	subtotal := lineSubtotal(price, req.Quantity)
	shipping := req.ShippingFee.Round(2)

	color := req.ProductColor
	if color == "" {
		color = product.Color
	}

	var batchID *string
	if req.BatchID != nil && *req.BatchID != "" {
		id := *req.BatchID
		batchID = &id
	}

	return &models.Order{
		OrderNumber:      newOrderNumber(now),
		BatchID:          batchID,
		CustomerFullName: strings.TrimSpace(req.FullName),
		CustomerEmail:    strings.TrimSpace(req.Email),
		CustomerPhone:    strings.TrimSpace(req.Phone),
		CustomerAddress:  strings.TrimSpace(req.Address),
		CustomerCity:     strings.TrimSpace(req.City),
		CustomerCountry:  req.Country,
		ProductID:        product.ID,
		ProductName:      product.Name,
		ProductPrice:     price,
		ProductImage:     product.ImageURL,
		ProductSize:      strings.TrimSpace(req.ProductSize),
		ProductColor:     color,
		Quantity:         req.Quantity,
		Subtotal:         subtotal,
		ShippingFee:      shipping,
		TotalAmount:      subtotal.Add(shipping),
		Status:           models.StatusPending,
		Notes:            req.Notes,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
}

// newOrderNumber returns ORD-YYYYMMDD-XXXXXXXX.
func newOrderNumber(now time.Time) string {
	suffix := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:8])
	return fmt.Sprintf("ORD-%s-%s", now.UTC().Format("20060102"), suffix)
}

func (s *orderService) UpdateStatus(ctx context.Context, id uint64, status models.OrderStatus, notes string) (*models.Order, error) {
	ctx, span := s.tracer.Start(ctx, "OrderService.UpdateStatus")
	defer span.End()

	span.SetAttributes(
		attribute.Int64("order_id", int64(id)),
		attribute.String("status", string(status)),
	)

	if !status.Valid() {
		return nil, newValidationError("status", fmt.Sprintf("unknown status %q", status))
	}

	var (
		order *models.Order
		err   error
	)
	for attempt := 0; ; attempt++ {
		order, err = s.updateStatusOnce(ctx, id, status, notes)
		if err == nil || !repositories.IsLockConflict(err) || attempt >= s.lockRetries {
			break
		}

		utils.LogWarn(ctx, s.logger, "Lock conflict while updating order status, retrying",
			zap.Uint64("order_id", id),
			zap.Int("attempt", attempt+1),
			zap.Error(err),
		)
	}
	if err != nil {
		var transitionErr *TransitionError
		switch {
		case errors.As(err, &transitionErr):
			return nil, err
		case errors.Is(err, repositories.ErrOrderNotFound):
			return nil, &NotFoundError{Resource: "order", ID: id}
		case repositories.IsLockConflict(err):
			utils.LogWarn(ctx, s.logger, "Lock conflict retries exhausted",
				zap.Uint64("order_id", id),
				zap.Error(err),
			)
			return nil, &ConflictError{Err: err}
		}

		span.RecordError(err)
		utils.LogError(ctx, s.logger, "Failed to update order status",
			zap.Uint64("order_id", id),
			zap.String("status", string(status)),
			zap.Error(err),
		)
		return nil, &InternalError{Err: err}
	}

	utils.LogInfo(ctx, s.logger, "Order status updated",
		zap.String("order_number", order.OrderNumber),
		zap.String("status", string(order.Status)),
	)

	s.publish(ctx, order, models.EventStatusUpdated)
	return order, nil
}

func (s *orderService) updateStatusOnce(ctx context.Context, id uint64, status models.OrderStatus, notes string) (*models.Order, error) {
	var order *models.Order
	err := s.store.Transaction(ctx, func(repo repositories.Repository) error {
		var err error
		order, err = repo.LockOrder(ctx, id)
		if err != nil {
			return err
		}

		if !order.Status.CanTransitionTo(status) {
			return &TransitionError{From: string(order.Status), To: string(status)}
		}

		now := s.now()
		order.Status = status
		order.UpdatedAt = now
		switch status {
		case models.StatusConfirmed:
			if order.ConfirmedAt == nil {
				order.ConfirmedAt = &now
			}
		case models.StatusShipped:
			if order.ShippedAt == nil {
				order.ShippedAt = &now
			}
		case models.StatusDelivered:
			if order.DeliveredAt == nil {
				order.DeliveredAt = &now
			}
		}

		if notes = strings.TrimSpace(notes); notes != "" {
			if order.Notes != "" {
				order.Notes += "\n"
			}
			order.Notes += notes
		}

		return repo.SaveOrder(ctx, order)
	})
	if err != nil {
		return nil, err
	}
	return order, nil
}

func (s *orderService) GetOrder(ctx context.Context, id uint64) (*models.Order, error) {
	order, err := s.store.GetOrder(ctx, id)
	if err != nil {
		return nil, s.readError(ctx, "order", id, err)
	}
	return order, nil
}

func (s *orderService) GetOrderByNumber(ctx context.Context, number string) (*models.Order, error) {
	order, err := s.store.GetOrderByNumber(ctx, number)
	if err != nil {
		return nil, s.readError(ctx, "order", number, err)
	}
	return order, nil
}

func (s *orderService) ListOrders(ctx context.Context, filter models.OrderFilter) (*models.OrderPage, error) {
	if filter.Page < 1 {
		filter.Page = 1
	}
	if filter.PageSize < 1 || filter.PageSize > 100 {
		filter.PageSize = 20
	}
	if filter.Status != "" && !filter.Status.Valid() {
		return nil, newValidationError("status", fmt.Sprintf("unknown status %q", filter.Status))
	}

	orders, total, err := s.store.ListOrders(ctx, filter)
	if err != nil {
		utils.LogError(ctx, s.logger, "Failed to list orders", zap.Error(err))
		return nil, &InternalError{Err: err}
	}

	return &models.OrderPage{
		Orders:   orders,
		Total:    total,
		Page:     filter.Page,
		PageSize: filter.PageSize,
	}, nil
}

func (s *orderService) readError(ctx context.Context, resource string, id any, err error) error {
	if errors.Is(err, repositories.ErrOrderNotFound) {
		return &NotFoundError{Resource: resource, ID: id}
	}
	utils.LogError(ctx, s.logger, "Failed to read "+resource, zap.Any("id", id), zap.Error(err))
	return &InternalError{Err: err}
}

func (s *orderService) publish(ctx context.Context, order *models.Order, eventType string) {
	if s.publisher == nil {
		return
	}

	event := models.OrderEvent{
		OrderID:     order.ID,
		OrderNumber: order.OrderNumber,
		Type:        eventType,
		Status:      order.Status,
		Total:       order.TotalAmount,
		Email:       order.CustomerEmail,
		Occurred:    s.now(),
	}
	if order.BatchID != nil {
		event.BatchID = *order.BatchID
	}

	if err := s.publisher.PublishOrderEvent(ctx, event); err != nil {
		utils.LogWarn(ctx, s.logger, "Failed to publish order event",
			zap.String("order_number", order.OrderNumber),
			zap.String("type", eventType),
			zap.Error(err),
		)
	}
}
