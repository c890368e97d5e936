package controllers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"storefront-order-service/middlewares"
	"storefront-order-service/models"
	"storefront-order-service/services"
	"storefront-order-service/utils"
)

type OrderController struct {
	svc    services.OrderService
	logger *zap.Logger
}

func NewOrderController(svc services.OrderService, logger *zap.Logger) *OrderController {
	return &OrderController{svc: svc, logger: logger}
}

func (oc *OrderController) CreateOrder(c *gin.Context) {
	defer recordOperation(c, "create")

	var req models.CreateOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	order, err := oc.svc.PlaceOrder(c.Request.Context(), &req)
	if err != nil {
		middlewares.RecordRejection(rejectionReason(err))
		status, body := errorResponse(err)
		c.JSON(status, body)
		return
	}

	middlewares.RecordUnitsOrdered(order.Quantity)
	c.JSON(http.StatusCreated, order)
}

type lineFailure struct {
	Line           int               `json:"line"`
	ProductID      uint64            `json:"product_id"`
	Error          string            `json:"error"`
	Fields         map[string]string `json:"fields,omitempty"`
	AvailableSizes []string          `json:"available_sizes,omitempty"`
	Available      *int              `json:"available,omitempty"`
}

type checkoutResponse struct {
	BatchID         string          `json:"batch_id"`
	Orders          []models.Order  `json:"orders"`
	Failures        []lineFailure   `json:"failures,omitempty"`
	ShippingCharged decimal.Decimal `json:"shipping_charged"`
}

// Checkout places every cart line as its own order. 201 when all lines were
// placed, 207 when only some were, 422 when none were.
func (oc *OrderController) Checkout(c *gin.Context) {
	defer recordOperation(c, "checkout")

	var req models.CheckoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	middlewares.RecordCheckoutSize(len(req.Lines))
	result, err := oc.svc.Checkout(c.Request.Context(), &req)
	if err != nil {
		status, body := errorResponse(err)
		c.JSON(status, body)
		return
	}

	resp := checkoutResponse{
		BatchID:         result.BatchID,
		Orders:          result.Placed(),
		ShippingCharged: result.ShippingCharged(),
	}
	for _, o := range resp.Orders {
		middlewares.RecordUnitsOrdered(o.Quantity)
	}
	for _, f := range result.Failed() {
		failure := lineFailure{
			Line:      f.Line,
			ProductID: req.Lines[f.Line].ProductID,
			Error:     f.Err.Error(),
		}

		var (
			validationErr *services.ValidationError
			stockErr      *services.InsufficientStockError
		)
		switch {
		case errors.As(f.Err, &validationErr):
			failure.Fields = validationErr.Fields
			failure.AvailableSizes = validationErr.AvailableSizes
		case errors.As(f.Err, &stockErr):
			available := stockErr.Available
			failure.Available = &available
		}
		middlewares.RecordRejection(rejectionReason(f.Err))
		resp.Failures = append(resp.Failures, failure)
	}

	switch {
	case len(resp.Failures) == 0:
		c.JSON(http.StatusCreated, resp)
	case len(resp.Orders) > 0:
		c.JSON(http.StatusMultiStatus, resp)
	default:
		c.JSON(nonePlacedStatus(result.Failed()), resp)
	}
}

// nonePlacedStatus is 422 when every line was rejected for its input, and
// the server-side status otherwise so callers know a retry may succeed.
func nonePlacedStatus(failures []services.LineResult) int {
	status := http.StatusUnprocessableEntity
	for _, f := range failures {
		code, _ := errorResponse(f.Err)
		switch {
		case code == http.StatusInternalServerError:
			return code
		case code >= 500:
			status = code
		}
	}
	return status
}

func (oc *OrderController) GetBatch(c *gin.Context) {
	defer recordOperation(c, "batch_lookup")

	batch, err := oc.svc.GetBatch(c.Request.Context(), c.Param("batch"))
	if err != nil {
		status, body := errorResponse(err)
		c.JSON(status, body)
		return
	}

	c.JSON(http.StatusOK, batch)
}

func (oc *OrderController) GetOrderByNumber(c *gin.Context) {
	defer recordOperation(c, "lookup")

	order, err := oc.svc.GetOrderByNumber(c.Request.Context(), c.Param("number"))
	if err != nil {
		status, body := errorResponse(err)
		c.JSON(status, body)
		return
	}

	c.JSON(http.StatusOK, order)
}

func (oc *OrderController) ListOrders(c *gin.Context) {
	defer recordOperation(c, "list")

	var filter models.OrderFilter
	if err := c.ShouldBindQuery(&filter); err != nil {
		bindError(c, err)
		return
	}

	page, err := oc.svc.ListOrders(c.Request.Context(), filter)
	if err != nil {
		status, body := errorResponse(err)
		c.JSON(status, body)
		return
	}

	c.JSON(http.StatusOK, page)
}

func (oc *OrderController) GetOrderDetails(c *gin.Context) {
	defer recordOperation(c, "details")

	orderID, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid order ID"})
		return
	}

	order, err := oc.svc.GetOrder(c.Request.Context(), orderID)
	if err != nil {
		status, body := errorResponse(err)
		c.JSON(status, body)
		return
	}

	c.JSON(http.StatusOK, order)
}

func (oc *OrderController) UpdateOrderStatus(c *gin.Context) {
	defer recordOperation(c, "update_status")

	orderID, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid order ID"})
		return
	}

	var req models.UpdateStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	order, err := oc.svc.UpdateStatus(c.Request.Context(), orderID, req.Status, req.Notes)
	if err != nil {
		status, body := errorResponse(err)
		c.JSON(status, body)
		return
	}

	oc.logger.Info("Order status changed",
		zap.Uint64("order_id", orderID),
		zap.String("status", string(order.Status)),
		zap.Int("admin_id", c.GetInt("userID")),
	)
	c.JSON(http.StatusOK, order)
}

func recordOperation(c *gin.Context, operation string) {
	status := c.Writer.Status()
	middlewares.RecordOrderOperation(operation, status)
}

func bindError(c *gin.Context, err error) {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		c.JSON(http.StatusUnprocessableEntity, gin.H{
			"error":  "Validation failed",
			"fields": utils.FormatValidationError(err),
		})
		return
	}
	c.JSON(http.StatusBadRequest, gin.H{"error": "Malformed request body"})
}

// errorResponse maps service errors onto HTTP. Internal causes are never
// echoed; the service has already logged them.
func errorResponse(err error) (int, gin.H) {
	var (
		validationErr *services.ValidationError
		stockErr      *services.InsufficientStockError
		notFoundErr   *services.NotFoundError
		transitionErr *services.TransitionError
		conflictErr   *services.ConflictError
	)

	switch {
	case errors.As(err, &validationErr):
		body := gin.H{"error": "Validation failed", "fields": validationErr.Fields}
		if len(validationErr.AvailableSizes) > 0 {
			body["available_sizes"] = validationErr.AvailableSizes
		}
		return http.StatusUnprocessableEntity, body
	case errors.As(err, &stockErr):
		return http.StatusUnprocessableEntity, gin.H{"error": stockErr.Error(), "available": stockErr.Available}
	case errors.As(err, &notFoundErr):
		return http.StatusNotFound, gin.H{"error": notFoundErr.Error()}
	case errors.As(err, &transitionErr):
		return http.StatusUnprocessableEntity, gin.H{"error": transitionErr.Error()}
	case errors.As(err, &conflictErr):
		return http.StatusServiceUnavailable, gin.H{"error": conflictErr.Error()}
	default:
		return http.StatusInternalServerError, gin.H{"error": "Internal server error"}
	}
}

func rejectionReason(err error) string {
	switch {
	case errors.As(err, new(*services.ValidationError)):
		return "validation"
	case errors.As(err, new(*services.InsufficientStockError)):
		return "insufficient_stock"
	case errors.As(err, new(*services.NotFoundError)):
		return "not_found"
	case errors.As(err, new(*services.ConflictError)):
		return "conflict"
	default:
		return "internal"
	}
}
