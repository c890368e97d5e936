package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"storefront-order-service/middlewares"
)

func NewRouter(oc *OrderController, logger *zap.Logger, jwtSecret string) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middlewares.RequestLogger(logger))
	r.Use(middlewares.PrometheusMiddleware())

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	api := r.Group("/api")
	{
		api.POST("/orders", oc.CreateOrder)
		api.POST("/checkout", oc.Checkout)
		api.GET("/checkout/:batch", oc.GetBatch)
		api.GET("/orders/:number", oc.GetOrderByNumber)
	}

	admin := api.Group("/admin")
	admin.Use(middlewares.AdminAuth(jwtSecret))
	{
		admin.GET("/orders", oc.ListOrders)
		admin.GET("/orders/:id", oc.GetOrderDetails)
		admin.PUT("/orders/:id/status", oc.UpdateOrderStatus)
	}

	return r
}
