package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"storefront-order-service/config"
	"storefront-order-service/consumers"
	"storefront-order-service/controllers"
	"storefront-order-service/database"
	"storefront-order-service/rabbitmq"
	"storefront-order-service/repositories"
	"storefront-order-service/services"
	"storefront-order-service/utils"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger, err := config.NewLogger(cfg.LogLevel, cfg.Env)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer func() {
		_ = logger.Sync()
	}()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.TracingEndpoint != "" {
		tp, err := utils.InitTracer(ctx, "storefront-order-service", cfg.TracingEndpoint, cfg.Env)
		if err != nil {
			logger.Fatal("Tracer initialization failed", zap.Error(err))
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := tp.Shutdown(shutdownCtx); err != nil {
				logger.Warn("Failed to shut down tracer", zap.Error(err))
			}
		}()
	}

	db, err := database.Open(cfg, logger)
	if err != nil {
		logger.Fatal("Database initialization failed", zap.Error(err))
	}
	defer func() {
		if err := database.Close(db); err != nil {
			logger.Warn("Failed to close database", zap.Error(err))
		}
	}()

	rmq, err := rabbitmq.NewRabbitMQ(cfg, logger)
	if err != nil {
		logger.Fatal("RabbitMQ initialization failed", zap.Error(err))
	}
	defer rmq.Close()

	if err := rmq.SetupQueues(); err != nil {
		logger.Fatal("Failed to setup RabbitMQ queues", zap.Error(err))
	}

	consumer := consumers.NewOrderConsumer(consumers.NewLogNotifier(logger), logger)
	if err := consumer.Start(ctx, rmq.Channel, cfg); err != nil {
		logger.Fatal("Failed to start order consumer", zap.Error(err))
	}

	orderService := services.NewOrderService(repositories.NewStore(db), rmq, logger, services.Options{
		LockRetries:         cfg.LockRetries,
		CheckoutConcurrency: cfg.CheckoutConcurrency,
	})

	if cfg.Env == "prod" {
		gin.SetMode(gin.ReleaseMode)
	}
	utils.UseJSONFieldNames()
	router := controllers.NewRouter(controllers.NewOrderController(orderService, logger), logger, cfg.JWTSecret)

	srv := &http.Server{
		Addr:              cfg.HTTPPort,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("Order service starting", zap.String("addr", cfg.HTTPPort))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	logger.Info("Shutting down order service")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("Server shutdown failed", zap.Error(err))
	}
}
