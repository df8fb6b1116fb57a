package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"checkout-svc/checkout"
	"checkout-svc/coupons"
	"checkout-svc/database"
	"checkout-svc/handlers"
	"checkout-svc/kafka"
	"checkout-svc/middleware"
	"checkout-svc/rails"
	"checkout-svc/store"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.uber.org/zap"
)

func main() {
	// Initialize logger
	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	// Initialize database
	db, err := database.InitDB(logger)
	if err != nil {
		logger.Fatal("Failed to initialize database", zap.Error(err))
	}
	defer db.Close()

	// Initialize Kafka producer
	producer, err := kafka.InitProducer(logger)
	if err != nil {
		logger.Fatal("Failed to initialize Kafka producer", zap.Error(err))
	}
	defer producer.Close()

	// Redis only backs the coupon preview cache; checkout works without it.
	rdb, err := coupons.InitRedis(logger)
	if err != nil {
		logger.Warn("Redis unavailable, coupon previews will skip the cache", zap.Error(err))
		rdb = nil
	}

	// Initialize OpenTelemetry
	shutdown, err := middleware.InitTracing("checkout-svc")
	if err != nil {
		logger.Fatal("Failed to initialize tracing", zap.Error(err))
	}
	defer shutdown()

	orderStore := store.NewOrderStore(db, logger)
	reserver := coupons.NewReserver(db, logger)
	couponLookup := coupons.NewLookup(db, rdb, logger)
	directRail := rails.InitDirectClient(logger)
	gatewayRail := rails.InitGatewayClient(logger)

	sessions := checkout.NewSessionStore()
	orchestrator := checkout.NewOrchestrator(orderStore, reserver, directRail, gatewayRail, producer, logger)

	// Drop abandoned checkout sessions in the background.
	sweepCtx, stopSweep := context.WithCancel(context.Background())
	defer stopSweep()
	go func() {
		ticker := time.NewTicker(10 * time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-sweepCtx.Done():
				return
			case <-ticker.C:
				sessions.SweepExpired(logger)
			}
		}
	}()

	// Setup REST API with Gin
	router := gin.New()
	router.Use(gin.Recovery())
	// OpenTelemetry middleware must be first to extract trace context
	router.Use(otelgin.Middleware("checkout-svc"))
	router.Use(middleware.LoggerMiddleware(logger))
	router.Use(middleware.MetricsMiddleware())

	// Health check endpoint
	router.GET("/health", handlers.HealthCheck)

	// Metrics endpoint
	router.GET("/metrics", middleware.PrometheusHandler())

	checkoutHandler := handlers.NewCheckoutHandler(sessions, orchestrator, couponLookup, logger)

	authed := router.Group("/checkout", middleware.AuthMiddleware())
	authed.GET("/shipping-quotes", checkoutHandler.ShippingQuotes)
	authed.POST("/sessions", checkoutHandler.CreateSession)
	authed.GET("/sessions/:id", checkoutHandler.GetSession)
	authed.POST("/sessions/:id/submit", checkoutHandler.Submit)
	authed.POST("/sessions/:id/cancel", checkoutHandler.Cancel)

	srv := &http.Server{
		Addr:    ":" + getEnv("PORT", "8083"),
		Handler: router,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Failed to start REST server", zap.Error(err))
		}
	}()

	logger.Info("Checkout service started", zap.String("addr", srv.Addr))

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Fatal("Server forced to shutdown", zap.Error(err))
	}

	logger.Info("Server exited")
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
