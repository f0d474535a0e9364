package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/stayplace/service-booking/internal/application"
	"github.com/stayplace/service-booking/internal/cache"
	"github.com/stayplace/service-booking/internal/config"
	"github.com/stayplace/service-booking/internal/domain"
	bookingEvents "github.com/stayplace/service-booking/internal/events"
	"github.com/stayplace/service-booking/internal/handler"
	"github.com/stayplace/service-booking/internal/platform/database"
	"github.com/stayplace/service-booking/internal/platform/health"
	"github.com/stayplace/service-booking/internal/platform/kafka"
	"github.com/stayplace/service-booking/internal/platform/logger"
	"github.com/stayplace/service-booking/internal/platform/middleware"
	"github.com/stayplace/service-booking/internal/repository"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	// Initialize logger
	zapLogger, err := logger.NewNamed(cfg.AppEnv, "service-booking")
	if err != nil {
		log.Fatalf("failed to initialize logger: %v", err)
	}
	defer zapLogger.Sync()

	zapLogger.Info("starting service-booking",
		zap.String("port", cfg.Port),
	)

	// Connect to database
	db, err := database.Connect(cfg.DBConfig, zapLogger)
	if err != nil {
		zapLogger.Fatal("failed to connect to database", zap.Error(err))
	}

	// Run database migrations
	if cfg.AppEnv == "development" {
		if err := db.AutoMigrate(
			&repository.BookingModel{},
			&repository.PromotionModel{},
			&repository.GrantModel{},
			&repository.UsageModel{},
		); err != nil {
			zapLogger.Fatal("failed to auto-migrate", zap.Error(err))
		}
		zapLogger.Info("database migration completed (dev auto-migrate)")
	} else {
		if err := database.RunMigrations(cfg.DBConfig.DatabaseURL(), cfg.MigrationsDir, zapLogger); err != nil {
			zapLogger.Fatal("failed to run migrations", zap.Error(err))
		}
	}

	// Initialize Kafka producer
	kafkaProducer := kafka.NewProducer(cfg.KafkaConfig.Brokers, zapLogger)
	defer kafkaProducer.Close()
	publisher := bookingEvents.NewPublisher(kafkaProducer, zapLogger)

	// Initialize Redis approval lock
	approvalLock, err := cache.NewRedisLock(context.Background(), cfg.RedisConfig.Addr, cfg.RedisConfig.Password, cfg.RedisConfig.DB)
	if err != nil {
		zapLogger.Fatal("failed to connect to redis", zap.Error(err))
	}
	defer approvalLock.Close()

	// Initialize store and application services
	store := repository.NewStore(db)
	clock := domain.Clock(domain.UTCClock)

	ledger := application.NewPromotionLedger(store, clock, zapLogger)
	bookingService := application.NewBookingService(store, ledger, publisher, clock, zapLogger)
	approvalService := application.NewApprovalService(store, approvalLock, cfg.ApprovalLockTTL, publisher, clock, zapLogger)
	completionReconciler := application.NewCompletionReconciler(store, publisher, clock, zapLogger)
	timeoutReconciler := application.NewPaymentTimeoutReconciler(store, ledger, publisher, cfg.PaymentDeadline, clock, zapLogger)

	// Initialize Kafka consumer for payment events
	consumerGroupID := cfg.KafkaConfig.GroupPrefix + "-booking-service"
	paymentConsumer := bookingEvents.NewPaymentEventConsumer(
		cfg.KafkaConfig.Brokers,
		consumerGroupID,
		bookingService,
		zapLogger,
	)
	defer paymentConsumer.Close()

	// Start Kafka consumer in a goroutine
	consumerCtx, consumerCancel := context.WithCancel(context.Background())
	defer consumerCancel()

	go func() {
		zapLogger.Info("starting payment event consumer")
		if err := paymentConsumer.Start(consumerCtx); err != nil {
			if consumerCtx.Err() == nil {
				zapLogger.Error("payment event consumer failed", zap.Error(err))
			}
		}
	}()

	// Initialize HTTP handlers
	bookingHandler := handler.NewBookingHandler(bookingService, approvalService, ledger)
	adminHandler := handler.NewAdminHandler(bookingService, completionReconciler, timeoutReconciler)

	// Setup Gin router
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()

	// Apply global middleware
	router.Use(middleware.Recovery(zapLogger))
	router.Use(middleware.Logger(zapLogger))
	router.Use(middleware.RequestID())

	// Register health check routes
	healthHandler := health.NewHandler(db, "service-booking")
	healthHandler.RegisterRoutes(router)

	// Register API routes
	apiV1 := router.Group("/api/v1")
	bookingHandler.RegisterRoutes(apiV1)
	adminHandler.RegisterRoutes(apiV1)

	// Create HTTP server
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		zapLogger.Info("HTTP server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			zapLogger.Fatal("HTTP server failed", zap.Error(err))
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	zapLogger.Info("shutting down service-booking...")

	// Cancel Kafka consumer
	consumerCancel()

	// Shutdown HTTP server with timeout
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		zapLogger.Error("server forced to shutdown", zap.Error(err))
	}

	zapLogger.Info("service-booking stopped")
}
