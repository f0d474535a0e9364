package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/stayplace/service-booking/internal/application"
	"github.com/stayplace/service-booking/internal/config"
	"github.com/stayplace/service-booking/internal/domain"
	bookingEvents "github.com/stayplace/service-booking/internal/events"
	"github.com/stayplace/service-booking/internal/platform/database"
	"github.com/stayplace/service-booking/internal/platform/kafka"
	"github.com/stayplace/service-booking/internal/platform/logger"
	"github.com/stayplace/service-booking/internal/repository"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	zapLogger, err := logger.NewNamed(cfg.AppEnv, "service-booking-worker")
	if err != nil {
		log.Fatalf("failed to initialize logger: %v", err)
	}
	defer zapLogger.Sync()

	db, err := database.Connect(cfg.DBConfig, zapLogger)
	if err != nil {
		zapLogger.Fatal("failed to connect to database", zap.Error(err))
	}

	kafkaProducer := kafka.NewProducer(cfg.KafkaConfig.Brokers, zapLogger)
	defer kafkaProducer.Close()
	publisher := bookingEvents.NewPublisher(kafkaProducer, zapLogger)

	store := repository.NewStore(db)
	clock := domain.Clock(domain.UTCClock)

	ledger := application.NewPromotionLedger(store, clock, zapLogger)
	completion := application.NewCompletionReconciler(store, publisher, clock, zapLogger)
	timeout := application.NewPaymentTimeoutReconciler(store, ledger, publisher, cfg.PaymentDeadline, clock, zapLogger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	completionTicker := time.NewTicker(cfg.CompletionInterval)
	defer completionTicker.Stop()

	timeoutTicker := time.NewTicker(cfg.PaymentTimeoutInterval)
	defer timeoutTicker.Stop()

	zapLogger.Info("worker started",
		zap.Duration("completion_interval", cfg.CompletionInterval),
		zap.Duration("payment_timeout_interval", cfg.PaymentTimeoutInterval),
	)

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)

	for {
		select {
		case <-completionTicker.C:
			if _, err := completion.Run(ctx); err != nil {
				zapLogger.Error("completion sweep failed", zap.Error(err))
			}
		case <-timeoutTicker.C:
			if _, err := timeout.Run(ctx); err != nil {
				zapLogger.Error("payment-timeout sweep failed", zap.Error(err))
			}
		case s := <-sig:
			zapLogger.Info("received signal, shutting down", zap.String("signal", s.String()))
			return
		}
	}
}
