//go:build integration

package main_test

import (
	"context"
	"fmt"
	"net"
	"testing"
	"time"

	"github.com/google/uuid"
	kafkago "github.com/segmentio/kafka-go"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	kafkamodule "github.com/testcontainers/testcontainers-go/modules/kafka"
	"github.com/testcontainers/testcontainers-go/wait"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/stayplace/service-booking/internal/application"
	"github.com/stayplace/service-booking/internal/domain"
	bookingEvents "github.com/stayplace/service-booking/internal/events"
	"github.com/stayplace/service-booking/internal/platform/kafka"
	"github.com/stayplace/service-booking/internal/repository"
)

// testInfra holds shared test infrastructure.
type testInfra struct {
	DB           *gorm.DB
	KafkaBrokers []string
	Cleanup      func()
}

// bookingStack holds wired-up booking service components.
type bookingStack struct {
	Store           *repository.Store
	Ledger          *application.PromotionLedger
	BookingService  *application.BookingService
	ApprovalService *application.ApprovalService
	Completion      *application.CompletionReconciler
	Timeout         *application.PaymentTimeoutReconciler
	Consumer        *bookingEvents.PaymentEventConsumer
	CleanupProducer func()
}

// permissiveLock always grants the approval lock; lock contention itself is
// covered by unit tests.
type permissiveLock struct{}

func (permissiveLock) Acquire(ctx context.Context, propertyID uuid.UUID, ttl time.Duration) (bool, error) {
	return true, nil
}
func (permissiveLock) Release(ctx context.Context, propertyID uuid.UUID) error { return nil }

// setupContainers starts PostgreSQL and Kafka testcontainers and returns a connected GORM DB.
func setupContainers(t *testing.T) *testInfra {
	t.Helper()
	ctx := context.Background()

	pgReq := testcontainers.ContainerRequest{
		Image:        "postgres:16-alpine",
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_USER":     "test",
			"POSTGRES_PASSWORD": "test",
			"POSTGRES_DB":       "test_booking",
		},
		WaitingFor: wait.ForLog("database system is ready to accept connections").
			WithOccurrence(2).
			WithStartupTimeout(60 * time.Second),
	}
	pgContainer, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: pgReq,
		Started:          true,
	})
	require.NoError(t, err, "failed to start PostgreSQL container")

	pgHost, err := pgContainer.Host(ctx)
	require.NoError(t, err)
	pgPort, err := pgContainer.MappedPort(ctx, "5432")
	require.NoError(t, err)

	dsn := fmt.Sprintf("host=%s port=%s user=test password=test dbname=test_booking sslmode=disable", pgHost, pgPort.Port())

	// Poll until GORM can actually connect and ping.
	var db *gorm.DB
	require.Eventually(t, func() bool {
		var err error
		db, err = gorm.Open(postgres.Open(dsn), &gorm.Config{})
		if err != nil {
			return false
		}
		sqlDB, err := db.DB()
		if err != nil {
			return false
		}
		return sqlDB.Ping() == nil
	}, 30*time.Second, 1*time.Second, "PostgreSQL not ready for connections")

	require.NoError(t, db.AutoMigrate(
		&repository.BookingModel{},
		&repository.PromotionModel{},
		&repository.GrantModel{},
		&repository.UsageModel{},
	))

	// Start Kafka container using confluent-local (supports KRaft natively).
	kafkaContainer, err := kafkamodule.Run(ctx, "confluentinc/confluent-local:7.5.0")
	require.NoError(t, err, "failed to start Kafka container")

	kafkaBrokers, err := kafkaContainer.Brokers(ctx)
	require.NoError(t, err, "failed to get Kafka brokers")

	createTopics(t, kafkaBrokers, bookingEvents.TopicBookingEvents, bookingEvents.TopicPaymentEvents)

	cleanup := func() {
		if err := kafkaContainer.Terminate(ctx); err != nil {
			t.Logf("failed to terminate Kafka container: %v", err)
		}
		if err := pgContainer.Terminate(ctx); err != nil {
			t.Logf("failed to terminate PostgreSQL container: %v", err)
		}
	}

	return &testInfra{
		DB:           db,
		KafkaBrokers: kafkaBrokers,
		Cleanup:      cleanup,
	}
}

// setupBookingStack wires up the full booking service stack.
func setupBookingStack(t *testing.T, db *gorm.DB, brokers []string, paymentDeadline time.Duration) *bookingStack {
	t.Helper()
	logger, _ := zap.NewDevelopment()

	store := repository.NewStore(db)
	clock := domain.Clock(domain.UTCClock)
	producer := kafka.NewProducer(brokers, logger)
	publisher := bookingEvents.NewPublisher(producer, logger)

	ledger := application.NewPromotionLedger(store, clock, logger)
	bookingSvc := application.NewBookingService(store, ledger, publisher, clock, logger)
	approvalSvc := application.NewApprovalService(store, permissiveLock{}, 30*time.Second, publisher, clock, logger)
	completion := application.NewCompletionReconciler(store, publisher, clock, logger)
	timeout := application.NewPaymentTimeoutReconciler(store, ledger, publisher, paymentDeadline, clock, logger)

	groupID := fmt.Sprintf("test-booking-%s", uuid.New().String()[:8])
	consumer := bookingEvents.NewPaymentEventConsumer(brokers, groupID, bookingSvc, logger)

	return &bookingStack{
		Store:           store,
		Ledger:          ledger,
		BookingService:  bookingSvc,
		ApprovalService: approvalSvc,
		Completion:      completion,
		Timeout:         timeout,
		Consumer:        consumer,
		CleanupProducer: func() { _ = producer.Close() },
	}
}

// seedBookingModel inserts a booking row directly, bypassing the aggregate,
// so tests can put rows into any state with any timestamps.
func seedBookingModel(t *testing.T, db *gorm.DB, status string, checkIn, checkOut time.Time, confirmedAt *time.Time, promotionCode string) repository.BookingModel {
	t.Helper()
	now := time.Now().UTC()
	model := repository.BookingModel{
		ID:            uuid.New(),
		GuestID:       uuid.New(),
		PropertyID:    uuid.New(),
		GuestName:     "Integration Guest",
		GuestEmail:    "guest@example.com",
		CheckIn:       checkIn,
		CheckOut:      checkOut,
		Status:        status,
		Adults:        2,
		Children:      0,
		TotalPrice:    decimal.NewFromInt(500),
		PromotionCode: promotionCode,
		ConfirmedAt:   confirmedAt,
		Version:       1,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	require.NoError(t, db.Create(&model).Error, "failed to seed booking")
	return model
}

// seedPromotionWithGrant inserts a 20 percent promotion and an active grant
// for the given user.
func seedPromotionWithGrant(t *testing.T, db *gorm.DB, code string, userID uuid.UUID) repository.PromotionModel {
	t.Helper()
	now := time.Now().UTC()
	promo := repository.PromotionModel{
		ID:            uuid.New(),
		Code:          code,
		DiscountType:  "percentage",
		DiscountValue: decimal.NewFromInt(20),
		UsageLimit:    10,
		TimesUsed:     0,
		ValidFrom:     now.AddDate(0, 0, -1),
		ValidUntil:    now.AddDate(0, 1, 0),
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	require.NoError(t, db.Create(&promo).Error, "failed to seed promotion")

	grant := repository.GrantModel{
		ID:          uuid.New(),
		UserID:      userID,
		PromotionID: promo.ID,
		Status:      "active",
		Locked:      false,
		AssignedAt:  now,
		ExpiresAt:   now.AddDate(0, 1, 0),
		UpdatedAt:   now,
	}
	require.NoError(t, db.Create(&grant).Error, "failed to seed grant")
	return promo
}

// publishTestEvent publishes a CloudEvent to Kafka.
func publishTestEvent(t *testing.T, brokers []string, topic, source, eventType string, data interface{}) {
	t.Helper()
	logger, _ := zap.NewDevelopment()
	producer := kafka.NewProducer(brokers, logger)
	defer func() { _ = producer.Close() }()

	ce, err := kafka.NewCloudEvent(source, eventType, data)
	require.NoError(t, err, "failed to create cloud event")

	err = producer.PublishEvent(context.Background(), topic, ce)
	require.NoError(t, err, "failed to publish event")
}

// waitForBookingStatus polls the bookings table until the status matches.
func waitForBookingStatus(t *testing.T, db *gorm.DB, bookingID uuid.UUID, expectedStatus string, timeout time.Duration) repository.BookingModel {
	t.Helper()
	var result repository.BookingModel
	require.Eventually(t, func() bool {
		var model repository.BookingModel
		err := db.Where("id = ?", bookingID).First(&model).Error
		if err != nil {
			return false
		}
		if model.Status == expectedStatus {
			result = model
			return true
		}
		return false
	}, timeout, 200*time.Millisecond, "booking did not transition to %s", expectedStatus)
	return result
}

// consumeOneEvent reads from a Kafka topic until it finds an event of the expected type.
func consumeOneEvent(t *testing.T, brokers []string, topic, expectedType string, timeout time.Duration) kafka.CloudEvent {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	groupID := fmt.Sprintf("test-assert-%s", uuid.New().String()[:8])
	reader := kafkago.NewReader(kafkago.ReaderConfig{
		Brokers:     brokers,
		GroupID:     groupID,
		Topic:       topic,
		MinBytes:    1,
		MaxBytes:    10e6,
		StartOffset: kafkago.FirstOffset,
	})
	defer func() { _ = reader.Close() }()

	for {
		msg, err := reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				t.Fatalf("timed out waiting for event type %q on topic %q", expectedType, topic)
			}
			continue
		}
		ce, err := kafka.ParseCloudEvent(msg.Value)
		if err != nil {
			continue
		}
		if ce.Type == expectedType {
			return ce
		}
	}
}

// createTopics pre-creates Kafka topics so producers don't fail with "Unknown Topic".
func createTopics(t *testing.T, brokers []string, topics ...string) {
	t.Helper()
	conn, err := kafkago.Dial("tcp", brokers[0])
	require.NoError(t, err, "failed to dial Kafka for topic creation")
	defer conn.Close()

	controller, err := conn.Controller()
	require.NoError(t, err, "failed to get Kafka controller")

	controllerConn, err := kafkago.Dial("tcp", net.JoinHostPort(controller.Host, fmt.Sprintf("%d", controller.Port)))
	require.NoError(t, err, "failed to connect to Kafka controller")
	defer controllerConn.Close()

	topicConfigs := make([]kafkago.TopicConfig, len(topics))
	for i, topic := range topics {
		topicConfigs[i] = kafkago.TopicConfig{
			Topic:             topic,
			NumPartitions:     1,
			ReplicationFactor: 1,
		}
	}
	err = controllerConn.CreateTopics(topicConfigs...)
	require.NoError(t, err, "failed to create Kafka topics")

	// Give Kafka a moment to propagate topic metadata.
	time.Sleep(1 * time.Second)
}
