package config

import (
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/stayplace/service-booking/internal/platform/database"
)

// KafkaConfig holds Kafka connection settings.
type KafkaConfig struct {
	Brokers     []string
	GroupPrefix string
}

// RedisConfig holds Redis connection settings.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// ServiceConfig holds all configuration for the booking service.
type ServiceConfig struct {
	Port   string
	AppEnv string

	DBConfig    database.PostgresConfig
	KafkaConfig KafkaConfig
	RedisConfig RedisConfig

	MigrationsDir string

	// PaymentDeadline is how long a confirmed booking may await payment
	// before the timeout sweep cancels it.
	PaymentDeadline        time.Duration
	CompletionInterval     time.Duration
	PaymentTimeoutInterval time.Duration
	ApprovalLockTTL        time.Duration
}

// Load reads configuration from environment variables.
func Load() (*ServiceConfig, error) {
	v := viper.New()
	v.AutomaticEnv()

	v.SetDefault("SERVICE_PORT", "8085")
	v.SetDefault("APP_ENV", "development")

	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", "5432")
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "booking")
	v.SetDefault("DB_SSLMODE", "disable")

	v.SetDefault("KAFKA_BROKERS", "localhost:9092")
	v.SetDefault("KAFKA_GROUP_PREFIX", "service-booking")

	v.SetDefault("REDIS_ADDR", "localhost:6379")
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("MIGRATIONS_DIR", "migrations")

	v.SetDefault("PAYMENT_DEADLINE_HOURS", 24)
	v.SetDefault("COMPLETION_SWEEP_MINUTES", 60)
	v.SetDefault("PAYMENT_TIMEOUT_SWEEP_MINUTES", 15)
	v.SetDefault("APPROVAL_LOCK_TTL_SECONDS", 30)

	return &ServiceConfig{
		Port:   v.GetString("SERVICE_PORT"),
		AppEnv: v.GetString("APP_ENV"),
		DBConfig: database.PostgresConfig{
			Host:     v.GetString("DB_HOST"),
			Port:     v.GetString("DB_PORT"),
			User:     v.GetString("DB_USER"),
			Password: v.GetString("DB_PASSWORD"),
			DBName:   v.GetString("DB_NAME"),
			SSLMode:  v.GetString("DB_SSLMODE"),
		},
		KafkaConfig: KafkaConfig{
			Brokers:     strings.Split(v.GetString("KAFKA_BROKERS"), ","),
			GroupPrefix: v.GetString("KAFKA_GROUP_PREFIX"),
		},
		RedisConfig: RedisConfig{
			Addr:     v.GetString("REDIS_ADDR"),
			Password: v.GetString("REDIS_PASSWORD"),
			DB:       v.GetInt("REDIS_DB"),
		},
		MigrationsDir:          v.GetString("MIGRATIONS_DIR"),
		PaymentDeadline:        time.Duration(v.GetInt("PAYMENT_DEADLINE_HOURS")) * time.Hour,
		CompletionInterval:     time.Duration(v.GetInt("COMPLETION_SWEEP_MINUTES")) * time.Minute,
		PaymentTimeoutInterval: time.Duration(v.GetInt("PAYMENT_TIMEOUT_SWEEP_MINUTES")) * time.Minute,
		ApprovalLockTTL:        time.Duration(v.GetInt("APPROVAL_LOCK_TTL_SECONDS")) * time.Second,
	}, nil
}
