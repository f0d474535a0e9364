package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// RedisLock serializes host approvals per property using a SETNX lock.
type RedisLock struct {
	client *redis.Client
}

// NewRedisLock creates a RedisLock and verifies connectivity.
func NewRedisLock(ctx context.Context, addr, password string, db int) (*RedisLock, error) {
	client := redis.NewClient(&redis.Options{Addr: addr, Password: password, DB: db})
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	return &RedisLock{client: client}, nil
}

// Acquire attempts to take the approval lock for a property. Returns false
// when another approval already holds it. The TTL bounds how long a crashed
// holder can block the property.
func (l *RedisLock) Acquire(ctx context.Context, propertyID uuid.UUID, ttl time.Duration) (bool, error) {
	return l.client.SetNX(ctx, approvalLockKey(propertyID), "locked", ttl).Result()
}

// Release frees the approval lock for a property.
func (l *RedisLock) Release(ctx context.Context, propertyID uuid.UUID) error {
	return l.client.Del(ctx, approvalLockKey(propertyID)).Err()
}

// Close releases the Redis connection.
func (l *RedisLock) Close() error {
	return l.client.Close()
}

func approvalLockKey(propertyID uuid.UUID) string {
	return fmt.Sprintf("lock:approval:property:%s", propertyID)
}
