package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/estate-sync/internal/config"
	"github.com/estate-sync/internal/models"
	"github.com/redis/go-redis/v9"
)

// RedisCache wraps the Redis client used as a read-through property cache.
type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisCache creates a new Redis cache connection
func NewRedisCache(cfg *config.RedisConfig, ttl time.Duration) (*RedisCache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         fmt.Sprintf("%s:%s", cfg.Host, cfg.Port),
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.MaxConnections,
		MinIdleConns: 2,
		MaxRetries:   3,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		PoolTimeout:  4 * time.Second,
	})

	// Test connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &RedisCache{client: client, ttl: ttl}, nil
}

// NewRedisCacheFromClient wraps an existing client. Used by tests.
func NewRedisCacheFromClient(client *redis.Client, ttl time.Duration) *RedisCache {
	return &RedisCache{client: client, ttl: ttl}
}

// Close closes the Redis connection
func (r *RedisCache) Close() error {
	if r.client != nil {
		return r.client.Close()
	}
	return nil
}

// Ping checks if Redis is reachable
func (r *RedisCache) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

// propertyKey is the cache key for one property detail.
func propertyKey(propertyID int64) string {
	return fmt.Sprintf("property:%d", propertyID)
}

// GetProperty returns a cached property detail, or (nil, false) on miss.
func (r *RedisCache) GetProperty(ctx context.Context, propertyID int64) (*models.Property, bool, error) {
	data, err := r.client.Get(ctx, propertyKey(propertyID)).Result()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}

	var property models.Property
	if err := json.Unmarshal([]byte(data), &property); err != nil {
		return nil, false, fmt.Errorf("failed to decode cached property: %w", err)
	}
	return &property, true, nil
}

// SetProperty caches a property detail with the configured TTL.
func (r *RedisCache) SetProperty(ctx context.Context, property *models.Property) error {
	data, err := json.Marshal(property)
	if err != nil {
		return fmt.Errorf("failed to encode property: %w", err)
	}
	return r.client.Set(ctx, propertyKey(property.PropertyID), data, r.ttl).Err()
}

// InvalidateProperties drops all cached property details. Called after a
// confirmed transaction so the next read observes post-transaction state.
func (r *RedisCache) InvalidateProperties(ctx context.Context) error {
	keys, err := r.client.Keys(ctx, "property:*").Result()
	if err != nil {
		return err
	}
	if len(keys) == 0 {
		return nil
	}
	return r.client.Del(ctx, keys...).Err()
}
