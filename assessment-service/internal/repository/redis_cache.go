package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"
)

func featureKey(key string) string {
	return fmt.Sprintf("features:%s", key)
}

// RedisFeatureCache хранит векторы признаков в Redis, общем для реплик
type RedisFeatureCache struct {
	client *redis.Client
	ttl    time.Duration

	hits   atomic.Int64
	misses atomic.Int64
}

// NewRedisFeatureCache подключается к Redis по addr
func NewRedisFeatureCache(addr, password string, db int, ttl time.Duration) *RedisFeatureCache {
	return NewRedisFeatureCacheFromClient(redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	}), ttl)
}

// NewRedisFeatureCacheFromClient использует готовый клиент
func NewRedisFeatureCacheFromClient(client *redis.Client, ttl time.Duration) *RedisFeatureCache {
	return &RedisFeatureCache{
		client: client,
		ttl:    ttl,
	}
}

// GetFeatures возвращает вектор по ключу и признак попадания
func (r *RedisFeatureCache) GetFeatures(ctx context.Context, key string) ([]float64, bool, error) {
	data, err := r.client.Get(ctx, featureKey(key)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			r.misses.Add(1)
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("failed to get features from Redis: %w", err)
	}

	var values []float64
	if err := json.Unmarshal(data, &values); err != nil {
		return nil, false, fmt.Errorf("failed to unmarshal features: %w", err)
	}

	r.hits.Add(1)
	return values, true, nil
}

// SetFeatures сохраняет вектор с TTL
func (r *RedisFeatureCache) SetFeatures(ctx context.Context, key string, values []float64) error {
	data, err := json.Marshal(values)
	if err != nil {
		return fmt.Errorf("failed to marshal features: %w", err)
	}

	if err := r.client.Set(ctx, featureKey(key), data, r.ttl).Err(); err != nil {
		return fmt.Errorf("failed to save features to Redis: %w", err)
	}
	return nil
}

// CheckConnection выполняет PING
func (r *RedisFeatureCache) CheckConnection(ctx context.Context) error {
	if err := r.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping: %w", err)
	}
	return nil
}

// GetStats возвращает число попаданий и промахов
func (r *RedisFeatureCache) GetStats() map[string]interface{} {
	return map[string]interface{}{
		"backend": "redis",
		"hits":    r.hits.Load(),
		"misses":  r.misses.Load(),
		"ttl":     r.ttl.String(),
	}
}

// Close закрывает клиент
func (r *RedisFeatureCache) Close() error {
	log.Printf("[INFO] Closing Redis feature cache")
	return r.client.Close()
}
