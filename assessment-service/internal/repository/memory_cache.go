package repository

import (
	"context"
	"sync/atomic"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// MemoryFeatureCache - кэш признаков в памяти одного процесса
type MemoryFeatureCache struct {
	items *gocache.Cache
	ttl   time.Duration

	hits   atomic.Int64
	misses atomic.Int64
}

// NewMemoryFeatureCache создает кэш с временем жизни записей ttl
func NewMemoryFeatureCache(ttl time.Duration) *MemoryFeatureCache {
	cleanup := ttl
	if cleanup <= 0 || cleanup > 10*time.Minute {
		cleanup = 10 * time.Minute
	}
	return &MemoryFeatureCache{
		items: gocache.New(ttl, cleanup),
		ttl:   ttl,
	}
}

// GetFeatures возвращает вектор по ключу и признак попадания
func (m *MemoryFeatureCache) GetFeatures(ctx context.Context, key string) ([]float64, bool, error) {
	v, ok := m.items.Get(featureKey(key))
	if !ok {
		m.misses.Add(1)
		return nil, false, nil
	}
	m.hits.Add(1)

	stored := v.([]float64)
	out := make([]float64, len(stored))
	copy(out, stored)
	return out, true, nil
}

// SetFeatures сохраняет вектор по ключу
func (m *MemoryFeatureCache) SetFeatures(ctx context.Context, key string, values []float64) error {
	stored := make([]float64, len(values))
	copy(stored, values)
	m.items.Set(featureKey(key), stored, gocache.DefaultExpiration)
	return nil
}

// CheckConnection всегда успешен
func (m *MemoryFeatureCache) CheckConnection(ctx context.Context) error {
	return nil
}

// GetStats возвращает число записей, попаданий и промахов
func (m *MemoryFeatureCache) GetStats() map[string]interface{} {
	return map[string]interface{}{
		"backend": "memory",
		"entries": m.items.ItemCount(),
		"hits":    m.hits.Load(),
		"misses":  m.misses.Load(),
		"ttl":     m.ttl.String(),
	}
}

// Close очищает кэш
func (m *MemoryFeatureCache) Close() error {
	m.items.Flush()
	return nil
}
