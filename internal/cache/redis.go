package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"sensor-dashboard/internal/timeseries"

	"github.com/redis/go-redis/v9"
)

// AnomalyRecord сохраненная аномалия вместе с источником
type AnomalyRecord struct {
	Sensor string                  `json:"sensor"`
	Field  string                  `json:"field"`
	Point  timeseries.AnomalyPoint `json:"point"`
}

// RedisCache обертка для Redis клиента
type RedisCache struct {
	client *redis.Client
	ctx    context.Context
	ttl    time.Duration
}

// NewRedisCache создает новый Redis кэш
func NewRedisCache(addr, password string, db int, ttl time.Duration) (*RedisCache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     password,
		DB:           db,
		PoolSize:     100,
		MinIdleConns: 10,
		MaxRetries:   3,
	})

	ctx := context.Background()

	// Проверяем подключение
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &RedisCache{
		client: client,
		ctx:    ctx,
		ttl:    ttl,
	}, nil
}

// seriesKey ключ кэша ресемплированной серии: (источник, окно, корзина)
func seriesKey(sensor string, rangeDays int, bucket time.Duration) string {
	return fmt.Sprintf("series:%s:%dd:%s", sensor, rangeDays, bucket)
}

// StoreSeries сохраняет ресемплированную серию с TTL
func (r *RedisCache) StoreSeries(sensor string, rangeDays int, bucket time.Duration, s timeseries.Series) error {
	jsonData, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("failed to marshal series: %w", err)
	}

	return r.client.Set(r.ctx, seriesKey(sensor, rangeDays, bucket), jsonData, r.ttl).Err()
}

// GetSeries возвращает серию из кэша; (nil, false, nil) при промахе
func (r *RedisCache) GetSeries(sensor string, rangeDays int, bucket time.Duration) (timeseries.Series, bool, error) {
	data, err := r.client.Get(r.ctx, seriesKey(sensor, rangeDays, bucket)).Bytes()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to get series: %w", err)
	}

	var s timeseries.Series
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, false, fmt.Errorf("failed to unmarshal series: %w", err)
	}
	return s, true, nil
}

// StoreAnomaly сохраняет аномалию (с более длительным TTL)
func (r *RedisCache) StoreAnomaly(rec AnomalyRecord) error {
	key := fmt.Sprintf("anomaly:%s:%s:%d", rec.Sensor, rec.Field, rec.Point.Timestamp.Unix())

	jsonData, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to marshal anomaly: %w", err)
	}

	// Аномалии хранятся дольше серий
	anomalyTTL := r.ttl * 24

	// Добавляем в sorted set для извлечения по времени
	score := float64(rec.Point.Timestamp.Unix())
	listKey := fmt.Sprintf("anomaly_list:%s", rec.Sensor)

	pipe := r.client.Pipeline()
	pipe.Set(r.ctx, key, jsonData, anomalyTTL)
	pipe.ZAdd(r.ctx, listKey, redis.Z{Score: score, Member: key})
	pipe.Expire(r.ctx, listKey, anomalyTTL)

	_, err = pipe.Exec(r.ctx)
	return err
}

// RecentAnomalies получает последние аномалии сенсора, новые первыми
func (r *RedisCache) RecentAnomalies(sensor string, limit int) ([]AnomalyRecord, error) {
	listKey := fmt.Sprintf("anomaly_list:%s", sensor)

	keys, err := r.client.ZRevRange(r.ctx, listKey, 0, int64(limit-1)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get anomalies: %w", err)
	}
	if len(keys) == 0 {
		return nil, nil
	}

	values, err := r.client.MGet(r.ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to load anomalies: %w", err)
	}

	records := make([]AnomalyRecord, 0, len(values))
	for _, v := range values {
		raw, ok := v.(string)
		if !ok {
			// значение истекло, в sorted set остался висячий ключ
			continue
		}
		var rec AnomalyRecord
		if err := json.Unmarshal([]byte(raw), &rec); err != nil {
			continue
		}
		records = append(records, rec)
	}
	return records, nil
}

// Close закрывает соединение с Redis
func (r *RedisCache) Close() error {
	return r.client.Close()
}

// Ping проверяет доступность Redis
func (r *RedisCache) Ping() error {
	return r.client.Ping(r.ctx).Err()
}

// GetStats возвращает статистику Redis
func (r *RedisCache) GetStats() map[string]interface{} {
	stats := r.client.PoolStats()

	return map[string]interface{}{
		"hits":        stats.Hits,
		"misses":      stats.Misses,
		"timeouts":    stats.Timeouts,
		"total_conns": stats.TotalConns,
		"idle_conns":  stats.IdleConns,
		"stale_conns": stats.StaleConns,
	}
}
