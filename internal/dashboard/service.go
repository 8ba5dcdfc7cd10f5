package dashboard

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"sensor-dashboard/internal/cache"
	"sensor-dashboard/internal/config"
	"sensor-dashboard/internal/logger"
	"sensor-dashboard/internal/metrics"
	"sensor-dashboard/internal/timeseries"
)

// ErrUnknownSensor запрошен сенсор, которого нет в конфигурации
var ErrUnknownSensor = errors.New("unknown sensor")

// Fetcher источник сырых временных рядов
type Fetcher interface {
	FetchSeries(ctx context.Context, sensor config.Sensor, rangeDays int) (timeseries.Series, error)
}

// Store кэш ресемплированных серий и журнал аномалий
type Store interface {
	GetSeries(sensor string, rangeDays int, bucket time.Duration) (timeseries.Series, bool, error)
	StoreSeries(sensor string, rangeDays int, bucket time.Duration, s timeseries.Series) error
	StoreAnomaly(rec cache.AnomalyRecord) error
	RecentAnomalies(sensor string, limit int) ([]cache.AnomalyRecord, error)
}

// FieldSnapshot состояние одной переменной сенсора
type FieldSnapshot struct {
	Field  string                    `json:"field"`
	Bands  []timeseries.Band         `json:"bands"`
	Points []timeseries.AnomalyPoint `json:"points"`
	// Evaluated число точек, по которым решение было принято; ноль означает
	// "данных недостаточно", а не "аномалий нет"
	Evaluated int `json:"evaluated"`
	Anomalies int `json:"anomalies"`

	Latest    float64   `json:"latest,omitempty"`
	LatestAt  time.Time `json:"latest_at,omitempty"`
	HasLatest bool      `json:"has_latest"`
}

// SensorSnapshot результат полного цикла по одному сенсору
type SensorSnapshot struct {
	Sensor    string            `json:"sensor"`
	Resampled timeseries.Series `json:"resampled"`
	Fields    []FieldSnapshot   `json:"fields"`
	FromCache bool              `json:"from_cache"`
	UpdatedAt time.Time         `json:"updated_at"`
}

// Service связывает источник данных, детектор и кэш
type Service struct {
	fetcher Fetcher
	store   Store
	cfg     *config.Config
	log     *logger.Logger

	mu          sync.Mutex
	lastAnomaly map[string]time.Time
	lastRefresh time.Time
}

// NewService создает сервис дашборда
func NewService(fetcher Fetcher, store Store, cfg *config.Config, log *logger.Logger) *Service {
	return &Service{
		fetcher:     fetcher,
		store:       store,
		cfg:         cfg,
		log:         log,
		lastAnomaly: make(map[string]time.Time),
	}
}

// Sensors возвращает имена сконфигурированных сенсоров
func (s *Service) Sensors() []string {
	names := make([]string, 0, len(s.cfg.Sensors))
	for _, sensor := range s.cfg.Sensors {
		names = append(names, sensor.Name)
	}
	return names
}

func (s *Service) sensorConfig(name string) (config.Sensor, error) {
	for _, sensor := range s.cfg.Sensors {
		if sensor.Name == name {
			return sensor, nil
		}
	}
	return config.Sensor{}, fmt.Errorf("%w: %s", ErrUnknownSensor, name)
}

// loadSeries возвращает ресемплированную серию: сперва кэш, при промахе
// запрос к источнику и ресемплирование с последующим сохранением
func (s *Service) loadSeries(ctx context.Context, sensor config.Sensor) (timeseries.Series, bool, error) {
	cached, ok, err := s.store.GetSeries(sensor.Name, s.cfg.RangeDays, s.cfg.Detector.Bucket)
	if err != nil {
		metrics.CacheOperations.WithLabelValues("get_series", "error").Inc()
		s.log.Warn().Err(err).Str("sensor", sensor.Name).Msg("series cache read failed")
	} else if ok {
		metrics.CacheLookups.WithLabelValues("hit").Inc()
		return cached, true, nil
	}
	metrics.CacheLookups.WithLabelValues("miss").Inc()

	raw, err := s.fetcher.FetchSeries(ctx, sensor, s.cfg.RangeDays)
	if err != nil {
		return nil, false, err
	}

	resampled, err := timeseries.Resample(raw, s.cfg.Detector.Bucket)
	if err != nil {
		return nil, false, err
	}

	if err := s.store.StoreSeries(sensor.Name, s.cfg.RangeDays, s.cfg.Detector.Bucket, resampled); err != nil {
		metrics.CacheOperations.WithLabelValues("store_series", "error").Inc()
		s.log.Warn().Err(err).Str("sensor", sensor.Name).Msg("series cache write failed")
	} else {
		metrics.CacheOperations.WithLabelValues("store_series", "success").Inc()
	}
	return resampled, false, nil
}

// Snapshot считает полный снимок по сенсору: серия, полосы, аномалии
// и последние значения по каждому полю
func (s *Service) Snapshot(ctx context.Context, name string) (*SensorSnapshot, error) {
	sensor, err := s.sensorConfig(name)
	if err != nil {
		return nil, err
	}

	resampled, fromCache, err := s.loadSeries(ctx, sensor)
	if err != nil {
		return nil, err
	}

	snap := &SensorSnapshot{
		Sensor:    sensor.Name,
		Resampled: resampled,
		FromCache: fromCache,
		UpdatedAt: time.Now().UTC(),
	}

	for _, field := range resampled.Variables() {
		bands, err := timeseries.RollingStats(resampled, field, s.cfg.Detector.Window)
		if err != nil {
			return nil, err
		}
		points, err := timeseries.DetectAnomalies(resampled, field, s.cfg.Detector.Window, s.cfg.Detector.Sigma)
		if err != nil {
			return nil, err
		}

		fs := FieldSnapshot{
			Field:     field,
			Bands:     bands,
			Points:    points,
			Evaluated: len(points),
		}
		for _, p := range points {
			if p.Anomalous {
				fs.Anomalies++
			}
		}
		if v, at, ok := resampled.Latest(field); ok {
			fs.Latest = v
			fs.LatestAt = at
			fs.HasLatest = true
		}
		snap.Fields = append(snap.Fields, fs)
	}
	return snap, nil
}

// RecentAnomalies возвращает последние сохраненные аномалии сенсора
func (s *Service) RecentAnomalies(name string, limit int) ([]cache.AnomalyRecord, error) {
	if _, err := s.sensorConfig(name); err != nil {
		return nil, err
	}
	records, err := s.store.RecentAnomalies(name, limit)
	if err != nil {
		metrics.CacheOperations.WithLabelValues("get_anomalies", "error").Inc()
		return nil, err
	}
	metrics.CacheOperations.WithLabelValues("get_anomalies", "success").Inc()
	return records, nil
}

// Refresh пересчитывает все сенсоры, публикует gauge-метрики и сохраняет
// новые аномалии. Планирование периодического вызова — забота вызывающего.
func (s *Service) Refresh(ctx context.Context) error {
	start := time.Now()
	active := 0
	var firstErr error

	for _, sensor := range s.cfg.Sensors {
		snap, err := s.Snapshot(ctx, sensor.Name)
		if err != nil {
			s.log.Error().Err(err).Str("sensor", sensor.Name).Msg("refresh failed")
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		if len(snap.Resampled) > 0 {
			active++
		}
		s.publish(snap)
	}

	metrics.ActiveSensors.Set(float64(active))
	metrics.RefreshDuration.Observe(time.Since(start).Seconds())
	if firstErr == nil {
		metrics.LastRefresh.Set(float64(time.Now().Unix()))
		s.mu.Lock()
		s.lastRefresh = time.Now().UTC()
		s.mu.Unlock()
	}
	return firstErr
}

// publish обновляет метрики по снимку и записывает новые аномалии
func (s *Service) publish(snap *SensorSnapshot) {
	for _, f := range snap.Fields {
		if n := len(f.Bands); n > 0 {
			metrics.RollingMean.WithLabelValues(snap.Sensor, f.Field).Set(f.Bands[n-1].Mean)
		}
		if n := len(f.Points); n > 0 {
			metrics.CurrentZScore.WithLabelValues(snap.Sensor, f.Field).Set(f.Points[n-1].Score)
		}

		for _, p := range f.Points {
			if !p.Anomalous {
				continue
			}
			// окно пересчитывается целиком каждый цикл, поэтому уже
			// учтенные аномалии отсекаются по времени
			key := snap.Sensor + "|" + f.Field
			s.mu.Lock()
			seen := s.lastAnomaly[key]
			isNew := p.Timestamp.After(seen)
			if isNew {
				s.lastAnomaly[key] = p.Timestamp
			}
			s.mu.Unlock()
			if !isNew {
				continue
			}

			metrics.AnomaliesDetected.WithLabelValues(snap.Sensor, f.Field).Inc()
			rec := cache.AnomalyRecord{Sensor: snap.Sensor, Field: f.Field, Point: p}
			if err := s.store.StoreAnomaly(rec); err != nil {
				metrics.CacheOperations.WithLabelValues("store_anomaly", "error").Inc()
				s.log.Error().Err(err).Str("sensor", snap.Sensor).Str("field", f.Field).Msg("anomaly store failed")
				continue
			}
			metrics.CacheOperations.WithLabelValues("store_anomaly", "success").Inc()
			s.log.Warn().
				Str("sensor", snap.Sensor).
				Str("field", f.Field).
				Time("at", p.Timestamp).
				Float64("value", p.Value).
				Float64("score", p.Score).
				Msg("anomaly detected")
		}
	}
}

// Stats возвращает статистику сервиса
func (s *Service) Stats() map[string]interface{} {
	s.mu.Lock()
	defer s.mu.Unlock()

	return map[string]interface{}{
		"sensors":      len(s.cfg.Sensors),
		"range_days":   s.cfg.RangeDays,
		"bucket":       s.cfg.Detector.Bucket.String(),
		"window":       s.cfg.Detector.Window.String(),
		"sigma":        s.cfg.Detector.Sigma,
		"last_refresh": s.lastRefresh,
	}
}
