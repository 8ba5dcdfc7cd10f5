package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RequestsTotal общее количество запросов
	RequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status"},
	)

	// RequestDuration продолжительность запросов
	RequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "endpoint"},
	)

	// InfluxQueries запросы к InfluxDB
	InfluxQueries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "influx_queries_total",
			Help: "Total number of InfluxDB queries",
		},
		[]string{"sensor", "status"},
	)

	// InfluxQueryDuration продолжительность запросов к InfluxDB
	InfluxQueryDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "influx_query_duration_seconds",
			Help:    "InfluxDB query duration in seconds",
			Buckets: []float64{.05, .1, .25, .5, 1, 2.5, 5, 10},
		},
	)

	// CacheOperations операции с Redis
	CacheOperations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cache_operations_total",
			Help: "Total number of Redis cache operations",
		},
		[]string{"operation", "status"},
	)

	// CacheLookups попадания и промахи кэша серий
	CacheLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cache_lookups_total",
			Help: "Series cache lookups by result",
		},
		[]string{"result"},
	)

	// AnomaliesDetected обнаруженные аномалии
	AnomaliesDetected = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "anomalies_detected_total",
			Help: "Total number of anomalies detected",
		},
		[]string{"sensor", "field"},
	)

	// RollingMean текущее скользящее среднее
	RollingMean = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "rolling_mean",
			Help: "Current rolling mean per sensor field",
		},
		[]string{"sensor", "field"},
	)

	// CurrentZScore текущий z-score
	CurrentZScore = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "current_zscore",
			Help: "Current z-score per sensor field",
		},
		[]string{"sensor", "field"},
	)

	// RefreshDuration продолжительность цикла обновления
	RefreshDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "refresh_duration_seconds",
			Help:    "Dashboard refresh cycle duration in seconds",
			Buckets: []float64{.1, .25, .5, 1, 2.5, 5, 10, 30},
		},
	)

	// LastRefresh момент последнего успешного обновления
	LastRefresh = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "last_refresh_timestamp_seconds",
			Help: "Unix timestamp of the last successful refresh",
		},
	)

	// ActiveSensors сенсоры, отдавшие данные в последнем цикле
	ActiveSensors = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "active_sensors",
			Help: "Number of sensors that returned data on the last refresh",
		},
	)
)
