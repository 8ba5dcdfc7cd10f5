package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"sensor-dashboard/internal/cache"
	"sensor-dashboard/internal/dashboard"
	"sensor-dashboard/internal/metrics"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Provider источник данных дашборда; реализуется dashboard.Service
type Provider interface {
	Sensors() []string
	Snapshot(ctx context.Context, name string) (*dashboard.SensorSnapshot, error)
	RecentAnomalies(name string, limit int) ([]cache.AnomalyRecord, error)
	Stats() map[string]interface{}
}

// Handler обработчик HTTP запросов
type Handler struct {
	svc        Provider
	redisPing  func() error
	influxPing func(context.Context) error
}

// NewHandler создает новый обработчик
func NewHandler(svc Provider, redisPing func() error, influxPing func(context.Context) error) *Handler {
	return &Handler{
		svc:        svc,
		redisPing:  redisPing,
		influxPing: influxPing,
	}
}

// Router собирает маршруты API
func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()

	r.Route("/api", func(r chi.Router) {
		r.Get("/sensors", h.ListSensors)
		r.Get("/sensors/{sensor}/series", h.GetSeries)
		r.Get("/sensors/{sensor}/latest", h.GetLatest)
		r.Get("/sensors/{sensor}/anomalies", h.GetAnomalies)
	})
	r.Get("/health", h.HealthCheck)
	r.Get("/stats", h.GetStats)
	r.Handle("/metrics", promhttp.Handler())

	return r
}

// observe фиксирует метрики запроса
func observe(r *http.Request, endpoint, status string, start time.Time) {
	metrics.RequestsTotal.WithLabelValues(r.Method, endpoint, status).Inc()
	metrics.RequestDuration.WithLabelValues(r.Method, endpoint).Observe(time.Since(start).Seconds())
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// ListSensors обрабатывает GET /api/sensors
func (h *Handler) ListSensors(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	observe(r, "/api/sensors", "200", start)
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"sensors": h.svc.Sensors(),
	})
}

// GetSeries обрабатывает GET /api/sensors/{sensor}/series:
// ресемплированная серия с полосами и решениями для графиков
func (h *Handler) GetSeries(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	const endpoint = "/api/sensors/{sensor}/series"

	sensor := chi.URLParam(r, "sensor")
	snap, err := h.svc.Snapshot(r.Context(), sensor)
	if errors.Is(err, dashboard.ErrUnknownSensor) {
		observe(r, endpoint, "404", start)
		http.Error(w, "unknown sensor", http.StatusNotFound)
		return
	}
	if err != nil {
		observe(r, endpoint, "502", start)
		http.Error(w, "failed to load series", http.StatusBadGateway)
		return
	}

	observe(r, endpoint, "200", start)
	writeJSON(w, http.StatusOK, snap)
}

// GetLatest обрабатывает GET /api/sensors/{sensor}/latest:
// последнее показание каждого поля
func (h *Handler) GetLatest(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	const endpoint = "/api/sensors/{sensor}/latest"

	sensor := chi.URLParam(r, "sensor")
	snap, err := h.svc.Snapshot(r.Context(), sensor)
	if errors.Is(err, dashboard.ErrUnknownSensor) {
		observe(r, endpoint, "404", start)
		http.Error(w, "unknown sensor", http.StatusNotFound)
		return
	}
	if err != nil {
		observe(r, endpoint, "502", start)
		http.Error(w, "failed to load series", http.StatusBadGateway)
		return
	}

	type latest struct {
		Value float64   `json:"value"`
		At    time.Time `json:"at"`
	}
	fields := make(map[string]latest)
	for _, f := range snap.Fields {
		if f.HasLatest {
			fields[f.Field] = latest{Value: f.Latest, At: f.LatestAt}
		}
	}

	observe(r, endpoint, "200", start)
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"sensor": snap.Sensor,
		"fields": fields,
	})
}

// GetAnomalies обрабатывает GET /api/sensors/{sensor}/anomalies
func (h *Handler) GetAnomalies(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	const endpoint = "/api/sensors/{sensor}/anomalies"

	limit := 10
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			observe(r, endpoint, "400", start)
			http.Error(w, "limit must be a positive integer", http.StatusBadRequest)
			return
		}
		limit = n
	}

	sensor := chi.URLParam(r, "sensor")
	records, err := h.svc.RecentAnomalies(sensor, limit)
	if errors.Is(err, dashboard.ErrUnknownSensor) {
		observe(r, endpoint, "404", start)
		http.Error(w, "unknown sensor", http.StatusNotFound)
		return
	}
	if err != nil {
		observe(r, endpoint, "500", start)
		http.Error(w, "failed to retrieve anomalies", http.StatusInternalServerError)
		return
	}
	if records == nil {
		records = []cache.AnomalyRecord{}
	}

	observe(r, endpoint, "200", start)
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"sensor":        sensor,
		"anomaly_count": len(records),
		"anomalies":     records,
	})
}

// HealthCheck обрабатывает GET /health
func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	redisOK := h.redisPing == nil || h.redisPing() == nil

	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()
	influxOK := h.influxPing == nil || h.influxPing(ctx) == nil

	status := "healthy"
	httpStatus := http.StatusOK
	if !redisOK || !influxOK {
		status = "degraded"
		httpStatus = http.StatusServiceUnavailable
	}

	writeJSON(w, httpStatus, map[string]interface{}{
		"status":    status,
		"redis":     redisOK,
		"influx":    influxOK,
		"timestamp": time.Now().UTC(),
	})
}

// GetStats обрабатывает GET /stats
func (h *Handler) GetStats(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	observe(r, "/stats", "200", start)
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"service":   h.svc.Stats(),
		"timestamp": time.Now().UTC(),
	})
}
