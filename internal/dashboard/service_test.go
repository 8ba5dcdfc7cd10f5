package dashboard

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"sensor-dashboard/internal/cache"
	"sensor-dashboard/internal/config"
	"sensor-dashboard/internal/logger"
	"sensor-dashboard/internal/timeseries"
)

// mockFetcher отдает подготовленную серию и считает обращения
type mockFetcher struct {
	mu     sync.Mutex
	series map[string]timeseries.Series
	err    error
	calls  int
}

func (m *mockFetcher) FetchSeries(_ context.Context, sensor config.Sensor, _ int) (timeseries.Series, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if m.err != nil {
		return nil, m.err
	}
	return m.series[sensor.Name], nil
}

// mockStore кэш в памяти
type mockStore struct {
	mu        sync.Mutex
	series    map[string]timeseries.Series
	anomalies []cache.AnomalyRecord
}

func newMockStore() *mockStore {
	return &mockStore{series: make(map[string]timeseries.Series)}
}

func storeKey(sensor string, rangeDays int, bucket time.Duration) string {
	return fmt.Sprintf("%s:%d:%s", sensor, rangeDays, bucket)
}

func (m *mockStore) GetSeries(sensor string, rangeDays int, bucket time.Duration) (timeseries.Series, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.series[storeKey(sensor, rangeDays, bucket)]
	return s, ok, nil
}

func (m *mockStore) StoreSeries(sensor string, rangeDays int, bucket time.Duration, s timeseries.Series) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.series[storeKey(sensor, rangeDays, bucket)] = s
	return nil
}

func (m *mockStore) StoreAnomaly(rec cache.AnomalyRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.anomalies = append(m.anomalies, rec)
	return nil
}

func (m *mockStore) RecentAnomalies(sensor string, limit int) ([]cache.AnomalyRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []cache.AnomalyRecord
	for i := len(m.anomalies) - 1; i >= 0 && len(out) < limit; i-- {
		if m.anomalies[i].Sensor == sensor {
			out = append(out, m.anomalies[i])
		}
	}
	return out, nil
}

func testConfig() *config.Config {
	return &config.Config{
		RangeDays: 3,
		Detector: config.Detector{
			Bucket: time.Minute,
			Window: time.Hour,
			Sigma:  2.5,
		},
		Sensors: []config.Sensor{
			{Name: "Sensor_1", Measurement: "imu", FieldPattern: "accel_.+"},
		},
	}
}

// spikeSeries стабильная база и всплеск в последней точке
func spikeSeries(field string) timeseries.Series {
	base := time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC)
	s := make(timeseries.Series, 0, 21)
	for i := 0; i < 20; i++ {
		s = append(s, timeseries.TimePoint{
			Timestamp: base.Add(time.Duration(i) * time.Minute),
			Values:    map[string]float64{field: 5.0 + 0.1*float64(i%3)},
		})
	}
	s = append(s, timeseries.TimePoint{
		Timestamp: base.Add(20 * time.Minute),
		Values:    map[string]float64{field: 50.0},
	})
	return s
}

func newTestService(fetcher *mockFetcher, store *mockStore) *Service {
	return NewService(fetcher, store, testConfig(), logger.New("disabled"))
}

func TestSnapshot_ComputesFields(t *testing.T) {
	fetcher := &mockFetcher{series: map[string]timeseries.Series{"Sensor_1": spikeSeries("accel_x")}}
	svc := newTestService(fetcher, newMockStore())

	snap, err := svc.Snapshot(context.Background(), "Sensor_1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if snap.FromCache {
		t.Error("first snapshot must miss the cache")
	}
	if len(snap.Fields) != 1 || snap.Fields[0].Field != "accel_x" {
		t.Fatalf("fields: got %+v", snap.Fields)
	}

	f := snap.Fields[0]
	if f.Evaluated == 0 {
		t.Fatal("expected evaluable points")
	}
	if f.Anomalies != 1 {
		t.Errorf("anomalies: got %d, want 1", f.Anomalies)
	}
	if !f.HasLatest || f.Latest != 50.0 {
		t.Errorf("latest: got %v (has=%v), want 50.0", f.Latest, f.HasLatest)
	}
}

func TestSnapshot_UsesCache(t *testing.T) {
	fetcher := &mockFetcher{series: map[string]timeseries.Series{"Sensor_1": spikeSeries("accel_x")}}
	svc := newTestService(fetcher, newMockStore())

	if _, err := svc.Snapshot(context.Background(), "Sensor_1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	snap, err := svc.Snapshot(context.Background(), "Sensor_1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !snap.FromCache {
		t.Error("second snapshot must hit the cache")
	}
	if fetcher.calls != 1 {
		t.Errorf("fetcher calls: got %d, want 1", fetcher.calls)
	}
}

func TestSnapshot_UnknownSensor(t *testing.T) {
	svc := newTestService(&mockFetcher{}, newMockStore())

	_, err := svc.Snapshot(context.Background(), "Sensor_42")
	if !errors.Is(err, ErrUnknownSensor) {
		t.Errorf("expected ErrUnknownSensor, got %v", err)
	}
}

func TestSnapshot_FetchErrorPropagates(t *testing.T) {
	fetchErr := errors.New("influx unreachable")
	svc := newTestService(&mockFetcher{err: fetchErr}, newMockStore())

	_, err := svc.Snapshot(context.Background(), "Sensor_1")
	if !errors.Is(err, fetchErr) {
		t.Errorf("expected fetch error, got %v", err)
	}
}

func TestRefresh_StoresAnomaliesOnce(t *testing.T) {
	fetcher := &mockFetcher{series: map[string]timeseries.Series{"Sensor_1": spikeSeries("accel_x")}}
	store := newMockStore()
	svc := newTestService(fetcher, store)

	if err := svc.Refresh(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(store.anomalies) != 1 {
		t.Fatalf("stored anomalies: got %d, want 1", len(store.anomalies))
	}

	// повторный цикл по тем же данным не плодит дубликатов
	if err := svc.Refresh(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(store.anomalies) != 1 {
		t.Errorf("stored anomalies after second refresh: got %d, want 1", len(store.anomalies))
	}

	rec := store.anomalies[0]
	if rec.Sensor != "Sensor_1" || rec.Field != "accel_x" || !rec.Point.Anomalous {
		t.Errorf("unexpected record: %+v", rec)
	}
}

func TestRecentAnomalies_UnknownSensor(t *testing.T) {
	svc := newTestService(&mockFetcher{}, newMockStore())

	if _, err := svc.RecentAnomalies("Sensor_42", 10); !errors.Is(err, ErrUnknownSensor) {
		t.Errorf("expected ErrUnknownSensor, got %v", err)
	}
}
