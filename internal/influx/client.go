package influx

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"sensor-dashboard/internal/config"
	"sensor-dashboard/internal/metrics"
	"sensor-dashboard/internal/timeseries"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
)

// Client клиент InfluxDB, поставляющий сырые ряды показаний сенсоров
type Client struct {
	client   influxdb2.Client
	queryAPI api.QueryAPI
	bucket   string
}

// NewClient создает клиент InfluxDB
func NewClient(cfg config.Influx) *Client {
	client := influxdb2.NewClient(cfg.URL, cfg.Token)
	return &Client{
		client:   client,
		queryAPI: client.QueryAPI(cfg.Org),
		bucket:   cfg.Bucket,
	}
}

// buildQuery строит Flux запрос: исторический диапазон, фильтры по тегу
// сенсора, measurement и regex полей. Агрегация по минутным корзинам
// выполняется на нашей стороне (timeseries.Resample), не в запросе.
func buildQuery(bucket string, sensor config.Sensor, rangeDays int) string {
	return fmt.Sprintf(`from(bucket: %q)
  |> range(start: -%dd)
  |> filter(fn: (r) => r["sensor"] == %q)
  |> filter(fn: (r) => r["_measurement"] == %q)
  |> filter(fn: (r) => r["_field"] =~ /%s/)`,
		bucket, rangeDays, sensor.Name, sensor.Measurement, sensor.FieldPattern)
}

// FetchSeries выполняет запрос и сворачивает плоские записи (одна на поле
// и момент времени) в многомерные точки, отсортированные по возрастанию.
// Повтор (время, поле) перезаписывает значение: побеждает последняя запись.
func (c *Client) FetchSeries(ctx context.Context, sensor config.Sensor, rangeDays int) (timeseries.Series, error) {
	start := time.Now()

	result, err := c.queryAPI.Query(ctx, buildQuery(c.bucket, sensor, rangeDays))
	if err != nil {
		metrics.InfluxQueries.WithLabelValues(sensor.Name, "error").Inc()
		return nil, fmt.Errorf("influx query for %s failed: %w", sensor.Name, err)
	}

	byTime := make(map[int64]map[string]float64)
	for result.Next() {
		rec := result.Record()
		v, ok := rec.Value().(float64)
		if !ok {
			continue
		}
		ts := rec.Time().UnixNano()
		vals, ok := byTime[ts]
		if !ok {
			vals = make(map[string]float64)
			byTime[ts] = vals
		}
		vals[rec.Field()] = v
	}
	if err := result.Err(); err != nil {
		metrics.InfluxQueries.WithLabelValues(sensor.Name, "error").Inc()
		return nil, fmt.Errorf("influx result for %s failed: %w", sensor.Name, err)
	}

	stamps := make([]int64, 0, len(byTime))
	for ts := range byTime {
		stamps = append(stamps, ts)
	}
	sort.Slice(stamps, func(i, j int) bool { return stamps[i] < stamps[j] })

	series := make(timeseries.Series, 0, len(stamps))
	for _, ts := range stamps {
		series = append(series, timeseries.TimePoint{
			Timestamp: time.Unix(0, ts).UTC(),
			Values:    byTime[ts],
		})
	}

	metrics.InfluxQueries.WithLabelValues(sensor.Name, "success").Inc()
	metrics.InfluxQueryDuration.Observe(time.Since(start).Seconds())
	return series, nil
}

// Ping проверяет доступность InfluxDB
func (c *Client) Ping(ctx context.Context) error {
	ok, err := c.client.Ping(ctx)
	if err != nil {
		return err
	}
	if !ok {
		return errors.New("influxdb is not ready")
	}
	return nil
}

// Close закрывает клиент
func (c *Client) Close() {
	c.client.Close()
}
