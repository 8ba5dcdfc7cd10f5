package timeseries

import (
	"fmt"
	"math"
	"time"
)

// DefaultSigma порог в сигмах по умолчанию
const DefaultSigma = 2.5

// DetectAnomalies помечает точки ряда, вышедшие за полосу mean ± k*stddev.
// Полоса считается по trailing-окну, включающему саму проверяемую точку
// (inclusive-политика: значение участвует в собственной полосе и слегка
// занижает z-score настоящего выброса). Флаг ставится строго: значение,
// равное границе полосы, аномалией не считается.
//
// В результат попадают только моменты, где значение переменной присутствует
// и в окне набралось не меньше двух значений; остальные моменты опускаются,
// а не помечаются false — по ним решение принять нельзя.
func DetectAnomalies(rs Series, variable string, window time.Duration, k float64) ([]AnomalyPoint, error) {
	if k <= 0 {
		return nil, fmt.Errorf("%w: sigma multiplier must be positive, got %v", ErrInvalidConfig, k)
	}

	bands, err := RollingStats(rs, variable, window)
	if err != nil {
		return nil, err
	}
	if len(bands) == 0 {
		return nil, nil
	}

	out := make([]AnomalyPoint, 0, len(bands))
	bi := 0
	for _, p := range rs {
		for bi < len(bands) && bands[bi].Timestamp.Before(p.Timestamp) {
			bi++
		}
		if bi >= len(bands) {
			break
		}
		if !bands[bi].Timestamp.Equal(p.Timestamp) {
			continue
		}

		v, ok := p.Values[variable]
		if !ok {
			// отсутствующее значение не оценивается
			continue
		}
		b := bands[bi]
		if b.Count < 2 {
			continue
		}

		ap := AnomalyPoint{
			Timestamp: p.Timestamp,
			Value:     v,
			Mean:      b.Mean,
			StdDev:    b.StdDev,
		}
		if b.StdDev > 0 {
			ap.Score = (v - b.Mean) / b.StdDev
			ap.Anomalous = math.Abs(v-b.Mean) > k*b.StdDev
		}
		out = append(out, ap)
	}
	return out, nil
}
