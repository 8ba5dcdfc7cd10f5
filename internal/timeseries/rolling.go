package timeseries

import (
	"fmt"
	"math"
	"time"
)

// sample одно непустое значение переменной
type sample struct {
	ts time.Time
	v  float64
}

// RollingStats считает скользящее среднее и выборочное стандартное отклонение
// переменной по trailing-окну (t-window, t] для каждой строки ряда. Расчет
// причинный: точки позже t в полосу не попадают. Полоса выдается только для
// моментов, где в окне есть хотя бы одно значение; при единственном значении
// StdDev не определено (Count = 1). Неизвестная переменная — пустой результат,
// не ошибка: частичный отказ сенсора считается нормой.
//
// Скользящий аккумулятор sum/sumSq с двумя индексами дает O(n) по всему ряду.
func RollingStats(rs Series, variable string, window time.Duration) ([]Band, error) {
	if window <= 0 {
		return nil, fmt.Errorf("%w: window must be positive, got %v", ErrInvalidConfig, window)
	}

	samples := make([]sample, 0, len(rs))
	for _, p := range rs {
		if v, ok := p.Values[variable]; ok {
			samples = append(samples, sample{ts: p.Timestamp, v: v})
		}
	}
	if len(samples) == 0 {
		return nil, nil
	}

	bands := make([]Band, 0, len(rs))
	lo, hi := 0, 0
	var sum, sumSq float64

	for _, p := range rs {
		t := p.Timestamp

		// Втягиваем значения с метками <= t
		for hi < len(samples) && !samples[hi].ts.After(t) {
			sum += samples[hi].v
			sumSq += samples[hi].v * samples[hi].v
			hi++
		}

		// Вытесняем значения с метками <= t-window: окно (t-window, t]
		cut := t.Add(-window)
		for lo < hi && !samples[lo].ts.After(cut) {
			sum -= samples[lo].v
			sumSq -= samples[lo].v * samples[lo].v
			lo++
		}

		n := hi - lo
		if n == 0 {
			continue
		}

		mean := sum / float64(n)
		b := Band{Timestamp: t, Mean: mean, Count: n}
		if n >= 2 {
			variance := (sumSq - sum*sum/float64(n)) / float64(n-1)
			if variance < 0 {
				// защита от накопленной ошибки округления
				variance = 0
			}
			b.StdDev = math.Sqrt(variance)
		}
		bands = append(bands, b)
	}
	return bands, nil
}
