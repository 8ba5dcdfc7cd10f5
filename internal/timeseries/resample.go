package timeseries

import (
	"fmt"
	"sort"
	"time"
)

// DefaultBucket ширина корзины агрегации по умолчанию
const DefaultBucket = time.Minute

// bucketAcc аккумулятор среднего внутри одной корзины
type bucketAcc struct {
	sum float64
	n   int
}

// Resample агрегирует ряд с произвольными временными метками в корзины
// фиксированной ширины. Корзины полуоткрытые [t0, t0+bucket), выровнены по
// началу эпохи; значение корзины — среднее непустых значений переменной.
// Корзина без единой исходной точки не порождается (и не интерполируется).
func Resample(s Series, bucket time.Duration) (Series, error) {
	if bucket <= 0 {
		return nil, fmt.Errorf("%w: bucket width must be positive, got %v", ErrInvalidConfig, bucket)
	}

	buckets := make(map[int64]map[string]*bucketAcc)
	for _, p := range s {
		start := p.Timestamp.Truncate(bucket).UnixNano()
		vars, ok := buckets[start]
		if !ok {
			vars = make(map[string]*bucketAcc)
			buckets[start] = vars
		}
		for name, v := range p.Values {
			acc, ok := vars[name]
			if !ok {
				acc = &bucketAcc{}
				vars[name] = acc
			}
			acc.sum += v
			acc.n++
		}
	}

	starts := make([]int64, 0, len(buckets))
	for start := range buckets {
		starts = append(starts, start)
	}
	sort.Slice(starts, func(i, j int) bool { return starts[i] < starts[j] })

	out := make(Series, 0, len(starts))
	for _, start := range starts {
		values := make(map[string]float64, len(buckets[start]))
		for name, acc := range buckets[start] {
			values[name] = acc.sum / float64(acc.n)
		}
		out = append(out, TimePoint{
			Timestamp: time.Unix(0, start).UTC(),
			Values:    values,
		})
	}
	return out, nil
}
