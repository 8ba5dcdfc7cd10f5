package timeseries

import (
	"sort"
	"time"
)

// TimePoint точка многомерного временного ряда
type TimePoint struct {
	// Timestamp момент наблюдения (UTC)
	Timestamp time.Time `json:"timestamp"`
	// Values значения по именам переменных; отсутствие ключа означает
	// отсутствие показания (не ноль и не NaN)
	Values map[string]float64 `json:"values"`
}

// Series временной ряд, упорядоченный по возрастанию Timestamp
type Series []TimePoint

// Band скользящая статистика переменной на момент времени.
// StdDev определено только при Count >= 2 (выборочное отклонение);
// одиночное значение разброса не имеет.
type Band struct {
	Timestamp time.Time `json:"timestamp"`
	Mean      float64   `json:"mean"`
	StdDev    float64   `json:"std_dev"`
	Count     int       `json:"count"`
}

// HasStdDev сообщает, определено ли стандартное отклонение
func (b Band) HasStdDev() bool {
	return b.Count >= 2
}

// AnomalyPoint решение по одной точке ряда вместе с полосой,
// по которой оно принято
type AnomalyPoint struct {
	Timestamp time.Time `json:"timestamp"`
	Value     float64   `json:"value"`
	Mean      float64   `json:"mean"`
	StdDev    float64   `json:"std_dev"`
	Score     float64   `json:"score"`
	Anomalous bool      `json:"anomalous"`
}

// Variables возвращает отсортированный список переменных, встречающихся в ряду
func (s Series) Variables() []string {
	seen := make(map[string]struct{})
	for _, p := range s {
		for name := range p.Values {
			seen[name] = struct{}{}
		}
	}

	names := make([]string, 0, len(seen))
	for name := range seen {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Latest возвращает последнее непустое значение переменной
func (s Series) Latest(variable string) (float64, time.Time, bool) {
	for i := len(s) - 1; i >= 0; i-- {
		if v, ok := s[i].Values[variable]; ok {
			return v, s[i].Timestamp, true
		}
	}
	return 0, time.Time{}, false
}
