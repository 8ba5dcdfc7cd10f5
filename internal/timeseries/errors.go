package timeseries

import "errors"

// ErrInvalidConfig некорректные параметры расчета: неположительное окно,
// ширина корзины или порог сигм. Разреженные или пустые данные ошибкой
// не считаются — расчет деградирует до пустого результата.
var ErrInvalidConfig = errors.New("invalid detector configuration")
