// Package report реализует агрегацию платежей за календарный месяц.
package report

import (
	"fmt"
	"math"
	"time"

	"github.com/mdpu/membership-system/internal/model"
)

// Фиксированный курс SLL к USD. Живые курсы сервис не запрашивает.
const sllPerUSD = 20000.0

// CountedStatuses — статусы платежей, попадающих в месячный отчёт.
var CountedStatuses = []model.PaymentStatus{
	model.PaymentStatusSucceeded,
	model.PaymentStatusVerified,
}

// PeriodBounds возвращает границы месяца [start, end) для периода YYYY-MM
// в указанной таймзоне.
func PeriodBounds(period string, loc *time.Location) (time.Time, time.Time, error) {
	t, err := time.ParseInLocation("2006-01", period, loc)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("parse period %q: %w", period, err)
	}

	start := time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, loc)
	end := start.AddDate(0, 1, 0)
	return start, end, nil
}

// PreviousPeriod возвращает период предыдущего календарного месяца
// относительно переданного момента времени.
func PreviousPeriod(now time.Time) string {
	firstOfMonth := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())
	return firstOfMonth.AddDate(0, -1, 0).Format("2006-01")
}

// Aggregate сворачивает платежи периода в месячный отчёт.
// Общая сумма считается в USD-эквиваленте: суммы в SLL делятся на
// фиксированный курс, суммы в USD берутся как есть, прочие валюты
// учитываются только в разрезе по валютам. Итог округляется до двух
// знаков, суммы по разрезам не округляются.
func Aggregate(period string, payments []model.Payment, generatedAt time.Time) model.MonthlyReport {
	r := model.MonthlyReport{
		Period:       period,
		ByCurrency:   make(map[string]float64),
		ByMethod:     make(map[string]float64),
		ByType:       make(map[string]float64),
		PaymentCount: len(payments),
		GeneratedAt:  generatedAt,
	}

	var total float64
	for _, p := range payments {
		switch p.Currency {
		case "SLL":
			total += p.Amount / sllPerUSD
		case "USD":
			total += p.Amount
		}

		r.ByCurrency[p.Currency] += p.Amount
		r.ByMethod[string(p.Method)] += p.Amount
		r.ByType[string(p.Type)] += p.Amount
	}

	r.TotalUSD = math.Round(total*100) / 100
	return r
}
