package insights

import (
	"math"
	"sort"
	"time"

	"example.com/expense-agent/backend/internal/models"
)

const (
	periodLayout = "2006-01"

	topMerchantLimit = 5

	// Веса подоценок здоровья трат: следование бюджету, стабильность, норма сбережений.
	adherenceWeight  = 0.4
	volatilityWeight = 0.3
	savingsWeight    = 0.3

	neutralHealthScore = 50.0
)

// Agent детерминированно считает тренды, прогноз и оценку здоровья трат.
type Agent struct {
	forecastLookback int
}

// New создает агента аналитики с глубиной прогноза k периодов.
func New(forecastLookback int) *Agent {
	if forecastLookback <= 0 {
		forecastLookback = 3
	}

	return &Agent{forecastLookback: forecastLookback}
}

// BuildReport строит отчет по категоризированной истории расходов.
// Пустая история дает нейтральный отчет, а не ошибку.
func (a *Agent) BuildReport(history []models.Expense) models.InsightsReport {
	report := models.InsightsReport{
		TrendsByCategory:   make(map[models.Category][]models.PeriodTotal),
		ForecastNextPeriod: make(map[models.Category]int64),
		TopMerchants:       []models.MerchantTotal{},
		HealthScore:        neutralHealthScore,
	}

	if len(history) == 0 {
		return report
	}

	periods := periodRange(history)
	totalsByCategory := make(map[models.Category]map[string]int64)
	merchantTotals := make(map[string]int64)

	for _, expense := range history {
		period := expense.Date.Format(periodLayout)
		byPeriod, ok := totalsByCategory[expense.Category]
		if !ok {
			byPeriod = make(map[string]int64)
			totalsByCategory[expense.Category] = byPeriod
		}
		byPeriod[period] += expense.AmountCents

		if expense.Merchant != "" {
			merchantTotals[expense.Merchant] += expense.AmountCents
		}
	}

	// Пропущенные месяцы заполняются нулями: в трендах нет разрывов.
	for category, byPeriod := range totalsByCategory {
		trend := make([]models.PeriodTotal, 0, len(periods))
		for _, period := range periods {
			trend = append(trend, models.PeriodTotal{
				Period:      period,
				AmountCents: byPeriod[period],
			})
		}
		report.TrendsByCategory[category] = trend
		report.ForecastNextPeriod[category] = a.forecast(trend)
	}

	report.TopMerchants = topMerchants(merchantTotals)
	report.HealthScore = healthScore(history, periods, report.TrendsByCategory)

	return report
}

// forecast усредняет последние k периодов с линейно растущими весами;
// при нехватке периодов возвращает последнее наблюдение.
func (a *Agent) forecast(trend []models.PeriodTotal) int64 {
	if len(trend) == 0 {
		return 0
	}

	if len(trend) < a.forecastLookback {
		return trend[len(trend)-1].AmountCents
	}

	window := trend[len(trend)-a.forecastLookback:]
	weighted := 0.0
	weightSum := 0.0
	for i, point := range window {
		weight := float64(i + 1)
		weighted += weight * float64(point.AmountCents)
		weightSum += weight
	}

	return int64(math.Round(weighted / weightSum))
}

// periodRange возвращает все месяцы от самого раннего до самого позднего расхода.
func periodRange(history []models.Expense) []string {
	earliest := history[0].Date
	latest := history[0].Date
	for _, expense := range history[1:] {
		if expense.Date.Before(earliest) {
			earliest = expense.Date
		}
		if expense.Date.After(latest) {
			latest = expense.Date
		}
	}

	start := time.Date(earliest.Year(), earliest.Month(), 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(latest.Year(), latest.Month(), 1, 0, 0, 0, 0, time.UTC)

	periods := make([]string, 0, 12)
	for current := start; !current.After(end); current = current.AddDate(0, 1, 0) {
		periods = append(periods, current.Format(periodLayout))
	}
	return periods
}

func topMerchants(totals map[string]int64) []models.MerchantTotal {
	out := make([]models.MerchantTotal, 0, len(totals))
	for merchant, amount := range totals {
		out = append(out, models.MerchantTotal{Merchant: merchant, AmountCents: amount})
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].AmountCents != out[j].AmountCents {
			return out[i].AmountCents > out[j].AmountCents
		}
		return out[i].Merchant < out[j].Merchant
	})

	if len(out) > topMerchantLimit {
		out = out[:topMerchantLimit]
	}
	return out
}

// healthScore сводит следование 50/30/20, стабильность трат и норму
// сбережений в одну оценку от 0 до 100.
func healthScore(history []models.Expense, periods []string, trends map[models.Category][]models.PeriodTotal) float64 {
	var total int64
	actualByBucket := make(map[models.Bucket]int64, 3)
	for _, expense := range history {
		total += expense.AmountCents
		actualByBucket[models.BucketOf(expense.Category)] += expense.AmountCents
	}

	if total == 0 {
		return neutralHealthScore
	}

	needsRatio := float64(actualByBucket[models.BucketNeeds]) / float64(total)
	wantsRatio := float64(actualByBucket[models.BucketWants]) / float64(total)
	savingsRatio := float64(actualByBucket[models.BucketSavings]) / float64(total)

	deviation := math.Abs(needsRatio-0.5) + math.Abs(wantsRatio-0.3) + math.Abs(savingsRatio-0.2)
	adherence := 1 - deviation/2
	if adherence < 0 {
		adherence = 0
	}

	volatility := volatilityScore(periods, trends)

	savingsScore := savingsRatio / 0.2
	if savingsScore > 1 {
		savingsScore = 1
	}

	score := 100 * (adherenceWeight*adherence + volatilityWeight*volatility + savingsWeight*savingsScore)
	return math.Round(score*100) / 100
}

// volatilityScore обратно пропорционален разбросу месячных итогов.
func volatilityScore(periods []string, trends map[models.Category][]models.PeriodTotal) float64 {
	if len(periods) < 2 {
		return 1
	}

	totals := make([]float64, len(periods))
	for _, trend := range trends {
		for i, point := range trend {
			totals[i] += float64(point.AmountCents)
		}
	}

	mean := 0.0
	for _, value := range totals {
		mean += value
	}
	mean /= float64(len(totals))
	if mean == 0 {
		return 1
	}

	variance := 0.0
	for _, value := range totals {
		variance += (value - mean) * (value - mean)
	}
	variance /= float64(len(totals))

	cv := math.Sqrt(variance) / mean
	return 1 / (1 + cv)
}
