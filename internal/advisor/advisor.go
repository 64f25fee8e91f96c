package advisor

import (
	"errors"
	"fmt"
	"math"
	"time"

	"example.com/expense-agent/backend/internal/models"
)

// ErrInvalidIncome возвращается при отрицательном доходе.
var ErrInvalidIncome = errors.New("income cannot be negative")

// Канонические доли правила 50/30/20.
var targetRatios = map[models.Bucket]float64{
	models.BucketNeeds:   0.50,
	models.BucketWants:   0.30,
	models.BucketSavings: 0.20,
}

// AdjustmentSource выдает пользовательские переопределения долей корзин.
type AdjustmentSource interface {
	BudgetAdjustment(bucket models.Bucket) (float64, bool)
}

// Advisor строит план бюджета из истории расходов и заявленного дохода.
type Advisor struct {
	overageTolerance float64
	now              func() time.Time
}

// New создает бюджетного советника с допуском перерасхода в долях дохода.
func New(overageTolerance float64) *Advisor {
	return &Advisor{
		overageTolerance: overageTolerance,
		now:              time.Now,
	}
}

// BuildPlan детерминированно вычисляет распределение по корзинам и советы.
// Три выделенные суммы всегда складываются ровно в доход.
func (a *Advisor) BuildPlan(history []models.Expense, incomeCents int64, adjustments AdjustmentSource) (models.BudgetPlan, error) {
	if incomeCents < 0 {
		return models.BudgetPlan{}, ErrInvalidIncome
	}

	actualByBucket := make(map[models.Bucket]int64, 3)
	spendingByCategory := make(map[models.Category]int64)
	for _, bucket := range models.AllBuckets() {
		actualByBucket[bucket] = 0
	}
	for _, expense := range history {
		bucket := models.BucketOf(expense.Category)
		actualByBucket[bucket] += expense.AmountCents
		spendingByCategory[expense.Category] += expense.AmountCents
	}

	ratios := adjustedRatios(adjustments)
	allocations := allocate(incomeCents, ratios)

	plan := models.BudgetPlan{
		BucketAllocations:  allocations,
		ActualByBucket:     actualByBucket,
		SpendingByCategory: spendingByCategory,
		GeneratedAt:        a.now().UTC(),
	}

	if incomeCents == 0 {
		plan.Recommendations = []string{
			"Declare your monthly income to receive a personalized budget allocation.",
		}
		return plan, nil
	}

	plan.Recommendations = a.buildRecommendations(incomeCents, actualByBucket, spendingByCategory)
	return plan, nil
}

// adjustedRatios применяет переопределения пользователя и нормирует доли к 1.0.
func adjustedRatios(adjustments AdjustmentSource) map[models.Bucket]float64 {
	ratios := make(map[models.Bucket]float64, 3)
	total := 0.0
	for bucket, target := range targetRatios {
		ratio := target
		if adjustments != nil {
			if override, ok := adjustments.BudgetAdjustment(bucket); ok && override >= 0 {
				ratio = override
			}
		}
		ratios[bucket] = ratio
		total += ratio
	}

	if total <= 0 {
		return map[models.Bucket]float64{
			models.BucketNeeds:   targetRatios[models.BucketNeeds],
			models.BucketWants:   targetRatios[models.BucketWants],
			models.BucketSavings: targetRatios[models.BucketSavings],
		}
	}

	for bucket := range ratios {
		ratios[bucket] /= total
	}
	return ratios
}

// allocate распределяет доход по корзинам; остаток округления уходит в savings.
func allocate(incomeCents int64, ratios map[models.Bucket]float64) map[models.Bucket]int64 {
	needs := int64(math.Round(float64(incomeCents) * ratios[models.BucketNeeds]))
	wants := int64(math.Round(float64(incomeCents) * ratios[models.BucketWants]))
	savings := incomeCents - needs - wants

	return map[models.Bucket]int64{
		models.BucketNeeds:   needs,
		models.BucketWants:   wants,
		models.BucketSavings: savings,
	}
}

func (a *Advisor) buildRecommendations(incomeCents int64, actualByBucket map[models.Bucket]int64, spendingByCategory map[models.Category]int64) []string {
	recommendations := make([]string, 0, 2)

	for _, bucket := range models.AllBuckets() {
		actualRatio := float64(actualByBucket[bucket]) / float64(incomeCents)
		target := targetRatios[bucket]
		overage := actualRatio - target
		if overage <= a.overageTolerance {
			continue
		}

		topCategory := topCategoryInBucket(bucket, spendingByCategory)
		reductionCents := int64(math.Round(overage * float64(incomeCents)))
		recommendations = append(recommendations, fmt.Sprintf(
			"Your %s spending is %.0f%% of income against a %.0f%% target; trim %s by about $%.2f per month.",
			bucket, actualRatio*100, target*100, topCategory, float64(reductionCents)/100))
	}

	return recommendations
}

func topCategoryInBucket(bucket models.Bucket, spendingByCategory map[models.Category]int64) models.Category {
	top := models.CategoryOther
	var best int64 = -1
	for _, category := range models.AllCategories() {
		if models.BucketOf(category) != bucket {
			continue
		}
		if amount, ok := spendingByCategory[category]; ok && amount > best {
			top = category
			best = amount
		}
	}
	return top
}
