package models

import (
	"time"

	"github.com/google/uuid"
)

type Category string

type Bucket string

type ExpenseSource string

const (
	CategoryGroceries     Category = "groceries"
	CategoryDining        Category = "dining"
	CategoryTransport     Category = "transport"
	CategoryHousing       Category = "housing"
	CategoryUtilities     Category = "utilities"
	CategoryHealthcare    Category = "healthcare"
	CategoryEntertainment Category = "entertainment"
	CategoryShopping      Category = "shopping"
	CategorySubscriptions Category = "subscriptions"
	CategoryEducation     Category = "education"
	CategoryTravel        Category = "travel"
	CategorySavings       Category = "savings"
	CategoryOther         Category = "other"

	BucketNeeds   Bucket = "needs"
	BucketWants   Bucket = "wants"
	BucketSavings Bucket = "savings"

	SourceManual  ExpenseSource = "manual"
	SourceScanned ExpenseSource = "scanned"
)

var categoryBuckets = map[Category]Bucket{
	CategoryGroceries:     BucketNeeds,
	CategoryDining:        BucketWants,
	CategoryTransport:     BucketNeeds,
	CategoryHousing:       BucketNeeds,
	CategoryUtilities:     BucketNeeds,
	CategoryHealthcare:    BucketNeeds,
	CategoryEntertainment: BucketWants,
	CategoryShopping:      BucketWants,
	CategorySubscriptions: BucketWants,
	CategoryEducation:     BucketNeeds,
	CategoryTravel:        BucketWants,
	CategorySavings:       BucketSavings,
	CategoryOther:         BucketWants,
}

// AllCategories возвращает полный список категорий расходов.
func AllCategories() []Category {
	return []Category{
		CategoryGroceries,
		CategoryDining,
		CategoryTransport,
		CategoryHousing,
		CategoryUtilities,
		CategoryHealthcare,
		CategoryEntertainment,
		CategoryShopping,
		CategorySubscriptions,
		CategoryEducation,
		CategoryTravel,
		CategorySavings,
		CategoryOther,
	}
}

// AllBuckets возвращает три бюджетные корзины правила 50/30/20.
func AllBuckets() []Bucket {
	return []Bucket{BucketNeeds, BucketWants, BucketSavings}
}

// ParseCategory проверяет строку и возвращает категорию из списка.
func ParseCategory(value string) (Category, bool) {
	category := Category(value)
	if _, ok := categoryBuckets[category]; ok {
		return category, true
	}
	return CategoryOther, false
}

// ParseBucket проверяет строку и возвращает корзину бюджета.
func ParseBucket(value string) (Bucket, bool) {
	bucket := Bucket(value)
	switch bucket {
	case BucketNeeds, BucketWants, BucketSavings:
		return bucket, true
	default:
		return "", false
	}
}

// BucketOf возвращает корзину, к которой относится категория.
func BucketOf(category Category) Bucket {
	if bucket, ok := categoryBuckets[category]; ok {
		return bucket
	}
	return BucketWants
}

type Expense struct {
	ID          uuid.UUID     `json:"id"`
	Date        time.Time     `json:"date"`
	Merchant    string        `json:"merchant"`
	AmountCents int64         `json:"amount_cents"`
	Category    Category      `json:"category"`
	Confidence  float64       `json:"confidence"`
	Description string        `json:"description"`
	Source      ExpenseSource `json:"source"`
	CreatedAt   time.Time     `json:"created_at"`
}

type BudgetPlan struct {
	BucketAllocations  map[Bucket]int64   `json:"bucket_allocations"`
	ActualByBucket     map[Bucket]int64   `json:"actual_by_bucket"`
	SpendingByCategory map[Category]int64 `json:"spending_by_category"`
	Recommendations    []string           `json:"recommendations"`
	GeneratedAt        time.Time          `json:"generated_at"`
}

type PeriodTotal struct {
	Period      string `json:"period"`
	AmountCents int64  `json:"amount_cents"`
}

type MerchantTotal struct {
	Merchant    string `json:"merchant"`
	AmountCents int64  `json:"amount_cents"`
}

type InsightsReport struct {
	TrendsByCategory   map[Category][]PeriodTotal `json:"trends_by_category"`
	ForecastNextPeriod map[Category]int64         `json:"forecast_next_period"`
	TopMerchants       []MerchantTotal            `json:"top_merchants"`
	HealthScore        float64                    `json:"health_score"`
}

type OrchestrationResult struct {
	Expense        *Expense        `json:"expense,omitempty"`
	BudgetPlan     *BudgetPlan     `json:"budget_plan,omitempty"`
	InsightsReport *InsightsReport `json:"insights_report,omitempty"`
	Warnings       []string        `json:"warnings"`
	Failed         []string        `json:"failed"`
}

// HasFailed сообщает, отмечен ли компонент в наборе отказов.
func (r OrchestrationResult) HasFailed(component string) bool {
	for _, name := range r.Failed {
		if name == component {
			return true
		}
	}
	return false
}
