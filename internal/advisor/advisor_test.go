package advisor

import (
	"errors"
	"reflect"
	"strings"
	"testing"

	"example.com/expense-agent/backend/internal/models"
)

type stubAdjustments map[models.Bucket]float64

func (s stubAdjustments) BudgetAdjustment(bucket models.Bucket) (float64, bool) {
	ratio, ok := s[bucket]
	return ratio, ok
}

// TestBuildPlanEmptyHistory проверяет каноническое 50/30/20 (сценарий A).
func TestBuildPlanEmptyHistory(t *testing.T) {
	plan, err := New(0.10).BuildPlan(nil, 300000, nil)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	want := map[models.Bucket]int64{
		models.BucketNeeds:   150000,
		models.BucketWants:   90000,
		models.BucketSavings: 60000,
	}
	if !reflect.DeepEqual(plan.BucketAllocations, want) {
		t.Fatalf("unexpected allocations: %v", plan.BucketAllocations)
	}
	if len(plan.Recommendations) != 0 {
		t.Fatalf("expected no overage recommendations, got %v", plan.Recommendations)
	}
}

// TestBuildPlanAllocationsSumToIncome проверяет точную сумму выделений.
func TestBuildPlanAllocationsSumToIncome(t *testing.T) {
	incomes := []int64{0, 1, 99, 333333, 1000001}

	for _, income := range incomes {
		plan, err := New(0.10).BuildPlan(nil, income, nil)
		if err != nil {
			t.Fatalf("income %d: unexpected error %v", income, err)
		}

		var sum int64
		for _, amount := range plan.BucketAllocations {
			sum += amount
		}
		if sum != income {
			t.Fatalf("income %d: allocations sum to %d", income, sum)
		}
	}
}

// TestBuildPlanNegativeIncome проверяет ошибку предусловия.
func TestBuildPlanNegativeIncome(t *testing.T) {
	if _, err := New(0.10).BuildPlan(nil, -1, nil); !errors.Is(err, ErrInvalidIncome) {
		t.Fatalf("expected ErrInvalidIncome, got %v", err)
	}
}

// TestBuildPlanZeroIncome проверяет нулевые выделения и единственный совет.
func TestBuildPlanZeroIncome(t *testing.T) {
	plan, err := New(0.10).BuildPlan(nil, 0, nil)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	for bucket, amount := range plan.BucketAllocations {
		if amount != 0 {
			t.Fatalf("expected zero allocation for %s, got %d", bucket, amount)
		}
	}
	if len(plan.Recommendations) != 1 {
		t.Fatalf("expected single advisory, got %v", plan.Recommendations)
	}
}

// TestBuildPlanOverageRecommendation проверяет совет с категорией-драйвером.
func TestBuildPlanOverageRecommendation(t *testing.T) {
	history := []models.Expense{
		{Category: models.CategoryDining, AmountCents: 110000},
		{Category: models.CategoryEntertainment, AmountCents: 30000},
	}

	plan, err := New(0.10).BuildPlan(history, 300000, nil)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if len(plan.Recommendations) != 1 {
		t.Fatalf("expected one recommendation, got %v", plan.Recommendations)
	}
	if !strings.Contains(plan.Recommendations[0], string(models.CategoryDining)) {
		t.Fatalf("expected dining named as overage driver: %s", plan.Recommendations[0])
	}
}

// TestBuildPlanWithinTolerance проверяет отсутствие советов в пределах допуска.
func TestBuildPlanWithinTolerance(t *testing.T) {
	history := []models.Expense{
		{Category: models.CategoryDining, AmountCents: 105000},
	}

	plan, err := New(0.10).BuildPlan(history, 300000, nil)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if len(plan.Recommendations) != 0 {
		t.Fatalf("expected no recommendations within tolerance, got %v", plan.Recommendations)
	}
}

// TestBuildPlanAdjustmentsRenormalized проверяет нормировку переопределений.
func TestBuildPlanAdjustmentsRenormalized(t *testing.T) {
	adjustments := stubAdjustments{models.BucketSavings: 0.40}

	plan, err := New(0.10).BuildPlan(nil, 300000, adjustments)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	var sum int64
	for _, amount := range plan.BucketAllocations {
		sum += amount
	}
	if sum != 300000 {
		t.Fatalf("expected allocations to renormalize to income, got sum %d", sum)
	}
	if plan.BucketAllocations[models.BucketSavings] <= 60000 {
		t.Fatalf("expected savings share to grow, got %d", plan.BucketAllocations[models.BucketSavings])
	}
}

// TestBuildPlanIdempotent проверяет одинаковый результат на той же истории.
func TestBuildPlanIdempotent(t *testing.T) {
	history := []models.Expense{
		{Category: models.CategoryGroceries, AmountCents: 40000},
		{Category: models.CategoryDining, AmountCents: 90000},
	}

	a := New(0.10)
	first, err := a.BuildPlan(history, 250000, nil)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	second, err := a.BuildPlan(history, 250000, nil)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if !reflect.DeepEqual(first.BucketAllocations, second.BucketAllocations) ||
		!reflect.DeepEqual(first.Recommendations, second.Recommendations) {
		t.Fatal("expected identical plans for identical inputs")
	}
}
