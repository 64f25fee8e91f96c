package orchestrator

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"example.com/expense-agent/backend/internal/advisor"
	"example.com/expense-agent/backend/internal/categorizer"
	"example.com/expense-agent/backend/internal/extraction"
	"example.com/expense-agent/backend/internal/insights"
	"example.com/expense-agent/backend/internal/memory"
	"example.com/expense-agent/backend/internal/models"
	"example.com/expense-agent/backend/internal/repository"
)

type stubExtractor struct {
	receipt extraction.Receipt
	err     error
}

func (s *stubExtractor) Extract(_ context.Context, _ []byte) (extraction.Receipt, error) {
	return s.receipt, s.err
}

type fakeStore struct {
	mu       sync.Mutex
	expenses []models.Expense
	listErr  error
}

func (f *fakeStore) Append(_ context.Context, expense models.Expense) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.expenses = append(f.expenses, expense)
	return nil
}

func (f *fakeStore) ListAll(_ context.Context) ([]models.Expense, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.listErr != nil {
		return nil, f.listErr
	}
	out := make([]models.Expense, len(f.expenses))
	copy(out, f.expenses)
	return out, nil
}

func (f *fakeStore) Get(_ context.Context, id uuid.UUID) (models.Expense, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, e := range f.expenses {
		if e.ID == id {
			return e, nil
		}
	}
	return models.Expense{}, repository.ErrNotFound
}

func (f *fakeStore) UpdateCategory(_ context.Context, id uuid.UUID, category models.Category, confidence float64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.expenses {
		if f.expenses[i].ID == id {
			f.expenses[i].Category = category
			f.expenses[i].Confidence = confidence
			return nil
		}
	}
	return repository.ErrNotFound
}

func newTestOrchestrator(extractor Extractor, store ExpenseStore) (*Orchestrator, *memory.Memory) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	mem := memory.New(memory.DefaultWindowSize)
	cat := categorizer.New(categorizer.NewRuleEngine(0.85, 0.6, 0.2), mem, nil, time.Second, logger)

	return New(extractor, cat, advisor.New(0.10), insights.New(3), mem, store, logger), mem
}

// Ручной расход категоризируется, сохраняется и попадает в память агентов.
func TestProcessExpenseManual(t *testing.T) {
	store := &fakeStore{}
	orch, mem := newTestOrchestrator(&stubExtractor{}, store)

	result, err := orch.ProcessExpense(context.Background(), NewExpenseRequest{
		Merchant:    "Starbucks",
		AmountCents: 650,
	})
	if err != nil {
		t.Fatalf("неожиданная ошибка: %v", err)
	}
	if result.Expense == nil {
		t.Fatal("ожидался расход в результате")
	}
	if result.Expense.Category != models.CategoryDining {
		t.Errorf("категория = %s, ожидалась dining", result.Expense.Category)
	}
	if result.Expense.Source != models.SourceManual {
		t.Errorf("источник = %s, ожидался manual", result.Expense.Source)
	}
	if result.InsightsReport == nil {
		t.Error("ожидался отчет аналитики")
	}
	if result.BudgetPlan != nil {
		t.Error("план бюджета не запрашивался")
	}
	if len(store.expenses) != 1 {
		t.Fatalf("в хранилище %d расходов, ожидался 1", len(store.expenses))
	}
	if got := mem.RecentExpenses(); len(got) != 1 {
		t.Errorf("в памяти %d расходов, ожидался 1", len(got))
	}
	if result.HasFailed(ComponentCategorization) {
		t.Error("категоризация не должна была отказать")
	}
}

// Скан чека берет поля расхода из результата извлечения.
func TestProcessExpenseScanned(t *testing.T) {
	date := time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC)
	extractor := &stubExtractor{receipt: extraction.Receipt{
		Merchant:    "Whole Foods",
		AmountCents: 4237,
		Date:        date,
		Description: "weekly groceries",
		Confidence:  0.9,
	}}
	orch, _ := newTestOrchestrator(extractor, &fakeStore{})

	result, err := orch.ProcessExpense(context.Background(), NewExpenseRequest{Image: []byte("img")})
	if err != nil {
		t.Fatalf("неожиданная ошибка: %v", err)
	}
	if result.Expense.Merchant != "Whole Foods" {
		t.Errorf("магазин = %q", result.Expense.Merchant)
	}
	if result.Expense.AmountCents != 4237 {
		t.Errorf("сумма = %d", result.Expense.AmountCents)
	}
	if !result.Expense.Date.Equal(date) {
		t.Errorf("дата = %v", result.Expense.Date)
	}
	if result.Expense.Source != models.SourceScanned {
		t.Errorf("источник = %s", result.Expense.Source)
	}
}

// Отказ извлечения не прерывает конвейер: расход фиксируется с пустыми
// полями и категорией other, отказ виден в конверте.
func TestProcessExpenseExtractionFailure(t *testing.T) {
	extractor := &stubExtractor{err: extraction.ErrExtraction}
	store := &fakeStore{}
	orch, _ := newTestOrchestrator(extractor, store)

	result, err := orch.ProcessExpense(context.Background(), NewExpenseRequest{Image: []byte("img")})
	if err != nil {
		t.Fatalf("отказ компонента не должен возвращать ошибку: %v", err)
	}
	if !result.HasFailed(ComponentExtraction) {
		t.Error("ожидался отказ компонента extraction")
	}
	if result.Expense.Category != models.CategoryOther {
		t.Errorf("категория = %s, ожидалась other", result.Expense.Category)
	}
	if len(store.expenses) != 1 {
		t.Fatalf("расход должен быть сохранен несмотря на отказ извлечения")
	}
	if len(result.Warnings) == 0 {
		t.Error("ожидалось предупреждение об извлечении")
	}
}

// Нарушенные предусловия отклоняют запрос целиком.
func TestProcessExpensePreconditions(t *testing.T) {
	store := &fakeStore{}
	orch, _ := newTestOrchestrator(&stubExtractor{}, store)

	_, err := orch.ProcessExpense(context.Background(), NewExpenseRequest{})
	if !errors.Is(err, ErrPrecondition) {
		t.Errorf("пустой запрос: err = %v, ожидался ErrPrecondition", err)
	}

	_, err = orch.ProcessExpense(context.Background(), NewExpenseRequest{
		Merchant:    "Shop",
		AmountCents: -100,
	})
	if !errors.Is(err, ErrPrecondition) {
		t.Errorf("отрицательная сумма: err = %v, ожидался ErrPrecondition", err)
	}

	if len(store.expenses) != 0 {
		t.Errorf("отклоненные запросы не должны попадать в хранилище")
	}
}

// При заданном доходе результат содержит план бюджета.
func TestProcessExpenseWithIncome(t *testing.T) {
	orch, _ := newTestOrchestrator(&stubExtractor{}, &fakeStore{})

	income := int64(300000)
	result, err := orch.ProcessExpense(context.Background(), NewExpenseRequest{
		Merchant:    "Kroger",
		AmountCents: 5000,
		IncomeCents: &income,
	})
	if err != nil {
		t.Fatalf("неожиданная ошибка: %v", err)
	}
	if result.BudgetPlan == nil {
		t.Fatal("ожидался план бюджета")
	}
	if got := result.BudgetPlan.BucketAllocations[models.BucketNeeds]; got != 150000 {
		t.Errorf("needs = %d, ожидалось 150000", got)
	}
}

// Отказ советника изолируется: аналитика и расход остаются в конверте.
func TestProcessExpenseAdvisorFailureIsolated(t *testing.T) {
	orch, _ := newTestOrchestrator(&stubExtractor{}, &fakeStore{})

	income := int64(-1)
	result, err := orch.ProcessExpense(context.Background(), NewExpenseRequest{
		Merchant:    "Kroger",
		AmountCents: 5000,
		IncomeCents: &income,
	})
	if err != nil {
		t.Fatalf("неожиданная ошибка: %v", err)
	}
	if !result.HasFailed(ComponentBudgetAdvisor) {
		t.Error("ожидался отказ компонента budget_advisor")
	}
	if result.BudgetPlan != nil {
		t.Error("отказавший компонент не должен давать данных")
	}
	if result.InsightsReport == nil {
		t.Error("аналитика должна была завершиться")
	}
	if result.Expense == nil {
		t.Error("расход должен присутствовать")
	}
}

// Отмененный контекст не дает зафиксировать результат.
func TestProcessExpenseCancelledContext(t *testing.T) {
	store := &fakeStore{}
	orch, _ := newTestOrchestrator(&stubExtractor{}, store)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := orch.ProcessExpense(ctx, NewExpenseRequest{
		Merchant:    "Shop",
		AmountCents: 100,
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, ожидался context.Canceled", err)
	}
	if len(store.expenses) != 0 {
		t.Error("при отмене ничего не фиксируется")
	}
}

// Когда история недоступна и все компоненты отказали, возвращается ошибка.
func TestRefreshInsightsAllFailed(t *testing.T) {
	store := &fakeStore{listErr: errors.New("disk gone")}
	orch, _ := newTestOrchestrator(&stubExtractor{}, store)

	_, err := orch.RefreshInsights(context.Background(), nil)
	if !errors.Is(err, ErrAllFailed) {
		t.Fatalf("err = %v, ожидался ErrAllFailed", err)
	}
}

// RefreshInsights без нового расхода возвращает аналитику и план.
func TestRefreshInsights(t *testing.T) {
	store := &fakeStore{}
	orch, _ := newTestOrchestrator(&stubExtractor{}, store)

	if _, err := orch.ProcessExpense(context.Background(), NewExpenseRequest{
		Merchant:    "Netflix",
		AmountCents: 1599,
	}); err != nil {
		t.Fatalf("подготовка: %v", err)
	}

	income := int64(500000)
	result, err := orch.RefreshInsights(context.Background(), &income)
	if err != nil {
		t.Fatalf("неожиданная ошибка: %v", err)
	}
	if result.InsightsReport == nil || result.BudgetPlan == nil {
		t.Fatal("ожидались аналитика и план бюджета")
	}
	if result.Expense != nil {
		t.Error("пересчет не создает расходов")
	}
	if len(store.expenses) != 1 {
		t.Errorf("пересчет не должен менять хранилище")
	}
}

// Исправление обновляет хранилище и обучает память агентов.
func TestCorrectExpense(t *testing.T) {
	store := &fakeStore{}
	orch, mem := newTestOrchestrator(&stubExtractor{}, store)

	result, err := orch.ProcessExpense(context.Background(), NewExpenseRequest{
		Merchant:    "Costco",
		AmountCents: 12000,
	})
	if err != nil {
		t.Fatalf("подготовка: %v", err)
	}

	corrected, err := orch.CorrectExpense(context.Background(), result.Expense.ID, models.CategoryShopping)
	if err != nil {
		t.Fatalf("неожиданная ошибка: %v", err)
	}
	if corrected.Category != models.CategoryShopping {
		t.Errorf("категория = %s", corrected.Category)
	}
	if corrected.Confidence != 1.0 {
		t.Errorf("уверенность = %v, ожидалась 1.0", corrected.Confidence)
	}
	if store.expenses[0].Category != models.CategoryShopping {
		t.Errorf("хранилище не обновлено: %s", store.expenses[0].Category)
	}

	if _, _, ok := mem.SuggestCategory("Costco"); !ok {
		t.Error("память агентов должна знать об исправлении")
	}

	_, err = orch.CorrectExpense(context.Background(), uuid.New(), models.CategoryOther)
	if !errors.Is(err, repository.ErrNotFound) {
		t.Errorf("err = %v, ожидался ErrNotFound", err)
	}
}
