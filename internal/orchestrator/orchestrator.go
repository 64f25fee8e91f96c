package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"example.com/expense-agent/backend/internal/advisor"
	"example.com/expense-agent/backend/internal/categorizer"
	"example.com/expense-agent/backend/internal/extraction"
	"example.com/expense-agent/backend/internal/memory"
	"example.com/expense-agent/backend/internal/models"
)

// Имена компонентов в наборе отказов результата.
const (
	ComponentExtraction     = "extraction"
	ComponentCategorization = "categorization"
	ComponentBudgetAdvisor  = "budget_advisor"
	ComponentInsights       = "insights"
	ComponentPersistence    = "persistence"
)

var (
	// ErrPrecondition отклоняет некорректный запрос; ничего не фиксируется.
	ErrPrecondition = errors.New("malformed request")

	// ErrAllFailed возвращается, когда ни один запрошенный компонент не завершился.
	ErrAllFailed = errors.New("all requested components failed")
)

// Состояния конечного автомата одного запроса.
type requestState string

const (
	stateReceived     requestState = "received"
	stateExtracting   requestState = "extracting"
	stateCategorizing requestState = "categorizing"
	stateAnalyzing    requestState = "analyzing"
	stateMerging      requestState = "merging"
	stateCommitted    requestState = "committed"
	stateRejected     requestState = "rejected"
)

// ExpenseStore задает контракт хранилища расходов: добавление и полное чтение.
type ExpenseStore interface {
	Append(ctx context.Context, expense models.Expense) error
	ListAll(ctx context.Context) ([]models.Expense, error)
	Get(ctx context.Context, id uuid.UUID) (models.Expense, error)
	UpdateCategory(ctx context.Context, id uuid.UUID, category models.Category, confidence float64) error
}

// Extractor извлекает данные чека из изображения.
type Extractor interface {
	Extract(ctx context.Context, imageBytes []byte) (extraction.Receipt, error)
}

type NewExpenseRequest struct {
	Image       []byte
	Merchant    string
	Description string
	AmountCents int64
	Date        time.Time
	IncomeCents *int64
}

// Orchestrator последовательно и параллельно вызывает агентов, изолирует
// их отказы и фиксирует результат в хранилище и памяти агентов.
type Orchestrator struct {
	extractor   Extractor
	categorizer *categorizer.Categorizer
	advisor     *advisor.Advisor
	insights    InsightsAgent
	memory      *memory.Memory
	store       ExpenseStore
	logger      *slog.Logger
	now         func() time.Time

	// commitMu сериализует запись в хранилище и память агентов.
	commitMu sync.Mutex
}

// InsightsAgent строит отчет по категоризированной истории.
type InsightsAgent interface {
	BuildReport(history []models.Expense) models.InsightsReport
}

// New собирает оркестратор из агентов и внешних коллабораторов.
func New(
	extractor Extractor,
	cat *categorizer.Categorizer,
	adv *advisor.Advisor,
	ins InsightsAgent,
	mem *memory.Memory,
	store ExpenseStore,
	logger *slog.Logger,
) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}

	return &Orchestrator{
		extractor:   extractor,
		categorizer: cat,
		advisor:     adv,
		insights:    ins,
		memory:      mem,
		store:       store,
		logger:      logger,
		now:         time.Now,
	}
}

// ProcessExpense проводит новый расход через весь конвейер и возвращает
// единый конверт результата. Отказ отдельного компонента не прерывает
// запрос; прерывает только нарушенное предусловие.
func (o *Orchestrator) ProcessExpense(ctx context.Context, req NewExpenseRequest) (models.OrchestrationResult, error) {
	o.transition(stateReceived)

	if err := validateRequest(req); err != nil {
		o.transition(stateRejected)
		return models.OrchestrationResult{}, err
	}

	result := models.OrchestrationResult{
		Warnings: []string{},
		Failed:   []string{},
	}

	merchant := strings.TrimSpace(req.Merchant)
	description := strings.TrimSpace(req.Description)
	amountCents := req.AmountCents
	date := req.Date
	source := models.SourceManual
	extractionConfidence := 0.0

	if len(req.Image) > 0 {
		o.transition(stateExtracting)
		source = models.SourceScanned

		receipt, err := o.extractor.Extract(ctx, req.Image)
		if err != nil {
			// Расход продолжает путь с пустыми полями и категорией other.
			result.Warnings = append(result.Warnings, fmt.Sprintf("%s: %v", ComponentExtraction, err))
			result.Failed = append(result.Failed, ComponentExtraction)
		} else {
			merchant = receipt.Merchant
			description = receipt.Description
			amountCents = receipt.AmountCents
			date = receipt.Date
			extractionConfidence = receipt.Confidence
		}
	}

	if date.IsZero() {
		now := o.now()
		date = time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	}

	o.transition(stateCategorizing)
	categorization := o.categorizer.Categorize(ctx, categorizer.Input{
		Merchant:         merchant,
		Description:      description,
		AmountCents:      amountCents,
		RecentCategories: o.recentCategories(),
	})
	result.Warnings = append(result.Warnings, categorization.Warnings...)

	expense := models.Expense{
		ID:          uuid.New(),
		Date:        date,
		Merchant:    merchant,
		AmountCents: amountCents,
		Category:    categorization.Category,
		Confidence:  categorization.Confidence,
		Description: description,
		Source:      source,
		CreatedAt:   o.now().UTC(),
	}
	result.Expense = &expense

	o.logger.Info("expense categorized",
		slog.String("merchant", merchant),
		slog.String("category", string(expense.Category)),
		slog.Float64("confidence", expense.Confidence),
		slog.String("source", categorization.Source),
		slog.Float64("extraction_confidence", extractionConfidence))

	history, historyErr := o.store.ListAll(ctx)
	if historyErr != nil {
		result.Warnings = append(result.Warnings, fmt.Sprintf("history unavailable: %v", historyErr))
	}
	historyView := append(history, expense)

	o.transition(stateAnalyzing)
	o.analyze(historyView, req.IncomeCents, historyErr != nil, &result)

	o.transition(stateMerging)
	if err := ctx.Err(); err != nil {
		// Запрос отменен до фиксации: частичная работа отбрасывается.
		o.transition(stateRejected)
		return models.OrchestrationResult{}, err
	}

	o.commitMu.Lock()
	if err := o.store.Append(ctx, expense); err != nil {
		result.Warnings = append(result.Warnings, fmt.Sprintf("%s: %v", ComponentPersistence, err))
		result.Failed = append(result.Failed, ComponentPersistence)
	} else {
		o.memory.RecordExpense(expense)
	}
	o.commitMu.Unlock()

	o.transition(stateCommitted)
	return result, nil
}

// RefreshInsights пересчитывает аналитику (и план бюджета, если задан доход)
// по сохраненной истории без добавления нового расхода.
func (o *Orchestrator) RefreshInsights(ctx context.Context, incomeCents *int64) (models.OrchestrationResult, error) {
	o.transition(stateReceived)

	result := models.OrchestrationResult{
		Warnings: []string{},
		Failed:   []string{},
	}

	history, historyErr := o.store.ListAll(ctx)
	if historyErr != nil {
		result.Warnings = append(result.Warnings, fmt.Sprintf("history unavailable: %v", historyErr))
	}

	o.transition(stateAnalyzing)
	o.analyze(history, incomeCents, historyErr != nil, &result)

	o.transition(stateMerging)
	if err := ctx.Err(); err != nil {
		o.transition(stateRejected)
		return models.OrchestrationResult{}, err
	}

	if result.InsightsReport == nil && result.BudgetPlan == nil {
		o.transition(stateRejected)
		return models.OrchestrationResult{}, fmt.Errorf("%w: %s", ErrAllFailed, strings.Join(result.Failed, ", "))
	}

	o.transition(stateCommitted)
	return result, nil
}

// CorrectExpense применяет исправление пользователя и обучает память агентов.
func (o *Orchestrator) CorrectExpense(ctx context.Context, id uuid.UUID, category models.Category) (models.Expense, error) {
	expense, err := o.store.Get(ctx, id)
	if err != nil {
		return models.Expense{}, err
	}

	o.commitMu.Lock()
	defer o.commitMu.Unlock()

	// Исправление пользователя достоверно: уверенность максимальна.
	if err := o.store.UpdateCategory(ctx, id, category, 1.0); err != nil {
		return models.Expense{}, err
	}
	o.memory.RecordCorrection(expense.Merchant, category)

	o.logger.Info("expense corrected",
		slog.String("merchant", expense.Merchant),
		slog.String("from", string(expense.Category)),
		slog.String("to", string(category)))

	expense.Category = category
	expense.Confidence = 1.0
	return expense, nil
}

// SetBudgetAdjustment задает пользовательскую долю корзины в памяти агентов.
func (o *Orchestrator) SetBudgetAdjustment(bucket models.Bucket, ratio float64) {
	o.memory.SetBudgetAdjustment(bucket, ratio)
}

// analyze параллельно запускает советника и аналитика; отказ каждого
// изолируется в warnings/failed.
func (o *Orchestrator) analyze(history []models.Expense, incomeCents *int64, historyUnavailable bool, result *models.OrchestrationResult) {
	if historyUnavailable {
		if incomeCents != nil {
			result.Failed = append(result.Failed, ComponentBudgetAdvisor)
		}
		result.Failed = append(result.Failed, ComponentInsights)
		return
	}

	var (
		plan    models.BudgetPlan
		planErr error
		report  models.InsightsReport
	)

	var g errgroup.Group

	if incomeCents != nil {
		income := *incomeCents
		g.Go(func() error {
			plan, planErr = o.advisor.BuildPlan(history, income, o.memory)
			return nil
		})
	}

	g.Go(func() error {
		report = o.insights.BuildReport(history)
		return nil
	})

	// Агенты не возвращают ошибок через группу: отказы изолируются ниже.
	_ = g.Wait()

	if incomeCents != nil {
		if planErr != nil {
			result.Warnings = append(result.Warnings, fmt.Sprintf("%s: %v", ComponentBudgetAdvisor, planErr))
			result.Failed = append(result.Failed, ComponentBudgetAdvisor)
		} else {
			result.BudgetPlan = &plan
		}
	}

	result.InsightsReport = &report
}

func (o *Orchestrator) recentCategories() []models.Category {
	recent := o.memory.RecentExpenses()
	if len(recent) > 10 {
		recent = recent[len(recent)-10:]
	}

	categories := make([]models.Category, 0, len(recent))
	for _, expense := range recent {
		categories = append(categories, expense.Category)
	}
	return categories
}

func (o *Orchestrator) transition(state requestState) {
	o.logger.Debug("orchestration state", slog.String("state", string(state)))
}

func validateRequest(req NewExpenseRequest) error {
	if len(req.Image) == 0 && strings.TrimSpace(req.Merchant) == "" &&
		strings.TrimSpace(req.Description) == "" && req.AmountCents == 0 {
		return fmt.Errorf("%w: neither image nor manual fields supplied", ErrPrecondition)
	}

	if req.AmountCents < 0 {
		return fmt.Errorf("%w: amount cannot be negative", ErrPrecondition)
	}

	return nil
}
