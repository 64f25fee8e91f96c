package categorizer

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"example.com/expense-agent/backend/internal/ai"
	"example.com/expense-agent/backend/internal/models"
)

// WarningReasoningUnavailable помечает недоступность LLM-шага в результате.
const WarningReasoningUnavailable = "reasoning_unavailable"

// WarningNoInput помечает расход без продавца и описания.
const WarningNoInput = "no_merchant_or_description"

type resultSource int

// Порядок источников задает приоритет при равной уверенности.
const (
	sourceRule resultSource = iota
	sourceMemory
	sourceLLM
)

func (s resultSource) String() string {
	switch s {
	case sourceLLM:
		return "llm"
	case sourceMemory:
		return "memory"
	default:
		return "rule"
	}
}

type candidate struct {
	source     resultSource
	category   models.Category
	confidence float64
}

// Suggester выдает смещение категории из памяти агентов.
type Suggester interface {
	SuggestCategory(merchantText string) (models.Category, float64, bool)
}

// Reasoner выполняет необязательный LLM-шаг классификации.
type Reasoner interface {
	ClassifyExpense(ctx context.Context, input ai.ClassifyInput) (ai.ClassifyResult, error)
}

type Input struct {
	Merchant         string
	Description      string
	AmountCents      int64
	RecentCategories []models.Category
}

type Result struct {
	Category   models.Category
	Confidence float64
	Source     string
	Warnings   []string
}

// Categorizer согласует результаты правил, памяти и LLM в одну категорию.
type Categorizer struct {
	rules    *RuleEngine
	memory   Suggester
	reasoner Reasoner
	timeout  time.Duration
	logger   *slog.Logger
}

// New создает агента категоризации; reasoner может быть nil.
func New(rules *RuleEngine, memory Suggester, reasoner Reasoner, timeout time.Duration, logger *slog.Logger) *Categorizer {
	if logger == nil {
		logger = slog.Default()
	}

	return &Categorizer{
		rules:    rules,
		memory:   memory,
		reasoner: reasoner,
		timeout:  timeout,
		logger:   logger,
	}
}

// Categorize определяет категорию расхода. Шаг никогда не возвращает ошибку:
// в худшем случае выдает (other, 0.0) с предупреждением.
func (c *Categorizer) Categorize(ctx context.Context, input Input) Result {
	merchant := strings.TrimSpace(input.Merchant)
	description := strings.TrimSpace(input.Description)

	if merchant == "" && description == "" {
		return Result{
			Category:   models.CategoryOther,
			Confidence: 0,
			Source:     sourceRule.String(),
			Warnings:   []string{WarningNoInput},
		}
	}

	warnings := make([]string, 0, 1)
	candidates := make([]candidate, 0, 3)

	ruleCategory, ruleConfidence := c.rules.Match(merchant, description)
	candidates = append(candidates, candidate{
		source:     sourceRule,
		category:   ruleCategory,
		confidence: ruleConfidence,
	})

	if c.memory != nil {
		if category, confidence, ok := c.memory.SuggestCategory(merchant); ok {
			candidates = append(candidates, candidate{
				source:     sourceMemory,
				category:   category,
				confidence: confidence,
			})
		}
	}

	if c.reasoner != nil {
		llmCtx, cancel := context.WithTimeout(ctx, c.timeout)
		result, err := c.reasoner.ClassifyExpense(llmCtx, ai.ClassifyInput{
			Merchant:         merchant,
			Description:      description,
			AmountCents:      input.AmountCents,
			RecentCategories: input.RecentCategories,
		})
		cancel()

		if err != nil {
			warnings = append(warnings, fmt.Sprintf("%s: %v", WarningReasoningUnavailable, err))
			c.logger.Warn("llm classification unavailable, falling back",
				slog.String("merchant", merchant),
				slog.String("error", err.Error()))
		} else {
			candidates = append(candidates, candidate{
				source:     sourceLLM,
				category:   result.Category,
				confidence: result.Confidence,
			})
		}
	}

	best := reconcile(candidates)

	return Result{
		Category:   best.category,
		Confidence: best.confidence,
		Source:     best.source.String(),
		Warnings:   warnings,
	}
}

// reconcile выбирает кандидата с наибольшей уверенностью; при равенстве
// побеждает более специфичный источник: llm > memory > rule.
func reconcile(candidates []candidate) candidate {
	best := candidates[0]
	for _, current := range candidates[1:] {
		if current.confidence > best.confidence {
			best = current
			continue
		}
		if current.confidence == best.confidence && current.source > best.source {
			best = current
		}
	}
	return best
}
