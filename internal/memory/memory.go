package memory

import (
	"encoding/json"
	"strings"
	"sync"

	"example.com/expense-agent/backend/internal/models"
)

const (
	// DefaultWindowSize ограничивает окно недавних расходов по умолчанию.
	DefaultWindowSize = 200

	biasConfidenceCap = 0.95
)

// Memory хранит накопленный контекст агентов: исправления пользователя,
// корректировки бюджета и окно последних расходов.
type Memory struct {
	mu          sync.RWMutex
	windowSize  int
	corrections map[string]map[models.Category]int
	adjustments map[models.Bucket]float64
	recent      []models.Expense
}

type snapshot struct {
	Corrections map[string]map[models.Category]int `json:"correction_counts"`
	Adjustments map[models.Bucket]float64          `json:"budget_adjustments"`
	Recent      []models.Expense                   `json:"last_expenses"`
}

// New создает пустую память агентов с заданным размером окна.
func New(windowSize int) *Memory {
	if windowSize <= 0 {
		windowSize = DefaultWindowSize
	}

	return &Memory{
		windowSize:  windowSize,
		corrections: make(map[string]map[models.Category]int),
		adjustments: make(map[models.Bucket]float64),
		recent:      make([]models.Expense, 0, windowSize),
	}
}

// RecordCorrection учитывает исправление категории пользователем.
func (m *Memory) RecordCorrection(merchantPattern string, corrected models.Category) {
	pattern := normalizePattern(merchantPattern)
	if pattern == "" {
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	counts, ok := m.corrections[pattern]
	if !ok {
		counts = make(map[models.Category]int)
		m.corrections[pattern] = counts
	}
	counts[corrected]++
}

// RecordExpense добавляет расход в окно недавних, вытесняя самый старый.
func (m *Memory) RecordExpense(expense models.Expense) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.recent = append(m.recent, expense)
	if len(m.recent) > m.windowSize {
		m.recent = m.recent[len(m.recent)-m.windowSize:]
	}
}

// SuggestCategory возвращает наиболее исправляемую категорию для продавца
// и уверенность, выведенную из доли исправлений; false без совпадений.
func (m *Memory) SuggestCategory(merchantText string) (models.Category, float64, bool) {
	merchant := normalizePattern(merchantText)
	if merchant == "" {
		return models.CategoryOther, 0, false
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	bestPattern := ""
	bestTotal := 0
	for pattern, counts := range m.corrections {
		if pattern != merchant && !strings.Contains(merchant, pattern) {
			continue
		}

		total := 0
		for _, count := range counts {
			total += count
		}
		if total > bestTotal {
			bestPattern = pattern
			bestTotal = total
		}
	}

	if bestPattern == "" {
		return models.CategoryOther, 0, false
	}

	var category models.Category
	best := 0
	for candidate, count := range m.corrections[bestPattern] {
		if count > best || (count == best && candidate < category) {
			category = candidate
			best = count
		}
	}

	confidence := float64(best) / float64(bestTotal)
	if confidence > biasConfidenceCap {
		confidence = biasConfidenceCap
	}

	return category, confidence, true
}

// BudgetAdjustment возвращает пользовательскую долю корзины, если задана.
func (m *Memory) BudgetAdjustment(bucket models.Bucket) (float64, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	ratio, ok := m.adjustments[bucket]
	return ratio, ok
}

// SetBudgetAdjustment задает пользовательскую долю корзины.
func (m *Memory) SetBudgetAdjustment(bucket models.Bucket, ratio float64) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.adjustments[bucket] = ratio
}

// RecentExpenses возвращает копию окна недавних расходов.
func (m *Memory) RecentExpenses() []models.Expense {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]models.Expense, len(m.recent))
	copy(out, m.recent)
	return out
}

// Snapshot сериализует состояние памяти для внешнего хранения.
func (m *Memory) Snapshot() ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return json.Marshal(snapshot{
		Corrections: m.corrections,
		Adjustments: m.adjustments,
		Recent:      m.recent,
	})
}

// Restore восстанавливает состояние памяти из снимка.
func (m *Memory) Restore(data []byte) error {
	var snap snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if snap.Corrections != nil {
		m.corrections = snap.Corrections
	}
	if snap.Adjustments != nil {
		m.adjustments = snap.Adjustments
	}
	if snap.Recent != nil {
		m.recent = snap.Recent
		if len(m.recent) > m.windowSize {
			m.recent = m.recent[len(m.recent)-m.windowSize:]
		}
	}

	return nil
}

func normalizePattern(value string) string {
	return strings.Join(strings.Fields(strings.ToLower(value)), " ")
}
