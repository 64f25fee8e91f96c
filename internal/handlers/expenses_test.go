package handlers

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"example.com/expense-agent/backend/internal/advisor"
	"example.com/expense-agent/backend/internal/categorizer"
	"example.com/expense-agent/backend/internal/extraction"
	"example.com/expense-agent/backend/internal/insights"
	"example.com/expense-agent/backend/internal/memory"
	"example.com/expense-agent/backend/internal/models"
	"example.com/expense-agent/backend/internal/orchestrator"
	"example.com/expense-agent/backend/internal/repository"
)

type testValidator struct {
	validate *validator.Validate
}

func (v *testValidator) Validate(i interface{}) error {
	return v.validate.Struct(i)
}

type memStore struct {
	expenses []models.Expense
}

func (s *memStore) Append(_ context.Context, expense models.Expense) error {
	s.expenses = append(s.expenses, expense)
	return nil
}

func (s *memStore) ListAll(_ context.Context) ([]models.Expense, error) {
	return append([]models.Expense(nil), s.expenses...), nil
}

func (s *memStore) Get(_ context.Context, id uuid.UUID) (models.Expense, error) {
	for _, e := range s.expenses {
		if e.ID == id {
			return e, nil
		}
	}
	return models.Expense{}, repository.ErrNotFound
}

func (s *memStore) UpdateCategory(_ context.Context, id uuid.UUID, category models.Category, confidence float64) error {
	for i := range s.expenses {
		if s.expenses[i].ID == id {
			s.expenses[i].Category = category
			s.expenses[i].Confidence = confidence
			return nil
		}
	}
	return repository.ErrNotFound
}

type noopExtractor struct{}

func (noopExtractor) Extract(_ context.Context, _ []byte) (extraction.Receipt, error) {
	return extraction.Receipt{}, extraction.ErrExtraction
}

func newTestHandler() (*ExpenseHandler, *echo.Echo) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	mem := memory.New(memory.DefaultWindowSize)
	cat := categorizer.New(categorizer.NewRuleEngine(0.85, 0.6, 0.2), mem, nil, time.Second, logger)
	store := &memStore{}
	orch := orchestrator.New(noopExtractor{}, cat, advisor.New(0.10), insights.New(3), mem, store, logger)

	e := echo.New()
	e.Validator = &testValidator{validate: validator.New()}

	return NewExpenseHandler(orch, store), e
}

// TestCreateExpense проверяет создание ручного расхода через HTTP.
func TestCreateExpense(t *testing.T) {
	h, e := newTestHandler()

	body := `{"merchant":"Starbucks","amount_cents":650,"date":"2025-02-01"}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/expenses", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()

	if err := h.Create(e.NewContext(req, rec)); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if rec.Code != http.StatusCreated {
		t.Fatalf("unexpected status: %d, body: %s", rec.Code, rec.Body.String())
	}
	if !strings.Contains(rec.Body.String(), `"category":"dining"`) {
		t.Fatalf("expected dining category, body: %s", rec.Body.String())
	}
}

// TestCreateExpenseEmpty проверяет отклонение пустого запроса.
func TestCreateExpenseEmpty(t *testing.T) {
	h, e := newTestHandler()

	req := httptest.NewRequest(http.MethodPost, "/api/v1/expenses", strings.NewReader(`{}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()

	if err := h.Create(e.NewContext(req, rec)); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("unexpected status: %d", rec.Code)
	}
}

// TestCreateExpenseBadDate проверяет отклонение неверной даты.
func TestCreateExpenseBadDate(t *testing.T) {
	h, e := newTestHandler()

	body := `{"merchant":"Shop","amount_cents":100,"date":"01.02.2025"}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/expenses", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()

	if err := h.Create(e.NewContext(req, rec)); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("unexpected status: %d", rec.Code)
	}
}

// TestCorrectExpense проверяет исправление категории и 404 для чужого id.
func TestCorrectExpense(t *testing.T) {
	h, e := newTestHandler()

	body := `{"merchant":"Costco","amount_cents":12000}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/expenses", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	if err := h.Create(e.NewContext(req, rec)); err != nil {
		t.Fatalf("setup: %v", err)
	}

	store := h.Store.(*memStore)
	if len(store.expenses) != 1 {
		t.Fatalf("expected 1 stored expense, got %d", len(store.expenses))
	}
	id := store.expenses[0].ID

	req = httptest.NewRequest(http.MethodPost, "/api/v1/expenses/"+id.String()+"/correct", strings.NewReader(`{"category":"shopping"}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec = httptest.NewRecorder()
	ctx := e.NewContext(req, rec)
	ctx.SetParamNames("id")
	ctx.SetParamValues(id.String())

	if err := h.Correct(ctx); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected status: %d, body: %s", rec.Code, rec.Body.String())
	}
	if store.expenses[0].Category != models.CategoryShopping {
		t.Fatalf("category not updated: %s", store.expenses[0].Category)
	}

	req = httptest.NewRequest(http.MethodPost, "/api/v1/expenses/"+uuid.NewString()+"/correct", strings.NewReader(`{"category":"shopping"}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec = httptest.NewRecorder()
	ctx = e.NewContext(req, rec)
	ctx.SetParamNames("id")
	ctx.SetParamValues(uuid.NewString())

	if err := h.Correct(ctx); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if rec.Code != http.StatusNotFound {
		t.Fatalf("unexpected status: %d", rec.Code)
	}
}

// TestListExpensesEmpty проверяет пустой список без истории.
func TestListExpensesEmpty(t *testing.T) {
	h, e := newTestHandler()

	req := httptest.NewRequest(http.MethodGet, "/api/v1/expenses", nil)
	rec := httptest.NewRecorder()

	if err := h.List(e.NewContext(req, rec)); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected status: %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"expenses":[]`) {
		t.Fatalf("expected empty list, body: %s", rec.Body.String())
	}
}
