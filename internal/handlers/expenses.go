package handlers

import (
	"encoding/base64"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"example.com/expense-agent/backend/internal/models"
	"example.com/expense-agent/backend/internal/orchestrator"
	"example.com/expense-agent/backend/internal/repository"
)

const dateLayout = "2006-01-02"

type ExpenseHandler struct {
	Orchestrator *orchestrator.Orchestrator
	Store        orchestrator.ExpenseStore
}

// NewExpenseHandler создает обработчик операций с расходами.
func NewExpenseHandler(orch *orchestrator.Orchestrator, store orchestrator.ExpenseStore) *ExpenseHandler {
	return &ExpenseHandler{
		Orchestrator: orch,
		Store:        store,
	}
}

type CreateExpenseRequest struct {
	Merchant    string `json:"merchant"`
	Description string `json:"description"`
	AmountCents int64  `json:"amount_cents" validate:"gte=0"`
	Date        string `json:"date"`
	IncomeCents *int64 `json:"income_cents" validate:"omitempty,gte=0"`
}

type ScanExpenseRequest struct {
	ImageBase64 string `json:"image_base64" validate:"required"`
	IncomeCents *int64 `json:"income_cents" validate:"omitempty,gte=0"`
}

type CorrectExpenseRequest struct {
	Category string `json:"category" validate:"required"`
}

type ListExpensesResponse struct {
	Expenses []models.Expense `json:"expenses"`
}

// Create проводит ручной расход через конвейер агентов.
func (h *ExpenseHandler) Create(c echo.Context) error {
	var req CreateExpenseRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid payload")
	}
	if err := c.Validate(&req); err != nil {
		return badRequest(c, "validation failed")
	}

	var date time.Time
	if trimmed := strings.TrimSpace(req.Date); trimmed != "" {
		parsed, err := time.Parse(dateLayout, trimmed)
		if err != nil {
			return badRequest(c, "invalid date, expected YYYY-MM-DD")
		}
		date = parsed
	}

	result, err := h.Orchestrator.ProcessExpense(c.Request().Context(), orchestrator.NewExpenseRequest{
		Merchant:    req.Merchant,
		Description: req.Description,
		AmountCents: req.AmountCents,
		Date:        date,
		IncomeCents: req.IncomeCents,
	})
	if err != nil {
		if errors.Is(err, orchestrator.ErrPrecondition) {
			return unprocessable(c, err.Error())
		}
		return serverError(c)
	}

	return c.JSON(http.StatusCreated, result)
}

// Scan проводит чек через извлечение и дальше по конвейеру.
func (h *ExpenseHandler) Scan(c echo.Context) error {
	var req ScanExpenseRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid payload")
	}
	if err := c.Validate(&req); err != nil {
		return badRequest(c, "validation failed")
	}

	image, err := base64.StdEncoding.DecodeString(req.ImageBase64)
	if err != nil {
		return badRequest(c, "invalid base64 image")
	}

	result, err := h.Orchestrator.ProcessExpense(c.Request().Context(), orchestrator.NewExpenseRequest{
		Image:       image,
		IncomeCents: req.IncomeCents,
	})
	if err != nil {
		if errors.Is(err, orchestrator.ErrPrecondition) {
			return unprocessable(c, err.Error())
		}
		return serverError(c)
	}

	return c.JSON(http.StatusCreated, result)
}

// Correct применяет пользовательское исправление категории.
func (h *ExpenseHandler) Correct(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return badRequest(c, "invalid expense id")
	}

	var req CorrectExpenseRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid payload")
	}
	if err := c.Validate(&req); err != nil {
		return badRequest(c, "validation failed")
	}

	category, ok := models.ParseCategory(req.Category)
	if !ok {
		return badRequest(c, "unknown category")
	}

	expense, err := h.Orchestrator.CorrectExpense(c.Request().Context(), id, category)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return notFound(c, "expense not found")
		}
		return serverError(c)
	}

	return c.JSON(http.StatusOK, expense)
}

// List возвращает всю историю расходов в хронологическом порядке.
func (h *ExpenseHandler) List(c echo.Context) error {
	expenses, err := h.Store.ListAll(c.Request().Context())
	if err != nil {
		return serverError(c)
	}
	if expenses == nil {
		expenses = []models.Expense{}
	}

	return c.JSON(http.StatusOK, ListExpensesResponse{Expenses: expenses})
}
