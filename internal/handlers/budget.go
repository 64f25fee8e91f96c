package handlers

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"example.com/expense-agent/backend/internal/models"
	"example.com/expense-agent/backend/internal/orchestrator"
)

type BudgetHandler struct {
	Orchestrator *orchestrator.Orchestrator
}

// NewBudgetHandler создает обработчик планирования бюджета.
func NewBudgetHandler(orch *orchestrator.Orchestrator) *BudgetHandler {
	return &BudgetHandler{Orchestrator: orch}
}

type BudgetPlanRequest struct {
	IncomeCents int64 `json:"income_cents" validate:"gte=0"`
}

type BudgetAdjustmentRequest struct {
	Bucket string  `json:"bucket" validate:"required"`
	Ratio  float64 `json:"ratio" validate:"gt=0,lte=1"`
}

type BudgetAdjustmentResponse struct {
	Bucket models.Bucket `json:"bucket"`
	Ratio  float64       `json:"ratio"`
}

// Plan строит план 50/30/20 по сохраненной истории и заданному доходу.
func (h *BudgetHandler) Plan(c echo.Context) error {
	var req BudgetPlanRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid payload")
	}
	if err := c.Validate(&req); err != nil {
		return badRequest(c, "validation failed")
	}

	result, err := h.Orchestrator.RefreshInsights(c.Request().Context(), &req.IncomeCents)
	if err != nil {
		return serverError(c)
	}

	return c.JSON(http.StatusOK, result)
}

// Adjust запоминает пользовательскую долю корзины для будущих планов.
func (h *BudgetHandler) Adjust(c echo.Context) error {
	var req BudgetAdjustmentRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid payload")
	}
	if err := c.Validate(&req); err != nil {
		return badRequest(c, "validation failed")
	}

	bucket, ok := models.ParseBucket(req.Bucket)
	if !ok {
		return badRequest(c, "unknown bucket")
	}

	h.Orchestrator.SetBudgetAdjustment(bucket, req.Ratio)

	return c.JSON(http.StatusOK, BudgetAdjustmentResponse{Bucket: bucket, Ratio: req.Ratio})
}
