package handlers

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"

	"example.com/expense-agent/backend/internal/orchestrator"
)

type InsightsHandler struct {
	Orchestrator *orchestrator.Orchestrator
}

// NewInsightsHandler создает обработчик аналитики расходов.
func NewInsightsHandler(orch *orchestrator.Orchestrator) *InsightsHandler {
	return &InsightsHandler{Orchestrator: orch}
}

// Get пересчитывает тренды, прогноз и оценку здоровья по всей истории.
// Необязательный параметр income_cents добавляет к ответу план бюджета.
func (h *InsightsHandler) Get(c echo.Context) error {
	var incomeCents *int64
	if raw := strings.TrimSpace(c.QueryParam("income_cents")); raw != "" {
		parsed, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || parsed < 0 {
			return badRequest(c, "invalid income_cents")
		}
		incomeCents = &parsed
	}

	result, err := h.Orchestrator.RefreshInsights(c.Request().Context(), incomeCents)
	if err != nil {
		return serverError(c)
	}

	return c.JSON(http.StatusOK, result)
}
