package server

import (
	"github.com/labstack/echo/v4"

	"example.com/expense-agent/backend/internal/handlers"
)

func registerRoutes(
	e *echo.Echo,
	expenseHandler *handlers.ExpenseHandler,
	insightsHandler *handlers.InsightsHandler,
	budgetHandler *handlers.BudgetHandler,
	aiRateLimiter echo.MiddlewareFunc,
) {
	e.GET("/health", handlers.Health)

	api := e.Group("/api/v1")

	expenses := api.Group("/expenses")
	expenses.GET("", expenseHandler.List)
	expenses.POST("", expenseHandler.Create, aiRateLimiter)
	expenses.POST("/scan", expenseHandler.Scan, aiRateLimiter)
	expenses.POST("/:id/correct", expenseHandler.Correct)

	api.GET("/insights", insightsHandler.Get)

	budget := api.Group("/budget")
	budget.POST("/plan", budgetHandler.Plan)
	budget.POST("/adjustments", budgetHandler.Adjust)
}
