package server

import (
	"database/sql"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"golang.org/x/time/rate"

	"example.com/expense-agent/backend/internal/advisor"
	"example.com/expense-agent/backend/internal/ai"
	"example.com/expense-agent/backend/internal/categorizer"
	"example.com/expense-agent/backend/internal/config"
	"example.com/expense-agent/backend/internal/extraction"
	"example.com/expense-agent/backend/internal/handlers"
	"example.com/expense-agent/backend/internal/insights"
	"example.com/expense-agent/backend/internal/memory"
	"example.com/expense-agent/backend/internal/orchestrator"
	"example.com/expense-agent/backend/internal/repository"
)

// New собирает HTTP-сервер Echo с агентами, роутами и зависимостями.
// Память агентов передается извне: ее жизненным циклом управляет main.
func New(cfg config.Config, logger *slog.Logger, db *sql.DB, mem *memory.Memory) *echo.Echo {
	if logger == nil {
		logger = slog.Default()
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Validator = NewValidator()

	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	e.Use(requestLogger(logger))

	expenseRepo := repository.NewExpenseRepository(db)

	var aiClient ai.Client
	switch strings.ToLower(cfg.AI.Provider) {
	case "gemini":
		aiClient = ai.NewGeminiClient(cfg.AI.APIKey, cfg.AI.BaseURL, cfg.AI.Model, cfg.AI.Timeout, cfg.AI.MaxOutputTokens)
	default:
		aiClient = ai.NewGroqClient(cfg.AI.APIKey, cfg.AI.BaseURL, cfg.AI.Model, cfg.AI.Timeout, cfg.AI.MaxOutputTokens)
	}
	aiService := ai.NewService(aiClient)

	// Без API-ключа конвейер работает на правилах, памяти и эвристиках.
	var receiptReader extraction.ReceiptReader
	var reasoner categorizer.Reasoner
	if cfg.AI.APIKey != "" {
		receiptReader = extraction.NewServiceReader(aiService)
		reasoner = aiService
	}

	extractor := extraction.NewAdapter(
		extraction.NewTesseractEngine(cfg.OCR.Binary),
		receiptReader,
		cfg.AI.Timeout,
		logger,
	)

	rules := categorizer.NewRuleEngine(
		cfg.Agents.RuleExactConfidence,
		cfg.Agents.RulePartConfidence,
		cfg.Agents.RuleNoneConfidence,
	)
	cat := categorizer.New(rules, mem, reasoner, cfg.AI.Timeout, logger)

	orch := orchestrator.New(
		extractor,
		cat,
		advisor.New(cfg.Agents.OverageTolerance),
		insights.New(cfg.Agents.ForecastLookback),
		mem,
		expenseRepo,
		logger,
	)

	expenseHandler := handlers.NewExpenseHandler(orch, expenseRepo)
	insightsHandler := handlers.NewInsightsHandler(orch)
	budgetHandler := handlers.NewBudgetHandler(orch)

	registerRoutes(e, expenseHandler, insightsHandler, budgetHandler, aiRateLimiter(cfg.AI))

	return e
}

// NewHTTPServer создает net/http сервер с заданными таймаутами.
func NewHTTPServer(cfg config.ServerConfig, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler:      handler,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}
}

func requestLogger(logger *slog.Logger) echo.MiddlewareFunc {
	return middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogURI:      true,
		LogStatus:   true,
		LogMethod:   true,
		LogLatency:  true,
		LogRemoteIP: true,
		LogError:    true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			attrs := []slog.Attr{
				slog.String("method", v.Method),
				slog.String("uri", v.URI),
				slog.Int("status", v.Status),
				slog.String("remote_ip", v.RemoteIP),
				slog.Duration("latency", v.Latency),
			}

			if v.Error != nil {
				attrs = append(attrs, slog.String("error", v.Error.Error()))
			}

			msg := "request completed"
			if v.Status >= http.StatusInternalServerError {
				logger.LogAttrs(c.Request().Context(), slog.LevelError, msg, attrs...)
				return nil
			}

			logger.LogAttrs(c.Request().Context(), slog.LevelInfo, msg, attrs...)
			return nil
		},
	})
}

func aiRateLimiter(cfg config.AIConfig) echo.MiddlewareFunc {
	limit := rate.Limit(float64(cfg.RateLimitPerMinute) / 60.0)
	store := middleware.NewRateLimiterMemoryStoreWithConfig(middleware.RateLimiterMemoryStoreConfig{
		Rate:      limit,
		Burst:     cfg.RateLimitBurst,
		ExpiresIn: time.Minute,
	})

	return middleware.RateLimiter(store)
}
