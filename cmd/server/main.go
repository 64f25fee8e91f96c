package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"example.com/expense-agent/backend/internal/config"
	"example.com/expense-agent/backend/internal/database"
	"example.com/expense-agent/backend/internal/memory"
	"example.com/expense-agent/backend/internal/repository"
	"example.com/expense-agent/backend/internal/server"
)

func main() {
	ensureEnvFile()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", slog.String("error", err.Error()))
		os.Exit(1)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	db, err := database.Open(context.Background(), cfg.Database)
	if err != nil {
		logger.Error("failed to open database", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer func() {
		db.Close()
	}()

	mem := memory.New(cfg.Agents.MemoryWindowSize)
	memoryRepo := repository.NewMemoryRepository(db)

	snapshot, err := memoryRepo.LoadSnapshot(context.Background())
	switch {
	case err == nil:
		if err := mem.Restore(snapshot); err != nil {
			logger.Warn("agent memory snapshot is corrupt, starting fresh", slog.String("error", err.Error()))
		} else {
			logger.Info("agent memory restored")
		}
	case errors.Is(err, repository.ErrNotFound):
		logger.Info("no agent memory snapshot, starting fresh")
	default:
		logger.Error("failed to load agent memory", slog.String("error", err.Error()))
		os.Exit(1)
	}

	e := server.New(cfg, logger, db, mem)
	httpServer := server.NewHTTPServer(cfg.Server, e)

	go func() {
		if err := e.StartServer(httpServer); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server failed", slog.String("error", err.Error()))
		}
	}()

	shutdownSignal := make(chan os.Signal, 1)
	signal.Notify(shutdownSignal, syscall.SIGINT, syscall.SIGTERM)
	<-shutdownSignal

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", slog.String("error", err.Error()))
	}

	saveCtx, cancelSave := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelSave()

	if snapshot, err := mem.Snapshot(); err != nil {
		logger.Error("failed to serialize agent memory", slog.String("error", err.Error()))
	} else if err := memoryRepo.SaveSnapshot(saveCtx, snapshot); err != nil {
		logger.Error("failed to save agent memory", slog.String("error", err.Error()))
	} else {
		logger.Info("agent memory saved")
	}
}

func ensureEnvFile() {
	if os.Getenv("ENV_FILE") != "" {
		return
	}

	if _, err := os.Stat(".env"); err == nil {
		_ = os.Setenv("ENV_FILE", ".env")
		return
	}

	if _, err := os.Stat("../.env"); err == nil {
		_ = os.Setenv("ENV_FILE", "../.env")
	}
}
