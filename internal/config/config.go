package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Env      string
	Server   ServerConfig
	Database DatabaseConfig
	AI       AIConfig
	OCR      OCRConfig
	Agents   AgentsConfig
}

type OCRConfig struct {
	Binary string
}

type ServerConfig struct {
	Host         string
	Port         int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

type DatabaseConfig struct {
	Path string
}

type AIConfig struct {
	Provider           string
	APIKey             string
	BaseURL            string
	Model              string
	Timeout            time.Duration
	RateLimitPerMinute int
	RateLimitBurst     int
	MaxOutputTokens    int
}

type AgentsConfig struct {
	MemoryWindowSize    int
	ForecastLookback    int
	OverageTolerance    float64
	RuleExactConfidence float64
	RulePartConfidence  float64
	RuleNoneConfidence  float64
}

// Load загружает конфигурацию приложения из окружения и .env.
func Load() (Config, error) {
	cfg := Config{}

	if err := loadEnv(); err != nil {
		return cfg, err
	}

	cfg.Env = getEnv("APP_ENV", "local")

	serverPort, err := parseIntEnv("SERVER_PORT", 8080)
	if err != nil {
		return cfg, err
	}

	readTimeout, err := parseDurationEnv("SERVER_READ_TIMEOUT", 5*time.Second)
	if err != nil {
		return cfg, err
	}

	writeTimeout, err := parseDurationEnv("SERVER_WRITE_TIMEOUT", 30*time.Second)
	if err != nil {
		return cfg, err
	}

	idleTimeout, err := parseDurationEnv("SERVER_IDLE_TIMEOUT", 60*time.Second)
	if err != nil {
		return cfg, err
	}

	cfg.Server = ServerConfig{
		Host:         getEnv("SERVER_HOST", "0.0.0.0"),
		Port:         serverPort,
		ReadTimeout:  readTimeout,
		WriteTimeout: writeTimeout,
		IdleTimeout:  idleTimeout,
	}

	cfg.Database = DatabaseConfig{
		Path: getEnv("DB_PATH", "data/expenses.db"),
	}

	aiTimeout, err := parseDurationEnv("AI_TIMEOUT", 5*time.Second)
	if err != nil {
		return cfg, err
	}

	aiRateLimitPerMinute, err := parseIntEnv("AI_RATE_LIMIT_PER_MINUTE", 30)
	if err != nil {
		return cfg, err
	}

	aiRateLimitBurst, err := parseIntEnv("AI_RATE_LIMIT_BURST", 10)
	if err != nil {
		return cfg, err
	}

	aiMaxOutputTokens, err := parseIntEnv("AI_MAX_OUTPUT_TOKENS", 1024)
	if err != nil {
		return cfg, err
	}

	aiProvider := strings.ToLower(getEnv("AI_PROVIDER", "groq"))
	defaultBaseURL := "https://api.groq.com/openai/v1"
	defaultModel := "llama-3.3-70b-versatile"
	if aiProvider == "gemini" {
		defaultBaseURL = "https://generativelanguage.googleapis.com/v1beta"
		defaultModel = "gemini-1.5-flash"
	}

	aiAPIKey := getEnv("AI_API_KEY", "")
	if aiAPIKey == "" && aiProvider == "gemini" {
		aiAPIKey = getEnv("GEMINI_API_KEY", "")
	}

	cfg.AI = AIConfig{
		Provider:           aiProvider,
		APIKey:             aiAPIKey,
		BaseURL:            getEnv("AI_BASE_URL", defaultBaseURL),
		Model:              getEnv("AI_MODEL", defaultModel),
		Timeout:            aiTimeout,
		RateLimitPerMinute: aiRateLimitPerMinute,
		RateLimitBurst:     aiRateLimitBurst,
		MaxOutputTokens:    aiMaxOutputTokens,
	}

	cfg.OCR = OCRConfig{
		Binary: getEnv("OCR_BINARY", "tesseract"),
	}

	memoryWindow, err := parseIntEnv("MEMORY_WINDOW_SIZE", 200)
	if err != nil {
		return cfg, err
	}

	forecastLookback, err := parseIntEnv("INSIGHTS_FORECAST_LOOKBACK", 3)
	if err != nil {
		return cfg, err
	}

	overageTolerance, err := parseFloatEnv("ADVISOR_OVERAGE_TOLERANCE", 0.10)
	if err != nil {
		return cfg, err
	}

	ruleExact, err := parseFloatEnv("RULE_EXACT_CONFIDENCE", 0.85)
	if err != nil {
		return cfg, err
	}

	rulePart, err := parseFloatEnv("RULE_PARTIAL_CONFIDENCE", 0.6)
	if err != nil {
		return cfg, err
	}

	ruleNone, err := parseFloatEnv("RULE_FALLBACK_CONFIDENCE", 0.2)
	if err != nil {
		return cfg, err
	}

	cfg.Agents = AgentsConfig{
		MemoryWindowSize:    memoryWindow,
		ForecastLookback:    forecastLookback,
		OverageTolerance:    overageTolerance,
		RuleExactConfidence: ruleExact,
		RulePartConfidence:  rulePart,
		RuleNoneConfidence:  ruleNone,
	}

	if err := cfg.validate(); err != nil {
		return cfg, err
	}

	return cfg, nil
}

func (c Config) validate() error {
	if c.Server.Port <= 0 {
		return fmt.Errorf("SERVER_PORT must be greater than 0")
	}

	if c.Database.Path == "" {
		return fmt.Errorf("DB_PATH is required")
	}

	if c.AI.RateLimitPerMinute <= 0 {
		return fmt.Errorf("AI_RATE_LIMIT_PER_MINUTE must be greater than 0")
	}

	if c.AI.RateLimitBurst <= 0 {
		return fmt.Errorf("AI_RATE_LIMIT_BURST must be greater than 0")
	}

	if c.AI.MaxOutputTokens <= 0 {
		return fmt.Errorf("AI_MAX_OUTPUT_TOKENS must be greater than 0")
	}

	if c.Agents.OverageTolerance < 0 || c.Agents.OverageTolerance >= 1 {
		return fmt.Errorf("ADVISOR_OVERAGE_TOLERANCE must be in [0, 1)")
	}

	if c.Agents.RuleExactConfidence <= c.Agents.RulePartConfidence {
		return fmt.Errorf("RULE_EXACT_CONFIDENCE must exceed RULE_PARTIAL_CONFIDENCE")
	}

	if c.Agents.RulePartConfidence <= c.Agents.RuleNoneConfidence {
		return fmt.Errorf("RULE_PARTIAL_CONFIDENCE must exceed RULE_FALLBACK_CONFIDENCE")
	}

	return nil
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}

	return fallback
}

func parseIntEnv(key string, fallback int) (int, error) {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback, nil
	}

	parsed, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer: %w", key, err)
	}

	if parsed <= 0 {
		return 0, fmt.Errorf("%s must be greater than 0", key)
	}

	return parsed, nil
}

func parseDurationEnv(key string, fallback time.Duration) (time.Duration, error) {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback, nil
	}

	parsed, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("%s must be a duration: %w", key, err)
	}

	if parsed <= 0 {
		return 0, fmt.Errorf("%s must be greater than 0", key)
	}

	return parsed, nil
}

func parseFloatEnv(key string, fallback float64) (float64, error) {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback, nil
	}

	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0, fmt.Errorf("%s must be a number: %w", key, err)
	}

	if parsed < 0 {
		return 0, fmt.Errorf("%s cannot be negative", key)
	}

	return parsed, nil
}

func loadEnv() error {
	if envFile := os.Getenv("ENV_FILE"); envFile != "" {
		if err := godotenv.Load(envFile); err != nil {
			return fmt.Errorf("load env file %s: %w", envFile, err)
		}
		return nil
	}

	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("load .env: %w", err)
	}

	return nil
}
