package ai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"example.com/expense-agent/backend/internal/models"
)

const systemPrompt = "You are an expense tracking assistant. Respond with JSON only, without extra text."

type Service struct {
	client Client
}

// NewService создает сервис работы с AI-клиентом.
func NewService(client Client) *Service {
	return &Service{client: client}
}

// ClassifyExpense запрашивает у AI категорию расхода и валидирует ответ.
func (s *Service) ClassifyExpense(ctx context.Context, input ClassifyInput) (ClassifyResult, error) {
	prompt, err := buildClassifyPrompt(input)
	if err != nil {
		return ClassifyResult{}, err
	}

	messages := []Message{
		{Role: "system", Content: systemPrompt},
		{Role: "user", Content: prompt},
	}

	content, err := s.client.Chat(ctx, messages)
	if err != nil {
		return ClassifyResult{}, err
	}

	var response classifyResponse
	if err := parseJSON(content, &response); err != nil {
		return ClassifyResult{}, err
	}

	category, ok := models.ParseCategory(strings.ToLower(strings.TrimSpace(response.Category)))
	if !ok {
		return ClassifyResult{}, fmt.Errorf("ai returned unknown category: %s", response.Category)
	}

	return ClassifyResult{
		Category:   category,
		Confidence: clampConfidence(response.Confidence),
		Reasoning:  strings.TrimSpace(response.Reasoning),
	}, nil
}

// ExtractReceipt запрашивает у AI структурированные поля чека из OCR-текста.
func (s *Service) ExtractReceipt(ctx context.Context, rawText string, today time.Time) (ReceiptResult, error) {
	if strings.TrimSpace(rawText) == "" {
		return ReceiptResult{}, errors.New("receipt text is empty")
	}

	messages := []Message{
		{Role: "system", Content: systemPrompt},
		{Role: "user", Content: buildReceiptPrompt(rawText, today)},
	}

	content, err := s.client.Chat(ctx, messages)
	if err != nil {
		return ReceiptResult{}, err
	}

	var response receiptResponse
	if err := parseJSON(content, &response); err != nil {
		return ReceiptResult{}, err
	}

	if response.Amount < 0 {
		return ReceiptResult{}, errors.New("ai returned negative amount")
	}

	merchant := strings.TrimSpace(response.Merchant)
	if merchant == "" {
		merchant = "Unknown Merchant"
	}

	description := strings.TrimSpace(response.Description)
	if description == "" && len(response.Items) > 0 {
		description = strings.Join(response.Items, ", ")
	}

	return ReceiptResult{
		Merchant:    merchant,
		AmountCents: int64(math.Round(response.Amount * 100)),
		Date:        strings.TrimSpace(response.Date),
		Description: description,
		Confidence:  clampConfidence(response.Confidence),
	}, nil
}

func buildClassifyPrompt(input ClassifyInput) (string, error) {
	payload, err := json.MarshalIndent(input, "", "  ")
	if err != nil {
		return "", err
	}

	categories := make([]string, 0, len(models.AllCategories()))
	for _, category := range models.AllCategories() {
		categories = append(categories, string(category))
	}

	prompt := fmt.Sprintf(`Categorize this expense and return only valid JSON.

Requirements:
- Output JSON only, no code fences, no extra text.
- Choose the category EXACTLY from this list: %s
- amount_cents is the amount in cents.
- Schema:
{
  "category": "exact category name",
  "confidence": 0.85,
  "reasoning": "brief explanation"
}

Expense:
%s`, strings.Join(categories, ", "), string(payload))

	return prompt, nil
}

func buildReceiptPrompt(rawText string, today time.Time) string {
	return fmt.Sprintf(`Extract financial data from this receipt text. Be very precise and return only valid JSON.

OCR Text:
%s

Instructions:
1. Find the merchant/store name (usually at the top)
2. Extract the total amount (look for words like "total", "amount due", "balance")
3. Find the date (various formats possible)
4. List items purchased (exclude totals, taxes, etc.)

Return ONLY this JSON structure with NO additional text:
{
  "merchant": "exact store name",
  "amount": 0.00,
  "date": "YYYY-MM-DD",
  "items": ["item 1", "item 2"],
  "description": "short description of the purchase",
  "confidence": 0.90
}

Use today's date %s if date unclear. Return "Unknown Merchant" if merchant unclear.`, rawText, today.Format("2006-01-02"))
}

func parseJSON(input string, target interface{}) error {
	payload := extractJSON(input)
	if payload == "" {
		return errors.New("ai response does not contain json")
	}

	return json.Unmarshal([]byte(payload), target)
}

func extractJSON(input string) string {
	trimmed := strings.TrimSpace(input)
	if trimmed == "" {
		return ""
	}

	if strings.HasPrefix(trimmed, "```") {
		trimmed = strings.TrimPrefix(trimmed, "```")
		trimmed = strings.TrimPrefix(strings.TrimSpace(trimmed), "json")
		trimmed = strings.TrimSpace(trimmed)
		if idx := strings.LastIndex(trimmed, "```"); idx >= 0 {
			trimmed = trimmed[:idx]
		}
		trimmed = strings.TrimSpace(trimmed)
	}

	start := strings.Index(trimmed, "{")
	end := strings.LastIndex(trimmed, "}")
	if start == -1 || end == -1 || end <= start {
		return ""
	}

	return trimmed[start : end+1]
}

func clampConfidence(value float64) float64 {
	if value < 0 {
		return 0
	}
	if value > 1 {
		return 1
	}
	return value
}
