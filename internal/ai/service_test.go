package ai

import (
	"context"
	"errors"
	"testing"
	"time"

	"example.com/expense-agent/backend/internal/models"
)

type stubClient struct {
	content string
	err     error
}

func (s stubClient) Chat(ctx context.Context, messages []Message) (string, error) {
	return s.content, s.err
}

// TestExtractJSONPlain проверяет извлечение JSON без обрамления.
func TestExtractJSONPlain(t *testing.T) {
	got := extractJSON(`{"category": "dining"}`)
	if got != `{"category": "dining"}` {
		t.Fatalf("unexpected result: %s", got)
	}
}

// TestExtractJSONCodeFence проверяет снятие код-блока вокруг JSON.
func TestExtractJSONCodeFence(t *testing.T) {
	input := "```json\n{\"category\": \"dining\"}\n```"
	got := extractJSON(input)
	if got != `{"category": "dining"}` {
		t.Fatalf("unexpected result: %s", got)
	}
}

// TestExtractJSONMissing проверяет пустой результат без JSON.
func TestExtractJSONMissing(t *testing.T) {
	if got := extractJSON("no json here"); got != "" {
		t.Fatalf("expected empty, got %s", got)
	}
}

// TestClassifyExpense проверяет успешную классификацию и клэмп уверенности.
func TestClassifyExpense(t *testing.T) {
	service := NewService(stubClient{content: `{"category": "dining", "confidence": 1.4, "reasoning": "coffee shop"}`})

	result, err := service.ClassifyExpense(context.Background(), ClassifyInput{Merchant: "Starbucks", AmountCents: 550})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if result.Category != models.CategoryDining {
		t.Fatalf("expected dining, got %s", result.Category)
	}
	if result.Confidence != 1.0 {
		t.Fatalf("expected clamped confidence 1.0, got %v", result.Confidence)
	}
}

// TestClassifyExpenseUnknownCategory проверяет отказ на категории вне списка.
func TestClassifyExpenseUnknownCategory(t *testing.T) {
	service := NewService(stubClient{content: `{"category": "crypto", "confidence": 0.9}`})

	if _, err := service.ClassifyExpense(context.Background(), ClassifyInput{Merchant: "Coinbase"}); err == nil {
		t.Fatal("expected error for unknown category")
	}
}

// TestClassifyExpenseClientError проверяет проброс ошибки клиента.
func TestClassifyExpenseClientError(t *testing.T) {
	service := NewService(stubClient{err: errors.New("timeout")})

	if _, err := service.ClassifyExpense(context.Background(), ClassifyInput{Merchant: "Starbucks"}); err == nil {
		t.Fatal("expected client error")
	}
}

// TestExtractReceipt проверяет разбор ответа по чеку и перевод суммы в центы.
func TestExtractReceipt(t *testing.T) {
	service := NewService(stubClient{content: `{"merchant": "Walmart", "amount": 42.37, "date": "2025-06-01", "items": ["milk", "bread"], "confidence": 0.9}`})

	result, err := service.ExtractReceipt(context.Background(), "WALMART\nTOTAL 42.37", time.Now())
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if result.Merchant != "Walmart" {
		t.Fatalf("expected Walmart, got %s", result.Merchant)
	}
	if result.AmountCents != 4237 {
		t.Fatalf("expected 4237 cents, got %d", result.AmountCents)
	}
	if result.Description != "milk, bread" {
		t.Fatalf("expected items joined into description, got %s", result.Description)
	}
}

// TestExtractReceiptEmptyText проверяет отказ на пустом OCR-тексте.
func TestExtractReceiptEmptyText(t *testing.T) {
	service := NewService(stubClient{content: `{}`})

	if _, err := service.ExtractReceipt(context.Background(), "  ", time.Now()); err == nil {
		t.Fatal("expected error for empty text")
	}
}
