package ai

import "example.com/expense-agent/backend/internal/models"

type ClassifyInput struct {
	Merchant         string            `json:"merchant"`
	Description      string            `json:"description"`
	AmountCents      int64             `json:"amount_cents"`
	RecentCategories []models.Category `json:"recent_categories,omitempty"`
}

type ClassifyResult struct {
	Category   models.Category `json:"category"`
	Confidence float64         `json:"confidence"`
	Reasoning  string          `json:"reasoning,omitempty"`
}

type ReceiptResult struct {
	Merchant    string  `json:"merchant"`
	AmountCents int64   `json:"amount_cents"`
	Date        string  `json:"date"`
	Description string  `json:"description"`
	Confidence  float64 `json:"confidence"`
}

type classifyResponse struct {
	Category   string  `json:"category"`
	Confidence float64 `json:"confidence"`
	Reasoning  string  `json:"reasoning"`
}

type receiptResponse struct {
	Merchant    string   `json:"merchant"`
	Amount      float64  `json:"amount"`
	Date        string   `json:"date"`
	Items       []string `json:"items"`
	Description string   `json:"description"`
	Confidence  float64  `json:"confidence"`
}
