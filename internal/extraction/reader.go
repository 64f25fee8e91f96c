package extraction

import (
	"context"
	"time"

	"example.com/expense-agent/backend/internal/ai"
)

// ServiceReader адаптирует ai.Service к интерфейсу ReceiptReader.
type ServiceReader struct {
	Service *ai.Service
}

// NewServiceReader оборачивает AI-сервис для структурирования чеков.
func NewServiceReader(service *ai.Service) ServiceReader {
	return ServiceReader{Service: service}
}

// ExtractReceipt делегирует структурирование текста чека AI-сервису.
func (r ServiceReader) ExtractReceipt(ctx context.Context, rawText string, today time.Time) (ReceiptFields, error) {
	result, err := r.Service.ExtractReceipt(ctx, rawText, today)
	if err != nil {
		return ReceiptFields{}, err
	}

	return ReceiptFields{
		Merchant:    result.Merchant,
		AmountCents: result.AmountCents,
		Date:        result.Date,
		Description: result.Description,
		Confidence:  result.Confidence,
	}, nil
}
