package extraction

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

// ErrExtraction сигнализирует о невозможности извлечь данные из изображения.
var ErrExtraction = errors.New("receipt extraction failed")

// Receipt описывает результат извлечения данных чека.
type Receipt struct {
	RawText     string    `json:"raw_text"`
	Merchant    string    `json:"merchant"`
	AmountCents int64     `json:"amount_cents"`
	Date        time.Time `json:"date"`
	Description string    `json:"description"`
	Confidence  float64   `json:"confidence"`
}

// Extractor извлекает структурированные данные чека из изображения.
type Extractor interface {
	Extract(ctx context.Context, imageBytes []byte) (Receipt, error)
}

// OCREngine распознает сырой текст на изображении.
type OCREngine interface {
	RecognizeText(ctx context.Context, imageBytes []byte) (string, error)
}

// ReceiptReader структурирует OCR-текст чека (реализуется ai.Service).
type ReceiptReader interface {
	ExtractReceipt(ctx context.Context, rawText string, today time.Time) (ReceiptFields, error)
}

// ReceiptFields содержит структурированные поля, выданные ридером чеков.
type ReceiptFields struct {
	Merchant    string
	AmountCents int64
	Date        string
	Description string
	Confidence  float64
}

// Adapter комбинирует OCR, AI-структурирование и эвристический разбор.
type Adapter struct {
	engine  OCREngine
	reader  ReceiptReader
	timeout time.Duration
	logger  *slog.Logger
	now     func() time.Time
}

// NewAdapter создает адаптер извлечения; reader может быть nil.
func NewAdapter(engine OCREngine, reader ReceiptReader, timeout time.Duration, logger *slog.Logger) *Adapter {
	if logger == nil {
		logger = slog.Default()
	}

	return &Adapter{
		engine:  engine,
		reader:  reader,
		timeout: timeout,
		logger:  logger,
		now:     time.Now,
	}
}

// Extract распознает текст чека и структурирует его. AI-шаг ограничен
// таймаутом; при его отказе используется эвристический разбор текста.
func (a *Adapter) Extract(ctx context.Context, imageBytes []byte) (Receipt, error) {
	if len(imageBytes) == 0 {
		return Receipt{}, fmt.Errorf("%w: empty image", ErrExtraction)
	}

	ocrCtx, cancel := context.WithTimeout(ctx, a.timeout)
	rawText, err := a.engine.RecognizeText(ocrCtx, imageBytes)
	cancel()
	if err != nil {
		return Receipt{}, fmt.Errorf("%w: %v", ErrExtraction, err)
	}
	if rawText == "" {
		return Receipt{}, fmt.Errorf("%w: ocr produced no text", ErrExtraction)
	}

	today := a.now()

	if a.reader != nil {
		readCtx, cancel := context.WithTimeout(ctx, a.timeout)
		fields, err := a.reader.ExtractReceipt(readCtx, rawText, today)
		cancel()
		if err == nil {
			return Receipt{
				RawText:     rawText,
				Merchant:    fields.Merchant,
				AmountCents: fields.AmountCents,
				Date:        parseReceiptDate(fields.Date, today),
				Description: fields.Description,
				Confidence:  fields.Confidence,
			}, nil
		}

		a.logger.Warn("ai receipt extraction failed, using heuristic parser",
			slog.String("error", err.Error()))
	}

	return parseReceiptText(rawText, today), nil
}
