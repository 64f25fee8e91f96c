package extraction

import (
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"
)

const heuristicConfidence = 0.5

var (
	amountPattern  = regexp.MustCompile(`\$?\s*(\d+[.,]\d{2})`)
	isoDatePattern = regexp.MustCompile(`\d{4}-\d{2}-\d{2}`)
	usDatePattern  = regexp.MustCompile(`(\d{1,2})/(\d{1,2})/(\d{4})`)
	digitsOnly     = regexp.MustCompile(`^\d+$`)
	nonAlnum       = regexp.MustCompile(`[^a-zA-Z0-9\s]`)
)

// parseReceiptText детерминированно разбирает OCR-текст без AI:
// максимальная сумма на чеке, первая осмысленная строка как продавец.
func parseReceiptText(rawText string, today time.Time) Receipt {
	return Receipt{
		RawText:     rawText,
		Merchant:    guessMerchant(rawText),
		AmountCents: guessAmountCents(rawText),
		Date:        guessDate(rawText, today),
		Confidence:  heuristicConfidence,
	}
}

// guessAmountCents берет наибольшую денежную величину: итог чека обычно
// не меньше любой из строк позиций.
func guessAmountCents(rawText string) int64 {
	var best float64
	for _, match := range amountPattern.FindAllStringSubmatch(rawText, -1) {
		normalized := strings.ReplaceAll(match[1], ",", ".")
		value, err := strconv.ParseFloat(normalized, 64)
		if err != nil {
			continue
		}
		if value > best {
			best = value
		}
	}

	return int64(math.Round(best * 100))
}

func guessMerchant(rawText string) string {
	lines := strings.Split(rawText, "\n")
	limit := 5
	if len(lines) < limit {
		limit = len(lines)
	}

	for _, line := range lines[:limit] {
		trimmed := strings.TrimSpace(line)
		if len(trimmed) <= 3 || digitsOnly.MatchString(trimmed) {
			continue
		}

		cleaned := strings.TrimSpace(nonAlnum.ReplaceAllString(trimmed, " "))
		cleaned = strings.Join(strings.Fields(cleaned), " ")
		if cleaned != "" && len(cleaned) <= 30 {
			return cleaned
		}
	}

	return ""
}

func guessDate(rawText string, today time.Time) time.Time {
	if match := isoDatePattern.FindString(rawText); match != "" {
		if parsed, err := time.Parse("2006-01-02", match); err == nil {
			return parsed
		}
	}

	if match := usDatePattern.FindStringSubmatch(rawText); match != nil {
		month, _ := strconv.Atoi(match[1])
		day, _ := strconv.Atoi(match[2])
		year, _ := strconv.Atoi(match[3])
		if month >= 1 && month <= 12 && day >= 1 && day <= 31 {
			return time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
		}
	}

	return time.Date(today.Year(), today.Month(), today.Day(), 0, 0, 0, 0, time.UTC)
}

// parseReceiptDate разбирает дату из AI-ответа, откатываясь к сегодняшней.
func parseReceiptDate(value string, today time.Time) time.Time {
	if parsed, err := time.Parse("2006-01-02", strings.TrimSpace(value)); err == nil {
		return parsed
	}

	return time.Date(today.Year(), today.Month(), today.Day(), 0, 0, 0, 0, time.UTC)
}
