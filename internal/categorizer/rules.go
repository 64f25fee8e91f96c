package categorizer

import (
	"strings"

	"example.com/expense-agent/backend/internal/models"
)

// Веса совпадений: имя продавца информативнее описания покупки.
const (
	merchantMatchWeight    = 3
	descriptionMatchWeight = 1
)

var categoryKeywords = map[models.Category][]string{
	models.CategoryGroceries: {
		"grocery", "supermarket", "walmart", "target", "kroger", "safeway",
		"whole foods", "trader joe", "costco", "food store", "market",
	},
	models.CategoryDining: {
		"restaurant", "cafe", "coffee", "starbucks", "mcdonalds", "pizza",
		"burger", "kfc", "subway", "chipotle", "dining", "bar", "pub", "bistro",
	},
	models.CategoryTransport: {
		"gas", "fuel", "shell", "exxon", "chevron", "uber", "lyft", "taxi",
		"parking", "metro", "bus", "train", "car wash",
	},
	models.CategoryHousing: {
		"rent", "mortgage", "apartment", "landlord", "hoa",
	},
	models.CategoryUtilities: {
		"electric", "electricity", "water bill", "internet", "phone", "cable",
		"utility", "telecom", "energy", "heating",
	},
	models.CategoryHealthcare: {
		"pharmacy", "cvs", "walgreens", "hospital", "doctor", "medical",
		"clinic", "dental", "vision", "medication",
	},
	models.CategoryEntertainment: {
		"movie", "theater", "cinema", "concert", "game", "gym", "fitness",
		"recreation", "museum",
	},
	models.CategoryShopping: {
		"amazon", "ebay", "mall", "clothing", "fashion", "shoes",
		"electronics", "best buy", "retail", "boutique",
	},
	models.CategorySubscriptions: {
		"subscription", "membership", "netflix", "spotify", "streaming",
		"premium", "software",
	},
	models.CategoryEducation: {
		"school", "university", "tuition", "course", "books", "training",
	},
	models.CategoryTravel: {
		"hotel", "airbnb", "airline", "flight", "airport", "travel",
		"vacation", "booking", "expedia",
	},
	models.CategorySavings: {
		"savings", "investment", "vanguard", "fidelity", "brokerage",
	},
}

// RuleEngine сопоставляет продавца и описание с таблицей ключевых слов.
type RuleEngine struct {
	exactConfidence    float64
	partialConfidence  float64
	fallbackConfidence float64
}

// NewRuleEngine создает детерминированный движок правил с порогами уверенности.
func NewRuleEngine(exact, partial, fallback float64) *RuleEngine {
	return &RuleEngine{
		exactConfidence:    exact,
		partialConfidence:  partial,
		fallbackConfidence: fallback,
	}
}

// Match возвращает категорию с наибольшим счетом совпадений и ее уверенность.
// Совпадение по продавцу дает высокую уверенность, совпадение только по
// описанию пониженную; без совпадений возвращается (other, fallback).
func (e *RuleEngine) Match(merchant, description string) (models.Category, float64) {
	merchantLower := strings.ToLower(merchant)
	descriptionLower := strings.ToLower(description)

	bestCategory := models.CategoryOther
	bestScore := 0
	bestMerchantHit := false

	for _, category := range models.AllCategories() {
		keywords, ok := categoryKeywords[category]
		if !ok {
			continue
		}

		score := 0
		merchantHit := false
		for _, keyword := range keywords {
			if merchantLower != "" && strings.Contains(merchantLower, keyword) {
				score += merchantMatchWeight
				merchantHit = true
			}
			if descriptionLower != "" && strings.Contains(descriptionLower, keyword) {
				score += descriptionMatchWeight
			}
		}

		if score > bestScore {
			bestCategory = category
			bestScore = score
			bestMerchantHit = merchantHit
		}
	}

	if bestScore == 0 {
		return models.CategoryOther, e.fallbackConfidence
	}

	if bestMerchantHit {
		return bestCategory, e.exactConfidence
	}

	return bestCategory, e.partialConfidence
}
