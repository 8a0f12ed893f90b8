package extract

import (
	"google.golang.org/genai"

	"github.com/cardspark/spendmatch/internal/domain"
)

// responseSchema builds the schema contract the model is held to: a
// fixed field set per transaction with enumerated category and
// direction values. Values outside the enumerations are rejected
// downstream, never coerced.
func responseSchema() *genai.Schema {
	categories := make([]string, 0, len(domain.Categories()))
	for _, c := range domain.Categories() {
		categories = append(categories, string(c))
	}

	transaction := &genai.Schema{
		Type: genai.TypeObject,
		Properties: map[string]*genai.Schema{
			"date": {
				Type:        genai.TypeString,
				Description: "Posting date in ISO format YYYY-MM-DD",
			},
			"merchant": {
				Type:        genai.TypeString,
				Description: "Merchant or counterparty text as printed on the statement",
			},
			"amount": {
				Type:        genai.TypeNumber,
				Description: "Positive transaction amount in the statement currency",
			},
			"direction": {
				Type: genai.TypeString,
				Enum: []string{string(domain.DirectionDebit), string(domain.DirectionCredit)},
			},
			"category": {
				Type: genai.TypeString,
				Enum: categories,
			},
		},
		Required: []string{"date", "merchant", "amount", "direction", "category"},
	}

	return &genai.Schema{
		Type: genai.TypeObject,
		Properties: map[string]*genai.Schema{
			"transactions": {
				Type:  genai.TypeArray,
				Items: transaction,
			},
			"metadata": {
				Type: genai.TypeObject,
				Properties: map[string]*genai.Schema{
					"total_count":      {Type: genai.TypeInteger},
					"date_range_start": {Type: genai.TypeString},
					"date_range_end":   {Type: genai.TypeString},
				},
				Required: []string{"total_count"},
			},
		},
		Required: []string{"transactions", "metadata"},
	}
}
