package extract

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/cardspark/spendmatch/internal/domain"
)

// wire types mirror the extraction response contract exactly.
type wireTransaction struct {
	Date      string  `json:"date"`
	Merchant  string  `json:"merchant"`
	Amount    float64 `json:"amount"`
	Direction string  `json:"direction"`
	Category  string  `json:"category"`
}

type wireMetadata struct {
	TotalCount     int    `json:"total_count"`
	DateRangeStart string `json:"date_range_start"`
	DateRangeEnd   string `json:"date_range_end"`
}

type wireResponse struct {
	Transactions []wireTransaction `json:"transactions"`
	Metadata     wireMetadata      `json:"metadata"`
}

// parseExtractionOutput decodes the model's reply and enforces the
// schema contract. Values outside the category or direction
// enumerations are contract violations and fail the whole run.
func parseExtractionOutput(raw string) ([]domain.RawTransaction, wireMetadata, error) {
	clean := cleanModelJSON(raw)

	var resp wireResponse
	if err := json.Unmarshal([]byte(clean), &resp); err != nil {
		return nil, wireMetadata{}, &ExtractionServiceError{
			Reason: "response is not valid JSON",
			Err:    fmt.Errorf("unmarshal: %w", err),
		}
	}

	txs := make([]domain.RawTransaction, 0, len(resp.Transactions))
	for i, wt := range resp.Transactions {
		direction := domain.Direction(wt.Direction)
		if !direction.Valid() {
			return nil, wireMetadata{}, &ExtractionServiceError{
				Reason: fmt.Sprintf("transaction %d: direction %q is outside the contract enumeration", i, wt.Direction),
			}
		}
		category := domain.Category(wt.Category)
		if !category.Valid() {
			return nil, wireMetadata{}, &ExtractionServiceError{
				Reason: fmt.Sprintf("transaction %d: category %q is outside the contract enumeration", i, wt.Category),
			}
		}
		if strings.TrimSpace(wt.Merchant) == "" {
			return nil, wireMetadata{}, &ExtractionServiceError{
				Reason: fmt.Sprintf("transaction %d: empty merchant", i),
			}
		}

		txs = append(txs, domain.RawTransaction{
			Date:      wt.Date,
			Merchant:  wt.Merchant,
			Amount:    wt.Amount,
			Direction: direction,
			Category:  category,
			LineNo:    i,
		})
	}

	return txs, resp.Metadata, nil
}

// cleanModelJSON strips Markdown fences and surrounding prose if the
// model ignored the response-format instructions, keeping only the
// outermost JSON object.
func cleanModelJSON(raw string) string {
	s := strings.TrimSpace(raw)

	if strings.HasPrefix(s, "```") {
		// Drop the first line (``` or ```json).
		if idx := strings.Index(s, "\n"); idx != -1 {
			s = s[idx+1:]
		} else {
			return s
		}
		s = strings.TrimSpace(s)
	}
	if idx := strings.LastIndex(s, "```"); idx != -1 {
		s = s[:idx]
	}
	s = strings.TrimSpace(s)

	// If there's still junk around the JSON, keep only from the first
	// '{' to the last '}'.
	if start := strings.Index(s, "{"); start != -1 {
		if end := strings.LastIndex(s, "}"); end != -1 && end > start {
			s = strings.TrimSpace(s[start : end+1])
		}
	}

	return s
}
