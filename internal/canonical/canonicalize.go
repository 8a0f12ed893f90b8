// Package canonical reduces raw extracted transactions to the canonical
// fields used for identity computation, and derives the two identifiers
// the ingestion pipeline is built on: the content hash used for dedup
// and the batch-scoped transaction id used as the storage primary key.
package canonical

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/cardspark/spendmatch/internal/domain"
)

const dateFormat = "2006-01-02"

// MalformedInputError reports a raw transaction that cannot be
// canonicalized: a non-positive amount or a date that fails the strict
// ISO format check. The statement is user-correctable; no repair is
// attempted here.
type MalformedInputError struct {
	Field  string
	Reason string
}

func (e *MalformedInputError) Error() string {
	return fmt.Sprintf("malformed transaction input: %s: %s", e.Field, e.Reason)
}

// Canonicalize normalizes one raw transaction into its canonical form.
// The amount is rounded to minor units with banker's rounding so that
// floating-point noise cannot shift the identity hash; merchant text is
// lowercased with all whitespace runs collapsed to single spaces.
func Canonicalize(raw domain.RawTransaction) (domain.CanonicalTransaction, error) {
	if raw.Amount <= 0 {
		return domain.CanonicalTransaction{}, &MalformedInputError{
			Field:  "amount",
			Reason: fmt.Sprintf("must be positive, got %v", raw.Amount),
		}
	}

	date := strings.TrimSpace(raw.Date)
	parsed, err := time.Parse(dateFormat, date)
	if err != nil || parsed.Format(dateFormat) != date {
		return domain.CanonicalTransaction{}, &MalformedInputError{
			Field:  "date",
			Reason: fmt.Sprintf("%q is not a valid ISO calendar date", raw.Date),
		}
	}

	return domain.CanonicalTransaction{
		PostedDate:         date,
		AmountMinor:        AmountToMinor(raw.Amount),
		NormalizedMerchant: NormalizeMerchant(raw.Merchant),
	}, nil
}

// AmountToMinor converts a major-unit amount to minor units (cent or
// paisa) using unbiased banker's rounding.
func AmountToMinor(amount float64) int64 {
	return int64(math.RoundToEven(amount * 100))
}

// NormalizeMerchant lowercases merchant text and collapses surrounding
// and internal whitespace.
func NormalizeMerchant(merchant string) string {
	return strings.Join(strings.Fields(strings.ToLower(merchant)), " ")
}
