package domain

import (
	"time"
)

// Direction tells whether money left or entered the account.
type Direction string

const (
	DirectionDebit  Direction = "debit"
	DirectionCredit Direction = "credit"
)

// Valid reports whether the direction is one of the enumerated values.
// Anything else coming back from the extraction service is a contract
// violation and must be rejected, not coerced.
func (d Direction) Valid() bool {
	return d == DirectionDebit || d == DirectionCredit
}

// Category is the closed spend taxonomy used by the extraction schema,
// the feature profile and the card catalog. The extraction service is
// constrained to these values via the response schema.
type Category string

const (
	CategoryDining         Category = "dining"
	CategoryGroceries      Category = "groceries"
	CategoryOnlineShopping Category = "online_shopping"
	CategoryTravel         Category = "travel"
	CategoryFuel           Category = "fuel"
	CategoryUtilities      Category = "utilities"
	CategoryEntertainment  Category = "entertainment"
	CategoryHealthcare     Category = "healthcare"
	CategoryEducation      Category = "education"
	CategoryRent           Category = "rent"
	CategoryInsurance      Category = "insurance"
	CategoryOther          Category = "other"
)

// Categories lists every valid category in a stable order. Used to build
// the extraction response schema and to validate model output.
func Categories() []Category {
	return []Category{
		CategoryDining,
		CategoryGroceries,
		CategoryOnlineShopping,
		CategoryTravel,
		CategoryFuel,
		CategoryUtilities,
		CategoryEntertainment,
		CategoryHealthcare,
		CategoryEducation,
		CategoryRent,
		CategoryInsurance,
		CategoryOther,
	}
}

// Valid reports whether c is one of the enumerated categories.
func (c Category) Valid() bool {
	for _, v := range Categories() {
		if c == v {
			return true
		}
	}
	return false
}

// RawTransaction is one transaction as returned by the extraction
// service. Not trusted until canonicalized and deduplicated.
type RawTransaction struct {
	Date      string    `json:"date"` // ISO calendar date, YYYY-MM-DD
	Merchant  string    `json:"merchant"`
	Amount    float64   `json:"amount"` // always positive; sign carried by Direction
	Direction Direction `json:"direction"`
	Category  Category  `json:"category"`
	LineNo    int       `json:"line_no"` // position in the extraction output, 0-based
}

// CanonicalTransaction carries the fields a raw transaction is reduced
// to for identity computation. Never displayed to users.
type CanonicalTransaction struct {
	PostedDate         string // validated ISO date
	AmountMinor        int64  // amount x 100, banker's rounding
	NormalizedMerchant string // lowercased, whitespace collapsed
}

// LedgerEntry is a persisted transaction record. Created on first
// sighting of a hash; OccurrenceCount increments on repeat sightings
// and nothing else is ever mutated.
type LedgerEntry struct {
	TransactionID   string    `json:"transaction_id"`   // unique per extraction attempt
	TransactionHash string    `json:"transaction_hash"` // content identity, cross-batch
	UserID          string    `json:"user_id"`
	BatchID         string    `json:"batch_id"`
	PostedDate      string    `json:"posted_date"`
	Merchant        string    `json:"merchant"` // original display text
	AmountMinor     int64     `json:"amount_minor"`
	Direction       Direction `json:"direction"`
	Category        Category  `json:"category"`
	OccurrenceCount int       `json:"occurrence_count"`
	FirstSeenAt     time.Time `json:"first_seen_at"`
}

// Amount returns the ledger amount in major currency units.
func (e *LedgerEntry) Amount() float64 {
	return float64(e.AmountMinor) / 100
}
