// Package profile derives the per-user feature profile the scorer
// consumes, from either a persisted transaction ledger or a manually
// declared spend split. Both modes produce the same shape, tagged with
// a data-source discriminator that drives downstream confidence.
package profile

import (
	"fmt"
	"math"
	"time"

	"github.com/cardspark/spendmatch/internal/domain"
)

// shareTolerance is how far a declared split's total may drift from 100
// before it is rejected.
const shareTolerance = 0.5

// InvalidSpendSplitError reports a declared split that violates the
// sum-to-100 invariant. There is no safe default to fall back to.
type InvalidSpendSplitError struct {
	Total float64
}

func (e *InvalidSpendSplitError) Error() string {
	return fmt.Sprintf("declared spend split sums to %.2f, must sum to 100", e.Total)
}

// FromLedger computes a statement-derived profile. Only debits count
// toward spend; credits are excluded from totals but set the
// positive-cash-flow signal. The monthly estimate is total debit spend
// over the observed date span, normalized to 30 days.
func FromLedger(userID string, entries []*domain.LedgerEntry, prefs domain.UserPreferences) (*domain.FeatureProfile, error) {
	if len(entries) == 0 {
		return nil, fmt.Errorf("profile.FromLedger: no transactions for user %s", userID)
	}

	totals := make(map[domain.Category]float64)
	var totalDebit, totalCredit float64
	var minDate, maxDate time.Time

	for _, e := range entries {
		d, err := time.Parse("2006-01-02", e.PostedDate)
		if err != nil {
			return nil, fmt.Errorf("profile.FromLedger: entry %s: bad posted date %q", e.TransactionID, e.PostedDate)
		}
		if minDate.IsZero() || d.Before(minDate) {
			minDate = d
		}
		if maxDate.IsZero() || d.After(maxDate) {
			maxDate = d
		}

		amount := e.Amount()
		switch e.Direction {
		case domain.DirectionCredit:
			totalCredit += amount
		default:
			totals[e.Category] += amount
			totalDebit += amount
		}
	}

	if totalDebit == 0 {
		return nil, fmt.Errorf("profile.FromLedger: ledger for user %s has no debit spend", userID)
	}

	shares := make(map[domain.Category]float64, len(totals))
	for c, v := range totals {
		shares[c] = v / totalDebit * 100
	}

	spanDays := maxDate.Sub(minDate).Hours()/24 + 1
	if spanDays < 1 {
		spanDays = 1
	}
	monthly := totalDebit / spanDays * 30

	return &domain.FeatureProfile{
		UserID:               userID,
		DataSource:           domain.DataSourceStatement,
		CategoryShares:       shares,
		MonthlySpendEstimate: monthly,
		FeeTolerance:         prefs.FeeTolerance,
		RewardPreference:     prefs.RewardPreference,
		TravelFrequency:      prefs.TravelFrequency,
		LoungeImportance:     prefs.LoungeImportance,
		CityTier:             prefs.CityTier,
		IncomeBand:           prefs.IncomeBand,
		MonthsOfData:         spanDays / 30,
		TransactionCount:     len(entries),
		PositiveCashFlow:     totalCredit > totalDebit,
		ComputedAt:           time.Now().UTC(),
	}, nil
}

// FromDeclaredSplit builds a profile from user-declared category
// percentages and a declared monthly spend figure. The split must sum
// to 100 within rounding tolerance; a zero total is fatal.
func FromDeclaredSplit(userID string, split map[domain.Category]float64, monthlySpend float64, prefs domain.UserPreferences) (*domain.FeatureProfile, error) {
	var total float64
	for c, share := range split {
		if !c.Valid() {
			return nil, fmt.Errorf("profile.FromDeclaredSplit: unknown category %q", c)
		}
		if share < 0 {
			return nil, fmt.Errorf("profile.FromDeclaredSplit: negative share %.2f for %q", share, c)
		}
		total += share
	}
	if total == 0 || math.Abs(total-100) > shareTolerance {
		return nil, &InvalidSpendSplitError{Total: total}
	}

	shares := make(map[domain.Category]float64, len(split))
	for c, share := range split {
		shares[c] = share
	}

	return &domain.FeatureProfile{
		UserID:               userID,
		DataSource:           domain.DataSourceDeclared,
		CategoryShares:       shares,
		MonthlySpendEstimate: monthlySpend,
		FeeTolerance:         prefs.FeeTolerance,
		RewardPreference:     prefs.RewardPreference,
		TravelFrequency:      prefs.TravelFrequency,
		LoungeImportance:     prefs.LoungeImportance,
		CityTier:             prefs.CityTier,
		IncomeBand:           prefs.IncomeBand,
		ComputedAt:           time.Now().UTC(),
	}, nil
}
