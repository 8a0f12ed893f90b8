package domain

import "time"

// DataSource tells where a feature profile's spend data came from.
// Downstream confidence labeling depends on it.
type DataSource string

const (
	DataSourceStatement DataSource = "statement"
	DataSourceDeclared  DataSource = "declared"
)

// RewardType is a card's reward mechanism, and also the user's stated
// preference (empty string means no preference).
type RewardType string

const (
	RewardCashback RewardType = "cashback"
	RewardPoints   RewardType = "points"
	RewardMiles    RewardType = "miles"
)

// IncomeBand buckets declared annual income. The recommendation
// composer derives a hard annual-fee ceiling from it.
type IncomeBand string

const (
	IncomeBandUnder5L  IncomeBand = "under_5l"
	IncomeBand5LTo10L  IncomeBand = "5l_to_10l"
	IncomeBand10LTo25L IncomeBand = "10l_to_25l"
	IncomeBandOver25L  IncomeBand = "over_25l"
)

// UserPreferences carries the declared, non-spend inputs to profile
// building: tolerances, travel signals and demographic hints collected
// during onboarding. Owned by the excluded profile store; read-only here.
type UserPreferences struct {
	FeeTolerance     float64    `json:"fee_tolerance"` // max comfortable annual fee
	RewardPreference RewardType `json:"reward_preference,omitempty"`
	TravelFrequency  int        `json:"travel_frequency"`  // trips per year
	LoungeImportance int        `json:"lounge_importance"` // 0 (irrelevant) .. 5 (must have)
	CityTier         int        `json:"city_tier"`         // 1, 2 or 3
	IncomeBand       IncomeBand `json:"income_band"`
}

// FeatureProfile is the derived per-user spending summary the scorer
// consumes. Recomputed whenever new spend data arrives; the previous
// version is replaced, not versioned.
type FeatureProfile struct {
	UserID     string     `json:"user_id"`
	DataSource DataSource `json:"data_source"`

	// CategoryShares are percentages of total debit spend and sum to
	// 100 within rounding tolerance.
	CategoryShares map[Category]float64 `json:"category_shares"`

	MonthlySpendEstimate float64    `json:"monthly_spend_estimate"`
	FeeTolerance         float64    `json:"fee_tolerance"`
	RewardPreference     RewardType `json:"reward_preference,omitempty"`
	TravelFrequency      int        `json:"travel_frequency"`
	LoungeImportance     int        `json:"lounge_importance"`
	CityTier             int        `json:"city_tier"`
	IncomeBand           IncomeBand `json:"income_band"`

	// Statement-derived quality signals; zero for declared profiles.
	MonthsOfData     float64 `json:"months_of_data"`
	TransactionCount int     `json:"transaction_count"`
	PositiveCashFlow bool    `json:"positive_cash_flow"`

	ComputedAt time.Time `json:"computed_at"`
}

// TopCategories returns the n categories with the largest shares, in
// descending share order.
func (p *FeatureProfile) TopCategories(n int) []Category {
	type catShare struct {
		cat   Category
		share float64
	}
	ranked := make([]catShare, 0, len(p.CategoryShares))
	for c, s := range p.CategoryShares {
		ranked = append(ranked, catShare{c, s})
	}
	for i := 0; i < len(ranked); i++ {
		for j := i + 1; j < len(ranked); j++ {
			if ranked[j].share > ranked[i].share ||
				(ranked[j].share == ranked[i].share && ranked[j].cat < ranked[i].cat) {
				ranked[i], ranked[j] = ranked[j], ranked[i]
			}
		}
	}
	if n > len(ranked) {
		n = len(ranked)
	}
	out := make([]Category, 0, n)
	for _, r := range ranked[:n] {
		out = append(out, r.cat)
	}
	return out
}
