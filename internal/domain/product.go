package domain

// Network is a card payment network. Acceptance varies by city tier;
// the scorer penalizes networks with weaker merchant acceptance.
type Network string

const (
	NetworkVisa       Network = "visa"
	NetworkMastercard Network = "mastercard"
	NetworkRupay      Network = "rupay"
	NetworkAmex       Network = "amex"
	NetworkDiners     Network = "diners"
)

// CandidateProduct is one card from the external catalog. Read-only to
// this pipeline.
type CandidateProduct struct {
	ID     string  `json:"id"`
	Name   string  `json:"name"`
	Issuer string  `json:"issuer"`
	Fee    float64 `json:"annual_fee"`
	Net    Network `json:"network"`

	RewardType RewardType `json:"reward_type"`

	// EarnRates maps a category to its accelerated earn multiplier
	// (5 means 5x the base rate). Categories not present earn at 1x.
	EarnRates map[Category]float64 `json:"earn_rates"`

	// RewardCaps maps a category to the maximum monthly reward value
	// (in currency units) the accelerated rate can produce. Zero or
	// absent means uncapped.
	RewardCaps map[Category]float64 `json:"reward_caps"`

	LoungeVisitsPerYear int     `json:"lounge_visits_per_year"`
	ForexMarkupPct      float64 `json:"forex_markup_pct"`
}

// EarnRate returns the effective multiplier for a category, defaulting
// to the 1x base rate.
func (p *CandidateProduct) EarnRate(c Category) float64 {
	if r, ok := p.EarnRates[c]; ok && r > 0 {
		return r
	}
	return 1
}

// RewardCap returns the monthly reward-value cap for a category, or 0
// when uncapped.
func (p *CandidateProduct) RewardCap(c Category) float64 {
	return p.RewardCaps[c]
}
