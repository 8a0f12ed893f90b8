// Package scoring computes a deterministic 0-100 match score and a
// user-facing explanation for a candidate product against a feature
// profile. The score is an interpretable weighted sum of independent
// sub-scores, each normalized to [0,100] before weighting, so that the
// weight vector can be tuned or overridden without retraining anything.
package scoring

import (
	"fmt"
	"math"
	"sort"

	"github.com/cardspark/spendmatch/internal/domain"
)

const (
	// baseRewardPct is the reward value of 1x earn, as a fraction of
	// spend. Multipliers scale this figure.
	baseRewardPct = 0.01

	// referenceMultiplier anchors the category-alignment normalization:
	// a card earning this multiplier on all of the user's spend scores 100.
	referenceMultiplier = 5.0
)

// ScoredCandidate is the ephemeral result of scoring one product.
// Recomputed on every request, never persisted directly.
type ScoredCandidate struct {
	Product     *domain.CandidateProduct
	Score       float64
	Explanation []string // ordered, strongest contribution first
}

// Score evaluates one candidate product against a feature profile.
// A nil or empty overrides vector selects the default weights; a
// non-nil override is normalized to sum to 1.0 first.
func Score(profile *domain.FeatureProfile, product *domain.CandidateProduct, overrides Weights) (*ScoredCandidate, error) {
	weights := overrides
	if len(weights) == 0 {
		weights = DefaultWeights()
	}
	normalized, err := weights.normalize()
	if err != nil {
		return nil, err
	}

	type contribution struct {
		key      string
		sub      float64
		weighted float64
		text     string
	}

	subs := []contribution{
		{key: WeightCategoryAlignment},
		{key: WeightFeeAffordability},
		{key: WeightTravelFit},
		{key: WeightNetworkAcceptance},
		{key: WeightRewardMatch},
	}
	for i := range subs {
		switch subs[i].key {
		case WeightCategoryAlignment:
			subs[i].sub, subs[i].text = categoryAlignment(profile, product)
		case WeightFeeAffordability:
			subs[i].sub, subs[i].text = feeAffordability(profile, product)
		case WeightTravelFit:
			subs[i].sub, subs[i].text = travelFit(profile, product)
		case WeightNetworkAcceptance:
			subs[i].sub, subs[i].text = networkAcceptance(profile, product)
		case WeightRewardMatch:
			subs[i].sub, subs[i].text = rewardMatch(profile, product)
		}
		subs[i].weighted = subs[i].sub * normalized[subs[i].key]
	}

	var total float64
	for _, s := range subs {
		total += s.weighted
	}

	sort.SliceStable(subs, func(i, j int) bool { return subs[i].weighted > subs[j].weighted })

	var explanation []string
	for _, s := range subs {
		if s.weighted <= 0 || s.text == "" {
			continue
		}
		explanation = append(explanation, s.text)
		if len(explanation) == 3 {
			break
		}
	}

	return &ScoredCandidate{
		Product:     product,
		Score:       clamp(total, 0, 100),
		Explanation: explanation,
	}, nil
}

// categoryAlignment measures how much reward value the product's earn
// structure extracts from the user's actual spend mix. A high earn rate
// behind a low monthly cap stops counting once the user's spend in that
// category would blow through the cap.
func categoryAlignment(profile *domain.FeatureProfile, product *domain.CandidateProduct) (float64, string) {
	spend := profile.MonthlySpendEstimate
	if spend <= 0 {
		return 0, ""
	}

	var value float64
	bestCat := domain.Category("")
	bestCatValue := 0.0
	for cat, share := range profile.CategoryShares {
		catSpend := share / 100 * spend
		v := catSpend * baseRewardPct * product.EarnRate(cat)
		if cap := product.RewardCap(cat); cap > 0 && v > cap {
			v = cap
		}
		value += v
		if product.EarnRate(cat) > 1 && v > bestCatValue {
			bestCat, bestCatValue = cat, v
		}
	}

	best := spend * baseRewardPct * referenceMultiplier
	score := clamp(value/best*100, 0, 100)

	text := ""
	if bestCat != "" {
		text = fmt.Sprintf("Earns %gx rewards on %s, where you spend %.0f%% of your budget",
			product.EarnRate(bestCat), categoryLabel(bestCat), profile.CategoryShares[bestCat])
	} else if score > 0 {
		text = "Earns steady flat-rate rewards across all your spending"
	}
	return score, text
}

// feeAffordability scores the distance between the product's annual fee
// and the user's fee tolerance. At or below tolerance stays near the
// maximum; above tolerance the score decays smoothly instead of
// cliffing at the boundary.
func feeAffordability(profile *domain.FeatureProfile, product *domain.CandidateProduct) (float64, string) {
	fee := product.Fee
	tol := profile.FeeTolerance

	if fee <= 0 {
		return 100, "No annual fee"
	}
	if tol <= 0 {
		return 0, ""
	}
	if fee <= tol {
		score := 100 - 10*fee/tol
		return score, fmt.Sprintf("Annual fee of ₹%.0f sits within your ₹%.0f comfort range", fee, tol)
	}
	score := 90 * math.Exp(-(fee-tol)/tol)
	return score, fmt.Sprintf("Annual fee of ₹%.0f runs above your ₹%.0f comfort range", fee, tol)
}

// travelFit contributes only when the user's travel signals are
// non-trivial; it contributes zero, never a penalty, for non-travelers.
// Category alignment already handles travel spend relevance.
func travelFit(profile *domain.FeatureProfile, product *domain.CandidateProduct) (float64, string) {
	signal := 0.6*clamp(float64(profile.TravelFrequency)/12, 0, 1) +
		0.4*clamp(float64(profile.LoungeImportance)/5, 0, 1)
	if signal < 0.1 {
		return 0, ""
	}

	strength := clamp(float64(product.LoungeVisitsPerYear)*8, 0, 40)
	if product.EarnRate(domain.CategoryTravel) > 1 {
		strength += 30
	}
	if product.ForexMarkupPct < 3.5 {
		strength += (3.5 - product.ForexMarkupPct) / 3.5 * 30
	}

	score := clamp(strength, 0, 100) * signal
	text := ""
	if product.LoungeVisitsPerYear > 0 {
		text = fmt.Sprintf("%d lounge visits a year for your frequent travel", product.LoungeVisitsPerYear)
	} else if score > 0 {
		text = "Travel-friendly benefits for your trips"
	}
	return score, text
}

// acceptanceByTier holds acceptance scores per network, indexed by city
// tier 1..3. Visa, Mastercard and RuPay are effectively universal;
// Amex and Diners thin out quickly outside tier-1 metros.
var acceptanceByTier = map[domain.Network][4]float64{
	domain.NetworkAmex:   {0, 70, 40, 20},
	domain.NetworkDiners: {0, 60, 35, 15},
}

// networkAcceptance penalizes networks with weaker merchant acceptance
// in the user's declared city tier.
func networkAcceptance(profile *domain.FeatureProfile, product *domain.CandidateProduct) (float64, string) {
	tiers, restricted := acceptanceByTier[product.Net]
	if !restricted {
		return 100, "Accepted almost everywhere you shop"
	}

	tier := profile.CityTier
	if tier < 1 || tier > 3 {
		tier = 2
	}
	score := tiers[tier]
	return score, fmt.Sprintf("Acceptance for %s cards can be patchy in your city", networkLabel(product.Net))
}

// rewardMatch grants a bonus when the product's reward mechanism
// matches the user's stated preference, and stays neutral when the user
// has none.
func rewardMatch(profile *domain.FeatureProfile, product *domain.CandidateProduct) (float64, string) {
	if profile.RewardPreference == "" {
		return 50, ""
	}
	if profile.RewardPreference == product.RewardType {
		return 100, fmt.Sprintf("Earns %s, matching your stated preference", rewardLabel(product.RewardType))
	}
	return 30, ""
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func categoryLabel(c domain.Category) string {
	switch c {
	case domain.CategoryOnlineShopping:
		return "online shopping"
	default:
		return string(c)
	}
}

func networkLabel(n domain.Network) string {
	switch n {
	case domain.NetworkAmex:
		return "American Express"
	case domain.NetworkDiners:
		return "Diners Club"
	default:
		return string(n)
	}
}

func rewardLabel(r domain.RewardType) string {
	switch r {
	case domain.RewardCashback:
		return "cashback"
	case domain.RewardMiles:
		return "air miles"
	default:
		return "reward points"
	}
}
