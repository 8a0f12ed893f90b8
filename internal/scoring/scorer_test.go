package scoring

import (
	"errors"
	"math"
	"testing"

	"github.com/cardspark/spendmatch/internal/domain"
)

func declaredProfile() *domain.FeatureProfile {
	return &domain.FeatureProfile{
		UserID:     "u1",
		DataSource: domain.DataSourceDeclared,
		CategoryShares: map[domain.Category]float64{
			domain.CategoryDining:         40,
			domain.CategoryOnlineShopping: 30,
			domain.CategoryGroceries:      30,
		},
		MonthlySpendEstimate: 50000,
		FeeTolerance:         2000,
		CityTier:             1,
	}
}

func TestScoreExampleScenario(t *testing.T) {
	// A card with 5x on dining (capped at a monthly reward value of
	// ₹2,000) and a ₹1,000 fee under tolerance must outrank a 1x flat
	// card with no fee, because spend concentration in an accelerated
	// category dominates a marginal fee advantage.
	profile := declaredProfile()

	diningCard := &domain.CandidateProduct{
		ID: "dining-5x", Name: "Gourmet Gold", Issuer: "HDFC",
		Fee: 1000, Net: domain.NetworkVisa, RewardType: domain.RewardPoints,
		EarnRates:  map[domain.Category]float64{domain.CategoryDining: 5},
		RewardCaps: map[domain.Category]float64{domain.CategoryDining: 2000},
	}
	flatCard := &domain.CandidateProduct{
		ID: "flat-1x", Name: "Everyday Basic", Issuer: "SBI",
		Fee: 0, Net: domain.NetworkVisa, RewardType: domain.RewardCashback,
	}

	dining, err := Score(profile, diningCard, nil)
	if err != nil {
		t.Fatalf("Score(dining) error: %v", err)
	}
	flat, err := Score(profile, flatCard, nil)
	if err != nil {
		t.Fatalf("Score(flat) error: %v", err)
	}

	if dining.Score <= flat.Score {
		t.Errorf("dining card scored %.2f, flat card %.2f; accelerated category must dominate", dining.Score, flat.Score)
	}
	if dining.Score < 0 || dining.Score > 100 {
		t.Errorf("score %.2f outside [0,100]", dining.Score)
	}
	if len(dining.Explanation) == 0 {
		t.Fatalf("no explanation produced")
	}
}

func TestScoreWeightNormalization(t *testing.T) {
	profile := declaredProfile()
	product := &domain.CandidateProduct{
		ID: "p", Fee: 500, Net: domain.NetworkVisa,
		EarnRates: map[domain.Category]float64{domain.CategoryDining: 3},
	}

	unnormalized := Weights{WeightCategoryAlignment: 2, WeightFeeAffordability: 2}
	normalized := Weights{WeightCategoryAlignment: 0.5, WeightFeeAffordability: 0.5}

	a, err := Score(profile, product, unnormalized)
	if err != nil {
		t.Fatalf("Score() error: %v", err)
	}
	b, err := Score(profile, product, normalized)
	if err != nil {
		t.Fatalf("Score() error: %v", err)
	}
	if math.Abs(a.Score-b.Score) > 1e-9 {
		t.Errorf("unnormalized %.6f != normalized %.6f", a.Score, b.Score)
	}
}

func TestScoreZeroWeightVector(t *testing.T) {
	_, err := Score(declaredProfile(), &domain.CandidateProduct{ID: "p"}, Weights{WeightCategoryAlignment: 0})
	var invalid *InvalidWeightVectorError
	if !errors.As(err, &invalid) {
		t.Fatalf("error = %v, want InvalidWeightVectorError", err)
	}
}

func TestCategoryAlignmentCapAwareness(t *testing.T) {
	profile := declaredProfile() // 20k/month dining spend

	uncapped := &domain.CandidateProduct{
		ID:        "uncapped",
		EarnRates: map[domain.Category]float64{domain.CategoryDining: 5},
	}
	// Cap of ₹200 bites hard: 20k x 1% x 5 = ₹1000 value uncapped.
	tightCap := &domain.CandidateProduct{
		ID:         "capped",
		EarnRates:  map[domain.Category]float64{domain.CategoryDining: 5},
		RewardCaps: map[domain.Category]float64{domain.CategoryDining: 200},
	}

	su, _ := categoryAlignment(profile, uncapped)
	sc, _ := categoryAlignment(profile, tightCap)
	if sc >= su {
		t.Errorf("tight cap scored %.2f, uncapped %.2f; cap must lower the score", sc, su)
	}
}

func TestFeeAffordabilitySmoothDecay(t *testing.T) {
	profile := declaredProfile() // tolerance 2000

	at, _ := feeAffordability(profile, &domain.CandidateProduct{Fee: 2000})
	justAbove, _ := feeAffordability(profile, &domain.CandidateProduct{Fee: 2100})
	farAbove, _ := feeAffordability(profile, &domain.CandidateProduct{Fee: 10000})

	if at < 85 {
		t.Errorf("fee at tolerance scored %.2f, want near maximum", at)
	}
	// Smooth decay: no cliff at the boundary, monotonically decreasing.
	if at-justAbove > 15 {
		t.Errorf("cliff at tolerance boundary: %.2f -> %.2f", at, justAbove)
	}
	if justAbove <= farAbove {
		t.Errorf("decay not monotonic: %.2f then %.2f", justAbove, farAbove)
	}
	free, _ := feeAffordability(profile, &domain.CandidateProduct{Fee: 0})
	if free != 100 {
		t.Errorf("zero fee scored %.2f, want 100", free)
	}
}

func TestTravelFitNeverPenalizesNonTravelers(t *testing.T) {
	nonTraveler := declaredProfile() // zero travel signals
	travelCard := &domain.CandidateProduct{
		ID:                  "travel",
		LoungeVisitsPerYear: 8,
		EarnRates:           map[domain.Category]float64{domain.CategoryTravel: 5},
	}

	score, _ := travelFit(nonTraveler, travelCard)
	if score != 0 {
		t.Errorf("travel fit for a non-traveler = %.2f, want exactly 0", score)
	}

	traveler := declaredProfile()
	traveler.TravelFrequency = 10
	traveler.LoungeImportance = 4
	score, text := travelFit(traveler, travelCard)
	if score <= 0 {
		t.Errorf("travel fit for a frequent traveler = %.2f, want > 0", score)
	}
	if text == "" {
		t.Errorf("no travel explanation for a strong travel match")
	}
}

func TestNetworkAcceptanceByCityTier(t *testing.T) {
	amex := &domain.CandidateProduct{Net: domain.NetworkAmex}
	visa := &domain.CandidateProduct{Net: domain.NetworkVisa}

	tier1 := declaredProfile()
	tier3 := declaredProfile()
	tier3.CityTier = 3

	v1, _ := networkAcceptance(tier1, visa)
	a1, _ := networkAcceptance(tier1, amex)
	a3, _ := networkAcceptance(tier3, amex)

	if v1 != 100 {
		t.Errorf("visa tier-1 acceptance = %.2f, want 100", v1)
	}
	if a1 <= a3 {
		t.Errorf("amex acceptance should fall with city tier: tier1 %.2f, tier3 %.2f", a1, a3)
	}
}

func TestRewardMatchNeutrality(t *testing.T) {
	noPref := declaredProfile()
	cashbackCard := &domain.CandidateProduct{RewardType: domain.RewardCashback}

	neutral, _ := rewardMatch(noPref, cashbackCard)

	prefers := declaredProfile()
	prefers.RewardPreference = domain.RewardCashback
	match, _ := rewardMatch(prefers, cashbackCard)

	prefersMiles := declaredProfile()
	prefersMiles.RewardPreference = domain.RewardMiles
	mismatch, _ := rewardMatch(prefersMiles, cashbackCard)

	if match <= neutral {
		t.Errorf("matching preference (%.2f) must beat no preference (%.2f)", match, neutral)
	}
	if neutral <= mismatch {
		t.Errorf("no preference (%.2f) must beat a mismatch (%.2f)", neutral, mismatch)
	}
}
