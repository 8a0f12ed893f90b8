package scoring

import "fmt"

// Sub-score keys of the weight vector.
const (
	WeightCategoryAlignment = "category_alignment"
	WeightFeeAffordability  = "fee_affordability"
	WeightTravelFit         = "travel_fit"
	WeightNetworkAcceptance = "network_acceptance"
	WeightRewardMatch       = "reward_match"
)

// Weights maps sub-score keys to their relative importance. Each
// sub-score is normalized to [0,100] before weighting, so the weights
// are genuinely interpretable as relative importance.
type Weights map[string]float64

// InvalidWeightVectorError reports a caller-supplied weight vector that
// sums to zero. Fatal: no sensible score can be produced from it.
type InvalidWeightVectorError struct {
	Weights Weights
}

func (e *InvalidWeightVectorError) Error() string {
	return fmt.Sprintf("weight vector sums to zero: %v", e.Weights)
}

// DefaultWeights is the fixed default configuration. Callers such as a
// goal-based onboarding flow may override the vector entirely.
func DefaultWeights() Weights {
	return Weights{
		WeightCategoryAlignment: 0.40,
		WeightFeeAffordability:  0.20,
		WeightTravelFit:         0.15,
		WeightNetworkAcceptance: 0.10,
		WeightRewardMatch:       0.15,
	}
}

// normalize scales the vector to sum to 1.0 so that {a:2, b:2} and
// {a:0.5, b:0.5} score identically. Unknown keys are dropped; negative
// weights are rejected.
func (w Weights) normalize() (Weights, error) {
	known := map[string]bool{
		WeightCategoryAlignment: true,
		WeightFeeAffordability:  true,
		WeightTravelFit:         true,
		WeightNetworkAcceptance: true,
		WeightRewardMatch:       true,
	}

	var sum float64
	for k, v := range w {
		if !known[k] {
			continue
		}
		if v < 0 {
			return nil, fmt.Errorf("weight %q is negative: %v", k, v)
		}
		sum += v
	}
	if sum == 0 {
		return nil, &InvalidWeightVectorError{Weights: w}
	}

	out := make(Weights, len(w))
	for k, v := range w {
		if known[k] {
			out[k] = v / sum
		}
	}
	return out, nil
}
