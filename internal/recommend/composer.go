// Package recommend orchestrates recommendation requests: hard
// eligibility filtering, deterministic scoring, top-K selection and a
// best-effort natural-language enrichment pass that degrades to
// scorer-only output when the enrichment service misbehaves. The
// deterministic scorer is the always-available baseline; enrichment is
// layered strictly on top, never the reverse.
package recommend

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/cardspark/spendmatch/internal/domain"
	"github.com/cardspark/spendmatch/internal/logger"
	"github.com/cardspark/spendmatch/internal/scoring"
)

// DefaultTopK is how many scored candidates are enriched and persisted.
const DefaultTopK = 5

// Catalog is the read-only card catalog collaborator.
type Catalog interface {
	ListProducts(ctx context.Context) ([]*domain.CandidateProduct, error)
}

// Enricher produces user-facing reasons, benefit bullets and savings
// estimates for the top-K scored candidates. Any error from it is
// absorbed by the composer, never surfaced to the user.
type Enricher interface {
	EnrichCandidates(ctx context.Context, profile *domain.FeatureProfile, candidates []*scoring.ScoredCandidate) ([]domain.RecommendedCard, error)
}

// Composer builds recommendation snapshots.
type Composer struct {
	catalog  Catalog
	enricher Enricher
	topK     int
}

// NewComposer wires a composer. A nil enricher is allowed and simply
// forces the fallback path.
func NewComposer(catalog Catalog, enricher Enricher, topK int) *Composer {
	if topK <= 0 {
		topK = DefaultTopK
	}
	return &Composer{catalog: catalog, enricher: enricher, topK: topK}
}

// Compose runs one recommendation request end to end and returns a new
// immutable snapshot. Scoring failures are fatal; enrichment failures
// are not.
func (c *Composer) Compose(ctx context.Context, profile *domain.FeatureProfile, overrides scoring.Weights) (*domain.RecommendationSnapshot, error) {
	log := logger.FromContext(ctx)

	products, err := c.catalog.ListProducts(ctx)
	if err != nil {
		return nil, fmt.Errorf("recommend.Compose: list products: %w", err)
	}

	// Hard eligibility rule: recommending a card whose fee exceeds the
	// income-band ceiling is a correctness failure, not a ranking
	// nuance, so such cards never enter the scored set.
	ceiling := feeCeiling(profile.IncomeBand)
	eligible := make([]*domain.CandidateProduct, 0, len(products))
	for _, p := range products {
		if p.Fee <= ceiling {
			eligible = append(eligible, p)
		}
	}

	scored := make([]*scoring.ScoredCandidate, 0, len(eligible))
	for _, p := range eligible {
		sc, err := scoring.Score(profile, p, overrides)
		if err != nil {
			return nil, fmt.Errorf("recommend.Compose: score %s: %w", p.ID, err)
		}
		scored = append(scored, sc)
	}

	sort.SliceStable(scored, func(i, j int) bool { return scored[i].Score > scored[j].Score })
	if len(scored) > c.topK {
		scored = scored[:c.topK]
	}

	cards, enriched := c.enrich(ctx, profile, scored)

	snapshot := &domain.RecommendationSnapshot{
		SnapshotID:  uuid.NewString(),
		UserID:      profile.UserID,
		GeneratedAt: time.Now().UTC(),
		Confidence:  confidenceFor(profile),
		DataSource:  profile.DataSource,
		Enriched:    enriched,
		Cards:       cards,
	}

	log.Info().
		Str("user_id", profile.UserID).
		Str("snapshot_id", snapshot.SnapshotID).
		Int("eligible", len(eligible)).
		Int("cards", len(cards)).
		Bool("enriched", enriched).
		Str("confidence", string(snapshot.Confidence)).
		Msg("Recommendation snapshot composed")

	return snapshot, nil
}

// enrich attempts the enrichment pass and falls back to scorer-only
// output on any failure. The fallback is a first-class path: the user
// always gets a recommendation list if scoring succeeded.
func (c *Composer) enrich(ctx context.Context, profile *domain.FeatureProfile, scored []*scoring.ScoredCandidate) ([]domain.RecommendedCard, bool) {
	log := logger.FromContext(ctx)

	if c.enricher != nil && len(scored) > 0 {
		cards, err := c.enricher.EnrichCandidates(ctx, profile, scored)
		if err == nil && len(cards) == len(scored) {
			return cards, true
		}
		log.Warn().Err(err).Msg("Enrichment unavailable, falling back to scorer output")
	}

	cards := make([]domain.RecommendedCard, 0, len(scored))
	for _, sc := range scored {
		cards = append(cards, fallbackCard(profile, sc))
	}
	return cards, false
}

// fallbackCard turns a scored candidate into a presentable card using
// the scorer's own explanation list and a generic savings range.
func fallbackCard(profile *domain.FeatureProfile, sc *scoring.ScoredCandidate) domain.RecommendedCard {
	reason := "A solid overall fit for your spending profile"
	var benefits []string
	if len(sc.Explanation) > 0 {
		reason = sc.Explanation[0]
		benefits = sc.Explanation[1:]
	}
	return domain.RecommendedCard{
		ProductID:        sc.Product.ID,
		Name:             sc.Product.Name,
		Issuer:           sc.Product.Issuer,
		Score:            sc.Score,
		Reason:           reason,
		Benefits:         benefits,
		EstimatedSavings: savingsPlaceholder(profile),
	}
}

// savingsPlaceholder is the generic range used when enrichment is
// unavailable: one to two percent of annual spend.
func savingsPlaceholder(profile *domain.FeatureProfile) string {
	annual := profile.MonthlySpendEstimate * 12
	if annual <= 0 {
		return "Savings depend on how much you spend"
	}
	low := math.Round(annual*0.01/100) * 100
	high := math.Round(annual*0.02/100) * 100
	return fmt.Sprintf("₹%.0f–₹%.0f a year, based on your spending", low, high)
}

// feeCeiling derives the hard annual-fee ceiling from the declared
// income band. An unknown band gets the most conservative ceiling.
func feeCeiling(band domain.IncomeBand) float64 {
	switch band {
	case domain.IncomeBand5LTo10L:
		return 3000
	case domain.IncomeBand10LTo25L:
		return 10000
	case domain.IncomeBandOver25L:
		return math.Inf(1)
	default:
		return 1000
	}
}

// confidenceFor labels a snapshot from data quality alone: a
// statement-derived profile with enough history and volume is high,
// thin statement data is medium, a declared split is low.
func confidenceFor(profile *domain.FeatureProfile) domain.Confidence {
	if profile.DataSource != domain.DataSourceStatement {
		return domain.ConfidenceLow
	}
	if profile.MonthsOfData >= 2 && profile.TransactionCount >= 40 {
		return domain.ConfidenceHigh
	}
	return domain.ConfidenceMedium
}
