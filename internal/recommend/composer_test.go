package recommend

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"google.golang.org/genai"

	"github.com/cardspark/spendmatch/internal/domain"
	"github.com/cardspark/spendmatch/internal/scoring"
)

// memCatalog is a fixed product list.
type memCatalog struct {
	products []*domain.CandidateProduct
	err      error
}

func (m *memCatalog) ListProducts(ctx context.Context) ([]*domain.CandidateProduct, error) {
	return m.products, m.err
}

// failingEnricher always fails, forcing the fallback path.
type failingEnricher struct {
	err error
}

func (f *failingEnricher) EnrichCandidates(ctx context.Context, profile *domain.FeatureProfile, candidates []*scoring.ScoredCandidate) ([]domain.RecommendedCard, error) {
	return nil, f.err
}

func testProfile() *domain.FeatureProfile {
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
		IncomeBand:           domain.IncomeBand10LTo25L,
	}
}

func testCatalog() *memCatalog {
	return &memCatalog{products: []*domain.CandidateProduct{
		{ID: "a", Name: "Gourmet Gold", Issuer: "HDFC", Fee: 1000, Net: domain.NetworkVisa,
			EarnRates: map[domain.Category]float64{domain.CategoryDining: 5}},
		{ID: "b", Name: "Everyday Basic", Issuer: "SBI", Fee: 0, Net: domain.NetworkVisa},
		{ID: "c", Name: "Shoppers Max", Issuer: "ICICI", Fee: 500, Net: domain.NetworkVisa,
			EarnRates: map[domain.Category]float64{domain.CategoryOnlineShopping: 3}},
		{ID: "too-expensive", Name: "Infinia", Issuer: "HDFC", Fee: 12500, Net: domain.NetworkVisa,
			EarnRates: map[domain.Category]float64{domain.CategoryTravel: 10}},
	}}
}

func TestComposeFallbackGuarantee(t *testing.T) {
	// If enrichment fails, the composer still returns exactly top-K
	// cards with non-empty reasons sourced from the scorer.
	composer := NewComposer(testCatalog(), &failingEnricher{err: errors.New("deadline exceeded")}, 2)

	snapshot, err := composer.Compose(context.Background(), testProfile(), nil)
	if err != nil {
		t.Fatalf("Compose() error: %v", err)
	}
	if snapshot.Enriched {
		t.Errorf("snapshot marked enriched on the fallback path")
	}
	if len(snapshot.Cards) != 2 {
		t.Fatalf("got %d cards, want top-K of 2", len(snapshot.Cards))
	}
	for _, card := range snapshot.Cards {
		if strings.TrimSpace(card.Reason) == "" {
			t.Errorf("card %s has an empty reason on the fallback path", card.ProductID)
		}
		if card.EstimatedSavings == "" {
			t.Errorf("card %s missing the savings placeholder", card.ProductID)
		}
	}
	// Ranked order preserved: the dining card leads.
	if snapshot.Cards[0].ProductID != "a" {
		t.Errorf("top card = %s, want the dining card", snapshot.Cards[0].ProductID)
	}
}

func TestComposeEligibilityHardFilter(t *testing.T) {
	composer := NewComposer(testCatalog(), nil, 10)

	snapshot, err := composer.Compose(context.Background(), testProfile(), nil)
	if err != nil {
		t.Fatalf("Compose() error: %v", err)
	}
	// Income band 10-25L caps fees at 10000; the ₹12,500 card never
	// appears no matter how well it would have scored.
	for _, card := range snapshot.Cards {
		if card.ProductID == "too-expensive" {
			t.Errorf("card above the income-band fee ceiling leaked into the snapshot")
		}
	}
	if len(snapshot.Cards) != 3 {
		t.Errorf("got %d cards, want 3 eligible", len(snapshot.Cards))
	}
}

func TestComposeConfidenceFromDataQualityOnly(t *testing.T) {
	catalog := testCatalog()

	declared := testProfile()
	richStatement := testProfile()
	richStatement.DataSource = domain.DataSourceStatement
	richStatement.MonthsOfData = 3
	richStatement.TransactionCount = 120
	thinStatement := testProfile()
	thinStatement.DataSource = domain.DataSourceStatement
	thinStatement.MonthsOfData = 0.5
	thinStatement.TransactionCount = 8

	tests := []struct {
		name    string
		profile *domain.FeatureProfile
		want    domain.Confidence
	}{
		{"declared split is low", declared, domain.ConfidenceLow},
		{"rich statement is high", richStatement, domain.ConfidenceHigh},
		{"thin statement is medium", thinStatement, domain.ConfidenceMedium},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// Enrichment fails in all cases: confidence must not care.
			composer := NewComposer(catalog, &failingEnricher{err: errors.New("boom")}, 3)
			snapshot, err := composer.Compose(context.Background(), tt.profile, nil)
			if err != nil {
				t.Fatalf("Compose() error: %v", err)
			}
			if snapshot.Confidence != tt.want {
				t.Errorf("confidence = %q, want %q", snapshot.Confidence, tt.want)
			}
		})
	}
}

func TestComposeInvalidWeightOverride(t *testing.T) {
	composer := NewComposer(testCatalog(), nil, 3)
	_, err := composer.Compose(context.Background(), testProfile(), scoring.Weights{scoring.WeightCategoryAlignment: 0})
	var invalid *scoring.InvalidWeightVectorError
	if !errors.As(err, &invalid) {
		t.Fatalf("error = %v, want InvalidWeightVectorError", err)
	}
}

// fakeGenerator serves canned genai responses to the enricher.
type fakeGenerator struct {
	text               string
	err                error
	blockUntilDeadline bool
}

func (f *fakeGenerator) GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	if f.blockUntilDeadline {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if f.err != nil {
		return nil, f.err
	}
	return &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{
			{Content: &genai.Content{Parts: []*genai.Part{{Text: f.text}}}},
		},
	}, nil
}

func scoredPair(t *testing.T) []*scoring.ScoredCandidate {
	t.Helper()
	profile := testProfile()
	var out []*scoring.ScoredCandidate
	for _, p := range testCatalog().products[:2] {
		sc, err := scoring.Score(profile, p, nil)
		if err != nil {
			t.Fatalf("Score() error: %v", err)
		}
		out = append(out, sc)
	}
	return out
}

func TestGeminiEnricherParsesWrappedJSON(t *testing.T) {
	reply := "Sure! Here are the recommendations:\n```json\n" + `[
  {"name":"Gourmet Gold","issuer":"HDFC","reason":"Great for food delivery","benefits":["5x dining","Free Swiggy One"],"estimated_savings":"₹9,600 a year","match_score":57},
  {"name":"Everyday Basic","issuer":"SBI","reason":"No-fee starter card","benefits":["Zero annual fee"],"estimated_savings":"₹3,000 a year","match_score":45}
]` + "\n```\nHope that helps!"

	enricher := NewGeminiEnricherWithGenerator(&fakeGenerator{text: reply}, "", 0)
	cards, err := enricher.EnrichCandidates(context.Background(), testProfile(), scoredPair(t))
	if err != nil {
		t.Fatalf("EnrichCandidates() error: %v", err)
	}
	if len(cards) != 2 {
		t.Fatalf("got %d cards, want 2", len(cards))
	}
	if cards[0].Reason != "Great for food delivery" {
		t.Errorf("reason = %q", cards[0].Reason)
	}
	// The deterministic score wins over whatever the model echoed.
	if cards[0].Score == 57 {
		t.Errorf("model-echoed score overwrote the deterministic score")
	}
}

func TestGeminiEnricherRejectsShortfall(t *testing.T) {
	reply := `[{"name":"Only One","issuer":"X","reason":"r","benefits":[],"estimated_savings":"","match_score":1}]`
	enricher := NewGeminiEnricherWithGenerator(&fakeGenerator{text: reply}, "", 0)
	if _, err := enricher.EnrichCandidates(context.Background(), testProfile(), scoredPair(t)); err == nil {
		t.Fatalf("EnrichCandidates() accepted a card-count mismatch")
	}
}

func TestGeminiEnricherTimeoutFeedsFallback(t *testing.T) {
	enricher := NewGeminiEnricherWithGenerator(&fakeGenerator{blockUntilDeadline: true}, "", 20*time.Millisecond)
	composer := NewComposer(testCatalog(), enricher, 2)

	snapshot, err := composer.Compose(context.Background(), testProfile(), nil)
	if err != nil {
		t.Fatalf("Compose() error: %v", err)
	}
	if snapshot.Enriched {
		t.Errorf("snapshot marked enriched after an enrichment timeout")
	}
	if len(snapshot.Cards) != 2 {
		t.Errorf("fallback produced %d cards, want 2", len(snapshot.Cards))
	}
}
