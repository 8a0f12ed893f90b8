package recommend

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"google.golang.org/genai"

	"github.com/cardspark/spendmatch/internal/domain"
	"github.com/cardspark/spendmatch/internal/scoring"
)

// Defaults for the enrichment call.
const (
	DefaultEnrichModel   = "gemini-2.5-flash"
	DefaultEnrichTimeout = 20 * time.Second
)

// ContentGenerator is the slice of the genai client the enricher needs.
// *genai.Models satisfies it; tests substitute a fake.
type ContentGenerator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// GeminiEnricher asks a generative model for user-facing reasons,
// benefit bullets and savings estimates for the top-K candidates. It is
// best-effort by contract: every failure surfaces as an error the
// composer absorbs into the fallback path.
type GeminiEnricher struct {
	gen     ContentGenerator
	model   string
	timeout time.Duration
}

// NewGeminiEnricher creates an enricher backed by the Gemini API.
func NewGeminiEnricher(ctx context.Context, model string, timeout time.Duration) (*GeminiEnricher, error) {
	gc, err := genai.NewClient(ctx, &genai.ClientConfig{
		HTTPOptions: genai.HTTPOptions{APIVersion: "v1"},
	})
	if err != nil {
		return nil, fmt.Errorf("NewGeminiEnricher: create genai client: %w", err)
	}
	return NewGeminiEnricherWithGenerator(gc.Models, model, timeout), nil
}

// NewGeminiEnricherWithGenerator wires an explicit generator, used by tests.
func NewGeminiEnricherWithGenerator(gen ContentGenerator, model string, timeout time.Duration) *GeminiEnricher {
	if model == "" {
		model = DefaultEnrichModel
	}
	if timeout == 0 {
		timeout = DefaultEnrichTimeout
	}
	return &GeminiEnricher{gen: gen, model: model, timeout: timeout}
}

// enrichedCard mirrors the enrichment response contract.
type enrichedCard struct {
	Name             string   `json:"name"`
	Issuer           string   `json:"issuer"`
	Reason           string   `json:"reason"`
	Benefits         []string `json:"benefits"`
	EstimatedSavings string   `json:"estimated_savings"`
	MatchScore       float64  `json:"match_score"`
}

// EnrichCandidates implements Enricher under the enrichment latency
// budget. The model may wrap its JSON in prose or code fences; any
// shortfall in the parsed reply is an error, and retry or fallback
// policy belongs to the composer.
func (e *GeminiEnricher) EnrichCandidates(ctx context.Context, profile *domain.FeatureProfile, candidates []*scoring.ScoredCandidate) ([]domain.RecommendedCard, error) {
	callCtx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	contents := []*genai.Content{
		{
			Role:  "user",
			Parts: []*genai.Part{{Text: enrichmentPrompt(profile, candidates)}},
		},
	}

	resp, err := e.gen.GenerateContent(callCtx, e.model, contents, nil)
	if err != nil {
		return nil, fmt.Errorf("EnrichCandidates: generate content: %w", err)
	}

	rawText := resp.Text()
	if rawText == "" {
		return nil, fmt.Errorf("EnrichCandidates: empty response from model")
	}

	var parsed []enrichedCard
	if err := json.Unmarshal([]byte(cleanEnrichmentJSON(rawText)), &parsed); err != nil {
		return nil, fmt.Errorf("EnrichCandidates: unmarshal: %w", err)
	}
	if len(parsed) != len(candidates) {
		return nil, fmt.Errorf("EnrichCandidates: got %d cards, want %d", len(parsed), len(candidates))
	}

	cards := make([]domain.RecommendedCard, 0, len(candidates))
	for i, sc := range candidates {
		ec := parsed[i]
		if strings.TrimSpace(ec.Reason) == "" {
			return nil, fmt.Errorf("EnrichCandidates: card %d has an empty reason", i)
		}
		savings := strings.TrimSpace(ec.EstimatedSavings)
		if savings == "" {
			savings = savingsPlaceholder(profile)
		}
		cards = append(cards, domain.RecommendedCard{
			ProductID:        sc.Product.ID,
			Name:             sc.Product.Name,
			Issuer:           sc.Product.Issuer,
			Score:            sc.Score, // the deterministic score wins over the model's echo
			Reason:           ec.Reason,
			Benefits:         ec.Benefits,
			EstimatedSavings: savings,
		})
	}
	return cards, nil
}

func enrichmentPrompt(profile *domain.FeatureProfile, candidates []*scoring.ScoredCandidate) string {
	var b strings.Builder
	b.WriteString("You are writing short credit card recommendations for an Indian consumer.\n\n")

	b.WriteString("Spending profile:\n")
	fmt.Fprintf(&b, "- Monthly spend: about ₹%.0f\n", profile.MonthlySpendEstimate)
	for _, cat := range profile.TopCategories(4) {
		fmt.Fprintf(&b, "- %s: %.0f%% of spend\n", cat, profile.CategoryShares[cat])
	}
	if profile.TravelFrequency > 0 {
		fmt.Fprintf(&b, "- Travels about %d times a year\n", profile.TravelFrequency)
	}

	b.WriteString("\nCards, in ranked order:\n")
	for i, sc := range candidates {
		fmt.Fprintf(&b, "%d. %s (%s), annual fee ₹%.0f, match score %.0f. Scoring notes: %s\n",
			i+1, sc.Product.Name, sc.Product.Issuer, sc.Product.Fee, sc.Score,
			strings.Join(sc.Explanation, "; "))
	}

	b.WriteString("\nFor each card, in the SAME order, write a one-sentence reason it fits this person, ")
	b.WriteString("2-3 named benefit bullets, and an estimated yearly savings figure in rupees.\n")
	b.WriteString("Return ONLY a raw JSON array of objects with fields: ")
	b.WriteString(`"name", "issuer", "reason", "benefits" (array of strings), "estimated_savings", "match_score".` + "\n")
	b.WriteString("Do not wrap the response in code fences or any other text.\n")
	return b.String()
}

// cleanEnrichmentJSON strips Markdown fences and surrounding prose,
// keeping only the outermost JSON array.
func cleanEnrichmentJSON(raw string) string {
	s := strings.TrimSpace(raw)

	if strings.HasPrefix(s, "```") {
		if idx := strings.Index(s, "\n"); idx != -1 {
			s = s[idx+1:]
		} else {
			return s
		}
		s = strings.TrimSpace(s)
	}
	if idx := strings.LastIndex(s, "```"); idx != -1 {
		s = s[:idx]
	}
	s = strings.TrimSpace(s)

	if start := strings.Index(s, "["); start != -1 {
		if end := strings.LastIndex(s, "]"); end != -1 && end > start {
			s = strings.TrimSpace(s[start : end+1])
		}
	}
	return s
}
