package domain

import "time"

// Confidence labels how much the data behind a recommendation can be
// trusted. Derived from data quality only, never from whether the
// enrichment call succeeded.
type Confidence string

const (
	ConfidenceLow    Confidence = "low"
	ConfidenceMedium Confidence = "medium"
	ConfidenceHigh   Confidence = "high"
)

// RecommendedCard is one entry in a recommendation snapshot: a scored
// candidate merged with (or degraded without) enrichment output.
type RecommendedCard struct {
	ProductID        string   `json:"product_id"`
	Name             string   `json:"name"`
	Issuer           string   `json:"issuer"`
	Score            float64  `json:"score"`
	Reason           string   `json:"reason"`
	Benefits         []string `json:"benefits,omitempty"`
	EstimatedSavings string   `json:"estimated_savings"`
}

// RecommendationSnapshot is the persisted result of one recommendation
// request. Immutable once created; a new request creates a new snapshot.
type RecommendationSnapshot struct {
	SnapshotID  string            `json:"snapshot_id"`
	UserID      string            `json:"user_id"`
	GeneratedAt time.Time         `json:"generated_at"`
	Confidence  Confidence        `json:"confidence"`
	DataSource  DataSource        `json:"data_source"`
	Enriched    bool              `json:"enriched"` // false when the fallback path produced the cards
	Cards       []RecommendedCard `json:"cards"`
}
