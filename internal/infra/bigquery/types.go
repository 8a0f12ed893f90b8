// Package bigquery holds the BigQuery-backed implementations of the
// pipeline's persistence contracts: the transaction ledger, the card
// catalog, feature profiles, recommendation snapshots, statement
// documents and ingestion runs.
package bigquery

import (
	"encoding/json"
	"fmt"
	"time"

	"cloud.google.com/go/bigquery"
	"cloud.google.com/go/civil"

	"github.com/cardspark/spendmatch/internal/domain"
)

// LedgerRow is one persisted transaction in spend.transactions.
// Rows are written on first sighting of a hash and never mutated apart
// from the occurrence counter.
type LedgerRow struct {
	TransactionID   string     `bigquery:"transaction_id"`
	TransactionHash string     `bigquery:"transaction_hash"`
	UserID          string     `bigquery:"user_id"`
	BatchID         string     `bigquery:"batch_id"`
	PostedDate      civil.Date `bigquery:"posted_date"`
	Merchant        string     `bigquery:"merchant"`
	AmountMinor     int64      `bigquery:"amount_minor"`
	Direction       string     `bigquery:"direction"`
	Category        string     `bigquery:"category"`
	OccurrenceCount int64      `bigquery:"occurrence_count"`
	FirstSeenTS     time.Time  `bigquery:"first_seen_ts"`
}

// LedgerRowFromEntry maps a domain ledger entry onto its row shape.
func LedgerRowFromEntry(e *domain.LedgerEntry) (*LedgerRow, error) {
	posted, err := civil.ParseDate(e.PostedDate)
	if err != nil {
		return nil, fmt.Errorf("LedgerRowFromEntry: posted date %q: %w", e.PostedDate, err)
	}
	return &LedgerRow{
		TransactionID:   e.TransactionID,
		TransactionHash: e.TransactionHash,
		UserID:          e.UserID,
		BatchID:         e.BatchID,
		PostedDate:      posted,
		Merchant:        e.Merchant,
		AmountMinor:     e.AmountMinor,
		Direction:       string(e.Direction),
		Category:        string(e.Category),
		OccurrenceCount: int64(e.OccurrenceCount),
		FirstSeenTS:     e.FirstSeenAt,
	}, nil
}

// ToEntry maps a row back to the domain shape.
func (r *LedgerRow) ToEntry() *domain.LedgerEntry {
	return &domain.LedgerEntry{
		TransactionID:   r.TransactionID,
		TransactionHash: r.TransactionHash,
		UserID:          r.UserID,
		BatchID:         r.BatchID,
		PostedDate:      r.PostedDate.String(),
		Merchant:        r.Merchant,
		AmountMinor:     r.AmountMinor,
		Direction:       domain.Direction(r.Direction),
		Category:        domain.Category(r.Category),
		OccurrenceCount: int(r.OccurrenceCount),
		FirstSeenAt:     r.FirstSeenTS,
	}
}

// ProductRow is one card in spend.card_products. Earn rates and reward
// caps are JSON maps keyed by category.
type ProductRow struct {
	ProductID      string  `bigquery:"product_id"`
	Name           string  `bigquery:"name"`
	Issuer         string  `bigquery:"issuer"`
	AnnualFee      float64 `bigquery:"annual_fee"`
	Network        string  `bigquery:"network"`
	RewardType     string  `bigquery:"reward_type"`
	EarnRatesJSON  string  `bigquery:"earn_rates"`
	RewardCapsJSON string  `bigquery:"reward_caps"`
	LoungeVisits   int64   `bigquery:"lounge_visits_per_year"`
	ForexMarkupPct float64 `bigquery:"forex_markup_pct"`
	Active         bool    `bigquery:"active"`
}

// ToProduct decodes the JSON rate columns into the domain shape.
func (r *ProductRow) ToProduct() (*domain.CandidateProduct, error) {
	p := &domain.CandidateProduct{
		ID:                  r.ProductID,
		Name:                r.Name,
		Issuer:              r.Issuer,
		Fee:                 r.AnnualFee,
		Net:                 domain.Network(r.Network),
		RewardType:          domain.RewardType(r.RewardType),
		LoungeVisitsPerYear: int(r.LoungeVisits),
		ForexMarkupPct:      r.ForexMarkupPct,
	}
	if r.EarnRatesJSON != "" {
		if err := json.Unmarshal([]byte(r.EarnRatesJSON), &p.EarnRates); err != nil {
			return nil, fmt.Errorf("ProductRow %s: earn_rates: %w", r.ProductID, err)
		}
	}
	if r.RewardCapsJSON != "" {
		if err := json.Unmarshal([]byte(r.RewardCapsJSON), &p.RewardCaps); err != nil {
			return nil, fmt.Errorf("ProductRow %s: reward_caps: %w", r.ProductID, err)
		}
	}
	return p, nil
}

// ProfileRow is the single overwritable feature profile per user in
// spend.feature_profiles.
type ProfileRow struct {
	UserID             string    `bigquery:"user_id"`
	DataSource         string    `bigquery:"data_source"`
	CategorySharesJSON string    `bigquery:"category_shares"`
	MonthlySpend       float64   `bigquery:"monthly_spend_estimate"`
	FeeTolerance       float64   `bigquery:"fee_tolerance"`
	RewardPreference   string    `bigquery:"reward_preference"`
	TravelFrequency    int64     `bigquery:"travel_frequency"`
	LoungeImportance   int64     `bigquery:"lounge_importance"`
	CityTier           int64     `bigquery:"city_tier"`
	IncomeBand         string    `bigquery:"income_band"`
	MonthsOfData       float64   `bigquery:"months_of_data"`
	TransactionCount   int64     `bigquery:"transaction_count"`
	PositiveCashFlow   bool      `bigquery:"positive_cash_flow"`
	ComputedTS         time.Time `bigquery:"computed_ts"`
}

// ProfileRowFromProfile maps a domain profile onto its row shape.
func ProfileRowFromProfile(p *domain.FeatureProfile) (*ProfileRow, error) {
	shares, err := json.Marshal(p.CategoryShares)
	if err != nil {
		return nil, fmt.Errorf("ProfileRowFromProfile: shares: %w", err)
	}
	return &ProfileRow{
		UserID:             p.UserID,
		DataSource:         string(p.DataSource),
		CategorySharesJSON: string(shares),
		MonthlySpend:       p.MonthlySpendEstimate,
		FeeTolerance:       p.FeeTolerance,
		RewardPreference:   string(p.RewardPreference),
		TravelFrequency:    int64(p.TravelFrequency),
		LoungeImportance:   int64(p.LoungeImportance),
		CityTier:           int64(p.CityTier),
		IncomeBand:         string(p.IncomeBand),
		MonthsOfData:       p.MonthsOfData,
		TransactionCount:   int64(p.TransactionCount),
		PositiveCashFlow:   p.PositiveCashFlow,
		ComputedTS:         p.ComputedAt,
	}, nil
}

// ToProfile maps a row back to the domain shape.
func (r *ProfileRow) ToProfile() (*domain.FeatureProfile, error) {
	p := &domain.FeatureProfile{
		UserID:               r.UserID,
		DataSource:           domain.DataSource(r.DataSource),
		MonthlySpendEstimate: r.MonthlySpend,
		FeeTolerance:         r.FeeTolerance,
		RewardPreference:     domain.RewardType(r.RewardPreference),
		TravelFrequency:      int(r.TravelFrequency),
		LoungeImportance:     int(r.LoungeImportance),
		CityTier:             int(r.CityTier),
		IncomeBand:           domain.IncomeBand(r.IncomeBand),
		MonthsOfData:         r.MonthsOfData,
		TransactionCount:     int(r.TransactionCount),
		PositiveCashFlow:     r.PositiveCashFlow,
		ComputedAt:           r.ComputedTS,
	}
	if r.CategorySharesJSON != "" {
		if err := json.Unmarshal([]byte(r.CategorySharesJSON), &p.CategoryShares); err != nil {
			return nil, fmt.Errorf("ProfileRow %s: shares: %w", r.UserID, err)
		}
	}
	return p, nil
}

// SnapshotRow is one immutable recommendation snapshot in
// spend.recommendation_snapshots. Cards are stored as a JSON blob; the
// snapshot is read back whole, never queried by card.
type SnapshotRow struct {
	SnapshotID  string    `bigquery:"snapshot_id"`
	UserID      string    `bigquery:"user_id"`
	GeneratedTS time.Time `bigquery:"generated_ts"`
	Confidence  string    `bigquery:"confidence"`
	DataSource  string    `bigquery:"data_source"`
	Enriched    bool      `bigquery:"enriched"`
	CardsJSON   string    `bigquery:"cards"`
}

// SnapshotRowFromSnapshot maps a domain snapshot onto its row shape.
func SnapshotRowFromSnapshot(s *domain.RecommendationSnapshot) (*SnapshotRow, error) {
	cards, err := json.Marshal(s.Cards)
	if err != nil {
		return nil, fmt.Errorf("SnapshotRowFromSnapshot: cards: %w", err)
	}
	return &SnapshotRow{
		SnapshotID:  s.SnapshotID,
		UserID:      s.UserID,
		GeneratedTS: s.GeneratedAt,
		Confidence:  string(s.Confidence),
		DataSource:  string(s.DataSource),
		Enriched:    s.Enriched,
		CardsJSON:   string(cards),
	}, nil
}

// ToSnapshot maps a row back to the domain shape.
func (r *SnapshotRow) ToSnapshot() (*domain.RecommendationSnapshot, error) {
	s := &domain.RecommendationSnapshot{
		SnapshotID:  r.SnapshotID,
		UserID:      r.UserID,
		GeneratedAt: r.GeneratedTS,
		Confidence:  domain.Confidence(r.Confidence),
		DataSource:  domain.DataSource(r.DataSource),
		Enriched:    r.Enriched,
	}
	if r.CardsJSON != "" {
		if err := json.Unmarshal([]byte(r.CardsJSON), &s.Cards); err != nil {
			return nil, fmt.Errorf("SnapshotRow %s: cards: %w", r.SnapshotID, err)
		}
	}
	return s, nil
}

// DocumentRow is one uploaded statement document in
// spend.statement_documents. The text itself lives in GCS; the row
// carries the pointer, the checksum used for duplicate-document
// short-circuiting and the processing status.
type DocumentRow struct {
	DocumentID     string                 `bigquery:"document_id"`
	UserID         string                 `bigquery:"user_id"`
	GCSURI         string                 `bigquery:"gcs_uri"`
	ChecksumSHA256 string                 `bigquery:"checksum_sha256"`
	Issuer         string                 `bigquery:"issuer"`
	StatementKind  string                 `bigquery:"statement_kind"`
	Status         string                 `bigquery:"status"`
	UploadTS       time.Time              `bigquery:"upload_ts"`
	ProcessedTS    bigquery.NullTimestamp `bigquery:"processed_ts"`
}

// Document statuses.
const (
	DocumentStatusPending   = "PENDING"
	DocumentStatusProcessed = "PROCESSED"
	DocumentStatusFailed    = "FAILED"
)

// IngestionRunRow records one extraction attempt over a document in
// spend.ingestion_runs.
type IngestionRunRow struct {
	RunID          string                 `bigquery:"run_id"`
	DocumentID     string                 `bigquery:"document_id"`
	UserID         string                 `bigquery:"user_id"`
	BatchID        string                 `bigquery:"batch_id"`
	StartedTS      time.Time              `bigquery:"started_ts"`
	FinishedTS     bigquery.NullTimestamp `bigquery:"finished_ts"`
	ModelName      string                 `bigquery:"model_name"`
	Status         string                 `bigquery:"status"`
	ErrorMessage   string                 `bigquery:"error_message"`
	NewCount       bigquery.NullInt64     `bigquery:"new_count"`
	DuplicateCount bigquery.NullInt64     `bigquery:"duplicate_count"`
}

// Ingestion run statuses.
const (
	RunStatusRunning = "RUNNING"
	RunStatusSuccess = "SUCCESS"
	RunStatusFailed  = "FAILED"
)
