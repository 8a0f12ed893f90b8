package pipeline

import (
	"context"

	"github.com/cardspark/spendmatch/internal/domain"
	"github.com/cardspark/spendmatch/internal/extract"
	infra "github.com/cardspark/spendmatch/internal/infra/bigquery"
)

// Extractor turns statement text into structured transactions. This
// interface enables mocking the Gemini-backed client in tests.
type Extractor interface {
	ExtractTransactions(ctx context.Context, doc extract.StatementDocument) (*extract.ExtractionResult, error)
}

// StatementFetcher reads statement text back from document storage.
type StatementFetcher interface {
	FetchStatement(ctx context.Context, gcsURI string) ([]byte, error)
}

// Deps bundles everything the ingestion pipeline touches. The BigQuery
// store satisfies the four repository fields; tests substitute mocks.
type Deps struct {
	Fetcher   StatementFetcher
	Extractor Extractor
	Ledger    infra.LedgerRepository
	Documents infra.DocumentRepository
	Runs      infra.IngestionRunRepository
	Profiles  infra.ProfileRepository
}

// preferencesFor returns the user's stored preferences so a ledger
// recompute keeps the declared knobs, or zero values for a first
// ingestion.
func preferencesFor(ctx context.Context, profiles infra.ProfileRepository, userID string) (domain.UserPreferences, error) {
	existing, err := profiles.GetProfile(ctx, userID)
	if err != nil {
		return domain.UserPreferences{}, err
	}
	if existing == nil {
		return domain.UserPreferences{}, nil
	}
	return domain.UserPreferences{
		FeeTolerance:     existing.FeeTolerance,
		RewardPreference: existing.RewardPreference,
		TravelFrequency:  existing.TravelFrequency,
		LoungeImportance: existing.LoungeImportance,
		CityTier:         existing.CityTier,
		IncomeBand:       existing.IncomeBand,
	}, nil
}
