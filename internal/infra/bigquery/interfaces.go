package bigquery

import (
	"context"
	"fmt"
	"os"

	"cloud.google.com/go/bigquery"

	"github.com/cardspark/spendmatch/internal/domain"
)

// Default connection settings. The project can be overridden with the
// BQ_PROJECT environment variable; the dataset with BQ_DATASET.
const (
	defaultProjectID = "spendmatch-prod"
	defaultDatasetID = "spend"
)

func projectID() string {
	if v := os.Getenv("BQ_PROJECT"); v != "" {
		return v
	}
	return defaultProjectID
}

func datasetID() string {
	if v := os.Getenv("BQ_DATASET"); v != "" {
		return v
	}
	return defaultDatasetID
}

// LedgerRepository is the persistence contract for the transaction
// ledger: bulk hash lookup, immutable insert, occurrence increments
// and read-back for profile computation. Implements dedupe.LedgerStore.
type LedgerRepository interface {
	LookupHashes(ctx context.Context, userID string, hashes []string) (map[string]bool, error)
	InsertEntries(ctx context.Context, entries []*domain.LedgerEntry) error
	IncrementOccurrences(ctx context.Context, userID string, hashes []string) error
	ListEntries(ctx context.Context, userID string) ([]*domain.LedgerEntry, error)
}

// CatalogRepository reads the card catalog. Implements
// recommend.Catalog.
type CatalogRepository interface {
	ListProducts(ctx context.Context) ([]*domain.CandidateProduct, error)
}

// ProfileRepository stores the single overwritable feature profile per
// user.
type ProfileRepository interface {
	UpsertProfile(ctx context.Context, profile *domain.FeatureProfile) error
	GetProfile(ctx context.Context, userID string) (*domain.FeatureProfile, error)
}

// SnapshotRepository stores recommendation snapshots, append-only.
type SnapshotRepository interface {
	InsertSnapshot(ctx context.Context, snapshot *domain.RecommendationSnapshot) error
	GetLatestSnapshot(ctx context.Context, userID string) (*domain.RecommendationSnapshot, error)
}

// DocumentRepository stores statement document rows and supports the
// duplicate-document short-circuit by checksum.
type DocumentRepository interface {
	InsertDocument(ctx context.Context, row *DocumentRow) error
	FindDocumentByChecksum(ctx context.Context, userID, checksum string) (*DocumentRow, error)
	ListDocumentsByStatus(ctx context.Context, status string, limit int) ([]*DocumentRow, error)
	MarkDocumentStatus(ctx context.Context, documentID, status string) error
}

// IngestionRunRepository records extraction attempts.
type IngestionRunRepository interface {
	StartIngestionRun(ctx context.Context, row *IngestionRunRow) error
	MarkIngestionRunFailed(ctx context.Context, runID string, runErr error)
	MarkIngestionRunSucceeded(ctx context.Context, runID string, newCount, duplicateCount int) error
}

// Store bundles every repository behind one shared BigQuery client.
type Store struct {
	client  *bigquery.Client
	dataset string
}

// NewStore creates the shared-client store. Credentials come from
// Application Default Credentials, same as the GCS and genai clients.
func NewStore(ctx context.Context) (*Store, error) {
	client, err := bigquery.NewClient(ctx, projectID())
	if err != nil {
		return nil, fmt.Errorf("NewStore: creating client: %w", err)
	}
	return &Store{client: client, dataset: datasetID()}, nil
}

// Close releases the underlying client.
func (s *Store) Close() error {
	if s.client != nil {
		return s.client.Close()
	}
	return nil
}

func (s *Store) table(name string) string {
	return fmt.Sprintf("%s.%s", s.dataset, name)
}

// runDML runs a mutation query and surfaces both transport and job
// level errors.
func (s *Store) runDML(ctx context.Context, q *bigquery.Query) error {
	job, err := q.Run(ctx)
	if err != nil {
		return fmt.Errorf("run: %w", err)
	}
	status, err := job.Wait(ctx)
	if err != nil {
		return fmt.Errorf("wait: %w", err)
	}
	if err := status.Err(); err != nil {
		return fmt.Errorf("job: %w", err)
	}
	return nil
}

var (
	_ LedgerRepository       = (*Store)(nil)
	_ CatalogRepository      = (*Store)(nil)
	_ ProfileRepository      = (*Store)(nil)
	_ SnapshotRepository     = (*Store)(nil)
	_ DocumentRepository     = (*Store)(nil)
	_ IngestionRunRepository = (*Store)(nil)
)
