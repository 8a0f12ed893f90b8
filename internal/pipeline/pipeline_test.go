package pipeline_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/cardspark/spendmatch/internal/domain"
	"github.com/cardspark/spendmatch/internal/extract"
	infra "github.com/cardspark/spendmatch/internal/infra/bigquery"
	"github.com/cardspark/spendmatch/internal/jobs"
	"github.com/cardspark/spendmatch/internal/pipeline"
)

// MockFetcher is a mock implementation of StatementFetcher.
type MockFetcher struct {
	FetchStatementFunc func(ctx context.Context, gcsURI string) ([]byte, error)
}

func (m *MockFetcher) FetchStatement(ctx context.Context, gcsURI string) ([]byte, error) {
	if m.FetchStatementFunc != nil {
		return m.FetchStatementFunc(ctx, gcsURI)
	}
	return []byte("statement text"), nil
}

// MockExtractor is a mock implementation of Extractor.
type MockExtractor struct {
	ExtractTransactionsFunc func(ctx context.Context, doc extract.StatementDocument) (*extract.ExtractionResult, error)
}

func (m *MockExtractor) ExtractTransactions(ctx context.Context, doc extract.StatementDocument) (*extract.ExtractionResult, error) {
	if m.ExtractTransactionsFunc != nil {
		return m.ExtractTransactionsFunc(ctx, doc)
	}
	return &extract.ExtractionResult{}, nil
}

// memRepos is an in-memory stand-in for the BigQuery store covering
// all four repositories the pipeline touches.
type memRepos struct {
	entries  []*domain.LedgerEntry
	profiles map[string]*domain.FeatureProfile

	docStatus map[string]string
	runStatus map[string]string
	runErrs   map[string]string
	runNew    map[string]int
	runDup    map[string]int
}

func newMemRepos() *memRepos {
	return &memRepos{
		profiles:  make(map[string]*domain.FeatureProfile),
		docStatus: make(map[string]string),
		runStatus: make(map[string]string),
		runErrs:   make(map[string]string),
		runNew:    make(map[string]int),
		runDup:    make(map[string]int),
	}
}

func (m *memRepos) LookupHashes(ctx context.Context, userID string, hashes []string) (map[string]bool, error) {
	found := make(map[string]bool)
	for _, e := range m.entries {
		if e.UserID != userID {
			continue
		}
		for _, h := range hashes {
			if e.TransactionHash == h {
				found[h] = true
			}
		}
	}
	return found, nil
}

func (m *memRepos) InsertEntries(ctx context.Context, entries []*domain.LedgerEntry) error {
	m.entries = append(m.entries, entries...)
	return nil
}

func (m *memRepos) IncrementOccurrences(ctx context.Context, userID string, hashes []string) error {
	for _, e := range m.entries {
		if e.UserID != userID {
			continue
		}
		for _, h := range hashes {
			if e.TransactionHash == h {
				e.OccurrenceCount++
			}
		}
	}
	return nil
}

func (m *memRepos) ListEntries(ctx context.Context, userID string) ([]*domain.LedgerEntry, error) {
	var out []*domain.LedgerEntry
	for _, e := range m.entries {
		if e.UserID == userID {
			out = append(out, e)
		}
	}
	return out, nil
}

func (m *memRepos) UpsertProfile(ctx context.Context, profile *domain.FeatureProfile) error {
	m.profiles[profile.UserID] = profile
	return nil
}

func (m *memRepos) GetProfile(ctx context.Context, userID string) (*domain.FeatureProfile, error) {
	return m.profiles[userID], nil
}

func (m *memRepos) InsertDocument(ctx context.Context, row *infra.DocumentRow) error {
	m.docStatus[row.DocumentID] = row.Status
	return nil
}

func (m *memRepos) FindDocumentByChecksum(ctx context.Context, userID, checksum string) (*infra.DocumentRow, error) {
	return nil, nil
}

func (m *memRepos) ListDocumentsByStatus(ctx context.Context, status string, limit int) ([]*infra.DocumentRow, error) {
	return nil, nil
}

func (m *memRepos) MarkDocumentStatus(ctx context.Context, documentID, status string) error {
	m.docStatus[documentID] = status
	return nil
}

func (m *memRepos) StartIngestionRun(ctx context.Context, row *infra.IngestionRunRow) error {
	m.runStatus[row.RunID] = infra.RunStatusRunning
	return nil
}

func (m *memRepos) MarkIngestionRunFailed(ctx context.Context, runID string, runErr error) {
	m.runStatus[runID] = infra.RunStatusFailed
	if runErr != nil {
		m.runErrs[runID] = runErr.Error()
	}
}

func (m *memRepos) MarkIngestionRunSucceeded(ctx context.Context, runID string, newCount, duplicateCount int) error {
	m.runStatus[runID] = infra.RunStatusSuccess
	m.runNew[runID] = newCount
	m.runDup[runID] = duplicateCount
	return nil
}

func testDeps(repos *memRepos, extractor pipeline.Extractor) pipeline.Deps {
	return pipeline.Deps{
		Fetcher:   &MockFetcher{},
		Extractor: extractor,
		Ledger:    repos,
		Documents: repos,
		Runs:      repos,
		Profiles:  repos,
	}
}

func sampleExtraction() *extract.ExtractionResult {
	return &extract.ExtractionResult{
		Transactions: []domain.RawTransaction{
			{Date: "2025-01-03", Merchant: "SWIGGY BANGALORE", Amount: 450.50, Direction: domain.DirectionDebit, Category: domain.CategoryDining, LineNo: 1},
			{Date: "2025-01-05", Merchant: "BIGBASKET", Amount: 2100, Direction: domain.DirectionDebit, Category: domain.CategoryGroceries, LineNo: 2},
			{Date: "2025-01-31", Merchant: "SALARY ACME", Amount: 90000, Direction: domain.DirectionCredit, Category: domain.CategoryOther, LineNo: 3},
		},
		Issuer: "HDFC",
	}
}

func TestIngestHappyPath(t *testing.T) {
	repos := newMemRepos()
	extractor := &MockExtractor{
		ExtractTransactionsFunc: func(ctx context.Context, doc extract.StatementDocument) (*extract.ExtractionResult, error) {
			return sampleExtraction(), nil
		},
	}

	ingestor := pipeline.NewIngestor(testDeps(repos, extractor))
	state := &pipeline.PipelineState{
		UserID:     "user-1",
		DocumentID: "doc-1",
		BatchID:    "batch-1",
		GCSURI:     "gs://b/statements/user-1/doc-1.txt",
	}
	if err := ingestor.Ingest(context.Background(), state); err != nil {
		t.Fatalf("ingest: %v", err)
	}

	if len(repos.entries) != 3 {
		t.Fatalf("ledger has %d entries, want 3", len(repos.entries))
	}
	if repos.docStatus["doc-1"] != infra.DocumentStatusProcessed {
		t.Fatalf("document status = %s, want PROCESSED", repos.docStatus["doc-1"])
	}
	if state.RunID == "" {
		t.Fatal("run ID not assigned")
	}
	if repos.runStatus[state.RunID] != infra.RunStatusSuccess {
		t.Fatalf("run status = %s, want SUCCESS", repos.runStatus[state.RunID])
	}
	if repos.runNew[state.RunID] != 3 || repos.runDup[state.RunID] != 0 {
		t.Fatalf("run counters = %d/%d, want 3/0", repos.runNew[state.RunID], repos.runDup[state.RunID])
	}

	prof := repos.profiles["user-1"]
	if prof == nil {
		t.Fatal("profile not recomputed")
	}
	if prof.DataSource != domain.DataSourceStatement {
		t.Fatalf("profile data source = %s, want statement", prof.DataSource)
	}
	if !prof.PositiveCashFlow {
		t.Fatal("salary credit should set positive cash flow")
	}
}

func TestIngestSecondRunIsIdempotent(t *testing.T) {
	repos := newMemRepos()
	extractor := &MockExtractor{
		ExtractTransactionsFunc: func(ctx context.Context, doc extract.StatementDocument) (*extract.ExtractionResult, error) {
			return sampleExtraction(), nil
		},
	}
	ingestor := pipeline.NewIngestor(testDeps(repos, extractor))

	first := &pipeline.PipelineState{UserID: "user-1", DocumentID: "doc-1", BatchID: "batch-1", GCSURI: "gs://b/s/1.txt"}
	if err := ingestor.Ingest(context.Background(), first); err != nil {
		t.Fatalf("first ingest: %v", err)
	}
	second := &pipeline.PipelineState{UserID: "user-1", DocumentID: "doc-2", BatchID: "batch-2", GCSURI: "gs://b/s/2.txt"}
	if err := ingestor.Ingest(context.Background(), second); err != nil {
		t.Fatalf("second ingest: %v", err)
	}

	if len(repos.entries) != 3 {
		t.Fatalf("ledger grew to %d entries after duplicate upload, want 3", len(repos.entries))
	}
	if repos.runNew[second.RunID] != 0 || repos.runDup[second.RunID] != 3 {
		t.Fatalf("second run counters = %d/%d, want 0/3", repos.runNew[second.RunID], repos.runDup[second.RunID])
	}
	for _, e := range repos.entries {
		if e.OccurrenceCount != 2 {
			t.Fatalf("occurrence count = %d, want 2", e.OccurrenceCount)
		}
		if e.BatchID != "batch-1" {
			t.Fatalf("batch ID changed to %s on duplicate", e.BatchID)
		}
	}
}

func TestIngestExtractionFailureMarksRows(t *testing.T) {
	repos := newMemRepos()
	extractor := &MockExtractor{
		ExtractTransactionsFunc: func(ctx context.Context, doc extract.StatementDocument) (*extract.ExtractionResult, error) {
			return nil, &extract.NonDigitalDocumentError{TextLength: 12}
		},
	}
	ingestor := pipeline.NewIngestor(testDeps(repos, extractor))

	state := &pipeline.PipelineState{UserID: "user-1", DocumentID: "doc-1", BatchID: "batch-1", GCSURI: "gs://b/s/1.txt"}
	err := ingestor.Ingest(context.Background(), state)
	if err == nil {
		t.Fatal("expected error")
	}
	var nonDigital *extract.NonDigitalDocumentError
	if !errors.As(err, &nonDigital) {
		t.Fatalf("error lost its type: %v", err)
	}
	if repos.docStatus["doc-1"] != infra.DocumentStatusFailed {
		t.Fatalf("document status = %s, want FAILED", repos.docStatus["doc-1"])
	}
	if repos.runStatus[state.RunID] != infra.RunStatusFailed {
		t.Fatalf("run status = %s, want FAILED", repos.runStatus[state.RunID])
	}
	if repos.runErrs[state.RunID] == "" {
		t.Fatal("run error message not recorded")
	}
	if len(repos.entries) != 0 {
		t.Fatalf("ledger has %d entries after failed extraction", len(repos.entries))
	}
}

func TestJobHandlerClassifiesErrors(t *testing.T) {
	tests := []struct {
		name          string
		extractErr    error
		wantPermanent bool
	}{
		{
			name:          "scanned document",
			extractErr:    &extract.NonDigitalDocumentError{TextLength: 12},
			wantPermanent: true,
		},
		{
			name:          "contract violation",
			extractErr:    &extract.ExtractionServiceError{Reason: "merchant empty at index 0"},
			wantPermanent: true,
		},
		{
			name:          "timeout",
			extractErr:    &extract.ExtractionTimeoutError{Budget: 30 * time.Second},
			wantPermanent: false,
		},
		{
			name:          "overloaded",
			extractErr:    &extract.ServiceUnavailableError{RetryAfter: time.Minute},
			wantPermanent: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repos := newMemRepos()
			extractor := &MockExtractor{
				ExtractTransactionsFunc: func(ctx context.Context, doc extract.StatementDocument) (*extract.ExtractionResult, error) {
					return nil, tt.extractErr
				},
			}
			handler := pipeline.NewIngestor(testDeps(repos, extractor)).JobHandler()

			job := &jobs.IngestStatementJob{JobID: "j1", UserID: "user-1", DocumentID: "doc-1", BatchID: "batch-1"}
			err := handler(context.Background(), job)
			if err == nil {
				t.Fatal("expected error")
			}
			if got := jobs.IsPermanent(err); got != tt.wantPermanent {
				t.Fatalf("IsPermanent = %v, want %v", got, tt.wantPermanent)
			}
		})
	}
}

func TestJobHandlerReportsCounts(t *testing.T) {
	repos := newMemRepos()
	extractor := &MockExtractor{
		ExtractTransactionsFunc: func(ctx context.Context, doc extract.StatementDocument) (*extract.ExtractionResult, error) {
			return sampleExtraction(), nil
		},
	}
	handler := pipeline.NewIngestor(testDeps(repos, extractor)).JobHandler()

	job := &jobs.IngestStatementJob{JobID: "j1", UserID: "user-1", DocumentID: "doc-1", BatchID: "batch-1", GCSURI: "gs://b/s/1.txt"}
	if err := handler(context.Background(), job); err != nil {
		t.Fatalf("handler: %v", err)
	}
	if job.NewCount != 3 || job.DuplicateCount != 0 {
		t.Fatalf("job counters = %d/%d, want 3/0", job.NewCount, job.DuplicateCount)
	}
	if job.RunID == "" {
		t.Fatal("run ID not propagated to job")
	}
}
