package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/cardspark/spendmatch/internal/dedupe"
	"github.com/cardspark/spendmatch/internal/domain"
	"github.com/cardspark/spendmatch/internal/extract"
	infra "github.com/cardspark/spendmatch/internal/infra/bigquery"
	"github.com/cardspark/spendmatch/internal/profile"
)

// PipelineStep represents a single step in the ingestion pipeline.
type PipelineStep interface {
	Execute(ctx context.Context, state *PipelineState) error
}

// PipelineState holds the shared state across all pipeline steps.
type PipelineState struct {
	UserID     string
	DocumentID string
	BatchID    string
	GCSURI     string
	RunID      string

	StatementText []byte
	Extraction    *extract.ExtractionResult
	Dedupe        *dedupe.Result
	Profile       *domain.FeatureProfile
}

// Step 1: StartRunStep records a RUNNING ingestion run for the
// document.
type StartRunStep struct {
	runs infra.IngestionRunRepository
}

func (s *StartRunStep) Execute(ctx context.Context, state *PipelineState) error {
	state.RunID = uuid.NewString()
	row := &infra.IngestionRunRow{
		RunID:      state.RunID,
		DocumentID: state.DocumentID,
		UserID:     state.UserID,
		BatchID:    state.BatchID,
		StartedTS:  time.Now().UTC(),
		ModelName:  DefaultModelName,
	}
	if err := s.runs.StartIngestionRun(ctx, row); err != nil {
		return err
	}
	return nil
}

// Step 2: FetchStatementStep fetches the statement text from GCS.
type FetchStatementStep struct {
	fetcher StatementFetcher
	runs    infra.IngestionRunRepository
}

func (s *FetchStatementStep) Execute(ctx context.Context, state *PipelineState) error {
	text, err := s.fetcher.FetchStatement(ctx, state.GCSURI)
	if err != nil {
		s.runs.MarkIngestionRunFailed(ctx, state.RunID, err)
		return err
	}
	state.StatementText = text
	return nil
}

// Step 3: ExtractStep calls the model-backed extraction client.
type ExtractStep struct {
	extractor Extractor
	runs      infra.IngestionRunRepository
}

func (s *ExtractStep) Execute(ctx context.Context, state *PipelineState) error {
	result, err := s.extractor.ExtractTransactions(ctx, extract.StatementDocument{
		UserID:  state.UserID,
		BatchID: state.BatchID,
		Text:    string(state.StatementText),
		Kind:    DefaultStatementKind,
	})
	if err != nil {
		s.runs.MarkIngestionRunFailed(ctx, state.RunID, err)
		return err
	}
	state.Extraction = result
	return nil
}

// Step 4: DedupeStep canonicalizes the extracted transactions and
// inserts the new ones into the ledger.
type DedupeStep struct {
	ledger infra.LedgerRepository
	runs   infra.IngestionRunRepository
}

func (s *DedupeStep) Execute(ctx context.Context, state *PipelineState) error {
	result, err := dedupe.Run(ctx, s.ledger, state.UserID, state.BatchID, state.Extraction.Transactions)
	if err != nil {
		s.runs.MarkIngestionRunFailed(ctx, state.RunID, err)
		return err
	}
	state.Dedupe = result
	return nil
}

// Step 5: RecomputeProfileStep rebuilds the feature profile from the
// full ledger, keeping any declared preference knobs.
type RecomputeProfileStep struct {
	ledger   infra.LedgerRepository
	profiles infra.ProfileRepository
	runs     infra.IngestionRunRepository
}

func (s *RecomputeProfileStep) Execute(ctx context.Context, state *PipelineState) error {
	entries, err := s.ledger.ListEntries(ctx, state.UserID)
	if err != nil {
		s.runs.MarkIngestionRunFailed(ctx, state.RunID, err)
		return err
	}
	prefs, err := preferencesFor(ctx, s.profiles, state.UserID)
	if err != nil {
		s.runs.MarkIngestionRunFailed(ctx, state.RunID, err)
		return err
	}
	prof, err := profile.FromLedger(state.UserID, entries, prefs)
	if err != nil {
		s.runs.MarkIngestionRunFailed(ctx, state.RunID, err)
		return err
	}
	if err := s.profiles.UpsertProfile(ctx, prof); err != nil {
		s.runs.MarkIngestionRunFailed(ctx, state.RunID, err)
		return err
	}
	state.Profile = prof
	return nil
}

// Step 6: MarkDocumentProcessedStep moves the document to PROCESSED.
type MarkDocumentProcessedStep struct {
	documents infra.DocumentRepository
	runs      infra.IngestionRunRepository
}

func (s *MarkDocumentProcessedStep) Execute(ctx context.Context, state *PipelineState) error {
	if err := s.documents.MarkDocumentStatus(ctx, state.DocumentID, infra.DocumentStatusProcessed); err != nil {
		s.runs.MarkIngestionRunFailed(ctx, state.RunID, err)
		return err
	}
	return nil
}

// Step 7: MarkSuccessStep records the dedup counters and closes the
// ingestion run.
type MarkSuccessStep struct {
	runs infra.IngestionRunRepository
}

func (s *MarkSuccessStep) Execute(ctx context.Context, state *PipelineState) error {
	return s.runs.MarkIngestionRunSucceeded(ctx, state.RunID, state.Dedupe.NewCount, state.Dedupe.DuplicateCount)
}

// Pipeline executes a sequence of steps in order.
type Pipeline struct {
	steps []PipelineStep
}

// NewPipeline creates a new pipeline with the given steps.
func NewPipeline(steps ...PipelineStep) *Pipeline {
	return &Pipeline{steps: steps}
}

// Execute runs all steps sequentially, stopping at the first failure.
func (p *Pipeline) Execute(ctx context.Context, state *PipelineState) error {
	for i, step := range p.steps {
		if err := step.Execute(ctx, state); err != nil {
			return fmt.Errorf("pipeline step %d failed: %w", i+1, err)
		}
	}
	return nil
}

// NewStatementIngestionPipeline creates the standard 7-step pipeline
// for ingesting statements.
func NewStatementIngestionPipeline(deps Deps) *Pipeline {
	return NewPipeline(
		&StartRunStep{runs: deps.Runs},
		&FetchStatementStep{fetcher: deps.Fetcher, runs: deps.Runs},
		&ExtractStep{extractor: deps.Extractor, runs: deps.Runs},
		&DedupeStep{ledger: deps.Ledger, runs: deps.Runs},
		&RecomputeProfileStep{ledger: deps.Ledger, profiles: deps.Profiles, runs: deps.Runs},
		&MarkDocumentProcessedStep{documents: deps.Documents, runs: deps.Runs},
		&MarkSuccessStep{runs: deps.Runs},
	)
}
