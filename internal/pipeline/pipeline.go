// Package pipeline orchestrates statement ingestion: fetch the
// uploaded text from GCS, extract transactions with Gemini, dedupe
// them into the ledger, recompute the feature profile and close out
// the bookkeeping rows.
package pipeline

import (
	"context"
	"errors"
	"fmt"

	"github.com/cardspark/spendmatch/internal/canonical"
	"github.com/cardspark/spendmatch/internal/extract"
	infra "github.com/cardspark/spendmatch/internal/infra/bigquery"
	"github.com/cardspark/spendmatch/internal/jobs"
	"github.com/cardspark/spendmatch/internal/logger"
)

// Ingestor runs the statement ingestion pipeline.
type Ingestor struct {
	deps Deps
}

// NewIngestor wires the pipeline's dependencies.
func NewIngestor(deps Deps) *Ingestor {
	return &Ingestor{deps: deps}
}

// Ingest processes one uploaded statement document end to end. On
// failure the document is marked FAILED; the ingestion run row was
// already marked by the failing step.
func (in *Ingestor) Ingest(ctx context.Context, state *PipelineState) error {
	log := logger.FromContext(ctx)
	log.Info().
		Str("user_id", state.UserID).
		Str("document_id", state.DocumentID).
		Str("batch_id", state.BatchID).
		Msg("statement ingestion started")

	if err := NewStatementIngestionPipeline(in.deps).Execute(ctx, state); err != nil {
		if markErr := in.deps.Documents.MarkDocumentStatus(ctx, state.DocumentID, infra.DocumentStatusFailed); markErr != nil {
			log.Error().
				Err(markErr).
				Str("document_id", state.DocumentID).
				Msg("failed to mark document FAILED")
		}
		return err
	}

	log.Info().
		Str("document_id", state.DocumentID).
		Int("new_count", state.Dedupe.NewCount).
		Int("duplicate_count", state.Dedupe.DuplicateCount).
		Int("intra_batch_dropped", state.Dedupe.IntraBatchDropped).
		Msg("statement ingestion finished")
	return nil
}

// JobHandler adapts the ingestor to the job queue. Failures that a
// retry cannot fix, a scanned document or output that violates the
// extraction contract, are marked permanent so the queue fails them
// immediately.
func (in *Ingestor) JobHandler() jobs.JobHandler {
	return func(ctx context.Context, job jobs.Job) error {
		stJob, ok := job.(*jobs.IngestStatementJob)
		if !ok {
			return jobs.Permanent(fmt.Errorf("unexpected job type %T", job))
		}

		state := &PipelineState{
			UserID:     stJob.UserID,
			DocumentID: stJob.DocumentID,
			BatchID:    stJob.BatchID,
			GCSURI:     stJob.GCSURI,
		}
		err := in.Ingest(ctx, state)
		stJob.RunID = state.RunID
		if err != nil {
			if isPermanentIngestError(err) {
				return jobs.Permanent(err)
			}
			return err
		}
		stJob.NewCount = state.Dedupe.NewCount
		stJob.DuplicateCount = state.Dedupe.DuplicateCount
		return nil
	}
}

func isPermanentIngestError(err error) bool {
	var (
		nonDigital *extract.NonDigitalDocumentError
		service    *extract.ExtractionServiceError
		malformed  *canonical.MalformedInputError
	)
	return errors.As(err, &nonDigital) ||
		errors.As(err, &service) ||
		errors.As(err, &malformed)
}
