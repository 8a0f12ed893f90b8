package bigquery

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/bigquery"

	"github.com/cardspark/spendmatch/internal/logger"
)

const ingestionRunsTable = "ingestion_runs"

// StartIngestionRun records a RUNNING row for a fresh extraction
// attempt. DML rather than the streaming inserter so the row can be
// updated immediately when the run finishes.
func (s *Store) StartIngestionRun(ctx context.Context, row *IngestionRunRow) error {
	q := s.client.Query(fmt.Sprintf(`
		INSERT %s (
			run_id, document_id, user_id, batch_id,
			started_ts, model_name, status
		)
		VALUES (
			@run_id, @document_id, @user_id, @batch_id,
			@started_ts, @model_name, @status
		)
	`, s.table(ingestionRunsTable)))
	q.Parameters = []bigquery.QueryParameter{
		{Name: "run_id", Value: row.RunID},
		{Name: "document_id", Value: row.DocumentID},
		{Name: "user_id", Value: row.UserID},
		{Name: "batch_id", Value: row.BatchID},
		{Name: "started_ts", Value: row.StartedTS},
		{Name: "model_name", Value: row.ModelName},
		{Name: "status", Value: RunStatusRunning},
	}
	if err := s.runDML(ctx, q); err != nil {
		return fmt.Errorf("StartIngestionRun: %w", err)
	}
	return nil
}

// MarkIngestionRunFailed sets status=FAILED with the error message.
// Best effort: the run row is bookkeeping and must not mask the
// pipeline error that brought us here.
func (s *Store) MarkIngestionRunFailed(ctx context.Context, runID string, runErr error) {
	log := logger.FromContext(ctx)

	msg := ""
	if runErr != nil {
		msg = runErr.Error()
	}
	q := s.client.Query(fmt.Sprintf(`
		UPDATE %s
		SET status = @status, finished_ts = @finished_ts, error_message = @error_message
		WHERE run_id = @run_id
	`, s.table(ingestionRunsTable)))
	q.Parameters = []bigquery.QueryParameter{
		{Name: "run_id", Value: runID},
		{Name: "status", Value: RunStatusFailed},
		{Name: "finished_ts", Value: time.Now().UTC()},
		{Name: "error_message", Value: msg},
	}
	if err := s.runDML(ctx, q); err != nil {
		log.Error().
			Err(err).
			Str("run_id", runID).
			Msg("MarkIngestionRunFailed: update failed")
	}
}

// MarkIngestionRunSucceeded sets status=SUCCESS and the dedup counters.
func (s *Store) MarkIngestionRunSucceeded(ctx context.Context, runID string, newCount, duplicateCount int) error {
	q := s.client.Query(fmt.Sprintf(`
		UPDATE %s
		SET status = @status, finished_ts = @finished_ts,
		    new_count = @new_count, duplicate_count = @duplicate_count
		WHERE run_id = @run_id
	`, s.table(ingestionRunsTable)))
	q.Parameters = []bigquery.QueryParameter{
		{Name: "run_id", Value: runID},
		{Name: "status", Value: RunStatusSuccess},
		{Name: "finished_ts", Value: time.Now().UTC()},
		{Name: "new_count", Value: int64(newCount)},
		{Name: "duplicate_count", Value: int64(duplicateCount)},
	}
	if err := s.runDML(ctx, q); err != nil {
		return fmt.Errorf("MarkIngestionRunSucceeded: %w", err)
	}
	return nil
}
