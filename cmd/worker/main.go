// Recovery worker for stranded statement uploads.
//
// The API binary processes uploads with its own in-process queue, but a
// restart loses any queued jobs and leaves their documents in PENDING.
// This binary polls statement_documents for PENDING rows, re-enqueues
// each one and runs the ingestion pipeline over them. With -once it
// does a single sweep and exits, which is how the scheduled Cloud Run
// job invokes it.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	"github.com/cardspark/spendmatch/internal/docstore"
	"github.com/cardspark/spendmatch/internal/extract"
	infra "github.com/cardspark/spendmatch/internal/infra/bigquery"
	"github.com/cardspark/spendmatch/internal/jobs"
	"github.com/cardspark/spendmatch/internal/jobs/inmemory"
	"github.com/cardspark/spendmatch/internal/logger"
	"github.com/cardspark/spendmatch/internal/pipeline"
)

func main() {
	var (
		workers = flag.Int("workers", 4, "concurrent ingestion workers")
		poll    = flag.Duration("poll", 30*time.Second, "interval between sweeps for pending documents")
		batch   = flag.Int("batch", 50, "maximum documents requeued per sweep")
		once    = flag.Bool("once", false, "run a single sweep and exit")
		minAge  = flag.Duration("min-age", 2*time.Minute, "skip documents uploaded more recently than this")
	)
	flag.Parse()

	_ = godotenv.Load()

	log := logger.New()
	ctx := logger.WithContext(context.Background(), log)

	store, err := infra.NewStore(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create BigQuery store")
	}
	defer store.Close()

	docStore, err := docstore.NewGCSStore(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create document store")
	}
	defer docStore.Close()

	extractor, err := extract.NewClient(ctx, extract.Config{})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create extraction client")
	}

	jobStore := inmemory.NewStore()
	jobQueue := inmemory.NewQueue(*batch*2, *workers, jobStore)

	ingestor := pipeline.NewIngestor(pipeline.Deps{
		Fetcher:   docStore,
		Extractor: extractor,
		Ledger:    store,
		Documents: store,
		Runs:      store,
		Profiles:  store,
	})

	workerCtx, cancelWorker := context.WithCancel(ctx)
	defer cancelWorker()

	if err := jobQueue.Start(workerCtx, ingestor.JobHandler()); err != nil {
		log.Fatal().Err(err).Msg("Failed to start ingestion workers")
	}

	log.Info().
		Int("workers", *workers).
		Dur("poll", *poll).
		Bool("once", *once).
		Msg("Recovery worker started")

	// Documents enqueued in earlier sweeps may still be PENDING while a
	// job is in flight, so track what this process already requeued.
	enqueued := make(map[string]bool)

	sweep := func() {
		n, err := requeuePending(workerCtx, log, store, jobQueue, enqueued, *batch, *minAge)
		if err != nil {
			log.Error().Err(err).Msg("Sweep failed")
			return
		}
		if n > 0 {
			log.Info().Int("requeued", n).Msg("Sweep complete")
		}
	}

	sweep()

	if *once {
		waitForIdle(workerCtx, jobStore)
		drainAndExit(ctx, log, jobQueue)
		return
	}

	ticker := time.NewTicker(*poll)
	defer ticker.Stop()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	for {
		select {
		case <-ticker.C:
			sweep()
		case <-quit:
			log.Info().Msg("Shutting down recovery worker...")
			cancelWorker()
			drainAndExit(ctx, log, jobQueue)
			return
		}
	}
}

// requeuePending publishes an ingestion job for each pending document
// not already requeued by this process. Documents younger than minAge
// are skipped so a live API worker gets a chance to finish them first.
func requeuePending(ctx context.Context, log zerolog.Logger, store *infra.Store, publisher jobs.Publisher, enqueued map[string]bool, batch int, minAge time.Duration) (int, error) {
	docs, err := store.ListDocumentsByStatus(ctx, infra.DocumentStatusPending, batch)
	if err != nil {
		return 0, err
	}

	cutoff := time.Now().UTC().Add(-minAge)
	requeued := 0
	for _, doc := range docs {
		if enqueued[doc.DocumentID] || doc.UploadTS.After(cutoff) {
			continue
		}

		job := &jobs.IngestStatementJob{
			UserID:     doc.UserID,
			DocumentID: doc.DocumentID,
			BatchID:    uuid.NewString(),
			GCSURI:     doc.GCSURI,
		}
		if err := publisher.PublishIngestStatement(ctx, job); err != nil {
			log.Error().
				Err(err).
				Str("document_id", doc.DocumentID).
				Msg("Failed to requeue document")
			continue
		}

		enqueued[doc.DocumentID] = true
		requeued++
		log.Info().
			Str("job_id", job.JobID).
			Str("document_id", doc.DocumentID).
			Str("user_id", doc.UserID).
			Msg("Requeued pending document")
	}
	return requeued, nil
}

// waitForIdle blocks until no job is pending, running or retrying.
// Stop only waits for in-flight jobs, so a single-sweep run would
// otherwise abandon whatever is still buffered in the channel.
func waitForIdle(ctx context.Context, store jobs.JobStore) {
	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		all, err := store.ListJobs(ctx, jobs.JobFilter{})
		if err != nil {
			continue
		}
		busy := false
		for _, j := range all {
			if j.Status != jobs.JobStatusCompleted && j.Status != jobs.JobStatusFailed {
				busy = true
				break
			}
		}
		if !busy {
			return
		}
	}
}

func drainAndExit(ctx context.Context, log zerolog.Logger, jobQueue *inmemory.Queue) {
	shutdownCtx, cancel := context.WithTimeout(ctx, 5*time.Minute)
	defer cancel()

	if err := jobQueue.Stop(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Error draining job queue")
	}
	log.Info().Msg("Recovery worker exited")
}
