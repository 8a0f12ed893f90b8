// One-shot statement ingestion. Uploads a local statement text file
// for a user and runs the full pipeline synchronously, or re-runs the
// pipeline over a statement already sitting in GCS. Useful for
// backfills and for debugging extraction without the API in the way.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"

	"github.com/cardspark/spendmatch/internal/docstore"
	"github.com/cardspark/spendmatch/internal/extract"
	infra "github.com/cardspark/spendmatch/internal/infra/bigquery"
	"github.com/cardspark/spendmatch/internal/logger"
	"github.com/cardspark/spendmatch/internal/pipeline"
)

func main() {
	var (
		userID     = flag.String("user", "", "user ID to ingest for (required)")
		filePath   = flag.String("file", "", "local statement text file to upload and ingest")
		gcsURI     = flag.String("gcs-uri", "", "existing statement URI (e.g. gs://bucket/statements/u1/doc.txt)")
		documentID = flag.String("document", "", "document ID when re-running an existing statement")
		timeout    = flag.Duration("timeout", 5*time.Minute, "overall deadline")
	)
	flag.Parse()

	_ = godotenv.Load()

	log := logger.New()

	if *userID == "" {
		log.Fatal().Msg("Error: -user is required")
	}
	if (*filePath == "") == (*gcsURI == "") {
		log.Fatal().Msg("Error: exactly one of -file or -gcs-uri is required")
	}
	if *gcsURI != "" && *documentID == "" {
		log.Fatal().Msg("Error: -document is required with -gcs-uri")
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()
	ctx = logger.WithContext(ctx, log)

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

	state := &pipeline.PipelineState{
		UserID:     *userID,
		DocumentID: *documentID,
		BatchID:    uuid.NewString(),
		GCSURI:     *gcsURI,
	}

	if *filePath != "" {
		uri, docID, err := uploadStatement(ctx, store, docStore, *userID, *filePath)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to upload statement")
		}
		state.DocumentID = docID
		state.GCSURI = uri
		log.Info().Str("document_id", docID).Str("gcs_uri", uri).Msg("Statement uploaded")
	}

	ingestor := pipeline.NewIngestor(pipeline.Deps{
		Fetcher:   docStore,
		Extractor: extractor,
		Ledger:    store,
		Documents: store,
		Runs:      store,
		Profiles:  store,
	})

	if err := ingestor.Ingest(ctx, state); err != nil {
		log.Fatal().Err(err).Msg("Ingestion failed")
	}

	fmt.Printf("Ingestion completed: %d new, %d duplicates, %d dropped in batch\n",
		state.Dedupe.NewCount, state.Dedupe.DuplicateCount, state.Dedupe.IntraBatchDropped)
}

// uploadStatement reads a local statement text file, stores it in GCS
// and records the document row. Returns the GCS URI and document ID.
// Unlike the API it does not short-circuit on checksum; a deliberate
// CLI re-ingest of the same file is allowed.
func uploadStatement(ctx context.Context, store *infra.Store, docStore docstore.DocumentStore, userID, path string) (string, string, error) {
	text, err := os.ReadFile(path)
	if err != nil {
		return "", "", fmt.Errorf("uploadStatement: reading %s: %w", path, err)
	}

	documentID := uuid.NewString()
	uri, err := docStore.PutStatement(ctx, userID, documentID, text)
	if err != nil {
		return "", "", fmt.Errorf("uploadStatement: storing text: %w", err)
	}

	row := &infra.DocumentRow{
		DocumentID:     documentID,
		UserID:         userID,
		GCSURI:         uri,
		ChecksumSHA256: docstore.Checksum(text),
		StatementKind:  pipeline.DefaultStatementKind,
		Status:         infra.DocumentStatusPending,
		UploadTS:       time.Now().UTC(),
	}
	if err := store.InsertDocument(ctx, row); err != nil {
		return "", "", fmt.Errorf("uploadStatement: inserting document row: %w", err)
	}
	return uri, documentID, nil
}
