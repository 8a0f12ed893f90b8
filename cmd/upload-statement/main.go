// Uploads a local statement text file for a user without running the
// pipeline. The document row lands in PENDING, where the recovery
// worker picks it up. Re-uploads of identical content are rejected
// unless the previous attempt failed.
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
	infra "github.com/cardspark/spendmatch/internal/infra/bigquery"
	"github.com/cardspark/spendmatch/internal/logger"
	"github.com/cardspark/spendmatch/internal/pipeline"
)

func main() {
	var (
		userID   = flag.String("user", "", "user ID to upload for (required)")
		filePath = flag.String("file", "", "path to local statement text file (required)")
		kind     = flag.String("kind", pipeline.DefaultStatementKind, "statement kind")
	)
	flag.Parse()

	_ = godotenv.Load()

	log := logger.New()

	if *userID == "" || *filePath == "" {
		log.Fatal().Msg("Usage: upload-statement -user USER_ID -file /path/to/statement.txt [-kind KIND]")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()
	ctx = logger.WithContext(ctx, log)

	text, err := os.ReadFile(*filePath)
	if err != nil {
		log.Fatal().Err(err).Str("file", *filePath).Msg("Failed to read statement file")
	}

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

	sum := docstore.Checksum(text)
	existing, err := store.FindDocumentByChecksum(ctx, *userID, sum)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to check for existing document")
	}
	if existing != nil && existing.Status != infra.DocumentStatusFailed {
		fmt.Printf("Already uploaded as document %s (status %s)\n", existing.DocumentID, existing.Status)
		return
	}

	documentID := uuid.NewString()
	uri, err := docStore.PutStatement(ctx, *userID, documentID, text)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to store statement text")
	}

	row := &infra.DocumentRow{
		DocumentID:     documentID,
		UserID:         *userID,
		GCSURI:         uri,
		ChecksumSHA256: sum,
		StatementKind:  *kind,
		Status:         infra.DocumentStatusPending,
		UploadTS:       time.Now().UTC(),
	}
	if err := store.InsertDocument(ctx, row); err != nil {
		log.Fatal().Err(err).Msg("Failed to insert document row")
	}

	fmt.Printf("Uploaded %s as document %s (%s)\n", *filePath, documentID, uri)
}
