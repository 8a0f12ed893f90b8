// Runs transaction extraction over a local statement text file and
// prints the raw result as JSON. Touches nothing but the model; useful
// for iterating on the prompt and the extraction contract against real
// statements without BigQuery or GCS in the loop.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/joho/godotenv"

	"github.com/cardspark/spendmatch/internal/extract"
	"github.com/cardspark/spendmatch/internal/logger"
)

func main() {
	var (
		filePath = flag.String("file", "", "path to local statement text file (required)")
		model    = flag.String("model", "", "model name override")
		kind     = flag.String("kind", "BANK_STATEMENT", "expected statement kind")
		timeout  = flag.Duration("timeout", 2*time.Minute, "extraction deadline")
	)
	flag.Parse()

	if *filePath == "" {
		log.Fatal("Usage: extract-debug -file /path/to/statement.txt [-model NAME] [-kind KIND]")
	}

	if err := run(*filePath, *model, *kind, *timeout); err != nil {
		log.Fatalf("error: %v", err)
	}
}

func run(filePath, model, kind string, timeout time.Duration) error {
	// Vertex vs Gemini Dev API is controlled via env vars:
	//  - GOOGLE_GENAI_USE_VERTEXAI=True -> Vertex AI
	//  - GOOGLE_CLOUD_PROJECT
	//  - GOOGLE_CLOUD_LOCATION
	_ = godotenv.Load()

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	ctx = logger.WithContext(ctx, logger.New())

	text, err := os.ReadFile(filePath)
	if err != nil {
		return fmt.Errorf("reading %q: %w", filePath, err)
	}

	client, err := extract.NewClient(ctx, extract.Config{Model: model, Timeout: timeout})
	if err != nil {
		return fmt.Errorf("creating extraction client: %w", err)
	}

	result, err := client.ExtractTransactions(ctx, extract.StatementDocument{
		UserID:  "debug",
		BatchID: "debug",
		Text:    string(text),
		Kind:    kind,
	})
	if err != nil {
		return fmt.Errorf("extraction: %w", err)
	}

	out, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling result: %w", err)
	}
	fmt.Println(string(out))
	return nil
}
