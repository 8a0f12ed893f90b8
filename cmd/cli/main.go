// SpendMatch operator CLI. Read-only inspection of a user's ledger,
// profile and snapshots, plus an ad-hoc recommendation run that prints
// the ranking without persisting a snapshot.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	infra "github.com/cardspark/spendmatch/internal/infra/bigquery"
	"github.com/cardspark/spendmatch/internal/logger"
	"github.com/cardspark/spendmatch/internal/recommend"
	"github.com/cardspark/spendmatch/internal/scoring"
)

func main() {
	_ = godotenv.Load()
	log := logger.New()

	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "ledger":
		runLedger(log)
	case "profile":
		runProfile(log)
	case "snapshot":
		runSnapshot(log)
	case "recommend":
		runRecommend(log)
	case "products":
		runProducts(log)
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println("SpendMatch CLI")
	fmt.Println("\nUsage:")
	fmt.Println("  cli <command> [options]")
	fmt.Println("\nCommands:")
	fmt.Println("  ledger     List a user's ledger entries")
	fmt.Println("  profile    Show a user's feature profile")
	fmt.Println("  snapshot   Show a user's latest recommendation snapshot")
	fmt.Println("  recommend  Score the catalog for a user without persisting")
	fmt.Println("  products   List active card products")
	fmt.Println("  help       Show this help message")
	fmt.Println("\nRun 'cli <command> -h' for more information on a command.")
}

func newStore(log zerolog.Logger) (*infra.Store, context.Context, context.CancelFunc) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	ctx = logger.WithContext(ctx, log)

	store, err := infra.NewStore(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create BigQuery store")
	}
	return store, ctx, cancel
}

func runLedger(log zerolog.Logger) {
	fs := flag.NewFlagSet("ledger", flag.ExitOnError)
	userID := fs.String("user", "", "user ID")
	asJSON := fs.Bool("json", false, "print entries as JSON")
	fs.Parse(os.Args[2:])

	if *userID == "" {
		log.Fatal().Msg("Error: -user is required")
	}

	store, ctx, cancel := newStore(log)
	defer cancel()
	defer store.Close()

	entries, err := store.ListEntries(ctx, *userID)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to list ledger entries")
	}

	if *asJSON {
		printJSON(log, entries)
		return
	}
	for _, e := range entries {
		fmt.Printf("%s  %-10s %-40s %10.2f  x%d\n",
			e.PostedDate, e.Category, e.Merchant, e.Amount(), e.OccurrenceCount)
	}
	fmt.Printf("%d entries\n", len(entries))
}

func runProfile(log zerolog.Logger) {
	fs := flag.NewFlagSet("profile", flag.ExitOnError)
	userID := fs.String("user", "", "user ID")
	fs.Parse(os.Args[2:])

	if *userID == "" {
		log.Fatal().Msg("Error: -user is required")
	}

	store, ctx, cancel := newStore(log)
	defer cancel()
	defer store.Close()

	profile, err := store.GetProfile(ctx, *userID)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to get profile")
	}
	if profile == nil {
		fmt.Println("No profile for user.")
		return
	}
	printJSON(log, profile)
}

func runSnapshot(log zerolog.Logger) {
	fs := flag.NewFlagSet("snapshot", flag.ExitOnError)
	userID := fs.String("user", "", "user ID")
	fs.Parse(os.Args[2:])

	if *userID == "" {
		log.Fatal().Msg("Error: -user is required")
	}

	store, ctx, cancel := newStore(log)
	defer cancel()
	defer store.Close()

	snapshot, err := store.GetLatestSnapshot(ctx, *userID)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to get latest snapshot")
	}
	if snapshot == nil {
		fmt.Println("No snapshot for user.")
		return
	}
	printJSON(log, snapshot)
}

func runRecommend(log zerolog.Logger) {
	fs := flag.NewFlagSet("recommend", flag.ExitOnError)
	userID := fs.String("user", "", "user ID")
	topK := fs.Int("top", recommend.DefaultTopK, "number of cards to rank")
	fs.Parse(os.Args[2:])

	if *userID == "" {
		log.Fatal().Msg("Error: -user is required")
	}

	store, ctx, cancel := newStore(log)
	defer cancel()
	defer store.Close()

	profile, err := store.GetProfile(ctx, *userID)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to get profile")
	}
	if profile == nil {
		log.Fatal().Str("user_id", *userID).Msg("No profile for user")
	}

	// No enricher: the CLI prints the deterministic fallback copy.
	composer := recommend.NewComposer(store, nil, *topK)
	snapshot, err := composer.Compose(ctx, profile, scoring.Weights{})
	if err != nil {
		log.Fatal().Err(err).Msg("Recommendation failed")
	}

	fmt.Printf("Confidence: %s  (source %s)\n\n", snapshot.Confidence, snapshot.DataSource)
	for i, card := range snapshot.Cards {
		fmt.Printf("%d. %s / %s  score %.1f\n   %s\n", i+1, card.Issuer, card.Name, card.Score, card.Reason)
	}
}

func runProducts(log zerolog.Logger) {
	fs := flag.NewFlagSet("products", flag.ExitOnError)
	asJSON := fs.Bool("json", false, "print products as JSON")
	fs.Parse(os.Args[2:])

	store, ctx, cancel := newStore(log)
	defer cancel()
	defer store.Close()

	products, err := store.ListProducts(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to list products")
	}

	if *asJSON {
		printJSON(log, products)
		return
	}
	for _, p := range products {
		fmt.Printf("%-24s %-30s %-10s fee %.0f\n", p.ID, p.Name, p.Issuer, p.Fee)
	}
	fmt.Printf("%d products\n", len(products))
}

func printJSON(log zerolog.Logger, v interface{}) {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to marshal output")
	}
	fmt.Println(string(out))
}
