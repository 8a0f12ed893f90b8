// Exports the latest recommendation snapshot of each given user to a
// Notion database, creating or updating one page per snapshot.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/cardspark/spendmatch/internal/domain"
	infra "github.com/cardspark/spendmatch/internal/infra/bigquery"
	"github.com/cardspark/spendmatch/internal/logger"
	"github.com/cardspark/spendmatch/internal/notionsync"
)

func main() {
	var (
		users       = flag.String("users", "", "comma-separated user IDs to export (required)")
		notionToken = flag.String("notion-token", "", "Notion API token (defaults to NOTION_TOKEN)")
		notionDBID  = flag.String("notion-db-id", os.Getenv("NOTION_DB_ID"), "Notion database ID (defaults to NOTION_DB_ID)")
		dryRun      = flag.Bool("dry-run", false, "preview changes without writing to Notion")
	)
	flag.Parse()

	_ = godotenv.Load()

	log := logger.New()

	if *users == "" {
		log.Fatal().Msg("Error: -users is required")
	}
	if *notionDBID == "" {
		log.Fatal().Msg("Error: -notion-db-id (or NOTION_DB_ID) is required")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()
	ctx = logger.WithContext(ctx, log)

	store, err := infra.NewStore(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create BigQuery store")
	}
	defer store.Close()

	var notionClient *notionsync.NotionClient
	if *notionToken != "" {
		notionClient = notionsync.NewNotionClient(*notionToken)
	} else {
		notionClient, err = notionsync.NewNotionClientFromEnv()
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to create Notion client")
		}
	}

	var snapshots []*domain.RecommendationSnapshot
	for _, userID := range strings.Split(*users, ",") {
		userID = strings.TrimSpace(userID)
		if userID == "" {
			continue
		}
		snapshot, err := store.GetLatestSnapshot(ctx, userID)
		if err != nil {
			log.Fatal().Err(err).Str("user_id", userID).Msg("Failed to load latest snapshot")
		}
		if snapshot == nil {
			log.Warn().Str("user_id", userID).Msg("No snapshot for user, skipping")
			continue
		}
		snapshots = append(snapshots, snapshot)
	}

	log.Info().
		Int("snapshots", len(snapshots)).
		Bool("dry_run", *dryRun).
		Msg("Starting Notion export")

	if err := notionsync.ExportSnapshots(ctx, notionClient, *notionDBID, snapshots, *dryRun); err != nil {
		log.Fatal().Err(err).Msg("Export failed")
	}

	fmt.Printf("Exported %d snapshot(s).\n", len(snapshots))
}
