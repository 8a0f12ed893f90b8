// Package notionsync exports recommendation snapshots to a Notion
// database so the product team can review ranked results without
// querying BigQuery.
package notionsync

import (
	"context"
	"fmt"

	"github.com/jomei/notionapi"

	"github.com/cardspark/spendmatch/internal/domain"
	"github.com/cardspark/spendmatch/internal/logger"
)

// ExportSnapshot creates or updates the Notion page for one snapshot.
// The Snapshot ID title property is the idempotency key: re-exporting
// the same snapshot updates its page instead of duplicating it.
func ExportSnapshot(ctx context.Context, notionClient NotionService, notionDBID string, snapshot *domain.RecommendationSnapshot, dryRun bool) error {
	log := logger.FromContext(ctx)

	pageID, err := findSnapshotPage(ctx, notionClient, notionDBID, snapshot.SnapshotID)
	if err != nil {
		return fmt.Errorf("ExportSnapshot: %w", err)
	}

	props := SnapshotToNotionProperties(snapshot)

	if dryRun {
		action := "create"
		if pageID != "" {
			action = "update"
		}
		log.Info().
			Str("snapshot_id", snapshot.SnapshotID).
			Str("action", action).
			Msg("[DRY RUN] Would export snapshot to Notion")
		return nil
	}

	if pageID != "" {
		if _, err := notionClient.UpdatePage(ctx, pageID, props); err != nil {
			return fmt.Errorf("ExportSnapshot: update %s: %w", snapshot.SnapshotID, err)
		}
		log.Info().
			Str("snapshot_id", snapshot.SnapshotID).
			Str("page_id", pageID).
			Msg("Updated snapshot page in Notion")
		return nil
	}

	page, err := notionClient.CreatePage(ctx, notionDBID, props)
	if err != nil {
		return fmt.Errorf("ExportSnapshot: create %s: %w", snapshot.SnapshotID, err)
	}
	log.Info().
		Str("snapshot_id", snapshot.SnapshotID).
		Str("page_id", string(page.ID)).
		Msg("Created snapshot page in Notion")
	return nil
}

// ExportSnapshots exports a list of snapshots, continuing past
// individual failures and reporting the first error at the end.
func ExportSnapshots(ctx context.Context, notionClient NotionService, notionDBID string, snapshots []*domain.RecommendationSnapshot, dryRun bool) error {
	log := logger.FromContext(ctx)

	var firstErr error
	var exported int
	for _, s := range snapshots {
		if err := ExportSnapshot(ctx, notionClient, notionDBID, s, dryRun); err != nil {
			log.Warn().
				Err(err).
				Str("snapshot_id", s.SnapshotID).
				Msg("Failed to export snapshot")
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		exported++
	}

	log.Info().
		Int("exported", exported).
		Int("total", len(snapshots)).
		Bool("dry_run", dryRun).
		Msg("Snapshot export finished")
	return firstErr
}

// findSnapshotPage returns the page ID holding the given snapshot, or
// empty when the snapshot has never been exported.
func findSnapshotPage(ctx context.Context, notionClient NotionService, notionDBID, snapshotID string) (string, error) {
	resp, err := notionClient.QueryDatabase(ctx, notionDBID, &notionapi.DatabaseQueryRequest{
		Filter: notionapi.PropertyFilter{
			Property: "Snapshot ID",
			RichText: &notionapi.TextFilterCondition{
				Equals: snapshotID,
			},
		},
		PageSize: 1,
	})
	if err != nil {
		return "", fmt.Errorf("query snapshot page: %w", err)
	}
	if len(resp.Results) == 0 {
		return "", nil
	}
	return string(resp.Results[0].ID), nil
}
