package bigquery

import (
	"context"
	"fmt"

	"cloud.google.com/go/bigquery"
	"google.golang.org/api/iterator"

	"github.com/cardspark/spendmatch/internal/domain"
)

const snapshotsTable = "recommendation_snapshots"

// InsertSnapshot appends one immutable recommendation snapshot.
func (s *Store) InsertSnapshot(ctx context.Context, snapshot *domain.RecommendationSnapshot) error {
	row, err := SnapshotRowFromSnapshot(snapshot)
	if err != nil {
		return fmt.Errorf("InsertSnapshot: %w", err)
	}
	inserter := s.client.Dataset(s.dataset).Table(snapshotsTable).Inserter()
	if err := inserter.Put(ctx, row); err != nil {
		return fmt.Errorf("InsertSnapshot: put: %w", err)
	}
	return nil
}

// GetLatestSnapshot returns the most recent snapshot for a user, or
// nil when the user has never been scored.
func (s *Store) GetLatestSnapshot(ctx context.Context, userID string) (*domain.RecommendationSnapshot, error) {
	q := s.client.Query(fmt.Sprintf(`
		SELECT snapshot_id, user_id, generated_ts, confidence, data_source,
		       enriched, cards
		FROM %s
		WHERE user_id = @user_id
		ORDER BY generated_ts DESC
		LIMIT 1
	`, s.table(snapshotsTable)))
	q.Parameters = []bigquery.QueryParameter{
		{Name: "user_id", Value: userID},
	}

	it, err := q.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("GetLatestSnapshot: query read: %w", err)
	}
	var row SnapshotRow
	err = it.Next(&row)
	if err == iterator.Done {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("GetLatestSnapshot: iter next: %w", err)
	}
	snapshot, err := row.ToSnapshot()
	if err != nil {
		return nil, fmt.Errorf("GetLatestSnapshot: %w", err)
	}
	return snapshot, nil
}
