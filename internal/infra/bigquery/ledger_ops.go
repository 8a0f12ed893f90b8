package bigquery

import (
	"context"
	"fmt"
	"strings"

	"cloud.google.com/go/bigquery"
	"google.golang.org/api/iterator"

	"github.com/cardspark/spendmatch/internal/domain"
)

const transactionsTable = "transactions"

// LookupHashes returns the subset of the given hashes already persisted
// for this user, as a set. One bulk query per dedup run regardless of
// batch size.
func (s *Store) LookupHashes(ctx context.Context, userID string, hashes []string) (map[string]bool, error) {
	found := make(map[string]bool, len(hashes))
	if len(hashes) == 0 {
		return found, nil
	}

	q := s.client.Query(fmt.Sprintf(`
		SELECT DISTINCT transaction_hash
		FROM %s
		WHERE user_id = @user_id
		  AND transaction_hash IN UNNEST(@hashes)
	`, s.table(transactionsTable)))
	q.Parameters = []bigquery.QueryParameter{
		{Name: "user_id", Value: userID},
		{Name: "hashes", Value: hashes},
	}

	it, err := q.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("LookupHashes: query read: %w", err)
	}
	for {
		var row struct {
			TransactionHash string `bigquery:"transaction_hash"`
		}
		err := it.Next(&row)
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("LookupHashes: iter next: %w", err)
		}
		found[row.TransactionHash] = true
	}
	return found, nil
}

// InsertEntries bulk-inserts first-sighting rows. DML rather than the
// streaming inserter: a re-upload of the same statement increments the
// occurrence counter with an UPDATE, and BigQuery rejects DML against
// rows still sitting in the streaming buffer. Batches are one
// statement's worth of rows, so a single multi-row INSERT is fine.
func (s *Store) InsertEntries(ctx context.Context, entries []*domain.LedgerEntry) error {
	if len(entries) == 0 {
		return nil
	}
	sql, params, err := insertEntriesQuery(s.table(transactionsTable), entries)
	if err != nil {
		return fmt.Errorf("InsertEntries: %w", err)
	}
	q := s.client.Query(sql)
	q.Parameters = params
	if err := s.runDML(ctx, q); err != nil {
		return fmt.Errorf("InsertEntries: insert %d rows: %w", len(entries), err)
	}
	return nil
}

// insertEntriesQuery builds one multi-row DML INSERT with a numbered
// parameter set per row.
func insertEntriesQuery(table string, entries []*domain.LedgerEntry) (string, []bigquery.QueryParameter, error) {
	var sb strings.Builder
	fmt.Fprintf(&sb, `INSERT %s (
		transaction_id, transaction_hash, user_id, batch_id,
		posted_date, merchant, amount_minor, direction, category,
		occurrence_count, first_seen_ts
	)
	VALUES `, table)

	params := make([]bigquery.QueryParameter, 0, len(entries)*11)
	for i, e := range entries {
		row, err := LedgerRowFromEntry(e)
		if err != nil {
			return "", nil, err
		}
		if i > 0 {
			sb.WriteString(",\n\t")
		}
		fmt.Fprintf(&sb,
			"(@transaction_id_%d, @transaction_hash_%d, @user_id_%d, @batch_id_%d, @posted_date_%d, @merchant_%d, @amount_minor_%d, @direction_%d, @category_%d, @occurrence_count_%d, @first_seen_ts_%d)",
			i, i, i, i, i, i, i, i, i, i, i)
		params = append(params,
			bigquery.QueryParameter{Name: fmt.Sprintf("transaction_id_%d", i), Value: row.TransactionID},
			bigquery.QueryParameter{Name: fmt.Sprintf("transaction_hash_%d", i), Value: row.TransactionHash},
			bigquery.QueryParameter{Name: fmt.Sprintf("user_id_%d", i), Value: row.UserID},
			bigquery.QueryParameter{Name: fmt.Sprintf("batch_id_%d", i), Value: row.BatchID},
			bigquery.QueryParameter{Name: fmt.Sprintf("posted_date_%d", i), Value: row.PostedDate},
			bigquery.QueryParameter{Name: fmt.Sprintf("merchant_%d", i), Value: row.Merchant},
			bigquery.QueryParameter{Name: fmt.Sprintf("amount_minor_%d", i), Value: row.AmountMinor},
			bigquery.QueryParameter{Name: fmt.Sprintf("direction_%d", i), Value: row.Direction},
			bigquery.QueryParameter{Name: fmt.Sprintf("category_%d", i), Value: row.Category},
			bigquery.QueryParameter{Name: fmt.Sprintf("occurrence_count_%d", i), Value: row.OccurrenceCount},
			bigquery.QueryParameter{Name: fmt.Sprintf("first_seen_ts_%d", i), Value: row.FirstSeenTS},
		)
	}
	return sb.String(), params, nil
}

// IncrementOccurrences bumps the occurrence counter for rows that were
// re-seen in a later batch.
func (s *Store) IncrementOccurrences(ctx context.Context, userID string, hashes []string) error {
	if len(hashes) == 0 {
		return nil
	}
	q := s.client.Query(fmt.Sprintf(`
		UPDATE %s
		SET occurrence_count = occurrence_count + 1
		WHERE user_id = @user_id
		  AND transaction_hash IN UNNEST(@hashes)
	`, s.table(transactionsTable)))
	q.Parameters = []bigquery.QueryParameter{
		{Name: "user_id", Value: userID},
		{Name: "hashes", Value: hashes},
	}
	if err := s.runDML(ctx, q); err != nil {
		return fmt.Errorf("IncrementOccurrences: %w", err)
	}
	return nil
}

// ListEntries reads the full ledger for a user, ordered by posted date,
// for profile recomputation.
func (s *Store) ListEntries(ctx context.Context, userID string) ([]*domain.LedgerEntry, error) {
	q := s.client.Query(fmt.Sprintf(`
		SELECT transaction_id, transaction_hash, user_id, batch_id,
		       posted_date, merchant, amount_minor, direction, category,
		       occurrence_count, first_seen_ts
		FROM %s
		WHERE user_id = @user_id
		ORDER BY posted_date
	`, s.table(transactionsTable)))
	q.Parameters = []bigquery.QueryParameter{
		{Name: "user_id", Value: userID},
	}

	it, err := q.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("ListEntries: query read: %w", err)
	}
	var entries []*domain.LedgerEntry
	for {
		var row LedgerRow
		err := it.Next(&row)
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("ListEntries: iter next: %w", err)
		}
		entries = append(entries, row.ToEntry())
	}
	return entries, nil
}
