package bigquery

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/bigquery"
	"google.golang.org/api/iterator"
)

const documentsTable = "statement_documents"

// InsertDocument records a newly uploaded statement document. DML
// rather than the streaming inserter: the pipeline marks the row
// PROCESSED or FAILED seconds after upload, and BigQuery rejects DML
// against rows still sitting in the streaming buffer.
func (s *Store) InsertDocument(ctx context.Context, row *DocumentRow) error {
	sql, params := insertDocumentQuery(s.table(documentsTable), row)
	q := s.client.Query(sql)
	q.Parameters = params
	if err := s.runDML(ctx, q); err != nil {
		return fmt.Errorf("InsertDocument: %w", err)
	}
	return nil
}

func insertDocumentQuery(table string, row *DocumentRow) (string, []bigquery.QueryParameter) {
	sql := fmt.Sprintf(`
		INSERT %s (
			document_id, user_id, gcs_uri, checksum_sha256,
			issuer, statement_kind, status, upload_ts
		)
		VALUES (
			@document_id, @user_id, @gcs_uri, @checksum_sha256,
			@issuer, @statement_kind, @status, @upload_ts
		)
	`, table)
	params := []bigquery.QueryParameter{
		{Name: "document_id", Value: row.DocumentID},
		{Name: "user_id", Value: row.UserID},
		{Name: "gcs_uri", Value: row.GCSURI},
		{Name: "checksum_sha256", Value: row.ChecksumSHA256},
		{Name: "issuer", Value: row.Issuer},
		{Name: "statement_kind", Value: row.StatementKind},
		{Name: "status", Value: row.Status},
		{Name: "upload_ts", Value: row.UploadTS},
	}
	return sql, params
}

// FindDocumentByChecksum returns the user's existing document with the
// given content checksum, or nil when the upload is new. Used to
// short-circuit re-uploads of the same statement before any model call.
func (s *Store) FindDocumentByChecksum(ctx context.Context, userID, checksum string) (*DocumentRow, error) {
	q := s.client.Query(fmt.Sprintf(`
		SELECT document_id, user_id, gcs_uri, checksum_sha256, issuer,
		       statement_kind, status, upload_ts, processed_ts
		FROM %s
		WHERE user_id = @user_id
		  AND checksum_sha256 = @checksum
		ORDER BY upload_ts DESC
		LIMIT 1
	`, s.table(documentsTable)))
	q.Parameters = []bigquery.QueryParameter{
		{Name: "user_id", Value: userID},
		{Name: "checksum", Value: checksum},
	}

	it, err := q.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("FindDocumentByChecksum: query read: %w", err)
	}
	var row DocumentRow
	err = it.Next(&row)
	if err == iterator.Done {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("FindDocumentByChecksum: iter next: %w", err)
	}
	return &row, nil
}

// ListDocumentsByStatus returns documents in the given status, oldest
// upload first, capped at limit. The recovery worker uses it to requeue
// documents stranded in PENDING after a process restart.
func (s *Store) ListDocumentsByStatus(ctx context.Context, status string, limit int) ([]*DocumentRow, error) {
	q := s.client.Query(fmt.Sprintf(`
		SELECT document_id, user_id, gcs_uri, checksum_sha256, issuer,
		       statement_kind, status, upload_ts, processed_ts
		FROM %s
		WHERE status = @status
		ORDER BY upload_ts ASC
		LIMIT @limit
	`, s.table(documentsTable)))
	q.Parameters = []bigquery.QueryParameter{
		{Name: "status", Value: status},
		{Name: "limit", Value: int64(limit)},
	}

	it, err := q.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("ListDocumentsByStatus: query read: %w", err)
	}
	var rows []*DocumentRow
	for {
		var row DocumentRow
		err := it.Next(&row)
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("ListDocumentsByStatus: iter next: %w", err)
		}
		rows = append(rows, &row)
	}
	return rows, nil
}

// MarkDocumentStatus moves a document to PROCESSED or FAILED and stamps
// the processing time.
func (s *Store) MarkDocumentStatus(ctx context.Context, documentID, status string) error {
	q := s.client.Query(fmt.Sprintf(`
		UPDATE %s
		SET status = @status, processed_ts = @processed_ts
		WHERE document_id = @document_id
	`, s.table(documentsTable)))
	q.Parameters = []bigquery.QueryParameter{
		{Name: "document_id", Value: documentID},
		{Name: "status", Value: status},
		{Name: "processed_ts", Value: time.Now().UTC()},
	}

	if err := s.runDML(ctx, q); err != nil {
		return fmt.Errorf("MarkDocumentStatus: %w", err)
	}
	return nil
}
