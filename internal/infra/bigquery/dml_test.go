package bigquery

import (
	"strings"
	"testing"
	"time"

	"cloud.google.com/go/civil"

	"github.com/cardspark/spendmatch/internal/domain"
)

func testEntry(id, hash, date string) *domain.LedgerEntry {
	return &domain.LedgerEntry{
		TransactionID:   id,
		TransactionHash: hash,
		UserID:          "u1",
		BatchID:         "b1",
		PostedDate:      date,
		Merchant:        "swiggy",
		AmountMinor:     45000,
		Direction:       domain.DirectionDebit,
		Category:        domain.CategoryDining,
		OccurrenceCount: 1,
		FirstSeenAt:     time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC),
	}
}

// Ledger and document rows get DML-updated after insert (occurrence
// counters, status transitions), so they must be written with DML
// statements, never the streaming inserter.
func TestInsertEntriesQuery(t *testing.T) {
	entries := []*domain.LedgerEntry{
		testEntry("t1", "h1", "2025-03-01"),
		testEntry("t2", "h2", "2025-03-02"),
	}

	sql, params, err := insertEntriesQuery("spend.transactions", entries)
	if err != nil {
		t.Fatalf("insertEntriesQuery: %v", err)
	}

	if !strings.HasPrefix(strings.TrimSpace(sql), "INSERT spend.transactions") {
		t.Errorf("sql does not start with INSERT: %s", sql)
	}
	if got := strings.Count(sql, "(@transaction_id_"); got != len(entries) {
		t.Errorf("value tuples = %d, want %d", got, len(entries))
	}
	if got, want := len(params), len(entries)*11; got != want {
		t.Errorf("params = %d, want %d", got, want)
	}

	byName := make(map[string]interface{}, len(params))
	for _, p := range params {
		if !strings.Contains(sql, "@"+p.Name) {
			t.Errorf("param %q not referenced in sql", p.Name)
		}
		byName[p.Name] = p.Value
	}
	if byName["transaction_hash_1"] != "h2" {
		t.Errorf("transaction_hash_1 = %v, want h2", byName["transaction_hash_1"])
	}
	posted, ok := byName["posted_date_0"].(civil.Date)
	if !ok {
		t.Fatalf("posted_date_0 is %T, want civil.Date", byName["posted_date_0"])
	}
	if posted.String() != "2025-03-01" {
		t.Errorf("posted_date_0 = %s, want 2025-03-01", posted)
	}
}

func TestInsertEntriesQueryBadDate(t *testing.T) {
	entries := []*domain.LedgerEntry{testEntry("t1", "h1", "01/03/2025")}

	if _, _, err := insertEntriesQuery("spend.transactions", entries); err == nil {
		t.Fatal("expected error for non-ISO posted date, got nil")
	}
}

func TestInsertDocumentQuery(t *testing.T) {
	row := &DocumentRow{
		DocumentID:     "doc-1",
		UserID:         "u1",
		GCSURI:         "gs://spendmatch-statements/statements/u1/doc-1.txt",
		ChecksumSHA256: "abc123",
		StatementKind:  "BANK_STATEMENT",
		Status:         DocumentStatusPending,
		UploadTS:       time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC),
	}

	sql, params := insertDocumentQuery("spend.statement_documents", row)

	if !strings.Contains(sql, "INSERT spend.statement_documents") {
		t.Errorf("sql does not insert into statement_documents: %s", sql)
	}
	// processed_ts is set by MarkDocumentStatus; a fresh row leaves it
	// NULL.
	if strings.Contains(sql, "processed_ts") {
		t.Errorf("sql should not set processed_ts on insert: %s", sql)
	}

	byName := make(map[string]interface{}, len(params))
	for _, p := range params {
		if !strings.Contains(sql, "@"+p.Name) {
			t.Errorf("param %q not referenced in sql", p.Name)
		}
		byName[p.Name] = p.Value
	}
	if byName["document_id"] != "doc-1" {
		t.Errorf("document_id = %v, want doc-1", byName["document_id"])
	}
	if byName["status"] != DocumentStatusPending {
		t.Errorf("status = %v, want %s", byName["status"], DocumentStatusPending)
	}
}
