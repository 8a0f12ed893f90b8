package notionsync

import (
	"context"
	"testing"
	"time"

	"github.com/jomei/notionapi"

	"github.com/cardspark/spendmatch/internal/domain"
)

type mockNotionService struct {
	created  []notionapi.Properties
	updated  map[string]notionapi.Properties
	existing map[string]string // snapshot ID -> page ID
}

func newMockNotionService() *mockNotionService {
	return &mockNotionService{
		updated:  make(map[string]notionapi.Properties),
		existing: make(map[string]string),
	}
}

func (m *mockNotionService) CreatePage(ctx context.Context, databaseID string, properties notionapi.Properties) (*notionapi.Page, error) {
	m.created = append(m.created, properties)
	return &notionapi.Page{ID: "page-new"}, nil
}

func (m *mockNotionService) UpdatePage(ctx context.Context, pageID string, properties notionapi.Properties) (*notionapi.Page, error) {
	m.updated[pageID] = properties
	return &notionapi.Page{ID: notionapi.ObjectID(pageID)}, nil
}

func (m *mockNotionService) QueryDatabase(ctx context.Context, databaseID string, filter *notionapi.DatabaseQueryRequest) (*notionapi.DatabaseQueryResponse, error) {
	pf, ok := filter.Filter.(notionapi.PropertyFilter)
	if !ok || pf.RichText == nil {
		return &notionapi.DatabaseQueryResponse{}, nil
	}
	pageID, found := m.existing[pf.RichText.Equals]
	if !found {
		return &notionapi.DatabaseQueryResponse{}, nil
	}
	return &notionapi.DatabaseQueryResponse{
		Results: []notionapi.Page{{ID: notionapi.ObjectID(pageID)}},
	}, nil
}

func sampleSnapshot() *domain.RecommendationSnapshot {
	return &domain.RecommendationSnapshot{
		SnapshotID:  "snap-1",
		UserID:      "user-1",
		GeneratedAt: time.Date(2025, 2, 1, 12, 0, 0, 0, time.UTC),
		Confidence:  domain.ConfidenceHigh,
		DataSource:  domain.DataSourceStatement,
		Enriched:    true,
		Cards: []domain.RecommendedCard{
			{ProductID: "card-a", Name: "Dining Card", Issuer: "HDFC", Score: 57.3, Reason: "Strong dining rewards"},
			{ProductID: "card-b", Name: "Flat Card", Issuer: "ICICI", Score: 45.5, Reason: "No annual fee"},
		},
	}
}

func TestExportSnapshotCreates(t *testing.T) {
	svc := newMockNotionService()

	if err := ExportSnapshot(context.Background(), svc, "db-1", sampleSnapshot(), false); err != nil {
		t.Fatalf("export: %v", err)
	}
	if len(svc.created) != 1 {
		t.Fatalf("created %d pages, want 1", len(svc.created))
	}

	props := svc.created[0]
	title, ok := props["Snapshot ID"].(notionapi.TitleProperty)
	if !ok || len(title.Title) == 0 || title.Title[0].Text.Content != "snap-1" {
		t.Fatalf("bad title property: %+v", props["Snapshot ID"])
	}
	score, ok := props["Top Score"].(notionapi.NumberProperty)
	if !ok || score.Number != 57.3 {
		t.Fatalf("bad top score property: %+v", props["Top Score"])
	}
}

func TestExportSnapshotUpdatesExisting(t *testing.T) {
	svc := newMockNotionService()
	svc.existing["snap-1"] = "page-77"

	if err := ExportSnapshot(context.Background(), svc, "db-1", sampleSnapshot(), false); err != nil {
		t.Fatalf("export: %v", err)
	}
	if len(svc.created) != 0 {
		t.Fatal("existing snapshot should not create a new page")
	}
	if _, ok := svc.updated["page-77"]; !ok {
		t.Fatalf("expected update of page-77, got %v", svc.updated)
	}
}

func TestExportSnapshotDryRun(t *testing.T) {
	svc := newMockNotionService()

	if err := ExportSnapshot(context.Background(), svc, "db-1", sampleSnapshot(), true); err != nil {
		t.Fatalf("export: %v", err)
	}
	if len(svc.created) != 0 || len(svc.updated) != 0 {
		t.Fatal("dry run must not write to Notion")
	}
}

func TestCardsSummaryCapped(t *testing.T) {
	cards := make([]domain.RecommendedCard, 200)
	for i := range cards {
		cards[i] = domain.RecommendedCard{Name: "Some Very Long Card Name", Score: 50, Reason: "A reasonably long explanation of the ranking"}
	}
	if got := len(cardsSummary(cards)); got > 1900 {
		t.Fatalf("summary length %d exceeds cap", got)
	}
}
