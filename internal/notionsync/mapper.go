package notionsync

import (
	"fmt"
	"strings"

	"github.com/jomei/notionapi"

	"github.com/cardspark/spendmatch/internal/domain"
)

// SnapshotToNotionProperties converts a recommendation snapshot to the
// properties of the Recommendations database.
func SnapshotToNotionProperties(s *domain.RecommendationSnapshot) notionapi.Properties {
	props := notionapi.Properties{
		"Snapshot ID": notionapi.TitleProperty{
			Title: []notionapi.RichText{
				{
					Type: notionapi.ObjectTypeText,
					Text: &notionapi.Text{
						Content: s.SnapshotID,
					},
				},
			},
		},
		"User": notionapi.RichTextProperty{
			RichText: []notionapi.RichText{
				{
					Type: notionapi.ObjectTypeText,
					Text: &notionapi.Text{
						Content: s.UserID,
					},
				},
			},
		},
		"Confidence": notionapi.SelectProperty{
			Select: notionapi.Option{
				Name: string(s.Confidence),
			},
		},
		"Data Source": notionapi.SelectProperty{
			Select: notionapi.Option{
				Name: string(s.DataSource),
			},
		},
		"Enriched": notionapi.CheckboxProperty{
			Checkbox: s.Enriched,
		},
		"Generated At": notionapi.DateProperty{
			Date: &notionapi.DateObject{
				Start: func() *notionapi.Date {
					d := notionapi.Date(s.GeneratedAt)
					return &d
				}(),
			},
		},
	}

	if len(s.Cards) > 0 {
		props["Top Card"] = notionapi.RichTextProperty{
			RichText: []notionapi.RichText{
				{
					Type: notionapi.ObjectTypeText,
					Text: &notionapi.Text{
						Content: fmt.Sprintf("%s (%s)", s.Cards[0].Name, s.Cards[0].Issuer),
					},
				},
			},
		}
		props["Top Score"] = notionapi.NumberProperty{
			Number: s.Cards[0].Score,
		}
		props["Cards"] = notionapi.RichTextProperty{
			RichText: []notionapi.RichText{
				{
					Type: notionapi.ObjectTypeText,
					Text: &notionapi.Text{
						Content: cardsSummary(s.Cards),
					},
				},
			},
		}
	}

	return props
}

// cardsSummary renders the ranked list as one line per card, capped so
// the property stays within Notion's rich text limits.
func cardsSummary(cards []domain.RecommendedCard) string {
	var b strings.Builder
	for i, c := range cards {
		fmt.Fprintf(&b, "%d. %s (%.1f): %s\n", i+1, c.Name, c.Score, c.Reason)
	}
	summary := b.String()
	const maxLen = 1900
	if len(summary) > maxLen {
		summary = summary[:maxLen]
	}
	return strings.TrimRight(summary, "\n")
}
