package bigquery

import (
	"context"
	"fmt"

	"google.golang.org/api/iterator"

	"github.com/cardspark/spendmatch/internal/domain"
)

const cardProductsTable = "card_products"

// ListProducts reads every active card in the catalog. The catalog is
// small and changes rarely, so there is no pagination.
func (s *Store) ListProducts(ctx context.Context) ([]*domain.CandidateProduct, error) {
	q := s.client.Query(fmt.Sprintf(`
		SELECT product_id, name, issuer, annual_fee, network, reward_type,
		       earn_rates, reward_caps, lounge_visits_per_year,
		       forex_markup_pct, active
		FROM %s
		WHERE active
		ORDER BY product_id
	`, s.table(cardProductsTable)))

	it, err := q.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("ListProducts: query read: %w", err)
	}
	var products []*domain.CandidateProduct
	for {
		var row ProductRow
		err := it.Next(&row)
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("ListProducts: iter next: %w", err)
		}
		p, err := row.ToProduct()
		if err != nil {
			return nil, fmt.Errorf("ListProducts: %w", err)
		}
		products = append(products, p)
	}
	return products, nil
}
