package bigquery

import (
	"context"
	"fmt"

	"cloud.google.com/go/bigquery"
	"google.golang.org/api/iterator"

	"github.com/cardspark/spendmatch/internal/domain"
)

const featureProfilesTable = "feature_profiles"

// UpsertProfile overwrites the user's feature profile. A MERGE keeps
// exactly one row per user without a separate existence check.
func (s *Store) UpsertProfile(ctx context.Context, profile *domain.FeatureProfile) error {
	row, err := ProfileRowFromProfile(profile)
	if err != nil {
		return fmt.Errorf("UpsertProfile: %w", err)
	}

	q := s.client.Query(fmt.Sprintf(`
		MERGE %s t
		USING (SELECT @user_id AS user_id) s
		ON t.user_id = s.user_id
		WHEN MATCHED THEN UPDATE SET
			data_source = @data_source,
			category_shares = @category_shares,
			monthly_spend_estimate = @monthly_spend_estimate,
			fee_tolerance = @fee_tolerance,
			reward_preference = @reward_preference,
			travel_frequency = @travel_frequency,
			lounge_importance = @lounge_importance,
			city_tier = @city_tier,
			income_band = @income_band,
			months_of_data = @months_of_data,
			transaction_count = @transaction_count,
			positive_cash_flow = @positive_cash_flow,
			computed_ts = @computed_ts
		WHEN NOT MATCHED THEN INSERT (
			user_id, data_source, category_shares, monthly_spend_estimate,
			fee_tolerance, reward_preference, travel_frequency,
			lounge_importance, city_tier, income_band, months_of_data,
			transaction_count, positive_cash_flow, computed_ts
		) VALUES (
			@user_id, @data_source, @category_shares, @monthly_spend_estimate,
			@fee_tolerance, @reward_preference, @travel_frequency,
			@lounge_importance, @city_tier, @income_band, @months_of_data,
			@transaction_count, @positive_cash_flow, @computed_ts
		)
	`, s.table(featureProfilesTable)))
	q.Parameters = []bigquery.QueryParameter{
		{Name: "user_id", Value: row.UserID},
		{Name: "data_source", Value: row.DataSource},
		{Name: "category_shares", Value: row.CategorySharesJSON},
		{Name: "monthly_spend_estimate", Value: row.MonthlySpend},
		{Name: "fee_tolerance", Value: row.FeeTolerance},
		{Name: "reward_preference", Value: row.RewardPreference},
		{Name: "travel_frequency", Value: row.TravelFrequency},
		{Name: "lounge_importance", Value: row.LoungeImportance},
		{Name: "city_tier", Value: row.CityTier},
		{Name: "income_band", Value: row.IncomeBand},
		{Name: "months_of_data", Value: row.MonthsOfData},
		{Name: "transaction_count", Value: row.TransactionCount},
		{Name: "positive_cash_flow", Value: row.PositiveCashFlow},
		{Name: "computed_ts", Value: row.ComputedTS},
	}

	if err := s.runDML(ctx, q); err != nil {
		return fmt.Errorf("UpsertProfile: %w", err)
	}
	return nil
}

// GetProfile returns the user's profile, or nil when none has been
// computed yet.
func (s *Store) GetProfile(ctx context.Context, userID string) (*domain.FeatureProfile, error) {
	q := s.client.Query(fmt.Sprintf(`
		SELECT user_id, data_source, category_shares, monthly_spend_estimate,
		       fee_tolerance, reward_preference, travel_frequency,
		       lounge_importance, city_tier, income_band, months_of_data,
		       transaction_count, positive_cash_flow, computed_ts
		FROM %s
		WHERE user_id = @user_id
		LIMIT 1
	`, s.table(featureProfilesTable)))
	q.Parameters = []bigquery.QueryParameter{
		{Name: "user_id", Value: userID},
	}

	it, err := q.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("GetProfile: query read: %w", err)
	}
	var row ProfileRow
	err = it.Next(&row)
	if err == iterator.Done {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("GetProfile: iter next: %w", err)
	}
	profile, err := row.ToProfile()
	if err != nil {
		return nil, fmt.Errorf("GetProfile: %w", err)
	}
	return profile, nil
}
