package store

import (
	"context"
	"database/sql"

	"github.com/Psych401/inspired-intelligence-academy/internal/models"
)

// GetCustomerProfile retrieves the profile for a user.
// Returns (nil, nil) when no row exists.
func (s *Store) GetCustomerProfile(ctx context.Context, userID string) (*models.CustomerProfile, error) {
	var profile models.CustomerProfile
	err := s.db.GetContext(ctx, &profile,
		"SELECT * FROM customer_profiles WHERE user_id = $1", userID)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &profile, nil
}

// SaveStripeCustomerID persists a freshly created Stripe customer id for a
// user. If two concurrent first-time checkouts race, the first writer wins
// and both callers get the stored id back; the loser's processor-side
// customer record is simply never used.
func (s *Store) SaveStripeCustomerID(ctx context.Context, userID, email, stripeCustomerID string) (string, error) {
	var stored string
	err := s.db.GetContext(ctx, &stored, `
		INSERT INTO customer_profiles (user_id, email, stripe_customer_id)
		VALUES ($1, $2, $3)
		ON CONFLICT (user_id)
		DO UPDATE SET
			email = EXCLUDED.email,
			stripe_customer_id = CASE
				WHEN customer_profiles.stripe_customer_id = '' THEN EXCLUDED.stripe_customer_id
				ELSE customer_profiles.stripe_customer_id
			END,
			updated_at = NOW()
		RETURNING stripe_customer_id`,
		userID, email, stripeCustomerID)
	return stored, err
}
