package store

import (
	"context"
	"database/sql"

	"github.com/Psych401/inspired-intelligence-academy/internal/models"
)

// CreatePurchase inserts a completed purchase row
func (s *Store) CreatePurchase(ctx context.Context, purchase *models.Purchase) error {
	query := `
		INSERT INTO purchases
			(user_id, product_id, title, description, price, category,
			 image_url, stripe_checkout_session_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id, purchased_at`

	return s.db.GetContext(ctx, purchase, query,
		purchase.UserID, purchase.ProductID, purchase.Title, purchase.Description,
		purchase.Price, purchase.Category, purchase.ImageURL,
		purchase.StripeCheckoutSessionID)
}

// CreatePurchaseWithoutCategory inserts a purchase without the category
// column, for deployments whose schema predates it.
func (s *Store) CreatePurchaseWithoutCategory(ctx context.Context, purchase *models.Purchase) error {
	query := `
		INSERT INTO purchases
			(user_id, product_id, title, description, price, image_url,
			 stripe_checkout_session_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, purchased_at`

	return s.db.GetContext(ctx, purchase, query,
		purchase.UserID, purchase.ProductID, purchase.Title, purchase.Description,
		purchase.Price, purchase.ImageURL, purchase.StripeCheckoutSessionID)
}

// GetPurchase retrieves a purchase by its idempotency triple.
// Returns (nil, nil) when no row exists.
func (s *Store) GetPurchase(ctx context.Context, userID, productID, sessionID string) (*models.Purchase, error) {
	var purchase models.Purchase
	err := s.db.GetContext(ctx, &purchase, `
		SELECT * FROM purchases
		WHERE user_id = $1 AND product_id = $2 AND stripe_checkout_session_id = $3`,
		userID, productID, sessionID)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &purchase, nil
}

// GetPurchasesByUserID retrieves a user's purchase history, newest first
func (s *Store) GetPurchasesByUserID(ctx context.Context, userID string) ([]models.Purchase, error) {
	var purchases []models.Purchase
	err := s.db.SelectContext(ctx, &purchases,
		"SELECT * FROM purchases WHERE user_id = $1 ORDER BY purchased_at DESC", userID)
	return purchases, err
}
