package store

import (
	"context"
	"database/sql"

	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"

	"github.com/Psych401/inspired-intelligence-academy/internal/models"
)

// GetProductByStripeID retrieves a catalog row by Stripe product id,
// active or not. Returns (nil, nil) when no row exists.
func (s *Store) GetProductByStripeID(ctx context.Context, stripeProductID string) (*models.Product, error) {
	var product models.Product
	err := s.db.GetContext(ctx, &product,
		"SELECT * FROM products WHERE stripe_product_id = $1", stripeProductID)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &product, nil
}

// GetActiveProductsByStripeIDs retrieves the active catalog rows matching the
// given Stripe product ids. Missing or inactive ids are simply absent from
// the result; callers enforce their own completeness requirements.
func (s *Store) GetActiveProductsByStripeIDs(ctx context.Context, ids []string) ([]models.Product, error) {
	if len(ids) == 0 {
		return []models.Product{}, nil
	}

	query, args, err := sqlx.In(
		"SELECT * FROM products WHERE active = TRUE AND stripe_product_id IN (?)", ids)
	if err != nil {
		return nil, err
	}
	query = s.db.Rebind(query)

	var products []models.Product
	err = s.db.SelectContext(ctx, &products, query, args...)
	return products, err
}

// GetActiveProducts retrieves the full active catalog
func (s *Store) GetActiveProducts(ctx context.Context) ([]models.Product, error) {
	var products []models.Product
	err := s.db.SelectContext(ctx, &products,
		"SELECT * FROM products WHERE active = TRUE ORDER BY name")
	return products, err
}

// UpsertProduct inserts or updates a catalog row keyed by the Stripe product
// id. Safe to run concurrently with other upserts for the same product.
func (s *Store) UpsertProduct(ctx context.Context, p *models.Product) error {
	query := `
		INSERT INTO products
			(stripe_product_id, stripe_price_id, name, description, unit_price,
			 currency, category, image_url, active, metadata)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (stripe_product_id)
		DO UPDATE SET
			stripe_price_id = EXCLUDED.stripe_price_id,
			name = EXCLUDED.name,
			description = EXCLUDED.description,
			unit_price = EXCLUDED.unit_price,
			currency = EXCLUDED.currency,
			category = EXCLUDED.category,
			image_url = EXCLUDED.image_url,
			active = EXCLUDED.active,
			metadata = EXCLUDED.metadata,
			updated_at = NOW()
		RETURNING id, created_at, updated_at`

	return s.db.GetContext(ctx, p, query,
		p.StripeProductID, p.StripePriceID, p.Name, p.Description, p.UnitPrice,
		p.Currency, p.Category, p.ImageURL, p.Active, p.Metadata)
}

// UpdateProductPrice updates price and currency on the row matching the
// Stripe product id
func (s *Store) UpdateProductPrice(ctx context.Context, stripeProductID string, unitPrice decimal.Decimal, currency string) error {
	_, err := s.db.ExecContext(ctx,
		"UPDATE products SET unit_price = $1, currency = $2, updated_at = NOW() WHERE stripe_product_id = $3",
		unitPrice, currency, stripeProductID)
	return err
}

// DeactivateProduct soft-deletes a catalog row. Rows are never hard-deleted
// so historical purchases keep resolving their snapshots.
func (s *Store) DeactivateProduct(ctx context.Context, stripeProductID string) error {
	_, err := s.db.ExecContext(ctx,
		"UPDATE products SET active = FALSE, updated_at = NOW() WHERE stripe_product_id = $1",
		stripeProductID)
	return err
}
