package store

import (
	"context"
	"database/sql"

	"github.com/Psych401/inspired-intelligence-academy/internal/models"
)

// CreatePayment inserts a new payment record, one per checkout session
func (s *Store) CreatePayment(ctx context.Context, payment *models.Payment) error {
	query := `
		INSERT INTO payments
			(user_id, stripe_checkout_session_id, stripe_customer_id, amount,
			 currency, status, product_ids, metadata)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id, created_at, updated_at`

	return s.db.GetContext(ctx, payment, query,
		payment.UserID, payment.StripeCheckoutSessionID, payment.StripeCustomerID,
		payment.Amount, payment.Currency, payment.Status, payment.ProductIDs,
		payment.Metadata)
}

// GetPaymentByCheckoutSessionID retrieves the payment for a checkout session.
// Returns (nil, nil) when no row exists.
func (s *Store) GetPaymentByCheckoutSessionID(ctx context.Context, sessionID string) (*models.Payment, error) {
	var payment models.Payment
	err := s.db.GetContext(ctx, &payment,
		"SELECT * FROM payments WHERE stripe_checkout_session_id = $1", sessionID)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &payment, nil
}

// GetPaymentByIntentID retrieves the payment for a payment intent.
// Returns (nil, nil) when no row exists.
func (s *Store) GetPaymentByIntentID(ctx context.Context, intentID string) (*models.Payment, error) {
	var payment models.Payment
	err := s.db.GetContext(ctx, &payment,
		"SELECT * FROM payments WHERE stripe_payment_intent_id = $1", intentID)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &payment, nil
}

// UpdatePaymentStatus updates status and records the payment intent id once
// it is known
func (s *Store) UpdatePaymentStatus(ctx context.Context, paymentID int64, status, intentID string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE payments
		SET status = $1,
		    stripe_payment_intent_id = COALESCE(NULLIF($2, ''), stripe_payment_intent_id),
		    updated_at = NOW()
		WHERE id = $3`,
		status, intentID, paymentID)
	return err
}

// SetPaymentPurchaseID back-links the first purchase created for a session
func (s *Store) SetPaymentPurchaseID(ctx context.Context, paymentID, purchaseID int64) error {
	_, err := s.db.ExecContext(ctx,
		"UPDATE payments SET purchase_id = $1, updated_at = NOW() WHERE id = $2",
		purchaseID, paymentID)
	return err
}
