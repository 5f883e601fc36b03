package models

import (
	"database/sql"
	"strings"
	"time"

	"github.com/jmoiron/sqlx/types"
	"github.com/shopspring/decimal"
)

// Product is a catalog row mirroring a Stripe product. Rows are never
// deleted, only marked inactive, so historical purchases keep resolving.
type Product struct {
	ID              int64           `db:"id" json:"id"`
	StripeProductID string          `db:"stripe_product_id" json:"stripe_product_id"`
	StripePriceID   string          `db:"stripe_price_id" json:"stripe_price_id"`
	Name            string          `db:"name" json:"name"`
	Description     string          `db:"description" json:"description"`
	UnitPrice       decimal.Decimal `db:"unit_price" json:"unit_price"`
	Currency        string          `db:"currency" json:"currency"`
	Category        string          `db:"category" json:"category"`
	ImageURL        string          `db:"image_url" json:"image_url"`
	Active          bool            `db:"active" json:"active"`
	Metadata        types.JSONText  `db:"metadata" json:"metadata,omitempty"`
	CreatedAt       time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time       `db:"updated_at" json:"updated_at"`
}

// Payment tracks one checkout session, exactly one row per session.
type Payment struct {
	ID                      int64           `db:"id" json:"id"`
	UserID                  string          `db:"user_id" json:"user_id"`
	PurchaseID              sql.NullInt64   `db:"purchase_id" json:"purchase_id,omitempty"`
	StripePaymentIntentID   sql.NullString  `db:"stripe_payment_intent_id" json:"stripe_payment_intent_id,omitempty"`
	StripeCheckoutSessionID string          `db:"stripe_checkout_session_id" json:"stripe_checkout_session_id"`
	StripeCustomerID        string          `db:"stripe_customer_id" json:"stripe_customer_id"`
	Amount                  decimal.Decimal `db:"amount" json:"amount"`
	Currency                string          `db:"currency" json:"currency"`
	Status                  string          `db:"status" json:"status"`
	ProductIDs              string          `db:"product_ids" json:"product_ids"`
	Metadata                types.JSONText  `db:"metadata" json:"metadata,omitempty"`
	CreatedAt               time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt               time.Time       `db:"updated_at" json:"updated_at"`
}

// ProductIDList splits the denormalized comma-joined product id field.
func (p *Payment) ProductIDList() []string {
	if p.ProductIDs == "" {
		return nil
	}
	parts := strings.Split(p.ProductIDs, ",")
	ids := make([]string, 0, len(parts))
	for _, part := range parts {
		if id := strings.TrimSpace(part); id != "" {
			ids = append(ids, id)
		}
	}
	return ids
}

// Purchase is one completed purchase of one product. Immutable after insert;
// the (user_id, product_id, stripe_checkout_session_id) triple is unique.
type Purchase struct {
	ID                      int64           `db:"id" json:"id"`
	UserID                  string          `db:"user_id" json:"user_id"`
	ProductID               string          `db:"product_id" json:"product_id"`
	Title                   string          `db:"title" json:"title"`
	Description             string          `db:"description" json:"description"`
	Price                   decimal.Decimal `db:"price" json:"price"`
	Category                string          `db:"category" json:"category"`
	ImageURL                string          `db:"image_url" json:"image_url"`
	StripeCheckoutSessionID string          `db:"stripe_checkout_session_id" json:"stripe_checkout_session_id"`
	PurchasedAt             time.Time       `db:"purchased_at" json:"purchased_at"`
}

// CustomerProfile links an authenticated user to its Stripe customer record.
type CustomerProfile struct {
	UserID           string    `db:"user_id" json:"user_id"`
	Email            string    `db:"email" json:"email"`
	StripeCustomerID string    `db:"stripe_customer_id" json:"stripe_customer_id"`
	CreatedAt        time.Time `db:"created_at" json:"created_at"`
	UpdatedAt        time.Time `db:"updated_at" json:"updated_at"`
}

// Payment statuses. Refunded is reserved: nothing transitions into it yet.
const (
	PaymentStatusPending   = "pending"
	PaymentStatusSucceeded = "succeeded"
	PaymentStatusFailed    = "failed"
	PaymentStatusCanceled  = "canceled"
	PaymentStatusRefunded  = "refunded"
)

// ProductSnapshot is the denormalized per-product capture stored on the
// Payment row at session-creation time. It is the fallback source for
// purchase materialization if the catalog row is gone by webhook time.
type ProductSnapshot struct {
	Title       string          `json:"title"`
	Description string          `json:"description"`
	Price       decimal.Decimal `json:"price"`
	Category    string          `json:"category"`
	ImageURL    string          `json:"image_url"`
}

// SyncSummary reports a bulk catalog resync outcome.
type SyncSummary struct {
	Synced int `json:"synced"`
	Errors int `json:"errors"`
	Total  int `json:"total"`
}
