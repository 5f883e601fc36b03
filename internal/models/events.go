package models

import "time"

// Event types published to the billing topic
const (
	EventTypePaymentSucceeded = "PAYMENT_SUCCEEDED"
	EventTypePaymentFailed    = "PAYMENT_FAILED"
	EventTypePaymentCanceled  = "PAYMENT_CANCELED"
	EventTypePurchaseRecorded = "PURCHASE_RECORDED"
	EventTypeCatalogSynced    = "CATALOG_SYNCED"
)

// BaseEvent contains common fields for all events
type BaseEvent struct {
	EventID   string    `json:"event_id"`
	EventType string    `json:"event_type"`
	Timestamp time.Time `json:"timestamp"`
}

// PaymentStatusEvent published when a payment reaches a terminal status
type PaymentStatusEvent struct {
	BaseEvent
	PaymentID         int64  `json:"payment_id"`
	UserID            string `json:"user_id"`
	CheckoutSessionID string `json:"checkout_session_id"`
	Status            string `json:"status"`
	Amount            string `json:"amount"`
	Currency          string `json:"currency"`
}

// PurchaseRecordedEvent published for each purchase materialized by the
// webhook reconciler
type PurchaseRecordedEvent struct {
	BaseEvent
	PurchaseID        int64  `json:"purchase_id"`
	UserID            string `json:"user_id"`
	ProductID         string `json:"product_id"`
	Price             string `json:"price"`
	CheckoutSessionID string `json:"checkout_session_id"`
}

// CatalogSyncedEvent published after a bulk resync completes
type CatalogSyncedEvent struct {
	BaseEvent
	Synced int `json:"synced"`
	Errors int `json:"errors"`
	Total  int `json:"total"`
}
