package broker

import (
	"context"
	"fmt"

	"github.com/Psych401/inspired-intelligence-academy/internal/models"
)

// EventPublisher handles publishing domain events
type EventPublisher struct {
	producer *Producer
}

// NewEventPublisher creates a new event publisher
func NewEventPublisher(producer *Producer) *EventPublisher {
	return &EventPublisher{producer: producer}
}

// PublishPaymentStatus publishes a payment status transition, keyed by
// checkout session so all events for one session land on one partition
func (ep *EventPublisher) PublishPaymentStatus(ctx context.Context, event *models.PaymentStatusEvent) error {
	key := fmt.Sprintf("session-%s", event.CheckoutSessionID)
	return ep.producer.PublishEvent(ctx, key, event)
}

// PublishPurchaseRecorded publishes a materialized purchase
func (ep *EventPublisher) PublishPurchaseRecorded(ctx context.Context, event *models.PurchaseRecordedEvent) error {
	key := fmt.Sprintf("session-%s", event.CheckoutSessionID)
	return ep.producer.PublishEvent(ctx, key, event)
}

// PublishCatalogSynced publishes a bulk resync summary
func (ep *EventPublisher) PublishCatalogSynced(ctx context.Context, event *models.CatalogSyncedEvent) error {
	return ep.producer.PublishEvent(ctx, "catalog-sync", event)
}
