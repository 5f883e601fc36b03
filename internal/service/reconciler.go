package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"
	stripe "github.com/stripe/stripe-go/v82"
	"go.uber.org/zap"

	"github.com/Psych401/inspired-intelligence-academy/internal/models"
	"github.com/Psych401/inspired-intelligence-academy/internal/util"
)

// pq error code for a column missing from the deployed schema
const pqUndefinedColumn = "42703"

// ReconcilerStore is the store surface the reconciler needs
type ReconcilerStore interface {
	GetPaymentByCheckoutSessionID(ctx context.Context, sessionID string) (*models.Payment, error)
	GetPaymentByIntentID(ctx context.Context, intentID string) (*models.Payment, error)
	UpdatePaymentStatus(ctx context.Context, paymentID int64, status, intentID string) error
	SetPaymentPurchaseID(ctx context.Context, paymentID, purchaseID int64) error
	GetProductByStripeID(ctx context.Context, stripeProductID string) (*models.Product, error)
	GetPurchase(ctx context.Context, userID, productID, sessionID string) (*models.Purchase, error)
	CreatePurchase(ctx context.Context, purchase *models.Purchase) error
	CreatePurchaseWithoutCategory(ctx context.Context, purchase *models.Purchase) error
}

// ReconcilerProcessor is the processor surface the reconciler needs
type ReconcilerProcessor interface {
	GetPaymentIntentStatus(ctx context.Context, intentID string) (string, error)
}

// Publisher publishes domain events after reconciliation outcomes
type Publisher interface {
	PublishPaymentStatus(ctx context.Context, event *models.PaymentStatusEvent) error
	PublishPurchaseRecorded(ctx context.Context, event *models.PurchaseRecordedEvent) error
}

// Reconciler is the webhook-driven state machine that advances payment
// status and materializes purchase records, exactly once, under duplicated
// and reordered delivery.
type Reconciler struct {
	store     ReconcilerStore
	processor ReconcilerProcessor
	catalog   *CatalogService
	publisher Publisher
	logger    *zap.Logger
}

// NewReconciler creates a new webhook reconciler
func NewReconciler(store ReconcilerStore, proc ReconcilerProcessor, catalog *CatalogService, publisher Publisher) *Reconciler {
	return &Reconciler{
		store:     store,
		processor: proc,
		catalog:   catalog,
		publisher: publisher,
		logger:    util.GetLogger(),
	}
}

// HandleEvent processes one verified webhook event. A nil return means the
// event is fully evaluated (including no-ops and skips) and must be
// acknowledged; an error means an unexpected internal failure the processor
// should redeliver.
func (r *Reconciler) HandleEvent(ctx context.Context, event stripe.Event) error {
	ctx, span := util.StartSpan(ctx, "Reconciler.HandleEvent")
	defer span.End()

	start := time.Now()
	defer func() {
		util.WebhookProcessingLatency.Observe(time.Since(start).Seconds())
	}()
	util.WebhookEventsTotal.WithLabelValues(string(event.Type)).Inc()

	switch event.Type {
	case "checkout.session.completed":
		var sess stripe.CheckoutSession
		if err := json.Unmarshal(event.Data.Raw, &sess); err != nil {
			r.logger.Error("Malformed checkout session payload", zap.String("event_id", event.ID), zap.Error(err))
			return nil
		}
		return r.handleSessionCompleted(ctx, &sess)

	case "payment_intent.succeeded":
		return r.handleIntentStatus(ctx, event, models.PaymentStatusSucceeded)

	case "payment_intent.payment_failed":
		return r.handleIntentStatus(ctx, event, models.PaymentStatusFailed)

	case "payment_intent.canceled":
		return r.handleIntentStatus(ctx, event, models.PaymentStatusCanceled)

	case "product.created", "product.updated":
		var p stripe.Product
		if err := json.Unmarshal(event.Data.Raw, &p); err != nil {
			r.logger.Error("Malformed product payload", zap.String("event_id", event.ID), zap.Error(err))
			return nil
		}
		return r.catalog.UpsertFromProductEvent(ctx, &p)

	case "product.deleted":
		var p stripe.Product
		if err := json.Unmarshal(event.Data.Raw, &p); err != nil {
			r.logger.Error("Malformed product payload", zap.String("event_id", event.ID), zap.Error(err))
			return nil
		}
		return r.catalog.Deactivate(ctx, p.ID)

	case "price.created", "price.updated":
		var pr stripe.Price
		if err := json.Unmarshal(event.Data.Raw, &pr); err != nil {
			r.logger.Error("Malformed price payload", zap.String("event_id", event.ID), zap.Error(err))
			return nil
		}
		return r.catalog.UpsertFromPriceEvent(ctx, &pr)

	default:
		// Unknown event kinds are acknowledged so the processor stops
		// retrying them.
		r.logger.Debug("Ignoring webhook event",
			zap.String("event_id", event.ID),
			zap.String("type", string(event.Type)))
		return nil
	}
}

// handleSessionCompleted advances the payment for a completed checkout
// session and, on a confirmed successful intent, materializes one purchase
// per product in the session.
func (r *Reconciler) handleSessionCompleted(ctx context.Context, sess *stripe.CheckoutSession) error {
	payment, err := r.store.GetPaymentByCheckoutSessionID(ctx, sess.ID)
	if err != nil {
		return fmt.Errorf("failed to load payment for session %s: %w", sess.ID, err)
	}
	if payment == nil {
		// A session this instance did not create, or delivered before the
		// insert committed. Acknowledge; a redelivery after creation would
		// still find it.
		r.logger.Warn("No payment row for completed session", zap.String("session_id", sess.ID))
		return nil
	}

	intentID := ""
	if sess.PaymentIntent != nil {
		intentID = sess.PaymentIntent.ID
	}
	if intentID == "" {
		r.logger.Error("Completed session carries no payment intent", zap.String("session_id", sess.ID))
		return nil
	}

	// The session object can report complete while the charge is still
	// settling, so the intent is the only status worth trusting.
	intentStatus, err := r.processor.GetPaymentIntentStatus(ctx, intentID)
	if err != nil {
		return fmt.Errorf("failed to verify intent for session %s: %w", sess.ID, err)
	}

	status := models.PaymentStatusPending
	switch intentStatus {
	case string(stripe.PaymentIntentStatusSucceeded):
		status = models.PaymentStatusSucceeded
	case string(stripe.PaymentIntentStatusCanceled):
		status = models.PaymentStatusCanceled
	}

	if err := r.store.UpdatePaymentStatus(ctx, payment.ID, status, intentID); err != nil {
		return fmt.Errorf("failed to update payment %d: %w", payment.ID, err)
	}

	if status != models.PaymentStatusSucceeded {
		r.logger.Info("Session completed but intent not settled",
			zap.String("session_id", sess.ID),
			zap.String("intent_status", intentStatus))
		return nil
	}

	userID := sess.Metadata["user_id"]
	if userID == "" {
		r.logger.Error("Completed session carries no user id, skipping purchase materialization",
			zap.String("session_id", sess.ID))
		return nil
	}

	productIDs := productIDsFromMetadata(sess.Metadata)
	if len(productIDs) == 0 {
		productIDs = payment.ProductIDList()
	}
	if len(productIDs) == 0 {
		r.logger.Error("No product ids on session or payment row",
			zap.String("session_id", sess.ID))
		return nil
	}

	var snapshot map[string]models.ProductSnapshot
	if len(payment.Metadata) > 0 {
		if err := json.Unmarshal(payment.Metadata, &snapshot); err != nil {
			r.logger.Warn("Unreadable payment metadata snapshot",
				zap.Int64("payment_id", payment.ID), zap.Error(err))
		}
	}

	var firstPurchaseID int64
	var failed int
	var lastFailure error
	for _, productID := range productIDs {
		purchase, ok := r.resolvePurchase(ctx, payment, snapshot, productID, sess.ID, userID, len(productIDs) == 1)
		if !ok {
			continue
		}

		// Idempotency guard: a redelivered event finds the existing row
		// and skips the insert.
		existing, err := r.store.GetPurchase(ctx, userID, productID, sess.ID)
		if err != nil {
			failed++
			lastFailure = err
			r.logger.Error("Purchase lookup failed",
				zap.String("product_id", productID), zap.Error(err))
			continue
		}
		if existing != nil {
			util.DuplicatePurchasesSkippedTotal.Inc()
			r.logger.Info("Purchase already recorded, skipping",
				zap.String("session_id", sess.ID),
				zap.String("product_id", productID))
			if firstPurchaseID == 0 {
				firstPurchaseID = existing.ID
			}
			continue
		}

		if err := r.insertPurchase(ctx, purchase); err != nil {
			failed++
			lastFailure = err
			r.logger.Error("Purchase insert failed",
				zap.String("session_id", sess.ID),
				zap.String("product_id", productID),
				zap.Error(err))
			continue
		}

		util.PurchasesRecordedTotal.Inc()
		if firstPurchaseID == 0 {
			firstPurchaseID = purchase.ID
		}
		r.logger.Info("Purchase recorded",
			zap.Int64("purchase_id", purchase.ID),
			zap.String("user_id", userID),
			zap.String("product_id", productID),
			zap.String("price", purchase.Price.String()))

		r.publish(ctx, func() error {
			return r.publisher.PublishPurchaseRecorded(ctx, &models.PurchaseRecordedEvent{
				BaseEvent:         newBaseEvent(models.EventTypePurchaseRecorded),
				PurchaseID:        purchase.ID,
				UserID:            userID,
				ProductID:         productID,
				Price:             purchase.Price.String(),
				CheckoutSessionID: sess.ID,
			})
		})
	}

	if firstPurchaseID != 0 && !payment.PurchaseID.Valid {
		if err := r.store.SetPaymentPurchaseID(ctx, payment.ID, firstPurchaseID); err != nil {
			r.logger.Warn("Failed to back-link purchase onto payment",
				zap.Int64("payment_id", payment.ID), zap.Error(err))
		}
	}

	// Count and publish only on the transition into succeeded; a redelivered
	// event finds the payment already settled.
	if payment.Status != models.PaymentStatusSucceeded {
		util.PaymentsSucceededTotal.Inc()
		r.publish(ctx, func() error {
			return r.publisher.PublishPaymentStatus(ctx, &models.PaymentStatusEvent{
				BaseEvent:         newBaseEvent(models.EventTypePaymentSucceeded),
				PaymentID:         payment.ID,
				UserID:            payment.UserID,
				CheckoutSessionID: sess.ID,
				Status:            models.PaymentStatusSucceeded,
				Amount:            payment.Amount.String(),
				Currency:          payment.Currency,
			})
		})
	}

	if failed > 0 {
		// A store failure here is recoverable: a non-2xx answer makes the
		// processor redeliver, and the idempotency guard skips the siblings
		// that did insert.
		return fmt.Errorf("failed to record %d of %d purchases for session %s: %w",
			failed, len(productIDs), sess.ID, lastFailure)
	}
	return nil
}

// handleIntentStatus applies a terminal status from a payment-intent event.
// These events carry no product or user context, so purchase creation stays
// with the session-completed path.
func (r *Reconciler) handleIntentStatus(ctx context.Context, event stripe.Event, status string) error {
	var pi stripe.PaymentIntent
	if err := json.Unmarshal(event.Data.Raw, &pi); err != nil {
		r.logger.Error("Malformed payment intent payload", zap.String("event_id", event.ID), zap.Error(err))
		return nil
	}

	payment, err := r.store.GetPaymentByIntentID(ctx, pi.ID)
	if err != nil {
		return fmt.Errorf("failed to load payment for intent %s: %w", pi.ID, err)
	}
	if payment == nil {
		r.logger.Warn("No payment row for intent", zap.String("intent_id", pi.ID))
		return nil
	}

	if err := r.store.UpdatePaymentStatus(ctx, payment.ID, status, pi.ID); err != nil {
		return fmt.Errorf("failed to update payment %d: %w", payment.ID, err)
	}

	eventType := models.EventTypePaymentFailed
	switch status {
	case models.PaymentStatusSucceeded:
		eventType = models.EventTypePaymentSucceeded
		util.PaymentsSucceededTotal.Inc()
	case models.PaymentStatusCanceled:
		eventType = models.EventTypePaymentCanceled
		util.PaymentsFailedTotal.Inc()
	default:
		util.PaymentsFailedTotal.Inc()
	}

	r.logger.Info("Payment status updated from intent event",
		zap.Int64("payment_id", payment.ID),
		zap.String("intent_id", pi.ID),
		zap.String("status", status))

	r.publish(ctx, func() error {
		return r.publisher.PublishPaymentStatus(ctx, &models.PaymentStatusEvent{
			BaseEvent:         newBaseEvent(eventType),
			PaymentID:         payment.ID,
			UserID:            payment.UserID,
			CheckoutSessionID: payment.StripeCheckoutSessionID,
			Status:            status,
			Amount:            payment.Amount.String(),
			Currency:          payment.Currency,
		})
	})
	return nil
}

// resolvePurchase assembles the purchase row for one product: display fields
// from the catalog first, then the payment row's snapshot. The recorded
// session total stands in as the price only for single-product sessions; a
// multi-product total cannot safely be split, so an unpriceable product is
// skipped and logged rather than priced at zero.
func (r *Reconciler) resolvePurchase(ctx context.Context, payment *models.Payment, snapshot map[string]models.ProductSnapshot, productID, sessionID, userID string, single bool) (*models.Purchase, bool) {
	purchase := &models.Purchase{
		UserID:                  userID,
		ProductID:               productID,
		Title:                   productID,
		StripeCheckoutSessionID: sessionID,
	}

	price := decimal.Zero
	product, err := r.store.GetProductByStripeID(ctx, productID)
	if err != nil {
		r.logger.Warn("Catalog lookup failed during materialization",
			zap.String("product_id", productID), zap.Error(err))
	}
	if product != nil {
		purchase.Title = product.Name
		purchase.Description = product.Description
		purchase.Category = product.Category
		purchase.ImageURL = product.ImageURL
		price = product.UnitPrice
	}

	if snap, ok := snapshot[productID]; ok {
		if product == nil {
			purchase.Title = snap.Title
			purchase.Description = snap.Description
			purchase.Category = snap.Category
			purchase.ImageURL = snap.ImageURL
		}
		if !price.IsPositive() {
			price = snap.Price
		}
	}

	if !price.IsPositive() {
		if !single {
			util.PurchasesSkippedNoPriceTotal.Inc()
			r.logger.Error("No resolvable price for product in multi-product session, skipping",
				zap.String("session_id", sessionID),
				zap.String("product_id", productID))
			return nil, false
		}
		price = payment.Amount
	}

	purchase.Price = price
	return purchase, true
}

// insertPurchase writes the purchase row, retrying once without the category
// column when the deployed schema predates it.
func (r *Reconciler) insertPurchase(ctx context.Context, purchase *models.Purchase) error {
	err := r.store.CreatePurchase(ctx, purchase)
	if err == nil {
		return nil
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) && string(pqErr.Code) == pqUndefinedColumn {
		r.logger.Warn("Schema missing category column, retrying reduced insert",
			zap.String("product_id", purchase.ProductID))
		return r.store.CreatePurchaseWithoutCategory(ctx, purchase)
	}
	return err
}

// publish runs a publisher call; a broker failure never fails reconciliation
func (r *Reconciler) publish(_ context.Context, fn func() error) {
	if err := fn(); err != nil {
		r.logger.Error("Failed to publish domain event", zap.Error(err))
	}
}

func productIDsFromMetadata(metadata map[string]string) []string {
	raw := metadata["product_ids"]
	if raw == "" {
		// Legacy sessions carried a single product id.
		raw = metadata["product_id"]
	}
	if raw == "" {
		return nil
	}

	parts := strings.Split(raw, ",")
	ids := make([]string, 0, len(parts))
	for _, part := range parts {
		if id := strings.TrimSpace(part); id != "" {
			ids = append(ids, id)
		}
	}
	return ids
}

func newBaseEvent(eventType string) models.BaseEvent {
	return models.BaseEvent{
		EventID:   uuid.New().String(),
		EventType: eventType,
		Timestamp: time.Now(),
	}
}
