package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/Psych401/inspired-intelligence-academy/internal/models"
	"github.com/Psych401/inspired-intelligence-academy/internal/processor"
	"github.com/Psych401/inspired-intelligence-academy/internal/util"
)

// CheckoutStore is the store surface the checkout service needs
type CheckoutStore interface {
	GetActiveProductsByStripeIDs(ctx context.Context, ids []string) ([]models.Product, error)
	GetCustomerProfile(ctx context.Context, userID string) (*models.CustomerProfile, error)
	SaveStripeCustomerID(ctx context.Context, userID, email, stripeCustomerID string) (string, error)
	CreatePayment(ctx context.Context, payment *models.Payment) error
}

// CheckoutProcessor is the processor surface the checkout service needs
type CheckoutProcessor interface {
	CreateCustomer(ctx context.Context, email, userID string) (string, error)
	CreateCheckoutSession(ctx context.Context, p processor.CheckoutSessionParams) (*processor.CheckoutSession, error)
}

// CheckoutService turns an authenticated purchase request into a hosted
// payment session plus a pending payment record
type CheckoutService struct {
	store     CheckoutStore
	processor CheckoutProcessor
	siteURL   string
	logger    *zap.Logger
}

// NewCheckoutService creates a new checkout service
func NewCheckoutService(store CheckoutStore, proc CheckoutProcessor, siteURL string) *CheckoutService {
	return &CheckoutService{
		store:     store,
		processor: proc,
		siteURL:   strings.TrimRight(siteURL, "/"),
		logger:    util.GetLogger(),
	}
}

// CheckoutResponse is returned to the caller on success
type CheckoutResponse struct {
	SessionID string `json:"sessionId"`
	URL       string `json:"url"`
}

// CreateCheckoutSession resolves the requested products against the active
// catalog, reuses or creates the user's processor customer record, opens a
// hosted session at server-authoritative prices and records a pending
// payment. All-or-nothing: an unresolvable product id fails the request
// before any side effect, and the payment row is only written after the
// processor confirms session creation.
func (s *CheckoutService) CreateCheckoutSession(ctx context.Context, userID, email string, productIDs []string) (*CheckoutResponse, error) {
	ctx, span := util.StartSpan(ctx, "CheckoutService.CreateCheckoutSession")
	defer span.End()

	requested, err := normalizeProductIDs(productIDs)
	if err != nil {
		util.CheckoutFailedTotal.WithLabelValues("invalid_input").Inc()
		return nil, err
	}

	products, err := s.store.GetActiveProductsByStripeIDs(ctx, requested)
	if err != nil {
		util.CheckoutFailedTotal.WithLabelValues("db_error").Inc()
		return nil, fmt.Errorf("failed to resolve products: %w", err)
	}

	byID := make(map[string]models.Product, len(products))
	for _, p := range products {
		byID[p.StripeProductID] = p
	}

	var missing []string
	for _, id := range requested {
		if _, ok := byID[id]; !ok {
			missing = append(missing, id)
		}
	}
	if len(missing) > 0 {
		util.CheckoutFailedTotal.WithLabelValues("not_found").Inc()
		return nil, &ProductsNotFoundError{Missing: missing}
	}

	customerID, err := s.resolveCustomer(ctx, userID, email)
	if err != nil {
		util.CheckoutFailedTotal.WithLabelValues("customer").Inc()
		return nil, err
	}

	total := decimal.Zero
	currency := ""
	lineItems := make([]processor.LineItem, 0, len(requested))
	snapshot := make(map[string]models.ProductSnapshot, len(requested))
	for _, id := range requested {
		p := byID[id]
		if p.Currency != "" {
			if currency != "" && p.Currency != currency {
				util.CheckoutFailedTotal.WithLabelValues("currency_mismatch").Inc()
				return nil, ErrCurrencyMismatch
			}
			currency = p.Currency
		}
		total = total.Add(p.UnitPrice)
		lineItems = append(lineItems, processor.LineItem{
			Name:        p.Name,
			Description: p.Description,
			ImageURL:    p.ImageURL,
			Currency:    p.Currency,
			UnitAmount:  processor.MajorToMinorUnits(p.UnitPrice),
		})
		snapshot[id] = models.ProductSnapshot{
			Title:       p.Name,
			Description: p.Description,
			Price:       p.UnitPrice,
			Category:    p.Category,
			ImageURL:    p.ImageURL,
		}
	}
	if currency == "" {
		currency = "eur"
	}

	joinedIDs := strings.Join(requested, ",")
	sess, err := s.processor.CreateCheckoutSession(ctx, processor.CheckoutSessionParams{
		CustomerID: customerID,
		SuccessURL: s.siteURL + "/checkout/success?session_id={CHECKOUT_SESSION_ID}",
		CancelURL:  s.siteURL + "/checkout/cancel",
		LineItems:  lineItems,
		Metadata: map[string]string{
			"user_id":     userID,
			"product_ids": joinedIDs,
		},
	})
	if err != nil {
		util.CheckoutFailedTotal.WithLabelValues("processor").Inc()
		return nil, fmt.Errorf("%w: %v", ErrProcessor, err)
	}

	metadata, err := json.Marshal(snapshot)
	if err != nil {
		metadata = []byte("{}")
	}

	payment := &models.Payment{
		UserID:                  userID,
		StripeCheckoutSessionID: sess.ID,
		StripeCustomerID:        customerID,
		Amount:                  total,
		Currency:                currency,
		Status:                  models.PaymentStatusPending,
		ProductIDs:              joinedIDs,
		Metadata:                metadata,
	}
	if err := s.store.CreatePayment(ctx, payment); err != nil {
		// The processor-side session is already open; losing the row here
		// orphans it. Surfaced, not hidden.
		util.CheckoutFailedTotal.WithLabelValues("payment_insert").Inc()
		s.logger.Error("Payment insert failed after session creation",
			zap.String("session_id", sess.ID),
			zap.String("user_id", userID),
			zap.Error(err))
		return nil, fmt.Errorf("failed to record pending payment: %w", err)
	}

	util.CheckoutSessionsCreatedTotal.Inc()
	s.logger.Info("Checkout session created",
		zap.String("session_id", sess.ID),
		zap.String("user_id", userID),
		zap.String("amount", total.String()),
		zap.Int("products", len(requested)))

	return &CheckoutResponse{SessionID: sess.ID, URL: sess.URL}, nil
}

// resolveCustomer reuses the stored processor customer id, creating one on
// first purchase. The profile upsert keys on user_id, so a concurrent first
// purchase cannot persist two customer ids: the first writer wins and both
// callers proceed with the stored id.
func (s *CheckoutService) resolveCustomer(ctx context.Context, userID, email string) (string, error) {
	profile, err := s.store.GetCustomerProfile(ctx, userID)
	if err != nil {
		return "", fmt.Errorf("failed to load customer profile: %w", err)
	}
	if profile != nil && profile.StripeCustomerID != "" {
		return profile.StripeCustomerID, nil
	}

	customerID, err := s.processor.CreateCustomer(ctx, email, userID)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrProcessor, err)
	}

	stored, err := s.store.SaveStripeCustomerID(ctx, userID, email, customerID)
	if err != nil {
		return "", fmt.Errorf("failed to persist customer id: %w", err)
	}
	if stored != customerID {
		s.logger.Warn("Concurrent customer creation detected, using stored id",
			zap.String("user_id", userID),
			zap.String("stored", stored),
			zap.String("discarded", customerID))
	}
	return stored, nil
}

// normalizeProductIDs trims, deduplicates and validates the requested ids
func normalizeProductIDs(ids []string) ([]string, error) {
	if len(ids) == 0 {
		return nil, ErrEmptyProductList
	}

	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		trimmed := strings.TrimSpace(id)
		if trimmed == "" {
			return nil, ErrInvalidProductID
		}
		if _, dup := seen[trimmed]; dup {
			continue
		}
		seen[trimmed] = struct{}{}
		out = append(out, trimmed)
	}
	return out, nil
}
