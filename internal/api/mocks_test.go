package api

import (
	"context"
	"fmt"
	"sync"

	"github.com/shopspring/decimal"
	stripe "github.com/stripe/stripe-go/v82"

	"github.com/Psych401/inspired-intelligence-academy/internal/models"
	"github.com/Psych401/inspired-intelligence-academy/internal/processor"
)

// fakeBackend implements the store surfaces of every service plus the
// handler's PurchaseReader, backed by maps
type fakeBackend struct {
	mu        sync.Mutex
	products  map[string]*models.Product
	payments  map[string]*models.Payment
	purchases []*models.Purchase
	profiles  map[string]*models.CustomerProfile
	nextID    int64
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{
		products: make(map[string]*models.Product),
		payments: make(map[string]*models.Payment),
		profiles: make(map[string]*models.CustomerProfile),
	}
}

func (f *fakeBackend) addProduct(p models.Product) {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := p
	f.products[p.StripeProductID] = &cp
}

func (f *fakeBackend) GetProductByStripeID(_ context.Context, id string) (*models.Product, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if p, ok := f.products[id]; ok {
		cp := *p
		return &cp, nil
	}
	return nil, nil
}

func (f *fakeBackend) GetActiveProductsByStripeIDs(_ context.Context, ids []string) ([]models.Product, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.Product
	for _, id := range ids {
		if p, ok := f.products[id]; ok && p.Active {
			out = append(out, *p)
		}
	}
	return out, nil
}

func (f *fakeBackend) GetActiveProducts(_ context.Context) ([]models.Product, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.Product
	for _, p := range f.products {
		if p.Active {
			out = append(out, *p)
		}
	}
	return out, nil
}

func (f *fakeBackend) UpsertProduct(_ context.Context, p *models.Product) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *p
	f.products[p.StripeProductID] = &cp
	return nil
}

func (f *fakeBackend) UpdateProductPrice(_ context.Context, id string, unitPrice decimal.Decimal, currency string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if p, ok := f.products[id]; ok {
		p.UnitPrice = unitPrice
		p.Currency = currency
	}
	return nil
}

func (f *fakeBackend) DeactivateProduct(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if p, ok := f.products[id]; ok {
		p.Active = false
	}
	return nil
}

func (f *fakeBackend) GetCustomerProfile(_ context.Context, userID string) (*models.CustomerProfile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if p, ok := f.profiles[userID]; ok {
		cp := *p
		return &cp, nil
	}
	return nil, nil
}

func (f *fakeBackend) SaveStripeCustomerID(_ context.Context, userID, email, stripeCustomerID string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if existing, ok := f.profiles[userID]; ok && existing.StripeCustomerID != "" {
		return existing.StripeCustomerID, nil
	}
	f.profiles[userID] = &models.CustomerProfile{UserID: userID, Email: email, StripeCustomerID: stripeCustomerID}
	return stripeCustomerID, nil
}

func (f *fakeBackend) CreatePayment(_ context.Context, payment *models.Payment) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	payment.ID = f.nextID
	cp := *payment
	f.payments[payment.StripeCheckoutSessionID] = &cp
	return nil
}

func (f *fakeBackend) GetPaymentByCheckoutSessionID(_ context.Context, sessionID string) (*models.Payment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if p, ok := f.payments[sessionID]; ok {
		cp := *p
		return &cp, nil
	}
	return nil, nil
}

func (f *fakeBackend) GetPaymentByIntentID(_ context.Context, intentID string) (*models.Payment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, p := range f.payments {
		if p.StripePaymentIntentID.Valid && p.StripePaymentIntentID.String == intentID {
			cp := *p
			return &cp, nil
		}
	}
	return nil, nil
}

func (f *fakeBackend) UpdatePaymentStatus(_ context.Context, paymentID int64, status, intentID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, p := range f.payments {
		if p.ID == paymentID {
			p.Status = status
			if intentID != "" {
				p.StripePaymentIntentID.String = intentID
				p.StripePaymentIntentID.Valid = true
			}
			return nil
		}
	}
	return fmt.Errorf("payment not found: %d", paymentID)
}

func (f *fakeBackend) SetPaymentPurchaseID(_ context.Context, paymentID, purchaseID int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, p := range f.payments {
		if p.ID == paymentID {
			p.PurchaseID.Int64 = purchaseID
			p.PurchaseID.Valid = true
			return nil
		}
	}
	return fmt.Errorf("payment not found: %d", paymentID)
}

func (f *fakeBackend) GetPurchase(_ context.Context, userID, productID, sessionID string) (*models.Purchase, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, p := range f.purchases {
		if p.UserID == userID && p.ProductID == productID && p.StripeCheckoutSessionID == sessionID {
			cp := *p
			return &cp, nil
		}
	}
	return nil, nil
}

func (f *fakeBackend) CreatePurchase(_ context.Context, purchase *models.Purchase) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	purchase.ID = f.nextID
	cp := *purchase
	f.purchases = append(f.purchases, &cp)
	return nil
}

func (f *fakeBackend) CreatePurchaseWithoutCategory(ctx context.Context, purchase *models.Purchase) error {
	purchase.Category = ""
	return f.CreatePurchase(ctx, purchase)
}

func (f *fakeBackend) GetPurchasesByUserID(_ context.Context, userID string) ([]models.Purchase, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.Purchase
	for _, p := range f.purchases {
		if p.UserID == userID {
			out = append(out, *p)
		}
	}
	return out, nil
}

func (f *fakeBackend) purchaseCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.purchases)
}

// fakeStripe implements the processor surfaces of every service
type fakeStripe struct {
	mu             sync.Mutex
	sessions       []processor.CheckoutSessionParams
	intentStatuses map[string]string
}

func newFakeStripe() *fakeStripe {
	return &fakeStripe{intentStatuses: make(map[string]string)}
}

func (f *fakeStripe) CreateCustomer(_ context.Context, _, userID string) (string, error) {
	return "cus_" + userID, nil
}

func (f *fakeStripe) CreateCheckoutSession(_ context.Context, p processor.CheckoutSessionParams) (*processor.CheckoutSession, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sessions = append(f.sessions, p)
	return &processor.CheckoutSession{ID: "cs_test_1", URL: "https://checkout.stripe.test/cs_test_1"}, nil
}

func (f *fakeStripe) GetPaymentIntentStatus(_ context.Context, intentID string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if status, ok := f.intentStatuses[intentID]; ok {
		return status, nil
	}
	return string(stripe.PaymentIntentStatusRequiresPaymentMethod), nil
}

func (f *fakeStripe) GetPrice(_ context.Context, priceID string) (*processor.PriceInfo, error) {
	return nil, fmt.Errorf("price not found: %s", priceID)
}

func (f *fakeStripe) ListActiveProducts(_ context.Context) ([]*stripe.Product, error) {
	return nil, nil
}

// noopCache satisfies the catalog cache without caching anything
type noopCache struct{}

func (noopCache) GetCatalog(context.Context) ([]models.Product, error) { return nil, nil }
func (noopCache) SetCatalog(context.Context, []models.Product) error   { return nil }
func (noopCache) InvalidateCatalog(context.Context) error              { return nil }

// noopPublisher satisfies the reconciler's publisher
type noopPublisher struct{}

func (noopPublisher) PublishPaymentStatus(context.Context, *models.PaymentStatusEvent) error {
	return nil
}
func (noopPublisher) PublishPurchaseRecorded(context.Context, *models.PurchaseRecordedEvent) error {
	return nil
}
