package service

import (
	"context"
	"fmt"
	"sync"

	"github.com/shopspring/decimal"
	stripe "github.com/stripe/stripe-go/v82"

	"github.com/Psych401/inspired-intelligence-academy/internal/models"
	"github.com/Psych401/inspired-intelligence-academy/internal/processor"
)

// fakeStore is an in-memory stand-in for the Postgres store
type fakeStore struct {
	mu sync.Mutex

	products  map[string]*models.Product // keyed by stripe product id
	payments  map[string]*models.Payment // keyed by checkout session id
	purchases []*models.Purchase
	profiles  map[string]*models.CustomerProfile

	nextPaymentID  int64
	nextPurchaseID int64

	// error injection
	createPaymentErr    error
	createPurchaseErrs  []error // popped per CreatePurchase call
	upsertProductErr    error
	purchasesNoCategory int
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		products: make(map[string]*models.Product),
		payments: make(map[string]*models.Payment),
		profiles: make(map[string]*models.CustomerProfile),
	}
}

func (f *fakeStore) addProduct(p models.Product) {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := p
	f.products[p.StripeProductID] = &cp
}

func (f *fakeStore) GetProductByStripeID(_ context.Context, id string) (*models.Product, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.products[id]
	if !ok {
		return nil, nil
	}
	cp := *p
	return &cp, nil
}

func (f *fakeStore) GetActiveProductsByStripeIDs(_ context.Context, ids []string) ([]models.Product, error) {
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

func (f *fakeStore) GetActiveProducts(_ context.Context) ([]models.Product, error) {
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

func (f *fakeStore) UpsertProduct(_ context.Context, p *models.Product) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.upsertProductErr != nil {
		return f.upsertProductErr
	}
	cp := *p
	f.products[p.StripeProductID] = &cp
	return nil
}

func (f *fakeStore) UpdateProductPrice(_ context.Context, id string, unitPrice decimal.Decimal, currency string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if p, ok := f.products[id]; ok {
		p.UnitPrice = unitPrice
		p.Currency = currency
	}
	return nil
}

func (f *fakeStore) DeactivateProduct(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if p, ok := f.products[id]; ok {
		p.Active = false
	}
	return nil
}

func (f *fakeStore) GetCustomerProfile(_ context.Context, userID string) (*models.CustomerProfile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.profiles[userID]
	if !ok {
		return nil, nil
	}
	cp := *p
	return &cp, nil
}

func (f *fakeStore) SaveStripeCustomerID(_ context.Context, userID, email, stripeCustomerID string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if existing, ok := f.profiles[userID]; ok && existing.StripeCustomerID != "" {
		return existing.StripeCustomerID, nil
	}
	f.profiles[userID] = &models.CustomerProfile{
		UserID:           userID,
		Email:            email,
		StripeCustomerID: stripeCustomerID,
	}
	return stripeCustomerID, nil
}

func (f *fakeStore) CreatePayment(_ context.Context, payment *models.Payment) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createPaymentErr != nil {
		return f.createPaymentErr
	}
	f.nextPaymentID++
	payment.ID = f.nextPaymentID
	cp := *payment
	f.payments[payment.StripeCheckoutSessionID] = &cp
	return nil
}

func (f *fakeStore) GetPaymentByCheckoutSessionID(_ context.Context, sessionID string) (*models.Payment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.payments[sessionID]
	if !ok {
		return nil, nil
	}
	cp := *p
	return &cp, nil
}

func (f *fakeStore) GetPaymentByIntentID(_ context.Context, intentID string) (*models.Payment, error) {
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

func (f *fakeStore) UpdatePaymentStatus(_ context.Context, paymentID int64, status, intentID string) error {
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

func (f *fakeStore) SetPaymentPurchaseID(_ context.Context, paymentID, purchaseID int64) error {
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

func (f *fakeStore) GetPurchase(_ context.Context, userID, productID, sessionID string) (*models.Purchase, error) {
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

func (f *fakeStore) CreatePurchase(_ context.Context, purchase *models.Purchase) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.createPurchaseErrs) > 0 {
		err := f.createPurchaseErrs[0]
		f.createPurchaseErrs = f.createPurchaseErrs[1:]
		if err != nil {
			return err
		}
	}
	f.nextPurchaseID++
	purchase.ID = f.nextPurchaseID
	cp := *purchase
	f.purchases = append(f.purchases, &cp)
	return nil
}

func (f *fakeStore) CreatePurchaseWithoutCategory(_ context.Context, purchase *models.Purchase) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.purchasesNoCategory++
	f.nextPurchaseID++
	purchase.ID = f.nextPurchaseID
	cp := *purchase
	cp.Category = ""
	f.purchases = append(f.purchases, &cp)
	return nil
}

func (f *fakeStore) purchaseCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.purchases)
}

// fakeProcessor is a stand-in for the Stripe client
type fakeProcessor struct {
	createdCustomers int
	customerErr      error

	sessions       []processor.CheckoutSessionParams
	sessionResult  *processor.CheckoutSession
	sessionErr     error
	intentStatuses map[string]string
	intentErr      error
	prices         map[string]*processor.PriceInfo
	priceErr       error
	listedProducts []*stripe.Product
	listErr        error
}

func newFakeProcessor() *fakeProcessor {
	return &fakeProcessor{
		sessionResult:  &processor.CheckoutSession{ID: "cs_test_1", URL: "https://checkout.stripe.test/cs_test_1"},
		intentStatuses: make(map[string]string),
		prices:         make(map[string]*processor.PriceInfo),
	}
}

func (f *fakeProcessor) CreateCustomer(_ context.Context, email, userID string) (string, error) {
	if f.customerErr != nil {
		return "", f.customerErr
	}
	f.createdCustomers++
	return fmt.Sprintf("cus_%s_%d", userID, f.createdCustomers), nil
}

func (f *fakeProcessor) CreateCheckoutSession(_ context.Context, p processor.CheckoutSessionParams) (*processor.CheckoutSession, error) {
	if f.sessionErr != nil {
		return nil, f.sessionErr
	}
	f.sessions = append(f.sessions, p)
	return f.sessionResult, nil
}

func (f *fakeProcessor) GetPaymentIntentStatus(_ context.Context, intentID string) (string, error) {
	if f.intentErr != nil {
		return "", f.intentErr
	}
	if status, ok := f.intentStatuses[intentID]; ok {
		return status, nil
	}
	return string(stripe.PaymentIntentStatusRequiresPaymentMethod), nil
}

func (f *fakeProcessor) GetPrice(_ context.Context, priceID string) (*processor.PriceInfo, error) {
	if f.priceErr != nil {
		return nil, f.priceErr
	}
	if info, ok := f.prices[priceID]; ok {
		return info, nil
	}
	return nil, fmt.Errorf("price not found: %s", priceID)
}

func (f *fakeProcessor) ListActiveProducts(_ context.Context) ([]*stripe.Product, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	return f.listedProducts, nil
}

// fakePublisher records published domain events
type fakePublisher struct {
	mu             sync.Mutex
	statusEvents   []*models.PaymentStatusEvent
	purchaseEvents []*models.PurchaseRecordedEvent
	syncEvents     []*models.CatalogSyncedEvent
	err            error
}

func (f *fakePublisher) PublishCatalogSynced(_ context.Context, event *models.CatalogSyncedEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.syncEvents = append(f.syncEvents, event)
	return nil
}

func (f *fakePublisher) PublishPaymentStatus(_ context.Context, event *models.PaymentStatusEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.statusEvents = append(f.statusEvents, event)
	return nil
}

func (f *fakePublisher) PublishPurchaseRecorded(_ context.Context, event *models.PurchaseRecordedEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.purchaseEvents = append(f.purchaseEvents, event)
	return nil
}

// fakeCache is a trivial in-memory catalog cache
type fakeCache struct {
	mu            sync.Mutex
	catalog       []models.Product
	invalidations int
}

func (f *fakeCache) GetCatalog(_ context.Context) ([]models.Product, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.catalog, nil
}

func (f *fakeCache) SetCatalog(_ context.Context, products []models.Product) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.catalog = products
	return nil
}

func (f *fakeCache) InvalidateCatalog(_ context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.catalog = nil
	f.invalidations++
	return nil
}
