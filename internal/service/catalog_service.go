package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	stripe "github.com/stripe/stripe-go/v82"
	"go.uber.org/zap"

	"github.com/Psych401/inspired-intelligence-academy/internal/models"
	"github.com/Psych401/inspired-intelligence-academy/internal/processor"
	"github.com/Psych401/inspired-intelligence-academy/internal/util"
)

// CatalogStore is the store surface the catalog service needs
type CatalogStore interface {
	GetProductByStripeID(ctx context.Context, stripeProductID string) (*models.Product, error)
	GetActiveProducts(ctx context.Context) ([]models.Product, error)
	UpsertProduct(ctx context.Context, p *models.Product) error
	UpdateProductPrice(ctx context.Context, stripeProductID string, unitPrice decimal.Decimal, currency string) error
	DeactivateProduct(ctx context.Context, stripeProductID string) error
}

// CatalogProcessor is the processor surface the catalog service needs
type CatalogProcessor interface {
	GetPrice(ctx context.Context, priceID string) (*processor.PriceInfo, error)
	ListActiveProducts(ctx context.Context) ([]*stripe.Product, error)
}

// CatalogCache caches the active-product listing
type CatalogCache interface {
	GetCatalog(ctx context.Context) ([]models.Product, error)
	SetCatalog(ctx context.Context, products []models.Product) error
	InvalidateCatalog(ctx context.Context) error
}

// CatalogPublisher announces completed bulk resyncs downstream
type CatalogPublisher interface {
	PublishCatalogSynced(ctx context.Context, event *models.CatalogSyncedEvent) error
}

// CatalogService keeps the catalog table consistent with the processor's
// product and price objects
type CatalogService struct {
	store     CatalogStore
	processor CatalogProcessor
	cache     CatalogCache
	publisher CatalogPublisher
	logger    *zap.Logger
}

// NewCatalogService creates a new catalog service. A nil publisher disables
// resync event publication.
func NewCatalogService(store CatalogStore, proc CatalogProcessor, cache CatalogCache, publisher CatalogPublisher) *CatalogService {
	return &CatalogService{
		store:     store,
		processor: proc,
		cache:     cache,
		publisher: publisher,
		logger:    util.GetLogger(),
	}
}

// UpsertFromProductEvent reconciles one processor product object into the
// catalog. A failed price resolution is not fatal: the product is upserted
// at price zero and self-heals on the next price event.
func (s *CatalogService) UpsertFromProductEvent(ctx context.Context, p *stripe.Product) error {
	ctx, span := util.StartSpan(ctx, "CatalogService.UpsertFromProductEvent")
	defer span.End()

	unitPrice := decimal.Zero
	currency := ""
	priceID := ""

	if p.DefaultPrice != nil {
		priceID = p.DefaultPrice.ID
		if p.DefaultPrice.UnitAmount > 0 {
			// Price came expanded on the event payload
			unitPrice = processor.MinorToMajorUnits(p.DefaultPrice.UnitAmount)
			currency = string(p.DefaultPrice.Currency)
		} else if priceID != "" {
			info, err := s.processor.GetPrice(ctx, priceID)
			if err != nil {
				util.CatalogUpsertsTotal.WithLabelValues("partial").Inc()
				s.logger.Warn("Price resolution failed, upserting product at price zero",
					zap.String("stripe_product_id", p.ID),
					zap.String("stripe_price_id", priceID),
					zap.Error(err))
			} else {
				unitPrice = processor.MinorToMajorUnits(info.UnitAmount)
				currency = info.Currency
			}
		}
	}

	imageURL := ""
	if len(p.Images) > 0 {
		imageURL = p.Images[0]
	}

	metadata, err := json.Marshal(p.Metadata)
	if err != nil {
		metadata = []byte("{}")
	}

	product := &models.Product{
		StripeProductID: p.ID,
		StripePriceID:   priceID,
		Name:            p.Name,
		Description:     p.Description,
		UnitPrice:       unitPrice,
		Currency:        currency,
		Category:        p.Metadata["category"],
		ImageURL:        imageURL,
		Active:          p.Active,
		Metadata:        metadata,
	}

	if err := s.store.UpsertProduct(ctx, product); err != nil {
		util.CatalogUpsertsTotal.WithLabelValues("error").Inc()
		return fmt.Errorf("failed to upsert product %s: %w", p.ID, err)
	}

	util.CatalogUpsertsTotal.WithLabelValues("ok").Inc()
	s.invalidateCache(ctx)

	s.logger.Info("Catalog product upserted",
		zap.String("stripe_product_id", p.ID),
		zap.String("name", p.Name),
		zap.Bool("active", p.Active))
	return nil
}

// UpsertFromPriceEvent recomputes a catalog row's price when the event's
// price is the row's default price. Non-default prices are ignored: the
// catalog follows a single-price-per-product model.
func (s *CatalogService) UpsertFromPriceEvent(ctx context.Context, pr *stripe.Price) error {
	ctx, span := util.StartSpan(ctx, "CatalogService.UpsertFromPriceEvent")
	defer span.End()

	if pr.Product == nil || pr.Product.ID == "" {
		return nil
	}

	product, err := s.store.GetProductByStripeID(ctx, pr.Product.ID)
	if err != nil {
		return fmt.Errorf("failed to load product %s: %w", pr.Product.ID, err)
	}
	if product == nil || product.StripePriceID != pr.ID {
		return nil
	}

	unitPrice := processor.MinorToMajorUnits(pr.UnitAmount)
	if err := s.store.UpdateProductPrice(ctx, pr.Product.ID, unitPrice, string(pr.Currency)); err != nil {
		return fmt.Errorf("failed to update price for product %s: %w", pr.Product.ID, err)
	}

	s.invalidateCache(ctx)
	s.logger.Info("Catalog price updated",
		zap.String("stripe_product_id", pr.Product.ID),
		zap.String("stripe_price_id", pr.ID),
		zap.String("unit_price", unitPrice.String()))
	return nil
}

// Deactivate marks a catalog row inactive. Rows are never deleted so
// purchase history keeps resolving.
func (s *CatalogService) Deactivate(ctx context.Context, stripeProductID string) error {
	ctx, span := util.StartSpan(ctx, "CatalogService.Deactivate")
	defer span.End()

	if err := s.store.DeactivateProduct(ctx, stripeProductID); err != nil {
		return fmt.Errorf("failed to deactivate product %s: %w", stripeProductID, err)
	}

	s.invalidateCache(ctx)
	s.logger.Info("Catalog product deactivated", zap.String("stripe_product_id", stripeProductID))
	return nil
}

// BulkResync lists all active processor products and upserts each one.
// Individual failures are isolated and counted, never fatal to the batch.
// Safe to run concurrently with webhook-driven upserts: the upsert keys on
// the unique stripe product id.
func (s *CatalogService) BulkResync(ctx context.Context) (*models.SyncSummary, error) {
	ctx, span := util.StartSpan(ctx, "CatalogService.BulkResync")
	defer span.End()

	start := time.Now()
	defer func() {
		util.CatalogResyncLatency.Observe(time.Since(start).Seconds())
	}()

	products, err := s.processor.ListActiveProducts(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrProcessor, err)
	}

	summary := &models.SyncSummary{Total: len(products)}
	for _, p := range products {
		if err := s.UpsertFromProductEvent(ctx, p); err != nil {
			summary.Errors++
			s.logger.Error("Resync failed for product",
				zap.String("stripe_product_id", p.ID),
				zap.Error(err))
			continue
		}
		summary.Synced++
	}

	s.logger.Info("Catalog resync finished",
		zap.Int("synced", summary.Synced),
		zap.Int("errors", summary.Errors),
		zap.Int("total", summary.Total))

	if s.publisher != nil {
		event := &models.CatalogSyncedEvent{
			BaseEvent: models.BaseEvent{
				EventID:   uuid.New().String(),
				EventType: models.EventTypeCatalogSynced,
				Timestamp: time.Now(),
			},
			Synced: summary.Synced,
			Errors: summary.Errors,
			Total:  summary.Total,
		}
		if err := s.publisher.PublishCatalogSynced(ctx, event); err != nil {
			s.logger.Warn("Failed to publish catalog sync event", zap.Error(err))
		}
	}
	return summary, nil
}

// ListActiveProducts serves the shop listing, cache first
func (s *CatalogService) ListActiveProducts(ctx context.Context) ([]models.Product, error) {
	ctx, span := util.StartSpan(ctx, "CatalogService.ListActiveProducts")
	defer span.End()

	cached, err := s.cache.GetCatalog(ctx)
	if err != nil {
		s.logger.Warn("Catalog cache read failed, falling back to DB", zap.Error(err))
	}
	if cached != nil {
		return cached, nil
	}

	products, err := s.store.GetActiveProducts(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list products: %w", err)
	}

	if err := s.cache.SetCatalog(ctx, products); err != nil {
		s.logger.Warn("Catalog cache write failed", zap.Error(err))
	}
	return products, nil
}

func (s *CatalogService) invalidateCache(ctx context.Context) {
	if err := s.cache.InvalidateCatalog(ctx); err != nil {
		s.logger.Warn("Catalog cache invalidation failed", zap.Error(err))
	}
}
