package api

import (
	"context"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/stripe/stripe-go/v82/webhook"
	"go.uber.org/zap"

	"github.com/Psych401/inspired-intelligence-academy/internal/models"
	"github.com/Psych401/inspired-intelligence-academy/internal/service"
	"github.com/Psych401/inspired-intelligence-academy/internal/util"
)

// PurchaseReader serves the user's purchase ledger
type PurchaseReader interface {
	GetPurchasesByUserID(ctx context.Context, userID string) ([]models.Purchase, error)
}

// Handler contains HTTP handlers
type Handler struct {
	checkout      *service.CheckoutService
	reconciler    *service.Reconciler
	catalog       *service.CatalogService
	purchases     PurchaseReader
	jwtSecret     string
	serviceKey    string
	webhookSecret string
	logger        *zap.Logger
}

// NewHandler creates a new HTTP handler
func NewHandler(
	checkout *service.CheckoutService,
	reconciler *service.Reconciler,
	catalog *service.CatalogService,
	purchases PurchaseReader,
	jwtSecret, serviceKey, webhookSecret string,
) *Handler {
	return &Handler{
		checkout:      checkout,
		reconciler:    reconciler,
		catalog:       catalog,
		purchases:     purchases,
		jwtSecret:     jwtSecret,
		serviceKey:    serviceKey,
		webhookSecret: webhookSecret,
		logger:        util.GetLogger(),
	}
}

// SetupRoutes sets up HTTP routes
func (h *Handler) SetupRoutes(router *gin.Engine) {
	router.Use(gin.Recovery())
	router.Use(prometheusMiddleware())
	router.Use(gin.Logger())

	router.GET("/health", h.healthCheck)
	router.GET("/ready", h.readinessCheck)

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := router.Group("/api/v1")
	{
		v1.GET("/products", h.listProducts)
		v1.POST("/checkout", AuthRequired(h.jwtSecret), h.createCheckout)
		v1.GET("/purchases", AuthRequired(h.jwtSecret), h.listPurchases)
		// The processor is the caller here, not an end user: no bearer
		// token, the signature header is the authentication.
		v1.POST("/webhooks/stripe", h.handleWebhook)
		v1.POST("/catalog/resync", ServiceKeyRequired(h.serviceKey), h.resyncCatalog)
	}
}

// healthCheck handles health check requests
func (h *Handler) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "healthy",
		"time":   time.Now().Unix(),
	})
}

// readinessCheck handles readiness check requests
func (h *Handler) readinessCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ready",
		"time":   time.Now().Unix(),
	})
}

// checkoutRequest accepts the current list shape and the legacy singular one
type checkoutRequest struct {
	ProductIDs []string `json:"productIds"`
	ProductID  string   `json:"productId"`
}

// createCheckout handles checkout session creation
func (h *Handler) createCheckout(c *gin.Context) {
	var req checkoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}

	ids := req.ProductIDs
	if len(ids) == 0 && req.ProductID != "" {
		ids = []string{req.ProductID}
	}

	userID := c.GetString(ctxUserID)
	email := c.GetString(ctxEmail)

	resp, err := h.checkout.CreateCheckoutSession(c.Request.Context(), userID, email, ids)
	if err != nil {
		h.renderCheckoutError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

func (h *Handler) renderCheckoutError(c *gin.Context, err error) {
	var notFound *service.ProductsNotFoundError
	switch {
	case errors.Is(err, service.ErrEmptyProductList), errors.Is(err, service.ErrInvalidProductID),
		errors.Is(err, service.ErrCurrencyMismatch):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.As(err, &notFound):
		c.JSON(http.StatusNotFound, gin.H{"error": notFound.Error(), "missing": notFound.Missing})
	case errors.Is(err, service.ErrProcessor):
		c.JSON(http.StatusBadGateway, gin.H{"error": "Payment processor unavailable"})
	default:
		h.logger.Error("Checkout failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create checkout session"})
	}
}

// handleWebhook verifies and processes a processor webhook delivery. The
// signature is recomputed over the exact raw bytes; parsing anything before
// verification would invalidate it.
func (h *Handler) handleWebhook(c *gin.Context) {
	payload, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Unreadable payload"})
		return
	}

	event, err := webhook.ConstructEventWithOptions(payload, c.GetHeader("Stripe-Signature"), h.webhookSecret,
		webhook.ConstructEventOptions{IgnoreAPIVersionMismatch: true})
	if err != nil {
		util.WebhookSignatureFailuresTotal.Inc()
		h.logger.Warn("Webhook signature verification failed", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid signature"})
		return
	}

	if err := h.reconciler.HandleEvent(c.Request.Context(), event); err != nil {
		// Non-2xx makes the processor redeliver; the idempotency guard
		// makes that redelivery safe.
		h.logger.Error("Webhook processing failed",
			zap.String("event_id", event.ID),
			zap.String("type", string(event.Type)),
			zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Event processing failed"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"received": true})
}

// resyncCatalog triggers a bulk catalog resync
func (h *Handler) resyncCatalog(c *gin.Context) {
	summary, err := h.catalog.BulkResync(c.Request.Context())
	if err != nil {
		if errors.Is(err, service.ErrProcessor) {
			c.JSON(http.StatusBadGateway, gin.H{"error": "Payment processor unavailable"})
			return
		}
		h.logger.Error("Catalog resync failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Resync failed"})
		return
	}

	c.JSON(http.StatusOK, summary)
}

// listPurchases returns the caller's purchase history
func (h *Handler) listPurchases(c *gin.Context) {
	userID := c.GetString(ctxUserID)

	purchases, err := h.purchases.GetPurchasesByUserID(c.Request.Context(), userID)
	if err != nil {
		h.logger.Error("Purchase listing failed", zap.String("user_id", userID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load purchases"})
		return
	}
	if purchases == nil {
		purchases = []models.Purchase{}
	}

	c.JSON(http.StatusOK, gin.H{"purchases": purchases})
}

// listProducts returns the active catalog
func (h *Handler) listProducts(c *gin.Context) {
	products, err := h.catalog.ListActiveProducts(c.Request.Context())
	if err != nil {
		h.logger.Error("Product listing failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load products"})
		return
	}
	if products == nil {
		products = []models.Product{}
	}

	c.JSON(http.StatusOK, gin.H{"products": products})
}
