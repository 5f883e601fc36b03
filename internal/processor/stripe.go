// Package processor wraps the Stripe API behind a small client so services
// depend on narrow interfaces instead of the SDK surface.
package processor

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
	stripe "github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/checkout/session"
	"github.com/stripe/stripe-go/v82/customer"
	"github.com/stripe/stripe-go/v82/paymentintent"
	"github.com/stripe/stripe-go/v82/price"
	"github.com/stripe/stripe-go/v82/product"
)

// Client is a thin wrapper over the Stripe SDK
type Client struct{}

// NewClient configures the global Stripe key and returns a client
func NewClient(secretKey string) *Client {
	stripe.Key = secretKey
	return &Client{}
}

// LineItem is one checkout line at a server-resolved price
type LineItem struct {
	Name        string
	Description string
	ImageURL    string
	Currency    string
	UnitAmount  int64
}

// CheckoutSessionParams collects everything needed to open a hosted session
type CheckoutSessionParams struct {
	CustomerID string
	SuccessURL string
	CancelURL  string
	LineItems  []LineItem
	Metadata   map[string]string
}

// CheckoutSession is the subset of the created session the service needs
type CheckoutSession struct {
	ID  string
	URL string
}

// PriceInfo is a resolved Stripe price
type PriceInfo struct {
	UnitAmount int64
	Currency   string
}

// CreateCustomer creates a Stripe customer tagged with the user id and
// returns its id
func (c *Client) CreateCustomer(ctx context.Context, email, userID string) (string, error) {
	params := &stripe.CustomerParams{
		Email: stripe.String(email),
	}
	params.Context = ctx
	params.AddMetadata("user_id", userID)

	cust, err := customer.New(params)
	if err != nil {
		return "", fmt.Errorf("failed to create stripe customer: %w", err)
	}
	return cust.ID, nil
}

// CreateCheckoutSession opens a hosted payment session
func (c *Client) CreateCheckoutSession(ctx context.Context, p CheckoutSessionParams) (*CheckoutSession, error) {
	lineItems := make([]*stripe.CheckoutSessionLineItemParams, 0, len(p.LineItems))
	for _, item := range p.LineItems {
		productData := &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
			Name: stripe.String(item.Name),
		}
		if item.Description != "" {
			productData.Description = stripe.String(item.Description)
		}
		if item.ImageURL != "" {
			productData.Images = stripe.StringSlice([]string{item.ImageURL})
		}

		lineItems = append(lineItems, &stripe.CheckoutSessionLineItemParams{
			PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
				Currency:    stripe.String(item.Currency),
				UnitAmount:  stripe.Int64(item.UnitAmount),
				ProductData: productData,
			},
			Quantity: stripe.Int64(1),
		})
	}

	params := &stripe.CheckoutSessionParams{
		Mode:       stripe.String(string(stripe.CheckoutSessionModePayment)),
		Customer:   stripe.String(p.CustomerID),
		SuccessURL: stripe.String(p.SuccessURL),
		CancelURL:  stripe.String(p.CancelURL),
		LineItems:  lineItems,
	}
	params.Context = ctx
	for k, v := range p.Metadata {
		params.AddMetadata(k, v)
	}

	sess, err := session.New(params)
	if err != nil {
		return nil, fmt.Errorf("failed to create checkout session: %w", err)
	}
	return &CheckoutSession{ID: sess.ID, URL: sess.URL}, nil
}

// GetPaymentIntentStatus fetches the authoritative status of a payment
// intent. The session object's own payment_status is never trusted alone.
func (c *Client) GetPaymentIntentStatus(ctx context.Context, intentID string) (string, error) {
	params := &stripe.PaymentIntentParams{}
	params.Context = ctx

	pi, err := paymentintent.Get(intentID, params)
	if err != nil {
		return "", fmt.Errorf("failed to fetch payment intent %s: %w", intentID, err)
	}
	return string(pi.Status), nil
}

// GetPrice dereferences a Stripe price id
func (c *Client) GetPrice(ctx context.Context, priceID string) (*PriceInfo, error) {
	params := &stripe.PriceParams{}
	params.Context = ctx

	pr, err := price.Get(priceID, params)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch price %s: %w", priceID, err)
	}
	return &PriceInfo{UnitAmount: pr.UnitAmount, Currency: string(pr.Currency)}, nil
}

// ListActiveProducts lists all active Stripe products
func (c *Client) ListActiveProducts(ctx context.Context) ([]*stripe.Product, error) {
	params := &stripe.ProductListParams{
		Active: stripe.Bool(true),
	}
	params.Context = ctx

	var products []*stripe.Product
	iter := product.List(params)
	for iter.Next() {
		products = append(products, iter.Product())
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("failed to list stripe products: %w", err)
	}
	return products, nil
}

// MajorToMinorUnits converts a decimal amount in major currency units to
// Stripe's integer minor units
func MajorToMinorUnits(amount decimal.Decimal) int64 {
	return amount.Mul(decimal.NewFromInt(100)).Round(0).IntPart()
}

// MinorToMajorUnits converts Stripe's integer minor units back to a decimal
// amount in major currency units
func MinorToMajorUnits(amount int64) decimal.Decimal {
	return decimal.New(amount, -2)
}
