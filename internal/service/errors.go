package service

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrEmptyProductList is returned when a checkout request carries no
	// product ids
	ErrEmptyProductList = errors.New("product id list must not be empty")

	// ErrInvalidProductID is returned when a requested product id is blank
	ErrInvalidProductID = errors.New("product ids must be non-empty strings")

	// ErrCurrencyMismatch is returned when the resolved products of one
	// checkout disagree on currency; a single session settles in exactly
	// one currency
	ErrCurrencyMismatch = errors.New("products in one checkout must share a currency")

	// ErrProcessor wraps failures of the payment processor API
	ErrProcessor = errors.New("payment processor request failed")
)

// ProductsNotFoundError enumerates requested product ids that did not
// resolve against the active catalog. Checkout is all-or-nothing: one
// unresolvable id fails the whole request.
type ProductsNotFoundError struct {
	Missing []string
}

func (e *ProductsNotFoundError) Error() string {
	return fmt.Sprintf("products not found or inactive: %s", strings.Join(e.Missing, ", "))
}
