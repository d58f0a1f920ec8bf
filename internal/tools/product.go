package tools

import (
	"context"
	"fmt"
	"math"
	"math/big"
	"regexp"
	"strconv"
	"strings"
)

const (
	GetProductPrice = "get_product_price"
	CalculateTotal  = "calculate_total"

	// NotFound is get_product_price's result for a product not in the catalog.
	NotFound = "not found"
)

// DefaultPrices is the built-in catalog.
func DefaultPrices() map[string]int {
	return map[string]int{
		"bike":   100,
		"tv":     200,
		"laptop": 300,
	}
}

// Catalog is a fixed product → price table.
type Catalog struct {
	prices map[string]int
}

// NewCatalog copies prices; later changes to the map do not affect it.
func NewCatalog(prices map[string]int) *Catalog {
	c := &Catalog{prices: make(map[string]int, len(prices))}
	for k, v := range prices {
		c.prices[k] = v
	}
	return c
}

// Price looks up a product by exact name.
func (c *Catalog) Price(product string) (int, bool) {
	p, ok := c.prices[product]
	return p, ok
}

// GetProductPrice returns the catalog price of the named product, or NotFound.
func (c *Catalog) GetProductPrice(_ context.Context, arg string) (string, error) {
	p, ok := c.Price(strings.TrimSpace(arg))
	if !ok {
		return NotFound, nil
	}
	return strconv.Itoa(p), nil
}

// decimalPattern is a plain decimal amount with an optional short exponent.
// Hex, fractions like 3/2 and huge exponents are not amounts.
var decimalPattern = regexp.MustCompile(`^[+-]?(?:[0-9]+\.?[0-9]*|\.[0-9]+)(?:[eE][+-]?[0-9]{1,2})?$`)

const maxAmountLen = 64

// CalculateTotalFn adds 20% tax to a decimal amount and truncates the result
// toward zero: 200 → 240, 100 → 120.
func CalculateTotalFn(_ context.Context, arg string) (string, error) {
	s := strings.TrimSpace(arg)
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		if n > math.MaxInt64/6 || n < math.MinInt64/6 {
			return "", fmt.Errorf("amount %s out of range", s)
		}
		return strconv.FormatInt(n*6/5, 10), nil
	}

	if len(s) > maxAmountLen || !decimalPattern.MatchString(s) {
		return "", fmt.Errorf("amount %q is not a number", arg)
	}
	// Rational arithmetic keeps 0.5 × 1.2 exactly 0.6.
	r, ok := new(big.Rat).SetString(s)
	if !ok {
		return "", fmt.Errorf("amount %q is not a number", arg)
	}
	r.Mul(r, big.NewRat(6, 5))
	q := new(big.Int).Quo(r.Num(), r.Denom())
	return q.String(), nil
}

// NewProductTools registers get_product_price and calculate_total against
// catalog.
func NewProductTools(catalog *Catalog) *Registry {
	r := NewRegistry()
	r.Register(GetProductPrice, catalog.GetProductPrice) //nolint:errcheck
	r.Register(CalculateTotal, CalculateTotalFn)         //nolint:errcheck
	return r
}

// DefaultRegistry is NewProductTools over DefaultPrices.
func DefaultRegistry() *Registry {
	return NewProductTools(NewCatalog(DefaultPrices()))
}
