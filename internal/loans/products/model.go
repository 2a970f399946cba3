// Package products manages the loan product catalog (interest type, rate,
// amount and tenure bounds, fees). Products are static configuration, so
// reads go through a Redis cache; loan and installment state never does.
package products

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/solara-mfi/solara/internal/fault"
	"github.com/solara-mfi/solara/internal/loans/emi"
)

// Product is one loan product definition.
type Product struct {
	ID            int64            `json:"id"`
	Code          string           `json:"code"`
	Name          string           `json:"name"`
	Interest      emi.InterestType `json:"interestType"`
	AnnualRatePct decimal.Decimal  `json:"interestRate"`
	MinAmount     decimal.Decimal  `json:"minAmount"`
	MaxAmount     decimal.Decimal  `json:"maxAmount"`
	MinTenure     int              `json:"minTenureMonths"`
	MaxTenure     int              `json:"maxTenureMonths"`
	ProcessingFee decimal.Decimal  `json:"processingFee"`
	Active        bool             `json:"active"`
	CreatedAt     time.Time        `json:"createdAt"`
	UpdatedAt     time.Time        `json:"updatedAt"`
}

// Validate checks the product definition itself.
func (p Product) Validate() error {
	if p.Code == "" {
		return fault.Validation("products: code required")
	}
	if p.Name == "" {
		return fault.Validation("products: name required")
	}
	if !p.Interest.Valid() {
		return fault.Validation("products: unknown interest type %q", p.Interest)
	}
	if p.AnnualRatePct.IsNegative() || p.AnnualRatePct.GreaterThan(decimal.NewFromInt(100)) {
		return fault.Validation("products: rate must be within [0,100], got %s", p.AnnualRatePct)
	}
	if !p.MinAmount.IsPositive() || p.MaxAmount.LessThan(p.MinAmount) {
		return fault.Validation("products: amount bounds invalid (%s..%s)", p.MinAmount, p.MaxAmount)
	}
	if p.MinTenure < 1 || p.MaxTenure < p.MinTenure {
		return fault.Validation("products: tenure bounds invalid (%d..%d)", p.MinTenure, p.MaxTenure)
	}
	if p.ProcessingFee.IsNegative() {
		return fault.Validation("products: processing fee must not be negative")
	}
	return nil
}

// CheckRequest validates a requested amount and tenure against the
// product's bounds.
func (p Product) CheckRequest(amount decimal.Decimal, tenureMonths int) error {
	if !p.Active {
		return fault.StateConflict("products: product %s is not active", p.Code)
	}
	if amount.LessThan(p.MinAmount) || amount.GreaterThan(p.MaxAmount) {
		return fault.Validation("products: amount %s outside product bounds %s..%s",
			amount, p.MinAmount, p.MaxAmount)
	}
	if tenureMonths < p.MinTenure || tenureMonths > p.MaxTenure {
		return fault.Validation("products: tenure %d outside product bounds %d..%d",
			tenureMonths, p.MinTenure, p.MaxTenure)
	}
	return nil
}
