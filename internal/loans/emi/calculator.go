// Package emi computes equated monthly installments and amortization
// schedules for flat and reducing-balance loans. Everything here is pure:
// the same inputs always produce the same output and nothing is persisted.
package emi

import (
	"math"

	"github.com/shopspring/decimal"

	"github.com/solara-mfi/solara/internal/fault"
	"github.com/solara-mfi/solara/internal/money"
)

// InterestType selects the interest formula.
type InterestType string

const (
	// InterestFlat charges interest once on the original principal over the
	// whole tenure, spread evenly across periods.
	InterestFlat InterestType = "FLAT"
	// InterestDiminishing charges interest each period on the remaining
	// unpaid principal.
	InterestDiminishing InterestType = "DIMINISHING"
)

// Valid reports whether t is a known interest type.
func (t InterestType) Valid() bool {
	return t == InterestFlat || t == InterestDiminishing
}

var (
	hundred     = decimal.NewFromInt(100)
	twelve      = decimal.NewFromInt(12)
	twelveHundr = decimal.NewFromInt(1200)
)

// Terms are the calculator inputs.
type Terms struct {
	Principal     decimal.Decimal
	AnnualRatePct decimal.Decimal
	TenureMonths  int
	Interest      InterestType
}

// Quote is the calculator output. EMI is rounded to currency precision;
// TotalInterest and TotalAmount are consistent with the rounded EMI for
// reducing-balance loans and with the exact flat formula otherwise.
type Quote struct {
	EMI           decimal.Decimal
	TotalInterest decimal.Decimal
	TotalAmount   decimal.Decimal
}

// Validate checks the calculator domain: P>0, N>=1, 0<=R<=100.
func (t Terms) Validate() error {
	if !t.Principal.IsPositive() {
		return fault.Validation("emi: principal must be positive, got %s", t.Principal)
	}
	if t.TenureMonths < 1 {
		return fault.Validation("emi: tenure must be at least 1 month, got %d", t.TenureMonths)
	}
	if t.AnnualRatePct.IsNegative() {
		return fault.Validation("emi: rate must not be negative, got %s", t.AnnualRatePct)
	}
	if t.AnnualRatePct.GreaterThan(hundred) {
		return fault.Validation("emi: rate must not exceed 100%%, got %s", t.AnnualRatePct)
	}
	if !t.Interest.Valid() {
		return fault.Validation("emi: unknown interest type %q", t.Interest)
	}
	return nil
}

// monthlyRate returns R/100/12 as a float for the power computation.
func (t Terms) monthlyRate() float64 {
	r, _ := t.AnnualRatePct.Div(twelveHundr).Float64()
	return r
}

// monthlyRateDec returns R/100/12 at decimal precision for per-period
// interest on the remaining balance.
func (t Terms) monthlyRateDec() decimal.Decimal {
	return t.AnnualRatePct.Div(twelveHundr)
}

// Calculate produces the EMI quote for the given terms.
//
// FLAT: totalInterest = P * (R/100) * (N/12); emi = (P+totalInterest)/N.
// DIMINISHING: emi = P*r*(1+r)^N / ((1+r)^N - 1); totalInterest = emi*N - P.
// A monthly rate below money.RateEpsilon falls back to the zero-interest
// linear split to avoid the vanishing denominator.
func Calculate(t Terms) (Quote, error) {
	if err := t.Validate(); err != nil {
		return Quote{}, err
	}

	n := decimal.NewFromInt(int64(t.TenureMonths))

	switch t.Interest {
	case InterestFlat:
		totalInterest := money.Round(t.Principal.
			Mul(t.AnnualRatePct).Div(hundred).
			Mul(n).Div(twelve))
		totalAmount := t.Principal.Add(totalInterest)
		return Quote{
			EMI:           money.Round(totalAmount.Div(n)),
			TotalInterest: totalInterest,
			TotalAmount:   totalAmount,
		}, nil

	default: // InterestDiminishing
		r := t.monthlyRate()
		var installment decimal.Decimal
		if r < money.RateEpsilon {
			installment = money.Round(t.Principal.Div(n))
		} else {
			principal, _ := t.Principal.Float64()
			factor := math.Pow(1+r, float64(t.TenureMonths))
			installment = money.FromFloat(principal * r * factor / (factor - 1))
		}
		totalInterest := installment.Mul(n).Sub(t.Principal)
		return Quote{
			EMI:           installment,
			TotalInterest: totalInterest,
			TotalAmount:   t.Principal.Add(totalInterest),
		}, nil
	}
}
