package emi

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/solara-mfi/solara/internal/money"
)

// Installment is one row of an amortization schedule. Balance is the
// principal still owed after the row is paid.
type Installment struct {
	Number    int
	DueDate   time.Time
	Principal decimal.Decimal
	Interest  decimal.Decimal
	Total     decimal.Decimal
	Balance   decimal.Decimal
}

// Schedule builds the full amortization schedule. Due dates advance one
// calendar month per period starting at firstDue, clamped to month-end
// when the target month is shorter.
//
// Rounding residue is absorbed by the last row so that the principal
// columns sum to the principal exactly; for flat loans the interest
// columns likewise sum to the quoted total interest exactly.
func Schedule(t Terms, firstDue time.Time) ([]Installment, error) {
	quote, err := Calculate(t)
	if err != nil {
		return nil, err
	}

	rows := make([]Installment, 0, t.TenureMonths)
	switch t.Interest {
	case InterestFlat:
		rows = flatSchedule(t, quote, firstDue)
	default:
		rows = diminishingSchedule(t, quote, firstDue)
	}
	return rows, nil
}

// flatSchedule splits principal and interest evenly; every period is
// independent of the others.
func flatSchedule(t Terms, quote Quote, firstDue time.Time) []Installment {
	n := decimal.NewFromInt(int64(t.TenureMonths))
	perPrincipal := money.Round(t.Principal.Div(n))
	perInterest := money.Round(quote.TotalInterest.Div(n))

	rows := make([]Installment, 0, t.TenureMonths)
	remaining := t.Principal
	for i := 1; i <= t.TenureMonths; i++ {
		principal := perPrincipal
		interest := perInterest
		if i == t.TenureMonths {
			principal = remaining
			interest = quote.TotalInterest.Sub(perInterest.Mul(decimal.NewFromInt(int64(t.TenureMonths - 1))))
		}
		remaining = remaining.Sub(principal)
		rows = append(rows, Installment{
			Number:    i,
			DueDate:   dueDate(firstDue, i),
			Principal: principal,
			Interest:  interest,
			Total:     principal.Add(interest),
			Balance:   remaining,
		})
	}
	return rows
}

// diminishingSchedule walks the remaining balance forward, charging each
// period's interest on what is still owed.
func diminishingSchedule(t Terms, quote Quote, firstDue time.Time) []Installment {
	rate := t.monthlyRateDec()
	if t.monthlyRate() < money.RateEpsilon {
		rate = decimal.Zero
	}

	rows := make([]Installment, 0, t.TenureMonths)
	remaining := t.Principal
	for i := 1; i <= t.TenureMonths; i++ {
		interest := money.Round(remaining.Mul(rate))
		principal := quote.EMI.Sub(interest)
		if i == t.TenureMonths {
			// Last row absorbs the rounding residue: pay off whatever is left.
			principal = remaining
		}
		remaining = remaining.Sub(principal)
		rows = append(rows, Installment{
			Number:    i,
			DueDate:   dueDate(firstDue, i),
			Principal: principal,
			Interest:  interest,
			Total:     principal.Add(interest),
			Balance:   remaining,
		})
	}
	return rows
}

// dueDate advances firstDue by whole calendar months, clamping to the
// last day of shorter months. A Jan 31 first due date yields Feb 28 (or
// 29), Mar 31, Apr 30 and so on, never skipping a month.
func dueDate(firstDue time.Time, period int) time.Time {
	d := firstDue.AddDate(0, period-1, 0)
	if d.Day() != firstDue.Day() {
		// AddDate normalized past the end of the target month.
		d = d.AddDate(0, 0, -d.Day())
	}
	return d
}
