// Package loans implements the lending core: application intake, loan
// lifecycle, payment allocation, and early settlement. All status
// transitions go through the tables below; nothing else in the codebase
// compares status strings.
package loans

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/solara-mfi/solara/internal/loans/emi"
	"github.com/solara-mfi/solara/internal/money"
)

// ApplicationStatus enumerates loan application statuses.
type ApplicationStatus string

const (
	ApplicationPending   ApplicationStatus = "PENDING"
	ApplicationApproved  ApplicationStatus = "APPROVED"
	ApplicationRejected  ApplicationStatus = "REJECTED"
	ApplicationDisbursed ApplicationStatus = "DISBURSED"
)

// applicationTransitions is the monotonic application state machine.
// REJECTED and DISBURSED are terminal.
var applicationTransitions = map[ApplicationStatus][]ApplicationStatus{
	ApplicationPending:  {ApplicationApproved, ApplicationRejected},
	ApplicationApproved: {ApplicationDisbursed},
}

// CanTransition reports whether s may move to target.
func (s ApplicationStatus) CanTransition(target ApplicationStatus) bool {
	for _, allowed := range applicationTransitions[s] {
		if allowed == target {
			return true
		}
	}
	return false
}

// LoanStatus enumerates loan statuses.
type LoanStatus string

const (
	LoanActive     LoanStatus = "ACTIVE"
	LoanClosed     LoanStatus = "CLOSED"
	LoanDefaulted  LoanStatus = "DEFAULTED"
	LoanWrittenOff LoanStatus = "WRITTEN_OFF"
)

// loanTransitions: every exit from ACTIVE is terminal.
var loanTransitions = map[LoanStatus][]LoanStatus{
	LoanActive: {LoanClosed, LoanDefaulted, LoanWrittenOff},
}

// CanTransition reports whether s may move to target.
func (s LoanStatus) CanTransition(target LoanStatus) bool {
	for _, allowed := range loanTransitions[s] {
		if allowed == target {
			return true
		}
	}
	return false
}

// InstallmentStatus enumerates stored installment statuses. OVERDUE is a
// derived overlay reported by EffectiveStatus, never stored, so an
// installment can never transition "back" to a fresh state.
type InstallmentStatus string

const (
	InstallmentPending InstallmentStatus = "PENDING"
	InstallmentPartial InstallmentStatus = "PARTIAL"
	InstallmentPaid    InstallmentStatus = "PAID"
	InstallmentOverdue InstallmentStatus = "OVERDUE"
)

// installmentStatusFor derives the stored status from paid vs total.
func installmentStatusFor(paid, total decimal.Decimal) InstallmentStatus {
	switch {
	case paid.GreaterThanOrEqual(total):
		return InstallmentPaid
	case paid.IsPositive():
		return InstallmentPartial
	default:
		return InstallmentPending
	}
}

// LoanApplication is an applicant's request for a loan product.
type LoanApplication struct {
	ID           int64
	ApplicantID  int64
	ProductCode  string
	Amount       decimal.Decimal
	TenureMonths int
	Purpose      string
	Status       ApplicationStatus
	DecidedAt    *time.Time
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Loan is a disbursed application. The stored EMI is always reproducible
// from the calculator given the stored principal, rate, tenure and type.
type Loan struct {
	ID                   int64
	ApplicationID        int64
	Principal            decimal.Decimal
	AnnualRatePct        decimal.Decimal
	TenureMonths         int
	Interest             emi.InterestType
	EMI                  decimal.Decimal
	OutstandingPrincipal decimal.Decimal
	DisbursedAt          time.Time
	Status               LoanStatus
	ClosedAt             *time.Time
	CreatedAt            time.Time
	UpdatedAt            time.Time
}

// Terms rebuilds the calculator input from the stored loan parameters.
func (l Loan) Terms() emi.Terms {
	return emi.Terms{
		Principal:     l.Principal,
		AnnualRatePct: l.AnnualRatePct,
		TenureMonths:  l.TenureMonths,
		Interest:      l.Interest,
	}
}

// Installment is one scheduled repayment. Rows are never deleted after
// disbursement; payment state only moves forward.
type Installment struct {
	ID            int64
	LoanID        int64
	Number        int
	DueDate       time.Time
	Principal     decimal.Decimal
	Interest      decimal.Decimal
	Total         decimal.Decimal
	PaidAmount    decimal.Decimal
	PaidPrincipal decimal.Decimal
	Status        InstallmentStatus
	Settled       bool
	PaidAt        *time.Time
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Outstanding is the unpaid remainder of the installment total.
func (i Installment) Outstanding() decimal.Decimal {
	return money.Round(i.Total.Sub(i.PaidAmount))
}

// OutstandingPrincipal is the unpaid remainder of the principal component.
func (i Installment) OutstandingPrincipal() decimal.Decimal {
	return money.Round(i.Principal.Sub(i.PaidPrincipal))
}

// EffectiveStatus overlays OVERDUE on unpaid installments past their due
// date. The stored status is untouched.
func (i Installment) EffectiveStatus(now time.Time) InstallmentStatus {
	if i.Status != InstallmentPaid && i.DueDate.Before(now) {
		return InstallmentOverdue
	}
	return i.Status
}

// Payment records one cash receipt against a loan. InstallmentID is nil
// for consolidated early-settlement payments.
type Payment struct {
	ID             int64
	LoanID         int64
	InstallmentID  *int64
	Amount         decimal.Decimal
	PaidAt         time.Time
	Method         string
	Reference      string
	JournalEntryID int64
	CreatedAt      time.Time
}

// SettlementQuote is the early-payoff projection at AsOf. Total =
// Principal + AccruedInterest - Rebate.
type SettlementQuote struct {
	LoanID          int64
	AsOf            time.Time
	Principal       decimal.Decimal
	AccruedInterest decimal.Decimal
	Rebate          decimal.Decimal
	Total           decimal.Decimal
}
