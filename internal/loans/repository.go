package loans

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/solara-mfi/solara/internal/ledger"
	"github.com/solara-mfi/solara/internal/loans/emi"
)

// Repository defines data access for loans outside a transaction.
type Repository interface {
	CreateApplication(ctx context.Context, input ApplicationInput) (LoanApplication, error)
	GetApplication(ctx context.Context, id int64) (LoanApplication, error)
	ListApplications(ctx context.Context, status ApplicationStatus) ([]LoanApplication, error)
	GetLoan(ctx context.Context, id int64) (Loan, error)
	ListInstallments(ctx context.Context, loanID int64) ([]Installment, error)
	ListPayments(ctx context.Context, loanID int64) ([]Payment, error)
	// ListLoansInArrears returns active loans having at least one unpaid
	// installment due before the cutoff. Used by the overdue sweep.
	ListLoansInArrears(ctx context.Context, dueBefore time.Time) ([]Loan, error)
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
}

// TxRepository exposes the operations available within one transaction.
// It embeds the ledger posting methods so a loan mutation and its journal
// entry commit or roll back together.
type TxRepository interface {
	ledger.TxPoster

	GetApplicationForUpdate(ctx context.Context, id int64) (LoanApplication, error)
	UpdateApplicationStatus(ctx context.Context, id int64, status ApplicationStatus, decidedAt time.Time) error

	InsertLoan(ctx context.Context, input LoanInput) (Loan, error)
	InsertInstallments(ctx context.Context, loanID int64, rows []emi.Installment) ([]Installment, error)

	GetLoanForUpdate(ctx context.Context, id int64) (Loan, error)
	GetInstallmentForUpdate(ctx context.Context, id int64) (Installment, error)
	ListInstallmentsForUpdate(ctx context.Context, loanID int64) ([]Installment, error)

	UpdateInstallmentPayment(ctx context.Context, id int64, paidAmount, paidPrincipal decimal.Decimal, status InstallmentStatus, paidAt *time.Time) error
	MarkInstallmentsSettled(ctx context.Context, loanID int64, settledAt time.Time) error
	UpdateLoanOutstanding(ctx context.Context, id int64, outstanding decimal.Decimal) error
	UpdateLoanStatus(ctx context.Context, id int64, status LoanStatus, closedAt *time.Time) error
	CountUnpaidInstallments(ctx context.Context, loanID int64) (int, error)

	InsertPayment(ctx context.Context, input PaymentInput) (Payment, error)
}

// ApplicationInput is the persisted shape of a new application.
type ApplicationInput struct {
	ApplicantID  int64
	ProductCode  string
	Amount       decimal.Decimal
	TenureMonths int
	Purpose      string
}

// LoanInput is the persisted shape of a new loan.
type LoanInput struct {
	ApplicationID int64
	Principal     decimal.Decimal
	AnnualRatePct decimal.Decimal
	TenureMonths  int
	Interest      emi.InterestType
	EMI           decimal.Decimal
	DisbursedAt   time.Time
}

// PaymentInput is the persisted shape of a new payment.
type PaymentInput struct {
	LoanID         int64
	InstallmentID  *int64
	Amount         decimal.Decimal
	PaidAt         time.Time
	Method         string
	Reference      string
	JournalEntryID int64
}
