// Package accounts holds the chart of accounts the posting engine resolves
// against. Accounts are addressed by semantic code, never by raw ID, so the
// mapping from financial events to ledger accounts survives re-seeding.
package accounts

import "time"

// Code is a semantic account code.
type Code string

// Semantic codes the posting engine requires. Missing or inactive entries
// make money-moving operations fail hard rather than post partially.
const (
	CodeCash            Code = "CASH"
	CodeLoanReceivable  Code = "LOAN_RECEIVABLE"
	CodeInterestIncome  Code = "INTEREST_INCOME"
	CodeInterestExpense Code = "INTEREST_EXPENSE"
	CodeFeeIncome       Code = "FEE_INCOME"
	CodeClientSavings   Code = "CLIENT_SAVINGS"
	CodeInterbranch     Code = "INTERBRANCH"
	CodeSuspense        Code = "SUSPENSE"
)

// Type categorizes an account for reporting.
type Type string

const (
	TypeAsset     Type = "ASSET"
	TypeLiability Type = "LIABILITY"
	TypeIncome    Type = "INCOME"
	TypeExpense   Type = "EXPENSE"
	TypeEquity    Type = "EQUITY"
)

// Account is one row of the chart of accounts.
type Account struct {
	ID        int64
	Code      Code
	Name      string
	Type      Type
	Active    bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Defaults is the seed chart for a fresh installation.
func Defaults() []Account {
	return []Account{
		{Code: CodeCash, Name: "Cash on Hand", Type: TypeAsset, Active: true},
		{Code: CodeLoanReceivable, Name: "Loans Receivable", Type: TypeAsset, Active: true},
		{Code: CodeInterestIncome, Name: "Interest Income", Type: TypeIncome, Active: true},
		{Code: CodeInterestExpense, Name: "Interest Expense on Savings", Type: TypeExpense, Active: true},
		{Code: CodeFeeIncome, Name: "Fee Income", Type: TypeIncome, Active: true},
		{Code: CodeClientSavings, Name: "Client Savings Control", Type: TypeLiability, Active: true},
		{Code: CodeInterbranch, Name: "Interbranch Transfers", Type: TypeAsset, Active: true},
		{Code: CodeSuspense, Name: "Suspense", Type: TypeEquity, Active: true},
	}
}
