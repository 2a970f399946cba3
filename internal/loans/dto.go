package loans

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/solara-mfi/solara/internal/loans/emi"
)

// CalculateRequest is the boundary payload for the EMI calculator and the
// schedule preview. Amounts accept JSON numbers or numeric strings.
type CalculateRequest struct {
	Principal     decimal.Decimal `json:"principal"`
	AnnualRatePct decimal.Decimal `json:"interestRate"`
	TenureMonths  int             `json:"tenureMonths" validate:"min=1"`
	InterestType  string          `json:"interestType" validate:"required,oneof=FLAT DIMINISHING"`
	FirstDueDate  *time.Time      `json:"firstDueDate,omitempty"`
}

func (r CalculateRequest) terms() emi.Terms {
	return emi.Terms{
		Principal:     r.Principal,
		AnnualRatePct: r.AnnualRatePct,
		TenureMonths:  r.TenureMonths,
		Interest:      emi.InterestType(r.InterestType),
	}
}

// QuoteResponse is the calculator output.
type QuoteResponse struct {
	EMI           string `json:"emi"`
	TotalInterest string `json:"totalInterest"`
	TotalAmount   string `json:"totalAmount"`
}

func toQuoteResponse(q emi.Quote) QuoteResponse {
	return QuoteResponse{
		EMI:           q.EMI.StringFixed(2),
		TotalInterest: q.TotalInterest.StringFixed(2),
		TotalAmount:   q.TotalAmount.StringFixed(2),
	}
}

// ScheduleRowResponse is one previewed schedule row.
type ScheduleRowResponse struct {
	Number    int       `json:"installmentNumber"`
	DueDate   time.Time `json:"dueDate"`
	Principal string    `json:"principal"`
	Interest  string    `json:"interest"`
	Total     string    `json:"total"`
	Balance   string    `json:"balance"`
}

func toScheduleResponse(rows []emi.Installment) []ScheduleRowResponse {
	out := make([]ScheduleRowResponse, 0, len(rows))
	for _, row := range rows {
		out = append(out, ScheduleRowResponse{
			Number:    row.Number,
			DueDate:   row.DueDate,
			Principal: row.Principal.StringFixed(2),
			Interest:  row.Interest.StringFixed(2),
			Total:     row.Total.StringFixed(2),
			Balance:   row.Balance.StringFixed(2),
		})
	}
	return out
}

// CreateApplicationRequest is the application intake payload.
type CreateApplicationRequest struct {
	ApplicantID  int64           `json:"applicantId" validate:"min=1"`
	ProductCode  string          `json:"productCode" validate:"required"`
	Amount       decimal.Decimal `json:"amount"`
	TenureMonths int             `json:"tenureMonths" validate:"min=1"`
	Purpose      string          `json:"purpose,omitempty" validate:"max=500"`
}

// ApplicationResponse is the boundary shape of an application.
type ApplicationResponse struct {
	ID           int64             `json:"id"`
	ApplicantID  int64             `json:"applicantId"`
	ProductCode  string            `json:"productCode"`
	Amount       string            `json:"amount"`
	TenureMonths int               `json:"tenureMonths"`
	Purpose      string            `json:"purpose,omitempty"`
	Status       ApplicationStatus `json:"status"`
	DecidedAt    *time.Time        `json:"decidedAt,omitempty"`
	CreatedAt    time.Time         `json:"createdAt"`
}

func toApplicationResponse(a LoanApplication) ApplicationResponse {
	return ApplicationResponse{
		ID:           a.ID,
		ApplicantID:  a.ApplicantID,
		ProductCode:  a.ProductCode,
		Amount:       a.Amount.StringFixed(2),
		TenureMonths: a.TenureMonths,
		Purpose:      a.Purpose,
		Status:       a.Status,
		DecidedAt:    a.DecidedAt,
		CreatedAt:    a.CreatedAt,
	}
}

// DisburseRequest carries the disbursement dates.
type DisburseRequest struct {
	DisbursedAt  time.Time `json:"disbursedAt" validate:"required"`
	FirstDueDate time.Time `json:"firstDueDate" validate:"required"`
}

// LoanResponse is the boundary shape of a loan, optionally with its
// schedule. Installment statuses are effective: OVERDUE is overlaid here.
type LoanResponse struct {
	ID                   int64                 `json:"id"`
	ApplicationID        int64                 `json:"applicationId"`
	Principal            string                `json:"principal"`
	AnnualRatePct        string                `json:"interestRate"`
	TenureMonths         int                   `json:"tenureMonths"`
	InterestType         emi.InterestType      `json:"interestType"`
	EMI                  string                `json:"emi"`
	OutstandingPrincipal string                `json:"outstandingPrincipal"`
	DisbursedAt          time.Time             `json:"disbursedAt"`
	Status               LoanStatus            `json:"status"`
	ClosedAt             *time.Time            `json:"closedAt,omitempty"`
	Installments         []InstallmentResponse `json:"installments,omitempty"`
}

// InstallmentResponse is the boundary shape of an installment.
type InstallmentResponse struct {
	ID            int64             `json:"id"`
	Number        int               `json:"installmentNumber"`
	DueDate       time.Time         `json:"dueDate"`
	Principal     string            `json:"principal"`
	Interest      string            `json:"interest"`
	Total         string            `json:"total"`
	PaidAmount    string            `json:"paidAmount"`
	Status        InstallmentStatus `json:"status"`
	Settled       bool              `json:"settled,omitempty"`
	PaidAt        *time.Time        `json:"paidAt,omitempty"`
}

func toLoanResponse(l Loan, installments []Installment, now time.Time) LoanResponse {
	resp := LoanResponse{
		ID:                   l.ID,
		ApplicationID:        l.ApplicationID,
		Principal:            l.Principal.StringFixed(2),
		AnnualRatePct:        l.AnnualRatePct.String(),
		TenureMonths:         l.TenureMonths,
		InterestType:         l.Interest,
		EMI:                  l.EMI.StringFixed(2),
		OutstandingPrincipal: l.OutstandingPrincipal.StringFixed(2),
		DisbursedAt:          l.DisbursedAt,
		Status:               l.Status,
		ClosedAt:             l.ClosedAt,
	}
	for _, installment := range installments {
		resp.Installments = append(resp.Installments, InstallmentResponse{
			ID:         installment.ID,
			Number:     installment.Number,
			DueDate:    installment.DueDate,
			Principal:  installment.Principal.StringFixed(2),
			Interest:   installment.Interest.StringFixed(2),
			Total:      installment.Total.StringFixed(2),
			PaidAmount: installment.PaidAmount.StringFixed(2),
			Status:     installment.EffectiveStatus(now),
			Settled:    installment.Settled,
			PaidAt:     installment.PaidAt,
		})
	}
	return resp
}

// RecordPaymentRequest is the payment intake payload.
type RecordPaymentRequest struct {
	InstallmentID int64           `json:"installmentId" validate:"min=1"`
	Amount        decimal.Decimal `json:"amount"`
	PaidAt        *time.Time      `json:"paidAt,omitempty"`
	Method        string          `json:"method" validate:"required,oneof=CASH BANK_TRANSFER MOBILE_MONEY CHEQUE"`
	Reference     string          `json:"reference,omitempty" validate:"max=100"`
}

// PaymentResponse is the boundary shape of a recorded payment.
type PaymentResponse struct {
	ID             int64      `json:"id"`
	LoanID         int64      `json:"loanId"`
	InstallmentID  *int64     `json:"installmentId,omitempty"`
	Amount         string     `json:"amount"`
	PaidAt         time.Time  `json:"paidAt"`
	Method         string     `json:"method"`
	Reference      string     `json:"reference,omitempty"`
	JournalEntryID int64      `json:"journalEntryId"`
}

func toPaymentResponse(p Payment) PaymentResponse {
	return PaymentResponse{
		ID:             p.ID,
		LoanID:         p.LoanID,
		InstallmentID:  p.InstallmentID,
		Amount:         p.Amount.StringFixed(2),
		PaidAt:         p.PaidAt,
		Method:         p.Method,
		Reference:      p.Reference,
		JournalEntryID: p.JournalEntryID,
	}
}

// RecordPaymentResponse pairs the payment with the updated installment.
type RecordPaymentResponse struct {
	Payment        PaymentResponse     `json:"payment"`
	Installment    InstallmentResponse `json:"installment"`
	JournalEntryID int64               `json:"journalEntryId"`
}

// SettlementQuoteResponse is the early payoff projection.
type SettlementQuoteResponse struct {
	LoanID          int64     `json:"loanId"`
	AsOf            time.Time `json:"asOf"`
	Principal       string    `json:"outstandingPrincipal"`
	AccruedInterest string    `json:"accruedInterest"`
	Rebate          string    `json:"rebate"`
	Total           string    `json:"settlementAmount"`
}

func toSettlementQuoteResponse(q SettlementQuote) SettlementQuoteResponse {
	return SettlementQuoteResponse{
		LoanID:          q.LoanID,
		AsOf:            q.AsOf,
		Principal:       q.Principal.StringFixed(2),
		AccruedInterest: q.AccruedInterest.StringFixed(2),
		Rebate:          q.Rebate.StringFixed(2),
		Total:           q.Total.StringFixed(2),
	}
}

// SettlementResponse pairs the closed loan with its consolidated entry.
type SettlementResponse struct {
	Loan           LoanResponse `json:"loan"`
	JournalEntryID int64        `json:"journalEntryId"`
}

// ProcessSettlementRequest is the settlement intake payload. Amount must
// equal the current quote's settlement amount.
type ProcessSettlementRequest struct {
	Amount    decimal.Decimal `json:"amount"`
	Date      *time.Time      `json:"date,omitempty"`
	Method    string          `json:"method" validate:"required,oneof=CASH BANK_TRANSFER MOBILE_MONEY CHEQUE"`
	Reference string          `json:"reference,omitempty" validate:"max=100"`
	Rebate    decimal.Decimal `json:"rebate"`
}
