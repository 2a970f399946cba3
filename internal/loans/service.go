package loans

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/solara-mfi/solara/internal/fault"
	"github.com/solara-mfi/solara/internal/ledger"
	"github.com/solara-mfi/solara/internal/loans/emi"
	"github.com/solara-mfi/solara/internal/loans/products"
	"github.com/solara-mfi/solara/internal/money"
)

const daysPerYear = 365

// ProductCatalog is the product lookup collaborator.
type ProductCatalog interface {
	GetByCode(ctx context.Context, code string) (products.Product, error)
}

// Service implements the lending core operations. Every stateful operation
// runs in exactly one transaction; on any failure nothing is persisted.
type Service struct {
	repo    Repository
	catalog ProductCatalog
	engine  *ledger.Engine
	now     func() time.Time
}

// NewService builds the loans service.
func NewService(repo Repository, catalog ProductCatalog, engine *ledger.Engine) *Service {
	return &Service{repo: repo, catalog: catalog, engine: engine, now: time.Now}
}

// WithNow overrides the clock, for deterministic tests.
func (s *Service) WithNow(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

// CalculateEMI is the pure calculator boundary operation.
func (s *Service) CalculateEMI(terms emi.Terms) (emi.Quote, error) {
	return emi.Calculate(terms)
}

// PreviewSchedule generates a schedule without persisting anything.
func (s *Service) PreviewSchedule(terms emi.Terms, firstDue time.Time) ([]emi.Installment, error) {
	if firstDue.IsZero() {
		return nil, fault.Validation("loans: first due date required")
	}
	return emi.Schedule(terms, firstDue)
}

// CreateApplication validates the request against the product's bounds and
// stores a PENDING application.
func (s *Service) CreateApplication(ctx context.Context, input ApplicationInput) (LoanApplication, error) {
	if input.ApplicantID <= 0 {
		return LoanApplication{}, fault.Validation("loans: applicant id required")
	}
	if input.ProductCode == "" {
		return LoanApplication{}, fault.Validation("loans: product code required")
	}
	if !input.Amount.IsPositive() {
		return LoanApplication{}, fault.Validation("loans: amount must be positive, got %s", input.Amount)
	}
	if input.TenureMonths < 1 {
		return LoanApplication{}, fault.Validation("loans: tenure must be at least 1 month, got %d", input.TenureMonths)
	}
	product, err := s.catalog.GetByCode(ctx, input.ProductCode)
	if err != nil {
		return LoanApplication{}, err
	}
	if err := product.CheckRequest(input.Amount, input.TenureMonths); err != nil {
		return LoanApplication{}, err
	}
	input.Amount = money.Round(input.Amount)
	return s.repo.CreateApplication(ctx, input)
}

// ApproveApplication moves a PENDING application to APPROVED.
func (s *Service) ApproveApplication(ctx context.Context, id int64) (LoanApplication, error) {
	return s.decideApplication(ctx, id, ApplicationApproved)
}

// RejectApplication moves a PENDING application to the terminal REJECTED.
func (s *Service) RejectApplication(ctx context.Context, id int64) (LoanApplication, error) {
	return s.decideApplication(ctx, id, ApplicationRejected)
}

func (s *Service) decideApplication(ctx context.Context, id int64, target ApplicationStatus) (LoanApplication, error) {
	if id <= 0 {
		return LoanApplication{}, fault.Validation("loans: application id required")
	}
	var app LoanApplication
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		current, err := tx.GetApplicationForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if !current.Status.CanTransition(target) {
			return fault.StateConflict("loans: application %d is %s, cannot become %s", id, current.Status, target)
		}
		decidedAt := s.now()
		if err := tx.UpdateApplicationStatus(ctx, id, target, decidedAt); err != nil {
			return err
		}
		app = current
		app.Status = target
		app.DecidedAt = &decidedAt
		return nil
	})
	if err != nil {
		return LoanApplication{}, err
	}
	return app, nil
}

// DisburseInput carries the dates for disbursement.
type DisburseInput struct {
	ApplicationID int64
	DisbursedAt   time.Time
	FirstDueDate  time.Time
}

// Disburse atomically creates the loan, generates its full installment
// schedule, flips the application to DISBURSED and posts the disbursement
// journal entry. Any failing step rolls the whole operation back.
func (s *Service) Disburse(ctx context.Context, input DisburseInput) (Loan, error) {
	if input.ApplicationID <= 0 {
		return Loan{}, fault.Validation("loans: application id required")
	}
	if input.DisbursedAt.IsZero() {
		return Loan{}, fault.Validation("loans: disbursement date required")
	}
	if input.FirstDueDate.IsZero() || input.FirstDueDate.Before(input.DisbursedAt) {
		return Loan{}, fault.Validation("loans: first due date must not precede disbursement")
	}

	var loan Loan
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		app, err := tx.GetApplicationForUpdate(ctx, input.ApplicationID)
		if err != nil {
			return err
		}
		if !app.Status.CanTransition(ApplicationDisbursed) {
			return fault.StateConflict("loans: application %d is %s, only APPROVED applications can be disbursed",
				app.ID, app.Status)
		}

		product, err := s.catalog.GetByCode(ctx, app.ProductCode)
		if err != nil {
			return err
		}

		terms := emi.Terms{
			Principal:     app.Amount,
			AnnualRatePct: product.AnnualRatePct,
			TenureMonths:  app.TenureMonths,
			Interest:      product.Interest,
		}
		quote, err := emi.Calculate(terms)
		if err != nil {
			return err
		}
		rows, err := emi.Schedule(terms, input.FirstDueDate)
		if err != nil {
			return err
		}

		created, err := tx.InsertLoan(ctx, LoanInput{
			ApplicationID: app.ID,
			Principal:     app.Amount,
			AnnualRatePct: product.AnnualRatePct,
			TenureMonths:  app.TenureMonths,
			Interest:      product.Interest,
			EMI:           quote.EMI,
			DisbursedAt:   input.DisbursedAt,
		})
		if err != nil {
			return err
		}
		if _, err := tx.InsertInstallments(ctx, created.ID, rows); err != nil {
			return err
		}
		if err := tx.UpdateApplicationStatus(ctx, app.ID, ApplicationDisbursed, s.now()); err != nil {
			return err
		}

		_, err = s.engine.Post(ctx, tx, ledger.Event{
			ID:         uuid.New(),
			Type:       ledger.EventDisbursement,
			Date:       input.DisbursedAt,
			Amount:     app.Amount,
			FeePortion: product.ProcessingFee,
			Memo:       "loan disbursement",
		})
		if err != nil {
			return err
		}

		loan = created
		return nil
	})
	if err != nil {
		return Loan{}, err
	}
	return loan, nil
}

// PaymentRequest is the recordPayment operation input.
type PaymentRequest struct {
	LoanID        int64
	InstallmentID int64
	Amount        decimal.Decimal
	PaidAt        time.Time
	Method        string
	Reference     string
}

// PaymentResult is the recordPayment operation output.
type PaymentResult struct {
	Installment    Installment
	Payment        Payment
	JournalEntryID int64
}

// RecordPayment applies a payment to exactly one installment. The amount
// must not exceed the installment's outstanding balance; callers settle
// multiple installments with separate calls. Allocation, status updates
// and the journal entry share one transaction with the target rows locked.
func (s *Service) RecordPayment(ctx context.Context, req PaymentRequest) (PaymentResult, error) {
	if req.LoanID <= 0 || req.InstallmentID <= 0 {
		return PaymentResult{}, fault.Validation("loans: loan and installment ids required")
	}
	if !req.Amount.IsPositive() {
		return PaymentResult{}, fault.Validation("loans: payment amount must be positive, got %s", req.Amount)
	}
	if req.Method == "" {
		return PaymentResult{}, fault.Validation("loans: payment method required")
	}
	paidAt := req.PaidAt
	if paidAt.IsZero() {
		paidAt = s.now()
	}
	amount := money.Round(req.Amount)

	var result PaymentResult
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		// Lock the loan before the installment; settlement locks in the
		// same order.
		loan, err := tx.GetLoanForUpdate(ctx, req.LoanID)
		if err != nil {
			return err
		}
		if loan.Status != LoanActive {
			return fault.StateConflict("loans: loan %d is %s, payments apply to ACTIVE loans only", loan.ID, loan.Status)
		}
		installment, err := tx.GetInstallmentForUpdate(ctx, req.InstallmentID)
		if err != nil {
			return err
		}
		if installment.LoanID != req.LoanID {
			return fault.NotFound("loans: installment %d does not belong to loan %d", req.InstallmentID, req.LoanID)
		}
		if installment.Status == InstallmentPaid {
			return fault.StateConflict("loans: installment %d is already paid", installment.ID)
		}

		outstanding := installment.Outstanding()
		if amount.GreaterThan(outstanding) {
			return fault.Validation("loans: amount %s exceeds installment outstanding %s; pay further installments separately",
				amount, outstanding)
		}

		principalPortion := decimal.Min(amount, installment.OutstandingPrincipal())
		interestPortion := amount.Sub(principalPortion)

		newPaid := money.Round(installment.PaidAmount.Add(amount))
		newPaidPrincipal := money.Round(installment.PaidPrincipal.Add(principalPortion))
		newStatus := installmentStatusFor(newPaid, installment.Total)
		var paidAtPtr *time.Time
		if newStatus == InstallmentPaid {
			paidAtPtr = &paidAt
		}
		if err := tx.UpdateInstallmentPayment(ctx, installment.ID, newPaid, newPaidPrincipal, newStatus, paidAtPtr); err != nil {
			return err
		}

		newOutstanding := money.Round(loan.OutstandingPrincipal.Sub(principalPortion))
		if newOutstanding.IsNegative() {
			newOutstanding = decimal.Zero
		}
		if err := tx.UpdateLoanOutstanding(ctx, loan.ID, newOutstanding); err != nil {
			return err
		}

		entry, err := s.engine.Post(ctx, tx, ledger.Event{
			ID:               uuid.New(),
			Type:             ledger.EventRepayment,
			Date:             paidAt,
			Amount:           amount,
			PrincipalPortion: principalPortion,
			InterestPortion:  interestPortion,
			Memo:             "loan repayment",
		})
		if err != nil {
			return err
		}

		installmentID := installment.ID
		payment, err := tx.InsertPayment(ctx, PaymentInput{
			LoanID:         loan.ID,
			InstallmentID:  &installmentID,
			Amount:         amount,
			PaidAt:         paidAt,
			Method:         req.Method,
			Reference:      req.Reference,
			JournalEntryID: entry.ID,
		})
		if err != nil {
			return err
		}

		if newStatus == InstallmentPaid {
			unpaid, err := tx.CountUnpaidInstallments(ctx, loan.ID)
			if err != nil {
				return err
			}
			if unpaid == 0 && loan.Status.CanTransition(LoanClosed) {
				closedAt := paidAt
				if err := tx.UpdateLoanStatus(ctx, loan.ID, LoanClosed, &closedAt); err != nil {
					return err
				}
			}
		}

		installment.PaidAmount = newPaid
		installment.PaidPrincipal = newPaidPrincipal
		installment.Status = newStatus
		installment.PaidAt = paidAtPtr
		result = PaymentResult{Installment: installment, Payment: payment, JournalEntryID: entry.ID}
		return nil
	})
	if err != nil {
		return PaymentResult{}, err
	}
	return result, nil
}

// QuoteSettlement projects the early payoff figure at asOf without
// mutating anything.
func (s *Service) QuoteSettlement(ctx context.Context, loanID int64, asOf time.Time, rebate decimal.Decimal) (SettlementQuote, error) {
	if loanID <= 0 {
		return SettlementQuote{}, fault.Validation("loans: loan id required")
	}
	if asOf.IsZero() {
		asOf = s.now()
	}
	loan, err := s.repo.GetLoan(ctx, loanID)
	if err != nil {
		return SettlementQuote{}, err
	}
	if loan.Status != LoanActive {
		return SettlementQuote{}, fault.StateConflict("loans: loan %d is %s, settlement applies to ACTIVE loans only", loan.ID, loan.Status)
	}
	installments, err := s.repo.ListInstallments(ctx, loanID)
	if err != nil {
		return SettlementQuote{}, err
	}
	return computeSettlement(loan, installments, asOf, rebate)
}

// computeSettlement: remaining unpaid principal, plus interest accrued
// daily on that principal since the last due date for reducing-balance
// loans. Flat loans accrue nothing extra: their interest was computed
// up front over the full tenure, and the unbilled part is simply waived.
func computeSettlement(loan Loan, installments []Installment, asOf time.Time, rebate decimal.Decimal) (SettlementQuote, error) {
	if rebate.IsNegative() {
		return SettlementQuote{}, fault.Validation("loans: rebate must not be negative")
	}

	principal := decimal.Zero
	anchor := loan.DisbursedAt
	for _, installment := range installments {
		principal = principal.Add(installment.OutstandingPrincipal())
		if !installment.DueDate.After(asOf) && installment.DueDate.After(anchor) {
			anchor = installment.DueDate
		}
	}
	principal = money.Round(principal)

	accrued := decimal.Zero
	if loan.Interest == emi.InterestDiminishing && principal.IsPositive() {
		days := int(asOf.Sub(anchor).Hours() / 24)
		if days > 0 {
			dailyRate := loan.AnnualRatePct.Div(decimal.NewFromInt(100)).Div(decimal.NewFromInt(daysPerYear))
			accrued = money.Round(principal.Mul(dailyRate).Mul(decimal.NewFromInt(int64(days))))
		}
	}

	rebate = money.Round(rebate)
	if rebate.GreaterThan(accrued) {
		return SettlementQuote{}, fault.Validation("loans: rebate %s exceeds accrued interest %s", rebate, accrued)
	}

	return SettlementQuote{
		LoanID:          loan.ID,
		AsOf:            asOf,
		Principal:       principal,
		AccruedInterest: accrued,
		Rebate:          rebate,
		Total:           principal.Add(accrued).Sub(rebate),
	}, nil
}

// SettlementRequest is the processEarlySettlement operation input. Amount
// must match the in-transaction recomputation of the quote.
type SettlementRequest struct {
	LoanID    int64
	Amount    decimal.Decimal
	Date      time.Time
	Method    string
	Reference string
	Rebate    decimal.Decimal
}

// SettlementResult is the processEarlySettlement operation output.
type SettlementResult struct {
	Loan           Loan
	JournalEntryID int64
}

// ProcessSettlement consumes a settlement quote: it re-derives the payoff
// figure under lock, rejects a stale amount, marks every remaining
// installment PAID with the settlement flag, posts one consolidated
// journal entry and closes the loan.
func (s *Service) ProcessSettlement(ctx context.Context, req SettlementRequest) (SettlementResult, error) {
	if req.LoanID <= 0 {
		return SettlementResult{}, fault.Validation("loans: loan id required")
	}
	if !req.Amount.IsPositive() {
		return SettlementResult{}, fault.Validation("loans: settlement amount must be positive, got %s", req.Amount)
	}
	if req.Method == "" {
		return SettlementResult{}, fault.Validation("loans: payment method required")
	}
	date := req.Date
	if date.IsZero() {
		date = s.now()
	}

	var result SettlementResult
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		loan, err := tx.GetLoanForUpdate(ctx, req.LoanID)
		if err != nil {
			return err
		}
		if loan.Status != LoanActive {
			return fault.StateConflict("loans: loan %d is %s, settlement applies to ACTIVE loans only", loan.ID, loan.Status)
		}
		installments, err := tx.ListInstallmentsForUpdate(ctx, loan.ID)
		if err != nil {
			return err
		}
		quote, err := computeSettlement(loan, installments, date, req.Rebate)
		if err != nil {
			return err
		}
		if !quote.Total.IsPositive() {
			return fault.StateConflict("loans: loan %d has nothing outstanding to settle", loan.ID)
		}
		if !money.Equal2(req.Amount, quote.Total) {
			return fault.Validation("loans: settlement amount %s does not match payoff %s; request a fresh quote",
				req.Amount, quote.Total)
		}

		if err := tx.MarkInstallmentsSettled(ctx, loan.ID, date); err != nil {
			return err
		}
		if err := tx.UpdateLoanOutstanding(ctx, loan.ID, decimal.Zero); err != nil {
			return err
		}

		entry, err := s.engine.Post(ctx, tx, ledger.Event{
			ID:               uuid.New(),
			Type:             ledger.EventSettlement,
			Date:             date,
			Amount:           quote.Total,
			PrincipalPortion: quote.Principal,
			InterestPortion:  quote.AccruedInterest.Sub(quote.Rebate),
			Memo:             "early settlement",
		})
		if err != nil {
			return err
		}

		if _, err := tx.InsertPayment(ctx, PaymentInput{
			LoanID:         loan.ID,
			Amount:         quote.Total,
			PaidAt:         date,
			Method:         req.Method,
			Reference:      req.Reference,
			JournalEntryID: entry.ID,
		}); err != nil {
			return err
		}

		closedAt := date
		if err := tx.UpdateLoanStatus(ctx, loan.ID, LoanClosed, &closedAt); err != nil {
			return err
		}

		loan.Status = LoanClosed
		loan.ClosedAt = &closedAt
		loan.OutstandingPrincipal = decimal.Zero
		result = SettlementResult{Loan: loan, JournalEntryID: entry.ID}
		return nil
	})
	if err != nil {
		return SettlementResult{}, err
	}
	return result, nil
}

// MarkDefaulted transitions an ACTIVE loan to the terminal DEFAULTED
// status. Called by the overdue sweep once arrears exceed the grace
// period.
func (s *Service) MarkDefaulted(ctx context.Context, loanID int64) (Loan, error) {
	if loanID <= 0 {
		return Loan{}, fault.Validation("loans: loan id required")
	}
	var loan Loan
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		current, err := tx.GetLoanForUpdate(ctx, loanID)
		if err != nil {
			return err
		}
		if !current.Status.CanTransition(LoanDefaulted) {
			return fault.StateConflict("loans: loan %d is %s, cannot default", current.ID, current.Status)
		}
		if err := tx.UpdateLoanStatus(ctx, current.ID, LoanDefaulted, nil); err != nil {
			return err
		}
		loan = current
		loan.Status = LoanDefaulted
		return nil
	})
	if err != nil {
		return Loan{}, err
	}
	return loan, nil
}

// GetLoan returns one loan with its installment schedule.
func (s *Service) GetLoan(ctx context.Context, loanID int64) (Loan, []Installment, error) {
	if loanID <= 0 {
		return Loan{}, nil, fault.Validation("loans: loan id required")
	}
	loan, err := s.repo.GetLoan(ctx, loanID)
	if err != nil {
		return Loan{}, nil, err
	}
	installments, err := s.repo.ListInstallments(ctx, loanID)
	if err != nil {
		return Loan{}, nil, err
	}
	return loan, installments, nil
}

// GetApplication returns one application.
func (s *Service) GetApplication(ctx context.Context, id int64) (LoanApplication, error) {
	if id <= 0 {
		return LoanApplication{}, fault.Validation("loans: application id required")
	}
	return s.repo.GetApplication(ctx, id)
}

// ListApplications returns applications, optionally filtered by status.
func (s *Service) ListApplications(ctx context.Context, status ApplicationStatus) ([]LoanApplication, error) {
	return s.repo.ListApplications(ctx, status)
}

// ListPayments returns every payment recorded against a loan.
func (s *Service) ListPayments(ctx context.Context, loanID int64) ([]Payment, error) {
	if loanID <= 0 {
		return nil, fault.Validation("loans: loan id required")
	}
	return s.repo.ListPayments(ctx, loanID)
}

// ListLoansInArrears returns active loans with at least one installment
// unpaid past the cutoff date.
func (s *Service) ListLoansInArrears(ctx context.Context, dueBefore time.Time) ([]Loan, error) {
	return s.repo.ListLoansInArrears(ctx, dueBefore)
}
