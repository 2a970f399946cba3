package loans

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/solara-mfi/solara/internal/fault"
	"github.com/solara-mfi/solara/internal/ledger"
	"github.com/solara-mfi/solara/internal/ledger/accounts"
	"github.com/solara-mfi/solara/internal/loans/emi"
	"github.com/solara-mfi/solara/internal/loans/products"
)

// memoryRepo backs the service with maps. WithTx snapshots the whole state
// before fn and restores it on error, mimicking a rollback.
type memoryRepo struct {
	applications map[int64]LoanApplication
	loans        map[int64]Loan
	installments map[int64]Installment
	payments     []Payment
	accounts     map[accounts.Code]accounts.Account
	entries      []ledger.JournalEntry
	entryLines   map[int64][]ledger.LineInput
	nextID       int64
}

func newMemoryRepo() *memoryRepo {
	r := &memoryRepo{
		applications: make(map[int64]LoanApplication),
		loans:        make(map[int64]Loan),
		installments: make(map[int64]Installment),
		accounts:     make(map[accounts.Code]accounts.Account),
		entryLines:   make(map[int64][]ledger.LineInput),
	}
	for i, a := range accounts.Defaults() {
		a.ID = int64(i + 1)
		r.accounts[a.Code] = a
	}
	return r
}

func (r *memoryRepo) id() int64 {
	r.nextID++
	return r.nextID
}

func cloneMap[K comparable, V any](src map[K]V) map[K]V {
	dst := make(map[K]V, len(src))
	for k, v := range src {
		dst[k] = v
	}
	return dst
}

func (r *memoryRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	apps, loans, installments := cloneMap(r.applications), cloneMap(r.loans), cloneMap(r.installments)
	payments := append([]Payment(nil), r.payments...)
	entries := append([]ledger.JournalEntry(nil), r.entries...)
	entryLines := cloneMap(r.entryLines)
	nextID := r.nextID

	if err := fn(ctx, &memoryTx{r}); err != nil {
		r.applications, r.loans, r.installments = apps, loans, installments
		r.payments, r.entries, r.entryLines = payments, entries, entryLines
		r.nextID = nextID
		return err
	}
	return nil
}

func (r *memoryRepo) CreateApplication(ctx context.Context, input ApplicationInput) (LoanApplication, error) {
	app := LoanApplication{
		ID:           r.id(),
		ApplicantID:  input.ApplicantID,
		ProductCode:  input.ProductCode,
		Amount:       input.Amount,
		TenureMonths: input.TenureMonths,
		Purpose:      input.Purpose,
		Status:       ApplicationPending,
	}
	r.applications[app.ID] = app
	return app, nil
}

func (r *memoryRepo) GetApplication(ctx context.Context, id int64) (LoanApplication, error) {
	app, ok := r.applications[id]
	if !ok {
		return LoanApplication{}, fault.NotFound("loans: application %d not found", id)
	}
	return app, nil
}

func (r *memoryRepo) ListApplications(ctx context.Context, status ApplicationStatus) ([]LoanApplication, error) {
	var out []LoanApplication
	for _, app := range r.applications {
		if status == "" || app.Status == status {
			out = append(out, app)
		}
	}
	return out, nil
}

func (r *memoryRepo) GetLoan(ctx context.Context, id int64) (Loan, error) {
	loan, ok := r.loans[id]
	if !ok {
		return Loan{}, fault.NotFound("loans: loan %d not found", id)
	}
	return loan, nil
}

func (r *memoryRepo) ListInstallments(ctx context.Context, loanID int64) ([]Installment, error) {
	var out []Installment
	for number := 1; ; number++ {
		found := false
		for _, installment := range r.installments {
			if installment.LoanID == loanID && installment.Number == number {
				out = append(out, installment)
				found = true
				break
			}
		}
		if !found {
			return out, nil
		}
	}
}

func (r *memoryRepo) ListPayments(ctx context.Context, loanID int64) ([]Payment, error) {
	var out []Payment
	for _, p := range r.payments {
		if p.LoanID == loanID {
			out = append(out, p)
		}
	}
	return out, nil
}

func (r *memoryRepo) ListLoansInArrears(ctx context.Context, dueBefore time.Time) ([]Loan, error) {
	seen := make(map[int64]bool)
	var out []Loan
	for _, installment := range r.installments {
		loan := r.loans[installment.LoanID]
		if loan.Status != LoanActive || seen[loan.ID] {
			continue
		}
		if installment.Status != InstallmentPaid && installment.DueDate.Before(dueBefore) {
			seen[loan.ID] = true
			out = append(out, loan)
		}
	}
	return out, nil
}

type memoryTx struct {
	repo *memoryRepo
}

func (t *memoryTx) GetAccountForPosting(ctx context.Context, code accounts.Code) (accounts.Account, error) {
	a, ok := t.repo.accounts[code]
	if !ok {
		return accounts.Account{}, fault.NotFound("ledger: no account with code %s", code)
	}
	return a, nil
}

func (t *memoryTx) InsertJournalEntry(ctx context.Context, in ledger.EntryInput) (ledger.JournalEntry, error) {
	entry := ledger.JournalEntry{
		ID:        t.repo.id(),
		Date:      in.Date,
		EventType: in.EventType,
		SourceID:  in.SourceID,
		Narration: in.Narration,
		Status:    ledger.EntryStatusPosted,
	}
	entry.Number = entry.ID
	t.repo.entries = append(t.repo.entries, entry)
	return entry, nil
}

func (t *memoryTx) InsertJournalLines(ctx context.Context, entryID int64, lines []ledger.LineInput) error {
	t.repo.entryLines[entryID] = lines
	return nil
}

func (t *memoryTx) GetApplicationForUpdate(ctx context.Context, id int64) (LoanApplication, error) {
	return t.repo.GetApplication(ctx, id)
}

func (t *memoryTx) UpdateApplicationStatus(ctx context.Context, id int64, status ApplicationStatus, decidedAt time.Time) error {
	app := t.repo.applications[id]
	app.Status = status
	app.DecidedAt = &decidedAt
	t.repo.applications[id] = app
	return nil
}

func (t *memoryTx) InsertLoan(ctx context.Context, input LoanInput) (Loan, error) {
	loan := Loan{
		ID:                   t.repo.id(),
		ApplicationID:        input.ApplicationID,
		Principal:            input.Principal,
		AnnualRatePct:        input.AnnualRatePct,
		TenureMonths:         input.TenureMonths,
		Interest:             input.Interest,
		EMI:                  input.EMI,
		OutstandingPrincipal: input.Principal,
		DisbursedAt:          input.DisbursedAt,
		Status:               LoanActive,
	}
	t.repo.loans[loan.ID] = loan
	return loan, nil
}

func (t *memoryTx) InsertInstallments(ctx context.Context, loanID int64, rows []emi.Installment) ([]Installment, error) {
	out := make([]Installment, 0, len(rows))
	for _, row := range rows {
		installment := Installment{
			ID:            t.repo.id(),
			LoanID:        loanID,
			Number:        row.Number,
			DueDate:       row.DueDate,
			Principal:     row.Principal,
			Interest:      row.Interest,
			Total:         row.Total,
			PaidAmount:    decimal.Zero,
			PaidPrincipal: decimal.Zero,
			Status:        InstallmentPending,
		}
		t.repo.installments[installment.ID] = installment
		out = append(out, installment)
	}
	return out, nil
}

func (t *memoryTx) GetLoanForUpdate(ctx context.Context, id int64) (Loan, error) {
	return t.repo.GetLoan(ctx, id)
}

func (t *memoryTx) GetInstallmentForUpdate(ctx context.Context, id int64) (Installment, error) {
	installment, ok := t.repo.installments[id]
	if !ok {
		return Installment{}, fault.NotFound("loans: installment %d not found", id)
	}
	return installment, nil
}

func (t *memoryTx) ListInstallmentsForUpdate(ctx context.Context, loanID int64) ([]Installment, error) {
	return t.repo.ListInstallments(ctx, loanID)
}

func (t *memoryTx) UpdateInstallmentPayment(ctx context.Context, id int64, paidAmount, paidPrincipal decimal.Decimal, status InstallmentStatus, paidAt *time.Time) error {
	installment := t.repo.installments[id]
	installment.PaidAmount = paidAmount
	installment.PaidPrincipal = paidPrincipal
	installment.Status = status
	installment.PaidAt = paidAt
	t.repo.installments[id] = installment
	return nil
}

func (t *memoryTx) MarkInstallmentsSettled(ctx context.Context, loanID int64, settledAt time.Time) error {
	for id, installment := range t.repo.installments {
		if installment.LoanID != loanID || installment.Status == InstallmentPaid {
			continue
		}
		installment.PaidAmount = installment.Total
		installment.PaidPrincipal = installment.Principal
		installment.Status = InstallmentPaid
		installment.Settled = true
		installment.PaidAt = &settledAt
		t.repo.installments[id] = installment
	}
	return nil
}

func (t *memoryTx) UpdateLoanOutstanding(ctx context.Context, id int64, outstanding decimal.Decimal) error {
	loan := t.repo.loans[id]
	loan.OutstandingPrincipal = outstanding
	t.repo.loans[id] = loan
	return nil
}

func (t *memoryTx) UpdateLoanStatus(ctx context.Context, id int64, status LoanStatus, closedAt *time.Time) error {
	loan := t.repo.loans[id]
	loan.Status = status
	loan.ClosedAt = closedAt
	t.repo.loans[id] = loan
	return nil
}

func (t *memoryTx) CountUnpaidInstallments(ctx context.Context, loanID int64) (int, error) {
	count := 0
	for _, installment := range t.repo.installments {
		if installment.LoanID == loanID && installment.Status != InstallmentPaid {
			count++
		}
	}
	return count, nil
}

func (t *memoryTx) InsertPayment(ctx context.Context, input PaymentInput) (Payment, error) {
	payment := Payment{
		ID:             t.repo.id(),
		LoanID:         input.LoanID,
		InstallmentID:  input.InstallmentID,
		Amount:         input.Amount,
		PaidAt:         input.PaidAt,
		Method:         input.Method,
		Reference:      input.Reference,
		JournalEntryID: input.JournalEntryID,
	}
	t.repo.payments = append(t.repo.payments, payment)
	return payment, nil
}

type staticCatalog map[string]products.Product

func (c staticCatalog) GetByCode(ctx context.Context, code string) (products.Product, error) {
	p, ok := c[code]
	if !ok {
		return products.Product{}, fault.NotFound("products: no product with code %s", code)
	}
	return p, nil
}

func amount(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func testCatalog() staticCatalog {
	return staticCatalog{
		"MICRO-FLAT": {
			ID: 1, Code: "MICRO-FLAT", Name: "Micro Flat",
			Interest:      emi.InterestFlat,
			AnnualRatePct: amount("0"),
			MinAmount:     amount("100"), MaxAmount: amount("50000"),
			MinTenure: 1, MaxTenure: 24,
			ProcessingFee: decimal.Zero,
			Active:        true,
		},
		"SME-RB": {
			ID: 2, Code: "SME-RB", Name: "SME Reducing Balance",
			Interest:      emi.InterestDiminishing,
			AnnualRatePct: amount("12"),
			MinAmount:     amount("1000"), MaxAmount: amount("500000"),
			MinTenure: 3, MaxTenure: 60,
			ProcessingFee: amount("150"),
			Active:        true,
		},
	}
}

func newTestService(repo *memoryRepo) *Service {
	s := NewService(repo, testCatalog(), ledger.NewEngine())
	s.WithNow(func() time.Time { return date(2026, 6, 15) })
	return s
}

// disburse runs the whole intake pipeline and returns the active loan.
func disburse(t *testing.T, s *Service, repo *memoryRepo, productCode, principal string, tenure int) Loan {
	t.Helper()
	ctx := context.Background()
	app, err := s.CreateApplication(ctx, ApplicationInput{
		ApplicantID:  42,
		ProductCode:  productCode,
		Amount:       amount(principal),
		TenureMonths: tenure,
	})
	require.NoError(t, err)
	_, err = s.ApproveApplication(ctx, app.ID)
	require.NoError(t, err)
	loan, err := s.Disburse(ctx, DisburseInput{
		ApplicationID: app.ID,
		DisbursedAt:   date(2026, 1, 10),
		FirstDueDate:  date(2026, 2, 1),
	})
	require.NoError(t, err)
	return loan
}

func TestApplicationLifecycle(t *testing.T) {
	ctx := context.Background()
	repo := newMemoryRepo()
	s := newTestService(repo)

	app, err := s.CreateApplication(ctx, ApplicationInput{
		ApplicantID:  7,
		ProductCode:  "MICRO-FLAT",
		Amount:       amount("1200"),
		TenureMonths: 3,
	})
	require.NoError(t, err)
	require.Equal(t, ApplicationPending, app.Status)

	approved, err := s.ApproveApplication(ctx, app.ID)
	require.NoError(t, err)
	require.Equal(t, ApplicationApproved, approved.Status)
	require.NotNil(t, approved.DecidedAt)

	_, err = s.RejectApplication(ctx, app.ID)
	require.Equal(t, fault.KindStateConflict, fault.KindOf(err), "approved applications cannot be rejected")
}

func TestCreateApplicationEnforcesProductBounds(t *testing.T) {
	ctx := context.Background()
	s := newTestService(newMemoryRepo())

	_, err := s.CreateApplication(ctx, ApplicationInput{
		ApplicantID:  7,
		ProductCode:  "SME-RB",
		Amount:       amount("999999"),
		TenureMonths: 12,
	})
	require.Equal(t, fault.KindValidation, fault.KindOf(err))

	_, err = s.CreateApplication(ctx, ApplicationInput{
		ApplicantID:  7,
		ProductCode:  "SME-RB",
		Amount:       amount("10000"),
		TenureMonths: 2,
	})
	require.Equal(t, fault.KindValidation, fault.KindOf(err))

	_, err = s.CreateApplication(ctx, ApplicationInput{
		ApplicantID:  7,
		ProductCode:  "NO-SUCH",
		Amount:       amount("10000"),
		TenureMonths: 12,
	})
	require.Equal(t, fault.KindNotFound, fault.KindOf(err))
}

func TestDisburseCreatesLoanScheduleAndJournalEntry(t *testing.T) {
	repo := newMemoryRepo()
	s := newTestService(repo)

	loan := disburse(t, s, repo, "SME-RB", "10000", 12)
	require.Equal(t, LoanActive, loan.Status)
	require.True(t, loan.OutstandingPrincipal.Equal(amount("10000")))

	app := repo.applications[loan.ApplicationID]
	require.Equal(t, ApplicationDisbursed, app.Status)

	installments, err := repo.ListInstallments(context.Background(), loan.ID)
	require.NoError(t, err)
	require.Len(t, installments, 12)
	require.Equal(t, date(2026, 2, 1), installments[0].DueDate)

	sum := decimal.Zero
	for _, installment := range installments {
		sum = sum.Add(installment.Principal)
	}
	require.True(t, sum.Equal(amount("10000")), "schedule principal %s != disbursed principal", sum)

	// One disbursement entry: receivable debit 10000, cash credit 9850,
	// fee income credit 150.
	require.Len(t, repo.entries, 1)
	lines := repo.entryLines[repo.entries[0].ID]
	require.Len(t, lines, 3)
	require.Equal(t, accounts.CodeLoanReceivable, lines[0].Code)
	require.True(t, lines[0].Debit.Equal(amount("10000")))
	require.Equal(t, accounts.CodeCash, lines[1].Code)
	require.True(t, lines[1].Credit.Equal(amount("9850")))
	require.Equal(t, accounts.CodeFeeIncome, lines[2].Code)
	require.True(t, lines[2].Credit.Equal(amount("150")))
}

func TestDisburseRequiresApprovedApplication(t *testing.T) {
	ctx := context.Background()
	repo := newMemoryRepo()
	s := newTestService(repo)

	app, err := s.CreateApplication(ctx, ApplicationInput{
		ApplicantID:  7,
		ProductCode:  "MICRO-FLAT",
		Amount:       amount("1200"),
		TenureMonths: 3,
	})
	require.NoError(t, err)

	_, err = s.Disburse(ctx, DisburseInput{
		ApplicationID: app.ID,
		DisbursedAt:   date(2026, 1, 10),
		FirstDueDate:  date(2026, 2, 1),
	})
	require.Equal(t, fault.KindStateConflict, fault.KindOf(err))
	require.Empty(t, repo.loans)
}

func TestDisburseRollsBackWhenPostingFails(t *testing.T) {
	ctx := context.Background()
	repo := newMemoryRepo()
	delete(repo.accounts, accounts.CodeCash)
	s := newTestService(repo)

	app, err := s.CreateApplication(ctx, ApplicationInput{
		ApplicantID:  7,
		ProductCode:  "SME-RB",
		Amount:       amount("10000"),
		TenureMonths: 12,
	})
	require.NoError(t, err)
	_, err = s.ApproveApplication(ctx, app.ID)
	require.NoError(t, err)

	_, err = s.Disburse(ctx, DisburseInput{
		ApplicationID: app.ID,
		DisbursedAt:   date(2026, 1, 10),
		FirstDueDate:  date(2026, 2, 1),
	})
	require.Equal(t, fault.KindAccountNotConfigured, fault.KindOf(err))

	require.Empty(t, repo.loans, "no loan may survive a failed posting")
	require.Empty(t, repo.installments)
	require.Empty(t, repo.entries)
	require.Equal(t, ApplicationApproved, repo.applications[app.ID].Status,
		"application must stay APPROVED after rollback")
}

func TestRecordPaymentPartialThenPaid(t *testing.T) {
	ctx := context.Background()
	repo := newMemoryRepo()
	s := newTestService(repo)

	// Zero-rate flat loan: 3 installments of exactly 400 principal.
	loan := disburse(t, s, repo, "MICRO-FLAT", "1200", 3)
	installments, err := repo.ListInstallments(ctx, loan.ID)
	require.NoError(t, err)
	first := installments[0]
	require.True(t, first.Total.Equal(amount("400")))

	result, err := s.RecordPayment(ctx, PaymentRequest{
		LoanID:        loan.ID,
		InstallmentID: first.ID,
		Amount:        amount("150"),
		Method:        "CASH",
	})
	require.NoError(t, err)
	require.Equal(t, InstallmentPartial, result.Installment.Status)
	require.True(t, result.Installment.PaidAmount.Equal(amount("150")))
	require.Nil(t, result.Installment.PaidAt)
	require.True(t, repo.loans[loan.ID].OutstandingPrincipal.Equal(amount("1050")))

	result, err = s.RecordPayment(ctx, PaymentRequest{
		LoanID:        loan.ID,
		InstallmentID: first.ID,
		Amount:        amount("250"),
		Method:        "CASH",
	})
	require.NoError(t, err)
	require.Equal(t, InstallmentPaid, result.Installment.Status)
	require.NotNil(t, result.Installment.PaidAt)
	require.True(t, repo.loans[loan.ID].OutstandingPrincipal.Equal(amount("800")))
	require.Equal(t, LoanActive, repo.loans[loan.ID].Status)

	// Each payment posts one repayment entry besides the disbursement.
	require.Len(t, repo.entries, 3)
	require.Len(t, repo.payments, 2)
}

func TestRecordPaymentRejectsOverpayAndMutatesNothing(t *testing.T) {
	ctx := context.Background()
	repo := newMemoryRepo()
	s := newTestService(repo)

	loan := disburse(t, s, repo, "MICRO-FLAT", "1200", 3)
	installments, err := repo.ListInstallments(ctx, loan.ID)
	require.NoError(t, err)

	_, err = s.RecordPayment(ctx, PaymentRequest{
		LoanID:        loan.ID,
		InstallmentID: installments[0].ID,
		Amount:        amount("400.01"),
		Method:        "CASH",
	})
	require.Equal(t, fault.KindValidation, fault.KindOf(err))

	require.True(t, repo.installments[installments[0].ID].PaidAmount.IsZero())
	require.True(t, repo.loans[loan.ID].OutstandingPrincipal.Equal(amount("1200")))
	require.Len(t, repo.entries, 1, "only the disbursement entry may exist")
	require.Empty(t, repo.payments)
}

func TestRecordPaymentRejectsPaidInstallmentAndClosedLoan(t *testing.T) {
	ctx := context.Background()
	repo := newMemoryRepo()
	s := newTestService(repo)

	loan := disburse(t, s, repo, "MICRO-FLAT", "1200", 3)
	installments, err := repo.ListInstallments(ctx, loan.ID)
	require.NoError(t, err)

	for _, installment := range installments {
		_, err := s.RecordPayment(ctx, PaymentRequest{
			LoanID:        loan.ID,
			InstallmentID: installment.ID,
			Amount:        amount("400"),
			Method:        "CASH",
		})
		require.NoError(t, err)
	}
	require.Equal(t, LoanClosed, repo.loans[loan.ID].Status, "loan closes when the last installment is paid")
	require.True(t, repo.loans[loan.ID].OutstandingPrincipal.IsZero())

	_, err = s.RecordPayment(ctx, PaymentRequest{
		LoanID:        loan.ID,
		InstallmentID: installments[0].ID,
		Amount:        amount("1"),
		Method:        "CASH",
	})
	require.Equal(t, fault.KindStateConflict, fault.KindOf(err))
}

func TestQuoteSettlementAccruesDailyInterestOnReducingBalance(t *testing.T) {
	ctx := context.Background()
	repo := newMemoryRepo()
	s := newTestService(repo)

	loan := disburse(t, s, repo, "SME-RB", "10000", 12)
	installments, err := repo.ListInstallments(ctx, loan.ID)
	require.NoError(t, err)

	for _, installment := range installments[:6] {
		_, err := s.RecordPayment(ctx, PaymentRequest{
			LoanID:        loan.ID,
			InstallmentID: installment.ID,
			Amount:        installment.Total,
			Method:        "BANK_TRANSFER",
		})
		require.NoError(t, err)
	}

	remaining := decimal.Zero
	for _, installment := range installments[6:] {
		remaining = remaining.Add(installment.Principal)
	}

	// Ten days past the sixth due date (2026-07-01).
	asOf := date(2026, 7, 11)
	quote, err := s.QuoteSettlement(ctx, loan.ID, asOf, decimal.Zero)
	require.NoError(t, err)
	require.True(t, quote.Principal.Equal(remaining.Round(2)),
		"quote principal %s != remaining schedule principal %s", quote.Principal, remaining)

	expectedAccrual := quote.Principal.
		Mul(amount("12")).Div(amount("100")).
		Div(amount("365")).
		Mul(amount("10")).
		Round(2)
	require.True(t, quote.AccruedInterest.Equal(expectedAccrual),
		"accrued %s != expected %s", quote.AccruedInterest, expectedAccrual)
	require.True(t, quote.Total.Equal(quote.Principal.Add(quote.AccruedInterest)))
}

func TestQuoteSettlementOnDueDateEqualsRemainingPrincipal(t *testing.T) {
	ctx := context.Background()
	repo := newMemoryRepo()
	s := newTestService(repo)

	loan := disburse(t, s, repo, "SME-RB", "10000", 12)
	installments, err := repo.ListInstallments(ctx, loan.ID)
	require.NoError(t, err)
	for _, installment := range installments[:6] {
		_, err := s.RecordPayment(ctx, PaymentRequest{
			LoanID:        loan.ID,
			InstallmentID: installment.ID,
			Amount:        installment.Total,
			Method:        "BANK_TRANSFER",
		})
		require.NoError(t, err)
	}

	remaining := decimal.Zero
	for _, installment := range installments[6:] {
		remaining = remaining.Add(installment.Principal)
	}

	// Quoting exactly on the sixth due date leaves zero accrual days, so
	// the payoff is the remaining schedule principal alone.
	quote, err := s.QuoteSettlement(ctx, loan.ID, date(2026, 7, 1), decimal.Zero)
	require.NoError(t, err)
	require.True(t, quote.AccruedInterest.IsZero(),
		"no interest accrues on the due date itself, got %s", quote.AccruedInterest)
	require.True(t, quote.Total.Equal(remaining.Round(2)),
		"payoff %s != remaining principal %s", quote.Total, remaining)
}

func TestQuoteSettlementFlatLoanWaivesUnbilledInterest(t *testing.T) {
	ctx := context.Background()
	repo := newMemoryRepo()
	s := newTestService(repo)

	loan := disburse(t, s, repo, "MICRO-FLAT", "1200", 3)
	quote, err := s.QuoteSettlement(ctx, loan.ID, date(2026, 3, 15), decimal.Zero)
	require.NoError(t, err)
	require.True(t, quote.AccruedInterest.IsZero())
	require.True(t, quote.Total.Equal(amount("1200")))
}

func TestQuoteSettlementRejectsRebateAboveAccrued(t *testing.T) {
	ctx := context.Background()
	repo := newMemoryRepo()
	s := newTestService(repo)

	loan := disburse(t, s, repo, "MICRO-FLAT", "1200", 3)
	_, err := s.QuoteSettlement(ctx, loan.ID, date(2026, 3, 15), amount("5"))
	require.Equal(t, fault.KindValidation, fault.KindOf(err))
}

func TestProcessSettlementClosesLoan(t *testing.T) {
	ctx := context.Background()
	repo := newMemoryRepo()
	s := newTestService(repo)

	loan := disburse(t, s, repo, "SME-RB", "10000", 12)
	installments, err := repo.ListInstallments(ctx, loan.ID)
	require.NoError(t, err)
	for _, installment := range installments[:6] {
		_, err := s.RecordPayment(ctx, PaymentRequest{
			LoanID:        loan.ID,
			InstallmentID: installment.ID,
			Amount:        installment.Total,
			Method:        "BANK_TRANSFER",
		})
		require.NoError(t, err)
	}

	asOf := date(2026, 7, 11)
	quote, err := s.QuoteSettlement(ctx, loan.ID, asOf, decimal.Zero)
	require.NoError(t, err)

	entriesBefore := len(repo.entries)
	result, err := s.ProcessSettlement(ctx, SettlementRequest{
		LoanID: loan.ID,
		Amount: quote.Total,
		Date:   asOf,
		Method: "BANK_TRANSFER",
	})
	require.NoError(t, err)
	require.Equal(t, LoanClosed, result.Loan.Status)
	require.NotNil(t, result.Loan.ClosedAt)
	require.True(t, repo.loans[loan.ID].OutstandingPrincipal.IsZero())

	for _, installment := range repo.installments {
		if installment.LoanID != loan.ID {
			continue
		}
		require.Equal(t, InstallmentPaid, installment.Status)
	}
	settledCount := 0
	for _, installment := range repo.installments {
		if installment.LoanID == loan.ID && installment.Settled {
			settledCount++
		}
	}
	require.Equal(t, 6, settledCount, "only the remaining installments carry the settlement flag")

	// One consolidated settlement entry, payment not tied to an installment.
	require.Len(t, repo.entries, entriesBefore+1)
	lastPayment := repo.payments[len(repo.payments)-1]
	require.Nil(t, lastPayment.InstallmentID)
	require.True(t, lastPayment.Amount.Equal(quote.Total))
}

func TestProcessSettlementRejectsStaleAmount(t *testing.T) {
	ctx := context.Background()
	repo := newMemoryRepo()
	s := newTestService(repo)

	loan := disburse(t, s, repo, "SME-RB", "10000", 12)
	quote, err := s.QuoteSettlement(ctx, loan.ID, date(2026, 3, 15), decimal.Zero)
	require.NoError(t, err)

	_, err = s.ProcessSettlement(ctx, SettlementRequest{
		LoanID: loan.ID,
		Amount: quote.Total.Sub(amount("0.50")),
		Date:   date(2026, 3, 15),
		Method: "CASH",
	})
	require.Equal(t, fault.KindValidation, fault.KindOf(err))
	require.Equal(t, LoanActive, repo.loans[loan.ID].Status)
}

func TestMarkDefaultedIsTerminal(t *testing.T) {
	ctx := context.Background()
	repo := newMemoryRepo()
	s := newTestService(repo)

	loan := disburse(t, s, repo, "MICRO-FLAT", "1200", 3)
	defaulted, err := s.MarkDefaulted(ctx, loan.ID)
	require.NoError(t, err)
	require.Equal(t, LoanDefaulted, defaulted.Status)

	_, err = s.MarkDefaulted(ctx, loan.ID)
	require.Equal(t, fault.KindStateConflict, fault.KindOf(err))

	_, err = s.RecordPayment(ctx, PaymentRequest{
		LoanID:        loan.ID,
		InstallmentID: repo.firstInstallmentID(loan.ID),
		Amount:        amount("100"),
		Method:        "CASH",
	})
	require.Equal(t, fault.KindStateConflict, fault.KindOf(err))
}

func (r *memoryRepo) firstInstallmentID(loanID int64) int64 {
	for _, installment := range r.installments {
		if installment.LoanID == loanID && installment.Number == 1 {
			return installment.ID
		}
	}
	return 0
}

func TestListLoansInArrearsFindsUnpaidPastDue(t *testing.T) {
	ctx := context.Background()
	repo := newMemoryRepo()
	s := newTestService(repo)

	loan := disburse(t, s, repo, "MICRO-FLAT", "1200", 3)

	arrears, err := s.ListLoansInArrears(ctx, date(2026, 1, 15))
	require.NoError(t, err)
	require.Empty(t, arrears, "nothing is due before the first due date")

	arrears, err = s.ListLoansInArrears(ctx, date(2026, 6, 15))
	require.NoError(t, err)
	require.Len(t, arrears, 1)
	require.Equal(t, loan.ID, arrears[0].ID)
}
