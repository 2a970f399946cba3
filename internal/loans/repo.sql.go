package loans

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/solara-mfi/solara/internal/fault"
	"github.com/solara-mfi/solara/internal/ledger"
	"github.com/solara-mfi/solara/internal/loans/emi"
	platformdb "github.com/solara-mfi/solara/internal/platform/db"
)

type repository struct {
	db *pgxpool.Pool
}

// NewRepository builds the pgx-backed loans repository.
func NewRepository(db *pgxpool.Pool) Repository {
	return &repository{db: db}
}

const (
	applicationColumns = `id, applicant_id, product_code, amount, tenure_months, purpose, status, decided_at, created_at, updated_at`
	loanColumns        = `id, application_id, principal, annual_rate_pct, tenure_months, interest_type, emi, outstanding_principal, disbursed_at, status, closed_at, created_at, updated_at`
	installmentColumns = `id, loan_id, number, due_date, principal, interest, total, paid_amount, paid_principal, status, settled, paid_at, created_at, updated_at`
	paymentColumns     = `id, loan_id, installment_id, amount, paid_at, method, reference, je_id, created_at`
)

func scanApplication(row pgx.Row) (LoanApplication, error) {
	var a LoanApplication
	err := row.Scan(&a.ID, &a.ApplicantID, &a.ProductCode, &a.Amount, &a.TenureMonths,
		&a.Purpose, &a.Status, &a.DecidedAt, &a.CreatedAt, &a.UpdatedAt)
	return a, err
}

func scanLoan(row pgx.Row) (Loan, error) {
	var l Loan
	err := row.Scan(&l.ID, &l.ApplicationID, &l.Principal, &l.AnnualRatePct, &l.TenureMonths,
		&l.Interest, &l.EMI, &l.OutstandingPrincipal, &l.DisbursedAt, &l.Status,
		&l.ClosedAt, &l.CreatedAt, &l.UpdatedAt)
	return l, err
}

func scanInstallment(row pgx.Row) (Installment, error) {
	var i Installment
	err := row.Scan(&i.ID, &i.LoanID, &i.Number, &i.DueDate, &i.Principal, &i.Interest,
		&i.Total, &i.PaidAmount, &i.PaidPrincipal, &i.Status, &i.Settled, &i.PaidAt,
		&i.CreatedAt, &i.UpdatedAt)
	return i, err
}

func (r *repository) CreateApplication(ctx context.Context, input ApplicationInput) (LoanApplication, error) {
	return scanApplication(r.db.QueryRow(ctx, `INSERT INTO loan_applications
(applicant_id, product_code, amount, tenure_months, purpose, status)
VALUES ($1,$2,$3,$4,$5,'PENDING')
RETURNING `+applicationColumns,
		input.ApplicantID, input.ProductCode, input.Amount, input.TenureMonths, input.Purpose))
}

func (r *repository) GetApplication(ctx context.Context, id int64) (LoanApplication, error) {
	app, err := scanApplication(r.db.QueryRow(ctx,
		`SELECT `+applicationColumns+` FROM loan_applications WHERE id=$1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return LoanApplication{}, fault.NotFound("loans: application %d not found", id)
	}
	return app, err
}

func (r *repository) ListApplications(ctx context.Context, status ApplicationStatus) ([]LoanApplication, error) {
	query := `SELECT ` + applicationColumns + ` FROM loan_applications`
	args := []any{}
	if status != "" {
		query += ` WHERE status=$1`
		args = append(args, status)
	}
	query += ` ORDER BY id DESC`

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var apps []LoanApplication
	for rows.Next() {
		app, err := scanApplication(rows)
		if err != nil {
			return nil, err
		}
		apps = append(apps, app)
	}
	return apps, rows.Err()
}

func (r *repository) GetLoan(ctx context.Context, id int64) (Loan, error) {
	loan, err := scanLoan(r.db.QueryRow(ctx, `SELECT `+loanColumns+` FROM loans WHERE id=$1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return Loan{}, fault.NotFound("loans: loan %d not found", id)
	}
	return loan, err
}

func (r *repository) ListInstallments(ctx context.Context, loanID int64) ([]Installment, error) {
	rows, err := r.db.Query(ctx, `SELECT `+installmentColumns+` FROM loan_installments
WHERE loan_id=$1 ORDER BY number ASC`, loanID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var installments []Installment
	for rows.Next() {
		installment, err := scanInstallment(rows)
		if err != nil {
			return nil, err
		}
		installments = append(installments, installment)
	}
	return installments, rows.Err()
}

func (r *repository) ListPayments(ctx context.Context, loanID int64) ([]Payment, error) {
	rows, err := r.db.Query(ctx, `SELECT `+paymentColumns+` FROM loan_payments
WHERE loan_id=$1 ORDER BY id ASC`, loanID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var payments []Payment
	for rows.Next() {
		var p Payment
		if err := rows.Scan(&p.ID, &p.LoanID, &p.InstallmentID, &p.Amount, &p.PaidAt,
			&p.Method, &p.Reference, &p.JournalEntryID, &p.CreatedAt); err != nil {
			return nil, err
		}
		payments = append(payments, p)
	}
	return payments, rows.Err()
}

func (r *repository) ListLoansInArrears(ctx context.Context, dueBefore time.Time) ([]Loan, error) {
	rows, err := r.db.Query(ctx, `SELECT DISTINCT ON (l.id) `+prefixedLoanColumns+`
FROM loans l
JOIN loan_installments li ON li.loan_id = l.id
WHERE l.status='ACTIVE' AND li.status <> 'PAID' AND li.due_date < $1
ORDER BY l.id ASC`, dueBefore)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var loans []Loan
	for rows.Next() {
		loan, err := scanLoan(rows)
		if err != nil {
			return nil, err
		}
		loans = append(loans, loan)
	}
	return loans, rows.Err()
}

const prefixedLoanColumns = `l.id, l.application_id, l.principal, l.annual_rate_pct, l.tenure_months, l.interest_type, l.emi, l.outstanding_principal, l.disbursed_at, l.status, l.closed_at, l.created_at, l.updated_at`

func (r *repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return platformdb.WithTx(ctx, r.db, func(tx pgx.Tx) error {
		return fn(ctx, &txRepository{TxRepository: ledger.TxRepository{Tx: tx}})
	})
}

// txRepository embeds the ledger posting methods so loan mutations and
// journal entries run on the same transaction.
type txRepository struct {
	ledger.TxRepository
}

func (r *txRepository) GetApplicationForUpdate(ctx context.Context, id int64) (LoanApplication, error) {
	app, err := scanApplication(r.Tx.QueryRow(ctx,
		`SELECT `+applicationColumns+` FROM loan_applications WHERE id=$1 FOR UPDATE`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return LoanApplication{}, fault.NotFound("loans: application %d not found", id)
	}
	return app, err
}

func (r *txRepository) UpdateApplicationStatus(ctx context.Context, id int64, status ApplicationStatus, decidedAt time.Time) error {
	_, err := r.Tx.Exec(ctx, `UPDATE loan_applications
SET status=$2, decided_at=$3, updated_at=now() WHERE id=$1`, id, status, decidedAt)
	return err
}

func (r *txRepository) InsertLoan(ctx context.Context, input LoanInput) (Loan, error) {
	return scanLoan(r.Tx.QueryRow(ctx, `INSERT INTO loans
(application_id, principal, annual_rate_pct, tenure_months, interest_type, emi, outstanding_principal, disbursed_at, status)
VALUES ($1,$2,$3,$4,$5,$6,$2,$7,'ACTIVE')
RETURNING `+loanColumns,
		input.ApplicationID, input.Principal, input.AnnualRatePct, input.TenureMonths,
		input.Interest, input.EMI, input.DisbursedAt))
}

func (r *txRepository) InsertInstallments(ctx context.Context, loanID int64, rows []emi.Installment) ([]Installment, error) {
	out := make([]Installment, 0, len(rows))
	for _, row := range rows {
		installment, err := scanInstallment(r.Tx.QueryRow(ctx, `INSERT INTO loan_installments
(loan_id, number, due_date, principal, interest, total, paid_amount, paid_principal, status)
VALUES ($1,$2,$3,$4,$5,$6,0,0,'PENDING')
RETURNING `+installmentColumns,
			loanID, row.Number, row.DueDate, row.Principal, row.Interest, row.Total))
		if err != nil {
			return nil, err
		}
		out = append(out, installment)
	}
	return out, nil
}

func (r *txRepository) GetLoanForUpdate(ctx context.Context, id int64) (Loan, error) {
	loan, err := scanLoan(r.Tx.QueryRow(ctx,
		`SELECT `+loanColumns+` FROM loans WHERE id=$1 FOR UPDATE`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return Loan{}, fault.NotFound("loans: loan %d not found", id)
	}
	return loan, err
}

func (r *txRepository) GetInstallmentForUpdate(ctx context.Context, id int64) (Installment, error) {
	installment, err := scanInstallment(r.Tx.QueryRow(ctx,
		`SELECT `+installmentColumns+` FROM loan_installments WHERE id=$1 FOR UPDATE`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return Installment{}, fault.NotFound("loans: installment %d not found", id)
	}
	return installment, err
}

func (r *txRepository) ListInstallmentsForUpdate(ctx context.Context, loanID int64) ([]Installment, error) {
	rows, err := r.Tx.Query(ctx, `SELECT `+installmentColumns+` FROM loan_installments
WHERE loan_id=$1 ORDER BY number ASC FOR UPDATE`, loanID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var installments []Installment
	for rows.Next() {
		installment, err := scanInstallment(rows)
		if err != nil {
			return nil, err
		}
		installments = append(installments, installment)
	}
	return installments, rows.Err()
}

func (r *txRepository) UpdateInstallmentPayment(ctx context.Context, id int64, paidAmount, paidPrincipal decimal.Decimal, status InstallmentStatus, paidAt *time.Time) error {
	_, err := r.Tx.Exec(ctx, `UPDATE loan_installments
SET paid_amount=$2, paid_principal=$3, status=$4, paid_at=$5, updated_at=now()
WHERE id=$1`, id, paidAmount, paidPrincipal, status, paidAt)
	return err
}

func (r *txRepository) MarkInstallmentsSettled(ctx context.Context, loanID int64, settledAt time.Time) error {
	_, err := r.Tx.Exec(ctx, `UPDATE loan_installments
SET paid_amount=total, paid_principal=principal, status='PAID', settled=true, paid_at=$2, updated_at=now()
WHERE loan_id=$1 AND status <> 'PAID'`, loanID, settledAt)
	return err
}

func (r *txRepository) UpdateLoanOutstanding(ctx context.Context, id int64, outstanding decimal.Decimal) error {
	_, err := r.Tx.Exec(ctx, `UPDATE loans
SET outstanding_principal=$2, updated_at=now() WHERE id=$1`, id, outstanding)
	return err
}

func (r *txRepository) UpdateLoanStatus(ctx context.Context, id int64, status LoanStatus, closedAt *time.Time) error {
	_, err := r.Tx.Exec(ctx, `UPDATE loans
SET status=$2, closed_at=$3, updated_at=now() WHERE id=$1`, id, status, closedAt)
	return err
}

func (r *txRepository) CountUnpaidInstallments(ctx context.Context, loanID int64) (int, error) {
	var count int
	err := r.Tx.QueryRow(ctx, `SELECT COUNT(*) FROM loan_installments
WHERE loan_id=$1 AND status <> 'PAID'`, loanID).Scan(&count)
	return count, err
}

func (r *txRepository) InsertPayment(ctx context.Context, input PaymentInput) (Payment, error) {
	var p Payment
	err := r.Tx.QueryRow(ctx, `INSERT INTO loan_payments
(loan_id, installment_id, amount, paid_at, method, reference, je_id)
VALUES ($1,$2,$3,$4,$5,$6,$7)
RETURNING `+paymentColumns,
		input.LoanID, input.InstallmentID, input.Amount, input.PaidAt,
		input.Method, input.Reference, input.JournalEntryID).
		Scan(&p.ID, &p.LoanID, &p.InstallmentID, &p.Amount, &p.PaidAt,
			&p.Method, &p.Reference, &p.JournalEntryID, &p.CreatedAt)
	return p, err
}
