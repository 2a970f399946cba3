package accounts

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/solara-mfi/solara/internal/fault"
)

// Repository is the account-directory lookup collaborator.
type Repository interface {
	GetByCode(ctx context.Context, code Code) (Account, error)
	List(ctx context.Context) ([]Account, error)
	Seed(ctx context.Context, accounts []Account) error
}

type repository struct {
	db *pgxpool.Pool
}

// NewRepository builds the pgx-backed account directory.
func NewRepository(db *pgxpool.Pool) Repository {
	return &repository{db: db}
}

const accountColumns = `id, code, name, type, active, created_at, updated_at`

func scanAccount(row pgx.Row) (Account, error) {
	var a Account
	err := row.Scan(&a.ID, &a.Code, &a.Name, &a.Type, &a.Active, &a.CreatedAt, &a.UpdatedAt)
	return a, err
}

func (r *repository) GetByCode(ctx context.Context, code Code) (Account, error) {
	row := r.db.QueryRow(ctx, `SELECT `+accountColumns+` FROM ledger_accounts WHERE code=$1`, code)
	account, err := scanAccount(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Account{}, fault.NotFound("accounts: no account with code %s", code)
		}
		return Account{}, err
	}
	return account, nil
}

func (r *repository) List(ctx context.Context) ([]Account, error) {
	rows, err := r.db.Query(ctx, `SELECT `+accountColumns+` FROM ledger_accounts ORDER BY code ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Account
	for rows.Next() {
		var a Account
		if err := rows.Scan(&a.ID, &a.Code, &a.Name, &a.Type, &a.Active, &a.CreatedAt, &a.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// Seed inserts missing default accounts; existing codes are left untouched.
func (r *repository) Seed(ctx context.Context, accounts []Account) error {
	for _, a := range accounts {
		_, err := r.db.Exec(ctx, `INSERT INTO ledger_accounts (code, name, type, active)
VALUES ($1,$2,$3,$4) ON CONFLICT (code) DO NOTHING`, a.Code, a.Name, a.Type, a.Active)
		if err != nil {
			return err
		}
	}
	return nil
}
