package products

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/solara-mfi/solara/internal/fault"
)

// Repository defines data access for the product catalog.
type Repository interface {
	Create(ctx context.Context, p Product) (Product, error)
	Update(ctx context.Context, p Product) (Product, error)
	GetByCode(ctx context.Context, code string) (Product, error)
	List(ctx context.Context) ([]Product, error)
}

type repository struct {
	db *pgxpool.Pool
}

// NewRepository builds the pgx-backed product catalog.
func NewRepository(db *pgxpool.Pool) Repository {
	return &repository{db: db}
}

const productColumns = `id, code, name, interest_type, annual_rate_pct, min_amount, max_amount,
min_tenure_months, max_tenure_months, processing_fee, active, created_at, updated_at`

func scanProduct(row pgx.Row) (Product, error) {
	var p Product
	err := row.Scan(&p.ID, &p.Code, &p.Name, &p.Interest, &p.AnnualRatePct, &p.MinAmount, &p.MaxAmount,
		&p.MinTenure, &p.MaxTenure, &p.ProcessingFee, &p.Active, &p.CreatedAt, &p.UpdatedAt)
	return p, err
}

func (r *repository) Create(ctx context.Context, p Product) (Product, error) {
	row := r.db.QueryRow(ctx, `INSERT INTO loan_products
(code, name, interest_type, annual_rate_pct, min_amount, max_amount, min_tenure_months, max_tenure_months, processing_fee, active)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
RETURNING `+productColumns,
		p.Code, p.Name, p.Interest, p.AnnualRatePct, p.MinAmount, p.MaxAmount,
		p.MinTenure, p.MaxTenure, p.ProcessingFee, p.Active)
	return scanProduct(row)
}

func (r *repository) Update(ctx context.Context, p Product) (Product, error) {
	row := r.db.QueryRow(ctx, `UPDATE loan_products SET
name=$2, interest_type=$3, annual_rate_pct=$4, min_amount=$5, max_amount=$6,
min_tenure_months=$7, max_tenure_months=$8, processing_fee=$9, active=$10, updated_at=NOW()
WHERE code=$1 RETURNING `+productColumns,
		p.Code, p.Name, p.Interest, p.AnnualRatePct, p.MinAmount, p.MaxAmount,
		p.MinTenure, p.MaxTenure, p.ProcessingFee, p.Active)
	product, err := scanProduct(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Product{}, fault.NotFound("products: no product with code %s", p.Code)
		}
		return Product{}, err
	}
	return product, nil
}

func (r *repository) GetByCode(ctx context.Context, code string) (Product, error) {
	row := r.db.QueryRow(ctx, `SELECT `+productColumns+` FROM loan_products WHERE code=$1`, code)
	product, err := scanProduct(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Product{}, fault.NotFound("products: no product with code %s", code)
		}
		return Product{}, err
	}
	return product, nil
}

func (r *repository) List(ctx context.Context) ([]Product, error) {
	rows, err := r.db.Query(ctx, `SELECT `+productColumns+` FROM loan_products ORDER BY code ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Product
	for rows.Next() {
		var p Product
		if err := rows.Scan(&p.ID, &p.Code, &p.Name, &p.Interest, &p.AnnualRatePct, &p.MinAmount, &p.MaxAmount,
			&p.MinTenure, &p.MaxTenure, &p.ProcessingFee, &p.Active, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}
