package postgres

import (
	"context"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"membership-settlement/internal/domain"
	"membership-settlement/internal/domain/model"
	"membership-settlement/internal/domain/ports/repository"
	"membership-settlement/internal/infra/metrics"
)

var _ repository.CatalogRepository = (*catalogRepo)(nil)

type catalogRepo struct {
	pool *pgxpool.Pool
}

func NewCatalogRepo(pool *pgxpool.Pool) *catalogRepo {
	return &catalogRepo{pool: pool}
}

func (r *catalogRepo) SaveProduct(ctx context.Context, tx repository.Tx, p *model.Product) error {
	const q = `
INSERT INTO products (id, name, duration_months, price_cents, currency, created_at)
VALUES ($1,$2,$3,$4,$5,$6)
ON CONFLICT (id) DO UPDATE SET
  name=$2, duration_months=$3, price_cents=$4, currency=$5;`
	_, err := execSQL(ctx, r.pool, tx, q, p.ID, p.Name, p.DurationMonths, p.PriceCents, p.Currency, p.CreatedAt)
	if err != nil {
		switch err {
		case domain.ErrInvalidArgument, domain.ErrInvalidExecContext:
			return err
		default:
			metrics.IncDBError("products")
			return domain.ErrOperationFailed
		}
	}
	return nil
}

func (r *catalogRepo) SaveExtension(ctx context.Context, tx repository.Tx, e *model.Extension) error {
	const q = `
INSERT INTO extensions (id, name, months, price_cents, currency, created_at)
VALUES ($1,$2,$3,$4,$5,$6)
ON CONFLICT (id) DO UPDATE SET
  name=$2, months=$3, price_cents=$4, currency=$5;`
	_, err := execSQL(ctx, r.pool, tx, q, e.ID, e.Name, e.Months, e.PriceCents, e.Currency, e.CreatedAt)
	if err != nil {
		switch err {
		case domain.ErrInvalidArgument, domain.ErrInvalidExecContext:
			return err
		default:
			metrics.IncDBError("extensions")
			return domain.ErrOperationFailed
		}
	}
	return nil
}

func (r *catalogRepo) FindProduct(ctx context.Context, tx repository.Tx, id string) (*model.Product, error) {
	const q = `SELECT id, name, duration_months, price_cents, currency, created_at FROM products WHERE id=$1;`
	row, err := pickRow(ctx, r.pool, tx, q, id)
	if err != nil {
		return nil, err
	}
	p := &model.Product{}
	if err := row.Scan(&p.ID, &p.Name, &p.DurationMonths, &p.PriceCents, &p.Currency, &p.CreatedAt); err != nil {
		if err == pgx.ErrNoRows {
			return nil, domain.ErrNotFound
		}
		return nil, domain.ErrReadDatabaseRow
	}
	return p, nil
}

func (r *catalogRepo) FindExtension(ctx context.Context, tx repository.Tx, id string) (*model.Extension, error) {
	const q = `SELECT id, name, months, price_cents, currency, created_at FROM extensions WHERE id=$1;`
	row, err := pickRow(ctx, r.pool, tx, q, id)
	if err != nil {
		return nil, err
	}
	e := &model.Extension{}
	if err := row.Scan(&e.ID, &e.Name, &e.Months, &e.PriceCents, &e.Currency, &e.CreatedAt); err != nil {
		if err == pgx.ErrNoRows {
			return nil, domain.ErrNotFound
		}
		return nil, domain.ErrReadDatabaseRow
	}
	return e, nil
}
