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

var _ repository.PaymentLinkRepository = (*paymentLinkRepo)(nil)

type paymentLinkRepo struct {
	pool *pgxpool.Pool
}

func NewPaymentLinkRepo(pool *pgxpool.Pool) *paymentLinkRepo {
	return &paymentLinkRepo{pool: pool}
}

func (r *paymentLinkRepo) Save(ctx context.Context, tx repository.Tx, l *model.PaymentLink) error {
	const q = `
INSERT INTO payment_links (
  id, plan, installments_count, first_payment_date, product_id, extension_id, amount_cents, currency, created_at
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9);`

	_, err := execSQL(ctx, r.pool, tx, q, l.ID, l.Plan, l.InstallmentsCount, l.FirstPaymentDate, l.ProductID, l.ExtensionID, l.AmountCents, l.Currency, l.CreatedAt)
	if err != nil {
		switch err {
		case domain.ErrInvalidArgument, domain.ErrInvalidExecContext:
			return err
		default:
			if isUniqueViolation(err) {
				return domain.ErrAlreadyExists
			}
			metrics.IncDBError("payment_links")
			return domain.ErrOperationFailed
		}
	}
	return nil
}

func (r *paymentLinkRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.PaymentLink, error) {
	const q = `
SELECT id, plan, installments_count, first_payment_date, product_id, extension_id, amount_cents, currency, created_at
  FROM payment_links
 WHERE id=$1;`
	row, err := pickRow(ctx, r.pool, tx, q, id)
	if err != nil {
		return nil, err
	}
	l := &model.PaymentLink{}
	var plan string
	if err := row.Scan(&l.ID, &plan, &l.InstallmentsCount, &l.FirstPaymentDate, &l.ProductID, &l.ExtensionID, &l.AmountCents, &l.Currency, &l.CreatedAt); err != nil {
		if err == pgx.ErrNoRows {
			return nil, domain.ErrNotFound
		}
		return nil, domain.ErrReadDatabaseRow
	}
	l.Plan = model.PaymentPlan(plan)
	return l, nil
}
