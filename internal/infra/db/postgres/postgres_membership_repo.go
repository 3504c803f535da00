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

var _ repository.MembershipRepository = (*membershipRepo)(nil)

type membershipRepo struct {
	pool *pgxpool.Pool
}

func NewMembershipRepo(pool *pgxpool.Pool) *membershipRepo {
	return &membershipRepo{pool: pool}
}

const membershipColumns = `id, status, start_date, delayed_start_date, end_date, customer_email, parent_order_id, created_at, updated_at`

// Save upserts by id. The UNIQUE (parent_order_id) constraint is the actual
// enforcement behind the idempotency guard: a concurrent double insert for
// the same order surfaces as ErrAlreadyExists.
func (r *membershipRepo) Save(ctx context.Context, tx repository.Tx, m *model.Membership) error {
	const q = `
INSERT INTO memberships (
  id, status, start_date, delayed_start_date, end_date, customer_email, parent_order_id, created_at, updated_at
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
ON CONFLICT (id) DO UPDATE SET
  status=$2, start_date=$3, delayed_start_date=$4, end_date=$5, updated_at=$9;`

	_, err := execSQL(ctx, r.pool, tx, q, m.ID, m.Status, m.StartDate, m.DelayedStartDate, m.EndDate, m.CustomerEmail, m.ParentOrderID, m.CreatedAt, m.UpdatedAt)
	if err != nil {
		switch err {
		case domain.ErrInvalidArgument, domain.ErrInvalidExecContext:
			return err
		default:
			if isUniqueViolation(err) {
				return domain.ErrAlreadyExists
			}
			metrics.IncDBError("memberships")
			return domain.ErrOperationFailed
		}
	}
	return nil
}

func (r *membershipRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Membership, error) {
	const q = `SELECT ` + membershipColumns + ` FROM memberships WHERE id=$1;`
	return r.queryOne(ctx, tx, q, id)
}

func (r *membershipRepo) FindByParentOrder(ctx context.Context, tx repository.Tx, orderID string) (*model.Membership, error) {
	const q = `SELECT ` + membershipColumns + ` FROM memberships WHERE parent_order_id=$1;`
	return r.queryOne(ctx, tx, q, orderID)
}

func (r *membershipRepo) FindCurrentByCustomer(ctx context.Context, tx repository.Tx, email string) (*model.Membership, error) {
	const q = `
SELECT ` + membershipColumns + `
  FROM memberships
 WHERE customer_email=$1 AND status IN ('active','delayed')
 ORDER BY end_date DESC
 LIMIT 1;`
	return r.queryOne(ctx, tx, q, email)
}

func (r *membershipRepo) queryOne(ctx context.Context, tx repository.Tx, sql string, args ...any) (*model.Membership, error) {
	row, err := pickRow(ctx, r.pool, tx, sql, args...)
	if err != nil {
		return nil, err
	}
	m := &model.Membership{}
	var status string
	if err := row.Scan(&m.ID, &status, &m.StartDate, &m.DelayedStartDate, &m.EndDate, &m.CustomerEmail, &m.ParentOrderID, &m.CreatedAt, &m.UpdatedAt); err != nil {
		if err == pgx.ErrNoRows {
			return nil, domain.ErrNotFound
		}
		return nil, domain.ErrReadDatabaseRow
	}
	m.Status = model.MembershipStatus(status)
	return m, nil
}
