package postgres

import (
	"context"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"membership-settlement/internal/domain"
	"membership-settlement/internal/domain/model"
	"membership-settlement/internal/domain/ports/repository"
	"membership-settlement/internal/infra/metrics"
)

var _ repository.SubscriptionRepository = (*subscriptionRepo)(nil)

type subscriptionRepo struct {
	pool *pgxpool.Pool
}

func NewSubscriptionRepo(pool *pgxpool.Pool) *subscriptionRepo {
	return &subscriptionRepo{pool: pool}
}

const subscriptionColumns = `id, status, remaining_payments, next_payment_date, membership_id, parent_order_id, payment_method, created_at, updated_at`

// Save upserts by id. UNIQUE (parent_order_id) makes the loser of a
// concurrent double insert fail with ErrAlreadyExists; a CHECK
// (remaining_payments >= 0) backs the no-negative-counter invariant.
func (r *subscriptionRepo) Save(ctx context.Context, tx repository.Tx, s *model.Subscription) error {
	const q = `
INSERT INTO subscriptions (
  id, status, remaining_payments, next_payment_date, membership_id, parent_order_id, payment_method, created_at, updated_at
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
ON CONFLICT (id) DO UPDATE SET
  status=$2, remaining_payments=$3, next_payment_date=$4, updated_at=$9;`

	_, err := execSQL(ctx, r.pool, tx, q, s.ID, s.Status, s.RemainingPayments, s.NextPaymentDate, s.MembershipID, s.ParentOrderID, s.PaymentMethod, s.CreatedAt, s.UpdatedAt)
	if err != nil {
		switch err {
		case domain.ErrInvalidArgument, domain.ErrInvalidExecContext:
			return err
		default:
			if isUniqueViolation(err) {
				return domain.ErrAlreadyExists
			}
			metrics.IncDBError("subscriptions")
			return domain.ErrOperationFailed
		}
	}
	return nil
}

func (r *subscriptionRepo) FindByParentOrder(ctx context.Context, tx repository.Tx, orderID string) (*model.Subscription, error) {
	const q = `SELECT ` + subscriptionColumns + ` FROM subscriptions WHERE parent_order_id=$1;`
	return r.queryOne(ctx, tx, q, orderID)
}

func (r *subscriptionRepo) FindActiveByParentOrder(ctx context.Context, tx repository.Tx, orderID string) (*model.Subscription, error) {
	const q = `
SELECT ` + subscriptionColumns + `
  FROM subscriptions
 WHERE parent_order_id=$1 AND status='active'
 LIMIT 1;`
	return r.queryOne(ctx, tx, q, orderID)
}

func (r *subscriptionRepo) ListDue(ctx context.Context, tx repository.Tx, asOf time.Time, limit int) ([]*model.Subscription, error) {
	const q = `
SELECT ` + subscriptionColumns + `
  FROM subscriptions
 WHERE status='active' AND next_payment_date IS NOT NULL AND next_payment_date <= $1
 ORDER BY next_payment_date ASC
 LIMIT $2;`
	rows, err := queryRows(ctx, r.pool, tx, q, asOf, limit)
	if err != nil {
		switch err {
		case domain.ErrInvalidArgument, domain.ErrInvalidExecContext:
			return nil, err
		default:
			metrics.IncDBError("subscriptions")
			return nil, domain.ErrOperationFailed
		}
	}
	defer rows.Close()
	var out []*model.Subscription
	for rows.Next() {
		s := &model.Subscription{}
		var status string
		if err := rows.Scan(&s.ID, &status, &s.RemainingPayments, &s.NextPaymentDate, &s.MembershipID, &s.ParentOrderID, &s.PaymentMethod, &s.CreatedAt, &s.UpdatedAt); err != nil {
			return nil, domain.ErrReadDatabaseRow
		}
		s.Status = model.SubscriptionStatus(status)
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.ErrReadDatabaseRow
	}
	return out, nil
}

func (r *subscriptionRepo) queryOne(ctx context.Context, tx repository.Tx, sql string, args ...any) (*model.Subscription, error) {
	row, err := pickRow(ctx, r.pool, tx, sql, args...)
	if err != nil {
		return nil, err
	}
	s := &model.Subscription{}
	var status string
	if err := row.Scan(&s.ID, &status, &s.RemainingPayments, &s.NextPaymentDate, &s.MembershipID, &s.ParentOrderID, &s.PaymentMethod, &s.CreatedAt, &s.UpdatedAt); err != nil {
		if err == pgx.ErrNoRows {
			return nil, domain.ErrNotFound
		}
		return nil, domain.ErrReadDatabaseRow
	}
	s.Status = model.SubscriptionStatus(status)
	return s, nil
}
