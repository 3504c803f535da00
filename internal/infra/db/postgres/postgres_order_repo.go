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

// Ensure orderRepo implements repository.OrderRepository
var _ repository.OrderRepository = (*orderRepo)(nil)

type orderRepo struct {
	pool *pgxpool.Pool
}

func NewOrderRepo(pool *pgxpool.Pool) *orderRepo {
	return &orderRepo{pool: pool}
}

const orderColumns = `id, kind, status, customer_email, customer_name, item_name, payment_link_id, parent_order_id, created_at, updated_at`

func (r *orderRepo) Save(ctx context.Context, tx repository.Tx, o *model.Order) error {
	const q = `
INSERT INTO orders (
  id, kind, status, customer_email, customer_name, item_name, payment_link_id, parent_order_id, created_at, updated_at
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
ON CONFLICT (id) DO UPDATE SET
  status=$3, updated_at=$10;`

	_, err := execSQL(ctx, r.pool, tx, q, o.ID, o.Kind, o.Status, o.CustomerEmail, o.CustomerName, o.ItemName, o.PaymentLinkID, o.ParentOrderID, o.CreatedAt, o.UpdatedAt)
	if err != nil {
		switch err {
		case domain.ErrInvalidArgument, domain.ErrInvalidExecContext:
			return err
		default:
			metrics.IncDBError("orders")
			return domain.ErrOperationFailed
		}
	}
	return nil
}

func (r *orderRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Order, error) {
	const q = `SELECT ` + orderColumns + ` FROM orders WHERE id=$1;`
	return r.queryOne(ctx, tx, q, id)
}

func (r *orderRepo) UpdateStatus(ctx context.Context, tx repository.Tx, id string, status model.OrderStatus) error {
	const q = `UPDATE orders SET status=$2, updated_at=NOW() WHERE id=$1;`
	tag, err := execSQL(ctx, r.pool, tx, q, id, status)
	if err != nil {
		switch err {
		case domain.ErrInvalidArgument, domain.ErrInvalidExecContext:
			return err
		default:
			metrics.IncDBError("orders")
			return domain.ErrOperationFailed
		}
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *orderRepo) FindOpenRenewalByParent(ctx context.Context, tx repository.Tx, parentOrderID string) (*model.Order, error) {
	const q = `
SELECT ` + orderColumns + `
  FROM orders
 WHERE parent_order_id=$1 AND kind='renewal' AND status='awaiting_transfer'
 ORDER BY created_at DESC
 LIMIT 1;`
	return r.queryOne(ctx, tx, q, parentOrderID)
}

func (r *orderRepo) ListAwaitingTransfer(ctx context.Context, tx repository.Tx, olderThan time.Time, limit int) ([]*model.Order, error) {
	const q = `
SELECT ` + orderColumns + `
  FROM orders
 WHERE status='awaiting_transfer' AND created_at < $1
 ORDER BY created_at ASC
 LIMIT $2;`
	rows, err := queryRows(ctx, r.pool, tx, q, olderThan, limit)
	if err != nil {
		switch err {
		case domain.ErrInvalidArgument, domain.ErrInvalidExecContext:
			return nil, err
		default:
			metrics.IncDBError("orders")
			return nil, domain.ErrOperationFailed
		}
	}
	defer rows.Close()
	var out []*model.Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.ErrReadDatabaseRow
	}
	return out, nil
}

func (r *orderRepo) queryOne(ctx context.Context, tx repository.Tx, sql string, args ...any) (*model.Order, error) {
	row, err := pickRow(ctx, r.pool, tx, sql, args...)
	if err != nil {
		return nil, err
	}
	o := &model.Order{}
	var kind, status string
	if err := row.Scan(&o.ID, &kind, &status, &o.CustomerEmail, &o.CustomerName, &o.ItemName, &o.PaymentLinkID, &o.ParentOrderID, &o.CreatedAt, &o.UpdatedAt); err != nil {
		if err == pgx.ErrNoRows {
			return nil, domain.ErrNotFound
		}
		return nil, domain.ErrReadDatabaseRow
	}
	o.Kind = model.OrderKind(kind)
	o.Status = model.OrderStatus(status)
	return o, nil
}

func scanOrder(rows pgx.Rows) (*model.Order, error) {
	o := &model.Order{}
	var kind, status string
	if err := rows.Scan(&o.ID, &kind, &status, &o.CustomerEmail, &o.CustomerName, &o.ItemName, &o.PaymentLinkID, &o.ParentOrderID, &o.CreatedAt, &o.UpdatedAt); err != nil {
		return nil, domain.ErrReadDatabaseRow
	}
	o.Kind = model.OrderKind(kind)
	o.Status = model.OrderStatus(status)
	return o, nil
}
