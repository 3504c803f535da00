package repository

import (
	"context"
	"time"

	"membership-settlement/internal/domain/model"
)

// OrderRepository is the port for orders. Orders are created by checkout (or
// the renewal worker) and mutated only by the settlement engine; they are
// never deleted.
type OrderRepository interface {
	Save(ctx context.Context, tx Tx, o *model.Order) error
	FindByID(ctx context.Context, tx Tx, id string) (*model.Order, error)
	UpdateStatus(ctx context.Context, tx Tx, id string, status model.OrderStatus) error
	// FindOpenRenewalByParent returns the not-yet-settled renewal order of a
	// lineage, if one exists. Used by the renewal worker to avoid creating a
	// second renewal order for the same due payment.
	FindOpenRenewalByParent(ctx context.Context, tx Tx, parentOrderID string) (*model.Order, error)
	// ListAwaitingTransfer returns orders still awaiting a bank transfer that
	// were created before the cutoff, oldest first.
	ListAwaitingTransfer(ctx context.Context, tx Tx, olderThan time.Time, limit int) ([]*model.Order, error)
}
