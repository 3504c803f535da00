package repository

import (
	"context"
	"time"

	"membership-settlement/internal/domain/model"
)

// SubscriptionRepository is the port for countdown subscriptions.
type SubscriptionRepository interface {
	Save(ctx context.Context, tx Tx, s *model.Subscription) error
	// FindByParentOrder is the idempotency-guard lookup for the extension
	// family: at most one subscription references a given lineage root.
	FindByParentOrder(ctx context.Context, tx Tx, orderID string) (*model.Subscription, error)
	// FindActiveByParentOrder returns the lineage's active subscription, or
	// ErrNotFound. The lookup is always keyed by the lineage root; there is
	// deliberately no "any active subscription" fallback.
	FindActiveByParentOrder(ctx context.Context, tx Tx, orderID string) (*model.Subscription, error)
	// ListDue returns active subscriptions whose next payment date has
	// passed, oldest first.
	ListDue(ctx context.Context, tx Tx, asOf time.Time, limit int) ([]*model.Subscription, error)
}
