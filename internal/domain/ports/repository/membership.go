package repository

import (
	"context"

	"membership-settlement/internal/domain/model"
)

// MembershipRepository is the port for memberships.
type MembershipRepository interface {
	Save(ctx context.Context, tx Tx, m *model.Membership) error
	FindByID(ctx context.Context, tx Tx, id string) (*model.Membership, error)
	// FindByParentOrder is the idempotency-guard lookup: at most one
	// membership references a given initiating order.
	FindByParentOrder(ctx context.Context, tx Tx, orderID string) (*model.Membership, error)
	// FindCurrentByCustomer returns the customer's membership that an
	// extension applies to (active, or delayed while its deposit is pending).
	FindCurrentByCustomer(ctx context.Context, tx Tx, email string) (*model.Membership, error)
}
