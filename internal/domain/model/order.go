package model

import "time"

type OrderKind string

const (
	// OrderKindInitialSingle is a purchase settled by exactly one payment.
	OrderKindInitialSingle OrderKind = "initial_single"
	// OrderKindInitialParent is the first payment of a multi-payment plan and
	// the root of the lineage its renewals reference.
	OrderKindInitialParent OrderKind = "initial_parent"
	// OrderKindRenewal is a subsequent installment payment within a lineage.
	OrderKindRenewal OrderKind = "renewal"
)

type OrderStatus string

const (
	OrderStatusAwaitingTransfer OrderStatus = "awaiting_transfer"
	OrderStatusCompleted        OrderStatus = "completed"
)

// Order is one purchase attempt or one recurring installment attempt.
// Status only ever moves forward: awaiting_transfer -> completed.
type Order struct {
	ID            string // UUID
	Kind          OrderKind
	Status        OrderStatus
	CustomerEmail string
	CustomerName  string
	ItemName      string  // snapshot of the product or extension name at checkout
	PaymentLinkID string  // UUID -> PaymentLink
	ParentOrderID *string // set on renewal orders; UUID of the lineage root
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// IsInitial reports whether the order opens a lineage (as opposed to renewing one).
func (o *Order) IsInitial() bool {
	return o.Kind == OrderKindInitialSingle || o.Kind == OrderKindInitialParent
}
