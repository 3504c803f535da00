package model

import "time"

type SubscriptionStatus string

const (
	SubscriptionStatusActive    SubscriptionStatus = "active"
	SubscriptionStatusCompleted SubscriptionStatus = "completed"
)

const PaymentMethodBankTransfer = "bank_transfer"

// Subscription tracks the outstanding future payments of a multi-payment
// plan. remaining_payments decreases by exactly one per settled payment and
// never goes negative; the subscription completes exactly when it reaches
// zero. At most one active subscription exists per parent order.
type Subscription struct {
	ID                string // UUID
	Status            SubscriptionStatus
	RemainingPayments int
	NextPaymentDate   *time.Time // nil once completed
	MembershipID      string     // UUID -> Membership
	ParentOrderID     string     // UUID of the lineage root order, unique
	PaymentMethod     string
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// Open reports whether the subscription still expects payments.
func (s *Subscription) Open() bool {
	return s.Status == SubscriptionStatusActive && s.RemainingPayments > 0
}
