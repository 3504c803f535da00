package model

import "time"

type MembershipStatus string

const (
	// MembershipStatusDelayed marks an entitlement that exists but has not
	// started serving the customer: its activating payment is still pending.
	// Only plans with a deposit ever produce this state.
	MembershipStatusDelayed   MembershipStatus = "delayed"
	MembershipStatusActive    MembershipStatus = "active"
	MembershipStatusCompleted MembershipStatus = "completed"
	MembershipStatusCancelled MembershipStatus = "cancelled"
)

// Membership is the customer's entitlement window. At most one membership
// exists per initiating order (parent_order_id is unique).
type Membership struct {
	ID               string // UUID
	Status           MembershipStatus
	StartDate        time.Time
	DelayedStartDate *time.Time // set while the membership is delayed
	EndDate          time.Time
	CustomerEmail    string
	ParentOrderID    string // UUID of the initiating order, unique
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// Activate promotes a delayed membership. Promotion is one-way; an already
// active membership is left untouched.
func (m *Membership) Activate(now time.Time) {
	if m.Status != MembershipStatusDelayed {
		return
	}
	m.Status = MembershipStatusActive
	m.DelayedStartDate = nil
	m.UpdatedAt = now
}

// ExtendBy pushes the end date forward by the given number of calendar months.
func (m *Membership) ExtendBy(months int, now time.Time) {
	m.EndDate = m.EndDate.AddDate(0, months, 0)
	m.UpdatedAt = now
}
