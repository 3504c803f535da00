package model

import "time"

type PaymentPlan string

const (
	PlanIntegral            PaymentPlan = "integral"
	PlanDeposit             PaymentPlan = "deposit"
	PlanInstallments        PaymentPlan = "installments"
	PlanInstallmentsDeposit PaymentPlan = "installments_deposit"
)

// PaymentLink is the immutable configuration of a plan. Amounts are fixed at
// link creation time; this engine never recomputes them.
type PaymentLink struct {
	ID                string // UUID
	Plan              PaymentPlan
	InstallmentsCount *int       // required when the plan involves installments
	FirstPaymentDate  *time.Time // first payment after the deposit; required for deposit plans
	ProductID         *string    // UUID -> Product (new-membership family)
	ExtensionID       *string    // UUID -> Extension (extension family)
	AmountCents       int64
	Currency          string
	CreatedAt         time.Time
}

// RequiresDeposit reports whether the plan includes a distinct deposit payment.
func (l *PaymentLink) RequiresDeposit() bool {
	return l.Plan == PlanDeposit || l.Plan == PlanInstallmentsDeposit
}

// RequiresInstallments reports whether the plan schedules installment payments.
func (l *PaymentLink) RequiresInstallments() bool {
	return l.Plan == PlanInstallments || l.Plan == PlanInstallmentsDeposit
}

// Installments returns the configured installment count. The count defaults to
// 1 when absent; callers that consider absence suspicious should log it.
func (l *PaymentLink) Installments() int {
	if l.InstallmentsCount == nil || *l.InstallmentsCount < 1 {
		return 1
	}
	return *l.InstallmentsCount
}
