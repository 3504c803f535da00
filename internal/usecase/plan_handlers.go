package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"membership-settlement/internal/domain"
	"membership-settlement/internal/domain/model"
	"membership-settlement/internal/domain/ports/repository"
	"membership-settlement/internal/infra/metrics"
)

// entitlement is the capability the plan state machine is parameterized
// over. The new-membership family creates membership records; the extension
// family mutates the customer's existing one. Everything else about a plan's
// shape (countdown subscription, order status, decrement rules) is shared.
type entitlement interface {
	family() string
	// settled reports whether this order already produced its settlement
	// record (the idempotency guard).
	settled(ctx context.Context, tx repository.Tx, orderID string) (bool, error)
	// open creates or locates the membership the first payment settles
	// against. active=false reserves the entitlement without starting it
	// (plans with a deposit).
	open(ctx context.Context, tx repository.Tx, order *model.Order, start time.Time, active bool) (membershipID string, err error)
	// close applies the final-payment effect: promote a delayed membership
	// (new membership) or push the end date forward (extension).
	close(ctx context.Context, tx repository.Tx, membershipID string) error
	// activate promotes a delayed membership on the first installment after
	// a deposit. No-op for extensions.
	activate(ctx context.Context, tx repository.Tx, membershipID string) error
	// marker persists an idempotency record for one-shot settlements that
	// would otherwise leave nothing keyed by the order. No-op for the
	// new-membership family, whose membership row is the record.
	marker(ctx context.Context, tx repository.Tx, order *model.Order, membershipID string, now time.Time) error
}

// settleFirst handles the first payment of a plan. The switch over the plan
// enum is the whole state machine; keep it exhaustive.
func (u *settlementUC) settleFirst(ctx context.Context, tx repository.Tx, log *zerolog.Logger, fam entitlement, order *model.Order, link *model.PaymentLink) error {
	hit, err := fam.settled(ctx, tx, order.ID)
	if err != nil {
		return err
	}
	if hit {
		// Either a duplicate invocation, or a crash landed between the
		// entitlement write and the order update. The dispatcher already
		// ruled out an open countdown, so completing the order repairs the
		// crash case; the duplicate case it leaves unchanged.
		log.Info().Msg("settlement record already exists for order; skipping")
		metrics.IncSettlement(fam.family(), string(link.Plan), "duplicate")
		return u.completeOrder(ctx, tx, order)
	}

	now := u.now()
	switch link.Plan {
	case model.PlanIntegral:
		return u.settleOneShot(ctx, tx, log, fam, order, link, now)

	case model.PlanDeposit:
		first, err := depositDate(link)
		if err != nil {
			return err
		}
		mid, err := fam.open(ctx, tx, order, first, false)
		if err != nil {
			return err
		}
		// The deposit is never counted inside the installment count: exactly
		// one payment (the remainder) follows it.
		if err := u.createCountdown(ctx, tx, order, mid, 1, &first, now); err != nil {
			return err
		}
		metrics.IncSettlement(fam.family(), string(link.Plan), "opened")
		log.Info().Time("first_payment", first).Msg("deposit settled; awaiting remainder")
		return nil

	case model.PlanInstallments:
		if link.InstallmentsCount == nil {
			log.Warn().Msg("installments plan without installments_count; defaulting to 1")
		}
		n := link.Installments()
		if n == 1 {
			// Special-cased so no subscription is ever created with zero
			// remaining payments, which would read as already completed.
			return u.settleOneShot(ctx, tx, log, fam, order, link, now)
		}
		mid, err := fam.open(ctx, tx, order, now, true)
		if err != nil {
			return err
		}
		next := now.AddDate(0, 1, 0)
		if err := u.createCountdown(ctx, tx, order, mid, n-1, &next, now); err != nil {
			return err
		}
		metrics.IncSettlement(fam.family(), string(link.Plan), "opened")
		log.Info().Int("remaining", n-1).Time("next_payment", next).Msg("first installment settled")
		return nil

	case model.PlanInstallmentsDeposit:
		first, err := depositDate(link)
		if err != nil {
			return err
		}
		if link.InstallmentsCount == nil {
			log.Warn().Msg("installments_deposit plan without installments_count; defaulting to 1")
		}
		n := link.Installments()
		mid, err := fam.open(ctx, tx, order, first, false)
		if err != nil {
			return err
		}
		if err := u.createCountdown(ctx, tx, order, mid, n, &first, now); err != nil {
			return err
		}
		metrics.IncSettlement(fam.family(), string(link.Plan), "opened")
		log.Info().Int("remaining", n).Time("first_payment", first).Msg("deposit settled; installments pending")
		return nil

	default:
		return fmt.Errorf("settlement: unknown plan %q on link %s: %w", link.Plan, link.ID, domain.ErrInvalidArgument)
	}
}

// settleOneShot settles a plan fulfilled by a single payment (integral, or
// installments with a count of one).
func (u *settlementUC) settleOneShot(ctx context.Context, tx repository.Tx, log *zerolog.Logger, fam entitlement, order *model.Order, link *model.PaymentLink, now time.Time) error {
	mid, err := fam.open(ctx, tx, order, now, true)
	if err != nil {
		return err
	}
	if err := fam.close(ctx, tx, mid); err != nil {
		return err
	}
	if err := fam.marker(ctx, tx, order, mid, now); err != nil {
		return err
	}
	if err := u.completeOrder(ctx, tx, order); err != nil {
		return err
	}
	metrics.IncSettlement(fam.family(), string(link.Plan), "settled")
	log.Info().Str("membership_id", mid).Msg("order settled in full")
	return nil
}

func (u *settlementUC) createCountdown(ctx context.Context, tx repository.Tx, order *model.Order, membershipID string, remaining int, next *time.Time, now time.Time) error {
	sub := &model.Subscription{
		ID:                uuid.NewString(),
		Status:            model.SubscriptionStatusActive,
		RemainingPayments: remaining,
		NextPaymentDate:   next,
		MembershipID:      membershipID,
		ParentOrderID:     order.ID,
		PaymentMethod:     model.PaymentMethodBankTransfer,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	return u.subs.Save(ctx, tx, sub)
}

func depositDate(link *model.PaymentLink) (time.Time, error) {
	if link.FirstPaymentDate == nil {
		return time.Time{}, fmt.Errorf("settlement: plan %s on link %s requires first_payment_date: %w", link.Plan, link.ID, domain.ErrMissingPlanField)
	}
	return *link.FirstPaymentDate, nil
}

// ---- new-membership family ----

type productEntitlement struct {
	memberships repository.MembershipRepository
	product     *model.Product
	now         func() time.Time
}

func (f *productEntitlement) family() string { return "product" }

func (f *productEntitlement) settled(ctx context.Context, tx repository.Tx, orderID string) (bool, error) {
	_, err := f.memberships.FindByParentOrder(ctx, tx, orderID)
	if errors.Is(err, domain.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (f *productEntitlement) open(ctx context.Context, tx repository.Tx, order *model.Order, start time.Time, active bool) (string, error) {
	now := f.now()
	m := &model.Membership{
		ID:            uuid.NewString(),
		Status:        model.MembershipStatusActive,
		StartDate:     start,
		EndDate:       start.AddDate(0, f.product.DurationMonths, 0),
		CustomerEmail: order.CustomerEmail,
		ParentOrderID: order.ID,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if !active {
		m.Status = model.MembershipStatusDelayed
		m.DelayedStartDate = &start
	}
	if err := f.memberships.Save(ctx, tx, m); err != nil {
		return "", err
	}
	return m.ID, nil
}

func (f *productEntitlement) close(ctx context.Context, tx repository.Tx, membershipID string) error {
	m, err := f.memberships.FindByID(ctx, tx, membershipID)
	if err != nil {
		return fmt.Errorf("settlement: load membership %s: %w", membershipID, err)
	}
	if m.Status != model.MembershipStatusDelayed {
		return nil
	}
	m.Activate(f.now())
	return f.memberships.Save(ctx, tx, m)
}

func (f *productEntitlement) activate(ctx context.Context, tx repository.Tx, membershipID string) error {
	return f.close(ctx, tx, membershipID)
}

func (f *productEntitlement) marker(ctx context.Context, tx repository.Tx, _ *model.Order, _ string, _ time.Time) error {
	return nil
}

// ---- extension family ----

type extensionEntitlement struct {
	memberships repository.MembershipRepository
	subs        repository.SubscriptionRepository
	ext         *model.Extension
	now         func() time.Time
}

func (f *extensionEntitlement) family() string { return "extension" }

func (f *extensionEntitlement) settled(ctx context.Context, tx repository.Tx, orderID string) (bool, error) {
	_, err := f.subs.FindByParentOrder(ctx, tx, orderID)
	if errors.Is(err, domain.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// open locates the membership the extension applies to. No new membership is
// ever created for an extension; a missing one is a fatal data error.
func (f *extensionEntitlement) open(ctx context.Context, tx repository.Tx, order *model.Order, _ time.Time, _ bool) (string, error) {
	m, err := f.memberships.FindCurrentByCustomer(ctx, tx, order.CustomerEmail)
	if err != nil {
		return "", fmt.Errorf("settlement: membership to extend for %s: %w", order.CustomerEmail, err)
	}
	return m.ID, nil
}

// close pushes the end date forward by the extension's duration at the
// moment the final payment of the plan completes.
func (f *extensionEntitlement) close(ctx context.Context, tx repository.Tx, membershipID string) error {
	m, err := f.memberships.FindByID(ctx, tx, membershipID)
	if err != nil {
		return fmt.Errorf("settlement: load membership %s: %w", membershipID, err)
	}
	now := f.now()
	m.ExtendBy(f.ext.Months, now)
	if m.Status != model.MembershipStatusCancelled {
		m.Status = model.MembershipStatusActive
		m.DelayedStartDate = nil
	}
	return f.memberships.Save(ctx, tx, m)
}

func (f *extensionEntitlement) activate(ctx context.Context, tx repository.Tx, membershipID string) error {
	return nil
}

// marker records a completed subscription keyed by the order so one-shot
// extensions cannot be applied twice.
func (f *extensionEntitlement) marker(ctx context.Context, tx repository.Tx, order *model.Order, membershipID string, now time.Time) error {
	sub := &model.Subscription{
		ID:                uuid.NewString(),
		Status:            model.SubscriptionStatusCompleted,
		RemainingPayments: 0,
		MembershipID:      membershipID,
		ParentOrderID:     order.ID,
		PaymentMethod:     model.PaymentMethodBankTransfer,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	return f.subs.Save(ctx, tx, sub)
}
