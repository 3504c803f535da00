package usecase

import (
	"context"

	"github.com/rs/zerolog"

	"membership-settlement/internal/domain/model"
	"membership-settlement/internal/domain/ports/repository"
	"membership-settlement/internal/infra/metrics"
)

// advance applies one completed payment to an open subscription. The
// remaining-payments counter decreases by exactly one per call and never
// goes negative: a closed subscription turns the call into a logged no-op.
func (u *settlementUC) advance(ctx context.Context, tx repository.Tx, log *zerolog.Logger, fam entitlement, order *model.Order, link *model.PaymentLink, sub *model.Subscription) error {
	if !sub.Open() {
		log.Info().Str("subscription_id", sub.ID).Msg("subscription already closed; duplicate payment ignored")
		metrics.IncSettlement(fam.family(), string(link.Plan), "duplicate")
		return nil
	}

	now := u.now()
	sub.RemainingPayments--

	if sub.RemainingPayments == 0 {
		// The membership write goes first so a crash between statements can
		// never leave a completed countdown over a still-delayed membership.
		if err := fam.close(ctx, tx, sub.MembershipID); err != nil {
			return err
		}
		sub.Status = model.SubscriptionStatusCompleted
		sub.NextPaymentDate = nil
		sub.UpdatedAt = now
		if err := u.subs.Save(ctx, tx, sub); err != nil {
			return err
		}
		if err := u.orders.UpdateStatus(ctx, tx, sub.ParentOrderID, model.OrderStatusCompleted); err != nil {
			return err
		}
		if order.ID == sub.ParentOrderID {
			order.Status = model.OrderStatusCompleted
		} else if err := u.completeOrder(ctx, tx, order); err != nil {
			return err
		}
		metrics.IncSettlement(fam.family(), string(link.Plan), "finalized")
		log.Info().Str("subscription_id", sub.ID).Msg("final payment settled; lineage completed")
		return nil
	}

	next := now.AddDate(0, 1, 0)
	sub.NextPaymentDate = &next
	sub.UpdatedAt = now
	// The deposit already consumed the delayed state's meaning: the first
	// installment after it activates the entitlement even though more
	// installments remain.
	if link.Plan == model.PlanInstallmentsDeposit {
		if err := fam.activate(ctx, tx, sub.MembershipID); err != nil {
			return err
		}
	}
	if err := u.subs.Save(ctx, tx, sub); err != nil {
		return err
	}
	if order.Kind == model.OrderKindRenewal {
		if err := u.completeOrder(ctx, tx, order); err != nil {
			return err
		}
	}
	metrics.IncSettlement(fam.family(), string(link.Plan), "advanced")
	log.Info().
		Str("subscription_id", sub.ID).
		Int("remaining", sub.RemainingPayments).
		Time("next_payment", next).
		Msg("payment settled; countdown advanced")
	return nil
}
