package sched

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"membership-settlement/internal/domain"
	"membership-settlement/internal/domain/model"
	"membership-settlement/internal/domain/ports/repository"
	"membership-settlement/internal/usecase"
)

// TransferReconciler periodically scans stale awaiting-transfer orders and
// re-invokes completion for those whose lineage already carries a settlement
// record — the case where a crash landed between the entitlement write and
// the order update. Re-invocation is safe: the engine treats it as a
// duplicate. Orders with no settlement record are genuinely unpaid and are
// left for the operator.
type TransferReconciler struct {
	uc          usecase.SettlementUseCase
	orders      repository.OrderRepository
	links       repository.PaymentLinkRepository
	memberships repository.MembershipRepository
	subs        repository.SubscriptionRepository
	interval    time.Duration // how often to scan
	staleAfter  time.Duration // how old an awaiting order must be
	log         *zerolog.Logger
}

func NewTransferReconciler(
	uc usecase.SettlementUseCase,
	orders repository.OrderRepository,
	links repository.PaymentLinkRepository,
	memberships repository.MembershipRepository,
	subs repository.SubscriptionRepository,
	interval, staleAfter time.Duration,
	logger *zerolog.Logger,
) *TransferReconciler {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	if staleAfter <= 0 {
		staleAfter = time.Hour
	}
	return &TransferReconciler{
		uc:          uc,
		orders:      orders,
		links:       links,
		memberships: memberships,
		subs:        subs,
		interval:    interval,
		staleAfter:  staleAfter,
		log:         logger,
	}
}

func (w *TransferReconciler) Start(ctx context.Context) {
	t := time.NewTicker(w.interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			w.tick(ctx)
		}
	}
}

func (w *TransferReconciler) tick(ctx context.Context) {
	cutoff := time.Now().Add(-w.staleAfter)
	stale, err := w.orders.ListAwaitingTransfer(ctx, nil, cutoff, 200)
	if err != nil {
		w.log.Error().Err(err).Msg("transfer-reconciler: list awaiting orders")
		return
	}
	for _, o := range stale {
		if !o.IsInitial() {
			// Renewal orders are settled by operator action only; a stuck one
			// means its lineage finished through another path.
			continue
		}
		link, err := w.links.FindByID(ctx, nil, o.PaymentLinkID)
		if err != nil {
			w.log.Error().Err(err).Str("order_id", o.ID).Msg("transfer-reconciler: load payment link")
			continue
		}

		// A lineage still counting down is legitimately waiting for money.
		if sub, err := w.subs.FindActiveByParentOrder(ctx, nil, o.ID); err == nil && sub.Open() {
			continue
		}

		if !w.hasSettlementRecord(ctx, o, link) {
			continue
		}

		w.log.Info().Str("order_id", o.ID).Msg("transfer-reconciler: re-driving settled order")
		complete := w.uc.CompleteProductBankTransfer
		if link.ExtensionID != nil {
			complete = w.uc.CompleteExtensionBankTransfer
		}
		if err := complete(ctx, o.ID); err != nil && !errors.Is(err, domain.ErrAlreadyExists) {
			w.log.Error().Err(err).Str("order_id", o.ID).Msg("transfer-reconciler: re-drive failed")
		}
	}
}

func (w *TransferReconciler) hasSettlementRecord(ctx context.Context, o *model.Order, link *model.PaymentLink) bool {
	if link.ExtensionID != nil {
		_, err := w.subs.FindByParentOrder(ctx, nil, o.ID)
		return err == nil
	}
	_, err := w.memberships.FindByParentOrder(ctx, nil, o.ID)
	return err == nil
}
