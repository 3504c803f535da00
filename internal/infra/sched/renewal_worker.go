package sched

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v4"
	"github.com/rs/zerolog"

	"membership-settlement/internal/domain"
	"membership-settlement/internal/domain/model"
	"membership-settlement/internal/domain/ports/repository"
	"membership-settlement/internal/infra/metrics"
)

// RenewalWorker creates the renewal-payment order for each subscription
// whose next payment date has passed, at most one open renewal order per
// lineage. Settling the created order is the operator's job.
type RenewalWorker struct {
	subs     repository.SubscriptionRepository
	orders   repository.OrderRepository
	tm       repository.TransactionManager
	interval time.Duration
	log      *zerolog.Logger
}

func NewRenewalWorker(
	subs repository.SubscriptionRepository,
	orders repository.OrderRepository,
	tm repository.TransactionManager,
	interval time.Duration,
	logger *zerolog.Logger,
) *RenewalWorker {
	if interval <= 0 {
		interval = time.Hour
	}
	return &RenewalWorker{subs: subs, orders: orders, tm: tm, interval: interval, log: logger}
}

func (w *RenewalWorker) Start(ctx context.Context) {
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

func (w *RenewalWorker) tick(ctx context.Context) {
	due, err := w.subs.ListDue(ctx, nil, time.Now(), 100)
	if err != nil {
		w.log.Error().Err(err).Msg("renewal-worker: list due subscriptions")
		return
	}
	for _, sub := range due {
		if err := w.issueRenewalOrder(ctx, sub); err != nil {
			w.log.Error().Err(err).
				Str("subscription_id", sub.ID).
				Msg("renewal-worker: issue renewal order")
		}
	}
}

func (w *RenewalWorker) issueRenewalOrder(ctx context.Context, sub *model.Subscription) error {
	return w.tm.WithTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted}, func(ctx context.Context, tx repository.Tx) error {
		if _, err := w.orders.FindOpenRenewalByParent(ctx, tx, sub.ParentOrderID); err == nil {
			return nil // already issued
		} else if !errors.Is(err, domain.ErrNotFound) {
			return err
		}

		parent, err := w.orders.FindByID(ctx, tx, sub.ParentOrderID)
		if err != nil {
			return err
		}
		now := time.Now()
		o := &model.Order{
			ID:            uuid.NewString(),
			Kind:          model.OrderKindRenewal,
			Status:        model.OrderStatusAwaitingTransfer,
			CustomerEmail: parent.CustomerEmail,
			CustomerName:  parent.CustomerName,
			ItemName:      parent.ItemName,
			PaymentLinkID: parent.PaymentLinkID,
			ParentOrderID: &parent.ID,
			CreatedAt:     now,
			UpdatedAt:     now,
		}
		if err := w.orders.Save(ctx, tx, o); err != nil {
			return err
		}
		metrics.IncRenewalOrder()
		w.log.Info().
			Str("order_id", o.ID).
			Str("parent_order_id", parent.ID).
			Int("remaining", sub.RemainingPayments).
			Msg("renewal-worker: renewal order created")
		return nil
	})
}
