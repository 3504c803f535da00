package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/rs/zerolog"

	"membership-settlement/internal/domain"
	"membership-settlement/internal/domain/model"
	"membership-settlement/internal/domain/ports/repository"
	"membership-settlement/internal/infra/metrics"
)

// Compile-time check
var _ SettlementUseCase = (*settlementUC)(nil)

// SettlementUseCase advances Order, Subscription and Membership records in
// response to a reported bank-transfer payment. Both operations are safe to
// invoke more than once for the same order: duplicate invocations are logged
// no-ops. Fatal configuration errors (missing order, payment link, catalog
// item, or required plan field) are returned to the caller; the engine does
// not retry.
type SettlementUseCase interface {
	CompleteProductBankTransfer(ctx context.Context, orderID string) error
	CompleteExtensionBankTransfer(ctx context.Context, orderID string) error
}

type settlementUC struct {
	orders      repository.OrderRepository
	links       repository.PaymentLinkRepository
	memberships repository.MembershipRepository
	subs        repository.SubscriptionRepository
	catalog     repository.CatalogRepository
	tm          repository.TransactionManager
	log         *zerolog.Logger
	now         func() time.Time
}

func NewSettlementUseCase(
	orders repository.OrderRepository,
	links repository.PaymentLinkRepository,
	memberships repository.MembershipRepository,
	subs repository.SubscriptionRepository,
	catalog repository.CatalogRepository,
	tm repository.TransactionManager,
	logger *zerolog.Logger,
) *settlementUC {
	return &settlementUC{
		orders:      orders,
		links:       links,
		memberships: memberships,
		subs:        subs,
		catalog:     catalog,
		tm:          tm,
		log:         logger,
		now:         time.Now,
	}
}

func (u *settlementUC) CompleteProductBankTransfer(ctx context.Context, orderID string) error {
	return u.complete(ctx, orderID, u.productFamily)
}

func (u *settlementUC) CompleteExtensionBankTransfer(ctx context.Context, orderID string) error {
	return u.complete(ctx, orderID, u.extensionFamily)
}

// familyBuilder resolves the catalog side of a payment link into the
// entitlement capability the plan state machine runs against.
type familyBuilder func(ctx context.Context, tx repository.Tx, link *model.PaymentLink) (entitlement, error)

// complete is the settlement dispatcher. The whole read-classify-write
// sequence runs in one read-committed transaction; the engine performs no
// partial progress outside it.
func (u *settlementUC) complete(ctx context.Context, orderID string, build familyBuilder) error {
	return u.tm.WithTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted}, func(ctx context.Context, tx repository.Tx) error {
		order, err := u.orders.FindByID(ctx, tx, orderID)
		if err != nil {
			return fmt.Errorf("settlement: load order %s: %w", orderID, err)
		}
		link, err := u.links.FindByID(ctx, tx, order.PaymentLinkID)
		if err != nil {
			return fmt.Errorf("settlement: load payment link %s for order %s: %w", order.PaymentLinkID, orderID, err)
		}
		fam, err := build(ctx, tx, link)
		if err != nil {
			return err
		}
		log := u.log.With().
			Str("order_id", order.ID).
			Str("order_kind", string(order.Kind)).
			Str("plan", string(link.Plan)).
			Str("family", fam.family()).
			Logger()

		if order.Status == model.OrderStatusCompleted {
			log.Info().Msg("order already completed; duplicate invocation ignored")
			metrics.IncSettlement(fam.family(), string(link.Plan), "duplicate")
			return nil
		}

		if order.Kind == model.OrderKindRenewal {
			sub, err := u.lineageSubscription(ctx, tx, order)
			if err != nil {
				if errors.Is(err, domain.ErrNotFound) || errors.Is(err, domain.ErrNoActiveSubscription) {
					// The lineage may have been fully settled by a prior,
					// concurrent invocation. Not an error.
					log.Info().Msg("no open subscription for renewal order; nothing to settle")
					metrics.IncSettlement(fam.family(), string(link.Plan), "noop")
					return nil
				}
				return err
			}
			return u.advance(ctx, tx, &log, fam, order, link, sub)
		}

		// An open countdown on this order means this invocation reports a
		// subsequent payment (deposit remainder or installment), not the first.
		if sub, err := u.subs.FindActiveByParentOrder(ctx, tx, order.ID); err == nil {
			if sub.Open() {
				return u.advance(ctx, tx, &log, fam, order, link, sub)
			}
		} else if !errors.Is(err, domain.ErrNotFound) {
			return err
		}

		return u.settleFirst(ctx, tx, &log, fam, order, link)
	})
}

// lineageSubscription locates the open subscription a renewal order pays
// into. The lookup always goes through the lineage root; a renewal without a
// parent reference has nothing to settle.
func (u *settlementUC) lineageSubscription(ctx context.Context, tx repository.Tx, order *model.Order) (*model.Subscription, error) {
	if order.ParentOrderID == nil {
		return nil, domain.ErrNoActiveSubscription
	}
	sub, err := u.subs.FindActiveByParentOrder(ctx, tx, *order.ParentOrderID)
	if err != nil {
		return nil, err
	}
	if !sub.Open() {
		return nil, domain.ErrNoActiveSubscription
	}
	return sub, nil
}

func (u *settlementUC) productFamily(ctx context.Context, tx repository.Tx, link *model.PaymentLink) (entitlement, error) {
	if link.ProductID == nil {
		return nil, fmt.Errorf("settlement: payment link %s references no product: %w", link.ID, domain.ErrInvalidArgument)
	}
	product, err := u.catalog.FindProduct(ctx, tx, *link.ProductID)
	if err != nil {
		return nil, fmt.Errorf("settlement: load product %s: %w", *link.ProductID, err)
	}
	return &productEntitlement{memberships: u.memberships, product: product, now: u.now}, nil
}

func (u *settlementUC) extensionFamily(ctx context.Context, tx repository.Tx, link *model.PaymentLink) (entitlement, error) {
	if link.ExtensionID == nil {
		return nil, fmt.Errorf("settlement: payment link %s references no extension: %w", link.ID, domain.ErrInvalidArgument)
	}
	ext, err := u.catalog.FindExtension(ctx, tx, *link.ExtensionID)
	if err != nil {
		return nil, fmt.Errorf("settlement: load extension %s: %w", *link.ExtensionID, err)
	}
	return &extensionEntitlement{memberships: u.memberships, subs: u.subs, ext: ext, now: u.now}, nil
}

// completeOrder moves an order to completed. Forward-only; an already
// completed order is left untouched.
func (u *settlementUC) completeOrder(ctx context.Context, tx repository.Tx, order *model.Order) error {
	if order.Status == model.OrderStatusCompleted {
		return nil
	}
	if err := u.orders.UpdateStatus(ctx, tx, order.ID, model.OrderStatusCompleted); err != nil {
		return err
	}
	order.Status = model.OrderStatusCompleted
	return nil
}
