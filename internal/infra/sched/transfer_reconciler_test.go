//go:build !integration

package sched

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"membership-settlement/internal/domain"
	"membership-settlement/internal/domain/model"
	"membership-settlement/internal/domain/ports/repository"
)

type mockSettlementUC struct {
	productCalls   []string
	extensionCalls []string
}

func (m *mockSettlementUC) CompleteProductBankTransfer(ctx context.Context, orderID string) error {
	m.productCalls = append(m.productCalls, orderID)
	return nil
}

func (m *mockSettlementUC) CompleteExtensionBankTransfer(ctx context.Context, orderID string) error {
	m.extensionCalls = append(m.extensionCalls, orderID)
	return nil
}

type mockLinkRepo struct {
	repository.PaymentLinkRepository
	links map[string]*model.PaymentLink
}

func (m *mockLinkRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.PaymentLink, error) {
	l, ok := m.links[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return l, nil
}

type mockMembershipRepo struct {
	repository.MembershipRepository
	byParent map[string]*model.Membership
}

func (m *mockMembershipRepo) FindByParentOrder(ctx context.Context, tx repository.Tx, orderID string) (*model.Membership, error) {
	mem, ok := m.byParent[orderID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return mem, nil
}

type reconcilerSubRepo struct {
	repository.SubscriptionRepository
	byParent map[string]*model.Subscription
}

func (m *reconcilerSubRepo) FindByParentOrder(ctx context.Context, tx repository.Tx, orderID string) (*model.Subscription, error) {
	s, ok := m.byParent[orderID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return s, nil
}

func (m *reconcilerSubRepo) FindActiveByParentOrder(ctx context.Context, tx repository.Tx, orderID string) (*model.Subscription, error) {
	s, ok := m.byParent[orderID]
	if !ok || s.Status != model.SubscriptionStatusActive {
		return nil, domain.ErrNotFound
	}
	return s, nil
}

type staleOrderRepo struct {
	repository.OrderRepository
	stale []*model.Order
}

func (m *staleOrderRepo) ListAwaitingTransfer(ctx context.Context, tx repository.Tx, olderThan time.Time, limit int) ([]*model.Order, error) {
	return m.stale, nil
}

func TestTransferReconciler(t *testing.T) {
	ctx := context.Background()
	logger := zerolog.New(io.Discard)
	productID := "prod-1"
	extensionID := "ext-1"

	staleOrder := func(id string, kind model.OrderKind, linkID string) *model.Order {
		return &model.Order{
			ID: id, Kind: kind, Status: model.OrderStatusAwaitingTransfer,
			PaymentLinkID: linkID, CreatedAt: time.Now().Add(-2 * time.Hour),
		}
	}

	newReconciler := func(uc *mockSettlementUC, orders *staleOrderRepo, links *mockLinkRepo, memberships *mockMembershipRepo, subs *reconcilerSubRepo) *TransferReconciler {
		return NewTransferReconciler(uc, orders, links, memberships, subs, time.Minute, time.Hour, &logger)
	}

	t.Run("should re-drive an initial order whose settlement record exists", func(t *testing.T) {
		uc := &mockSettlementUC{}
		links := &mockLinkRepo{links: map[string]*model.PaymentLink{
			"link-1": {ID: "link-1", Plan: model.PlanIntegral, ProductID: &productID},
		}}
		memberships := &mockMembershipRepo{byParent: map[string]*model.Membership{
			"order-1": {ID: "mem-1", ParentOrderID: "order-1"},
		}}
		subs := &reconcilerSubRepo{byParent: map[string]*model.Subscription{}}
		orders := &staleOrderRepo{stale: []*model.Order{staleOrder("order-1", model.OrderKindInitialSingle, "link-1")}}

		newReconciler(uc, orders, links, memberships, subs).tick(ctx)

		if len(uc.productCalls) != 1 || uc.productCalls[0] != "order-1" {
			t.Errorf("expected one re-drive for order-1, got %v", uc.productCalls)
		}
	})

	t.Run("should route extension orders to the extension entry point", func(t *testing.T) {
		uc := &mockSettlementUC{}
		links := &mockLinkRepo{links: map[string]*model.PaymentLink{
			"link-ext": {ID: "link-ext", Plan: model.PlanIntegral, ExtensionID: &extensionID},
		}}
		memberships := &mockMembershipRepo{byParent: map[string]*model.Membership{}}
		subs := &reconcilerSubRepo{byParent: map[string]*model.Subscription{
			"order-1": {ID: "sub-1", Status: model.SubscriptionStatusCompleted, ParentOrderID: "order-1"},
		}}
		orders := &staleOrderRepo{stale: []*model.Order{staleOrder("order-1", model.OrderKindInitialSingle, "link-ext")}}

		newReconciler(uc, orders, links, memberships, subs).tick(ctx)

		if len(uc.extensionCalls) != 1 || len(uc.productCalls) != 0 {
			t.Errorf("expected one extension re-drive, got product=%v extension=%v", uc.productCalls, uc.extensionCalls)
		}
	})

	t.Run("should skip a lineage that is still counting down", func(t *testing.T) {
		uc := &mockSettlementUC{}
		links := &mockLinkRepo{links: map[string]*model.PaymentLink{
			"link-1": {ID: "link-1", Plan: model.PlanDeposit, ProductID: &productID},
		}}
		memberships := &mockMembershipRepo{byParent: map[string]*model.Membership{
			"order-1": {ID: "mem-1", ParentOrderID: "order-1"},
		}}
		subs := &reconcilerSubRepo{byParent: map[string]*model.Subscription{
			"order-1": {ID: "sub-1", Status: model.SubscriptionStatusActive, RemainingPayments: 1, ParentOrderID: "order-1"},
		}}
		orders := &staleOrderRepo{stale: []*model.Order{staleOrder("order-1", model.OrderKindInitialParent, "link-1")}}

		newReconciler(uc, orders, links, memberships, subs).tick(ctx)

		if len(uc.productCalls) != 0 {
			t.Errorf("expected no re-drive for an open countdown, got %v", uc.productCalls)
		}
	})

	t.Run("should leave genuinely unpaid orders alone", func(t *testing.T) {
		uc := &mockSettlementUC{}
		links := &mockLinkRepo{links: map[string]*model.PaymentLink{
			"link-1": {ID: "link-1", Plan: model.PlanIntegral, ProductID: &productID},
		}}
		memberships := &mockMembershipRepo{byParent: map[string]*model.Membership{}}
		subs := &reconcilerSubRepo{byParent: map[string]*model.Subscription{}}
		orders := &staleOrderRepo{stale: []*model.Order{staleOrder("order-1", model.OrderKindInitialSingle, "link-1")}}

		newReconciler(uc, orders, links, memberships, subs).tick(ctx)

		if len(uc.productCalls) != 0 {
			t.Errorf("expected no re-drive for an unpaid order, got %v", uc.productCalls)
		}
	})

	t.Run("should never touch renewal orders", func(t *testing.T) {
		uc := &mockSettlementUC{}
		parent := "parent-1"
		o := staleOrder("renewal-1", model.OrderKindRenewal, "link-1")
		o.ParentOrderID = &parent
		links := &mockLinkRepo{links: map[string]*model.PaymentLink{
			"link-1": {ID: "link-1", Plan: model.PlanInstallments, ProductID: &productID},
		}}
		memberships := &mockMembershipRepo{byParent: map[string]*model.Membership{}}
		subs := &reconcilerSubRepo{byParent: map[string]*model.Subscription{}}
		orders := &staleOrderRepo{stale: []*model.Order{o}}

		newReconciler(uc, orders, links, memberships, subs).tick(ctx)

		if len(uc.productCalls) != 0 || len(uc.extensionCalls) != 0 {
			t.Errorf("expected renewal orders to be skipped, got product=%v extension=%v", uc.productCalls, uc.extensionCalls)
		}
	})
}
