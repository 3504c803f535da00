//go:build integration

package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"membership-settlement/internal/domain"
	"membership-settlement/internal/domain/model"
	"membership-settlement/internal/domain/ports/repository"
)

// seedLink inserts the product and payment link an order row depends on.
func seedLink(t *testing.T, ctx context.Context) string {
	t.Helper()
	now := time.Now()
	catalog := NewCatalogRepo(testPool)
	product := &model.Product{
		ID: uuid.NewString(), Name: "Annual", DurationMonths: 12,
		PriceCents: 100_000, Currency: "EUR", CreatedAt: now,
	}
	if err := catalog.SaveProduct(ctx, repository.NoTX, product); err != nil {
		t.Fatalf("seed product: %v", err)
	}
	links := NewPaymentLinkRepo(testPool)
	link := &model.PaymentLink{
		ID: uuid.NewString(), Plan: model.PlanIntegral, ProductID: &product.ID,
		AmountCents: product.PriceCents, Currency: "EUR", CreatedAt: now,
	}
	if err := links.Save(ctx, repository.NoTX, link); err != nil {
		t.Fatalf("seed payment link: %v", err)
	}
	return link.ID
}

func seedOrder(t *testing.T, ctx context.Context, linkID string, kind model.OrderKind, parent *string) *model.Order {
	t.Helper()
	now := time.Now()
	o := &model.Order{
		ID: uuid.NewString(), Kind: kind, Status: model.OrderStatusAwaitingTransfer,
		CustomerEmail: "a@example.com", CustomerName: "A", ItemName: "Annual",
		PaymentLinkID: linkID, ParentOrderID: parent,
		CreatedAt: now, UpdatedAt: now,
	}
	if err := NewOrderRepo(testPool).Save(ctx, repository.NoTX, o); err != nil {
		t.Fatalf("seed order: %v", err)
	}
	return o
}

func TestOrderRepo_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode.")
	}
	ctx := context.Background()
	repo := NewOrderRepo(testPool)
	cleanup(t)

	linkID := seedLink(t, ctx)

	t.Run("should save and read back an order", func(t *testing.T) {
		o := seedOrder(t, ctx, linkID, model.OrderKindInitialSingle, nil)

		found, err := repo.FindByID(ctx, repository.NoTX, o.ID)
		if err != nil {
			t.Fatalf("FindByID: %v", err)
		}
		if found.Kind != o.Kind || found.Status != o.Status || found.PaymentLinkID != linkID {
			t.Errorf("mismatch in retrieved order: %+v", found)
		}
	})

	t.Run("should update the status in place", func(t *testing.T) {
		o := seedOrder(t, ctx, linkID, model.OrderKindInitialSingle, nil)

		if err := repo.UpdateStatus(ctx, repository.NoTX, o.ID, model.OrderStatusCompleted); err != nil {
			t.Fatalf("UpdateStatus: %v", err)
		}
		found, err := repo.FindByID(ctx, repository.NoTX, o.ID)
		if err != nil {
			t.Fatalf("FindByID: %v", err)
		}
		if found.Status != model.OrderStatusCompleted {
			t.Errorf("expected completed, got %s", found.Status)
		}
	})

	t.Run("should return not found when updating a missing order", func(t *testing.T) {
		err := repo.UpdateStatus(ctx, repository.NoTX, uuid.NewString(), model.OrderStatusCompleted)
		if !errors.Is(err, domain.ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
	})

	t.Run("should find the open renewal order of a lineage", func(t *testing.T) {
		parent := seedOrder(t, ctx, linkID, model.OrderKindInitialParent, nil)
		renewal := seedOrder(t, ctx, linkID, model.OrderKindRenewal, &parent.ID)

		found, err := repo.FindOpenRenewalByParent(ctx, repository.NoTX, parent.ID)
		if err != nil {
			t.Fatalf("FindOpenRenewalByParent: %v", err)
		}
		if found.ID != renewal.ID {
			t.Errorf("expected renewal %s, got %s", renewal.ID, found.ID)
		}

		// Once settled, the lineage has no open renewal.
		if err := repo.UpdateStatus(ctx, repository.NoTX, renewal.ID, model.OrderStatusCompleted); err != nil {
			t.Fatalf("UpdateStatus: %v", err)
		}
		if _, err := repo.FindOpenRenewalByParent(ctx, repository.NoTX, parent.ID); !errors.Is(err, domain.ErrNotFound) {
			t.Errorf("expected ErrNotFound after settling the renewal, got %v", err)
		}
	})

	t.Run("should list stale awaiting orders oldest first", func(t *testing.T) {
		cleanup(t)
		linkID := seedLink(t, ctx)
		o1 := seedOrder(t, ctx, linkID, model.OrderKindInitialSingle, nil)
		o2 := seedOrder(t, ctx, linkID, model.OrderKindInitialSingle, nil)
		_ = o2

		stale, err := repo.ListAwaitingTransfer(ctx, repository.NoTX, time.Now().Add(time.Minute), 10)
		if err != nil {
			t.Fatalf("ListAwaitingTransfer: %v", err)
		}
		if len(stale) != 2 {
			t.Fatalf("expected 2 awaiting orders, got %d", len(stale))
		}
		if stale[0].ID != o1.ID {
			t.Errorf("expected oldest order first, got %s", stale[0].ID)
		}

		none, err := repo.ListAwaitingTransfer(ctx, repository.NoTX, time.Now().Add(-time.Hour), 10)
		if err != nil {
			t.Fatalf("ListAwaitingTransfer: %v", err)
		}
		if len(none) != 0 {
			t.Errorf("expected no orders older than an hour, got %d", len(none))
		}
	})
}
