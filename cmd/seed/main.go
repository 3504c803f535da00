package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/google/uuid"

	"membership-settlement/internal/config"
	"membership-settlement/internal/domain/model"
	pg "membership-settlement/internal/infra/db/postgres"
)

func main() {
	cfgPath := flag.String("config", "config.yaml", "path to YAML config file")
	schemaPath := flag.String("schema", "deploy/postgres/init.sql", "path to the schema file")
	demo := flag.Bool("demo", false, "also insert demo catalog, payment links and orders")
	flag.Parse()

	cfg, err := config.LoadConfig(*cfgPath, true)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	pool, err := pg.NewPgxPool(ctx, cfg.Database.URL, 4)
	if err != nil {
		log.Fatalf("postgres: %v", err)
	}
	defer pool.Close()

	// The schema is written to be applied idempotently; re-running is safe.
	schema, err := os.ReadFile(*schemaPath)
	if err != nil {
		log.Fatalf("read schema %s: %v", *schemaPath, err)
	}
	if _, err := pool.Exec(ctx, string(schema)); err != nil {
		log.Fatalf("apply schema: %v", err)
	}
	fmt.Println("schema applied")

	if !*demo {
		return
	}

	catalog := pg.NewCatalogRepo(pool)
	links := pg.NewPaymentLinkRepo(pool)
	orders := pg.NewOrderRepo(pool)
	now := time.Now()

	product := &model.Product{
		ID:             uuid.NewString(),
		Name:           "Annual Membership",
		DurationMonths: 12,
		PriceCents:     120_000,
		Currency:       "EUR",
		CreatedAt:      now,
	}
	if err := catalog.SaveProduct(ctx, nil, product); err != nil {
		log.Fatalf("seed product: %v", err)
	}

	ext := &model.Extension{
		ID:         uuid.NewString(),
		Name:       "3-Month Extension",
		Months:     3,
		PriceCents: 30_000,
		Currency:   "EUR",
		CreatedAt:  now,
	}
	if err := catalog.SaveExtension(ctx, nil, ext); err != nil {
		log.Fatalf("seed extension: %v", err)
	}

	three := 3
	firstPayment := now.AddDate(0, 1, 0)
	demoLinks := []*model.PaymentLink{
		{
			ID: uuid.NewString(), Plan: model.PlanIntegral,
			ProductID: &product.ID, AmountCents: product.PriceCents, Currency: "EUR", CreatedAt: now,
		},
		{
			ID: uuid.NewString(), Plan: model.PlanInstallments, InstallmentsCount: &three,
			ProductID: &product.ID, AmountCents: product.PriceCents / 3, Currency: "EUR", CreatedAt: now,
		},
		{
			ID: uuid.NewString(), Plan: model.PlanDeposit, FirstPaymentDate: &firstPayment,
			ProductID: &product.ID, AmountCents: 20_000, Currency: "EUR", CreatedAt: now,
		},
		{
			ID: uuid.NewString(), Plan: model.PlanIntegral,
			ExtensionID: &ext.ID, AmountCents: ext.PriceCents, Currency: "EUR", CreatedAt: now,
		},
	}
	kinds := []model.OrderKind{
		model.OrderKindInitialSingle,
		model.OrderKindInitialParent,
		model.OrderKindInitialParent,
		model.OrderKindInitialSingle,
	}
	items := []string{product.Name, product.Name, product.Name, ext.Name}

	for i, l := range demoLinks {
		if err := links.Save(ctx, nil, l); err != nil {
			log.Fatalf("seed payment link: %v", err)
		}
		o := &model.Order{
			ID:            uuid.NewString(),
			Kind:          kinds[i],
			Status:        model.OrderStatusAwaitingTransfer,
			CustomerEmail: fmt.Sprintf("customer%d@example.com", i+1),
			CustomerName:  fmt.Sprintf("Demo Customer %d", i+1),
			ItemName:      items[i],
			PaymentLinkID: l.ID,
			CreatedAt:     now,
			UpdatedAt:     now,
		}
		if err := orders.Save(ctx, nil, o); err != nil {
			log.Fatalf("seed order: %v", err)
		}
		fmt.Printf("seeded order %s (%s, plan=%s)\n", o.ID, o.Kind, l.Plan)
	}

	fmt.Println("demo data complete")
}
