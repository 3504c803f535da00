package repository

import (
	"context"

	"membership-settlement/internal/domain/model"
)

// CatalogRepository is the port for the product/extension catalog the
// payment links point into.
type CatalogRepository interface {
	SaveProduct(ctx context.Context, tx Tx, p *model.Product) error
	SaveExtension(ctx context.Context, tx Tx, e *model.Extension) error
	FindProduct(ctx context.Context, tx Tx, id string) (*model.Product, error)
	FindExtension(ctx context.Context, tx Tx, id string) (*model.Extension, error)
}
