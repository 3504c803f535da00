package repository

import (
	"context"

	"membership-settlement/internal/domain/model"
)

// PaymentLinkRepository is the port for payment links. Links are immutable
// once created; the engine only reads them.
type PaymentLinkRepository interface {
	Save(ctx context.Context, tx Tx, l *model.PaymentLink) error
	FindByID(ctx context.Context, tx Tx, id string) (*model.PaymentLink, error)
}
