package catalog

import (
	"context"

	"boxoffice/entity"
)

type Store interface {
	InTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
}

type Tx interface {
	Event(ctx context.Context, eventID string) (entity.Event, error)
	Categories(ctx context.Context, eventID string) ([]entity.TicketCategory, error)

	InsertEvent(ctx context.Context, e entity.Event) error
	InsertCategory(ctx context.Context, c entity.TicketCategory) (entity.TicketCategory, error)
	// InsertFreeTickets adds n FREE tickets; a zero categoryID adds them to the
	// general pool.
	InsertFreeTickets(ctx context.Context, eventID string, categoryID int64, n int) error
	InsertAccessTokens(ctx context.Context, tokens []entity.AccessToken) ([]entity.AccessToken, error)
	UpdateCategoryPrice(ctx context.Context, categoryID int64, priceCts int64) error

	InsertPromoCode(ctx context.Context, p entity.PromoCode) (entity.PromoCode, error)
	InsertAdditionalService(ctx context.Context, s entity.AdditionalService) (entity.AdditionalService, error)
}
