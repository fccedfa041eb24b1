package postgres

import (
	"context"
	"fmt"

	"boxoffice/entity"

	"github.com/lib/pq"
)

func (tx *Tx) InsertEvent(ctx context.Context, e entity.Event) error {
	methods := make([]string, len(e.PaymentMethods))
	for i, m := range e.PaymentMethods {
		methods[i] = string(m)
	}

	_, err := tx.tx.ExecContext(ctx, `INSERT INTO events
		(id, organization_id, short_name, currency, vat_percentage, vat_status, time_zone,
		begin_at, end_at, payment_methods, regular_price_cts, seats, general_available)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
		e.ID, e.OrganizationID, e.ShortName, e.Currency, e.VatPercentage, e.VatStatus, e.TimeZone,
		e.Begin, e.End, pq.Array(methods), e.RegularPriceCts, e.Seats, e.GeneralAvailable)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("event %s already exists", e.ID)
		}
		return fmt.Errorf("inserting event: %w", err)
	}
	return nil
}

func (tx *Tx) InsertCategory(ctx context.Context, c entity.TicketCategory) (entity.TicketCategory, error) {
	err := tx.tx.GetContext(ctx, &c.ID, `INSERT INTO ticket_categories
		(event_id, name, max_tickets, inception, expiration, bounded, access_restricted, price_cts, status, available)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING id`,
		c.EventID, c.Name, c.MaxTickets, c.Inception, c.Expiration, c.Bounded, c.AccessRestricted,
		c.PriceCts, c.Status, c.Available)
	if err != nil {
		return entity.TicketCategory{}, fmt.Errorf("inserting category %s: %w", c.Name, err)
	}
	return c, nil
}

func (tx *Tx) InsertAccessTokens(ctx context.Context, tokens []entity.AccessToken) ([]entity.AccessToken, error) {
	inserted := make([]entity.AccessToken, len(tokens))
	for i, t := range tokens {
		var validUntil any
		if !t.ValidUntil.IsZero() {
			validUntil = t.ValidUntil
		}

		err := tx.tx.GetContext(ctx, &t.ID, `INSERT INTO access_tokens
			(code, event_id, category_id, status, valid_until)
			VALUES ($1, $2, $3, $4, $5)
			RETURNING id`,
			t.Code, t.EventID, t.CategoryID, t.Status, validUntil)
		if err != nil {
			return nil, fmt.Errorf("inserting access token: %w", err)
		}
		inserted[i] = t
	}
	return inserted, nil
}

func (tx *Tx) UpdateCategoryPrice(ctx context.Context, categoryID int64, priceCts int64) error {
	res, err := tx.tx.ExecContext(ctx, `UPDATE ticket_categories SET price_cts = $1 WHERE id = $2`,
		priceCts, categoryID)
	if err != nil {
		return fmt.Errorf("updating price of category %d: %w", categoryID, err)
	}

	if affected, err := res.RowsAffected(); err != nil {
		return fmt.Errorf("getting rows affected: %w", err)
	} else if affected != 1 {
		return fmt.Errorf("category %d: %w", categoryID, entity.ErrNotFound)
	}
	return nil
}

func (tx *Tx) InsertPromoCode(ctx context.Context, p entity.PromoCode) (entity.PromoCode, error) {
	categories := p.Categories
	if categories == nil {
		categories = []int64{}
	}

	err := tx.tx.GetContext(ctx, &p.ID, `INSERT INTO promo_codes
		(event_id, code, valid_from, valid_to, discount_type, discount_amount, categories, code_type, max_usage)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id`,
		p.EventID, p.Code, p.ValidFrom, p.ValidTo, p.DiscountType, p.DiscountAmount,
		pq.Array(categories), p.CodeType, p.MaxUsage)
	if err != nil {
		if isUniqueViolation(err) {
			return entity.PromoCode{}, fmt.Errorf("promo code %s already exists", p.Code)
		}
		return entity.PromoCode{}, fmt.Errorf("inserting promo code: %w", err)
	}
	return p, nil
}

func (tx *Tx) InsertAdditionalService(ctx context.Context, s entity.AdditionalService) (entity.AdditionalService, error) {
	err := tx.tx.GetContext(ctx, &s.ID, `INSERT INTO additional_services
		(event_id, name, type, price_cts, vat_type, vat_percentage)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id`,
		s.EventID, s.Name, s.Type, s.PriceCts, s.VatType, s.VatPercentage)
	if err != nil {
		return entity.AdditionalService{}, fmt.Errorf("inserting additional service: %w", err)
	}
	return s, nil
}
