package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"time"

	"boxoffice/entity"
	"boxoffice/reservation"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

func (tx *Tx) Event(ctx context.Context, eventID string) (entity.Event, error) {
	if !validUUID(eventID) {
		return entity.Event{}, fmt.Errorf("event %s: %w", eventID, entity.ErrNotFound)
	}

	var row eventRow
	err := tx.tx.GetContext(ctx, &row, `SELECT id, organization_id, short_name, currency, vat_percentage,
		vat_status, time_zone, begin_at, end_at, payment_methods, regular_price_cts, seats, general_available
		FROM events WHERE id = $1`, eventID)
	if err != nil {
		return entity.Event{}, notFound(err, "event %s", eventID)
	}
	return row.entity(), nil
}

func (tx *Tx) Categories(ctx context.Context, eventID string) ([]entity.TicketCategory, error) {
	var rows []categoryRow
	err := tx.tx.SelectContext(ctx, &rows, `SELECT `+categoryColumns+`
		FROM ticket_categories WHERE event_id = $1 ORDER BY id`, eventID)
	if err != nil {
		return nil, fmt.Errorf("selecting categories of %s: %w", eventID, err)
	}
	return categories(rows), nil
}

func (tx *Tx) Settings(ctx context.Context, organizationID, eventID string, categoryID int64) ([]entity.Setting, error) {
	category := ""
	if categoryID != 0 {
		category = strconv.FormatInt(categoryID, 10)
	}

	var rows []settingRow
	err := tx.tx.SelectContext(ctx, &rows, `SELECT scope, scope_id, key, value FROM configuration
		WHERE scope = 'SYSTEM'
		OR (scope = 'ORGANIZATION' AND scope_id = $1)
		OR (scope = 'EVENT' AND scope_id = $2)
		OR (scope = 'CATEGORY' AND $3 <> '' AND scope_id = $3)`,
		organizationID, eventID, category)
	if err != nil {
		return nil, fmt.Errorf("selecting settings: %w", err)
	}

	settings := make([]entity.Setting, len(rows))
	for i, r := range rows {
		settings[i] = entity.Setting{
			Scope:   entity.SettingScope(r.Scope),
			ScopeID: r.ScopeID,
			Key:     r.Key,
			Value:   r.Value,
		}
	}
	return settings, nil
}

func (tx *Tx) LockCategories(ctx context.Context, eventID string, categoryIDs []int64) ([]entity.TicketCategory, error) {
	var rows []categoryRow
	err := tx.tx.SelectContext(ctx, &rows, `SELECT `+categoryColumns+`
		FROM ticket_categories WHERE event_id = $1 AND id = ANY($2)
		ORDER BY id FOR UPDATE`, eventID, pq.Array(categoryIDs))
	if err != nil {
		return nil, fmt.Errorf("locking categories: %w", err)
	}
	return categories(rows), nil
}

func (tx *Tx) TakeCategorySeats(ctx context.Context, categoryID int64, n int) error {
	res, err := tx.tx.ExecContext(ctx, `UPDATE ticket_categories SET available = available - $1
		WHERE id = $2 AND available >= $1`, n, categoryID)
	if err != nil {
		return fmt.Errorf("taking seats of category %d: %w", categoryID, err)
	}

	if affected, err := res.RowsAffected(); err != nil {
		return fmt.Errorf("getting rows affected: %w", err)
	} else if affected == 1 {
		return nil
	}

	var available int
	err = tx.tx.GetContext(ctx, &available, `SELECT available FROM ticket_categories WHERE id = $1`, categoryID)
	if err != nil {
		return notFound(err, "category %d", categoryID)
	}
	return entity.InsufficientInventoryError{CategoryID: categoryID, Requested: n, Available: available}
}

func (tx *Tx) TakeGeneralSeats(ctx context.Context, eventID string, categoryID int64, n int) error {
	res, err := tx.tx.ExecContext(ctx, `UPDATE events SET general_available = general_available - $1
		WHERE id = $2 AND general_available >= $1`, n, eventID)
	if err != nil {
		return fmt.Errorf("taking general seats of %s: %w", eventID, err)
	}

	if affected, err := res.RowsAffected(); err != nil {
		return fmt.Errorf("getting rows affected: %w", err)
	} else if affected == 1 {
		return nil
	}

	var available int
	err = tx.tx.GetContext(ctx, &available, `SELECT general_available FROM events WHERE id = $1`, eventID)
	if err != nil {
		return notFound(err, "event %s", eventID)
	}
	return entity.InsufficientInventoryError{CategoryID: categoryID, Requested: n, Available: available}
}

func (tx *Tx) ReturnSeats(ctx context.Context, eventID string, seats []reservation.ReturnedSeats) error {
	for _, s := range seats {
		var err error
		if s.Bounded {
			_, err = tx.tx.ExecContext(ctx, `UPDATE ticket_categories SET available = available + $1
				WHERE id = $2`, s.Count, s.CategoryID)
		} else {
			_, err = tx.tx.ExecContext(ctx, `UPDATE events SET general_available = general_available + $1
				WHERE id = $2`, s.Count, eventID)
		}
		if err != nil {
			return fmt.Errorf("returning seats: %w", err)
		}
	}
	return nil
}

// ClaimTickets skips rows locked by concurrent transactions, so two claims on
// the same pool never wait on each other for the same FREE ticket.
func (tx *Tx) ClaimTickets(ctx context.Context, claim reservation.TicketClaim) ([]entity.Ticket, error) {
	poolID := int64(0)
	if claim.Bounded {
		poolID = claim.CategoryID
	}

	var ids []int64
	err := tx.tx.SelectContext(ctx, &ids, `WITH free AS (
			SELECT id FROM tickets
			WHERE event_id = $1 AND status = 'FREE' AND COALESCE(category_id, 0) = $2
			ORDER BY id
			LIMIT $3
			FOR UPDATE SKIP LOCKED
		)
		UPDATE tickets t SET
			category_id = $4,
			reservation_id = $5,
			status = 'PENDING',
			src_price_cts = $6,
			final_price_cts = $7,
			vat_cts = $8,
			discount_cts = $9,
			currency = $10,
			vat_status = $11
		FROM free WHERE t.id = free.id
		RETURNING t.id`,
		claim.EventID, poolID, claim.Quantity,
		claim.CategoryID, claim.ReservationID,
		claim.Price.SrcPriceCts, claim.Price.FinalPriceCts, claim.Price.VatCts, claim.Price.DiscountCts,
		claim.Currency, claim.VatStatus)
	if err != nil {
		return nil, fmt.Errorf("claiming tickets: %w", err)
	}

	tickets, err := tx.ticketsByID(ctx, ids)
	if err != nil {
		return nil, err
	}

	for i := range tickets {
		if i == len(claim.AccessTokenIDs) {
			break
		}
		_, err := tx.tx.ExecContext(ctx, `UPDATE tickets SET access_token_id = $1 WHERE id = $2`,
			claim.AccessTokenIDs[i], tickets[i].ID)
		if err != nil {
			return nil, fmt.Errorf("binding access token: %w", err)
		}
		tickets[i].AccessTokenID = claim.AccessTokenIDs[i]
	}

	return tickets, nil
}

func (tx *Tx) ticketsByID(ctx context.Context, ids []int64) ([]entity.Ticket, error) {
	var rows []ticketRow
	err := tx.tx.SelectContext(ctx, &rows, `SELECT `+ticketColumns+`
		FROM tickets WHERE id = ANY($1) ORDER BY id`, pq.Array(ids))
	if err != nil {
		return nil, fmt.Errorf("selecting tickets: %w", err)
	}
	return ticketEntities(rows), nil
}

func (tx *Tx) Tickets(ctx context.Context, reservationID string) ([]entity.Ticket, error) {
	var rows []ticketRow
	err := tx.tx.SelectContext(ctx, &rows, `SELECT `+ticketColumns+`
		FROM tickets WHERE reservation_id = $1 ORDER BY id`, reservationID)
	if err != nil {
		return nil, fmt.Errorf("selecting tickets of %s: %w", reservationID, err)
	}
	return ticketEntities(rows), nil
}

func ticketEntities(rows []ticketRow) []entity.Ticket {
	t := make([]entity.Ticket, len(rows))
	for i, r := range rows {
		t[i] = r.entity()
	}
	return t
}

func (tx *Tx) UpdateTicketHolders(ctx context.Context, tickets []entity.Ticket) error {
	for _, t := range tickets {
		_, err := tx.tx.ExecContext(ctx, `UPDATE tickets SET first_name = $1, last_name = $2, email = $3
			WHERE id = $4`, t.FirstName, t.LastName, t.Email, t.ID)
		if err != nil {
			return fmt.Errorf("updating holder of ticket %d: %w", t.ID, err)
		}
	}
	return nil
}

func (tx *Tx) SetTicketsStatus(ctx context.Context, ticketIDs []int64, status entity.TicketStatus) error {
	_, err := tx.tx.ExecContext(ctx, `UPDATE tickets SET status = $1 WHERE id = ANY($2)`,
		status, pq.Array(ticketIDs))
	if err != nil {
		return fmt.Errorf("setting tickets status: %w", err)
	}
	return nil
}

func (tx *Tx) ResetTickets(ctx context.Context, ticketIDs []int64) error {
	uuids := make([]string, len(ticketIDs))
	for i := range uuids {
		uuids[i] = uuid.NewString()
	}

	_, err := tx.tx.ExecContext(ctx, `UPDATE tickets t SET
			uuid = v.uuid,
			status = 'FREE',
			reservation_id = NULL,
			category_id = (SELECT c.id FROM ticket_categories c WHERE c.id = t.category_id AND c.bounded),
			src_price_cts = 0,
			final_price_cts = 0,
			vat_cts = 0,
			discount_cts = 0,
			currency = '',
			vat_status = '',
			first_name = '',
			last_name = '',
			email = '',
			access_token_id = NULL
		FROM unnest($1::bigint[], $2::uuid[]) AS v(id, uuid)
		WHERE t.id = v.id`,
		pq.Array(ticketIDs), pq.Array(uuids))
	if err != nil {
		return fmt.Errorf("resetting tickets: %w", err)
	}
	return nil
}

func (tx *Tx) InsertFreeTickets(ctx context.Context, eventID string, categoryID int64, n int) error {
	uuids := make([]string, n)
	for i := range uuids {
		uuids[i] = uuid.NewString()
	}

	_, err := tx.tx.ExecContext(ctx, `INSERT INTO tickets (uuid, event_id, category_id, status)
		SELECT u, $1::uuid, NULLIF($2::bigint, 0), 'FREE' FROM unnest($3::uuid[]) WITH ORDINALITY AS t(u, n)
		ORDER BY n`,
		eventID, categoryID, pq.Array(uuids))
	if err != nil {
		return fmt.Errorf("inserting free tickets: %w", err)
	}
	return nil
}

func (tx *Tx) TakeAccessToken(
	ctx context.Context,
	categoryID int64,
	code, reservationID string,
	now time.Time,
) (entity.AccessToken, error) {
	var row tokenRow
	err := tx.tx.GetContext(ctx, &row, `UPDATE access_tokens SET status = 'TAKEN', reservation_id = $3
		WHERE id = (
			SELECT id FROM access_tokens
			WHERE category_id = $1 AND status = 'FREE'
			AND (valid_until IS NULL OR valid_until > $4)
			AND ($2 = '' OR lower(code) = lower($2))
			ORDER BY id
			LIMIT 1
			FOR UPDATE SKIP LOCKED
		)
		RETURNING `+tokenColumns,
		categoryID, code, reservationID, now)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return entity.AccessToken{}, fmt.Errorf("no usable token: %w", entity.ErrInvalidAccessToken)
		}
		return entity.AccessToken{}, fmt.Errorf("taking access token: %w", err)
	}
	return row.entity(), nil
}

func (tx *Tx) ReleaseAccessTokens(ctx context.Context, tokenIDs []int64) error {
	_, err := tx.tx.ExecContext(ctx, `UPDATE access_tokens SET status = 'FREE', reservation_id = NULL
		WHERE id = ANY($1)`, pq.Array(tokenIDs))
	if err != nil {
		return fmt.Errorf("releasing access tokens: %w", err)
	}
	return nil
}
