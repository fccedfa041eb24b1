package postgres

import (
	"context"
	"fmt"

	"boxoffice/entity"

	"github.com/lib/pq"
)

func (tx *Tx) PromoCode(ctx context.Context, eventID, code string) (entity.PromoCode, error) {
	var row promoCodeRow
	err := tx.tx.GetContext(ctx, &row, `SELECT `+promoCodeColumns+`
		FROM promo_codes WHERE event_id = $1 AND lower(code) = lower($2)`, eventID, code)
	if err != nil {
		return entity.PromoCode{}, notFound(err, "promo code %s", code)
	}
	return row.entity(), nil
}

func (tx *Tx) PromoCodeByID(ctx context.Context, id int64) (entity.PromoCode, error) {
	var row promoCodeRow
	err := tx.tx.GetContext(ctx, &row, `SELECT `+promoCodeColumns+` FROM promo_codes WHERE id = $1`, id)
	if err != nil {
		return entity.PromoCode{}, notFound(err, "promo code %d", id)
	}
	return row.entity(), nil
}

// PromoCodeUsage locks the promo code row until the transaction ends, so
// concurrent reservations using a limited code are counted one after another.
func (tx *Tx) PromoCodeUsage(ctx context.Context, promoCodeID int64) (int, error) {
	_, err := tx.tx.ExecContext(ctx, `SELECT id FROM promo_codes WHERE id = $1 FOR UPDATE`, promoCodeID)
	if err != nil {
		return 0, fmt.Errorf("locking promo code %d: %w", promoCodeID, err)
	}

	var used int
	err = tx.tx.GetContext(ctx, &used, `SELECT count(*) FROM reservations
		WHERE promo_code_id = $1 AND status NOT IN ('CANCELLED', 'EXPIRED')`, promoCodeID)
	if err != nil {
		return 0, fmt.Errorf("counting usage of promo code %d: %w", promoCodeID, err)
	}
	return used, nil
}

func (tx *Tx) AdditionalServices(ctx context.Context, eventID string) ([]entity.AdditionalService, error) {
	var rows []serviceRow
	err := tx.tx.SelectContext(ctx, &rows, `SELECT id, event_id, name, type, price_cts, vat_type, vat_percentage
		FROM additional_services WHERE event_id = $1 ORDER BY id`, eventID)
	if err != nil {
		return nil, fmt.Errorf("selecting additional services: %w", err)
	}

	services := make([]entity.AdditionalService, len(rows))
	for i, r := range rows {
		services[i] = r.entity()
	}
	return services, nil
}

func (tx *Tx) InsertAdditionalServiceItems(ctx context.Context, items []entity.AdditionalServiceItem) error {
	for _, i := range items {
		_, err := tx.tx.ExecContext(ctx, `INSERT INTO additional_service_items
			(uuid, reservation_id, service_id, event_id, ticket_id, status,
			src_price_cts, final_price_cts, vat_cts, discount_cts, vat_status)
			VALUES ($1, $2, $3, $4, NULLIF($5::bigint, 0), $6, $7, $8, $9, $10, $11)`,
			i.UUID, i.ReservationID, i.ServiceID, i.EventID, i.TicketID, i.Status,
			i.Price.SrcPriceCts, i.Price.FinalPriceCts, i.Price.VatCts, i.Price.DiscountCts, i.VatStatus)
		if err != nil {
			return fmt.Errorf("inserting additional service item: %w", err)
		}
	}
	return nil
}

func (tx *Tx) AdditionalServiceItems(ctx context.Context, reservationID string) ([]entity.AdditionalServiceItem, error) {
	var rows []itemRow
	err := tx.tx.SelectContext(ctx, &rows, `SELECT `+itemColumns+`
		FROM additional_service_items WHERE reservation_id = $1 ORDER BY id`, reservationID)
	if err != nil {
		return nil, fmt.Errorf("selecting additional service items: %w", err)
	}

	items := make([]entity.AdditionalServiceItem, len(rows))
	for i, r := range rows {
		items[i] = r.entity()
	}
	return items, nil
}

func (tx *Tx) SetAdditionalServiceItemsStatus(ctx context.Context, itemIDs []int64, status entity.TicketStatus) error {
	_, err := tx.tx.ExecContext(ctx, `UPDATE additional_service_items SET status = $1 WHERE id = ANY($2)`,
		status, pq.Array(itemIDs))
	if err != nil {
		return fmt.Errorf("setting additional service items status: %w", err)
	}
	return nil
}

func (tx *Tx) InsertReservation(ctx context.Context, r entity.Reservation) error {
	row, err := newReservationRow(r)
	if err != nil {
		return err
	}

	_, err = tx.tx.NamedExecContext(ctx, `INSERT INTO reservations
		(id, event_id, status, validity, created_at, first_name, last_name, email, invoice_requested,
		billing, payment_method, transaction_ref, promo_code_id, src_price_cts, final_price_cts, vat_cts,
		discount_cts, currency, vat_status, vat_percentage, invoice_number, confirmed_at, metadata)
		VALUES (:id, :event_id, :status, :validity, :created_at, :first_name, :last_name, :email,
		:invoice_requested, :billing, :payment_method, :transaction_ref, NULLIF(:promo_code_id, 0),
		:src_price_cts, :final_price_cts, :vat_cts, :discount_cts, :currency, :vat_status,
		:vat_percentage, :invoice_number, :confirmed_at, :metadata)`, row)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("reservation %s already exists", r.ID)
		}
		return fmt.Errorf("inserting reservation: %w", err)
	}
	return nil
}

func (tx *Tx) Reservation(ctx context.Context, id string) (entity.Reservation, error) {
	if !validUUID(id) {
		return entity.Reservation{}, fmt.Errorf("reservation %s: %w", id, entity.ErrNotFound)
	}

	var row reservationRow
	err := tx.tx.GetContext(ctx, &row, `SELECT `+reservationColumns+` FROM reservations WHERE id = $1`, id)
	if err != nil {
		return entity.Reservation{}, notFound(err, "reservation %s", id)
	}
	return row.entity()
}

func (tx *Tx) ReservationByTransactionRef(ctx context.Context, transactionRef string) (entity.Reservation, error) {
	var row reservationRow
	err := tx.tx.GetContext(ctx, &row, `SELECT `+reservationColumns+`
		FROM reservations WHERE transaction_ref <> '' AND transaction_ref = $1`, transactionRef)
	if err != nil {
		return entity.Reservation{}, notFound(err, "transaction %s", transactionRef)
	}
	return row.entity()
}

func (tx *Tx) TransitionReservation(
	ctx context.Context,
	id string,
	from []entity.ReservationStatus,
	to entity.ReservationStatus,
) error {
	res, err := tx.tx.ExecContext(ctx, `UPDATE reservations SET status = $1 WHERE id = $2 AND status = ANY($3)`,
		to, id, pq.Array(statusStrings(from)))
	if err != nil {
		return fmt.Errorf("transitioning reservation %s: %w", id, err)
	}

	if affected, err := res.RowsAffected(); err != nil {
		return fmt.Errorf("getting rows affected: %w", err)
	} else if affected == 1 {
		return nil
	}

	var actual string
	err = tx.tx.GetContext(ctx, &actual, `SELECT status FROM reservations WHERE id = $1`, id)
	if err != nil {
		return notFound(err, "reservation %s", id)
	}
	return entity.StateConflictError{ReservationID: id, Expected: from, Actual: entity.ReservationStatus(actual)}
}

func (tx *Tx) UpdateReservation(ctx context.Context, r entity.Reservation) error {
	row, err := newReservationRow(r)
	if err != nil {
		return err
	}

	res, err := tx.tx.NamedExecContext(ctx, `UPDATE reservations SET
		validity = :validity,
		first_name = :first_name,
		last_name = :last_name,
		email = :email,
		invoice_requested = :invoice_requested,
		billing = :billing,
		payment_method = :payment_method,
		transaction_ref = :transaction_ref,
		promo_code_id = NULLIF(:promo_code_id, 0),
		src_price_cts = :src_price_cts,
		final_price_cts = :final_price_cts,
		vat_cts = :vat_cts,
		discount_cts = :discount_cts,
		currency = :currency,
		vat_status = :vat_status,
		vat_percentage = :vat_percentage,
		invoice_number = :invoice_number,
		confirmed_at = :confirmed_at,
		metadata = :metadata
		WHERE id = :id`, row)
	if err != nil {
		return fmt.Errorf("updating reservation %s: %w", r.ID, err)
	}

	if affected, err := res.RowsAffected(); err != nil {
		return fmt.Errorf("getting rows affected: %w", err)
	} else if affected != 1 {
		return fmt.Errorf("reservation %s: %w", r.ID, entity.ErrNotFound)
	}
	return nil
}

// NextDocumentNumber increments the per event sequence under a row lock held
// until the transaction ends, so numbers are handed out without gaps.
func (tx *Tx) NextDocumentNumber(ctx context.Context, eventID string, t entity.BillingDocumentType) (int64, error) {
	var next int64
	err := tx.tx.GetContext(ctx, &next, `INSERT INTO document_sequences (event_id, type, last_value)
		VALUES ($1, $2, 1)
		ON CONFLICT (event_id, type) DO UPDATE SET last_value = document_sequences.last_value + 1
		RETURNING last_value`, eventID, t)
	if err != nil {
		return 0, fmt.Errorf("incrementing %s sequence: %w", t, err)
	}
	return next, nil
}

func (tx *Tx) BillingDocuments(ctx context.Context, reservationID string) ([]entity.BillingDocument, error) {
	var rows []documentRow
	err := tx.tx.SelectContext(ctx, &rows, `SELECT `+documentColumns+`
		FROM billing_documents WHERE reservation_id = $1 ORDER BY id`, reservationID)
	if err != nil {
		return nil, fmt.Errorf("selecting billing documents: %w", err)
	}

	documents := make([]entity.BillingDocument, len(rows))
	for i, r := range rows {
		documents[i] = r.entity()
	}
	return documents, nil
}

func (tx *Tx) InsertBillingDocument(ctx context.Context, d entity.BillingDocument) (entity.BillingDocument, error) {
	model := []byte(d.Model)
	if len(model) == 0 {
		model = []byte("{}")
	}

	err := tx.tx.GetContext(ctx, &d.ID, `INSERT INTO billing_documents
		(event_id, reservation_id, number, type, status, model, generated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id`,
		d.EventID, d.ReservationID, d.Number, d.Type, d.Status, model, d.GeneratedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return entity.BillingDocument{}, fmt.Errorf("document %s already exists", d.Number)
		}
		return entity.BillingDocument{}, fmt.Errorf("inserting billing document: %w", err)
	}
	return d, nil
}
