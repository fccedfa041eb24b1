package postgres

import (
	"context"
	"fmt"

	"boxoffice/entity"
)

func (tx *Tx) InsertWaitingListEntry(ctx context.Context, e entity.WaitingListEntry) (entity.WaitingListEntry, error) {
	err := tx.tx.GetContext(ctx, &e.ID, `INSERT INTO waiting_list
		(event_id, category_id, first_name, last_name, email, status, created_at)
		VALUES ($1, NULLIF($2::bigint, 0), $3, $4, $5, $6, $7)
		RETURNING id`,
		e.EventID, e.CategoryID, e.FirstName, e.LastName, e.Email, e.Status, e.CreatedAt)
	if err != nil {
		return entity.WaitingListEntry{}, fmt.Errorf("inserting waiting list entry: %w", err)
	}
	return e, nil
}

func (tx *Tx) ClaimNextWaiting(ctx context.Context, eventID string) (entity.WaitingListEntry, error) {
	var row waitingRow
	err := tx.tx.GetContext(ctx, &row, `UPDATE waiting_list SET status = 'OFFERED'
		WHERE id = (
			SELECT id FROM waiting_list
			WHERE event_id = $1 AND status = 'WAITING'
			ORDER BY created_at, id
			LIMIT 1
			FOR UPDATE SKIP LOCKED
		)
		RETURNING `+waitingColumns, eventID)
	if err != nil {
		return entity.WaitingListEntry{}, notFound(err, "waiting list of %s", eventID)
	}
	return row.entity(), nil
}

func (tx *Tx) UpdateWaitingListEntry(ctx context.Context, e entity.WaitingListEntry) error {
	res, err := tx.tx.ExecContext(ctx, `UPDATE waiting_list SET
		status = $1, reservation_id = NULLIF($2, '')::uuid
		WHERE id = $3`, e.Status, e.ReservationID, e.ID)
	if err != nil {
		return fmt.Errorf("updating waiting list entry %d: %w", e.ID, err)
	}

	if affected, err := res.RowsAffected(); err != nil {
		return fmt.Errorf("getting rows affected: %w", err)
	} else if affected != 1 {
		return fmt.Errorf("waiting list entry %d: %w", e.ID, entity.ErrNotFound)
	}
	return nil
}

func (tx *Tx) CloseOffer(ctx context.Context, reservationID string, status entity.WaitingListStatus) error {
	if !validUUID(reservationID) {
		return nil
	}

	_, err := tx.tx.ExecContext(ctx, `UPDATE waiting_list SET status = $1
		WHERE reservation_id = $2 AND status = 'OFFERED'`, status, reservationID)
	if err != nil {
		return fmt.Errorf("closing waiting list offer: %w", err)
	}
	return nil
}
