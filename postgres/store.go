package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"boxoffice/catalog"
	"boxoffice/entity"
	"boxoffice/message"
	"boxoffice/reservation"
	"boxoffice/waitinglist"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

type Store struct {
	db     *sqlx.DB
	logger watermill.LoggerAdapter
}

func NewStore(db *sqlx.DB, logger watermill.LoggerAdapter) *Store {
	return &Store{
		db:     db,
		logger: logger,
	}
}

func (s *Store) inTx(ctx context.Context, fn func(tx *Tx) error) error {
	tx, err := s.db.BeginTxx(ctx, &sql.TxOptions{
		Isolation: sql.LevelReadCommitted,
	})
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}

	if err := fn(&Tx{tx: tx, logger: s.logger}); err != nil {
		return errors.Join(err, tx.Rollback())
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}

	return nil
}

func (s *Store) Reservations() reservation.Store {
	return reservationStore{s: s}
}

func (s *Store) Catalog() catalog.Store {
	return catalogStore{s: s}
}

func (s *Store) WaitingList() waitinglist.Store {
	return waitingListStore{s: s}
}

// SaveSetting creates or replaces a configuration value.
func (s *Store) SaveSetting(ctx context.Context, setting entity.Setting) error {
	_, err := s.db.ExecContext(ctx, `INSERT INTO configuration (scope, scope_id, key, value)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (scope, scope_id, key) DO UPDATE SET value = EXCLUDED.value`,
		setting.Scope, setting.ScopeID, setting.Key, setting.Value)
	if err != nil {
		return fmt.Errorf("saving setting %s: %w", setting.Key, err)
	}
	return nil
}

func (s *Store) BillingDocument(ctx context.Context, id int64) (entity.BillingDocument, error) {
	var row documentRow
	err := s.db.GetContext(ctx, &row, `SELECT `+documentColumns+` FROM billing_documents WHERE id = $1`, id)
	if err != nil {
		return entity.BillingDocument{}, notFound(err, "billing document %d", id)
	}
	return row.entity(), nil
}

type reservationStore struct {
	s *Store
}

func (r reservationStore) InTx(ctx context.Context, fn func(ctx context.Context, tx reservation.Tx) error) error {
	return r.s.inTx(ctx, func(tx *Tx) error {
		return fn(ctx, tx)
	})
}

func (r reservationStore) ExpiredReservations(
	ctx context.Context,
	statuses []entity.ReservationStatus,
	now time.Time,
	limit int,
) ([]string, error) {
	var ids []string
	err := r.s.db.SelectContext(ctx, &ids, `SELECT id FROM reservations
		WHERE status = ANY($1) AND validity <= $2
		ORDER BY validity, id
		LIMIT $3`,
		pq.Array(statusStrings(statuses)), now, limit)
	if err != nil {
		return nil, fmt.Errorf("selecting expired reservations: %w", err)
	}
	return ids, nil
}

type catalogStore struct {
	s *Store
}

func (c catalogStore) InTx(ctx context.Context, fn func(ctx context.Context, tx catalog.Tx) error) error {
	return c.s.inTx(ctx, func(tx *Tx) error {
		return fn(ctx, tx)
	})
}

type waitingListStore struct {
	s *Store
}

func (w waitingListStore) InTx(ctx context.Context, fn func(ctx context.Context, tx waitinglist.Tx) error) error {
	return w.s.inTx(ctx, func(tx *Tx) error {
		return fn(ctx, tx)
	})
}

// Tx implements the transactional interfaces of the reservation, catalog and
// waiting list packages on a single database transaction.
type Tx struct {
	tx     *sqlx.Tx
	logger watermill.LoggerAdapter
}

func (tx *Tx) Publish(ctx context.Context, event any) error {
	if err := message.PublishInTx(ctx, event, tx.tx.Tx, tx.logger); err != nil {
		return fmt.Errorf("publishing event in transaction: %w", err)
	}
	return nil
}

func statusStrings(statuses []entity.ReservationStatus) []string {
	s := make([]string, len(statuses))
	for i, status := range statuses {
		s[i] = string(status)
	}
	return s
}

func notFound(err error, format string, args ...any) error {
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf(format+": %w", append(args, entity.ErrNotFound)...)
	}
	return fmt.Errorf(format+": %w", append(args, err)...)
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23505"
}

func validUUID(s string) bool {
	_, err := uuid.Parse(s)
	return err == nil
}
