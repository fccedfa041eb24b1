package reservation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"boxoffice/entity"
	"boxoffice/event"
	"boxoffice/monitoring"

	"github.com/ThreeDotsLabs/go-event-driven/common/log"
)

const expiryBatchSize = 100

var unsettledStatuses = []entity.ReservationStatus{
	entity.ReservationInPayment,
	entity.ReservationExternalProcessingPayment,
}

// ExpireHolds releases every PENDING reservation whose hold elapsed before
// now and cancels IN_PAYMENT or EXTERNAL_PROCESSING_PAYMENT ones that never
// settled. Each reservation is handled in its own transaction; reservations
// that moved concurrently are skipped.
func (m *Manager) ExpireHolds(ctx context.Context, now time.Time) (int, error) {
	statuses := append([]entity.ReservationStatus{entity.ReservationPending}, unsettledStatuses...)

	expired := 0
	defer func() {
		monitoring.TrackExpiredHolds(expired)
	}()

	for {
		ids, err := m.store.ExpiredReservations(ctx, statuses, now, expiryBatchSize)
		if err != nil {
			return expired, fmt.Errorf("listing expired reservations: %w", err)
		}

		skipped := 0
		for _, id := range ids {
			err := m.expire(ctx, id, now)
			if errors.Is(err, entity.ErrStateConflict) {
				skipped++
				continue
			}
			if err != nil {
				return expired, fmt.Errorf("expiring reservation %s: %w", id, err)
			}
			expired++
		}

		if len(ids) < expiryBatchSize || skipped == len(ids) {
			return expired, nil
		}
	}
}

func (m *Manager) expire(ctx context.Context, id string, now time.Time) error {
	return m.store.InTx(ctx, func(ctx context.Context, tx Tx) error {
		r, err := tx.Reservation(ctx, id)
		if err != nil {
			return fmt.Errorf("getting reservation: %w", err)
		}

		if !r.HoldElapsed(now) {
			return entity.StateConflictError{ReservationID: r.ID, Expected: []entity.ReservationStatus{r.Status}, Actual: r.Status}
		}

		switch r.Status {
		case entity.ReservationPending:
			return m.expirePending(ctx, tx, &r)
		case entity.ReservationInPayment, entity.ReservationExternalProcessingPayment:
			return m.cancelPending(ctx, tx, &r, unsettledStatuses, ReasonPaymentTimeout)
		default:
			return entity.StateConflictError{
				ReservationID: r.ID,
				Expected:      append([]entity.ReservationStatus{entity.ReservationPending}, unsettledStatuses...),
				Actual:        r.Status,
			}
		}
	})
}

// expirePending puts the tickets of an abandoned hold back to FREE. Unlike a
// cancellation, the same ticket rows go back on sale.
func (m *Manager) expirePending(ctx context.Context, tx Tx, r *entity.Reservation) error {
	from := []entity.ReservationStatus{entity.ReservationPending}
	if err := m.transition(ctx, tx, r, from, entity.ReservationExpired, "expire"); err != nil {
		return err
	}

	tickets, err := tx.Tickets(ctx, r.ID)
	if err != nil {
		return fmt.Errorf("getting tickets: %w", err)
	}
	held := soldTickets(tickets)

	categories, err := m.categoriesByID(ctx, tx, r.EventID)
	if err != nil {
		return err
	}

	var tokens []int64
	counts := map[int64]int{}
	for _, t := range held {
		if t.AccessTokenID != 0 {
			tokens = append(tokens, t.AccessTokenID)
		}
		counts[t.CategoryID]++
	}

	if ids := ticketIDs(held); len(ids) > 0 {
		if err := tx.ResetTickets(ctx, ids); err != nil {
			return fmt.Errorf("resetting tickets: %w", err)
		}
	}
	if len(tokens) > 0 {
		if err := tx.ReleaseAccessTokens(ctx, tokens); err != nil {
			return fmt.Errorf("releasing access tokens: %w", err)
		}
	}

	returned := returnedSeats(categories, counts)
	if err := tx.ReturnSeats(ctx, r.EventID, returned); err != nil {
		return fmt.Errorf("returning seats: %w", err)
	}

	items, err := tx.AdditionalServiceItems(ctx, r.ID)
	if err != nil {
		return fmt.Errorf("getting additional service items: %w", err)
	}
	if ids := itemIDs(items, entity.TicketPending); len(ids) > 0 {
		if err := tx.SetAdditionalServiceItemsStatus(ctx, ids, entity.TicketExpired); err != nil {
			return fmt.Errorf("expiring additional service items: %w", err)
		}
	}

	if err := tx.Publish(ctx, event.NewReservationExpired(*r)); err != nil {
		return err
	}

	return m.publishSeatsReleased(ctx, tx, r.ID+":expired", *r, releasedSeats(returned))
}

type Reaper struct {
	manager  *Manager
	interval time.Duration
}

func NewReaper(manager *Manager, interval time.Duration) Reaper {
	return Reaper{
		manager:  manager,
		interval: interval,
	}
}

func (r Reaper) Run(ctx context.Context) error {
	logger := log.FromContext(ctx)

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			n, err := r.manager.ExpireHolds(ctx, r.manager.now())
			if err != nil {
				logger.WithError(err).Error("Could not expire holds")
				continue
			}
			if n > 0 {
				logger.WithField("count", n).Info("Expired holds released")
			}
		}
	}
}
