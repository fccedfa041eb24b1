package waitinglist

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"boxoffice/config"
	"boxoffice/entity"
	"boxoffice/event"
	"boxoffice/reservation"

	"github.com/ThreeDotsLabs/go-event-driven/common/log"
)

type Store interface {
	InTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
}

type Tx interface {
	Event(ctx context.Context, eventID string) (entity.Event, error)
	Categories(ctx context.Context, eventID string) ([]entity.TicketCategory, error)
	Settings(ctx context.Context, organizationID, eventID string, categoryID int64) ([]entity.Setting, error)

	InsertWaitingListEntry(ctx context.Context, e entity.WaitingListEntry) (entity.WaitingListEntry, error)
	// ClaimNextWaiting moves the oldest WAITING entry of the event to OFFERED
	// and returns it, or fails with ErrNotFound when nobody is waiting.
	ClaimNextWaiting(ctx context.Context, eventID string) (entity.WaitingListEntry, error)
	UpdateWaitingListEntry(ctx context.Context, e entity.WaitingListEntry) error
	// CloseOffer sets the status of the OFFERED entry bound to the reservation.
	CloseOffer(ctx context.Context, reservationID string, status entity.WaitingListStatus) error

	Publish(ctx context.Context, event any) error
}

type Reserver interface {
	Reserve(ctx context.Context, req reservation.ReserveRequest) (string, error)
}

type Service struct {
	store    Store
	reserver Reserver
	offer    time.Duration
	now      func() time.Time
}

func NewService(store Store, reserver Reserver, offer time.Duration, now func() time.Time) Service {
	if now == nil {
		now = time.Now
	}

	return Service{
		store:    store,
		reserver: reserver,
		offer:    offer,
		now:      now,
	}
}

type SubscribeRequest struct {
	EventID string `json:"event_id"`

	// CategoryID zero accepts a seat of any public category.
	CategoryID int64  `json:"category_id,omitempty"`
	FirstName  string `json:"first_name"`
	LastName   string `json:"last_name"`
	Email      string `json:"email"`
}

// Subscribe adds a buyer to the waiting list of a sold out event or category.
func (s Service) Subscribe(ctx context.Context, req SubscribeRequest) (entity.WaitingListEntry, error) {
	var v entity.ValidationError
	if strings.TrimSpace(req.FirstName) == "" {
		v.Add("first_name", "required")
	}
	if strings.TrimSpace(req.LastName) == "" {
		v.Add("last_name", "required")
	}
	if _, err := mail.ParseAddress(req.Email); err != nil {
		v.Add("email", "invalid")
	}
	if err := v.Err(); err != nil {
		return entity.WaitingListEntry{}, err
	}

	var entry entity.WaitingListEntry
	err := s.store.InTx(ctx, func(ctx context.Context, tx Tx) error {
		ev, err := tx.Event(ctx, req.EventID)
		if err != nil {
			return fmt.Errorf("getting event %s: %w", req.EventID, err)
		}

		settings, err := tx.Settings(ctx, ev.OrganizationID, ev.ID, req.CategoryID)
		if err != nil {
			return fmt.Errorf("getting settings: %w", err)
		}
		if !config.NewScoped(settings).Bool(config.KeyEnableWaitingList, false) {
			var v entity.ValidationError
			v.Add("event_id", "waiting_list_disabled")
			return v.Err()
		}

		categories, err := tx.Categories(ctx, ev.ID)
		if err != nil {
			return fmt.Errorf("getting categories: %w", err)
		}

		if err := checkSoldOut(ev, categories, req.CategoryID, s.now()); err != nil {
			return err
		}

		entry, err = tx.InsertWaitingListEntry(ctx, entity.WaitingListEntry{
			EventID:    ev.ID,
			CategoryID: req.CategoryID,
			FirstName:  strings.TrimSpace(req.FirstName),
			LastName:   strings.TrimSpace(req.LastName),
			Email:      strings.TrimSpace(req.Email),
			Status:     entity.WaitingListWaiting,
			CreatedAt:  s.now(),
		})
		if err != nil {
			return fmt.Errorf("inserting waiting list entry: %w", err)
		}

		return nil
	})
	if err != nil {
		return entity.WaitingListEntry{}, err
	}

	return entry, nil
}

func checkSoldOut(ev entity.Event, categories []entity.TicketCategory, categoryID int64, now time.Time) error {
	var v entity.ValidationError

	a := entity.NewAvailability(ev, categories, now)
	if categoryID == 0 {
		for _, c := range a.Categories {
			if c.OnSale && c.Available > 0 {
				v.Add("event_id", "not_sold_out")
				return v.Err()
			}
		}
		return nil
	}

	for _, c := range categories {
		if c.ID != categoryID {
			continue
		}
		if c.AccessRestricted {
			v.Add("category_id", "restricted")
			return v.Err()
		}
		if !a.SoldOut(categoryID) {
			v.Add("category_id", "not_sold_out")
			return v.Err()
		}
		return nil
	}

	return fmt.Errorf("category %d: %w", categoryID, entity.ErrNotFound)
}

// Distribute offers released seats to waiting buyers in subscription order.
// Each offer is a PENDING reservation of one seat held for the offer period.
// It stops when nobody is waiting or no seat is left.
func (s Service) Distribute(ctx context.Context, eventID string) (int, error) {
	logger := log.FromContext(ctx).WithField("event_id", eventID)

	offered := 0
	for {
		o, err := s.claimNext(ctx, eventID)
		if errors.Is(err, entity.ErrNotFound) {
			return offered, nil
		}
		if err != nil {
			return offered, err
		}

		entry := o.entry
		if o.categoryID == 0 {
			return offered, s.restore(ctx, entry)
		}

		reservationID, err := s.reserver.Reserve(ctx, reservation.ReserveRequest{
			EventID:      eventID,
			Lines:        []reservation.LineRequest{{CategoryID: o.categoryID, Quantity: 1}},
			FirstName:    entry.FirstName,
			LastName:     entry.LastName,
			Email:        entry.Email,
			HoldDuration: o.hold,
		})
		if err != nil {
			if restoreErr := s.restore(ctx, entry); restoreErr != nil {
				return offered, errors.Join(err, restoreErr)
			}
			if errors.Is(err, entity.ErrInsufficientInventory) || errors.Is(err, entity.ErrCategoryNotOnSale) {
				return offered, nil
			}
			return offered, fmt.Errorf("reserving offer for entry %d: %w", entry.ID, err)
		}

		validUntil := s.now().Add(o.hold)
		err = s.store.InTx(ctx, func(ctx context.Context, tx Tx) error {
			entry.ReservationID = reservationID
			if err := tx.UpdateWaitingListEntry(ctx, entry); err != nil {
				return fmt.Errorf("updating waiting list entry: %w", err)
			}
			return tx.Publish(ctx, event.NewWaitingListOfferMade(entry, reservationID, validUntil))
		})
		if err != nil {
			return offered, err
		}

		logger.
			WithField("entry_id", entry.ID).
			WithField("reservation_id", reservationID).
			Info("Waiting list offer made")

		offered++
	}
}

type pendingOffer struct {
	entry      entity.WaitingListEntry
	categoryID int64
	hold       time.Duration
}

// claimNext takes the next waiting entry and resolves the category and the
// hold of its offer. A zero category means no seat can be offered.
func (s Service) claimNext(ctx context.Context, eventID string) (pendingOffer, error) {
	var o pendingOffer
	err := s.store.InTx(ctx, func(ctx context.Context, tx Tx) error {
		ev, err := tx.Event(ctx, eventID)
		if err != nil {
			return fmt.Errorf("getting event %s: %w", eventID, err)
		}

		o.entry, err = tx.ClaimNextWaiting(ctx, eventID)
		if err != nil {
			return err
		}

		o.categoryID = o.entry.CategoryID
		if o.categoryID == 0 {
			categories, err := tx.Categories(ctx, eventID)
			if err != nil {
				return fmt.Errorf("getting categories: %w", err)
			}
			o.categoryID = firstAvailable(entity.NewAvailability(ev, categories, s.now()))
		}

		settings, err := tx.Settings(ctx, ev.OrganizationID, ev.ID, o.categoryID)
		if err != nil {
			return fmt.Errorf("getting settings: %w", err)
		}
		o.hold = config.NewScoped(settings).Minutes(config.KeyWaitingListOfferMinutes, s.offer)

		return nil
	})
	if err != nil {
		return pendingOffer{}, err
	}

	return o, nil
}

func firstAvailable(a entity.Availability) int64 {
	for _, c := range a.Categories {
		if c.OnSale && c.Available > 0 {
			return c.CategoryID
		}
	}
	return 0
}

func (s Service) restore(ctx context.Context, entry entity.WaitingListEntry) error {
	return s.store.InTx(ctx, func(ctx context.Context, tx Tx) error {
		entry.Status = entity.WaitingListWaiting
		entry.ReservationID = ""
		return tx.UpdateWaitingListEntry(ctx, entry)
	})
}

// CloseOffer records the outcome of the reservation made for an offer.
func (s Service) CloseOffer(ctx context.Context, reservationID string, status entity.WaitingListStatus) error {
	return s.store.InTx(ctx, func(ctx context.Context, tx Tx) error {
		return tx.CloseOffer(ctx, reservationID, status)
	})
}
