// Package memstore keeps the whole system of record in memory. Transactions
// are serialized and work on a copy of the data that replaces the committed
// state only when the transaction function succeeds.
package memstore

import (
	"context"
	"maps"
	"sort"
	"sync"
	"time"

	"boxoffice/catalog"
	"boxoffice/entity"
	"boxoffice/reservation"
	"boxoffice/waitinglist"
)

type data struct {
	events       map[string]entity.Event
	categories   map[int64]entity.TicketCategory
	tickets      map[int64]entity.Ticket
	tokens       map[int64]entity.AccessToken
	promoCodes   map[int64]entity.PromoCode
	services     map[int64]entity.AdditionalService
	items        map[int64]entity.AdditionalServiceItem
	reservations map[string]entity.Reservation
	documents    map[int64]entity.BillingDocument
	sequences    map[string]int64
	waiting      map[int64]entity.WaitingListEntry
	settings     []entity.Setting
	lastID       int64
}

func newData() *data {
	return &data{
		events:       map[string]entity.Event{},
		categories:   map[int64]entity.TicketCategory{},
		tickets:      map[int64]entity.Ticket{},
		tokens:       map[int64]entity.AccessToken{},
		promoCodes:   map[int64]entity.PromoCode{},
		services:     map[int64]entity.AdditionalService{},
		items:        map[int64]entity.AdditionalServiceItem{},
		reservations: map[string]entity.Reservation{},
		documents:    map[int64]entity.BillingDocument{},
		sequences:    map[string]int64{},
		waiting:      map[int64]entity.WaitingListEntry{},
	}
}

func (d *data) clone() *data {
	return &data{
		events:       maps.Clone(d.events),
		categories:   maps.Clone(d.categories),
		tickets:      maps.Clone(d.tickets),
		tokens:       maps.Clone(d.tokens),
		promoCodes:   maps.Clone(d.promoCodes),
		services:     maps.Clone(d.services),
		items:        maps.Clone(d.items),
		reservations: maps.Clone(d.reservations),
		documents:    maps.Clone(d.documents),
		sequences:    maps.Clone(d.sequences),
		waiting:      maps.Clone(d.waiting),
		settings:     append([]entity.Setting(nil), d.settings...),
		lastID:       d.lastID,
	}
}

func (d *data) nextID() int64 {
	d.lastID++
	return d.lastID
}

type Store struct {
	mu        sync.Mutex
	d         *data
	published []any
}

func New() *Store {
	return &Store{
		d: newData(),
	}
}

func (s *Store) inTx(fn func(tx *Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx := &Tx{d: s.d.clone()}
	if err := fn(tx); err != nil {
		return err
	}

	s.d = tx.d
	s.published = append(s.published, tx.published...)

	return nil
}

// Reservations returns the store used by the reservation engine.
func (s *Store) Reservations() reservation.Store {
	return reservationStore{s: s}
}

func (s *Store) Catalog() catalog.Store {
	return catalogStore{s: s}
}

func (s *Store) WaitingList() waitinglist.Store {
	return waitingListStore{s: s}
}

type reservationStore struct {
	s *Store
}

func (r reservationStore) InTx(ctx context.Context, fn func(ctx context.Context, tx reservation.Tx) error) error {
	return r.s.inTx(func(tx *Tx) error {
		return fn(ctx, tx)
	})
}

func (r reservationStore) ExpiredReservations(
	_ context.Context,
	statuses []entity.ReservationStatus,
	now time.Time,
	limit int,
) ([]string, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	var expired []entity.Reservation
	for _, res := range r.s.d.reservations {
		if hasStatus(res.Status, statuses) && res.HoldElapsed(now) {
			expired = append(expired, res)
		}
	}
	sort.Slice(expired, func(i, j int) bool {
		if expired[i].Validity.Equal(expired[j].Validity) {
			return expired[i].ID < expired[j].ID
		}
		return expired[i].Validity.Before(expired[j].Validity)
	})

	ids := make([]string, 0, len(expired))
	for _, res := range expired {
		if len(ids) == limit {
			break
		}
		ids = append(ids, res.ID)
	}

	return ids, nil
}

type catalogStore struct {
	s *Store
}

func (c catalogStore) InTx(ctx context.Context, fn func(ctx context.Context, tx catalog.Tx) error) error {
	return c.s.inTx(func(tx *Tx) error {
		return fn(ctx, tx)
	})
}

type waitingListStore struct {
	s *Store
}

func (w waitingListStore) InTx(ctx context.Context, fn func(ctx context.Context, tx waitinglist.Tx) error) error {
	return w.s.inTx(func(tx *Tx) error {
		return fn(ctx, tx)
	})
}

func (s *Store) AddSetting(setting entity.Setting) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.d.settings = append(s.d.settings, setting)
}

// Published returns the events committed so far, in publishing order.
func (s *Store) Published() []any {
	s.mu.Lock()
	defer s.mu.Unlock()

	return append([]any(nil), s.published...)
}

// PublishedOf returns the committed events of type T.
func PublishedOf[T any](s *Store) []T {
	var events []T
	for _, e := range s.Published() {
		if typed, ok := e.(T); ok {
			events = append(events, typed)
		}
	}
	return events
}

func (s *Store) Event(id string) entity.Event {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.d.events[id]
}

func (s *Store) Category(id int64) entity.TicketCategory {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.d.categories[id]
}

func (s *Store) Reservation(id string) (entity.Reservation, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.d.reservations[id]
	return cloneReservation(r), ok
}

// Tickets returns every ticket of the event ordered by id.
func (s *Store) Tickets(eventID string) []entity.Ticket {
	s.mu.Lock()
	defer s.mu.Unlock()

	return sortedTickets(s.d.tickets, func(t entity.Ticket) bool {
		return t.EventID == eventID
	})
}

func (s *Store) Documents(reservationID string) []entity.BillingDocument {
	s.mu.Lock()
	defer s.mu.Unlock()

	return sortedDocuments(s.d.documents, reservationID)
}

func (s *Store) AccessTokens(categoryID int64) []entity.AccessToken {
	s.mu.Lock()
	defer s.mu.Unlock()

	var tokens []entity.AccessToken
	for _, t := range s.d.tokens {
		if t.CategoryID == categoryID {
			tokens = append(tokens, t)
		}
	}
	sort.Slice(tokens, func(i, j int) bool { return tokens[i].ID < tokens[j].ID })
	return tokens
}

func (s *Store) WaitingEntries(eventID string) []entity.WaitingListEntry {
	s.mu.Lock()
	defer s.mu.Unlock()

	return sortedEntries(s.d.waiting, eventID)
}
