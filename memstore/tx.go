package memstore

import (
	"context"
	"fmt"
	"maps"
	"sort"
	"strconv"
	"strings"
	"time"

	"boxoffice/entity"
	"boxoffice/reservation"

	"github.com/google/uuid"
)

// Tx implements the transactional interfaces of the reservation, catalog and
// waiting list packages on a private copy of the data.
type Tx struct {
	d         *data
	published []any
}

func (tx *Tx) Event(_ context.Context, eventID string) (entity.Event, error) {
	e, ok := tx.d.events[eventID]
	if !ok {
		return entity.Event{}, fmt.Errorf("event %s: %w", eventID, entity.ErrNotFound)
	}
	return e, nil
}

func (tx *Tx) Categories(_ context.Context, eventID string) ([]entity.TicketCategory, error) {
	var categories []entity.TicketCategory
	for _, c := range tx.d.categories {
		if c.EventID == eventID {
			categories = append(categories, c)
		}
	}
	sort.Slice(categories, func(i, j int) bool { return categories[i].ID < categories[j].ID })
	return categories, nil
}

func (tx *Tx) Settings(_ context.Context, organizationID, eventID string, categoryID int64) ([]entity.Setting, error) {
	var settings []entity.Setting
	for _, s := range tx.d.settings {
		switch {
		case s.Scope == entity.ScopeSystem,
			s.Scope == entity.ScopeOrganization && s.ScopeID == organizationID,
			s.Scope == entity.ScopeEvent && s.ScopeID == eventID,
			s.Scope == entity.ScopeCategory && categoryID != 0 && s.ScopeID == strconv.FormatInt(categoryID, 10):
			settings = append(settings, s)
		}
	}
	return settings, nil
}

func (tx *Tx) LockCategories(ctx context.Context, eventID string, categoryIDs []int64) ([]entity.TicketCategory, error) {
	all, err := tx.Categories(ctx, eventID)
	if err != nil {
		return nil, err
	}

	var locked []entity.TicketCategory
	for _, c := range all {
		for _, id := range categoryIDs {
			if c.ID == id {
				locked = append(locked, c)
				break
			}
		}
	}
	return locked, nil
}

func (tx *Tx) TakeCategorySeats(_ context.Context, categoryID int64, n int) error {
	c, ok := tx.d.categories[categoryID]
	if !ok {
		return fmt.Errorf("category %d: %w", categoryID, entity.ErrNotFound)
	}
	if c.Available < n {
		return entity.InsufficientInventoryError{CategoryID: categoryID, Requested: n, Available: c.Available}
	}

	c.Available -= n
	tx.d.categories[categoryID] = c
	return nil
}

func (tx *Tx) TakeGeneralSeats(_ context.Context, eventID string, categoryID int64, n int) error {
	e, ok := tx.d.events[eventID]
	if !ok {
		return fmt.Errorf("event %s: %w", eventID, entity.ErrNotFound)
	}
	if e.GeneralAvailable < n {
		return entity.InsufficientInventoryError{CategoryID: categoryID, Requested: n, Available: e.GeneralAvailable}
	}

	e.GeneralAvailable -= n
	tx.d.events[eventID] = e
	return nil
}

func (tx *Tx) ReturnSeats(_ context.Context, eventID string, seats []reservation.ReturnedSeats) error {
	for _, s := range seats {
		if s.Bounded {
			c := tx.d.categories[s.CategoryID]
			c.Available += s.Count
			tx.d.categories[s.CategoryID] = c
			continue
		}

		e := tx.d.events[eventID]
		e.GeneralAvailable += s.Count
		tx.d.events[eventID] = e
	}
	return nil
}

func (tx *Tx) ClaimTickets(_ context.Context, claim reservation.TicketClaim) ([]entity.Ticket, error) {
	poolID := int64(0)
	if claim.Bounded {
		poolID = claim.CategoryID
	}

	free := sortedTickets(tx.d.tickets, func(t entity.Ticket) bool {
		return t.EventID == claim.EventID && t.Status == entity.TicketFree && t.CategoryID == poolID
	})

	var claimed []entity.Ticket
	for i, t := range free {
		if i == claim.Quantity {
			break
		}

		t.CategoryID = claim.CategoryID
		t.ReservationID = claim.ReservationID
		t.Status = entity.TicketPending
		t.Price = claim.Price
		t.Currency = claim.Currency
		t.VatStatus = claim.VatStatus
		if i < len(claim.AccessTokenIDs) {
			t.AccessTokenID = claim.AccessTokenIDs[i]
		}

		tx.d.tickets[t.ID] = t
		claimed = append(claimed, t)
	}

	return claimed, nil
}

func (tx *Tx) PromoCode(_ context.Context, eventID, code string) (entity.PromoCode, error) {
	for _, p := range tx.d.promoCodes {
		if p.EventID == eventID && strings.EqualFold(p.Code, code) {
			return p, nil
		}
	}
	return entity.PromoCode{}, fmt.Errorf("promo code %s: %w", code, entity.ErrNotFound)
}

func (tx *Tx) PromoCodeByID(_ context.Context, id int64) (entity.PromoCode, error) {
	p, ok := tx.d.promoCodes[id]
	if !ok {
		return entity.PromoCode{}, fmt.Errorf("promo code %d: %w", id, entity.ErrNotFound)
	}
	return p, nil
}

func (tx *Tx) PromoCodeUsage(_ context.Context, promoCodeID int64) (int, error) {
	used := 0
	for _, r := range tx.d.reservations {
		if r.PromoCodeID == promoCodeID && !r.Status.Terminal() {
			used++
		}
	}
	return used, nil
}

func (tx *Tx) TakeAccessToken(_ context.Context, categoryID int64, code, reservationID string, now time.Time) (entity.AccessToken, error) {
	var candidates []entity.AccessToken
	for _, t := range tx.d.tokens {
		if t.CategoryID != categoryID || !t.UsableAt(now) {
			continue
		}
		if code != "" && !strings.EqualFold(t.Code, code) {
			continue
		}
		candidates = append(candidates, t)
	}
	if len(candidates) == 0 {
		return entity.AccessToken{}, fmt.Errorf("no usable token: %w", entity.ErrInvalidAccessToken)
	}

	sort.Slice(candidates, func(i, j int) bool { return candidates[i].ID < candidates[j].ID })
	t := candidates[0]
	t.Status = entity.AccessTokenTaken
	t.ReservationID = reservationID
	tx.d.tokens[t.ID] = t

	return t, nil
}

func (tx *Tx) ReleaseAccessTokens(_ context.Context, tokenIDs []int64) error {
	for _, id := range tokenIDs {
		t, ok := tx.d.tokens[id]
		if !ok {
			continue
		}
		t.Status = entity.AccessTokenFree
		t.ReservationID = ""
		tx.d.tokens[id] = t
	}
	return nil
}

func (tx *Tx) AdditionalServices(_ context.Context, eventID string) ([]entity.AdditionalService, error) {
	var services []entity.AdditionalService
	for _, s := range tx.d.services {
		if s.EventID == eventID {
			services = append(services, s)
		}
	}
	sort.Slice(services, func(i, j int) bool { return services[i].ID < services[j].ID })
	return services, nil
}

func (tx *Tx) InsertAdditionalServiceItems(_ context.Context, items []entity.AdditionalServiceItem) error {
	for _, i := range items {
		i.ID = tx.d.nextID()
		tx.d.items[i.ID] = i
	}
	return nil
}

func (tx *Tx) AdditionalServiceItems(_ context.Context, reservationID string) ([]entity.AdditionalServiceItem, error) {
	var items []entity.AdditionalServiceItem
	for _, i := range tx.d.items {
		if i.ReservationID == reservationID {
			items = append(items, i)
		}
	}
	sort.Slice(items, func(i, j int) bool { return items[i].ID < items[j].ID })
	return items, nil
}

func (tx *Tx) SetAdditionalServiceItemsStatus(_ context.Context, itemIDs []int64, status entity.TicketStatus) error {
	for _, id := range itemIDs {
		i := tx.d.items[id]
		i.Status = status
		tx.d.items[id] = i
	}
	return nil
}

func (tx *Tx) InsertReservation(_ context.Context, r entity.Reservation) error {
	if _, ok := tx.d.reservations[r.ID]; ok {
		return fmt.Errorf("reservation %s already exists", r.ID)
	}
	tx.d.reservations[r.ID] = cloneReservation(r)
	return nil
}

func (tx *Tx) Reservation(_ context.Context, id string) (entity.Reservation, error) {
	r, ok := tx.d.reservations[id]
	if !ok {
		return entity.Reservation{}, fmt.Errorf("reservation %s: %w", id, entity.ErrNotFound)
	}
	return cloneReservation(r), nil
}

func (tx *Tx) ReservationByTransactionRef(_ context.Context, transactionRef string) (entity.Reservation, error) {
	for _, r := range tx.d.reservations {
		if transactionRef != "" && r.TransactionRef == transactionRef {
			return cloneReservation(r), nil
		}
	}
	return entity.Reservation{}, fmt.Errorf("transaction %s: %w", transactionRef, entity.ErrNotFound)
}

func (tx *Tx) TransitionReservation(
	_ context.Context,
	id string,
	from []entity.ReservationStatus,
	to entity.ReservationStatus,
) error {
	r, ok := tx.d.reservations[id]
	if !ok {
		return fmt.Errorf("reservation %s: %w", id, entity.ErrNotFound)
	}
	if !hasStatus(r.Status, from) {
		return entity.StateConflictError{ReservationID: id, Expected: from, Actual: r.Status}
	}

	r.Status = to
	tx.d.reservations[id] = r
	return nil
}

func (tx *Tx) UpdateReservation(_ context.Context, r entity.Reservation) error {
	current, ok := tx.d.reservations[r.ID]
	if !ok {
		return fmt.Errorf("reservation %s: %w", r.ID, entity.ErrNotFound)
	}

	r = cloneReservation(r)
	r.Status = current.Status
	tx.d.reservations[r.ID] = r
	return nil
}

func (tx *Tx) Tickets(_ context.Context, reservationID string) ([]entity.Ticket, error) {
	return sortedTickets(tx.d.tickets, func(t entity.Ticket) bool {
		return t.ReservationID == reservationID
	}), nil
}

func (tx *Tx) UpdateTicketHolders(_ context.Context, tickets []entity.Ticket) error {
	for _, t := range tickets {
		stored := tx.d.tickets[t.ID]
		stored.FirstName = t.FirstName
		stored.LastName = t.LastName
		stored.Email = t.Email
		tx.d.tickets[t.ID] = stored
	}
	return nil
}

func (tx *Tx) SetTicketsStatus(_ context.Context, ticketIDs []int64, status entity.TicketStatus) error {
	for _, id := range ticketIDs {
		t := tx.d.tickets[id]
		t.Status = status
		tx.d.tickets[id] = t
	}
	return nil
}

func (tx *Tx) ResetTickets(_ context.Context, ticketIDs []int64) error {
	for _, id := range ticketIDs {
		t := tx.d.tickets[id]

		categoryID := int64(0)
		if c, ok := tx.d.categories[t.CategoryID]; ok && c.Bounded {
			categoryID = c.ID
		}

		tx.d.tickets[id] = entity.Ticket{
			ID:         t.ID,
			UUID:       uuid.NewString(),
			EventID:    t.EventID,
			CategoryID: categoryID,
			Status:     entity.TicketFree,
		}
	}
	return nil
}

func (tx *Tx) InsertFreeTickets(_ context.Context, eventID string, categoryID int64, n int) error {
	for range n {
		id := tx.d.nextID()
		tx.d.tickets[id] = entity.Ticket{
			ID:         id,
			UUID:       uuid.NewString(),
			EventID:    eventID,
			CategoryID: categoryID,
			Status:     entity.TicketFree,
		}
	}
	return nil
}

func (tx *Tx) NextDocumentNumber(_ context.Context, eventID string, t entity.BillingDocumentType) (int64, error) {
	key := eventID + "/" + string(t)
	tx.d.sequences[key]++
	return tx.d.sequences[key], nil
}

func (tx *Tx) BillingDocuments(_ context.Context, reservationID string) ([]entity.BillingDocument, error) {
	return sortedDocuments(tx.d.documents, reservationID), nil
}

func (tx *Tx) InsertBillingDocument(_ context.Context, d entity.BillingDocument) (entity.BillingDocument, error) {
	for _, existing := range tx.d.documents {
		if existing.EventID == d.EventID && existing.Type == d.Type && existing.Number == d.Number {
			return entity.BillingDocument{}, fmt.Errorf("document %s already exists", d.Number)
		}
	}

	d.ID = tx.d.nextID()
	tx.d.documents[d.ID] = d
	return d, nil
}

func (tx *Tx) Publish(_ context.Context, event any) error {
	tx.published = append(tx.published, event)
	return nil
}

func (tx *Tx) InsertEvent(_ context.Context, e entity.Event) error {
	if _, ok := tx.d.events[e.ID]; ok {
		return fmt.Errorf("event %s already exists", e.ID)
	}
	tx.d.events[e.ID] = e
	return nil
}

func (tx *Tx) InsertCategory(_ context.Context, c entity.TicketCategory) (entity.TicketCategory, error) {
	c.ID = tx.d.nextID()
	tx.d.categories[c.ID] = c
	return c, nil
}

func (tx *Tx) InsertAccessTokens(_ context.Context, tokens []entity.AccessToken) ([]entity.AccessToken, error) {
	inserted := make([]entity.AccessToken, len(tokens))
	for i, t := range tokens {
		t.ID = tx.d.nextID()
		tx.d.tokens[t.ID] = t
		inserted[i] = t
	}
	return inserted, nil
}

func (tx *Tx) UpdateCategoryPrice(_ context.Context, categoryID int64, priceCts int64) error {
	c, ok := tx.d.categories[categoryID]
	if !ok {
		return fmt.Errorf("category %d: %w", categoryID, entity.ErrNotFound)
	}
	c.PriceCts = priceCts
	tx.d.categories[categoryID] = c
	return nil
}

func (tx *Tx) InsertPromoCode(ctx context.Context, p entity.PromoCode) (entity.PromoCode, error) {
	if _, err := tx.PromoCode(ctx, p.EventID, p.Code); err == nil {
		return entity.PromoCode{}, fmt.Errorf("promo code %s already exists", p.Code)
	}

	p.ID = tx.d.nextID()
	tx.d.promoCodes[p.ID] = p
	return p, nil
}

func (tx *Tx) InsertAdditionalService(_ context.Context, s entity.AdditionalService) (entity.AdditionalService, error) {
	s.ID = tx.d.nextID()
	tx.d.services[s.ID] = s
	return s, nil
}

func (tx *Tx) InsertWaitingListEntry(_ context.Context, e entity.WaitingListEntry) (entity.WaitingListEntry, error) {
	e.ID = tx.d.nextID()
	tx.d.waiting[e.ID] = e
	return e, nil
}

func (tx *Tx) ClaimNextWaiting(_ context.Context, eventID string) (entity.WaitingListEntry, error) {
	for _, e := range sortedEntries(tx.d.waiting, eventID) {
		if e.Status != entity.WaitingListWaiting {
			continue
		}
		e.Status = entity.WaitingListOffered
		tx.d.waiting[e.ID] = e
		return e, nil
	}
	return entity.WaitingListEntry{}, fmt.Errorf("waiting list of %s: %w", eventID, entity.ErrNotFound)
}

func (tx *Tx) UpdateWaitingListEntry(_ context.Context, e entity.WaitingListEntry) error {
	if _, ok := tx.d.waiting[e.ID]; !ok {
		return fmt.Errorf("waiting list entry %d: %w", e.ID, entity.ErrNotFound)
	}
	tx.d.waiting[e.ID] = e
	return nil
}

func (tx *Tx) CloseOffer(_ context.Context, reservationID string, status entity.WaitingListStatus) error {
	for id, e := range tx.d.waiting {
		if e.ReservationID == reservationID && e.Status == entity.WaitingListOffered {
			e.Status = status
			tx.d.waiting[id] = e
		}
	}
	return nil
}

func cloneReservation(r entity.Reservation) entity.Reservation {
	r.Metadata.AdditionalFields = maps.Clone(r.Metadata.AdditionalFields)
	r.Metadata.Annotations = maps.Clone(r.Metadata.Annotations)
	return r
}

func sortedTickets(tickets map[int64]entity.Ticket, keep func(entity.Ticket) bool) []entity.Ticket {
	var selected []entity.Ticket
	for _, t := range tickets {
		if keep(t) {
			selected = append(selected, t)
		}
	}
	sort.Slice(selected, func(i, j int) bool { return selected[i].ID < selected[j].ID })
	return selected
}

func sortedDocuments(documents map[int64]entity.BillingDocument, reservationID string) []entity.BillingDocument {
	var selected []entity.BillingDocument
	for _, d := range documents {
		if d.ReservationID == reservationID {
			selected = append(selected, d)
		}
	}
	sort.Slice(selected, func(i, j int) bool { return selected[i].ID < selected[j].ID })
	return selected
}

func sortedEntries(entries map[int64]entity.WaitingListEntry, eventID string) []entity.WaitingListEntry {
	var selected []entity.WaitingListEntry
	for _, e := range entries {
		if e.EventID == eventID {
			selected = append(selected, e)
		}
	}
	sort.Slice(selected, func(i, j int) bool {
		if selected[i].CreatedAt.Equal(selected[j].CreatedAt) {
			return selected[i].ID < selected[j].ID
		}
		return selected[i].CreatedAt.Before(selected[j].CreatedAt)
	})
	return selected
}

func hasStatus(s entity.ReservationStatus, statuses []entity.ReservationStatus) bool {
	for _, candidate := range statuses {
		if s == candidate {
			return true
		}
	}
	return false
}
