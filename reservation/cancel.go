package reservation

import (
	"context"
	"fmt"
	"sort"

	"boxoffice/billing"
	"boxoffice/entity"
	"boxoffice/event"
)

const ReasonPaymentTimeout = "PAYMENT_TIMEOUT"

// Cancel cancels a reservation and releases its seats. A COMPLETE reservation
// gets a credit note for what was paid; its original billing document stays
// valid. Cancelling a CANCELLED or EXPIRED reservation does nothing.
func (m *Manager) Cancel(ctx context.Context, id, reason string) error {
	return m.store.InTx(ctx, func(ctx context.Context, tx Tx) error {
		r, err := tx.Reservation(ctx, id)
		if err != nil {
			return fmt.Errorf("getting reservation %s: %w", id, err)
		}

		switch {
		case r.Status.Terminal():
			return nil
		case r.Status == entity.ReservationComplete:
			return m.cancelComplete(ctx, tx, &r, reason)
		default:
			return m.cancelPending(ctx, tx, &r, entity.PreCompleteStatuses, reason)
		}
	})
}

func (m *Manager) cancelPending(
	ctx context.Context,
	tx Tx,
	r *entity.Reservation,
	from []entity.ReservationStatus,
	reason string,
) error {
	if err := m.transition(ctx, tx, r, from, entity.ReservationCancelled, "cancel"); err != nil {
		return err
	}

	tickets, err := tx.Tickets(ctx, r.ID)
	if err != nil {
		return fmt.Errorf("getting tickets: %w", err)
	}

	items, err := tx.AdditionalServiceItems(ctx, r.ID)
	if err != nil {
		return fmt.Errorf("getting additional service items: %w", err)
	}

	active := soldTickets(tickets)
	seats, err := m.retireTickets(ctx, tx, r.EventID, active)
	if err != nil {
		return err
	}

	if ids := itemIDs(items, entity.TicketPending, entity.TicketToBePaid); len(ids) > 0 {
		if err := tx.SetAdditionalServiceItemsStatus(ctx, ids, entity.TicketCancelled); err != nil {
			return fmt.Errorf("cancelling additional service items: %w", err)
		}
	}

	return m.finishCancel(ctx, tx, r, active, seats, reason, false)
}

func (m *Manager) cancelComplete(ctx context.Context, tx Tx, r *entity.Reservation, reason string) error {
	tickets, err := tx.Tickets(ctx, r.ID)
	if err != nil {
		return fmt.Errorf("getting tickets: %w", err)
	}

	var v entity.ValidationError
	for _, t := range tickets {
		if t.Status == entity.TicketCheckedIn {
			v.Add("tickets["+t.UUID+"]", "checked_in")
		}
	}
	if err := v.Err(); err != nil {
		return err
	}

	from := []entity.ReservationStatus{entity.ReservationComplete}
	if err := m.transition(ctx, tx, r, from, entity.ReservationCancelled, "cancel"); err != nil {
		return err
	}

	items, err := tx.AdditionalServiceItems(ctx, r.ID)
	if err != nil {
		return fmt.Errorf("getting additional service items: %w", err)
	}

	active := soldTickets(tickets)
	activeItems := acquiredItems(items)

	seats, err := m.retireTickets(ctx, tx, r.EventID, active)
	if err != nil {
		return err
	}

	if ids := itemIDs(activeItems); len(ids) > 0 {
		if err := tx.SetAdditionalServiceItemsStatus(ctx, ids, entity.TicketCancelled); err != nil {
			return fmt.Errorf("cancelling additional service items: %w", err)
		}
	}

	if err := m.issueCreditNote(ctx, tx, *r, active, activeItems); err != nil {
		return err
	}

	return m.finishCancel(ctx, tx, r, active, seats, reason, true)
}

func (m *Manager) finishCancel(
	ctx context.Context,
	tx Tx,
	r *entity.Reservation,
	tickets []entity.Ticket,
	seats []event.ReleasedSeats,
	reason string,
	wasComplete bool,
) error {
	ev, err := tx.Event(ctx, r.EventID)
	if err != nil {
		return fmt.Errorf("getting event: %w", err)
	}

	r.Metadata.CancellationReason = reason

	err = m.runExtension(ctx, LifecycleEvent{Kind: LifecycleCancelled, Event: ev, Tickets: tickets}, r)
	if err != nil {
		return err
	}

	if err := tx.UpdateReservation(ctx, *r); err != nil {
		return fmt.Errorf("updating reservation: %w", err)
	}

	if err := tx.Publish(ctx, event.NewReservationCancelled(*r, reason, wasComplete)); err != nil {
		return err
	}

	return m.publishSeatsReleased(ctx, tx, r.ID+":cancelled", *r, seats)
}

// CreditTickets refunds some tickets of a COMPLETE reservation with a credit
// note. The seats go back on sale and the reservation stays COMPLETE.
func (m *Manager) CreditTickets(ctx context.Context, id string, ticketUUIDs []string) error {
	return m.store.InTx(ctx, func(ctx context.Context, tx Tx) error {
		r, err := tx.Reservation(ctx, id)
		if err != nil {
			return fmt.Errorf("getting reservation %s: %w", id, err)
		}

		if r.Status != entity.ReservationComplete {
			return entity.StateConflictError{
				ReservationID: r.ID,
				Expected:      []entity.ReservationStatus{entity.ReservationComplete},
				Actual:        r.Status,
			}
		}

		tickets, err := tx.Tickets(ctx, r.ID)
		if err != nil {
			return fmt.Errorf("getting tickets: %w", err)
		}

		selected, err := selectTickets(tickets, ticketUUIDs)
		if err != nil {
			return err
		}

		items, err := tx.AdditionalServiceItems(ctx, r.ID)
		if err != nil {
			return fmt.Errorf("getting additional service items: %w", err)
		}

		bound := map[int64]bool{}
		for _, t := range selected {
			bound[t.ID] = true
		}
		var creditedItems []entity.AdditionalServiceItem
		for _, i := range acquiredItems(items) {
			if i.TicketID != 0 && bound[i.TicketID] {
				creditedItems = append(creditedItems, i)
			}
		}

		seats, err := m.retireTickets(ctx, tx, r.EventID, selected)
		if err != nil {
			return err
		}

		if ids := itemIDs(creditedItems); len(ids) > 0 {
			if err := tx.SetAdditionalServiceItemsStatus(ctx, ids, entity.TicketCancelled); err != nil {
				return fmt.Errorf("cancelling additional service items: %w", err)
			}
		}

		if err := m.issueCreditNote(ctx, tx, r, selected, creditedItems); err != nil {
			return err
		}

		return m.publishSeatsReleased(ctx, tx, r.ID+":credited:"+selected[0].UUID, r, seats)
	})
}

func selectTickets(tickets []entity.Ticket, uuids []string) ([]entity.Ticket, error) {
	var v entity.ValidationError
	if len(uuids) == 0 {
		v.Add("tickets", "required")
		return nil, v.Err()
	}

	byUUID := make(map[string]entity.Ticket, len(tickets))
	for _, t := range tickets {
		byUUID[t.UUID] = t
	}

	seen := map[string]bool{}
	var selected []entity.Ticket
	for _, u := range uuids {
		if seen[u] {
			continue
		}
		seen[u] = true

		t, ok := byUUID[u]
		switch {
		case !ok:
			v.Add("tickets["+u+"]", "not_found")
		case t.Status != entity.TicketAcquired:
			v.Add("tickets["+u+"]", "not_creditable")
		default:
			selected = append(selected, t)
		}
	}

	if err := v.Err(); err != nil {
		return nil, err
	}

	return selected, nil
}

func (m *Manager) issueCreditNote(
	ctx context.Context,
	tx Tx,
	r entity.Reservation,
	tickets []entity.Ticket,
	items []entity.AdditionalServiceItem,
) error {
	docs, err := tx.BillingDocuments(ctx, r.ID)
	if err != nil {
		return fmt.Errorf("getting billing documents: %w", err)
	}

	credited := entity.SumPrices(tickets).Add(entity.SumItemPrices(items))

	s, err := m.summaryOf(ctx, tx, r, tickets, items, credited)
	if err != nil {
		return err
	}

	doc, err := m.generator.Generate(ctx, billing.Request{
		Reservation: r,
		Summary:     s,
		Type:        entity.DocumentCreditNote,
		Number:      billing.CreditNoteNumber(r.InvoiceNumber, billing.CountCreditNotes(docs)+1),
	})
	if err != nil {
		return fmt.Errorf("generating credit note: %w", err)
	}

	doc, err = tx.InsertBillingDocument(ctx, doc)
	if err != nil {
		return fmt.Errorf("inserting credit note: %w", err)
	}

	amount, err := money(r, credited.FinalPriceCts)
	if err != nil {
		return err
	}

	if err := tx.Publish(ctx, event.NewBillingDocumentCreated(doc, r.Email, amount)); err != nil {
		return err
	}

	return tx.Publish(ctx, event.NewCreditNoteIssued(doc, r, amount, tickets))
}

// retireTickets takes sold tickets out of circulation and puts the same number
// of fresh FREE tickets back on sale. Tickets of restricted categories are
// RELEASED and their access tokens become usable again.
func (m *Manager) retireTickets(ctx context.Context, tx Tx, eventID string, tickets []entity.Ticket) ([]event.ReleasedSeats, error) {
	if len(tickets) == 0 {
		return nil, nil
	}

	categories, err := m.categoriesByID(ctx, tx, eventID)
	if err != nil {
		return nil, err
	}

	var cancelled, released, tokens []int64
	counts := map[int64]int{}
	for _, t := range tickets {
		c := categories[t.CategoryID]
		if c.AccessRestricted {
			released = append(released, t.ID)
			if t.AccessTokenID != 0 {
				tokens = append(tokens, t.AccessTokenID)
			}
		} else {
			cancelled = append(cancelled, t.ID)
		}
		counts[t.CategoryID]++
	}

	if len(cancelled) > 0 {
		if err := tx.SetTicketsStatus(ctx, cancelled, entity.TicketCancelled); err != nil {
			return nil, fmt.Errorf("cancelling tickets: %w", err)
		}
	}
	if len(released) > 0 {
		if err := tx.SetTicketsStatus(ctx, released, entity.TicketReleased); err != nil {
			return nil, fmt.Errorf("releasing tickets: %w", err)
		}
	}
	if len(tokens) > 0 {
		if err := tx.ReleaseAccessTokens(ctx, tokens); err != nil {
			return nil, fmt.Errorf("releasing access tokens: %w", err)
		}
	}

	returned := returnedSeats(categories, counts)
	for _, s := range returned {
		categoryID := int64(0)
		if s.Bounded {
			categoryID = s.CategoryID
		}
		if err := tx.InsertFreeTickets(ctx, eventID, categoryID, s.Count); err != nil {
			return nil, fmt.Errorf("regenerating tickets: %w", err)
		}
	}

	if err := tx.ReturnSeats(ctx, eventID, returned); err != nil {
		return nil, fmt.Errorf("returning seats: %w", err)
	}

	return releasedSeats(returned), nil
}

func (m *Manager) categoriesByID(ctx context.Context, tx Tx, eventID string) (map[int64]entity.TicketCategory, error) {
	categories, err := tx.Categories(ctx, eventID)
	if err != nil {
		return nil, fmt.Errorf("getting categories: %w", err)
	}

	byID := make(map[int64]entity.TicketCategory, len(categories))
	for _, c := range categories {
		byID[c.ID] = c
	}
	return byID, nil
}

// returnedSeats lists the seats per category in ascending category order, the
// order in which category rows are locked.
func returnedSeats(categories map[int64]entity.TicketCategory, counts map[int64]int) []ReturnedSeats {
	seats := make([]ReturnedSeats, 0, len(counts))
	for id, n := range counts {
		seats = append(seats, ReturnedSeats{
			CategoryID: id,
			Bounded:    categories[id].Bounded,
			Count:      n,
		})
	}
	sort.Slice(seats, func(i, j int) bool {
		return seats[i].CategoryID < seats[j].CategoryID
	})
	return seats
}

func releasedSeats(seats []ReturnedSeats) []event.ReleasedSeats {
	released := make([]event.ReleasedSeats, len(seats))
	for i, s := range seats {
		released[i] = event.ReleasedSeats{CategoryID: s.CategoryID, Count: s.Count}
	}
	return released
}

func (m *Manager) publishSeatsReleased(ctx context.Context, tx Tx, key string, r entity.Reservation, seats []event.ReleasedSeats) error {
	if len(seats) == 0 {
		return nil
	}
	return tx.Publish(ctx, event.NewSeatsReleased(key, r.EventID, r.ID, seats))
}

func soldTickets(tickets []entity.Ticket) []entity.Ticket {
	var sold []entity.Ticket
	for _, t := range tickets {
		if t.Status == entity.TicketPending || t.Status == entity.TicketToBePaid || t.Status == entity.TicketAcquired {
			sold = append(sold, t)
		}
	}
	return sold
}

func acquiredItems(items []entity.AdditionalServiceItem) []entity.AdditionalServiceItem {
	var acquired []entity.AdditionalServiceItem
	for _, i := range items {
		if i.Status == entity.TicketAcquired {
			acquired = append(acquired, i)
		}
	}
	return acquired
}
