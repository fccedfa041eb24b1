package reservation

import (
	"context"
	"fmt"
	"net/mail"
	"strings"

	"boxoffice/config"
	"boxoffice/entity"
	"boxoffice/event"
)

type Attendee struct {
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Email     string `json:"email,omitempty"`
}

type CheckoutForm struct {
	FirstName        string                `json:"first_name"`
	LastName         string                `json:"last_name"`
	Email            string                `json:"email"`
	InvoiceRequested bool                  `json:"invoice_requested"`
	Billing          entity.BillingDetails `json:"billing"`
	PaymentMethod    entity.PaymentMethod  `json:"payment_method"`

	// Attendees are keyed by ticket UUID. A reservation holding a single
	// ticket falls back to the holder when its attendee is missing.
	Attendees        map[string]Attendee `json:"attendees"`
	AdditionalFields map[string]string   `json:"additional_fields,omitempty"`
}

func (f CheckoutForm) attendee(t entity.Ticket, ticketCount int) Attendee {
	a, ok := f.Attendees[t.UUID]
	if !ok && ticketCount == 1 {
		a = Attendee{FirstName: f.FirstName, LastName: f.LastName}
	}
	if a.Email == "" {
		a.Email = f.Email
	}
	return a
}

// Checkout stores the contact, billing and attendee details of a PENDING
// reservation within its hold and moves it to IN_PAYMENT.
func (m *Manager) Checkout(ctx context.Context, id string, form CheckoutForm) error {
	now := m.now()

	return m.store.InTx(ctx, func(ctx context.Context, tx Tx) error {
		r, err := tx.Reservation(ctx, id)
		if err != nil {
			return fmt.Errorf("getting reservation %s: %w", id, err)
		}

		if r.Status != entity.ReservationPending || r.HoldElapsed(now) {
			return entity.StateConflictError{
				ReservationID: r.ID,
				Expected:      []entity.ReservationStatus{entity.ReservationPending},
				Actual:        r.Status,
			}
		}

		ev, err := tx.Event(ctx, r.EventID)
		if err != nil {
			return fmt.Errorf("getting event: %w", err)
		}

		tickets, err := tx.Tickets(ctx, r.ID)
		if err != nil {
			return fmt.Errorf("getting tickets: %w", err)
		}

		settings, err := m.settings(ctx, tx, ev, 0)
		if err != nil {
			return err
		}

		if err := validateCheckout(form, ev, r, tickets, settings); err != nil {
			return err
		}

		for i := range tickets {
			a := form.attendee(tickets[i], len(tickets))
			tickets[i].FirstName = strings.TrimSpace(a.FirstName)
			tickets[i].LastName = strings.TrimSpace(a.LastName)
			tickets[i].Email = strings.TrimSpace(a.Email)
		}
		if err := tx.UpdateTicketHolders(ctx, tickets); err != nil {
			return fmt.Errorf("assigning tickets: %w", err)
		}

		r.FirstName = strings.TrimSpace(form.FirstName)
		r.LastName = strings.TrimSpace(form.LastName)
		r.Email = strings.TrimSpace(form.Email)
		r.InvoiceRequested = form.InvoiceRequested
		r.Billing = form.Billing
		r.PaymentMethod = form.PaymentMethod
		if r.Price.FinalPriceCts == 0 {
			r.PaymentMethod = entity.PaymentNone
		}
		r.Metadata.AdditionalFields = form.AdditionalFields

		err = m.transition(ctx, tx, &r, []entity.ReservationStatus{entity.ReservationPending}, entity.ReservationInPayment, "checkout")
		if err != nil {
			return err
		}

		err = m.runExtension(ctx, LifecycleEvent{Kind: LifecycleTicketAssigned, Event: ev, Tickets: tickets}, &r)
		if err != nil {
			return err
		}

		if err := tx.UpdateReservation(ctx, r); err != nil {
			return fmt.Errorf("updating reservation: %w", err)
		}

		for _, t := range tickets {
			if err := tx.Publish(ctx, event.NewTicketAssigned(t)); err != nil {
				return err
			}
		}

		return nil
	})
}

func validateCheckout(
	form CheckoutForm,
	ev entity.Event,
	r entity.Reservation,
	tickets []entity.Ticket,
	settings config.Scoped,
) error {
	var v entity.ValidationError

	if strings.TrimSpace(form.FirstName) == "" {
		v.Add("first_name", "required")
	}
	if strings.TrimSpace(form.LastName) == "" {
		v.Add("last_name", "required")
	}
	if !validEmail(form.Email) {
		v.Add("email", "invalid")
	}

	for _, t := range tickets {
		a := form.attendee(t, len(tickets))
		field := "attendees[" + t.UUID + "]"
		if strings.TrimSpace(a.FirstName) == "" {
			v.Add(field+".first_name", "required")
		}
		if strings.TrimSpace(a.LastName) == "" {
			v.Add(field+".last_name", "required")
		}
		if email := form.Attendees[t.UUID].Email; email != "" && !validEmail(email) {
			v.Add(field+".email", "invalid")
		}
	}

	for _, name := range settings.List(config.KeyMandatoryAdditionalFields) {
		if strings.TrimSpace(form.AdditionalFields[name]) == "" {
			v.Add("additional_fields."+name, "required")
		}
	}

	if form.InvoiceRequested {
		b := form.Billing
		if strings.TrimSpace(b.AddressLine1) == "" {
			v.Add("billing.address_line1", "required")
		}
		if strings.TrimSpace(b.Zip) == "" {
			v.Add("billing.zip", "required")
		}
		if strings.TrimSpace(b.City) == "" {
			v.Add("billing.city", "required")
		}
		if strings.TrimSpace(b.Country) == "" {
			v.Add("billing.country", "required")
		}
	}

	switch {
	case r.Price.FinalPriceCts == 0:
	case form.PaymentMethod == "":
		v.Add("payment_method", "required")
	case !form.PaymentMethod.Valid(), form.PaymentMethod == entity.PaymentNone, !ev.Accepts(form.PaymentMethod):
		v.Add("payment_method", "not_allowed")
	}

	return v.Err()
}

func validEmail(s string) bool {
	addr, err := mail.ParseAddress(strings.TrimSpace(s))
	return err == nil && addr.Name == ""
}
