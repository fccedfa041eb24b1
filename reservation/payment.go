package reservation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"boxoffice/billing"
	"boxoffice/config"
	"boxoffice/entity"
	"boxoffice/event"

	"github.com/ThreeDotsLabs/go-event-driven/common/log"
)

const (
	defaultOfflinePaymentDays = 3
	defaultGatewayTimeout     = 30 * time.Minute
)

type PaymentOutcome struct {
	Status         entity.ReservationStatus `json:"status"`
	TransactionRef string                   `json:"transaction_ref,omitempty"`
	RedirectURL    string                   `json:"redirect_url,omitempty"`
}

// Pay settles an IN_PAYMENT reservation with the payment method chosen at
// checkout. Paying a COMPLETE reservation again returns its outcome unchanged.
func (m *Manager) Pay(ctx context.Context, id string) (PaymentOutcome, error) {
	var (
		r      entity.Reservation
		charge int64
	)
	err := m.store.InTx(ctx, func(ctx context.Context, tx Tx) error {
		var err error
		r, err = tx.Reservation(ctx, id)
		if err != nil {
			return fmt.Errorf("getting reservation %s: %w", id, err)
		}

		if r.Status != entity.ReservationInPayment && r.Status != entity.ReservationComplete {
			return entity.StateConflictError{
				ReservationID: r.ID,
				Expected:      []entity.ReservationStatus{entity.ReservationInPayment},
				Actual:        r.Status,
			}
		}

		s, err := m.summary(ctx, tx, r)
		if err != nil {
			return err
		}
		charge = s.ChargeAmountCts()

		return nil
	})
	if err != nil {
		return PaymentOutcome{}, err
	}

	if r.Status == entity.ReservationComplete {
		return PaymentOutcome{Status: r.Status, TransactionRef: r.TransactionRef}, nil
	}

	switch {
	case charge == 0 || r.PaymentMethod == entity.PaymentNone:
		return m.completeNow(ctx, id, "")
	case r.PaymentMethod == entity.PaymentBankTransfer:
		return m.awaitOfflinePayment(ctx, id, entity.ReservationOfflinePayment)
	case r.PaymentMethod == entity.PaymentOnSite:
		return m.awaitOfflinePayment(ctx, id, entity.ReservationCustomOfflinePayment)
	}

	res, err := m.gateway.Charge(ctx, ChargeRequest{
		ReservationID: r.ID,
		AmountCts:     charge,
		Currency:      r.Currency,
		Method:        r.PaymentMethod,
		Email:         r.Email,
	})
	if err != nil {
		return PaymentOutcome{Status: r.Status}, fmt.Errorf("charging reservation %s: %w", id, errors.Join(entity.ErrPaymentFailed, err))
	}

	switch res.Status {
	case ChargeSucceeded:
		out, err := m.completeNow(ctx, id, res.TransactionRef)
		if errors.Is(err, entity.ErrStateConflict) {
			log.FromContext(ctx).
				WithField("reservation_id", id).
				WithField("transaction_ref", res.TransactionRef).
				Error("Charged a reservation that is no longer available")
		}
		return out, err
	case ChargePending:
		return m.awaitGateway(ctx, id, res)
	default:
		return PaymentOutcome{Status: r.Status}, fmt.Errorf("charging reservation %s: %s: %w", id, res.Reason, entity.ErrPaymentFailed)
	}
}

func (m *Manager) completeNow(ctx context.Context, id, transactionRef string) (PaymentOutcome, error) {
	var r entity.Reservation
	err := m.store.InTx(ctx, func(ctx context.Context, tx Tx) error {
		var err error
		r, err = tx.Reservation(ctx, id)
		if err != nil {
			return fmt.Errorf("getting reservation %s: %w", id, err)
		}

		if r.Price.FinalPriceCts == 0 {
			r.PaymentMethod = entity.PaymentNone
		}

		return m.complete(ctx, tx, &r, []entity.ReservationStatus{entity.ReservationInPayment}, transactionRef)
	})
	if err != nil {
		return PaymentOutcome{}, err
	}

	return PaymentOutcome{Status: r.Status, TransactionRef: r.TransactionRef}, nil
}

func (m *Manager) awaitOfflinePayment(ctx context.Context, id string, to entity.ReservationStatus) (PaymentOutcome, error) {
	var r entity.Reservation
	err := m.store.InTx(ctx, func(ctx context.Context, tx Tx) error {
		var err error
		r, err = tx.Reservation(ctx, id)
		if err != nil {
			return fmt.Errorf("getting reservation %s: %w", id, err)
		}

		ev, err := tx.Event(ctx, r.EventID)
		if err != nil {
			return fmt.Errorf("getting event: %w", err)
		}

		settings, err := m.settings(ctx, tx, ev, 0)
		if err != nil {
			return err
		}

		err = m.transition(ctx, tx, &r, []entity.ReservationStatus{entity.ReservationInPayment}, to, "pay")
		if err != nil {
			return err
		}

		days := settings.Int(config.KeyOfflinePaymentDays, defaultOfflinePaymentDays)
		r.Validity = m.now().Add(time.Duration(days) * 24 * time.Hour)

		if err := m.setStatus(ctx, tx, r.ID, entity.TicketToBePaid, entity.TicketPending); err != nil {
			return err
		}

		if err := tx.UpdateReservation(ctx, r); err != nil {
			return fmt.Errorf("updating reservation: %w", err)
		}

		total, err := money(r, r.Price.FinalPriceCts)
		if err != nil {
			return err
		}

		return tx.Publish(ctx, event.NewOfflinePaymentRequested(r, total))
	})
	if err != nil {
		return PaymentOutcome{}, err
	}

	return PaymentOutcome{Status: r.Status}, nil
}

func (m *Manager) awaitGateway(ctx context.Context, id string, res ChargeResult) (PaymentOutcome, error) {
	err := m.store.InTx(ctx, func(ctx context.Context, tx Tx) error {
		r, err := tx.Reservation(ctx, id)
		if err != nil {
			return fmt.Errorf("getting reservation %s: %w", id, err)
		}

		ev, err := tx.Event(ctx, r.EventID)
		if err != nil {
			return fmt.Errorf("getting event: %w", err)
		}

		settings, err := m.settings(ctx, tx, ev, 0)
		if err != nil {
			return err
		}

		err = m.transition(
			ctx,
			tx,
			&r,
			[]entity.ReservationStatus{entity.ReservationInPayment},
			entity.ReservationExternalProcessingPayment,
			"pay",
		)
		if err != nil {
			return err
		}

		// The reaper cancels the reservation when the gateway never confirms.
		r.Validity = m.now().Add(settings.Minutes(config.KeyPaymentGatewayMinutes, defaultGatewayTimeout))
		r.TransactionRef = res.TransactionRef

		return tx.UpdateReservation(ctx, r)
	})
	if err != nil {
		return PaymentOutcome{}, err
	}

	return PaymentOutcome{
		Status:         entity.ReservationExternalProcessingPayment,
		TransactionRef: res.TransactionRef,
		RedirectURL:    res.RedirectURL,
	}, nil
}

// ConfirmPayment handles the gateway notification of a settled transaction.
// Repeated notifications for a COMPLETE reservation are ignored. An amount
// different from the frozen price moves the reservation to STUCK.
func (m *Manager) ConfirmPayment(ctx context.Context, transactionRef string, amountCts int64) error {
	logger := log.FromContext(ctx).WithField("transaction_ref", transactionRef)

	var stuck bool
	err := m.store.InTx(ctx, func(ctx context.Context, tx Tx) error {
		r, err := tx.ReservationByTransactionRef(ctx, transactionRef)
		if err != nil {
			return fmt.Errorf("getting reservation of transaction %s: %w", transactionRef, err)
		}

		from := []entity.ReservationStatus{
			entity.ReservationExternalProcessingPayment,
			entity.ReservationInPayment,
		}

		switch r.Status {
		case entity.ReservationComplete:
			logger.Info("Payment already confirmed")
			return nil
		case entity.ReservationExternalProcessingPayment, entity.ReservationInPayment:
		default:
			return entity.StateConflictError{ReservationID: r.ID, Expected: from, Actual: r.Status}
		}

		if amountCts != r.Price.FinalPriceCts {
			stuck = true
			if err := m.transition(ctx, tx, &r, from, entity.ReservationStuck, "confirm_payment"); err != nil {
				return err
			}
			return tx.Publish(ctx, event.NewReservationStuck(r, amountCts))
		}

		return m.complete(ctx, tx, &r, from, transactionRef)
	})
	if errors.Is(err, entity.ErrStateConflict) {
		logger.WithError(err).Warn("Payment confirmed for a reservation that is no longer available")
	}
	if err != nil {
		return err
	}

	if stuck {
		logger.WithField("amount_cts", amountCts).Error("Payment amount does not match the reservation")
		return fmt.Errorf("transaction %s confirmed %d: %w", transactionRef, amountCts, entity.ErrPaymentFailed)
	}

	return nil
}

// ConfirmOfflinePayment completes a reservation waiting for a bank transfer,
// an on site payment or a manual review.
func (m *Manager) ConfirmOfflinePayment(ctx context.Context, id string) error {
	return m.store.InTx(ctx, func(ctx context.Context, tx Tx) error {
		r, err := tx.Reservation(ctx, id)
		if err != nil {
			return fmt.Errorf("getting reservation %s: %w", id, err)
		}

		if r.Status == entity.ReservationComplete {
			return nil
		}

		return m.complete(ctx, tx, &r, []entity.ReservationStatus{
			entity.ReservationOfflinePayment,
			entity.ReservationCustomOfflinePayment,
			entity.ReservationStuck,
		}, "")
	})
}

// complete finalizes a reservation: the price is frozen, the tickets are
// acquired and a billing document is created unless one already exists.
func (m *Manager) complete(
	ctx context.Context,
	tx Tx,
	r *entity.Reservation,
	from []entity.ReservationStatus,
	transactionRef string,
) error {
	if err := m.transition(ctx, tx, r, from, entity.ReservationComplete, "complete"); err != nil {
		return err
	}

	ev, err := tx.Event(ctx, r.EventID)
	if err != nil {
		return fmt.Errorf("getting event: %w", err)
	}

	tickets, err := tx.Tickets(ctx, r.ID)
	if err != nil {
		return fmt.Errorf("getting tickets: %w", err)
	}

	items, err := tx.AdditionalServiceItems(ctx, r.ID)
	if err != nil {
		return fmt.Errorf("getting additional service items: %w", err)
	}

	r.Price = entity.SumPrices(tickets).Add(entity.SumItemPrices(items))
	r.ConfirmedAt = m.now()
	if transactionRef != "" {
		r.TransactionRef = transactionRef
	}

	docType := billing.DocumentType(*r)
	if r.InvoiceNumber == "" {
		settings, err := m.settings(ctx, tx, ev, 0)
		if err != nil {
			return err
		}

		pattern := settings.String(config.KeyReceiptNumberPattern, billing.DefaultReceiptPattern)
		if docType == entity.DocumentInvoice {
			pattern = settings.String(config.KeyInvoiceNumberPattern, billing.DefaultInvoicePattern)
		}

		seq, err := tx.NextDocumentNumber(ctx, r.EventID, docType)
		if err != nil {
			return fmt.Errorf("getting document number: %w", err)
		}
		r.InvoiceNumber = billing.FormatNumber(pattern, seq)
	}

	if err := m.setStatus(ctx, tx, r.ID, entity.TicketAcquired, entity.TicketPending, entity.TicketToBePaid); err != nil {
		return err
	}
	for i := range tickets {
		if tickets[i].Status == entity.TicketPending || tickets[i].Status == entity.TicketToBePaid {
			tickets[i].Status = entity.TicketAcquired
		}
	}

	err = m.runExtension(ctx, LifecycleEvent{Kind: LifecycleConfirmed, Event: ev, Tickets: tickets}, r)
	if err != nil {
		return err
	}

	if err := tx.UpdateReservation(ctx, *r); err != nil {
		return fmt.Errorf("updating reservation: %w", err)
	}

	total, err := money(*r, r.Price.FinalPriceCts)
	if err != nil {
		return err
	}

	docs, err := tx.BillingDocuments(ctx, r.ID)
	if err != nil {
		return fmt.Errorf("getting billing documents: %w", err)
	}

	if _, ok := billing.Primary(docs); !ok {
		s, err := m.summaryOf(ctx, tx, *r, tickets, items, r.Price)
		if err != nil {
			return err
		}

		doc, err := m.generator.Generate(ctx, billing.Request{Reservation: *r, Summary: s, Type: docType})
		if err != nil {
			return fmt.Errorf("generating billing document: %w", err)
		}

		doc, err = tx.InsertBillingDocument(ctx, doc)
		if err != nil {
			return fmt.Errorf("inserting billing document: %w", err)
		}

		if err := tx.Publish(ctx, event.NewBillingDocumentCreated(doc, r.Email, total)); err != nil {
			return err
		}
	}

	return tx.Publish(ctx, event.NewReservationConfirmed(*r, total))
}

// setStatus moves the tickets and additional service items of a reservation
// currently in one of from to status.
func (m *Manager) setStatus(ctx context.Context, tx Tx, reservationID string, status entity.TicketStatus, from ...entity.TicketStatus) error {
	tickets, err := tx.Tickets(ctx, reservationID)
	if err != nil {
		return fmt.Errorf("getting tickets: %w", err)
	}
	if ids := ticketIDs(tickets, from...); len(ids) > 0 {
		if err := tx.SetTicketsStatus(ctx, ids, status); err != nil {
			return fmt.Errorf("updating tickets: %w", err)
		}
	}

	items, err := tx.AdditionalServiceItems(ctx, reservationID)
	if err != nil {
		return fmt.Errorf("getting additional service items: %w", err)
	}
	if ids := itemIDs(items, from...); len(ids) > 0 {
		if err := tx.SetAdditionalServiceItemsStatus(ctx, ids, status); err != nil {
			return fmt.Errorf("updating additional service items: %w", err)
		}
	}

	return nil
}
