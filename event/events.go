package event

import (
	"time"

	"boxoffice/entity"

	"github.com/ThreeDotsLabs/watermill"
)

type header struct {
	ID             string    `json:"id"`
	PublishedAt    time.Time `json:"published_at"`
	IdempotencyKey string    `json:"idempotency_key"`
}

func newHeader(idempotencyKey string) header {
	return header{
		ID:             watermill.NewUUID(),
		PublishedAt:    time.Now().UTC(),
		IdempotencyKey: idempotencyKey,
	}
}

type ReservationCreated struct {
	Header        header    `json:"header"`
	ReservationID string    `json:"reservation_id"`
	EventID       string    `json:"event_id"`
	ValidUntil    time.Time `json:"valid_until"`
	TicketCount   int       `json:"ticket_count"`
	CategoryIDs   []int64   `json:"category_ids"`
}

func NewReservationCreated(r entity.Reservation, tickets []entity.Ticket) ReservationCreated {
	seen := map[int64]bool{}
	var categories []int64
	for _, t := range tickets {
		if !seen[t.CategoryID] {
			seen[t.CategoryID] = true
			categories = append(categories, t.CategoryID)
		}
	}

	return ReservationCreated{
		Header:        newHeader(r.ID + ":created"),
		ReservationID: r.ID,
		EventID:       r.EventID,
		ValidUntil:    r.Validity,
		TicketCount:   len(tickets),
		CategoryIDs:   categories,
	}
}

type TicketAssigned struct {
	Header        header `json:"header"`
	ReservationID string `json:"reservation_id"`
	TicketUUID    string `json:"ticket_uuid"`
	FullName      string `json:"full_name"`
	Email         string `json:"email"`
}

func NewTicketAssigned(t entity.Ticket) TicketAssigned {
	return TicketAssigned{
		Header:        newHeader(t.UUID + ":assigned"),
		ReservationID: t.ReservationID,
		TicketUUID:    t.UUID,
		FullName:      t.FullName(),
		Email:         t.Email,
	}
}

type ReservationConfirmed struct {
	Header        header               `json:"header"`
	ReservationID string               `json:"reservation_id"`
	EventID       string               `json:"event_id"`
	Email         string               `json:"email"`
	InvoiceNumber string               `json:"invoice_number"`
	PaymentMethod entity.PaymentMethod `json:"payment_method"`
	Total         entity.Money         `json:"total"`
}

func NewReservationConfirmed(r entity.Reservation, total entity.Money) ReservationConfirmed {
	return ReservationConfirmed{
		Header:        newHeader(r.ID + ":confirmed"),
		ReservationID: r.ID,
		EventID:       r.EventID,
		Email:         r.Email,
		InvoiceNumber: r.InvoiceNumber,
		PaymentMethod: r.PaymentMethod,
		Total:         total,
	}
}

type OfflinePaymentRequested struct {
	Header        header               `json:"header"`
	ReservationID string               `json:"reservation_id"`
	EventID       string               `json:"event_id"`
	Email         string               `json:"email"`
	PaymentMethod entity.PaymentMethod `json:"payment_method"`
	Total         entity.Money         `json:"total"`
	DueAt         time.Time            `json:"due_at"`
}

func NewOfflinePaymentRequested(r entity.Reservation, total entity.Money) OfflinePaymentRequested {
	return OfflinePaymentRequested{
		Header:        newHeader(r.ID + ":offline-payment"),
		ReservationID: r.ID,
		EventID:       r.EventID,
		Email:         r.Email,
		PaymentMethod: r.PaymentMethod,
		Total:         total,
		DueAt:         r.Validity,
	}
}

type ReservationCancelled struct {
	Header        header `json:"header"`
	ReservationID string `json:"reservation_id"`
	EventID       string `json:"event_id"`
	Email         string `json:"email"`
	Reason        string `json:"reason"`
	WasComplete   bool   `json:"was_complete"`
}

func NewReservationCancelled(r entity.Reservation, reason string, wasComplete bool) ReservationCancelled {
	return ReservationCancelled{
		Header:        newHeader(r.ID + ":cancelled"),
		ReservationID: r.ID,
		EventID:       r.EventID,
		Email:         r.Email,
		Reason:        reason,
		WasComplete:   wasComplete,
	}
}

type ReservationExpired struct {
	Header        header `json:"header"`
	ReservationID string `json:"reservation_id"`
	EventID       string `json:"event_id"`
	Email         string `json:"email"`
}

func NewReservationExpired(r entity.Reservation) ReservationExpired {
	return ReservationExpired{
		Header:        newHeader(r.ID + ":expired"),
		ReservationID: r.ID,
		EventID:       r.EventID,
		Email:         r.Email,
	}
}

type ReservationStuck struct {
	Header         header `json:"header"`
	ReservationID  string `json:"reservation_id"`
	TransactionRef string `json:"transaction_ref"`
	ExpectedCts    int64  `json:"expected_cts"`
	ReceivedCts    int64  `json:"received_cts"`
}

func NewReservationStuck(r entity.Reservation, receivedCts int64) ReservationStuck {
	return ReservationStuck{
		Header:         newHeader(r.ID + ":stuck"),
		ReservationID:  r.ID,
		TransactionRef: r.TransactionRef,
		ExpectedCts:    r.Price.FinalPriceCts,
		ReceivedCts:    receivedCts,
	}
}

type ReleasedSeats struct {
	CategoryID int64 `json:"category_id"`
	Count      int   `json:"count"`
}

type SeatsReleased struct {
	Header        header          `json:"header"`
	EventID       string          `json:"event_id"`
	ReservationID string          `json:"reservation_id"`
	Seats         []ReleasedSeats `json:"seats"`
}

func NewSeatsReleased(idempotencyKey, eventID, reservationID string, seats []ReleasedSeats) SeatsReleased {
	return SeatsReleased{
		Header:        newHeader(idempotencyKey),
		EventID:       eventID,
		ReservationID: reservationID,
		Seats:         seats,
	}
}

type BillingDocumentCreated struct {
	Header        header                     `json:"header"`
	DocumentID    int64                      `json:"document_id"`
	ReservationID string                     `json:"reservation_id"`
	EventID       string                     `json:"event_id"`
	Type          entity.BillingDocumentType `json:"type"`
	Number        string                     `json:"number"`
	Email         string                     `json:"email"`
	Total         entity.Money               `json:"total"`
}

func NewBillingDocumentCreated(d entity.BillingDocument, email string, total entity.Money) BillingDocumentCreated {
	return BillingDocumentCreated{
		Header:        newHeader(d.Number),
		DocumentID:    d.ID,
		ReservationID: d.ReservationID,
		EventID:       d.EventID,
		Type:          d.Type,
		Number:        d.Number,
		Email:         email,
		Total:         total,
	}
}

type CreditNoteIssued struct {
	Header         header       `json:"header"`
	DocumentID     int64        `json:"document_id"`
	Number         string       `json:"number"`
	ReservationID  string       `json:"reservation_id"`
	EventID        string       `json:"event_id"`
	Email          string       `json:"email"`
	TransactionRef string       `json:"transaction_ref"`
	Amount         entity.Money `json:"amount"`
	TicketUUIDs    []string     `json:"ticket_uuids"`
}

func NewCreditNoteIssued(d entity.BillingDocument, r entity.Reservation, amount entity.Money, tickets []entity.Ticket) CreditNoteIssued {
	uuids := make([]string, len(tickets))
	for i, t := range tickets {
		uuids[i] = t.UUID
	}

	return CreditNoteIssued{
		Header:         newHeader(d.Number),
		DocumentID:     d.ID,
		Number:         d.Number,
		ReservationID:  r.ID,
		EventID:        r.EventID,
		Email:          r.Email,
		TransactionRef: r.TransactionRef,
		Amount:         amount,
		TicketUUIDs:    uuids,
	}
}

type WaitingListOfferMade struct {
	Header        header    `json:"header"`
	EntryID       int64     `json:"entry_id"`
	EventID       string    `json:"event_id"`
	ReservationID string    `json:"reservation_id"`
	Email         string    `json:"email"`
	ValidUntil    time.Time `json:"valid_until"`
}

func NewWaitingListOfferMade(e entity.WaitingListEntry, reservationID string, validUntil time.Time) WaitingListOfferMade {
	return WaitingListOfferMade{
		Header:        newHeader(reservationID + ":waiting-list-offer"),
		EntryID:       e.ID,
		EventID:       e.EventID,
		ReservationID: reservationID,
		Email:         e.Email,
		ValidUntil:    validUntil,
	}
}
