package command

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

type RefundPayment struct {
	Header         header       `json:"header"`
	ReservationID  string       `json:"reservation_id"`
	TransactionRef string       `json:"transaction_ref"`
	CreditNote     string       `json:"credit_note"`
	Amount         entity.Money `json:"amount"`
}

func NewRefundPayment(idempotencyKey, reservationID, transactionRef, creditNote string, amount entity.Money) RefundPayment {
	return RefundPayment{
		Header:         newHeader(idempotencyKey),
		ReservationID:  reservationID,
		TransactionRef: transactionRef,
		CreditNote:     creditNote,
		Amount:         amount,
	}
}
