package billing

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"boxoffice/entity"
	"boxoffice/summary"
)

const (
	DefaultInvoicePattern = "INV-%05d"
	DefaultReceiptPattern = "RCP-%05d"
)

type Request struct {
	Reservation entity.Reservation
	Summary     summary.OrderSummary
	Type        entity.BillingDocumentType
	Number      string
}

type Generator interface {
	Generate(ctx context.Context, req Request) (entity.BillingDocument, error)
}

// Model is the serialized content of a billing document.
type Model struct {
	Type            entity.BillingDocumentType `json:"type"`
	Number          string                     `json:"number"`
	ReferenceNumber string                     `json:"reference_number,omitempty"`
	ReservationID   string                     `json:"reservation_id"`
	EventID         string                     `json:"event_id"`
	Holder          string                     `json:"holder"`
	Email           string                     `json:"email"`
	Billing         entity.BillingDetails      `json:"billing"`
	PaymentMethod   entity.PaymentMethod       `json:"payment_method"`
	TransactionRef  string                     `json:"transaction_ref,omitempty"`
	Currency        string                     `json:"currency"`
	Rows            []summary.Row              `json:"rows"`
	Total           string                     `json:"total"`
	TotalVat        string                     `json:"total_vat"`
	VatStatus       entity.VatStatus           `json:"vat_status"`
	ConfirmedAt     time.Time                  `json:"confirmed_at"`
	GeneratedAt     time.Time                  `json:"generated_at"`
}

// JSONGenerator stores the document model as JSON; rendering to a printable
// format happens asynchronously.
type JSONGenerator struct {
	now func() time.Time
}

func NewJSONGenerator(now func() time.Time) JSONGenerator {
	if now == nil {
		now = time.Now
	}
	return JSONGenerator{
		now: now,
	}
}

func (g JSONGenerator) Generate(_ context.Context, req Request) (entity.BillingDocument, error) {
	r, s, t := req.Reservation, req.Summary, req.Type
	generatedAt := g.now().UTC()

	number := req.Number
	if number == "" {
		number = r.InvoiceNumber
	}
	reference := ""
	if t == entity.DocumentCreditNote {
		reference = r.InvoiceNumber
	}

	model := Model{
		Type:            t,
		Number:          number,
		ReferenceNumber: reference,
		ReservationID:   r.ID,
		EventID:         r.EventID,
		Holder:          r.HolderName(),
		Email:           r.Email,
		Billing:         r.Billing,
		PaymentMethod:   r.PaymentMethod,
		TransactionRef:  r.TransactionRef,
		Currency:        s.Currency,
		Rows:            s.DisplayRows(),
		Total:           s.Total,
		TotalVat:        s.TotalVat,
		VatStatus:       r.VatStatus,
		ConfirmedAt:     r.ConfirmedAt,
		GeneratedAt:     generatedAt,
	}

	payload, err := json.Marshal(model)
	if err != nil {
		return entity.BillingDocument{}, fmt.Errorf("marshalling document model: %w", err)
	}

	return entity.BillingDocument{
		EventID:       r.EventID,
		ReservationID: r.ID,
		Number:        number,
		Type:          t,
		Status:        entity.DocumentValid,
		Model:         payload,
		GeneratedAt:   generatedAt,
	}, nil
}

// DocumentType is INVOICE when the buyer asked for one and RECEIPT otherwise.
func DocumentType(r entity.Reservation) entity.BillingDocumentType {
	if r.InvoiceRequested {
		return entity.DocumentInvoice
	}
	return entity.DocumentReceipt
}

// FormatNumber renders a sequence value with a printf pattern holding one
// integer verb. Patterns without a verb get the sequence appended.
func FormatNumber(pattern string, seq int64) string {
	if !strings.Contains(pattern, "%") {
		return fmt.Sprintf("%s%d", pattern, seq)
	}
	return fmt.Sprintf(pattern, seq)
}

// CreditNoteNumber numbers the n-th credit note issued against an invoice or receipt.
func CreditNoteNumber(documentNumber string, n int) string {
	return fmt.Sprintf("%s-CN%d", documentNumber, n)
}

// Primary returns the valid invoice or receipt among documents.
func Primary(documents []entity.BillingDocument) (entity.BillingDocument, bool) {
	for _, d := range documents {
		if d.Status == entity.DocumentValid && d.Type != entity.DocumentCreditNote {
			return d, true
		}
	}
	return entity.BillingDocument{}, false
}

func CountCreditNotes(documents []entity.BillingDocument) int {
	n := 0
	for _, d := range documents {
		if d.Type == entity.DocumentCreditNote {
			n++
		}
	}
	return n
}
