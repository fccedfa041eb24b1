package billing_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"boxoffice/billing"
	"boxoffice/entity"
	"boxoffice/summary"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJSONGenerator_Generate(t *testing.T) {
	now := time.Date(2026, 5, 4, 12, 0, 0, 0, time.UTC)
	g := billing.NewJSONGenerator(func() time.Time { return now })

	r := entity.Reservation{
		ID:            "res-1",
		EventID:       "ev-1",
		FirstName:     "Ada",
		LastName:      "Lovelace",
		Email:         "ada@example.com",
		InvoiceNumber: "INV-00042",
		VatStatus:     entity.VatNotIncluded,
	}
	s := summary.OrderSummary{
		Currency: "EUR",
		Total:    "11.00",
		Rows: []summary.Row{
			{Type: summary.RowTicket, Name: "Regular", SubtotalCts: 1000},
			{Type: summary.RowPromotionCode, Name: "NOPE"},
		},
	}

	t.Run("invoice", func(t *testing.T) {
		doc, err := g.Generate(context.Background(), billing.Request{Reservation: r, Summary: s, Type: entity.DocumentInvoice})
		require.NoError(t, err)

		assert.Equal(t, "INV-00042", doc.Number)
		assert.Equal(t, entity.DocumentValid, doc.Status)
		assert.Equal(t, now, doc.GeneratedAt)

		var model billing.Model
		require.NoError(t, json.Unmarshal(doc.Model, &model))
		assert.Equal(t, "Ada Lovelace", model.Holder)
		assert.Len(t, model.Rows, 1, "inapplicable promo code row is not printed")
		assert.Empty(t, model.ReferenceNumber)
	})

	t.Run("credit note references the invoice", func(t *testing.T) {
		doc, err := g.Generate(context.Background(), billing.Request{
			Reservation: r,
			Summary:     s,
			Type:        entity.DocumentCreditNote,
			Number:      billing.CreditNoteNumber(r.InvoiceNumber, 1),
		})
		require.NoError(t, err)

		assert.Equal(t, "INV-00042-CN1", doc.Number)

		var model billing.Model
		require.NoError(t, json.Unmarshal(doc.Model, &model))
		assert.Equal(t, "INV-00042", model.ReferenceNumber)
		assert.Equal(t, entity.DocumentCreditNote, model.Type)
	})
}

func TestFormatNumber(t *testing.T) {
	assert.Equal(t, "INV-00007", billing.FormatNumber(billing.DefaultInvoicePattern, 7))
	assert.Equal(t, "2026/15", billing.FormatNumber("2026/%d", 15))
	assert.Equal(t, "R15", billing.FormatNumber("R", 15))
}

func TestPrimary(t *testing.T) {
	docs := []entity.BillingDocument{
		{ID: 1, Type: entity.DocumentReceipt, Status: entity.DocumentNotValid},
		{ID: 2, Type: entity.DocumentCreditNote, Status: entity.DocumentValid},
		{ID: 3, Type: entity.DocumentInvoice, Status: entity.DocumentValid},
	}

	primary, ok := billing.Primary(docs)
	require.True(t, ok)
	assert.Equal(t, int64(3), primary.ID)
	assert.Equal(t, 1, billing.CountCreditNotes(docs))

	_, ok = billing.Primary(docs[:2])
	assert.False(t, ok)
}
