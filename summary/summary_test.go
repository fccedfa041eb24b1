package summary_test

import (
	"testing"

	"boxoffice/entity"
	"boxoffice/summary"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ticket(categoryID int64, price entity.PriceSnapshot) entity.Ticket {
	return entity.Ticket{
		CategoryID: categoryID,
		Price:      price,
		Currency:   "EUR",
		VatStatus:  entity.VatNotIncluded,
		Status:     entity.TicketPending,
	}
}

func TestBuild(t *testing.T) {
	discounted := entity.PriceSnapshot{SrcPriceCts: 1000, FinalPriceCts: 990, VatCts: 90, DiscountCts: 100}
	regular := entity.PriceSnapshot{SrcPriceCts: 500, FinalPriceCts: 550, VatCts: 50}
	tickets := []entity.Ticket{ticket(2, regular), ticket(1, discounted), ticket(1, discounted)}
	frozen := entity.SumPrices(tickets)

	s, err := summary.Build(summary.Input{
		Reservation: entity.Reservation{
			ID:            "res-1",
			Currency:      "EUR",
			VatStatus:     entity.VatNotIncluded,
			VatPercentage: decimal.NewFromInt(10),
		},
		Tickets: tickets,
		Categories: []entity.TicketCategory{
			{ID: 1, Name: "Early bird"},
			{ID: 2, Name: "Regular"},
		},
		PromoCode: &entity.PromoCode{Code: "SPRING"},
		Frozen:    frozen,
	})
	require.NoError(t, err)

	require.Len(t, s.Rows, 4)
	assert.Equal(t, summary.RowTicket, s.Rows[0].Type)
	assert.Equal(t, "Early bird", s.Rows[0].Name)
	assert.Equal(t, 2, s.Rows[0].Quantity)
	assert.Equal(t, "20.00", s.Rows[0].Subtotal)
	assert.Equal(t, "18.00", s.Rows[0].SubtotalBeforeVat)
	assert.Equal(t, "Regular", s.Rows[1].Name)
	assert.Equal(t, summary.RowPromotionCode, s.Rows[2].Type)
	assert.Equal(t, int64(-200), s.Rows[2].SubtotalCts)
	assert.Equal(t, "-1.00", s.Rows[2].UnitPrice)
	assert.Equal(t, summary.RowTaxDetail, s.Rows[3].Type)
	assert.Equal(t, int64(230), s.Rows[3].SubtotalCts)

	assert.Equal(t, int64(2530), s.TotalCts)
	assert.Equal(t, "25.30", s.Total)
	assert.Equal(t, s.TotalCts, s.ChargeAmountCts())
	assert.True(t, s.Reconciles())
}

func TestBuild_inapplicable_promo_code_is_hidden(t *testing.T) {
	regular := entity.PriceSnapshot{SrcPriceCts: 500, FinalPriceCts: 500}
	tickets := []entity.Ticket{ticket(1, regular)}
	tickets[0].VatStatus = entity.VatNone

	s, err := summary.Build(summary.Input{
		Reservation: entity.Reservation{Currency: "EUR", VatStatus: entity.VatNone},
		Tickets:     tickets,
		PromoCode:   &entity.PromoCode{Code: "OTHER-CATEGORY"},
		Frozen:      entity.SumPrices(tickets),
	})
	require.NoError(t, err)

	require.Len(t, s.Rows, 2)
	assert.Equal(t, summary.RowPromotionCode, s.Rows[1].Type)

	display := s.DisplayRows()
	require.Len(t, display, 1)
	assert.Equal(t, summary.RowTicket, display[0].Type)
}

func TestBuild_total_is_never_recomputed(t *testing.T) {
	tickets := []entity.Ticket{ticket(1, entity.PriceSnapshot{SrcPriceCts: 1000, FinalPriceCts: 1100, VatCts: 100})}

	s, err := summary.Build(summary.Input{
		Reservation: entity.Reservation{Currency: "EUR", VatStatus: entity.VatNotIncluded},
		Tickets:     tickets,
		Frozen:      entity.PriceSnapshot{FinalPriceCts: 4242},
	})
	require.NoError(t, err)

	assert.Equal(t, int64(4242), s.TotalCts)
	assert.False(t, s.Reconciles())
}

func TestBuild_additional_services_and_included_vat(t *testing.T) {
	tickets := []entity.Ticket{{
		CategoryID: 1,
		Price:      entity.PriceSnapshot{SrcPriceCts: 1100, FinalPriceCts: 1100, VatCts: 100},
		VatStatus:  entity.VatIncluded,
	}}
	items := []entity.AdditionalServiceItem{{
		ServiceID: 9,
		Price:     entity.PriceSnapshot{SrcPriceCts: 1000, FinalPriceCts: 1080, VatCts: 80},
		VatStatus: entity.VatCustomExcluded,
	}}
	frozen := entity.SumPrices(tickets).Add(entity.SumItemPrices(items))

	s, err := summary.Build(summary.Input{
		Reservation: entity.Reservation{Currency: "CHF", VatStatus: entity.VatIncluded, VatPercentage: decimal.NewFromInt(10)},
		Tickets:     tickets,
		Items:       items,
		Services: []entity.AdditionalService{{
			ID: 9, Name: "Workshop", VatType: entity.ServiceVatCustomExcluded, VatPercentage: decimal.NewFromInt(8),
		}},
		Frozen: frozen,
	})
	require.NoError(t, err)

	require.Len(t, s.Rows, 4)
	assert.Equal(t, "Workshop", s.Rows[1].Name)
	assert.Equal(t, "10.00", s.Rows[1].SubtotalBeforeVat)
	assert.Equal(t, int64(2180), s.TotalCts)
	assert.True(t, s.Reconciles())
}

func TestBuild_unknown_currency(t *testing.T) {
	_, err := summary.Build(summary.Input{Reservation: entity.Reservation{Currency: "???"}})
	assert.ErrorIs(t, err, entity.ErrConfiguration)
}
