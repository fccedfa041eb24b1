package summary

import (
	"fmt"
	"sort"

	"boxoffice/entity"
	"boxoffice/pricing"

	"github.com/shopspring/decimal"
)

type RowType string

const (
	RowTicket            RowType = "TICKET"
	RowAdditionalService RowType = "ADDITIONAL_SERVICE"
	RowPromotionCode     RowType = "PROMOTION_CODE"
	RowTaxDetail         RowType = "TAX_DETAIL"
)

type Row struct {
	Type                 RowType          `json:"type"`
	Name                 string           `json:"name"`
	UnitPriceCts         int64            `json:"unit_price_cts"`
	Quantity             int              `json:"quantity"`
	SubtotalCts          int64            `json:"subtotal_cts"`
	SubtotalBeforeVatCts int64            `json:"subtotal_before_vat_cts"`
	VatStatus            entity.VatStatus `json:"vat_status"`
	TaxPercentage        decimal.Decimal  `json:"tax_percentage"`
	UnitPrice            string           `json:"unit_price"`
	Subtotal             string           `json:"subtotal"`
	SubtotalBeforeVat    string           `json:"subtotal_before_vat"`
}

// OrderSummary presents the frozen price of a reservation. The totals are
// taken from the snapshot it is built with and never recomputed from rows.
type OrderSummary struct {
	ReservationID    string `json:"reservation_id"`
	Currency         string `json:"currency"`
	PromoCode        string `json:"promo_code,omitempty"`
	Rows             []Row  `json:"rows"`
	TotalCts         int64  `json:"total_cts"`
	TotalVatCts      int64  `json:"total_vat_cts"`
	TotalDiscountCts int64  `json:"total_discount_cts"`
	Total            string `json:"total"`
	TotalVat         string `json:"total_vat"`
	Free             bool   `json:"free"`
}

// DisplayRows omits promotion rows that did not discount anything.
func (s OrderSummary) DisplayRows() []Row {
	rows := make([]Row, 0, len(s.Rows))
	for _, r := range s.Rows {
		if r.Type == RowPromotionCode && r.SubtotalCts == 0 {
			continue
		}
		rows = append(rows, r)
	}
	return rows
}

// ChargeAmountCts is the amount the payment gateway is asked to charge.
func (s OrderSummary) ChargeAmountCts() int64 {
	return s.TotalCts
}

// Reconciles reports whether the rows add up to the frozen total.
func (s OrderSummary) Reconciles() bool {
	var sum int64
	for _, r := range s.Rows {
		switch r.Type {
		case RowTaxDetail:
			if pricing.ChargedOnTop(r.VatStatus) {
				sum += r.SubtotalCts
			}
		default:
			sum += r.SubtotalCts
		}
	}
	return sum == s.TotalCts
}

type Input struct {
	Reservation entity.Reservation
	Tickets     []entity.Ticket
	Categories  []entity.TicketCategory
	Items       []entity.AdditionalServiceItem
	Services    []entity.AdditionalService
	PromoCode   *entity.PromoCode
	// Frozen supplies the totals; the reservation snapshot for a full summary,
	// the credited snapshots for a credit note.
	Frozen entity.PriceSnapshot
}

type taxKey struct {
	status entity.VatStatus
	pct    string
}

type taxLine struct {
	status entity.VatStatus
	pct    decimal.Decimal
	cts    int64
}

func Build(in Input) (OrderSummary, error) {
	currency, err := pricing.ParseCurrency(in.Reservation.Currency)
	if err != nil {
		return OrderSummary{}, fmt.Errorf("parsing reservation currency: %w", err)
	}

	categoryNames := make(map[int64]string, len(in.Categories))
	for _, c := range in.Categories {
		categoryNames[c.ID] = c.Name
	}
	services := make(map[int64]entity.AdditionalService, len(in.Services))
	for _, s := range in.Services {
		services[s.ID] = s
	}

	var (
		rows        []Row
		discountCts int64
		discounted  int
		taxOrder    []taxKey
	)
	taxes := map[taxKey]*taxLine{}
	addTax := func(status entity.VatStatus, pct decimal.Decimal, cts int64) {
		if cts == 0 {
			return
		}
		k := taxKey{status: status, pct: pct.String()}
		line, ok := taxes[k]
		if !ok {
			line = &taxLine{status: status, pct: pct}
			taxes[k] = line
			taxOrder = append(taxOrder, k)
		}
		line.cts += cts
	}

	tickets := append([]entity.Ticket(nil), in.Tickets...)
	sort.SliceStable(tickets, func(i, j int) bool {
		if tickets[i].CategoryID != tickets[j].CategoryID {
			return tickets[i].CategoryID < tickets[j].CategoryID
		}
		return tickets[i].Price.SrcPriceCts < tickets[j].Price.SrcPriceCts
	})

	for i := 0; i < len(tickets); {
		j := i
		var subtotal, net int64
		for j < len(tickets) && tickets[j].CategoryID == tickets[i].CategoryID &&
			tickets[j].Price.SrcPriceCts == tickets[i].Price.SrcPriceCts {
			t := tickets[j]
			subtotal += t.Price.SrcPriceCts
			net += pricing.NetCts(t.Price)
			if t.Price.DiscountCts > 0 {
				discountCts += t.Price.DiscountCts
				discounted++
			}
			addTax(t.VatStatus, in.Reservation.VatPercentage, t.Price.VatCts)
			j++
		}

		rows = append(rows, Row{
			Type:                 RowTicket,
			Name:                 categoryNames[tickets[i].CategoryID],
			UnitPriceCts:         tickets[i].Price.SrcPriceCts,
			Quantity:             j - i,
			SubtotalCts:          subtotal,
			SubtotalBeforeVatCts: net,
			VatStatus:            tickets[i].VatStatus,
			TaxPercentage:        in.Reservation.VatPercentage,
		})
		i = j
	}

	items := append([]entity.AdditionalServiceItem(nil), in.Items...)
	sort.SliceStable(items, func(i, j int) bool {
		return items[i].ServiceID < items[j].ServiceID
	})

	for i := 0; i < len(items); {
		j := i
		service := services[items[i].ServiceID]
		_, pct := service.Vat(entity.Event{VatStatus: in.Reservation.VatStatus, VatPercentage: in.Reservation.VatPercentage})
		var subtotal, net int64
		for j < len(items) && items[j].ServiceID == items[i].ServiceID {
			item := items[j]
			subtotal += item.Price.SrcPriceCts
			net += pricing.NetCts(item.Price)
			if item.Price.DiscountCts > 0 {
				discountCts += item.Price.DiscountCts
				discounted++
			}
			addTax(item.VatStatus, pct, item.Price.VatCts)
			j++
		}

		unit := items[i].Price.SrcPriceCts
		if j-i > 1 && subtotal != unit*int64(j-i) {
			unit = 0
		}

		rows = append(rows, Row{
			Type:                 RowAdditionalService,
			Name:                 service.Name,
			UnitPriceCts:         unit,
			Quantity:             j - i,
			SubtotalCts:          subtotal,
			SubtotalBeforeVatCts: net,
			VatStatus:            items[i].VatStatus,
			TaxPercentage:        pct,
		})
		i = j
	}

	promoCode := ""
	if in.PromoCode != nil {
		promoCode = in.PromoCode.Code
		unit := int64(0)
		if discounted > 0 && discountCts%int64(discounted) == 0 {
			unit = -discountCts / int64(discounted)
		}
		rows = append(rows, Row{
			Type:                 RowPromotionCode,
			Name:                 in.PromoCode.Code,
			UnitPriceCts:         unit,
			Quantity:             discounted,
			SubtotalCts:          -discountCts,
			SubtotalBeforeVatCts: -discountCts,
		})
	}

	for _, k := range taxOrder {
		line := taxes[k]
		rows = append(rows, Row{
			Type:          RowTaxDetail,
			Name:          "VAT " + line.pct.String() + "%",
			Quantity:      1,
			UnitPriceCts:  line.cts,
			SubtotalCts:   line.cts,
			VatStatus:     line.status,
			TaxPercentage: line.pct,
		})
	}

	for i := range rows {
		rows[i].UnitPrice = currency.Format(rows[i].UnitPriceCts)
		rows[i].Subtotal = currency.Format(rows[i].SubtotalCts)
		rows[i].SubtotalBeforeVat = currency.Format(rows[i].SubtotalBeforeVatCts)
	}

	return OrderSummary{
		ReservationID:    in.Reservation.ID,
		Currency:         currency.Code,
		PromoCode:        promoCode,
		Rows:             rows,
		TotalCts:         in.Frozen.FinalPriceCts,
		TotalVatCts:      in.Frozen.VatCts,
		TotalDiscountCts: in.Frozen.DiscountCts,
		Total:            currency.Format(in.Frozen.FinalPriceCts),
		TotalVat:         currency.Format(in.Frozen.VatCts),
		Free:             in.Frozen.FinalPriceCts == 0,
	}, nil
}
