package pricing

import (
	"boxoffice/entity"

	"github.com/shopspring/decimal"
)

type Discount struct {
	Type   entity.DiscountType
	Amount int64
}

func DiscountOf(p entity.PromoCode) Discount {
	return Discount{
		Type:   p.DiscountType,
		Amount: p.DiscountAmount,
	}
}

// Cts returns the discount, in minor units, applied to one item of the given price.
func (d Discount) Cts(c Currency, srcPriceCts int64) int64 {
	var cts int64
	switch d.Type {
	case entity.DiscountFixedAmount:
		cts = d.Amount
	case entity.DiscountPercentage:
		cts = c.Cents(c.Units(srcPriceCts).Mul(decimal.NewFromInt(d.Amount)).Div(hundred))
	}

	return max(0, min(cts, srcPriceCts))
}

type Input struct {
	Currency      Currency
	SrcPriceCts   int64
	VatStatus     entity.VatStatus
	VatPercentage decimal.Decimal
	Discount      *Discount
}

// Calculate applies the discount first and computes VAT on the discounted
// price, rounding once to the currency's minor unit.
func Calculate(in Input) entity.PriceSnapshot {
	var discountCts int64
	if in.Discount != nil {
		discountCts = in.Discount.Cts(in.Currency, in.SrcPriceCts)
	}

	discounted := in.SrcPriceCts - discountCts
	vatCts := in.Currency.Cents(ExtractVat(in.Currency.Units(discounted), in.VatStatus, in.VatPercentage))

	final := discounted
	if ChargedOnTop(in.VatStatus) {
		final += vatCts
	}

	return entity.PriceSnapshot{
		SrcPriceCts:   in.SrcPriceCts,
		FinalPriceCts: final,
		VatCts:        vatCts,
		DiscountCts:   discountCts,
	}
}
