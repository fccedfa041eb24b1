package pricing

import (
	"boxoffice/entity"

	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// ExtractVat returns the unrounded VAT amount of price for the given status.
func ExtractVat(price decimal.Decimal, status entity.VatStatus, pct decimal.Decimal) decimal.Decimal {
	switch status {
	case entity.VatNotIncluded, entity.VatCustomExcluded:
		return AddedVat(price, pct)
	case entity.VatIncluded, entity.VatCustomIncluded:
		return IncludedVat(price, pct)
	case entity.VatIncludedExempt:
		return IncludedVat(price, pct).Neg()
	default:
		return decimal.Zero
	}
}

// AddedVat is the tax charged on top of a net price.
func AddedVat(net, pct decimal.Decimal) decimal.Decimal {
	return net.Mul(pct).Div(hundred)
}

// IncludedVat is the tax contained in a tax-inclusive price.
func IncludedVat(gross, pct decimal.Decimal) decimal.Decimal {
	return gross.Mul(pct).Div(hundred.Add(pct))
}

// ChargedOnTop reports whether the VAT of the status is added to the price paid.
func ChargedOnTop(status entity.VatStatus) bool {
	return status == entity.VatNotIncluded || status == entity.VatCustomExcluded
}

// NetCts returns the part of a frozen snapshot that is not tax.
func NetCts(p entity.PriceSnapshot) int64 {
	vat := p.VatCts
	if vat < 0 {
		vat = -vat
	}
	return p.FinalPriceCts - vat
}
