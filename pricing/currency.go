package pricing

import (
	"fmt"
	"strings"

	"boxoffice/entity"

	"github.com/shopspring/decimal"
	"golang.org/x/text/currency"
)

// Currency is an ISO-4217 currency with the number of decimals of its minor unit.
type Currency struct {
	Code  string
	Scale int32
}

func ParseCurrency(code string) (Currency, error) {
	unit, err := currency.ParseISO(strings.ToUpper(strings.TrimSpace(code)))
	if err != nil {
		return Currency{}, entity.ConfigurationError{Reason: fmt.Sprintf("unknown currency %q", code)}
	}

	scale, _ := currency.Standard.Rounding(unit)

	return Currency{
		Code:  unit.String(),
		Scale: int32(scale),
	}, nil
}

// Units converts an amount of minor units into currency units.
func (c Currency) Units(cts int64) decimal.Decimal {
	return decimal.New(cts, -c.Scale)
}

// Cents rounds an amount half away from zero to the minor unit and returns it in minor units.
func (c Currency) Cents(amount decimal.Decimal) int64 {
	return amount.Round(c.Scale).Shift(c.Scale).IntPart()
}

func (c Currency) Format(cts int64) string {
	return c.Units(cts).StringFixed(c.Scale)
}

func (c Currency) Money(cts int64) entity.Money {
	return entity.Money{
		Amount:   c.Format(cts),
		Currency: c.Code,
	}
}
