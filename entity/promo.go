package entity

import (
	"slices"
	"time"

	"github.com/shopspring/decimal"
)

type DiscountType string

const (
	DiscountNone        DiscountType = "NONE"
	DiscountFixedAmount DiscountType = "FIXED_AMOUNT"
	DiscountPercentage  DiscountType = "PERCENTAGE"
)

type PromoCodeType string

const (
	PromoCodeDiscount PromoCodeType = "DISCOUNT"
	PromoCodeAccess   PromoCodeType = "ACCESS"
	PromoCodeDynamic  PromoCodeType = "DYNAMIC"
)

// PromoCode is a discount or access code of an event. DiscountAmount is in
// minor units for FIXED_AMOUNT and in whole percent for PERCENTAGE. A MaxUsage
// of zero means unlimited.
type PromoCode struct {
	ID             int64         `json:"id"`
	EventID        string        `json:"event_id"`
	Code           string        `json:"code"`
	ValidFrom      time.Time     `json:"valid_from"`
	ValidTo        time.Time     `json:"valid_to"`
	DiscountType   DiscountType  `json:"discount_type"`
	DiscountAmount int64         `json:"discount_amount"`
	Categories     []int64       `json:"categories,omitempty"`
	CodeType       PromoCodeType `json:"code_type"`
	MaxUsage       int           `json:"max_usage,omitempty"`
}

func (p PromoCode) AppliesTo(categoryID int64) bool {
	return len(p.Categories) == 0 || slices.Contains(p.Categories, categoryID)
}

type AccessTokenStatus string

const (
	AccessTokenFree  AccessTokenStatus = "FREE"
	AccessTokenTaken AccessTokenStatus = "TAKEN"
)

// AccessToken unlocks one seat of an access-restricted category. A zero
// ValidUntil never expires.
type AccessToken struct {
	ID            int64             `json:"id"`
	Code          string            `json:"code"`
	EventID       string            `json:"event_id"`
	CategoryID    int64             `json:"category_id"`
	Status        AccessTokenStatus `json:"status"`
	ReservationID string            `json:"reservation_id,omitempty"`
	ValidUntil    time.Time         `json:"valid_until,omitempty"`
}

func (t AccessToken) UsableAt(now time.Time) bool {
	return t.Status == AccessTokenFree && (t.ValidUntil.IsZero() || now.Before(t.ValidUntil))
}

type AdditionalServiceType string

const (
	ServiceDonation   AdditionalServiceType = "DONATION"
	ServiceSupplement AdditionalServiceType = "SUPPLEMENT"
)

type AdditionalServiceVatType string

const (
	ServiceVatInherited      AdditionalServiceVatType = "INHERITED"
	ServiceVatNone           AdditionalServiceVatType = "NONE"
	ServiceVatCustomIncluded AdditionalServiceVatType = "CUSTOM_INCLUDED"
	ServiceVatCustomExcluded AdditionalServiceVatType = "CUSTOM_EXCLUDED"
)

type AdditionalService struct {
	ID            int64                    `json:"id"`
	EventID       string                   `json:"event_id"`
	Name          string                   `json:"name"`
	Type          AdditionalServiceType    `json:"type"`
	PriceCts      int64                    `json:"price_cts"`
	VatType       AdditionalServiceVatType `json:"vat_type"`
	VatPercentage decimal.Decimal          `json:"vat_percentage"`
}

// Vat returns the VAT status and percentage that apply to the service when
// sold within the given event.
func (s AdditionalService) Vat(e Event) (VatStatus, decimal.Decimal) {
	switch s.VatType {
	case ServiceVatNone:
		return VatNone, decimal.Zero
	case ServiceVatCustomIncluded:
		return VatCustomIncluded, s.VatPercentage
	case ServiceVatCustomExcluded:
		return VatCustomExcluded, s.VatPercentage
	}
	return e.VatStatus, e.VatPercentage
}

type AdditionalServiceItem struct {
	ID            int64         `json:"id"`
	UUID          string        `json:"uuid"`
	ReservationID string        `json:"reservation_id"`
	ServiceID     int64         `json:"service_id"`
	EventID       string        `json:"event_id"`
	TicketID      int64         `json:"ticket_id,omitempty"`
	Status        TicketStatus  `json:"status"`
	Price         PriceSnapshot `json:"price"`
	VatStatus     VatStatus     `json:"vat_status"`
}

func SumItemPrices(items []AdditionalServiceItem) PriceSnapshot {
	var total PriceSnapshot
	for _, i := range items {
		total = total.Add(i.Price)
	}
	return total
}
