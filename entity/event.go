package entity

import (
	"slices"
	"time"

	"github.com/shopspring/decimal"
)

type VatStatus string

const (
	VatNone              VatStatus = "NONE"
	VatIncluded          VatStatus = "INCLUDED"
	VatNotIncluded       VatStatus = "NOT_INCLUDED"
	VatIncludedExempt    VatStatus = "INCLUDED_EXEMPT"
	VatNotIncludedExempt VatStatus = "NOT_INCLUDED_EXEMPT"
	VatCustomIncluded    VatStatus = "CUSTOM_INCLUDED"
	VatCustomExcluded    VatStatus = "CUSTOM_EXCLUDED"
)

func (s VatStatus) Valid() bool {
	switch s {
	case VatNone, VatIncluded, VatNotIncluded, VatIncludedExempt,
		VatNotIncludedExempt, VatCustomIncluded, VatCustomExcluded:
		return true
	}
	return false
}

type PaymentMethod string

const (
	PaymentCreditCard   PaymentMethod = "CREDIT_CARD"
	PaymentBankTransfer PaymentMethod = "BANK_TRANSFER"
	PaymentOnSite       PaymentMethod = "ON_SITE"
	PaymentNone         PaymentMethod = "NONE"
)

func (m PaymentMethod) Valid() bool {
	switch m {
	case PaymentCreditCard, PaymentBankTransfer, PaymentOnSite, PaymentNone:
		return true
	}
	return false
}

type Event struct {
	ID               string          `json:"id"`
	OrganizationID   string          `json:"organization_id"`
	ShortName        string          `json:"short_name"`
	Currency         string          `json:"currency"`
	VatPercentage    decimal.Decimal `json:"vat_percentage"`
	VatStatus        VatStatus       `json:"vat_status"`
	TimeZone         string          `json:"time_zone"`
	Begin            time.Time       `json:"begin"`
	End              time.Time       `json:"end"`
	PaymentMethods   []PaymentMethod `json:"payment_methods"`
	RegularPriceCts  int64           `json:"regular_price_cts"`
	Seats            int             `json:"seats"`
	GeneralAvailable int             `json:"general_available"`
}

func (e Event) Accepts(m PaymentMethod) bool {
	return slices.Contains(e.PaymentMethods, m)
}

func (e Event) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(e.TimeZone)
	if err != nil {
		return nil, ConfigurationError{Reason: "unknown time zone " + e.TimeZone}
	}
	return loc, nil
}

type CategoryStatus string

const (
	CategoryActive    CategoryStatus = "ACTIVE"
	CategoryNotActive CategoryStatus = "NOT_ACTIVE"
)

type TicketCategory struct {
	ID               int64          `json:"id"`
	EventID          string         `json:"event_id"`
	Name             string         `json:"name"`
	MaxTickets       int            `json:"max_tickets"`
	Inception        time.Time      `json:"inception"`
	Expiration       time.Time      `json:"expiration"`
	Bounded          bool           `json:"bounded"`
	AccessRestricted bool           `json:"access_restricted"`
	PriceCts         int64          `json:"price_cts"`
	Status           CategoryStatus `json:"status"`
	Available        int            `json:"available"`
}

// OnSaleAt reports whether now falls inside the category's own sales window.
func (c TicketCategory) OnSaleAt(now time.Time) bool {
	return c.Status == CategoryActive && !now.Before(c.Inception) && now.Before(c.Expiration)
}

type Availability struct {
	EventID    string                 `json:"event_id"`
	General    int                    `json:"general"`
	Categories []CategoryAvailability `json:"categories"`
}

type CategoryAvailability struct {
	CategoryID int64  `json:"category_id"`
	Name       string `json:"name"`
	Bounded    bool   `json:"bounded"`
	Available  int    `json:"available"`
	OnSale     bool   `json:"on_sale"`
}

// SoldOut reports whether no seat is left for the given category.
func (a Availability) SoldOut(categoryID int64) bool {
	for _, c := range a.Categories {
		if c.CategoryID == categoryID {
			return c.Available == 0
		}
	}
	return false
}

// NewAvailability derives the public availability view of an event.
func NewAvailability(e Event, categories []TicketCategory, now time.Time) Availability {
	a := Availability{EventID: e.ID, General: e.GeneralAvailable}
	for _, c := range categories {
		if c.AccessRestricted {
			continue
		}
		available := e.GeneralAvailable
		if c.Bounded {
			available = c.Available
		}
		a.Categories = append(a.Categories, CategoryAvailability{
			CategoryID: c.ID,
			Name:       c.Name,
			Bounded:    c.Bounded,
			Available:  available,
			OnSale:     c.OnSaleAt(now),
		})
	}
	return a
}
