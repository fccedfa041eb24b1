package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

type ReservationStatus string

const (
	ReservationPending                   ReservationStatus = "PENDING"
	ReservationInPayment                 ReservationStatus = "IN_PAYMENT"
	ReservationOfflinePayment            ReservationStatus = "OFFLINE_PAYMENT"
	ReservationExternalProcessingPayment ReservationStatus = "EXTERNAL_PROCESSING_PAYMENT"
	ReservationCustomOfflinePayment      ReservationStatus = "CUSTOM_OFFLINE_PAYMENT"
	ReservationComplete                  ReservationStatus = "COMPLETE"
	ReservationStuck                     ReservationStatus = "STUCK"
	ReservationCancelled                 ReservationStatus = "CANCELLED"
	ReservationExpired                   ReservationStatus = "EXPIRED"
)

// PreCompleteStatuses lists the states from which a reservation may still be
// cancelled without issuing a credit note.
var PreCompleteStatuses = []ReservationStatus{
	ReservationPending,
	ReservationInPayment,
	ReservationOfflinePayment,
	ReservationExternalProcessingPayment,
	ReservationCustomOfflinePayment,
	ReservationStuck,
}

func (s ReservationStatus) Terminal() bool {
	return s == ReservationCancelled || s == ReservationExpired
}

type BillingDetails struct {
	CompanyName  string `json:"company_name,omitempty"`
	AddressLine1 string `json:"address_line1,omitempty"`
	AddressLine2 string `json:"address_line2,omitempty"`
	Zip          string `json:"zip,omitempty"`
	City         string `json:"city,omitempty"`
	Country      string `json:"country,omitempty"`
	VatNumber    string `json:"vat_number,omitempty"`
}

type ReservationMetadata struct {
	Locale             string            `json:"locale,omitempty"`
	CancellationReason string            `json:"cancellation_reason,omitempty"`
	AdditionalFields   map[string]string `json:"additional_fields,omitempty"`
	Annotations        map[string]string `json:"annotations,omitempty"`
}

func (m *ReservationMetadata) Annotate(annotations map[string]string) {
	if len(annotations) == 0 {
		return
	}
	if m.Annotations == nil {
		m.Annotations = make(map[string]string, len(annotations))
	}
	for k, v := range annotations {
		m.Annotations[k] = v
	}
}

type Reservation struct {
	ID               string              `json:"id"`
	EventID          string              `json:"event_id"`
	Status           ReservationStatus   `json:"status"`
	Validity         time.Time           `json:"validity"`
	CreatedAt        time.Time           `json:"created_at"`
	FirstName        string              `json:"first_name,omitempty"`
	LastName         string              `json:"last_name,omitempty"`
	Email            string              `json:"email,omitempty"`
	InvoiceRequested bool                `json:"invoice_requested"`
	Billing          BillingDetails      `json:"billing"`
	PaymentMethod    PaymentMethod       `json:"payment_method,omitempty"`
	TransactionRef   string              `json:"transaction_ref,omitempty"`
	PromoCodeID      int64               `json:"promo_code_id,omitempty"`
	Price            PriceSnapshot       `json:"price"`
	Currency         string              `json:"currency"`
	VatStatus        VatStatus           `json:"vat_status"`
	VatPercentage    decimal.Decimal     `json:"vat_percentage"`
	InvoiceNumber    string              `json:"invoice_number,omitempty"`
	ConfirmedAt      time.Time           `json:"confirmed_at,omitempty"`
	Metadata         ReservationMetadata `json:"metadata"`
}

func (r Reservation) HolderName() string {
	if r.LastName == "" {
		return r.FirstName
	}
	return r.FirstName + " " + r.LastName
}

// HoldElapsed reports whether the reservation validity has passed at now.
func (r Reservation) HoldElapsed(now time.Time) bool {
	return !now.Before(r.Validity)
}
