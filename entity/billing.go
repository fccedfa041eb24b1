package entity

import (
	"encoding/json"
	"time"
)

type BillingDocumentType string

const (
	DocumentInvoice    BillingDocumentType = "INVOICE"
	DocumentReceipt    BillingDocumentType = "RECEIPT"
	DocumentCreditNote BillingDocumentType = "CREDIT_NOTE"
)

type BillingDocumentStatus string

const (
	DocumentValid    BillingDocumentStatus = "VALID"
	DocumentNotValid BillingDocumentStatus = "NOT_VALID"
)

type BillingDocument struct {
	ID            int64                 `json:"id"`
	EventID       string                `json:"event_id"`
	ReservationID string                `json:"reservation_id"`
	Number        string                `json:"number"`
	Type          BillingDocumentType   `json:"type"`
	Status        BillingDocumentStatus `json:"status"`
	Model         json.RawMessage       `json:"model"`
	GeneratedAt   time.Time             `json:"generated_at"`
}

type WaitingListStatus string

const (
	WaitingListWaiting   WaitingListStatus = "WAITING"
	WaitingListOffered   WaitingListStatus = "OFFERED"
	WaitingListAcquired  WaitingListStatus = "ACQUIRED"
	WaitingListExpired   WaitingListStatus = "EXPIRED"
	WaitingListCancelled WaitingListStatus = "CANCELLED"
)

type WaitingListEntry struct {
	ID            int64             `json:"id"`
	EventID       string            `json:"event_id"`
	CategoryID    int64             `json:"category_id"`
	FirstName     string            `json:"first_name"`
	LastName      string            `json:"last_name"`
	Email         string            `json:"email"`
	Status        WaitingListStatus `json:"status"`
	ReservationID string            `json:"reservation_id,omitempty"`
	CreatedAt     time.Time         `json:"created_at"`
}

type SettingScope string

const (
	ScopeSystem       SettingScope = "SYSTEM"
	ScopeOrganization SettingScope = "ORGANIZATION"
	ScopeEvent        SettingScope = "EVENT"
	ScopeCategory     SettingScope = "CATEGORY"
)

type Setting struct {
	Scope   SettingScope `json:"scope"`
	ScopeID string       `json:"scope_id"`
	Key     string       `json:"key"`
	Value   string       `json:"value"`
}

type NotificationKind string

const (
	NotifyReservationConfirmed NotificationKind = "RESERVATION_CONFIRMED"
	NotifyReservationCancelled NotificationKind = "RESERVATION_CANCELLED"
	NotifyReservationExpired   NotificationKind = "RESERVATION_EXPIRED"
	NotifyOfflinePayment       NotificationKind = "OFFLINE_PAYMENT_INSTRUCTIONS"
	NotifyCreditNoteIssued     NotificationKind = "CREDIT_NOTE_ISSUED"
	NotifyWaitingListOffer     NotificationKind = "WAITING_LIST_OFFER"
)
