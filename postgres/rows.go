package postgres

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"boxoffice/entity"

	"github.com/jmoiron/sqlx/types"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"
)

type eventRow struct {
	ID               string          `db:"id"`
	OrganizationID   string          `db:"organization_id"`
	ShortName        string          `db:"short_name"`
	Currency         string          `db:"currency"`
	VatPercentage    decimal.Decimal `db:"vat_percentage"`
	VatStatus        string          `db:"vat_status"`
	TimeZone         string          `db:"time_zone"`
	BeginAt          time.Time       `db:"begin_at"`
	EndAt            time.Time       `db:"end_at"`
	PaymentMethods   pq.StringArray  `db:"payment_methods"`
	RegularPriceCts  int64           `db:"regular_price_cts"`
	Seats            int             `db:"seats"`
	GeneralAvailable int             `db:"general_available"`
}

func (r eventRow) entity() entity.Event {
	methods := make([]entity.PaymentMethod, len(r.PaymentMethods))
	for i, m := range r.PaymentMethods {
		methods[i] = entity.PaymentMethod(m)
	}

	return entity.Event{
		ID:               r.ID,
		OrganizationID:   r.OrganizationID,
		ShortName:        r.ShortName,
		Currency:         r.Currency,
		VatPercentage:    r.VatPercentage,
		VatStatus:        entity.VatStatus(r.VatStatus),
		TimeZone:         r.TimeZone,
		Begin:            r.BeginAt.UTC(),
		End:              r.EndAt.UTC(),
		PaymentMethods:   methods,
		RegularPriceCts:  r.RegularPriceCts,
		Seats:            r.Seats,
		GeneralAvailable: r.GeneralAvailable,
	}
}

const categoryColumns = `id, event_id, name, max_tickets, inception, expiration, bounded,
	access_restricted, price_cts, status, available`

type categoryRow struct {
	ID               int64     `db:"id"`
	EventID          string    `db:"event_id"`
	Name             string    `db:"name"`
	MaxTickets       int       `db:"max_tickets"`
	Inception        time.Time `db:"inception"`
	Expiration       time.Time `db:"expiration"`
	Bounded          bool      `db:"bounded"`
	AccessRestricted bool      `db:"access_restricted"`
	PriceCts         int64     `db:"price_cts"`
	Status           string    `db:"status"`
	Available        int       `db:"available"`
}

func (r categoryRow) entity() entity.TicketCategory {
	return entity.TicketCategory{
		ID:               r.ID,
		EventID:          r.EventID,
		Name:             r.Name,
		MaxTickets:       r.MaxTickets,
		Inception:        r.Inception.UTC(),
		Expiration:       r.Expiration.UTC(),
		Bounded:          r.Bounded,
		AccessRestricted: r.AccessRestricted,
		PriceCts:         r.PriceCts,
		Status:           entity.CategoryStatus(r.Status),
		Available:        r.Available,
	}
}

func categories(rows []categoryRow) []entity.TicketCategory {
	c := make([]entity.TicketCategory, len(rows))
	for i, r := range rows {
		c[i] = r.entity()
	}
	return c
}

type priceRow struct {
	SrcPriceCts   int64 `db:"src_price_cts"`
	FinalPriceCts int64 `db:"final_price_cts"`
	VatCts        int64 `db:"vat_cts"`
	DiscountCts   int64 `db:"discount_cts"`
}

func (r priceRow) entity() entity.PriceSnapshot {
	return entity.PriceSnapshot(r)
}

const ticketColumns = `id, uuid, event_id, COALESCE(category_id, 0) AS category_id,
	COALESCE(reservation_id::text, '') AS reservation_id, status,
	src_price_cts, final_price_cts, vat_cts, discount_cts, currency, vat_status,
	first_name, last_name, email, COALESCE(access_token_id, 0) AS access_token_id`

type ticketRow struct {
	priceRow
	ID            int64  `db:"id"`
	UUID          string `db:"uuid"`
	EventID       string `db:"event_id"`
	CategoryID    int64  `db:"category_id"`
	ReservationID string `db:"reservation_id"`
	Status        string `db:"status"`
	Currency      string `db:"currency"`
	VatStatus     string `db:"vat_status"`
	FirstName     string `db:"first_name"`
	LastName      string `db:"last_name"`
	Email         string `db:"email"`
	AccessTokenID int64  `db:"access_token_id"`
}

func (r ticketRow) entity() entity.Ticket {
	return entity.Ticket{
		ID:            r.ID,
		UUID:          r.UUID,
		EventID:       r.EventID,
		CategoryID:    r.CategoryID,
		ReservationID: r.ReservationID,
		Status:        entity.TicketStatus(r.Status),
		Price:         r.priceRow.entity(),
		Currency:      r.Currency,
		VatStatus:     entity.VatStatus(r.VatStatus),
		FirstName:     r.FirstName,
		LastName:      r.LastName,
		Email:         r.Email,
		AccessTokenID: r.AccessTokenID,
	}
}

const tokenColumns = `id, code, event_id, category_id, status,
	COALESCE(reservation_id::text, '') AS reservation_id, valid_until`

type tokenRow struct {
	ID            int64        `db:"id"`
	Code          string       `db:"code"`
	EventID       string       `db:"event_id"`
	CategoryID    int64        `db:"category_id"`
	Status        string       `db:"status"`
	ReservationID string       `db:"reservation_id"`
	ValidUntil    sql.NullTime `db:"valid_until"`
}

func (r tokenRow) entity() entity.AccessToken {
	t := entity.AccessToken{
		ID:            r.ID,
		Code:          r.Code,
		EventID:       r.EventID,
		CategoryID:    r.CategoryID,
		Status:        entity.AccessTokenStatus(r.Status),
		ReservationID: r.ReservationID,
	}
	if r.ValidUntil.Valid {
		t.ValidUntil = r.ValidUntil.Time.UTC()
	}
	return t
}

const promoCodeColumns = `id, event_id, code, valid_from, valid_to, discount_type, discount_amount,
	categories, code_type, max_usage`

type promoCodeRow struct {
	ID             int64         `db:"id"`
	EventID        string        `db:"event_id"`
	Code           string        `db:"code"`
	ValidFrom      time.Time     `db:"valid_from"`
	ValidTo        time.Time     `db:"valid_to"`
	DiscountType   string        `db:"discount_type"`
	DiscountAmount int64         `db:"discount_amount"`
	Categories     pq.Int64Array `db:"categories"`
	CodeType       string        `db:"code_type"`
	MaxUsage       int           `db:"max_usage"`
}

func (r promoCodeRow) entity() entity.PromoCode {
	p := entity.PromoCode{
		ID:             r.ID,
		EventID:        r.EventID,
		Code:           r.Code,
		ValidFrom:      r.ValidFrom.UTC(),
		ValidTo:        r.ValidTo.UTC(),
		DiscountType:   entity.DiscountType(r.DiscountType),
		DiscountAmount: r.DiscountAmount,
		CodeType:       entity.PromoCodeType(r.CodeType),
		MaxUsage:       r.MaxUsage,
	}
	if len(r.Categories) > 0 {
		p.Categories = []int64(r.Categories)
	}
	return p
}

type serviceRow struct {
	ID            int64           `db:"id"`
	EventID       string          `db:"event_id"`
	Name          string          `db:"name"`
	Type          string          `db:"type"`
	PriceCts      int64           `db:"price_cts"`
	VatType       string          `db:"vat_type"`
	VatPercentage decimal.Decimal `db:"vat_percentage"`
}

func (r serviceRow) entity() entity.AdditionalService {
	return entity.AdditionalService{
		ID:            r.ID,
		EventID:       r.EventID,
		Name:          r.Name,
		Type:          entity.AdditionalServiceType(r.Type),
		PriceCts:      r.PriceCts,
		VatType:       entity.AdditionalServiceVatType(r.VatType),
		VatPercentage: r.VatPercentage,
	}
}

const itemColumns = `id, uuid, reservation_id, service_id, event_id, COALESCE(ticket_id, 0) AS ticket_id,
	status, src_price_cts, final_price_cts, vat_cts, discount_cts, vat_status`

type itemRow struct {
	priceRow
	ID            int64  `db:"id"`
	UUID          string `db:"uuid"`
	ReservationID string `db:"reservation_id"`
	ServiceID     int64  `db:"service_id"`
	EventID       string `db:"event_id"`
	TicketID      int64  `db:"ticket_id"`
	Status        string `db:"status"`
	VatStatus     string `db:"vat_status"`
}

func (r itemRow) entity() entity.AdditionalServiceItem {
	return entity.AdditionalServiceItem{
		ID:            r.ID,
		UUID:          r.UUID,
		ReservationID: r.ReservationID,
		ServiceID:     r.ServiceID,
		EventID:       r.EventID,
		TicketID:      r.TicketID,
		Status:        entity.TicketStatus(r.Status),
		Price:         r.priceRow.entity(),
		VatStatus:     entity.VatStatus(r.VatStatus),
	}
}

const reservationColumns = `id, event_id, status, validity, created_at, first_name, last_name, email,
	invoice_requested, billing, payment_method, transaction_ref, COALESCE(promo_code_id, 0) AS promo_code_id,
	src_price_cts, final_price_cts, vat_cts, discount_cts, currency, vat_status, vat_percentage,
	invoice_number, confirmed_at, metadata`

type reservationRow struct {
	priceRow
	ID               string          `db:"id"`
	EventID          string          `db:"event_id"`
	Status           string          `db:"status"`
	Validity         time.Time       `db:"validity"`
	CreatedAt        time.Time       `db:"created_at"`
	FirstName        string          `db:"first_name"`
	LastName         string          `db:"last_name"`
	Email            string          `db:"email"`
	InvoiceRequested bool            `db:"invoice_requested"`
	Billing          types.JSONText  `db:"billing"`
	PaymentMethod    string          `db:"payment_method"`
	TransactionRef   string          `db:"transaction_ref"`
	PromoCodeID      int64           `db:"promo_code_id"`
	Currency         string          `db:"currency"`
	VatStatus        string          `db:"vat_status"`
	VatPercentage    decimal.Decimal `db:"vat_percentage"`
	InvoiceNumber    string          `db:"invoice_number"`
	ConfirmedAt      sql.NullTime    `db:"confirmed_at"`
	Metadata         types.JSONText  `db:"metadata"`
}

func newReservationRow(r entity.Reservation) (reservationRow, error) {
	billing, err := json.Marshal(r.Billing)
	if err != nil {
		return reservationRow{}, fmt.Errorf("marshalling billing details: %w", err)
	}
	metadata, err := json.Marshal(r.Metadata)
	if err != nil {
		return reservationRow{}, fmt.Errorf("marshalling metadata: %w", err)
	}

	return reservationRow{
		priceRow:         priceRow(r.Price),
		ID:               r.ID,
		EventID:          r.EventID,
		Status:           string(r.Status),
		Validity:         r.Validity,
		CreatedAt:        r.CreatedAt,
		FirstName:        r.FirstName,
		LastName:         r.LastName,
		Email:            r.Email,
		InvoiceRequested: r.InvoiceRequested,
		Billing:          billing,
		PaymentMethod:    string(r.PaymentMethod),
		TransactionRef:   r.TransactionRef,
		PromoCodeID:      r.PromoCodeID,
		Currency:         r.Currency,
		VatStatus:        string(r.VatStatus),
		VatPercentage:    r.VatPercentage,
		InvoiceNumber:    r.InvoiceNumber,
		ConfirmedAt:      sql.NullTime{Time: r.ConfirmedAt, Valid: !r.ConfirmedAt.IsZero()},
		Metadata:         metadata,
	}, nil
}

func (r reservationRow) entity() (entity.Reservation, error) {
	res := entity.Reservation{
		ID:               r.ID,
		EventID:          r.EventID,
		Status:           entity.ReservationStatus(r.Status),
		Validity:         r.Validity.UTC(),
		CreatedAt:        r.CreatedAt.UTC(),
		FirstName:        r.FirstName,
		LastName:         r.LastName,
		Email:            r.Email,
		InvoiceRequested: r.InvoiceRequested,
		PaymentMethod:    entity.PaymentMethod(r.PaymentMethod),
		TransactionRef:   r.TransactionRef,
		PromoCodeID:      r.PromoCodeID,
		Price:            r.priceRow.entity(),
		Currency:         r.Currency,
		VatStatus:        entity.VatStatus(r.VatStatus),
		VatPercentage:    r.VatPercentage,
		InvoiceNumber:    r.InvoiceNumber,
	}
	if r.ConfirmedAt.Valid {
		res.ConfirmedAt = r.ConfirmedAt.Time.UTC()
	}

	if err := r.Billing.Unmarshal(&res.Billing); err != nil {
		return entity.Reservation{}, fmt.Errorf("unmarshalling billing details: %w", err)
	}
	if err := r.Metadata.Unmarshal(&res.Metadata); err != nil {
		return entity.Reservation{}, fmt.Errorf("unmarshalling metadata: %w", err)
	}

	return res, nil
}

const documentColumns = `id, event_id, reservation_id, number, type, status, model, generated_at`

type documentRow struct {
	ID            int64          `db:"id"`
	EventID       string         `db:"event_id"`
	ReservationID string         `db:"reservation_id"`
	Number        string         `db:"number"`
	Type          string         `db:"type"`
	Status        string         `db:"status"`
	Model         types.JSONText `db:"model"`
	GeneratedAt   time.Time      `db:"generated_at"`
}

func (r documentRow) entity() entity.BillingDocument {
	return entity.BillingDocument{
		ID:            r.ID,
		EventID:       r.EventID,
		ReservationID: r.ReservationID,
		Number:        r.Number,
		Type:          entity.BillingDocumentType(r.Type),
		Status:        entity.BillingDocumentStatus(r.Status),
		Model:         json.RawMessage(r.Model),
		GeneratedAt:   r.GeneratedAt.UTC(),
	}
}

type settingRow struct {
	Scope   string `db:"scope"`
	ScopeID string `db:"scope_id"`
	Key     string `db:"key"`
	Value   string `db:"value"`
}

const waitingColumns = `id, event_id, COALESCE(category_id, 0) AS category_id, first_name, last_name, email,
	status, COALESCE(reservation_id::text, '') AS reservation_id, created_at`

type waitingRow struct {
	ID            int64     `db:"id"`
	EventID       string    `db:"event_id"`
	CategoryID    int64     `db:"category_id"`
	FirstName     string    `db:"first_name"`
	LastName      string    `db:"last_name"`
	Email         string    `db:"email"`
	Status        string    `db:"status"`
	ReservationID string    `db:"reservation_id"`
	CreatedAt     time.Time `db:"created_at"`
}

func (r waitingRow) entity() entity.WaitingListEntry {
	return entity.WaitingListEntry{
		ID:            r.ID,
		EventID:       r.EventID,
		CategoryID:    r.CategoryID,
		FirstName:     r.FirstName,
		LastName:      r.LastName,
		Email:         r.Email,
		Status:        entity.WaitingListStatus(r.Status),
		ReservationID: r.ReservationID,
		CreatedAt:     r.CreatedAt.UTC(),
	}
}
