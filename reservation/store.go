package reservation

import (
	"context"
	"time"

	"boxoffice/entity"
)

// Store runs engine operations inside a single database transaction.
type Store interface {
	InTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
	// ExpiredReservations lists reservations in one of statuses whose validity
	// elapsed before now, oldest first.
	ExpiredReservations(ctx context.Context, statuses []entity.ReservationStatus, now time.Time, limit int) ([]string, error)
}

// TicketClaim describes the FREE tickets to move into a reservation.
// Bounded categories claim their own rows, unbounded ones draw from the event
// general pool and get the category assigned.
type TicketClaim struct {
	EventID        string
	CategoryID     int64
	Bounded        bool
	Quantity       int
	ReservationID  string
	Price          entity.PriceSnapshot
	Currency       string
	VatStatus      entity.VatStatus
	AccessTokenIDs []int64
}

// ReturnedSeats counts the seats given back to a category or to the general
// pool when CategoryID is zero.
type ReturnedSeats struct {
	CategoryID int64
	Bounded    bool
	Count      int
}

type Tx interface {
	Event(ctx context.Context, eventID string) (entity.Event, error)
	Categories(ctx context.Context, eventID string) ([]entity.TicketCategory, error)
	Settings(ctx context.Context, organizationID, eventID string, categoryID int64) ([]entity.Setting, error)

	// LockCategories locks the category rows in ascending id order.
	LockCategories(ctx context.Context, eventID string, categoryIDs []int64) ([]entity.TicketCategory, error)
	// TakeCategorySeats decrements the category counter when at least n seats
	// are left; otherwise it fails with an InsufficientInventoryError.
	TakeCategorySeats(ctx context.Context, categoryID int64, n int) error
	TakeGeneralSeats(ctx context.Context, eventID string, categoryID int64, n int) error
	ReturnSeats(ctx context.Context, eventID string, seats []ReturnedSeats) error
	ClaimTickets(ctx context.Context, claim TicketClaim) ([]entity.Ticket, error)

	PromoCode(ctx context.Context, eventID, code string) (entity.PromoCode, error)
	PromoCodeByID(ctx context.Context, id int64) (entity.PromoCode, error)
	PromoCodeUsage(ctx context.Context, promoCodeID int64) (int, error)

	// TakeAccessToken marks a FREE, unexpired token of the category as taken
	// by the reservation. An empty code takes any such token.
	TakeAccessToken(ctx context.Context, categoryID int64, code, reservationID string, now time.Time) (entity.AccessToken, error)
	ReleaseAccessTokens(ctx context.Context, tokenIDs []int64) error

	AdditionalServices(ctx context.Context, eventID string) ([]entity.AdditionalService, error)
	InsertAdditionalServiceItems(ctx context.Context, items []entity.AdditionalServiceItem) error
	AdditionalServiceItems(ctx context.Context, reservationID string) ([]entity.AdditionalServiceItem, error)
	SetAdditionalServiceItemsStatus(ctx context.Context, itemIDs []int64, status entity.TicketStatus) error

	InsertReservation(ctx context.Context, r entity.Reservation) error
	Reservation(ctx context.Context, id string) (entity.Reservation, error)
	ReservationByTransactionRef(ctx context.Context, transactionRef string) (entity.Reservation, error)
	// TransitionReservation moves the reservation to status only if its
	// current status is one of from, failing with a StateConflictError otherwise.
	TransitionReservation(ctx context.Context, id string, from []entity.ReservationStatus, to entity.ReservationStatus) error
	// UpdateReservation stores every field except the status.
	UpdateReservation(ctx context.Context, r entity.Reservation) error

	Tickets(ctx context.Context, reservationID string) ([]entity.Ticket, error)
	UpdateTicketHolders(ctx context.Context, tickets []entity.Ticket) error
	SetTicketsStatus(ctx context.Context, ticketIDs []int64, status entity.TicketStatus) error
	// ResetTickets puts the tickets back to FREE, detached from any reservation.
	// Tickets drawn from the general pool lose their category.
	ResetTickets(ctx context.Context, ticketIDs []int64) error
	InsertFreeTickets(ctx context.Context, eventID string, categoryID int64, n int) error

	NextDocumentNumber(ctx context.Context, eventID string, t entity.BillingDocumentType) (int64, error)
	BillingDocuments(ctx context.Context, reservationID string) ([]entity.BillingDocument, error)
	InsertBillingDocument(ctx context.Context, d entity.BillingDocument) (entity.BillingDocument, error)

	// Publish stores an integration event in the outbox of the transaction.
	Publish(ctx context.Context, event any) error
}
