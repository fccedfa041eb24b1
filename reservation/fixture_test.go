package reservation_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"boxoffice/catalog"
	"boxoffice/entity"
	"boxoffice/memstore"
	"boxoffice/reservation"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

var start = time.Date(2026, 5, 4, 10, 0, 0, 0, time.UTC)

type clock struct {
	lock sync.Mutex
	now  time.Time
}

func (c *clock) Now() time.Time {
	c.lock.Lock()
	defer c.lock.Unlock()
	return c.now
}

func (c *clock) Set(t time.Time) {
	c.lock.Lock()
	c.now = t
	c.lock.Unlock()
}

type MockGateway struct {
	lock    sync.Mutex
	Result  reservation.ChargeResult
	Err     error
	Charges []reservation.ChargeRequest
}

func (m *MockGateway) Charge(_ context.Context, req reservation.ChargeRequest) (reservation.ChargeResult, error) {
	m.lock.Lock()
	defer m.lock.Unlock()

	m.Charges = append(m.Charges, req)
	return m.Result, m.Err
}

type MockExtension struct {
	lock  sync.Mutex
	Veto  map[reservation.LifecycleKind]error
	Calls []reservation.LifecycleEvent
}

func (m *MockExtension) OnLifecycle(_ context.Context, e reservation.LifecycleEvent) (map[string]string, error) {
	m.lock.Lock()
	defer m.lock.Unlock()

	m.Calls = append(m.Calls, e)
	if err := m.Veto[e.Kind]; err != nil {
		return nil, err
	}
	return map[string]string{"last_step": string(e.Kind)}, nil
}

type fixture struct {
	store     *memstore.Store
	manager   *reservation.Manager
	catalog   catalog.Service
	clock     *clock
	gateway   *MockGateway
	extension *MockExtension

	event    entity.Event
	standard entity.TicketCategory
	general  entity.TicketCategory
	vip      entity.TicketCategory
	late     entity.TicketCategory
	tokens   []entity.AccessToken
}

// newFixture sets up an event of 10 seats with 10% VAT added on top:
// 5 standard seats at 10.00, 2 access restricted vip seats at 50.00 and a
// general pool of 3 seats shared by the general and late categories.
func newFixture(t *testing.T) *fixture {
	t.Helper()

	ctx := context.Background()
	c := &clock{now: start}
	store := memstore.New()
	gateway := &MockGateway{
		Result: reservation.ChargeResult{Status: reservation.ChargeSucceeded, TransactionRef: "tx-1"},
	}
	extension := &MockExtension{}

	manager, err := reservation.NewManager(reservation.Deps{
		Store:     store.Reservations(),
		Gateway:   gateway,
		Extension: extension,
		Now:       c.Now,
	})
	require.NoError(t, err)

	catalogService := catalog.NewService(store.Catalog(), c.Now)

	created, err := catalogService.CreateEvent(ctx, catalog.EventRequest{
		OrganizationID: "org-1",
		ShortName:      "gophercon",
		Currency:       "EUR",
		VatPercentage:  decimal.NewFromInt(10),
		VatStatus:      entity.VatNotIncluded,
		TimeZone:       "Europe/Zurich",
		Begin:          start.Add(30 * 24 * time.Hour),
		End:            start.Add(31 * 24 * time.Hour),
		PaymentMethods: []entity.PaymentMethod{entity.PaymentCreditCard, entity.PaymentBankTransfer},
		Seats:          10,
		Categories: []catalog.CategoryRequest{
			{
				Name:       "standard",
				MaxTickets: 5,
				Bounded:    true,
				PriceCts:   1000,
				Inception:  start.Add(-time.Hour),
				Expiration: start.Add(20 * 24 * time.Hour),
			},
			{
				Name:       "general",
				PriceCts:   2000,
				Inception:  start.Add(-time.Hour),
				Expiration: start.Add(20 * 24 * time.Hour),
			},
			{
				Name:             "vip",
				MaxTickets:       2,
				Bounded:          true,
				AccessRestricted: true,
				PriceCts:         5000,
				Inception:        start.Add(-time.Hour),
				Expiration:       start.Add(20 * 24 * time.Hour),
			},
			{
				Name:       "late",
				PriceCts:   2500,
				Inception:  start.Add(24 * time.Hour),
				Expiration: start.Add(20 * 24 * time.Hour),
			},
		},
	})
	require.NoError(t, err)
	require.Len(t, created.Categories, 4)

	return &fixture{
		store:     store,
		manager:   manager,
		catalog:   catalogService,
		clock:     c,
		gateway:   gateway,
		extension: extension,
		event:     created.Event,
		standard:  created.Categories[0],
		general:   created.Categories[1],
		vip:       created.Categories[2],
		late:      created.Categories[3],
		tokens:    created.AccessTokens,
	}
}

func (f *fixture) reserve(t *testing.T, lines ...reservation.LineRequest) string {
	t.Helper()

	id, err := f.manager.Reserve(context.Background(), reservation.ReserveRequest{
		EventID: f.event.ID,
		Lines:   lines,
	})
	require.NoError(t, err)

	return id
}

func (f *fixture) checkout(t *testing.T, id string, method entity.PaymentMethod) {
	t.Helper()

	r, ok := f.store.Reservation(id)
	require.True(t, ok)

	attendees := map[string]reservation.Attendee{}
	for _, ticket := range f.ticketsOf(r.ID) {
		attendees[ticket.UUID] = reservation.Attendee{FirstName: "Ada", LastName: "Lovelace"}
	}

	err := f.manager.Checkout(context.Background(), id, reservation.CheckoutForm{
		FirstName:     "Ada",
		LastName:      "Lovelace",
		Email:         "ada@example.com",
		PaymentMethod: method,
		Attendees:     attendees,
	})
	require.NoError(t, err)
}

// complete reserves the lines and pays them by credit card.
func (f *fixture) complete(t *testing.T, lines ...reservation.LineRequest) string {
	t.Helper()

	id := f.reserve(t, lines...)
	f.checkout(t, id, entity.PaymentCreditCard)

	out, err := f.manager.Pay(context.Background(), id)
	require.NoError(t, err)
	require.Equal(t, entity.ReservationComplete, out.Status)

	return id
}

func (f *fixture) status(t *testing.T, id string) entity.ReservationStatus {
	t.Helper()

	r, ok := f.store.Reservation(id)
	require.True(t, ok)
	return r.Status
}

func (f *fixture) ticketsOf(reservationID string) []entity.Ticket {
	var tickets []entity.Ticket
	for _, t := range f.store.Tickets(f.event.ID) {
		if t.ReservationID == reservationID {
			tickets = append(tickets, t)
		}
	}
	return tickets
}

func (f *fixture) countTickets(categoryID int64, status entity.TicketStatus) int {
	n := 0
	for _, t := range f.store.Tickets(f.event.ID) {
		if t.CategoryID == categoryID && t.Status == status {
			n++
		}
	}
	return n
}

func (f *fixture) generalAvailable() int {
	return f.store.Event(f.event.ID).GeneralAvailable
}

func (f *fixture) available(categoryID int64) int {
	return f.store.Category(categoryID).Available
}

func line(categoryID int64, quantity int) reservation.LineRequest {
	return reservation.LineRequest{CategoryID: categoryID, Quantity: quantity}
}

var errVetoed = errors.New("vetoed")
