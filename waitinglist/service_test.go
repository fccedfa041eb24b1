package waitinglist_test

import (
	"context"
	"strconv"
	"testing"
	"time"

	"boxoffice/catalog"
	"boxoffice/entity"
	"boxoffice/event"
	"boxoffice/memstore"
	"boxoffice/reservation"
	"boxoffice/waitinglist"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var now = time.Date(2026, 6, 1, 8, 0, 0, 0, time.UTC)

type gateway struct{}

func (gateway) Charge(context.Context, reservation.ChargeRequest) (reservation.ChargeResult, error) {
	return reservation.ChargeResult{Status: reservation.ChargeSucceeded, TransactionRef: "tx"}, nil
}

type fixture struct {
	store       *memstore.Store
	manager     *reservation.Manager
	waitingList waitinglist.Service
	event       entity.Event
	workshop    entity.TicketCategory
	backstage   entity.TicketCategory
}

// newFixture sets up a sold out event: both workshop seats are held by one
// reservation and the general pool is empty.
func newFixture(t *testing.T) (*fixture, string) {
	t.Helper()
	ctx := context.Background()
	clock := func() time.Time { return now }

	store := memstore.New()
	manager, err := reservation.NewManager(reservation.Deps{
		Store:   store.Reservations(),
		Gateway: gateway{},
		Now:     clock,
	})
	require.NoError(t, err)

	created, err := catalog.NewService(store.Catalog(), clock).CreateEvent(ctx, catalog.EventRequest{
		OrganizationID: "org-1",
		ShortName:      "workshop-day",
		Currency:       "EUR",
		VatPercentage:  decimal.Zero,
		VatStatus:      entity.VatNone,
		TimeZone:       "UTC",
		Begin:          now.Add(7 * 24 * time.Hour),
		End:            now.Add(8 * 24 * time.Hour),
		PaymentMethods: []entity.PaymentMethod{entity.PaymentCreditCard},
		Seats:          3,
		Categories: []catalog.CategoryRequest{
			{
				Name:       "workshop",
				Bounded:    true,
				MaxTickets: 2,
				PriceCts:   3000,
				Inception:  now.Add(-time.Hour),
				Expiration: now.Add(7 * 24 * time.Hour),
			},
			{
				Name:             "backstage",
				Bounded:          true,
				AccessRestricted: true,
				MaxTickets:       1,
				PriceCts:         0,
				Inception:        now.Add(-time.Hour),
				Expiration:       now.Add(7 * 24 * time.Hour),
			},
		},
	})
	require.NoError(t, err)

	store.AddSetting(entity.Setting{
		Scope:   entity.ScopeEvent,
		ScopeID: created.Event.ID,
		Key:     "ENABLE_WAITING_LIST",
		Value:   "true",
	})

	f := &fixture{
		store:       store,
		manager:     manager,
		waitingList: waitinglist.NewService(store.WaitingList(), manager, 30*time.Minute, clock),
		event:       created.Event,
		workshop:    created.Categories[0],
		backstage:   created.Categories[1],
	}

	holder, err := manager.Reserve(ctx, reservation.ReserveRequest{
		EventID: f.event.ID,
		Lines:   []reservation.LineRequest{{CategoryID: f.workshop.ID, Quantity: 2}},
	})
	require.NoError(t, err)

	return f, holder
}

func (f *fixture) subscribe(t *testing.T, categoryID int64, email string) entity.WaitingListEntry {
	t.Helper()

	entry, err := f.waitingList.Subscribe(context.Background(), waitinglist.SubscribeRequest{
		EventID:    f.event.ID,
		CategoryID: categoryID,
		FirstName:  "Grace",
		LastName:   "Hopper",
		Email:      email,
	})
	require.NoError(t, err)

	return entry
}

func TestSubscribe(t *testing.T) {
	f, _ := newFixture(t)

	first := f.subscribe(t, f.workshop.ID, "grace@example.com")
	second := f.subscribe(t, 0, "alan@example.com")

	assert.Equal(t, entity.WaitingListWaiting, first.Status)
	assert.Equal(t, now, first.CreatedAt)

	entries := f.store.WaitingEntries(f.event.ID)
	require.Len(t, entries, 2)
	assert.Equal(t, first.ID, entries[0].ID)
	assert.Equal(t, second.ID, entries[1].ID)
}

func TestSubscribe_rejected(t *testing.T) {
	f, holder := newFixture(t)
	ctx := context.Background()

	testCases := []struct {
		name     string
		req      waitinglist.SubscribeRequest
		expected entity.FieldError
	}{
		{
			name:     "restricted category",
			req:      waitinglist.SubscribeRequest{CategoryID: f.backstage.ID},
			expected: entity.FieldError{Field: "category_id", Code: "restricted"},
		},
		{
			name:     "invalid email",
			req:      waitinglist.SubscribeRequest{CategoryID: f.workshop.ID, Email: "grace"},
			expected: entity.FieldError{Field: "email", Code: "invalid"},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			tc.req.EventID = f.event.ID
			tc.req.FirstName = "Grace"
			tc.req.LastName = "Hopper"
			if tc.req.Email == "" {
				tc.req.Email = "grace@example.com"
			}

			_, err := f.waitingList.Subscribe(ctx, tc.req)

			var validationErr entity.ValidationError
			require.ErrorAs(t, err, &validationErr)
			assert.Equal(t, []entity.FieldError{tc.expected}, validationErr.Fields)
		})
	}

	_, err := f.waitingList.Subscribe(ctx, waitinglist.SubscribeRequest{
		EventID:    f.event.ID,
		CategoryID: 9999,
		FirstName:  "Grace",
		LastName:   "Hopper",
		Email:      "grace@example.com",
	})
	require.ErrorIs(t, err, entity.ErrNotFound)

	require.NoError(t, f.manager.Cancel(ctx, holder, ""))

	_, err = f.waitingList.Subscribe(ctx, waitinglist.SubscribeRequest{
		EventID:   f.event.ID,
		FirstName: "Grace",
		LastName:  "Hopper",
		Email:     "grace@example.com",
	})
	var validationErr entity.ValidationError
	require.ErrorAs(t, err, &validationErr)
	assert.Equal(t, []entity.FieldError{{Field: "event_id", Code: "not_sold_out"}}, validationErr.Fields)
}

func TestSubscribe_disabled(t *testing.T) {
	f, _ := newFixture(t)
	f.store.AddSetting(entity.Setting{
		Scope:   entity.ScopeCategory,
		ScopeID: "0",
		Key:     "ENABLE_WAITING_LIST",
		Value:   "false",
	})
	f.store.AddSetting(entity.Setting{
		Scope:   entity.ScopeEvent,
		ScopeID: "another-event",
		Key:     "ENABLE_WAITING_LIST",
		Value:   "false",
	})

	f.subscribe(t, 0, "grace@example.com")

	f.store.AddSetting(entity.Setting{
		Scope:   entity.ScopeCategory,
		ScopeID: strconv.FormatInt(f.workshop.ID, 10),
		Key:     "ENABLE_WAITING_LIST",
		Value:   "false",
	})

	_, err := f.waitingList.Subscribe(context.Background(), waitinglist.SubscribeRequest{
		EventID:    f.event.ID,
		CategoryID: f.workshop.ID,
		FirstName:  "Grace",
		LastName:   "Hopper",
		Email:      "grace@example.com",
	})

	var validationErr entity.ValidationError
	require.ErrorAs(t, err, &validationErr)
	assert.Equal(t, []entity.FieldError{{Field: "event_id", Code: "waiting_list_disabled"}}, validationErr.Fields)
}

func TestDistribute(t *testing.T) {
	f, holder := newFixture(t)
	ctx := context.Background()

	grace := f.subscribe(t, f.workshop.ID, "grace@example.com")
	alan := f.subscribe(t, 0, "alan@example.com")
	edsger := f.subscribe(t, f.workshop.ID, "edsger@example.com")

	n, err := f.waitingList.Distribute(ctx, f.event.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	require.NoError(t, f.manager.Cancel(ctx, holder, "seats given up"))

	n, err = f.waitingList.Distribute(ctx, f.event.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	entries := f.store.WaitingEntries(f.event.ID)
	require.Len(t, entries, 3)

	assert.Equal(t, grace.ID, entries[0].ID)
	assert.Equal(t, entity.WaitingListOffered, entries[0].Status)
	assert.Equal(t, alan.ID, entries[1].ID)
	assert.Equal(t, entity.WaitingListOffered, entries[1].Status)
	assert.Equal(t, edsger.ID, entries[2].ID)
	assert.Equal(t, entity.WaitingListWaiting, entries[2].Status)
	assert.Empty(t, entries[2].ReservationID)

	for _, entry := range entries[:2] {
		r, ok := f.store.Reservation(entry.ReservationID)
		require.True(t, ok)
		assert.Equal(t, entity.ReservationPending, r.Status)
		assert.Equal(t, now.Add(30*time.Minute), r.Validity)
		assert.Equal(t, entry.Email, r.Email)
	}

	offers := memstore.PublishedOf[event.WaitingListOfferMade](f.store)
	require.Len(t, offers, 2)
	assert.Equal(t, "grace@example.com", offers[0].Email)
	assert.Equal(t, now.Add(30*time.Minute), offers[0].ValidUntil)

	require.NoError(t, f.waitingList.CloseOffer(ctx, entries[0].ReservationID, entity.WaitingListAcquired))
	assert.Equal(t, entity.WaitingListAcquired, f.store.WaitingEntries(f.event.ID)[0].Status)
}

func TestDistribute_offer_duration_from_settings(t *testing.T) {
	f, holder := newFixture(t)
	ctx := context.Background()
	f.store.AddSetting(entity.Setting{
		Scope:   entity.ScopeOrganization,
		ScopeID: "org-1",
		Key:     "WAITING_LIST_OFFER_MINUTES",
		Value:   "90",
	})

	f.subscribe(t, f.workshop.ID, "grace@example.com")
	require.NoError(t, f.manager.Cancel(ctx, holder, ""))

	n, err := f.waitingList.Distribute(ctx, f.event.ID)
	require.NoError(t, err)
	require.Equal(t, 1, n)

	r, ok := f.store.Reservation(f.store.WaitingEntries(f.event.ID)[0].ReservationID)
	require.True(t, ok)
	assert.Equal(t, now.Add(90*time.Minute), r.Validity)
}
