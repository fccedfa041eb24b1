package catalog_test

import (
	"context"
	"testing"
	"time"

	"boxoffice/catalog"
	"boxoffice/entity"
	"boxoffice/memstore"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var now = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

func eventRequest() catalog.EventRequest {
	return catalog.EventRequest{
		OrganizationID: "org-1",
		ShortName:      "gophercon",
		Currency:       "chf",
		VatPercentage:  decimal.RequireFromString("7.7"),
		VatStatus:      entity.VatIncluded,
		TimeZone:       "Europe/Zurich",
		Begin:          now.Add(60 * 24 * time.Hour),
		End:            now.Add(61 * 24 * time.Hour),
		PaymentMethods: []entity.PaymentMethod{entity.PaymentCreditCard},
		Seats:          20,
		Categories: []catalog.CategoryRequest{
			{
				Name:       "early bird",
				Bounded:    true,
				MaxTickets: 5,
				PriceCts:   8000,
				Inception:  now,
				Expiration: now.Add(10 * 24 * time.Hour),
			},
			{
				Name:             "speakers",
				Bounded:          true,
				AccessRestricted: true,
				MaxTickets:       3,
				PriceCts:         0,
				Inception:        now,
				Expiration:       now.Add(60 * 24 * time.Hour),
			},
			{
				Name:       "regular",
				PriceCts:   12000,
				Inception:  now.Add(10 * 24 * time.Hour),
				Expiration: now.Add(60 * 24 * time.Hour),
			},
		},
	}
}

func TestCreateEvent(t *testing.T) {
	store := memstore.New()
	service := catalog.NewService(store.Catalog(), func() time.Time { return now })

	created, err := service.CreateEvent(context.Background(), eventRequest())
	require.NoError(t, err)

	assert.NotEmpty(t, created.Event.ID)
	assert.Equal(t, "CHF", created.Event.Currency)
	assert.Equal(t, 12, created.Event.GeneralAvailable)
	require.Len(t, created.Categories, 3)

	earlyBird := created.Categories[0]
	assert.Equal(t, 5, earlyBird.Available)
	assert.Equal(t, entity.CategoryActive, earlyBird.Status)

	speakers := created.Categories[1]
	regular := created.Categories[2]
	assert.Equal(t, 0, regular.Available)
	assert.False(t, regular.Bounded)

	tickets := store.Tickets(created.Event.ID)
	assert.Len(t, tickets, 20)

	perCategory := map[int64]int{}
	for _, ticket := range tickets {
		assert.Equal(t, entity.TicketFree, ticket.Status)
		assert.NotEmpty(t, ticket.UUID)
		perCategory[ticket.CategoryID]++
	}
	assert.Equal(t, map[int64]int{
		earlyBird.ID: 5,
		speakers.ID:  3,
		0:            12,
	}, perCategory)

	require.Len(t, created.AccessTokens, 3)
	codes := map[string]bool{}
	for _, token := range created.AccessTokens {
		assert.Equal(t, speakers.ID, token.CategoryID)
		assert.Equal(t, entity.AccessTokenFree, token.Status)
		assert.Equal(t, speakers.Expiration, token.ValidUntil)
		codes[token.Code] = true
	}
	assert.Len(t, codes, 3)
}

func TestCreateEvent_validation(t *testing.T) {
	service := catalog.NewService(memstore.New().Catalog(), nil)

	req := eventRequest()
	req.ShortName = " "
	req.TimeZone = "Mars/Olympus_Mons"
	req.PaymentMethods = []entity.PaymentMethod{entity.PaymentNone}
	req.Seats = 6
	req.Categories[2].AccessRestricted = true

	_, err := service.CreateEvent(context.Background(), req)
	require.ErrorIs(t, err, entity.ErrValidationFailed)

	var validationErr entity.ValidationError
	require.ErrorAs(t, err, &validationErr)
	assert.ElementsMatch(t, []entity.FieldError{
		{Field: "short_name", Code: "required"},
		{Field: "time_zone", Code: "invalid"},
		{Field: "payment_methods[0]", Code: "invalid"},
		{Field: "categories[2].access_restricted", Code: "requires_bounded"},
		{Field: "categories", Code: "exceed_seats"},
	}, validationErr.Fields)
}

func TestCreateEvent_unknown_currency(t *testing.T) {
	service := catalog.NewService(memstore.New().Catalog(), nil)

	req := eventRequest()
	req.Currency = "XYZ1"

	_, err := service.CreateEvent(context.Background(), req)
	require.Error(t, err)
}

func TestCreatePromoCode(t *testing.T) {
	ctx := context.Background()
	service := catalog.NewService(memstore.New().Catalog(), nil)

	created, err := service.CreateEvent(ctx, eventRequest())
	require.NoError(t, err)

	code, err := service.CreatePromoCode(ctx, catalog.PromoCodeRequest{
		EventID:        created.Event.ID,
		Code:           " EARLY ",
		ValidFrom:      "2026-03-01T00:00",
		ValidTo:        "2026-03-31T23:59",
		DiscountType:   entity.DiscountPercentage,
		DiscountAmount: 15,
		CodeType:       entity.PromoCodeDiscount,
	})
	require.NoError(t, err)

	assert.NotZero(t, code.ID)
	assert.Equal(t, "EARLY", code.Code)
	assert.Equal(t, time.Date(2026, 2, 28, 23, 0, 0, 0, time.UTC), code.ValidFrom)
	assert.Equal(t, time.Date(2026, 3, 31, 21, 59, 0, 0, time.UTC), code.ValidTo)

	access, err := service.CreatePromoCode(ctx, catalog.PromoCodeRequest{
		EventID:    created.Event.ID,
		Code:       "SPEAKER",
		ValidFrom:  "2026-03-01T00:00",
		ValidTo:    "2026-05-01T00:00",
		Categories: []int64{created.Categories[1].ID},
		CodeType:   entity.PromoCodeAccess,
	})
	require.NoError(t, err)
	assert.Equal(t, entity.DiscountNone, access.DiscountType)
}

func TestCreatePromoCode_validation(t *testing.T) {
	ctx := context.Background()
	service := catalog.NewService(memstore.New().Catalog(), nil)

	created, err := service.CreateEvent(ctx, eventRequest())
	require.NoError(t, err)

	testCases := []struct {
		name     string
		req      catalog.PromoCodeRequest
		expected []entity.FieldError
	}{
		{
			name: "percentage over 100",
			req: catalog.PromoCodeRequest{
				Code:           "ALL",
				ValidFrom:      "2026-03-01T00:00",
				ValidTo:        "2026-03-02T00:00",
				DiscountType:   entity.DiscountPercentage,
				DiscountAmount: 101,
				CodeType:       entity.PromoCodeDiscount,
			},
			expected: []entity.FieldError{{Field: "discount_amount", Code: "out_of_range"}},
		},
		{
			name: "window upside down",
			req: catalog.PromoCodeRequest{
				Code:           "BACK",
				ValidFrom:      "2026-03-02T00:00",
				ValidTo:        "2026-03-01T00:00",
				DiscountType:   entity.DiscountFixedAmount,
				DiscountAmount: 500,
				CodeType:       entity.PromoCodeDiscount,
			},
			expected: []entity.FieldError{{Field: "valid_to", Code: "before_valid_from"}},
		},
		{
			name: "access code for a public category",
			req: catalog.PromoCodeRequest{
				Code:       "OPEN",
				ValidFrom:  "2026-03-01T00:00",
				ValidTo:    "2026-03-02T00:00",
				Categories: []int64{created.Categories[0].ID, 9999},
				CodeType:   entity.PromoCodeAccess,
			},
			expected: []entity.FieldError{
				{Field: "categories[0]", Code: "not_restricted"},
				{Field: "categories[1]", Code: "not_found"},
			},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			tc.req.EventID = created.Event.ID

			_, err := service.CreatePromoCode(ctx, tc.req)

			var validationErr entity.ValidationError
			require.ErrorAs(t, err, &validationErr)
			assert.ElementsMatch(t, tc.expected, validationErr.Fields)
		})
	}
}

func TestCreateAdditionalService(t *testing.T) {
	ctx := context.Background()
	service := catalog.NewService(memstore.New().Catalog(), nil)

	created, err := service.CreateEvent(ctx, eventRequest())
	require.NoError(t, err)

	s, err := service.CreateAdditionalService(ctx, catalog.AdditionalServiceRequest{
		EventID:       created.Event.ID,
		Name:          "Workshop",
		Type:          entity.ServiceSupplement,
		PriceCts:      25000,
		VatType:       entity.ServiceVatCustomExcluded,
		VatPercentage: decimal.NewFromInt(8),
	})
	require.NoError(t, err)
	assert.NotZero(t, s.ID)

	_, err = service.CreateAdditionalService(ctx, catalog.AdditionalServiceRequest{
		EventID: created.Event.ID,
		Name:    "Workshop",
		Type:    entity.ServiceSupplement,
		VatType: entity.ServiceVatCustomIncluded,
	})
	var validationErr entity.ValidationError
	require.ErrorAs(t, err, &validationErr)
	assert.ElementsMatch(t, []entity.FieldError{
		{Field: "price_cts", Code: "positive"},
		{Field: "vat_percentage", Code: "out_of_range"},
	}, validationErr.Fields)

	_, err = service.CreateAdditionalService(ctx, catalog.AdditionalServiceRequest{
		EventID: "missing",
		Name:    "Donation",
		Type:    entity.ServiceDonation,
		VatType: entity.ServiceVatNone,
	})
	require.ErrorIs(t, err, entity.ErrNotFound)
}

func TestUpdateCategoryPrice(t *testing.T) {
	ctx := context.Background()
	store := memstore.New()
	service := catalog.NewService(store.Catalog(), nil)

	created, err := service.CreateEvent(ctx, eventRequest())
	require.NoError(t, err)

	earlyBird := created.Categories[0]
	require.NoError(t, service.UpdateCategoryPrice(ctx, created.Event.ID, earlyBird.ID, 9000))
	assert.Equal(t, int64(9000), store.Category(earlyBird.ID).PriceCts)

	err = service.UpdateCategoryPrice(ctx, created.Event.ID, 9999, 9000)
	require.ErrorIs(t, err, entity.ErrNotFound)

	err = service.UpdateCategoryPrice(ctx, created.Event.ID, earlyBird.ID, -1)
	require.ErrorIs(t, err, entity.ErrValidationFailed)
}

func TestAvailability(t *testing.T) {
	ctx := context.Background()
	service := catalog.NewService(memstore.New().Catalog(), func() time.Time { return now })

	created, err := service.CreateEvent(ctx, eventRequest())
	require.NoError(t, err)

	a, err := service.Availability(ctx, created.Event.ID)
	require.NoError(t, err)

	assert.Equal(t, entity.Availability{
		EventID: created.Event.ID,
		General: 12,
		Categories: []entity.CategoryAvailability{
			{CategoryID: created.Categories[0].ID, Name: "early bird", Bounded: true, Available: 5, OnSale: true},
			{CategoryID: created.Categories[2].ID, Name: "regular", Available: 12, OnSale: false},
		},
	}, a)

	_, err = service.Availability(ctx, "missing")
	require.ErrorIs(t, err, entity.ErrNotFound)
}
