package catalog

import (
	"context"
	"fmt"
	"strings"
	"time"

	"boxoffice/entity"
	"boxoffice/pricing"

	"github.com/ThreeDotsLabs/go-event-driven/common/log"
	"github.com/google/uuid"
	"github.com/lithammer/shortuuid/v3"
	"github.com/shopspring/decimal"
)

// LocalTimeLayout is the layout of wall clock times expressed in the event
// time zone.
const LocalTimeLayout = "2006-01-02T15:04"

var hundred = decimal.NewFromInt(100)

type Service struct {
	store Store
	now   func() time.Time
}

func NewService(store Store, now func() time.Time) Service {
	if now == nil {
		now = time.Now
	}

	return Service{
		store: store,
		now:   now,
	}
}

type CategoryRequest struct {
	Name             string    `json:"name"`
	MaxTickets       int       `json:"max_tickets"`
	Bounded          bool      `json:"bounded"`
	AccessRestricted bool      `json:"access_restricted"`
	PriceCts         int64     `json:"price_cts"`
	Inception        time.Time `json:"inception"`
	Expiration       time.Time `json:"expiration"`
}

type EventRequest struct {
	OrganizationID  string                 `json:"organization_id"`
	ShortName       string                 `json:"short_name"`
	Currency        string                 `json:"currency"`
	VatPercentage   decimal.Decimal        `json:"vat_percentage"`
	VatStatus       entity.VatStatus       `json:"vat_status"`
	TimeZone        string                 `json:"time_zone"`
	Begin           time.Time              `json:"begin"`
	End             time.Time              `json:"end"`
	PaymentMethods  []entity.PaymentMethod `json:"payment_methods"`
	RegularPriceCts int64                  `json:"regular_price_cts"`
	Seats           int                    `json:"seats"`
	Categories      []CategoryRequest      `json:"categories"`
}

type CreatedEvent struct {
	Event        entity.Event            `json:"event"`
	Categories   []entity.TicketCategory `json:"categories"`
	AccessTokens []entity.AccessToken    `json:"access_tokens,omitempty"`
}

// CreateEvent creates the event, its categories and the whole ticket
// inventory: one FREE ticket per seat, bounded categories first and the rest
// in the general pool.
func (s Service) CreateEvent(ctx context.Context, req EventRequest) (CreatedEvent, error) {
	cur, err := pricing.ParseCurrency(req.Currency)
	if err != nil {
		return CreatedEvent{}, err
	}

	if err := validateEvent(req); err != nil {
		return CreatedEvent{}, err
	}

	bounded := 0
	for _, c := range req.Categories {
		if c.Bounded {
			bounded += c.MaxTickets
		}
	}

	ev := entity.Event{
		ID:               uuid.NewString(),
		OrganizationID:   req.OrganizationID,
		ShortName:        req.ShortName,
		Currency:         cur.Code,
		VatPercentage:    req.VatPercentage,
		VatStatus:        req.VatStatus,
		TimeZone:         req.TimeZone,
		Begin:            req.Begin.UTC(),
		End:              req.End.UTC(),
		PaymentMethods:   req.PaymentMethods,
		RegularPriceCts:  req.RegularPriceCts,
		Seats:            req.Seats,
		GeneralAvailable: req.Seats - bounded,
	}

	created := CreatedEvent{Event: ev}
	err = s.store.InTx(ctx, func(ctx context.Context, tx Tx) error {
		if err := tx.InsertEvent(ctx, ev); err != nil {
			return fmt.Errorf("inserting event: %w", err)
		}

		for _, cr := range req.Categories {
			c, tokens, err := s.createCategory(ctx, tx, ev, cr)
			if err != nil {
				return err
			}
			created.Categories = append(created.Categories, c)
			created.AccessTokens = append(created.AccessTokens, tokens...)
		}

		if ev.GeneralAvailable > 0 {
			if err := tx.InsertFreeTickets(ctx, ev.ID, 0, ev.GeneralAvailable); err != nil {
				return fmt.Errorf("inserting general tickets: %w", err)
			}
		}

		return nil
	})
	if err != nil {
		return CreatedEvent{}, err
	}

	log.FromContext(ctx).
		WithField("event_id", ev.ID).
		WithField("seats", ev.Seats).
		Info("Event created")

	return created, nil
}

func (s Service) createCategory(
	ctx context.Context,
	tx Tx,
	ev entity.Event,
	cr CategoryRequest,
) (entity.TicketCategory, []entity.AccessToken, error) {
	c := entity.TicketCategory{
		EventID:          ev.ID,
		Name:             cr.Name,
		MaxTickets:       cr.MaxTickets,
		Inception:        cr.Inception.UTC(),
		Expiration:       cr.Expiration.UTC(),
		Bounded:          cr.Bounded,
		AccessRestricted: cr.AccessRestricted,
		PriceCts:         cr.PriceCts,
		Status:           entity.CategoryActive,
	}
	if c.Bounded {
		c.Available = c.MaxTickets
	}

	c, err := tx.InsertCategory(ctx, c)
	if err != nil {
		return entity.TicketCategory{}, nil, fmt.Errorf("inserting category %s: %w", cr.Name, err)
	}

	if !c.Bounded {
		return c, nil, nil
	}

	if err := tx.InsertFreeTickets(ctx, ev.ID, c.ID, c.MaxTickets); err != nil {
		return entity.TicketCategory{}, nil, fmt.Errorf("inserting tickets of category %s: %w", cr.Name, err)
	}

	if !c.AccessRestricted {
		return c, nil, nil
	}

	tokens := make([]entity.AccessToken, c.MaxTickets)
	for i := range tokens {
		tokens[i] = entity.AccessToken{
			Code:       strings.ToUpper(shortuuid.New()),
			EventID:    ev.ID,
			CategoryID: c.ID,
			Status:     entity.AccessTokenFree,
			ValidUntil: c.Expiration,
		}
	}

	tokens, err = tx.InsertAccessTokens(ctx, tokens)
	if err != nil {
		return entity.TicketCategory{}, nil, fmt.Errorf("inserting access tokens of category %s: %w", cr.Name, err)
	}

	return c, tokens, nil
}

func validateEvent(req EventRequest) error {
	var v entity.ValidationError

	if strings.TrimSpace(req.ShortName) == "" {
		v.Add("short_name", "required")
	}
	if req.Seats <= 0 {
		v.Add("seats", "positive")
	}
	if !req.VatStatus.Valid() {
		v.Add("vat_status", "invalid")
	}
	if req.VatPercentage.IsNegative() || req.VatPercentage.GreaterThan(hundred) {
		v.Add("vat_percentage", "out_of_range")
	}
	if _, err := time.LoadLocation(req.TimeZone); err != nil || req.TimeZone == "" {
		v.Add("time_zone", "invalid")
	}
	if !req.End.After(req.Begin) {
		v.Add("end", "before_begin")
	}
	if req.RegularPriceCts < 0 {
		v.Add("regular_price_cts", "negative")
	}
	if len(req.PaymentMethods) == 0 {
		v.Add("payment_methods", "required")
	}
	for i, m := range req.PaymentMethods {
		if !m.Valid() || m == entity.PaymentNone {
			v.Add(fmt.Sprintf("payment_methods[%d]", i), "invalid")
		}
	}

	if len(req.Categories) == 0 {
		v.Add("categories", "required")
	}

	bounded := 0
	for i, c := range req.Categories {
		field := fmt.Sprintf("categories[%d]", i)
		if strings.TrimSpace(c.Name) == "" {
			v.Add(field+".name", "required")
		}
		if c.PriceCts < 0 {
			v.Add(field+".price_cts", "negative")
		}
		if !c.Expiration.After(c.Inception) {
			v.Add(field+".expiration", "before_inception")
		}
		if c.Bounded && c.MaxTickets <= 0 {
			v.Add(field+".max_tickets", "positive")
		}
		if c.AccessRestricted && !c.Bounded {
			v.Add(field+".access_restricted", "requires_bounded")
		}
		if c.Bounded {
			bounded += c.MaxTickets
		}
	}
	if req.Seats > 0 && bounded > req.Seats {
		v.Add("categories", "exceed_seats")
	}

	return v.Err()
}

// UpdateCategoryPrice changes the price of tickets claimed from now on.
// Claimed tickets keep their frozen price.
func (s Service) UpdateCategoryPrice(ctx context.Context, eventID string, categoryID int64, priceCts int64) error {
	if priceCts < 0 {
		var v entity.ValidationError
		v.Add("price_cts", "negative")
		return v.Err()
	}

	return s.store.InTx(ctx, func(ctx context.Context, tx Tx) error {
		if _, err := category(ctx, tx, eventID, categoryID); err != nil {
			return err
		}

		return tx.UpdateCategoryPrice(ctx, categoryID, priceCts)
	})
}

type PromoCodeRequest struct {
	EventID string `json:"event_id"`
	Code    string `json:"code"`

	// ValidFrom and ValidTo are wall clock times in the event time zone,
	// formatted with LocalTimeLayout.
	ValidFrom      string               `json:"valid_from"`
	ValidTo        string               `json:"valid_to"`
	DiscountType   entity.DiscountType  `json:"discount_type"`
	DiscountAmount int64                `json:"discount_amount"`
	Categories     []int64              `json:"categories,omitempty"`
	CodeType       entity.PromoCodeType `json:"code_type"`
	MaxUsage       int                  `json:"max_usage,omitempty"`
}

func (s Service) CreatePromoCode(ctx context.Context, req PromoCodeRequest) (entity.PromoCode, error) {
	var created entity.PromoCode
	err := s.store.InTx(ctx, func(ctx context.Context, tx Tx) error {
		ev, err := tx.Event(ctx, req.EventID)
		if err != nil {
			return fmt.Errorf("getting event %s: %w", req.EventID, err)
		}

		loc, err := ev.Location()
		if err != nil {
			return err
		}

		categories, err := tx.Categories(ctx, ev.ID)
		if err != nil {
			return fmt.Errorf("getting categories: %w", err)
		}

		p, err := newPromoCode(req, loc, categories)
		if err != nil {
			return err
		}

		created, err = tx.InsertPromoCode(ctx, p)
		if err != nil {
			return fmt.Errorf("inserting promo code: %w", err)
		}

		return nil
	})
	if err != nil {
		return entity.PromoCode{}, err
	}

	return created, nil
}

func newPromoCode(req PromoCodeRequest, loc *time.Location, categories []entity.TicketCategory) (entity.PromoCode, error) {
	var v entity.ValidationError

	code := strings.TrimSpace(req.Code)
	if code == "" {
		v.Add("code", "required")
	}

	from, err := time.ParseInLocation(LocalTimeLayout, req.ValidFrom, loc)
	if err != nil {
		v.Add("valid_from", "invalid")
	}
	to, err := time.ParseInLocation(LocalTimeLayout, req.ValidTo, loc)
	if err != nil {
		v.Add("valid_to", "invalid")
	} else if !to.After(from) {
		v.Add("valid_to", "before_valid_from")
	}

	if req.MaxUsage < 0 {
		v.Add("max_usage", "negative")
	}

	switch req.CodeType {
	case entity.PromoCodeDiscount, entity.PromoCodeDynamic:
		switch req.DiscountType {
		case entity.DiscountPercentage:
			if req.DiscountAmount <= 0 || req.DiscountAmount > 100 {
				v.Add("discount_amount", "out_of_range")
			}
		case entity.DiscountFixedAmount:
			if req.DiscountAmount <= 0 {
				v.Add("discount_amount", "positive")
			}
		default:
			v.Add("discount_type", "invalid")
		}
	case entity.PromoCodeAccess:
		if len(req.Categories) == 0 {
			v.Add("categories", "required")
		}
	default:
		v.Add("code_type", "invalid")
	}

	byID := make(map[int64]entity.TicketCategory, len(categories))
	for _, c := range categories {
		byID[c.ID] = c
	}
	for i, id := range req.Categories {
		c, ok := byID[id]
		switch {
		case !ok:
			v.Add(fmt.Sprintf("categories[%d]", i), "not_found")
		case req.CodeType == entity.PromoCodeAccess && !c.AccessRestricted:
			v.Add(fmt.Sprintf("categories[%d]", i), "not_restricted")
		}
	}

	if err := v.Err(); err != nil {
		return entity.PromoCode{}, err
	}

	discountType := req.DiscountType
	if req.CodeType == entity.PromoCodeAccess && discountType == "" {
		discountType = entity.DiscountNone
	}

	return entity.PromoCode{
		EventID:        req.EventID,
		Code:           code,
		ValidFrom:      from.UTC(),
		ValidTo:        to.UTC(),
		DiscountType:   discountType,
		DiscountAmount: req.DiscountAmount,
		Categories:     req.Categories,
		CodeType:       req.CodeType,
		MaxUsage:       req.MaxUsage,
	}, nil
}

type AdditionalServiceRequest struct {
	EventID       string                          `json:"event_id"`
	Name          string                          `json:"name"`
	Type          entity.AdditionalServiceType    `json:"type"`
	PriceCts      int64                           `json:"price_cts"`
	VatType       entity.AdditionalServiceVatType `json:"vat_type"`
	VatPercentage decimal.Decimal                 `json:"vat_percentage"`
}

func (s Service) CreateAdditionalService(ctx context.Context, req AdditionalServiceRequest) (entity.AdditionalService, error) {
	var v entity.ValidationError

	if strings.TrimSpace(req.Name) == "" {
		v.Add("name", "required")
	}
	switch req.Type {
	case entity.ServiceSupplement:
		if req.PriceCts <= 0 {
			v.Add("price_cts", "positive")
		}
	case entity.ServiceDonation:
	default:
		v.Add("type", "invalid")
	}
	switch req.VatType {
	case entity.ServiceVatInherited, entity.ServiceVatNone:
	case entity.ServiceVatCustomIncluded, entity.ServiceVatCustomExcluded:
		if !req.VatPercentage.IsPositive() || req.VatPercentage.GreaterThan(hundred) {
			v.Add("vat_percentage", "out_of_range")
		}
	default:
		v.Add("vat_type", "invalid")
	}
	if err := v.Err(); err != nil {
		return entity.AdditionalService{}, err
	}

	var created entity.AdditionalService
	err := s.store.InTx(ctx, func(ctx context.Context, tx Tx) error {
		if _, err := tx.Event(ctx, req.EventID); err != nil {
			return fmt.Errorf("getting event %s: %w", req.EventID, err)
		}

		var err error
		created, err = tx.InsertAdditionalService(ctx, entity.AdditionalService{
			EventID:       req.EventID,
			Name:          req.Name,
			Type:          req.Type,
			PriceCts:      req.PriceCts,
			VatType:       req.VatType,
			VatPercentage: req.VatPercentage,
		})
		return err
	})
	if err != nil {
		return entity.AdditionalService{}, err
	}

	return created, nil
}

// Availability reads the current counters of an event from the store.
func (s Service) Availability(ctx context.Context, eventID string) (entity.Availability, error) {
	var a entity.Availability
	err := s.store.InTx(ctx, func(ctx context.Context, tx Tx) error {
		ev, err := tx.Event(ctx, eventID)
		if err != nil {
			return fmt.Errorf("getting event %s: %w", eventID, err)
		}

		categories, err := tx.Categories(ctx, ev.ID)
		if err != nil {
			return fmt.Errorf("getting categories: %w", err)
		}

		a = entity.NewAvailability(ev, categories, s.now())
		return nil
	})
	if err != nil {
		return entity.Availability{}, err
	}

	return a, nil
}

func category(ctx context.Context, tx Tx, eventID string, categoryID int64) (entity.TicketCategory, error) {
	categories, err := tx.Categories(ctx, eventID)
	if err != nil {
		return entity.TicketCategory{}, fmt.Errorf("getting categories: %w", err)
	}

	for _, c := range categories {
		if c.ID == categoryID {
			return c, nil
		}
	}

	return entity.TicketCategory{}, fmt.Errorf("category %d: %w", categoryID, entity.ErrNotFound)
}
