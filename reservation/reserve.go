package reservation

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sort"
	"time"

	"boxoffice/config"
	"boxoffice/entity"
	"boxoffice/event"
	"boxoffice/monitoring"
	"boxoffice/pricing"
	"boxoffice/promocode"

	"github.com/ThreeDotsLabs/go-event-driven/common/log"
	"github.com/google/uuid"
)

type LineRequest struct {
	CategoryID  int64  `json:"category_id"`
	Quantity    int    `json:"quantity"`
	AccessToken string `json:"access_token,omitempty"`
}

type ServiceRequest struct {
	ServiceID int64 `json:"service_id"`
	Quantity  int   `json:"quantity"`

	// AmountCts is the amount chosen by the buyer for donations.
	AmountCts int64 `json:"amount_cts,omitempty"`
}

type ReserveRequest struct {
	EventID   string           `json:"event_id"`
	Lines     []LineRequest    `json:"lines"`
	Services  []ServiceRequest `json:"services,omitempty"`
	PromoCode string           `json:"promo_code,omitempty"`
	Locale    string           `json:"locale,omitempty"`

	FirstName string `json:"first_name,omitempty"`
	LastName  string `json:"last_name,omitempty"`
	Email     string `json:"email,omitempty"`

	// HoldDuration overrides the configured hold when set.
	HoldDuration time.Duration `json:"-"`
}

func (req ReserveRequest) validate() error {
	var v entity.ValidationError

	if req.EventID == "" {
		v.Add("event_id", "required")
	}
	if len(req.Lines) == 0 {
		v.Add("lines", "required")
	}
	for i, l := range req.Lines {
		if l.Quantity <= 0 {
			v.Add(fmt.Sprintf("lines[%d].quantity", i), "positive")
		}
		if l.AccessToken != "" && l.Quantity != 1 {
			v.Add(fmt.Sprintf("lines[%d].quantity", i), "one_per_access_token")
		}
	}
	for i, s := range req.Services {
		if s.Quantity <= 0 {
			v.Add(fmt.Sprintf("services[%d].quantity", i), "positive")
		}
		if s.AmountCts < 0 {
			v.Add(fmt.Sprintf("services[%d].amount_cts", i), "positive")
		}
	}
	if req.HoldDuration < 0 {
		v.Add("hold_duration", "positive")
	}

	return v.Err()
}

// Reserve claims the requested tickets atomically and returns the id of the
// new PENDING reservation. Either every line is claimed or nothing changes.
func (m *Manager) Reserve(ctx context.Context, req ReserveRequest) (string, error) {
	if err := req.validate(); err != nil {
		return "", err
	}

	lines := slices.Clone(req.Lines)
	sort.SliceStable(lines, func(i, j int) bool {
		return lines[i].CategoryID < lines[j].CategoryID
	})

	id := uuid.NewString()
	now := m.now()
	start := time.Now()

	err := m.store.InTx(ctx, func(ctx context.Context, tx Tx) error {
		return m.reserve(ctx, tx, id, req, lines, now)
	})

	monitoring.TrackClaim(req.EventID, time.Since(start))
	monitoring.TrackReservationAttempt(req.EventID, outcome(err))

	if err != nil {
		return "", err
	}

	log.FromContext(ctx).WithField("reservation_id", id).Info("Reservation created")

	return id, nil
}

func outcome(err error) string {
	switch {
	case err == nil:
		return "created"
	case errors.Is(err, entity.ErrInsufficientInventory):
		return "sold_out"
	case errors.Is(err, entity.ErrCategoryNotOnSale):
		return "not_on_sale"
	case errors.Is(err, entity.ErrInvalidAccessToken):
		return "invalid_access_token"
	case errors.Is(err, entity.ErrValidationFailed):
		return "invalid"
	default:
		return "error"
	}
}

func (m *Manager) reserve(
	ctx context.Context,
	tx Tx,
	id string,
	req ReserveRequest,
	lines []LineRequest,
	now time.Time,
) error {
	ev, err := tx.Event(ctx, req.EventID)
	if err != nil {
		return fmt.Errorf("getting event %s: %w", req.EventID, err)
	}

	cur, err := pricing.ParseCurrency(ev.Currency)
	if err != nil {
		return fmt.Errorf("event %s: %w", ev.ID, err)
	}

	promo, err := m.resolvePromoCode(ctx, tx, ev, req, now)
	if err != nil {
		return err
	}

	categories, err := tx.LockCategories(ctx, ev.ID, categoryIDs(lines))
	if err != nil {
		return fmt.Errorf("locking categories: %w", err)
	}
	byID := make(map[int64]entity.TicketCategory, len(categories))
	for _, c := range categories {
		byID[c.ID] = c
	}

	for _, l := range lines {
		c, ok := byID[l.CategoryID]
		if !ok {
			return fmt.Errorf("category %d: %w", l.CategoryID, entity.ErrNotFound)
		}
		if !c.OnSaleAt(now) {
			return fmt.Errorf("category %d: %w", c.ID, entity.ErrCategoryNotOnSale)
		}
		if c.AccessRestricted && l.AccessToken == "" && (promo == nil || !promo.Unlocks(c.ID)) {
			return fmt.Errorf("category %d is restricted: %w", c.ID, entity.ErrInvalidAccessToken)
		}
	}

	settings, err := m.settings(ctx, tx, ev, 0)
	if err != nil {
		return err
	}

	hold := req.HoldDuration
	if hold == 0 {
		hold = settings.Minutes(config.KeyReservationHoldMinutes, m.defaultHold)
	}

	r := entity.Reservation{
		ID:            id,
		EventID:       ev.ID,
		Status:        entity.ReservationPending,
		Validity:      now.Add(hold),
		CreatedAt:     now,
		FirstName:     req.FirstName,
		LastName:      req.LastName,
		Email:         req.Email,
		Currency:      cur.Code,
		VatStatus:     ev.VatStatus,
		VatPercentage: ev.VatPercentage,
		Metadata: entity.ReservationMetadata{
			Locale: req.Locale,
		},
	}
	if promo != nil {
		r.PromoCodeID = promo.PromoCode.ID
	}

	if err := tx.InsertReservation(ctx, r); err != nil {
		return fmt.Errorf("inserting reservation: %w", err)
	}

	var tickets []entity.Ticket
	for _, l := range lines {
		claimed, err := m.claim(ctx, tx, ev, cur, byID[l.CategoryID], l, id, promo, now)
		if err != nil {
			return err
		}
		tickets = append(tickets, claimed...)
	}

	items, err := m.serviceItems(ctx, tx, ev, cur, id, req.Services, promo)
	if err != nil {
		return err
	}
	if len(items) > 0 {
		if err := tx.InsertAdditionalServiceItems(ctx, items); err != nil {
			return fmt.Errorf("inserting additional service items: %w", err)
		}
	}

	r.Price = entity.SumPrices(tickets).Add(entity.SumItemPrices(items))

	err = m.runExtension(ctx, LifecycleEvent{Kind: LifecycleCreated, Event: ev, Tickets: tickets}, &r)
	if err != nil {
		return err
	}

	if err := tx.UpdateReservation(ctx, r); err != nil {
		return fmt.Errorf("storing reservation price: %w", err)
	}

	return tx.Publish(ctx, event.NewReservationCreated(r, tickets))
}

func (m *Manager) resolvePromoCode(
	ctx context.Context,
	tx Tx,
	ev entity.Event,
	req ReserveRequest,
	now time.Time,
) (*promocode.Resolution, error) {
	resolver := promocode.NewResolver(tx)

	if req.PromoCode != "" {
		res, err := resolver.ResolveForUser(ctx, req.PromoCode, ev.ID, now)
		if err != nil {
			return nil, err
		}
		return &res, nil
	}

	discounter, ok := m.extension.(DynamicDiscounter)
	if !ok {
		return nil, nil
	}

	code, err := discounter.DynamicPromoCode(ctx, ev, req)
	if err != nil {
		return nil, fmt.Errorf("getting dynamic promo code: %w", err)
	}
	if code == "" {
		return nil, nil
	}

	res, err := resolver.Resolve(ctx, code, ev.ID, now)
	if err != nil {
		return nil, err
	}

	return &res, nil
}

func (m *Manager) claim(
	ctx context.Context,
	tx Tx,
	ev entity.Event,
	cur pricing.Currency,
	c entity.TicketCategory,
	l LineRequest,
	reservationID string,
	promo *promocode.Resolution,
	now time.Time,
) ([]entity.Ticket, error) {
	var discount *pricing.Discount
	if promo != nil {
		discount = promo.DiscountFor(c.ID)
	}

	price := pricing.Calculate(pricing.Input{
		Currency:      cur,
		SrcPriceCts:   c.PriceCts,
		VatStatus:     ev.VatStatus,
		VatPercentage: ev.VatPercentage,
		Discount:      discount,
	})

	var tokenIDs []int64
	if c.AccessRestricted {
		for range l.Quantity {
			token, err := tx.TakeAccessToken(ctx, c.ID, l.AccessToken, reservationID, now)
			if err != nil {
				return nil, fmt.Errorf("taking access token of category %d: %w", c.ID, err)
			}
			tokenIDs = append(tokenIDs, token.ID)
		}
	}

	var err error
	if c.Bounded {
		err = tx.TakeCategorySeats(ctx, c.ID, l.Quantity)
	} else {
		err = tx.TakeGeneralSeats(ctx, ev.ID, c.ID, l.Quantity)
	}
	if err != nil {
		return nil, err
	}

	tickets, err := tx.ClaimTickets(ctx, TicketClaim{
		EventID:        ev.ID,
		CategoryID:     c.ID,
		Bounded:        c.Bounded,
		Quantity:       l.Quantity,
		ReservationID:  reservationID,
		Price:          price,
		Currency:       cur.Code,
		VatStatus:      ev.VatStatus,
		AccessTokenIDs: tokenIDs,
	})
	if err != nil {
		return nil, fmt.Errorf("claiming tickets of category %d: %w", c.ID, err)
	}
	if len(tickets) < l.Quantity {
		return nil, entity.InsufficientInventoryError{
			CategoryID: c.ID,
			Requested:  l.Quantity,
			Available:  len(tickets),
		}
	}

	return tickets, nil
}

func (m *Manager) serviceItems(
	ctx context.Context,
	tx Tx,
	ev entity.Event,
	cur pricing.Currency,
	reservationID string,
	reqs []ServiceRequest,
	promo *promocode.Resolution,
) ([]entity.AdditionalServiceItem, error) {
	if len(reqs) == 0 {
		return nil, nil
	}

	services, err := tx.AdditionalServices(ctx, ev.ID)
	if err != nil {
		return nil, fmt.Errorf("getting additional services: %w", err)
	}
	byID := make(map[int64]entity.AdditionalService, len(services))
	for _, s := range services {
		byID[s.ID] = s
	}

	var v entity.ValidationError
	var items []entity.AdditionalServiceItem
	for i, sr := range reqs {
		s, ok := byID[sr.ServiceID]
		if !ok {
			v.Add(fmt.Sprintf("services[%d].service_id", i), "not_found")
			continue
		}

		src := s.PriceCts
		var discount *pricing.Discount
		if s.Type == entity.ServiceDonation {
			if sr.AmountCts <= 0 {
				v.Add(fmt.Sprintf("services[%d].amount_cts", i), "required")
				continue
			}
			src = sr.AmountCts
		} else if promo != nil {
			discount = promo.ReservationDiscount()
		}

		vatStatus, vatPct := s.Vat(ev)
		price := pricing.Calculate(pricing.Input{
			Currency:      cur,
			SrcPriceCts:   src,
			VatStatus:     vatStatus,
			VatPercentage: vatPct,
			Discount:      discount,
		})

		for range sr.Quantity {
			items = append(items, entity.AdditionalServiceItem{
				UUID:          uuid.NewString(),
				ReservationID: reservationID,
				ServiceID:     s.ID,
				EventID:       ev.ID,
				Status:        entity.TicketPending,
				Price:         price,
				VatStatus:     vatStatus,
			})
		}
	}

	if err := v.Err(); err != nil {
		return nil, err
	}

	return items, nil
}

func categoryIDs(lines []LineRequest) []int64 {
	var ids []int64
	for _, l := range lines {
		if len(ids) == 0 || ids[len(ids)-1] != l.CategoryID {
			ids = append(ids, l.CategoryID)
		}
	}
	return ids
}
