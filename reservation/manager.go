package reservation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"boxoffice/billing"
	"boxoffice/config"
	"boxoffice/entity"
	"boxoffice/monitoring"
	"boxoffice/pricing"
	"boxoffice/summary"
)

const defaultHold = 25 * time.Minute

type Deps struct {
	Store     Store
	Gateway   PaymentGateway
	Generator billing.Generator
	Extension Extension

	// DefaultHold applies when neither the request nor the scoped settings
	// define a hold duration.
	DefaultHold time.Duration
	Now         func() time.Time
}

// Manager drives reservations from the inventory claim to completion,
// cancellation or expiry. Every operation runs in one store transaction and
// checks the current status before applying a transition.
type Manager struct {
	store       Store
	gateway     PaymentGateway
	generator   billing.Generator
	extension   Extension
	defaultHold time.Duration
	now         func() time.Time
}

func NewManager(deps Deps) (*Manager, error) {
	if deps.Store == nil {
		return nil, errors.New("missing store")
	}
	if deps.Gateway == nil {
		return nil, errors.New("missing payment gateway")
	}

	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.Generator == nil {
		deps.Generator = billing.NewJSONGenerator(deps.Now)
	}
	if deps.Extension == nil {
		deps.Extension = NoExtension{}
	}
	if deps.DefaultHold <= 0 {
		deps.DefaultHold = defaultHold
	}

	return &Manager{
		store:       deps.Store,
		gateway:     deps.Gateway,
		generator:   deps.Generator,
		extension:   deps.Extension,
		defaultHold: deps.DefaultHold,
		now:         deps.Now,
	}, nil
}

func (m *Manager) Reservation(ctx context.Context, id string) (entity.Reservation, error) {
	var r entity.Reservation
	err := m.store.InTx(ctx, func(ctx context.Context, tx Tx) error {
		var err error
		r, err = tx.Reservation(ctx, id)
		return err
	})
	if err != nil {
		return entity.Reservation{}, fmt.Errorf("getting reservation %s: %w", id, err)
	}

	return r, nil
}

// Summary presents the frozen price of a reservation.
func (m *Manager) Summary(ctx context.Context, id string) (summary.OrderSummary, error) {
	var s summary.OrderSummary
	err := m.store.InTx(ctx, func(ctx context.Context, tx Tx) error {
		r, err := tx.Reservation(ctx, id)
		if err != nil {
			return fmt.Errorf("getting reservation: %w", err)
		}

		s, err = m.summary(ctx, tx, r)
		return err
	})
	if err != nil {
		return summary.OrderSummary{}, fmt.Errorf("building summary of reservation %s: %w", id, err)
	}

	return s, nil
}

func (m *Manager) summary(ctx context.Context, tx Tx, r entity.Reservation) (summary.OrderSummary, error) {
	tickets, err := tx.Tickets(ctx, r.ID)
	if err != nil {
		return summary.OrderSummary{}, fmt.Errorf("getting tickets: %w", err)
	}

	items, err := tx.AdditionalServiceItems(ctx, r.ID)
	if err != nil {
		return summary.OrderSummary{}, fmt.Errorf("getting additional service items: %w", err)
	}

	return m.summaryOf(ctx, tx, r, tickets, items, r.Price)
}

func (m *Manager) summaryOf(
	ctx context.Context,
	tx Tx,
	r entity.Reservation,
	tickets []entity.Ticket,
	items []entity.AdditionalServiceItem,
	frozen entity.PriceSnapshot,
) (summary.OrderSummary, error) {
	categories, err := tx.Categories(ctx, r.EventID)
	if err != nil {
		return summary.OrderSummary{}, fmt.Errorf("getting categories: %w", err)
	}

	var services []entity.AdditionalService
	if len(items) > 0 {
		services, err = tx.AdditionalServices(ctx, r.EventID)
		if err != nil {
			return summary.OrderSummary{}, fmt.Errorf("getting additional services: %w", err)
		}
	}

	var promo *entity.PromoCode
	if r.PromoCodeID != 0 {
		p, err := tx.PromoCodeByID(ctx, r.PromoCodeID)
		if err != nil {
			return summary.OrderSummary{}, fmt.Errorf("getting promo code: %w", err)
		}
		promo = &p
	}

	return summary.Build(summary.Input{
		Reservation: r,
		Tickets:     tickets,
		Categories:  categories,
		Items:       items,
		Services:    services,
		PromoCode:   promo,
		Frozen:      frozen,
	})
}

func (m *Manager) settings(ctx context.Context, tx Tx, e entity.Event, categoryID int64) (config.Scoped, error) {
	settings, err := tx.Settings(ctx, e.OrganizationID, e.ID, categoryID)
	if err != nil {
		return config.Scoped{}, fmt.Errorf("getting settings: %w", err)
	}

	return config.NewScoped(settings), nil
}

func (m *Manager) transition(
	ctx context.Context,
	tx Tx,
	r *entity.Reservation,
	from []entity.ReservationStatus,
	to entity.ReservationStatus,
	operation string,
) error {
	if err := tx.TransitionReservation(ctx, r.ID, from, to); err != nil {
		if errors.Is(err, entity.ErrStateConflict) {
			monitoring.TrackStateConflict(operation)
		}
		return err
	}

	monitoring.TrackTransition(string(to))
	r.Status = to

	return nil
}

func money(r entity.Reservation, cts int64) (entity.Money, error) {
	c, err := pricing.ParseCurrency(r.Currency)
	if err != nil {
		return entity.Money{}, err
	}

	return c.Money(cts), nil
}

func ticketIDs(tickets []entity.Ticket, statuses ...entity.TicketStatus) []int64 {
	var ids []int64
	for _, t := range tickets {
		if len(statuses) == 0 || hasStatus(t.Status, statuses) {
			ids = append(ids, t.ID)
		}
	}
	return ids
}

func itemIDs(items []entity.AdditionalServiceItem, statuses ...entity.TicketStatus) []int64 {
	var ids []int64
	for _, i := range items {
		if len(statuses) == 0 || hasStatus(i.Status, statuses) {
			ids = append(ids, i.ID)
		}
	}
	return ids
}

func hasStatus(s entity.TicketStatus, statuses []entity.TicketStatus) bool {
	for _, candidate := range statuses {
		if s == candidate {
			return true
		}
	}
	return false
}
