package reservation

import (
	"context"
	"fmt"

	"boxoffice/entity"
)

type LifecycleKind string

const (
	LifecycleCreated        LifecycleKind = "RESERVATION_CREATED"
	LifecycleConfirmed      LifecycleKind = "RESERVATION_CONFIRMED"
	LifecycleCancelled      LifecycleKind = "RESERVATION_CANCELLED"
	LifecycleTicketAssigned LifecycleKind = "TICKET_ASSIGNED"
)

type LifecycleEvent struct {
	Kind        LifecycleKind
	Event       entity.Event
	Reservation entity.Reservation
	Tickets     []entity.Ticket
}

// Extension is called inside the transaction of a lifecycle step with copies
// of the data involved. Returned annotations are stored on the reservation
// metadata; an error vetoes the step.
type Extension interface {
	OnLifecycle(ctx context.Context, e LifecycleEvent) (map[string]string, error)
}

// DynamicDiscounter may attach a DYNAMIC promo code to a reservation that was
// requested without one.
type DynamicDiscounter interface {
	DynamicPromoCode(ctx context.Context, e entity.Event, req ReserveRequest) (string, error)
}

type NoExtension struct{}

func (NoExtension) OnLifecycle(context.Context, LifecycleEvent) (map[string]string, error) {
	return nil, nil
}

func (m *Manager) runExtension(ctx context.Context, e LifecycleEvent, r *entity.Reservation) error {
	e.Reservation = *r
	e.Tickets = append([]entity.Ticket(nil), e.Tickets...)

	annotations, err := m.extension.OnLifecycle(ctx, e)
	if err != nil {
		return fmt.Errorf("extension vetoed %s: %w", e.Kind, err)
	}

	r.Metadata.Annotate(annotations)

	return nil
}
