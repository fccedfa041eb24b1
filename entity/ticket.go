package entity

type TicketStatus string

const (
	TicketFree        TicketStatus = "FREE"
	TicketPending     TicketStatus = "PENDING"
	TicketToBePaid    TicketStatus = "TO_BE_PAID"
	TicketAcquired    TicketStatus = "ACQUIRED"
	TicketCancelled   TicketStatus = "CANCELLED"
	TicketCheckedIn   TicketStatus = "CHECKED_IN"
	TicketExpired     TicketStatus = "EXPIRED"
	TicketInvalidated TicketStatus = "INVALIDATED"
	TicketReleased    TicketStatus = "RELEASED"
	TicketPreReserved TicketStatus = "PRE_RESERVED"
)

// Sold reports whether the ticket counts against the capacity of its category.
func (s TicketStatus) Sold() bool {
	switch s {
	case TicketFree, TicketCancelled, TicketReleased, TicketExpired, TicketInvalidated:
		return false
	}
	return true
}

type Money struct {
	Amount   string `json:"amount"`
	Currency string `json:"currency"`
}

// PriceSnapshot holds the amounts, in minor units, frozen when a ticket or an
// additional service item is claimed.
type PriceSnapshot struct {
	SrcPriceCts   int64 `json:"src_price_cts"`
	FinalPriceCts int64 `json:"final_price_cts"`
	VatCts        int64 `json:"vat_cts"`
	DiscountCts   int64 `json:"discount_cts"`
}

func (p PriceSnapshot) Add(o PriceSnapshot) PriceSnapshot {
	return PriceSnapshot{
		SrcPriceCts:   p.SrcPriceCts + o.SrcPriceCts,
		FinalPriceCts: p.FinalPriceCts + o.FinalPriceCts,
		VatCts:        p.VatCts + o.VatCts,
		DiscountCts:   p.DiscountCts + o.DiscountCts,
	}
}

func (p PriceSnapshot) Times(n int) PriceSnapshot {
	m := int64(n)
	return PriceSnapshot{
		SrcPriceCts:   p.SrcPriceCts * m,
		FinalPriceCts: p.FinalPriceCts * m,
		VatCts:        p.VatCts * m,
		DiscountCts:   p.DiscountCts * m,
	}
}

type Ticket struct {
	ID            int64         `json:"id"`
	UUID          string        `json:"uuid"`
	EventID       string        `json:"event_id"`
	CategoryID    int64         `json:"category_id,omitempty"`
	ReservationID string        `json:"reservation_id,omitempty"`
	Status        TicketStatus  `json:"status"`
	Price         PriceSnapshot `json:"price"`
	Currency      string        `json:"currency"`
	VatStatus     VatStatus     `json:"vat_status"`
	FirstName     string        `json:"first_name,omitempty"`
	LastName      string        `json:"last_name,omitempty"`
	Email         string        `json:"email,omitempty"`
	AccessTokenID int64         `json:"access_token_id,omitempty"`
}

func (t Ticket) Assigned() bool {
	return t.FirstName != "" && t.LastName != ""
}

func (t Ticket) FullName() string {
	if t.LastName == "" {
		return t.FirstName
	}
	return t.FirstName + " " + t.LastName
}

// SumPrices returns the sum of the frozen snapshots of the given tickets.
func SumPrices(tickets []Ticket) PriceSnapshot {
	var total PriceSnapshot
	for _, t := range tickets {
		total = total.Add(t.Price)
	}
	return total
}
