package clients

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"

	"boxoffice/reservation"

	"github.com/lithammer/shortuuid/v3"
)

// HostedCheckout starts card payments on the payment provider's hosted page.
// The provider reports the outcome to the payments webhook with the returned
// transaction reference.
type HostedCheckout struct {
	baseURL *url.URL
}

func NewHostedCheckout(baseURL string) (HostedCheckout, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return HostedCheckout{}, fmt.Errorf("parsing checkout url: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return HostedCheckout{}, fmt.Errorf("checkout url %q is not absolute", baseURL)
	}

	return HostedCheckout{baseURL: u}, nil
}

func (h HostedCheckout) Charge(_ context.Context, req reservation.ChargeRequest) (reservation.ChargeResult, error) {
	if req.AmountCts <= 0 {
		return reservation.ChargeResult{}, errors.New("nothing to charge")
	}

	ref := "pay_" + shortuuid.New()

	redirect := h.baseURL.JoinPath("checkout", ref)
	q := redirect.Query()
	q.Set("amount_cts", strconv.FormatInt(req.AmountCts, 10))
	q.Set("currency", req.Currency)
	q.Set("order", req.ReservationID)
	if req.Email != "" {
		q.Set("email", req.Email)
	}
	redirect.RawQuery = q.Encode()

	return reservation.ChargeResult{
		Status:         reservation.ChargePending,
		TransactionRef: ref,
		RedirectURL:    redirect.String(),
	}, nil
}
