package clients_test

import (
	"context"
	"errors"
	"net/url"
	"strings"
	"sync"
	"testing"

	"boxoffice/clients"
	"boxoffice/entity"
	"boxoffice/reservation"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type MockSpreadsheets struct {
	lock sync.Mutex
	Err  error
	Rows map[string][][]string
}

func (m *MockSpreadsheets) AppendRow(_ context.Context, spreadsheetName string, row []string) error {
	m.lock.Lock()
	defer m.lock.Unlock()

	if m.Err != nil {
		return m.Err
	}
	if m.Rows == nil {
		m.Rows = map[string][][]string{}
	}
	m.Rows[spreadsheetName] = append(m.Rows[spreadsheetName], row)
	return nil
}

func TestNotifier(t *testing.T) {
	sheets := &MockSpreadsheets{}
	notifier := clients.NewNotifier(sheets)

	err := notifier.Notify(context.Background(), "res-1", entity.NotifyReservationConfirmed, "ada@example.com")
	require.NoError(t, err)

	assert.Equal(t, [][]string{{"res-1", "RESERVATION_CONFIRMED", "ada@example.com"}}, sheets.Rows["outgoing-notifications"])

	sheets.Err = errors.New("sheet unavailable")
	err = notifier.Notify(context.Background(), "res-1", entity.NotifyReservationExpired, "ada@example.com")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "RESERVATION_EXPIRED")
}

func TestHostedCheckout(t *testing.T) {
	checkout, err := clients.NewHostedCheckout("https://pay.example.com/v1")
	require.NoError(t, err)

	res, err := checkout.Charge(context.Background(), reservation.ChargeRequest{
		ReservationID: "res-1",
		AmountCts:     2200,
		Currency:      "EUR",
		Method:        entity.PaymentCreditCard,
		Email:         "ada@example.com",
	})
	require.NoError(t, err)

	assert.Equal(t, reservation.ChargePending, res.Status)
	assert.True(t, strings.HasPrefix(res.TransactionRef, "pay_"))

	redirect, err := url.Parse(res.RedirectURL)
	require.NoError(t, err)
	assert.Equal(t, "pay.example.com", redirect.Host)
	assert.Equal(t, "/v1/checkout/"+res.TransactionRef, redirect.Path)
	assert.Equal(t, "2200", redirect.Query().Get("amount_cts"))
	assert.Equal(t, "EUR", redirect.Query().Get("currency"))
	assert.Equal(t, "res-1", redirect.Query().Get("order"))

	again, err := checkout.Charge(context.Background(), reservation.ChargeRequest{ReservationID: "res-1", AmountCts: 2200})
	require.NoError(t, err)
	assert.NotEqual(t, res.TransactionRef, again.TransactionRef)

	_, err = checkout.Charge(context.Background(), reservation.ChargeRequest{ReservationID: "res-2"})
	require.Error(t, err)
}

func TestHostedCheckout_invalid_url(t *testing.T) {
	_, err := clients.NewHostedCheckout("/relative")
	require.Error(t, err)
}
