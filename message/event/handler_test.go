package event_test

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	commands "boxoffice/command"
	"boxoffice/entity"
	events "boxoffice/event"
	"boxoffice/message/event"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockDocuments struct {
	documents map[int64]entity.BillingDocument
}

func (m mockDocuments) BillingDocument(_ context.Context, id int64) (entity.BillingDocument, error) {
	d, ok := m.documents[id]
	if !ok {
		return entity.BillingDocument{}, entity.ErrNotFound
	}
	return d, nil
}

type mockDocumentStore struct {
	lock   sync.Mutex
	stored map[string]string
}

func (m *mockDocumentStore) StoreDocument(_ context.Context, fileID, content string) error {
	m.lock.Lock()
	defer m.lock.Unlock()
	if m.stored == nil {
		m.stored = map[string]string{}
	}
	m.stored[fileID] = content
	return nil
}

type issuedReceipt struct {
	idempotencyKey string
	reference      string
	price          entity.Money
}

type mockReceipts struct {
	lock   sync.Mutex
	issued []issuedReceipt
}

func (m *mockReceipts) IssueReceipt(_ context.Context, idempotencyKey, reference string, price entity.Money) error {
	m.lock.Lock()
	defer m.lock.Unlock()
	m.issued = append(m.issued, issuedReceipt{idempotencyKey, reference, price})
	return nil
}

type appendedRow struct {
	sheet string
	row   []string
}

type mockSpreadsheets struct {
	lock sync.Mutex
	rows []appendedRow
}

func (m *mockSpreadsheets) AppendRow(_ context.Context, spreadsheetName string, row []string) error {
	m.lock.Lock()
	defer m.lock.Unlock()
	m.rows = append(m.rows, appendedRow{spreadsheetName, row})
	return nil
}

type notification struct {
	reservationID string
	kind          entity.NotificationKind
	email         string
}

type mockNotifier struct {
	lock          sync.Mutex
	err           error
	notifications []notification
}

func (m *mockNotifier) Notify(_ context.Context, reservationID string, kind entity.NotificationKind, email string) error {
	m.lock.Lock()
	defer m.lock.Unlock()
	if m.err != nil {
		return m.err
	}
	m.notifications = append(m.notifications, notification{reservationID, kind, email})
	return nil
}

type mockAvailability struct {
	lock        sync.Mutex
	invalidated []string
}

func (m *mockAvailability) Invalidate(_ context.Context, eventID string) error {
	m.lock.Lock()
	defer m.lock.Unlock()
	m.invalidated = append(m.invalidated, eventID)
	return nil
}

type closedOffer struct {
	reservationID string
	status        entity.WaitingListStatus
}

type mockWaitingList struct {
	lock        sync.Mutex
	offers      int
	distributed []string
	closed      []closedOffer
}

func (m *mockWaitingList) Distribute(_ context.Context, eventID string) (int, error) {
	m.lock.Lock()
	defer m.lock.Unlock()
	m.distributed = append(m.distributed, eventID)
	return m.offers, nil
}

func (m *mockWaitingList) CloseOffer(_ context.Context, reservationID string, status entity.WaitingListStatus) error {
	m.lock.Lock()
	defer m.lock.Unlock()
	m.closed = append(m.closed, closedOffer{reservationID, status})
	return nil
}

type mockCommandBus struct {
	lock sync.Mutex
	sent []any
}

func (m *mockCommandBus) Send(_ context.Context, cmd any) error {
	m.lock.Lock()
	defer m.lock.Unlock()
	m.sent = append(m.sent, cmd)
	return nil
}

type mocks struct {
	documents     mockDocuments
	documentStore *mockDocumentStore
	receipts      *mockReceipts
	spreadsheets  *mockSpreadsheets
	notifier      *mockNotifier
	availability  *mockAvailability
	waitingList   *mockWaitingList
	commandBus    *mockCommandBus
}

func newHandler() (event.Handler, mocks) {
	m := mocks{
		documents:     mockDocuments{documents: map[int64]entity.BillingDocument{}},
		documentStore: &mockDocumentStore{},
		receipts:      &mockReceipts{},
		spreadsheets:  &mockSpreadsheets{},
		notifier:      &mockNotifier{},
		availability:  &mockAvailability{},
		waitingList:   &mockWaitingList{},
		commandBus:    &mockCommandBus{},
	}

	h := event.NewHandler(event.Deps{
		Documents:     m.documents,
		DocumentStore: m.documentStore,
		Receipts:      m.receipts,
		Spreadsheets:  m.spreadsheets,
		Notifier:      m.notifier,
		Availability:  m.availability,
		WaitingList:   m.waitingList,
		CommandBus:    m.commandBus,
	})
	return h, m
}

func reservation() entity.Reservation {
	return entity.Reservation{
		ID:             "6b1a0c1e-5f0e-4d7e-8d55-2f0c9f9d6d10",
		EventID:        "b7f5c1a4-28a8-4a3e-9a3c-0a4c4d7c8e21",
		Email:          "ada@example.com",
		TransactionRef: "pay_123",
		InvoiceNumber:  "INV-7",
		PaymentMethod:  entity.PaymentCreditCard,
		Validity:       time.Date(2026, 10, 1, 12, 0, 0, 0, time.UTC),
	}
}

func TestHandler_StoreBillingDocument(t *testing.T) {
	ctx := context.Background()
	h, m := newHandler()

	d := entity.BillingDocument{
		ID:            42,
		EventID:       "ev",
		ReservationID: "res",
		Number:        "R-1",
		Type:          entity.DocumentReceipt,
		Model:         json.RawMessage(`{"total":"12.00"}`),
	}
	m.documents.documents[d.ID] = d

	e := events.NewBillingDocumentCreated(d, "ada@example.com", entity.Money{Amount: "12.00", Currency: "EUR"})
	require.NoError(t, h.StoreBillingDocument(ctx, &e))

	assert.Equal(t, map[string]string{"ev-R-1.json": `{"total":"12.00"}`}, m.documentStore.stored)
}

func TestHandler_StoreBillingDocument_unknown_document(t *testing.T) {
	h, _ := newHandler()

	e := events.NewBillingDocumentCreated(entity.BillingDocument{ID: 1, Number: "R-1"}, "", entity.Money{})
	err := h.StoreBillingDocument(context.Background(), &e)
	assert.ErrorIs(t, err, entity.ErrNotFound)
}

func TestHandler_IssueReceipt(t *testing.T) {
	ctx := context.Background()
	h, m := newHandler()
	total := entity.Money{Amount: "12.00", Currency: "EUR"}

	receipt := events.NewBillingDocumentCreated(entity.BillingDocument{Number: "R-1", Type: entity.DocumentReceipt}, "", total)
	creditNote := events.NewBillingDocumentCreated(entity.BillingDocument{Number: "R-1-CN-1", Type: entity.DocumentCreditNote}, "", total)

	require.NoError(t, h.IssueReceipt(ctx, &receipt))
	require.NoError(t, h.IssueReceipt(ctx, &creditNote))

	require.Len(t, m.receipts.issued, 1)
	assert.Equal(t, issuedReceipt{idempotencyKey: "R-1", reference: "R-1", price: total}, m.receipts.issued[0])
}

func TestHandler_credit_note(t *testing.T) {
	ctx := context.Background()
	amount := entity.Money{Amount: "50.00", Currency: "EUR"}
	d := entity.BillingDocument{ID: 3, Number: "INV-7-CN-1", Type: entity.DocumentCreditNote}

	t.Run("paid online", func(t *testing.T) {
		h, m := newHandler()
		e := events.NewCreditNoteIssued(d, reservation(), amount, nil)

		require.NoError(t, h.TrackCreditNote(ctx, &e))
		require.NoError(t, h.RefundCreditNote(ctx, &e))

		assert.Equal(t, []appendedRow{{
			sheet: "reservations-to-refund",
			row:   []string{"INV-7-CN-1", reservation().ID, "ada@example.com", "50.00", "EUR"},
		}}, m.spreadsheets.rows)

		require.Len(t, m.commandBus.sent, 1)
		cmd, ok := m.commandBus.sent[0].(commands.RefundPayment)
		require.True(t, ok)
		assert.Equal(t, "pay_123", cmd.TransactionRef)
		assert.Equal(t, "INV-7-CN-1", cmd.CreditNote)
		assert.Equal(t, "INV-7-CN-1", cmd.Header.IdempotencyKey)
		assert.Equal(t, amount, cmd.Amount)
	})

	t.Run("no transaction", func(t *testing.T) {
		h, m := newHandler()
		r := reservation()
		r.TransactionRef = ""
		e := events.NewCreditNoteIssued(d, r, amount, nil)

		require.NoError(t, h.RefundCreditNote(ctx, &e))
		assert.Empty(t, m.commandBus.sent)
	})
}

func TestHandler_released_seats(t *testing.T) {
	ctx := context.Background()
	h, m := newHandler()
	m.waitingList.offers = 2

	created := events.NewReservationCreated(reservation(), nil)
	released := events.NewSeatsReleased("key", reservation().EventID, reservation().ID, []events.ReleasedSeats{{CategoryID: 1, Count: 2}})

	require.NoError(t, h.InvalidateOnReservationCreated(ctx, &created))
	require.NoError(t, h.InvalidateOnSeatsReleased(ctx, &released))
	require.NoError(t, h.DistributeReleasedSeats(ctx, &released))

	assert.Equal(t, []string{reservation().EventID, reservation().EventID}, m.availability.invalidated)
	assert.Equal(t, []string{reservation().EventID}, m.waitingList.distributed)
}

func TestHandler_close_offer(t *testing.T) {
	ctx := context.Background()
	h, m := newHandler()
	r := reservation()

	confirmed := events.NewReservationConfirmed(r, entity.Money{})
	cancelled := events.NewReservationCancelled(r, "", false)
	expired := events.NewReservationExpired(r)

	require.NoError(t, h.CloseOfferOnConfirmed(ctx, &confirmed))
	require.NoError(t, h.CloseOfferOnCancelled(ctx, &cancelled))
	require.NoError(t, h.CloseOfferOnExpired(ctx, &expired))

	assert.Equal(t, []closedOffer{
		{r.ID, entity.WaitingListAcquired},
		{r.ID, entity.WaitingListCancelled},
		{r.ID, entity.WaitingListExpired},
	}, m.waitingList.closed)
}

func TestHandler_notifications(t *testing.T) {
	ctx := context.Background()
	h, m := newHandler()
	r := reservation()

	confirmed := events.NewReservationConfirmed(r, entity.Money{})
	offline := events.NewOfflinePaymentRequested(r, entity.Money{})
	cancelled := events.NewReservationCancelled(r, "", true)
	offer := events.NewWaitingListOfferMade(entity.WaitingListEntry{ID: 1, EventID: r.EventID, Email: "grace@example.com"}, "res-2", r.Validity)

	require.NoError(t, h.NotifyConfirmed(ctx, &confirmed))
	require.NoError(t, h.NotifyOfflinePayment(ctx, &offline))
	require.NoError(t, h.NotifyCancelled(ctx, &cancelled))
	require.NoError(t, h.NotifyWaitingListOffer(ctx, &offer))

	assert.Equal(t, []notification{
		{r.ID, entity.NotifyReservationConfirmed, "ada@example.com"},
		{r.ID, entity.NotifyOfflinePayment, "ada@example.com"},
		{r.ID, entity.NotifyReservationCancelled, "ada@example.com"},
		{"res-2", entity.NotifyWaitingListOffer, "grace@example.com"},
	}, m.notifier.notifications)
}

func TestHandler_notify_skips_missing_email(t *testing.T) {
	h, m := newHandler()
	r := reservation()
	r.Email = ""

	expired := events.NewReservationExpired(r)
	require.NoError(t, h.NotifyExpired(context.Background(), &expired))
	assert.Empty(t, m.notifier.notifications)
}

func TestHandler_notify_error_is_returned(t *testing.T) {
	h, m := newHandler()
	m.notifier.err = errors.New("sheets unavailable")

	expired := events.NewReservationExpired(reservation())
	err := h.NotifyExpired(context.Background(), &expired)
	assert.ErrorContains(t, err, "sheets unavailable")
}

func TestHandler_Handlers(t *testing.T) {
	h, _ := newHandler()

	names := map[string]bool{}
	for _, handler := range h.Handlers() {
		assert.False(t, names[handler.HandlerName()], handler.HandlerName())
		names[handler.HandlerName()] = true
	}
	assert.Len(t, names, 16)
}
