package event

import (
	"context"
	"fmt"

	commands "boxoffice/command"
	"boxoffice/entity"
	events "boxoffice/event"

	"github.com/ThreeDotsLabs/go-event-driven/common/log"
	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill-redisstream/pkg/redisstream"
	"github.com/ThreeDotsLabs/watermill/components/cqrs"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/redis/go-redis/v9"
)

const refundsSheet = "reservations-to-refund"

type DocumentReader interface {
	BillingDocument(ctx context.Context, id int64) (entity.BillingDocument, error)
}

type DocumentStore interface {
	StoreDocument(ctx context.Context, fileID, content string) error
}

type ReceiptIssuer interface {
	IssueReceipt(ctx context.Context, idempotencyKey, reference string, price entity.Money) error
}

type SpreadsheetAppender interface {
	AppendRow(ctx context.Context, spreadsheetName string, row []string) error
}

type Notifier interface {
	Notify(ctx context.Context, reservationID string, kind entity.NotificationKind, email string) error
}

type AvailabilityCache interface {
	Invalidate(ctx context.Context, eventID string) error
}

type WaitingList interface {
	Distribute(ctx context.Context, eventID string) (int, error)
	CloseOffer(ctx context.Context, reservationID string, status entity.WaitingListStatus) error
}

type CommandSender interface {
	Send(ctx context.Context, cmd any) error
}

func NewProcessorConfig(logger watermill.LoggerAdapter, redisClient *redis.Client) cqrs.EventProcessorConfig {
	return cqrs.EventProcessorConfig{
		SubscriberConstructor: func(params cqrs.EventProcessorSubscriberConstructorParams) (message.Subscriber, error) {
			return redisstream.NewSubscriber(redisstream.SubscriberConfig{
				Client:        redisClient,
				ConsumerGroup: "svc-boxoffice." + params.HandlerName,
			}, logger)
		},
		GenerateSubscribeTopic: func(params cqrs.EventProcessorGenerateSubscribeTopicParams) (string, error) {
			return params.EventName, nil
		},
		Marshaler: cqrs.JSONMarshaler{
			GenerateName: cqrs.StructName,
		},
		Logger: logger,
	}
}

type Deps struct {
	Documents     DocumentReader
	DocumentStore DocumentStore
	Receipts      ReceiptIssuer
	Spreadsheets  SpreadsheetAppender
	Notifier      Notifier
	Availability  AvailabilityCache
	WaitingList   WaitingList
	CommandBus    CommandSender
}

type Handler struct {
	documents     DocumentReader
	documentStore DocumentStore
	receipts      ReceiptIssuer
	spreadsheets  SpreadsheetAppender
	notifier      Notifier
	availability  AvailabilityCache
	waitingList   WaitingList
	commandBus    CommandSender
}

func NewHandler(deps Deps) Handler {
	return Handler{
		documents:     deps.Documents,
		documentStore: deps.DocumentStore,
		receipts:      deps.Receipts,
		spreadsheets:  deps.Spreadsheets,
		notifier:      deps.Notifier,
		availability:  deps.Availability,
		waitingList:   deps.WaitingList,
		commandBus:    deps.CommandBus,
	}
}

// Handlers lists every event handler of the service under its subscription
// name.
func (h Handler) Handlers() []cqrs.EventHandler {
	return []cqrs.EventHandler{
		cqrs.NewEventHandler("store-billing-document", h.StoreBillingDocument),
		cqrs.NewEventHandler("issue-receipt", h.IssueReceipt),
		cqrs.NewEventHandler("track-credit-note", h.TrackCreditNote),
		cqrs.NewEventHandler("refund-credit-note", h.RefundCreditNote),
		cqrs.NewEventHandler("invalidate-availability-on-created", h.InvalidateOnReservationCreated),
		cqrs.NewEventHandler("invalidate-availability-on-released", h.InvalidateOnSeatsReleased),
		cqrs.NewEventHandler("distribute-released-seats", h.DistributeReleasedSeats),
		cqrs.NewEventHandler("close-offer-on-confirmed", h.CloseOfferOnConfirmed),
		cqrs.NewEventHandler("close-offer-on-cancelled", h.CloseOfferOnCancelled),
		cqrs.NewEventHandler("close-offer-on-expired", h.CloseOfferOnExpired),
		cqrs.NewEventHandler("notify-confirmed", h.NotifyConfirmed),
		cqrs.NewEventHandler("notify-offline-payment", h.NotifyOfflinePayment),
		cqrs.NewEventHandler("notify-cancelled", h.NotifyCancelled),
		cqrs.NewEventHandler("notify-expired", h.NotifyExpired),
		cqrs.NewEventHandler("notify-credit-note", h.NotifyCreditNote),
		cqrs.NewEventHandler("notify-waiting-list-offer", h.NotifyWaitingListOffer),
	}
}

func (h Handler) StoreBillingDocument(ctx context.Context, e *events.BillingDocumentCreated) error {
	d, err := h.documents.BillingDocument(ctx, e.DocumentID)
	if err != nil {
		return fmt.Errorf("getting billing document %s: %w", e.Number, err)
	}

	fileID := fmt.Sprintf("%s-%s.json", e.EventID, e.Number)
	if err := h.documentStore.StoreDocument(ctx, fileID, string(d.Model)); err != nil {
		return fmt.Errorf("storing billing document %s: %w", e.Number, err)
	}

	return nil
}

func (h Handler) IssueReceipt(ctx context.Context, e *events.BillingDocumentCreated) error {
	if e.Type == entity.DocumentCreditNote {
		return nil
	}

	if err := h.receipts.IssueReceipt(ctx, e.Header.IdempotencyKey, e.Number, e.Total); err != nil {
		return fmt.Errorf("issuing receipt for %s: %w", e.Number, err)
	}

	return nil
}

func (h Handler) TrackCreditNote(ctx context.Context, e *events.CreditNoteIssued) error {
	row := []string{e.Number, e.ReservationID, e.Email, e.Amount.Amount, e.Amount.Currency}
	if err := h.spreadsheets.AppendRow(ctx, refundsSheet, row); err != nil {
		return fmt.Errorf("failed to append row to tracker: %w", err)
	}

	return nil
}

// RefundCreditNote asks for the money back on the original payment. Free
// orders and offline payments carry no transaction to refund.
func (h Handler) RefundCreditNote(ctx context.Context, e *events.CreditNoteIssued) error {
	if e.TransactionRef == "" {
		log.FromContext(ctx).WithField("credit_note", e.Number).Info("No payment to refund")
		return nil
	}

	cmd := commands.NewRefundPayment(e.Number, e.ReservationID, e.TransactionRef, e.Number, e.Amount)
	if err := h.commandBus.Send(ctx, cmd); err != nil {
		return fmt.Errorf("sending refund command: %w", err)
	}

	return nil
}

func (h Handler) InvalidateOnReservationCreated(ctx context.Context, e *events.ReservationCreated) error {
	return h.availability.Invalidate(ctx, e.EventID)
}

func (h Handler) InvalidateOnSeatsReleased(ctx context.Context, e *events.SeatsReleased) error {
	return h.availability.Invalidate(ctx, e.EventID)
}

func (h Handler) DistributeReleasedSeats(ctx context.Context, e *events.SeatsReleased) error {
	n, err := h.waitingList.Distribute(ctx, e.EventID)
	if err != nil {
		return fmt.Errorf("distributing released seats: %w", err)
	}

	if n > 0 {
		log.FromContext(ctx).WithField("offers", n).Info("Offered released seats to the waiting list")
	}

	return nil
}

func (h Handler) CloseOfferOnConfirmed(ctx context.Context, e *events.ReservationConfirmed) error {
	return h.waitingList.CloseOffer(ctx, e.ReservationID, entity.WaitingListAcquired)
}

func (h Handler) CloseOfferOnCancelled(ctx context.Context, e *events.ReservationCancelled) error {
	return h.waitingList.CloseOffer(ctx, e.ReservationID, entity.WaitingListCancelled)
}

func (h Handler) CloseOfferOnExpired(ctx context.Context, e *events.ReservationExpired) error {
	return h.waitingList.CloseOffer(ctx, e.ReservationID, entity.WaitingListExpired)
}

func (h Handler) NotifyConfirmed(ctx context.Context, e *events.ReservationConfirmed) error {
	return h.notify(ctx, e.ReservationID, entity.NotifyReservationConfirmed, e.Email)
}

func (h Handler) NotifyOfflinePayment(ctx context.Context, e *events.OfflinePaymentRequested) error {
	return h.notify(ctx, e.ReservationID, entity.NotifyOfflinePayment, e.Email)
}

func (h Handler) NotifyCancelled(ctx context.Context, e *events.ReservationCancelled) error {
	return h.notify(ctx, e.ReservationID, entity.NotifyReservationCancelled, e.Email)
}

func (h Handler) NotifyExpired(ctx context.Context, e *events.ReservationExpired) error {
	return h.notify(ctx, e.ReservationID, entity.NotifyReservationExpired, e.Email)
}

func (h Handler) NotifyCreditNote(ctx context.Context, e *events.CreditNoteIssued) error {
	return h.notify(ctx, e.ReservationID, entity.NotifyCreditNoteIssued, e.Email)
}

func (h Handler) NotifyWaitingListOffer(ctx context.Context, e *events.WaitingListOfferMade) error {
	return h.notify(ctx, e.ReservationID, entity.NotifyWaitingListOffer, e.Email)
}

// notify skips reservations that never left a contact address, such as holds
// that expired before checkout.
func (h Handler) notify(ctx context.Context, reservationID string, kind entity.NotificationKind, email string) error {
	if email == "" {
		return nil
	}

	if err := h.notifier.Notify(ctx, reservationID, kind, email); err != nil {
		return fmt.Errorf("notifying %s: %w", reservationID, err)
	}

	return nil
}
