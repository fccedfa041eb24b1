package command

import (
	"context"
	"fmt"

	commands "boxoffice/command"

	"github.com/ThreeDotsLabs/watermill/components/cqrs"
)

type PaymentRefunder interface {
	RefundPayment(ctx context.Context, idempotencyKey, paymentReference, reason string) error
}

type Handler struct {
	payments PaymentRefunder
}

func NewHandler(p PaymentRefunder) Handler {
	return Handler{
		payments: p,
	}
}

func (h Handler) Handlers() []cqrs.CommandHandler {
	return []cqrs.CommandHandler{
		cqrs.NewCommandHandler("refund-payment", h.RefundPayment),
	}
}

func (h Handler) RefundPayment(ctx context.Context, cmd *commands.RefundPayment) error {
	reason := fmt.Sprintf("credit note %s for reservation %s", cmd.CreditNote, cmd.ReservationID)
	if err := h.payments.RefundPayment(ctx, cmd.Header.IdempotencyKey, cmd.TransactionRef, reason); err != nil {
		return fmt.Errorf("refunding payment %s: %w", cmd.TransactionRef, err)
	}

	return nil
}
