package clients

import (
	"context"
	"fmt"
	"net/http"

	"github.com/ThreeDotsLabs/go-event-driven/common/clients"
	"github.com/ThreeDotsLabs/go-event-driven/common/clients/payments"
)

type PaymentsClient struct {
	client payments.ClientWithResponsesInterface
}

func NewPaymentsClient(c *clients.Clients) PaymentsClient {
	return PaymentsClient{
		client: c.Payments,
	}
}

func (c PaymentsClient) RefundPayment(ctx context.Context, idempotencyKey, paymentReference, reason string) error {
	res, err := c.client.PutRefundsWithResponse(ctx, payments.PaymentRefundRequest{
		PaymentReference: paymentReference,
		Reason:           reason,
		DeduplicationId:  &idempotencyKey,
	})
	if err != nil {
		return fmt.Errorf("put refund request: %w", err)
	}

	if res.StatusCode() != http.StatusOK {
		return fmt.Errorf("unexpected status code: %d", res.StatusCode())
	}

	return nil
}
