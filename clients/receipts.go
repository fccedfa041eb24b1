package clients

import (
	"context"
	"fmt"
	"net/http"

	"boxoffice/entity"

	"github.com/ThreeDotsLabs/go-event-driven/common/clients"
	"github.com/ThreeDotsLabs/go-event-driven/common/clients/receipts"
)

type ReceiptsClient struct {
	clients *clients.Clients
}

func NewReceiptsClient(clients *clients.Clients) ReceiptsClient {
	return ReceiptsClient{
		clients: clients,
	}
}

// IssueReceipt registers a paid document with the receipts service. The
// reference is the billing document number.
func (c ReceiptsClient) IssueReceipt(ctx context.Context, idempotencyKey, reference string, price entity.Money) error {
	body := receipts.PutReceiptsJSONRequestBody{
		IdempotencyKey: &idempotencyKey,
		TicketId:       reference,
		Price: receipts.Money{
			MoneyAmount:   price.Amount,
			MoneyCurrency: price.Currency,
		},
	}

	res, err := c.clients.Receipts.PutReceiptsWithResponse(ctx, body)
	if err != nil {
		return fmt.Errorf("put receipt request: %w", err)
	}

	if res.StatusCode() != http.StatusOK && res.StatusCode() != http.StatusCreated {
		return fmt.Errorf("unexpected status code: %v", res.StatusCode())
	}

	return nil
}
