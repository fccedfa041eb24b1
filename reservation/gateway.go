package reservation

import (
	"context"

	"boxoffice/entity"
)

// ChargeStatus of PENDING means the gateway confirms the charge later through
// its webhook.
type ChargeStatus string

const (
	ChargeSucceeded ChargeStatus = "SUCCEEDED"
	ChargePending   ChargeStatus = "PENDING"
	ChargeFailed    ChargeStatus = "FAILED"
)

type ChargeRequest struct {
	ReservationID string
	AmountCts     int64
	Currency      string
	Method        entity.PaymentMethod
	Email         string
}

type ChargeResult struct {
	Status         ChargeStatus
	TransactionRef string
	RedirectURL    string
	Reason         string
}

type PaymentGateway interface {
	Charge(ctx context.Context, req ChargeRequest) (ChargeResult, error)
}
