// Package reconciliation bridges the payment provider and the contribution
// state machine. It is the only place provider failures are absorbed.
package reconciliation

import (
	"context"

	"github.com/angelmondragon/tamwill-backend/pkg/enums"
	"github.com/angelmondragon/tamwill-backend/pkg/money"
)

// Metadata keys stamped on every provider charge.
const (
	MetadataContributionID = "contribution_id"
	MetadataProjectID      = "project_id"
)

// ChargeRequest opens a provider charge for a pending contribution.
type ChargeRequest struct {
	Amount         money.Amount
	Currency       string
	Metadata       map[string]string
	IdempotencyKey string
}

// Charge is the provider's view of a charge.
type Charge struct {
	Handle        string
	ClientSecret  string
	TransactionID string
	Status        enums.ChargeStatus
	Amount        money.Amount
	Metadata      map[string]string
}

// Provider is the opaque payment service: start a charge, look one up.
type Provider interface {
	OpenCharge(ctx context.Context, req ChargeRequest) (*Charge, error)
	GetChargeStatus(ctx context.Context, handle string) (*Charge, error)
}
