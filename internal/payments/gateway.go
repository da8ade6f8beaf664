package payments

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// DisbursementStatus is the gateway-side state of a transfer
type DisbursementStatus string

const (
	DisbursementPending DisbursementStatus = "pending"
	DisbursementSettled DisbursementStatus = "settled"
	DisbursementFailed  DisbursementStatus = "failed"
)

// Disbursement is the gateway's view of a funding transfer. Reference is the
// provider's opaque identifier; nothing in the loan workflow interprets it.
type Disbursement struct {
	Reference string
	LoanID    uuid.UUID
	Amount    float64
	Status    DisbursementStatus
	CreatedAt time.Time
}

// Gateway abstracts the money-movement provider. The loan service consumes it
// when a loan transitions to funded; provider wiring lives outside this module.
type Gateway interface {
	// Initiate starts a disbursement of the net proceeds to the borrower
	Initiate(ctx context.Context, loanID uuid.UUID, amount float64) (*Disbursement, error)

	// CheckStatus fetches the current state of a previously initiated transfer
	CheckStatus(ctx context.Context, reference string) (DisbursementStatus, error)
}
