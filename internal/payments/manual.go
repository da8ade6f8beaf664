package payments

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/zimlend/lending-api/internal/logger"
)

// ManualGateway records disbursements in memory and reports them as pending.
// Operations settle the transfer out of band; it stands in until a provider
// integration is configured.
type ManualGateway struct {
	mu        sync.Mutex
	transfers map[string]*Disbursement
	log       logger.Logger
}

func NewManualGateway(log logger.Logger) *ManualGateway {
	return &ManualGateway{
		transfers: make(map[string]*Disbursement),
		log:       log,
	}
}

func (g *ManualGateway) Initiate(ctx context.Context, loanID uuid.UUID, amount float64) (*Disbursement, error) {
	if amount <= 0 {
		return nil, fmt.Errorf("disbursement amount must be positive, got %.2f", amount)
	}

	d := &Disbursement{
		Reference: fmt.Sprintf("manual-%s", uuid.New().String()),
		LoanID:    loanID,
		Amount:    amount,
		Status:    DisbursementPending,
		CreatedAt: time.Now(),
	}

	g.mu.Lock()
	g.transfers[d.Reference] = d
	g.mu.Unlock()

	g.log.Info("Disbursement queued for manual settlement",
		"reference", d.Reference,
		"loan_id", loanID.String(),
		"amount", amount)

	return d, nil
}

func (g *ManualGateway) CheckStatus(ctx context.Context, reference string) (DisbursementStatus, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	d, ok := g.transfers[reference]
	if !ok {
		return "", fmt.Errorf("unknown disbursement reference %q", reference)
	}
	return d.Status, nil
}
