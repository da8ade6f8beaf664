package scoring

import (
	"time"

	"github.com/google/uuid"
)

// CalculationMethod records which path produced a score
type CalculationMethod string

const (
	MethodColdStart CalculationMethod = "cold_start"
	MethodTrustLoop CalculationMethod = "trust_loop"
)

// EventType is a loan lifecycle transition relevant to scoring
type EventType string

const (
	EventRepaidOnTime EventType = "REPAID_ON_TIME"
	EventRepaidEarly  EventType = "REPAID_EARLY"
	EventRepaidLate   EventType = "REPAID_LATE"
	EventDefaulted    EventType = "DEFAULTED"
	EventFunded       EventType = "FUNDED"
)

// LoanEvent is consumed exactly once by the engine to produce one history
// entry. DaysLate is required for REPAID_LATE; LoanID and Amount are audit
// linkage only.
type LoanEvent struct {
	Type       EventType  `json:"type"`
	DaysLate   int        `json:"days_late,omitempty"`
	LoanID     *uuid.UUID `json:"loan_id,omitempty"`
	Amount     float64    `json:"amount,omitempty"`
	OccurredAt time.Time  `json:"occurred_at"`
}

// BorrowerHistory is the population-level view of a borrower's record,
// assembled by the caller from the store. The engine never queries anything
// itself.
type BorrowerHistory struct {
	CompletedLoans      int     `json:"completed_loans"`
	OnTimeRatePct       float64 `json:"on_time_rate_pct"` // over repaid loans only
	LargestRepaidAmount float64 `json:"largest_repaid_amount"`
	MonthsOnPlatform    int     `json:"months_on_platform"`
}

// ScoreRecord is the single reputation record per borrower. Created by the
// first cold start, mutated by every trust-loop event, never deleted.
// Version backs optimistic concurrency at the store layer.
type ScoreRecord struct {
	BorrowerID        uuid.UUID         `json:"borrower_id" db:"borrower_id"`
	ScoreValue        int               `json:"score_value" db:"score_value"`
	StarRating        float64           `json:"star_rating" db:"star_rating"`
	MaxLoanAmount     float64           `json:"max_loan_amount" db:"max_loan_amount"`
	ReputationTier    string            `json:"reputation_tier" db:"reputation_tier"`
	ScoreFactors      map[string]int    `json:"score_factors" db:"score_factors"`
	CalculationMethod CalculationMethod `json:"calculation_method" db:"calculation_method"`
	Version           int               `json:"version" db:"version"`
	CreatedAt         time.Time         `json:"created_at" db:"created_at"`
	UpdatedAt         time.Time         `json:"updated_at" db:"updated_at"`
}

// Clone returns a deep copy so a failed update can't leave a half-mutated
// record behind.
func (r ScoreRecord) Clone() ScoreRecord {
	factors := make(map[string]int, len(r.ScoreFactors))
	for k, v := range r.ScoreFactors {
		factors[k] = v
	}
	r.ScoreFactors = factors
	return r
}

// ScoreHistoryEntry is the immutable audit log of one score transition
type ScoreHistoryEntry struct {
	ID            uuid.UUID              `json:"id" db:"id"`
	BorrowerID    uuid.UUID              `json:"borrower_id" db:"borrower_id"`
	OldScore      int                    `json:"old_score" db:"old_score"`
	NewScore      int                    `json:"new_score" db:"new_score"`
	OldStarRating float64                `json:"old_star_rating" db:"old_star_rating"`
	NewStarRating float64                `json:"new_star_rating" db:"new_star_rating"`
	OldMaxLoan    float64                `json:"old_max_loan" db:"old_max_loan"`
	NewMaxLoan    float64                `json:"new_max_loan" db:"new_max_loan"`
	Reason        string                 `json:"reason" db:"reason"`
	Details       map[string]interface{} `json:"details" db:"details"`
	LoanID        *uuid.UUID             `json:"loan_id,omitempty" db:"loan_id"`
	CreatedAt     time.Time              `json:"created_at" db:"created_at"`
}

// Score-factor keys. Population bonuses are apply-once: the stored value is
// the points currently in effect for that factor, and re-applying the same
// computation contributes zero additional delta.
const (
	FactorBaseScore     = "base_score"
	FactorCashFlow      = "cash_flow_ratio"
	FactorBalance       = "avg_ending_balance"
	FactorConsistency   = "balance_consistency"
	FactorNSFEvents     = "nsf_events"
	FactorLoanEvents    = "loan_events" // cumulative lifecycle deltas
	FactorOnTimeRate    = "ontime_rate_bonus"
	FactorNoHistory     = "no_history_penalty"
	FactorProgressive   = "progressive_borrowing_bonus"
	FactorTenure        = "platform_tenure_bonus"
	FactorMultipleLoans = "multiple_loans_bonus"
)
