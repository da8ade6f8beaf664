package scoring

import (
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	apperrors "github.com/zimlend/lending-api/internal/errors"
	"github.com/zimlend/lending-api/internal/statement"
)

// Score bounds. Every score the engine produces lands in this range.
const (
	MinScore  = 30
	MaxScore  = 99
	BaseScore = 35
)

// Weights holds every threshold and point table the engine uses. Constructed
// once and injected; there is no process-wide engine state.
type Weights struct {
	// Cold-start tables
	CashFlowTiers    []Tier // keyed by cash-flow ratio
	BalanceTiers     []Tier // keyed by average ending balance
	ConsistencyTiers []Tier // keyed by balance-consistency score
	NSFCleanBonus    int    // zero NSF events
	NSFFewPenalty    int    // 1-3 events, flat
	NSFManyPenalty   int    // 4+ events, flat

	// Trust-loop event deltas
	OnTimeDelta     int
	EarlyDelta      int
	LateShortDelta  int // 1-7 days
	LateMediumDelta int // 8-30 days
	LateLongDelta   int // 31+ days
	DefaultDelta    int
	FundedDelta     int

	// Population bonus tables (apply-once)
	OnTimeRateTiers   []Tier // keyed by on-time percentage over repaid loans
	NoHistoryPenalty  int    // flat, when no completed loans exist
	ProgressiveTiers  []Tier // keyed by largest successfully repaid amount
	TenureTiers       []Tier // keyed by months on platform
	MultiLoanMinimum  int    // completed loans needed for the bonus
	MultiLoanBonus    int
}

// Tier maps a threshold to the points awarded at or above it
type Tier struct {
	Threshold float64
	Points    int
}

// DefaultWeights returns the production scoring tables
func DefaultWeights() Weights {
	return Weights{
		CashFlowTiers: []Tier{
			{Threshold: 1.2, Points: 20},
			{Threshold: 1.0, Points: 15},
			{Threshold: 0.8, Points: 10},
			{Threshold: 0.6, Points: 5},
		},
		BalanceTiers: []Tier{
			{Threshold: 200.01, Points: 10},
			{Threshold: 50, Points: 6},
			{Threshold: 0.01, Points: 2},
		},
		ConsistencyTiers: []Tier{
			{Threshold: 7, Points: 5},
			{Threshold: 4, Points: 3},
			{Threshold: 0.01, Points: 1},
		},
		NSFCleanBonus:  5,
		NSFFewPenalty:  -3,
		NSFManyPenalty: -8,

		OnTimeDelta:     3,
		EarlyDelta:      5,
		LateShortDelta:  -2,
		LateMediumDelta: -5,
		LateLongDelta:   -10,
		DefaultDelta:    -15,
		FundedDelta:     2,

		OnTimeRateTiers: []Tier{
			{Threshold: 95, Points: 25},
			{Threshold: 90, Points: 20},
			{Threshold: 80, Points: 15},
			{Threshold: 70, Points: 10},
			{Threshold: 60, Points: 5},
			{Threshold: 0, Points: -10},
		},
		NoHistoryPenalty: -10,
		ProgressiveTiers: []Tier{
			{Threshold: 800, Points: 10},
			{Threshold: 600, Points: 8},
			{Threshold: 400, Points: 6},
			{Threshold: 200, Points: 4},
			{Threshold: 100, Points: 2},
		},
		TenureTiers: []Tier{
			{Threshold: 24, Points: 4},
			{Threshold: 12, Points: 3},
			{Threshold: 6, Points: 2},
			{Threshold: 3, Points: 1},
		},
		MultiLoanMinimum: 3,
		MultiLoanBonus:   5,
	}
}

// Engine computes reputation scores. Pure arithmetic over injected tables;
// safe to call concurrently, persistence belongs to the caller.
type Engine struct {
	weights Weights
}

// NewEngine creates a scoring engine with the given weight tables
func NewEngine(weights Weights) *Engine {
	return &Engine{weights: weights}
}

// ColdStart computes the first score for a borrower from financial-statement
// metrics. Fails when the metrics carry no signal; the engine never
// fabricates a fallback score.
func (e *Engine) ColdStart(borrowerID uuid.UUID, metrics statement.Metrics) (*ScoreRecord, error) {
	if !metrics.HasData() {
		return nil, apperrors.MissingStatementData("cold start requires parsed statement metrics; upload a verified financial statement")
	}

	factors := map[string]int{
		FactorBaseScore:   BaseScore,
		FactorCashFlow:    tierPoints(e.weights.CashFlowTiers, metrics.CashFlowRatio),
		FactorBalance:     tierPoints(e.weights.BalanceTiers, metrics.AvgEndingBalance),
		FactorConsistency: tierPoints(e.weights.ConsistencyTiers, metrics.BalanceConsistencyScore),
		FactorNSFEvents:   e.nsfPoints(metrics.NSFEvents),
	}

	score := 0
	for _, points := range factors {
		score += points
	}
	score = clamp(score)

	now := time.Now()
	record := &ScoreRecord{
		BorrowerID:        borrowerID,
		ScoreValue:        score,
		StarRating:        StarRating(score),
		MaxLoanAmount:     MaxLoanFor(score),
		ReputationTier:    TierLabelFor(score),
		ScoreFactors:      factors,
		CalculationMethod: MethodColdStart,
		Version:           1,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	return record, nil
}

// ApplyEvent folds one loan lifecycle event plus the current population
// bonuses into an existing score. Returns the updated record and the audit
// entry for the transition. The input record is not mutated.
func (e *Engine) ApplyEvent(existing *ScoreRecord, event LoanEvent, history BorrowerHistory) (*ScoreRecord, *ScoreHistoryEntry, error) {
	if existing == nil {
		return nil, nil, apperrors.NoExistingScore("unknown")
	}
	if event.Type == EventRepaidLate && event.DaysLate <= 0 {
		return nil, nil, apperrors.ValidationError("REPAID_LATE event requires a positive daysLate", nil)
	}

	updated := existing.Clone()
	if updated.ScoreFactors == nil {
		updated.ScoreFactors = map[string]int{}
	}

	eventDelta := e.eventDelta(event)
	updated.ScoreFactors[FactorLoanEvents] += eventDelta
	delta := eventDelta

	// Population bonuses are apply-once: the factor map stores the points
	// currently in effect, and only the difference against the stored value
	// contributes to the delta. Re-running the same computation adds zero.
	delta += e.applyOnce(&updated, FactorOnTimeRate, e.onTimeRatePoints(history))
	delta += e.applyOnce(&updated, FactorNoHistory, e.noHistoryPoints(history))
	delta += e.applyOnce(&updated, FactorProgressive, tierPoints(e.weights.ProgressiveTiers, history.LargestRepaidAmount))
	delta += e.applyOnce(&updated, FactorTenure, tierPoints(e.weights.TenureTiers, float64(history.MonthsOnPlatform)))
	delta += e.applyOnce(&updated, FactorMultipleLoans, e.multiLoanPoints(history))

	updated.ScoreValue = clamp(existing.ScoreValue + delta)
	updated.StarRating = StarRating(updated.ScoreValue)
	updated.MaxLoanAmount = MaxLoanFor(updated.ScoreValue)
	updated.ReputationTier = TierLabelFor(updated.ScoreValue)
	updated.CalculationMethod = MethodTrustLoop
	updated.UpdatedAt = time.Now()

	entry := &ScoreHistoryEntry{
		ID:            uuid.New(),
		BorrowerID:    existing.BorrowerID,
		OldScore:      existing.ScoreValue,
		NewScore:      updated.ScoreValue,
		OldStarRating: existing.StarRating,
		NewStarRating: updated.StarRating,
		OldMaxLoan:    existing.MaxLoanAmount,
		NewMaxLoan:    updated.MaxLoanAmount,
		Reason:        fmt.Sprintf("loan event %s", event.Type),
		Details: map[string]interface{}{
			"event":       event,
			"event_delta": eventDelta,
			"total_delta": delta,
			"history":     history,
		},
		LoanID:    event.LoanID,
		CreatedAt: time.Now(),
	}
	return &updated, entry, nil
}

// applyOnce sets a factor to its newly computed points and returns the
// incremental delta against whatever was applied before
func (e *Engine) applyOnce(record *ScoreRecord, factor string, points int) int {
	previous := record.ScoreFactors[factor]
	if points == previous {
		return 0
	}
	if points == 0 {
		delete(record.ScoreFactors, factor)
	} else {
		record.ScoreFactors[factor] = points
	}
	return points - previous
}

func (e *Engine) eventDelta(event LoanEvent) int {
	switch event.Type {
	case EventRepaidOnTime:
		return e.weights.OnTimeDelta
	case EventRepaidEarly:
		return e.weights.EarlyDelta
	case EventRepaidLate:
		switch {
		case event.DaysLate <= 7:
			return e.weights.LateShortDelta
		case event.DaysLate <= 30:
			return e.weights.LateMediumDelta
		default:
			return e.weights.LateLongDelta
		}
	case EventDefaulted:
		return e.weights.DefaultDelta
	case EventFunded:
		return e.weights.FundedDelta
	default:
		return 0
	}
}

// onTimeRatePoints returns the repayment-rate tier bonus, or zero when the
// no-history penalty applies instead; the two are mutually exclusive.
func (e *Engine) onTimeRatePoints(history BorrowerHistory) int {
	if history.CompletedLoans == 0 {
		return 0
	}
	return tierPoints(e.weights.OnTimeRateTiers, history.OnTimeRatePct)
}

func (e *Engine) noHistoryPoints(history BorrowerHistory) int {
	if history.CompletedLoans == 0 {
		return e.weights.NoHistoryPenalty
	}
	return 0
}

func (e *Engine) multiLoanPoints(history BorrowerHistory) int {
	if history.CompletedLoans >= e.weights.MultiLoanMinimum {
		return e.weights.MultiLoanBonus
	}
	return 0
}

func (e *Engine) nsfPoints(events int) int {
	switch {
	case events == 0:
		return e.weights.NSFCleanBonus
	case events <= 3:
		return e.weights.NSFFewPenalty
	default:
		return e.weights.NSFManyPenalty
	}
}

// tierPoints walks a descending tier table and returns the points of the
// first threshold the value meets
func tierPoints(tiers []Tier, value float64) int {
	for _, tier := range tiers {
		if value >= tier.Threshold {
			return tier.Points
		}
	}
	return 0
}

func clamp(score int) int {
	if score < MinScore {
		return MinScore
	}
	if score > MaxScore {
		return MaxScore
	}
	return score
}

// StarRating maps a score linearly onto 1.0..5.0 stars, rounded to the
// nearest half star. Monotonic non-decreasing in the score.
func StarRating(score int) float64 {
	s := clamp(score)
	raw := 1.0 + float64(s-MinScore)/float64(MaxScore-MinScore)*4.0
	return math.Round(raw*2) / 2
}

// MaxLoanFor returns the lending limit for a score from the fixed step table
func MaxLoanFor(score int) float64 {
	switch {
	case score >= 90:
		return 1000
	case score >= 80:
		return 800
	case score >= 70:
		return 600
	case score >= 60:
		return 400
	case score >= 50:
		return 300
	case score >= 40:
		return 200
	case score >= 35:
		return 100
	default:
		return 50
	}
}

// TierLabelFor returns the public reputation label, keyed by the same
// thresholds as the loan-limit table
func TierLabelFor(score int) string {
	switch {
	case score >= 90:
		return "Excellent"
	case score >= 80:
		return "Great"
	case score >= 70:
		return "Good"
	case score >= 60:
		return "Fair"
	case score >= 50:
		return "Building"
	case score >= 40:
		return "Early"
	default:
		return "New"
	}
}

// InterestRateFor maps a score to the monthly interest-rate tier used when
// pricing an application. Single table on the unified 30-99 scale.
func InterestRateFor(score int) float64 {
	switch {
	case score >= 90:
		return 8.5
	case score >= 80:
		return 12.0
	case score >= 70:
		return 15.9
	case score >= 60:
		return 19.9
	default:
		return 24.9
	}
}
