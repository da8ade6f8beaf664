package scoring

import (
	"testing"

	"github.com/google/uuid"
	apperrors "github.com/zimlend/lending-api/internal/errors"
	"github.com/zimlend/lending-api/internal/statement"
)

func newTestEngine() *Engine {
	return NewEngine(DefaultWeights())
}

func TestColdStart_KnownScenario(t *testing.T) {
	engine := newTestEngine()

	metrics := statement.Metrics{
		CashFlowRatio:           1.3,
		AvgEndingBalance:        250,
		BalanceConsistencyScore: 8,
		NSFEvents:               0,
		TransactionCount:        42,
	}

	record, err := engine.ColdStart(uuid.New(), metrics)
	if err != nil {
		t.Fatalf("Cold start failed: %v", err)
	}

	// 35 base + 20 cash flow + 10 balance + 5 consistency + 5 clean NSF
	if record.ScoreValue != 75 {
		t.Errorf("Expected score 75, got %d", record.ScoreValue)
	}
	if record.StarRating != 3.5 {
		t.Errorf("Expected 3.5 stars, got %.1f", record.StarRating)
	}
	if record.MaxLoanAmount != 600 {
		t.Errorf("Expected max loan 600, got %.0f", record.MaxLoanAmount)
	}
	if record.ReputationTier != "Good" {
		t.Errorf("Expected tier Good, got %s", record.ReputationTier)
	}
	if record.CalculationMethod != MethodColdStart {
		t.Errorf("Expected cold_start method, got %s", record.CalculationMethod)
	}
	if record.Version != 1 {
		t.Errorf("Expected version 1, got %d", record.Version)
	}
}

func TestColdStart_RequiresStatementData(t *testing.T) {
	engine := newTestEngine()

	_, err := engine.ColdStart(uuid.New(), statement.Metrics{})
	if err == nil {
		t.Fatal("Expected error for empty metrics")
	}
	if !apperrors.HasCode(err, apperrors.ErrCodeMissingStatementData) {
		t.Errorf("Expected MISSING_STATEMENT_DATA, got %v", err)
	}
}

func TestColdStart_BoundsAlwaysHold(t *testing.T) {
	engine := newTestEngine()

	testCases := []struct {
		name    string
		metrics statement.Metrics
	}{
		{
			name: "Worst case clamps to floor",
			metrics: statement.Metrics{
				CashFlowRatio:           0.1,
				AvgEndingBalance:        0,
				BalanceConsistencyScore: 0,
				NSFEvents:               9,
				TransactionCount:        5,
			},
		},
		{
			name: "Best case stays under cap",
			metrics: statement.Metrics{
				CashFlowRatio:           5.0,
				AvgEndingBalance:        10000,
				BalanceConsistencyScore: 10,
				NSFEvents:               0,
				TransactionCount:        500,
			},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			record, err := engine.ColdStart(uuid.New(), tc.metrics)
			if err != nil {
				t.Fatalf("Cold start failed: %v", err)
			}
			if record.ScoreValue < MinScore || record.ScoreValue > MaxScore {
				t.Errorf("Score %d outside [%d,%d]", record.ScoreValue, MinScore, MaxScore)
			}
		})
	}
}

func TestColdStart_BalanceTiers(t *testing.T) {
	engine := newTestEngine()

	testCases := []struct {
		balance    float64
		wantPoints int
	}{
		{balance: 500, wantPoints: 10},
		{balance: 201, wantPoints: 10},
		{balance: 200, wantPoints: 6},
		{balance: 50, wantPoints: 6},
		{balance: 20, wantPoints: 2},
		{balance: 0, wantPoints: 0},
	}

	for _, tc := range testCases {
		metrics := statement.Metrics{
			CashFlowRatio:    0.5, // below all tiers, contributes nothing
			AvgEndingBalance: tc.balance,
			TransactionCount: 10,
		}
		record, err := engine.ColdStart(uuid.New(), metrics)
		if err != nil {
			t.Fatalf("Cold start failed: %v", err)
		}
		if got := record.ScoreFactors[FactorBalance]; got != tc.wantPoints {
			t.Errorf("Balance %.0f: expected %d points, got %d", tc.balance, tc.wantPoints, got)
		}
	}
}

func TestApplyEvent_LatePaymentBuckets(t *testing.T) {
	engine := newTestEngine()

	testCases := []struct {
		name      string
		daysLate  int
		wantDelta int
	}{
		{name: "One day", daysLate: 1, wantDelta: -2},
		{name: "Seven days", daysLate: 7, wantDelta: -2},
		{name: "Eight days", daysLate: 8, wantDelta: -5},
		{name: "Ten days", daysLate: 10, wantDelta: -5},
		{name: "Thirty days", daysLate: 30, wantDelta: -5},
		{name: "Thirty one days", daysLate: 31, wantDelta: -10},
		{name: "Ninety days", daysLate: 90, wantDelta: -10},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got := engine.eventDelta(LoanEvent{Type: EventRepaidLate, DaysLate: tc.daysLate})
			if got != tc.wantDelta {
				t.Errorf("Expected delta %d for %d days late, got %d", tc.wantDelta, tc.daysLate, got)
			}
		})
	}
}

// existingRecord builds a scored record whose population bonuses for the
// given history have already been applied, so only the event delta moves it
func existingRecord(score int, factors map[string]int) *ScoreRecord {
	if factors == nil {
		factors = map[string]int{}
	}
	return &ScoreRecord{
		BorrowerID:        uuid.New(),
		ScoreValue:        score,
		StarRating:        StarRating(score),
		MaxLoanAmount:     MaxLoanFor(score),
		ReputationTier:    TierLabelFor(score),
		ScoreFactors:      factors,
		CalculationMethod: MethodTrustLoop,
		Version:           3,
	}
}

func TestApplyEvent_LateScenario(t *testing.T) {
	engine := newTestEngine()

	// History bonuses already in effect on the record, so they contribute
	// zero and the 8-30 day bucket alone moves the score: 75 -> 70.
	history := BorrowerHistory{CompletedLoans: 1, OnTimeRatePct: 100, LargestRepaidAmount: 50, MonthsOnPlatform: 1}
	record := existingRecord(75, map[string]int{FactorOnTimeRate: 25})

	updated, entry, err := engine.ApplyEvent(record, LoanEvent{Type: EventRepaidLate, DaysLate: 10}, history)
	if err != nil {
		t.Fatalf("ApplyEvent failed: %v", err)
	}
	if updated.ScoreValue != 70 {
		t.Errorf("Expected score 70, got %d", updated.ScoreValue)
	}
	if entry.OldScore != 75 || entry.NewScore != 70 {
		t.Errorf("History entry has wrong transition: %d -> %d", entry.OldScore, entry.NewScore)
	}
	if updated.CalculationMethod != MethodTrustLoop {
		t.Errorf("Expected trust_loop method, got %s", updated.CalculationMethod)
	}

	// Original record must be untouched
	if record.ScoreValue != 75 {
		t.Errorf("Input record mutated: score %d", record.ScoreValue)
	}
}

func TestApplyEvent_RequiresExistingRecord(t *testing.T) {
	engine := newTestEngine()

	_, _, err := engine.ApplyEvent(nil, LoanEvent{Type: EventFunded}, BorrowerHistory{})
	if err == nil {
		t.Fatal("Expected error for nil record")
	}
	if !apperrors.HasCode(err, apperrors.ErrCodeNoExistingScore) {
		t.Errorf("Expected NO_EXISTING_SCORE, got %v", err)
	}
}

func TestApplyEvent_LateEventNeedsDaysLate(t *testing.T) {
	engine := newTestEngine()

	record := existingRecord(60, nil)
	_, _, err := engine.ApplyEvent(record, LoanEvent{Type: EventRepaidLate}, BorrowerHistory{})
	if err == nil {
		t.Fatal("Expected error for REPAID_LATE without daysLate")
	}
}

func TestApplyEvent_PopulationBonusesApplyOnce(t *testing.T) {
	engine := newTestEngine()

	history := BorrowerHistory{
		CompletedLoans:      3,
		OnTimeRatePct:       96,
		LargestRepaidAmount: 450,
		MonthsOnPlatform:    13,
	}
	record := existingRecord(60, nil)

	// First event: +3 on-time, +25 rate tier, +6 progressive, +3 tenure,
	// +5 multi-loan = +42, clamped to 99.
	first, _, err := engine.ApplyEvent(record, LoanEvent{Type: EventRepaidOnTime}, history)
	if err != nil {
		t.Fatalf("First ApplyEvent failed: %v", err)
	}
	if first.ScoreValue != 99 {
		t.Errorf("Expected first update to clamp at 99, got %d", first.ScoreValue)
	}

	// Second event with identical history: bonuses already flagged, only
	// the event delta applies, and the cap holds.
	second, _, err := engine.ApplyEvent(first, LoanEvent{Type: EventRepaidOnTime}, history)
	if err != nil {
		t.Fatalf("Second ApplyEvent failed: %v", err)
	}
	if second.ScoreValue != 99 {
		t.Errorf("Expected score to stay 99, got %d", second.ScoreValue)
	}
	if second.ScoreFactors[FactorMultipleLoans] != 5 {
		t.Errorf("Expected multi-loan factor to stay 5, got %d", second.ScoreFactors[FactorMultipleLoans])
	}
}

func TestApplyEvent_NoHistoryPenaltyExclusiveWithRateTier(t *testing.T) {
	engine := newTestEngine()

	// Funded event for a borrower with no completed loans: +2 funded, -10
	// no-history. No rate-tier bonus may coexist.
	record := existingRecord(75, nil)
	updated, _, err := engine.ApplyEvent(record, LoanEvent{Type: EventFunded}, BorrowerHistory{})
	if err != nil {
		t.Fatalf("ApplyEvent failed: %v", err)
	}
	if updated.ScoreValue != 67 {
		t.Errorf("Expected 75+2-10=67, got %d", updated.ScoreValue)
	}
	if _, exists := updated.ScoreFactors[FactorOnTimeRate]; exists {
		t.Error("Rate-tier bonus must not apply alongside the no-history penalty")
	}

	// First repayment completes: the penalty lifts and the tier applies.
	history := BorrowerHistory{CompletedLoans: 1, OnTimeRatePct: 100}
	after, _, err := engine.ApplyEvent(updated, LoanEvent{Type: EventRepaidOnTime}, history)
	if err != nil {
		t.Fatalf("ApplyEvent failed: %v", err)
	}
	if _, exists := after.ScoreFactors[FactorNoHistory]; exists {
		t.Error("No-history penalty must lift once completed loans exist")
	}
	// 67 +3 on-time +10 penalty lift +25 rate tier = clamp(105) = 99
	if after.ScoreValue != 99 {
		t.Errorf("Expected 99, got %d", after.ScoreValue)
	}
}

func TestStarRating_MonotonicAndBounded(t *testing.T) {
	prev := 0.0
	for score := MinScore; score <= MaxScore; score++ {
		stars := StarRating(score)
		if stars < prev {
			t.Errorf("Star rating decreased at score %d: %.1f < %.1f", score, stars, prev)
		}
		if stars < 1.0 || stars > 5.0 {
			t.Errorf("Star rating %.1f outside [1.0,5.0] at score %d", stars, score)
		}
		prev = stars
	}

	if StarRating(MinScore) != 1.0 {
		t.Errorf("Expected 1.0 stars at floor, got %.1f", StarRating(MinScore))
	}
	if StarRating(MaxScore) != 5.0 {
		t.Errorf("Expected 5.0 stars at cap, got %.1f", StarRating(MaxScore))
	}
}

func TestMaxLoanFor_StepTable(t *testing.T) {
	testCases := []struct {
		score int
		want  float64
	}{
		{score: 99, want: 1000},
		{score: 90, want: 1000},
		{score: 89, want: 800},
		{score: 75, want: 600},
		{score: 60, want: 400},
		{score: 55, want: 300},
		{score: 42, want: 200},
		{score: 35, want: 100},
		{score: 30, want: 50},
	}

	for _, tc := range testCases {
		if got := MaxLoanFor(tc.score); got != tc.want {
			t.Errorf("Score %d: expected limit %.0f, got %.0f", tc.score, tc.want, got)
		}
	}
}

func TestInterestRateFor_TierTable(t *testing.T) {
	testCases := []struct {
		score int
		want  float64
	}{
		{score: 95, want: 8.5},
		{score: 85, want: 12.0},
		{score: 73, want: 15.9},
		{score: 61, want: 19.9},
		{score: 45, want: 24.9},
	}

	for _, tc := range testCases {
		if got := InterestRateFor(tc.score); got != tc.want {
			t.Errorf("Score %d: expected rate %.1f, got %.1f", tc.score, tc.want, got)
		}
	}
}

func BenchmarkApplyEvent(b *testing.B) {
	engine := newTestEngine()
	history := BorrowerHistory{CompletedLoans: 2, OnTimeRatePct: 90, LargestRepaidAmount: 300, MonthsOnPlatform: 8}
	record := existingRecord(70, nil)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, _, err := engine.ApplyEvent(record, LoanEvent{Type: EventRepaidOnTime}, history); err != nil {
			b.Fatalf("ApplyEvent failed: %v", err)
		}
	}
}
