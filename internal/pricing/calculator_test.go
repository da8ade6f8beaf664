package pricing

import (
	"math"
	"testing"

	apperrors "github.com/zimlend/lending-api/internal/errors"
)

func newTestCalculator() *Calculator {
	return NewCalculator(DefaultFeeSchedule(), nil)
}

func TestPriceLoan_RejectsOutOfBoundsParameters(t *testing.T) {
	calc := newTestCalculator()

	testCases := []struct {
		name   string
		amount float64
		rate   float64
		term   int
	}{
		{name: "Zero amount", amount: 0, rate: 10, term: 12},
		{name: "Negative amount", amount: -500, rate: 10, term: 12},
		{name: "Negative rate", amount: 1000, rate: -1, term: 12},
		{name: "Rate above 100", amount: 1000, rate: 101, term: 12},
		{name: "Zero term", amount: 1000, rate: 10, term: 0},
		{name: "Term above 60", amount: 1000, rate: 10, term: 61},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := calc.PriceLoan(tc.amount, tc.rate, tc.term)
			if err == nil {
				t.Fatal("Expected error, got nil")
			}
			if !apperrors.HasCode(err, apperrors.ErrCodeInvalidLoanParameters) {
				t.Errorf("Expected INVALID_LOAN_PARAMETERS, got %v", err)
			}
		})
	}
}

func TestPriceLoan_NetAmountFollowsFeeConstants(t *testing.T) {
	calc := newTestCalculator()

	pricing, err := calc.PriceLoan(1000, 2.5, 12)
	if err != nil {
		t.Fatalf("Failed to price loan: %v", err)
	}

	if pricing.UpfrontFees.Service != 100.00 {
		t.Errorf("Expected service fee 100.00, got %.2f", pricing.UpfrontFees.Service)
	}
	if pricing.UpfrontFees.Insurance != 30.00 {
		t.Errorf("Expected insurance fee 30.00, got %.2f", pricing.UpfrontFees.Insurance)
	}
	if pricing.NetAmountReceived != 870.00 {
		t.Errorf("Expected net amount 870.00, got %.2f", pricing.NetAmountReceived)
	}

	// Net ratio must be derived from the schedule, not assumed
	fees := calc.Fees()
	wantNet := 1000 * (100 - fees.ServiceFeePct - fees.InsuranceFeePct) / 100
	if math.Abs(pricing.NetAmountReceived-wantNet) > 0.01 {
		t.Errorf("Net amount %.2f does not match fee schedule expectation %.2f", pricing.NetAmountReceived, wantNet)
	}
}

func TestPriceLoan_FlatInterestModel(t *testing.T) {
	calc := newTestCalculator()

	pricing, err := calc.PriceLoan(1200, 5, 12)
	if err != nil {
		t.Fatalf("Failed to price loan: %v", err)
	}

	// Flat interest: 5% of original principal, every month, no decline
	if pricing.MonthlyBreakdown.Interest != 60.00 {
		t.Errorf("Expected flat monthly interest 60.00, got %.2f", pricing.MonthlyBreakdown.Interest)
	}
	if pricing.MonthlyBreakdown.Principal != 100.00 {
		t.Errorf("Expected straight-line principal 100.00, got %.2f", pricing.MonthlyBreakdown.Principal)
	}
	if pricing.TotalCosts.TotalInterest != 720.00 {
		t.Errorf("Expected total interest 720.00, got %.2f", pricing.TotalCosts.TotalInterest)
	}
}

func TestPriceLoan_MonthlyFeesFromSchedule(t *testing.T) {
	calc := newTestCalculator()

	pricing, err := calc.PriceLoan(1000, 2.5, 10)
	if err != nil {
		t.Fatalf("Failed to price loan: %v", err)
	}

	// Tenure fee: 0.5% of principal. Collection fee: 1% of the flat payment
	// (principal portion + interest).
	if pricing.MonthlyBreakdown.TenureFee != 5.00 {
		t.Errorf("Expected tenure fee 5.00, got %.2f", pricing.MonthlyBreakdown.TenureFee)
	}
	wantCollection := round2((100.00 + 25.00) * 0.01)
	if pricing.MonthlyBreakdown.CollectionFee != wantCollection {
		t.Errorf("Expected collection fee %.2f, got %.2f", wantCollection, pricing.MonthlyBreakdown.CollectionFee)
	}

	wantTotal := round2(100.00 + 25.00 + 5.00 + wantCollection)
	if pricing.MonthlyBreakdown.TotalPayment != wantTotal {
		t.Errorf("Expected total payment %.2f, got %.2f", wantTotal, pricing.MonthlyBreakdown.TotalPayment)
	}
}

func TestTAER_ExactFormula(t *testing.T) {
	// (1300-870)/870 / 12 * 12 * 100 = 49.4252... -> 49.43
	got := taer(1300, 870, 12)
	if got != 49.43 {
		t.Errorf("Expected TAER 49.43, got %.2f", got)
	}

	// Degenerate net amount must not divide by zero
	if taer(1300, 0, 12) != 0 {
		t.Error("Expected TAER 0 for zero net amount")
	}
}

func TestLateFee(t *testing.T) {
	calc := newTestCalculator()

	testCases := []struct {
		name     string
		payment  float64
		daysLate int
		wantFee  float64
	}{
		{name: "Not late", payment: 100, daysLate: 0, wantFee: 0},
		{name: "Negative days", payment: 100, daysLate: -5, wantFee: 0},
		{name: "Five days late", payment: 100, daysLate: 5, wantFee: 5.00},
		{name: "Capped at 20 percent", payment: 100, daysLate: 45, wantFee: 20.00},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			result := calc.LateFee(tc.payment, tc.daysLate)
			if result.LateFee != tc.wantFee {
				t.Errorf("Expected late fee %.2f, got %.2f", tc.wantFee, result.LateFee)
			}
			if result.TotalDue != round2(tc.payment+tc.wantFee) {
				t.Errorf("Expected total due %.2f, got %.2f", tc.payment+tc.wantFee, result.TotalDue)
			}
			wantPlatform := round2(tc.wantFee / 2)
			if result.PlatformShare != wantPlatform {
				t.Errorf("Expected platform share %.2f, got %.2f", wantPlatform, result.PlatformShare)
			}
			if round2(result.PlatformShare+result.LenderShare) != tc.wantFee {
				t.Errorf("Shares %.2f + %.2f do not sum to fee %.2f", result.PlatformShare, result.LenderShare, tc.wantFee)
			}
		})
	}
}

func BenchmarkPriceLoan(b *testing.B) {
	calc := newTestCalculator()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := calc.PriceLoan(1000, 2.5, 12); err != nil {
			b.Fatalf("Pricing failed: %v", err)
		}
	}
}
