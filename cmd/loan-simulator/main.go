package main

import (
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/zimlend/lending-api/internal/logger"
	"github.com/zimlend/lending-api/internal/pricing"
	"github.com/zimlend/lending-api/internal/schedule"
	"github.com/zimlend/lending-api/internal/scoring"
	"github.com/zimlend/lending-api/internal/statement"
)

// A small but realistic statement: steady salary credits, regular spending,
// one bounced debit order.
const sampleStatement = `
<table>
  <tr><th>Date</th><th>Description</th><th>Credit</th><th>Debit</th><th>Balance</th></tr>
  <tr><td>2026-03-25</td><td>Salary - Acme Holdings</td><td>620.00</td><td></td><td>695.40</td></tr>
  <tr><td>2026-03-28</td><td>Groceries OK Mart</td><td></td><td>110.00</td><td>585.40</td></tr>
  <tr><td>2026-04-02</td><td>Rent payment</td><td></td><td>250.00</td><td>335.40</td></tr>
  <tr><td>2026-04-25</td><td>Salary - Acme Holdings</td><td>620.00</td><td></td><td>955.40</td></tr>
  <tr><td>2026-04-27</td><td>Debit order returned unpaid - NSF</td><td></td><td>45.00</td><td>910.40</td></tr>
  <tr><td>2026-05-03</td><td>Rent payment</td><td></td><td>250.00</td><td>660.40</td></tr>
  <tr><td>2026-05-25</td><td>Salary - Acme Holdings</td><td>620.00</td><td></td><td>1280.40</td></tr>
  <tr><td>2026-05-29</td><td>School fees</td><td></td><td>180.00</td><td>1100.40</td></tr>
</table>`

func main() {
	fmt.Println("💳 Lending Platform Loan Simulator")
	fmt.Println("==================================")

	engine := scoring.NewEngine(scoring.DefaultWeights())
	calculator := pricing.NewCalculator(pricing.DefaultFeeSchedule(), logger.New())
	borrowerID := uuid.New()

	// Step 1: cold start from a bank statement
	fmt.Println("\n🔹 Step 1: Cold Start from Bank Statement")
	fmt.Println("=========================================")

	parser := statement.NewParser()
	transactions, err := parser.Parse(strings.NewReader(sampleStatement))
	if err != nil {
		log.Fatalf("Error parsing statement: %v", err)
	}
	metrics := statement.ComputeMetrics(transactions)
	fmt.Printf("Parsed %d transactions across statement\n", metrics.TransactionCount)
	fmt.Printf("Cash flow ratio: %.2f\n", metrics.CashFlowRatio)
	fmt.Printf("Avg ending balance: %.2f\n", metrics.AvgEndingBalance)
	fmt.Printf("Balance consistency: %.1f/10\n", metrics.BalanceConsistencyScore)
	fmt.Printf("NSF events: %d\n", metrics.NSFEvents)

	record, err := engine.ColdStart(borrowerID, metrics)
	if err != nil {
		log.Fatalf("Error running cold start: %v", err)
	}
	printScore("After cold start", record)

	// Step 2: price a loan at the borrower's tier
	fmt.Println("\n🔸 Step 2: Pricing a Loan Application")
	fmt.Println("=====================================")

	amount := 300.0
	termMonths := 6
	rate := scoring.InterestRateFor(record.ScoreValue)
	fmt.Printf("Requested: %.2f over %d months at %.1f%%/month (score tier %s)\n",
		amount, termMonths, rate, record.ReputationTier)

	quote, err := calculator.PriceLoan(amount, rate, termMonths)
	if err != nil {
		log.Fatalf("Error pricing loan: %v", err)
	}

	fmt.Printf("Net amount received: %.2f (upfront fees %.2f)\n",
		quote.NetAmountReceived, quote.UpfrontFees.Total)
	fmt.Printf("Monthly payment: %.2f (principal %.2f + interest %.2f + fees %.2f)\n",
		quote.MonthlyBreakdown.TotalPayment,
		quote.MonthlyBreakdown.Principal,
		quote.MonthlyBreakdown.Interest,
		quote.MonthlyBreakdown.TenureFee+quote.MonthlyBreakdown.CollectionFee)
	fmt.Printf("Total repayment: %.2f\n", quote.TotalCosts.TotalRepayment)
	fmt.Printf("True annual effective rate: %.1f%%\n", quote.TrueAnnualEffectiveRate)

	// Step 3: build the repayment schedule
	fmt.Println("\n🔹 Step 3: Repayment Schedule")
	fmt.Println("=============================")

	loanID := uuid.New()
	monthlyFee := quote.MonthlyBreakdown.TenureFee + quote.MonthlyBreakdown.CollectionFee
	installments, err := schedule.Build(loanID, amount,
		quote.MonthlyBreakdown.Interest, quote.MonthlyBreakdown.Principal,
		monthlyFee, termMonths, time.Now())
	if err != nil {
		log.Fatalf("Error building schedule: %v", err)
	}

	for _, inst := range installments {
		grace := "24h grace"
		if inst.IsFirstPayment {
			grace = "35d grace"
		}
		fmt.Printf("  #%d due %s  pay %.2f  remaining %.2f  (%s)\n",
			inst.InstallmentNumber, inst.DueDate.Format("2006-01-02"),
			inst.TotalAmount, inst.RemainingBalance, grace)
	}

	// Step 4: run the trust loop through a full loan lifecycle
	fmt.Println("\n🔸 Step 4: Trust Loop Events")
	fmt.Println("============================")

	history := scoring.BorrowerHistory{}
	events := []scoring.LoanEvent{
		{Type: scoring.EventFunded, LoanID: &loanID, Amount: amount, OccurredAt: time.Now()},
		{Type: scoring.EventRepaidOnTime, LoanID: &loanID, Amount: amount, OccurredAt: time.Now()},
	}

	for _, event := range events {
		if event.Type == scoring.EventRepaidOnTime {
			// the repaid loan is now part of the borrower's record
			history = scoring.BorrowerHistory{
				CompletedLoans:      1,
				OnTimeRatePct:       100,
				LargestRepaidAmount: amount,
				MonthsOnPlatform:    1,
			}
		}
		updated, entry, err := engine.ApplyEvent(record, event, history)
		if err != nil {
			log.Fatalf("Error applying %s: %v", event.Type, err)
		}
		fmt.Printf("%s: %d → %d (%s)\n", event.Type, entry.OldScore, entry.NewScore, entry.Reason)
		record = updated
	}

	printScore("After first repaid loan", record)

	fmt.Println("\n💳 Simulation Complete!")
	fmt.Println("=======================")
	fmt.Printf("✅ Borrower limit grew from cold start to %.2f\n", record.MaxLoanAmount)
	fmt.Printf("✅ Next loan would price at %.1f%%/month\n", scoring.InterestRateFor(record.ScoreValue))
}

func printScore(label string, record *scoring.ScoreRecord) {
	fmt.Printf("\n%s:\n", label)
	fmt.Printf("Score: %d (%s, %.1f stars)\n", record.ScoreValue, record.ReputationTier, record.StarRating)
	fmt.Printf("Max loan amount: %.2f\n", record.MaxLoanAmount)
	fmt.Printf("Method: %s, version %d\n", record.CalculationMethod, record.Version)

	factors, err := json.MarshalIndent(record.ScoreFactors, "", "  ")
	if err != nil {
		log.Fatalf("Error rendering score factors: %v", err)
	}
	fmt.Printf("Factors: %s\n", factors)
}
