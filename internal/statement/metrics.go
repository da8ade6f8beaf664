package statement

import (
	"math"
	"strings"
	"time"
)

// Transaction is one parsed bank-statement line
type Transaction struct {
	Date        time.Time `json:"date"`
	Description string    `json:"description"`
	Credit      float64   `json:"credit"`
	Debit       float64   `json:"debit"`
	Balance     float64   `json:"balance"`
}

// Metrics are the cold-start inputs derived from a statement. Every field is
// a deterministic pure function of the transaction list.
type Metrics struct {
	CashFlowRatio           float64 `json:"cash_flow_ratio"`
	AvgEndingBalance        float64 `json:"avg_ending_balance"`
	BalanceConsistencyScore float64 `json:"balance_consistency_score"` // 0-10
	NSFEvents               int     `json:"nsf_events"`
	AvgMonthlyIncome        float64 `json:"avg_monthly_income"`
	TransactionCount        int     `json:"transaction_count"`
}

// HasData reports whether the metrics carry enough signal for a cold start.
// Cash-flow ratio and consistency are the required inputs; a statement with
// no transactions yields neither.
func (m Metrics) HasData() bool {
	return m.TransactionCount > 0
}

// nsfIndicators are matched case-insensitively against transaction
// descriptions to count insufficient-funds events
var nsfIndicators = []string{
	"nsf",
	"insufficient funds",
	"returned unpaid",
	"unpaid item",
	"dishonoured",
	"dishonored",
}

// ComputeMetrics derives cold-start metrics from a transaction list
func ComputeMetrics(transactions []Transaction) Metrics {
	if len(transactions) == 0 {
		return Metrics{}
	}

	var totalCredits, totalDebits float64
	months := map[string]struct{}{}
	nsf := 0

	for _, tx := range transactions {
		totalCredits += tx.Credit
		totalDebits += tx.Debit
		months[tx.Date.Format("2006-01")] = struct{}{}
		if isNSF(tx.Description) {
			nsf++
		}
	}

	ratio := 0.0
	if totalDebits > 0 {
		ratio = totalCredits / totalDebits
	}

	monthEnds := monthEndBalances(transactions)

	income := 0.0
	if len(months) > 0 {
		income = totalCredits / float64(len(months))
	}

	return Metrics{
		CashFlowRatio:           round2(ratio),
		AvgEndingBalance:        round2(mean(monthEnds)),
		BalanceConsistencyScore: consistencyScore(monthEnds),
		NSFEvents:               nsf,
		AvgMonthlyIncome:        round2(income),
		TransactionCount:        len(transactions),
	}
}

func isNSF(description string) bool {
	desc := strings.ToLower(description)
	for _, indicator := range nsfIndicators {
		if strings.Contains(desc, indicator) {
			return true
		}
	}
	return false
}

// monthEndBalances picks the balance of the last transaction in each calendar
// month, preserving statement order within a month.
func monthEndBalances(transactions []Transaction) []float64 {
	type monthState struct {
		last  time.Time
		value float64
	}
	byMonth := map[string]monthState{}
	var order []string

	for _, tx := range transactions {
		key := tx.Date.Format("2006-01")
		state, seen := byMonth[key]
		if !seen {
			order = append(order, key)
		}
		if !seen || !tx.Date.Before(state.last) {
			byMonth[key] = monthState{last: tx.Date, value: tx.Balance}
		}
	}

	out := make([]float64, 0, len(order))
	for _, key := range order {
		out = append(out, byMonth[key].value)
	}
	return out
}

// consistencyScore maps the coefficient of variation of month-end balances
// onto a 0-10 scale; perfectly stable balances score 10, highly volatile
// balances trend toward 0.
func consistencyScore(balances []float64) float64 {
	if len(balances) == 0 {
		return 0
	}
	m := mean(balances)
	if m <= 0 {
		return 0
	}
	cv := stddev(balances, m) / m
	return round2(10 / (1 + cv))
}

func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

func stddev(values []float64, mean float64) float64 {
	if len(values) < 2 {
		return 0
	}
	var sq float64
	for _, v := range values {
		d := v - mean
		sq += d * d
	}
	return math.Sqrt(sq / float64(len(values)))
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
