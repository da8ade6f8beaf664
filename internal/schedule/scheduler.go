package schedule

import (
	"math"
	"time"

	"github.com/google/uuid"
	apperrors "github.com/zimlend/lending-api/internal/errors"
)

// InstallmentStatus represents an installment's settlement state
type InstallmentStatus string

const (
	StatusPending   InstallmentStatus = "pending"
	StatusPaid      InstallmentStatus = "paid"
	StatusLate      InstallmentStatus = "late"
	StatusDefaulted InstallmentStatus = "defaulted"
)

// Grace windows. The first installment gets a long runway because the first
// payment is the hardest one for a new borrower; every later installment gets
// 24 hours. The asymmetry is intentional.
const (
	FirstPaymentGrace      = 35 * 24 * time.Hour
	SubsequentPaymentGrace = 24 * time.Hour
)

// Installment is one row of an amortization table
type Installment struct {
	ID                uuid.UUID         `json:"id" db:"id"`
	LoanID            uuid.UUID         `json:"loan_id" db:"loan_id"`
	InstallmentNumber int               `json:"installment_number" db:"installment_number"`
	DueDate           time.Time         `json:"due_date" db:"due_date"`
	PrincipalAmount   float64           `json:"principal_amount" db:"principal_amount"`
	InterestAmount    float64           `json:"interest_amount" db:"interest_amount"`
	FeeAmount         float64           `json:"fee_amount" db:"fee_amount"`
	TotalAmount       float64           `json:"total_amount" db:"total_amount"`
	RemainingBalance  float64           `json:"remaining_balance" db:"remaining_balance"`
	GracePeriodEnd    time.Time         `json:"grace_period_end" db:"grace_period_end"`
	IsFirstPayment    bool              `json:"is_first_payment" db:"is_first_payment"`
	Status            InstallmentStatus `json:"status" db:"status"`
	PaidAt            *time.Time        `json:"paid_at" db:"paid_at"`
}

// Lateness describes whether and by how much an installment ran past grace
type Lateness struct {
	IsLate   bool `json:"is_late"`
	DaysLate int  `json:"days_late"`
}

// Build constructs the full amortization table for a loan. Due dates advance
// by calendar months from the start date, not fixed 30-day steps. The
// remaining balance after installment k is loanAmount - k*monthlyPrincipal,
// floored at zero to absorb rounding.
func Build(loanID uuid.UUID, loanAmount, monthlyInterest, monthlyPrincipal, monthlyFee float64, termMonths int, startDate time.Time) ([]Installment, error) {
	if loanAmount <= 0 {
		return nil, apperrors.InvalidLoanParameters("loan amount must be positive")
	}
	if termMonths < 1 {
		return nil, apperrors.InvalidLoanParameters("term must be at least one month")
	}

	installments := make([]Installment, 0, termMonths)
	for k := 1; k <= termMonths; k++ {
		dueDate := startDate.AddDate(0, k, 0)

		grace := SubsequentPaymentGrace
		if k == 1 {
			grace = FirstPaymentGrace
		}

		remaining := loanAmount - float64(k)*monthlyPrincipal
		if remaining < 0 {
			remaining = 0
		}

		installments = append(installments, Installment{
			ID:                uuid.New(),
			LoanID:            loanID,
			InstallmentNumber: k,
			DueDate:           dueDate,
			PrincipalAmount:   monthlyPrincipal,
			InterestAmount:    monthlyInterest,
			FeeAmount:         monthlyFee,
			TotalAmount:       round2(monthlyPrincipal + monthlyInterest + monthlyFee),
			RemainingBalance:  round2(remaining),
			GracePeriodEnd:    dueDate.Add(grace),
			IsFirstPayment:    k == 1,
			Status:            StatusPending,
		})
	}
	return installments, nil
}

// CheckLateness determines whether an installment is (or was) late.
// Unpaid past grace: late as of now. Paid past grace: was late, measured at
// the payment time. Anything else: on time.
func CheckLateness(inst Installment, now time.Time) Lateness {
	switch inst.Status {
	case StatusPaid:
		if inst.PaidAt != nil && inst.PaidAt.After(inst.GracePeriodEnd) {
			return Lateness{IsLate: true, DaysLate: daysBetween(inst.GracePeriodEnd, *inst.PaidAt)}
		}
		return Lateness{}
	case StatusDefaulted:
		return Lateness{IsLate: true, DaysLate: daysBetween(inst.GracePeriodEnd, now)}
	default:
		if now.After(inst.GracePeriodEnd) {
			return Lateness{IsLate: true, DaysLate: daysBetween(inst.GracePeriodEnd, now)}
		}
		return Lateness{}
	}
}

// LateInstallments returns the unpaid installments past their grace window
func LateInstallments(installments []Installment, now time.Time) []Installment {
	var late []Installment
	for _, inst := range installments {
		if inst.Status == StatusPending && now.After(inst.GracePeriodEnd) {
			late = append(late, inst)
		}
	}
	return late
}

// DueWithin returns pending installments whose due date falls within the next
// `days` days. Used to drive payment reminders.
func DueWithin(installments []Installment, now time.Time, days int) []Installment {
	cutoff := now.AddDate(0, 0, days)
	var upcoming []Installment
	for _, inst := range installments {
		if inst.Status != StatusPending {
			continue
		}
		if inst.DueDate.After(now) && !inst.DueDate.After(cutoff) {
			upcoming = append(upcoming, inst)
		}
	}
	return upcoming
}

func daysBetween(from, to time.Time) int {
	if !to.After(from) {
		return 0
	}
	return int(to.Sub(from).Hours() / 24)
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
