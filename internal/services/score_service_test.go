package services

import (
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/zimlend/lending-api/internal/errors"
	"github.com/zimlend/lending-api/internal/models"
	"github.com/zimlend/lending-api/internal/repository"
	"github.com/zimlend/lending-api/internal/scoring"
)

const statementHTML = `
<html><body>
<table>
  <tr><th>Date</th><th>Description</th><th>Debit</th><th>Credit</th><th>Balance</th></tr>
  <tr><td>2024-01-02</td><td>Salary payment</td><td></td><td>$600.00</td><td>$600.00</td></tr>
  <tr><td>2024-01-10</td><td>Groceries</td><td>$150.00</td><td></td><td>$450.00</td></tr>
  <tr><td>2024-02-02</td><td>Salary payment</td><td></td><td>$600.00</td><td>$1050.00</td></tr>
  <tr><td>2024-02-15</td><td>Utilities</td><td>$200.00</td><td></td><td>$850.00</td></tr>
</table>
</body></html>`

func newTestScoreService(repos *repository.Repositories) ScoreService {
	return newScoreService(repos, scoring.NewEngine(scoring.DefaultWeights()), testLogger())
}

func TestColdStartFromStatement(t *testing.T) {
	repos, scoreRepo, _, _, _ := testRepos()
	service := newTestScoreService(repos)
	borrowerID := uuid.New()

	record, err := service.ColdStartFromStatement(borrowerID, strings.NewReader(statementHTML))
	if err != nil {
		t.Fatalf("ColdStartFromStatement failed: %v", err)
	}

	if record.Version != 1 {
		t.Errorf("expected version 1, got %d", record.Version)
	}
	if record.CalculationMethod != scoring.MethodColdStart {
		t.Errorf("expected cold_start method, got %s", record.CalculationMethod)
	}
	if record.ScoreValue < scoring.MinScore || record.ScoreValue > scoring.MaxScore {
		t.Errorf("score %d out of bounds", record.ScoreValue)
	}

	stored, err := scoreRepo.GetScore(borrowerID)
	if err != nil {
		t.Fatalf("score not persisted: %v", err)
	}
	if stored.ScoreValue != record.ScoreValue {
		t.Errorf("persisted score %d, want %d", stored.ScoreValue, record.ScoreValue)
	}

	if len(scoreRepo.history) != 1 {
		t.Fatalf("expected 1 history entry, got %d", len(scoreRepo.history))
	}
	if scoreRepo.history[0].Reason != "cold_start" {
		t.Errorf("history reason = %q, want cold_start", scoreRepo.history[0].Reason)
	}
}

func TestColdStartRejectsExistingScore(t *testing.T) {
	repos, scoreRepo, _, _, _ := testRepos()
	service := newTestScoreService(repos)
	borrowerID := uuid.New()
	seedScore(scoreRepo, borrowerID, 60)

	_, err := service.ColdStartFromStatement(borrowerID, strings.NewReader(statementHTML))
	if !errors.HasCode(err, errors.ErrCodeConflict) {
		t.Fatalf("expected CONFLICT for repeat cold start, got %v", err)
	}
}

func TestColdStartRejectsEmptyStatement(t *testing.T) {
	repos, _, _, _, _ := testRepos()
	service := newTestScoreService(repos)

	_, err := service.ColdStartFromStatement(uuid.New(), strings.NewReader("<html><body><p>No table here</p></body></html>"))
	if !errors.HasCode(err, errors.ErrCodeMissingStatementData) {
		t.Fatalf("expected MISSING_STATEMENT_DATA, got %v", err)
	}
}

func TestApplyEventWithoutRecord(t *testing.T) {
	repos, _, _, _, _ := testRepos()
	service := newTestScoreService(repos)

	_, err := service.ApplyEvent(uuid.New(), scoring.LoanEvent{Type: scoring.EventFunded, OccurredAt: time.Now()})
	if !errors.HasCode(err, errors.ErrCodeNoExistingScore) {
		t.Fatalf("expected NO_EXISTING_SCORE, got %v", err)
	}
}

func TestApplyEventRetriesOnConflict(t *testing.T) {
	repos, scoreRepo, _, _, userRepo := testRepos()
	service := newTestScoreService(repos)
	borrowerID := uuid.New()
	seedScore(scoreRepo, borrowerID, 70)
	userRepo.users[borrowerID] = models.User{ID: borrowerID, CreatedAt: time.Now()}

	// two conflicts, then the third attempt lands
	scoreRepo.forceConflicts = 2

	record, err := service.ApplyEvent(borrowerID, scoring.LoanEvent{
		Type:       scoring.EventFunded,
		OccurredAt: time.Now(),
	})
	if err != nil {
		t.Fatalf("expected retry to succeed, got %v", err)
	}
	if record.CalculationMethod != scoring.MethodTrustLoop {
		t.Errorf("expected trust_loop method, got %s", record.CalculationMethod)
	}
	if scoreRepo.forceConflicts != 0 {
		t.Errorf("expected all forced conflicts consumed")
	}
}

func TestApplyEventGivesUpAfterRetries(t *testing.T) {
	repos, scoreRepo, _, _, userRepo := testRepos()
	service := newTestScoreService(repos)
	borrowerID := uuid.New()
	seedScore(scoreRepo, borrowerID, 70)
	userRepo.users[borrowerID] = models.User{ID: borrowerID, CreatedAt: time.Now()}

	scoreRepo.forceConflicts = 10

	_, err := service.ApplyEvent(borrowerID, scoring.LoanEvent{
		Type:       scoring.EventFunded,
		OccurredAt: time.Now(),
	})
	if !errors.HasCode(err, errors.ErrCodeScoreUpdateConflict) {
		t.Fatalf("expected SCORE_UPDATE_CONFLICT after exhausted retries, got %v", err)
	}
}

func TestApplyEventPersistsHistory(t *testing.T) {
	repos, scoreRepo, loanRepo, _, userRepo := testRepos()
	service := newTestScoreService(repos)
	borrowerID := uuid.New()
	seedScore(scoreRepo, borrowerID, 70)
	userRepo.users[borrowerID] = models.User{ID: borrowerID, CreatedAt: time.Now().AddDate(-1, 0, 0)}
	loanRepo.summary = repository.CompletedLoanSummary{CompletedLoans: 2, OnTimeLoans: 2, LargestAmount: 300}

	loanID := uuid.New()
	record, err := service.ApplyEvent(borrowerID, scoring.LoanEvent{
		Type:       scoring.EventRepaidOnTime,
		LoanID:     &loanID,
		Amount:     300,
		OccurredAt: time.Now(),
	})
	if err != nil {
		t.Fatalf("ApplyEvent failed: %v", err)
	}

	if record.ScoreValue <= 70 {
		t.Errorf("expected score above 70 after on-time repayment with clean history, got %d", record.ScoreValue)
	}

	entries, err := service.GetScoreHistory(borrowerID, 10)
	if err != nil {
		t.Fatalf("GetScoreHistory failed: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected 1 history entry, got %d", len(entries))
	}
	if entries[0].OldScore != 70 || entries[0].NewScore != record.ScoreValue {
		t.Errorf("history transition %d->%d, want 70->%d",
			entries[0].OldScore, entries[0].NewScore, record.ScoreValue)
	}
	if entries[0].LoanID == nil || *entries[0].LoanID != loanID {
		t.Error("expected history entry linked to loan")
	}
}
