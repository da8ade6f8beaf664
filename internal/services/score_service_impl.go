package services

import (
	"io"
	"time"

	"github.com/google/uuid"
	"github.com/zimlend/lending-api/internal/errors"
	"github.com/zimlend/lending-api/internal/logger"
	"github.com/zimlend/lending-api/internal/repository"
	"github.com/zimlend/lending-api/internal/scoring"
	"github.com/zimlend/lending-api/internal/statement"
)

const (
	conflictRetries = 3
	conflictBackoff = 50 * time.Millisecond
)

// scoreServiceImpl implements ScoreService
type scoreServiceImpl struct {
	repos  *repository.Repositories
	engine *scoring.Engine
	parser *statement.Parser
	log    logger.Logger
}

// newScoreService creates a new score service implementation
func newScoreService(repos *repository.Repositories, engine *scoring.Engine, log logger.Logger) *scoreServiceImpl {
	return &scoreServiceImpl{
		repos:  repos,
		engine: engine,
		parser: statement.NewParser(),
		log:    log,
	}
}

// GetScore returns the borrower's current score record
func (s *scoreServiceImpl) GetScore(borrowerID uuid.UUID) (*scoring.ScoreRecord, error) {
	record, err := s.repos.Score.GetScore(borrowerID)
	if err != nil {
		if err == repository.ErrNotFound {
			return nil, errors.NoExistingScore(borrowerID.String())
		}
		return nil, errors.DatabaseError("failed to load score", err)
	}
	return record, nil
}

// GetScoreHistory returns the most recent score transitions, newest first
func (s *scoreServiceImpl) GetScoreHistory(borrowerID uuid.UUID, limit int) ([]scoring.ScoreHistoryEntry, error) {
	entries, err := s.repos.Score.GetScoreHistory(borrowerID, limit)
	if err != nil {
		return nil, errors.DatabaseError("failed to load score history", err)
	}
	return entries, nil
}

// ColdStartFromStatement initializes a score from an HTML bank-statement
// export. Fails when the borrower already has a score or the statement yields
// no usable transactions.
func (s *scoreServiceImpl) ColdStartFromStatement(borrowerID uuid.UUID, statementHTML io.Reader) (*scoring.ScoreRecord, error) {
	if _, err := s.repos.Score.GetScore(borrowerID); err == nil {
		return nil, errors.Conflict("score already initialized for borrower", nil).
			WithOperation("ColdStartFromStatement")
	} else if err != repository.ErrNotFound {
		return nil, errors.DatabaseError("failed to check existing score", err)
	}

	transactions, err := s.parser.Parse(statementHTML)
	if err != nil {
		return nil, errors.MissingStatementData(err.Error())
	}

	metrics := statement.ComputeMetrics(transactions)
	record, err := s.engine.ColdStart(borrowerID, metrics)
	if err != nil {
		return nil, err
	}

	// expectedVersion 0: insert only, a concurrent cold start loses
	if err := s.repos.Score.UpsertScore(record, 0); err != nil {
		return nil, err
	}

	entry := &scoring.ScoreHistoryEntry{
		ID:            uuid.New(),
		BorrowerID:    borrowerID,
		OldScore:      0,
		NewScore:      record.ScoreValue,
		NewStarRating: record.StarRating,
		NewMaxLoan:    record.MaxLoanAmount,
		Reason:        "cold_start",
		Details: map[string]interface{}{
			"cash_flow_ratio":     metrics.CashFlowRatio,
			"avg_ending_balance":  metrics.AvgEndingBalance,
			"balance_consistency": metrics.BalanceConsistencyScore,
			"nsf_events":          metrics.NSFEvents,
			"transaction_count":   metrics.TransactionCount,
		},
		CreatedAt: time.Now(),
	}
	if err := s.repos.Score.AppendScoreHistory(entry); err != nil {
		s.log.Error("failed to append cold-start history", err, "borrower_id", borrowerID.String())
	}

	s.log.Info("cold start complete",
		"borrower_id", borrowerID.String(),
		"score", record.ScoreValue,
		"star_rating", record.StarRating,
		"max_loan", record.MaxLoanAmount)
	return record, nil
}

// ApplyEvent runs one loan lifecycle event through the trust loop. The
// read-compute-write cycle retries on version conflict so two settlements
// landing together both take effect.
func (s *scoreServiceImpl) ApplyEvent(borrowerID uuid.UUID, event scoring.LoanEvent) (*scoring.ScoreRecord, error) {
	var lastErr error
	for attempt := 0; attempt < conflictRetries; attempt++ {
		if attempt > 0 {
			time.Sleep(conflictBackoff * time.Duration(attempt))
		}

		existing, err := s.repos.Score.GetScore(borrowerID)
		if err != nil {
			if err == repository.ErrNotFound {
				return nil, errors.NoExistingScore(borrowerID.String())
			}
			return nil, errors.DatabaseError("failed to load score", err)
		}

		history, err := s.borrowerHistory(borrowerID)
		if err != nil {
			return nil, err
		}

		updated, entry, err := s.engine.ApplyEvent(existing, event, *history)
		if err != nil {
			return nil, err
		}

		if err := s.repos.Score.UpsertScore(updated, existing.Version); err != nil {
			if errors.HasCode(err, errors.ErrCodeScoreUpdateConflict) {
				lastErr = err
				s.log.Warn("score update conflict, retrying",
					"borrower_id", borrowerID.String(),
					"attempt", attempt+1)
				continue
			}
			return nil, err
		}

		if err := s.repos.Score.AppendScoreHistory(entry); err != nil {
			s.log.Error("failed to append score history", err, "borrower_id", borrowerID.String())
		}

		s.log.Info("score event applied",
			"borrower_id", borrowerID.String(),
			"event", string(event.Type),
			"old_score", entry.OldScore,
			"new_score", entry.NewScore)
		return updated, nil
	}
	return nil, lastErr
}

// borrowerHistory assembles the population view the engine needs from the
// loan store and account record
func (s *scoreServiceImpl) borrowerHistory(borrowerID uuid.UUID) (*scoring.BorrowerHistory, error) {
	summary, err := s.repos.Loan.CompletedLoanSummary(borrowerID)
	if err != nil {
		return nil, errors.DatabaseError("failed to load loan summary", err)
	}

	user, err := s.repos.User.GetByID(borrowerID)
	if err != nil {
		return nil, errors.DatabaseError("failed to load borrower account", err)
	}

	return &scoring.BorrowerHistory{
		CompletedLoans:      summary.CompletedLoans,
		OnTimeRatePct:       summary.OnTimeRatePct(),
		LargestRepaidAmount: summary.LargestAmount,
		MonthsOnPlatform:    user.MonthsOnPlatform(time.Now()),
	}, nil
}
