package repository

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	apperrors "github.com/zimlend/lending-api/internal/errors"
	"github.com/zimlend/lending-api/internal/scoring"
)

// scoreRepository implements ScoreRepository
type scoreRepository struct {
	db dbExecutor
}

// NewScoreRepository creates a new score repository
func NewScoreRepository(db dbExecutor) ScoreRepository {
	return &scoreRepository{db: db}
}

// GetScore retrieves a borrower's score record
func (r *scoreRepository) GetScore(borrowerID uuid.UUID) (*scoring.ScoreRecord, error) {
	query := `
		SELECT borrower_id, score_value, star_rating, max_loan_amount, reputation_tier,
		       score_factors, calculation_method, version, created_at, updated_at
		FROM borrower_scores
		WHERE borrower_id = $1
	`

	var record scoring.ScoreRecord
	var factorsJSON []byte
	err := r.db.QueryRow(query, borrowerID).Scan(
		&record.BorrowerID, &record.ScoreValue, &record.StarRating,
		&record.MaxLoanAmount, &record.ReputationTier, &factorsJSON,
		&record.CalculationMethod, &record.Version, &record.CreatedAt, &record.UpdatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get score: %w", err)
	}

	if err := json.Unmarshal(factorsJSON, &record.ScoreFactors); err != nil {
		return nil, fmt.Errorf("failed to unmarshal score factors: %w", err)
	}
	return &record, nil
}

// UpsertScore writes a score record guarded by optimistic versioning.
// expectedVersion 0 inserts a brand-new record; any other value updates only
// if the stored row is still at that version. A miss on either path means a
// concurrent writer won, and the caller must re-read and recompute.
func (r *scoreRepository) UpsertScore(record *scoring.ScoreRecord, expectedVersion int) error {
	factorsJSON, err := json.Marshal(record.ScoreFactors)
	if err != nil {
		return fmt.Errorf("failed to marshal score factors: %w", err)
	}

	if expectedVersion == 0 {
		query := `
			INSERT INTO borrower_scores
				(borrower_id, score_value, star_rating, max_loan_amount, reputation_tier,
				 score_factors, calculation_method, version, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, 1, $8, $9)
			ON CONFLICT (borrower_id) DO NOTHING
		`
		now := time.Now()
		result, err := r.db.Exec(query, record.BorrowerID, record.ScoreValue, record.StarRating,
			record.MaxLoanAmount, record.ReputationTier, factorsJSON,
			record.CalculationMethod, now, now)
		if err != nil {
			return fmt.Errorf("failed to insert score: %w", err)
		}
		rows, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("failed to get rows affected: %w", err)
		}
		if rows == 0 {
			return apperrors.ScoreUpdateConflict(record.BorrowerID.String(), expectedVersion)
		}
		record.Version = 1
		return nil
	}

	query := `
		UPDATE borrower_scores
		SET score_value = $2, star_rating = $3, max_loan_amount = $4,
		    reputation_tier = $5, score_factors = $6, calculation_method = $7,
		    version = version + 1, updated_at = $8
		WHERE borrower_id = $1 AND version = $9
	`
	result, err := r.db.Exec(query, record.BorrowerID, record.ScoreValue, record.StarRating,
		record.MaxLoanAmount, record.ReputationTier, factorsJSON,
		record.CalculationMethod, time.Now(), expectedVersion)
	if err != nil {
		return fmt.Errorf("failed to update score: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return apperrors.ScoreUpdateConflict(record.BorrowerID.String(), expectedVersion)
	}
	record.Version = expectedVersion + 1
	return nil
}

// AppendScoreHistory writes one immutable transition entry
func (r *scoreRepository) AppendScoreHistory(entry *scoring.ScoreHistoryEntry) error {
	detailsJSON, err := json.Marshal(entry.Details)
	if err != nil {
		return fmt.Errorf("failed to marshal history details: %w", err)
	}

	query := `
		INSERT INTO score_history
			(id, borrower_id, old_score, new_score, old_star_rating, new_star_rating,
			 old_max_loan, new_max_loan, reason, details, loan_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`
	_, err = r.db.Exec(query, entry.ID, entry.BorrowerID, entry.OldScore, entry.NewScore,
		entry.OldStarRating, entry.NewStarRating, entry.OldMaxLoan, entry.NewMaxLoan,
		entry.Reason, detailsJSON, entry.LoanID, entry.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to append score history: %w", err)
	}
	return nil
}

// GetScoreHistory returns the most recent transitions for a borrower
func (r *scoreRepository) GetScoreHistory(borrowerID uuid.UUID, limit int) ([]scoring.ScoreHistoryEntry, error) {
	if limit <= 0 {
		limit = 50
	}
	query := `
		SELECT id, borrower_id, old_score, new_score, old_star_rating, new_star_rating,
		       old_max_loan, new_max_loan, reason, details, loan_id, created_at
		FROM score_history
		WHERE borrower_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`

	rows, err := r.db.Query(query, borrowerID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query score history: %w", err)
	}
	defer rows.Close()

	var entries []scoring.ScoreHistoryEntry
	for rows.Next() {
		var entry scoring.ScoreHistoryEntry
		var detailsJSON []byte
		err := rows.Scan(&entry.ID, &entry.BorrowerID, &entry.OldScore, &entry.NewScore,
			&entry.OldStarRating, &entry.NewStarRating, &entry.OldMaxLoan, &entry.NewMaxLoan,
			&entry.Reason, &detailsJSON, &entry.LoanID, &entry.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan history entry: %w", err)
		}
		if err := json.Unmarshal(detailsJSON, &entry.Details); err != nil {
			return nil, fmt.Errorf("failed to unmarshal history details: %w", err)
		}
		entries = append(entries, entry)
	}
	return entries, nil
}
