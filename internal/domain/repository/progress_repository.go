package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"novalabs_hub/internal/common"
	"novalabs_hub/internal/domain/model"

	"github.com/google/uuid"
)

// ProgressRepository persists one row per (user, lab) pair. The mutating
// methods are single-statement upserts so two concurrent calls for the
// same pair serialize on the row and never lose an update: best values
// only ever move up, via GREATEST, inside the statement itself.
type ProgressRepository interface {
	Find(ctx context.Context, userID, labID string) (*model.ProgressRecord, error)
	ListByUser(ctx context.Context, userID string) ([]model.ProgressRecord, error)
	// RecordStart creates the record on first start, counts a new attempt
	// on a retake, and only refreshes the timestamp when the lab is
	// already in progress.
	RecordStart(ctx context.Context, userID, labID string, now time.Time) (*model.ProgressRecord, error)
	// RecordCompletion folds a finished attempt into the record. Returns
	// ErrNotFound when the pair has no record at all.
	RecordCompletion(ctx context.Context, userID, labID string, score, bonus float64, now time.Time) (*model.ProgressRecord, error)
	// Override sets best values directly, marks the record overridden, and
	// leaves the status untouched. Nil fields are left as they are.
	Override(ctx context.Context, userID, labID string, score, bonus *float64, notes *string) (*model.ProgressRecord, error)
}

type pgProgressRepository struct {
	db *sql.DB
}

func NewPgProgressRepository(db *sql.DB) ProgressRepository {
	return &pgProgressRepository{db: db}
}

const progressColumns = `id, user_id, lab_id, status, best_score, best_bonus, attempts, started_at, completed_at, last_attempt_at, score_overridden, instructor_notes`

func scanProgress(scan func(dest ...any) error) (*model.ProgressRecord, error) {
	rec := &model.ProgressRecord{}
	err := scan(
		&rec.ID, &rec.UserID, &rec.LabID, &rec.Status, &rec.BestScore, &rec.BestBonus,
		&rec.Attempts, &rec.StartedAt, &rec.CompletedAt, &rec.LastAttemptAt,
		&rec.ScoreOverridden, &rec.InstructorNotes,
	)
	if err != nil {
		return nil, err
	}
	return rec, nil
}

func (r *pgProgressRepository) Find(ctx context.Context, userID, labID string) (*model.ProgressRecord, error) {
	query := `SELECT ` + progressColumns + ` FROM progress_records WHERE user_id = $1 AND lab_id = $2`
	row := r.db.QueryRowContext(ctx, query, userID, labID)
	rec, err := scanProgress(row.Scan)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrNotFound
		}
		return nil, fmt.Errorf("pgProgressRepository.Find: %w", err)
	}
	return rec, nil
}

func (r *pgProgressRepository) ListByUser(ctx context.Context, userID string) ([]model.ProgressRecord, error) {
	query := `SELECT ` + progressColumns + ` FROM progress_records WHERE user_id = $1`
	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("pgProgressRepository.ListByUser query: %w", err)
	}
	defer rows.Close()

	records := []model.ProgressRecord{}
	for rows.Next() {
		rec, err := scanProgress(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("pgProgressRepository.ListByUser scan: %w", err)
		}
		records = append(records, *rec)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("pgProgressRepository.ListByUser rows.Err: %w", err)
	}
	return records, nil
}

func (r *pgProgressRepository) RecordStart(ctx context.Context, userID, labID string, now time.Time) (*model.ProgressRecord, error) {
	query := `INSERT INTO progress_records
	            (id, user_id, lab_id, status, best_score, best_bonus, attempts, started_at, last_attempt_at)
	          VALUES ($1, $2, $3, 'in_progress', 0, 0, 1, $4, $4)
	          ON CONFLICT (user_id, lab_id) DO UPDATE SET
	            attempts = CASE WHEN progress_records.status = 'in_progress'
	                            THEN progress_records.attempts
	                            ELSE progress_records.attempts + 1 END,
	            status = 'in_progress',
	            last_attempt_at = EXCLUDED.last_attempt_at
	          RETURNING ` + progressColumns
	row := r.db.QueryRowContext(ctx, query, uuid.NewString(), userID, labID, now)
	rec, err := scanProgress(row.Scan)
	if err != nil {
		return nil, fmt.Errorf("pgProgressRepository.RecordStart: %w", err)
	}
	return rec, nil
}

func (r *pgProgressRepository) RecordCompletion(ctx context.Context, userID, labID string, score, bonus float64, now time.Time) (*model.ProgressRecord, error) {
	// Overridden records keep their instructor-set values; a retake still
	// counts but cannot silently replace the override.
	query := `UPDATE progress_records SET
	            best_score = CASE WHEN score_overridden THEN best_score ELSE GREATEST(best_score, $3) END,
	            best_bonus = CASE WHEN score_overridden THEN best_bonus ELSE GREATEST(best_bonus, $4) END,
	            attempts = CASE WHEN status = 'completed' THEN attempts + 1 ELSE attempts END,
	            status = 'completed',
	            completed_at = $5,
	            last_attempt_at = $5
	          WHERE user_id = $1 AND lab_id = $2
	          RETURNING ` + progressColumns
	row := r.db.QueryRowContext(ctx, query, userID, labID, score, bonus, now)
	rec, err := scanProgress(row.Scan)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrNotFound
		}
		return nil, fmt.Errorf("pgProgressRepository.RecordCompletion: %w", err)
	}
	return rec, nil
}

func (r *pgProgressRepository) Override(ctx context.Context, userID, labID string, score, bonus *float64, notes *string) (*model.ProgressRecord, error) {
	query := `UPDATE progress_records SET
	            best_score = COALESCE($3, best_score),
	            best_bonus = COALESCE($4, best_bonus),
	            instructor_notes = COALESCE($5, instructor_notes),
	            score_overridden = CASE WHEN $3 IS NULL AND $4 IS NULL THEN score_overridden ELSE TRUE END
	          WHERE user_id = $1 AND lab_id = $2
	          RETURNING ` + progressColumns
	row := r.db.QueryRowContext(ctx, query, userID, labID, score, bonus, notes)
	rec, err := scanProgress(row.Scan)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrNotFound
		}
		return nil, fmt.Errorf("pgProgressRepository.Override: %w", err)
	}
	return rec, nil
}
