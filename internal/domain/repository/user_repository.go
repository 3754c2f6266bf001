package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"novalabs_hub/internal/common"
	"novalabs_hub/internal/domain/model"

	"github.com/jackc/pgx/v5/pgconn"
)

type UserRepository interface {
	Create(ctx context.Context, user *model.User) error
	FindByEmail(ctx context.Context, email string) (*model.User, error)
	FindByID(ctx context.Context, id string) (*model.User, error)
	FindFirstByRole(ctx context.Context, role model.Role) (*model.User, error)
	UpdateRole(ctx context.Context, id string, role model.Role) error
	// RecomputeProgressTotals re-derives the cached rank and total score
	// from the user's completed records in one transaction, locking the
	// users row so concurrent recomputes serialize per user and the last
	// writer has seen every earlier completion.
	RecomputeProgressTotals(ctx context.Context, id string, rank func(completedLabs, totalLabs int) string) (string, float64, error)
}

type pgUserRepository struct {
	db *sql.DB
}

func NewPgUserRepository(db *sql.DB) UserRepository {
	return &pgUserRepository{db: db}
}

const userColumns = `id, email, hashed_password, first_name, last_name, role, institution, rank, total_score, is_active, created_at, updated_at`

func scanUser(row *sql.Row) (*model.User, error) {
	user := &model.User{}
	err := row.Scan(
		&user.ID, &user.Email, &user.HashedPassword, &user.FirstName, &user.LastName,
		&user.Role, &user.Institution, &user.Rank, &user.TotalScore, &user.IsActive,
		&user.CreatedAt, &user.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrNotFound
		}
		return nil, err
	}
	return user, nil
}

func (r *pgUserRepository) Create(ctx context.Context, user *model.User) error {
	query := `INSERT INTO users (id, email, hashed_password, first_name, last_name, role, institution, rank, total_score)
	          VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`
	_, err := r.db.ExecContext(ctx, query, user.ID, user.Email, user.HashedPassword,
		user.FirstName, user.LastName, user.Role, user.Institution, user.Rank, user.TotalScore)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" { // Unique constraint violation
			return fmt.Errorf("user with given email already exists: %w", common.ErrConflict)
		}
		return fmt.Errorf("pgUserRepository.Create: %w", err)
	}
	return nil
}

func (r *pgUserRepository) FindByEmail(ctx context.Context, email string) (*model.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE email = $1`
	user, err := scanUser(r.db.QueryRowContext(ctx, query, email))
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("pgUserRepository.FindByEmail: %w", err)
	}
	return user, nil
}

func (r *pgUserRepository) FindByID(ctx context.Context, id string) (*model.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`
	user, err := scanUser(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("pgUserRepository.FindByID: %w", err)
	}
	return user, nil
}

func (r *pgUserRepository) FindFirstByRole(ctx context.Context, role model.Role) (*model.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE role = $1 ORDER BY created_at ASC LIMIT 1`
	user, err := scanUser(r.db.QueryRowContext(ctx, query, role))
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("pgUserRepository.FindFirstByRole: %w", err)
	}
	return user, nil
}

func (r *pgUserRepository) UpdateRole(ctx context.Context, id string, role model.Role) error {
	query := `UPDATE users SET role = $1, updated_at = CURRENT_TIMESTAMP WHERE id = $2`
	res, err := r.db.ExecContext(ctx, query, role, id)
	if err != nil {
		return fmt.Errorf("pgUserRepository.UpdateRole: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return common.ErrNotFound
	}
	return nil
}

func (r *pgUserRepository) RecomputeProgressTotals(ctx context.Context, id string, rank func(completedLabs, totalLabs int) string) (string, float64, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return "", 0, fmt.Errorf("pgUserRepository.RecomputeProgressTotals begin: %w", err)
	}
	defer tx.Rollback()

	// The row lock serializes recomputes for one user; a waiter reads
	// the records after the holder commits, so whichever recompute
	// writes last has seen every completion that preceded it.
	var locked string
	if err := tx.QueryRowContext(ctx, `SELECT id FROM users WHERE id = $1 FOR UPDATE`, id).Scan(&locked); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", 0, common.ErrNotFound
		}
		return "", 0, fmt.Errorf("pgUserRepository.RecomputeProgressTotals lock: %w", err)
	}

	var completed int
	var total float64
	aggregate := `SELECT COUNT(*), COALESCE(SUM(pr.best_score + pr.best_bonus), 0)
	              FROM progress_records pr
	              JOIN labs l ON l.id = pr.lab_id AND l.is_active = TRUE
	              WHERE pr.user_id = $1 AND pr.status = 'completed'`
	if err := tx.QueryRowContext(ctx, aggregate, id).Scan(&completed, &total); err != nil {
		return "", 0, fmt.Errorf("pgUserRepository.RecomputeProgressTotals aggregate: %w", err)
	}
	var catalogSize int
	if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM labs WHERE is_active = TRUE`).Scan(&catalogSize); err != nil {
		return "", 0, fmt.Errorf("pgUserRepository.RecomputeProgressTotals catalog: %w", err)
	}

	newRank := rank(completed, catalogSize)
	update := `UPDATE users SET rank = $1, total_score = $2, updated_at = CURRENT_TIMESTAMP WHERE id = $3`
	if _, err := tx.ExecContext(ctx, update, newRank, total, id); err != nil {
		return "", 0, fmt.Errorf("pgUserRepository.RecomputeProgressTotals update: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return "", 0, fmt.Errorf("pgUserRepository.RecomputeProgressTotals commit: %w", err)
	}
	return newRank, total, nil
}
