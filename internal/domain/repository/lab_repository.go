package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"novalabs_hub/internal/common"
	"novalabs_hub/internal/domain/model"

	"github.com/jackc/pgx/v5/pgconn"
)

type LabRepository interface {
	Create(ctx context.Context, lab *model.Lab) error
	Update(ctx context.Context, lab *model.Lab) error
	DeleteByRef(ctx context.Context, ref string) error
	FindByRef(ctx context.Context, ref string) (*model.Lab, error)
	// List returns the active catalog ordered by sequence.
	List(ctx context.Context) ([]model.Lab, error)
}

type pgLabRepository struct {
	db *sql.DB
}

func NewPgLabRepository(db *sql.DB) LabRepository {
	return &pgLabRepository{db: db}
}

const labColumns = `id, ref, name, description, category, sequence_order, prerequisite_refs, max_score, max_bonus_points, is_active, created_at, updated_at`

// Prerequisite refs live in a jsonb column; marshalling stays inside the
// repository so the rest of the code only sees []string.
func encodePrereqs(refs []string) ([]byte, error) {
	if refs == nil {
		refs = []string{}
	}
	return json.Marshal(refs)
}

func scanLab(scan func(dest ...any) error) (*model.Lab, error) {
	lab := &model.Lab{}
	var prereqs []byte
	err := scan(
		&lab.ID, &lab.Ref, &lab.Name, &lab.Description, &lab.Category, &lab.SequenceOrder,
		&prereqs, &lab.MaxScore, &lab.MaxBonusPoints, &lab.IsActive, &lab.CreatedAt, &lab.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if len(prereqs) > 0 {
		if err := json.Unmarshal(prereqs, &lab.PrerequisiteRefs); err != nil {
			return nil, fmt.Errorf("decode prerequisite_refs for lab %s: %w", lab.Ref, err)
		}
	}
	if lab.PrerequisiteRefs == nil {
		lab.PrerequisiteRefs = []string{}
	}
	return lab, nil
}

func (r *pgLabRepository) Create(ctx context.Context, lab *model.Lab) error {
	prereqs, err := encodePrereqs(lab.PrerequisiteRefs)
	if err != nil {
		return fmt.Errorf("pgLabRepository.Create encode: %w", err)
	}
	query := `INSERT INTO labs (id, ref, name, description, category, sequence_order, prerequisite_refs, max_score, max_bonus_points, is_active)
	          VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`
	_, err = r.db.ExecContext(ctx, query, lab.ID, lab.Ref, lab.Name, lab.Description,
		lab.Category, lab.SequenceOrder, prereqs, lab.MaxScore, lab.MaxBonusPoints, lab.IsActive)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" { // Unique constraint for ref
			return fmt.Errorf("lab with ref %q already exists: %w", lab.Ref, common.ErrConflict)
		}
		return fmt.Errorf("pgLabRepository.Create: %w", err)
	}
	return nil
}

func (r *pgLabRepository) Update(ctx context.Context, lab *model.Lab) error {
	prereqs, err := encodePrereqs(lab.PrerequisiteRefs)
	if err != nil {
		return fmt.Errorf("pgLabRepository.Update encode: %w", err)
	}
	// The ref is immutable; it is the key, never a target of SET.
	query := `UPDATE labs SET
	            name = $1, description = $2, category = $3, sequence_order = $4,
	            prerequisite_refs = $5, max_score = $6, max_bonus_points = $7,
	            is_active = $8, updated_at = CURRENT_TIMESTAMP
	          WHERE ref = $9`
	res, err := r.db.ExecContext(ctx, query, lab.Name, lab.Description, lab.Category,
		lab.SequenceOrder, prereqs, lab.MaxScore, lab.MaxBonusPoints, lab.IsActive, lab.Ref)
	if err != nil {
		return fmt.Errorf("pgLabRepository.Update: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return common.ErrNotFound
	}
	return nil
}

func (r *pgLabRepository) DeleteByRef(ctx context.Context, ref string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM labs WHERE ref = $1`, ref)
	if err != nil {
		return fmt.Errorf("pgLabRepository.DeleteByRef: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return common.ErrNotFound
	}
	return nil
}

func (r *pgLabRepository) FindByRef(ctx context.Context, ref string) (*model.Lab, error) {
	query := `SELECT ` + labColumns + ` FROM labs WHERE ref = $1`
	row := r.db.QueryRowContext(ctx, query, ref)
	lab, err := scanLab(row.Scan)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrNotFound
		}
		return nil, fmt.Errorf("pgLabRepository.FindByRef: %w", err)
	}
	return lab, nil
}

func (r *pgLabRepository) List(ctx context.Context) ([]model.Lab, error) {
	query := `SELECT ` + labColumns + ` FROM labs WHERE is_active = TRUE ORDER BY sequence_order ASC`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("pgLabRepository.List query: %w", err)
	}
	defer rows.Close()

	labs := []model.Lab{}
	for rows.Next() {
		lab, err := scanLab(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("pgLabRepository.List scan: %w", err)
		}
		labs = append(labs, *lab)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("pgLabRepository.List rows.Err: %w", err)
	}
	return labs, nil
}
