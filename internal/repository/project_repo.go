// internal/repository/project_repo.go
package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/Doc-Scripter/HelpingHand/internal/domain"
)

type ProjectRepository interface {
	FindActiveByID(ctx context.Context, id string) (*domain.Project, error)
	GetByID(ctx context.Context, id string) (*domain.Project, error)
	ListActive(ctx context.Context) ([]domain.Project, error)
	IncrementRaisedAmount(ctx context.Context, id string, amount decimal.Decimal) error
}

type projectRepo struct {
	db DBTX
}

func NewProjectRepository(db DBTX) ProjectRepository {
	return &projectRepo{db: db}
}

const projectColumns = `
	id, title, description, target_amount, raised_amount, status,
	county, category, image_url, beneficiary_count, created_at, updated_at`

func scanProject(row rowScanner) (*domain.Project, error) {
	var (
		p      domain.Project
		status string
	)
	err := row.Scan(
		&p.ID,
		&p.Title,
		&p.Description,
		&p.TargetAmount,
		&p.RaisedAmount,
		&status,
		&p.County,
		&p.Category,
		&p.ImageURL,
		&p.BeneficiaryCount,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	p.Status = domain.ProjectStatus(status)
	return &p, nil
}

// FindActiveByID returns nil, nil when no active project has the id.
func (r *projectRepo) FindActiveByID(ctx context.Context, id string) (*domain.Project, error) {
	query := `SELECT` + projectColumns + `
		FROM projects
		WHERE id = $1 AND status = 'active'`

	p, err := scanProject(r.db.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find project %s: %w", id, err)
	}
	return p, nil
}

// GetByID returns any project that is not soft-deleted, or nil, nil.
func (r *projectRepo) GetByID(ctx context.Context, id string) (*domain.Project, error) {
	query := `SELECT` + projectColumns + `
		FROM projects
		WHERE id = $1 AND status <> 'deleted'`

	p, err := scanProject(r.db.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get project %s: %w", id, err)
	}
	return p, nil
}

func (r *projectRepo) ListActive(ctx context.Context) ([]domain.Project, error) {
	query := `SELECT` + projectColumns + `
		FROM projects
		WHERE status = 'active'
		ORDER BY created_at DESC`

	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list projects: %w", err)
	}
	defer rows.Close()

	projects := make([]domain.Project, 0)
	for rows.Next() {
		p, err := scanProject(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan project: %w", err)
		}
		projects = append(projects, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate projects: %w", err)
	}

	return projects, nil
}

// IncrementRaisedAmount adds a positive amount to the cached total. The
// project is credited whatever its status since the payer has already paid.
func (r *projectRepo) IncrementRaisedAmount(ctx context.Context, id string, amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return fmt.Errorf("raised amount increment must be positive, got %s", amount)
	}

	query := `
		UPDATE projects
		SET raised_amount = raised_amount + $2, updated_at = NOW()
		WHERE id = $1`

	tag, err := r.db.Exec(ctx, query, id, amount)
	if err != nil {
		return fmt.Errorf("failed to increment raised amount for %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: %s", domain.ErrProjectNotFound, id)
	}
	return nil
}
