package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/ashish13377/Intellido/internal/models"
	"github.com/ashish13377/Intellido/internal/validation"
	"github.com/google/uuid"
)

// ProjectRepository handles project database operations
type ProjectRepository struct {
	db *DB
}

// NewProjectRepository creates a new project repository
func NewProjectRepository(db *DB) *ProjectRepository {
	return &ProjectRepository{db: db}
}

// Create validates and inserts a project
func (r *ProjectRepository) Create(ctx context.Context, project *models.Project) (*models.Project, error) {
	project.ApplyDefaults()
	project.Name = validation.SanitizeText(project.Name)
	if err := validation.Struct(project); err != nil {
		return nil, validationError(err)
	}

	now := time.Now().UTC().Truncate(time.Microsecond)
	project.CreatedAt = now
	project.UpdatedAt = now

	query := fmt.Sprintf("INSERT INTO projects (id, name, type, created_at, updated_at) VALUES (%s)", r.db.Placeholders(1, 5))
	_, err := r.db.ExecContext(ctx, query,
		project.ID,
		project.Name,
		string(project.Type),
		project.CreatedAt,
		project.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create project: %w", classify(err))
	}
	return project, nil
}

// FindAll returns every project ordered by creation time
func (r *ProjectRepository) FindAll(ctx context.Context) ([]*models.Project, error) {
	rows, err := r.db.QueryContext(ctx, "SELECT id, name, type, created_at, updated_at FROM projects ORDER BY created_at, name")
	if err != nil {
		return nil, fmt.Errorf("failed to query projects: %w", classify(err))
	}
	defer rows.Close()

	projects := make([]*models.Project, 0)
	for rows.Next() {
		project, err := scanProject(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan project: %w", err)
		}
		projects = append(projects, project)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating projects: %w", classify(err))
	}
	return projects, nil
}

// FindByID returns the project with id, or nil
func (r *ProjectRepository) FindByID(ctx context.Context, id uuid.UUID) (*models.Project, error) {
	query := fmt.Sprintf("SELECT id, name, type, created_at, updated_at FROM projects WHERE id = %s", r.db.Placeholder(1))
	project, err := scanProject(r.db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get project: %w", classify(err))
	}
	return project, nil
}

func scanProject(row rowScanner) (*models.Project, error) {
	project := &models.Project{}
	var projectType string
	if err := row.Scan(&project.ID, &project.Name, &projectType, &project.CreatedAt, &project.UpdatedAt); err != nil {
		return nil, err
	}
	project.Type = models.TaskType(projectType)
	return project, nil
}
