package database

import (
	"context"

	"github.com/ashish13377/Intellido/internal/filter"
	"github.com/ashish13377/Intellido/internal/models"
	"github.com/google/uuid"
)

// TaskStore is the CRUD facade the tools operate on
// This interface enables better testability by allowing mock implementations
type TaskStore interface {
	Create(ctx context.Context, task *models.Task) (*models.Task, error)
	CreateMany(ctx context.Context, tasks []*models.Task) ([]*models.Task, error)
	FindAll(ctx context.Context) ([]*models.Task, error)
	FindByID(ctx context.Context, id uuid.UUID) (*models.Task, error)
	FindOne(ctx context.Context, q filter.Query) (*models.Task, error)
	FindMany(ctx context.Context, q filter.Query) ([]*models.Task, error)
	UpdateByID(ctx context.Context, id uuid.UUID, patch models.TaskPatch) (*models.Task, error)
	UpdateMany(ctx context.Context, q filter.Query, patch models.TaskPatch) (UpdateResult, error)
	DeleteByID(ctx context.Context, id uuid.UUID) (*models.Task, error)
	DeleteMany(ctx context.Context, q filter.Query) (DeleteResult, error)
}

// ProjectStore defines project repository operations
type ProjectStore interface {
	Create(ctx context.Context, project *models.Project) (*models.Project, error)
	FindAll(ctx context.Context) ([]*models.Project, error)
	FindByID(ctx context.Context, id uuid.UUID) (*models.Project, error)
}

// Ensure concrete types implement the interfaces
var (
	_ TaskStore    = (*TaskRepository)(nil)
	_ ProjectStore = (*ProjectRepository)(nil)
)
