package tools

import (
	"context"
	"fmt"

	"github.com/ashish13377/Intellido/internal/database"
	"github.com/ashish13377/Intellido/internal/filter"
	"github.com/ashish13377/Intellido/internal/models"
)

func (r *Registry) createTodo(ctx context.Context, in TaskInput) (*models.Task, error) {
	return r.tasks.Create(ctx, in.Task())
}

func (r *Registry) createMultipleTodos(ctx context.Context, in TaskBatch) ([]*models.Task, error) {
	batch := make([]*models.Task, 0, len(in))
	for _, item := range in {
		batch = append(batch, item.Task())
	}
	return r.tasks.CreateMany(ctx, batch)
}

func (r *Registry) getTodos(ctx context.Context, _ NoInput) ([]*models.Task, error) {
	return r.tasks.FindAll(ctx)
}

func (r *Registry) searchTodos(ctx context.Context, in FilterInput) ([]*models.Task, error) {
	return r.tasks.FindMany(ctx, filter.Compile(in.Filter()))
}

func (r *Registry) updateMatchingTodos(ctx context.Context, in UpdateMatchingInput) (database.UpdateResult, error) {
	return r.tasks.UpdateMany(ctx, filter.Compile(in.Filter.Filter()), in.Update.Patch())
}

func (r *Registry) deleteTodosByQuery(ctx context.Context, in FilterInput) (database.DeleteResult, error) {
	return r.tasks.DeleteMany(ctx, filter.Compile(in.Filter()))
}

func (r *Registry) getTodoByID(ctx context.Context, in IDInput) (*models.Task, error) {
	task, err := r.tasks.FindByID(ctx, in.ID)
	if err != nil {
		return nil, err
	}
	if task == nil {
		return nil, fmt.Errorf("%w: todo %s", ErrNotFound, in.ID)
	}
	return task, nil
}

func (r *Registry) updateTodoByID(ctx context.Context, in UpdateByIDInput) (*models.Task, error) {
	task, err := r.tasks.UpdateByID(ctx, in.ID, in.Update.Patch())
	if err != nil {
		return nil, err
	}
	if task == nil {
		return nil, fmt.Errorf("%w: todo %s", ErrNotFound, in.ID)
	}
	return task, nil
}

func (r *Registry) deleteTodoByID(ctx context.Context, in IDInput) (*models.Task, error) {
	task, err := r.tasks.DeleteByID(ctx, in.ID)
	if err != nil {
		return nil, err
	}
	if task == nil {
		return nil, fmt.Errorf("%w: todo %s", ErrNotFound, in.ID)
	}
	return task, nil
}

func (r *Registry) createProject(ctx context.Context, in ProjectInput) (*models.Project, error) {
	return r.projects.Create(ctx, &models.Project{
		Name: in.Name,
		Type: models.TaskType(in.Type),
	})
}

func (r *Registry) getProjects(ctx context.Context, _ NoInput) ([]*models.Project, error) {
	return r.projects.FindAll(ctx)
}

// createSubTodo requires the parent todo and the project to exist
func (r *Registry) createSubTodo(ctx context.Context, in TaskInput) (*models.Task, error) {
	if in.ParentID != nil {
		parent, err := r.tasks.FindByID(ctx, *in.ParentID)
		if err != nil {
			return nil, err
		}
		if parent == nil {
			return nil, fmt.Errorf("%w: parent todo %s", ErrNotFound, *in.ParentID)
		}
	}
	if in.ProjectID != nil {
		project, err := r.projects.FindByID(ctx, *in.ProjectID)
		if err != nil {
			return nil, err
		}
		if project == nil {
			return nil, fmt.Errorf("%w: project %s", ErrNotFound, *in.ProjectID)
		}
	}
	return r.subTasks.Create(ctx, in.Task())
}

func (r *Registry) getSubTodos(ctx context.Context, in SubTodoFilterInput) ([]*models.Task, error) {
	return r.subTasks.FindMany(ctx, filter.Compile(models.TaskFilter{ParentID: in.ParentID}))
}
