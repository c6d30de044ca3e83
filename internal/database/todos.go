package database

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/ashish13377/Intellido/internal/filter"
	"github.com/ashish13377/Intellido/internal/models"
	"github.com/ashish13377/Intellido/internal/validation"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	tasksTable    = "tasks"
	subTasksTable = "sub_tasks"

	taskColumns = "id, task_name, description, due_date, priority, is_completed, type, label, project_id, parent_id, created_at, updated_at"
)

// UpdateResult summarises a bulk update
type UpdateResult struct {
	MatchedCount  int64 `json:"matchedCount"`
	ModifiedCount int64 `json:"modifiedCount"`
}

// DeleteResult summarises a bulk delete
type DeleteResult struct {
	DeletedCount int64 `json:"deletedCount"`
}

// TaskRepository handles task persistence for one table. Top-level tasks and
// sub-tasks share the same columns and the same compiled filters.
type TaskRepository struct {
	db       *DB
	table    string
	subTasks bool
	logger   *zap.Logger
	nowFunc  func() time.Time
}

// NewTaskRepository creates a repository over top-level tasks
func NewTaskRepository(db *DB) *TaskRepository {
	return &TaskRepository{db: db, table: tasksTable, logger: zap.NewNop(), nowFunc: time.Now}
}

// NewSubTaskRepository creates a repository over sub-tasks. Every record must
// reference a parent task and a project.
func NewSubTaskRepository(db *DB) *TaskRepository {
	return &TaskRepository{db: db, table: subTasksTable, subTasks: true, logger: zap.NewNop(), nowFunc: time.Now}
}

// SetLogger sets the logger for the repository
func (r *TaskRepository) SetLogger(logger *zap.Logger) {
	if logger != nil {
		r.logger = logger
	}
}

func (r *TaskRepository) now() time.Time {
	// Postgres keeps microseconds; truncate so equality filters round-trip
	return r.nowFunc().UTC().Truncate(time.Microsecond)
}

func (r *TaskRepository) prepare(task *models.Task, now time.Time) error {
	task.ApplyDefaults()
	task.TaskName = validation.SanitizeText(task.TaskName)
	task.Description = validation.SanitizeText(task.Description)
	task.DueDate = task.DueDate.UTC()
	if err := validation.Struct(task); err != nil {
		return validationError(err)
	}
	if r.subTasks {
		if task.ParentID == nil || task.ProjectID == nil {
			return validationError(fmt.Errorf("sub-tasks require parentId and projectId"))
		}
	} else if task.ParentID != nil {
		return validationError(fmt.Errorf("parentId is only allowed on sub-tasks"))
	}
	task.CreatedAt = now
	task.UpdatedAt = now
	return nil
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func (r *TaskRepository) insert(ctx context.Context, ex execer, task *models.Task) error {
	query := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)", r.table, taskColumns, r.db.Placeholders(1, 12))
	_, err := ex.ExecContext(ctx, query,
		task.ID,
		task.TaskName,
		task.Description,
		task.DueDate,
		task.Priority,
		task.IsCompleted,
		string(task.Type),
		task.Label,
		nullUUID(task.ProjectID),
		nullUUID(task.ParentID),
		task.CreatedAt,
		task.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create task: %w", classify(err))
	}
	return nil
}

// Create validates and inserts a task, filling ID, type and timestamps
func (r *TaskRepository) Create(ctx context.Context, task *models.Task) (*models.Task, error) {
	if err := r.prepare(task, r.now()); err != nil {
		return nil, err
	}
	if err := r.insert(ctx, r.db, task); err != nil {
		return nil, err
	}
	return task, nil
}

// CreateMany inserts all tasks in one transaction, one goroutine per task.
// Any failure rolls back the whole batch.
func (r *TaskRepository) CreateMany(ctx context.Context, tasks []*models.Task) ([]*models.Task, error) {
	if len(tasks) == 0 {
		return []*models.Task{}, nil
	}

	now := r.now()
	for i, task := range tasks {
		if task == nil {
			return nil, validationError(fmt.Errorf("item %d: task is required", i))
		}
		if err := r.prepare(task, now); err != nil {
			return nil, fmt.Errorf("item %d: %w", i, err)
		}
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", classify(err))
	}

	g, gctx := errgroup.WithContext(ctx)
	for i, task := range tasks {
		g.Go(func() error {
			if err := r.insert(gctx, tx, task); err != nil {
				return fmt.Errorf("item %d: %w", i, err)
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			r.logger.Warn("failed_to_rollback_batch_create",
				zap.String("table", r.table),
				zap.Error(rbErr),
			)
		}
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit batch: %w", classify(err))
	}

	return tasks, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTask(row rowScanner) (*models.Task, error) {
	task := &models.Task{}
	var taskType string
	var projectID, parentID uuid.NullUUID
	err := row.Scan(
		&task.ID,
		&task.TaskName,
		&task.Description,
		&task.DueDate,
		&task.Priority,
		&task.IsCompleted,
		&taskType,
		&task.Label,
		&projectID,
		&parentID,
		&task.CreatedAt,
		&task.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	task.Type = models.TaskType(taskType)
	if projectID.Valid {
		id := projectID.UUID
		task.ProjectID = &id
	}
	if parentID.Valid {
		id := parentID.UUID
		task.ParentID = &id
	}
	return task, nil
}

type querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

func (r *TaskRepository) query(ctx context.Context, q querier, where string, args []any, suffix string) ([]*models.Task, error) {
	query := fmt.Sprintf("SELECT %s FROM %s WHERE %s ORDER BY created_at, task_name%s", taskColumns, r.table, where, suffix)

	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query tasks: %w", classify(err))
	}
	defer rows.Close()

	tasks := make([]*models.Task, 0)
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan task: %w", err)
		}
		tasks = append(tasks, task)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating tasks: %w", classify(err))
	}
	return tasks, nil
}

// FindAll returns every task
func (r *TaskRepository) FindAll(ctx context.Context) ([]*models.Task, error) {
	return r.query(ctx, r.db, "1=1", nil, "")
}

// FindMany returns the tasks matching q
func (r *TaskRepository) FindMany(ctx context.Context, q filter.Query) ([]*models.Task, error) {
	where, args := q.Where(r.db.Dialect(), 1)
	return r.query(ctx, r.db, where, args, "")
}

// FindOne returns the first task matching q, or nil
func (r *TaskRepository) FindOne(ctx context.Context, q filter.Query) (*models.Task, error) {
	where, args := q.Where(r.db.Dialect(), 1)
	tasks, err := r.query(ctx, r.db, where, args, " LIMIT 1")
	if err != nil {
		return nil, err
	}
	if len(tasks) == 0 {
		return nil, nil
	}
	return tasks[0], nil
}

// FindByID returns the task with id, or nil
func (r *TaskRepository) FindByID(ctx context.Context, id uuid.UUID) (*models.Task, error) {
	return r.findByID(ctx, r.db, id)
}

type rowQuerier interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (r *TaskRepository) findByID(ctx context.Context, q rowQuerier, id uuid.UUID) (*models.Task, error) {
	query := fmt.Sprintf("SELECT %s FROM %s WHERE id = %s", taskColumns, r.table, r.db.Placeholder(1))
	task, err := scanTask(q.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get task: %w", classify(err))
	}
	return task, nil
}

func (r *TaskRepository) update(ctx context.Context, ex execer, task *models.Task) error {
	task.TaskName = validation.SanitizeText(task.TaskName)
	task.Description = validation.SanitizeText(task.Description)
	task.DueDate = task.DueDate.UTC()
	if err := validation.Struct(task); err != nil {
		return validationError(err)
	}

	set := []string{"task_name", "description", "due_date", "priority", "is_completed", "type", "label", "project_id", "updated_at"}
	for i, col := range set {
		set[i] = col + " = " + r.db.Placeholder(i+1)
	}
	query := fmt.Sprintf("UPDATE %s SET %s WHERE id = %s", r.table, strings.Join(set, ", "), r.db.Placeholder(len(set)+1))

	_, err := ex.ExecContext(ctx, query,
		task.TaskName,
		task.Description,
		task.DueDate,
		task.Priority,
		task.IsCompleted,
		string(task.Type),
		task.Label,
		nullUUID(task.ProjectID),
		task.UpdatedAt,
		task.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update task: %w", classify(err))
	}
	return nil
}

// UpdateByID applies patch to the task with id and returns the updated
// record, or nil when no such task exists
func (r *TaskRepository) UpdateByID(ctx context.Context, id uuid.UUID, patch models.TaskPatch) (*models.Task, error) {
	if err := validation.Struct(patch); err != nil {
		return nil, validationError(err)
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", classify(err))
	}
	defer func() { _ = tx.Rollback() }()

	task, err := r.findByID(ctx, tx, id)
	if err != nil || task == nil {
		return nil, err
	}

	if patch.Apply(task) {
		task.UpdatedAt = r.now()
		if err := r.update(ctx, tx, task); err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit update: %w", classify(err))
	}
	return task, nil
}

// UpdateMany applies patch to every task matching q. Records whose values
// do not change count as matched but not modified.
func (r *TaskRepository) UpdateMany(ctx context.Context, q filter.Query, patch models.TaskPatch) (UpdateResult, error) {
	var result UpdateResult
	if err := validation.Struct(patch); err != nil {
		return result, validationError(err)
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return result, fmt.Errorf("failed to begin transaction: %w", classify(err))
	}
	defer func() { _ = tx.Rollback() }()

	where, args := q.Where(r.db.Dialect(), 1)
	tasks, err := r.query(ctx, tx, where, args, "")
	if err != nil {
		return result, err
	}

	now := r.now()
	result.MatchedCount = int64(len(tasks))
	for _, task := range tasks {
		if !patch.Apply(task) {
			continue
		}
		task.UpdatedAt = now
		if err := r.update(ctx, tx, task); err != nil {
			return UpdateResult{}, err
		}
		result.ModifiedCount++
	}

	if err := tx.Commit(); err != nil {
		return UpdateResult{}, fmt.Errorf("failed to commit update: %w", classify(err))
	}

	r.logger.Debug("tasks_updated",
		zap.String("table", r.table),
		zap.Int64("matched", result.MatchedCount),
		zap.Int64("modified", result.ModifiedCount),
	)
	return result, nil
}

// DeleteByID removes the task with id and returns it, or nil when absent
func (r *TaskRepository) DeleteByID(ctx context.Context, id uuid.UUID) (*models.Task, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", classify(err))
	}
	defer func() { _ = tx.Rollback() }()

	task, err := r.findByID(ctx, tx, id)
	if err != nil || task == nil {
		return nil, err
	}

	query := fmt.Sprintf("DELETE FROM %s WHERE id = %s", r.table, r.db.Placeholder(1))
	if _, err := tx.ExecContext(ctx, query, id); err != nil {
		return nil, fmt.Errorf("failed to delete task: %w", classify(err))
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit delete: %w", classify(err))
	}
	return task, nil
}

// DeleteMany removes every task matching q
func (r *TaskRepository) DeleteMany(ctx context.Context, q filter.Query) (DeleteResult, error) {
	where, args := q.Where(r.db.Dialect(), 1)
	query := fmt.Sprintf("DELETE FROM %s WHERE %s", r.table, where)

	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return DeleteResult{}, fmt.Errorf("failed to delete tasks: %w", classify(err))
	}
	n, err := res.RowsAffected()
	if err != nil {
		return DeleteResult{}, fmt.Errorf("failed to count deleted tasks: %w", err)
	}
	return DeleteResult{DeletedCount: n}, nil
}

func nullUUID(id *uuid.UUID) uuid.NullUUID {
	if id == nil {
		return uuid.NullUUID{}
	}
	return uuid.NullUUID{UUID: *id, Valid: true}
}
