// Package tools is the closed set of operations the model may invoke. Every
// tool decodes its JSON input into a typed value before the handler runs.
package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/ashish13377/Intellido/internal/database"
	"github.com/ashish13377/Intellido/internal/models"
	"github.com/ashish13377/Intellido/internal/queue"
	"github.com/ashish13377/Intellido/internal/services/ai"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

const (
	// DefaultTimeout bounds a single tool call
	DefaultTimeout = 15 * time.Second

	publishTimeout = 5 * time.Second
)

var tracer = otel.Tracer("github.com/ashish13377/Intellido/internal/tools")

// Descriptor is the catalog entry the model sees for a tool
type Descriptor struct {
	Name        Name   `json:"name" yaml:"name"`
	Description string `json:"description" yaml:"description"`
	Example     string `json:"example" yaml:"example"`
}

type call func(ctx context.Context) (any, error)

type tool struct {
	Descriptor
	emits queue.EventType // empty for read-only tools
	bind  func(raw json.RawMessage) (call, error)
}

// typed adapts a handler over a concrete input type into a dispatch entry
func typed[In any, Out any](desc Descriptor, emits queue.EventType, handler func(ctx context.Context, in In) (Out, error)) tool {
	return tool{
		Descriptor: desc,
		emits:      emits,
		bind: func(raw json.RawMessage) (call, error) {
			var in In
			if err := decodeInput(raw, &in); err != nil {
				return nil, err
			}
			return func(ctx context.Context) (any, error) {
				return handler(ctx, in)
			}, nil
		},
	}
}

// Config wires a Registry to its stores
type Config struct {
	Tasks    database.TaskStore
	SubTasks database.TaskStore
	Projects database.ProjectStore
	// Events receives one event per successful mutating call. Optional.
	Events  queue.Publisher
	Timeout time.Duration
	Logger  *zap.Logger
}

// Registry dispatches tool calls by name
type Registry struct {
	tasks    database.TaskStore
	subTasks database.TaskStore
	projects database.ProjectStore
	events   queue.Publisher
	timeout  time.Duration
	logger   *zap.Logger
	tools    map[Name]tool
}

// NewRegistry builds the dispatch table over the configured stores
func NewRegistry(cfg Config) *Registry {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}

	r := &Registry{
		tasks:    cfg.Tasks,
		subTasks: cfg.SubTasks,
		projects: cfg.Projects,
		events:   cfg.Events,
		timeout:  cfg.Timeout,
		logger:   cfg.Logger,
	}

	r.tools = map[Name]tool{
		CreateTodo: typed(Descriptor{
			Name:        CreateTodo,
			Description: "Creates a todo and returns it.",
			Example:     `{"taskName": "Buy Flights Tickets to Bali", "description": "Buy flights tickets to Bali for the music event", "dueDate": "2025-02-26T10:00:00Z", "priority": 1, "isCompleted": false, "type": "user", "label": "Travel to Bali"}`,
		}, queue.EventTaskCreated, r.createTodo),
		CreateMultipleTodos: typed(Descriptor{
			Name:        CreateMultipleTodos,
			Description: "Creates several todos at once and returns them. Either all are created or none.",
			Example:     `[{"taskName": "Order Cake", "description": "Order a birthday cake from the bakery", "dueDate": "2025-03-01T12:00:00Z", "priority": 1, "type": "AI", "label": "Birthday Party Event"}, {"taskName": "Send Invitations", "description": "Send out invitations to all the guests", "dueDate": "2025-02-25T09:00:00Z", "priority": 2, "type": "AI", "label": "Birthday Party Event"}]`,
		}, queue.EventTaskCreated, r.createMultipleTodos),
		GetTodos: typed(Descriptor{
			Name:        GetTodos,
			Description: "Retrieves all todos.",
			Example:     `{}`,
		}, "", r.getTodos),
		SearchTodos: typed(Descriptor{
			Name:        SearchTodos,
			Description: "Returns the todos matching a filter. Fields are ANDed; searchTerm matches taskName or description case-insensitively.",
			Example:     `{"searchTerm": "Bali", "isCompleted": false}`,
		}, "", r.searchTodos),
		UpdateMatchingTodos: typed(Descriptor{
			Name:        UpdateMatchingTodos,
			Description: "Applies an update to every todo matching a filter and returns matchedCount and modifiedCount.",
			Example:     `{"filter": {"searchTerm": "Bali"}, "update": {"isCompleted": true}}`,
		}, queue.EventTaskUpdated, r.updateMatchingTodos),
		DeleteTodosByQuery: typed(Descriptor{
			Name:        DeleteTodosByQuery,
			Description: "Deletes every todo matching a filter and returns deletedCount.",
			Example:     `{"isCompleted": true}`,
		}, queue.EventTaskDeleted, r.deleteTodosByQuery),
		GetTodoByID: typed(Descriptor{
			Name:        GetTodoByID,
			Description: "Returns the todo with the given id.",
			Example:     `{"id": "6f1c2a9e-8d4b-4a57-9c3e-2b7d5e0f1a23"}`,
		}, "", r.getTodoByID),
		UpdateTodoByID: typed(Descriptor{
			Name:        UpdateTodoByID,
			Description: "Updates the todo with the given id and returns it.",
			Example:     `{"id": "6f1c2a9e-8d4b-4a57-9c3e-2b7d5e0f1a23", "update": {"priority": 2}}`,
		}, queue.EventTaskUpdated, r.updateTodoByID),
		DeleteTodoByID: typed(Descriptor{
			Name:        DeleteTodoByID,
			Description: "Deletes the todo with the given id and returns it.",
			Example:     `{"id": "6f1c2a9e-8d4b-4a57-9c3e-2b7d5e0f1a23"}`,
		}, queue.EventTaskDeleted, r.deleteTodoByID),
		CreateProject: typed(Descriptor{
			Name:        CreateProject,
			Description: "Creates a project that todos and sub-todos can belong to.",
			Example:     `{"name": "Birthday Party", "type": "user"}`,
		}, queue.EventProjectCreated, r.createProject),
		GetProjects: typed(Descriptor{
			Name:        GetProjects,
			Description: "Retrieves all projects.",
			Example:     `{}`,
		}, "", r.getProjects),
		CreateSubTodo: typed(Descriptor{
			Name:        CreateSubTodo,
			Description: "Creates a sub-todo under an existing todo. parentId and projectId are required.",
			Example:     `{"taskName": "Buy balloons", "description": "Red and gold", "dueDate": "2025-02-28", "parentId": "6f1c2a9e-8d4b-4a57-9c3e-2b7d5e0f1a23", "projectId": "0b9f6c1d-3e2a-4f5b-8c7d-9e0a1b2c3d4e"}`,
		}, queue.EventTaskCreated, r.createSubTodo),
		GetSubTodos: typed(Descriptor{
			Name:        GetSubTodos,
			Description: "Retrieves sub-todos, optionally only those of one parent todo.",
			Example:     `{"parentId": "6f1c2a9e-8d4b-4a57-9c3e-2b7d5e0f1a23"}`,
		}, "", r.getSubTodos),
	}

	return r
}

// Has reports whether name is registered
func (r *Registry) Has(name string) bool {
	_, ok := r.tools[Name(name)]
	return ok
}

// Describe returns the catalog in Names order
func (r *Registry) Describe() []Descriptor {
	return r.DescribeOnly(Names...)
}

// DescribeOnly returns the catalog entries for names, skipping unknown ones
func (r *Registry) DescribeOnly(names ...Name) []Descriptor {
	out := make([]Descriptor, 0, len(names))
	for _, n := range names {
		if t, ok := r.tools[n]; ok {
			out = append(out, t.Descriptor)
		}
	}
	return out
}

// Dispatch decodes input for the named tool and runs it under the per-call
// timeout. Errors wrap ErrUnknownTool, ErrInvalidToolInput or
// ErrToolExecution.
func (r *Registry) Dispatch(ctx context.Context, name string, input json.RawMessage) (any, error) {
	t, ok := r.tools[Name(name)]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownTool, name)
	}

	run, err := t.bind(input)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrInvalidToolInput, name, err)
	}

	ctx, span := tracer.Start(ctx, "tool.dispatch", trace.WithAttributes(attribute.String("tool.name", name)))
	defer span.End()

	callCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	start := time.Now()
	result, err := run(callCtx)
	latency := time.Since(start)

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "tool failed")
		r.logger.Warn("tool_failed",
			zap.String("tool", name),
			zap.String("session_id", ai.ExtractSessionID(ctx)),
			zap.Error(err),
			zap.Int64("latency_ms", latency.Milliseconds()),
		)
		return nil, fmt.Errorf("%w: %s: %w", ErrToolExecution, name, err)
	}

	r.logger.Info("tool_dispatched",
		zap.String("tool", name),
		zap.String("session_id", ai.ExtractSessionID(ctx)),
		zap.Int64("latency_ms", latency.Milliseconds()),
	)

	if t.emits != "" {
		r.publish(ctx, t, result)
	}
	return result, nil
}

// publish emits the change event for a mutating call. Failures are logged;
// the store change already happened.
func (r *Registry) publish(ctx context.Context, t tool, result any) {
	if r.events == nil {
		return
	}
	count, ids := affected(result)
	if count == 0 {
		return
	}

	event := queue.NewTaskEvent(t.emits, string(t.Name), count, ids...)
	event.SessionID = ai.ExtractSessionID(ctx)

	pubCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	defer cancel()
	if err := r.events.Publish(pubCtx, event); err != nil {
		r.logger.Warn("failed_to_publish_task_event",
			zap.String("tool", string(t.Name)),
			zap.String("event_type", string(event.Type)),
			zap.Error(err),
		)
	}
}

// affected extracts the record count and ids a handler result touched
func affected(result any) (int64, []uuid.UUID) {
	switch v := result.(type) {
	case *models.Task:
		if v == nil {
			return 0, nil
		}
		return 1, []uuid.UUID{v.ID}
	case []*models.Task:
		ids := make([]uuid.UUID, 0, len(v))
		for _, task := range v {
			ids = append(ids, task.ID)
		}
		return int64(len(v)), ids
	case *models.Project:
		if v == nil {
			return 0, nil
		}
		return 1, []uuid.UUID{v.ID}
	case database.UpdateResult:
		return v.ModifiedCount, nil
	case database.DeleteResult:
		return v.DeletedCount, nil
	default:
		return 0, nil
	}
}
