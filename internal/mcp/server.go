// Package mcp exposes the core task tools over the Model Context Protocol so
// external agents can manage todos without going through the chat loop.
package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/ashish13377/Intellido/internal/database"
	"github.com/ashish13377/Intellido/internal/models"
	"github.com/ashish13377/Intellido/internal/tools"
	gomcp "github.com/modelcontextprotocol/go-sdk/mcp"
	"go.uber.org/zap"
)

// Dispatcher runs a named tool with raw JSON input
type Dispatcher interface {
	Dispatch(ctx context.Context, name string, input json.RawMessage) (any, error)
}

var _ Dispatcher = (*tools.Registry)(nil)

// Server wraps the tool registry as an MCP server
type Server struct {
	server *gomcp.Server
	tools  Dispatcher
	logger *zap.Logger
}

// NewServer creates an MCP server over the given dispatcher
func NewServer(dispatcher Dispatcher, version string, logger *zap.Logger) *Server {
	if version == "" {
		version = "dev"
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	s := &Server{
		tools:  dispatcher,
		logger: logger,
	}
	s.server = gomcp.NewServer(
		&gomcp.Implementation{Name: "intellido", Version: version},
		nil,
	)
	s.registerTools()
	return s
}

// Run serves over stdio until the client disconnects or ctx is cancelled
func (s *Server) Run(ctx context.Context) error {
	return s.server.Run(ctx, &gomcp.StdioTransport{})
}

// MCPServer returns the underlying server for tests
func (s *Server) MCPServer() *gomcp.Server {
	return s.server
}

// --- Tool input/output types ---

type todoInput struct {
	TaskName    string `json:"taskName" jsonschema:"short name of the todo"`
	Description string `json:"description" jsonschema:"what needs to be done"`
	DueDate     string `json:"dueDate" jsonschema:"due date, RFC 3339 or YYYY-MM-DD"`
	Priority    int    `json:"priority,omitempty" jsonschema:"priority, 1 is highest"`
	IsCompleted bool   `json:"isCompleted,omitempty" jsonschema:"whether the todo is already done"`
	Type        string `json:"type,omitempty" jsonschema:"author of the todo: user or AI. Defaults to user."`
	Label       string `json:"label,omitempty" jsonschema:"free-form label used to group todos"`
}

type createMultipleInput struct {
	Todos []todoInput `json:"todos" jsonschema:"todos to create; either all are created or none"`
}

type emptyInput struct{}

type filterInput struct {
	TaskName    *string `json:"taskName,omitempty" jsonschema:"exact todo name"`
	DueDate     *string `json:"dueDate,omitempty" jsonschema:"exact due date"`
	Priority    *int    `json:"priority,omitempty" jsonschema:"exact priority"`
	IsCompleted *bool   `json:"isCompleted,omitempty" jsonschema:"completion state"`
	Label       *string `json:"label,omitempty" jsonschema:"exact label"`
	Type        *string `json:"type,omitempty" jsonschema:"user or AI"`
	SearchTerm  string  `json:"searchTerm,omitempty" jsonschema:"case-insensitive substring of taskName or description"`
}

type patchInput struct {
	TaskName    *string `json:"taskName,omitempty" jsonschema:"new name"`
	Description *string `json:"description,omitempty" jsonschema:"new description"`
	DueDate     *string `json:"dueDate,omitempty" jsonschema:"new due date"`
	Priority    *int    `json:"priority,omitempty" jsonschema:"new priority"`
	IsCompleted *bool   `json:"isCompleted,omitempty" jsonschema:"new completion state"`
	Type        *string `json:"type,omitempty" jsonschema:"user or AI"`
	Label       *string `json:"label,omitempty" jsonschema:"new label"`
}

type updateMatchingInput struct {
	Filter filterInput `json:"filter" jsonschema:"which todos to update; an empty filter matches all"`
	Update patchInput  `json:"update" jsonschema:"fields to set; at least one is required"`
}

type taskOutput struct {
	ID          string `json:"id"`
	TaskName    string `json:"taskName"`
	Description string `json:"description"`
	DueDate     string `json:"dueDate"`
	Priority    int    `json:"priority"`
	IsCompleted bool   `json:"isCompleted"`
	Type        string `json:"type"`
	Label       string `json:"label,omitempty"`
	CreatedAt   string `json:"createdAt"`
	UpdatedAt   string `json:"updatedAt"`
}

type todoOutput struct {
	Todo taskOutput `json:"todo"`
}

type todosOutput struct {
	Todos []taskOutput `json:"todos"`
	Count int          `json:"count"`
}

type updateOutput struct {
	MatchedCount  int64 `json:"matchedCount"`
	ModifiedCount int64 `json:"modifiedCount"`
}

type deleteOutput struct {
	DeletedCount int64 `json:"deletedCount"`
}

// --- Tool registration ---

func (s *Server) registerTools() {
	gomcp.AddTool(s.server, &gomcp.Tool{
		Name:        string(tools.CreateTodo),
		Description: "Create a todo and return it.",
	}, s.handleCreateTodo)

	gomcp.AddTool(s.server, &gomcp.Tool{
		Name:        string(tools.CreateMultipleTodos),
		Description: "Create several todos at once. Either all are created or none.",
	}, s.handleCreateMultipleTodos)

	gomcp.AddTool(s.server, &gomcp.Tool{
		Name:        string(tools.GetTodos),
		Description: "List every todo.",
	}, s.handleGetTodos)

	gomcp.AddTool(s.server, &gomcp.Tool{
		Name:        string(tools.SearchTodos),
		Description: "List the todos matching a filter. Fields are ANDed.",
	}, s.handleSearchTodos)

	gomcp.AddTool(s.server, &gomcp.Tool{
		Name:        string(tools.UpdateMatchingTodos),
		Description: "Apply an update to every todo matching a filter. Returns matched and modified counts.",
	}, s.handleUpdateMatchingTodos)

	gomcp.AddTool(s.server, &gomcp.Tool{
		Name:        string(tools.DeleteTodosByQuery),
		Description: "Delete every todo matching a filter. Returns the number deleted.",
	}, s.handleDeleteTodosByQuery)
}

// --- Tool handlers ---

func (s *Server) handleCreateTodo(ctx context.Context, _ *gomcp.CallToolRequest, input todoInput) (*gomcp.CallToolResult, todoOutput, error) {
	result, err := s.dispatch(ctx, tools.CreateTodo, input)
	if err != nil {
		return errorResult(err.Error()), todoOutput{}, nil
	}
	task, ok := result.(*models.Task)
	if !ok {
		return unexpected(result), todoOutput{}, nil
	}
	return nil, todoOutput{Todo: taskToOutput(task)}, nil
}

func (s *Server) handleCreateMultipleTodos(ctx context.Context, _ *gomcp.CallToolRequest, input createMultipleInput) (*gomcp.CallToolResult, todosOutput, error) {
	return s.listResult(s.dispatch(ctx, tools.CreateMultipleTodos, input.Todos))
}

func (s *Server) handleGetTodos(ctx context.Context, _ *gomcp.CallToolRequest, _ emptyInput) (*gomcp.CallToolResult, todosOutput, error) {
	return s.listResult(s.dispatch(ctx, tools.GetTodos, emptyInput{}))
}

func (s *Server) handleSearchTodos(ctx context.Context, _ *gomcp.CallToolRequest, input filterInput) (*gomcp.CallToolResult, todosOutput, error) {
	return s.listResult(s.dispatch(ctx, tools.SearchTodos, input))
}

func (s *Server) handleUpdateMatchingTodos(ctx context.Context, _ *gomcp.CallToolRequest, input updateMatchingInput) (*gomcp.CallToolResult, updateOutput, error) {
	result, err := s.dispatch(ctx, tools.UpdateMatchingTodos, input)
	if err != nil {
		return errorResult(err.Error()), updateOutput{}, nil
	}
	summary, ok := result.(database.UpdateResult)
	if !ok {
		return unexpected(result), updateOutput{}, nil
	}
	return nil, updateOutput{MatchedCount: summary.MatchedCount, ModifiedCount: summary.ModifiedCount}, nil
}

func (s *Server) handleDeleteTodosByQuery(ctx context.Context, _ *gomcp.CallToolRequest, input filterInput) (*gomcp.CallToolResult, deleteOutput, error) {
	result, err := s.dispatch(ctx, tools.DeleteTodosByQuery, input)
	if err != nil {
		return errorResult(err.Error()), deleteOutput{}, nil
	}
	summary, ok := result.(database.DeleteResult)
	if !ok {
		return unexpected(result), deleteOutput{}, nil
	}
	return nil, deleteOutput{DeletedCount: summary.DeletedCount}, nil
}

// --- Helpers ---

// dispatch re-encodes the typed MCP input into the registry's wire shape
func (s *Server) dispatch(ctx context.Context, name tools.Name, input any) (any, error) {
	raw, err := json.Marshal(input)
	if err != nil {
		return nil, fmt.Errorf("failed to encode %s input: %w", name, err)
	}
	result, err := s.tools.Dispatch(ctx, string(name), raw)
	if err != nil {
		s.logger.Warn("mcp_tool_failed",
			zap.String("tool", string(name)),
			zap.Error(err),
		)
		return nil, err
	}
	return result, nil
}

func (s *Server) listResult(result any, err error) (*gomcp.CallToolResult, todosOutput, error) {
	if err != nil {
		return errorResult(err.Error()), todosOutput{}, nil
	}
	tasks, ok := result.([]*models.Task)
	if !ok {
		return unexpected(result), todosOutput{}, nil
	}
	out := todosOutput{
		Todos: make([]taskOutput, len(tasks)),
		Count: len(tasks),
	}
	for i, t := range tasks {
		out.Todos[i] = taskToOutput(t)
	}
	return nil, out, nil
}

func taskToOutput(t *models.Task) taskOutput {
	return taskOutput{
		ID:          t.ID.String(),
		TaskName:    t.TaskName,
		Description: t.Description,
		DueDate:     t.DueDate.UTC().Format(time.RFC3339),
		Priority:    t.Priority,
		IsCompleted: t.IsCompleted,
		Type:        string(t.Type),
		Label:       t.Label,
		CreatedAt:   t.CreatedAt.UTC().Format(time.RFC3339),
		UpdatedAt:   t.UpdatedAt.UTC().Format(time.RFC3339),
	}
}

func unexpected(result any) *gomcp.CallToolResult {
	return errorResult(fmt.Sprintf("unexpected tool result %T", result))
}

func errorResult(msg string) *gomcp.CallToolResult {
	return &gomcp.CallToolResult{
		Content: []gomcp.Content{&gomcp.TextContent{Text: msg}},
		IsError: true,
	}
}
