package tools

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/ashish13377/Intellido/internal/database"
	"github.com/ashish13377/Intellido/internal/filter"
	"github.com/ashish13377/Intellido/internal/models"
	"github.com/ashish13377/Intellido/internal/queue"
	"github.com/google/uuid"
)

// fakeTaskStore fails the test on any call without a configured func
type fakeTaskStore struct {
	t          *testing.T
	findAll    func(ctx context.Context) ([]*models.Task, error)
	deleteMany func(ctx context.Context, q filter.Query) (database.DeleteResult, error)
}

var _ database.TaskStore = (*fakeTaskStore)(nil)

func (f *fakeTaskStore) unexpected(method string) {
	f.t.Helper()
	f.t.Errorf("unexpected store call: %s", method)
}

func (f *fakeTaskStore) Create(context.Context, *models.Task) (*models.Task, error) {
	f.unexpected("Create")
	return nil, nil
}

func (f *fakeTaskStore) CreateMany(context.Context, []*models.Task) ([]*models.Task, error) {
	f.unexpected("CreateMany")
	return nil, nil
}

func (f *fakeTaskStore) FindAll(ctx context.Context) ([]*models.Task, error) {
	if f.findAll != nil {
		return f.findAll(ctx)
	}
	f.unexpected("FindAll")
	return nil, nil
}

func (f *fakeTaskStore) FindByID(context.Context, uuid.UUID) (*models.Task, error) {
	f.unexpected("FindByID")
	return nil, nil
}

func (f *fakeTaskStore) FindOne(context.Context, filter.Query) (*models.Task, error) {
	f.unexpected("FindOne")
	return nil, nil
}

func (f *fakeTaskStore) FindMany(context.Context, filter.Query) ([]*models.Task, error) {
	f.unexpected("FindMany")
	return nil, nil
}

func (f *fakeTaskStore) UpdateByID(context.Context, uuid.UUID, models.TaskPatch) (*models.Task, error) {
	f.unexpected("UpdateByID")
	return nil, nil
}

func (f *fakeTaskStore) UpdateMany(context.Context, filter.Query, models.TaskPatch) (database.UpdateResult, error) {
	f.unexpected("UpdateMany")
	return database.UpdateResult{}, nil
}

func (f *fakeTaskStore) DeleteByID(context.Context, uuid.UUID) (*models.Task, error) {
	f.unexpected("DeleteByID")
	return nil, nil
}

func (f *fakeTaskStore) DeleteMany(ctx context.Context, q filter.Query) (database.DeleteResult, error) {
	if f.deleteMany != nil {
		return f.deleteMany(ctx, q)
	}
	f.unexpected("DeleteMany")
	return database.DeleteResult{}, nil
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []*queue.TaskEvent
	err    error
}

var _ queue.Publisher = (*recordingPublisher)(nil)

func (p *recordingPublisher) Publish(_ context.Context, event *queue.TaskEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return p.err
}

func (p *recordingPublisher) recorded() []*queue.TaskEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]*queue.TaskEvent(nil), p.events...)
}

func newSQLiteRegistry(t *testing.T, events queue.Publisher) (*Registry, *database.TaskRepository) {
	t.Helper()

	db, err := database.Open(database.DriverSQLite, ":memory:")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	tasks := database.NewTaskRepository(db)
	reg := NewRegistry(Config{
		Tasks:    tasks,
		SubTasks: database.NewSubTaskRepository(db),
		Projects: database.NewProjectRepository(db),
		Events:   events,
	})
	return reg, tasks
}

func TestRegistry_EveryNameHasAnEntry(t *testing.T) {
	t.Parallel()

	reg := NewRegistry(Config{})
	if len(reg.tools) != len(Names) {
		t.Errorf("Expected %d tools, got %d", len(Names), len(reg.tools))
	}
	for _, name := range Names {
		entry, ok := reg.tools[name]
		if !ok {
			t.Errorf("No dispatch entry for %s", name)
			continue
		}
		if entry.Name != name {
			t.Errorf("Entry for %s is named %s", name, entry.Name)
		}
		if entry.Description == "" {
			t.Errorf("Tool %s has no description", name)
		}
		if _, err := entry.bind(json.RawMessage(entry.Example)); err != nil {
			t.Errorf("Example for %s does not decode: %v", name, err)
		}
	}
	for _, name := range CoreNames {
		if !reg.Has(string(name)) {
			t.Errorf("Core tool %s not registered", name)
		}
	}
	if got := reg.Describe(); len(got) != len(Names) || got[0].Name != CreateTodo {
		t.Errorf("Describe() returned %d entries starting with %v", len(got), got)
	}
}

func TestRegistry_DispatchUnknownTool(t *testing.T) {
	t.Parallel()

	reg := NewRegistry(Config{Tasks: &fakeTaskStore{t: t}})
	_, err := reg.Dispatch(context.Background(), "launchRocket", json.RawMessage(`{}`))
	if !errors.Is(err, ErrUnknownTool) {
		t.Fatalf("Expected ErrUnknownTool, got %v", err)
	}
}

func TestRegistry_DispatchInvalidInput(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		tool  Name
		input string
	}{
		{"malformed json", SearchTodos, `{"searchTerm":`},
		{"unknown filter key", DeleteTodosByQuery, `{"completed": true}`},
		{"wrong field type", SearchTodos, `{"priority": "high"}`},
		{"bad type enum", SearchTodos, `{"type": "robot"}`},
		{"empty update", UpdateMatchingTodos, `{"filter": {"label": "x"}, "update": {}}`},
		{"object instead of batch", CreateMultipleTodos, `{"todos": []}`},
		{"empty batch", CreateMultipleTodos, `[]`},
		{"bad date", CreateTodo, `{"taskName": "x", "description": "y", "dueDate": "next tuesday"}`},
		{"missing id", GetTodoByID, `{}`},
		{"arguments to getTodos", GetTodos, `{"label": "x"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			// the fake fails the test if any handler reaches the store
			reg := NewRegistry(Config{Tasks: &fakeTaskStore{t: t}})
			_, err := reg.Dispatch(context.Background(), string(tt.tool), json.RawMessage(tt.input))
			if !errors.Is(err, ErrInvalidToolInput) {
				t.Errorf("Expected ErrInvalidToolInput, got %v", err)
			}
		})
	}
}

func TestRegistry_DispatchTimeout(t *testing.T) {
	t.Parallel()

	store := &fakeTaskStore{
		t: t,
		findAll: func(ctx context.Context) ([]*models.Task, error) {
			<-ctx.Done()
			return nil, ctx.Err()
		},
	}
	reg := NewRegistry(Config{Tasks: store, Timeout: 10 * time.Millisecond})

	_, err := reg.Dispatch(context.Background(), string(GetTodos), nil)
	if !errors.Is(err, ErrToolExecution) {
		t.Fatalf("Expected ErrToolExecution, got %v", err)
	}
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Expected deadline in chain, got %v", err)
	}
}

func TestRegistry_CreateMultipleTodosIsAtomic(t *testing.T) {
	t.Parallel()

	events := &recordingPublisher{}
	reg, tasks := newSQLiteRegistry(t, events)
	ctx := context.Background()

	input := `[
		{"taskName": "Order Cake", "description": "Bakery", "dueDate": "2025-03-01T12:00:00Z", "priority": 1, "type": "AI", "label": "Birthday Party Event"},
		{"taskName": "Send Invitations", "description": "Guests", "dueDate": "2025-02-25T09:00:00Z", "priority": 2, "type": "AI", "label": "Birthday Party Event"},
		{"description": "No name", "dueDate": "2025-02-28T15:00:00Z", "priority": 3, "type": "AI", "label": "Birthday Party Event"},
		{"taskName": "Arrange Music", "description": "Playlist", "dueDate": "2025-02-27T18:00:00Z", "priority": 4, "type": "AI", "label": "Birthday Party Event"}
	]`
	_, err := reg.Dispatch(ctx, string(CreateMultipleTodos), json.RawMessage(input))
	if !errors.Is(err, ErrToolExecution) {
		t.Fatalf("Expected ErrToolExecution, got %v", err)
	}
	if !errors.Is(err, database.ErrValidationFailed) {
		t.Errorf("Expected validation failure in chain, got %v", err)
	}

	all, err := tasks.FindAll(ctx)
	if err != nil {
		t.Fatalf("FindAll() error = %v", err)
	}
	if len(all) != 0 {
		t.Errorf("Expected no tasks created, got %d", len(all))
	}
	if n := len(events.recorded()); n != 0 {
		t.Errorf("Expected no events for a failed batch, got %d", n)
	}
}

func TestRegistry_ScenarioDeleteCompleted(t *testing.T) {
	t.Parallel()

	events := &recordingPublisher{}
	reg, tasks := newSQLiteRegistry(t, events)
	ctx := context.Background()

	seed := `[
		{"taskName": "Buy Flights to Bali", "description": "Flights", "dueDate": "2025-02-26", "isCompleted": true},
		{"taskName": "Book Hotel", "description": "Hotel in Ubud", "dueDate": "2025-02-27", "isCompleted": true},
		{"taskName": "Pack Bags", "description": "Sunscreen", "dueDate": "2025-02-28", "isCompleted": false}
	]`
	created, err := reg.Dispatch(ctx, string(CreateMultipleTodos), json.RawMessage(seed))
	if err != nil {
		t.Fatalf("seed: %v", err)
	}
	if n := len(created.([]*models.Task)); n != 3 {
		t.Fatalf("Expected 3 created, got %d", n)
	}

	result, err := reg.Dispatch(ctx, string(DeleteTodosByQuery), json.RawMessage(`{"isCompleted": true}`))
	if err != nil {
		t.Fatalf("Dispatch() error = %v", err)
	}
	if got := result.(database.DeleteResult); got.DeletedCount != 2 {
		t.Errorf("DeletedCount = %d, want 2", got.DeletedCount)
	}

	rest, _ := tasks.FindAll(ctx)
	if len(rest) != 1 || rest[0].TaskName != "Pack Bags" {
		t.Errorf("Unexpected remaining tasks: %+v", rest)
	}

	recorded := events.recorded()
	if len(recorded) != 2 {
		t.Fatalf("Expected 2 events, got %d", len(recorded))
	}
	if recorded[0].Type != queue.EventTaskCreated || recorded[0].Count != 3 || len(recorded[0].TaskIDs) != 3 {
		t.Errorf("Unexpected create event: %+v", recorded[0])
	}
	if recorded[1].Type != queue.EventTaskDeleted || recorded[1].Count != 2 {
		t.Errorf("Unexpected delete event: %+v", recorded[1])
	}
}

func TestRegistry_UpdateAndSearch(t *testing.T) {
	t.Parallel()

	reg, _ := newSQLiteRegistry(t, nil)
	ctx := context.Background()

	for _, in := range []string{
		`{"taskName": "Buy Flights Tickets to Bali", "description": "Music event", "dueDate": "2025-02-26T10:00:00Z", "priority": 1, "label": "Travel to Bali"}`,
		`{"taskName": "Renew passport", "description": "Before the BALI trip", "dueDate": "2025-02-01"}`,
		`{"taskName": "Call mum", "description": "Sunday", "dueDate": "2025-02-02"}`,
	} {
		if _, err := reg.Dispatch(ctx, string(CreateTodo), json.RawMessage(in)); err != nil {
			t.Fatalf("createTodo: %v", err)
		}
	}

	found, err := reg.Dispatch(ctx, string(SearchTodos), json.RawMessage(`{"searchTerm": "bali"}`))
	if err != nil {
		t.Fatalf("searchTodos: %v", err)
	}
	if n := len(found.([]*models.Task)); n != 2 {
		t.Errorf("Expected 2 matches, got %d", n)
	}

	updated, err := reg.Dispatch(ctx, string(UpdateMatchingTodos),
		json.RawMessage(`{"filter": {"searchTerm": "Bali"}, "update": {"isCompleted": true}}`))
	if err != nil {
		t.Fatalf("updateMatchingTodos: %v", err)
	}
	if got := updated.(database.UpdateResult); got.MatchedCount != 2 || got.ModifiedCount != 2 {
		t.Errorf("Unexpected update result: %+v", got)
	}

	open, err := reg.Dispatch(ctx, string(SearchTodos), json.RawMessage(`{"isCompleted": false}`))
	if err != nil {
		t.Fatalf("searchTodos: %v", err)
	}
	if tasks := open.([]*models.Task); len(tasks) != 1 || tasks[0].TaskName != "Call mum" {
		t.Errorf("Unexpected open tasks: %+v", tasks)
	}
}

func TestRegistry_SingleRecordTools(t *testing.T) {
	t.Parallel()

	reg, _ := newSQLiteRegistry(t, nil)
	ctx := context.Background()

	created, err := reg.Dispatch(ctx, string(CreateTodo),
		json.RawMessage(`{"taskName": "Order Cake", "description": "Bakery", "dueDate": "2025-03-01"}`))
	if err != nil {
		t.Fatalf("createTodo: %v", err)
	}
	id := created.(*models.Task).ID.String()

	got, err := reg.Dispatch(ctx, string(GetTodoByID), json.RawMessage(`{"id": "`+id+`"}`))
	if err != nil || got.(*models.Task).TaskName != "Order Cake" {
		t.Fatalf("getTodoById = %v, %v", got, err)
	}

	upd, err := reg.Dispatch(ctx, string(UpdateTodoByID), json.RawMessage(`{"id": "`+id+`", "update": {"priority": 3}}`))
	if err != nil || upd.(*models.Task).Priority != 3 {
		t.Fatalf("updateTodoById = %v, %v", upd, err)
	}

	if _, err := reg.Dispatch(ctx, string(DeleteTodoByID), json.RawMessage(`{"id": "`+id+`"}`)); err != nil {
		t.Fatalf("deleteTodoById: %v", err)
	}

	_, err = reg.Dispatch(ctx, string(GetTodoByID), json.RawMessage(`{"id": "`+id+`"}`))
	if !errors.Is(err, ErrToolExecution) || !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected not found execution error, got %v", err)
	}
}

func TestRegistry_ProjectsAndSubTodos(t *testing.T) {
	t.Parallel()

	events := &recordingPublisher{}
	reg, _ := newSQLiteRegistry(t, events)
	ctx := context.Background()

	project, err := reg.Dispatch(ctx, string(CreateProject), json.RawMessage(`{"name": "Birthday Party"}`))
	if err != nil {
		t.Fatalf("createProject: %v", err)
	}
	if recorded := events.recorded(); len(recorded) != 1 || recorded[0].Type != queue.EventProjectCreated {
		t.Errorf("Expected one project.created event, got %+v", recorded)
	}
	parent, err := reg.Dispatch(ctx, string(CreateTodo),
		json.RawMessage(`{"taskName": "Party", "description": "Plan it", "dueDate": "2025-03-01"}`))
	if err != nil {
		t.Fatalf("createTodo: %v", err)
	}
	projectID := project.(*models.Project).ID.String()
	parentID := parent.(*models.Task).ID.String()

	_, err = reg.Dispatch(ctx, string(CreateSubTodo), json.RawMessage(
		`{"taskName": "Buy balloons", "description": "Red", "dueDate": "2025-02-28", "parentId": "`+uuid.NewString()+`", "projectId": "`+projectID+`"}`))
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound for missing parent, got %v", err)
	}

	_, err = reg.Dispatch(ctx, string(CreateSubTodo), json.RawMessage(
		`{"taskName": "Buy balloons", "description": "Red", "dueDate": "2025-02-28"}`))
	if !errors.Is(err, ErrToolExecution) || !errors.Is(err, database.ErrValidationFailed) {
		t.Errorf("Expected validation failure without parent, got %v", err)
	}

	if _, err := reg.Dispatch(ctx, string(CreateSubTodo), json.RawMessage(
		`{"taskName": "Buy balloons", "description": "Red", "dueDate": "2025-02-28", "parentId": "`+parentID+`", "projectId": "`+projectID+`"}`)); err != nil {
		t.Fatalf("createSubTodo: %v", err)
	}

	subs, err := reg.Dispatch(ctx, string(GetSubTodos), json.RawMessage(`{"parentId": "`+parentID+`"}`))
	if err != nil || len(subs.([]*models.Task)) != 1 {
		t.Errorf("getSubTodos = %v, %v", subs, err)
	}
	projects, err := reg.Dispatch(ctx, string(GetProjects), nil)
	if err != nil || len(projects.([]*models.Project)) != 1 {
		t.Errorf("getProjects = %v, %v", projects, err)
	}
}

func TestRegistry_PublishFailureDoesNotFailTool(t *testing.T) {
	t.Parallel()

	events := &recordingPublisher{err: errors.New("broker down")}
	reg, _ := newSQLiteRegistry(t, events)

	_, err := reg.Dispatch(context.Background(), string(CreateTodo),
		json.RawMessage(`{"taskName": "Order Cake", "description": "Bakery", "dueDate": "2025-03-01"}`))
	if err != nil {
		t.Fatalf("Expected success despite publish failure, got %v", err)
	}
	if len(events.recorded()) != 1 {
		t.Error("Expected one publish attempt")
	}
}

func TestTimestamp_UnmarshalJSON(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in      string
		want    time.Time
		wantErr bool
	}{
		{`"2025-02-26T10:00:00Z"`, time.Date(2025, 2, 26, 10, 0, 0, 0, time.UTC), false},
		{`"2025-02-26T12:00:00+02:00"`, time.Date(2025, 2, 26, 10, 0, 0, 0, time.UTC), false},
		{`"2025-02-26T10:00:00"`, time.Date(2025, 2, 26, 10, 0, 0, 0, time.UTC), false},
		{`"2025-02-26"`, time.Date(2025, 2, 26, 0, 0, 0, 0, time.UTC), false},
		{`null`, time.Time{}, false},
		{`"tomorrow"`, time.Time{}, true},
		{`20250226`, time.Time{}, true},
	}

	for _, tt := range tests {
		var ts Timestamp
		err := json.Unmarshal([]byte(tt.in), &ts)
		if (err != nil) != tt.wantErr {
			t.Errorf("Unmarshal(%s) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if !tt.wantErr && !ts.Equal(tt.want) {
			t.Errorf("Unmarshal(%s) = %v, want %v", tt.in, ts.Time, tt.want)
		}
	}
}
