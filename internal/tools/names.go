package tools

// Name identifies a tool the model may invoke
type Name string

const (
	CreateTodo          Name = "createTodo"
	CreateMultipleTodos Name = "createMultipleTodos"
	GetTodos            Name = "getTodos"
	SearchTodos         Name = "searchTodos"
	UpdateMatchingTodos Name = "updateMatchingTodos"
	DeleteTodosByQuery  Name = "deleteTodosByQuery"
	GetTodoByID         Name = "getTodoById"
	UpdateTodoByID      Name = "updateTodoById"
	DeleteTodoByID      Name = "deleteTodoById"
	CreateProject       Name = "createProject"
	GetProjects         Name = "getProjects"
	CreateSubTodo       Name = "createSubTodo"
	GetSubTodos         Name = "getSubTodos"
)

// Names lists every tool in catalog order
var Names = []Name{
	CreateTodo,
	CreateMultipleTodos,
	GetTodos,
	SearchTodos,
	UpdateMatchingTodos,
	DeleteTodosByQuery,
	GetTodoByID,
	UpdateTodoByID,
	DeleteTodoByID,
	CreateProject,
	GetProjects,
	CreateSubTodo,
	GetSubTodos,
}

// CoreNames are the task tools every front end exposes
var CoreNames = []Name{
	CreateTodo,
	CreateMultipleTodos,
	GetTodos,
	SearchTodos,
	UpdateMatchingTodos,
	DeleteTodosByQuery,
}

func (n Name) String() string {
	return string(n)
}
