// Package filter compiles sparse task filters into store predicates.
//
// A compiled Query is a plain value: the same Query renders the WHERE clause
// for search, bulk update and bulk delete, and can also be evaluated in
// memory against a task.
package filter

import (
	"fmt"
	"strings"
	"time"

	"golang.org/x/text/cases"

	"github.com/ashish13377/Intellido/internal/models"
)

// Dialect selects the SQL placeholder and case-folding syntax.
type Dialect int

const (
	// Postgres renders $N placeholders and ILIKE.
	Postgres Dialect = iota
	// SQLite renders ? placeholders and the contains_fold scalar function.
	SQLite
)

// ContainsFoldFunc is the name of the SQLite scalar function the sqlite store
// registers for case-insensitive substring search.
const ContainsFoldFunc = "contains_fold"

// Column names shared by the tasks and sub_tasks tables.
const (
	ColTaskName    = "task_name"
	ColDescription = "description"
	ColDueDate     = "due_date"
	ColPriority    = "priority"
	ColIsCompleted = "is_completed"
	ColCreatedAt   = "created_at"
	ColLabel       = "label"
	ColType        = "type"
	ColProjectID   = "project_id"
	ColParentID    = "parent_id"
)

type equality struct {
	column string
	value  any
	match  func(*models.Task) bool
}

// Query is the compiled form of a TaskFilter.
type Query struct {
	equals []equality
	search string
}

// Compile translates f into a Query. Only non-nil fields constrain the query,
// so zero values such as priority 0 or isCompleted false are kept.
func Compile(f models.TaskFilter) Query {
	var q Query

	if f.TaskName != nil {
		v := *f.TaskName
		q.equals = append(q.equals, equality{ColTaskName, v, func(t *models.Task) bool { return t.TaskName == v }})
	}
	if f.DueDate != nil {
		v := f.DueDate.UTC()
		q.equals = append(q.equals, equality{ColDueDate, v, func(t *models.Task) bool { return t.DueDate.Equal(v) }})
	}
	if f.Priority != nil {
		v := *f.Priority
		q.equals = append(q.equals, equality{ColPriority, v, func(t *models.Task) bool { return t.Priority == v }})
	}
	if f.IsCompleted != nil {
		v := *f.IsCompleted
		q.equals = append(q.equals, equality{ColIsCompleted, v, func(t *models.Task) bool { return t.IsCompleted == v }})
	}
	if f.CreatedAt != nil {
		v := f.CreatedAt.UTC()
		q.equals = append(q.equals, equality{ColCreatedAt, v, func(t *models.Task) bool { return t.CreatedAt.Equal(v) }})
	}
	if f.Label != nil {
		v := *f.Label
		q.equals = append(q.equals, equality{ColLabel, v, func(t *models.Task) bool { return t.Label == v }})
	}
	if f.Type != nil {
		v := string(*f.Type)
		q.equals = append(q.equals, equality{ColType, v, func(t *models.Task) bool { return string(t.Type) == v }})
	}
	if f.ProjectID != nil {
		v := *f.ProjectID
		q.equals = append(q.equals, equality{ColProjectID, v, func(t *models.Task) bool { return t.ProjectID != nil && *t.ProjectID == v }})
	}
	if f.ParentID != nil {
		v := *f.ParentID
		q.equals = append(q.equals, equality{ColParentID, v, func(t *models.Task) bool { return t.ParentID != nil && *t.ParentID == v }})
	}

	q.search = f.SearchTerm

	return q
}

// IsEmpty reports whether the query matches every record.
func (q Query) IsEmpty() bool {
	return len(q.equals) == 0 && q.search == ""
}

// Columns lists the equality-constrained columns in compile order.
func (q Query) Columns() []string {
	cols := make([]string, 0, len(q.equals))
	for _, e := range q.equals {
		cols = append(cols, e.column)
	}
	return cols
}

// SearchTerm returns the free-text term, or "".
func (q Query) SearchTerm() string {
	return q.search
}

// Where renders the predicate for d. Placeholders are numbered from firstArg
// for Postgres; SQLite ignores firstArg. An empty query renders "1=1".
func (q Query) Where(d Dialect, firstArg int) (string, []any) {
	if q.IsEmpty() {
		return "1=1", nil
	}
	if firstArg < 1 {
		firstArg = 1
	}

	n := firstArg
	next := func() string {
		if d == SQLite {
			return "?"
		}
		p := fmt.Sprintf("$%d", n)
		n++
		return p
	}

	parts := make([]string, 0, len(q.equals)+1)
	args := make([]any, 0, len(q.equals)+2)
	for _, e := range q.equals {
		parts = append(parts, e.column+" = "+next())
		args = append(args, bindValue(e.value))
	}

	if q.search != "" {
		switch d {
		case SQLite:
			parts = append(parts, fmt.Sprintf("(%s(%s, %s) OR %s(%s, %s))",
				ContainsFoldFunc, ColTaskName, next(),
				ContainsFoldFunc, ColDescription, next()))
			args = append(args, q.search, q.search)
		default:
			pattern := "%" + EscapeLike(q.search) + "%"
			parts = append(parts, fmt.Sprintf(`(%s ILIKE %s ESCAPE '\' OR %s ILIKE %s ESCAPE '\')`,
				ColTaskName, next(), ColDescription, next()))
			args = append(args, pattern, pattern)
		}
	}

	return strings.Join(parts, " AND "), args
}

// Matches evaluates the query against a single task in memory.
func (q Query) Matches(t *models.Task) bool {
	if t == nil {
		return false
	}
	for _, e := range q.equals {
		if !e.match(t) {
			return false
		}
	}
	if q.search != "" {
		return ContainsFold(t.TaskName, q.search) || ContainsFold(t.Description, q.search)
	}
	return true
}

// EscapeLike escapes the LIKE metacharacters %, _ and the escape character
// itself so the term matches literally.
func EscapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}

// ContainsFold reports whether substr occurs in s under Unicode case folding.
func ContainsFold(s, substr string) bool {
	// Casers carry state, so each call gets its own.
	return strings.Contains(cases.Fold().String(s), cases.Fold().String(substr))
}

func bindValue(v any) any {
	if t, ok := v.(time.Time); ok {
		return t.UTC()
	}
	return v
}
