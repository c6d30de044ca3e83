package filter

import (
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/ashish13377/Intellido/internal/models"
	"github.com/google/uuid"
	"pgregory.net/rapid"
)

func ptr[T any](v T) *T { return &v }

func fixtures() []*models.Task {
	due := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	return []*models.Task{
		{ID: uuid.New(), TaskName: "Order Cake", Description: "From the bakery on Hauptstraße", DueDate: due, Priority: 0, IsCompleted: false, Type: models.TaskTypeAI, Label: "Birthday"},
		{ID: uuid.New(), TaskName: "Buy Flights to Bali", Description: "Music event trip", DueDate: due.Add(48 * time.Hour), Priority: 1, IsCompleted: true, Type: models.TaskTypeUser, Label: "Travel"},
		{ID: uuid.New(), TaskName: "Fix a.b*c parser", Description: "Regex bug in ÄPFEL module, ΟΔΟΣ branch", DueDate: due, Priority: 2, IsCompleted: false, Type: models.TaskTypeUser, Label: ""},
	}
}

func matching(q Query, tasks []*models.Task) []string {
	var names []string
	for _, task := range tasks {
		if q.Matches(task) {
			names = append(names, task.TaskName)
		}
	}
	return names
}

func TestCompile_EmptyFilterMatchesEverything(t *testing.T) {
	t.Parallel()

	q := Compile(models.TaskFilter{})
	if !q.IsEmpty() {
		t.Fatal("Expected empty query")
	}

	tasks := fixtures()
	if got := matching(q, tasks); len(got) != len(tasks) {
		t.Errorf("Expected all %d tasks to match, got %v", len(tasks), got)
	}

	for _, d := range []Dialect{Postgres, SQLite} {
		where, args := q.Where(d, 1)
		if where != "1=1" || len(args) != 0 {
			t.Errorf("Where(%v) = %q %v, want 1=1 with no args", d, where, args)
		}
	}
}

func TestCompile_ZeroValuesAreConstraints(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		filter  models.TaskFilter
		column  string
		matches []string
	}{
		{
			name:    "isCompleted false",
			filter:  models.TaskFilter{IsCompleted: ptr(false)},
			column:  ColIsCompleted,
			matches: []string{"Order Cake", "Fix a.b*c parser"},
		},
		{
			name:    "priority 0",
			filter:  models.TaskFilter{Priority: ptr(0)},
			column:  ColPriority,
			matches: []string{"Order Cake"},
		},
		{
			name:    "empty label",
			filter:  models.TaskFilter{Label: ptr("")},
			column:  ColLabel,
			matches: []string{"Fix a.b*c parser"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			q := Compile(tt.filter)
			if !reflect.DeepEqual(q.Columns(), []string{tt.column}) {
				t.Fatalf("Columns() = %v, want [%s]", q.Columns(), tt.column)
			}
			if got := matching(q, fixtures()); !reflect.DeepEqual(got, tt.matches) {
				t.Errorf("matching = %v, want %v", got, tt.matches)
			}
		})
	}
}

func TestCompile_SearchTermIsLiteralAndCaseInsensitive(t *testing.T) {
	t.Parallel()

	tests := []struct {
		term    string
		matches []string
	}{
		{"a.b*c", []string{"Fix a.b*c parser"}},
		{"A.B*C", []string{"Fix a.b*c parser"}},
		{"a.b", []string{"Fix a.b*c parser"}},
		{".*", nil},
		{"bali", []string{"Buy Flights to Bali"}},
		{"äpfel", []string{"Fix a.b*c parser"}},
		{"(unclosed[", nil},
		{"%", nil},
		{"οδος", []string{"Fix a.b*c parser"}},
		{"STRASSE", []string{"Order Cake"}},
		{" ", []string{"Order Cake", "Buy Flights to Bali", "Fix a.b*c parser"}},
		{"  ", nil},
	}

	for _, tt := range tests {
		t.Run(tt.term, func(t *testing.T) {
			t.Parallel()
			q := Compile(models.TaskFilter{SearchTerm: tt.term})
			if got := matching(q, fixtures()); !reflect.DeepEqual(got, tt.matches) {
				t.Errorf("matching(%q) = %v, want %v", tt.term, got, tt.matches)
			}
		})
	}
}

func TestQuery_WherePostgres(t *testing.T) {
	t.Parallel()

	q := Compile(models.TaskFilter{
		IsCompleted: ptr(true),
		Priority:    ptr(0),
		SearchTerm:  "50%_off",
	})

	where, args := q.Where(Postgres, 3)
	want := `priority = $3 AND is_completed = $4 AND (task_name ILIKE $5 ESCAPE '\' OR description ILIKE $6 ESCAPE '\')`
	if where != want {
		t.Errorf("Where() = %q\nwant %q", where, want)
	}
	wantArgs := []any{0, true, `%50\%\_off%`, `%50\%\_off%`}
	if !reflect.DeepEqual(args, wantArgs) {
		t.Errorf("args = %#v, want %#v", args, wantArgs)
	}
}

func TestQuery_WhereSQLite(t *testing.T) {
	t.Parallel()

	q := Compile(models.TaskFilter{Label: ptr("Travel"), SearchTerm: " bali "})

	where, args := q.Where(SQLite, 1)
	want := "label = ? AND (contains_fold(task_name, ?) OR contains_fold(description, ?))"
	if where != want {
		t.Errorf("Where() = %q\nwant %q", where, want)
	}
	wantArgs := []any{"Travel", "bali", "bali"}
	if !reflect.DeepEqual(args, wantArgs) {
		t.Errorf("args = %#v, want %#v", args, wantArgs)
	}
}

func TestEscapeLike(t *testing.T) {
	t.Parallel()

	tests := map[string]string{
		"plain":   "plain",
		"100%":    `100\%`,
		"a_b":     `a\_b`,
		`back\sl`: `back\\sl`,
	}
	for in, want := range tests {
		if got := EscapeLike(in); got != want {
			t.Errorf("EscapeLike(%q) = %q, want %q", in, got, want)
		}
	}
}

func filterGen() *rapid.Generator[models.TaskFilter] {
	return rapid.Custom(func(t *rapid.T) models.TaskFilter {
		var f models.TaskFilter
		if rapid.Bool().Draw(t, "hasName") {
			f.TaskName = ptr(rapid.SampledFrom([]string{"Order Cake", "Buy Flights to Bali", "other"}).Draw(t, "name"))
		}
		if rapid.Bool().Draw(t, "hasPriority") {
			f.Priority = ptr(rapid.IntRange(0, 3).Draw(t, "priority"))
		}
		if rapid.Bool().Draw(t, "hasCompleted") {
			f.IsCompleted = ptr(rapid.Bool().Draw(t, "completed"))
		}
		if rapid.Bool().Draw(t, "hasLabel") {
			f.Label = ptr(rapid.SampledFrom([]string{"", "Travel", "Birthday"}).Draw(t, "label"))
		}
		if rapid.Bool().Draw(t, "hasSearch") {
			f.SearchTerm = rapid.String().Draw(t, "search")
		}
		return f
	})
}

func TestCompile_Idempotent(t *testing.T) {
	t.Parallel()

	tasks := fixtures()
	rapid.Check(t, func(t *rapid.T) {
		f := filterGen().Draw(t, "filter")

		a, b := Compile(f), Compile(f)

		if !reflect.DeepEqual(matching(a, tasks), matching(b, tasks)) {
			t.Fatalf("compiled queries select different records for %+v", f)
		}
		for _, d := range []Dialect{Postgres, SQLite} {
			wa, aa := a.Where(d, 1)
			wb, ab := b.Where(d, 1)
			if wa != wb || !reflect.DeepEqual(aa, ab) {
				t.Fatalf("Where(%v) differs: %q %v vs %q %v", d, wa, aa, wb, ab)
			}
		}
	})
}

func TestCompile_ConstraintCountMatchesDefinedFields(t *testing.T) {
	t.Parallel()

	rapid.Check(t, func(t *rapid.T) {
		f := filterGen().Draw(t, "filter")
		q := Compile(f)

		want := 0
		for _, set := range []bool{f.TaskName != nil, f.Priority != nil, f.IsCompleted != nil, f.Label != nil} {
			if set {
				want++
			}
		}
		if got := len(q.Columns()); got != want {
			t.Fatalf("got %d equality constraints, want %d", got, want)
		}

		_, args := q.Where(Postgres, 1)
		extra := 0
		if q.SearchTerm() != "" {
			extra = 2
		}
		if len(args) != want+extra {
			t.Fatalf("got %d args, want %d", len(args), want+extra)
		}
	})
}

func TestCompile_WhitespaceSearchIsAConstraint(t *testing.T) {
	t.Parallel()

	q := Compile(models.TaskFilter{SearchTerm: " "})
	if q.IsEmpty() {
		t.Fatal("Expected a whitespace-only search term to constrain the query")
	}
	if q.SearchTerm() != " " {
		t.Errorf("SearchTerm() = %q, want %q", q.SearchTerm(), " ")
	}
	if q.Matches(&models.Task{TaskName: "Solo", Description: "none"}) {
		t.Error("Expected a task without whitespace not to match")
	}
}

func TestContainsFold_AgreesWithEqualFold(t *testing.T) {
	t.Parallel()

	rapid.Check(t, func(t *rapid.T) {
		s := rapid.StringN(1, 12, -1).Draw(t, "s")
		upper := strings.ToUpper(s)
		if strings.EqualFold(s, upper) && !ContainsFold("x"+upper+"y", s) {
			t.Fatalf("ContainsFold(%q, %q) = false", "x"+upper+"y", s)
		}
		if !ContainsFold(s, s) {
			t.Fatalf("ContainsFold(%q, itself) = false", s)
		}
	})
}

func TestQuery_MatchesOwnFields(t *testing.T) {
	t.Parallel()

	for _, task := range fixtures() {
		f := models.TaskFilter{
			TaskName:    ptr(task.TaskName),
			DueDate:     ptr(task.DueDate),
			Priority:    ptr(task.Priority),
			IsCompleted: ptr(task.IsCompleted),
			Type:        ptr(task.Type),
			Label:       ptr(task.Label),
		}
		if !Compile(f).Matches(task) {
			t.Errorf("Expected filter built from %q to match it", task.TaskName)
		}
	}
}
