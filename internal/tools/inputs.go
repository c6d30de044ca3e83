package tools

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ashish13377/Intellido/internal/models"
	"github.com/ashish13377/Intellido/internal/validation"
	"github.com/google/uuid"
)

// Timestamp accepts RFC 3339 as well as the looser date forms models tend to
// emit. Values without a zone are read as UTC.
type Timestamp struct {
	time.Time
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04",
	"2006-01-02",
}

// UnmarshalJSON implements json.Unmarshaler
func (t *Timestamp) UnmarshalJSON(data []byte) error {
	if bytes.Equal(data, []byte("null")) {
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("date must be a string: %w", err)
	}
	s = strings.TrimSpace(s)
	for _, layout := range timestampLayouts {
		if parsed, err := time.Parse(layout, s); err == nil {
			t.Time = parsed.UTC()
			return nil
		}
	}
	return fmt.Errorf("unrecognised date %q", s)
}

// MarshalJSON implements json.Marshaler
func (t Timestamp) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.Time.UTC().Format(time.RFC3339))
}

func timePtr(t *Timestamp) *time.Time {
	if t == nil {
		return nil
	}
	v := t.Time
	return &v
}

func typePtr(s *string) *models.TaskType {
	if s == nil {
		return nil
	}
	v := models.TaskType(*s)
	return &v
}

func checkType(s *string) error {
	if s == nil {
		return nil
	}
	return validation.ValidateTaskType(*s)
}

// TaskInput is the shape of a task the model asks to create
type TaskInput struct {
	TaskName    string     `json:"taskName"`
	Description string     `json:"description"`
	DueDate     Timestamp  `json:"dueDate"`
	Priority    int        `json:"priority"`
	IsCompleted bool       `json:"isCompleted"`
	Type        string     `json:"type,omitempty"`
	Label       string     `json:"label"`
	ProjectID   *uuid.UUID `json:"projectId,omitempty"`
	ParentID    *uuid.UUID `json:"parentId,omitempty"`
}

// Task converts the input into a model. Field-level rules are enforced by
// the store.
func (in TaskInput) Task() *models.Task {
	return &models.Task{
		TaskName:    in.TaskName,
		Description: in.Description,
		DueDate:     in.DueDate.Time,
		Priority:    in.Priority,
		IsCompleted: in.IsCompleted,
		Type:        models.TaskType(in.Type),
		Label:       in.Label,
		ProjectID:   in.ProjectID,
		ParentID:    in.ParentID,
	}
}

// TaskBatch is the input of createMultipleTodos
type TaskBatch []TaskInput

func (b TaskBatch) validate() error {
	if len(b) == 0 {
		return errors.New("at least one todo is required")
	}
	return nil
}

// FilterInput is a sparse filter over tasks
type FilterInput struct {
	TaskName    *string    `json:"taskName,omitempty"`
	DueDate     *Timestamp `json:"dueDate,omitempty"`
	Priority    *int       `json:"priority,omitempty"`
	IsCompleted *bool      `json:"isCompleted,omitempty"`
	CreatedAt   *Timestamp `json:"createdAt,omitempty"`
	Label       *string    `json:"label,omitempty"`
	Type        *string    `json:"type,omitempty"`
	ProjectID   *uuid.UUID `json:"projectId,omitempty"`
	SearchTerm  string     `json:"searchTerm,omitempty"`
}

func (f FilterInput) validate() error {
	return checkType(f.Type)
}

// Filter converts the input into a model filter
func (f FilterInput) Filter() models.TaskFilter {
	return models.TaskFilter{
		TaskName:    f.TaskName,
		DueDate:     timePtr(f.DueDate),
		Priority:    f.Priority,
		IsCompleted: f.IsCompleted,
		CreatedAt:   timePtr(f.CreatedAt),
		Label:       f.Label,
		Type:        typePtr(f.Type),
		ProjectID:   f.ProjectID,
		SearchTerm:  f.SearchTerm,
	}
}

// PatchInput is a partial task update
type PatchInput struct {
	TaskName    *string    `json:"taskName,omitempty"`
	Description *string    `json:"description,omitempty"`
	DueDate     *Timestamp `json:"dueDate,omitempty"`
	Priority    *int       `json:"priority,omitempty"`
	IsCompleted *bool      `json:"isCompleted,omitempty"`
	Type        *string    `json:"type,omitempty"`
	Label       *string    `json:"label,omitempty"`
	ProjectID   *uuid.UUID `json:"projectId,omitempty"`
}

func (p PatchInput) validate() error {
	if p.Patch().IsEmpty() {
		return errors.New("update must set at least one field")
	}
	return checkType(p.Type)
}

// Patch converts the input into a model patch
func (p PatchInput) Patch() models.TaskPatch {
	return models.TaskPatch{
		TaskName:    p.TaskName,
		Description: p.Description,
		DueDate:     timePtr(p.DueDate),
		Priority:    p.Priority,
		IsCompleted: p.IsCompleted,
		Type:        typePtr(p.Type),
		Label:       p.Label,
		ProjectID:   p.ProjectID,
	}
}

// UpdateMatchingInput is the input of updateMatchingTodos
type UpdateMatchingInput struct {
	Filter FilterInput `json:"filter"`
	Update PatchInput  `json:"update"`
}

func (in UpdateMatchingInput) validate() error {
	if err := in.Filter.validate(); err != nil {
		return fmt.Errorf("filter: %w", err)
	}
	if err := in.Update.validate(); err != nil {
		return fmt.Errorf("update: %w", err)
	}
	return nil
}

// IDInput addresses one record
type IDInput struct {
	ID uuid.UUID `json:"id"`
}

func (in IDInput) validate() error {
	if in.ID == uuid.Nil {
		return errors.New("id is required")
	}
	return nil
}

// UpdateByIDInput is the input of updateTodoById
type UpdateByIDInput struct {
	ID     uuid.UUID  `json:"id"`
	Update PatchInput `json:"update"`
}

func (in UpdateByIDInput) validate() error {
	if in.ID == uuid.Nil {
		return errors.New("id is required")
	}
	if err := in.Update.validate(); err != nil {
		return fmt.Errorf("update: %w", err)
	}
	return nil
}

// ProjectInput is the input of createProject
type ProjectInput struct {
	Name string `json:"name"`
	Type string `json:"type,omitempty"`
}

// SubTodoFilterInput is the input of getSubTodos
type SubTodoFilterInput struct {
	ParentID *uuid.UUID `json:"parentId,omitempty"`
}

// NoInput is the input of tools that take no arguments
type NoInput struct{}

type validatable interface {
	validate() error
}

// decodeInput decodes raw into v. Absent or null input decodes as the zero
// value; unknown fields are rejected so a misspelt filter key never widens a
// bulk update or delete.
func decodeInput(raw json.RawMessage, v any) error {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		trimmed = []byte("{}")
		if _, isBatch := v.(*TaskBatch); isBatch {
			trimmed = []byte("[]")
		}
	}

	dec := json.NewDecoder(bytes.NewReader(trimmed))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return err
	}
	if dec.More() {
		return errors.New("unexpected data after input")
	}

	if c, ok := v.(validatable); ok {
		return c.validate()
	}
	return nil
}
