package models

import (
	"time"

	"github.com/google/uuid"
)

// Project groups tasks and sub-tasks
type Project struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name" validate:"required,max=200"`
	Type      TaskType  `json:"type" validate:"required,task_type"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// ApplyDefaults assigns an id and the default author type.
func (p *Project) ApplyDefaults() {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	if p.Type == "" {
		p.Type = TaskTypeUser
	}
}
