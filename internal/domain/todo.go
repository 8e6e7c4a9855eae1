package domain

import (
	"fmt"
	"time"
)

// Status is the completion state of a todo.
type Status string

const (
	StatusPending    Status = "pending"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
)

// Statuses returns every accepted status in display order.
func Statuses() []Status {
	return []Status{StatusPending, StatusInProgress, StatusCompleted}
}

// Label is the human readable form used in views.
func (s Status) Label() string {
	switch s {
	case StatusPending:
		return "Pending"
	case StatusInProgress:
		return "In progress"
	case StatusCompleted:
		return "Completed"
	default:
		return string(s)
	}
}

// Todo is the only persisted entity. ID and the timestamps are managed by
// the storage layer; Title and Status are the only user-editable fields.
type Todo struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Title     string    `gorm:"not null" json:"title" validate:"notblank,max=255"`
	Status    Status    `gorm:"not null;default:pending" json:"status" validate:"oneof=pending in_progress completed"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Persisted reports whether the todo has been assigned an identifier.
func (t Todo) Persisted() bool {
	return t.ID != 0
}

// DOMID identifies the rendered representation of the todo, e.g. "todo_7".
// Unsaved todos share the "new_todo" id.
func (t Todo) DOMID() string {
	if !t.Persisted() {
		return "new_todo"
	}
	return fmt.Sprintf("todo_%d", t.ID)
}

// FormDOMID identifies the form rendered for the todo.
func (t Todo) FormDOMID() string {
	return t.DOMID() + "_form"
}
