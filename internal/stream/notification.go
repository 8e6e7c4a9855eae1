// Package stream delivers rendered fragment updates to browsers subscribed
// to a named stream over websockets.
package stream

import "github.com/Tomlord1122/todo-stream/internal/domain"

// Action is the fragment operation a subscriber applies to its page.
type Action string

const (
	// ActionAppend inserts the rendered todo at the end of Target.
	ActionAppend Action = "append"
	// ActionReplace swaps the element identified by Target.
	ActionReplace Action = "replace"
	// ActionRemove deletes the element identified by Target.
	ActionRemove Action = "remove"
)

// Notification describes one committed change to a todo.
type Notification struct {
	Stream string
	Action Action
	Target string
	Todo   domain.Todo
}

// Renderer turns a notification into the bytes sent to subscribers.
type Renderer func(Notification) ([]byte, error)
