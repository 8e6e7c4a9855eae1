package domain

import (
	"errors"
	"fmt"
	"strings"
)

// ErrNotFound is returned when an identifier does not resolve to a todo.
var ErrNotFound = errors.New("record not found")

// FieldError is a single failed constraint on a todo attribute.
type FieldError struct {
	Field   string
	Message string
}

// ValidationError reports why a todo could not be saved. Todo is the
// in-memory instance holding the rejected input so forms can be re-rendered
// with it.
type ValidationError struct {
	Todo   Todo
	Fields []FieldError
}

func (e *ValidationError) Error() string {
	msgs := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		msgs = append(msgs, f.Field+" "+f.Message)
	}
	return fmt.Sprintf("validation failed: %s", strings.Join(msgs, ", "))
}

// FullMessages returns "Title can't be blank" style messages.
func (e *ValidationError) FullMessages() []string {
	msgs := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		name := f.Field
		if name != "" {
			name = strings.ToUpper(name[:1]) + name[1:]
		}
		msgs = append(msgs, name+" "+f.Message)
	}
	return msgs
}

// ByField groups messages by attribute name.
func (e *ValidationError) ByField() map[string][]string {
	out := make(map[string][]string, len(e.Fields))
	for _, f := range e.Fields {
		out[f.Field] = append(out[f.Field], f.Message)
	}
	return out
}

// AsValidationError unwraps err into a *ValidationError if it is one.
func AsValidationError(err error) (*ValidationError, bool) {
	var verr *ValidationError
	if errors.As(err, &verr) {
		return verr, true
	}
	return nil, false
}
