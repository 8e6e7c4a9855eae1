package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/Tomlord1122/todo-stream/internal/service"
)

const maxBodyBytes = 1 << 20

// requestError is a malformed request body; its message is safe to show.
type requestError struct {
	status  int
	message string
}

func (e *requestError) Error() string { return e.message }

// todoParams extracts the permitted todo attributes from the request body.
// Anything other than title and status is dropped here.
func todoParams(w http.ResponseWriter, r *http.Request) (service.TodoParams, error) {
	if strings.HasPrefix(r.Header.Get("Content-Type"), "application/json") {
		return jsonTodoParams(w, r)
	}
	return formTodoParams(r)
}

func formTodoParams(r *http.Request) (service.TodoParams, error) {
	if err := r.ParseForm(); err != nil {
		return service.TodoParams{}, &requestError{http.StatusBadRequest, "Request body could not be parsed"}
	}
	var params service.TodoParams
	params.Title = permittedField(r, "title")
	params.Status = permittedField(r, "status")
	return params, nil
}

// permittedField looks up todo[name] first and falls back to a bare name.
func permittedField(r *http.Request, name string) *string {
	for _, key := range []string{"todo[" + name + "]", name} {
		if values, ok := r.PostForm[key]; ok && len(values) > 0 {
			v := values[0]
			return &v
		}
	}
	return nil
}

type jsonTodoBody struct {
	service.TodoParams
	Todo *service.TodoParams `json:"todo"`
}

func jsonTodoParams(w http.ResponseWriter, r *http.Request) (service.TodoParams, error) {
	var body jsonTodoBody
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&body); err != nil {
		return service.TodoParams{}, decodeError(err)
	}
	if body.Todo != nil {
		return *body.Todo, nil
	}
	return body.TodoParams, nil
}

func decodeError(err error) error {
	var syntaxError *json.SyntaxError
	var unmarshalTypeError *json.UnmarshalTypeError
	var maxBytesError *http.MaxBytesError
	switch {
	case errors.As(err, &syntaxError):
		return &requestError{http.StatusBadRequest, fmt.Sprintf("Request body contains badly-formed JSON (at position %d)", syntaxError.Offset)}
	case errors.Is(err, io.ErrUnexpectedEOF):
		return &requestError{http.StatusBadRequest, "Request body contains badly-formed JSON"}
	case errors.As(err, &unmarshalTypeError):
		return &requestError{http.StatusBadRequest, fmt.Sprintf("Request body contains an invalid value for the %q field (at position %d)", unmarshalTypeError.Field, unmarshalTypeError.Offset)}
	case errors.Is(err, io.EOF):
		return &requestError{http.StatusBadRequest, "Request body must not be empty"}
	case errors.As(err, &maxBytesError):
		return &requestError{http.StatusRequestEntityTooLarge, "Request body is too large"}
	default:
		return err
	}
}
