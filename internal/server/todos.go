package server

import (
	"bytes"
	"errors"
	"fmt"
	"net/http"

	"github.com/Tomlord1122/todo-stream/internal/domain"
	"github.com/Tomlord1122/todo-stream/internal/service"
	"github.com/Tomlord1122/todo-stream/internal/views"
)

const (
	noticeCreated   = "Todo was successfully created."
	noticeUpdated   = "Todo updated successfully."
	noticeDestroyed = "Todo was successfully destroyed."
)

func (s *Server) indexHandler(w http.ResponseWriter, r *http.Request) {
	todos, err := s.todoService.GetAllTodos(r.Context())
	if err != nil {
		respondServerError(w, r, "Failed to retrieve todos", err)
		return
	}

	if requestFormat(r) == formatJSON {
		resp := make([]service.TodoResponse, 0, len(todos))
		for _, todo := range todos {
			resp = append(resp, service.ToResponse(todo))
		}
		respondWithJSON(w, http.StatusOK, resp)
		return
	}

	s.renderPage(w, r, http.StatusOK, "index", views.PageData{
		Title:  "Todos",
		Notice: popFlash(w, r),
		Todos:  todos,
		Form:   views.NewFormData(s.todoService.NewTodo(), nil),
	})
}

func (s *Server) showHandler(w http.ResponseWriter, r *http.Request) {
	todo := todoFromContext(r.Context())
	if requestFormat(r) == formatJSON {
		respondWithJSON(w, http.StatusOK, service.ToResponse(*todo))
		return
	}
	s.renderPage(w, r, http.StatusOK, "show", views.PageData{
		Title:  todo.Title,
		Notice: popFlash(w, r),
		Form:   views.NewFormData(*todo, nil),
	})
}

func (s *Server) newHandler(w http.ResponseWriter, r *http.Request) {
	s.renderPage(w, r, http.StatusOK, "new", views.PageData{
		Title: "New todo",
		Form:  views.NewFormData(s.todoService.NewTodo(), nil),
	})
}

func (s *Server) editHandler(w http.ResponseWriter, r *http.Request) {
	todo := todoFromContext(r.Context())
	s.renderPage(w, r, http.StatusOK, "edit", views.PageData{
		Title: "Editing todo",
		Form:  views.NewFormData(*todo, nil),
	})
}

func (s *Server) createHandler(w http.ResponseWriter, r *http.Request) {
	params, ok := s.readParams(w, r)
	if !ok {
		return
	}

	todo, err := s.todoService.CreateTodo(r.Context(), params)
	if verr, invalid := domain.AsValidationError(err); invalid {
		switch requestFormat(r) {
		case formatTurboStream:
			renderStream(w, r, http.StatusOK, func(buf *bytes.Buffer) error {
				return s.views.ReplaceForm(buf, verr.Todo.FormDOMID(), views.NewFormData(verr.Todo, verr))
			})
		case formatJSON:
			respondWithJSON(w, http.StatusUnprocessableEntity, map[string]any{"errors": verr.ByField()})
		default:
			s.renderPage(w, r, http.StatusUnprocessableEntity, "new", views.PageData{
				Title: "New todo",
				Form:  views.NewFormData(verr.Todo, verr),
			})
		}
		return
	}
	if err != nil {
		respondServerError(w, r, "Failed to create todo", err)
		return
	}

	switch requestFormat(r) {
	case formatTurboStream:
		renderStream(w, r, http.StatusOK, func(buf *bytes.Buffer) error {
			if err := s.views.Append(buf, service.ListTarget, *todo); err != nil {
				return err
			}
			// Reset the acting page's creation form along with the append.
			blank := s.todoService.NewTodo()
			return s.views.ReplaceForm(buf, blank.FormDOMID(), views.NewFormData(blank, nil))
		})
	case formatJSON:
		respondWithJSON(w, http.StatusCreated, service.ToResponse(*todo))
	default:
		redirectWithNotice(w, r, fmt.Sprintf("/todos/%d", todo.ID), noticeCreated, http.StatusFound)
	}
}

func (s *Server) updateHandler(w http.ResponseWriter, r *http.Request) {
	current := todoFromContext(r.Context())
	params, ok := s.readParams(w, r)
	if !ok {
		return
	}

	todo, err := s.todoService.UpdateTodo(r.Context(), current.ID, params)
	if verr, invalid := domain.AsValidationError(err); invalid {
		if requestFormat(r) == formatJSON {
			respondWithJSON(w, http.StatusUnprocessableEntity, map[string]any{"errors": verr.ByField()})
			return
		}
		s.renderPage(w, r, http.StatusUnprocessableEntity, "edit", views.PageData{
			Title: "Editing todo",
			Form:  views.NewFormData(verr.Todo, verr),
		})
		return
	}
	if errors.Is(err, domain.ErrNotFound) {
		respondNotFound(w, r)
		return
	}
	if err != nil {
		respondServerError(w, r, "Failed to update todo", err)
		return
	}

	switch requestFormat(r) {
	case formatTurboStream:
		renderStream(w, r, http.StatusOK, func(buf *bytes.Buffer) error {
			return s.views.Replace(buf, *todo)
		})
	case formatJSON:
		respondWithJSON(w, http.StatusOK, service.ToResponse(*todo))
	default:
		redirectWithNotice(w, r, "/", noticeUpdated, http.StatusFound)
	}
}

func (s *Server) destroyHandler(w http.ResponseWriter, r *http.Request) {
	current := todoFromContext(r.Context())

	todo, err := s.todoService.DeleteTodo(r.Context(), current.ID)
	if errors.Is(err, domain.ErrNotFound) {
		respondNotFound(w, r)
		return
	}
	if err != nil {
		respondServerError(w, r, "Failed to delete todo", err)
		return
	}

	switch requestFormat(r) {
	case formatTurboStream:
		renderStream(w, r, http.StatusOK, func(buf *bytes.Buffer) error {
			return s.views.Remove(buf, todo.DOMID())
		})
	case formatJSON:
		w.WriteHeader(http.StatusNoContent)
	default:
		redirectWithNotice(w, r, "/todos", noticeDestroyed, http.StatusSeeOther)
	}
}

// readParams parses the permitted attributes, answering malformed bodies
// itself. It reports whether the handler should continue.
func (s *Server) readParams(w http.ResponseWriter, r *http.Request) (service.TodoParams, bool) {
	params, err := todoParams(w, r)
	if err == nil {
		return params, true
	}
	var reqErr *requestError
	if !errors.As(err, &reqErr) {
		respondServerError(w, r, "Error processing request", err)
		return service.TodoParams{}, false
	}
	if requestFormat(r) == formatJSON {
		respondWithError(w, reqErr.status, reqErr.message)
	} else {
		http.Error(w, reqErr.message, reqErr.status)
	}
	return service.TodoParams{}, false
}
