package server

import (
	"bufio"
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"

	"github.com/felixge/httpsnoop"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/Tomlord1122/todo-stream/internal/domain"
)

// requestLogger logs one line per request. Connections hijacked by a
// websocket upgrade are reported as 101.
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hijacked := false
		w = httpsnoop.Wrap(w, httpsnoop.Hooks{
			Hijack: func(hijack httpsnoop.HijackFunc) httpsnoop.HijackFunc {
				return func() (net.Conn, *bufio.ReadWriter, error) {
					conn, rw, err := hijack()
					if err == nil {
						hijacked = true
					}
					return conn, rw, err
				}
			},
		})

		m := httpsnoop.CaptureMetrics(next, w, r)
		status := m.Code
		if hijacked {
			status = http.StatusSwitchingProtocols
		}
		slog.Info("handled",
			"method", r.Method,
			"path", r.URL.Path,
			"status", status,
			"bytes", m.Written,
			"duration", m.Duration,
			"request_id", middleware.GetReqID(r.Context()),
		)
	})
}

// methodOverride lets HTML forms issue PATCH, PUT and DELETE through a
// POST carrying a _method field.
func methodOverride(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost && isFormRequest(r) {
			switch m := strings.ToUpper(r.PostFormValue("_method")); m {
			case http.MethodPatch, http.MethodPut, http.MethodDelete:
				r.Method = m
			}
		}
		next.ServeHTTP(w, r)
	})
}

func isFormRequest(r *http.Request) bool {
	ct := r.Header.Get("Content-Type")
	return strings.HasPrefix(ct, "application/x-www-form-urlencoded") || strings.HasPrefix(ct, "multipart/form-data")
}

type todoCtxKey struct{}

// loadTodo resolves the {id} URL parameter before any handler runs.
// Unknown or malformed ids end the request with a not-found response.
func (s *Server) loadTodo(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, err := strconv.ParseUint(chi.URLParam(r, "id"), 10, 64)
		if err != nil || id == 0 {
			respondNotFound(w, r)
			return
		}
		todo, err := s.todoService.GetTodoByID(r.Context(), uint(id))
		if errors.Is(err, domain.ErrNotFound) {
			respondNotFound(w, r)
			return
		}
		if err != nil {
			respondServerError(w, r, "Failed to retrieve todo", err)
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), todoCtxKey{}, todo)))
	})
}

func todoFromContext(ctx context.Context) *domain.Todo {
	todo, _ := ctx.Value(todoCtxKey{}).(*domain.Todo)
	return todo
}
