package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/Tomlord1122/todo-stream/internal/domain"
	"github.com/Tomlord1122/todo-stream/internal/repository"
	"github.com/Tomlord1122/todo-stream/internal/stream"
)

const (
	// StreamName is the broadcast stream every todo change is published on.
	StreamName = "todos"
	// ListTarget is the anchor new todos are appended to.
	ListTarget = "todos-list"
)

// TodoParams holds the only attributes a caller may set. A nil field is
// left untouched on update.
type TodoParams struct {
	Title  *string `json:"title"`
	Status *string `json:"status"`
}

// TodoResponse is the JSON representation of a todo.
type TodoResponse struct {
	ID        uint   `json:"id"`
	Title     string `json:"title"`
	Status    string `json:"status"`
	CreatedAt string `json:"created_at"`
	UpdatedAt string `json:"updated_at"`
}

// ToResponse converts a todo to its JSON representation.
func ToResponse(todo domain.Todo) TodoResponse {
	return TodoResponse{
		ID:        todo.ID,
		Title:     todo.Title,
		Status:    string(todo.Status),
		CreatedAt: todo.CreatedAt.Format(time.RFC3339),
		UpdatedAt: todo.UpdatedAt.Format(time.RFC3339),
	}
}

// Notifier receives one notification per committed change.
type Notifier interface {
	Notify(ctx context.Context, n stream.Notification)
}

// TodoService defines the operations for managing todos.
type TodoService interface {
	// NewTodo returns the unsaved default todo used by creation forms.
	NewTodo() domain.Todo

	// CreateTodo validates and persists a todo, then announces it with an
	// append notification.
	CreateTodo(ctx context.Context, params TodoParams) (*domain.Todo, error)

	GetTodoByID(ctx context.Context, id uint) (*domain.Todo, error)

	GetAllTodos(ctx context.Context) ([]domain.Todo, error)

	// UpdateTodo applies the provided params to an existing todo, then
	// announces it with a replace notification.
	UpdateTodo(ctx context.Context, id uint, params TodoParams) (*domain.Todo, error)

	// DeleteTodo permanently removes a todo, then announces it with a
	// remove notification. The removed todo is returned.
	DeleteTodo(ctx context.Context, id uint) (*domain.Todo, error)
}

type todoService struct {
	repo     repository.TodoRepository
	notifier Notifier
}

// NewTodoService wires the repository and the notifier that receives
// post-commit notifications.
func NewTodoService(repo repository.TodoRepository, notifier Notifier) TodoService {
	return &todoService{
		repo:     repo,
		notifier: notifier,
	}
}

func (s *todoService) NewTodo() domain.Todo {
	return domain.Todo{Status: domain.StatusPending}
}

func (s *todoService) CreateTodo(ctx context.Context, params TodoParams) (*domain.Todo, error) {
	todo := s.NewTodo()
	params.apply(&todo)

	if err := domain.Validate(todo); err != nil {
		return nil, err
	}
	if err := s.repo.Create(ctx, &todo); err != nil {
		return nil, fmt.Errorf("create todo: %w", err)
	}

	slog.InfoContext(ctx, "todo created", "id", todo.ID)
	s.notify(ctx, stream.ActionAppend, ListTarget, todo)
	return &todo, nil
}

func (s *todoService) GetTodoByID(ctx context.Context, id uint) (*domain.Todo, error) {
	return s.repo.FindByID(ctx, id)
}

func (s *todoService) GetAllTodos(ctx context.Context) ([]domain.Todo, error) {
	return s.repo.GetAll(ctx)
}

func (s *todoService) UpdateTodo(ctx context.Context, id uint, params TodoParams) (*domain.Todo, error) {
	todo, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	params.apply(todo)

	if err := domain.Validate(*todo); err != nil {
		return nil, err
	}
	if err := s.repo.Update(ctx, todo); err != nil {
		return nil, fmt.Errorf("update todo: %w", err)
	}

	slog.InfoContext(ctx, "todo updated", "id", todo.ID)
	s.notify(ctx, stream.ActionReplace, todo.DOMID(), *todo)
	return todo, nil
}

func (s *todoService) DeleteTodo(ctx context.Context, id uint) (*domain.Todo, error) {
	todo, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return nil, fmt.Errorf("delete todo: %w", err)
	}

	slog.InfoContext(ctx, "todo deleted", "id", todo.ID)
	s.notify(ctx, stream.ActionRemove, todo.DOMID(), *todo)
	return todo, nil
}

func (s *todoService) notify(ctx context.Context, action stream.Action, target string, todo domain.Todo) {
	if s.notifier == nil {
		return
	}
	s.notifier.Notify(ctx, stream.Notification{
		Stream: StreamName,
		Action: action,
		Target: target,
		Todo:   todo,
	})
}

func (p TodoParams) apply(todo *domain.Todo) {
	if p.Title != nil {
		todo.Title = *p.Title
	}
	if p.Status != nil {
		todo.Status = domain.Status(*p.Status)
	}
}
