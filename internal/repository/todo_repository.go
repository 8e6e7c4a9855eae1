package repository

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/Tomlord1122/todo-stream/internal/domain"
)

// TodoRepository defines the storage operations for todos. Every mutating
// call commits before it returns.
type TodoRepository interface {
	Create(ctx context.Context, todo *domain.Todo) error
	FindByID(ctx context.Context, id uint) (*domain.Todo, error)
	GetAll(ctx context.Context) ([]domain.Todo, error)
	Update(ctx context.Context, todo *domain.Todo) error
	Delete(ctx context.Context, id uint) error
}

// gormTodoRepository implements TodoRepository using GORM
type gormTodoRepository struct {
	db *gorm.DB
}

// NewGormTodoRepository creates a new GORM todo repository
func NewGormTodoRepository(db *gorm.DB) TodoRepository {
	return &gormTodoRepository{db: db}
}

func (r *gormTodoRepository) Create(ctx context.Context, todo *domain.Todo) error {
	if err := r.db.WithContext(ctx).Create(todo).Error; err != nil {
		return fmt.Errorf("insert todo: %w", err)
	}
	return nil
}

func (r *gormTodoRepository) FindByID(ctx context.Context, id uint) (*domain.Todo, error) {
	var todo domain.Todo
	err := r.db.WithContext(ctx).First(&todo, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("todo %d: %w", id, domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("find todo %d: %w", id, err)
	}
	return &todo, nil
}

// GetAll returns every todo ordered by id, which is stable for a given
// table state.
func (r *gormTodoRepository) GetAll(ctx context.Context) ([]domain.Todo, error) {
	todos := []domain.Todo{}
	if err := r.db.WithContext(ctx).Order("id").Find(&todos).Error; err != nil {
		return nil, fmt.Errorf("list todos: %w", err)
	}
	return todos, nil
}

// Update writes the mutable columns only. The id and created_at are never
// touched; updated_at is refreshed by gorm.
func (r *gormTodoRepository) Update(ctx context.Context, todo *domain.Todo) error {
	result := r.db.WithContext(ctx).
		Model(todo).
		Updates(map[string]any{"title": todo.Title, "status": todo.Status})
	if result.Error != nil {
		return fmt.Errorf("update todo %d: %w", todo.ID, result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("todo %d: %w", todo.ID, domain.ErrNotFound)
	}
	return nil
}

// Delete permanently removes the row.
func (r *gormTodoRepository) Delete(ctx context.Context, id uint) error {
	result := r.db.WithContext(ctx).Unscoped().Delete(&domain.Todo{}, id)
	if result.Error != nil {
		return fmt.Errorf("delete todo %d: %w", id, result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("todo %d: %w", id, domain.ErrNotFound)
	}
	return nil
}
