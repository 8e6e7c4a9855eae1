package server

import (
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	_ "github.com/joho/godotenv/autoload"

	"github.com/Tomlord1122/todo-stream/internal/database"
	"github.com/Tomlord1122/todo-stream/internal/service"
	"github.com/Tomlord1122/todo-stream/internal/stream"
	"github.com/Tomlord1122/todo-stream/internal/views"
)

const defaultPort = 8080

// Config holds the HTTP settings read from the environment.
type Config struct {
	Port           int
	AllowedOrigins []string
}

// ConfigFromEnv reads PORT and TODO_ALLOWED_ORIGINS.
func ConfigFromEnv() Config {
	cfg := Config{
		Port:           defaultPort,
		AllowedOrigins: []string{"https://*", "http://*"},
	}
	if portStr := os.Getenv("PORT"); portStr != "" {
		port, err := strconv.Atoi(portStr)
		if err != nil || port <= 0 {
			slog.Warn("invalid PORT environment variable, using default", "value", portStr, "default", defaultPort)
		} else {
			cfg.Port = port
		}
	}
	if origins := os.Getenv("TODO_ALLOWED_ORIGINS"); origins != "" {
		cfg.AllowedOrigins = nil
		for _, o := range strings.Split(origins, ",") {
			if o = strings.TrimSpace(o); o != "" {
				cfg.AllowedOrigins = append(cfg.AllowedOrigins, o)
			}
		}
	}
	return cfg
}

type Server struct {
	cfg         Config
	todoService service.TodoService
	db          database.Service
	hub         *stream.Hub
	views       *views.Renderer
}

// New assembles the application handler dependencies.
func New(cfg Config, todoService service.TodoService, dbService database.Service, hub *stream.Hub, renderer *views.Renderer) *Server {
	return &Server{
		cfg:         cfg,
		todoService: todoService,
		db:          dbService,
		hub:         hub,
		views:       renderer,
	}
}

// NewServer wraps the application routes in an http.Server listening on
// cfg.Port.
func NewServer(cfg Config, todoService service.TodoService, dbService database.Service, hub *stream.Hub, renderer *views.Renderer) *http.Server {
	appServer := New(cfg, todoService, dbService, hub, renderer)

	return &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      appServer.RegisterRoutes(),
		IdleTimeout:  time.Minute,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}
}
