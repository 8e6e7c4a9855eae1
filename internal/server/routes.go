package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/Tomlord1122/todo-stream/internal/service"
)

func (s *Server) RegisterRoutes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(methodOverride)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   s.cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS", "PATCH"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-CSRF-Token"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/", s.indexHandler)
	r.Get("/health", s.healthHandler)

	r.Route("/todos", func(r chi.Router) {
		r.Get("/", s.indexHandler)
		r.Post("/", s.createHandler)
		r.Get("/new", s.newHandler)
		r.Method(http.MethodGet, "/stream", s.hub.Handler(service.StreamName))

		r.Route("/{id}", func(r chi.Router) {
			r.Use(s.loadTodo)
			r.Get("/", s.showHandler)
			r.Get("/edit", s.editHandler)
			r.Patch("/", s.updateHandler)
			r.Put("/", s.updateHandler)
			r.Delete("/", s.destroyHandler)
		})
	})

	return r
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	healthStats := s.db.Health()
	if status, ok := healthStats["status"]; ok && status == "down" {
		respondWithJSON(w, http.StatusServiceUnavailable, healthStats)
		return
	}
	respondWithJSON(w, http.StatusOK, healthStats)
}
