package server

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/Tomlord1122/todo-stream/internal/views"
)

// format is the representation a client asked for.
type format int

const (
	formatHTML format = iota
	formatTurboStream
	formatJSON
)

// requestFormat picks the response representation from the Accept header.
// Turbo advertises its stream media type ahead of text/html on form
// submissions, so it wins whenever present. Clients that send JSON without
// stating a preference get JSON back.
func requestFormat(r *http.Request) format {
	accept := r.Header.Get("Accept")
	switch {
	case strings.Contains(accept, views.ContentType):
		return formatTurboStream
	case strings.Contains(accept, "application/json") && !strings.Contains(accept, "text/html"):
		return formatJSON
	case (accept == "" || accept == "*/*") && strings.HasPrefix(r.Header.Get("Content-Type"), "application/json"):
		return formatJSON
	default:
		return formatHTML
	}
}

const flashCookie = "flash"

func setFlash(w http.ResponseWriter, notice string) {
	http.SetCookie(w, &http.Cookie{
		Name:     flashCookie,
		Value:    url.QueryEscape(notice),
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

// popFlash returns the pending notice, if any, and clears it.
func popFlash(w http.ResponseWriter, r *http.Request) string {
	c, err := r.Cookie(flashCookie)
	if err != nil {
		return ""
	}
	http.SetCookie(w, &http.Cookie{Name: flashCookie, Path: "/", MaxAge: -1})
	notice, err := url.QueryUnescape(c.Value)
	if err != nil {
		return ""
	}
	return notice
}

func redirectWithNotice(w http.ResponseWriter, r *http.Request, location, notice string, code int) {
	setFlash(w, notice)
	http.Redirect(w, r, location, code)
}

func (s *Server) renderPage(w http.ResponseWriter, r *http.Request, code int, name string, data views.PageData) {
	data.StreamPath = "/todos/stream"
	var buf bytes.Buffer
	if err := s.views.Page(&buf, name, data); err != nil {
		respondServerError(w, r, "Failed to render page", err)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(code)
	_, _ = w.Write(buf.Bytes())
}

// renderStream writes a turbo-stream response built by write.
func renderStream(w http.ResponseWriter, r *http.Request, code int, write func(*bytes.Buffer) error) {
	var buf bytes.Buffer
	if err := write(&buf); err != nil {
		respondServerError(w, r, "Failed to render fragment", err)
		return
	}
	w.Header().Set("Content-Type", views.ContentType+"; charset=utf-8")
	w.WriteHeader(code)
	_, _ = w.Write(buf.Bytes())
}

func respondNotFound(w http.ResponseWriter, r *http.Request) {
	if requestFormat(r) == formatJSON {
		respondWithError(w, http.StatusNotFound, "record not found")
		return
	}
	http.Error(w, "record not found", http.StatusNotFound)
}

func respondServerError(w http.ResponseWriter, r *http.Request, message string, err error) {
	slog.ErrorContext(r.Context(), message, "err", err, "method", r.Method, "path", r.URL.Path)
	if requestFormat(r) == formatJSON {
		respondWithError(w, http.StatusInternalServerError, message)
		return
	}
	http.Error(w, message, http.StatusInternalServerError)
}

func respondWithError(w http.ResponseWriter, code int, message string) {
	respondWithJSON(w, code, map[string]string{"error": message})
}

func respondWithJSON(w http.ResponseWriter, code int, payload any) {
	response, err := json.Marshal(payload)
	if err != nil {
		slog.Error("marshal JSON response", "err", err)
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":"Internal server error preparing response"}`))
		return
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	_, _ = w.Write(response)
}
