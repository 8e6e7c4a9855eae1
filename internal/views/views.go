// Package views renders todo pages and turbo-stream fragments from the
// embedded templates.
package views

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"io"

	"github.com/Tomlord1122/todo-stream/internal/domain"
	"github.com/Tomlord1122/todo-stream/internal/stream"
)

//go:embed templates/*.html
var files embed.FS

// ContentType is the media type of turbo-stream responses.
const ContentType = "text/vnd.turbo-stream.html"

var pageNames = []string{"index", "show", "new", "edit"}

// FormData drives the form partial.
type FormData struct {
	Todo     domain.Todo
	Errors   *domain.ValidationError
	Statuses []domain.Status
}

// NewFormData builds form data for todo, optionally carrying validation
// errors.
func NewFormData(todo domain.Todo, errs *domain.ValidationError) FormData {
	return FormData{Todo: todo, Errors: errs, Statuses: domain.Statuses()}
}

// PageData drives every full page.
type PageData struct {
	Title      string
	Notice     string
	StreamPath string
	Todos      []domain.Todo
	Form       FormData
}

type streamData struct {
	Action stream.Action
	Target string
	Body   template.HTML
}

// Renderer holds the parsed template sets.
type Renderer struct {
	base  *template.Template
	pages map[string]*template.Template
}

var funcs = template.FuncMap{
	"pluralize": func(n int, word string) string {
		if n == 1 {
			return fmt.Sprintf("%d %s", n, word)
		}
		return fmt.Sprintf("%d %ss", n, word)
	},
}

// New parses the embedded templates.
func New() (*Renderer, error) {
	base, err := template.New("base").Funcs(funcs).ParseFS(files, "templates/layout.html", "templates/partials.html")
	if err != nil {
		return nil, fmt.Errorf("parse base templates: %w", err)
	}
	r := &Renderer{base: base, pages: make(map[string]*template.Template, len(pageNames))}
	for _, name := range pageNames {
		clone, err := base.Clone()
		if err != nil {
			return nil, fmt.Errorf("clone base for %s: %w", name, err)
		}
		page, err := clone.ParseFS(files, "templates/"+name+".html")
		if err != nil {
			return nil, fmt.Errorf("parse %s template: %w", name, err)
		}
		r.pages[name] = page
	}
	return r, nil
}

// MustNew is New for package-level initialisation; it panics on error.
func MustNew() *Renderer {
	r, err := New()
	if err != nil {
		panic(err)
	}
	return r
}

// Page renders a full page.
func (r *Renderer) Page(w io.Writer, name string, data PageData) error {
	page, ok := r.pages[name]
	if !ok {
		return fmt.Errorf("unknown page %q", name)
	}
	return page.ExecuteTemplate(w, "layout", data)
}

func (r *Renderer) partial(name string, data any) (template.HTML, error) {
	var buf bytes.Buffer
	if err := r.base.ExecuteTemplate(&buf, name, data); err != nil {
		return "", fmt.Errorf("render %s partial: %w", name, err)
	}
	return template.HTML(buf.String()), nil
}

func (r *Renderer) streamTag(w io.Writer, action stream.Action, target string, body template.HTML) error {
	return r.base.ExecuteTemplate(w, "turbo-stream", streamData{Action: action, Target: target, Body: body})
}

// Append writes an instruction to append todo's partial to target.
func (r *Renderer) Append(w io.Writer, target string, todo domain.Todo) error {
	body, err := r.partial("todo", todo)
	if err != nil {
		return err
	}
	return r.streamTag(w, stream.ActionAppend, target, body)
}

// Replace writes an instruction to replace todo's rendered element.
func (r *Renderer) Replace(w io.Writer, todo domain.Todo) error {
	body, err := r.partial("todo", todo)
	if err != nil {
		return err
	}
	return r.streamTag(w, stream.ActionReplace, todo.DOMID(), body)
}

// Remove writes an instruction to remove the element identified by target.
func (r *Renderer) Remove(w io.Writer, target string) error {
	return r.streamTag(w, stream.ActionRemove, target, "")
}

// ReplaceForm writes an instruction to replace the element with id target
// by the form rendered for form.Todo.
func (r *Renderer) ReplaceForm(w io.Writer, target string, form FormData) error {
	body, err := r.partial("form", form)
	if err != nil {
		return err
	}
	return r.streamTag(w, stream.ActionReplace, target, body)
}

// Notification renders a broadcast notification. It satisfies
// stream.Renderer.
func (r *Renderer) Notification(n stream.Notification) ([]byte, error) {
	var buf bytes.Buffer
	var err error
	switch n.Action {
	case stream.ActionAppend:
		err = r.Append(&buf, n.Target, n.Todo)
	case stream.ActionReplace:
		body, perr := r.partial("todo", n.Todo)
		if perr != nil {
			return nil, perr
		}
		err = r.streamTag(&buf, stream.ActionReplace, n.Target, body)
	case stream.ActionRemove:
		err = r.Remove(&buf, n.Target)
	default:
		err = fmt.Errorf("unknown stream action %q", n.Action)
	}
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
