// Package templates renders the wizard pages. Pages are html/template files
// embedded in the binary and exposed as templ components, so handlers render
// every response the same way.
package templates

import (
	"context"
	"embed"
	"fmt"
	"html/template"
	"io"
	"path"

	"github.com/a-h/templ"

	"github.com/csg33k/mirecurso/internal/document"
)

//go:embed html/*.html
var files embed.FS

var funcs = template.FuncMap{
	"money": document.Money,
	"inc":   func(i int) int { return i + 1 },
}

// shared holds the layout and partials; each page is parsed into a clone.
var shared = template.Must(template.New("").Funcs(funcs).ParseFS(files, "html/layout.html", "html/partials.html"))

var pages = mustPages("index", "form", "review", "output", "document", "error")

func mustPages(names ...string) map[string]*template.Template {
	out := make(map[string]*template.Template, len(names))
	for _, n := range names {
		t := template.Must(shared.Clone())
		out[n] = template.Must(t.ParseFS(files, path.Join("html", n+".html")))
	}
	return out
}

func page(name, root string, data any) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		t, ok := pages[name]
		if !ok {
			return fmt.Errorf("templates: no page %q", name)
		}
		return t.ExecuteTemplate(w, root, data)
	})
}

func Index(v IndexView) templ.Component       { return page("index", "layout", v) }
func Form(v FormView) templ.Component         { return page("form", "layout", v) }
func Review(v ReviewView) templ.Component     { return page("review", "layout", v) }
func Output(v OutputView) templ.Component     { return page("output", "layout", v) }
func Document(v DocumentView) templ.Component { return page("document", "document", v) }
func Error(v ErrorView) templ.Component       { return page("error", "layout", v) }

// FieldError is the inline message fragment swapped under a field while the
// applicant types.
func FieldError(name, msg string) templ.Component {
	return page("form", "field_error", struct{ Name, Error string }{name, msg})
}
