package template

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"net/http"

	"github.com/ghaggin/datingadmin/internal/model"
)

//go:embed tmpl/*.html
var files embed.FS

type NavItem struct {
	Path   string
	Label  string
	Active bool
}

// Data is what every page template receives. Content holds the
// page-specific payload.
type Data struct {
	PageTitle string
	Lang      string
	Theme     string
	User      *model.SessionUser
	Nav       []NavItem
	Flash     string
	Error     string
	Retry     string
	Content   any
}

var funcs = template.FuncMap{
	"money": func(v float64, currency string) string {
		return fmt.Sprintf("%.2f %s", v, currency)
	},
	"date": func(v interface{ Format(string) string }) string {
		return v.Format("2006-01-02")
	},
	"add": func(a, b int) int { return a + b },
	"mul": func(a, b int) int { return a * b },
}

func Render(w http.ResponseWriter, tmpl string, td any) error {
	return RenderStatus(w, http.StatusOK, tmpl, td)
}

// RenderStatus renders tmpl inside base.html. Nothing is written when the
// template fails.
func RenderStatus(w http.ResponseWriter, status int, tmpl string, td any) error {
	t, err := template.New(tmpl).Funcs(funcs).ParseFS(files,
		"tmpl/"+tmpl,
		"tmpl/base.html",
	)
	if err != nil {
		return err
	}

	buf := &bytes.Buffer{}

	err = t.ExecuteTemplate(buf, "base", td)
	if err != nil {
		return err
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, err = buf.WriteTo(w)
	return err
}
