// Package pages serves the server-rendered front end: the landing page, the
// pose trainer, the dashboard and the auth forms.
package pages

import (
	"bytes"
	"fmt"
	"html/template"
	"io"
	"path/filepath"
)

type Renderer interface {
	Render(w io.Writer, page string, data View) error
}

// TemplateRenderer executes "<page>.html" from a parsed template set. Auth
// pages live under an "auth/" prefix in views but are looked up by base name.
type TemplateRenderer struct {
	set *template.Template
}

func NewTemplateRenderer(glob string) (*TemplateRenderer, error) {
	set, err := template.New("").Funcs(funcs).ParseGlob(glob)
	if err != nil {
		return nil, fmt.Errorf("parse templates %q: %w", glob, err)
	}
	return &TemplateRenderer{set: set}, nil
}

func (t *TemplateRenderer) Render(w io.Writer, page string, data View) error {
	name := filepath.Base(page) + ".html"
	tpl := t.set.Lookup(name)
	if tpl == nil {
		return fmt.Errorf("template %q not found", name)
	}
	// Buffered: a failing template writes nothing.
	var buf bytes.Buffer
	if err := tpl.Execute(&buf, data); err != nil {
		return fmt.Errorf("render %s: %w", name, err)
	}
	_, err := buf.WriteTo(w)
	return err
}

var funcs = template.FuncMap{
	"displayName": func(v View) string {
		if v.User == nil {
			return ""
		}
		if v.User.FullName != "" {
			return v.User.FullName
		}
		return v.User.Username
	},
}

// FallbackRenderer is used when no template directory is configured. It
// renders one bare page per route so the API stays browsable in development.
type FallbackRenderer struct {
	tpl *template.Template
}

func NewFallbackRenderer() *FallbackRenderer {
	return &FallbackRenderer{tpl: template.Must(template.New("page").Funcs(funcs).Parse(fallbackPage))}
}

func (f *FallbackRenderer) Render(w io.Writer, page string, data View) error {
	var buf bytes.Buffer
	if err := f.tpl.Execute(&buf, struct {
		Page string
		View
	}{Page: page, View: data}); err != nil {
		return fmt.Errorf("render %s: %w", page, err)
	}
	_, err := buf.WriteTo(w)
	return err
}

const fallbackPage = `<!doctype html>
<html lang="en">
<head><meta charset="utf-8"><title>{{.Title}} | PoseCoach</title></head>
<body data-page="{{.Page}}">
<h1>{{.Title}}</h1>
{{with .Error}}<p class="error">{{.}}</p>{{end}}
{{if .User}}<p>Signed in as {{displayName .View}}</p><form method="post" action="/auth/logout"><button>Log out</button></form>
{{else}}<p><a href="/auth/login">Log in</a> or <a href="/auth/register">register</a></p>{{end}}
{{with .Stats}}<p>Sessions: {{.TotalSessions}}, average {{.AvgAccuracy}}%, best {{.BestAccuracy}}%</p>{{end}}
</body>
</html>
`
