package main

import (
	"bytes"
	"fmt"
	"html/template"
	"io/fs"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"etfsave.life/web/internal/format"
	"etfsave.life/web/internal/observability"
)

// views parses templates once, or on every render in dev mode.
type views struct {
	dir   string
	dev   bool
	cache *template.Template
}

func newViews(dir string, dev bool) (*views, error) {
	v := &views{dir: dir, dev: dev}
	// parse eagerly in both modes so a broken template fails startup
	t, err := parseTemplates(dir)
	if err != nil {
		return nil, err
	}
	v.cache = t
	return v, nil
}

func (v *views) templates() (*template.Template, error) {
	if v.dev {
		return parseTemplates(v.dir)
	}
	return v.cache, nil
}

var funcMap = template.FuncMap{
	"now":  time.Now,
	"date": format.Date,
}

func parseTemplates(dir string) (*template.Template, error) {
	// Recursively discover and parse all .tmpl files. ParseGlob doesn't support **.
	var files []string
	if err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && strings.HasSuffix(d.Name(), ".tmpl") {
			files = append(files, path)
		}
		return nil
	}); err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("no templates found under %s", dir)
	}
	return template.New("_root").Funcs(funcMap).ParseFiles(files...)
}

// render executes name into a buffer and writes it with status. Execution errors
// become a plain 500 so a half-written page is never sent.
func (v *views) render(w http.ResponseWriter, r *http.Request, status int, name string, data any) {
	logger := observability.FromContext(r.Context())
	t, err := v.templates()
	if err != nil {
		logger.Error("template parse failed", zap.Error(err))
		http.Error(w, "template parse error", http.StatusInternalServerError)
		return
	}
	var buf bytes.Buffer
	if err := t.ExecuteTemplate(&buf, name, data); err != nil {
		logger.Error("template exec failed", zap.String("template", name), zap.Error(err))
		http.Error(w, "template exec error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = buf.WriteTo(w)
}
