package panel

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"io/fs"
	"net/http"
	"os"
	"path"
	"strings"
)

//go:embed web/*
var content embed.FS

// DefaultTitle is shown when no panel title is configured.
const DefaultTitle = "AI Automation Creator"

// Options configures the panel handler.
type Options struct {
	// Dir serves the UI from disk when it names an existing directory.
	// index.html is then re-read on every request.
	Dir string

	// Title is rendered into index.html before the script loads.
	Title string
}

type indexData struct {
	Title string
}

// Handler serves the panel UI.
//
// index.html is rendered as an html/template with the panel title. Every
// other path is served as a static file when it exists and falls back to
// the rendered index when it does not.
// Panics if the embedded assets are missing, which is a build error.
func Handler(opts Options) http.Handler {
	files, live := assets(opts.Dir)

	data := indexData{Title: opts.Title}
	if data.Title == "" {
		data.Title = DefaultTitle
	}

	var index *template.Template
	if !live {
		var err error
		if index, err = parseIndex(files); err != nil {
			panic(fmt.Sprintf("panel: embedded index.html: %v", err))
		}
	}

	static := http.FileServer(http.FS(files))

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// The page and script change with the binary; never cache them.
		w.Header().Set("Cache-Control", "no-cache, must-revalidate")

		name := strings.TrimPrefix(path.Clean("/"+r.URL.Path), "/")
		if name != "" && name != "index.html" {
			if info, err := fs.Stat(files, name); err == nil && !info.IsDir() {
				static.ServeHTTP(w, r)
				return
			}
		}

		tmpl := index
		if tmpl == nil {
			var err error
			if tmpl, err = parseIndex(files); err != nil {
				http.Error(w, "panel index unavailable", http.StatusInternalServerError)
				return
			}
		}

		var buf bytes.Buffer
		if err := tmpl.Execute(&buf, data); err != nil {
			http.Error(w, "panel index unavailable", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = buf.WriteTo(w)
	})
}

// assets picks the on-disk directory when usable, else the embedded copy.
func assets(dir string) (files fs.FS, live bool) {
	if dir != "" {
		if info, err := os.Stat(dir); err == nil && info.IsDir() {
			return os.DirFS(dir), true
		}
	}
	web, err := fs.Sub(content, "web")
	if err != nil {
		panic(fmt.Sprintf("panel: embedded web assets: %v", err))
	}
	return web, false
}

func parseIndex(files fs.FS) (*template.Template, error) {
	return template.ParseFS(files, "index.html")
}
