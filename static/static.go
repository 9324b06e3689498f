// Package static embeds the browser client build and serves it as a
// single-page app. The build copies the client's dist/ output here before
// compiling; in development dist/ holds only .gitkeep and the client runs on
// its own dev server.
package static

import (
	"embed"
	"io/fs"
	"net/http"
	"path"
	"strings"
)

//go:embed all:dist
var FrontendFS embed.FS

// Handler serves files from the embedded build and falls back to
// index.html for unknown paths so client-side routes survive a reload.
// It returns nil when no build is embedded.
func Handler() http.Handler {
	dist, err := fs.Sub(FrontendFS, "dist")
	if err != nil {
		return nil
	}
	return SPAHandler(dist)
}

// SPAHandler is Handler over an arbitrary filesystem. It returns nil when
// root has no index.html.
func SPAHandler(root fs.FS) http.Handler {
	if _, err := fs.Stat(root, "index.html"); err != nil {
		return nil
	}
	files := http.FileServer(http.FS(root))

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		name := strings.TrimPrefix(path.Clean(r.URL.Path), "/")
		if name == "" {
			name = "index.html"
		}
		if _, err := fs.Stat(root, name); err != nil {
			r = r.Clone(r.Context())
			r.URL.Path = "/"
		}
		files.ServeHTTP(w, r)
	})
}
