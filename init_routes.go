package main

import (
	"net/http"
	"strings"

	"github.com/Ajay-css/chatify/static"
)

// initRoutes binds every endpoint. Literal paths are registered before
// parameterised ones under the same prefix ("/api/messages/users" before
// "/api/messages/{userId}"); ServeMux prefers the more specific pattern
// anyway, the order just keeps that visible.
func initRoutes(mux *http.ServeMux, h *Handlers, uploadDir string) {
	auth := func(handler http.HandlerFunc) http.Handler {
		return h.AuthMw.Require(handler)
	}

	mux.HandleFunc("GET /api/health", h.Presence.Health)

	// Auth
	mux.HandleFunc("POST /api/auth/signup", h.Auth.Signup)
	mux.HandleFunc("POST /api/auth/login", h.Auth.Login)
	mux.HandleFunc("POST /api/auth/logout", h.Auth.Logout)
	mux.Handle("GET /api/auth/check", auth(h.Auth.Check))

	// Messages
	mux.Handle("GET /api/messages/users", auth(h.Message.Users))
	mux.Handle("GET /api/messages/{userId}", auth(h.Message.Conversation))
	mux.Handle("POST /api/messages/{userId}", auth(h.Message.Send))

	// Presence
	mux.Handle("GET /api/presence", auth(h.Presence.Online))

	// Uploads: flat directory, no subpaths
	files := http.FileServer(http.Dir(uploadDir))
	mux.Handle("GET /api/uploads/", http.StripPrefix("/api/uploads/", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "" || strings.ContainsAny(r.URL.Path, "/\\") {
			http.NotFound(w, r)
			return
		}
		files.ServeHTTP(w, r)
	})))

	// WebSocket
	mux.HandleFunc("GET /ws", h.WS.HandleConnection)

	// Embedded browser client, when the build ships one
	if spa := static.Handler(); spa != nil {
		mux.Handle("GET /", spa)
	}
}
