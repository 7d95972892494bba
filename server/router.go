package server

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/cyp0633/recuredit/editor"
)

const (
	// HTTP headers
	headerContentType = "Content-Type"

	// MIME types
	mimeTypeJSON = "application/json; charset=utf-8"

	// maxBodyBytes bounds request bodies; rule texts are small
	maxBodyBytes = 1 << 20
)

// Editor is the session API the router serves
type Editor interface {
	Open(ctx context.Context, req editor.OpenRequest) (*editor.Session, error)
	OpenObject(ctx context.Context, userID, objectID string, req editor.OpenRequest) (*editor.Session, error)
	Expand(ctx context.Context, id string) (*editor.View, error)
	ShowMore(ctx context.Context, id string) (*editor.View, error)
	Toggle(ctx context.Context, id string, indices ...int) (*editor.View, error)
	Select(ctx context.Context, id string, indices []int) (*editor.View, error)
	Submit(ctx context.Context, id string) (string, error)
	Close(ctx context.Context, id string) error
}

// Router exposes editing sessions over HTTP with JSON bodies
type Router struct {
	editor Editor
	mux    *http.ServeMux
	logger *slog.Logger
}

// Option configures a Router
type Option func(*Router)

// WithLogger sets the logger for the router
func WithLogger(logger *slog.Logger) Option {
	return func(r *Router) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// NewRouter creates a new session router
func NewRouter(ed Editor, opts ...Option) *Router {
	r := &Router{
		editor: ed,
		mux:    http.NewServeMux(),
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(r)
	}

	r.mux.HandleFunc("POST /sessions", r.handleOpen)
	r.mux.HandleFunc("POST /users/{user}/objects/{object}/sessions", r.handleOpenObject)
	r.mux.HandleFunc("GET /sessions/{id}", r.handleExpand)
	r.mux.HandleFunc("POST /sessions/{id}/more", r.handleShowMore)
	r.mux.HandleFunc("POST /sessions/{id}/toggle", r.handleToggle)
	r.mux.HandleFunc("POST /sessions/{id}/select", r.handleSelect)
	r.mux.HandleFunc("POST /sessions/{id}/submit", r.handleSubmit)
	r.mux.HandleFunc("DELETE /sessions/{id}", r.handleClose)

	return r
}

// ServeHTTP implements http.Handler interface
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	started := time.Now()
	sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}

	r.mux.ServeHTTP(sw, req)

	r.logger.InfoContext(req.Context(), "handled request",
		"method", req.Method,
		"path", req.URL.Path,
		"status", sw.status,
		"duration", time.Since(started),
		"remote_addr", req.RemoteAddr)
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}
