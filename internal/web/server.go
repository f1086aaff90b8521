// Package web is the presentation server: it serves the viewer UI, exposes
// the file gateway over HTTP and relays selections and navigation commands
// through the state document.
package web

import (
	"context"
	"embed"
	"encoding/json"
	"errors"
	"io/fs"
	"net"
	"net/http"
	"os"
	"runtime/debug"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"ctxview/internal/channel"
	"ctxview/internal/files"
	"ctxview/internal/model"
	"ctxview/internal/render"
)

//go:embed static/*
var staticFS embed.FS

// maxHighlightBytes bounds the files the server tokenizes for highlighting.
const maxHighlightBytes = 1 << 20

type Deps struct {
	Gateway     *files.Gateway
	Selections  *channel.Selections
	Navigations *channel.Navigations
	Logger      *zap.Logger
	// Style is the chroma style for /static/highlight.css.
	Style   string
	Version string
	// WriteTimeout bounds a single response; it must exceed the LaTeX timeout.
	WriteTimeout time.Duration
}

type Server struct {
	deps   Deps
	logger *zap.Logger
	hub    *Hub
	css    string
	mux    *http.ServeMux
}

func New(d Deps) (*Server, error) {
	if d.Gateway == nil || d.Selections == nil || d.Navigations == nil {
		return nil, errors.New("web: gateway and channels are required")
	}
	if d.Logger == nil {
		d.Logger = zap.NewNop()
	}
	if d.WriteTimeout <= 0 {
		d.WriteTimeout = 2 * time.Minute
	}
	css, err := render.StyleCSS(d.Style)
	if err != nil {
		return nil, err
	}
	logger := d.Logger.Named("web")
	s := &Server{
		deps:   d,
		logger: logger,
		hub:    NewHub(logger),
		css:    css,
	}
	s.mux = s.routes()
	return s, nil
}

func (s *Server) Hub() *Hub { return s.hub }

func (s *Server) Handler() http.Handler { return s.mux }

func (s *Server) routes() *http.ServeMux {
	static, err := fs.Sub(staticFS, "static")
	if err != nil {
		panic(err)
	}
	mux := http.NewServeMux()
	mux.Handle("GET /{$}", s.withRecovery(s.handleIndex(static)))
	mux.Handle("GET /static/highlight.css", s.withRecovery(s.handleHighlightCSS))
	mux.Handle("GET /static/", http.StripPrefix("/static/", http.FileServer(http.FS(static))))
	mux.Handle("GET /healthz", s.withRecovery(s.handleHealth))
	mux.Handle("GET /ws", s.hub)

	mux.Handle("GET /api/files", s.withRecovery(s.handleListFiles))
	mux.Handle("GET /api/files/{path...}", s.withRecovery(s.handleListFiles))
	mux.Handle("GET /api/file-content/{path...}", s.withRecovery(s.handleFileContent))
	mux.Handle("GET /api/render-tex/{path...}", s.withRecovery(s.handleRenderTex))
	mux.Handle("GET /api/render-markdown/{path...}", s.withRecovery(s.handleRenderMarkdown))
	mux.Handle("GET /raw/{path...}", s.withRecovery(s.handleRaw))

	mux.Handle("GET /api/selection", s.withRecovery(s.handleGetSelection))
	mux.Handle("POST /api/confirm-selection", s.withRecovery(s.handleConfirmSelection))
	mux.Handle("POST /api/clear-selection", s.withRecovery(s.handleClearSelection))
	mux.Handle("GET /api/navigation-state", s.withRecovery(s.handleNavigationState))
	mux.Handle("POST /api/navigation-executed", s.withRecovery(s.handleNavigationExecuted))
	return mux
}

// Serve blocks while handling HTTP. Cancel ctx to shut down gracefully;
// websocket clients are disconnected first.
func (s *Server) Serve(ctx context.Context, listener net.Listener) error {
	srv := &http.Server{
		Handler:           s.mux,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      s.deps.WriteTimeout,
		IdleTimeout:       60 * time.Second,
		ErrorLog:          zap.NewStdLog(s.logger),
	}
	errCh := make(chan error, 1)
	go func() { errCh <- srv.Serve(listener) }()
	select {
	case <-ctx.Done():
		s.hub.Close()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		s.hub.Close()
		return err
	}
}

// Run serves HTTP and, when watcher is non-nil, pushes state changes to
// websocket clients until ctx is cancelled or either side fails.
func (s *Server) Run(ctx context.Context, listener net.Listener, watcher *StateWatcher) error {
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return s.Serve(gctx, listener) })
	if watcher != nil {
		g.Go(func() error { return watcher.Run(gctx, s.hub) })
	}
	err := g.Wait()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

func (s *Server) withRecovery(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				s.logger.Error("handler panic",
					zap.Any("panic", rec), zap.String("path", r.URL.Path), zap.ByteString("stack", debug.Stack()))
				http.Error(w, "internal server error", http.StatusInternalServerError)
			}
		}()
		next(w, r)
	}
}

func (s *Server) handleIndex(static fs.FS) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		data, err := fs.ReadFile(static, "index.html")
		if err != nil {
			http.Error(w, "ui unavailable", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Header().Set("Cache-Control", "no-store")
		_, _ = w.Write(data)
	}
}

func (s *Server) handleHighlightCSS(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/css; charset=utf-8")
	_, _ = w.Write([]byte(s.css))
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"pid":     os.Getpid(),
		"root":    s.deps.Gateway.Root(),
		"version": s.deps.Version,
		"clients": s.hub.Count(),
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, err error) {
	writeJSON(w, statusFor(err), map[string]any{
		"error": err.Error(),
		"code":  model.ErrorCode(err),
	})
}

func statusFor(err error) int {
	var ce *model.CompileError
	switch {
	case errors.Is(err, model.ErrAccessDenied):
		return http.StatusForbidden
	case errors.Is(err, model.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, model.ErrNotAFile), errors.Is(err, model.ErrNotADirectory),
		errors.Is(err, model.ErrInvalidArgument), errors.Is(err, model.ErrNotTexFile):
		return http.StatusBadRequest
	case errors.As(err, &ce):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}
