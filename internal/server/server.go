// Package server implements the preview server: it serves the built site,
// renders single embeds on demand and pushes reload messages to open pages
// over a WebSocket after every rebuild.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/conneroisu/vidembed/internal/build"
	"github.com/conneroisu/vidembed/internal/config"
	"github.com/conneroisu/vidembed/internal/logging"
	"github.com/conneroisu/vidembed/internal/registry"
	"github.com/conneroisu/vidembed/internal/version"
	"github.com/conneroisu/vidembed/internal/watcher"
)

const shutdownTimeout = 5 * time.Second

// Options controls a PreviewServer.
type Options struct {
	// Root is the directory served, normally the build destination.
	Root       string
	Address    string
	LiveReload bool
}

// OptionsFromConfig maps the configuration onto server options.
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		Root:       cfg.Site.Destination,
		Address:    cfg.Address(),
		LiveReload: cfg.Development.LiveReload,
	}
}

// UpdateMessage represents a message sent to the browser
type UpdateMessage struct {
	Type      string    `json:"type"`
	Target    string    `json:"target,omitempty"`
	Content   string    `json:"content,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Message types pushed to the browser.
const (
	MessageReload     = "reload"
	MessageBuildError = "build_error"
)

// PreviewServer serves a built site with live reload
type PreviewServer struct {
	opts     Options
	registry *registry.Registry
	pipeline *build.Pipeline
	logger   logging.Logger
	hub      *Hub

	serverMutex  sync.RWMutex
	httpServer   *http.Server
	addr         string
	shutdownOnce sync.Once
}

// New creates a preview server. The pipeline may be nil, in which case the
// server only serves what is already in Root.
func New(opts Options, reg *registry.Registry, pipeline *build.Pipeline, logger logging.Logger) *PreviewServer {
	if logger == nil {
		logger = logging.Nop()
	}
	logger = logger.WithComponent("server")

	s := &PreviewServer{
		opts:     opts,
		registry: reg,
		pipeline: pipeline,
		logger:   logger,
		hub:      NewHub(logger),
	}
	if pipeline != nil {
		pipeline.AddCallback(s.handleBuildResult)
	}
	return s
}

// Handler returns the HTTP handler with all routes and middleware.
func (s *PreviewServer) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /tags", s.handleTags)
	mux.HandleFunc("GET /render/{tag}/{id}", s.handleRender)
	mux.HandleFunc("GET /preview", s.handlePreview)
	mux.HandleFunc("GET /api/build", s.handleBuildStatus)
	mux.HandleFunc("POST /api/build", s.handleRebuild)
	mux.HandleFunc("DELETE /api/build/cache", s.handleBuildCache)
	mux.HandleFunc("GET /ws", s.handleWebSocket)
	mux.HandleFunc("GET /", s.handleStatic)

	return s.withLogging(mux)
}

// Start listens on the configured address and serves until ctx is done.
func (s *PreviewServer) Start(ctx context.Context) error {
	listener, err := net.Listen("tcp", s.opts.Address)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", s.opts.Address, err)
	}

	server := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	s.serverMutex.Lock()
	s.httpServer = server
	s.addr = listener.Addr().String()
	s.serverMutex.Unlock()

	s.logger.Info(ctx, "Preview server listening", "address", s.Addr(), "root", s.opts.Root)

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := s.Shutdown(shutdownCtx); err != nil {
			s.logger.Warn(shutdownCtx, err, "Shutdown failed")
		}
	}()

	if err := server.Serve(listener); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}

// Addr returns the address the server is bound to, once started.
func (s *PreviewServer) Addr() string {
	s.serverMutex.RLock()
	defer s.serverMutex.RUnlock()
	return s.addr
}

// Shutdown closes live reload connections and stops the HTTP server
func (s *PreviewServer) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		s.logger.Info(ctx, "Shutting down preview server")
		s.hub.CloseAll()

		s.serverMutex.RLock()
		server := s.httpServer
		s.serverMutex.RUnlock()
		if server != nil {
			shutdownErr = server.Shutdown(ctx)
		}
	})
	return shutdownErr
}

// HandleChanges rebuilds the site after a batch of file changes. It has the
// shape of a watcher.ChangeHandler.
func (s *PreviewServer) HandleChanges(ctx context.Context, events []watcher.ChangeEvent) error {
	for _, event := range events {
		s.logger.Info(ctx, "File changed", "path", event.Path, "type", event.Type.String())
	}
	if s.pipeline == nil {
		return nil
	}

	// Page errors reach the browser through handleBuildResult; only a
	// failure to run the build at all is returned.
	report, err := s.pipeline.Build(ctx)
	if report == nil {
		return err
	}
	return nil
}

// Broadcast sends msg to every connected browser.
func (s *PreviewServer) Broadcast(msg UpdateMessage) {
	if msg.Timestamp.IsZero() {
		msg.Timestamp = time.Now()
	}
	data, err := json.Marshal(msg)
	if err != nil {
		s.logger.Error(context.Background(), err, "Failed to marshal message")
		data = []byte(`{"type":"reload"}`)
	}
	s.hub.Broadcast(data)
}

func (s *PreviewServer) handleBuildResult(report *build.Report, err error) {
	if err != nil {
		overlay := ""
		if s.pipeline != nil {
			overlay = s.pipeline.Errors().ErrorOverlay()
		}
		s.Broadcast(UpdateMessage{Type: MessageBuildError, Content: overlay})
		return
	}
	s.Broadcast(UpdateMessage{Type: MessageReload})
}

func (s *PreviewServer) withLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		w.Header().Set("Server", version.UserAgent())
		next.ServeHTTP(w, r)
		s.logger.Debug(r.Context(), "Request served",
			"method", r.Method,
			"path", r.URL.Path,
			"duration", time.Since(start))
	})
}
