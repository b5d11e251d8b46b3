// Package webapi is the HTTP and WebSocket surface of the server: sessions,
// generation routes, backend management, listings and health.
package webapi

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"regexp"
	"time"

	"go.uber.org/zap"

	"t2i_backend/backends"
	"t2i_backend/db"
	"t2i_backend/logging"
	"t2i_backend/metrics"
	"t2i_backend/output"
	"t2i_backend/shutdown"
	"t2i_backend/t2i"
)

// ServerConfig configures the Server.
type ServerConfig struct {
	Addr string

	// OutputPath is the root of the per-user output tree, served under
	// /Output/.
	OutputPath string
	ModelRoot  string
	// AllowedModels filters ListModels; nil allows everything.
	AllowedModels *regexp.Regexp

	// WSSendTimeout bounds every websocket frame write.
	WSSendTimeout time.Duration

	ReadHeaderTimeout time.Duration
	IdleTimeout       time.Duration

	LogSkipPaths []string
}

// DefaultServerConfig returns the defaults used by the binary.
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		Addr:              "127.0.0.1:7801",
		OutputPath:        "Output",
		ModelRoot:         "Models",
		WSSendTimeout:     time.Minute,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       2 * time.Minute,
		LogSkipPaths:      []string{"/health", "/metrics"},
	}
}

// Deps are the collaborators the routes use. Dispatcher, Pool and Sessions
// are required; the rest may be nil.
type Deps struct {
	Dispatcher *t2i.Dispatcher
	Pool       *backends.Pool
	Sessions   *SessionStore

	// History receives a row per image written for a session.
	History  output.HistoryRecorder
	Database *db.Database
	Recorder *metrics.Recorder
	// Tracker counts in-flight generation requests for shutdown.
	Tracker *shutdown.OperationTracker
}

// Server serves the API.
type Server struct {
	config     ServerConfig
	deps       Deps
	logger     *logging.Logger
	mux        *http.ServeMux
	httpServer *http.Server
}

// NewServer wires the routes.
func NewServer(config ServerConfig, deps Deps, logger *logging.Logger) (*Server, error) {
	if deps.Dispatcher == nil || deps.Pool == nil || deps.Sessions == nil {
		return nil, errors.New("webapi: dispatcher, pool and sessions are required")
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	if deps.Tracker == nil {
		deps.Tracker = shutdown.NewOperationTracker()
	}
	if config.WSSendTimeout <= 0 {
		config.WSSendTimeout = time.Minute
	}

	s := &Server{
		config: config,
		deps:   deps,
		logger: logger.Named("webapi"),
		mux:    http.NewServeMux(),
	}
	s.setupRoutes()

	s.httpServer = &http.Server{
		Addr:              config.Addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: config.ReadHeaderTimeout,
		IdleTimeout:       config.IdleTimeout,
		// no WriteTimeout: buffered generation may legitimately take minutes
	}
	return s, nil
}

func (s *Server) setupRoutes() {
	s.mux.HandleFunc("/API/GetNewSession", s.handleGetNewSession)
	s.mux.HandleFunc("/API/GenerateText2Image", s.handleGenerate)
	s.mux.HandleFunc("/API/GenerateText2ImageWS", s.handleGenerateWS)

	s.mux.HandleFunc("/API/ListImages", s.handleListImages)
	s.mux.HandleFunc("/API/ListModels", s.handleListModels)

	s.mux.HandleFunc("/API/ListBackendTypes", s.handleListBackendTypes)
	s.mux.HandleFunc("/API/ListBackends", s.handleListBackends)
	s.mux.HandleFunc("/API/AddNewBackend", s.handleAddBackend)
	s.mux.HandleFunc("/API/EditBackend", s.handleEditBackend)
	s.mux.HandleFunc("/API/DeleteBackend", s.handleDeleteBackend)

	s.mux.HandleFunc("/API/Status", s.handleStatus)
	s.mux.HandleFunc("/health", s.handleHealth)
	if s.deps.Recorder != nil {
		s.mux.Handle("/metrics", s.deps.Recorder.Handler())
	}

	prefix := "/" + output.URLPrefix + "/"
	s.mux.Handle(prefix, http.StripPrefix(prefix, noDirListing(http.FileServer(http.Dir(s.config.OutputPath)))))
}

// Handler returns the routes wrapped in request logging.
func (s *Server) Handler() http.Handler {
	return NewLoggingMiddleware(s.logger, s.config.LogSkipPaths...).Handler(s.mux)
}

// Serve accepts connections on l until Shutdown.
func (s *Server) Serve(l net.Listener) error {
	s.logger.Info("API server listening", zap.String("addr", l.Addr().String()))
	if err := s.httpServer.Serve(l); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("http server error: %w", err)
	}
	return nil
}

// ListenAndServe listens on the configured address.
func (s *Server) ListenAndServe() error {
	l, err := net.Listen("tcp", s.config.Addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", s.config.Addr, err)
	}
	return s.Serve(l)
}

// Shutdown stops accepting requests and waits for handlers until ctx ends.
// Hijacked websocket connections are not waited for; the operation tracker
// covers their dispatches.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("Shutting down API server")
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("http shutdown: %w", err)
	}
	return nil
}

// noDirListing hides directory indexes of the output tree.
func noDirListing(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "" || r.URL.Path[len(r.URL.Path)-1] == '/' {
			http.NotFound(w, r)
			return
		}
		next.ServeHTTP(w, r)
	})
}
