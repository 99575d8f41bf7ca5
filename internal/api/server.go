package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/jonchyatt/ethereal-flame-studio-sub004/internal/assets"
	"github.com/jonchyatt/ethereal-flame-studio-sub004/internal/config"
	"github.com/jonchyatt/ethereal-flame-studio-sub004/internal/ingest"
	"github.com/jonchyatt/ethereal-flame-studio-sub004/internal/jobs"
	"github.com/jonchyatt/ethereal-flame-studio-sub004/internal/logging"
	"github.com/jonchyatt/ethereal-flame-studio-sub004/internal/pipeline"
	"github.com/jonchyatt/ethereal-flame-studio-sub004/internal/storage"
)

// Server is the daemon's HTTP surface. It owns no business logic; handlers
// translate requests into service calls and service errors into statuses.
type Server struct {
	cfg     *config.Config
	store   *jobs.Store
	backend storage.Backend
	assets  *assets.Service
	ingest  *ingest.Service
	runner  *pipeline.Runner
	logger  *slog.Logger

	listener net.Listener
	server   *http.Server
}

// New builds the server and its routes. The bind address comes from the
// api.bind config key.
func New(
	cfg *config.Config,
	store *jobs.Store,
	backend storage.Backend,
	assetSvc *assets.Service,
	ingestSvc *ingest.Service,
	runner *pipeline.Runner,
	logger *slog.Logger,
) (*Server, error) {
	if cfg == nil || store == nil {
		return nil, fmt.Errorf("api: config and job store are required")
	}
	bind := strings.TrimSpace(cfg.API.Bind)
	if bind == "" {
		return nil, fmt.Errorf("api: bind address is empty")
	}

	s := &Server{
		cfg:     cfg,
		store:   store,
		backend: backend,
		assets:  assetSvc,
		ingest:  ingestSvc,
		runner:  runner,
		logger:  logger,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/api/status", s.handleStatus)
	mux.HandleFunc("/api/jobs", s.handleJobs)
	mux.HandleFunc("/api/jobs/callback", s.handleJobCallback)
	mux.HandleFunc("/api/jobs/", s.handleJobItem)
	mux.HandleFunc("/api/ingest", s.handleIngest)
	mux.HandleFunc("/api/assets", s.handleAssets)
	mux.HandleFunc("/api/assets/", s.handleAssetItem)
	mux.HandleFunc("/files/", s.handleFiles)

	// No read or write timeout: /files/ streams whole media objects and
	// ingest uploads arrive over the same server.
	s.server = &http.Server{
		Addr:              bind,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return s, nil
}

// Start binds the listener and serves until ctx is cancelled.
func (s *Server) Start(ctx context.Context) error {
	listener, err := net.Listen("tcp", s.server.Addr)
	if err != nil {
		return fmt.Errorf("api listen: %w", err)
	}
	s.listener = listener

	go func() {
		if err := s.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log().Error("api server error", logging.Error(err))
		}
	}()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.server.Shutdown(shutdownCtx)
	}()

	s.log().Info("api server listening", logging.String("address", listener.Addr().String()))
	return nil
}

// Stop shuts the server down, waiting briefly for in-flight requests.
func (s *Server) Stop() {
	if s == nil {
		return
	}
	if s.server != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.server.Shutdown(shutdownCtx)
	}
	if s.listener != nil {
		_ = s.listener.Close()
		s.listener = nil
	}
}

// Addr reports the bound listen address, empty before Start.
func (s *Server) Addr() string {
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Handler exposes the route table for tests.
func (s *Server) Handler() http.Handler {
	return s.server.Handler
}

func (s *Server) log() *slog.Logger {
	if s.logger != nil {
		return s.logger.With(logging.String("component", "api"))
	}
	return logging.NewNop()
}
