// Package server exposes the dashboard HTTP surface: booking and config
// reads for the calendar frontend, CSV uploads into the inbox, and run
// history for operators.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"log/slog"

	"kasikai/internal/config"
	"kasikai/internal/ingest"
	"kasikai/internal/logging"
)

// Ingestor runs one ingestion pass. Uploads trigger it synchronously so the
// response reflects the processing outcome.
type Ingestor interface {
	Run(ctx context.Context, source string) (*ingest.Run, error)
}

// RunHistory reads recorded pipeline runs.
type RunHistory interface {
	RecentRuns(ctx context.Context, limit int) ([]ingest.Run, error)
	LastRun(ctx context.Context) (*ingest.Run, error)
}

// Server is the dashboard HTTP server.
type Server struct {
	cfg      *config.Config
	logger   *slog.Logger
	ingestor Ingestor
	history  RunHistory

	startedAt time.Time
	listener  net.Listener
	server    *http.Server
}

// New builds the server. The run history may be nil, in which case history
// endpoints report empty results.
func New(cfg *config.Config, logger *slog.Logger, ingestor Ingestor, history RunHistory) (*Server, error) {
	if cfg == nil {
		return nil, errors.New("config required")
	}
	if ingestor == nil {
		return nil, errors.New("ingestor required")
	}
	if logger == nil {
		logger = logging.NewNop()
	}

	srv := &Server{
		cfg:       cfg,
		logger:    logging.NewComponentLogger(logger, "server"),
		ingestor:  ingestor,
		history:   history,
		startedAt: time.Now(),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/", srv.handleIndex)
	mux.HandleFunc("/api/bookings", srv.handleBookings)
	mux.HandleFunc("/api/config", srv.handleConfig)
	mux.HandleFunc("/api/status", srv.handleStatus)
	mux.HandleFunc("/api/runs", srv.handleRuns)
	mux.HandleFunc("/upload", srv.handleUpload)

	srv.server = &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       60 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return srv, nil
}

// Handler returns the configured HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.server.Handler
}

// Start begins serving on the configured bind address. It returns once the
// listener is established; serving continues until ctx is cancelled.
func (s *Server) Start(ctx context.Context) error {
	bind := strings.TrimSpace(s.cfg.Paths.APIBind)
	if bind == "" {
		return errors.New("api bind address not configured")
	}

	listener, err := net.Listen("tcp", bind)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", bind, err)
	}
	s.listener = listener

	go func() {
		if err := s.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("http server error", logging.Error(err))
		}
	}()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.server.Shutdown(shutdownCtx)
	}()

	s.logger.Info("dashboard listening", logging.String("address", listener.Addr().String()))
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

// Addr returns the bound listener address, or empty before Start.
func (s *Server) Addr() string {
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Error("failed to encode response", logging.Error(err))
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, map[string]string{"error": message})
}
