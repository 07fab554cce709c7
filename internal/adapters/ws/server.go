package ws

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/jbctechsolutions/connectsync/internal/application/ports"
	syncdomain "github.com/jbctechsolutions/connectsync/internal/domain/sync"
	"github.com/jbctechsolutions/connectsync/internal/infrastructure/logging"
)

const (
	shutdownTimeout = 5 * time.Second
	requestIDHeader = "X-Request-ID"
)

// SyncStarter runs a sync in the background, publishing its events to sink
// until it completes or ctx ends. It returns the job id.
type SyncStarter interface {
	StartSync(ctx context.Context, target syncdomain.Target, sink ports.EventSink) (string, error)
}

// Server exposes the broadcaster over websocket and accepts sync requests.
type Server struct {
	broadcaster    *Broadcaster
	starter        SyncStarter
	defaultDevice  string
	allowedOrigins map[string]bool
	allowedHosts   map[string]bool
	logger         *logging.Logger

	jobs       context.Context
	cancelJobs context.CancelFunc
	closeOnce  sync.Once
}

// NewServer creates a server. starter may be nil, in which case /api/sync
// answers 503.
func NewServer(broadcaster *Broadcaster, starter SyncStarter, defaultDevice string, allowedOrigins []string, logger *logging.Logger) *Server {
	if logger == nil {
		logger = logging.Default()
	}
	jobs, cancel := context.WithCancel(context.Background())
	s := &Server{
		broadcaster:    broadcaster,
		starter:        starter,
		defaultDevice:  defaultDevice,
		allowedOrigins: make(map[string]bool),
		allowedHosts:   make(map[string]bool),
		logger:         logger,
		jobs:           jobs,
		cancelJobs:     cancel,
	}

	for _, origin := range allowedOrigins {
		trimmed := strings.TrimSpace(origin)
		if trimmed == "" {
			continue
		}
		s.allowedOrigins[trimmed] = true
		if parsed, err := url.Parse(trimmed); err == nil && parsed.Host != "" {
			s.allowedHosts[parsed.Host] = true
		}
	}

	return s
}

// Handler returns the server's routes.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.handleWS)
	mux.HandleFunc("/healthz", s.handleHealth)
	mux.HandleFunc("/api/sync", s.handleSync)
	return securityHeaders(mux)
}

// ListenAndServe serves on addr until ctx is cancelled, then shuts down
// and cancels running sync jobs.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln)
}

// Serve is ListenAndServe on an existing listener.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("server listening", "address", ln.Addr().String())
		errCh <- srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		s.Close()
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	s.Close()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return nil
}

// Close cancels running sync jobs and disconnects clients.
func (s *Server) Close() {
	s.closeOnce.Do(func() {
		s.cancelJobs()
		s.broadcaster.Close()
	})
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	upgrader := websocket.Upgrader{
		CheckOrigin: s.checkOrigin,
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("ws upgrade failed", "remote", r.RemoteAddr, "error", err.Error())
		return
	}

	s.logger.Info("ws client connected", "remote", r.RemoteAddr)
	c := s.broadcaster.AddClient(conn)

	// Clients only listen; reading detects the disconnect.
	go func() {
		defer func() {
			s.broadcaster.RemoveClient(c)
			s.logger.Info("ws client disconnected", "remote", r.RemoteAddr)
		}()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"clients": s.broadcaster.ClientCount(),
	})
}

func (s *Server) handleSync(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if s.starter == nil {
		http.Error(w, "sync not available", http.StatusServiceUnavailable)
		return
	}

	var req SyncRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 4096)).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.DeviceID == "" {
		req.DeviceID = s.defaultDevice
	}
	if req.DeviceID == "" {
		http.Error(w, "device_id is required", http.StatusBadRequest)
		return
	}
	if req.ThreadID < 0 {
		http.Error(w, "thread_id must be positive", http.StatusBadRequest)
		return
	}

	requestID := r.Header.Get(requestIDHeader)
	if requestID == "" {
		requestID = uuid.New().String()
	}
	w.Header().Set(requestIDHeader, requestID)
	ctx := logging.WithCorrelationID(s.jobs, requestID)

	target := syncdomain.Target{DeviceID: req.DeviceID, ThreadID: req.ThreadID}
	id, err := s.starter.StartSync(ctx, target, s.broadcaster)
	if err != nil {
		s.logger.ErrorContext(ctx, "start sync failed", "target", target.String(), "error", err.Error())
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	s.logger.InfoContext(ctx, "sync started", "job_id", id, "target", target.String())
	writeJSON(w, http.StatusAccepted, SyncResponse{JobID: id, Target: target})
}

func (s *Server) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}

	if len(s.allowedOrigins) > 0 {
		if s.allowedOrigins[origin] {
			return true
		}
		if parsed, err := url.Parse(origin); err == nil && parsed.Host != "" {
			return s.allowedHosts[parsed.Host]
		}
		return false
	}

	parsed, err := url.Parse(origin)
	if err != nil || parsed.Host == "" {
		return false
	}
	host := parsed.Host
	if host == r.Host {
		return true
	}
	hostname := parsed.Hostname()
	return hostname == "localhost" || hostname == "127.0.0.1" || hostname == "::1"
}

func securityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Content-Security-Policy", "default-src 'self'")
		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
