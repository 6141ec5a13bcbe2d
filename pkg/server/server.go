package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/google/uuid"

	"wecomrelay/pkg/config"
	"wecomrelay/pkg/logger"
	"wecomrelay/pkg/relay"
)

const (
	PathIncoming = "/webhook/incoming"
	PathHealth   = "/health"

	headerRequestID = "X-Request-ID"
)

type Server struct {
	server *http.Server
	config *config.Config
	relay  *relay.Relay
}

func NewServer(cfg *config.Config, r *relay.Relay) *Server {
	s := &Server{
		config: cfg,
		relay:  r,
	}
	s.server = &http.Server{
		Addr:              cfg.ListenAddr(),
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       time.Duration(cfg.Server.ReadTimeoutSec) * time.Second,
		WriteTimeout:      time.Duration(cfg.Server.WriteTimeoutSec) * time.Second,
	}
	return s
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET "+PathHealth, s.handleHealth)
	mux.HandleFunc("POST "+PathIncoming, s.handleIncoming)
	return s.withAccessLog(mux)
}

// ListenAndServe blocks until the server stops. A graceful Stop is not an error.
func (s *Server) ListenAndServe() error {
	ln, err := net.Listen("tcp", s.server.Addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", s.server.Addr, err)
	}
	return s.Serve(ln)
}

func (s *Server) Serve(ln net.Listener) error {
	logger.InfoCF("server", "Starting HTTP server", map[string]interface{}{
		"addr": ln.Addr().String(),
	})
	if err := s.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.ErrorCF("server", "HTTP server failed", map[string]interface{}{
			logger.FieldError: err.Error(),
		})
		return err
	}
	return nil
}

func (s *Server) Stop(ctx context.Context) error {
	logger.InfoC("server", "Stopping HTTP server")
	return s.server.Shutdown(ctx)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "ok",
		"message": "服务正常运行",
	})
}

func (s *Server) handleIncoming(w http.ResponseWriter, r *http.Request) {
	requestID := uuid.NewString()
	w.Header().Set(headerRequestID, requestID)

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, s.config.Relay.MaxBodyBytes))
	if err != nil {
		logger.WarnCF("server", "Failed to read request body", map[string]interface{}{
			logger.FieldRequestID: requestID,
			logger.FieldError:     err.Error(),
		})
		writeError(w, http.StatusBadRequest, err)
		return
	}

	// The forwarding call is bounded by the client timeout only; a caller
	// hanging up does not abort a delivery already in flight.
	ctx := context.WithoutCancel(r.Context())
	if _, err := s.relay.Handle(ctx, requestID, body); err != nil {
		status := http.StatusBadRequest
		var relayErr *relay.Error
		if errors.As(err, &relayErr) {
			status = relayErr.HTTPStatus(s.config.Relay.DistinguishUpstreamErrors)
		}
		writeError(w, status, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"status": "success",
		"detail": "已推送",
	})
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"detail": err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		logger.WarnCF("server", "Failed to write response", map[string]interface{}{
			logger.FieldError: err.Error(),
		})
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func (s *Server) withAccessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		started := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		logger.DebugCF("server", "Request served", map[string]interface{}{
			"method":              r.Method,
			"path":                r.URL.Path,
			"remote":              r.RemoteAddr,
			logger.FieldStatus:    rec.status,
			logger.FieldDuration:  time.Since(started).Milliseconds(),
			logger.FieldRequestID: w.Header().Get(headerRequestID),
		})
	})
}
