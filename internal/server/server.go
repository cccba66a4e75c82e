package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/SmitUplenchwar2687/keyval/internal/clock"
	"github.com/SmitUplenchwar2687/keyval/internal/keyval"
	"github.com/SmitUplenchwar2687/keyval/internal/storage"
)

// DefaultMaxValueSize caps request bodies accepted by PUT.
const DefaultMaxValueSize = 8 << 20

// Server exposes a store over HTTP with string keys and opaque byte values.
type Server struct {
	httpServer *http.Server
	kv         *keyval.KeyVal[string, []byte]
	ttl        *keyval.TTLKeyVal[string, []byte] // nil when the store has no TTL support
	clock      clock.Clock
	log        logrus.FieldLogger
	mux        *http.ServeMux
	maxValue   int64
}

// New creates a new keyval server over s.
func New(addr string, s storage.Store, clk clock.Clock, log logrus.FieldLogger) *Server {
	if clk == nil {
		clk = clock.NewRealClock()
	}
	if log == nil {
		log = logrus.StandardLogger()
	}

	srv := &Server{
		kv:       keyval.New(s, keyval.StringKey(), keyval.Bytes()),
		clock:    clk,
		log:      log.WithField("component", "server"),
		mux:      http.NewServeMux(),
		maxValue: DefaultMaxValueSize,
	}
	if ts, ok := s.(storage.TTLStore); ok {
		srv.ttl = keyval.NewTTL(ts, clk, keyval.StringKey(), keyval.Bytes())
	}
	srv.routes()
	srv.httpServer = &http.Server{
		Addr:              addr,
		Handler:           LoggingMiddleware(srv.mux, srv.log, clk),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return srv
}

// Handler returns the server's root handler.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

func (s *Server) routes() {
	s.mux.HandleFunc("GET /health", s.handleHealth)
	s.mux.HandleFunc("GET /v1/keys/{key}", s.handleGet)
	s.mux.HandleFunc("PUT /v1/keys/{key}", s.handlePut)
	s.mux.HandleFunc("DELETE /v1/keys/{key}", s.handleDelete)
	s.mux.HandleFunc("POST /v1/keys/{key}/touch", s.handleTouch)
}

// handleHealth returns server health status.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"backend": storage.BackendName(s.kv.Store()),
		"ttl":     s.ttl != nil,
		"time":    s.clock.Now().Format(time.RFC3339),
	})
}

func (s *Server) handleGet(w http.ResponseWriter, r *http.Request) {
	val, err := s.kv.Get(r.Context(), r.PathValue("key"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "application/octet-stream")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(val)
}

// handlePut stores the request body. An optional ?ttl=<duration> sets an
// expiry relative to now.
func (s *Server) handlePut(w http.ResponseWriter, r *http.Request) {
	ttl, ok := s.parseTTL(w, r, false)
	if !ok {
		return
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, s.maxValue))
	if err != nil {
		var mbe *http.MaxBytesError
		if errors.As(err, &mbe) {
			writeJSONError(w, http.StatusRequestEntityTooLarge, err.Error())
			return
		}
		writeJSONError(w, http.StatusBadRequest, err.Error())
		return
	}

	key := r.PathValue("key")
	if ttl > 0 {
		err = s.ttl.InsertFor(r.Context(), key, body, ttl)
	} else {
		err = s.kv.Insert(r.Context(), key, body)
	}
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	if err := s.kv.Remove(r.Context(), r.PathValue("key")); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleTouch sets a new expiry of now+ttl. ttl=0 clears the expiry.
func (s *Server) handleTouch(w http.ResponseWriter, r *http.Request) {
	ttl, ok := s.parseTTL(w, r, true)
	if !ok {
		return
	}

	var expiry time.Time
	if ttl > 0 {
		expiry = s.clock.Now().Add(ttl)
	}
	if err := s.ttl.Touch(r.Context(), r.PathValue("key"), expiry); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// parseTTL reads the ttl query parameter. It writes an error response and
// returns false when the value is invalid, or when a TTL is requested from a
// store without TTL support.
func (s *Server) parseTTL(w http.ResponseWriter, r *http.Request, required bool) (time.Duration, bool) {
	raw := r.URL.Query().Get("ttl")
	if raw == "" {
		if required {
			writeJSONError(w, http.StatusBadRequest, "ttl query parameter is required")
			return 0, false
		}
		return 0, true
	}
	ttl, err := time.ParseDuration(raw)
	if err != nil || ttl < 0 {
		writeJSONError(w, http.StatusBadRequest, "ttl must be a non-negative duration such as 30s")
		return 0, false
	}
	if s.ttl == nil && (ttl > 0 || required) {
		writeJSONError(w, http.StatusNotImplemented, "backend does not support TTLs; enable the ttl overlay")
		return 0, false
	}
	return ttl, true
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := StatusFor(err)
	if status >= http.StatusInternalServerError {
		s.log.WithError(err).WithField("path", r.URL.Path).Error("storage operation failed")
	}
	writeJSONError(w, status, err.Error())
}

// StatusFor maps storage errors to HTTP status codes.
func StatusFor(err error) int {
	var (
		se *storage.ScheduleError
		ee *storage.EncodeError
		de *storage.DecodeError
		be *storage.BackendError
	)
	switch {
	case errors.Is(err, storage.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, storage.ErrExpired):
		return http.StatusGone
	case errors.As(err, &se):
		return http.StatusServiceUnavailable
	case errors.As(err, &ee), errors.As(err, &de):
		return http.StatusUnprocessableEntity
	case errors.As(err, &be):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeJSONError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// Start begins listening. It blocks until the server is shut down.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		return err
	}
	return s.StartOnListener(ln)
}

// StartOnListener begins serving on the provided listener.
// Useful for tests that need to pick an ephemeral port.
func (s *Server) StartOnListener(ln net.Listener) error {
	s.log.WithField("addr", ln.Addr().String()).Info("keyval server listening")
	err := s.httpServer.Serve(ln)
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}
