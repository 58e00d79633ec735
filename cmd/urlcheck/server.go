package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/Sternrassler/urlcheck/internal/urllist"
	"github.com/Sternrassler/urlcheck/pkg/checker"
	"github.com/Sternrassler/urlcheck/pkg/lock"
	"github.com/Sternrassler/urlcheck/pkg/logging"
	"github.com/Sternrassler/urlcheck/pkg/metrics"
	"github.com/Sternrassler/urlcheck/pkg/session"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// maxCheckBody bounds the POST /check request body.
const maxCheckBody = 10 << 20

type server struct {
	locker   *lock.Locker
	sessions *session.Manager
	logger   zerolog.Logger
}

func newServer(locker *lock.Locker, sessions *session.Manager, logger zerolog.Logger) *server {
	return &server{locker: locker, sessions: sessions, logger: logger}
}

func (s *server) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", healthHandler)
	mux.Handle("GET /metrics", metrics.Handler())
	mux.HandleFunc("GET /lock", s.handleLockStatus)
	mux.HandleFunc("DELETE /lock", s.handleUnlock)
	mux.HandleFunc("POST /check", s.handleCheck)
	return withRequestID(mux)
}

type contextKey string

const requestIDKey contextKey = "req_id"

func withRequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqID := r.Header.Get("X-Request-ID")
		if reqID == "" {
			reqID = uuid.NewString()
		}
		w.Header().Set("X-Request-ID", reqID)
		ctx := context.WithValue(r.Context(), requestIDKey, reqID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func requestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey).(string)
	return id
}

func healthHandler(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	fmt.Fprint(w, "OK")
}

type lockStatusResp struct {
	Locked  bool         `json:"locked"`
	Message string       `json:"message"`
	Record  *lock.Record `json:"record,omitempty"`

	// AgeSeconds is how long the holding session has been running.
	AgeSeconds float64 `json:"age_seconds,omitempty"`
}

func newLockStatusResp(locked bool, rec *lock.Record) lockStatusResp {
	resp := lockStatusResp{
		Locked:  locked,
		Message: describeLock(locked, rec),
		Record:  rec,
	}
	if rec != nil {
		resp.AgeSeconds = rec.Age().Seconds()
	}
	return resp
}

func (s *server) handleLockStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, newLockStatusResp(s.locker.Status(r.Context())))
}

func (s *server) handleUnlock(w http.ResponseWriter, r *http.Request) {
	if err := s.locker.ForceRelease(r.Context()); err != nil {
		s.logger.Error().Err(err).Str("req_id", requestID(r.Context())).Msg("Forced unlock failed")
		writeErr(w, http.StatusInternalServerError, "release failed")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type checkReq struct {
	User string   `json:"user"`
	URLs []string `json:"urls"`
}

func (s *server) handleCheck(w http.ResponseWriter, r *http.Request) {
	var req checkReq
	dec := json.NewDecoder(io.LimitReader(r.Body, maxCheckBody))
	if err := dec.Decode(&req); err != nil {
		writeErr(w, http.StatusBadRequest, "invalid json body")
		return
	}
	req.User = strings.TrimSpace(req.User)
	if req.User == "" {
		writeErr(w, http.StatusBadRequest, "user required")
		return
	}

	logger := s.logger.With().Str("req_id", requestID(r.Context())).Logger()

	report, err := s.sessions.Run(r.Context(), req.User, req.URLs, func(p checker.Progress) {
		logger.Debug().Int("done", p.Done).Int("total", p.Total).Msg("Check progress")
	})
	switch {
	case errors.Is(err, lock.ErrLocked):
		writeJSON(w, http.StatusConflict, newLockStatusResp(s.locker.Status(r.Context())))
		return
	case err != nil:
		logger.Error().Err(err).Str("holder", req.User).Msg("Check failed")
		writeErr(w, http.StatusInternalServerError, "check failed")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := urllist.WriteJSON(w, report); err != nil {
		logger.Error().Err(err).Msg("Failed to write response")
	}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeErr(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]string{"error": msg})
}

func runServe(ctx context.Context, args []string, stderr io.Writer) error {
	fs, configPath := newFlagSet("serve", stderr)
	addr := fs.String("addr", "", "listen address (overrides server.addr)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	cfg, logger, err := setup(*configPath, stderr)
	if err != nil {
		return err
	}
	if *addr != "" {
		cfg.Server.Addr = *addr
	}

	runner, err := checker.NewRunner(cfg.RunnerConfig(), checker.WithLogger(logging.NewLogger("runner")))
	if err != nil {
		return err
	}
	locker, closeStore, err := openLocker(ctx, cfg.Lock)
	if err != nil {
		return err
	}
	defer closeStore()

	srvLogger := logging.NewLogger("server")
	api := newServer(locker, session.New(locker, runner, logging.NewLogger("session")), srvLogger)

	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           api.handler(),
		ReadHeaderTimeout: 5 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	var wg sync.WaitGroup
	serveErr := make(chan error, 1)

	wg.Add(1)
	go func() {
		defer wg.Done()
		logger.Info().
			Str("addr", cfg.Server.Addr).
			Str("lock_backend", cfg.Lock.Backend).
			Msg("Starting urlcheck server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
	}()

	select {
	case <-ctx.Done():
		logger.Info().Msg("Shutdown signal received")
	case err := <-serveErr:
		return fmt.Errorf("http server: %w", err)
	}

	// Running sessions see the cancelled base context and release their lock.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("HTTP shutdown error")
	}

	wg.Wait()
	logger.Info().Msg("urlcheck server stopped")
	return nil
}
