// Package httpserver exposes the pipeline's public ops surface: the JWKS
// document the provider verifies client assertions against, liveness and
// readiness probes, and Prometheus metrics.
//
// The JWKS is read from the parameter store on every request, so a key
// rotation becomes visible without restarting the server.
package httpserver

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/flashbots/go-utils/httplogger"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/medarchive/content-pipeline/interfaces"
	"github.com/medarchive/content-pipeline/keymaterial"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/atomic"
)

// Config configures the ops server.
type Config struct {
	ListenAddr  string
	BaseName    string
	EnablePprof bool
	Log         *slog.Logger

	GracefulShutdownDuration time.Duration
	ReadTimeout              time.Duration
	WriteTimeout             time.Duration
}

// Server serves the JWKS and operational endpoints.
type Server struct {
	cfg     *Config
	log     *slog.Logger
	params  interfaces.ParameterStore
	isReady atomic.Bool

	srv *http.Server
}

// New creates the ops server backed by the given parameter store.
func New(cfg *Config, params interfaces.ParameterStore) *Server {
	srv := &Server{
		cfg:    cfg,
		log:    cfg.Log,
		params: params,
	}
	srv.isReady.Store(true)

	srv.srv = &http.Server{
		Addr:         cfg.ListenAddr,
		Handler:      srv.getRouter(),
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}

	return srv
}

func (srv *Server) getRouter() http.Handler {
	mux := chi.NewRouter()

	mux.With(srv.httpLogger).Get("/.well-known/jwks.json", srv.handleJWKS)
	mux.With(srv.httpLogger).Get("/livez", srv.handleLivenessCheck)
	mux.With(srv.httpLogger).Get("/readyz", srv.handleReadinessCheck)
	mux.Handle("/metrics", promhttp.Handler())

	if srv.cfg.EnablePprof {
		srv.log.Info("pprof API enabled")
		mux.Mount("/debug", middleware.Profiler())
	}
	return mux
}

func (srv *Server) httpLogger(next http.Handler) http.Handler {
	return httplogger.LoggingMiddlewareSlog(srv.log, next)
}

// handleJWKS serves the published key-set straight from the parameter store.
func (srv *Server) handleJWKS(w http.ResponseWriter, r *http.Request) {
	jwks, err := srv.params.GetParameter(r.Context(), keymaterial.JWKSParamName(srv.cfg.BaseName))
	if err != nil {
		srv.log.Error("Failed to read JWKS from parameter store", "err", err)
		w.WriteHeader(http.StatusServiceUnavailable)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(jwks))
}

func (srv *Server) handleLivenessCheck(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"alive"}`))
}

func (srv *Server) handleReadinessCheck(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if !srv.isReady.Load() {
		w.WriteHeader(http.StatusServiceUnavailable)
		w.Write([]byte(`{"status":"not ready"}`))
		return
	}
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"ready"}`))
}

// RunInBackground starts the server in a goroutine.
func (srv *Server) RunInBackground() {
	go func() {
		srv.log.Info("Starting ops server", slog.String("listen_addr", srv.cfg.ListenAddr))
		if err := srv.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			srv.log.Error("HTTP server failed", "err", err)
		}
	}()
}

// Shutdown stops the server gracefully.
func (srv *Server) Shutdown() {
	srv.isReady.Store(false)

	timeout := srv.cfg.GracefulShutdownDuration
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := srv.srv.Shutdown(ctx); err != nil {
		srv.log.Error("Graceful shutdown failed", "err", err)
	}
	srv.log.Info("Ops server stopped")
}
