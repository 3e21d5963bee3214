package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"go.uber.org/multierr"

	"github.com/danthegoodman1/IAMTheService/config"
	"github.com/danthegoodman1/IAMTheService/internal/credentials"
	"github.com/danthegoodman1/IAMTheService/internal/gatewaymetrics"
)

type server struct {
	cfg     config.Config
	log     zerolog.Logger
	metrics *gatewaymetrics.Metrics
	httpSrv *http.Server
}

func newServer(cfg config.Config, logger zerolog.Logger, pipe http.Handler, store credentials.Store, metrics *gatewaymetrics.Metrics) *server {
	mux := http.NewServeMux()

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	mux.Handle("/metrics", promhttp.Handler())

	if admin, ok := store.(adminStore); ok {
		handler := &adminHandler{
			store: admin,
			log:   logger,
			cfg:   cfg,
		}
		mux.HandleFunc("/api/admin/credentials", handler.handleCollection)
		mux.HandleFunc("/api/admin/credentials/", handler.handleItem)
	}

	var proxied http.Handler = pipe
	if cfg.LogProxyRequests {
		proxied = withProxyLog(logger, proxied)
	}
	mux.Handle("/", withRequestID(proxied))

	// WriteTimeout stays above the per-request deadline so slow upstream
	// responses are cut by the pipeline, not the server.
	httpSrv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       60 * time.Second,
		WriteTimeout:      cfg.RequestTimeout + 30*time.Second,
		IdleTimeout:       120 * time.Second,
	}

	return &server{cfg: cfg, log: logger, metrics: metrics, httpSrv: httpSrv}
}

// run serves until SIGINT/SIGTERM, then drains in-flight requests for up to
// the shutdown timeout.
func (s *server) run() error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	serveErr := make(chan error, 1)
	go func() {
		s.log.Info().Str("addr", s.cfg.Addr).Msg("gateway listening")
		serveErr <- s.httpSrv.ListenAndServe()
	}()

	select {
	case err := <-serveErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	s.log.Info().Dur("timeout", s.cfg.ShutdownTimeout).Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
	defer cancel()

	var errs error
	if err := s.httpSrv.Shutdown(shutdownCtx); err != nil {
		s.metrics.ShutdownDrain.WithLabelValues("timeout").Inc()
		errs = multierr.Append(errs, s.httpSrv.Close())
		errs = multierr.Append(errs, err)
	} else {
		s.metrics.ShutdownDrain.WithLabelValues("drained").Inc()
	}
	if err := <-serveErr; err != nil && !errors.Is(err, http.ErrServerClosed) {
		errs = multierr.Append(errs, err)
	}
	return errs
}

func withProxyLog(logger zerolog.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		logger.Info().
			Str("request_id", requestIDFromContext(r.Context())).
			Str("method", r.Method).
			Str("host", r.Host).
			Str("path", r.URL.Path).
			Dur("duration", time.Since(start)).
			Msg("proxy request")
	})
}
