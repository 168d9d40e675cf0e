// Package health exposes the liveness endpoint used by process monitors.
package health

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/feyalabs/quizbot/core/logger"
)

// Server answers GET / with 200 while the process is alive.
type Server struct {
	srv *http.Server
}

// New builds the health server for addr.
func New(addr string) *Server {
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	return &Server{srv: &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}}
}

// Start serves in the background. Listener failures are logged, not fatal;
// the bot keeps running without a health endpoint.
func (s *Server) Start(ctx context.Context) {
	go func() {
		logger.Health.InfoContext(ctx, "health endpoint listening",
			"event", "health.start", "status", "ok", "addr", s.srv.Addr)
		if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Health.ErrorContext(ctx, "health endpoint stopped",
				"event", "health.serve", "status", "fail", "err", err)
		}
	}()
}

// Stop shuts the endpoint down gracefully.
func (s *Server) Stop(ctx context.Context) error {
	shutdownCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	return s.srv.Shutdown(shutdownCtx)
}
