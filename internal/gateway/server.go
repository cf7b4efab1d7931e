package gateway

import (
	"context"
	"crypto/subtle"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"ctxembed/internal/embedding"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// Server exposes an embedding provider over HTTP.
type Server struct {
	provider embedding.Provider
	token    string
	mux      *http.ServeMux
}

// NewServer builds a server for provider. A non-empty token is required as
// a bearer token on every /v1 route.
func NewServer(provider embedding.Provider, token string) *Server {
	s := &Server{
		provider: provider,
		token:    token,
		mux:      http.NewServeMux(),
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.mux.Handle("POST /v1/embeddings", s.auth(s.handleEmbeddings))
	s.mux.Handle("GET /v1/models", s.auth(s.handleListModels))
	s.mux.Handle("GET /v1/dimension", s.auth(s.handleDimension))
	s.mux.Handle("PUT /v1/model", s.auth(s.handleSetModel))
	s.mux.HandleFunc("GET /healthz", s.handleHealthz)
	s.mux.Handle("GET /metrics", promhttp.Handler())
}

func (s *Server) Handler() http.Handler {
	return otelhttp.NewHandler(s.mux, "gateway")
}

// ListenAndServe serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		slog.Info("shutting down gateway")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}
}

func (s *Server) auth(next http.HandlerFunc) http.Handler {
	if s.token == "" {
		return next
	}
	want := []byte("Bearer " + s.token)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got := []byte(strings.TrimSpace(r.Header.Get("Authorization")))
		if subtle.ConstantTimeCompare(got, want) != 1 {
			writeError(w, http.StatusUnauthorized, "invalid or missing bearer token", "unauthorized")
			return
		}
		next(w, r)
	})
}
