package fieldstab

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/hybridgroup/mjpeg"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"
	"go.uber.org/zap"
)

// PreviewServer HTTP endpoint for the MJPEG preview stream and Prometheus metrics
type PreviewServer struct {
	Stream *mjpeg.Stream
	srv    *http.Server
	logger *zap.Logger
}

// NewRouter mounts the preview stream (when non-nil), /metrics (when enabled) and /healthz.
func NewRouter(stream *mjpeg.Stream, metrics bool) http.Handler {
	router := mux.NewRouter()
	router.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	}).Methods(http.MethodGet)
	if metrics {
		router.Handle("/metrics", promhttp.Handler())
	}
	if stream != nil {
		router.Handle("/", stream)
	}

	c := cors.New(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowCredentials: true,
	})
	return c.Handler(router)
}

// StartPreviewServer Start preview/metrics HTTP server in separate goroutine
func StartPreviewServer(port int, withStream, metrics bool, logger *zap.Logger) *PreviewServer {
	ps := &PreviewServer{logger: logger}
	if withStream {
		ps.Stream = mjpeg.NewStream()
	}
	ps.srv = &http.Server{
		Addr:              fmt.Sprintf("0.0.0.0:%d", port),
		Handler:           NewRouter(ps.Stream, metrics),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("preview server starting", zap.Int("port", port), zap.Bool("mjpeg", withStream), zap.Bool("metrics", metrics))
		if err := ps.srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("preview server error", zap.Error(err))
		}
	}()
	return ps
}

// Shutdown stops the server, waiting for in-flight requests until ctx expires.
func (ps *PreviewServer) Shutdown(ctx context.Context) error {
	return ps.srv.Shutdown(ctx)
}
