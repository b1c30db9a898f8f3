package server

import (
	"net/http"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/aryannaik/printrun-vault/internal/index"
	"github.com/aryannaik/printrun-vault/internal/metrics"
	"github.com/aryannaik/printrun-vault/internal/vault"
)

// Options wires the server to the rest of the application.
type Options struct {
	Port      string
	StaticDir string
	Cache     *index.Cache
	Lookup    *vault.Lookup
	Health    HealthFunc
	Refresh   RefreshFunc
	Metrics   *metrics.Metrics
	Logger    *zap.Logger
}

func New(opts Options) *http.Server {
	logger := opts.Logger.Named("server")
	handlers := NewHandlers(opts.Cache, opts.Lookup, opts.Health, opts.Refresh, logger)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/suggest", handlers.HandleSuggest)
	mux.HandleFunc("GET /api/resolve", handlers.HandleResolve)
	mux.HandleFunc("GET /api/rows", handlers.HandleRows)
	mux.HandleFunc("GET /api/status", handlers.HandleStatus)
	mux.HandleFunc("POST /api/index/refresh", handlers.HandleRefresh)
	mux.HandleFunc("GET /results", handlers.HandleResults)
	mux.Handle("GET /metrics", opts.Metrics.Handler())
	if opts.StaticDir != "" {
		mux.Handle("/", http.FileServer(http.Dir(opts.StaticDir)))
	}

	srv := &http.Server{
		Addr:              ":" + opts.Port,
		Handler:           withRequestLog(mux, logger),
		ReadHeaderTimeout: 5 * time.Second,
	}

	logger.Info("Server configured", zap.String("addr", "http://localhost:"+opts.Port))
	return srv
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// withRequestLog tags each request with an id (reusing X-Request-ID when the
// caller sent one) and logs it on completion.
func withRequestLog(next http.Handler, logger *zap.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-ID")
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set("X-Request-ID", id)

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()
		next.ServeHTTP(rec, r)

		logger.Debug("Request",
			zap.String("id", id),
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", rec.status),
			zap.Duration("took", time.Since(start)))
	})
}
