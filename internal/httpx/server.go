package httpx

import (
	"net/http"
	"time"

	"github.com/ariefcatur/go-apparel-checkout/internal/logging"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// NewRouter builds the base router. gatherer may be nil, in which case
// /metrics is not mounted.
func NewRouter(log *zap.Logger, gatherer prometheus.Gatherer) *chi.Mux {
	if log == nil {
		log = zap.NewNop()
	}
	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, middleware.RequestLogger(&accessLog{log: log}))
	r.Use(requestLogger(log), middleware.Recoverer)
	r.Use(middleware.Timeout(15 * time.Second))
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	if gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	}
	return r
}

// requestLogger puts a logger tagged with the request id into the context.
func requestLogger(log *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			l := log.With(zap.String("request_id", middleware.GetReqID(r.Context())))
			next.ServeHTTP(w, r.WithContext(logging.WithContext(r.Context(), l)))
		})
	}
}

// accessLog feeds chi's request logger into zap.
type accessLog struct{ log *zap.Logger }

func (a *accessLog) NewLogEntry(r *http.Request) middleware.LogEntry {
	return &accessEntry{
		log: a.log.With(
			zap.String("request_id", middleware.GetReqID(r.Context())),
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.String("remote", r.RemoteAddr),
		),
	}
}

type accessEntry struct{ log *zap.Logger }

func (e *accessEntry) Write(status, bytes int, _ http.Header, elapsed time.Duration, _ any) {
	e.log.Info("http_request",
		zap.Int("status", status),
		zap.Int("bytes", bytes),
		zap.Duration("latency", elapsed),
	)
}

func (e *accessEntry) Panic(v any, stack []byte) {
	e.log.Error("http_panic", zap.Any("panic", v), zap.ByteString("stack", stack))
}
