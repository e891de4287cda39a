package middleware

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

type ObservabilityConfig struct {
	ServiceName string
	LogRequests bool
}

// RequestRecorder receives one observation per served request.
type RequestRecorder interface {
	Observe(route, method string, status int, duration time.Duration)
}

type Observability struct {
	cfg      ObservabilityConfig
	logger   *slog.Logger
	recorder RequestRecorder
	gatherer prometheus.Gatherer
}

func NewObservability(cfg ObservabilityConfig, logger *slog.Logger, recorder RequestRecorder, gatherer prometheus.Gatherer) *Observability {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.ServiceName == "" {
		cfg.ServiceName = "presaled"
	}
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	return &Observability{cfg: cfg, logger: logger, recorder: recorder, gatherer: gatherer}
}

// Middleware records status, latency and the matched chi route pattern. It
// must run inside the chi router so the pattern is known after dispatch.
func (o *Observability) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(recorder, r)

		route := routePattern(r)
		elapsed := time.Since(start)
		span := trace.SpanFromContext(r.Context())
		span.SetAttributes(
			attribute.String("http.route", route),
			attribute.Int("http.status_code", recorder.status),
		)
		if o.recorder != nil {
			o.recorder.Observe(route, r.Method, recorder.status, elapsed)
		}
		if o.cfg.LogRequests {
			o.logger.Info("http request",
				slog.String("method", r.Method),
				slog.String("route", route),
				slog.String("path", r.URL.Path),
				slog.Int("status", recorder.status),
				slog.Float64("duration_ms", float64(elapsed.Microseconds())/1000),
			)
		}
	})
}

// Trace wraps the whole router so every request gets a server span.
func (o *Observability) Trace(handler http.Handler) http.Handler {
	return otelhttp.NewHandler(handler, o.cfg.ServiceName)
}

func (o *Observability) MetricsHandler() http.Handler {
	return promhttp.HandlerFor(o.gatherer, promhttp.HandlerOpts{})
}

func routePattern(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		if pattern := rctx.RoutePattern(); pattern != "" {
			return pattern
		}
	}
	return "unmatched"
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}
