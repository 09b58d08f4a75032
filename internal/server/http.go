package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/0xReLogic/Tandem/internal/logging"
	"github.com/0xReLogic/Tandem/internal/tracing"
)

// RequestIDHeader carries the per-request correlation id.
const RequestIDHeader = "X-Request-Id"

// ShutdownTimeout bounds how long Run waits for in-flight requests.
var ShutdownTimeout = 5 * time.Second

var (
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tandem_http_requests_total",
			Help: "Total number of HTTP requests served",
		},
		[]string{"method", "route", "status"},
	)
	httpRequestLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "tandem_http_request_latency_seconds",
			Help:    "Latency of HTTP requests served",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)
)

// Server is the HTTP front of a service: the routes Mount registers plus
// /metrics and, when Health is set, /healthz. Health reflects peer
// reachability and is meant for readiness checks, not liveness.
type Server struct {
	ListenAddr string
	ServiceID  string
	Health     http.Handler
	Mount      func(r chi.Router)
}

type statusRecorder struct {
	http.ResponseWriter
	status int
	size   int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (r *statusRecorder) Write(b []byte) (int, error) {
	n, err := r.ResponseWriter.Write(b)
	r.size += n
	return n, err
}

// Handler builds the router. Unknown paths get chi's 404, known paths with
// another method its 405.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(observe)

	if s.Mount != nil {
		s.Mount(r)
	}
	if s.Health != nil {
		r.Method(http.MethodGet, "/healthz", s.Health)
	}
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())
	return r
}

// observe wraps every request in a span, a request id, an access log line and metrics.
func observe(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := tracing.Extract(r.Context(), r.Header)
		ctx, span := tracing.StartSpan(ctx, "http_request", trace.WithSpanKind(trace.SpanKindServer))
		defer span.End()

		span.SetAttributes(
			attribute.String("http.method", r.Method),
			attribute.String("http.url", r.URL.String()),
			attribute.String("http.user_agent", r.UserAgent()),
		)

		id := r.Header.Get(RequestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		ctx = logging.WithRequestID(ctx, id)
		w.Header().Set(RequestIDHeader, id)

		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r.WithContext(ctx))
		latency := time.Since(start)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			route = rctx.RoutePattern()
		}

		span.SetAttributes(
			attribute.String("http.route", route),
			attribute.Int("http.status_code", rec.status),
			attribute.Int64("http.response.size", int64(rec.size)),
		)
		if rec.status >= 500 {
			span.SetStatus(codes.Error, http.StatusText(rec.status))
		} else {
			span.SetStatus(codes.Ok, "")
		}

		logging.LogHTTPRequest(ctx, r.Method, r.URL.Path, rec.status, latency.Milliseconds(), int64(rec.size))

		httpRequestsTotal.WithLabelValues(r.Method, route, strconv.Itoa(rec.status)).Inc()
		httpRequestLatency.WithLabelValues(r.Method, route).Observe(latency.Seconds())
	})
}

// Start listens on ListenAddr and blocks until the listener fails.
func (s *Server) Start() error {
	return s.Run(context.Background())
}

// Run is Start with shutdown: when ctx is done, in-flight requests get
// ShutdownTimeout to finish and Run returns nil.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.ListenAddr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", s.ListenAddr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve is Run on an existing listener.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	server := &http.Server{
		Addr:    ln.Addr().String(),
		Handler: s.Handler(),
	}

	logging.LogHTTPServerStart(s.ServiceID, ln.Addr().String())

	errCh := make(chan error, 1)
	go func() { errCh <- server.Serve(ln) }()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
