package interceptors

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"google.golang.org/grpc"
	"google.golang.org/grpc/status"

	"github.com/pucco93/ebsi-access-control/internal/infra/telemetry"
)

// GRPCMetricsOptions controls construction of gRPC metrics collectors.
type GRPCMetricsOptions struct {
	Registerer prometheus.Registerer
	Namespace  string
	Subsystem  string
	Buckets    []float64
}

// GRPCMetrics wraps Prometheus collectors for gRPC instrumentation.
type GRPCMetrics struct {
	requests *prometheus.CounterVec
	duration *prometheus.HistogramVec
	inFlight *prometheus.GaugeVec
}

// NewGRPCMetrics constructs collectors and registers them with the supplied registerer.
func NewGRPCMetrics(opts GRPCMetricsOptions) (*GRPCMetrics, error) {
	namespace := opts.Namespace
	if namespace == "" {
		namespace = telemetry.Namespace
	}

	subsystem := opts.Subsystem
	if subsystem == "" {
		subsystem = "grpc"
	}

	buckets := opts.Buckets
	if len(buckets) == 0 {
		buckets = prometheus.DefBuckets
	}

	requests, err := telemetry.Register(opts.Registerer, prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      "requests_total",
		Help:      "Total number of gRPC unary requests partitioned by service, method, and status code.",
	}, []string{"service", "method", "code"}))
	if err != nil {
		return nil, fmt.Errorf("gRPC requests collector: %w", err)
	}

	duration, err := telemetry.Register(opts.Registerer, prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      "request_duration_seconds",
		Help:      "Histogram of gRPC unary request latencies in seconds partitioned by service, method, and status code.",
		Buckets:   buckets,
	}, []string{"service", "method", "code"}))
	if err != nil {
		return nil, fmt.Errorf("gRPC duration collector: %w", err)
	}

	inFlight, err := telemetry.Register(opts.Registerer, prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      "in_flight_requests",
		Help:      "Current number of in-flight gRPC unary requests partitioned by service.",
	}, []string{"service"}))
	if err != nil {
		return nil, fmt.Errorf("gRPC inflight collector: %w", err)
	}

	return &GRPCMetrics{requests: requests, duration: duration, inFlight: inFlight}, nil
}

// UnaryServerInterceptor returns a gRPC unary interceptor that records metrics.
func (m *GRPCMetrics) UnaryServerInterceptor() grpc.UnaryServerInterceptor {
	if m == nil {
		return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
			return handler(ctx, req)
		}
	}

	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		service, method := splitFullMethod(info.FullMethod)
		start := time.Now()

		inflightGauge := m.inFlight.WithLabelValues(service)
		inflightGauge.Inc()
		defer inflightGauge.Dec()

		resp, err := handler(ctx, req)

		labels := prometheus.Labels{
			"service": service,
			"method":  method,
			"code":    status.Code(err).String(),
		}

		m.requests.With(labels).Inc()
		m.duration.With(labels).Observe(time.Since(start).Seconds())

		return resp, err
	}
}

func splitFullMethod(full string) (string, string) {
	full = strings.TrimPrefix(full, "/")
	if full == "" {
		return "unknown", "unknown"
	}
	service, method, ok := strings.Cut(full, "/")
	if !ok || strings.Contains(method, "/") {
		return full, "unknown"
	}
	if service == "" {
		service = "unknown"
	}
	if method == "" {
		method = "unknown"
	}
	return service, method
}
