package interceptors

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

func TestGRPCMetricsUnaryInterceptorRecordsMetrics(t *testing.T) {
	registry := prometheus.NewRegistry()
	metrics, err := NewGRPCMetrics(GRPCMetricsOptions{Registerer: registry})
	if err != nil {
		t.Fatalf("failed to create metrics: %v", err)
	}

	interceptor := metrics.UnaryServerInterceptor()

	handler := func(ctx context.Context, req any) (any, error) {
		time.Sleep(5 * time.Millisecond)
		return "ok", nil
	}

	info := &grpc.UnaryServerInfo{FullMethod: "/grpc.health.v1.Health/Check"}

	if _, err := interceptor(context.Background(), struct{}{}, info, handler); err != nil {
		t.Fatalf("unexpected handler error: %v", err)
	}

	labels := prometheus.Labels{"service": "grpc.health.v1.Health", "method": "Check", "code": codes.OK.String()}

	if got := testutil.ToFloat64(metrics.requests.With(labels)); got != 1 {
		t.Fatalf("expected request counter 1, got %f", got)
	}

	if inflight := testutil.ToFloat64(metrics.inFlight.WithLabelValues("grpc.health.v1.Health")); inflight != 0 {
		t.Fatalf("expected in-flight gauge 0, got %f", inflight)
	}

	if samples := testutil.CollectAndCount(metrics.duration); samples == 0 {
		t.Fatalf("expected histogram to record observations")
	}
}

func TestGRPCMetricsUnaryInterceptorPropagatesErrors(t *testing.T) {
	registry := prometheus.NewRegistry()
	metrics, err := NewGRPCMetrics(GRPCMetricsOptions{Registerer: registry})
	if err != nil {
		t.Fatalf("failed to create metrics: %v", err)
	}

	interceptor := metrics.UnaryServerInterceptor()

	handler := func(ctx context.Context, req any) (any, error) {
		return nil, status.Error(codes.NotFound, "unknown service")
	}

	info := &grpc.UnaryServerInfo{FullMethod: "/grpc.health.v1.Health/Check"}

	if _, err := interceptor(context.Background(), struct{}{}, info, handler); status.Code(err) != codes.NotFound {
		t.Fatalf("expected not found, got %v", err)
	}

	labels := prometheus.Labels{"service": "grpc.health.v1.Health", "method": "Check", "code": codes.NotFound.String()}
	if got := testutil.ToFloat64(metrics.requests.With(labels)); got != 1 {
		t.Fatalf("expected request counter 1 for failed call, got %f", got)
	}
}

func TestGRPCMetricsSharedAcrossRegistrations(t *testing.T) {
	registry := prometheus.NewRegistry()
	first, err := NewGRPCMetrics(GRPCMetricsOptions{Registerer: registry})
	if err != nil {
		t.Fatalf("first registration failed: %v", err)
	}
	second, err := NewGRPCMetrics(GRPCMetricsOptions{Registerer: registry})
	if err != nil {
		t.Fatalf("second registration failed: %v", err)
	}
	if first.requests != second.requests {
		t.Fatalf("expected collectors to be shared")
	}
}

func TestSplitFullMethod(t *testing.T) {
	cases := []struct {
		in      string
		service string
		method  string
	}{
		{"", "unknown", "unknown"},
		{"/grpc.health.v1.Health/Watch", "grpc.health.v1.Health", "Watch"},
		{"/grpc.health.v1.Health/", "grpc.health.v1.Health", "unknown"},
		{"/a/b/c", "a/b/c", "unknown"},
		{"grpc.reflection.v1.ServerReflection", "grpc.reflection.v1.ServerReflection", "unknown"},
	}
	for _, tc := range cases {
		service, method := splitFullMethod(tc.in)
		if service != tc.service || method != tc.method {
			t.Fatalf("splitFullMethod(%q) = %q, %q; want %q, %q", tc.in, service, method, tc.service, tc.method)
		}
	}
}
