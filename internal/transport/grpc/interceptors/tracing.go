package interceptors

import (
	"google.golang.org/grpc"

	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

// TracingOptions customises the tracing stats handler.
type TracingOptions struct {
	TracerProvider trace.TracerProvider
	Propagators    propagation.TextMapPropagator
	Additional     []otelgrpc.Option
}

// Tracing wraps the otelgrpc server stats handler.
type Tracing struct {
	options []otelgrpc.Option
}

// NewTracing builds the tracing stats handler configuration.
func NewTracing(opts TracingOptions) *Tracing {
	options := make([]otelgrpc.Option, 0, len(opts.Additional)+2)
	if opts.TracerProvider != nil {
		options = append(options, otelgrpc.WithTracerProvider(opts.TracerProvider))
	}
	if opts.Propagators != nil {
		options = append(options, otelgrpc.WithPropagators(opts.Propagators))
	}
	options = append(options, opts.Additional...)
	return &Tracing{options: options}
}

// ServerOption installs the stats handler on a gRPC server. A nil Tracing
// installs one bound to the global provider.
func (t *Tracing) ServerOption() grpc.ServerOption {
	if t == nil {
		return grpc.StatsHandler(otelgrpc.NewServerHandler())
	}
	return grpc.StatsHandler(otelgrpc.NewServerHandler(t.options...))
}
