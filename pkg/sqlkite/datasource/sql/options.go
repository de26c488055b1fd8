package sql

import (
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

// Option configures a DB.
type Option func(*options)

type options struct {
	tracer trace.Tracer
}

// WithTracer traces statements with t instead of the global provider's tracer.
func WithTracer(t trace.Tracer) Option {
	return func(o *options) { o.tracer = t }
}

func applyOptions(opts []Option) options {
	var o options

	for _, opt := range opts {
		opt(&o)
	}

	if o.tracer == nil {
		o.tracer = otel.GetTracerProvider().Tracer("sqlkite-sql")
	}

	return o
}
