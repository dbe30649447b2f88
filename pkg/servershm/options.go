package servershm

import (
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

type options struct {
	meter  metric.Meter
	tracer trace.Tracer
}

// Option configures a Server or Client at construction.
type Option func(*options)

// WithMeter instruments constructions and bus updates with OpenTelemetry
// metrics in addition to the built-in prometheus counters.
func WithMeter(m metric.Meter) Option {
	return func(o *options) { o.meter = m }
}

// WithTracer wraps construct, attach and destroy in OpenTelemetry spans.
func WithTracer(t trace.Tracer) Option {
	return func(o *options) { o.tracer = t }
}

func applyOptions(opts []Option) options {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	return o
}
