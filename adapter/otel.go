package adapter

import (
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/scbus/server-shm/pkg/servershm"
)

const instrumentationName = "github.com/scbus/server-shm"

// Instrument derives servershm options from OpenTelemetry providers, so a
// host application's meter and tracer cover bus constructions, attachments
// and drained updates.
func Instrument(mp metric.MeterProvider, tp trace.TracerProvider) []servershm.Option {
	return []servershm.Option{
		servershm.WithMeter(mp.Meter(instrumentationName)),
		servershm.WithTracer(tp.Tracer(instrumentationName)),
	}
}
