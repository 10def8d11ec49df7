package telemetry

import (
	"fmt"
	"log/slog"

	honeycomb "github.com/honeycombio/honeycomb-opentelemetry-go"
	"github.com/honeycombio/otel-config-go/otelconfig"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

// Setup configures the global OpenTelemetry SDK for serviceName. Exporter
// endpoints and keys come from the standard OTEL_* / HONEYCOMB_* environment.
// When disabled the returned shutdown is a no-op and the global no-op tracer
// stays in place.
func Setup(enabled bool, serviceName string) (func(), error) {
	if !enabled {
		return func() {}, nil
	}

	shutdown, err := otelconfig.ConfigureOpenTelemetry(
		otelconfig.WithServiceName(serviceName),
		otelconfig.WithSpanProcessor(honeycomb.NewBaggageSpanProcessor()),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to configure opentelemetry: %w", err)
	}
	slog.Info("OpenTelemetry enabled", "service", serviceName)
	return shutdown, nil
}

func Tracer(name string) trace.Tracer {
	return otel.Tracer(name)
}
