// Package observability provides OpenTelemetry integration for distributed tracing.
//
// Traces are exported over OTLP/HTTP to a local collector agent rather than a
// remote endpoint: the agent buffers and retries locally, handles backend
// authentication, and keeps export latency off the request path.
//
// Configuration (~/.loreweaver/config.yaml):
//
//	tracing:
//	  agent_host: "localhost:4318"
//	  environment: "dev"
//	  service_name: "loreweaver"
package observability

import (
	"context"
	"log/slog"
	"os"

	"github.com/firebase/genkit/go/core/tracing"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

// Config for OTLP tracing setup.
type Config struct {
	// AgentHost is the OTLP/HTTP collector endpoint (default: localhost:4318)
	AgentHost string
	// Environment is the deployment environment (dev, staging, prod)
	Environment string
	// ServiceName is the service name reported on spans
	ServiceName string
}

// DefaultAgentHost is the default OTLP/HTTP collector endpoint.
const DefaultAgentHost = "localhost:4318"

// Setup registers an OTLP/HTTP exporter with Genkit's TracerProvider so the
// engine's model and tool spans are exported alongside our own.
//
// Tracing is best effort: if the exporter cannot be created, a warning is
// logged and a no-op shutdown is returned. Returns a shutdown function that
// flushes pending spans.
func Setup(ctx context.Context, cfg Config) (shutdown func(context.Context) error, err error) {
	agentHost := cfg.AgentHost
	if agentHost == "" {
		agentHost = DefaultAgentHost
	}

	// Genkit's TracerProvider reads these at span-creation time
	if cfg.ServiceName != "" {
		_ = os.Setenv("OTEL_SERVICE_NAME", cfg.ServiceName)
	}
	if cfg.Environment != "" {
		_ = os.Setenv("OTEL_RESOURCE_ATTRIBUTES", "deployment.environment="+cfg.Environment)
	}

	exporter, err := otlptracehttp.New(ctx,
		otlptracehttp.WithEndpoint(agentHost),
		otlptracehttp.WithInsecure(), // localhost doesn't need TLS
	)
	if err != nil {
		slog.Warn("failed to create trace exporter, tracing disabled", "error", err)
		return func(context.Context) error { return nil }, nil
	}

	processor := sdktrace.NewBatchSpanProcessor(exporter)
	tracing.TracerProvider().RegisterSpanProcessor(processor)

	slog.Debug("tracing enabled",
		"agent", agentHost,
		"service", cfg.ServiceName,
		"environment", cfg.Environment,
	)

	return tracing.TracerProvider().Shutdown, nil
}
