// Package telemetry holds the tracing and metrics plumbing shared by the
// pattern orchestrators. Patterns call it opportunistically; nothing here
// can fail a pattern execution.
package telemetry

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/hivekit-dev/hivekit"

var (
	patternExecutions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "hivekit_pattern_executions_total",
		Help: "Pattern entry-point executions by pattern and outcome.",
	}, []string{"pattern", "status"})

	agentSpawns = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "hivekit_agent_spawns_total",
		Help: "Agents created by pattern and role within the pattern.",
	}, []string{"pattern", "role"})
)

// StartSpan opens a span for one pattern execution. The returned span must
// be ended by the caller.
func StartSpan(ctx context.Context, pattern, instanceID string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	base := []attribute.KeyValue{
		attribute.String("pattern.name", pattern),
		attribute.String("pattern.instance_id", instanceID),
	}
	return otel.Tracer(tracerName).Start(ctx, "patterns."+pattern,
		trace.WithAttributes(append(base, attrs...)...))
}

// CountExecution records one pattern execution outcome.
func CountExecution(pattern string, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	patternExecutions.WithLabelValues(pattern, status).Inc()
}

// CountSpawn records one agent creation.
func CountSpawn(pattern, role string) {
	agentSpawns.WithLabelValues(pattern, role).Inc()
}
