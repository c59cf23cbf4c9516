// SPDX-License-Identifier: Apache-2.0

package telemetry

import (
	"context"
	stderrors "errors"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/jllopis/basedagent/pkg/errors"
)

// AgentMetrics counts dispatcher turns and capability invocations.
type AgentMetrics struct {
	turns      metric.Int64Counter
	failed     metric.Int64Counter
	toolCalls  metric.Int64Counter
	turnMillis metric.Float64Histogram
}

// NewAgentMetrics creates the agent instruments on the global meter provider.
func NewAgentMetrics() (*AgentMetrics, error) {
	meter := otel.Meter("basedagent/agent")

	turns, err := meter.Int64Counter(
		"basedagent.turns.total",
		metric.WithDescription("Dispatcher turns started"),
	)
	if err != nil {
		return nil, err
	}
	failed, err := meter.Int64Counter(
		"basedagent.turns.failed",
		metric.WithDescription("Dispatcher turns that ended with an error"),
	)
	if err != nil {
		return nil, err
	}
	toolCalls, err := meter.Int64Counter(
		"basedagent.tool_calls.total",
		metric.WithDescription("Capability invocations by tool and outcome"),
	)
	if err != nil {
		return nil, err
	}
	turnMillis, err := meter.Float64Histogram(
		"basedagent.turn.duration_ms",
		metric.WithDescription("Dispatcher turn latency"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, err
	}
	return &AgentMetrics{turns: turns, failed: failed, toolCalls: toolCalls, turnMillis: turnMillis}, nil
}

// TurnStarted records the start of a turn for agent.
func (m *AgentMetrics) TurnStarted(ctx context.Context, agent string) {
	if m == nil {
		return
	}
	m.turns.Add(ctx, 1, metric.WithAttributes(attribute.String("agent", agent)))
}

// TurnFinished records the outcome and duration of a turn.
func (m *AgentMetrics) TurnFinished(ctx context.Context, agent string, elapsed time.Duration, err error) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(attribute.String("agent", agent))
	if err != nil {
		m.failed.Add(ctx, 1, attrs)
	}
	m.turnMillis.Record(ctx, float64(elapsed.Microseconds())/1000, attrs)
}

// ToolCalled records one capability invocation.
func (m *AgentMetrics) ToolCalled(ctx context.Context, tool string, success bool) {
	if m == nil {
		return
	}
	m.toolCalls.Add(ctx, 1, metric.WithAttributes(
		attribute.String("tool", tool),
		attribute.Bool("success", success),
	))
}

// ErrorMetrics tracks error rates, types, and recovery patterns for production monitoring.
type ErrorMetrics struct {
	// errorCounter tracks total errors by code and component
	errorCounter metric.Int64Counter

	// recoveryCounter tracks successful recoveries
	recoveryCounter metric.Int64Counter

	// breakerStateGauge tracks circuit breaker state per component
	breakerStateGauge metric.Int64Gauge
}

// NewErrorMetrics creates a new error metrics tracker with OTEL meters.
func NewErrorMetrics() (*ErrorMetrics, error) {
	meter := otel.Meter("basedagent/errors")

	errorCounter, err := meter.Int64Counter(
		"basedagent.errors.total",
		metric.WithDescription("Total errors by code and component"),
	)
	if err != nil {
		return nil, err
	}

	recoveryCounter, err := meter.Int64Counter(
		"basedagent.errors.recovered",
		metric.WithDescription("Successful error recoveries by code"),
	)
	if err != nil {
		return nil, err
	}

	breakerStateGauge, err := meter.Int64Gauge(
		"basedagent.circuitbreaker.state",
		metric.WithDescription("Circuit breaker state per component (0=open, 1=half-open, 2=closed)"),
	)
	if err != nil {
		return nil, err
	}

	return &ErrorMetrics{
		errorCounter:      errorCounter,
		recoveryCounter:   recoveryCounter,
		breakerStateGauge: breakerStateGauge,
	}, nil
}

// RecordErrorMetric increments the error counter for the given error code and component.
func (em *ErrorMetrics) RecordErrorMetric(ctx context.Context, err error, component string) {
	if em == nil || err == nil {
		return
	}

	var ae *errors.AgentError
	if stderrors.As(err, &ae) {
		em.errorCounter.Add(ctx, 1,
			metric.WithAttributes(
				attribute.String("error.code", string(ae.Code)),
				attribute.String("component", component),
				attribute.String("recoverable", ae.RecoverableString()),
			),
		)
		return
	}
	em.errorCounter.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("error.code", "UNKNOWN"),
			attribute.String("component", component),
			attribute.String("recoverable", "unknown"),
		),
	)
}

// RecordRecovery increments the recovery counter for the given error code.
// This is called when a retry succeeded after a failure.
func (em *ErrorMetrics) RecordRecovery(ctx context.Context, errorCode errors.ErrorCode) {
	if em == nil {
		return
	}
	em.recoveryCounter.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("error.code", string(errorCode)),
		),
	)
}

// RecordCircuitBreakerState records the circuit breaker state (0=open, 1=half-open, 2=closed).
func (em *ErrorMetrics) RecordCircuitBreakerState(ctx context.Context, component string, state int64) {
	if em == nil {
		return
	}
	em.breakerStateGauge.Record(ctx, state,
		metric.WithAttributes(
			attribute.String("component", component),
		),
	)
}
