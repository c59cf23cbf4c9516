// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

// Package agent implements the tool-calling dispatcher: one completion
// request per turn, capability execution, and the turn event stream.
package agent

import (
	"errors"
	"log/slog"

	"github.com/jllopis/basedagent/pkg/llm"
	"github.com/jllopis/basedagent/pkg/telemetry"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

// DefaultName is the sender name used when none is configured.
const DefaultName = "Based Agent"

// Agent is a named model identity with instructions and a completion backend.
type Agent struct {
	name         string
	instructions string
	model        string
	temperature  float64
	provider     llm.Provider
	streaming    bool
	buffer       int
	tracer       trace.Tracer
	metrics      *telemetry.AgentMetrics
	logger       *slog.Logger
}

var ErrMissingProvider = errors.New("agent provider is required")

// Option configures an Agent instance.
type Option func(*Agent) error

// New creates a new Agent. An empty name falls back to DefaultName.
func New(name string, provider llm.Provider, opts ...Option) (*Agent, error) {
	a := &Agent{
		name:     name,
		provider: provider,
		buffer:   16,
		tracer:   otel.Tracer("basedagent/agent"),
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		if err := opt(a); err != nil {
			return nil, err
		}
	}
	if a.name == "" {
		a.name = DefaultName
	}
	if a.provider == nil {
		return nil, ErrMissingProvider
	}
	return a, nil
}

// WithInstructions sets the system message sent with every request.
func WithInstructions(instructions string) Option {
	return func(a *Agent) error {
		a.instructions = instructions
		return nil
	}
}

// WithModel sets the model requested from the provider.
func WithModel(model string) Option {
	return func(a *Agent) error {
		a.model = model
		return nil
	}
}

// WithTemperature sets the sampling temperature.
func WithTemperature(t float64) Option {
	return func(a *Agent) error {
		if t < 0 || t > 2 {
			return errors.New("temperature must be between 0 and 2")
		}
		a.temperature = t
		return nil
	}
}

// WithStreaming enables incremental output when the provider supports it.
func WithStreaming(enabled bool) Option {
	return func(a *Agent) error {
		a.streaming = enabled
		return nil
	}
}

// WithEventBuffer sets the capacity of the turn event channel.
func WithEventBuffer(n int) Option {
	return func(a *Agent) error {
		if n < 0 {
			return errors.New("event buffer must not be negative")
		}
		a.buffer = n
		return nil
	}
}

// WithMetrics records turn and tool metrics.
func WithMetrics(m *telemetry.AgentMetrics) Option {
	return func(a *Agent) error {
		a.metrics = m
		return nil
	}
}

// WithTracer overrides the tracer used for turn and tool spans.
func WithTracer(t trace.Tracer) Option {
	return func(a *Agent) error {
		if t != nil {
			a.tracer = t
		}
		return nil
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(a *Agent) error {
		if l != nil {
			a.logger = l
		}
		return nil
	}
}

// Name returns the agent name, used as the sender of its output.
func (a *Agent) Name() string { return a.name }

// Instructions returns the system instructions.
func (a *Agent) Instructions() string { return a.instructions }

// Model returns the configured model name.
func (a *Agent) Model() string { return a.model }
