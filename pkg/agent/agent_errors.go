// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

package agent

import (
	"context"
	stderrors "errors"
	"sync"

	"github.com/jllopis/basedagent/pkg/errors"
	"github.com/jllopis/basedagent/pkg/telemetry"
)

var (
	globalErrorMetrics     *telemetry.ErrorMetrics
	globalErrorMetricsOnce sync.Once
)

// InitErrorMetrics initializes the global error metrics for agents.
// This should be called once during application startup, after telemetry.
// Returns nil if the instruments cannot be created (graceful degradation).
func InitErrorMetrics() *telemetry.ErrorMetrics {
	globalErrorMetricsOnce.Do(func() {
		metrics, err := telemetry.NewErrorMetrics()
		if err != nil {
			return
		}
		globalErrorMetrics = metrics
	})
	return globalErrorMetrics
}

// GetErrorMetrics returns the global error metrics, or nil if not initialized.
func GetErrorMetrics() *telemetry.ErrorMetrics {
	return globalErrorMetrics
}

func recordError(ctx context.Context, err error, component string) {
	if em := GetErrorMetrics(); em != nil {
		em.RecordErrorMetric(ctx, err, component)
	}
}

// WrapLLMError wraps a completion failure with the requested model.
func WrapLLMError(err error, model string) *errors.AgentError {
	if err == nil {
		return nil
	}
	var ae *errors.AgentError
	if stderrors.As(err, &ae) && ae.Code != errors.CodeInternal {
		return ae.WithContext("model", model)
	}
	return errors.New(errors.CodeLLMError, "completion request failed", err).
		WithContext("model", model).
		WithAttribute("llm.model", model).
		WithRecoverable(true)
}

// WrapToolError wraps a capability invocation failure with the call identity.
func WrapToolError(err error, toolName, toolCallID string) *errors.AgentError {
	if err == nil {
		return nil
	}
	var ae *errors.AgentError
	if stderrors.As(err, &ae) {
		return ae.WithContext("tool_name", toolName).
			WithContext("tool_call_id", toolCallID).
			WithAttribute("tool.name", toolName)
	}
	return errors.New(errors.CodeToolFailure, "tool execution failed", err).
		WithContext("tool_name", toolName).
		WithContext("tool_call_id", toolCallID).
		WithAttribute("tool.name", toolName).
		WithRecoverable(true)
}

// ToolErrorContent renders a failed invocation as the tool message content
// handed back to the model: "Error: " followed by the failure message.
func ToolErrorContent(err error) string {
	return "Error: " + ErrorMessage(err)
}

// ErrorMessage renders err for humans and models, without the bracketed code.
func ErrorMessage(err error) string {
	if err == nil {
		return ""
	}
	var ae *errors.AgentError
	if !stderrors.As(err, &ae) {
		return err.Error()
	}
	if ae.Code == errors.CodeInvalidInput || ae.Code == errors.CodeNotFound || ae.Err == nil {
		return ae.Message
	}
	return ae.Message + ": " + ErrorMessage(ae.Err)
}
