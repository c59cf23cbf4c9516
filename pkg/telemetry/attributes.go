// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

// Package telemetry provides OpenTelemetry integration with rich attributes
// for agent observability.
package telemetry

import (
	"go.opentelemetry.io/otel/attribute"
)

// Semantic conventions for agent telemetry.
// These follow OpenTelemetry naming conventions where applicable.
const (
	// Agent attributes
	AttrAgentName  = "basedagent.agent.name"
	AttrAgentModel = "basedagent.agent.model"
	AttrAgentRunID = "basedagent.agent.run_id"
	AttrAgentMode  = "basedagent.agent.mode"
	AttrTurnIndex  = "basedagent.turn.index"
	AttrTranscript = "basedagent.turn.transcript_length"

	// Tool attributes
	AttrToolName       = "basedagent.tool.name"
	AttrToolCallID     = "basedagent.tool.call_id"
	AttrToolArgs       = "basedagent.tool.arguments"
	AttrToolResult     = "basedagent.tool.result"
	AttrToolDurationMs = "basedagent.tool.duration_ms"
	AttrToolSuccess    = "basedagent.tool.success"

	// Tool set attributes
	AttrToolsCount = "basedagent.tools.count"
	AttrToolsNames = "basedagent.tools.names"

	// LLM attributes (extending standard gen_ai conventions)
	AttrLLMModel        = "gen_ai.request.model"
	AttrLLMProvider     = "gen_ai.system"
	AttrLLMMessages     = "gen_ai.request.messages"
	AttrLLMStreaming    = "gen_ai.request.streaming"
	AttrLLMTokensInput  = "gen_ai.usage.input_tokens"
	AttrLLMTokensOutput = "gen_ai.usage.output_tokens"
	AttrLLMTokensTotal  = "gen_ai.usage.total_tokens"
	AttrLLMDurationMs   = "gen_ai.duration_ms"
	AttrLLMToolCalls    = "gen_ai.tool_calls"

	// Wallet attributes
	AttrWalletNetwork = "basedagent.wallet.network"
	AttrWalletAddress = "basedagent.wallet.address"

	// Governance attributes
	AttrPolicyEvaluated = "basedagent.policy.evaluated"
	AttrPolicyAllowed   = "basedagent.policy.allowed"
	AttrPolicyReason    = "basedagent.policy.reason"
)

// AgentAttributes returns common attributes for agent turn spans.
func AgentAttributes(name, model, runID string, transcriptLen int) []attribute.KeyValue {
	attrs := []attribute.KeyValue{
		attribute.String(AttrAgentName, name),
		attribute.String(AttrAgentRunID, runID),
		attribute.Int(AttrTranscript, transcriptLen),
	}
	if model != "" {
		attrs = append(attrs, attribute.String(AttrAgentModel, model))
	}
	return attrs
}

// LoopAttributes returns attributes for conversation loop iterations.
func LoopAttributes(mode string, turn int) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String(AttrAgentMode, mode),
		attribute.Int(AttrTurnIndex, turn),
	}
}

// ToolCallAttributes returns attributes for a tool call span.
func ToolCallAttributes(name, callID string, durationMs float64, success bool) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String(AttrToolName, name),
		attribute.String(AttrToolCallID, callID),
		attribute.Float64(AttrToolDurationMs, durationMs),
		attribute.Bool(AttrToolSuccess, success),
	}
}

// ToolCallArgsResult returns attributes with tool arguments and result (truncated for safety).
func ToolCallArgsResult(args, result string, maxLen int) []attribute.KeyValue {
	if maxLen <= 0 {
		maxLen = 500
	}
	attrs := []attribute.KeyValue{}
	if args != "" {
		if len(args) > maxLen {
			args = args[:maxLen] + "..."
		}
		attrs = append(attrs, attribute.String(AttrToolArgs, args))
	}
	if result != "" {
		if len(result) > maxLen {
			result = result[:maxLen] + "..."
		}
		attrs = append(attrs, attribute.String(AttrToolResult, result))
	}
	return attrs
}

// ToolsetAttributes returns attributes describing the available tools.
func ToolsetAttributes(names []string) []attribute.KeyValue {
	attrs := []attribute.KeyValue{
		attribute.Int(AttrToolsCount, len(names)),
	}
	if len(names) > 0 {
		attrs = append(attrs, attribute.StringSlice(AttrToolsNames, names))
	}
	return attrs
}

// LLMAttributes returns attributes for LLM call spans.
func LLMAttributes(model, provider string, msgCount int, streaming bool) []attribute.KeyValue {
	attrs := []attribute.KeyValue{
		attribute.String(AttrLLMModel, model),
		attribute.Int(AttrLLMMessages, msgCount),
		attribute.Bool(AttrLLMStreaming, streaming),
	}
	if provider != "" {
		attrs = append(attrs, attribute.String(AttrLLMProvider, provider))
	}
	return attrs
}

// LLMUsageAttributes returns token usage attributes.
func LLMUsageAttributes(inputTokens, outputTokens, toolCalls int, durationMs float64) []attribute.KeyValue {
	attrs := []attribute.KeyValue{}
	if inputTokens > 0 {
		attrs = append(attrs, attribute.Int(AttrLLMTokensInput, inputTokens))
	}
	if outputTokens > 0 {
		attrs = append(attrs, attribute.Int(AttrLLMTokensOutput, outputTokens))
	}
	if inputTokens > 0 || outputTokens > 0 {
		attrs = append(attrs, attribute.Int(AttrLLMTokensTotal, inputTokens+outputTokens))
	}
	if toolCalls > 0 {
		attrs = append(attrs, attribute.Int(AttrLLMToolCalls, toolCalls))
	}
	if durationMs > 0 {
		attrs = append(attrs, attribute.Float64(AttrLLMDurationMs, durationMs))
	}
	return attrs
}

// WalletAttributes returns attributes identifying the active wallet.
func WalletAttributes(network, address string) []attribute.KeyValue {
	attrs := []attribute.KeyValue{
		attribute.String(AttrWalletNetwork, network),
	}
	if address != "" {
		attrs = append(attrs, attribute.String(AttrWalletAddress, address))
	}
	return attrs
}

// PolicyAttributes returns attributes for policy evaluation.
func PolicyAttributes(evaluated, allowed bool, reason string) []attribute.KeyValue {
	attrs := []attribute.KeyValue{
		attribute.Bool(AttrPolicyEvaluated, evaluated),
	}
	if evaluated {
		attrs = append(attrs, attribute.Bool(AttrPolicyAllowed, allowed))
		if reason != "" {
			attrs = append(attrs, attribute.String(AttrPolicyReason, reason))
		}
	}
	return attrs
}
