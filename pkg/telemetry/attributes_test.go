// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

package telemetry

import (
	"testing"

	"go.opentelemetry.io/otel/attribute"
)

func TestAgentAttributes(t *testing.T) {
	attrs := AgentAttributes("Based Agent", "gpt-4-1106-preview", "run-123", 4)

	expected := map[string]any{
		AttrAgentName:  "Based Agent",
		AttrAgentRunID: "run-123",
		AttrAgentModel: "gpt-4-1106-preview",
		AttrTranscript: 4,
	}

	assertAttributes(t, attrs, expected)
}

func TestLoopAttributes(t *testing.T) {
	assertAttributes(t, LoopAttributes("auto", 3), map[string]any{
		AttrAgentMode: "auto",
		AttrTurnIndex: 3,
	})
}

func TestToolCallAttributes(t *testing.T) {
	attrs := ToolCallAttributes("getBalance", "call-1", 150.5, true)

	expected := map[string]any{
		AttrToolName:       "getBalance",
		AttrToolCallID:     "call-1",
		AttrToolDurationMs: 150.5,
		AttrToolSuccess:    true,
	}

	assertAttributes(t, attrs, expected)
}

func TestToolCallArgsResult_Truncation(t *testing.T) {
	longArgs := string(make([]byte, 600)) // 600 chars
	longResult := string(make([]byte, 700))

	attrs := ToolCallArgsResult(longArgs, longResult, 500)

	for _, attr := range attrs {
		val := attr.Value.AsString()
		if len(val) > 504 { // 500 + "..."
			t.Errorf("attribute %s not truncated: len=%d", attr.Key, len(val))
		}
	}
}

func TestToolsetAttributes(t *testing.T) {
	attrs := ToolsetAttributes([]string{"createToken", "getBalance", "requestFaucet"})

	assertAttributes(t, attrs, map[string]any{AttrToolsCount: 3})

	for _, attr := range attrs {
		if string(attr.Key) == AttrToolsNames {
			names := attr.Value.AsStringSlice()
			if len(names) != 3 {
				t.Errorf("expected 3 tool names, got %d", len(names))
			}
		}
	}

	if got := ToolsetAttributes(nil); len(got) != 1 {
		t.Errorf("expected only the count for an empty toolset, got %v", got)
	}
}

func TestLLMAttributes(t *testing.T) {
	attrs := LLMAttributes("gpt-4", "openai", 5, true)

	expected := map[string]any{
		AttrLLMModel:     "gpt-4",
		AttrLLMProvider:  "openai",
		AttrLLMMessages:  5,
		AttrLLMStreaming: true,
	}

	assertAttributes(t, attrs, expected)
}

func TestLLMUsageAttributes(t *testing.T) {
	attrs := LLMUsageAttributes(100, 50, 2, 1500.0)

	expected := map[string]any{
		AttrLLMTokensInput:  100,
		AttrLLMTokensOutput: 50,
		AttrLLMTokensTotal:  150,
		AttrLLMToolCalls:    2,
		AttrLLMDurationMs:   1500.0,
	}

	assertAttributes(t, attrs, expected)
}

func TestWalletAttributes(t *testing.T) {
	assertAttributes(t, WalletAttributes("base-sepolia", "0xabc"), map[string]any{
		AttrWalletNetwork: "base-sepolia",
		AttrWalletAddress: "0xabc",
	})
}

func TestPolicyAttributes(t *testing.T) {
	attrs := PolicyAttributes(true, false, "access denied")

	expected := map[string]any{
		AttrPolicyEvaluated: true,
		AttrPolicyAllowed:   false,
		AttrPolicyReason:    "access denied",
	}

	assertAttributes(t, attrs, expected)
}

// assertAttributes checks that expected key-value pairs exist in attrs
func assertAttributes(t *testing.T, attrs []attribute.KeyValue, expected map[string]any) {
	t.Helper()

	found := make(map[string]attribute.KeyValue)
	for _, attr := range attrs {
		found[string(attr.Key)] = attr
	}

	for key, expectedVal := range expected {
		attr, ok := found[key]
		if !ok {
			t.Errorf("missing attribute %s", key)
			continue
		}

		var actualVal any
		switch attr.Value.Type() {
		case attribute.STRING:
			actualVal = attr.Value.AsString()
		case attribute.INT64:
			actualVal = int(attr.Value.AsInt64())
		case attribute.FLOAT64:
			actualVal = attr.Value.AsFloat64()
		case attribute.BOOL:
			actualVal = attr.Value.AsBool()
		}

		if actualVal != expectedVal {
			t.Errorf("attribute %s: got %v, want %v", key, actualVal, expectedVal)
		}
	}
}
