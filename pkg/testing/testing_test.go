// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

package testing

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/jllopis/basedagent/pkg/agent"
	"github.com/jllopis/basedagent/pkg/llm"
	"github.com/jllopis/basedagent/pkg/tools"
)

func balanceRegistry(t *testing.T) *tools.Registry {
	t.Helper()
	reg, err := tools.NewRegistry(tools.Define(
		tools.Descriptor{
			Name:   "getBalance",
			Params: []tools.Param{{Name: "assetId", Type: tools.TypeString, Required: true}},
		},
		func(a tools.Args) (string, error) { return a.String("assetId") },
		func(_ context.Context, id string) string { return "Current balance of " + id + ": 0.5" },
	))
	RequireNoError(t, err, "registry")
	return reg
}

func drainRun(t *testing.T, p llm.Provider, streaming bool, input []llm.Message) Turn {
	t.Helper()
	a, err := agent.New("Based Agent", p, agent.WithStreaming(streaming), agent.WithInstructions("be based"))
	RequireNoError(t, err, "agent.New")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return Drain(ctx, a.Run(ctx, input, balanceRegistry(t)))
}

func TestScenarioProviderScript(t *testing.T) {
	p := NewScenarioProvider().
		AddResponse("first").
		AddErrorResponse(errors.New("rate limited")).
		AddResponse("third")
	ctx := context.Background()

	resp, err := p.Chat(ctx, llm.ChatRequest{Model: "m"})
	RequireNoError(t, err, "first call")
	RequireEqual(t, "first", resp.Content, "first content")

	if _, err := p.Chat(ctx, llm.ChatRequest{}); err == nil || err.Error() != "rate limited" {
		t.Fatalf("second call error = %v, want rate limited", err)
	}

	resp, err = p.Chat(ctx, llm.ChatRequest{})
	RequireNoError(t, err, "third call")
	RequireEqual(t, "third", resp.Content, "third content")

	if _, err := p.Chat(ctx, llm.ChatRequest{}); err == nil {
		t.Fatal("expected exhausted script error")
	}
	RequireEqual(t, 4, p.CallCount(), "call count")
	RequireEqual(t, "m", p.Requests()[0].Model, "captured model")

	p.Reset()
	RequireEqual(t, 0, p.CallCount(), "call count after reset")
}

func TestScenarioProviderCondition(t *testing.T) {
	p := NewScenarioProvider().
		AddScriptedResponse(ScriptedResponse{
			Content:   "skipped",
			Condition: func(req llm.ChatRequest) bool { return len(req.Tools) > 0 },
		}).
		AddResponse("fallback")
	resp, err := p.Chat(context.Background(), llm.ChatRequest{})
	RequireNoError(t, err, "chat")
	RequireEqual(t, "fallback", resp.Content, "conditional response")
}

func TestScenarioProviderDefaultError(t *testing.T) {
	p := NewScenarioProvider().WithDefaultError(errors.New("offline"))
	_, err := p.Chat(context.Background(), llm.ChatRequest{})
	NewAssertions(t).AssertErrorContains(err, "offline", "default error")
}

func TestSplitWords(t *testing.T) {
	tests := []struct {
		in   string
		want []string
	}{
		{"", nil},
		{"one", []string{"one"}},
		{"Hello there world", []string{"Hello", " there", " world"}},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got := splitWords(tt.in)
			if strings.Join(got, "") != tt.in || len(got) != len(tt.want) {
				t.Fatalf("splitWords(%q) = %q, want %q", tt.in, got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("splitWords(%q)[%d] = %q, want %q", tt.in, i, got[i], tt.want[i])
				}
			}
		})
	}
}

func TestToolCallBuilder(t *testing.T) {
	tc := NewToolCall("transferAsset").
		WithID("call_1").
		WithArg("amount", "0.01").
		WithArg("assetId", "eth").
		Build()
	args := AssertToolCallArgs(t, tc, "transferAsset")
	RequireEqual(t, "call_1", tc.ID, "id")
	RequireEqual(t, "0.01", args["amount"], "amount")

	raw := NewToolCall("getBalance").WithRawArgs("{not json").Build()
	RequireEqual(t, "{not json", raw.Function.Arguments, "raw args")
	RequireEqual(t, "[transferAsset, getBalance]", FormatToolCalls([]llm.ToolCall{tc, raw}), "format")
	RequireEqual(t, "(none)", FormatToolCalls(nil), "format empty")
}

func TestTurnStreamedText(t *testing.T) {
	p := NewScenarioProvider().AddResponse("Balance looks healthy")
	turn := drainRun(t, p, true, []llm.Message{llm.User("how am I doing?")})

	NewAssertions(t).AssertTurn(turn).
		WellFormed().
		HasKinds(KindText, KindText, KindText, KindEnd).
		TextMatches(Equals("Balance looks healthy")).
		Ended(2)

	a := NewAssertions(t)
	a.AssertRequest(p.LastRequest()).
		HasSystemMessage("be based").
		HasUserMessage("how am I doing").
		HasToolCount(1).
		HasTool("getBalance").
		HasMessageCount(2)
}

func TestTurnToolCalls(t *testing.T) {
	p := NewScenarioProvider().AddToolCallResponse(
		NewToolCall("getBalance").WithID("c1").WithArg("assetId", "usdc").Build(),
		NewToolCall("getBalance").WithID("c2").Build(),
		NewToolCall("getBalance").WithID("c3").WithRawArgs("{oops").Build(),
	)
	for _, streaming := range []bool{false, true} {
		p.Reset()
		turn := drainRun(t, p, streaming, []llm.Message{llm.User("balances")})
		NewAssertions(t).AssertTurn(turn).
			WellFormed().
			HasKinds(KindInvoke, KindEnd).
			Invoked("getBalance").
			Ended(5).
			ToolResult("c1", Equals("Current balance of usdc: 0.5")).
			ToolResult("c2", Equals("Error: missing required parameter: assetId")).
			ToolResult("c3", HasPrefix("Error: "))
	}
}

func TestTurnTruncatedStream(t *testing.T) {
	p := NewScenarioProvider().AddScriptedResponse(ScriptedResponse{
		Content:  "partial answer",
		Truncate: true,
	})
	turn := drainRun(t, p, true, nil)
	NewAssertions(t).AssertTurn(turn).
		WellFormed().
		HasKinds(KindText, KindText, KindError).
		FailedWith(Contains("without a final chunk"))
}

func TestTurnProviderError(t *testing.T) {
	p := NewScenarioProvider().AddErrorResponse(errors.New("invalid api key"))
	turn := drainRun(t, p, false, []llm.Message{llm.User("hi")})
	NewAssertions(t).AssertTurn(turn).
		WellFormed().
		HasKinds(KindError).
		FailedWith(Regex(`invalid api key$`))
}

func TestAssertionsHelpers(t *testing.T) {
	a := NewAssertions(t)
	a.AssertEqual(1, 1, "equal")
	a.AssertNotEqual(1, 2, "not equal")
	a.AssertNil(nil, "nil")
	a.AssertTrue(true, "true")
	a.AssertFalse(false, "false")
	a.AssertContains("Based Agent", "Agent", "contains")
	a.AssertNotContains("Based Agent", "Kairos", "not contains")
	a.AssertLen([]string{"a", "b"}, 2, "len")
	a.AssertNoError(nil, "no error")
	a.AssertError(errors.New("x"), "error")
	if a.Failed() {
		t.Fatal("helpers reported failure")
	}
}
