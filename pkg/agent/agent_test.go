// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

package agent

import (
	"context"
	stderrors "errors"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jllopis/basedagent/pkg/llm"
	"github.com/jllopis/basedagent/pkg/stream"
	bt "github.com/jllopis/basedagent/pkg/testing"
	"github.com/jllopis/basedagent/pkg/tools"
)

// streamProvider replays chunks on ChatStream and fails Chat.
type streamProvider struct {
	chunks []llm.StreamChunk
	reqs   atomic.Int32
}

func (p *streamProvider) Chat(context.Context, llm.ChatRequest) (*llm.ChatResponse, error) {
	return nil, stderrors.New("Chat should not be called when streaming")
}

func (p *streamProvider) ChatStream(ctx context.Context, _ llm.ChatRequest) (<-chan llm.StreamChunk, error) {
	p.reqs.Add(1)
	ch := make(chan llm.StreamChunk, len(p.chunks))
	for _, c := range p.chunks {
		ch <- c
	}
	close(ch)
	return ch, nil
}

func faucetRegistry(t *testing.T, calls *int) *tools.Registry {
	t.Helper()
	reg, err := tools.NewRegistry(
		tools.Define(tools.Descriptor{Name: "requestFaucet", Description: "Request testnet funds"},
			tools.DecodeNone,
			func(context.Context, tools.NoParams) string {
				*calls++
				return "Faucet transaction completed successfully: tx 0xabc"
			}),
		tools.Define(tools.Descriptor{
			Name:   "getBalance",
			Params: []tools.Param{{Name: "assetId", Type: tools.TypeString, Required: true}},
		},
			func(a tools.Args) (string, error) { return a.String("assetId") },
			func(_ context.Context, id string) string { return "Current balance of " + id + ": 1" }),
	)
	if err != nil {
		t.Fatalf("NewRegistry() error = %v", err)
	}
	return reg
}

// drain runs the turn stream to completion and fails fast on a stall.
func drain(t *testing.T, events <-chan stream.Event) bt.Turn {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	turn := bt.Drain(ctx, events)
	if !turn.Closed {
		t.Fatalf("turn stream not closed, got %v", turn.Kinds())
	}
	return turn
}

func TestNew(t *testing.T) {
	if _, err := New("x", nil); !stderrors.Is(err, ErrMissingProvider) {
		t.Fatalf("New(nil provider) error = %v, want ErrMissingProvider", err)
	}
	if _, err := New("x", llm.NewMockProvider("hi"), WithTemperature(3)); err == nil {
		t.Fatal("expected temperature validation error")
	}
	a, err := New("", llm.NewMockProvider("hi"), WithInstructions("be based"))
	bt.RequireNoError(t, err, "New()")
	if a.Name() != DefaultName {
		t.Errorf("Name() = %q, want %q", a.Name(), DefaultName)
	}
	if a.Instructions() != "be based" {
		t.Errorf("Instructions() = %q", a.Instructions())
	}
}

func TestRunToolCallTurn(t *testing.T) {
	p := bt.NewScenarioProvider().AddToolCallResponse(
		bt.NewToolCall("requestFaucet").WithID("call_1").Build(),
	)
	a, err := New("Based Agent", p, WithInstructions("You are a helpful agent."), WithModel("gpt-4-1106-preview"))
	bt.RequireNoError(t, err, "New()")
	var calls int
	reg := faucetRegistry(t, &calls)
	input := []llm.Message{llm.User("Request funds from the faucet")}

	turn := drain(t, a.Run(context.Background(), input, reg))
	check := bt.NewAssertions(t)
	check.AssertTurn(turn).
		WellFormed().
		HasKinds(bt.KindInvoke, bt.KindEnd).
		Invoked("requestFaucet").
		Ended(3).
		ToolResult("call_1", bt.Equals("Faucet transaction completed successfully: tx 0xabc"))
	if check.Failed() {
		t.FailNow()
	}
	if inv := turn.Events[0].(stream.ToolInvocation); inv.Sender != "Based Agent" {
		t.Errorf("invocation sender = %q", inv.Sender)
	}
	if calls != 1 {
		t.Errorf("capability ran %d times, want 1", calls)
	}

	tr, _ := turn.Transcript()
	if tr[0].Role != llm.RoleUser || tr[0].Content != input[0].Content {
		t.Errorf("transcript[0] = %#v, want input message", tr[0])
	}
	if tr[1].Role != llm.RoleAssistant || tr[1].Sender != "Based Agent" || len(tr[1].ToolCalls) != 1 {
		t.Errorf("transcript[1] = %#v, want assistant with one call", tr[1])
	}
	if len(input) != 1 {
		t.Error("input transcript was modified")
	}

	bt.RequireEqual(t, 1, p.CallCount(), "provider requests")
	req := p.LastRequest()
	check.AssertRequest(req).
		HasModel("gpt-4-1106-preview").
		HasSystemMessage("You are a helpful agent.").
		HasUserMessage("Request funds").
		HasMessageCount(2).
		HasToolCount(2).
		HasTool("requestFaucet").
		HasTool("getBalance")
	if req.Messages[0].Role != llm.RoleSystem {
		t.Errorf("first request message = %#v, want system instructions", req.Messages[0])
	}
	if req.ToolChoice != llm.ToolChoiceAuto || !req.ParallelToolCalls {
		t.Errorf("request choice = %q parallel = %v", req.ToolChoice, req.ParallelToolCalls)
	}
}

func TestRunToolErrors(t *testing.T) {
	tests := []struct {
		name string
		call llm.ToolCall
		want string
	}{
		{
			name: "unknown capability",
			call: bt.NewToolCall("x").WithRawArgs("{}").Build(),
			want: "Error: unknown capability: x",
		},
		{
			name: "missing required parameter",
			call: bt.NewToolCall("getBalance").Build(),
			want: "Error: missing required parameter: assetId",
		},
		{
			name: "malformed arguments",
			call: bt.NewToolCall("getBalance").WithRawArgs("{oops").Build(),
			want: "Error: ",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a, err := New("Based Agent", bt.NewScenarioProvider().AddToolCallResponse(tt.call))
			bt.RequireNoError(t, err, "New()")
			var calls int
			turn := drain(t, a.Run(context.Background(), []llm.Message{llm.User("go")}, faucetRegistry(t, &calls)))

			tr, ok := turn.Transcript()
			if !ok {
				t.Fatalf("turn did not end: %v", turn.Kinds())
			}
			id := tr[1].ToolCalls[0].ID
			if id == "" {
				t.Fatal("missing call id should be assigned")
			}
			bt.NewAssertions(t).AssertTurn(turn).
				WellFormed().
				HasKinds(bt.KindInvoke, bt.KindEnd).
				Ended(3).
				ToolResult(id, bt.HasPrefix(tt.want))
			if calls != 0 {
				t.Errorf("faucet ran %d times", calls)
			}
		})
	}
}

func TestRunParallelCallsKeepOrder(t *testing.T) {
	p := bt.NewScenarioProvider().AddScriptedResponse(bt.ScriptedResponse{
		Content: "Checking both.",
		ToolCalls: []llm.ToolCall{
			bt.NewToolCall("getBalance").WithID("a").WithArg("assetId", "eth").Build(),
			bt.NewToolCall("getBalance").WithID("b").WithArg("assetId", "usdc").Build(),
		},
	})
	a, _ := New("Based Agent", p)
	var calls int
	turn := drain(t, a.Run(context.Background(), nil, faucetRegistry(t, &calls)))

	bt.NewAssertions(t).AssertTurn(turn).
		WellFormed().
		HasKinds(bt.KindText, bt.KindInvoke, bt.KindEnd).
		TextMatches(bt.Equals("Checking both.")).
		Ended(3).
		ToolResult("a", bt.Equals("Current balance of eth: 1")).
		ToolResult("b", bt.Regex(`usdc: 1$`))

	tr, _ := turn.Transcript()
	if len(tr) == 3 && (tr[1].ToolCallID != "a" || tr[2].ToolCallID != "b") {
		t.Errorf("tool results out of order: %#v", tr[1:])
	}
	if got := bt.FormatToolCalls(turn.Calls()); got != "[getBalance, getBalance]" {
		t.Errorf("invoked calls = %s", got)
	}
	args := bt.AssertToolCallArgs(t, turn.Calls()[1], "getBalance")
	if args["assetId"] != "usdc" {
		t.Errorf("second call args = %v", args)
	}
}

func TestRunProviderFailure(t *testing.T) {
	a, _ := New("Based Agent", bt.NewScenarioProvider().AddErrorResponse(stderrors.New("quota exceeded")))
	turn := drain(t, a.Run(context.Background(), []llm.Message{llm.User("hi")}, nil))
	bt.NewAssertions(t).AssertTurn(turn).
		WellFormed().
		HasKinds(bt.KindError).
		FailedWith(bt.Equals("completion request failed: quota exceeded"))
}

func TestRunStreaming(t *testing.T) {
	sp := &streamProvider{chunks: []llm.StreamChunk{
		{Content: "Hello"},
		{Content: ", world"},
		{Done: true, Usage: &llm.Usage{TotalTokens: 5}},
	}}
	a, _ := New("Based Agent", sp, WithStreaming(true))
	turn := drain(t, a.Run(context.Background(), []llm.Message{llm.User("hi")}, nil))
	bt.NewAssertions(t).AssertTurn(turn).
		WellFormed().
		HasKinds(bt.KindText, bt.KindText, bt.KindEnd).
		TextMatches(bt.Equals("Hello, world")).
		Ended(2)

	for i, ev := range turn.Events[:2] {
		if td, ok := ev.(stream.TextDelta); ok && td.Sender != "Based Agent" {
			t.Errorf("events[%d] sender = %q", i, td.Sender)
		}
	}
	if tr, ok := turn.Transcript(); ok {
		if got := tr[len(tr)-1].Content; got != "Hello, world" {
			t.Errorf("assistant content = %q", got)
		}
	}
	if sp.reqs.Load() != 1 {
		t.Errorf("stream requests = %d, want 1", sp.reqs.Load())
	}
}

func TestRunStreamingToolCalls(t *testing.T) {
	p := bt.NewScenarioProvider().AddScriptedResponse(bt.ScriptedResponse{
		Content:   "Asking the faucet.",
		ToolCalls: []llm.ToolCall{bt.NewToolCall("requestFaucet").WithID("f1").Build()},
	})
	a, _ := New("Based Agent", p, WithStreaming(true))
	var calls int
	turn := drain(t, a.Run(context.Background(), []llm.Message{llm.User("fund me")}, faucetRegistry(t, &calls)))
	bt.NewAssertions(t).AssertTurn(turn).
		WellFormed().
		HasKinds(bt.KindText, bt.KindText, bt.KindText, bt.KindInvoke, bt.KindEnd).
		TextMatches(bt.Equals("Asking the faucet.")).
		Invoked("requestFaucet").
		Ended(3).
		ToolResult("f1", bt.Contains("completed successfully"))
	if calls != 1 {
		t.Errorf("faucet ran %d times, want 1", calls)
	}
}

func TestRunStreamingErrors(t *testing.T) {
	tests := []struct {
		name   string
		chunks []llm.StreamChunk
		kinds  []bt.EventKind
		want   string
	}{
		{
			name:   "truncated stream",
			chunks: []llm.StreamChunk{{Content: "par"}},
			kinds:  []bt.EventKind{bt.KindText, bt.KindError},
			want:   "completion stream ended without a final chunk",
		},
		{
			name:   "chunk error",
			chunks: []llm.StreamChunk{{Error: stderrors.New("reset")}},
			kinds:  []bt.EventKind{bt.KindError},
			want:   "completion request failed: reset",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a, _ := New("Based Agent", &streamProvider{chunks: tt.chunks}, WithStreaming(true))
			turn := drain(t, a.Run(context.Background(), nil, nil))
			bt.NewAssertions(t).AssertTurn(turn).
				WellFormed().
				HasKinds(tt.kinds...).
				FailedWith(bt.Equals(tt.want))
		})
	}
}

func TestRunStreamingDisabledUsesChat(t *testing.T) {
	sp := &streamProvider{}
	a, _ := New("Based Agent", sp)
	turn := drain(t, a.Run(context.Background(), nil, nil))
	bt.NewAssertions(t).AssertTurn(turn).
		WellFormed().
		FailedWith(bt.Contains("Chat should not be called"))
	if sp.reqs.Load() != 0 {
		t.Error("ChatStream called with streaming disabled")
	}
}

func TestRunAggregated(t *testing.T) {
	mock := llm.NewMockProvider("All set.")
	a, _ := New("Based Agent", mock)
	var out strings.Builder
	agg := stream.NewAggregator(&out)
	input := []llm.Message{llm.User("status?")}
	turn, err := agg.Consume(context.Background(), a.Run(context.Background(), input, nil))
	bt.RequireNoError(t, err, "Consume()")
	if turn.Failed() || len(turn.Transcript) != 2 {
		t.Fatalf("resolved turn = %#v", turn)
	}
	if !strings.Contains(out.String(), "All set.") {
		t.Errorf("rendered output = %q", out.String())
	}
}
