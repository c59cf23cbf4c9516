// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

package loop

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/jllopis/basedagent/pkg/agent"
	"github.com/jllopis/basedagent/pkg/capability"
	"github.com/jllopis/basedagent/pkg/llm"
	bt "github.com/jllopis/basedagent/pkg/testing"
	"github.com/jllopis/basedagent/pkg/tools"
	"github.com/jllopis/basedagent/pkg/wallet"
	"github.com/muesli/termenv"
)

// scriptedOperator answers prompts from a fixed list, then reports EOF.
type scriptedOperator struct {
	answers []string
	prompts []string
}

func (o *scriptedOperator) Prompt(_ context.Context, prompt string) (string, error) {
	o.prompts = append(o.prompts, prompt)
	if len(o.answers) == 0 {
		return "", io.EOF
	}
	a := o.answers[0]
	o.answers = o.answers[1:]
	return a, nil
}

func newAgent(t *testing.T, p llm.Provider) *agent.Agent {
	t.Helper()
	a, err := agent.New("Based Agent", p)
	if err != nil {
		t.Fatalf("agent.New() error = %v", err)
	}
	return a
}

func mainnetRegistry(t *testing.T) *tools.Registry {
	t.Helper()
	w := wallet.NewSimulated(wallet.BaseMainnet, wallet.WithSimulatedBalance("eth", "5"))
	reg, err := tools.NewRegistry(capability.Capabilities(capability.New(capability.WithWallet(w)))...)
	if err != nil {
		t.Fatalf("NewRegistry() error = %v", err)
	}
	return reg
}

func TestParseMode(t *testing.T) {
	tests := []struct {
		in   string
		want Mode
		ok   bool
	}{
		{"1", ModeChat, true},
		{"chat", ModeChat, true},
		{" AUTO ", ModeAuto, true},
		{"2", ModeAuto, true},
		{"3", ModeTwoAgent, true},
		{"two-agent", ModeTwoAgent, true},
		{"mcp", ModeMCP, true},
		{"4", "", false},
		{"", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, ok := ParseMode(tt.in)
			if got != tt.want || ok != tt.ok {
				t.Errorf("ParseMode(%q) = %q, %v, want %q, %v", tt.in, got, ok, tt.want, tt.ok)
			}
		})
	}
}

func TestChooseModeRetries(t *testing.T) {
	op := &scriptedOperator{answers: []string{"9", "mcp", "Two-Agent"}}
	var out bytes.Buffer
	mode, err := ChooseMode(context.Background(), op, &out)
	if err != nil {
		t.Fatalf("ChooseMode() error = %v", err)
	}
	if mode != ModeTwoAgent {
		t.Errorf("ChooseMode() = %q, want %q", mode, ModeTwoAgent)
	}
	if n := strings.Count(out.String(), "Invalid choice. Please try again."); n != 2 {
		t.Errorf("invalid choice messages = %d, want 2", n)
	}

	if _, err := ChooseMode(context.Background(), &scriptedOperator{}, io.Discard); !errors.Is(err, io.EOF) {
		t.Errorf("ChooseMode() on EOF error = %v, want io.EOF", err)
	}
}

func TestConsoleOperator(t *testing.T) {
	var out bytes.Buffer
	op := NewConsoleOperator(strings.NewReader("first\r\nsecond\nlast"), &out)
	if op.Interactive() {
		t.Error("string reader should not be interactive")
	}
	ctx := context.Background()
	for _, want := range []string{"first", "second", "last"} {
		got, err := op.Prompt(ctx, "> ")
		if err != nil {
			t.Fatalf("Prompt() error = %v", err)
		}
		if got != want {
			t.Errorf("Prompt() = %q, want %q", got, want)
		}
	}
	if _, err := op.Prompt(ctx, "> "); !errors.Is(err, io.EOF) {
		t.Errorf("Prompt() after input = %v, want io.EOF", err)
	}
	if out.String() != "> > > > " {
		t.Errorf("prompts written = %q", out.String())
	}

	canceled, cancel := context.WithCancel(ctx)
	cancel()
	if _, err := op.Prompt(canceled, "> "); !errors.Is(err, context.Canceled) {
		t.Errorf("Prompt() canceled = %v", err)
	}
}

func TestConsoleOperatorKeepsLineAfterTimeout(t *testing.T) {
	r, w := io.Pipe()
	defer w.Close()
	op := NewConsoleOperator(r, io.Discard)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	if _, err := op.Prompt(ctx, "Approve? "); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("Prompt() = %v, want deadline exceeded", err)
	}

	go func() { _, _ = io.WriteString(w, "exit\n{\"jsonrpc\":\"2.0\"}\n") }()
	line, err := op.Prompt(context.Background(), "User: ")
	if err != nil || line != "exit" {
		t.Fatalf("Prompt() = %q, %v, want exit", line, err)
	}

	buf := make([]byte, 64)
	n, err := op.Reader().Read(buf)
	if err != nil || string(buf[:n]) != "{\"jsonrpc\":\"2.0\"}\n" {
		t.Errorf("Reader().Read() = %q, %v", buf[:n], err)
	}
}

func TestTurnAppendsNewMessages(t *testing.T) {
	p := bt.NewScenarioProvider().
		AddToolCallResponse(bt.NewToolCall("requestFaucet").WithID("c1").Build()).
		AddErrorResponse(errors.New("unauthorized"))
	var out bytes.Buffer
	d := New(newAgent(t, p), mainnetRegistry(t), WithOutput(&out), WithProfile(termenv.Ascii))

	prior := []llm.Message{llm.User("fund me")}
	got, ok, err := d.Turn(context.Background(), prior)
	if err != nil || !ok {
		t.Fatalf("Turn() = %v, %v", ok, err)
	}
	if len(got) != 3 || got[0].Content != "fund me" {
		t.Fatalf("transcript = %#v", got)
	}
	if got[2].Content != capability.FaucetUnavailable {
		t.Errorf("tool result = %q, want %q", got[2].Content, capability.FaucetUnavailable)
	}
	if !strings.Contains(out.String(), "Based Agent: requestFaucet()") {
		t.Errorf("trace line missing from %q", out.String())
	}

	after, ok, err := d.Turn(context.Background(), got)
	if err != nil || ok {
		t.Fatalf("failed Turn() = %v, %v", ok, err)
	}
	if len(after) != len(got) {
		t.Errorf("failed turn changed transcript length to %d", len(after))
	}
}

func TestRunAutonomous(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	p := bt.NewScenarioProvider().WithChatFunc(func(req llm.ChatRequest) (*llm.ChatResponse, error) {
		return &llm.ChatResponse{Content: "Deploying something fun."}, nil
	})
	calls := 0
	counting := &countingProvider{Provider: p, after: 3, onLimit: cancel, calls: &calls}

	var out bytes.Buffer
	d := New(newAgent(t, counting), mainnetRegistry(t),
		WithOutput(&out), WithProfile(termenv.Ascii),
		WithThought("do a thing"), WithInterval(time.Millisecond))

	transcript, err := d.RunAutonomous(ctx)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("RunAutonomous() error = %v, want context.Canceled", err)
	}
	if calls < 3 {
		t.Fatalf("turns = %d, want at least 3", calls)
	}
	for i := 0; i+1 < len(transcript); i += 2 {
		if transcript[i].Role != llm.RoleUser || transcript[i].Content != "do a thing" {
			t.Errorf("transcript[%d] = %#v, want thought", i, transcript[i])
		}
		if transcript[i+1].Role != llm.RoleAssistant {
			t.Errorf("transcript[%d] = %#v, want assistant", i+1, transcript[i+1])
		}
	}
	if !strings.Contains(out.String(), "Starting autonomous Based Agent loop...") ||
		!strings.Contains(out.String(), "Agent's Thought: do a thing") {
		t.Errorf("output = %q", out.String())
	}

	reqs := p.Requests()
	last := reqs[len(reqs)-1]
	if n := len(last.Messages); n < 5 {
		t.Errorf("third request carries %d messages, want the running transcript", n)
	}
}

// countingProvider cancels once it has served after requests.
type countingProvider struct {
	llm.Provider
	after   int
	calls   *int
	onLimit func()
}

func (c *countingProvider) Chat(ctx context.Context, req llm.ChatRequest) (*llm.ChatResponse, error) {
	*c.calls++
	if *c.calls >= c.after {
		c.onLimit()
	}
	return c.Provider.Chat(ctx, req)
}

func TestRunGuided(t *testing.T) {
	tests := []struct {
		name    string
		answers []string
		turns   int
	}{
		{name: "exit immediately", answers: []string{"exit"}, turns: 1},
		{name: "exit any case", answers: []string{"", "EXIT"}, turns: 2},
		{name: "continue until eof", answers: []string{"go on", "more"}, turns: 3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			guide := bt.NewScenarioProvider().WithChatFunc(func(req llm.ChatRequest) (*llm.ChatResponse, error) {
				return &llm.ChatResponse{Content: "Check your eth balance."}, nil
			})
			agentP := bt.NewScenarioProvider().WithChatFunc(func(req llm.ChatRequest) (*llm.ChatResponse, error) {
				return &llm.ChatResponse{Content: "Balance checked."}, nil
			})
			op := &scriptedOperator{answers: tt.answers}
			var out bytes.Buffer
			d := New(newAgent(t, agentP), mainnetRegistry(t),
				WithOutput(&out), WithProfile(termenv.Ascii),
				WithOperator(op), WithGuide(guide, "gpt-4-1106-preview"))

			transcript, err := d.RunGuided(context.Background())
			if err != nil {
				t.Fatalf("RunGuided() error = %v", err)
			}
			if guide.CallCount() != tt.turns || agentP.CallCount() != tt.turns {
				t.Errorf("guide calls = %d, agent calls = %d, want %d", guide.CallCount(), agentP.CallCount(), tt.turns)
			}
			if len(transcript) != 2*tt.turns {
				t.Errorf("len(transcript) = %d, want %d", len(transcript), 2*tt.turns)
			}
			if !strings.Contains(out.String(), "OpenAI Guide: Check your eth balance.") {
				t.Errorf("output = %q", out.String())
			}

			first := guide.Requests()[0]
			if first.Messages[0].Role != llm.RoleSystem || first.Messages[1].Content != DefaultGuideOpening {
				t.Errorf("guide priming = %#v", first.Messages)
			}
			if len(first.Tools) != 0 {
				t.Error("guide requests must not carry tools")
			}
			if tt.turns > 1 {
				second := guide.Requests()[1]
				fb := second.Messages[len(second.Messages)-1]
				if fb.Role != llm.RoleUser || fb.Content != "Based Agent response: Balance checked." {
					t.Errorf("guide feedback = %#v", fb)
				}
			}
		})
	}
}

func TestRunGuidedFailures(t *testing.T) {
	guide := bt.NewScenarioProvider().
		AddErrorResponse(errors.New("guide offline")).
		AddResponse("Transfer some usdc.")
	agentP := bt.NewScenarioProvider().AddErrorResponse(errors.New("quota exceeded"))
	op := &scriptedOperator{answers: []string{"", "exit"}}
	var out bytes.Buffer
	d := New(newAgent(t, agentP), mainnetRegistry(t),
		WithOutput(&out), WithProfile(termenv.Ascii),
		WithOperator(op), WithGuide(guide, "m"))

	transcript, err := d.RunGuided(context.Background())
	if err != nil {
		t.Fatalf("RunGuided() error = %v", err)
	}
	if !strings.Contains(out.String(), "Error: completion request failed: guide offline") {
		t.Errorf("guide failure not printed inline: %q", out.String())
	}
	if len(op.prompts) != 2 {
		t.Errorf("operator prompts = %d, want 2", len(op.prompts))
	}
	if agentP.CallCount() != 1 {
		t.Errorf("agent calls = %d, want 1", agentP.CallCount())
	}
	if len(transcript) != 1 || transcript[0].Content != "Transfer some usdc." {
		t.Errorf("transcript = %#v", transcript)
	}
	if !strings.Contains(out.String(), "quota exceeded") {
		t.Errorf("turn failure not rendered: %q", out.String())
	}
}

type stalledProvider struct{}

func (stalledProvider) Chat(ctx context.Context, _ llm.ChatRequest) (*llm.ChatResponse, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

func TestRunGuidedTimeout(t *testing.T) {
	agentP := bt.NewScenarioProvider()
	var out bytes.Buffer
	d := New(newAgent(t, agentP), mainnetRegistry(t),
		WithOutput(&out), WithProfile(termenv.Ascii),
		WithOperator(&scriptedOperator{answers: []string{"exit"}}),
		WithGuide(stalledProvider{}, "m"), WithGuideTimeout(20*time.Millisecond))

	if _, err := d.RunGuided(context.Background()); err != nil {
		t.Fatalf("RunGuided() error = %v", err)
	}
	if !strings.Contains(out.String(), "operation exceeded timeout") {
		t.Errorf("timeout not rendered: %q", out.String())
	}
	if agentP.CallCount() != 0 {
		t.Errorf("agent calls = %d, want 0", agentP.CallCount())
	}
}

func TestRunGuidedNoReply(t *testing.T) {
	guide := bt.NewScenarioProvider().AddResponse("Say something.").AddResponse("Again.")
	agentP := bt.NewScenarioProvider().AddErrorResponse(errors.New("down"))
	d := New(newAgent(t, agentP), mainnetRegistry(t),
		WithOperator(&scriptedOperator{answers: []string{""}}), WithGuide(guide, "m"))
	if _, err := d.RunGuided(context.Background()); err != nil {
		t.Fatalf("RunGuided() error = %v", err)
	}
	second := guide.Requests()[1]
	if got := second.Messages[len(second.Messages)-1].Content; got != "Based Agent response: No response from Based Agent." {
		t.Errorf("guide feedback = %q", got)
	}
}

func TestRunGuidedRequiresCollaborators(t *testing.T) {
	d := New(newAgent(t, llm.NewMockProvider("x")), nil)
	if _, err := d.RunGuided(context.Background()); err == nil {
		t.Error("expected error without guide")
	}
	d = New(newAgent(t, llm.NewMockProvider("x")), nil, WithGuide(llm.NewMockProvider("y"), "m"))
	if _, err := d.RunGuided(context.Background()); err == nil {
		t.Error("expected error without operator")
	}
}

func TestRunInteractive(t *testing.T) {
	p := bt.NewScenarioProvider().
		AddResponse("Hello!").
		AddToolCallResponse(bt.NewToolCall("swapAssets").WithID("s1").
			WithArg("amount", "1").WithArg("fromAssetId", "eth").WithArg("toAssetId", "usdc").Build())
	op := &scriptedOperator{answers: []string{"hi", "   ", "swap 1 eth", "Quit", "never read"}}
	var out bytes.Buffer
	d := New(newAgent(t, p), mainnetRegistry(t),
		WithOutput(&out), WithProfile(termenv.Ascii), WithOperator(op))

	transcript, err := d.RunInteractive(context.Background())
	if err != nil {
		t.Fatalf("RunInteractive() error = %v", err)
	}
	if p.CallCount() != 2 {
		t.Errorf("turns = %d, want 2", p.CallCount())
	}
	if len(transcript) != 5 {
		t.Fatalf("len(transcript) = %d, want 5: %#v", len(transcript), transcript)
	}
	if transcript[4].Role != llm.RoleTool || !strings.HasPrefix(transcript[4].Content, "Trade successfully completed") {
		t.Errorf("swap result = %#v", transcript[4])
	}
	if len(op.answers) != 1 {
		t.Errorf("remaining answers = %d, want 1", len(op.answers))
	}
	if !strings.Contains(out.String(), "Based Agent: Hello!") {
		t.Errorf("output = %q", out.String())
	}
}
