// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

package stream

import (
	"bytes"
	"context"
	"reflect"
	"strings"
	"testing"

	"github.com/jllopis/basedagent/pkg/llm"
	"github.com/muesli/termenv"
)

func feed(events ...Event) <-chan Event {
	ch := make(chan Event, len(events))
	for _, ev := range events {
		ch <- ev
	}
	close(ch)
	return ch
}

func plainAggregator() (*Aggregator, *bytes.Buffer) {
	var buf bytes.Buffer
	return NewAggregator(&buf, WithProfile(termenv.Ascii)), &buf
}

func faucetCall() llm.ToolCall {
	return llm.ToolCall{ID: "call_1", Type: llm.ToolTypeFunction, Function: llm.FunctionCall{Name: "requestFaucet", Arguments: "{}"}}
}

func TestConsumeFaucetScenario(t *testing.T) {
	final := []llm.Message{
		{Role: llm.RoleAssistant, Content: "Hi", Sender: "A"},
		{Role: llm.RoleTool, Content: "Error: The faucet is only available on Base Sepolia testnet."},
	}
	agg, out := plainAggregator()

	got, err := agg.Consume(context.Background(), feed(
		TextDelta{Sender: "A", Text: "Hi"},
		ToolInvocation{Sender: "A", Calls: []llm.ToolCall{faucetCall()}},
		TurnEnd{Transcript: final},
	))
	if err != nil {
		t.Fatalf("Consume failed: %v", err)
	}
	if !reflect.DeepEqual(got.Transcript, final) {
		t.Errorf("expected transcript %+v, got %+v", final, got.Transcript)
	}
	if n := strings.Count(out.String(), "A: requestFaucet()\n"); n != 1 {
		t.Errorf("expected one trace line, got %d in %q", n, out.String())
	}
	if want := "A: Hi\nA: requestFaucet()\n"; out.String() != want {
		t.Errorf("expected output %q, got %q", want, out.String())
	}
}

func TestConsumeResolvesTerminalTranscript(t *testing.T) {
	final := []llm.Message{llm.User("go"), llm.Assistant("A", "done")}

	tests := []struct {
		name   string
		before []Event
	}{
		{"no preceding events", nil},
		{"text only", []Event{TextDelta{Sender: "A", Text: "something else entirely"}}},
		{"mixed", []Event{
			TextDelta{Sender: "B", Text: "x"},
			ToolInvocation{Sender: "B", Calls: []llm.ToolCall{faucetCall(), faucetCall()}},
			TextDelta{Sender: "A", Text: "y\n"},
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			agg, _ := plainAggregator()
			events := append(append([]Event{}, tt.before...), TurnEnd{Transcript: final})
			got, err := agg.Consume(context.Background(), feed(events...))
			if err != nil {
				t.Fatalf("Consume failed: %v", err)
			}
			if !reflect.DeepEqual(got.Transcript, final) {
				t.Errorf("expected %+v, got %+v", final, got.Transcript)
			}
		})
	}
}

func TestConsumeSenderLabels(t *testing.T) {
	agg, out := plainAggregator()

	_, err := agg.Consume(context.Background(), feed(
		TextDelta{Sender: "A", Text: "Hel"},
		TextDelta{Sender: "A", Text: "lo"},
		TextDelta{Sender: "B", Text: "x"},
		TextDelta{Sender: "A", Text: "y"},
		TurnEnd{},
	))
	if err != nil {
		t.Fatalf("Consume failed: %v", err)
	}
	if want := "A: Hello\nB: x\nA: y\n"; out.String() != want {
		t.Errorf("expected %q, got %q", want, out.String())
	}
}

func TestConsumeLabelReappearsAfterTerminal(t *testing.T) {
	agg, out := plainAggregator()
	for i := 0; i < 2; i++ {
		if _, err := agg.Consume(context.Background(), feed(
			TextDelta{Sender: "A", Text: "turn"},
			TurnEnd{Transcript: []llm.Message{llm.Assistant("A", "turn")}},
		)); err != nil {
			t.Fatalf("Consume failed: %v", err)
		}
	}
	if want := "A: turn\nA: turn\n"; out.String() != want {
		t.Errorf("expected %q, got %q", want, out.String())
	}
}

func TestConsumeSkipsUnnamedCalls(t *testing.T) {
	agg, out := plainAggregator()
	_, _ = agg.Consume(context.Background(), feed(
		ToolInvocation{Sender: "A", Calls: []llm.ToolCall{{Function: llm.FunctionCall{Arguments: "{}"}}}},
		TurnEnd{Transcript: []llm.Message{llm.User("x")}},
	))
	if out.Len() != 0 {
		t.Errorf("expected no output, got %q", out.String())
	}
}

func TestConsumeFailures(t *testing.T) {
	tests := []struct {
		name   string
		events []Event
		want   string
	}{
		{
			name:   "turn error",
			events: []Event{TextDelta{Sender: "A", Text: "partial"}, TurnError{Message: "completion request failed"}},
			want:   "A: partial\nError: completion request failed\n",
		},
		{
			name:   "turn error already prefixed",
			events: []Event{TurnError{Message: "Error: timeout"}},
			want:   "Error: timeout\n",
		},
		{
			name:   "closed without terminal",
			events: []Event{TextDelta{Sender: "A", Text: "x"}},
			want:   "A: x\nError: turn ended without a result\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			agg, out := plainAggregator()
			got, err := agg.Consume(context.Background(), feed(tt.events...))
			if err != nil {
				t.Fatalf("Consume failed: %v", err)
			}
			if !got.Failed() || len(got.Transcript) != 0 {
				t.Errorf("expected empty transcript, got %+v", got.Transcript)
			}
			if out.String() != tt.want {
				t.Errorf("expected %q, got %q", tt.want, out.String())
			}
		})
	}
}

func TestConsumeContextCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	agg, _ := plainAggregator()

	_, err := agg.Consume(ctx, make(chan Event))
	if err != context.Canceled {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestEmitterSingleTerminal(t *testing.T) {
	em, ch := Open(context.Background(), 8)

	if !em.Text("A", "hi") {
		t.Fatalf("expected Text to be accepted")
	}
	em.Text("A", "")
	em.Invoke("A", nil)
	em.End([]llm.Message{llm.User("x")})
	em.Fail("ignored")
	em.Close()
	if em.Text("A", "late") {
		t.Errorf("expected Text after terminal to be rejected")
	}

	var got []Event
	for ev := range ch {
		got = append(got, ev)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 events, got %d: %+v", len(got), got)
	}
	if _, ok := got[1].(TurnEnd); !ok {
		t.Errorf("expected TurnEnd last, got %T", got[1])
	}
}

func TestEmitterInvokeCopiesCalls(t *testing.T) {
	em, ch := Open(context.Background(), 2)
	calls := []llm.ToolCall{faucetCall()}
	em.Invoke("A", calls)
	calls[0].Function.Name = "mutated"
	em.Fail("x")

	ev := (<-ch).(ToolInvocation)
	if ev.Calls[0].Function.Name != "requestFaucet" {
		t.Errorf("expected emitted calls to be isolated from caller, got %q", ev.Calls[0].Function.Name)
	}
}

func TestEmitterCanceledConsumer(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	em, ch := Open(ctx, 0)
	cancel()

	if em.Text("A", "nobody listening") {
		t.Errorf("expected Text to fail after cancellation")
	}
	em.End(nil)
	if _, ok := <-ch; ok {
		t.Errorf("expected channel to be closed")
	}
}

func TestPrintTranscript(t *testing.T) {
	agg, out := plainAggregator()
	agg.PrintTranscript([]llm.Message{
		llm.User("ignored"),
		llm.Assistant("Based Agent", "Sending now."),
		{
			Role:   llm.RoleAssistant,
			Sender: "Based Agent",
			ToolCalls: []llm.ToolCall{
				{Function: llm.FunctionCall{Name: "transferAsset", Arguments: `{"assetId":"eth","amount":0.01}`}},
				{Function: llm.FunctionCall{Name: "requestFaucet", Arguments: ``}},
			},
		},
		llm.ToolResult("c1", "ignored"),
	})

	want := "Based Agent: Sending now.\n" +
		"Based Agent: \n" +
		"transferAsset(amount=0.01, assetId=\"eth\")\n" +
		"requestFaucet()\n"
	if out.String() != want {
		t.Errorf("expected %q, got %q", want, out.String())
	}
}
