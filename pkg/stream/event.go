// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

// Package stream defines the per-turn event protocol between the dispatcher
// and its consumers, and the Aggregator that renders and resolves it.
//
// A turn is a channel of Events carrying zero or more TextDelta and
// ToolInvocation values followed by exactly one Terminal event (TurnEnd or
// TurnError), after which the channel is closed.
package stream

import (
	"context"
	"sync"

	"github.com/jllopis/basedagent/pkg/llm"
)

// Event is one unit of the turn stream.
type Event interface {
	isEvent()
}

// Terminal is implemented by the events that end a turn.
type Terminal interface {
	Event
	terminal()
}

// TextDelta is a fragment of assistant output.
type TextDelta struct {
	Sender string
	Text   string
}

// ToolInvocation carries the tool calls the model requested in this turn,
// with their raw argument text.
type ToolInvocation struct {
	Sender string
	Calls  []llm.ToolCall
}

// TurnEnd carries the authoritative transcript after the turn: the input
// transcript followed by the new assistant and tool messages.
type TurnEnd struct {
	Transcript []llm.Message
}

// TurnError reports that the turn failed and produced no new messages.
type TurnError struct {
	Message string
}

func (TextDelta) isEvent()      {}
func (ToolInvocation) isEvent() {}
func (TurnEnd) isEvent()        {}
func (TurnError) isEvent()      {}

func (TurnEnd) terminal()   {}
func (TurnError) terminal() {}

// Emitter is the producing side of a turn stream. It is used by a single
// goroutine and guarantees that at most one terminal event is sent.
type Emitter struct {
	ctx  context.Context
	ch   chan Event
	once sync.Once
	done bool
}

// Open creates a turn stream. The returned channel is closed by the Emitter
// after its terminal event.
func Open(ctx context.Context, buffer int) (*Emitter, <-chan Event) {
	if buffer < 0 {
		buffer = 0
	}
	ch := make(chan Event, buffer)
	return &Emitter{ctx: ctx, ch: ch}, ch
}

// Text emits a TextDelta. Empty fragments are dropped. It reports false once
// the stream is finished or the consumer has gone away.
func (e *Emitter) Text(sender, text string) bool {
	if text == "" {
		return !e.done
	}
	return e.send(TextDelta{Sender: sender, Text: text})
}

// Invoke emits a ToolInvocation for a batch of calls.
func (e *Emitter) Invoke(sender string, calls []llm.ToolCall) bool {
	if len(calls) == 0 {
		return !e.done
	}
	batch := make([]llm.ToolCall, len(calls))
	copy(batch, calls)
	return e.send(ToolInvocation{Sender: sender, Calls: batch})
}

// End emits TurnEnd and closes the stream.
func (e *Emitter) End(transcript []llm.Message) {
	e.finish(TurnEnd{Transcript: transcript})
}

// Fail emits TurnError and closes the stream.
func (e *Emitter) Fail(message string) {
	e.finish(TurnError{Message: message})
}

// Close ends the stream without a terminal event if none was sent.
// Consumers treat that as a failed turn.
func (e *Emitter) Close() {
	e.once.Do(func() {
		e.done = true
		close(e.ch)
	})
}

func (e *Emitter) send(ev Event) bool {
	if e.done {
		return false
	}
	select {
	case e.ch <- ev:
		return true
	case <-e.ctx.Done():
		return false
	}
}

func (e *Emitter) finish(ev Terminal) {
	e.once.Do(func() {
		e.done = true
		select {
		case e.ch <- ev:
		case <-e.ctx.Done():
		}
		close(e.ch)
	})
}
