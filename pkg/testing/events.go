// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

package testing

import (
	"context"
	"regexp"
	"strings"

	"github.com/jllopis/basedagent/pkg/llm"
	"github.com/jllopis/basedagent/pkg/stream"
)

// EventKind names a stream event for ordering assertions.
type EventKind string

const (
	KindText   EventKind = "text"
	KindInvoke EventKind = "invoke"
	KindEnd    EventKind = "end"
	KindError  EventKind = "error"
)

// Turn is everything observed on one turn stream.
type Turn struct {
	Events []stream.Event
	// Closed reports the channel was closed after the last event.
	Closed bool
}

// Drain reads a turn stream until it is closed or ctx is done.
func Drain(ctx context.Context, events <-chan stream.Event) Turn {
	var t Turn
	for {
		select {
		case <-ctx.Done():
			return t
		case ev, ok := <-events:
			if !ok {
				t.Closed = true
				return t
			}
			t.Events = append(t.Events, ev)
		}
	}
}

// Kinds returns the kind of every event in order.
func (t Turn) Kinds() []EventKind {
	out := make([]EventKind, 0, len(t.Events))
	for _, ev := range t.Events {
		switch ev.(type) {
		case stream.TextDelta:
			out = append(out, KindText)
		case stream.ToolInvocation:
			out = append(out, KindInvoke)
		case stream.TurnEnd:
			out = append(out, KindEnd)
		case stream.TurnError:
			out = append(out, KindError)
		}
	}
	return out
}

// Text concatenates every TextDelta.
func (t Turn) Text() string {
	var b strings.Builder
	for _, ev := range t.Events {
		if td, ok := ev.(stream.TextDelta); ok {
			b.WriteString(td.Text)
		}
	}
	return b.String()
}

// Calls returns every invoked tool call in order.
func (t Turn) Calls() []llm.ToolCall {
	var out []llm.ToolCall
	for _, ev := range t.Events {
		if inv, ok := ev.(stream.ToolInvocation); ok {
			out = append(out, inv.Calls...)
		}
	}
	return out
}

// Transcript returns the TurnEnd transcript, if the turn ended successfully.
func (t Turn) Transcript() ([]llm.Message, bool) {
	if len(t.Events) == 0 {
		return nil, false
	}
	end, ok := t.Events[len(t.Events)-1].(stream.TurnEnd)
	return end.Transcript, ok
}

// ErrorMessage returns the TurnError message, if the turn failed.
func (t Turn) ErrorMessage() (string, bool) {
	if len(t.Events) == 0 {
		return "", false
	}
	te, ok := t.Events[len(t.Events)-1].(stream.TurnError)
	return te.Message, ok
}

// Terminals counts terminal events.
func (t Turn) Terminals() int {
	n := 0
	for _, ev := range t.Events {
		if _, ok := ev.(stream.Terminal); ok {
			n++
		}
	}
	return n
}

// StringMatcher matches strings in assertions.
type StringMatcher interface {
	Match(s string) bool
	Description() string
}

// Contains returns a matcher that checks if a string contains substr.
func Contains(substr string) StringMatcher {
	return funcMatcher{func(s string) bool { return strings.Contains(s, substr) }, "contains " + quote(substr)}
}

// Equals returns a matcher that checks for exact equality.
func Equals(expected string) StringMatcher {
	return funcMatcher{func(s string) bool { return s == expected }, "equals " + quote(expected)}
}

// HasPrefix returns a matcher that checks for a prefix.
func HasPrefix(prefix string) StringMatcher {
	return funcMatcher{func(s string) bool { return strings.HasPrefix(s, prefix) }, "has prefix " + quote(prefix)}
}

// Regex returns a matcher for a regular expression. An invalid pattern
// never matches.
func Regex(pattern string) StringMatcher {
	re, err := regexp.Compile(pattern)
	return funcMatcher{func(s string) bool { return err == nil && re.MatchString(s) }, "matches " + quote(pattern)}
}

type funcMatcher struct {
	match func(string) bool
	desc  string
}

func (m funcMatcher) Match(s string) bool  { return m.match(s) }
func (m funcMatcher) Description() string { return m.desc }

func quote(s string) string { return `"` + s + `"` }
