// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

package stream

import (
	"context"
	"io"
	"strings"

	"github.com/jllopis/basedagent/pkg/llm"
	"github.com/muesli/termenv"
)

// ResolvedTurn is the Aggregator's result for one turn. An empty transcript
// means the turn failed and there is nothing to append.
type ResolvedTurn struct {
	Transcript []llm.Message
}

// Failed reports whether the turn produced no transcript.
func (r ResolvedTurn) Failed() bool {
	return len(r.Transcript) == 0
}

const (
	labelColor = "#3b82f6"
	toolColor  = "#c026d3"
	errorColor = "#ef4444"
)

// Aggregator renders a turn stream progressively and resolves it.
// It is not safe for concurrent use; turns are consumed one at a time.
type Aggregator struct {
	w       io.Writer
	profile *termenv.Profile
	out     *termenv.Output

	label   string // sender whose label opened the current text run
	midLine bool   // the last write did not end a line
	wrote   bool   // text was written since the last terminal event
}

// AggregatorOption configures an Aggregator.
type AggregatorOption func(*Aggregator)

// WithProfile forces a colour profile. termenv.Ascii disables styling.
func WithProfile(p termenv.Profile) AggregatorOption {
	return func(a *Aggregator) {
		a.profile = &p
	}
}

// NewAggregator returns an Aggregator writing to w. Colour support is
// detected from w and the environment.
func NewAggregator(w io.Writer, opts ...AggregatorOption) *Aggregator {
	a := &Aggregator{w: w}
	for _, opt := range opts {
		opt(a)
	}
	if a.profile != nil {
		a.out = termenv.NewOutput(w, termenv.WithProfile(*a.profile))
	} else {
		a.out = termenv.NewOutput(w)
	}
	return a
}

// Consume reads events until the terminal event and returns the resolved
// turn. Only context cancellation produces an error.
func (a *Aggregator) Consume(ctx context.Context, events <-chan Event) (ResolvedTurn, error) {
	for {
		select {
		case <-ctx.Done():
			a.closeRun()
			return ResolvedTurn{}, ctx.Err()
		case ev, ok := <-events:
			if !ok {
				a.fail("turn ended without a result")
				return ResolvedTurn{}, nil
			}
			switch ev := ev.(type) {
			case TextDelta:
				a.text(ev)
			case ToolInvocation:
				a.trace(ev)
			case TurnEnd:
				a.closeRun()
				return ResolvedTurn{Transcript: ev.Transcript}, nil
			case TurnError:
				a.fail(ev.Message)
				return ResolvedTurn{}, nil
			}
		}
	}
}

func (a *Aggregator) text(ev TextDelta) {
	if ev.Text == "" {
		return
	}
	if a.label != ev.Sender || !a.wrote {
		a.breakLine()
		if ev.Sender != "" {
			a.write(a.style(ev.Sender+":", labelColor) + " ")
		}
		a.label = ev.Sender
	}
	a.write(ev.Text)
	a.midLine = !strings.HasSuffix(ev.Text, "\n")
	a.wrote = true
}

func (a *Aggregator) trace(ev ToolInvocation) {
	for _, call := range ev.Calls {
		if call.Function.Name == "" {
			continue
		}
		a.breakLine()
		a.write(a.style(ev.Sender+":", labelColor) + " " + a.style(call.Function.Name+"()", toolColor) + "\n")
	}
}

func (a *Aggregator) fail(message string) {
	a.breakLine()
	if !strings.HasPrefix(message, "Error:") {
		message = "Error: " + message
	}
	a.write(a.style(message, errorColor) + "\n")
	a.reset()
}

// closeRun ends the current text run at a terminal event.
func (a *Aggregator) closeRun() {
	if a.wrote {
		a.breakLine()
	}
	a.reset()
}

func (a *Aggregator) breakLine() {
	if a.midLine {
		a.write("\n")
		a.midLine = false
	}
}

func (a *Aggregator) reset() {
	a.label = ""
	a.wrote = false
	a.midLine = false
}

func (a *Aggregator) write(s string) {
	_, _ = io.WriteString(a.w, s)
}

func (a *Aggregator) style(s, color string) string {
	return a.out.String(s).Foreground(a.out.Color(color)).String()
}
