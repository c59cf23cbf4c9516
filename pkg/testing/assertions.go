// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

package testing

import (
	"encoding/json"
	"fmt"
	"slices"
	"strings"
	"testing"

	"github.com/jllopis/basedagent/pkg/llm"
	"github.com/jllopis/basedagent/pkg/stream"
)

// Assertions provides assertion helpers for testing.
type Assertions struct {
	t      *testing.T
	failed bool
}

// NewAssertions creates a new assertions helper.
func NewAssertions(t *testing.T) *Assertions {
	return &Assertions{t: t}
}

// Failed returns true if any assertion has failed.
func (a *Assertions) Failed() bool {
	return a.failed
}

// AssertEqual asserts that two values are equal.
func (a *Assertions) AssertEqual(expected, actual any, msg string) {
	a.t.Helper()
	if expected != actual {
		a.t.Errorf("%s: expected %v, got %v", msg, expected, actual)
		a.failed = true
	}
}

// AssertNotEqual asserts that two values are not equal.
func (a *Assertions) AssertNotEqual(expected, actual any, msg string) {
	a.t.Helper()
	if expected == actual {
		a.t.Errorf("%s: expected not %v, got %v", msg, expected, actual)
		a.failed = true
	}
}

// AssertNil asserts that the value is nil.
func (a *Assertions) AssertNil(value any, msg string) {
	a.t.Helper()
	if value != nil {
		a.t.Errorf("%s: expected nil, got %v", msg, value)
		a.failed = true
	}
}

// AssertNotNil asserts that the value is not nil.
func (a *Assertions) AssertNotNil(value any, msg string) {
	a.t.Helper()
	if value == nil {
		a.t.Errorf("%s: expected non-nil value", msg)
		a.failed = true
	}
}

// AssertTrue asserts that the value is true.
func (a *Assertions) AssertTrue(value bool, msg string) {
	a.t.Helper()
	if !value {
		a.t.Errorf("%s: expected true", msg)
		a.failed = true
	}
}

// AssertFalse asserts that the value is false.
func (a *Assertions) AssertFalse(value bool, msg string) {
	a.t.Helper()
	if value {
		a.t.Errorf("%s: expected false", msg)
		a.failed = true
	}
}

// AssertContains asserts that the string contains the substring.
func (a *Assertions) AssertContains(s, substr, msg string) {
	a.t.Helper()
	if !strings.Contains(s, substr) {
		a.t.Errorf("%s: %q does not contain %q", msg, s, substr)
		a.failed = true
	}
}

// AssertNotContains asserts that the string does not contain the substring.
func (a *Assertions) AssertNotContains(s, substr, msg string) {
	a.t.Helper()
	if strings.Contains(s, substr) {
		a.t.Errorf("%s: %q should not contain %q", msg, s, substr)
		a.failed = true
	}
}

// AssertError asserts that the error is not nil.
func (a *Assertions) AssertError(err error, msg string) {
	a.t.Helper()
	if err == nil {
		a.t.Errorf("%s: expected error, got nil", msg)
		a.failed = true
	}
}

// AssertNoError asserts that the error is nil.
func (a *Assertions) AssertNoError(err error, msg string) {
	a.t.Helper()
	if err != nil {
		a.t.Errorf("%s: unexpected error: %v", msg, err)
		a.failed = true
	}
}

// AssertErrorContains asserts that the error message contains the substring.
func (a *Assertions) AssertErrorContains(err error, substr, msg string) {
	a.t.Helper()
	if err == nil {
		a.t.Errorf("%s: expected error containing %q, got nil", msg, substr)
		a.failed = true
		return
	}
	if !strings.Contains(err.Error(), substr) {
		a.t.Errorf("%s: error %q does not contain %q", msg, err.Error(), substr)
		a.failed = true
	}
}

// AssertLen asserts the length of a slice or map.
func (a *Assertions) AssertLen(value any, expected int, msg string) {
	a.t.Helper()
	var length int
	switch v := value.(type) {
	case string:
		length = len(v)
	case []any:
		length = len(v)
	case []string:
		length = len(v)
	case []llm.ToolCall:
		length = len(v)
	case []llm.Message:
		length = len(v)
	case map[string]any:
		length = len(v)
	default:
		a.t.Errorf("%s: cannot get length of %T", msg, value)
		a.failed = true
		return
	}
	if length != expected {
		a.t.Errorf("%s: expected length %d, got %d", msg, expected, length)
		a.failed = true
	}
}

// RequestAssertions provides assertion helpers for LLM requests.
type RequestAssertions struct {
	*Assertions
	req *llm.ChatRequest
}

// AssertRequest creates request assertions for the given request.
func (a *Assertions) AssertRequest(req *llm.ChatRequest) *RequestAssertions {
	a.t.Helper()
	if req == nil {
		a.t.Error("request is nil")
		a.failed = true
		return &RequestAssertions{Assertions: a, req: &llm.ChatRequest{}}
	}
	return &RequestAssertions{Assertions: a, req: req}
}

// HasModel asserts the request uses the given model.
func (r *RequestAssertions) HasModel(model string) *RequestAssertions {
	r.t.Helper()
	if r.req.Model != model {
		r.t.Errorf("expected model %q, got %q", model, r.req.Model)
		r.failed = true
	}
	return r
}

// HasMessageCount asserts the number of messages in the request.
func (r *RequestAssertions) HasMessageCount(count int) *RequestAssertions {
	r.t.Helper()
	if len(r.req.Messages) != count {
		r.t.Errorf("expected %d messages, got %d", count, len(r.req.Messages))
		r.failed = true
	}
	return r
}

// HasToolCount asserts the number of tools in the request.
func (r *RequestAssertions) HasToolCount(count int) *RequestAssertions {
	r.t.Helper()
	if len(r.req.Tools) != count {
		r.t.Errorf("expected %d tools, got %d", count, len(r.req.Tools))
		r.failed = true
	}
	return r
}

// HasSystemMessage asserts a system message exists with the given content.
func (r *RequestAssertions) HasSystemMessage(contains string) *RequestAssertions {
	r.t.Helper()
	for _, msg := range r.req.Messages {
		if msg.Role == llm.RoleSystem && strings.Contains(msg.Content, contains) {
			return r
		}
	}
	r.t.Errorf("no system message containing %q found", contains)
	r.failed = true
	return r
}

// HasUserMessage asserts a user message exists with the given content.
func (r *RequestAssertions) HasUserMessage(contains string) *RequestAssertions {
	r.t.Helper()
	for _, msg := range r.req.Messages {
		if msg.Role == llm.RoleUser && strings.Contains(msg.Content, contains) {
			return r
		}
	}
	r.t.Errorf("no user message containing %q found", contains)
	r.failed = true
	return r
}

// HasTool asserts a tool with the given name exists.
func (r *RequestAssertions) HasTool(name string) *RequestAssertions {
	r.t.Helper()
	for _, tool := range r.req.Tools {
		if tool.Function.Name == name {
			return r
		}
	}
	r.t.Errorf("tool %q not found in request", name)
	r.failed = true
	return r
}

// TurnAssertions provides assertions for a drained turn stream.
type TurnAssertions struct {
	*Assertions
	turn Turn
}

// AssertTurn creates assertions for the given turn.
func (a *Assertions) AssertTurn(turn Turn) *TurnAssertions {
	return &TurnAssertions{Assertions: a, turn: turn}
}

// WellFormed asserts exactly one terminal event, last, followed by close.
func (r *TurnAssertions) WellFormed() *TurnAssertions {
	r.t.Helper()
	if n := r.turn.Terminals(); n != 1 {
		r.t.Errorf("expected exactly one terminal event, got %d", n)
		r.failed = true
	}
	if len(r.turn.Events) > 0 {
		if _, ok := r.turn.Events[len(r.turn.Events)-1].(stream.Terminal); !ok {
			r.t.Error("last event is not terminal")
			r.failed = true
		}
	}
	if !r.turn.Closed {
		r.t.Error("turn stream was not closed")
		r.failed = true
	}
	return r
}

// HasKinds asserts the exact sequence of event kinds.
func (r *TurnAssertions) HasKinds(kinds ...EventKind) *TurnAssertions {
	r.t.Helper()
	got := r.turn.Kinds()
	if !slices.Equal(got, kinds) {
		r.t.Errorf("expected events %v, got %v", kinds, got)
		r.failed = true
	}
	return r
}

// Ended asserts the turn ended with a transcript of the given length.
func (r *TurnAssertions) Ended(transcriptLen int) *TurnAssertions {
	r.t.Helper()
	tr, ok := r.turn.Transcript()
	if !ok {
		r.t.Errorf("expected TurnEnd, got %v", r.turn.Kinds())
		r.failed = true
		return r
	}
	if len(tr) != transcriptLen {
		r.t.Errorf("expected transcript length %d, got %d", transcriptLen, len(tr))
		r.failed = true
	}
	return r
}

// FailedWith asserts the turn failed with a matching message.
func (r *TurnAssertions) FailedWith(m StringMatcher) *TurnAssertions {
	r.t.Helper()
	msg, ok := r.turn.ErrorMessage()
	if !ok {
		r.t.Errorf("expected TurnError, got %v", r.turn.Kinds())
		r.failed = true
		return r
	}
	if !m.Match(msg) {
		r.t.Errorf("turn error %q does not match: %s", msg, m.Description())
		r.failed = true
	}
	return r
}

// TextMatches asserts the concatenated text output matches.
func (r *TurnAssertions) TextMatches(m StringMatcher) *TurnAssertions {
	r.t.Helper()
	if text := r.turn.Text(); !m.Match(text) {
		r.t.Errorf("turn text %q does not match: %s", text, m.Description())
		r.failed = true
	}
	return r
}

// Invoked asserts a tool call with the given name was requested.
func (r *TurnAssertions) Invoked(name string) *TurnAssertions {
	r.t.Helper()
	for _, c := range r.turn.Calls() {
		if c.Function.Name == name {
			return r
		}
	}
	r.t.Errorf("tool call %q not invoked", name)
	r.failed = true
	return r
}

// ToolResult asserts the tool message answering callID matches.
func (r *TurnAssertions) ToolResult(callID string, m StringMatcher) *TurnAssertions {
	r.t.Helper()
	tr, _ := r.turn.Transcript()
	for _, msg := range tr {
		if msg.Role == llm.RoleTool && msg.ToolCallID == callID {
			if !m.Match(msg.Content) {
				r.t.Errorf("tool result %q does not match: %s", msg.Content, m.Description())
				r.failed = true
			}
			return r
		}
	}
	r.t.Errorf("no tool result for call %q", callID)
	r.failed = true
	return r
}

// Quick assertion functions for common patterns

// RequireNoError fails the test immediately if err is not nil.
func RequireNoError(t *testing.T, err error, msg string) {
	t.Helper()
	if err != nil {
		t.Fatalf("%s: %v", msg, err)
	}
}

// RequireEqual fails the test immediately if values are not equal.
func RequireEqual(t *testing.T, expected, actual any, msg string) {
	t.Helper()
	if expected != actual {
		t.Fatalf("%s: expected %v, got %v", msg, expected, actual)
	}
}

// RequireNotNil fails the test immediately if value is nil.
func RequireNotNil(t *testing.T, value any, msg string) {
	t.Helper()
	if value == nil {
		t.Fatalf("%s: expected non-nil value", msg)
	}
}

// AssertToolCallArgs extracts and validates tool call arguments.
func AssertToolCallArgs(t *testing.T, tc llm.ToolCall, expectedName string) map[string]any {
	t.Helper()
	if tc.Function.Name != expectedName {
		t.Errorf("expected tool %q, got %q", expectedName, tc.Function.Name)
	}

	var args map[string]any
	if tc.Function.Arguments != "" {
		if err := json.Unmarshal([]byte(tc.Function.Arguments), &args); err != nil {
			t.Errorf("failed to parse tool arguments: %v", err)
			return nil
		}
	}
	return args
}

// FormatToolCalls formats tool calls for error messages.
func FormatToolCalls(calls []llm.ToolCall) string {
	if len(calls) == 0 {
		return "(none)"
	}
	names := make([]string, len(calls))
	for i, tc := range calls {
		names[i] = tc.Function.Name
	}
	return fmt.Sprintf("[%s]", strings.Join(names, ", "))
}
