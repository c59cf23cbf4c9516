// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

package governance

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/jllopis/basedagent/pkg/loop"
)

// StaticApprovalHook answers every capability approval with the same decision.
type StaticApprovalHook struct {
	Decision Decision
}

// Request returns the configured decision.
func (h StaticApprovalHook) Request(_ context.Context, _ Action) Decision {
	return normalizeApprovalDecision(h.Decision, "approval decision not set")
}

// ConsoleApprovalHook asks the operator at the console whether a pending
// capability call may run. Answers are read through a loop.Operator, which
// owns the input; a timed-out question leaves the next line to the operator.
type ConsoleApprovalHook struct {
	operator        loop.Operator
	in              io.Reader
	once            sync.Once
	out             io.Writer
	prompt          string
	timeout         time.Duration
	defaultDecision Decision
}

// ConsoleApprovalOption configures the console approval hook.
type ConsoleApprovalOption func(*ConsoleApprovalHook)

// NewConsoleApprovalHook creates a console-based approval hook.
func NewConsoleApprovalHook(opts ...ConsoleApprovalOption) *ConsoleApprovalHook {
	h := &ConsoleApprovalHook{
		in:     os.Stdin,
		out:    os.Stdout,
		prompt: "Approve? [y/N]: ",
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// WithApprovalOperator asks through op. Use it when the conversation reads
// the same console, so a single reader owns the input.
func WithApprovalOperator(op loop.Operator) ConsoleApprovalOption {
	return func(h *ConsoleApprovalHook) {
		if op != nil {
			h.operator = op
		}
	}
}

// WithApprovalInput reads answers from r, which must not be read by anyone else.
func WithApprovalInput(r io.Reader) ConsoleApprovalOption {
	return func(h *ConsoleApprovalHook) {
		if r != nil {
			h.in = r
		}
	}
}

// WithApprovalOutput sets the output writer for the console hook.
func WithApprovalOutput(w io.Writer) ConsoleApprovalOption {
	return func(h *ConsoleApprovalHook) {
		if w != nil {
			h.out = w
		}
	}
}

// WithApprovalPrompt sets the prompt string.
func WithApprovalPrompt(prompt string) ConsoleApprovalOption {
	return func(h *ConsoleApprovalHook) {
		if strings.TrimSpace(prompt) != "" {
			h.prompt = prompt
		}
	}
}

// WithApprovalTimeout bounds the wait for an answer. On expiry the default
// decision applies.
func WithApprovalTimeout(timeout time.Duration) ConsoleApprovalOption {
	return func(h *ConsoleApprovalHook) {
		if timeout > 0 {
			h.timeout = timeout
		}
	}
}

// WithApprovalDefault sets the default decision when input is invalid or missing.
func WithApprovalDefault(decision Decision) ConsoleApprovalOption {
	return func(h *ConsoleApprovalHook) {
		h.defaultDecision = decision
	}
}

// Request describes the capability call and returns the operator decision.
func (h *ConsoleApprovalHook) Request(ctx context.Context, action Action) Decision {
	if h == nil {
		return normalizeApprovalDecision(Decision{}, "approval input not available")
	}
	h.once.Do(func() {
		if h.operator == nil && h.in != nil {
			h.operator = loop.NewConsoleOperator(h.in, h.out)
		}
	})
	if h.operator == nil {
		return normalizeApprovalDecision(h.defaultDecision, "approval input not available")
	}

	describeCall(h.out, action)

	if h.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.timeout)
		defer cancel()
	}

	line, err := h.operator.Prompt(ctx, h.prompt)
	switch {
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return normalizeApprovalDecision(h.defaultDecision, "approval cancelled")
	case err != nil && !errors.Is(err, io.EOF):
		return normalizeApprovalDecision(h.defaultDecision, "approval input not available")
	}
	if answer := strings.ToLower(strings.TrimSpace(line)); strings.HasPrefix(answer, "y") {
		return allowDecision("approved by operator")
	}
	return denyDecision("rejected by operator")
}

// describeCall prints the capability, the rule that held it and its
// arguments so the operator can answer.
func describeCall(w io.Writer, action Action) {
	md := action.Metadata
	_, _ = fmt.Fprintf(w, "\nApproval required for %s %q\n", action.Type, action.Name)
	if rule := strings.TrimSpace(md["policy_rule_id"]); rule != "" {
		_, _ = fmt.Fprintf(w, "Rule: %s\n", rule)
	}
	if args := strings.TrimSpace(md["arguments"]); args != "" && args != "{}" {
		_, _ = fmt.Fprintf(w, "Arguments: %s\n", args)
	}
	reason := strings.TrimSpace(md["policy_reason"])
	if reason == "" {
		reason = "approval required"
	}
	_, _ = fmt.Fprintf(w, "Reason: %s\n", reason)
}

// normalizeApprovalDecision fills in Status for decisions built by hand. An
// empty decision denies with fallbackReason.
func normalizeApprovalDecision(decision Decision, fallbackReason string) Decision {
	if decision.Status == "" && decision.Reason == "" && !decision.Allowed {
		return denyDecision(fallbackReason)
	}
	if decision.Status == "" {
		if decision.Allowed {
			decision.Status = DecisionStatusAllow
		} else {
			decision.Status = DecisionStatusDeny
		}
	}
	return decision
}
