// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

package governance

import (
	"context"
	"encoding/json"
	"log/slog"

	"go.opentelemetry.io/otel/trace"

	"github.com/jllopis/basedagent/pkg/errors"
	"github.com/jllopis/basedagent/pkg/telemetry"
	"github.com/jllopis/basedagent/pkg/tools"
)

// Guard evaluates every capability invocation against a policy engine.
// Denied invocations fail with CodePolicyDenied without running; pending
// ones are sent to the approval hook, and denied when there is none.
type Guard struct {
	engine   PolicyEngine
	approval ApprovalHook
	action   ActionType
	logger   *slog.Logger
}

// GuardOption configures a Guard.
type GuardOption func(*Guard)

// WithApprovalHook sets the hook consulted for pending decisions.
func WithApprovalHook(h ApprovalHook) GuardOption {
	return func(g *Guard) {
		g.approval = h
	}
}

// WithActionType sets the action type evaluated, ActionTool by default.
func WithActionType(t ActionType) GuardOption {
	return func(g *Guard) {
		if t != "" {
			g.action = t
		}
	}
}

// WithGuardLogger sets the logger for policy decisions.
func WithGuardLogger(l *slog.Logger) GuardOption {
	return func(g *Guard) {
		if l != nil {
			g.logger = l
		}
	}
}

// NewGuard creates a guard. A nil engine allows everything.
func NewGuard(engine PolicyEngine, opts ...GuardOption) *Guard {
	if engine == nil {
		engine = NewRuleSet(nil)
	}
	g := &Guard{
		engine: engine,
		action: ActionTool,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Wrap returns copies of caps whose invocations are checked by the guard.
func (g *Guard) Wrap(caps []tools.Capability) []tools.Capability {
	out := make([]tools.Capability, len(caps))
	for i, c := range caps {
		out[i] = c.Wrap(g.middleware)
	}
	return out
}

func (g *Guard) middleware(d tools.Descriptor, next tools.Invoker) tools.Invoker {
	return func(ctx context.Context, args tools.Args) (string, error) {
		action := Action{Type: g.action, Name: d.Name, Metadata: map[string]string{}}
		if raw, err := json.Marshal(args); err == nil {
			action.Metadata["arguments"] = string(raw)
		}

		decision := g.Decide(ctx, action)
		trace.SpanFromContext(ctx).SetAttributes(telemetry.PolicyAttributes(true, decision.IsAllowed(), decision.Reason)...)
		if !decision.IsAllowed() {
			g.logger.WarnContext(ctx, "governance.denied",
				"capability", d.Name,
				"action", string(g.action),
				"rule", decision.RuleID,
				"reason", decision.Reason,
			)
			msg := d.Name + " denied by policy"
			if decision.Reason != "" {
				msg += ": " + decision.Reason
			}
			return "", errors.New(errors.CodePolicyDenied, msg, nil).
				WithContext("capability", d.Name).
				WithContext("rule_id", decision.RuleID)
		}
		return next(ctx, args)
	}
}

// Decide evaluates action and resolves pending decisions through the
// approval hook.
func (g *Guard) Decide(ctx context.Context, action Action) Decision {
	decision := g.engine.Evaluate(ctx, action)
	if !decision.IsPending() {
		return decision
	}
	if g.approval == nil {
		return Decision{Status: DecisionStatusDeny, RuleID: decision.RuleID, Reason: "approval required but no approver configured"}
	}
	if action.Metadata == nil {
		action.Metadata = map[string]string{}
	}
	action.Metadata["policy_rule_id"] = decision.RuleID
	action.Metadata["policy_reason"] = decision.Reason

	resolved := g.approval.Request(ctx, action)
	if resolved.RuleID == "" {
		resolved.RuleID = decision.RuleID
	}
	g.logger.InfoContext(ctx, "governance.approval",
		"capability", action.Name,
		"rule", resolved.RuleID,
		"allowed", resolved.IsAllowed(),
		"reason", resolved.Reason,
	)
	return resolved
}
