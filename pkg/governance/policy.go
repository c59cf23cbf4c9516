// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

// Package governance decides which capabilities the agent may offer and
// run, and asks an operator when a rule requires approval.
package governance

import (
	"context"
	"path"
	"strings"

	"github.com/jllopis/basedagent/pkg/config"
)

// ActionType says who is asking to run a capability.
type ActionType string

const (
	// ActionTool is a capability invoked by the model during a turn.
	ActionTool ActionType = "tool"
	// ActionMCP is a capability invoked by an MCP client.
	ActionMCP ActionType = "mcp"
)

// Action is one capability call, or one capability offer, under review.
// Metadata carries the call arguments and the matching rule once known.
type Action struct {
	Type     ActionType
	Name     string
	Metadata map[string]string
}

// DecisionStatus is the verdict on a capability call.
type DecisionStatus string

const (
	DecisionStatusAllow   DecisionStatus = "allow"
	DecisionStatusDeny    DecisionStatus = "deny"
	DecisionStatusPending DecisionStatus = "pending"
)

// Decision is the verdict plus the rule that produced it. Allowed mirrors
// Status for callers that only set one of them.
type Decision struct {
	Allowed bool
	Reason  string
	RuleID  string
	Status  DecisionStatus
}

func allowDecision(reason string) Decision {
	return Decision{Allowed: true, Status: DecisionStatusAllow, Reason: reason}
}

func denyDecision(reason string) Decision {
	return Decision{Status: DecisionStatusDeny, Reason: reason}
}

// IsAllowed reports whether the capability may run now.
func (d Decision) IsAllowed() bool {
	if d.Status == "" {
		return d.Allowed
	}
	return d.Status == DecisionStatusAllow
}

// IsPending reports whether an operator must answer first.
func (d Decision) IsPending() bool {
	return d.Status == DecisionStatusPending
}

// IsDenied reports whether the capability must not run.
func (d Decision) IsDenied() bool {
	if d.Status == "" {
		return !d.Allowed
	}
	return d.Status == DecisionStatusDeny
}

// PolicyEngine rules on capability calls.
type PolicyEngine interface {
	Evaluate(ctx context.Context, action Action) Decision
}

// ApprovalHook answers pending capability calls.
type ApprovalHook interface {
	Request(ctx context.Context, action Action) Decision
}

// Rule matches capability calls by caller and name. An empty Type or Name
// matches everything; Name may be a glob such as "transfer*".
type Rule struct {
	ID     string
	Effect string // allow, deny or pending
	Type   ActionType
	Name   string
	Reason string
}

func (r Rule) matches(a Action) bool {
	if r.Type != "" && r.Type != a.Type {
		return false
	}
	if r.Name == "" || r.Name == a.Name {
		return true
	}
	ok, err := path.Match(r.Name, a.Name)
	return err == nil && ok
}

func (r Rule) decision() Decision {
	d := Decision{Reason: r.Reason, RuleID: r.ID, Status: DecisionStatusAllow}
	switch strings.ToLower(r.Effect) {
	case "deny":
		d.Status = DecisionStatusDeny
	case "pending":
		d.Status = DecisionStatusPending
	}
	d.Allowed = d.Status == DecisionStatusAllow
	return d
}

// RuleSet is a first-match list of rules.
type RuleSet struct {
	Rules []Rule
	// DefaultDecision applies when no rule matches.
	DefaultDecision Decision
}

// NewRuleSet copies rules into a set that allows unmatched capabilities.
func NewRuleSet(rules []Rule) *RuleSet {
	return &RuleSet{
		Rules:           append([]Rule(nil), rules...),
		DefaultDecision: allowDecision(""),
	}
}

// Evaluate returns the decision of the first matching rule.
func (r *RuleSet) Evaluate(_ context.Context, action Action) Decision {
	for _, rule := range r.Rules {
		if rule.matches(action) {
			return rule.decision()
		}
	}
	return r.DefaultDecision
}

// RuleSetFromConfig builds a rule set from governance.policies. Rules
// without an id are reported as "rule".
func RuleSetFromConfig(cfg config.GovernanceConfig) *RuleSet {
	rules := make([]Rule, 0, len(cfg.Policies))
	for _, p := range cfg.Policies {
		id := strings.TrimSpace(p.ID)
		if id == "" {
			id = "rule"
		}
		rules = append(rules, Rule{
			ID:     id,
			Effect: p.Effect,
			Type:   ActionType(strings.ToLower(p.Type)),
			Name:   p.Name,
			Reason: p.Reason,
		})
	}
	return NewRuleSet(rules)
}
