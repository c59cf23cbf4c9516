// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

package governance

import (
	"context"
	"path"
	"strings"

	"github.com/jllopis/basedagent/pkg/config"
	"github.com/jllopis/basedagent/pkg/tools"
)

// ToolFilter decides which capabilities are offered to the model, based on
// allow and deny lists of names or glob patterns and an optional policy engine.
type ToolFilter struct {
	allowlist    map[string]bool
	denylist     map[string]bool
	policyEngine PolicyEngine
}

// ToolFilterOption configures a ToolFilter.
type ToolFilterOption func(*ToolFilter)

// NewToolFilter creates a new ToolFilter with the given options.
func NewToolFilter(opts ...ToolFilterOption) *ToolFilter {
	tf := &ToolFilter{
		allowlist: make(map[string]bool),
		denylist:  make(map[string]bool),
	}
	for _, opt := range opts {
		opt(tf)
	}
	return tf
}

// WithAllowlist sets the allowlist of permitted tool names/patterns.
func WithAllowlist(tools []string) ToolFilterOption {
	return func(tf *ToolFilter) {
		for _, tool := range tools {
			tool = strings.TrimSpace(tool)
			if tool != "" {
				tf.allowlist[tool] = true
			}
		}
	}
}

// WithDenylist sets the denylist of forbidden tool names/patterns.
func WithDenylist(tools []string) ToolFilterOption {
	return func(tf *ToolFilter) {
		for _, tool := range tools {
			tool = strings.TrimSpace(tool)
			if tool != "" {
				tf.denylist[tool] = true
			}
		}
	}
}

// WithPolicyEngine attaches a policy engine for additional evaluation.
func WithPolicyEngine(engine PolicyEngine) ToolFilterOption {
	return func(tf *ToolFilter) {
		tf.policyEngine = engine
	}
}

// IsAllowed checks if a tool name is permitted by the filter.
// Evaluation order:
// 1. If denylist contains tool → deny
// 2. If allowlist is non-empty and doesn't contain tool → deny
// 3. If policy engine exists, evaluate → respect decision
// 4. Otherwise → allow
func (tf *ToolFilter) IsAllowed(ctx context.Context, toolName string) Decision {
	// Check denylist first (explicit denies take precedence)
	if tf.matchesList(toolName, tf.denylist) {
		return Decision{
			Allowed: false,
			Status:  DecisionStatusDeny,
			Reason:  "tool is in denylist",
		}
	}

	// Check allowlist (if non-empty, tool must be in it)
	if len(tf.allowlist) > 0 && !tf.matchesList(toolName, tf.allowlist) {
		return Decision{
			Allowed: false,
			Status:  DecisionStatusDeny,
			Reason:  "tool is not in allowlist",
		}
	}

	// Check policy engine if available
	if tf.policyEngine != nil {
		action := Action{
			Type: ActionTool,
			Name: toolName,
		}
		return tf.policyEngine.Evaluate(ctx, action)
	}

	// Default: allow
	return Decision{
		Allowed: true,
		Status:  DecisionStatusAllow,
	}
}

// matchesList checks if toolName matches any pattern in the list.
// Supports glob patterns (e.g., "get*", "*Nft").
func (tf *ToolFilter) matchesList(toolName string, list map[string]bool) bool {
	if list[toolName] {
		return true
	}

	// Check glob patterns
	for pattern := range list {
		if ok, err := path.Match(pattern, toolName); err == nil && ok {
			return true
		}
	}

	return false
}

// ToolFilterFromConfig builds a filter from the configured capability lists
// and policy engine.
func ToolFilterFromConfig(cfg config.CapabilitiesConfig, engine PolicyEngine) *ToolFilter {
	return NewToolFilter(
		WithAllowlist(cfg.Allow),
		WithDenylist(cfg.Deny),
		WithPolicyEngine(engine),
	)
}

// FilterCapabilities drops the capabilities the filter denies, keeping the
// order of the rest. Capabilities whose decision is pending are kept so the
// model can still request them; a Guard asks for approval at call time.
func (tf *ToolFilter) FilterCapabilities(ctx context.Context, caps []tools.Capability) []tools.Capability {
	out := make([]tools.Capability, 0, len(caps))
	for _, c := range caps {
		if tf.IsAllowed(ctx, c.Name()).IsDenied() {
			continue
		}
		out = append(out, c)
	}
	return out
}
