// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

package governance

import (
	"context"
	"slices"
	"testing"

	"github.com/jllopis/basedagent/pkg/config"
	"github.com/jllopis/basedagent/pkg/tools"
)

func TestToolFilter_EmptyFilter(t *testing.T) {
	filter := NewToolFilter()

	decision := filter.IsAllowed(context.Background(), "transferAsset")
	if !decision.IsAllowed() {
		t.Error("empty filter should allow all capabilities")
	}
}

func TestToolFilter_Lists(t *testing.T) {
	tests := []struct {
		name    string
		filter  *ToolFilter
		tool    string
		allowed bool
	}{
		{"allowlisted", NewToolFilter(WithAllowlist([]string{"getBalance", "requestFaucet"})), "getBalance", true},
		{"not allowlisted", NewToolFilter(WithAllowlist([]string{"getBalance", "requestFaucet"})), "transferAsset", false},
		{"denylisted", NewToolFilter(WithDenylist([]string{"swapAssets"})), "swapAssets", false},
		{"not denylisted", NewToolFilter(WithDenylist([]string{"swapAssets"})), "getBalance", true},
		{"deny takes precedence", NewToolFilter(WithAllowlist([]string{"createToken", "transferAsset"}), WithDenylist([]string{"transferAsset"})), "transferAsset", false},
		{"prefix glob", NewToolFilter(WithAllowlist([]string{"get*", "*Nft"})), "getBalance", true},
		{"suffix glob", NewToolFilter(WithAllowlist([]string{"get*", "*Nft"})), "mintNft", true},
		{"glob miss", NewToolFilter(WithAllowlist([]string{"get*", "*Nft"})), "swapAssets", false},
		{"blank entries ignored", NewToolFilter(WithAllowlist([]string{" ", ""})), "swapAssets", true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			decision := tc.filter.IsAllowed(context.Background(), tc.tool)
			if decision.IsAllowed() != tc.allowed {
				t.Errorf("%q: expected allowed=%v, got %v (%s)", tc.tool, tc.allowed, decision.IsAllowed(), decision.Reason)
			}
		})
	}
}

func TestToolFilter_WithPolicyEngine(t *testing.T) {
	filter := NewToolFilter(WithPolicyEngine(NewRuleSet([]Rule{
		{ID: "deny-swaps", Effect: "deny", Type: ActionTool, Name: "swapAssets"},
	})))

	if !filter.IsAllowed(context.Background(), "getBalance").IsAllowed() {
		t.Error("getBalance should be allowed by the default decision")
	}
	if filter.IsAllowed(context.Background(), "swapAssets").IsAllowed() {
		t.Error("swapAssets should be denied by policy engine")
	}
}

func noop(name string) tools.Capability {
	return tools.Define(tools.Descriptor{Name: name}, tools.DecodeNone,
		func(context.Context, tools.NoParams) string { return name + " ran" })
}

func TestToolFilter_FilterCapabilities(t *testing.T) {
	filter := ToolFilterFromConfig(
		config.CapabilitiesConfig{Deny: []string{"deploy*"}},
		NewRuleSet([]Rule{
			{ID: "swaps", Effect: "pending", Type: ActionTool, Name: "swapAssets"},
			{ID: "faucet", Effect: "deny", Type: ActionTool, Name: "requestFaucet"},
		}),
	)
	caps := []tools.Capability{noop("getBalance"), noop("deployNft"), noop("swapAssets"), noop("requestFaucet"), noop("mintNft")}

	var names []string
	for _, c := range filter.FilterCapabilities(context.Background(), caps) {
		names = append(names, c.Name())
	}
	want := []string{"getBalance", "swapAssets", "mintNft"}
	if !slices.Equal(names, want) {
		t.Errorf("FilterCapabilities = %v, want %v", names, want)
	}
}
