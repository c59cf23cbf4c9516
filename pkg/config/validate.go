// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"fmt"
	"strings"

	"github.com/jllopis/basedagent/pkg/errors"
)

// Validate checks the settings the runtime cannot start without. The first
// problem found is returned as a CONFIGURATION_ERROR naming the key.
func (c *Config) Validate() error {
	switch c.LLM.Provider {
	case "openai":
		if strings.TrimSpace(c.LLM.APIKey) == "" {
			return invalid("llm.api_key", "is required for the openai provider (set OPENAI_API_KEY)")
		}
	case "ollama", "mock":
	default:
		return invalid("llm.provider", fmt.Sprintf("unknown provider %q", c.LLM.Provider))
	}
	if c.LLM.Temperature < 0 || c.LLM.Temperature > 2 {
		return invalid("llm.temperature", "must be between 0 and 2")
	}

	switch strings.ToLower(c.Wallet.Network) {
	case "mainnet", "testnet":
	default:
		return invalid("wallet.network", fmt.Sprintf("must be mainnet or testnet, got %q", c.Wallet.Network))
	}
	switch c.Wallet.Provider {
	case "evm":
		if strings.TrimSpace(c.Wallet.PrivateKey) == "" {
			return invalid("wallet.private_key", "is required for the evm wallet (set CDP_PRIVATE_KEY)")
		}
		if strings.TrimSpace(c.Wallet.RPCURL) == "" {
			return invalid("wallet.rpc_url", "is required for the evm wallet (set BASE_RPC_URL)")
		}
	case "simulated":
	default:
		return invalid("wallet.provider", fmt.Sprintf("unknown provider %q", c.Wallet.Provider))
	}

	switch c.Agent.Mode {
	case "", "chat", "auto", "two-agent", "mcp":
	default:
		return invalid("agent.mode", fmt.Sprintf("unknown mode %q", c.Agent.Mode))
	}
	if c.Agent.Interval < 0 {
		return invalid("agent.interval", "must not be negative")
	}
	if c.Guide.Timeout < 0 {
		return invalid("guide.timeout", "must not be negative")
	}

	switch c.Telemetry.Exporter {
	case "", "none", "stdout", "otlp":
	default:
		return invalid("telemetry.exporter", fmt.Sprintf("unknown exporter %q", c.Telemetry.Exporter))
	}
	for _, p := range c.Governance.Policies {
		switch strings.ToLower(p.Effect) {
		case "allow", "deny", "pending":
		default:
			return invalid("governance.policies", fmt.Sprintf("rule %q has unknown effect %q", p.ID, p.Effect))
		}
	}
	return nil
}

func invalid(key, msg string) error {
	return errors.New(errors.CodeConfiguration, key+" "+msg, nil).WithContext("key", key)
}
