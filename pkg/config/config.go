// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

// Package config loads the runtime configuration from defaults, the
// environment, YAML files and command-line overrides.
package config

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// EnvPrefix prefixes environment overrides: BASEDAGENT_LLM_MODEL -> llm.model.
const EnvPrefix = "BASEDAGENT_"

type Config struct {
	Log        LogConfig        `koanf:"log"`
	Telemetry  TelemetryConfig  `koanf:"telemetry"`
	LLM        LLMConfig        `koanf:"llm"`
	Guide      GuideConfig      `koanf:"guide"`
	Agent      AgentConfig      `koanf:"agent"`
	Wallet     WalletConfig     `koanf:"wallet"`
	Image      ImageConfig      `koanf:"image"`
	MCP        MCPConfig        `koanf:"mcp"`
	Governance GovernanceConfig `koanf:"governance"`
}

type LogConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"` // json, text
}

type TelemetryConfig struct {
	Exporter           string `koanf:"exporter"` // none, stdout, otlp
	OTLPEndpoint       string `koanf:"otlp_endpoint"`
	OTLPInsecure       bool   `koanf:"otlp_insecure"`
	OTLPTimeoutSeconds int    `koanf:"otlp_timeout_seconds"`
}

type LLMConfig struct {
	Provider    string  `koanf:"provider"` // openai, ollama, mock
	Model       string  `koanf:"model"`
	BaseURL     string  `koanf:"base_url"`
	APIKey      string  `koanf:"api_key"`
	Streaming   bool    `koanf:"streaming"`
	Temperature float64 `koanf:"temperature"`
}

// GuideConfig configures the model that plays the user in two-agent mode.
// It shares the llm provider and credentials.
type GuideConfig struct {
	Model         string        `koanf:"model"`
	SystemPrompt  string        `koanf:"system_prompt"`
	Opening       string        `koanf:"opening"`
	Label         string        `koanf:"label"`
	RetryAttempts int           `koanf:"retry_attempts"`
	Timeout       time.Duration `koanf:"timeout"`
}

type AgentConfig struct {
	Name         string             `koanf:"name"`
	Instructions string             `koanf:"instructions"`
	Mode         string             `koanf:"mode"` // chat, auto, two-agent, mcp; empty asks
	Thought      string             `koanf:"thought"`
	Interval     time.Duration      `koanf:"interval"`
	Capabilities CapabilitiesConfig `koanf:"capabilities"`
}

// CapabilitiesConfig filters the capabilities offered to the model.
// Entries are names or glob patterns.
type CapabilitiesConfig struct {
	Allow []string `koanf:"allow"`
	Deny  []string `koanf:"deny"`
}

type WalletConfig struct {
	Provider      string `koanf:"provider"` // evm, simulated
	Network       string `koanf:"network"`  // mainnet, testnet
	APIKeyName    string `koanf:"api_key_name"`
	PrivateKey    string `koanf:"private_key"`
	RPCURL        string `koanf:"rpc_url"`
	FaucetURL     string `koanf:"faucet_url"`
	AssetsFile    string `koanf:"assets_file"`
	TokenArtifact string `koanf:"token_artifact"`
	NFTArtifact   string `koanf:"nft_artifact"`
}

// IsMainnet reports whether the production network is selected.
func (w WalletConfig) IsMainnet() bool {
	return strings.EqualFold(w.Network, "mainnet")
}

type ImageConfig struct {
	Enabled bool   `koanf:"enabled"`
	Model   string `koanf:"model"`
	Size    string `koanf:"size"`
	Quality string `koanf:"quality"`
}

type MCPConfig struct {
	Name    string `koanf:"name"`
	Version string `koanf:"version"`
}

type GovernanceConfig struct {
	Policies               []PolicyRuleConfig `koanf:"policies"`
	ApprovalTimeoutSeconds int                `koanf:"approval_timeout_seconds"` // 0 waits for an answer
}

type PolicyRuleConfig struct {
	ID     string `koanf:"id"`
	Effect string `koanf:"effect"` // allow, deny, pending
	Type   string `koanf:"type"`
	Name   string `koanf:"name"`
	Reason string `koanf:"reason"`
}

const (
	defaultInstructions = "You are a helpful agent that can interact onchain on the Base Layer 2 using the Coinbase Developer Platform SDK. " +
		"You can create tokens, transfer assets, generate art, deploy NFTs, mint NFTs, register basenames, and swap assets (on mainnet only). " +
		"If you ever need to know your address, it is {address}. " +
		"If someone asks you to do something you can't do, you can say so, and encourage them to implement it themselves using the CDP SDK + Agentkit, " +
		"recommend they go to docs.cdp.coinbase.com for more informaton. You can also offer to help them implement it by writing the function and explaining how to register it as a new capability."
)

func setDefaults(k *koanf.Koanf) {
	k.Set("log.level", "info")
	k.Set("log.format", "text")

	k.Set("telemetry.exporter", "none")
	k.Set("telemetry.otlp_endpoint", "localhost:4317")
	k.Set("telemetry.otlp_insecure", true)
	k.Set("telemetry.otlp_timeout_seconds", 10)

	k.Set("llm.provider", "openai")
	k.Set("llm.model", "gpt-4-1106-preview")
	k.Set("llm.streaming", false)
	k.Set("llm.temperature", 0.7)

	k.Set("guide.model", "gpt-4-1106-preview")
	k.Set("guide.label", "OpenAI Guide")
	k.Set("guide.retry_attempts", 3)
	k.Set("guide.timeout", "2m")

	k.Set("agent.name", "Based Agent")
	k.Set("agent.instructions", defaultInstructions)
	k.Set("agent.interval", "10s")

	k.Set("wallet.provider", "evm")
	k.Set("wallet.network", "testnet")

	k.Set("image.enabled", true)
	k.Set("image.model", "dall-e-3")
	k.Set("image.size", "1024x1024")
	k.Set("image.quality", "standard")

	k.Set("mcp.name", "basedagent")
	k.Set("mcp.version", "0.1.0")

	k.Set("governance.approval_timeout_seconds", 0)
}

// legacyEnv maps the environment variables of the original tool.
var legacyEnv = map[string]string{
	"OPENAI_API_KEY":   "llm.api_key",
	"CDP_API_KEY_NAME": "wallet.api_key_name",
	"CDP_PRIVATE_KEY":  "wallet.private_key",
	"BASE_RPC_URL":     "wallet.rpc_url",
	"ENVIRONMENT":      "wallet.network",
}

func loadLegacyEnv(k *koanf.Koanf) error {
	return k.Load(env.ProviderWithValue("", ".", func(key, value string) (string, interface{}) {
		target, ok := legacyEnv[key]
		if !ok || value == "" {
			return "", nil
		}
		if key == "ENVIRONMENT" {
			if strings.EqualFold(value, "production") {
				return target, "mainnet"
			}
			return target, "testnet"
		}
		return target, value
	}), nil)
}

// envKey maps BASEDAGENT_WALLET_PRIVATE_KEY to wallet.private_key: the
// first segment names the section, the rest is the snake_case key.
func envKey(s string) string {
	s = strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
	return strings.Replace(s, "_", ".", 1)
}

func loadEnv(k *koanf.Koanf) error {
	return k.Load(env.Provider(EnvPrefix, ".", envKey), nil)
}

func loadFile(k *koanf.Koanf, path string) error {
	if path == "" {
		return nil
	}
	return k.Load(file.Provider(path), yaml.Parser())
}

func unmarshal(k *koanf.Koanf) (*Config, error) {
	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Load reads the configuration: defaults, then the original tool's
// environment variables, then the YAML file at path (optional), then
// BASEDAGENT_ environment overrides.
func Load(path string) (*Config, error) {
	return LoadWithProfile(path, "")
}

// LoadWithProfile is Load with a profile file layered over the base file.
// For config.yaml and profile dev the profile file is config.dev.yaml; a
// missing profile file is ignored.
func LoadWithProfile(path, profile string) (*Config, error) {
	k, err := load(path, profile)
	if err != nil {
		return nil, err
	}
	return unmarshal(k)
}

func load(path, profile string) (*koanf.Koanf, error) {
	k := koanf.New(".")
	setDefaults(k)
	if err := loadLegacyEnv(k); err != nil {
		return nil, err
	}
	if err := loadFile(k, path); err != nil {
		return nil, err
	}
	if err := loadFile(k, profileConfigPath(path, profile)); err != nil {
		return nil, err
	}
	if err := loadEnv(k); err != nil {
		return nil, err
	}
	return k, nil
}

func profileConfigPath(base, profile string) string {
	base = strings.TrimSpace(base)
	profile = strings.TrimSpace(profile)
	if base == "" || profile == "" {
		return ""
	}
	ext := filepath.Ext(base)
	candidate := strings.TrimSuffix(base, ext) + "." + profile + ext
	if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
		return candidate
	}
	return ""
}
