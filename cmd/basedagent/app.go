// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/crypto"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/jllopis/basedagent/pkg/agent"
	"github.com/jllopis/basedagent/pkg/capability"
	"github.com/jllopis/basedagent/pkg/config"
	"github.com/jllopis/basedagent/pkg/errors"
	"github.com/jllopis/basedagent/pkg/governance"
	"github.com/jllopis/basedagent/pkg/llm"
	"github.com/jllopis/basedagent/pkg/loop"
	"github.com/jllopis/basedagent/pkg/mcp"
	"github.com/jllopis/basedagent/pkg/resilience"
	"github.com/jllopis/basedagent/pkg/stream"
	"github.com/jllopis/basedagent/pkg/telemetry"
	"github.com/jllopis/basedagent/pkg/tools"
	"github.com/jllopis/basedagent/pkg/wallet"
	"github.com/jllopis/basedagent/pkg/wallet/evm"
	"github.com/jllopis/basedagent/providers/openai"
)

// mockReply answers every turn when llm.provider is mock.
const mockReply = "This is the offline Based Agent. Set llm.provider to openai or ollama to talk to a model."

// appIO groups the terminal the application talks to.
type appIO struct {
	// operator answers mode choices, conversation prompts and approvals.
	operator loop.Operator
	// mcpIn is the stream the MCP stdio server reads.
	mcpIn  io.Reader
	out    io.Writer
	logger *slog.Logger
}

type app struct {
	cfg         *config.Config
	io          appIO
	logger      *slog.Logger
	wallet      wallet.Provider
	closeWallet func()
	facade      *capability.Facade
	caps        []tools.Capability
	rules       *governance.RuleSet
	registry    *tools.Registry
	agent       *agent.Agent
	driver      *loop.Driver
}

func newApp(ctx context.Context, cfg *config.Config, aio appIO) (*app, error) {
	if aio.logger == nil {
		aio.logger = slog.Default()
	}
	if aio.out == nil {
		aio.out = io.Discard
	}
	a := &app{cfg: cfg, io: aio, logger: aio.logger, closeWallet: func() {}}

	w, closeWallet, err := buildWallet(ctx, cfg.Wallet, a.logger)
	if err != nil {
		return nil, err
	}
	a.wallet, a.closeWallet = w, closeWallet
	a.logger.Info("wallet.ready", "network", string(w.Network()), "address", w.Address())

	chat, art, err := buildProviders(cfg)
	if err != nil {
		a.Close()
		return nil, err
	}

	facadeOpts := []capability.Option{capability.WithWallet(w), capability.WithLogger(a.logger)}
	if art != nil {
		facadeOpts = append(facadeOpts, capability.WithArtGenerator(art))
	}
	a.facade = capability.New(facadeOpts...)

	a.rules = governance.RuleSetFromConfig(cfg.Governance)
	filter := governance.ToolFilterFromConfig(cfg.Agent.Capabilities, a.rules)
	a.caps = filter.FilterCapabilities(ctx, capability.Capabilities(a.facade))

	approvalOpts := []governance.ConsoleApprovalOption{governance.WithApprovalOutput(aio.out)}
	if aio.operator != nil {
		approvalOpts = append(approvalOpts, governance.WithApprovalOperator(aio.operator))
	}
	if secs := cfg.Governance.ApprovalTimeoutSeconds; secs > 0 {
		approvalOpts = append(approvalOpts, governance.WithApprovalTimeout(time.Duration(secs)*time.Second))
	}
	guard := governance.NewGuard(a.rules,
		governance.WithApprovalHook(governance.NewConsoleApprovalHook(approvalOpts...)),
		governance.WithGuardLogger(a.logger),
	)
	a.registry, err = tools.NewRegistry(guard.Wrap(a.caps)...)
	if err != nil {
		a.Close()
		return nil, err
	}

	errMetrics := agent.InitErrorMetrics()
	metrics, err := telemetry.NewAgentMetrics()
	if err != nil {
		a.logger.Warn("telemetry.metrics.unavailable", "error", err)
	}
	instructions := strings.ReplaceAll(cfg.Agent.Instructions, "{address}", a.facade.Address())
	a.agent, err = agent.New(cfg.Agent.Name, withRetry(chat, "llm", 3, errMetrics),
		agent.WithInstructions(instructions),
		agent.WithModel(cfg.LLM.Model),
		agent.WithTemperature(cfg.LLM.Temperature),
		agent.WithStreaming(cfg.LLM.Streaming),
		agent.WithMetrics(metrics),
		agent.WithLogger(a.logger),
	)
	if err != nil {
		a.Close()
		return nil, err
	}

	a.driver = loop.New(a.agent, a.registry,
		loop.WithOutput(aio.out),
		loop.WithOperator(aio.operator),
		loop.WithThought(cfg.Agent.Thought),
		loop.WithInterval(cfg.Agent.Interval),
		loop.WithGuide(withRetry(chat, "guide", cfg.Guide.RetryAttempts, errMetrics), cfg.Guide.Model),
		loop.WithGuideTimeout(cfg.Guide.Timeout),
		loop.WithGuidePrompt(cfg.Guide.SystemPrompt, cfg.Guide.Opening),
		loop.WithGuideLabel(cfg.Guide.Label),
		loop.WithLogger(a.logger),
	)
	return a, nil
}

// sessionOptions are the per-run switches taken from the command line.
type sessionOptions struct {
	// MCPAddr serves MCP over streamable HTTP instead of stdio.
	MCPAddr string
	// Transcript prints the assistant messages of the session when it ends.
	Transcript bool
}

// Run starts the configured mode, asking for one when none is set. An
// interrupted or exhausted session is not an error.
func (a *app) Run(ctx context.Context, opts sessionOptions) error {
	mode, ok := loop.ParseMode(a.cfg.Agent.Mode)
	if !ok {
		chosen, err := loop.ChooseMode(ctx, a.io.operator, a.io.out)
		if err != nil {
			return quiet(err)
		}
		mode = chosen
	}
	attrs := []any{"mode", string(mode), "capabilities", a.registry.Len()}
	if op, ok := a.io.operator.(interface{ Interactive() bool }); ok {
		attrs = append(attrs, "interactive", op.Interactive())
	}
	a.logger.Info("basedagent.start", attrs...)

	ctx, span := otel.Tracer("basedagent").Start(ctx, "Agent.Session",
		trace.WithAttributes(telemetry.WalletAttributes(string(a.wallet.Network()), a.wallet.Address())...),
	)
	defer span.End()

	var (
		transcript []llm.Message
		err        error
	)
	switch mode {
	case loop.ModeChat:
		transcript, err = a.driver.RunInteractive(ctx)
	case loop.ModeAuto:
		transcript, err = a.driver.RunAutonomous(ctx)
	case loop.ModeTwoAgent:
		transcript, err = a.driver.RunGuided(ctx)
	case loop.ModeMCP:
		err = a.serveMCP(ctx, opts.MCPAddr)
	}
	if opts.Transcript && len(transcript) > 0 {
		fmt.Fprintln(a.io.out, "\nTranscript:")
		stream.NewAggregator(a.io.out).PrintTranscript(transcript)
	}
	return quiet(err)
}

// serveMCP publishes the capabilities to MCP clients. Rules are evaluated as
// mcp actions and pending decisions are denied, since no operator can answer.
func (a *app) serveMCP(ctx context.Context, addr string) error {
	guard := governance.NewGuard(a.rules,
		governance.WithActionType(governance.ActionMCP),
		governance.WithGuardLogger(a.logger),
	)
	reg, err := tools.NewRegistry(guard.Wrap(a.caps)...)
	if err != nil {
		return err
	}
	srv := mcp.NewServer(a.cfg.MCP.Name, a.cfg.MCP.Version, reg, mcp.WithLogger(a.logger))
	if addr != "" {
		return srv.ServeStreamableHTTP(ctx, addr)
	}
	if a.io.mcpIn == nil {
		return errors.New(errors.CodeConfiguration, "mcp over stdio needs an input stream", nil)
	}
	return srv.ServeStdio(ctx, a.io.mcpIn, a.io.out)
}

// Close releases the wallet connection.
func (a *app) Close() {
	if a.closeWallet != nil {
		a.closeWallet()
	}
}

func quiet(err error) error {
	if err == nil || stderrors.Is(err, context.Canceled) || stderrors.Is(err, io.EOF) {
		return nil
	}
	return err
}

// withRetry wraps p with retries and a breaker named after the component.
// Recoveries and breaker transitions are reported to metrics, which may be nil.
func withRetry(p llm.Provider, name string, attempts int, metrics *telemetry.ErrorMetrics) *llm.RetryingProvider {
	rc := resilience.DefaultRetryConfig().WithOnRecovery(func(_ int, lastErr error) {
		metrics.RecordRecovery(context.Background(), errors.AsAgentError(lastErr).Code)
	})
	if attempts > 0 {
		rc = rc.WithMaxAttempts(attempts)
	}
	return llm.WithRetry(p, rc, resilience.NewBreaker(resilience.BreakerConfig{
		Name:             name,
		FailureThreshold: 5,
		SuccessThreshold: 1,
		Cooldown:         30 * time.Second,
		OnStateChange: func(name string, _, to resilience.BreakerState) {
			metrics.RecordCircuitBreakerState(context.Background(), name, to.Level())
		},
	}))
}

// buildProviders returns the chat backend and, when the backend can draw,
// the art generator.
func buildProviders(cfg *config.Config) (llm.Provider, capability.ArtGenerator, error) {
	switch cfg.LLM.Provider {
	case "openai":
		p := openai.New(
			openai.WithAPIKey(cfg.LLM.APIKey),
			openai.WithBaseURL(cfg.LLM.BaseURL),
			openai.WithModel(cfg.LLM.Model),
			openai.WithMaxRetries(0),
			openai.WithImageConfig(openai.ImageConfig{
				Model:   cfg.Image.Model,
				Size:    cfg.Image.Size,
				Quality: cfg.Image.Quality,
			}),
		)
		if !cfg.Image.Enabled {
			return p, nil, nil
		}
		return p, p, nil
	case "ollama":
		return llm.NewOllama(cfg.LLM.BaseURL, cfg.LLM.Model), nil, nil
	case "mock":
		return llm.NewMockProvider(mockReply), nil, nil
	default:
		return nil, nil, errors.New(errors.CodeConfiguration, fmt.Sprintf("unknown llm provider %q", cfg.LLM.Provider), nil)
	}
}

// buildWallet connects the configured wallet. The returned function releases
// its connection.
func buildWallet(ctx context.Context, cfg config.WalletConfig, logger *slog.Logger) (wallet.Provider, func(), error) {
	network := wallet.BaseSepolia
	if cfg.IsMainnet() {
		network = wallet.BaseMainnet
	}
	assets, err := wallet.LoadAssetRegistry(cfg.AssetsFile)
	if err != nil {
		return nil, nil, errors.New(errors.CodeConfiguration, "load asset registry", err)
	}

	switch cfg.Provider {
	case "simulated":
		opts := []wallet.SimulatedOption{wallet.WithSimulatedAssets(assets)}
		if key := strings.TrimPrefix(strings.TrimSpace(cfg.PrivateKey), "0x"); key != "" {
			pk, err := crypto.HexToECDSA(key)
			if err != nil {
				return nil, nil, errors.New(errors.CodeConfiguration, "invalid wallet private key", err)
			}
			opts = append(opts, wallet.WithSimulatedKey(pk))
		}
		return wallet.NewSimulated(network, opts...), func() {}, nil
	case "evm":
		opts := []evm.Option{evm.WithAssets(assets), evm.WithLogger(logger)}
		if cfg.FaucetURL != "" {
			opts = append(opts, evm.WithFaucet(cfg.FaucetURL, nil))
		}
		if cfg.TokenArtifact != "" {
			art, err := evm.LoadArtifact(cfg.TokenArtifact)
			if err != nil {
				return nil, nil, err
			}
			opts = append(opts, evm.WithTokenArtifact(art))
		}
		if cfg.NFTArtifact != "" {
			art, err := evm.LoadArtifact(cfg.NFTArtifact)
			if err != nil {
				return nil, nil, err
			}
			opts = append(opts, evm.WithNFTArtifact(art))
		}
		w, err := evm.Dial(ctx, cfg.RPCURL, network, cfg.PrivateKey, opts...)
		if err != nil {
			return nil, nil, err
		}
		return w, w.Close, nil
	default:
		return nil, nil, errors.New(errors.CodeConfiguration, fmt.Sprintf("unknown wallet provider %q", cfg.Provider), nil)
	}
}
