// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

// Command basedagent runs the Based Agent: an onchain agent for Base that
// talks to a model, calls wallet capabilities and renders the conversation
// in the terminal. It can also publish its capabilities as an MCP server.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/jllopis/basedagent/pkg/config"
	"github.com/jllopis/basedagent/pkg/loop"
	"github.com/jllopis/basedagent/pkg/telemetry"
)

var version = "dev"

type globalFlags struct {
	ConfigArgs []string
	ConfigPath string
	Profile    string
	Mode       string
	MCPAddr    string
	Transcript bool
	Help       bool
	Version    bool
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	global, err := parseGlobalFlags(os.Args[1:])
	if err != nil {
		fatal(NewUsageError(err))
	}
	switch {
	case global.Help:
		printUsage(os.Stdout)
		return
	case global.Version:
		fmt.Printf("basedagent %s\n", version)
		return
	}

	if err := run(ctx, global, os.Stdin, os.Stdout, os.Stderr); err != nil {
		fatal(err)
	}
}

func run(ctx context.Context, global globalFlags, stdin io.Reader, stdout, stderr io.Writer) error {
	cfg, err := config.LoadWithCLI(global.ConfigArgs)
	if err != nil {
		return NewConfigError(err, global.ConfigPath)
	}
	if global.Mode != "" {
		cfg.Agent.Mode = global.Mode
	}
	if err := cfg.Validate(); err != nil {
		return NewConfigError(err, global.ConfigPath)
	}

	logger := telemetry.ConfigureSlog(stderr, cfg.Log.Level, cfg.Log.Format)
	shutdown, err := telemetry.InitWithConfig("basedagent", version, telemetry.Config{
		Exporter:           cfg.Telemetry.Exporter,
		OTLPEndpoint:       cfg.Telemetry.OTLPEndpoint,
		OTLPInsecure:       cfg.Telemetry.OTLPInsecure,
		OTLPTimeoutSeconds: cfg.Telemetry.OTLPTimeoutSeconds,
	})
	if err != nil {
		return fmt.Errorf("init telemetry: %w", err)
	}
	defer func() {
		if err := shutdown(context.Background()); err != nil {
			logger.Warn("telemetry.shutdown.failed", "error", err)
		}
	}()

	if global.ConfigPath != "" {
		watcher, _, err := config.WatchConfig(ctx, global.ConfigPath,
			config.WithWatchProfile(global.Profile),
			config.WithWatchLogger(logger),
		)
		if err != nil {
			logger.Warn("config.watch.failed", "path", global.ConfigPath, "error", err)
		} else {
			watcher.OnChange(func(c *config.Config) { telemetry.SetLogLevel(c.Log.Level) })
			defer watcher.Stop()
		}
	}

	operator := loop.NewConsoleOperator(stdin, stdout)
	app, err := newApp(ctx, cfg, appIO{operator: operator, mcpIn: operator.Reader(), out: stdout, logger: logger})
	if err != nil {
		return err
	}
	defer app.Close()

	return app.Run(ctx, sessionOptions{MCPAddr: global.MCPAddr, Transcript: global.Transcript})
}

func parseGlobalFlags(args []string) (globalFlags, error) {
	var flags globalFlags
	value := func(i *int, name string) (string, error) {
		arg := args[*i]
		if v, ok := strings.CutPrefix(arg, name+"="); ok {
			return v, nil
		}
		if *i+1 >= len(args) {
			return "", fmt.Errorf("missing value for %s", name)
		}
		*i++
		return args[*i], nil
	}
	flagName := func(arg string) string {
		name, _, _ := strings.Cut(arg, "=")
		return name
	}

	for i := 0; i < len(args); i++ {
		arg := args[i]
		if !strings.HasPrefix(arg, "-") {
			if flags.Mode != "" {
				return flags, fmt.Errorf("unexpected argument %q", arg)
			}
			flags.Mode = arg
			continue
		}
		switch name := flagName(arg); name {
		case "-h", "--help":
			flags.Help = true
			return flags, nil
		case "--version":
			flags.Version = true
		case "--transcript":
			flags.Transcript = true
		case "--config", "--profile", "--env", "--set":
			v, err := value(&i, name)
			if err != nil {
				return flags, err
			}
			flags.ConfigArgs = append(flags.ConfigArgs, name, v)
			switch name {
			case "--config":
				flags.ConfigPath = v
			case "--profile", "--env":
				flags.Profile = v
			}
		case "--mode":
			v, err := value(&i, name)
			if err != nil {
				return flags, err
			}
			flags.Mode = v
		case "--mcp-http":
			v, err := value(&i, name)
			if err != nil {
				return flags, err
			}
			flags.MCPAddr = v
		default:
			return flags, fmt.Errorf("unknown flag %q", arg)
		}
	}

	if flags.Mode != "" {
		mode, ok := loop.ParseMode(flags.Mode)
		if !ok {
			return flags, fmt.Errorf("unknown mode %q", flags.Mode)
		}
		flags.Mode = string(mode)
	}
	return flags, nil
}

func printUsage(w io.Writer) {
	fmt.Fprint(w, `Usage: basedagent [flags] [mode]

Modes:
  chat        Interactive chat mode
  auto        Autonomous action mode
  two-agent   Two-agent conversation mode
  mcp         Serve the capabilities over MCP (stdio, or HTTP with --mcp-http)

Without a mode the agent.mode setting is used, and when that is empty the
mode is asked for interactively.

Flags:
  --config <path>     YAML configuration file
  --profile <name>    Layer <config>.<name>.yaml over the configuration (alias --env)
  --set key=value     Override a configuration key (repeatable)
  --mode <mode>       Same as the positional mode
  --mcp-http <addr>   Serve MCP over streamable HTTP on addr instead of stdio
  --transcript        Print the assistant messages when the session ends
  --version           Print the version
  -h, --help          Show this help

Environment:
  OPENAI_API_KEY, CDP_API_KEY_NAME, CDP_PRIVATE_KEY, BASE_RPC_URL and
  ENVIRONMENT (production or development) are read first; any key can be
  overridden with BASEDAGENT_<SECTION>_<KEY>, e.g. BASEDAGENT_LLM_MODEL.
`)
}

func fatal(err error) {
	PrintError(os.Stderr, err)
	os.Exit(1)
}
