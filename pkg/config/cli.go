// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"fmt"
	"strings"
)

// LoadWithCLI loads the configuration selected by command-line arguments.
// It understands --config <path>, --profile <name> (alias --env) and any
// number of --set key=value overrides, applied last. Flags may also be
// written as --flag=value. Unknown arguments are ignored.
func LoadWithCLI(args []string) (*Config, error) {
	opts, sets, err := parseCLIOverrides(args)
	if err != nil {
		return nil, err
	}
	k, err := load(opts.path, opts.profile)
	if err != nil {
		return nil, err
	}
	for _, kv := range sets {
		if err := k.Set(kv[0], kv[1]); err != nil {
			return nil, fmt.Errorf("set %s: %w", kv[0], err)
		}
	}
	return unmarshal(k)
}

type cliOptions struct {
	path    string
	profile string
}

func parseCLIOverrides(args []string) (cliOptions, [][2]string, error) {
	var (
		opts cliOptions
		sets [][2]string
	)
	for i := 0; i < len(args); i++ {
		name, value, inline := strings.Cut(args[i], "=")
		switch name {
		case "--config", "-config", "--profile", "-profile", "--env", "-env", "--set", "-set":
		default:
			continue
		}
		if !inline {
			if i+1 >= len(args) {
				return opts, nil, fmt.Errorf("missing value for %s", name)
			}
			i++
			value = args[i]
		}
		switch strings.TrimLeft(name, "-") {
		case "config":
			opts.path = value
		case "profile", "env":
			opts.profile = value
		case "set":
			key, val, ok := strings.Cut(value, "=")
			key = strings.TrimSpace(key)
			if !ok || key == "" {
				return opts, nil, fmt.Errorf("invalid --set value %q, want key=value", value)
			}
			sets = append(sets, [2]string{key, val})
		}
	}
	return opts, sets, nil
}
