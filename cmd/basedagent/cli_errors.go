// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	stderrors "errors"
	"fmt"
	"io"

	"github.com/jllopis/basedagent/pkg/errors"
)

// CLIError wraps an AgentError with a hint for the person at the terminal.
type CLIError struct {
	*errors.AgentError
	Hint string
}

// NewCLIError creates a new CLI error.
func NewCLIError(ae *errors.AgentError, hint string) *CLIError {
	return &CLIError{AgentError: ae, Hint: hint}
}

// Error returns the formatted error message with hints.
func (e *CLIError) Error() string {
	if e.AgentError == nil {
		return "unknown error"
	}
	msg := e.AgentError.Error()
	if e.Hint != "" {
		msg += "\n  Hint: " + e.Hint
	}
	return msg
}

// Unwrap returns the wrapped AgentError.
func (e *CLIError) Unwrap() error {
	if e.AgentError == nil {
		return nil
	}
	return e.AgentError
}

// NewUsageError reports a malformed command line.
func NewUsageError(err error) *CLIError {
	return NewCLIError(errors.New(errors.CodeInvalidInput, err.Error(), nil), "run basedagent --help")
}

// NewConfigError wraps a configuration failure, hinting at the setting to fix.
func NewConfigError(err error, configPath string) *CLIError {
	ae := errors.AsAgentError(err)
	if ae.Code == errors.CodeInternal {
		ae = errors.New(errors.CodeConfiguration, "failed to load configuration", err)
	}
	if configPath != "" {
		ae.WithContext("config_path", configPath)
	}

	hint := "check the configuration file and the BASEDAGENT_* environment"
	if key, ok := ae.Context["key"].(string); ok {
		switch key {
		case "llm.api_key":
			hint = "export OPENAI_API_KEY, or run with --set llm.provider=mock"
		case "wallet.private_key", "wallet.rpc_url":
			hint = "export CDP_PRIVATE_KEY and BASE_RPC_URL, or run with --set wallet.provider=simulated"
		default:
			hint = "fix " + key + " in the configuration or with --set " + key + "=..."
		}
	}
	return NewCLIError(ae, hint)
}

// PrintError writes err to w, with the error code and hint when known.
func PrintError(w io.Writer, err error) {
	var ce *CLIError
	if stderrors.As(err, &ce) && ce.AgentError != nil {
		fmt.Fprintf(w, "Error [%s]: %s\n", ce.Code, ce.Message)
		if ce.Err != nil {
			fmt.Fprintf(w, "  Cause: %v\n", ce.Err)
		}
		if ce.Hint != "" {
			fmt.Fprintf(w, "  Hint: %s\n", ce.Hint)
		}
		return
	}
	if ae := errors.AsAgentError(err); ae != nil && ae.Code != errors.CodeInternal {
		fmt.Fprintf(w, "Error [%s]: %s\n", ae.Code, ae.Message)
		return
	}
	fmt.Fprintf(w, "Error: %v\n", err)
}
