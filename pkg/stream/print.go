// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

package stream

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/jllopis/basedagent/pkg/llm"
)

// PrintTranscript writes the assistant messages of a transcript, each
// followed by its tool calls rendered as name(key=value, ...).
func (a *Aggregator) PrintTranscript(messages []llm.Message) {
	for _, m := range messages {
		if m.Role != llm.RoleAssistant {
			continue
		}
		a.write(a.style(m.Sender+":", labelColor) + " ")
		if m.Content != "" {
			a.write(m.Content + "\n")
		}
		if len(m.ToolCalls) > 1 {
			a.write("\n")
		}
		for _, tc := range m.ToolCalls {
			a.write(a.style(tc.Function.Name, toolColor) + "(" + formatArguments(tc.Function.Arguments) + ")\n")
		}
		if m.Content == "" && len(m.ToolCalls) == 0 {
			a.write("\n")
		}
	}
}

// formatArguments renders JSON object text as sorted key=value pairs.
// Text that is not a JSON object is returned as is.
func formatArguments(raw string) string {
	if strings.TrimSpace(raw) == "" {
		return ""
	}
	var args map[string]json.RawMessage
	if err := json.Unmarshal([]byte(raw), &args); err != nil {
		return raw
	}
	keys := make([]string, 0, len(args))
	for k := range args {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%s", k, compact(args[k])))
	}
	return strings.Join(parts, ", ")
}

func compact(v json.RawMessage) string {
	var buf bytes.Buffer
	if err := json.Compact(&buf, v); err != nil {
		return string(v)
	}
	return buf.String()
}
