// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

// Package tools turns capabilities into named, schema-described callables
// that a model can request by name.
package tools

import "github.com/jllopis/basedagent/pkg/llm"

// ParamType is the JSON Schema type of a parameter.
type ParamType string

const (
	TypeString  ParamType = "string"
	TypeNumber  ParamType = "number"
	TypeInteger ParamType = "integer"
	TypeBoolean ParamType = "boolean"
)

// Param describes one capability parameter.
type Param struct {
	Name        string
	Type        ParamType
	Required    bool
	Description string
}

// Descriptor is the static description of a capability. Params are kept in
// declaration order, which is also the order arguments are validated in.
type Descriptor struct {
	Name        string
	Description string
	Params      []Param
}

// Schema returns the JSON Schema object for the descriptor's parameters.
func (d Descriptor) Schema() map[string]any {
	props := make(map[string]any, len(d.Params))
	required := make([]string, 0, len(d.Params))
	for _, p := range d.Params {
		prop := map[string]any{"type": string(p.Type)}
		if p.Description != "" {
			prop["description"] = p.Description
		}
		props[p.Name] = prop
		if p.Required {
			required = append(required, p.Name)
		}
	}
	return map[string]any{
		"type":       "object",
		"properties": props,
		"required":   required,
	}
}

// Tool converts the descriptor to the model-facing tool definition.
func (d Descriptor) Tool() llm.Tool {
	return llm.Tool{
		Type: llm.ToolTypeFunction,
		Function: llm.FunctionDef{
			Name:        d.Name,
			Description: d.Description,
			Parameters:  d.Schema(),
		},
	}
}
