// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

package tools

import (
	"context"
	"fmt"

	"github.com/jllopis/basedagent/pkg/errors"
	"github.com/jllopis/basedagent/pkg/llm"
)

// Registry is an ordered, immutable set of capabilities keyed by name.
type Registry struct {
	caps  []Capability
	index map[string]int
}

// NewRegistry builds a registry. Empty or duplicate names are
// CodeConfiguration errors.
func NewRegistry(caps ...Capability) (*Registry, error) {
	r := &Registry{
		caps:  make([]Capability, 0, len(caps)),
		index: make(map[string]int, len(caps)),
	}
	for i, c := range caps {
		name := c.Name()
		if name == "" {
			return nil, errors.New(errors.CodeConfiguration, fmt.Sprintf("capability %d has no name", i), nil)
		}
		if c.invoke == nil {
			return nil, errors.New(errors.CodeConfiguration, "capability "+name+" has no invoker", nil).
				WithContext("capability", name)
		}
		if _, dup := r.index[name]; dup {
			return nil, errors.New(errors.CodeConfiguration, "duplicate capability name: "+name, nil).
				WithContext("capability", name)
		}
		r.index[name] = len(r.caps)
		r.caps = append(r.caps, c)
	}
	return r, nil
}

// Len returns the number of capabilities.
func (r *Registry) Len() int {
	return len(r.caps)
}

// Lookup returns the descriptor registered under name.
func (r *Registry) Lookup(name string) (Descriptor, bool) {
	i, ok := r.index[name]
	if !ok {
		return Descriptor{}, false
	}
	return r.caps[i].Descriptor, true
}

// Descriptors returns every descriptor in registration order.
func (r *Registry) Descriptors() []Descriptor {
	out := make([]Descriptor, len(r.caps))
	for i, c := range r.caps {
		out[i] = c.Descriptor
	}
	return out
}

// LLMTools returns the model-facing definitions in registration order.
func (r *Registry) LLMTools() []llm.Tool {
	out := make([]llm.Tool, len(r.caps))
	for i, c := range r.caps {
		out[i] = c.Descriptor.Tool()
	}
	return out
}

// Invoke validates args against the descriptor and runs the capability.
// An unknown name is CodeNotFound. The first missing required parameter, in
// declaration order, is CodeInvalidInput and the capability is not run.
func (r *Registry) Invoke(ctx context.Context, name string, args Args) (string, error) {
	i, ok := r.index[name]
	if !ok {
		return "", errors.New(errors.CodeNotFound, "unknown capability: "+name, nil).
			WithContext("capability", name)
	}
	c := r.caps[i]
	for _, p := range c.Descriptor.Params {
		if p.Required && !args.Has(p.Name) {
			return "", errors.New(errors.CodeInvalidInput, "missing required parameter: "+p.Name, nil).
				WithContext("capability", name).
				WithContext("parameter", p.Name)
		}
	}
	if args == nil {
		args = Args{}
	}
	return c.invoke(ctx, args)
}

// Call decodes the raw argument text of a model tool call and invokes it.
func (r *Registry) Call(ctx context.Context, call llm.ToolCall) (string, error) {
	if _, ok := r.index[call.Function.Name]; !ok {
		return "", errors.New(errors.CodeNotFound, "unknown capability: "+call.Function.Name, nil).
			WithContext("capability", call.Function.Name)
	}
	args, err := ParseArgs(call.Function.Arguments)
	if err != nil {
		return "", err
	}
	return r.Invoke(ctx, call.Function.Name, args)
}
