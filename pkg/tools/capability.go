// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

package tools

import "context"

// Invoker runs a capability with an already validated argument map.
type Invoker func(ctx context.Context, args Args) (string, error)

// Capability pairs a descriptor with its invocation function.
type Capability struct {
	Descriptor Descriptor
	invoke     Invoker
}

// Define builds a capability from a typed parameter record. decode turns
// the argument map into P once required parameters are known to be present;
// call is the bound operation and its string result is returned unchanged.
func Define[P any](d Descriptor, decode func(Args) (P, error), call func(ctx context.Context, p P) string) Capability {
	return Capability{
		Descriptor: d,
		invoke: func(ctx context.Context, args Args) (string, error) {
			p, err := decode(args)
			if err != nil {
				return "", err
			}
			return call(ctx, p), nil
		},
	}
}

// NoParams is the parameter record of capabilities that take no arguments.
type NoParams struct{}

// DecodeNone is the decoder for capabilities without parameters.
func DecodeNone(Args) (NoParams, error) { return NoParams{}, nil }

// Name returns the capability name.
func (c Capability) Name() string {
	return c.Descriptor.Name
}

// Wrap returns a copy of c whose invocation goes through mw.
func (c Capability) Wrap(mw func(d Descriptor, next Invoker) Invoker) Capability {
	c.invoke = mw(c.Descriptor, c.invoke)
	return c
}
