// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

// Package testing provides scripted completion backends and turn-stream
// helpers for exercising agents and conversation drivers without a network.
package testing

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/jllopis/basedagent/pkg/llm"
)

// ScenarioProvider is a scripted completion backend. It implements both
// llm.Provider and llm.StreamingProvider and captures every request.
type ScenarioProvider struct {
	mu           sync.Mutex
	responses    []ScriptedResponse
	currentIndex int
	requests     []llm.ChatRequest
	defaultError error
	onChat       func(req llm.ChatRequest) (*llm.ChatResponse, error)
}

// ScriptedResponse defines a response for the scenario provider.
type ScriptedResponse struct {
	Content   string
	ToolCalls []llm.ToolCall
	Error     error
	Usage     llm.Usage
	// Chunks overrides how Content is split when streamed.
	Chunks []string
	// Truncate ends a streamed response without its final chunk.
	Truncate bool
	// Condition allows conditional responses based on request
	Condition func(req llm.ChatRequest) bool
}

// NewScenarioProvider creates a new scenario provider.
func NewScenarioProvider() *ScenarioProvider {
	return &ScenarioProvider{}
}

// AddResponse queues a text response.
func (p *ScenarioProvider) AddResponse(content string) *ScenarioProvider {
	return p.AddScriptedResponse(ScriptedResponse{Content: content})
}

// AddToolCallResponse queues a response with tool calls.
func (p *ScenarioProvider) AddToolCallResponse(toolCalls ...llm.ToolCall) *ScenarioProvider {
	return p.AddScriptedResponse(ScriptedResponse{ToolCalls: toolCalls})
}

// AddErrorResponse queues an error response.
func (p *ScenarioProvider) AddErrorResponse(err error) *ScenarioProvider {
	return p.AddScriptedResponse(ScriptedResponse{Error: err})
}

// AddScriptedResponse adds a fully configured response.
func (p *ScenarioProvider) AddScriptedResponse(resp ScriptedResponse) *ScenarioProvider {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.responses = append(p.responses, resp)
	return p
}

// WithDefaultError sets the error to return when no responses are queued.
func (p *ScenarioProvider) WithDefaultError(err error) *ScenarioProvider {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.defaultError = err
	return p
}

// WithChatFunc sets a custom function for handling requests.
func (p *ScenarioProvider) WithChatFunc(fn func(req llm.ChatRequest) (*llm.ChatResponse, error)) *ScenarioProvider {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.onChat = fn
	return p
}

// Chat implements llm.Provider.
func (p *ScenarioProvider) Chat(ctx context.Context, req llm.ChatRequest) (*llm.ChatResponse, error) {
	resp, err := p.next(req)
	if err != nil {
		return nil, err
	}
	return &llm.ChatResponse{
		Content:   resp.Content,
		ToolCalls: resp.ToolCalls,
		Usage:     resp.Usage,
	}, nil
}

// ChatStream implements llm.StreamingProvider. Content is delivered word by
// word unless Chunks is set; tool calls arrive on the final chunk.
func (p *ScenarioProvider) ChatStream(ctx context.Context, req llm.ChatRequest) (<-chan llm.StreamChunk, error) {
	resp, err := p.next(req)
	if err != nil {
		return nil, err
	}
	parts := resp.Chunks
	if parts == nil {
		parts = splitWords(resp.Content)
	}

	ch := make(chan llm.StreamChunk)
	go func() {
		defer close(ch)
		for _, part := range parts {
			select {
			case ch <- llm.StreamChunk{Content: part}:
			case <-ctx.Done():
				return
			}
		}
		if resp.Truncate {
			return
		}
		usage := resp.Usage
		select {
		case ch <- llm.StreamChunk{Done: true, ToolCalls: resp.ToolCalls, Usage: &usage}:
		case <-ctx.Done():
		}
	}()
	return ch, nil
}

func (p *ScenarioProvider) next(req llm.ChatRequest) (ScriptedResponse, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.requests = append(p.requests, req)

	if p.onChat != nil {
		resp, err := p.onChat(req)
		if err != nil || resp == nil {
			return ScriptedResponse{}, err
		}
		return ScriptedResponse{Content: resp.Content, ToolCalls: resp.ToolCalls, Usage: resp.Usage}, nil
	}

	for p.currentIndex < len(p.responses) {
		resp := p.responses[p.currentIndex]
		p.currentIndex++
		if resp.Condition != nil && !resp.Condition(req) {
			continue
		}
		if resp.Error != nil {
			return ScriptedResponse{}, resp.Error
		}
		return resp, nil
	}
	if p.defaultError != nil {
		return ScriptedResponse{}, p.defaultError
	}
	return ScriptedResponse{}, fmt.Errorf("no more scripted responses (call %d)", len(p.requests))
}

// splitWords splits s into fragments that concatenate back to s.
func splitWords(s string) []string {
	if s == "" {
		return nil
	}
	var out []string
	for s != "" {
		i := strings.IndexByte(s[1:], ' ')
		if i < 0 {
			out = append(out, s)
			break
		}
		out = append(out, s[:i+1])
		s = s[i+1:]
	}
	return out
}

// Requests returns all captured requests.
func (p *ScenarioProvider) Requests() []llm.ChatRequest {
	p.mu.Lock()
	defer p.mu.Unlock()
	result := make([]llm.ChatRequest, len(p.requests))
	copy(result, p.requests)
	return result
}

// LastRequest returns the most recent request.
func (p *ScenarioProvider) LastRequest() *llm.ChatRequest {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.requests) == 0 {
		return nil
	}
	req := p.requests[len(p.requests)-1]
	return &req
}

// CallCount returns the number of requests made.
func (p *ScenarioProvider) CallCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.requests)
}

// Reset rewinds the script and clears captured requests.
func (p *ScenarioProvider) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.currentIndex = 0
	p.requests = p.requests[:0]
}

// ToolCallBuilder helps construct tool calls for testing.
type ToolCallBuilder struct {
	id   string
	name string
	args map[string]any
	raw  *string
}

// NewToolCall creates a new tool call builder.
func NewToolCall(name string) *ToolCallBuilder {
	return &ToolCallBuilder{
		name: name,
		args: make(map[string]any),
	}
}

// WithID sets the tool call ID.
func (b *ToolCallBuilder) WithID(id string) *ToolCallBuilder {
	b.id = id
	return b
}

// WithArg adds an argument to the tool call.
func (b *ToolCallBuilder) WithArg(key string, value any) *ToolCallBuilder {
	b.args[key] = value
	return b
}

// WithRawArgs sets the argument text verbatim, for malformed input cases.
func (b *ToolCallBuilder) WithRawArgs(raw string) *ToolCallBuilder {
	b.raw = &raw
	return b
}

// Build creates the tool call.
func (b *ToolCallBuilder) Build() llm.ToolCall {
	var args string
	if b.raw != nil {
		args = *b.raw
	} else {
		data, _ := json.Marshal(b.args)
		args = string(data)
	}
	return llm.ToolCall{
		ID:   b.id,
		Type: llm.ToolTypeFunction,
		Function: llm.FunctionCall{
			Name:      b.name,
			Arguments: args,
		},
	}
}
