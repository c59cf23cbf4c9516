// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

// Package openai provides the OpenAI completion and image backend.
package openai

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/jllopis/basedagent/pkg/llm"
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/packages/param"
)

// DefaultModel is the chat model used when a request names none.
const DefaultModel = "gpt-4-1106-preview"

// Provider implements llm.StreamingProvider and capability.ArtGenerator
// for the OpenAI API.
type Provider struct {
	client  openai.Client
	model   string
	image   ImageConfig
	options []option.RequestOption
}

// Option configures the Provider.
type Option func(*Provider)

// WithModel sets the default model.
func WithModel(model string) Option {
	return func(p *Provider) {
		if model != "" {
			p.model = model
		}
	}
}

// WithBaseURL sets a custom base URL (for Azure OpenAI or proxies).
func WithBaseURL(url string) Option {
	return func(p *Provider) {
		if url != "" {
			p.options = append(p.options, option.WithBaseURL(url))
		}
	}
}

// WithAPIKey sets the API key.
func WithAPIKey(apiKey string) Option {
	return func(p *Provider) {
		if apiKey != "" {
			p.options = append(p.options, option.WithAPIKey(apiKey))
		}
	}
}

// WithMaxRetries sets how many times the client retries failed requests.
func WithMaxRetries(n int) Option {
	return func(p *Provider) {
		p.options = append(p.options, option.WithMaxRetries(n))
	}
}

// WithImageConfig sets the image generation parameters.
func WithImageConfig(cfg ImageConfig) Option {
	return func(p *Provider) {
		p.image = cfg.withDefaults()
	}
}

// New creates a new OpenAI provider.
// API key is read from OPENAI_API_KEY environment variable by default.
func New(opts ...Option) *Provider {
	p := &Provider{
		model: DefaultModel,
		image: ImageConfig{}.withDefaults(),
	}
	for _, opt := range opts {
		opt(p)
	}
	p.client = openai.NewClient(p.options...)
	return p
}

// NewWithAPIKey creates a new OpenAI provider with explicit API key.
func NewWithAPIKey(apiKey string, opts ...Option) *Provider {
	opts = append([]Option{WithAPIKey(apiKey)}, opts...)
	return New(opts...)
}

// Model returns the default model.
func (p *Provider) Model() string { return p.model }

// Chat implements llm.Provider.
func (p *Provider) Chat(ctx context.Context, req llm.ChatRequest) (*llm.ChatResponse, error) {
	completion, err := p.client.Chat.Completions.New(ctx, p.params(req))
	if err != nil {
		return nil, fmt.Errorf("openai chat completion failed: %w", err)
	}
	return convertResponse(completion), nil
}

func (p *Provider) params(req llm.ChatRequest) openai.ChatCompletionNewParams {
	model := req.Model
	if model == "" {
		model = p.model
	}

	messages := make([]openai.ChatCompletionMessageParamUnion, 0, len(req.Messages))
	for _, msg := range req.Messages {
		messages = append(messages, convertMessage(msg))
	}

	params := openai.ChatCompletionNewParams{
		Model:    model,
		Messages: messages,
	}
	if req.Temperature > 0 {
		params.Temperature = openai.Float(req.Temperature)
	}
	if len(req.Tools) > 0 {
		tools := make([]openai.ChatCompletionToolParam, 0, len(req.Tools))
		for _, tool := range req.Tools {
			tools = append(tools, convertTool(tool))
		}
		params.Tools = tools
		if req.ToolChoice != "" {
			params.ToolChoice = openai.ChatCompletionToolChoiceOptionUnionParam{
				OfAuto: openai.String(req.ToolChoice),
			}
		}
		if req.ParallelToolCalls {
			params.ParallelToolCalls = openai.Bool(true)
		}
	}
	return params
}

// convertMessage converts a transcript message to OpenAI format.
// Sender is local bookkeeping and is not sent.
func convertMessage(msg llm.Message) openai.ChatCompletionMessageParamUnion {
	switch msg.Role {
	case llm.RoleSystem:
		return openai.SystemMessage(msg.Content)
	case llm.RoleUser:
		return openai.UserMessage(msg.Content)
	case llm.RoleAssistant:
		if len(msg.ToolCalls) > 0 {
			toolCalls := make([]openai.ChatCompletionMessageToolCallParam, 0, len(msg.ToolCalls))
			for _, tc := range msg.ToolCalls {
				toolCalls = append(toolCalls, openai.ChatCompletionMessageToolCallParam{
					ID:   tc.ID,
					Type: "function",
					Function: openai.ChatCompletionMessageToolCallFunctionParam{
						Name:      tc.Function.Name,
						Arguments: tc.Function.Arguments,
					},
				})
			}
			assistantMsg := openai.ChatCompletionAssistantMessageParam{
				ToolCalls: toolCalls,
			}
			if msg.Content != "" {
				assistantMsg.Content = openai.ChatCompletionAssistantMessageParamContentUnion{
					OfString: param.NewOpt(msg.Content),
				}
			}
			return openai.ChatCompletionMessageParamUnion{
				OfAssistant: &assistantMsg,
			}
		}
		return openai.AssistantMessage(msg.Content)
	case llm.RoleTool:
		return openai.ToolMessage(msg.Content, msg.ToolCallID)
	default:
		return openai.UserMessage(msg.Content)
	}
}

// convertTool converts a capability definition to OpenAI format.
func convertTool(tool llm.Tool) openai.ChatCompletionToolParam {
	paramsJSON, _ := json.Marshal(tool.Function.Parameters)
	var params openai.FunctionParameters
	_ = json.Unmarshal(paramsJSON, &params)

	def := openai.FunctionDefinitionParam{
		Name:       tool.Function.Name,
		Parameters: params,
	}
	if tool.Function.Description != "" {
		def.Description = openai.String(tool.Function.Description)
	}
	return openai.ChatCompletionToolParam{Function: def}
}

// convertResponse converts an OpenAI completion to a ChatResponse.
func convertResponse(completion *openai.ChatCompletion) *llm.ChatResponse {
	resp := &llm.ChatResponse{
		Usage: llm.Usage{
			PromptTokens:     int(completion.Usage.PromptTokens),
			CompletionTokens: int(completion.Usage.CompletionTokens),
			TotalTokens:      int(completion.Usage.TotalTokens),
		},
	}
	if len(completion.Choices) == 0 {
		return resp
	}

	choice := completion.Choices[0]
	resp.Content = choice.Message.Content
	for _, tc := range choice.Message.ToolCalls {
		resp.ToolCalls = append(resp.ToolCalls, llm.ToolCall{
			ID:   tc.ID,
			Type: llm.ToolTypeFunction,
			Function: llm.FunctionCall{
				Name:      tc.Function.Name,
				Arguments: tc.Function.Arguments,
			},
		})
	}
	return resp
}

// ChatStream implements llm.StreamingProvider. Text deltas are forwarded as
// they arrive; tool call fragments are assembled by index and reported on
// the final chunk, sent once the stream has been fully read.
func (p *Provider) ChatStream(ctx context.Context, req llm.ChatRequest) (<-chan llm.StreamChunk, error) {
	params := p.params(req)
	params.StreamOptions = openai.ChatCompletionStreamOptionsParam{IncludeUsage: openai.Bool(true)}
	stream := p.client.Chat.Completions.NewStreaming(ctx, params)

	chunks := make(chan llm.StreamChunk, 16)
	send := func(c llm.StreamChunk) bool {
		select {
		case chunks <- c:
			return true
		case <-ctx.Done():
			return false
		}
	}

	go func() {
		defer close(chunks)
		defer stream.Close()

		calls := make(map[int64]*llm.ToolCall)
		var usage *llm.Usage
		for stream.Next() {
			event := stream.Current()
			if event.Usage.TotalTokens > 0 {
				usage = &llm.Usage{
					PromptTokens:     int(event.Usage.PromptTokens),
					CompletionTokens: int(event.Usage.CompletionTokens),
					TotalTokens:      int(event.Usage.TotalTokens),
				}
			}
			if len(event.Choices) == 0 {
				continue
			}
			delta := event.Choices[0].Delta
			for _, tc := range delta.ToolCalls {
				call, ok := calls[tc.Index]
				if !ok {
					call = &llm.ToolCall{Type: llm.ToolTypeFunction}
					calls[tc.Index] = call
				}
				if tc.ID != "" {
					call.ID = tc.ID
				}
				if tc.Function.Name != "" {
					call.Function.Name = tc.Function.Name
				}
				call.Function.Arguments += tc.Function.Arguments
			}
			if delta.Content != "" && !send(llm.StreamChunk{Content: delta.Content}) {
				return
			}
		}
		if err := stream.Err(); err != nil {
			send(llm.StreamChunk{Error: fmt.Errorf("openai chat stream failed: %w", err)})
			return
		}
		send(llm.StreamChunk{Done: true, ToolCalls: orderedCalls(calls), Usage: usage})
	}()

	return chunks, nil
}

func orderedCalls(calls map[int64]*llm.ToolCall) []llm.ToolCall {
	if len(calls) == 0 {
		return nil
	}
	idx := make([]int64, 0, len(calls))
	for i := range calls {
		idx = append(idx, i)
	}
	sort.Slice(idx, func(a, b int) bool { return idx[a] < idx[b] })
	out := make([]llm.ToolCall, 0, len(idx))
	for _, i := range idx {
		out = append(out, *calls[i])
	}
	return out
}

var _ llm.StreamingProvider = (*Provider)(nil)
