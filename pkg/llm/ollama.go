// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

package llm

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
)

// OllamaProvider talks to a local Ollama server through its /api/chat endpoint.
type OllamaProvider struct {
	baseURL string
	model   string
	client  *http.Client
}

// NewOllama creates a new OllamaProvider. An empty baseURL selects the local default.
func NewOllama(baseURL, model string) *OllamaProvider {
	if baseURL == "" {
		baseURL = "http://localhost:11434"
	}
	return &OllamaProvider{
		baseURL: baseURL,
		model:   model,
		client:  &http.Client{Timeout: 120 * time.Second},
	}
}

type ollamaToolCall struct {
	Function struct {
		Name      string          `json:"name"`
		Arguments json.RawMessage `json:"arguments"`
	} `json:"function"`
}

type ollamaMessage struct {
	Role      Role             `json:"role"`
	Content   string           `json:"content"`
	ToolCalls []ollamaToolCall `json:"tool_calls,omitempty"`
}

type ollamaRequest struct {
	Model    string                 `json:"model"`
	Messages []ollamaMessage        `json:"messages"`
	Stream   bool                   `json:"stream"`
	Tools    []Tool                 `json:"tools,omitempty"`
	Options  map[string]interface{} `json:"options,omitempty"`
}

type ollamaResponse struct {
	Message         ollamaMessage `json:"message"`
	Done            bool          `json:"done"`
	EvalCount       int           `json:"eval_count"`
	PromptEvalCount int           `json:"prompt_eval_count"`
}

func (p *OllamaProvider) buildRequest(req ChatRequest, stream bool) ollamaRequest {
	model := req.Model
	if model == "" {
		model = p.model
	}
	oReq := ollamaRequest{Model: model, Stream: stream}
	if req.ToolChoice != ToolChoiceNone {
		oReq.Tools = req.Tools
	}
	if req.Temperature != 0 {
		oReq.Options = map[string]interface{}{"temperature": req.Temperature}
	}
	for _, m := range req.Messages {
		om := ollamaMessage{Role: m.Role, Content: m.Content}
		for _, tc := range m.ToolCalls {
			var oc ollamaToolCall
			oc.Function.Name = tc.Function.Name
			oc.Function.Arguments = json.RawMessage(argumentsOrEmpty(tc.Function.Arguments))
			om.ToolCalls = append(om.ToolCalls, oc)
		}
		oReq.Messages = append(oReq.Messages, om)
	}
	return oReq
}

func (p *OllamaProvider) post(ctx context.Context, oReq ollamaRequest) (*http.Response, error) {
	body, err := json.Marshal(oReq)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal ollama request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/api/chat", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create http request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("ollama api call failed: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("ollama api returned status %d: %s", resp.StatusCode, string(respBody))
	}
	return resp, nil
}

// Chat sends a non-streaming chat request.
func (p *OllamaProvider) Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	resp, err := p.post(ctx, p.buildRequest(req, false))
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var oResp ollamaResponse
	if err := json.NewDecoder(resp.Body).Decode(&oResp); err != nil {
		return nil, fmt.Errorf("failed to decode ollama response: %w", err)
	}

	return &ChatResponse{
		Content:   oResp.Message.Content,
		ToolCalls: convertOllamaToolCalls(oResp.Message.ToolCalls),
		Usage: Usage{
			PromptTokens:     oResp.PromptEvalCount,
			CompletionTokens: oResp.EvalCount,
			TotalTokens:      oResp.PromptEvalCount + oResp.EvalCount,
		},
	}, nil
}

// ChatStream streams the NDJSON response line by line.
func (p *OllamaProvider) ChatStream(ctx context.Context, req ChatRequest) (<-chan StreamChunk, error) {
	resp, err := p.post(ctx, p.buildRequest(req, true))
	if err != nil {
		return nil, err
	}

	chunks := make(chan StreamChunk, 64)
	send := func(c StreamChunk) bool {
		select {
		case chunks <- c:
			return true
		case <-ctx.Done():
			return false
		}
	}

	go func() {
		defer close(chunks)
		defer resp.Body.Close()

		reader := bufio.NewReader(resp.Body)
		var toolCalls []ToolCall

		for {
			line, err := reader.ReadBytes('\n')
			if len(bytes.TrimSpace(line)) > 0 {
				var event ollamaResponse
				if jerr := json.Unmarshal(line, &event); jerr == nil {
					// Ollama reports complete tool calls rather than deltas.
					if len(event.Message.ToolCalls) > 0 {
						toolCalls = append(toolCalls, convertOllamaToolCalls(event.Message.ToolCalls)...)
					}
					if event.Done {
						send(StreamChunk{
							Content:   event.Message.Content,
							Done:      true,
							ToolCalls: toolCalls,
							Usage: &Usage{
								PromptTokens:     event.PromptEvalCount,
								CompletionTokens: event.EvalCount,
								TotalTokens:      event.PromptEvalCount + event.EvalCount,
							},
						})
						return
					}
					if event.Message.Content != "" && !send(StreamChunk{Content: event.Message.Content}) {
						return
					}
				}
			}
			if err != nil {
				if err == io.EOF {
					err = io.ErrUnexpectedEOF
				}
				if ctx.Err() != nil {
					err = ctx.Err()
				}
				send(StreamChunk{Error: err})
				return
			}
		}
	}()

	return chunks, nil
}

func convertOllamaToolCalls(in []ollamaToolCall) []ToolCall {
	if len(in) == 0 {
		return nil
	}
	out := make([]ToolCall, 0, len(in))
	for _, tc := range in {
		out = append(out, ToolCall{
			ID:   "call_" + uuid.NewString(),
			Type: ToolTypeFunction,
			Function: FunctionCall{
				Name:      tc.Function.Name,
				Arguments: argumentsOrEmpty(string(tc.Function.Arguments)),
			},
		})
	}
	return out
}

func argumentsOrEmpty(args string) string {
	if len(bytes.TrimSpace([]byte(args))) == 0 {
		return "{}"
	}
	return args
}

var _ StreamingProvider = (*OllamaProvider)(nil)
