// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

package agent

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jllopis/basedagent/pkg/errors"
	"github.com/jllopis/basedagent/pkg/llm"
	"github.com/jllopis/basedagent/pkg/stream"
	"github.com/jllopis/basedagent/pkg/telemetry"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Toolset is the set of capabilities offered to the model for one turn.
// *tools.Registry satisfies it.
type Toolset interface {
	LLMTools() []llm.Tool
	Call(ctx context.Context, call llm.ToolCall) (string, error)
}

// Run executes one turn over transcript and returns its event stream.
// The stream carries the assistant text, at most one ToolInvocation and
// exactly one terminal event. On success TurnEnd holds transcript followed
// by the assistant message and one tool message per call, in call order.
// The input transcript is never modified.
func (a *Agent) Run(ctx context.Context, transcript []llm.Message, ts Toolset) <-chan stream.Event {
	em, events := stream.Open(ctx, a.buffer)
	go func() {
		defer em.Close()
		a.turn(ctx, em, transcript, ts)
	}()
	return events
}

func (a *Agent) turn(ctx context.Context, em *stream.Emitter, transcript []llm.Message, ts Toolset) {
	runID := uuid.NewString()
	ctx, span := a.tracer.Start(ctx, "Agent.Turn")
	defer span.End()
	span.SetAttributes(telemetry.AgentAttributes(a.name, a.model, runID, len(transcript))...)

	traceID, spanID := traceIDs(span)
	log := a.logger.With(
		slog.String("agent", a.name),
		slog.String("run_id", runID),
		slog.String("trace_id", traceID),
		slog.String("span_id", spanID),
	)
	log.Debug("agent.turn.start", slog.Int("transcript_len", len(transcript)))

	start := time.Now()
	a.metrics.TurnStarted(ctx, a.name)

	out, err := a.dispatch(ctx, log, em, transcript, ts)
	a.metrics.TurnFinished(ctx, a.name, time.Since(start), err)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		recordError(ctx, err, "agent")
		log.Error("agent.turn.failed", slog.String("error", err.Error()))
		em.Fail(ErrorMessage(err))
		return
	}

	span.SetStatus(codes.Ok, "turn completed")
	log.Debug("agent.turn.end",
		slog.Int("new_messages", len(out)-len(transcript)),
		slog.Float64("duration_ms", float64(time.Since(start).Milliseconds())),
	)
	em.End(out)
}

func (a *Agent) dispatch(ctx context.Context, log *slog.Logger, em *stream.Emitter, transcript []llm.Message, ts Toolset) ([]llm.Message, error) {
	var tools []llm.Tool
	if ts != nil {
		tools = ts.LLMTools()
	}
	req := a.request(transcript, tools)

	span := trace.SpanFromContext(ctx)
	names := make([]string, len(tools))
	for i, t := range tools {
		names[i] = t.Function.Name
	}
	span.SetAttributes(telemetry.ToolsetAttributes(names)...)
	span.SetAttributes(telemetry.LLMAttributes(req.Model, "", len(req.Messages), a.streaming)...)

	start := time.Now()
	reply, err := a.complete(ctx, em, req)
	if err != nil {
		return nil, err
	}
	span.SetAttributes(telemetry.LLMUsageAttributes(
		reply.Usage.PromptTokens, reply.Usage.CompletionTokens,
		len(reply.ToolCalls), float64(time.Since(start).Milliseconds()),
	)...)
	calls := assignCallIDs(reply.ToolCalls)

	out := make([]llm.Message, len(transcript), len(transcript)+1+len(calls))
	copy(out, transcript)
	assistant := llm.Assistant(a.name, reply.Content)
	assistant.ToolCalls = calls
	out = append(out, assistant)

	if len(calls) == 0 {
		return out, nil
	}
	if !em.Invoke(a.name, calls) {
		return nil, errors.New(errors.CodeContextLost, "turn consumer went away", ctx.Err())
	}
	for _, call := range calls {
		out = append(out, llm.ToolResult(call.ID, a.callTool(ctx, log, ts, call)))
	}
	return out, nil
}

func (a *Agent) request(transcript []llm.Message, tools []llm.Tool) llm.ChatRequest {
	msgs := make([]llm.Message, 0, len(transcript)+1)
	if a.instructions != "" {
		msgs = append(msgs, llm.System(a.instructions))
	}
	msgs = append(msgs, transcript...)
	req := llm.ChatRequest{
		Model:       a.model,
		Messages:    msgs,
		Temperature: a.temperature,
	}
	if len(tools) > 0 {
		req.Tools = tools
		req.ToolChoice = llm.ToolChoiceAuto
		req.ParallelToolCalls = true
	}
	return req
}

// complete performs the single completion request of a turn, forwarding
// text to em as it arrives.
func (a *Agent) complete(ctx context.Context, em *stream.Emitter, req llm.ChatRequest) (*llm.ChatResponse, error) {
	sp, ok := a.provider.(llm.StreamingProvider)
	if !a.streaming || !ok {
		resp, err := a.provider.Chat(ctx, req)
		if err != nil {
			return nil, WrapLLMError(err, req.Model)
		}
		if resp == nil {
			return nil, errors.New(errors.CodeLLMError, "empty completion response", nil)
		}
		em.Text(a.name, resp.Content)
		return resp, nil
	}

	chunks, err := sp.ChatStream(ctx, req)
	if err != nil {
		return nil, WrapLLMError(err, req.Model)
	}
	var resp llm.ChatResponse
	var content []byte
	for {
		select {
		case <-ctx.Done():
			return nil, errors.New(errors.CodeContextLost, "turn canceled", ctx.Err())
		case chunk, open := <-chunks:
			if !open {
				return nil, errors.New(errors.CodeStreamError, "completion stream ended without a final chunk", nil)
			}
			if chunk.Error != nil {
				return nil, WrapLLMError(chunk.Error, req.Model)
			}
			if chunk.Content != "" {
				content = append(content, chunk.Content...)
				em.Text(a.name, chunk.Content)
			}
			if !chunk.Done {
				continue
			}
			resp.Content = string(content)
			resp.ToolCalls = chunk.ToolCalls
			if chunk.Usage != nil {
				resp.Usage = *chunk.Usage
			}
			return &resp, nil
		}
	}
}

func (a *Agent) callTool(ctx context.Context, log *slog.Logger, ts Toolset, call llm.ToolCall) string {
	toolCtx, span := a.tracer.Start(ctx, "Agent.Tool")
	defer span.End()

	start := time.Now()
	var (
		result string
		err    error
	)
	if ts == nil {
		err = errors.New(errors.CodeNotFound, "unknown capability: "+call.Function.Name, nil)
	} else {
		result, err = ts.Call(toolCtx, call)
	}
	elapsed := float64(time.Since(start).Milliseconds())

	a.metrics.ToolCalled(ctx, call.Function.Name, err == nil)
	span.SetAttributes(telemetry.ToolCallAttributes(call.Function.Name, call.ID, elapsed, err == nil)...)
	if err != nil {
		werr := WrapToolError(err, call.Function.Name, call.ID)
		span.RecordError(werr)
		span.SetStatus(codes.Error, werr.Error())
		recordError(ctx, werr, "tool")
		log.Warn("agent.tool.failed",
			slog.String("tool_name", call.Function.Name),
			slog.String("tool_call_id", call.ID),
			slog.String("error", err.Error()),
		)
		result = ToolErrorContent(err)
	} else {
		span.SetStatus(codes.Ok, "tool completed")
		log.Info("agent.tool.call",
			slog.String("tool_name", call.Function.Name),
			slog.String("tool_call_id", call.ID),
			slog.Float64("duration_ms", elapsed),
		)
	}
	span.SetAttributes(telemetry.ToolCallArgsResult(call.Function.Arguments, result, 512)...)
	return result
}

// assignCallIDs copies calls, filling missing IDs and types.
func assignCallIDs(calls []llm.ToolCall) []llm.ToolCall {
	if len(calls) == 0 {
		return nil
	}
	out := make([]llm.ToolCall, len(calls))
	for i, c := range calls {
		if c.ID == "" {
			c.ID = "call_" + uuid.NewString()
		}
		if c.Type == "" {
			c.Type = llm.ToolTypeFunction
		}
		out[i] = c
	}
	return out
}

func traceIDs(span trace.Span) (string, string) {
	sc := span.SpanContext()
	if !sc.IsValid() {
		return "", ""
	}
	return sc.TraceID().String(), sc.SpanID().String()
}
