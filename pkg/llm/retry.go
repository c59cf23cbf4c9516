// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

package llm

import (
	"context"
	"log/slog"
	"time"

	"github.com/jllopis/basedagent/pkg/errors"
	"github.com/jllopis/basedagent/pkg/resilience"
)

// RetryingProvider retries failed requests against an inner provider.
// Streaming requests are retried only while opening the stream.
type RetryingProvider struct {
	inner   Provider
	retry   resilience.RetryConfig
	breaker *resilience.Breaker
}

// WithRetry wraps p with the given retry policy and an optional breaker.
func WithRetry(p Provider, rc resilience.RetryConfig, breaker *resilience.Breaker) *RetryingProvider {
	rc = rc.WithOnRetry(func(attempt int, err error, delay time.Duration) {
		slog.Warn("llm.retry",
			slog.Int("attempt", attempt),
			slog.Duration("delay", delay),
			slog.String("error", err.Error()),
		)
	})
	return &RetryingProvider{inner: p, retry: rc, breaker: breaker}
}

// Chat implements Provider.
func (r *RetryingProvider) Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	resp, err := resilience.Retry(ctx, r.retry, func() (*ChatResponse, error) {
		var out *ChatResponse
		err := r.guard(ctx, func(ctx context.Context) error {
			var err error
			out, err = r.inner.Chat(ctx, req)
			return err
		})
		return out, err
	})
	if err != nil {
		return nil, wrapLLMError(err)
	}
	return resp, nil
}

// ChatStream implements StreamingProvider when the inner provider streams.
// Without streaming support it reports the whole reply as a single chunk.
func (r *RetryingProvider) ChatStream(ctx context.Context, req ChatRequest) (<-chan StreamChunk, error) {
	sp, ok := r.inner.(StreamingProvider)
	if !ok {
		resp, err := r.Chat(ctx, req)
		if err != nil {
			return nil, err
		}
		ch := make(chan StreamChunk, 1)
		usage := resp.Usage
		ch <- StreamChunk{Content: resp.Content, ToolCalls: resp.ToolCalls, Done: true, Usage: &usage}
		close(ch)
		return ch, nil
	}

	ch, err := resilience.Retry(ctx, r.retry, func() (<-chan StreamChunk, error) {
		var out <-chan StreamChunk
		err := r.guard(ctx, func(ctx context.Context) error {
			var err error
			out, err = sp.ChatStream(ctx, req)
			return err
		})
		return out, err
	})
	if err != nil {
		return nil, wrapLLMError(err)
	}
	return ch, nil
}

func (r *RetryingProvider) guard(ctx context.Context, fn func(ctx context.Context) error) error {
	if r.breaker == nil {
		return fn(ctx)
	}
	return r.breaker.Call(ctx, fn)
}

func wrapLLMError(err error) error {
	if errors.AsAgentError(err).Code != errors.CodeInternal {
		return err
	}
	return errors.New(errors.CodeLLMError, "completion request failed", err)
}

var _ StreamingProvider = (*RetryingProvider)(nil)
