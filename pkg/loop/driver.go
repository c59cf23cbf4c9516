// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

// Package loop drives conversations turn by turn: autonomous self-prompting,
// a guide model talking to the agent, and an interactive console.
package loop

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/jllopis/basedagent/pkg/agent"
	"github.com/jllopis/basedagent/pkg/llm"
	"github.com/jllopis/basedagent/pkg/resilience"
	"github.com/jllopis/basedagent/pkg/stream"
	"github.com/jllopis/basedagent/pkg/telemetry"
	"github.com/muesli/termenv"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

const (
	// DefaultThought is the self-directed prompt of autonomous mode.
	DefaultThought = "Be creative and do something interesting on the Base blockchain. " +
		"Don't take any more input from me. Choose an action and execute it now. " +
		"Choose those that highlight your identity and abilities best."

	// DefaultGuidePrompt primes the guide model.
	DefaultGuidePrompt = "You are a user guiding a blockchain agent through various tasks on the Base blockchain. " +
		"Engage in a conversation, suggesting actions and responding to the agent's outputs. " +
		"Be creative and explore different blockchain capabilities. " +
		"You're not simulating a conversation, but you will be in one yourself. " +
		"Make sure you follow the rules of improv and always ask for some sort of function to occur. " +
		"Be unique and interesting."

	// DefaultGuideOpening is the first user message of the guide transcript.
	DefaultGuideOpening = "Start a conversation with the Based Agent and guide it through some blockchain tasks."

	DefaultInterval = 10 * time.Second

	noReply = "No response from Based Agent."
)

// Turner runs one dispatcher turn. *agent.Agent satisfies it.
type Turner interface {
	Name() string
	Run(ctx context.Context, transcript []llm.Message, ts agent.Toolset) <-chan stream.Event
}

// Driver owns the running transcripts and sequences turns one at a time.
type Driver struct {
	agent    Turner
	tools    agent.Toolset
	out      io.Writer
	profile  *termenv.Profile
	term     *termenv.Output
	agg      *stream.Aggregator
	operator Operator
	logger   *slog.Logger
	tracer   trace.Tracer

	thought  string
	interval time.Duration

	guide        llm.Provider
	guideModel   string
	guideLabel   string
	guidePrompt  string
	guideOpening string
	guideTemp    float64
	guideTimeout time.Duration
}

// Option configures a Driver.
type Option func(*Driver)

// WithOutput sets the console surface. Defaults to io.Discard.
func WithOutput(w io.Writer) Option {
	return func(d *Driver) { d.out = w }
}

// WithProfile forces a colour profile for the console surface.
func WithProfile(p termenv.Profile) Option {
	return func(d *Driver) { d.profile = &p }
}

// WithOperator sets who answers prompts in guided and interactive modes.
func WithOperator(op Operator) Option {
	return func(d *Driver) { d.operator = op }
}

// WithThought overrides the autonomous prompt.
func WithThought(thought string) Option {
	return func(d *Driver) {
		if thought != "" {
			d.thought = thought
		}
	}
}

// WithInterval sets the pause between autonomous iterations.
func WithInterval(interval time.Duration) Option {
	return func(d *Driver) {
		if interval >= 0 {
			d.interval = interval
		}
	}
}

// WithGuide sets the non-streaming provider that plays the user in guided mode.
func WithGuide(p llm.Provider, model string) Option {
	return func(d *Driver) {
		d.guide = p
		d.guideModel = model
	}
}

// WithGuideTimeout bounds each guide completion. Zero waits for the provider.
func WithGuideTimeout(timeout time.Duration) Option {
	return func(d *Driver) {
		d.guideTimeout = timeout
	}
}

// WithGuidePrompt overrides the guide priming messages. Empty values keep
// the defaults.
func WithGuidePrompt(system, opening string) Option {
	return func(d *Driver) {
		if system != "" {
			d.guidePrompt = system
		}
		if opening != "" {
			d.guideOpening = opening
		}
	}
}

// WithGuideLabel sets the label printed before guide messages.
func WithGuideLabel(label string) Option {
	return func(d *Driver) {
		if label != "" {
			d.guideLabel = label
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(d *Driver) {
		if l != nil {
			d.logger = l
		}
	}
}

// New returns a Driver running a over ts.
func New(a Turner, ts agent.Toolset, opts ...Option) *Driver {
	d := &Driver{
		agent:        a,
		tools:        ts,
		out:          io.Discard,
		logger:       slog.Default(),
		tracer:       otel.Tracer("basedagent/loop"),
		thought:      DefaultThought,
		interval:     DefaultInterval,
		guideLabel:   "OpenAI Guide",
		guidePrompt:  DefaultGuidePrompt,
		guideOpening: DefaultGuideOpening,
		guideTemp:    0.7,
	}
	for _, opt := range opts {
		opt(d)
	}
	if d.profile != nil {
		d.agg = stream.NewAggregator(d.out, stream.WithProfile(*d.profile))
		d.term = termenv.NewOutput(d.out, termenv.WithProfile(*d.profile))
	} else {
		d.agg = stream.NewAggregator(d.out)
		d.term = termenv.NewOutput(d.out)
	}
	return d
}

// Turn runs one turn over transcript, renders it, and returns the transcript
// with the turn's new messages appended. A failed turn returns transcript
// unchanged and ok false.
func (d *Driver) Turn(ctx context.Context, transcript []llm.Message) ([]llm.Message, bool, error) {
	resolved, err := d.agg.Consume(ctx, d.agent.Run(ctx, transcript, d.tools))
	if err != nil {
		return transcript, false, err
	}
	if resolved.Failed() || len(resolved.Transcript) < len(transcript) {
		return transcript, false, nil
	}
	return append(transcript, resolved.Transcript[len(transcript):]...), true, nil
}

// RunAutonomous prompts the agent with the autonomous thought forever,
// pausing between iterations. It only returns when ctx is done, with the
// transcript so far and ctx's error.
func (d *Driver) RunAutonomous(ctx context.Context) ([]llm.Message, error) {
	var transcript []llm.Message
	d.println("Starting autonomous Based Agent loop...")

	for iteration := 1; ; iteration++ {
		if err := ctx.Err(); err != nil {
			return transcript, err
		}
		iterCtx, span := d.tracer.Start(ctx, "Loop.Iteration")
		span.SetAttributes(telemetry.LoopAttributes(string(ModeAuto), iteration)...)

		transcript = append(transcript, llm.User(d.thought))
		d.println("\n" + d.label("Agent's Thought:", "#9ca3af") + " " + d.thought)

		var (
			ok  bool
			err error
		)
		transcript, ok, err = d.Turn(iterCtx, transcript)
		span.End()
		d.logger.Info("loop.autonomous.iteration",
			slog.Int("iteration", iteration),
			slog.Bool("success", ok),
			slog.Int("transcript_len", len(transcript)),
		)
		if err != nil {
			return transcript, err
		}

		select {
		case <-ctx.Done():
			return transcript, ctx.Err()
		case <-time.After(d.interval):
		}
	}
}

// RunGuided lets the guide provider play the user. After every agent turn
// the operator is asked whether to continue; "exit" in any case, or the end
// of operator input, stops the loop. It returns the agent transcript.
func (d *Driver) RunGuided(ctx context.Context) ([]llm.Message, error) {
	if d.guide == nil {
		return nil, errors.New("guided mode requires a guide provider")
	}
	if d.operator == nil {
		return nil, errors.New("guided mode requires an operator")
	}
	d.println("Starting OpenAI-Based Agent conversation loop...")

	var transcript []llm.Message
	guideTranscript := []llm.Message{
		llm.System(d.guidePrompt),
		llm.User(d.guideOpening),
	}

	for iteration := 1; ; iteration++ {
		iterCtx, span := d.tracer.Start(ctx, "Loop.Iteration")
		span.SetAttributes(telemetry.LoopAttributes(string(ModeTwoAgent), iteration)...)

		guideMsg, err := d.askGuide(iterCtx, guideTranscript)
		if err != nil {
			span.RecordError(err)
			d.logger.Warn("loop.guide.failed", slog.Int("iteration", iteration), slog.String("error", err.Error()))
			d.println(d.label("Error:", "#ef4444") + " " + agent.ErrorMessage(err))
		} else {
			guideTranscript = append(guideTranscript, llm.Assistant("", guideMsg))
			d.println("\n" + d.label(d.guideLabel+":", "#22c55e") + " " + guideMsg)

			prior := len(transcript)
			transcript = append(transcript, llm.User(guideMsg))
			transcript, _, err = d.Turn(iterCtx, transcript)
			if err != nil {
				span.End()
				return transcript, err
			}
			reply := noReply
			if len(transcript) > prior+1 {
				if last := transcript[len(transcript)-1].Content; last != "" {
					reply = last
				}
			}
			guideTranscript = append(guideTranscript, llm.User("Based Agent response: "+reply))
		}
		span.End()
		d.logger.Info("loop.guided.iteration", slog.Int("iteration", iteration), slog.Int("transcript_len", len(transcript)))

		answer, err := d.operator.Prompt(ctx, "\nPress Enter to continue the conversation, or type 'exit' to end: ")
		if errors.Is(err, io.EOF) {
			return transcript, nil
		}
		if err != nil {
			return transcript, err
		}
		if strings.EqualFold(strings.TrimSpace(answer), "exit") {
			return transcript, nil
		}
	}
}

func (d *Driver) askGuide(ctx context.Context, transcript []llm.Message) (string, error) {
	req := llm.ChatRequest{
		Model:       d.guideModel,
		Messages:    transcript,
		Temperature: d.guideTemp,
	}
	resp, err := resilience.WithTimeout(ctx, d.guideTimeout, func(ctx context.Context) (*llm.ChatResponse, error) {
		return d.guide.Chat(ctx, req)
	})
	if err != nil {
		return "", agent.WrapLLMError(err, d.guideModel)
	}
	if resp == nil || strings.TrimSpace(resp.Content) == "" {
		return "", fmt.Errorf("guide returned an empty message")
	}
	return resp.Content, nil
}

// RunInteractive is a console REPL over the same turn primitive. Empty lines
// are ignored; "exit" or "quit", or the end of input, stop it.
func (d *Driver) RunInteractive(ctx context.Context) ([]llm.Message, error) {
	if d.operator == nil {
		return nil, errors.New("interactive mode requires an operator")
	}
	d.println("Starting CLI chat session. Type 'exit' to quit.")

	var transcript []llm.Message
	for iteration := 1; ; iteration++ {
		line, err := d.operator.Prompt(ctx, d.label("User", "#9ca3af")+": ")
		if errors.Is(err, io.EOF) {
			return transcript, nil
		}
		if err != nil {
			return transcript, err
		}
		line = strings.TrimSpace(line)
		switch strings.ToLower(line) {
		case "":
			continue
		case "exit", "quit":
			return transcript, nil
		}

		iterCtx, span := d.tracer.Start(ctx, "Loop.Iteration")
		span.SetAttributes(telemetry.LoopAttributes(string(ModeChat), iteration)...)
		transcript = append(transcript, llm.User(line))
		transcript, _, err = d.Turn(iterCtx, transcript)
		span.End()
		if err != nil {
			return transcript, err
		}
	}
}

func (d *Driver) label(s, color string) string {
	return d.term.String(s).Foreground(d.term.Color(color)).String()
}

func (d *Driver) println(s string) {
	io.WriteString(d.out, s+"\n")
}
