// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

package loop

import (
	"bufio"
	"context"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/mattn/go-isatty"
)

// Operator is the human on the other side of the console. Prompt writes
// prompt and returns one line of input without its line terminator.
// io.EOF means no more input will arrive.
type Operator interface {
	Prompt(ctx context.Context, prompt string) (string, error)
}

// ConsoleOperator reads operator input line by line. A single goroutine owns
// the input and hands lines to prompts, so a prompt abandoned by its context
// leaves the next line for the following prompt.
type ConsoleOperator struct {
	in          *bufio.Reader
	out         io.Writer
	interactive bool

	once  sync.Once
	lines chan string
	err   error // set before lines is closed
}

// NewConsoleOperator returns an operator reading from in and prompting on out.
func NewConsoleOperator(in io.Reader, out io.Writer) *ConsoleOperator {
	op := &ConsoleOperator{in: bufio.NewReader(in), out: out, lines: make(chan string)}
	if f, ok := in.(*os.File); ok {
		op.interactive = isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
	}
	return op
}

func (c *ConsoleOperator) start() {
	c.once.Do(func() { go c.read() })
}

func (c *ConsoleOperator) read() {
	for {
		line, err := c.in.ReadString('\n')
		if err != nil && (err != io.EOF || line == "") {
			c.err = err
			close(c.lines)
			return
		}
		c.lines <- strings.TrimRight(line, "\r\n")
	}
}

// next waits for the next input line.
func (c *ConsoleOperator) next(ctx context.Context) (string, error) {
	c.start()
	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case line, ok := <-c.lines:
		if !ok {
			return "", c.err
		}
		return line, nil
	}
}

// Reader returns the remaining input as a stream of newline terminated lines,
// for consumers that take over the console such as the MCP stdio server. It
// must not be read while prompts are pending.
func (c *ConsoleOperator) Reader() io.Reader {
	return &operatorReader{op: c}
}

// Interactive reports whether input comes from a terminal.
func (c *ConsoleOperator) Interactive() bool {
	return c.interactive
}

// Prompt implements Operator. It returns ctx.Err() when ctx ends first; the
// line that was being waited for stays available.
func (c *ConsoleOperator) Prompt(ctx context.Context, prompt string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if prompt != "" {
		if _, err := io.WriteString(c.out, prompt); err != nil {
			return "", err
		}
	}
	return c.next(ctx)
}

type operatorReader struct {
	op  *ConsoleOperator
	buf []byte
}

func (r *operatorReader) Read(p []byte) (int, error) {
	if len(r.buf) == 0 {
		line, err := r.op.next(context.Background())
		if err != nil {
			return 0, err
		}
		r.buf = []byte(line + "\n")
	}
	n := copy(p, r.buf)
	r.buf = r.buf[n:]
	return n, nil
}

// Mode is a conversation mode.
type Mode string

const (
	ModeChat     Mode = "chat"
	ModeAuto     Mode = "auto"
	ModeTwoAgent Mode = "two-agent"
	ModeMCP      Mode = "mcp"
)

// ParseMode resolves a mode by number or name, case-insensitively.
func ParseMode(s string) (Mode, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "1", "chat":
		return ModeChat, true
	case "2", "auto":
		return ModeAuto, true
	case "3", "two-agent":
		return ModeTwoAgent, true
	case "mcp":
		return ModeMCP, true
	}
	return "", false
}

// ChooseMode lists the conversation modes and asks until a valid one is given.
func ChooseMode(ctx context.Context, op Operator, out io.Writer) (Mode, error) {
	for {
		io.WriteString(out, "\nAvailable modes:\n"+
			"1. chat    - Interactive chat mode\n"+
			"2. auto    - Autonomous action mode\n"+
			"3. two-agent - AI-to-agent conversation mode\n")
		choice, err := op.Prompt(ctx, "\nChoose a mode (enter number or name): ")
		if err != nil {
			return "", err
		}
		if m, ok := ParseMode(choice); ok && m != ModeMCP {
			return m, nil
		}
		io.WriteString(out, "Invalid choice. Please try again.\n")
	}
}
