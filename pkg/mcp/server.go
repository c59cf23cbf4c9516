// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

// Package mcp exposes the capability registry as a Model Context Protocol
// server so that external clients can call the same capabilities the agent
// offers to its model.
package mcp

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/jllopis/basedagent/pkg/agent"
	"github.com/jllopis/basedagent/pkg/tools"
)

// Server wraps the mcp-go server with a capability registry.
type Server struct {
	mcpServer *server.MCPServer
	registry  *tools.Registry
	logger    *slog.Logger
}

// ServerOption configures a Server.
type ServerOption func(*Server)

// WithLogger sets the logger used for tool calls.
func WithLogger(l *slog.Logger) ServerOption {
	return func(s *Server) {
		if l != nil {
			s.logger = l
		}
	}
}

// NewServer creates an MCP server publishing every capability in reg.
func NewServer(name, version string, reg *tools.Registry, opts ...ServerOption) *Server {
	s := &Server{
		mcpServer: server.NewMCPServer(name, version, server.WithToolCapabilities(false)),
		registry:  reg,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	for _, d := range reg.Descriptors() {
		s.mcpServer.AddTool(toolFor(d), s.handler(d.Name))
	}
	return s
}

// MCPServer returns the underlying mcp-go server.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcpServer
}

func toolFor(d tools.Descriptor) mcp.Tool {
	opts := []mcp.ToolOption{mcp.WithDescription(d.Description)}
	for _, p := range d.Params {
		prop := []mcp.PropertyOption{mcp.Description(p.Description)}
		if p.Required {
			prop = append(prop, mcp.Required())
		}
		switch p.Type {
		case tools.TypeNumber, tools.TypeInteger:
			opts = append(opts, mcp.WithNumber(p.Name, prop...))
		case tools.TypeBoolean:
			opts = append(opts, mcp.WithBoolean(p.Name, prop...))
		default:
			opts = append(opts, mcp.WithString(p.Name, prop...))
		}
	}
	return mcp.NewTool(d.Name, opts...)
}

func (s *Server) handler(name string) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		start := time.Now()
		out, err := s.registry.Invoke(ctx, name, tools.Args(req.GetArguments()))
		if err != nil {
			s.logger.WarnContext(ctx, "mcp.tool.failed",
				"capability", name,
				"error", agent.ErrorMessage(err),
				"duration_ms", time.Since(start).Milliseconds(),
			)
			return mcp.NewToolResultError(agent.ToolErrorContent(err)), nil
		}
		s.logger.InfoContext(ctx, "mcp.tool.call",
			"capability", name,
			"duration_ms", time.Since(start).Milliseconds(),
		)
		if strings.HasPrefix(out, "Error: ") {
			return mcp.NewToolResultError(out), nil
		}
		return mcp.NewToolResultText(out), nil
	}
}

// ServeStdio serves the protocol on in and out until ctx is done or in is
// exhausted.
func (s *Server) ServeStdio(ctx context.Context, in io.Reader, out io.Writer) error {
	stdio := server.NewStdioServer(s.mcpServer)
	stdio.SetErrorLogger(slog.NewLogLogger(s.logger.Handler(), slog.LevelError))
	err := stdio.Listen(ctx, in, out)
	if errors.Is(err, context.Canceled) || errors.Is(err, io.EOF) {
		return nil
	}
	return err
}

// ServeStreamableHTTP serves the protocol over streamable HTTP on addr until
// ctx is done.
func (s *Server) ServeStreamableHTTP(ctx context.Context, addr string) error {
	httpServer := server.NewStreamableHTTPServer(s.mcpServer)

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("mcp.http.listening", "address", addr)
		errCh <- httpServer.Start(addr)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	}
}
