package mcp

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	mcpgo "github.com/felixgeelhaar/mcp-go"
	"github.com/felixgeelhaar/mcp-go/middleware"
	"github.com/felixgeelhaar/screenpass/adapter/cli"
	mcplocal "github.com/felixgeelhaar/screenpass/adapter/mcp"
	"github.com/felixgeelhaar/screenpass/pkg/config"
)

// registration adds one capability to the server. Optional ones only
// warn when they fail.
type registration struct {
	name     string
	register func(*mcpgo.Server, mcplocal.ToolDependencies) error
	optional bool
}

var registrations = []registration{
	{name: "tools", register: mcplocal.RegisterCLITools},
	{name: "resources", register: mcplocal.RegisterResources, optional: true},
	{name: "prompts", register: mcplocal.RegisterPrompts, optional: true},
}

// NewServer builds the screenpass MCP server with every tool, resource
// and prompt bound to cliApp.
func NewServer(cliApp *cli.App, logger *slog.Logger) (*mcpgo.Server, error) {
	if cliApp == nil {
		return nil, errors.New("CLI app is required")
	}
	if logger == nil {
		logger = slog.Default()
	}

	srv := mcpgo.NewServer(mcpgo.ServerInfo{
		Name:    "screenpass",
		Version: cli.Version,
		Capabilities: mcpgo.Capabilities{
			Tools:     true,
			Resources: true,
			Prompts:   true,
		},
	})

	deps := mcplocal.ToolDependencies{App: cliApp}
	for _, r := range registrations {
		err := r.register(srv, deps)
		switch {
		case err == nil:
		case r.optional:
			logger.Warn("skipping MCP capability", "capability", r.name, "error", err)
		default:
			return nil, fmt.Errorf("register MCP %s: %w", r.name, err)
		}
	}
	return srv, nil
}

// Serve runs the MCP server over HTTP until ctx is canceled.
func Serve(ctx context.Context, cfg *config.Config, cliApp *cli.App, logger *slog.Logger) error {
	if cfg == nil {
		return errors.New("config is required")
	}
	if logger == nil {
		logger = slog.Default()
	}

	srv, err := NewServer(cliApp, logger)
	if err != nil {
		return err
	}
	if cliApp.Principal == nil {
		logger.Warn("MCP_USER_ID not set; tools act anonymously")
	}

	logger.Info("mcp server listening", "addr", cfg.MCPAddr)
	return mcpgo.ServeHTTPWithMiddleware(ctx, srv, cfg.MCPAddr, nil, mcpgo.WithMiddleware(middlewareStack(cfg, logger)...))
}

// middlewareStack puts bearer auth in front of the default stack when a
// token is configured.
func middlewareStack(cfg *config.Config, logger *slog.Logger) []middleware.Middleware {
	log := slogAdapter{logger: logger}
	stack := middleware.DefaultStack(log)
	if cfg.MCPAuthToken == "" {
		logger.Warn("MCP auth token not set; requests will be unauthenticated")
		return stack
	}

	authenticator := middleware.BearerTokenAuthenticator(middleware.StaticTokens(map[string]*middleware.Identity{
		cfg.MCPAuthToken: {ID: "mcp", Name: "mcp"},
	}))
	return append([]middleware.Middleware{middleware.Auth(authenticator, middleware.WithAuthLogger(log))}, stack...)
}

// slogAdapter routes mcp-go middleware logs to slog.
type slogAdapter struct {
	logger *slog.Logger
}

func (a slogAdapter) Debug(msg string, fields ...middleware.Field) { a.log(slog.LevelDebug, msg, fields) }
func (a slogAdapter) Info(msg string, fields ...middleware.Field)  { a.log(slog.LevelInfo, msg, fields) }
func (a slogAdapter) Warn(msg string, fields ...middleware.Field)  { a.log(slog.LevelWarn, msg, fields) }
func (a slogAdapter) Error(msg string, fields ...middleware.Field) { a.log(slog.LevelError, msg, fields) }

func (a slogAdapter) log(level slog.Level, msg string, fields []middleware.Field) {
	attrs := make([]slog.Attr, 0, len(fields))
	for _, f := range fields {
		attrs = append(attrs, slog.Any(f.Key, f.Value))
	}
	a.logger.LogAttrs(context.Background(), level, msg, attrs...)
}
