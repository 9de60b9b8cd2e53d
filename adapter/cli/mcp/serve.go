package mcp

import (
	"context"
	"errors"
	"io"
	"log/slog"

	"github.com/felixgeelhaar/screenpass/adapter/cli"
	mcpinternal "github.com/felixgeelhaar/screenpass/internal/mcp"
	"github.com/spf13/cobra"
)

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the MCP server",
	Long: `Start the MCP HTTP server. Tools act as MCP_USER_ID with
MCP_USER_ROLE; when MCP_USER_ID is unset the CLI --user principal is
used instead.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := cli.RequireApp()
		if err != nil {
			return err
		}
		container := a.Container
		cfg := *container.Config
		if serveAddr != "" {
			cfg.MCPAddr = serveAddr
		}

		principal := a.Principal
		if cfg.MCPUserID != "" {
			if principal, err = mcpinternal.PrincipalFromConfig(&cfg); err != nil {
				return err
			}
		}

		logger := newServerLogger(cmd.ErrOrStderr(), cfg.IsDevelopment() || cli.Verbose())
		err = mcpinternal.Serve(cmd.Context(), &cfg, mcpinternal.NewCLIApp(container, principal), logger)
		if err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	},
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "listen address (defaults to MCP_ADDR)")
}

func newServerLogger(out io.Writer, debug bool) *slog.Logger {
	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(out, &slog.HandlerOptions{
		Level: level,
	}))
}
