package mcp

import (
	"errors"

	"github.com/felixgeelhaar/mcp-go"
	"github.com/felixgeelhaar/screenpass/adapter/cli"
)

// ToolDependencies provides handlers and context for MCP tools.
type ToolDependencies struct {
	App *cli.App
}

// toolset binds tool handlers to the CLI app they act through.
type toolset struct {
	app *cli.App
}

// RegisterCLITools registers MCP tools that mirror CLI functionality.
func RegisterCLITools(srv *mcp.Server, deps ToolDependencies) error {
	if srv == nil {
		return errors.New("server is required")
	}
	if deps.App == nil {
		return errors.New("app is required")
	}

	t := &toolset{app: deps.App}
	t.registerCoreTools(srv)
	t.registerSubscriptionTools(srv)
	t.registerPaymentTools(srv)
	t.registerAccessTools(srv)
	return nil
}

// ready returns the app once its container is wired.
func (t *toolset) ready() (*cli.App, error) {
	if t.app == nil || t.app.Container == nil {
		return nil, errors.New("tool requires database connection")
	}
	return t.app, nil
}
