package mcp

import (
	"github.com/felixgeelhaar/screenpass/adapter/cli"
	"github.com/felixgeelhaar/screenpass/internal/app"
	"github.com/felixgeelhaar/screenpass/internal/subscriptions/domain"
	"github.com/felixgeelhaar/screenpass/pkg/config"
)

// NewCLIApp creates a CLI application instance backed by the provided container.
func NewCLIApp(container *app.Container, principal *domain.Principal) *cli.App {
	return cli.NewApp(container, principal)
}

// PrincipalFromConfig resolves the caller MCP tools act as. An empty
// MCP_USER_ID leaves tools anonymous, which only reaches public data.
func PrincipalFromConfig(cfg *config.Config) (*domain.Principal, error) {
	return cli.ParsePrincipal(cfg.MCPUserID, cfg.MCPUserRole)
}
