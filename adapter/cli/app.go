package cli

import (
	"context"
	"errors"
	"fmt"

	internalApp "github.com/felixgeelhaar/screenpass/internal/app"
	"github.com/felixgeelhaar/screenpass/internal/subscriptions/domain"
	"github.com/google/uuid"
)

// App holds the CLI application dependencies.
type App struct {
	Container *internalApp.Container

	// Principal is the caller commands act as. Nil runs anonymously.
	Principal *domain.Principal
}

// AppFactory builds the App for a config file path, returning a cleanup func.
type AppFactory func(ctx context.Context, cfgPath string) (*App, func(), error)

var (
	app        *App
	appFactory AppFactory
	appCleanup func()
)

// NewApp creates a new CLI application backed by container.
func NewApp(container *internalApp.Container, principal *domain.Principal) *App {
	return &App{Container: container, Principal: principal}
}

// SetApp sets the global CLI application instance.
func SetApp(a *App) {
	app = a
}

// GetApp returns the global CLI application instance.
func GetApp() *App {
	return app
}

// SetAppFactory installs the lazy builder used when no App has been set.
func SetAppFactory(f AppFactory) {
	appFactory = f
}

// RequireApp returns the App, or an error when commands cannot run.
func RequireApp() (*App, error) {
	if app == nil || app.Container == nil {
		return nil, errors.New("application not initialized - database connection required")
	}
	return app, nil
}

// RequirePrincipal returns the acting caller.
func (a *App) RequirePrincipal() (*domain.Principal, error) {
	if a.Principal == nil {
		return nil, fmt.Errorf("%w: pass --user or set SCREENPASS_USER_ID", domain.ErrAuthenticationRequired)
	}
	return a.Principal, nil
}

// RequireAdmin returns the acting caller when it holds an admin role.
func (a *App) RequireAdmin() (*domain.Principal, error) {
	p, err := a.RequirePrincipal()
	if err != nil {
		return nil, err
	}
	if !p.IsAdmin() {
		return nil, domain.ErrAdminRequired
	}
	return p, nil
}

// ParsePrincipal builds a principal from flag values. An empty user id
// yields nil.
func ParsePrincipal(userID, role string) (*domain.Principal, error) {
	if userID == "" {
		return nil, nil
	}
	id, err := uuid.Parse(userID)
	if err != nil {
		return nil, fmt.Errorf("invalid user id %q: %w", userID, err)
	}
	return &domain.Principal{UserID: id, Role: domain.ParseRole(role)}, nil
}
