package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/felixgeelhaar/screenpass/adapter/cli"
	"github.com/felixgeelhaar/screenpass/adapter/cli/access"
	"github.com/felixgeelhaar/screenpass/adapter/cli/mcp"
	"github.com/felixgeelhaar/screenpass/adapter/cli/payment"
	"github.com/felixgeelhaar/screenpass/adapter/cli/plan"
	"github.com/felixgeelhaar/screenpass/adapter/cli/subscription"
	"github.com/felixgeelhaar/screenpass/internal/app"
	"github.com/felixgeelhaar/screenpass/pkg/config"
)

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelWarn,
	}))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh
		cancel()
	}()

	cli.SetLogger(logger)
	cli.SetAppFactory(func(ctx context.Context, cfgPath string) (*cli.App, func(), error) {
		cfg, err := config.LoadFile(cfgPath)
		if err != nil {
			return nil, nil, err
		}

		level := slog.LevelWarn
		if cfg.IsDevelopment() || cli.Verbose() {
			level = slog.LevelDebug
		}
		containerLogger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

		container, err := app.NewContainer(ctx, cfg, containerLogger)
		if err != nil {
			return nil, nil, err
		}
		// The principal is applied from --user and --role after the factory returns.
		return cli.NewApp(container, nil), container.Close, nil
	})

	cli.AddCommand(subscription.Cmd)
	cli.AddCommand(payment.Cmd)
	cli.AddCommand(plan.Cmd)
	cli.AddCommand(access.Cmd)
	cli.AddCommand(mcp.Cmd)

	cli.Execute(ctx)
}
