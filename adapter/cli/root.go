package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

var (
	cfgFile  string
	verbose  bool
	userFlag string
	roleFlag string
	logger   *slog.Logger
)

// annotationNoApp marks commands that run without the container.
const annotationNoApp = "screenpass/no-app"

type commandContext struct {
	correlationID uuid.UUID
	startedAt     time.Time
}

type commandContextKey struct{}

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "screenpass",
	Short: "Screenpass - subscription entitlements for streaming content",
	Long: `Screenpass manages user subscriptions to streaming plans, records
payments that activate them, and decides who may watch premium content.

Commands act as the user given by --user (or SCREENPASS_USER_ID) with
the role given by --role (or SCREENPASS_ROLE).`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if logger == nil {
			logger = slog.Default()
		}
		ctx := cmd.Context()
		if ctx == nil {
			ctx = context.Background()
		}
		info := commandContext{
			correlationID: uuid.New(),
			startedAt:     time.Now(),
		}
		cmd.SetContext(context.WithValue(ctx, commandContextKey{}, info))
		logger.Debug("command start",
			"command", cmd.CommandPath(),
			"correlation_id", info.correlationID.String(),
		)

		if cmd.Annotations[annotationNoApp] == "true" {
			return nil
		}
		return ensureApp(cmd.Context())
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger == nil {
			logger = slog.Default()
		}
		info, ok := cmd.Context().Value(commandContextKey{}).(commandContext)
		if !ok {
			return
		}
		logger.Debug("command end",
			"command", cmd.CommandPath(),
			"correlation_id", info.correlationID.String(),
			"duration_ms", time.Since(info.startedAt).Milliseconds(),
		)
	},
}

// ensureApp builds the App on first use and applies the principal flags.
func ensureApp(ctx context.Context) error {
	if app == nil && appFactory != nil {
		built, cleanup, err := appFactory(ctx, cfgFile)
		if err != nil {
			return err
		}
		app, appCleanup = built, cleanup
	}
	if app == nil {
		return nil
	}

	principal, err := ParsePrincipal(userFlag, roleFlag)
	if err != nil {
		return err
	}
	if principal != nil {
		app.Principal = principal
	}
	return nil
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute(ctx context.Context) {
	err := rootCmd.ExecuteContext(ctx)
	if appCleanup != nil {
		appCleanup()
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "YAML config file path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().StringVar(&userFlag, "user", os.Getenv("SCREENPASS_USER_ID"), "user id to act as")
	rootCmd.PersistentFlags().StringVar(&roleFlag, "role", os.Getenv("SCREENPASS_ROLE"), "role to act with (USER, ADMIN, SUPERADMIN)")
}

// AddCommand adds a command to the root command.
func AddCommand(cmd *cobra.Command) {
	rootCmd.AddCommand(cmd)
}

// SetLogger sets the CLI logger.
func SetLogger(l *slog.Logger) {
	logger = l
}

// Verbose reports whether --verbose was passed.
func Verbose() bool {
	return verbose
}

// ConfigFile returns the --config path.
func ConfigFile() string {
	return cfgFile
}

// Root returns the root command, for embedding and tests.
func Root() *cobra.Command {
	return rootCmd
}
