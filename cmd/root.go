// Package cmd defines and implements the CLI commands for the circularwatch executable.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/JakeFAU/circular-watch/internal/app"
	"github.com/JakeFAU/circular-watch/internal/config"
	"github.com/JakeFAU/circular-watch/internal/logging"
	"github.com/JakeFAU/circular-watch/internal/pipeline"
)

var (
	cfgFile string
	envFile string
)

// appKeyType is the key for storing the App in the context.
type appKeyType string

const appKey appKeyType = "app"

// App defines the application interface that commands will use.
// This allows us to inject a mock app during tests.
type App interface {
	Run(ctx context.Context) (pipeline.Outcome, error)
	Ready(ctx context.Context) error
	Logger() *zap.Logger
	Config() config.Config
	Close()
}

// newApp is the application factory. It's a variable so we can
// replace it with a mock factory in our tests.
var newApp = func(ctx context.Context, cfg config.Config, logger *zap.Logger) (App, error) {
	return app.New(ctx, cfg, logger)
}

// newRootCmd creates and configures the root command.
func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "circularwatch",
		Short: "Watches the RBI circular index and archives new circulars.",
		Long: `circularwatch checks the Reserve Bank of India circular index for a new
circular, archives its document, derives a compliance checklist and notifies
stakeholders. It is meant to be run on a schedule (run) or triggered over
HTTP (serve).`,
		SilenceUsage: true,

		// Builds the application after flags are parsed and before the subcommand's RunE.
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if err := loadEnv(envFile); err != nil {
				return err
			}
			cfg, err := config.Load(cfgFile)
			if err != nil {
				return err
			}
			logger, err := logging.New(logging.Options{
				Development: cfg.Logging.Development,
				File:        cfg.Logging.File,
			})
			if err != nil {
				return err
			}
			zap.ReplaceGlobals(logger)

			appInstance, err := newApp(cmd.Context(), cfg, logger)
			if err != nil {
				_ = logger.Sync()
				return fmt.Errorf("failed to initialize application services: %w", err)
			}

			ctx := context.WithValue(cmd.Context(), appKey, appInstance)
			cmd.SetContext(ctx)
			return nil
		},
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (YAML/JSON/TOML); defaults and CIRCULAR_* env vars apply")
	cmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "dotenv file loaded before configuration; ignored when absent")

	cmd.AddCommand(newRunCmd())
	cmd.AddCommand(newServeCmd())
	cmd.AddCommand(newVersionCmd())

	return cmd
}

// loadEnv populates the process environment from a dotenv file without
// overriding variables that are already set.
func loadEnv(path string) error {
	if path == "" {
		return nil
	}
	err := godotenv.Load(path)
	if err == nil || errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return fmt.Errorf("load env file %s: %w", path, err)
}

// closeApp shuts services down; subcommands defer it so it also runs when RunE fails.
func closeApp(appInstance App) {
	appInstance.Close()
	_ = appInstance.Logger().Sync()
}

func resolveApp(ctx context.Context) (App, error) {
	appInstance, ok := ctx.Value(appKey).(App)
	if !ok || appInstance == nil {
		return nil, errors.New("application services not initialized")
	}
	return appInstance, nil
}

// Execute is the main entry point.
func Execute() {
	if err := newRootCmd().ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
