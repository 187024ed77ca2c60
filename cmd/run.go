package cmd

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/JakeFAU/circular-watch/internal/metrics"
)

// newRunCmd creates the 'run' subcommand, which performs exactly one pipeline run.
func newRunCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Check for a new circular and process it",
		Long: `Performs one run: render the circular index, compare the latest circular with
the recorded state and, when it is new, archive it, generate a checklist and
notify stakeholders. Exits non-zero on failure so the scheduler can alert.`,
		Args: cobra.NoArgs,
		RunE: runRunCommand,
	}
}

func runRunCommand(cmd *cobra.Command, _ []string) error {
	appInstance, err := resolveApp(cmd.Context())
	if err != nil {
		return err
	}
	defer closeApp(appInstance)
	logger := appInstance.Logger()
	cfg := appInstance.Config()

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	outcome, runErr := appInstance.Run(ctx)

	if cfg.Metrics.PushgatewayURL != "" {
		pushCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := metrics.Push(pushCtx, cfg.Metrics.PushgatewayURL, cfg.Metrics.Job); err != nil {
			logger.Warn("metrics push failed", zap.Error(err))
		}
	}

	if runErr != nil {
		return fmt.Errorf("run: %w", runErr)
	}
	fmt.Fprintln(cmd.OutOrStdout(), outcome)
	return nil
}
