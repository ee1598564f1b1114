package sweep

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/payops/payops/internal/infrastructure/database"
	"github.com/payops/payops/internal/interfaces/cli/bootstrap"
	httpRouter "github.com/payops/payops/internal/interfaces/http"
)

var (
	env     string
	timeout time.Duration
)

func NewCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sweep",
		Short: "Run the retry sweep, the dunning sweep and one outbox drain once",
		Long:  `Run every periodic engine job once, in scheduler order, and print the counters. Useful from cron or to catch up after downtime.`,
		RunE:  run,
	}

	cmd.Flags().StringVarP(&env, "env", "e", "development", "Environment (development, test, production)")
	cmd.Flags().DurationVar(&timeout, "timeout", 30*time.Minute, "Maximum duration of the run")

	return cmd
}

func run(cmd *cobra.Command, args []string) error {
	if timeout <= 0 {
		return fmt.Errorf("timeout must be positive, got %s", timeout)
	}

	cfg, log, err := bootstrap.InitWithDatabase(bootstrap.ResolveEnv(env))
	if err != nil {
		return err
	}
	defer database.Close()

	container := httpRouter.NewContainer(database.Get(), cfg, log)
	defer container.Shutdown()

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	result, err := container.SweepOnce(ctx)
	if err != nil {
		log.Errorw("sweep failed", "error", err)
		return fmt.Errorf("sweep failed: %w", err)
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(result)
}
