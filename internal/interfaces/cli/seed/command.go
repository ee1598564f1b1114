package seed

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/payops/payops/internal/infrastructure/database"
	"github.com/payops/payops/internal/infrastructure/seeds"
	"github.com/payops/payops/internal/interfaces/cli/bootstrap"
	httpRouter "github.com/payops/payops/internal/interfaces/http"
)

var (
	env  string
	path string
)

func NewCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Load default policies, dunning configs, routing rules and bundles",
		Long: `Validate a seed file and upsert its retry policies, dunning configs and service bundles.
Routing rules whose name already exists for the company are left untouched, so the command can run on every deploy.`,
		RunE: run,
	}

	cmd.Flags().StringVarP(&env, "env", "e", "development", "Environment (development, test, production)")
	cmd.Flags().StringVarP(&path, "file", "f", "", "Seed file (default: seeds.path from the configuration)")

	return cmd
}

func run(cmd *cobra.Command, args []string) error {
	cfg, log, err := bootstrap.InitWithDatabase(bootstrap.ResolveEnv(env))
	if err != nil {
		return err
	}
	defer database.Close()

	if path == "" {
		path = cfg.Seeds.Path
	}
	file, err := seeds.LoadFile(path)
	if err != nil {
		return err
	}

	container := httpRouter.NewContainer(database.Get(), cfg, log)
	defer container.Shutdown()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	report, err := container.Seeder().Apply(ctx, file)
	if err != nil {
		log.Errorw("seeding failed", "error", err, "file", path)
		return fmt.Errorf("seeding failed: %w", err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Seeded %s\n", path)
	fmt.Fprintf(out, "  Retry policies:  %d created, %d updated\n", report.PoliciesCreated, report.PoliciesUpdated)
	fmt.Fprintf(out, "  Dunning configs: %d created, %d updated\n", report.ConfigsCreated, report.ConfigsUpdated)
	fmt.Fprintf(out, "  Routing rules:   %d created, %d skipped\n", report.RulesCreated, report.RulesSkipped)
	fmt.Fprintf(out, "  Service bundles: %d saved\n", report.BundlesSaved)
	return nil
}
