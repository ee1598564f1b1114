package worker

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/payops/payops/internal/infrastructure/database"
	"github.com/payops/payops/internal/interfaces/cli/bootstrap"
	httpRouter "github.com/payops/payops/internal/interfaces/http"
	"github.com/payops/payops/internal/shared/version"
)

var env string

func NewCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "worker",
		Short: "Run the sweeps and the outbox drain without the HTTP API",
		Long:  `Run the retry sweep, the dunning sweep, the outbox drain and the payment link purge on their schedules until interrupted.`,
		RunE:  run,
	}

	cmd.Flags().StringVarP(&env, "env", "e", "development", "Environment (development, test, production)")

	return cmd
}

func run(cmd *cobra.Command, args []string) error {
	env = bootstrap.ResolveEnv(env)
	cfg, log, err := bootstrap.InitWithDatabase(env)
	if err != nil {
		return err
	}
	defer database.Close()

	log.Infow("starting worker", "environment", env, "version", version.Current())

	container := httpRouter.NewContainer(database.Get(), cfg, log)
	defer container.Shutdown()

	scheduler := container.Scheduler()
	scheduler.Start()
	for _, job := range scheduler.Jobs() {
		log.Infow("job registered", "name", job.Name(), "tags", job.Tags())
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Infow("worker shutting down, waiting for running jobs")
	return nil
}
