package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/payops/payops/internal/interfaces/cli/migrate"
	"github.com/payops/payops/internal/interfaces/cli/seed"
	"github.com/payops/payops/internal/interfaces/cli/server"
	"github.com/payops/payops/internal/interfaces/cli/sweep"
	"github.com/payops/payops/internal/interfaces/cli/token"
	"github.com/payops/payops/internal/interfaces/cli/worker"
	"github.com/payops/payops/internal/shared/version"
)

func main() {
	rootCmd := &cobra.Command{
		Use:     "payops",
		Short:   "PayOps - payment retry and dunning engine",
		Long:    `PayOps routes failed payments to a provider, schedules their retries and runs the dunning steps that remind clients and suspend unpaid subscriptions.`,
		Version: version.Current(),
	}

	rootCmd.AddCommand(
		server.NewCommand(),
		worker.NewCommand(),
		migrate.NewCommand(),
		seed.NewCommand(),
		sweep.NewCommand(),
		token.NewCommand(),
	)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
