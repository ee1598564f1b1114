package main

import (
	"os"

	"github.com/payops/payops/internal/interfaces/cli/worker"
)

// The standalone worker binary runs only the scheduled jobs.
func main() {
	if err := worker.NewCommand().Execute(); err != nil {
		os.Exit(1)
	}
}
