package usecases

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/payops/payops/internal/domain/dunning"
)

type SweepDunningConfig struct {
	BatchSize   int
	Parallelism int
}

func (c SweepDunningConfig) normalized() SweepDunningConfig {
	if c.BatchSize <= 0 {
		c.BatchSize = 200
	}
	if c.Parallelism <= 0 {
		c.Parallelism = 4
	}
	return c
}

type SweepDunningResult struct {
	Scanned  int `json:"scanned"`
	Executed int `json:"executed"`
	Failed   int `json:"failed"`
	Skipped  int `json:"skipped"`
}

// SweepDunningUseCase executes the due steps of every open run. Runs are
// independent: each is advanced under its subscription lock, and a failing
// run only records its error.
type SweepDunningUseCase struct {
	orchestrator *Orchestrator
	cfg          SweepDunningConfig
}

func NewSweepDunningUseCase(orchestrator *Orchestrator, cfg SweepDunningConfig) *SweepDunningUseCase {
	return &SweepDunningUseCase{orchestrator: orchestrator, cfg: cfg.normalized()}
}

func (uc *SweepDunningUseCase) Execute(ctx context.Context) (*SweepDunningResult, error) {
	o := uc.orchestrator
	start := time.Now()
	var (
		scanned                   int
		executed, failed, skipped atomic.Int64
	)

	afterID := ""
	for {
		runs, err := o.runRepo.ListActive(ctx, afterID, uc.cfg.BatchSize)
		if err != nil {
			o.logger.Errorw("failed to list active dunning runs", "error", err)
			return nil, fmt.Errorf("failed to list active dunning runs: %w", err)
		}
		if len(runs) == 0 {
			break
		}
		scanned += len(runs)
		afterID = runs[len(runs)-1].ID()

		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(uc.cfg.Parallelism)
		for _, run := range runs {
			g.Go(func() error {
				n, err := uc.safeAdvance(gctx, run)
				executed.Add(int64(n))
				switch {
				case err == nil:
				case isBenign(err):
					skipped.Add(1)
					o.logger.Debugw("dunning run skipped", "run_id", run.ID(), "reason", err)
				default:
					failed.Add(1)
					o.logger.Errorw("dunning run processing failed", "run_id", run.ID(), "error", err)
				}
				return nil
			})
		}
		_ = g.Wait()

		if len(runs) < uc.cfg.BatchSize || ctx.Err() != nil {
			break
		}
	}

	result := &SweepDunningResult{
		Scanned:  scanned,
		Executed: int(executed.Load()),
		Failed:   int(failed.Load()),
		Skipped:  int(skipped.Load()),
	}
	o.metrics.ObserveSweep("dunning", start, result.Executed, result.Failed, result.Skipped)
	if result.Executed > 0 || result.Failed > 0 {
		o.logger.Infow("dunning sweep finished",
			"scanned", result.Scanned,
			"executed", result.Executed,
			"failed", result.Failed,
			"skipped", result.Skipped,
			"duration", time.Since(start),
		)
	}
	return result, nil
}

func (uc *SweepDunningUseCase) safeAdvance(ctx context.Context, run *dunning.Run) (n int, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic advancing run %s: %v", run.ID(), r)
		}
	}()
	release, err := uc.orchestrator.lockRun(ctx, run.OrganizationID(), run.SubscriptionID())
	if err != nil {
		return 0, err
	}
	defer release()
	return uc.orchestrator.advance(ctx, run.ID())
}
