package scheduler

import (
	"context"
	"log"
	"time"

	"github.com/robfig/cron/v3"

	"coursepay_backend/internals/configs"
	"coursepay_backend/internals/features/payment/zoyktech/service"
)

// SweepRunner is satisfied by *service.Sweeper.
type SweepRunner interface {
	RunOnce(ctx context.Context) (service.SweepReport, error)
}

// ── ENTRYPOINT: called from main.go. Returns nil when the sweep is disabled.
func StartSweepCron(cfg configs.SweepConfig, runner SweepRunner) (*cron.Cron, error) {
	if !cfg.Enabled || runner == nil {
		log.Printf("[SWEEP-CRON] disabled")
		return nil, nil
	}

	c := cron.New(cron.WithChain(
		cron.Recover(cron.DefaultLogger),
		cron.SkipIfStillRunning(cron.DefaultLogger),
	))

	timeout := jobTimeout(cfg.Schedule)
	_, err := c.AddFunc(cfg.Schedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		if _, err := runner.RunOnce(ctx); err != nil {
			log.Printf("[SWEEP-CRON] run error: %v", err)
		}
	})
	if err != nil {
		return nil, err
	}

	log.Printf("[SWEEP-CRON] started schedule=%q stale_after=%s expire_after=%s batch=%d",
		cfg.Schedule, cfg.StaleAfter, cfg.ExpireAfter, cfg.BatchSize)
	c.Start()
	return c, nil
}

// StopSweepCron waits for a running sweep to finish or ctx to expire.
func StopSweepCron(ctx context.Context, c *cron.Cron) {
	if c == nil {
		return
	}
	select {
	case <-c.Stop().Done():
		log.Printf("[SWEEP-CRON] stopped")
	case <-ctx.Done():
		log.Printf("[SWEEP-CRON] stop timed out: %v", ctx.Err())
	}
}

// jobTimeout keeps one run shorter than the interval for "@every" specs.
func jobTimeout(spec string) time.Duration {
	const def = 4 * time.Minute
	sched, err := cron.ParseStandard(spec)
	if err != nil {
		return def
	}
	if every, ok := sched.(cron.ConstantDelaySchedule); ok && every.Delay > 10*time.Second {
		return every.Delay - 5*time.Second
	}
	return def
}
