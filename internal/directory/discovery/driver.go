package discovery

import (
	"context"
	"time"

	"go.uber.org/zap"
)

const (
	DefaultCooldown = 30 * time.Minute
	DefaultIdlePoll = time.Minute
)

type CycleRunner interface {
	RunCycle(ctx context.Context) (Outcome, error)
}

// Driver runs discovery cycles back to back until its context ends.
type Driver struct {
	runner   CycleRunner
	cooldown time.Duration
	idlePoll time.Duration
	logger   *zap.Logger
}

func NewDriver(runner CycleRunner, cooldown, idlePoll time.Duration, logger *zap.Logger) *Driver {
	if cooldown <= 0 {
		cooldown = DefaultCooldown
	}
	if idlePoll <= 0 {
		idlePoll = DefaultIdlePoll
	}
	return &Driver{
		runner:   runner,
		cooldown: cooldown,
		idlePoll: idlePoll,
		logger:   logger.Named("discovery_driver"),
	}
}

// Run blocks until ctx is cancelled and returns ctx.Err(). A failed cycle
// is followed by the cooldown, an idle one by the idle poll interval.
func (d *Driver) Run(ctx context.Context) error {
	d.logger.Info("Discovery loop started",
		zap.Duration("cooldown", d.cooldown),
		zap.Duration("idle_poll", d.idlePoll),
	)
	for {
		if err := ctx.Err(); err != nil {
			d.logger.Info("Discovery loop stopped")
			return err
		}

		outcome, err := d.runner.RunCycle(ctx)
		var wait time.Duration
		switch {
		case err != nil:
			if ctx.Err() != nil {
				continue
			}
			d.logger.Error("Discovery cycle failed, cooling down",
				zap.Error(err),
				zap.Duration("cooldown", d.cooldown),
			)
			wait = d.cooldown
		case outcome == OutcomeIdle:
			wait = d.idlePoll
		}

		if wait > 0 {
			if err := sleep(ctx, wait); err != nil {
				continue
			}
		}
	}
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
