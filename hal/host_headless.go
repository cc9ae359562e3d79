//go:build !tinygo

package hal

import (
	"context"
	"fmt"
	"os"
	"time"
)

// HeadlessConfig controls the no-window host runner.
type HeadlessConfig struct {
	Enabled bool
	// Hz is the rate at which the clock is sampled and step is called.
	Hz int
	// Ticks stops the runner once the board clock reaches it; 0 runs until
	// ctx is done.
	Ticks uint64
}

// RunHeadless drives the board clock without opening a window. newApp gets the
// host HAL and returns a step function, called at cfg.Hz; the runner stops on
// the first step error.
func RunHeadless(ctx context.Context, newApp func(HAL) func() error, cfg HeadlessConfig) error {
	if cfg.Hz <= 0 {
		cfg.Hz = 1000
	}
	period := time.Second / time.Duration(cfg.Hz)
	if period <= 0 {
		return fmt.Errorf("hal: headless rate %d Hz is too high", cfg.Hz)
	}

	h := newHost(os.Stdout)
	step := newApp(h)

	t := time.NewTicker(period)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case now := <-t.C:
			h.t.catchUp(now)
			if step != nil {
				if err := step(); err != nil {
					return err
				}
			}
			if cfg.Ticks > 0 && h.t.seq >= cfg.Ticks {
				return nil
			}
		}
	}
}
