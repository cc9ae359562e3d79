//go:build !tinygo

package main

import (
	"context"

	"libtock/app"
	"libtock/executor"
	"libtock/hal"
	"libtock/internal/sim"
	"libtock/syscalls"

	"go.uber.org/zap"
)

func setLoggers(log *zap.Logger) {
	syscalls.SetLogger(log.Named("syscalls"))
	executor.SetLogger(log.Named("executor"))
}

// runHeadless ticks the board without a window and reads board input from an
// interactive prompt. Leaving the prompt stops the simulator.
func runHeadless(ctx context.Context, appCfg app.Config, cfg hal.HeadlessConfig) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var sys *app.System
	err := hal.RunHeadless(ctx, func(h hal.HAL) func() error {
		s, err := app.NewSystem(h, appCfg)
		if err != nil {
			return func() error { return err }
		}
		sys = s
		s.Start()

		sh := sim.NewShell(s.Kernel())
		go func() {
			defer cancel()
			sh.Run()
		}()
		return s.Step
	}, cfg)
	if sys != nil {
		sys.Close()
	}
	return err
}
