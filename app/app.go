// Package app wires a simulated board: the host kernel, the gateway, the
// executor and one demo application.
package app

import (
	"context"
	"fmt"
	"sync"

	"libtock/drivers"
	"libtock/executor"
	"libtock/hal"
	"libtock/kernel"
	"libtock/syscalls"

	"go.uber.org/zap"
)

// DefaultADCChannels is the channel count of the simulated converter.
const DefaultADCChannels = 2

// Config selects the application and logging.
type Config struct {
	Demo        string
	ADCChannels int
	Log         *zap.Logger
}

// System is one simulated board running one application.
type System struct {
	h   hal.HAL
	k   *kernel.Kernel
	g   *syscalls.Gateway
	ex  *executor.Executor
	log *zap.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu   sync.Mutex
	done bool
	err  error
}

// NewSystem builds the board and spawns the demo. Nothing runs until Start.
func NewSystem(h hal.HAL, cfg Config) (*System, error) {
	if cfg.Log == nil {
		cfg.Log = zap.NewNop()
	}
	if cfg.ADCChannels <= 0 {
		cfg.ADCChannels = DefaultADCChannels
	}
	if cfg.Demo == "" {
		cfg.Demo = DemoButtonLEDs
	}

	buttons := 0
	if b := h.Buttons(); b != nil {
		buttons = b.Count()
	}
	k := kernel.New(kernel.Config{
		Buttons:     buttons,
		LEDs:        h.LEDs(),
		Console:     h.Logger(),
		ADCChannels: cfg.ADCChannels,
		Log:         cfg.Log.Named("kernel"),
	})
	g := syscalls.New(k)
	ex := executor.New(g)

	d, err := drivers.Retrieve(g)
	if err != nil {
		return nil, err
	}
	spawn, ok := demos[cfg.Demo]
	if !ok {
		return nil, fmt.Errorf("app: unknown demo %q", cfg.Demo)
	}
	if err := spawn(ex, d); err != nil {
		return nil, fmt.Errorf("app: start %s: %w", cfg.Demo, err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	s := &System{
		h:      h,
		k:      k,
		g:      g,
		ex:     ex,
		log:    cfg.Log,
		ctx:    ctx,
		cancel: cancel,
	}
	installPanicHandler(s)
	s.log.Info("system ready", zap.String("demo", cfg.Demo), zap.Int("buttons", buttons))
	return s, nil
}

// Kernel returns the simulated kernel, for injecting hardware events.
func (s *System) Kernel() *kernel.Kernel { return s.k }

// Start runs the application on its own goroutine and forwards HAL input and
// ticks to the kernel.
func (s *System) Start() {
	if b := s.h.Buttons(); b != nil {
		if ch := b.Events(); ch != nil {
			s.wg.Add(1)
			go func() {
				defer s.wg.Done()
				for {
					select {
					case <-s.ctx.Done():
						return
					case ev := <-ch:
						s.k.PressButton(ev.Button, ev.Pressed)
					}
				}
			}()
		}
	}

	if ht := s.h.Time(); ht != nil {
		if ch := ht.Ticks(); ch != nil {
			s.wg.Add(1)
			go func() {
				defer s.wg.Done()
				for {
					select {
					case <-s.ctx.Done():
						return
					case seq := <-ch:
						s.k.TickTo(seq)
					}
				}
			}()
		}
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		err := s.ex.Run(s.ctx)
		s.mu.Lock()
		s.done, s.err = true, err
		s.mu.Unlock()
		if err != nil && s.ctx.Err() == nil {
			s.log.Error("application stopped", zap.Error(err))
			return
		}
		s.log.Info("application finished")
	}()
}

// Step reports the application's exit error once it has stopped. A finished
// application is not an error: the board keeps running.
func (s *System) Step() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.done && s.ctx.Err() == nil {
		return s.err
	}
	return nil
}

// Close stops the application and waits for the system goroutines.
func (s *System) Close() {
	s.cancel()
	s.k.Interrupt()
	s.wg.Wait()
}

// NewWithConfig builds and starts a system; it returns the per-tick step of
// the host runners.
func NewWithConfig(h hal.HAL, cfg Config) func() error {
	s, err := NewSystem(h, cfg)
	if err != nil {
		return func() error { return err }
	}
	s.Start()
	return s.Step
}
