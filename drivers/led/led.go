// Package led drives the kernel LED capsule.
package led

import (
	"fmt"

	"libtock/syscalls"
)

const DriverNumber = 0x00002

const (
	cmdCount  = 0
	cmdOn     = 1
	cmdOff    = 2
	cmdToggle = 3
)

// Factory initializes the LED driver.
type Factory struct {
	g *syscalls.Gateway
}

// NewFactory returns a factory bound to g.
func NewFactory(g *syscalls.Gateway) Factory { return Factory{g: g} }

// Init queries the number of LEDs.
func (f Factory) Init() (*Driver, error) {
	n, err := f.g.Command(DriverNumber, cmdCount, 0, 0)
	if err != nil {
		return nil, fmt.Errorf("led: count: %w", err)
	}
	return &Driver{g: f.g, count: int(n)}, nil
}

// Driver is an initialized LED driver.
type Driver struct {
	g     *syscalls.Gateway
	count int
}

// Count returns the number of LEDs.
func (d *Driver) Count() int { return d.count }

// Get returns the handle of LED n.
func (d *Driver) Get(n int) (LED, bool) {
	if n < 0 || n >= d.count {
		return LED{}, false
	}
	return LED{g: d.g, num: uint(n)}, true
}

// All returns a handle for every LED.
func (d *Driver) All() []LED {
	out := make([]LED, d.count)
	for i := range out {
		out[i] = LED{g: d.g, num: uint(i)}
	}
	return out
}

// LED is a handle to one LED.
type LED struct {
	g   *syscalls.Gateway
	num uint
}

// Number returns the LED index.
func (l LED) Number() int { return int(l.num) }

func (l LED) On() error     { return l.cmd(cmdOn) }
func (l LED) Off() error    { return l.cmd(cmdOff) }
func (l LED) Toggle() error { return l.cmd(cmdToggle) }

// Set switches the LED on or off.
func (l LED) Set(on bool) error {
	if on {
		return l.On()
	}
	return l.Off()
}

func (l LED) cmd(c uint) error {
	_, err := l.g.Command(DriverNumber, c, l.num, 0)
	return err
}
