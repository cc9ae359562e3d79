// Package buttons drives the kernel button capsule.
//
// Each driver keeps one subscription to the button upcall and records the
// latest event in a futures.EventRecord; WaitForEvent and the per-button
// waiters resolve against that record.
package buttons

import (
	"fmt"

	"libtock/futures"
	"libtock/syscalls"
)

const DriverNumber = 0x00003

const (
	cmdCount            = 0
	cmdEnableInterrupt  = 1
	cmdDisableInterrupt = 2
	cmdRead             = 3

	subscribeCallback = 0
)

// State is the level of a button.
type State uint8

const (
	Released State = iota
	Pressed
)

func (s State) String() string {
	switch s {
	case Released:
		return "released"
	case Pressed:
		return "pressed"
	default:
		return fmt.Sprintf("State(%d)", uint8(s))
	}
}

func stateOf(v uint) (State, bool) {
	switch v {
	case 0:
		return Released, true
	case 1:
		return Pressed, true
	default:
		return 0, false
	}
}

// Event is one button edge reported by the kernel.
type Event struct {
	State  State
	Button int
}

// Factory initializes the button driver.
type Factory struct {
	g *syscalls.Gateway
}

// NewFactory returns a factory bound to g.
func NewFactory(g *syscalls.Gateway) Factory { return Factory{g: g} }

// Init queries the button count and subscribes the event upcall.
func (f Factory) Init() (*Driver, error) {
	n, err := f.g.Command(DriverNumber, cmdCount, 0, 0)
	if err != nil {
		return nil, fmt.Errorf("buttons: count: %w", err)
	}
	d := &Driver{g: f.g, count: int(n)}
	d.sub, err = f.g.Subscribe(DriverNumber, subscribeCallback, &d.events)
	if err != nil {
		return nil, fmt.Errorf("buttons: subscribe: %w", err)
	}
	return d, nil
}

// eventRecorder turns the (button, state, _) upcall into Events.
type eventRecorder struct {
	rec futures.EventRecord[Event]
}

func (r *eventRecorder) Receive(button, state, _ uint) {
	s, ok := stateOf(state)
	if !ok {
		return
	}
	r.rec.Record(Event{State: s, Button: int(button)})
}

// Driver is an initialized button driver. Close it to release the subscription.
type Driver struct {
	g      *syscalls.Gateway
	count  int
	events eventRecorder
	sub    syscalls.Subscription
}

// Count returns the number of buttons on the board.
func (d *Driver) Count() int { return d.count }

// Button returns the handle for button n.
func (d *Driver) Button(n int) (Button, bool) {
	if n < 0 || n >= d.count {
		return Button{}, false
	}
	return Button{d: d, num: n}, true
}

// All returns handles for every button.
func (d *Driver) All() []Button {
	out := make([]Button, d.count)
	for i := range out {
		out[i] = Button{d: d, num: i}
	}
	return out
}

// WaitForEvent resolves with the next event on any button.
func (d *Driver) WaitForEvent() futures.Future[Event] {
	return d.events.rec.WaitForAny()
}

// Close releases the event subscription.
func (d *Driver) Close() { d.sub.Release() }

// Button is a handle to a single button.
type Button struct {
	d   *Driver
	num int
}

// Number returns the button index.
func (b Button) Number() int { return b.num }

// Read samples the current level.
func (b Button) Read() (State, error) {
	v, err := b.d.g.Command(DriverNumber, cmdRead, uint(b.num), 0)
	if err != nil {
		return Released, err
	}
	s, ok := stateOf(v)
	if !ok {
		return Released, fmt.Errorf("buttons: read %d: unexpected level %d", b.num, v)
	}
	return s, nil
}

// EnableInterrupt asks the kernel to report edges of this button.
func (b Button) EnableInterrupt() error {
	_, err := b.d.g.Command(DriverNumber, cmdEnableInterrupt, uint(b.num), 0)
	return err
}

// DisableInterrupt stops edge reports for this button.
func (b Button) DisableInterrupt() error {
	_, err := b.d.g.Command(DriverNumber, cmdDisableInterrupt, uint(b.num), 0)
	return err
}

// WaitForPressed resolves on the next press of this button. Events on other
// buttons are skipped.
func (b Button) WaitForPressed() futures.Future[Event] {
	return b.waitFor(Pressed)
}

// WaitForReleased resolves on the next release of this button.
func (b Button) WaitForReleased() futures.Future[Event] {
	return b.waitFor(Released)
}

func (b Button) waitFor(s State) futures.Future[Event] {
	return b.d.events.rec.WaitFor(func(e Event) bool {
		return e.Button == b.num && e.State == s
	})
}
