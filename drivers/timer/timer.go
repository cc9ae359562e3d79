// Package timer drives the kernel alarm capsule.
//
// Two front ends share the capsule: Timer hands every alarm upcall to a user
// callback, and Driver multiplexes concurrent Sleep futures onto the single
// hardware alarm. Only one of them can be live at a time because both
// subscribe the same upcall.
package timer

import (
	"errors"
	"fmt"
	"time"

	"libtock/futures"
	"libtock/syscalls"

	"go.uber.org/zap"
)

const DriverNumber = 0x00000

const (
	cmdCheck     = 0
	cmdFrequency = 1
	cmdNow       = 2
	cmdStop      = 3
	cmdSetAlarm  = 4

	subscribeCallback = 0
)

const maxSleepers = 8

// ErrTooManySleepers is returned by a Sleep future when every sleeper slot is busy.
var ErrTooManySleepers = errors.New("timer: too many concurrent sleeps")

// Factory initializes either front end.
type Factory struct {
	g *syscalls.Gateway
}

// NewFactory returns a factory bound to g.
func NewFactory(g *syscalls.Gateway) Factory { return Factory{g: g} }

func (f Factory) frequency() (uint, error) {
	if _, err := f.g.Command(DriverNumber, cmdCheck, 0, 0); err != nil {
		return 0, fmt.Errorf("timer: check: %w", err)
	}
	hz, err := f.g.Command(DriverNumber, cmdFrequency, 0, 0)
	if err != nil {
		return 0, fmt.Errorf("timer: frequency: %w", err)
	}
	if hz == 0 {
		return 0, errors.New("timer: kernel reported zero frequency")
	}
	return hz, nil
}

func ticks(d time.Duration, hz uint) uint {
	if d <= 0 {
		return 0
	}
	return uint(d.Milliseconds()) * hz / 1000
}

// WithCallback prepares a Timer that invokes fn(clock) on every alarm.
func (f Factory) WithCallback(fn func(clock uint)) WithCallback {
	return WithCallback{g: f.g, fn: fn}
}

// WithCallback is a Timer that has not subscribed yet.
type WithCallback struct {
	g  *syscalls.Gateway
	fn func(clock uint)
}

// Init subscribes the callback.
func (w WithCallback) Init() (*Timer, error) {
	hz, err := Factory{g: w.g}.frequency()
	if err != nil {
		return nil, err
	}
	t := &Timer{g: w.g, hz: hz}
	fn := w.fn
	t.sub, err = w.g.Subscribe(DriverNumber, subscribeCallback, syscalls.ConsumerFunc(func(clock, _, _ uint) {
		fn(clock)
	}))
	if err != nil {
		return nil, fmt.Errorf("timer: subscribe: %w", err)
	}
	return t, nil
}

// Timer exposes the raw alarm with a user callback.
type Timer struct {
	g   *syscalls.Gateway
	hz  uint
	sub syscalls.Subscription
}

// Frequency returns the clock rate in Hz.
func (t *Timer) Frequency() uint { return t.hz }

// Clock returns the current counter value.
func (t *Timer) Clock() (uint, error) {
	return t.g.Command(DriverNumber, cmdNow, 0, 0)
}

// SetAlarm arms the alarm d from now and returns the absolute due value.
func (t *Timer) SetAlarm(d time.Duration) (uint, error) {
	now, err := t.Clock()
	if err != nil {
		return 0, err
	}
	return t.g.Command(DriverNumber, cmdSetAlarm, now+ticks(d, t.hz), 0)
}

// StopAlarm disarms a pending alarm. It fails with EALREADY when none is armed.
func (t *Timer) StopAlarm() error {
	_, err := t.g.Command(DriverNumber, cmdStop, 0, 0)
	return err
}

// Close releases the callback subscription.
func (t *Timer) Close() { t.sub.Release() }

type sleeper struct {
	inUse bool
	gen   uint16
	due   uint
}

// Driver multiplexes Sleep futures over the alarm.
type Driver struct {
	g        *syscalls.Gateway
	hz       uint
	sub      syscalls.Subscription
	now      uint
	armed    bool
	armedAt  uint
	sleepers [maxSleepers]sleeper
}

// Init subscribes the alarm upcall for sleeping.
func (f Factory) Init() (*Driver, error) {
	hz, err := f.frequency()
	if err != nil {
		return nil, err
	}
	d := &Driver{g: f.g, hz: hz}
	d.sub, err = f.g.Subscribe(DriverNumber, subscribeCallback, syscalls.ConsumerFunc(d.alarm))
	if err != nil {
		return nil, fmt.Errorf("timer: subscribe: %w", err)
	}
	return d, nil
}

func (d *Driver) alarm(clock, _, _ uint) {
	d.armed = false
	if clock > d.now {
		d.now = clock
	}
}

// Frequency returns the clock rate in Hz.
func (d *Driver) Frequency() uint { return d.hz }

// Now reads the counter and advances the driver's notion of time.
func (d *Driver) Now() (uint, error) {
	now, err := d.g.Command(DriverNumber, cmdNow, 0, 0)
	if err != nil {
		return 0, err
	}
	if now > d.now {
		d.now = now
	}
	return now, nil
}

// Sleep returns a future that completes once d has elapsed. The clock is read
// on the first poll. A sleep that is given up before it completes must be
// cancelled (futures.Cancel, Select2 or Executor.Cancel do this) to free its
// slot; otherwise the slot is only reclaimed once the due time has passed.
func (d *Driver) Sleep(dur time.Duration) futures.Future[error] {
	return &sleepFuture{d: d, dur: dur, slot: -1}
}

// Close stops a pending alarm and releases the subscription.
func (d *Driver) Close() {
	if d.armed {
		if _, err := d.g.Command(DriverNumber, cmdStop, 0, 0); err != nil {
			syscalls.Logger().Debug("timer: stop on close failed", zap.Error(err))
		}
		d.armed = false
	}
	d.sub.Release()
}

func (d *Driver) alloc(due uint) (int, uint16, bool) {
	for i := range d.sleepers {
		s := &d.sleepers[i]
		if !s.inUse {
			s.gen++
			s.inUse, s.due = true, due
			return i, s.gen, true
		}
	}
	return -1, 0, false
}

// free gives back slot if it still belongs to the holder of gen.
func (d *Driver) free(slot int, gen uint16) {
	if slot < 0 {
		return
	}
	if s := &d.sleepers[slot]; s.inUse && s.gen == gen {
		s.inUse = false
	}
}

// rearm frees expired sleepers and points the alarm at the earliest remaining
// one. With no sleeper left a pending alarm is stopped.
func (d *Driver) rearm() error {
	var next uint
	found := false
	for i := range d.sleepers {
		s := &d.sleepers[i]
		if !s.inUse {
			continue
		}
		if s.due <= d.now {
			s.inUse = false
			continue
		}
		if !found || s.due < next {
			next, found = s.due, true
		}
	}
	if !found {
		if d.armed {
			d.armed = false
			if _, err := d.g.Command(DriverNumber, cmdStop, 0, 0); err != nil {
				syscalls.Logger().Debug("timer: stop idle alarm failed", zap.Error(err))
			}
		}
		return nil
	}
	if d.armed && d.armedAt == next {
		return nil
	}
	if _, err := d.g.Command(DriverNumber, cmdSetAlarm, next, 0); err != nil {
		return err
	}
	d.armed, d.armedAt = true, next
	return nil
}

type sleepFuture struct {
	d         *Driver
	dur       time.Duration
	started   bool
	done      bool
	cancelled bool
	due       uint
	slot      int
	gen       uint16
}

func (f *sleepFuture) Poll() (error, bool) {
	switch {
	case f.done:
		return nil, true
	case f.cancelled:
		return nil, false
	}
	d := f.d
	if !f.started {
		now, err := d.Now()
		if err != nil {
			return err, true
		}
		f.started = true
		f.due = now + ticks(f.dur, d.hz)
		if f.due <= d.now {
			f.done = true
			return nil, true
		}
		slot, gen, ok := d.alloc(f.due)
		if !ok {
			f.done = true
			return ErrTooManySleepers, true
		}
		f.slot, f.gen = slot, gen
	}
	if f.due <= d.now {
		f.release()
		f.done = true
		return d.rearm(), true
	}
	if err := d.rearm(); err != nil {
		return err, true
	}
	return nil, false
}

// Cancel gives the sleeper slot back. The future never completes afterwards.
func (f *sleepFuture) Cancel() {
	if f.done || f.cancelled {
		return
	}
	f.cancelled = true
	if f.slot < 0 {
		return
	}
	f.release()
	if err := f.d.rearm(); err != nil {
		syscalls.Logger().Debug("timer: rearm after cancel failed", zap.Error(err))
	}
}

func (f *sleepFuture) release() {
	f.d.free(f.slot, f.gen)
	f.slot = -1
}
