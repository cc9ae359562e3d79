// Package sensors reads the single-value environmental sensors.
package sensors

import (
	"fmt"

	"libtock/futures"
	"libtock/syscalls"
)

const (
	cmdCheck = 0
	cmdRead  = 1

	subscribeReading = 0
)

// Kind selects a sensor driver.
type Kind uint8

const (
	Temperature Kind = iota
	Humidity
	AmbientLight
)

// DriverNumber returns the kernel driver serving k.
func (k Kind) DriverNumber() uint {
	switch k {
	case Temperature:
		return 0x60000
	case Humidity:
		return 0x60001
	default:
		return 0x60002
	}
}

func (k Kind) String() string {
	switch k {
	case Temperature:
		return "temperature"
	case Humidity:
		return "humidity"
	case AmbientLight:
		return "ambient light"
	default:
		return fmt.Sprintf("Kind(%d)", uint8(k))
	}
}

// Reading is a raw sensor value: hundredths of a degree Celsius, hundredths of
// a percent relative humidity, or lux.
type Reading struct {
	Kind Kind
	Raw  uint
}

func (r Reading) String() string {
	switch r.Kind {
	case Temperature:
		return fmt.Sprintf("%d.%02d C", r.Raw/100, r.Raw%100)
	case Humidity:
		return fmt.Sprintf("%d.%02d %%", r.Raw/100, r.Raw%100)
	default:
		return fmt.Sprintf("%d lx", r.Raw)
	}
}

// Sensor is a handle to one sensor driver. It subscribes on the first Read
// and keeps the subscription until Close.
type Sensor struct {
	g    *syscalls.Gateway
	kind Kind
	rec  futures.EventRecord[uint]
	sub  syscalls.Subscription
}

// New returns a sensor handle for kind.
func New(g *syscalls.Gateway, kind Kind) *Sensor {
	return &Sensor{g: g, kind: kind}
}

// Kind returns the sensor kind.
func (s *Sensor) Kind() Kind { return s.kind }

// Present reports whether the kernel has this sensor.
func (s *Sensor) Present() bool {
	_, err := s.g.Command(s.kind.DriverNumber(), cmdCheck, 0, 0)
	return err == nil
}

// Read starts a measurement and returns a future that completes with it.
func (s *Sensor) Read() (futures.Future[Reading], error) {
	if !s.sub.Live() {
		sub, err := s.g.Subscribe(s.kind.DriverNumber(), subscribeReading, syscalls.ConsumerFunc(func(v, _, _ uint) {
			s.rec.Record(v)
		}))
		if err != nil {
			return nil, fmt.Errorf("%s: subscribe: %w", s.kind, err)
		}
		s.sub = sub
	}
	wait := s.rec.WaitForAny()
	if _, err := s.g.Command(s.kind.DriverNumber(), cmdRead, 0, 0); err != nil {
		return nil, fmt.Errorf("%s: read: %w", s.kind, err)
	}
	kind := s.kind
	return futures.Map[uint, Reading](wait, func(v uint) Reading {
		return Reading{Kind: kind, Raw: v}
	}), nil
}

// Close releases the reading subscription.
func (s *Sensor) Close() { s.sub.Release() }
