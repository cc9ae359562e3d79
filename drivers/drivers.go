// Package drivers hands out the driver set of an application.
//
// The set is a singleton per gateway: the first Retrieve succeeds and every
// later call fails, so two parts of a program cannot both believe they own
// the same kernel subscriptions.
package drivers

import (
	"errors"

	"libtock/drivers/adc"
	"libtock/drivers/ble"
	"libtock/drivers/buttons"
	"libtock/drivers/console"
	"libtock/drivers/debug"
	"libtock/drivers/led"
	"libtock/drivers/sensors"
	"libtock/drivers/timer"
	"libtock/syscalls"
)

// ErrAlreadyRetrieved is returned by every Retrieve after the first.
var ErrAlreadyRetrieved = errors.New("drivers: already retrieved")

// Drivers is the set of driver factories available to an application.
type Drivers struct {
	Buttons        buttons.Factory
	LEDs           led.Factory
	Timer          timer.Factory
	Console        console.Factory
	ADC            adc.Factory
	BLEAdvertising ble.Advertising
	BLEScanning    ble.Scanning
	Debug          debug.Driver
	Temperature    *sensors.Sensor
	Humidity       *sensors.Sensor
	AmbientLight   *sensors.Sensor
}

// Retrieve returns the driver set of g. It succeeds once per gateway.
func Retrieve(g *syscalls.Gateway) (*Drivers, error) {
	if !g.ClaimDrivers() {
		return nil, ErrAlreadyRetrieved
	}
	return &Drivers{
		Buttons:        buttons.NewFactory(g),
		LEDs:           led.NewFactory(g),
		Timer:          timer.NewFactory(g),
		Console:        console.NewFactory(g),
		ADC:            adc.NewFactory(g),
		BLEAdvertising: ble.NewAdvertising(g),
		BLEScanning:    ble.NewScanning(g),
		Debug:          debug.New(g),
		Temperature:    sensors.New(g, sensors.Temperature),
		Humidity:       sensors.New(g, sensors.Humidity),
		AmbientLight:   sensors.New(g, sensors.AmbientLight),
	}, nil
}
