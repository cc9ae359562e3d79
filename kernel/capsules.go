package kernel

import (
	"fmt"

	"libtock/hal"
	"libtock/syscalls"

	"go.uber.org/zap"
)

// Driver numbers of the standard capsules.
const (
	DriverAlarm        uint = 0x00000
	DriverConsole      uint = 0x00001
	DriverLED          uint = 0x00002
	DriverButton       uint = 0x00003
	DriverADC          uint = 0x00005
	DriverDebug        uint = 0x00008
	DriverBLE          uint = 0x30000
	DriverTemperature  uint = 0x60000
	DriverHumidity     uint = 0x60001
	DriverAmbientLight uint = 0x60002
)

// Config selects the standard capsules New installs.
type Config struct {
	Buttons     int
	LEDs        []hal.LED
	Console     hal.Logger
	ADCChannels int
	Log         *zap.Logger
}

// New creates a kernel with the standard capsule set.
func New(cfg Config) *Kernel {
	k := NewEmpty(cfg.Log)
	k.capsules[DriverAlarm] = &alarmCapsule{k: k}
	k.capsules[DriverConsole] = &consoleCapsule{k: k, out: cfg.Console}
	k.capsules[DriverLED] = &ledCapsule{pins: cfg.LEDs, on: make([]bool, len(cfg.LEDs))}
	k.capsules[DriverButton] = newButtonCapsule(k, cfg.Buttons)
	k.capsules[DriverADC] = newADCCapsule(k, cfg.ADCChannels)
	k.capsules[DriverDebug] = &debugCapsule{k: k, out: cfg.Console}
	k.capsules[DriverBLE] = &bleCapsule{k: k}
	k.capsules[DriverTemperature] = &sensorCapsule{k: k, driver: DriverTemperature}
	k.capsules[DriverHumidity] = &sensorCapsule{k: k, driver: DriverHumidity}
	k.capsules[DriverAmbientLight] = &sensorCapsule{k: k, driver: DriverAmbientLight}
	return k
}

func success(v uint) int { return int(v) }

func errno(c syscalls.ErrorCode) int { return int(c) }

// buttonCapsule: command 0 count, 1 enable interrupt, 2 disable interrupt,
// 3 read. Upcall on subscribe 0 with (button, state, 0), state 1 = pressed.
type buttonCapsule struct {
	k         *Kernel
	pressed   []bool
	interrupt []bool
}

func newButtonCapsule(k *Kernel, n int) *buttonCapsule {
	return &buttonCapsule{k: k, pressed: make([]bool, n), interrupt: make([]bool, n)}
}

func (c *buttonCapsule) Subscribes() uint { return 1 }
func (c *buttonCapsule) Allows() uint     { return 0 }

func (c *buttonCapsule) Command(command, arg1, _ uint) int {
	if command == 0 {
		return success(uint(len(c.pressed)))
	}
	if arg1 >= uint(len(c.pressed)) {
		return errno(syscalls.EINVAL)
	}
	switch command {
	case 1:
		c.interrupt[arg1] = true
		return 0
	case 2:
		c.interrupt[arg1] = false
		return 0
	case 3:
		if c.pressed[arg1] {
			return 1
		}
		return 0
	default:
		return errno(syscalls.ENOSUPPORT)
	}
}

func (c *buttonCapsule) set(button int, pressed bool) bool {
	if button < 0 || button >= len(c.pressed) {
		return false
	}
	if c.pressed[button] == pressed {
		return true
	}
	c.pressed[button] = pressed
	if !c.interrupt[button] {
		return true
	}
	var state uint
	if pressed {
		state = 1
	}
	c.k.schedule(DriverButton, 0, uint(button), state, 0)
	return true
}

// PressButton changes the state of a simulated button. An upcall is raised if
// interrupts are enabled for it. It reports false for an unknown button.
func (k *Kernel) PressButton(button int, pressed bool) bool {
	k.mu.Lock()
	defer k.mu.Unlock()
	c, found := k.capsules[DriverButton].(*buttonCapsule)
	if !found {
		return false
	}
	return c.set(button, pressed)
}

// ledCapsule: command 0 count, 1 on, 2 off, 3 toggle.
type ledCapsule struct {
	pins []hal.LED
	on   []bool
}

func (c *ledCapsule) Subscribes() uint { return 0 }
func (c *ledCapsule) Allows() uint     { return 0 }

func (c *ledCapsule) Command(command, arg1, _ uint) int {
	if command == 0 {
		return success(uint(len(c.pins)))
	}
	if arg1 >= uint(len(c.pins)) {
		return errno(syscalls.EINVAL)
	}
	switch command {
	case 1:
		c.setLED(arg1, true)
	case 2:
		c.setLED(arg1, false)
	case 3:
		c.setLED(arg1, !c.on[arg1])
	default:
		return errno(syscalls.ENOSUPPORT)
	}
	return 0
}

func (c *ledCapsule) setLED(n uint, on bool) {
	c.on[n] = on
	if pin := c.pins[n]; pin != nil {
		if on {
			pin.High()
		} else {
			pin.Low()
		}
	}
}

// LEDStates returns the on/off state of each LED.
func (k *Kernel) LEDStates() []bool {
	k.mu.Lock()
	defer k.mu.Unlock()
	c, found := k.capsules[DriverLED].(*ledCapsule)
	if !found {
		return nil
	}
	out := make([]bool, len(c.on))
	copy(out, c.on)
	return out
}

// alarmCapsule: a 1 kHz alarm. Command 0 exists, 1 frequency, 2 now, 3 stop,
// 4 set absolute alarm. Upcall on subscribe 0 with (now, expiration, 0).
type alarmCapsule struct {
	k     *Kernel
	armed bool
	due   uint64
}

// AlarmFrequency is the tick rate of the simulated alarm in Hz.
const AlarmFrequency = 1000

func (c *alarmCapsule) Subscribes() uint { return 1 }
func (c *alarmCapsule) Allows() uint     { return 0 }

func (c *alarmCapsule) Command(command, arg1, _ uint) int {
	switch command {
	case 0:
		return 0
	case 1:
		return AlarmFrequency
	case 2:
		return success(uint(c.k.now))
	case 3:
		if !c.armed {
			return errno(syscalls.EALREADY)
		}
		c.armed = false
		return 0
	case 4:
		c.armed = true
		c.due = uint64(arg1)
		if c.due <= c.k.now {
			c.fire(c.k.now)
		}
		return success(arg1)
	default:
		return errno(syscalls.ENOSUPPORT)
	}
}

func (c *alarmCapsule) tick(now uint64) {
	if c.armed && now >= c.due {
		c.fire(now)
	}
}

func (c *alarmCapsule) fire(now uint64) {
	c.armed = false
	c.k.schedule(DriverAlarm, 0, uint(now), uint(c.due), 0)
}

// consoleCapsule: allow 1 is the write buffer, subscribe 1 the write-done
// upcall with (written, 0, 0), command 1 writes arg1 bytes of the buffer.
type consoleCapsule struct {
	k    *Kernel
	out  hal.Logger
	line []byte
	all  []byte
}

func (c *consoleCapsule) Subscribes() uint { return 2 }
func (c *consoleCapsule) Allows() uint     { return 2 }

func (c *consoleCapsule) Command(command, arg1, _ uint) int {
	switch command {
	case 0:
		return 0
	case 1:
		buf := c.k.grant(DriverConsole, 1)
		if buf == nil {
			return errno(syscalls.ERESERVE)
		}
		n := int(arg1)
		if n > len(buf) {
			n = len(buf)
		}
		c.write(buf[:n])
		c.k.schedule(DriverConsole, 1, uint(n), 0, 0)
		return 0
	default:
		return errno(syscalls.ENOSUPPORT)
	}
}

func (c *consoleCapsule) write(p []byte) {
	c.all = append(c.all, p...)
	for _, b := range p {
		if b != '\n' {
			c.line = append(c.line, b)
			continue
		}
		if c.out != nil {
			c.out.WriteLineBytes(c.line)
		}
		c.line = c.line[:0]
	}
}

// ConsoleOutput returns everything written to the console so far.
func (k *Kernel) ConsoleOutput() string {
	k.mu.Lock()
	defer k.mu.Unlock()
	c, found := k.capsules[DriverConsole].(*consoleCapsule)
	if !found {
		return ""
	}
	return string(c.all)
}

// debugCapsule is the low-level debug interface: command 1 alert code,
// 2 print one number, 3 print two numbers.
type debugCapsule struct {
	k     *Kernel
	out   hal.Logger
	codes []uint
}

func (c *debugCapsule) Subscribes() uint { return 0 }
func (c *debugCapsule) Allows() uint     { return 0 }

func (c *debugCapsule) Command(command, arg1, arg2 uint) int {
	switch command {
	case 0:
		return 0
	case 1:
		c.codes = append(c.codes, arg1)
		c.k.log.Warn("low-level debug status code", zap.Uint("code", arg1))
		c.print("LowLevelDebug: alert code", arg1)
	case 2:
		c.print("LowLevelDebug: print", arg1)
	case 3:
		c.print("LowLevelDebug: print", arg1, arg2)
	default:
		return errno(syscalls.ENOSUPPORT)
	}
	return 0
}

func (c *debugCapsule) print(prefix string, vals ...uint) {
	if c.out == nil {
		return
	}
	line := prefix
	for _, v := range vals {
		line += fmt.Sprintf(" %#x", v)
	}
	c.out.WriteLineString(line)
}

// StatusCodes returns the status codes reported through the debug capsule.
func (k *Kernel) StatusCodes() []uint {
	k.mu.Lock()
	defer k.mu.Unlock()
	c, found := k.capsules[DriverDebug].(*debugCapsule)
	if !found {
		return nil
	}
	out := make([]uint, len(c.codes))
	copy(out, c.codes)
	return out
}

// sensorCapsule serves a single-value environmental sensor: command 0 exists,
// 1 starts a reading that completes with an upcall (value, 0, 0).
type sensorCapsule struct {
	k      *Kernel
	driver uint
	value  uint
}

func (c *sensorCapsule) Subscribes() uint { return 1 }
func (c *sensorCapsule) Allows() uint     { return 0 }

func (c *sensorCapsule) Command(command, _, _ uint) int {
	switch command {
	case 0:
		return 0
	case 1:
		c.k.schedule(c.driver, 0, c.value, 0, 0)
		return 0
	default:
		return errno(syscalls.ENOSUPPORT)
	}
}

// SetSensor sets the value the sensor capsule on driver reports next.
func (k *Kernel) SetSensor(driver uint, value uint) bool {
	k.mu.Lock()
	defer k.mu.Unlock()
	c, found := k.capsules[driver].(*sensorCapsule)
	if !found {
		return false
	}
	c.value = value
	return true
}
