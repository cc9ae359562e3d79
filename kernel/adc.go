package kernel

import (
	"encoding/binary"

	"libtock/syscalls"
)

// ADC commands. The upcall on subscribe 0 carries the starting command as its
// first argument: (command, channel, value) for single and continuous
// sampling, (command, channel, samples) when a buffer has been filled.
const (
	adcCount              = 0
	adcSingle             = 1
	adcContinuous         = 2
	adcBuffered           = 3
	adcBufferedAlternate  = 4
	adcStop               = 5
	adcContinuousPeriodMS = 10
	adcMaxSample          = 0xFFF
)

type adcCapsule struct {
	k      *Kernel
	values []uint

	mode    uint
	channel uint
	period  uint64
	next    uint64
	fill    int
	buffer  uint
}

func newADCCapsule(k *Kernel, channels int) *adcCapsule {
	return &adcCapsule{k: k, values: make([]uint, channels)}
}

func (c *adcCapsule) Subscribes() uint { return 1 }
func (c *adcCapsule) Allows() uint     { return 2 }

func (c *adcCapsule) Command(command, arg1, arg2 uint) int {
	switch command {
	case adcCount:
		return success(uint(len(c.values)))
	case adcStop:
		c.mode = 0
		return 0
	}
	if arg1 >= uint(len(c.values)) {
		return errno(syscalls.EINVAL)
	}
	if c.mode != 0 {
		return errno(syscalls.EBUSY)
	}

	switch command {
	case adcSingle:
		c.k.schedule(DriverADC, 0, adcSingle, arg1, c.values[arg1])
		return 0
	case adcContinuous:
		c.start(adcContinuous, arg1, adcContinuousPeriodMS)
		return 0
	case adcBuffered, adcBufferedAlternate:
		if arg2 == 0 {
			return errno(syscalls.EINVAL)
		}
		if c.k.grant(DriverADC, 0) == nil {
			return errno(syscalls.ERESERVE)
		}
		if command == adcBufferedAlternate && c.k.grant(DriverADC, 1) == nil {
			return errno(syscalls.ERESERVE)
		}
		period := uint64(1000 / arg2)
		if period == 0 {
			period = 1
		}
		c.start(command, arg1, period)
		return 0
	default:
		return errno(syscalls.ENOSUPPORT)
	}
}

func (c *adcCapsule) start(mode, channel uint, period uint64) {
	c.mode = mode
	c.channel = channel
	c.period = period
	c.next = c.k.now + period
	c.fill = 0
	c.buffer = 0
}

func (c *adcCapsule) tick(now uint64) {
	for c.mode != 0 && c.next <= now {
		c.sample()
		c.next += c.period
	}
}

func (c *adcCapsule) sample() {
	v := c.values[c.channel]
	if c.mode == adcContinuous {
		c.k.schedule(DriverADC, 0, adcContinuous, c.channel, v)
		return
	}

	buf := c.k.grant(DriverADC, c.buffer)
	if len(buf) < 2 {
		// The buffer was revoked while sampling.
		c.mode = 0
		return
	}
	if c.fill*2+2 > len(buf) {
		// A smaller buffer was granted mid-fill.
		c.fill = 0
	}
	binary.LittleEndian.PutUint16(buf[c.fill*2:], uint16(v))
	c.fill++
	if (c.fill+1)*2 <= len(buf) {
		return
	}
	c.k.schedule(DriverADC, 0, c.mode, c.channel, uint(c.fill))
	c.fill = 0
	if c.mode == adcBufferedAlternate {
		c.buffer ^= 1
	}
}

// SetADC sets the value reported for an ADC channel. Values are clamped to
// 12 bits.
func (k *Kernel) SetADC(channel int, value uint) bool {
	k.mu.Lock()
	defer k.mu.Unlock()
	c, found := k.capsules[DriverADC].(*adcCapsule)
	if !found || channel < 0 || channel >= len(c.values) {
		return false
	}
	if value > adcMaxSample {
		value = adcMaxSample
	}
	c.values[channel] = value
	return true
}
