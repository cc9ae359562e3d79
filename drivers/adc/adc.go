// Package adc drives the kernel analog-to-digital converter capsule.
package adc

import (
	"encoding/binary"
	"fmt"

	"libtock/syscalls"

	"go.uber.org/zap"
)

const DriverNumber = 0x00005

const (
	cmdCount                     = 0
	cmdSingle                    = 1
	cmdContinuous                = 2
	cmdContinuousBuffered        = 3
	cmdContinuousBufferAlternate = 4
	cmdStop                      = 5

	subscribeCallback = 0
	allowBuffer       = 0
	allowAltBuffer    = 1

	// BufferSize is the byte size of a sample buffer; samples are 16-bit.
	BufferSize = 128
)

// Buffer is the storage shared with the kernel for buffered sampling.
type Buffer [BufferSize]byte

// Factory prepares the ADC driver.
type Factory struct {
	g *syscalls.Gateway
}

// NewFactory returns a factory bound to g.
func NewFactory(g *syscalls.Gateway) Factory { return Factory{g: g} }

// WithCallback prepares an ADC whose samples are delivered to fn. For single
// and continuous sampling value is the sample; for buffered sampling it is the
// number of samples written into the buffer.
func (f Factory) WithCallback(fn func(channel, value uint)) WithCallback {
	return WithCallback{g: f.g, fn: fn}
}

// WithCallback is an ADC that has not subscribed yet.
type WithCallback struct {
	g  *syscalls.Gateway
	fn func(channel, value uint)
}

// Init queries the channel count and subscribes the sample upcall.
func (w WithCallback) Init() (*ADC, error) {
	n, err := w.g.Command(DriverNumber, cmdCount, 0, 0)
	if err != nil {
		return nil, fmt.Errorf("adc: count: %w", err)
	}
	a := &ADC{g: w.g, count: n}
	fn := w.fn
	a.sub, err = w.g.Subscribe(DriverNumber, subscribeCallback, syscalls.ConsumerFunc(func(_, channel, value uint) {
		fn(channel, value)
	}))
	if err != nil {
		return nil, fmt.Errorf("adc: subscribe: %w", err)
	}
	return a, nil
}

// ADC is an initialized ADC driver.
type ADC struct {
	g     *syscalls.Gateway
	count uint
	sub   syscalls.Subscription
	buf   syscalls.SharedMemory
	alt   syscalls.SharedMemory
}

// Count returns the number of channels.
func (a *ADC) Count() uint { return a.count }

// InitBuffer shares b with the kernel as the primary sample buffer.
func (a *ADC) InitBuffer(b *Buffer) (syscalls.SharedMemory, error) {
	mem, err := a.g.Allow(DriverNumber, allowBuffer, b[:])
	if err != nil {
		return mem, err
	}
	a.buf = mem
	return mem, nil
}

// InitAltBuffer shares b as the second buffer of alternate sampling.
func (a *ADC) InitAltBuffer(b *Buffer) (syscalls.SharedMemory, error) {
	mem, err := a.g.Allow(DriverNumber, allowAltBuffer, b[:])
	if err != nil {
		return mem, err
	}
	a.alt = mem
	return mem, nil
}

// Sample requests one sample of channel.
func (a *ADC) Sample(channel uint) error {
	_, err := a.g.Command(DriverNumber, cmdSingle, channel, 0)
	return err
}

// SampleContinuous samples channel repeatedly until Stop.
func (a *ADC) SampleContinuous(channel uint) error {
	_, err := a.g.Command(DriverNumber, cmdContinuous, channel, 0)
	return err
}

// SampleContinuousBuffered fills the primary buffer at hz and reports each full buffer.
func (a *ADC) SampleContinuousBuffered(channel, hz uint) error {
	_, err := a.g.Command(DriverNumber, cmdContinuousBuffered, channel, hz)
	return err
}

// SampleContinuousBufferedAlternate fills both buffers in turn.
func (a *ADC) SampleContinuousBufferedAlternate(channel, hz uint) error {
	_, err := a.g.Command(DriverNumber, cmdContinuousBufferAlternate, channel, hz)
	return err
}

// Stop ends any sampling in progress.
func (a *ADC) Stop() error {
	_, err := a.g.Command(DriverNumber, cmdStop, 0, 0)
	return err
}

// Close stops sampling, releases the subscription and then the buffers.
func (a *ADC) Close() {
	if err := a.Stop(); err != nil {
		syscalls.Logger().Debug("adc: stop on close failed", zap.Error(err))
	}
	a.sub.Release()
	a.buf.Release()
	a.alt.Release()
}

// Samples decodes up to n little-endian samples from a shared buffer.
func Samples(mem syscalls.SharedMemory, n int) []uint16 {
	var raw Buffer
	got := mem.ReadBytes(raw[:]) / 2
	n = max(0, min(n, got))
	out := make([]uint16, n)
	for i := range out {
		out[i] = binary.LittleEndian.Uint16(raw[i*2:])
	}
	return out
}
