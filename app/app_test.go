package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"libtock/drivers"
	"libtock/drivers/ble"
	"libtock/drivers/led"
	"libtock/drivers/timer"
	"libtock/executor"
	"libtock/hal"
	"libtock/kernel"
	"libtock/syscalls"

	"github.com/stretchr/testify/require"
)

// testHAL is a board without a window. Ticks only advance when the test
// sends them.
type testHAL struct {
	log     *lineLog
	leds    []hal.LED
	pins    []*pin
	buttons *testButtons
	ticks   chan uint64
	fb      *memFramebuffer
}

func newTestHAL() *testHAL {
	h := &testHAL{
		log:     &lineLog{},
		buttons: &testButtons{ch: make(chan hal.ButtonEvent, 8)},
		ticks:   make(chan uint64, 8),
		fb:      newMemFramebuffer(120, 80),
	}
	for i := 0; i < 4; i++ {
		p := &pin{}
		h.pins = append(h.pins, p)
		h.leds = append(h.leds, p)
	}
	return h
}

func (h *testHAL) Logger() hal.Logger           { return h.log }
func (h *testHAL) LEDs() []hal.LED              { return h.leds }
func (h *testHAL) Buttons() hal.Buttons         { return h.buttons }
func (h *testHAL) Display() hal.Display         { return h }
func (h *testHAL) Time() hal.Time               { return h }
func (h *testHAL) Ticks() <-chan uint64         { return h.ticks }
func (h *testHAL) Framebuffer() hal.Framebuffer { return h.fb }

type lineLog struct {
	mu    sync.Mutex
	lines []string
}

func (l *lineLog) WriteLineString(s string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.lines = append(l.lines, s)
}

func (l *lineLog) WriteLineBytes(b []byte) { l.WriteLineString(string(b)) }

func (l *lineLog) String() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return strings.Join(l.lines, "\n")
}

type pin struct {
	mu sync.Mutex
	on bool
}

func (p *pin) High() { p.set(true) }
func (p *pin) Low()  { p.set(false) }

func (p *pin) set(on bool) {
	p.mu.Lock()
	p.on = on
	p.mu.Unlock()
}

func (p *pin) get() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.on
}

type testButtons struct {
	ch chan hal.ButtonEvent
}

func (b *testButtons) Count() int                     { return 4 }
func (b *testButtons) Events() <-chan hal.ButtonEvent { return b.ch }

type memFramebuffer struct {
	w, h     int
	buf      []byte
	presents int
}

func newMemFramebuffer(w, h int) *memFramebuffer {
	return &memFramebuffer{w: w, h: h, buf: make([]byte, w*h*2)}
}

func (f *memFramebuffer) Width() int              { return f.w }
func (f *memFramebuffer) Height() int             { return f.h }
func (f *memFramebuffer) Format() hal.PixelFormat { return hal.PixelFormatRGB565 }
func (f *memFramebuffer) StrideBytes() int        { return f.w * 2 }
func (f *memFramebuffer) Buffer() []byte          { return f.buf }
func (f *memFramebuffer) Present() error          { f.presents++; return nil }

func (f *memFramebuffer) ClearRGB(r, g, b uint8) {
	px := hal.RGB565(r, g, b)
	for off := 0; off+1 < len(f.buf); off += 2 {
		hal.PutRGB565(f.buf, off, px)
	}
}

func (f *memFramebuffer) count(px uint16) int {
	n := 0
	for off := 0; off+1 < len(f.buf); off += 2 {
		if hal.GetRGB565(f.buf, off) == px {
			n++
		}
	}
	return n
}

func startSystem(t *testing.T, h *testHAL, demo string) *System {
	t.Helper()
	s, err := NewSystem(h, Config{Demo: demo})
	require.NoError(t, err)
	s.Start()
	t.Cleanup(s.Close)
	return s
}

func TestUnknownDemo(t *testing.T) {
	_, err := NewSystem(newTestHAL(), Config{Demo: "tetris"})
	require.ErrorContains(t, err, `unknown demo "tetris"`)

	step := NewWithConfig(newTestHAL(), Config{Demo: "tetris"})
	require.Error(t, step())
}

func TestDemosAreRegistered(t *testing.T) {
	for _, name := range Demos() {
		require.Contains(t, demos, name)
	}
	require.Len(t, demos, len(Demos()))
}

func TestButtonPressTogglesLED(t *testing.T) {
	h := newTestHAL()
	s := startSystem(t, h, DemoButtonLEDs)

	h.buttons.ch <- hal.ButtonEvent{Button: 2, Pressed: true}
	require.Eventually(t, func() bool { return s.Kernel().LEDStates()[2] }, 2*time.Second, time.Millisecond)
	require.True(t, h.pins[2].get())
	require.False(t, h.pins[0].get())

	h.buttons.ch <- hal.ButtonEvent{Button: 2, Pressed: false}
	h.buttons.ch <- hal.ButtonEvent{Button: 2, Pressed: true}
	require.Eventually(t, func() bool { return !s.Kernel().LEDStates()[2] }, 2*time.Second, time.Millisecond)
	require.NoError(t, s.Step())
}

func TestBlinkCountsWithTicks(t *testing.T) {
	h := newTestHAL()
	s := startSystem(t, h, DemoBlink)

	var now uint64
	require.Eventually(t, func() bool {
		now++
		h.ticks <- now
		return s.Kernel().LEDStates()[0]
	}, 5*time.Second, time.Millisecond)
	require.GreaterOrEqual(t, s.Kernel().Now(), uint64(250))
}

func TestBLEDemoSetsLEDFromAdvertisement(t *testing.T) {
	h := newTestHAL()
	s := startSystem(t, h, DemoBLE)
	k := s.Kernel()

	require.Eventually(t, func() bool {
		_, _, ok := k.Advertisement()
		return ok
	}, 2*time.Second, time.Millisecond)

	pkt := advertLED(t, 1, 1)
	require.Eventually(t, func() bool { return k.InjectAdvertisement(pkt) }, 2*time.Second, time.Millisecond)
	require.Eventually(t, func() bool { return k.LEDStates()[1] }, 2*time.Second, time.Millisecond)
}

func advertLED(t *testing.T, n, on byte) []byte {
	t.Helper()
	var p ble.Payload
	require.NoError(t, p.AddServicePayload(LEDService, []byte{n, on}))
	return ble.ScanPacket([6]byte{1, 2, 3, 4, 5, 6}, p.Bytes())
}

type panicTask struct{ value any }

func (p panicTask) Poll() (error, bool) { panic(p.value) }

// The panic handler fires once per executor.
func TestPanicIndication(t *testing.T) {
	demos["panic"] = func(ex *executor.Executor, _ *drivers.Drivers) error {
		_, err := ex.Spawn("panic", panicTask{value: "boom"})
		return err
	}
	t.Cleanup(func() { delete(demos, "panic") })

	h := newTestHAL()
	s, err := NewSystem(h, Config{Demo: "panic"})
	require.NoError(t, err)
	s.Start()

	k := s.Kernel()
	require.Eventually(t, func() bool { return len(k.StatusCodes()) == 1 }, 2*time.Second, time.Millisecond)
	require.Equal(t, []uint{1}, k.StatusCodes())
	require.True(t, s.ex.InPanicMode())

	// The LEDs flash.
	seen := map[bool]bool{}
	require.Eventually(t, func() bool {
		seen[k.LEDStates()[0]] = true
		return seen[true] && seen[false]
	}, 2*time.Second, time.Millisecond)

	require.Contains(t, h.log.String(), "panic: task=panic id=0 value=boom")
	require.Positive(t, h.fb.count(hal.RGB565(0xFF, 0xFF, 0xFF)))

	done := make(chan struct{})
	go func() {
		s.Close()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Close did not stop the failure indication")
	}
}

func TestExhausted(t *testing.T) {
	require.True(t, exhausted(syscalls.ENOMEM))
	require.True(t, exhausted(fmt.Errorf("spawn: %w", executor.ErrTooManyTasks)))
	require.True(t, exhausted(timer.ErrTooManySleepers))
	require.False(t, exhausted(syscalls.EBUSY))
	require.False(t, exhausted("boom"))
	require.False(t, exhausted(errors.New("other")))
}

func TestDrawPanicScreen(t *testing.T) {
	fb := newMemFramebuffer(120, 80)
	drawPanicScreen(fb, executor.PanicInfo{Task: "blink", TaskID: 3, Value: strings.Repeat("x", 100)})

	background := hal.RGB565(0x20, 0, 0)
	white := hal.RGB565(0xFF, 0xFF, 0xFF)
	require.Equal(t, 1, fb.presents)
	require.Positive(t, fb.count(white))
	require.Equal(t, 120*80, fb.count(white)+fb.count(background))
}

func TestCycleLEDsLightsOneAtATime(t *testing.T) {
	k := kernel.New(kernel.Config{LEDs: newTestHAL().leds})
	g := syscalls.New(k)
	leds, err := led.NewFactory(g).Init()
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	cycleLEDs(ctx, leds.All(), time.Millisecond)

	lit := 0
	for _, on := range k.LEDStates() {
		if on {
			lit++
		}
	}
	require.Equal(t, 1, lit)
}
