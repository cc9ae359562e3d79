//go:build !tinygo

package hal

import (
	"fmt"
	"io"
	"os"
	"sync"
)

const (
	// HostLEDs and HostButtons size the simulated board.
	HostLEDs    = 4
	HostButtons = 4

	ledSize = 24
	ledGap  = 16
	ledTop  = 8
)

type hostHAL struct {
	logger  *hostLogger
	leds    []LED
	buttons *hostButtons
	fb      *hostFramebuffer
	t       *hostTime
}

// New returns a host HAL implementation logging to stdout.
func New() HAL {
	return newHost(os.Stdout)
}

func newHost(w io.Writer) *hostHAL {
	logger := &hostLogger{w: w}
	fb := newHostFramebuffer(240, 160)
	leds := make([]LED, HostLEDs)
	for i := range leds {
		l := &hostLED{idx: i, logger: logger, fb: fb}
		l.draw()
		leds[i] = l
	}
	return &hostHAL{
		logger:  logger,
		leds:    leds,
		buttons: newHostButtons(HostButtons),
		fb:      fb,
		t:       newHostTime(),
	}
}

func (h *hostHAL) Logger() Logger   { return h.logger }
func (h *hostHAL) LEDs() []LED      { return h.leds }
func (h *hostHAL) Buttons() Buttons { return h.buttons }
func (h *hostHAL) Display() Display { return hostDisplay{fb: h.fb} }
func (h *hostHAL) Time() Time       { return h.t }

type hostDisplay struct {
	fb *hostFramebuffer
}

func (d hostDisplay) Framebuffer() Framebuffer { return d.fb }

type hostLogger struct {
	mu sync.Mutex
	w  io.Writer
}

func (l *hostLogger) WriteLineString(s string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	fmt.Fprintln(l.w, s)
}

func (l *hostLogger) WriteLineBytes(b []byte) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.w.Write(b)
	l.w.Write([]byte{'\n'})
}

// hostLED logs its transitions and paints a square in the top strip of the framebuffer.
type hostLED struct {
	mu     sync.Mutex
	idx    int
	on     bool
	logger *hostLogger
	fb     *hostFramebuffer
}

func (l *hostLED) High() { l.set(true) }
func (l *hostLED) Low()  { l.set(false) }

func (l *hostLED) set(on bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.on == on {
		return
	}
	l.on = on
	state := "LOW"
	if on {
		state = "HIGH"
	}
	l.logger.WriteLineString(fmt.Sprintf("led %d: %s", l.idx, state))
	l.draw()
}

func (l *hostLED) draw() {
	x := ledGap + l.idx*(ledSize+ledGap)
	if l.on {
		l.fb.fillRect(x, ledTop, ledSize, ledSize, 0xFF, 0x30, 0x30)
		return
	}
	l.fb.fillRect(x, ledTop, ledSize, ledSize, 0x40, 0x10, 0x10)
}

type hostButtons struct {
	n  int
	ch chan ButtonEvent
}

func newHostButtons(n int) *hostButtons {
	return &hostButtons{n: n, ch: make(chan ButtonEvent, 64)}
}

func (b *hostButtons) Count() int                 { return b.n }
func (b *hostButtons) Events() <-chan ButtonEvent { return b.ch }

func (b *hostButtons) emit(button int, pressed bool) {
	if button < 0 || button >= b.n {
		return
	}
	select {
	case b.ch <- ButtonEvent{Button: button, Pressed: pressed}:
	default:
	}
}
