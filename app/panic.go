package app

import (
	"context"
	"errors"
	"fmt"
	"image/color"
	"strings"
	"time"

	"libtock/drivers/debug"
	"libtock/drivers/led"
	"libtock/drivers/timer"
	"libtock/executor"
	"libtock/hal"
	"libtock/syscalls"

	"go.uber.org/zap"
	tinydrivers "tinygo.org/x/drivers"
	"tinygo.org/x/tinyfont"
)

// FlashPeriod is the LED half-period of the failure indication.
const FlashPeriod = 100 * time.Millisecond

func installPanicHandler(s *System) {
	s.ex.SetPanicHandler(func(info executor.PanicInfo) {
		s.indicateFailure(s.ctx, info)
	})
}

// indicateFailure reports a task panic through every channel the board has:
// the low-level debug status code, the HAL logger, the display and the LEDs.
// It keeps the LEDs going until ctx is done.
func (s *System) indicateFailure(ctx context.Context, info executor.PanicInfo) {
	s.log.Error("task panicked",
		zap.String("task", info.Task),
		zap.Uint8("id", uint8(info.TaskID)),
		zap.Any("value", info.Value))

	if err := debug.New(s.g).StatusCode(debug.StatusPanic); err != nil {
		s.log.Warn("status code not delivered", zap.Error(err))
	}

	if l := s.h.Logger(); l != nil {
		l.WriteLineString(fmt.Sprintf("panic: task=%s id=%d value=%v", info.Task, info.TaskID, info.Value))
		for _, line := range strings.Split(string(info.Stack), "\n") {
			if line != "" {
				l.WriteLineString(line)
			}
		}
	}

	if disp := s.h.Display(); disp != nil {
		if fb := disp.Framebuffer(); fb != nil {
			drawPanicScreen(fb, info)
		}
	}

	leds, err := led.NewFactory(s.g).Init()
	if err != nil || leds.Count() == 0 {
		<-ctx.Done()
		return
	}
	if exhausted(info.Value) {
		cycleLEDs(ctx, leds.All(), FlashPeriod)
		return
	}
	flashLEDs(ctx, leds.All(), FlashPeriod)
}

// exhausted reports whether a panic value is a resource exhaustion, which is
// shown by cycling the LEDs instead of flashing them.
func exhausted(v any) bool {
	err, ok := v.(error)
	if !ok {
		return false
	}
	return errors.Is(err, syscalls.ENOMEM) ||
		errors.Is(err, executor.ErrTooManyTasks) ||
		errors.Is(err, timer.ErrTooManySleepers)
}

// flashLEDs toggles every LED together each period.
func flashLEDs(ctx context.Context, leds []led.LED, period time.Duration) {
	t := time.NewTicker(period)
	defer t.Stop()
	on := true
	for {
		for _, l := range leds {
			l.Set(on)
		}
		on = !on
		select {
		case <-ctx.Done():
			return
		case <-t.C:
		}
	}
}

// cycleLEDs lights one LED at a time in order.
func cycleLEDs(ctx context.Context, leds []led.LED, period time.Duration) {
	t := time.NewTicker(period)
	defer t.Stop()
	for i := 0; ; i = (i + 1) % len(leds) {
		for j, l := range leds {
			l.Set(j == i)
		}
		select {
		case <-ctx.Done():
			return
		case <-t.C:
		}
	}
}

func drawPanicScreen(fb hal.Framebuffer, info executor.PanicInfo) {
	fb.ClearRGB(0x20, 0, 0)
	d := panicDisplay{fb: fb}

	font := &tinyfont.TomThumb
	fg := color.RGBA{R: 0xFF, G: 0xFF, B: 0xFF, A: 0xFF}
	const lineHeight = 7
	const charWidth = 4

	lines := []string{
		"PANIC",
		fmt.Sprintf("task %s (%d)", info.Task, info.TaskID),
		fmt.Sprintf("%v", info.Value),
	}
	cols := fb.Width() / charWidth
	y := int16(48)
	for _, line := range lines {
		for len(line) > 0 {
			if int(y) > fb.Height() {
				_ = fb.Present()
				return
			}
			chunk := line
			if len(chunk) > cols {
				chunk = chunk[:cols]
			}
			line = line[len(chunk):]
			tinyfont.WriteLine(d, font, 2, y, chunk, fg)
			y += lineHeight
		}
	}
	_ = fb.Present()
}

var _ tinydrivers.Displayer = panicDisplay{}

// panicDisplay draws into an RGB565 framebuffer.
type panicDisplay struct {
	fb hal.Framebuffer
}

func (d panicDisplay) Size() (x, y int16) {
	return int16(d.fb.Width()), int16(d.fb.Height())
}

func (d panicDisplay) SetPixel(x, y int16, c color.RGBA) {
	if d.fb.Format() != hal.PixelFormatRGB565 {
		return
	}
	ix, iy := int(x), int(y)
	if ix < 0 || ix >= d.fb.Width() || iy < 0 || iy >= d.fb.Height() {
		return
	}
	buf := d.fb.Buffer()
	off := iy*d.fb.StrideBytes() + ix*2
	if off+1 >= len(buf) {
		return
	}
	hal.PutRGB565(buf, off, hal.RGB565(c.R, c.G, c.B))
}

func (d panicDisplay) Display() error { return d.fb.Present() }
