package hal

// Logger writes newline-delimited log lines.
type Logger interface {
	WriteLineString(s string)
	WriteLineBytes(b []byte)
}

// LED is a minimal output pin abstraction.
type LED interface {
	High()
	Low()
}

// PixelFormat defines the framebuffer pixel encoding.
type PixelFormat uint8

const (
	// PixelFormatRGB565 is 16bpp: rrrrrggggggbbbbb.
	PixelFormatRGB565 PixelFormat = iota + 1
)

// Framebuffer is a simple pixel buffer plus a "present" hook.
type Framebuffer interface {
	Width() int
	Height() int
	Format() PixelFormat
	StrideBytes() int
	Buffer() []byte
	ClearRGB(r, g, b uint8)
	Present() error
}

// Display provides access to the framebuffer (if available).
type Display interface {
	Framebuffer() Framebuffer
}

// ButtonEvent reports a physical button edge.
type ButtonEvent struct {
	Button  int
	Pressed bool
}

// Buttons is the bank of user buttons.
type Buttons interface {
	Count() int
	Events() <-chan ButtonEvent
}

// Time provides a base tick stream.
//
// Host ticks are 1 ms; the alarm capsule derives its counter from them.
type Time interface {
	Ticks() <-chan uint64
}

// HAL provides the only contact point between the simulated board and the outside world.
type HAL interface {
	Logger() Logger
	LEDs() []LED
	Buttons() Buttons
	Display() Display
	Time() Time
}
