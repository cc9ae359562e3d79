//go:build !tinygo

package hal

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestHostLEDLogsAndPaints(t *testing.T) {
	var out bytes.Buffer
	h := newHost(&out)
	require.Len(t, h.LEDs(), HostLEDs)

	led := h.LEDs()[1]
	x := ledGap + 1*(ledSize+ledGap)
	off := h.fb.pixelAt(x, ledTop)

	led.High()
	require.Equal(t, "led 1: HIGH\n", out.String())
	require.Equal(t, RGB565(0xFF, 0x30, 0x30), h.fb.pixelAt(x, ledTop))

	// Repeated writes of the same level are not logged.
	led.High()
	require.Equal(t, "led 1: HIGH\n", out.String())

	led.Low()
	require.Equal(t, off, h.fb.pixelAt(x, ledTop))
}

func TestHostButtonsDropOutOfRange(t *testing.T) {
	h := newHost(&bytes.Buffer{})
	b := h.buttons

	b.emit(-1, true)
	b.emit(HostButtons, true)
	b.emit(2, true)

	require.Len(t, b.Events(), 1)
	require.Equal(t, ButtonEvent{Button: 2, Pressed: true}, <-b.Events())
}

func TestFillRectClips(t *testing.T) {
	fb := newHostFramebuffer(8, 4)
	fb.fillRect(-2, -2, 4, 4, 0xFF, 0xFF, 0xFF)

	white := RGB565(0xFF, 0xFF, 0xFF)
	require.Equal(t, white, fb.pixelAt(0, 0))
	require.Equal(t, white, fb.pixelAt(1, 1))
	require.Zero(t, fb.pixelAt(2, 2))
}

func TestHostTimeCatchesUpInMilliseconds(t *testing.T) {
	ht := newHostTime()
	t0 := time.Unix(100, 0)

	ht.catchUp(t0)
	require.Equal(t, uint64(1), <-ht.Ticks())

	// Less than a tick since the start emits nothing.
	ht.catchUp(t0.Add(900 * time.Microsecond))
	require.Empty(t, ht.Ticks())

	ht.catchUp(t0.Add(7 * time.Millisecond))
	require.Equal(t, uint64(7), <-ht.Ticks())

	ht.catchUp(t0.Add(5 * time.Millisecond))
	require.Empty(t, ht.Ticks())
}

func TestRGB565RoundTripsPrimaries(t *testing.T) {
	for _, c := range [][3]uint8{{0, 0, 0}, {0xFF, 0, 0}, {0, 0xFF, 0}, {0, 0, 0xFF}, {0xFF, 0xFF, 0xFF}} {
		r, g, b := RGB888(RGB565(c[0], c[1], c[2]))
		require.Equal(t, c, [3]uint8{r, g, b})
	}

	buf := make([]byte, 4)
	PutRGB565(buf, 2, 0xF800)
	require.Equal(t, []byte{0, 0, 0x00, 0xF8}, buf)
	require.Equal(t, uint16(0xF800), GetRGB565(buf, 2))
}
