package sim

import (
	"testing"

	"libtock/app"
	"libtock/drivers/ble"
	"libtock/drivers/sensors"
	"libtock/hal"
	"libtock/kernel"
	"libtock/syscalls"

	"github.com/stretchr/testify/require"
)

type pin struct{ on bool }

func (p *pin) High() { p.on = true }
func (p *pin) Low()  { p.on = false }

func newBoard(t *testing.T) (*kernel.Kernel, *syscalls.Gateway) {
	t.Helper()
	k := kernel.New(kernel.Config{
		Buttons:     2,
		LEDs:        []hal.LED{&pin{}, &pin{}},
		ADCChannels: 1,
	})
	return k, syscalls.New(k)
}

func TestPressAndRelease(t *testing.T) {
	k, g := newBoard(t)
	sh := NewShell(k)

	readButton := func() uint {
		v, err := g.Command(kernel.DriverButton, 3, 1, 0)
		require.NoError(t, err)
		return v
	}

	require.NoError(t, sh.Process("press", "1"))
	require.Equal(t, uint(1), readButton())
	require.NoError(t, sh.Process("r", "1"))
	require.Equal(t, uint(0), readButton())

	// Bad arguments are reported on the prompt, not returned.
	require.NoError(t, sh.Process("press", "7"))
	require.NoError(t, sh.Process("press", "x"))
	require.NoError(t, sh.Process("press"))
}

func TestUnknownCommand(t *testing.T) {
	k, _ := newBoard(t)
	require.Error(t, NewShell(k).Process("jump"))
}

func TestSensorSetsNextReading(t *testing.T) {
	k, g := newBoard(t)
	sh := NewShell(k)
	require.NoError(t, sh.Process("sensor", "Temperature", "2315"))

	s := sensors.New(g, sensors.Temperature)
	defer s.Close()
	f, err := s.Read()
	require.NoError(t, err)
	require.True(t, g.YieldNoWait())

	r, ok := f.Poll()
	require.True(t, ok)
	require.Equal(t, uint(2315), r.Raw)
}

func TestBLEReachesScanner(t *testing.T) {
	k, g := newBoard(t)
	sh := NewShell(k)

	var buf ble.Buffer
	mem, err := ble.NewScanning(g).ShareMemory(&buf)
	require.NoError(t, err)
	defer mem.Release()

	var got uint
	sub, err := ble.NewScanning(g).Start(func(n uint) { got = n })
	require.NoError(t, err)
	defer sub.Release()

	require.NoError(t, sh.Process("ble", "1", "1"))
	require.True(t, g.YieldNoWait())
	require.NotZero(t, got)

	var pkt ble.Buffer
	mem.ReadBytes(pkt[:])
	data, ok := ble.FindInScan(pkt[:], ble.TypeServiceData)
	require.True(t, ok)
	cmd, ok := ble.ExtractForService(app.LEDService, data)
	require.True(t, ok)
	require.Equal(t, []byte{1, 1}, cmd[:2])
}

func TestFormatLEDs(t *testing.T) {
	require.Equal(t, "0:on 1:off", formatLEDs([]bool{true, false}))
	require.Equal(t, "", formatLEDs(nil))
}
