package buttons_test

import (
	"testing"

	"libtock/drivers/buttons"
	"libtock/drivers/console"
	"libtock/executor"
	"libtock/futures"
	"libtock/kernel"
	"libtock/syscalls"

	"github.com/stretchr/testify/require"
)

func setup(t *testing.T) (*buttons.Driver, *kernel.Kernel, *syscalls.Gateway) {
	t.Helper()
	k := kernel.New(kernel.Config{Buttons: 4})
	g := syscalls.New(k)
	d, err := buttons.NewFactory(g).Init()
	require.NoError(t, err)
	t.Cleanup(d.Close)
	return d, k, g
}

func TestWaiterResumesOnlyForItsButton(t *testing.T) {
	d, k, g := setup(t)
	require.Equal(t, 4, d.Count())

	b1, ok := d.Button(1)
	require.True(t, ok)
	b2, ok := d.Button(2)
	require.True(t, ok)

	w1 := b1.WaitForPressed()
	w2 := b2.WaitForPressed()

	k.Schedule(kernel.DriverButton, 0, 2, 1, 0)
	require.True(t, g.YieldNoWait())

	ev, ok := w2.Poll()
	require.True(t, ok)
	require.Equal(t, buttons.Event{State: buttons.Pressed, Button: 2}, ev)

	_, ok = w1.Poll()
	require.False(t, ok)
}

func TestWaiterSkipsEarlierEventOnOtherButton(t *testing.T) {
	d, k, g := setup(t)
	for _, b := range d.All() {
		require.NoError(t, b.EnableInterrupt())
	}
	b2, _ := d.Button(2)

	e := executor.New(g)
	var got buttons.Event
	w := b2.WaitForPressed()
	_, err := e.Spawn("wait-2", futures.Map[buttons.Event, error](w, func(ev buttons.Event) error {
		got = ev
		return nil
	}))
	require.NoError(t, err)

	require.True(t, k.PressButton(0, true))
	require.True(t, k.PressButton(2, true))
	require.Zero(t, e.RunUntilStalled())
	require.Equal(t, buttons.Event{State: buttons.Pressed, Button: 2}, got)
}

// pressThenLog queues two presses on its first poll and then writes a line.
type pressThenLog struct {
	k     *kernel.Kernel
	out   *console.Console
	write futures.Future[error]
}

func (p *pressThenLog) Poll() (error, bool) {
	if p.write == nil {
		p.k.PressButton(0, true)
		p.k.PressButton(2, true)
		p.write = p.out.Printf("pressed %d and %d\n", 0, 2)
	}
	return p.write.Poll()
}

func TestWaiterSeesItsButtonWhileAnotherTaskWrites(t *testing.T) {
	d, k, g := setup(t)
	for _, b := range d.All() {
		require.NoError(t, b.EnableInterrupt())
	}
	b2, _ := d.Button(2)

	e := executor.New(g)
	var got buttons.Event
	_, err := e.Spawn("wait-2", futures.Map[buttons.Event, error](b2.WaitForPressed(), func(ev buttons.Event) error {
		got = ev
		return nil
	}))
	require.NoError(t, err)
	_, err = e.Spawn("log", &pressThenLog{k: k, out: console.NewFactory(g).Create()})
	require.NoError(t, err)

	require.Zero(t, e.RunUntilStalled())
	require.Equal(t, buttons.Event{State: buttons.Pressed, Button: 2}, got)
	require.Equal(t, "pressed 0 and 2\n", k.ConsoleOutput())
}

func TestWaitForEventAndRelease(t *testing.T) {
	d, k, g := setup(t)
	b0, _ := d.Button(0)
	require.NoError(t, b0.EnableInterrupt())

	next := d.WaitForEvent()
	rel := b0.WaitForReleased()

	require.True(t, k.PressButton(0, true))
	require.True(t, g.YieldNoWait())
	ev, ok := next.Poll()
	require.True(t, ok)
	require.Equal(t, buttons.Pressed, ev.State)
	_, ok = rel.Poll()
	require.False(t, ok)

	state, err := b0.Read()
	require.NoError(t, err)
	require.Equal(t, buttons.Pressed, state)

	require.True(t, k.PressButton(0, false))
	require.True(t, g.YieldNoWait())
	ev, ok = rel.Poll()
	require.True(t, ok)
	require.Equal(t, buttons.Event{State: buttons.Released, Button: 0}, ev)
	require.Equal(t, "released", ev.State.String())
}

func TestDisabledInterruptRaisesNoEvent(t *testing.T) {
	d, k, g := setup(t)
	b3, _ := d.Button(3)
	require.NoError(t, b3.EnableInterrupt())
	require.NoError(t, b3.DisableInterrupt())

	require.True(t, k.PressButton(3, true))
	require.False(t, g.YieldNoWait())
}

func TestInvalidStateIgnored(t *testing.T) {
	d, k, g := setup(t)
	w := d.WaitForEvent()
	k.Schedule(kernel.DriverButton, 0, 1, 7, 0)
	require.True(t, g.YieldNoWait())
	_, ok := w.Poll()
	require.False(t, ok)
}

func TestCloseReleasesSubscription(t *testing.T) {
	k := kernel.New(kernel.Config{Buttons: 1})
	g := syscalls.New(k)
	d, err := buttons.NewFactory(g).Init()
	require.NoError(t, err)
	require.True(t, k.Subscribed(kernel.DriverButton, 0))

	d.Close()
	d.Close()
	require.False(t, k.Subscribed(kernel.DriverButton, 0))
	require.Equal(t, 1, k.Revokes(kernel.OpSubscribe, kernel.DriverButton, 0))

	_, ok := d.Button(1)
	require.False(t, ok)
}
