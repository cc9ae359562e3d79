package syscalls

import (
	"testing"

	"github.com/stretchr/testify/require"
)

// recordingPlatform keeps the last registration per pair and accepts everything.
type recordingPlatform struct {
	fn       map[[2]uint]Upcall
	userdata map[[2]uint]uintptr
}

func newRecordingPlatform() *recordingPlatform {
	return &recordingPlatform{fn: map[[2]uint]Upcall{}, userdata: map[[2]uint]uintptr{}}
}

func (p *recordingPlatform) Subscribe(driver, subscribe uint, fn Upcall, userdata uintptr) int {
	k := [2]uint{driver, subscribe}
	p.fn[k] = fn
	p.userdata[k] = userdata
	return 0
}

func (p *recordingPlatform) Command(_, _, _, _ uint) int   { return 0 }
func (p *recordingPlatform) Command1(_, _, _ uint) int     { return 0 }
func (p *recordingPlatform) Allow(_, _ uint, _ []byte) int { return 0 }
func (p *recordingPlatform) YieldWait()                    {}
func (p *recordingPlatform) YieldNoWait() bool             { return false }

func TestTokenRoundTrip(t *testing.T) {
	idx, gen := splitToken(token(MaxSubscriptions-1, 0xBEEF))
	require.Equal(t, MaxSubscriptions-1, idx)
	require.Equal(t, uint16(0xBEEF), gen)
}

func TestDispatchForwardsArguments(t *testing.T) {
	p := newRecordingPlatform()
	g := New(p)
	var got [3]uint
	_, err := g.Subscribe(3, 0, ConsumerFunc(func(a1, a2, a3 uint) { got = [3]uint{a1, a2, a3} }))
	require.NoError(t, err)

	k := [2]uint{3, 0}
	p.fn[k](2, 1, 0, p.userdata[k])
	require.Equal(t, [3]uint{2, 1, 0}, got)
}

func TestDispatchDropsStaleToken(t *testing.T) {
	p := newRecordingPlatform()
	g := New(p)
	calls := 0
	sub, err := g.Subscribe(3, 0, Identity0Consumer(func() { calls++ }))
	require.NoError(t, err)

	k := [2]uint{3, 0}
	stale := p.userdata[k]
	sub.Release()

	// The slot is reused for a new target; the old token must not reach it.
	other := 0
	_, err = g.Subscribe(3, 0, Identity0Consumer(func() { other++ }))
	require.NoError(t, err)
	require.NotEqual(t, stale, p.userdata[k])

	g.dispatch(0, 0, 0, stale)
	require.Zero(t, calls)
	require.Zero(t, other)

	g.dispatch(0, 0, 0, p.userdata[k])
	require.Equal(t, 1, other)
}

func TestDispatchRejectsOutOfRangeSlot(t *testing.T) {
	g := New(newRecordingPlatform())
	require.NotPanics(t, func() { g.dispatch(0, 0, 0, token(MaxSubscriptions, 1)) })
}

func TestNextGenSkipsZero(t *testing.T) {
	require.Equal(t, uint16(1), nextGen(0xFFFF))
	require.Equal(t, uint16(2), nextGen(1))
}
