package futures

import (
	"testing"

	"github.com/stretchr/testify/require"
)

type press struct {
	button  int
	pressed bool
}

func TestMarkerAlternates(t *testing.T) {
	var r EventRecord[int]
	require.Equal(t, MarkerA, r.Marker())
	seen := []Marker{r.Marker()}
	for i := 0; i < 5; i++ {
		r.Record(i)
		seen = append(seen, r.Marker())
	}
	for i := 1; i < len(seen); i++ {
		require.NotEqual(t, seen[i-1], seen[i])
	}
	require.Equal(t, 4, r.Payload())
	require.Equal(t, "B", MarkerA.Next().String())
}

func TestWaitForAnyNeverResumesOnCapturedMarker(t *testing.T) {
	r := NewEventRecord(-1)
	r.Record(1)

	w := r.WaitForAny()
	for i := 0; i < 3; i++ {
		_, ok := w.Poll()
		require.False(t, ok)
	}

	r.Record(2)
	v, ok := w.Poll()
	require.True(t, ok)
	require.Equal(t, 2, v)

	// Re-armed on the observed marker.
	_, ok = w.Poll()
	require.False(t, ok)
}

// The executor polls every waiter after each delivered upcall, so a waiter
// sees one event per poll and wakes for every one of them.
func TestWaitForAnyWakesOnEveryEventBetweenPolls(t *testing.T) {
	var r EventRecord[int]
	w := r.WaitForAny()
	for i := 1; i <= 6; i++ {
		r.Record(i)
		v, ok := w.Poll()
		require.True(t, ok, "event %d", i)
		require.Equal(t, i, v)
		_, ok = w.Poll()
		require.False(t, ok)
	}
}

func TestWaitForSkipsNonMatching(t *testing.T) {
	var r EventRecord[press]
	w := r.WaitFor(func(p press) bool { return p.button == 2 && p.pressed })

	r.Record(press{button: 0, pressed: true})
	_, ok := w.Poll()
	require.False(t, ok)

	r.Record(press{button: 2, pressed: true})
	v, ok := w.Poll()
	require.True(t, ok)
	require.Equal(t, press{button: 2, pressed: true}, v)
}

func TestCombinators(t *testing.T) {
	var r EventRecord[int]
	doubled := Map[int, int](r.WaitForAny(), func(v int) int { return v * 2 })
	sel := Select2[int, string](Pending[int](), Ready("timeout"))

	e, ok := sel.Poll()
	require.True(t, ok)
	require.False(t, e.IsFirst)
	require.Equal(t, "timeout", e.Second)

	both := Join[int](Ready(1), doubled)
	_, ok = both.Poll()
	require.False(t, ok)
	r.Record(21)
	vs, ok := both.Poll()
	require.True(t, ok)
	require.Equal(t, []int{1, 42}, vs)

	n := 0
	until := WaitUntil(func() bool { n++; return n == 2 })
	_, ok = until.Poll()
	require.False(t, ok)
	_, ok = until.Poll()
	require.True(t, ok)
}

type cancelCounter struct {
	Future[int]
	n int
}

func (c *cancelCounter) Cancel() { c.n++ }

func TestSelect2CancelsLoser(t *testing.T) {
	var r EventRecord[int]
	timeout := &cancelCounter{Future: Pending[int]()}
	sel := Select2[int, int](r.WaitForAny(), timeout)

	_, ok := sel.Poll()
	require.False(t, ok)
	r.Record(7)
	e, ok := sel.Poll()
	require.True(t, ok)
	require.True(t, e.IsFirst)
	require.Equal(t, 7, e.First)
	require.Equal(t, 1, timeout.n)

	// Completed selections keep their result and do not cancel again.
	e, ok = sel.Poll()
	require.True(t, ok)
	require.Equal(t, 7, e.First)
	sel.Cancel()
	require.Equal(t, 1, timeout.n)
}

func TestCancelReachesThroughSelectAndMap(t *testing.T) {
	a := &cancelCounter{Future: Pending[int]()}
	b := &cancelCounter{Future: Pending[int]()}
	f := Map[Either[int, int], int](Select2[int, int](a, b), func(e Either[int, int]) int { return e.First })

	Cancel(f)
	require.Equal(t, 1, a.n)
	require.Equal(t, 1, b.n)
	Cancel(f)
	require.Equal(t, 1, a.n)

	_, ok := f.Poll()
	require.False(t, ok)
	Cancel(Ready(1))
}
