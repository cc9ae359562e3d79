//go:build !tinygo

package hal

import "time"

// hostTime converts wall-clock progress into a 1 ms tick sequence. Ticks are
// dropped, not queued without bound, when nobody reads them; the sequence
// number carries the lost time.
type hostTime struct {
	ch  chan uint64
	seq uint64

	start   time.Time
	started bool
}

func newHostTime() *hostTime {
	return &hostTime{ch: make(chan uint64, 1024)}
}

func (t *hostTime) Ticks() <-chan uint64 { return t.ch }

// catchUp emits ticks until the sequence matches the milliseconds elapsed
// since the first call. The first call emits one tick.
func (t *hostTime) catchUp(now time.Time) {
	if !t.started {
		t.start, t.started = now, true
		t.emit(t.seq + 1)
		return
	}
	target := uint64(now.Sub(t.start) / time.Millisecond)
	if target <= t.seq {
		return
	}
	t.emit(target)
}

func (t *hostTime) emit(target uint64) {
	t.seq = target
	select {
	case t.ch <- t.seq:
	default:
	}
}
