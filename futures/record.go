package futures

// Marker is a two-valued sequence flag. It flips once per recorded event.
type Marker uint8

const (
	MarkerA Marker = iota
	MarkerB
)

// Next returns the other marker value.
func (m Marker) Next() Marker {
	if m == MarkerA {
		return MarkerB
	}
	return MarkerA
}

func (m Marker) String() string {
	if m == MarkerA {
		return "A"
	}
	return "B"
}

// EventRecord holds the latest event payload observed by a callback plus the
// marker that flips on every event.
//
// Callbacks call Record; waiters read through WaitForAny or WaitFor. There is
// no lock: the runtime has a single thread of control and each Record is one
// pair of plain assignments that no waiter can interleave with. A port to a
// multi-threaded host has to replace this with a synchronized cell.
//
// Waiters only learn that at least one event happened since they started
// waiting. If two events arrive between polls the waiter sees the latest one.
type EventRecord[T any] struct {
	payload T
	marker  Marker
}

// NewEventRecord returns a record whose payload starts at initial.
func NewEventRecord[T any](initial T) EventRecord[T] {
	return EventRecord[T]{payload: initial}
}

// Record stores v as the latest event and flips the marker.
func (r *EventRecord[T]) Record(v T) {
	r.payload = v
	r.marker = r.marker.Next()
}

// Marker returns the current marker value.
func (r *EventRecord[T]) Marker() Marker { return r.marker }

// Payload returns the latest recorded payload.
func (r *EventRecord[T]) Payload() T { return r.payload }

// AnyEvent waits for the next event recorded after it was created.
type AnyEvent[T any] struct {
	r    *EventRecord[T]
	seen Marker
}

// WaitForAny captures the current marker and returns a future that completes
// with the payload once the marker changes.
func (r *EventRecord[T]) WaitForAny() *AnyEvent[T] {
	return &AnyEvent[T]{r: r, seen: r.marker}
}

// Poll reports the latest payload once the marker differs from the captured
// value. After completing it re-arms on the marker it observed, so polling
// again waits for a further event.
func (w *AnyEvent[T]) Poll() (T, bool) {
	if w.r.marker == w.seen {
		var zero T
		return zero, false
	}
	w.seen = w.r.marker
	return w.r.payload, true
}

// EventWait waits for the next recorded event that satisfies a predicate.
type EventWait[T any] struct {
	next  *AnyEvent[T]
	match func(T) bool
}

// WaitFor returns a future that completes with the first event recorded after
// this call for which match reports true. Non-matching events are skipped and
// the wait re-arms on them.
func (r *EventRecord[T]) WaitFor(match func(T) bool) *EventWait[T] {
	return &EventWait[T]{next: r.WaitForAny(), match: match}
}

func (w *EventWait[T]) Poll() (T, bool) {
	v, ok := w.next.Poll()
	if ok && w.match(v) {
		return v, true
	}
	var zero T
	return zero, false
}
