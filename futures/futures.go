// Package futures is the bridge between kernel upcalls and cooperative tasks.
//
// A Future is polled by the scheduler after every upcall the kernel delivers.
// Callbacks only mutate plain state; futures re-evaluate that state on each
// poll and never cache a negative answer.
package futures

// Future is a value that becomes available at some later poll.
//
// Poll must not block. It returns the value and true once ready. Dropping a
// future (simply not polling it again) abandons the wait without touching the
// state it observes.
type Future[T any] interface {
	Poll() (T, bool)
}

// Canceler is implemented by futures that hold slot state which has to be
// given back when the future is abandoned before it completes.
type Canceler interface {
	Cancel()
}

// Cancel abandons f, releasing what it holds if it implements Canceler.
// Cancelling a completed future is a no-op.
func Cancel(f any) {
	if c, ok := f.(Canceler); ok {
		c.Cancel()
	}
}

// FutureFunc adapts a poll function to Future.
type FutureFunc[T any] func() (T, bool)

func (f FutureFunc[T]) Poll() (T, bool) { return f() }

// Ready returns a future that is immediately complete with v.
func Ready[T any](v T) Future[T] {
	return FutureFunc[T](func() (T, bool) { return v, true })
}

// Pending returns a future that never completes.
func Pending[T any]() Future[T] {
	return FutureFunc[T](func() (T, bool) {
		var zero T
		return zero, false
	})
}

// WaitForValue suspends until p reports a value. p is evaluated on every poll.
func WaitForValue[T any](p func() (T, bool)) Future[T] {
	return FutureFunc[T](p)
}

// WaitUntil suspends until cond reports true. cond is evaluated on every poll.
func WaitUntil(cond func() bool) Future[struct{}] {
	return FutureFunc[struct{}](func() (struct{}, bool) {
		return struct{}{}, cond()
	})
}

// Map transforms the result of f. Cancelling the result cancels f.
func Map[T, U any](f Future[T], fn func(T) U) Future[U] {
	return mapped[T, U]{f: f, fn: fn}
}

type mapped[T, U any] struct {
	f  Future[T]
	fn func(T) U
}

func (m mapped[T, U]) Poll() (U, bool) {
	v, ok := m.f.Poll()
	if !ok {
		var zero U
		return zero, false
	}
	return m.fn(v), true
}

func (m mapped[T, U]) Cancel() { Cancel(m.f) }

// Either holds the result of Select2. Exactly one side is set.
type Either[A, B any] struct {
	IsFirst bool
	First   A
	Second  B
}

// Select2 completes with whichever of a or b completes first. a is polled
// before b, so a wins when both are ready on the same poll. The loser is
// cancelled (see Cancel) and never polled again.
//
// Timeouts are built this way: Select2(event, timer.Sleep(d)).
func Select2[A, B any](a Future[A], b Future[B]) *Selection[A, B] {
	return &Selection[A, B]{a: a, b: b}
}

// Selection is the future returned by Select2.
type Selection[A, B any] struct {
	a    Future[A]
	b    Future[B]
	res  Either[A, B]
	done bool
	gone bool
}

func (s *Selection[A, B]) Poll() (Either[A, B], bool) {
	if s.done {
		return s.res, true
	}
	if s.gone {
		return Either[A, B]{}, false
	}
	if v, ok := s.a.Poll(); ok {
		s.finish(Either[A, B]{IsFirst: true, First: v}, s.b)
		return s.res, true
	}
	if v, ok := s.b.Poll(); ok {
		s.finish(Either[A, B]{Second: v}, s.a)
		return s.res, true
	}
	return Either[A, B]{}, false
}

// Cancel cancels both sides of a selection that has not completed. A
// cancelled selection never completes.
func (s *Selection[A, B]) Cancel() {
	if s.done || s.gone {
		return
	}
	s.gone = true
	Cancel(s.a)
	Cancel(s.b)
}

func (s *Selection[A, B]) finish(res Either[A, B], loser any) {
	s.res, s.done = res, true
	Cancel(loser)
}

// Join completes when every future has completed. Results keep argument order.
// Completed futures are not polled again.
func Join[T any](fs ...Future[T]) Future[[]T] {
	out := make([]T, len(fs))
	done := make([]bool, len(fs))
	remaining := len(fs)
	return FutureFunc[[]T](func() ([]T, bool) {
		for i, f := range fs {
			if done[i] {
				continue
			}
			if v, ok := f.Poll(); ok {
				out[i] = v
				done[i] = true
				remaining--
			}
		}
		return out, remaining == 0
	})
}
