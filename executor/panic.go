package executor

import "runtime/debug"

// PanicInfo contains details about a panic recovered from a task.
type PanicInfo struct {
	TaskID TaskID
	Task   string
	Value  any
	Stack  []byte
}

// InPanicMode reports whether a task of e has panicked.
func (e *Executor) InPanicMode() bool {
	return e.panicked.Load()
}

// SetPanicHandler installs the handler for task panics of e. It runs on the
// goroutine driving e, at most once (on the first panic), and may never return.
func (e *Executor) SetPanicHandler(fn func(PanicInfo)) {
	e.onPanic.Store(fn)
}

func (e *Executor) triggerPanic(info PanicInfo) {
	e.panicOnce.Do(func() {
		e.panicked.Store(true)
		info.Stack = debug.Stack()
		if fn, ok := e.onPanic.Load().(func(PanicInfo)); ok && fn != nil {
			fn(info)
		}
	})
}
