// Package executor drives cooperative tasks on the single thread of control.
//
// The loop alternates between letting the kernel deliver one upcall and
// re-polling every pending task. Tasks only suspend at explicit await points,
// which are futures that return not-ready.
package executor

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"libtock/futures"
	"libtock/syscalls"

	"go.uber.org/zap"
)

const maxTasks = 32

// ErrTooManyTasks is returned by Spawn when every task slot is taken.
var ErrTooManyTasks = errors.New("executor: too many tasks")

// TaskID identifies a spawned task.
type TaskID uint8

// Task is a unit of cooperative work that completes with an error, or nil.
type Task = futures.Future[error]

type taskState struct {
	name string
	task Task
	live bool
}

// Executor is a fixed-capacity cooperative scheduler.
type Executor struct {
	_ [0]func() // prevent accidental copying.

	y     syscalls.Yielder
	tasks [maxTasks]taskState
	rr    TaskID

	err error

	panicOnce sync.Once
	panicked  atomic.Bool
	onPanic   atomic.Value // func(PanicInfo)
}


// New creates an executor that yields to y between polls.
func New(y syscalls.Yielder) *Executor {
	return &Executor{y: y}
}

// Spawn registers a task. It is first polled on the next Step.
func (e *Executor) Spawn(name string, t Task) (TaskID, error) {
	for i := range e.tasks {
		st := &e.tasks[i]
		if st.live {
			continue
		}
		*st = taskState{name: name, task: t, live: true}
		Logger().Debug("task spawned", zap.String("task", name), zap.Int("id", i))
		return TaskID(i), nil
	}
	return 0, ErrTooManyTasks
}

// Cancel abandons a task at its current await point. A task implementing
// futures.Canceler is told so it can give back what its await point holds; the
// subscriptions and records it was waiting on are left untouched.
func (e *Executor) Cancel(id TaskID) bool {
	if int(id) >= maxTasks || !e.tasks[id].live {
		return false
	}
	st := e.tasks[id]
	Logger().Debug("task cancelled", zap.String("task", st.name))
	e.tasks[id] = taskState{}
	futures.Cancel(st.task)
	return true
}

// Pending returns the number of tasks that have not completed.
func (e *Executor) Pending() int {
	n := 0
	for i := range e.tasks {
		if e.tasks[i].live {
			n++
		}
	}
	return n
}

// Err returns the first error a task completed with.
func (e *Executor) Err() error { return e.err }

// Step polls every pending task once, starting after the task polled first
// last time, and returns the number still pending.
func (e *Executor) Step() int {
	start := e.rr
	for i := 0; i < maxTasks; i++ {
		id := TaskID((int(start) + i) % maxTasks)
		st := &e.tasks[id]
		if !st.live {
			continue
		}
		err, done := e.poll(id, st)
		if !done {
			continue
		}
		if err != nil {
			Logger().Warn("task failed", zap.String("task", st.name), zap.Error(err))
			if e.err == nil {
				e.err = err
			}
		} else {
			Logger().Debug("task done", zap.String("task", st.name))
		}
		*st = taskState{}
	}
	e.rr = TaskID((int(start) + 1) % maxTasks)
	return e.Pending()
}

func (e *Executor) poll(id TaskID, st *taskState) (err error, done bool) {
	defer func() {
		if r := recover(); r != nil {
			e.triggerPanic(PanicInfo{TaskID: id, Task: st.name, Value: r})
			err, done = fmt.Errorf("task %s panicked: %v", st.name, r), true
		}
	}()
	return st.task.Poll()
}

// Run drives tasks until all of them complete, one of them fails, or ctx is
// done. Between steps it blocks in YieldWait until the kernel delivers an
// upcall; the platform must wake it when ctx is cancelled.
func (e *Executor) Run(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		pending := e.Step()
		if e.err != nil {
			return e.err
		}
		if pending == 0 {
			return nil
		}
		e.y.YieldWait()
	}
}

// RunUntilStalled steps tasks and delivers pending upcalls until no upcall is
// left. It returns the number of tasks still pending.
func (e *Executor) RunUntilStalled() int {
	for {
		pending := e.Step()
		if pending == 0 {
			return 0
		}
		if !e.y.YieldNoWait() {
			return pending
		}
	}
}

// BlockOn polls f until it completes, yielding to the kernel in between.
//
// BlockOn is for top-level code only: setup before an executor runs, or a
// program without one. Every upcall it lets through is invisible to executor
// tasks until their next poll, so calling it while tasks are live (from a
// task's Poll or from a callback) lets several events reach a record between
// two polls of its waiters. Tasks await futures instead.
func BlockOn[T any](y syscalls.Yielder, f futures.Future[T]) T {
	for {
		if v, ok := f.Poll(); ok {
			return v
		}
		y.YieldWait()
	}
}
