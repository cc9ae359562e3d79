// Package kernel is an in-process kernel that implements the userland system
// call surface on the host. It backs the desktop simulator and serves as the
// test double for the gateway and the driver adapters.
//
// Capsules (kernel-side drivers) are registered by driver number. Upcalls are
// queued in FIFO order and delivered one per yield, on the yielding goroutine.
package kernel

import (
	"sync"

	"libtock/syscalls"

	"github.com/eapache/queue"
	"go.uber.org/zap"
)

// Capsule is a kernel-side driver.
type Capsule interface {
	// Command handles a synchronous command. It runs with the kernel lock held
	// and may call Kernel.schedule or Kernel.grant.
	Command(command, arg1, arg2 uint) int
	// Subscribes reports how many subscribe numbers the capsule accepts.
	Subscribes() uint
	// Allows reports how many allow numbers the capsule accepts.
	Allows() uint
}

type key struct {
	driver uint
	num    uint
}

type upcallSlot struct {
	fn       syscalls.Upcall
	userdata uintptr
}

type grantState struct {
	buf []byte
}

type pendingUpcall struct {
	key              key
	arg1, arg2, arg3 uint
}

// Kernel is the host kernel. All exported methods are safe for concurrent use;
// upcalls run without the lock held so they may issue system calls.
type Kernel struct {
	mu sync.Mutex

	capsules map[uint]Capsule
	upcalls  map[key]upcallSlot
	grants   map[key]grantState

	pending     *queue.Queue
	wake        chan struct{}
	interrupted bool

	now uint64

	calls    []Call
	failures []failure

	doubleUnsubscribes int
	doubleUnallows     int

	log *zap.Logger
}

// NewEmpty creates a kernel without capsules.
func NewEmpty(log *zap.Logger) *Kernel {
	if log == nil {
		log = zap.NewNop()
	}
	return &Kernel{
		capsules: make(map[uint]Capsule),
		upcalls:  make(map[key]upcallSlot),
		grants:   make(map[key]grantState),
		pending:  queue.New(),
		wake:     make(chan struct{}, 1),
		log:      log,
	}
}

// Register installs a capsule under a driver number, replacing any previous one.
func (k *Kernel) Register(driver uint, c Capsule) {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.capsules[driver] = c
}

// Subscribe implements syscalls.Platform.
func (k *Kernel) Subscribe(driver, subscribe uint, fn syscalls.Upcall, userdata uintptr) int {
	k.mu.Lock()
	defer k.mu.Unlock()

	call := Call{Op: OpSubscribe, Driver: driver, Num: subscribe, Null: fn == nil}
	rc := k.subscribeLocked(driver, subscribe, fn, userdata)
	call.Ret = rc
	k.calls = append(k.calls, call)
	return rc
}

func (k *Kernel) subscribeLocked(driver, subscribe uint, fn syscalls.Upcall, userdata uintptr) int {
	if rc, ok := k.injectedFailure(OpSubscribe, driver, subscribe); ok {
		return rc
	}
	c, ok := k.capsules[driver]
	if !ok {
		return int(syscalls.ENODEVICE)
	}
	if subscribe >= c.Subscribes() {
		return int(syscalls.ENOSUPPORT)
	}
	kk := key{driver, subscribe}
	if fn == nil {
		if _, live := k.upcalls[kk]; !live {
			k.doubleUnsubscribes++
		}
		delete(k.upcalls, kk)
		k.log.Debug("unsubscribe", zap.Uint("driver", driver), zap.Uint("subscribe", subscribe))
		return 0
	}
	k.upcalls[kk] = upcallSlot{fn: fn, userdata: userdata}
	k.log.Debug("subscribe", zap.Uint("driver", driver), zap.Uint("subscribe", subscribe))
	return 0
}

// Command implements syscalls.Platform.
func (k *Kernel) Command(driver, command, arg1, arg2 uint) int {
	k.mu.Lock()
	defer k.mu.Unlock()

	rc := k.commandLocked(driver, command, arg1, arg2)
	k.calls = append(k.calls, Call{Op: OpCommand, Driver: driver, Num: command, Arg1: arg1, Arg2: arg2, Ret: rc})
	return rc
}

// Command1 implements syscalls.Platform. The host has no stale register to
// leak, so the second argument reaches the capsule as 0.
func (k *Kernel) Command1(driver, command, arg uint) int {
	k.mu.Lock()
	defer k.mu.Unlock()

	rc := k.commandLocked(driver, command, arg, 0)
	k.calls = append(k.calls, Call{Op: OpCommand1, Driver: driver, Num: command, Arg1: arg, Ret: rc})
	return rc
}

func (k *Kernel) commandLocked(driver, command, arg1, arg2 uint) int {
	if rc, ok := k.injectedFailure(OpCommand, driver, command); ok {
		return rc
	}
	c, ok := k.capsules[driver]
	if !ok {
		return int(syscalls.ENODEVICE)
	}
	return c.Command(command, arg1, arg2)
}

// Allow implements syscalls.Platform.
func (k *Kernel) Allow(driver, allow uint, buf []byte) int {
	k.mu.Lock()
	defer k.mu.Unlock()

	call := Call{Op: OpAllow, Driver: driver, Num: allow, Null: buf == nil, Len: len(buf)}
	rc := k.allowLocked(driver, allow, buf)
	call.Ret = rc
	k.calls = append(k.calls, call)
	return rc
}

func (k *Kernel) allowLocked(driver, allow uint, buf []byte) int {
	if rc, ok := k.injectedFailure(OpAllow, driver, allow); ok {
		return rc
	}
	c, ok := k.capsules[driver]
	if !ok {
		return int(syscalls.ENODEVICE)
	}
	if allow >= c.Allows() {
		return int(syscalls.ENOSUPPORT)
	}
	kk := key{driver, allow}
	if buf == nil {
		if _, live := k.grants[kk]; !live {
			k.doubleUnallows++
		}
		delete(k.grants, kk)
		k.log.Debug("unallow", zap.Uint("driver", driver), zap.Uint("allow", allow))
		return 0
	}
	k.grants[kk] = grantState{buf: buf}
	k.log.Debug("allow", zap.Uint("driver", driver), zap.Uint("allow", allow), zap.Int("len", len(buf)))
	return 0
}

// YieldNoWait implements syscalls.Platform. It delivers at most one upcall.
func (k *Kernel) YieldNoWait() bool {
	for {
		k.mu.Lock()
		if k.pending.Length() == 0 {
			k.mu.Unlock()
			return false
		}
		up := k.pending.Remove().(pendingUpcall)
		slot, ok := k.upcalls[up.key]
		k.mu.Unlock()

		if !ok {
			// Nobody subscribed at delivery time: the event is dropped.
			continue
		}
		slot.fn(up.arg1, up.arg2, up.arg3, slot.userdata)
		return true
	}
}

// YieldWait implements syscalls.Platform. It blocks until an upcall has been
// delivered or Interrupt is called. Wake signals left over from upcalls that
// YieldNoWait already delivered are consumed without returning.
func (k *Kernel) YieldWait() {
	for {
		if k.YieldNoWait() {
			return
		}
		k.mu.Lock()
		interrupted := k.interrupted
		k.interrupted = false
		k.mu.Unlock()
		if interrupted {
			return
		}
		<-k.wake
	}
}

// Interrupt wakes a goroutine blocked in YieldWait even if no upcall is
// pending. An Interrupt with nobody waiting makes the next YieldWait return
// at once.
func (k *Kernel) Interrupt() {
	k.mu.Lock()
	k.interrupted = true
	k.mu.Unlock()
	k.signal()
}

// Schedule queues an upcall for (driver, subscribe) as if a capsule raised it.
func (k *Kernel) Schedule(driver, subscribe, arg1, arg2, arg3 uint) {
	k.mu.Lock()
	k.schedule(driver, subscribe, arg1, arg2, arg3)
	k.mu.Unlock()
}

// schedule must be called with k.mu held.
func (k *Kernel) schedule(driver, subscribe, arg1, arg2, arg3 uint) {
	k.pending.Add(pendingUpcall{key: key{driver, subscribe}, arg1: arg1, arg2: arg2, arg3: arg3})
	k.signal()
}

func (k *Kernel) signal() {
	select {
	case k.wake <- struct{}{}:
	default:
	}
}

// grant returns the buffer currently allowed for (driver, allow), or nil.
// It must be called with k.mu held.
func (k *Kernel) grant(driver, allow uint) []byte {
	return k.grants[key{driver, allow}].buf
}

// Subscribed reports whether (driver, subscribe) has a live upcall.
func (k *Kernel) Subscribed(driver, subscribe uint) bool {
	k.mu.Lock()
	defer k.mu.Unlock()
	_, ok := k.upcalls[key{driver, subscribe}]
	return ok
}

// Allowed reports whether (driver, allow) has a live grant.
func (k *Kernel) Allowed(driver, allow uint) bool {
	k.mu.Lock()
	defer k.mu.Unlock()
	_, ok := k.grants[key{driver, allow}]
	return ok
}

// PendingUpcalls returns the number of queued upcalls.
func (k *Kernel) PendingUpcalls() int {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.pending.Length()
}

// Now returns the current kernel time in milliseconds.
func (k *Kernel) Now() uint64 {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.now
}

// TickTo advances kernel time to now (milliseconds) and fires due timers.
// Time never moves backwards.
func (k *Kernel) TickTo(now uint64) {
	k.mu.Lock()
	defer k.mu.Unlock()
	if now <= k.now {
		return
	}
	k.now = now
	for _, c := range k.capsules {
		if t, ok := c.(ticker); ok {
			t.tick(now)
		}
	}
}

// Advance moves kernel time forward by dt milliseconds.
func (k *Kernel) Advance(dt uint64) {
	k.TickTo(k.Now() + dt)
}

type ticker interface {
	tick(now uint64)
}
