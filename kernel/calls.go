package kernel

// Op identifies a system call class in the call log.
type Op uint8

const (
	OpSubscribe Op = iota + 1
	OpCommand
	OpCommand1
	OpAllow
)

func (o Op) String() string {
	switch o {
	case OpSubscribe:
		return "subscribe"
	case OpCommand:
		return "command"
	case OpCommand1:
		return "command1"
	case OpAllow:
		return "allow"
	default:
		return "unknown"
	}
}

// Call is one entry of the system call log.
//
// Null marks a revoking subscribe (nil upcall) or allow (nil buffer).
type Call struct {
	Op     Op
	Driver uint
	Num    uint
	Arg1   uint
	Arg2   uint
	Null   bool
	Len    int
	Ret    int
}

type failure struct {
	op     Op
	driver uint
	num    uint
	code   int
}

// Calls returns a copy of the system call log.
func (k *Kernel) Calls() []Call {
	k.mu.Lock()
	defer k.mu.Unlock()
	out := make([]Call, len(k.calls))
	copy(out, k.calls)
	return out
}

// ResetCalls clears the system call log.
func (k *Kernel) ResetCalls() {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.calls = k.calls[:0]
}

// Revokes counts the logged revoking calls of op for (driver, num).
func (k *Kernel) Revokes(op Op, driver, num uint) int {
	k.mu.Lock()
	defer k.mu.Unlock()
	n := 0
	for _, c := range k.calls {
		if c.Op == op && c.Driver == driver && c.Num == num && c.Null {
			n++
		}
	}
	return n
}

// DoubleRevokes counts revoking calls that arrived when nothing was registered.
func (k *Kernel) DoubleRevokes() int {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.doubleUnsubscribes + k.doubleUnallows
}

// FailNext makes the next matching call return code instead of running.
// Command1 calls match OpCommand.
func (k *Kernel) FailNext(op Op, driver, num uint, code int) {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.failures = append(k.failures, failure{op: op, driver: driver, num: num, code: code})
}

// injectedFailure must be called with k.mu held.
func (k *Kernel) injectedFailure(op Op, driver, num uint) (int, bool) {
	for i, f := range k.failures {
		if f.op != op || f.driver != driver || f.num != num {
			continue
		}
		k.failures = append(k.failures[:i], k.failures[i+1:]...)
		return f.code, true
	}
	return 0, false
}
