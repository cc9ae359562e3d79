package syscalls

// Upcall is the fixed entry point the kernel invokes when it delivers an event.
//
// The three event arguments are capsule-defined. userdata is the opaque value
// handed to the kernel at subscribe time and is passed back unchanged.
type Upcall func(arg1, arg2, arg3 uint, userdata uintptr)

// Platform is the raw system call surface of the kernel.
//
// Every method except the two yields is a single non-blocking trap. Return
// values follow the kernel convention: Subscribe and Allow return exactly 0 on
// success, Command returns a non-negative value on success. Negative values are
// error codes.
//
// A nil Upcall passed to Subscribe, or a nil buffer passed to Allow, revokes the
// registration for that (driver, number) pair.
type Platform interface {
	Subscribe(driver, subscribe uint, fn Upcall, userdata uintptr) int
	Command(driver, command, arg1, arg2 uint) int
	// Command1 only sets the first argument register. The second register keeps
	// whatever value it had, which leaks it to the driver.
	Command1(driver, command, arg uint) int
	Allow(driver, allow uint, buf []byte) int

	// YieldWait blocks until the kernel has delivered one upcall.
	YieldWait()
	// YieldNoWait delivers at most one pending upcall and reports whether one ran.
	YieldNoWait() bool
}

// Yielder is the part of Platform the scheduler needs.
type Yielder interface {
	YieldWait()
	YieldNoWait() bool
}
