// Package debug drives the low-level debug capsule used for alerts and
// numeric tracing when no console is available.
package debug

import "libtock/syscalls"

const DriverNumber = 0x00008

const (
	cmdAlertCode       = 1
	cmdPrintNumber     = 2
	cmdPrintTwoNumbers = 3
)

// StatusPanic is the alert code raised by the failure indication path.
const StatusPanic = 1

// Driver issues debug commands. The zero value is unusable; use New.
type Driver struct {
	g *syscalls.Gateway
}

// New returns a debug driver bound to g.
func New(g *syscalls.Gateway) Driver { return Driver{g: g} }

// StatusCode reports an alert code to the kernel.
//
// This is the one place that uses the single-argument command variant: it may
// run while the rest of the runtime is unusable, so it must not depend on the
// second argument register holding a defined value.
func (d Driver) StatusCode(code uint) error {
	_, err := d.g.Command1Insecure(DriverNumber, cmdAlertCode, code)
	return err
}

// PrintNumber prints n on the kernel debug output.
func (d Driver) PrintNumber(n uint) error {
	_, err := d.g.Command(DriverNumber, cmdPrintNumber, n, 0)
	return err
}

// PrintTwoNumbers prints a and b on the kernel debug output.
func (d Driver) PrintTwoNumbers(a, b uint) error {
	_, err := d.g.Command(DriverNumber, cmdPrintTwoNumbers, a, b)
	return err
}
