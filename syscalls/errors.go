package syscalls

import "fmt"

// ErrorCode is a raw negative kernel return code.
type ErrorCode int

const (
	Success      ErrorCode = 0
	FAIL         ErrorCode = -1
	EBUSY        ErrorCode = -2
	EALREADY     ErrorCode = -3
	EOFF         ErrorCode = -4
	ERESERVE     ErrorCode = -5
	EINVAL       ErrorCode = -6
	ESIZE        ErrorCode = -7
	ECANCEL      ErrorCode = -8
	ENOMEM       ErrorCode = -9
	ENOSUPPORT   ErrorCode = -10
	ENODEVICE    ErrorCode = -11
	EUNINSTALLED ErrorCode = -12
	ENOACK       ErrorCode = -13
)

func (c ErrorCode) String() string {
	switch c {
	case Success:
		return "success"
	case FAIL:
		return "fail"
	case EBUSY:
		return "busy"
	case EALREADY:
		return "already"
	case EOFF:
		return "off"
	case ERESERVE:
		return "reserve"
	case EINVAL:
		return "invalid"
	case ESIZE:
		return "size"
	case ECANCEL:
		return "cancel"
	case ENOMEM:
		return "no_memory"
	case ENOSUPPORT:
		return "not_supported"
	case ENODEVICE:
		return "no_device"
	case EUNINSTALLED:
		return "uninstalled"
	case ENOACK:
		return "no_ack"
	default:
		return fmt.Sprintf("code(%d)", int(c))
	}
}

// Error makes ErrorCode usable as an errors.Is target.
func (c ErrorCode) Error() string { return c.String() }

// SubscribeError is returned when the kernel rejects a subscribe call.
type SubscribeError struct {
	Driver    uint
	Subscribe uint
	Code      ErrorCode
}

func (e *SubscribeError) Error() string {
	return fmt.Sprintf("subscribe driver=%#x subscribe=%d: %s (%d)", e.Driver, e.Subscribe, e.Code, int(e.Code))
}

func (e *SubscribeError) Is(target error) bool {
	c, ok := target.(ErrorCode)
	return ok && c == e.Code
}

// CommandError is returned when a command call yields a negative code.
type CommandError struct {
	Driver  uint
	Command uint
	Arg1    uint
	Arg2    uint
	Code    ErrorCode
}

func (e *CommandError) Error() string {
	return fmt.Sprintf("command driver=%#x command=%d args=(%d, %d): %s (%d)",
		e.Driver, e.Command, e.Arg1, e.Arg2, e.Code, int(e.Code))
}

func (e *CommandError) Is(target error) bool {
	c, ok := target.(ErrorCode)
	return ok && c == e.Code
}

// AllowError is returned when the kernel rejects a buffer grant.
type AllowError struct {
	Driver uint
	Allow  uint
	Code   ErrorCode
}

func (e *AllowError) Error() string {
	return fmt.Sprintf("allow driver=%#x allow=%d: %s (%d)", e.Driver, e.Allow, e.Code, int(e.Code))
}

func (e *AllowError) Is(target error) bool {
	c, ok := target.(ErrorCode)
	return ok && c == e.Code
}
