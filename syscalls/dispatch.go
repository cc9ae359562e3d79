package syscalls

import "go.uber.org/zap"

// Consumer receives kernel events delivered through a subscription.
//
// Receive may be invoked re-entrantly: the kernel delivers upcalls whenever the
// application yields, including from inside another consumer's wait loop.
// Implementations get exclusive access to their own state for the duration of
// one call only.
type Consumer interface {
	Receive(arg1, arg2, arg3 uint)
}

// ConsumerFunc adapts a plain function to Consumer.
type ConsumerFunc func(arg1, arg2, arg3 uint)

func (f ConsumerFunc) Receive(arg1, arg2, arg3 uint) { f(arg1, arg2, arg3) }

// Identity0Consumer adapts a function that ignores all event arguments.
type Identity0Consumer func()

func (f Identity0Consumer) Receive(_, _, _ uint) { f() }

const tokenSlotBits = 8

func token(idx int, gen uint16) uintptr {
	return uintptr(gen)<<tokenSlotBits | uintptr(idx)
}

func splitToken(userdata uintptr) (idx int, gen uint16) {
	return int(userdata & (1<<tokenSlotBits - 1)), uint16(userdata >> tokenSlotBits)
}

// dispatch is the trampoline handed to the kernel for every subscription.
// It resolves the token to the live slot and forwards the event arguments.
func (g *Gateway) dispatch(arg1, arg2, arg3 uint, userdata uintptr) {
	idx, gen := splitToken(userdata)
	if idx >= MaxSubscriptions {
		Logger().Warn("upcall with invalid token", zap.Uint64("token", uint64(userdata)))
		return
	}
	s := &g.subs[idx]
	if s.state != slotLive || s.gen != gen {
		Logger().Debug("stale upcall dropped",
			zap.Int("slot", idx),
			zap.Uint16("gen", gen))
		return
	}
	s.target.Receive(arg1, arg2, arg3)
}
