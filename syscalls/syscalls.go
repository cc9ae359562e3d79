package syscalls

import "go.uber.org/zap"

const (
	// MaxSubscriptions bounds the number of simultaneously live subscriptions.
	MaxSubscriptions = 16
	// MaxGrants bounds the number of simultaneously live shared-memory grants.
	MaxGrants = 8
)

type slotState uint8

const (
	slotFree slotState = iota
	slotLive
	slotReleasing
)

type subSlot struct {
	state     slotState
	gen       uint16
	driver    uint
	subscribe uint
	target    Consumer
}

type grantSlot struct {
	state  slotState
	gen    uint16
	driver uint
	allow  uint
	buf    []byte
}

// Gateway issues the three kernel primitives and owns the bookkeeping that
// ties kernel-held tokens and buffers back to live handles.
//
// All tables are fixed-size; a Gateway never grows after New.
// A Gateway must only be used from the single thread of control that also
// yields to the kernel.
type Gateway struct {
	_ [0]func() // prevent accidental copying.

	p      Platform
	upcall Upcall

	subs   [MaxSubscriptions]subSlot
	grants [MaxGrants]grantSlot

	driversClaimed bool
}

// New creates a gateway over the raw platform.
func New(p Platform) *Gateway {
	g := &Gateway{p: p}
	g.upcall = g.dispatch
	return g
}

// ClaimDrivers reports true the first time it is called on g and false afterwards.
func (g *Gateway) ClaimDrivers() bool {
	if g.driversClaimed {
		return false
	}
	g.driversClaimed = true
	return true
}

// Subscribe registers target for events on (driver, subscribe).
//
// The returned Subscription must be released before target's storage is
// reused. Subscribing a pair that already has a live subscription through g
// fails with EALREADY.
func (g *Gateway) Subscribe(driver, subscribe uint, target Consumer) (Subscription, error) {
	if target == nil {
		return Subscription{}, &SubscribeError{Driver: driver, Subscribe: subscribe, Code: EINVAL}
	}
	if g.liveSub(driver, subscribe) >= 0 {
		return Subscription{}, &SubscribeError{Driver: driver, Subscribe: subscribe, Code: EALREADY}
	}
	idx := g.freeSub()
	if idx < 0 {
		return Subscription{}, &SubscribeError{Driver: driver, Subscribe: subscribe, Code: ENOMEM}
	}

	s := &g.subs[idx]
	s.gen = nextGen(s.gen)
	s.state = slotLive
	s.driver = driver
	s.subscribe = subscribe
	s.target = target

	if err := g.SubscribeFn(driver, subscribe, g.upcall, token(idx, s.gen)); err != nil {
		s.state = slotFree
		s.target = nil
		return Subscription{}, err
	}
	Logger().Debug("subscribed",
		zap.Uint("driver", driver),
		zap.Uint("subscribe", subscribe),
		zap.Int("slot", idx))
	return Subscription{g: g, idx: idx, gen: s.gen}, nil
}

// SubscribeFn registers a raw upcall. No handle is created; the caller owns the
// obligation to revoke it with SubscribeFn(driver, subscribe, nil, 0).
func (g *Gateway) SubscribeFn(driver, subscribe uint, fn Upcall, userdata uintptr) error {
	rc := g.p.Subscribe(driver, subscribe, fn, userdata)
	if rc == 0 {
		return nil
	}
	return &SubscribeError{Driver: driver, Subscribe: subscribe, Code: ErrorCode(rc)}
}

// Command issues a synchronous driver command.
func (g *Gateway) Command(driver, command, arg1, arg2 uint) (uint, error) {
	rc := g.p.Command(driver, command, arg1, arg2)
	if rc >= 0 {
		return uint(rc), nil
	}
	return 0, &CommandError{Driver: driver, Command: command, Arg1: arg1, Arg2: arg2, Code: ErrorCode(rc)}
}

// Command1Insecure is Command with only the first argument register set.
//
// The second argument register is left as-is and leaks to the driver being
// called. The only caller is the low-level debug driver; use Command elsewhere.
func (g *Gateway) Command1Insecure(driver, command, arg uint) (uint, error) {
	rc := g.p.Command1(driver, command, arg)
	if rc >= 0 {
		return uint(rc), nil
	}
	return 0, &CommandError{Driver: driver, Command: command, Arg1: arg, Code: ErrorCode(rc)}
}

// Allow grants the kernel read/write access to buf until the returned handle
// is released. The caller must not touch buf directly while the grant is live;
// use SharedMemory.ReadBytes and SharedMemory.WriteBytes instead.
func (g *Gateway) Allow(driver, allow uint, buf []byte) (SharedMemory, error) {
	if buf == nil {
		return SharedMemory{}, &AllowError{Driver: driver, Allow: allow, Code: EINVAL}
	}
	if g.liveGrant(driver, allow) >= 0 {
		return SharedMemory{}, &AllowError{Driver: driver, Allow: allow, Code: EALREADY}
	}
	idx := g.freeGrant()
	if idx < 0 {
		return SharedMemory{}, &AllowError{Driver: driver, Allow: allow, Code: ENOMEM}
	}

	rc := g.p.Allow(driver, allow, buf)
	if rc != 0 {
		return SharedMemory{}, &AllowError{Driver: driver, Allow: allow, Code: ErrorCode(rc)}
	}

	gr := &g.grants[idx]
	gr.gen = nextGen(gr.gen)
	gr.state = slotLive
	gr.driver = driver
	gr.allow = allow
	gr.buf = buf
	Logger().Debug("allowed",
		zap.Uint("driver", driver),
		zap.Uint("allow", allow),
		zap.Int("len", len(buf)))
	return SharedMemory{g: g, idx: idx, gen: gr.gen}, nil
}

// YieldWait blocks until the kernel delivers one upcall.
func (g *Gateway) YieldWait() { g.p.YieldWait() }

// YieldNoWait delivers at most one pending upcall.
func (g *Gateway) YieldNoWait() bool { return g.p.YieldNoWait() }

func (g *Gateway) liveSub(driver, subscribe uint) int {
	for i := range g.subs {
		s := &g.subs[i]
		if s.state != slotFree && s.driver == driver && s.subscribe == subscribe {
			return i
		}
	}
	return -1
}

func (g *Gateway) freeSub() int {
	for i := range g.subs {
		if g.subs[i].state == slotFree {
			return i
		}
	}
	return -1
}

func (g *Gateway) liveGrant(driver, allow uint) int {
	for i := range g.grants {
		gr := &g.grants[i]
		if gr.state != slotFree && gr.driver == driver && gr.allow == allow {
			return i
		}
	}
	return -1
}

func (g *Gateway) freeGrant() int {
	for i := range g.grants {
		if g.grants[i].state == slotFree {
			return i
		}
	}
	return -1
}

func nextGen(gen uint16) uint16 {
	gen++
	if gen == 0 {
		gen++
	}
	return gen
}
