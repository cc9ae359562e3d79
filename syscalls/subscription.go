package syscalls

import "go.uber.org/zap"

// Subscription is a live kernel registration for one (driver, subscribe) pair.
//
// Release tells the kernel to forget the registration. It runs at most once
// per subscription, including across copies of the handle, so the idiom is
//
//	sub, err := g.Subscribe(driver, n, &target)
//	if err != nil {
//		return err
//	}
//	defer sub.Release()
//
// The target passed to Subscribe must stay valid until Release returns.
type Subscription struct {
	g   *Gateway
	idx int
	gen uint16
}

func (s Subscription) slot() *subSlot {
	if s.g == nil || s.idx < 0 || s.idx >= MaxSubscriptions {
		return nil
	}
	slot := &s.g.subs[s.idx]
	if slot.gen != s.gen {
		return nil
	}
	return slot
}

// Live reports whether the subscription has not been released yet.
func (s Subscription) Live() bool {
	slot := s.slot()
	return slot != nil && slot.state == slotLive
}

// Driver returns the driver number, or 0 for a zero Subscription.
func (s Subscription) Driver() uint {
	if slot := s.slot(); slot != nil {
		return slot.driver
	}
	return 0
}

// Number returns the subscribe number, or 0 for a zero Subscription.
func (s Subscription) Number() uint {
	if slot := s.slot(); slot != nil {
		return slot.subscribe
	}
	return 0
}

// Release revokes the registration. A kernel rejection is logged and dropped:
// release runs during cleanup where nothing useful can be done about it.
func (s Subscription) Release() {
	slot := s.slot()
	if slot == nil || slot.state != slotLive {
		return
	}
	slot.state = slotReleasing
	if rc := s.g.p.Subscribe(slot.driver, slot.subscribe, nil, 0); rc != 0 {
		Logger().Warn("unsubscribe rejected",
			zap.Uint("driver", slot.driver),
			zap.Uint("subscribe", slot.subscribe),
			zap.Stringer("code", ErrorCode(rc)))
	}
	slot.target = nil
	slot.state = slotFree
}

// PeekableSubscription keeps a handle to the callback target next to the
// subscription so the caller can inspect target state once before waiting.
type PeekableSubscription[C Consumer] struct {
	sub    Subscription
	target C
	done   bool
}

// SubscribePeekable subscribes target and returns a peekable handle.
func SubscribePeekable[C Consumer](g *Gateway, driver, subscribe uint, target C) (*PeekableSubscription[C], error) {
	sub, err := g.Subscribe(driver, subscribe, target)
	if err != nil {
		return nil, err
	}
	return &PeekableSubscription[C]{sub: sub, target: target}, nil
}

// Peek runs fn with the callback target. It returns false once the handle has
// been downgraded with Unpeek.
func (p *PeekableSubscription[C]) Peek(fn func(target C)) bool {
	if p.done {
		return false
	}
	fn(p.target)
	return true
}

// Unpeek downgrades to a plain Subscription. The downgrade is one-way.
func (p *PeekableSubscription[C]) Unpeek() Subscription {
	p.done = true
	var zero C
	p.target = zero
	return p.sub
}
