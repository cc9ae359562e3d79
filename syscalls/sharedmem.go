package syscalls

import "go.uber.org/zap"

// SharedMemory is a live grant of a buffer to the kernel.
//
// Access goes through ReadBytes and WriteBytes, which copy while the grant is
// live and do nothing afterwards. Release revokes the grant at most once.
type SharedMemory struct {
	g   *Gateway
	idx int
	gen uint16
}

func (m SharedMemory) slot() *grantSlot {
	if m.g == nil || m.idx < 0 || m.idx >= MaxGrants {
		return nil
	}
	slot := &m.g.grants[m.idx]
	if slot.gen != m.gen || slot.state != slotLive {
		return nil
	}
	return slot
}

// Live reports whether the grant has not been released yet.
func (m SharedMemory) Live() bool { return m.slot() != nil }

// Len returns the granted region size, or 0 once released.
func (m SharedMemory) Len() int {
	if slot := m.slot(); slot != nil {
		return len(slot.buf)
	}
	return 0
}

// ReadBytes copies the granted region into dst and returns the number of bytes copied.
func (m SharedMemory) ReadBytes(dst []byte) int {
	slot := m.slot()
	if slot == nil {
		return 0
	}
	return copy(dst, slot.buf)
}

// WriteBytes copies src into the granted region and returns the number of bytes copied.
func (m SharedMemory) WriteBytes(src []byte) int {
	slot := m.slot()
	if slot == nil {
		return 0
	}
	return copy(slot.buf, src)
}

// Release revokes the kernel's access to the buffer.
func (m SharedMemory) Release() {
	slot := m.slot()
	if slot == nil {
		return
	}
	slot.state = slotReleasing
	if rc := m.g.p.Allow(slot.driver, slot.allow, nil); rc != 0 {
		Logger().Warn("unallow rejected",
			zap.Uint("driver", slot.driver),
			zap.Uint("allow", slot.allow),
			zap.Stringer("code", ErrorCode(rc)))
	}
	slot.buf = nil
	slot.state = slotFree
}
