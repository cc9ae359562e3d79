package kernel

import "libtock/syscalls"

// BLE commands, allow and subscribe numbers.
const (
	bleStartAdvertising = 0
	bleStopAdvertising  = 1
	blePassiveScan      = 5

	bleAllowAdvertising = 0
	bleAllowScan        = 1
)

type bleCapsule struct {
	k *Kernel

	advertising bool
	interval    uint
	pdu         uint
	payload     []byte

	scanning bool
}

func (c *bleCapsule) Subscribes() uint { return 1 }
func (c *bleCapsule) Allows() uint     { return 2 }

func (c *bleCapsule) Command(command, arg1, arg2 uint) int {
	switch command {
	case bleStartAdvertising:
		buf := c.k.grant(DriverBLE, bleAllowAdvertising)
		if buf == nil {
			return errno(syscalls.ERESERVE)
		}
		c.advertising = true
		c.pdu = arg1
		c.interval = arg2
		c.payload = append(c.payload[:0], buf...)
		return 0
	case bleStopAdvertising:
		c.advertising = false
		return 0
	case blePassiveScan:
		if c.k.grant(DriverBLE, bleAllowScan) == nil {
			return errno(syscalls.ERESERVE)
		}
		c.scanning = arg1 != 0
		return 0
	default:
		return errno(syscalls.ENOSUPPORT)
	}
}

// InjectAdvertisement delivers a received advertisement to a scanning app:
// the data is copied into the scan buffer and an upcall (len, 0, 0) is raised.
// It reports false if nobody is scanning.
func (k *Kernel) InjectAdvertisement(data []byte) bool {
	k.mu.Lock()
	defer k.mu.Unlock()
	c, found := k.capsules[DriverBLE].(*bleCapsule)
	if !found || !c.scanning {
		return false
	}
	buf := k.grant(DriverBLE, bleAllowScan)
	if buf == nil {
		return false
	}
	n := copy(buf, data)
	for i := n; i < len(buf); i++ {
		buf[i] = 0
	}
	k.schedule(DriverBLE, 0, uint(n), 0, 0)
	return true
}

// Advertisement returns the payload and interval the app is advertising with.
func (k *Kernel) Advertisement() (payload []byte, interval uint, ok bool) {
	k.mu.Lock()
	defer k.mu.Unlock()
	c, found := k.capsules[DriverBLE].(*bleCapsule)
	if !found || !c.advertising {
		return nil, 0, false
	}
	out := make([]byte, len(c.payload))
	copy(out, c.payload)
	return out, c.interval, true
}
