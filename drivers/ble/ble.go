// Package ble drives the kernel BLE capsule: advertising a payload and
// passively scanning for advertisements.
package ble

import (
	"fmt"
	"time"

	"libtock/syscalls"
)

const DriverNumber = 0x30000

const (
	cmdStartAdvertising = 0
	cmdStopAdvertising  = 1
	cmdPassiveScan      = 5

	allowAdvertising = 0
	allowScan        = 1

	subscribeScan = 0

	pduAdvNonConnInd = 0x02

	// BufferSize is the size of advertising and scan buffers.
	BufferSize = 39
	// ScanHeaderLen is the number of bytes before the advertising data in a scan buffer.
	ScanHeaderLen = 8
)

// Buffer is storage shared with the kernel for advertising or scanning.
type Buffer [BufferSize]byte

// Advertising publishes payloads.
type Advertising struct {
	g *syscalls.Gateway
}

// NewAdvertising returns an advertising driver bound to g.
func NewAdvertising(g *syscalls.Gateway) Advertising { return Advertising{g: g} }

// Initialize shares buf holding payload and starts non-connectable advertising
// every interval. Releasing the returned grant does not stop advertising; call Stop.
func (a Advertising) Initialize(interval time.Duration, payload *Payload, buf *Buffer) (syscalls.SharedMemory, error) {
	n := copy(buf[:], payload.Bytes())
	mem, err := a.g.Allow(DriverNumber, allowAdvertising, buf[:n])
	if err != nil {
		return mem, fmt.Errorf("ble: allow advertising buffer: %w", err)
	}
	if _, err := a.g.Command(DriverNumber, cmdStartAdvertising, pduAdvNonConnInd, uint(interval.Milliseconds())); err != nil {
		mem.Release()
		return syscalls.SharedMemory{}, fmt.Errorf("ble: start advertising: %w", err)
	}
	return mem, nil
}

// Stop ends advertising.
func (a Advertising) Stop() error {
	_, err := a.g.Command(DriverNumber, cmdStopAdvertising, 0, 0)
	return err
}

// Scanning receives advertisements.
type Scanning struct {
	g *syscalls.Gateway
}

// NewScanning returns a scanning driver bound to g.
func NewScanning(g *syscalls.Gateway) Scanning { return Scanning{g: g} }

// ShareMemory grants buf to the kernel as the scan buffer.
func (s Scanning) ShareMemory(buf *Buffer) (syscalls.SharedMemory, error) {
	mem, err := s.g.Allow(DriverNumber, allowScan, buf[:])
	if err != nil {
		return mem, fmt.Errorf("ble: allow scan buffer: %w", err)
	}
	return mem, nil
}

// Start subscribes cb and begins passive scanning. cb receives the length of
// each advertisement written into the scan buffer.
func (s Scanning) Start(cb func(n uint)) (syscalls.Subscription, error) {
	sub, err := s.g.Subscribe(DriverNumber, subscribeScan, syscalls.ConsumerFunc(func(n, _, _ uint) {
		cb(n)
	}))
	if err != nil {
		return sub, fmt.Errorf("ble: subscribe: %w", err)
	}
	if _, err := s.g.Command(DriverNumber, cmdPassiveScan, 1, 0); err != nil {
		sub.Release()
		return syscalls.Subscription{}, fmt.Errorf("ble: start scan: %w", err)
	}
	return sub, nil
}
