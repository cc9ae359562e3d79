package ble_test

import (
	"testing"
	"time"

	"libtock/drivers/ble"
	"libtock/kernel"
	"libtock/syscalls"

	"github.com/stretchr/testify/require"
)

func TestPayloadComposition(t *testing.T) {
	var p ble.Payload
	require.NoError(t, p.AddFlag(ble.FlagLEGeneralDiscoverable))
	require.NoError(t, p.Add(ble.TypeCompleteName, []byte("tock")))
	require.NoError(t, p.AddServicePayload([2]byte{91, 79}, []byte{1, 2}))

	require.Equal(t, []byte{
		2, ble.TypeFlags, ble.FlagLEGeneralDiscoverable,
		5, ble.TypeCompleteName, 't', 'o', 'c', 'k',
		5, ble.TypeServiceData, 91, 79, 1, 2,
	}, p.Bytes())

	name, ok := ble.Find(p.Bytes(), ble.TypeCompleteName)
	require.True(t, ok)
	require.Equal(t, "tock", string(name))

	data, ok := ble.Find(p.Bytes(), ble.TypeServiceData)
	require.True(t, ok)
	payload, ok := ble.ExtractForService([2]byte{91, 79}, data)
	require.True(t, ok)
	require.Equal(t, []byte{1, 2}, payload)

	_, ok = ble.ExtractForService([2]byte{1, 1}, data)
	require.False(t, ok)
	_, ok = ble.Find(p.Bytes(), ble.TypeShortName)
	require.False(t, ok)
}

func TestPayloadFull(t *testing.T) {
	var p ble.Payload
	require.NoError(t, p.Add(ble.TypeCompleteName, make([]byte, ble.BufferSize-2)))
	require.Equal(t, ble.BufferSize, p.Len())
	require.ErrorIs(t, p.AddFlag(0), ble.ErrPayloadFull)
	require.ErrorIs(t, p.AddServicePayload([2]byte{}, nil), ble.ErrPayloadFull)
}

func TestFindStopsOnMalformedData(t *testing.T) {
	_, ok := ble.Find([]byte{0, 1, 2}, 1)
	require.False(t, ok)
	_, ok = ble.Find([]byte{9, 1, 2}, 1)
	require.False(t, ok)
	_, ok = ble.FindInScan([]byte{1, 2}, 1)
	require.False(t, ok)
}

func TestAdvertisingPublishesPayload(t *testing.T) {
	k := kernel.New(kernel.Config{})
	g := syscalls.New(k)

	var p ble.Payload
	require.NoError(t, p.AddFlag(ble.FlagLEGeneralDiscoverable))
	var buf ble.Buffer
	adv := ble.NewAdvertising(g)
	mem, err := adv.Initialize(300*time.Millisecond, &p, &buf)
	require.NoError(t, err)
	defer mem.Release()

	payload, interval, ok := k.Advertisement()
	require.True(t, ok)
	require.Equal(t, p.Bytes(), payload)
	require.Equal(t, uint(300), interval)

	require.NoError(t, adv.Stop())
	_, _, ok = k.Advertisement()
	require.False(t, ok)
}

func TestScanningReceivesAdvertisement(t *testing.T) {
	k := kernel.New(kernel.Config{})
	g := syscalls.New(k)
	sc := ble.NewScanning(g)

	var buf ble.Buffer
	mem, err := sc.ShareMemory(&buf)
	require.NoError(t, err)
	defer mem.Release()

	var lens []uint
	sub, err := sc.Start(func(n uint) { lens = append(lens, n) })
	require.NoError(t, err)
	defer sub.Release()

	var p ble.Payload
	require.NoError(t, p.AddServicePayload([2]byte{91, 79}, []byte{0, 1}))
	pkt := ble.ScanPacket([6]byte{1, 2, 3, 4, 5, 6}, p.Bytes())
	require.True(t, k.InjectAdvertisement(pkt))
	require.True(t, g.YieldNoWait())
	require.Equal(t, []uint{uint(len(pkt))}, lens)

	var scan ble.Buffer
	require.Equal(t, ble.BufferSize, mem.ReadBytes(scan[:]))
	data, ok := ble.FindInScan(scan[:], ble.TypeServiceData)
	require.True(t, ok)
	cmd, ok := ble.ExtractForService([2]byte{91, 79}, data)
	require.True(t, ok)
	require.Equal(t, []byte{0, 1}, cmd)
}

func TestScanWithoutBufferFails(t *testing.T) {
	k := kernel.New(kernel.Config{})
	g := syscalls.New(k)
	_, err := ble.NewScanning(g).Start(func(uint) {})
	require.ErrorIs(t, err, syscalls.ERESERVE)
	require.False(t, k.Subscribed(kernel.DriverBLE, 0))
}
