package ble

import "errors"

// Advertising data types.
const (
	TypeFlags          = 0x01
	TypeCompleteUUID16 = 0x03
	TypeShortName      = 0x08
	TypeCompleteName   = 0x09
	TypeServiceData    = 0x16

	FlagLEGeneralDiscoverable = 0x02
	FlagBREDRNotSupported     = 0x04
)

// ErrPayloadFull reports that an AD structure does not fit the advertisement.
var ErrPayloadFull = errors.New("ble: advertising payload full")

// Payload composes advertising data as a sequence of
// [length, type, content...] structures.
type Payload struct {
	bytes    [BufferSize]byte
	occupied int
}

// Add appends one AD structure.
func (p *Payload) Add(kind byte, content []byte) error {
	if p.occupied+len(content)+2 > len(p.bytes) {
		return ErrPayloadFull
	}
	p.bytes[p.occupied] = byte(len(content) + 1)
	p.bytes[p.occupied+1] = kind
	copy(p.bytes[p.occupied+2:], content)
	p.occupied += len(content) + 2
	return nil
}

// AddFlag appends a flags structure.
func (p *Payload) AddFlag(flag byte) error {
	return p.Add(TypeFlags, []byte{flag})
}

// AddServicePayload appends service data for a 16-bit service UUID.
func (p *Payload) AddServicePayload(uuid [2]byte, content []byte) error {
	if p.occupied+len(content)+4 > len(p.bytes) {
		return ErrPayloadFull
	}
	buf := make([]byte, 0, len(content)+2)
	buf = append(buf, uuid[:]...)
	buf = append(buf, content...)
	return p.Add(TypeServiceData, buf)
}

// Bytes returns the encoded structures.
func (p *Payload) Bytes() []byte { return p.bytes[:p.occupied] }

// Len returns the encoded size.
func (p *Payload) Len() int { return p.occupied }

// Find returns the content of the first AD structure of the given type.
// Malformed data ends the search.
func Find(ads []byte, kind byte) ([]byte, bool) {
	for i := 0; i < len(ads); {
		n := int(ads[i])
		if n == 0 || i+1+n > len(ads) {
			return nil, false
		}
		if ads[i+1] == kind {
			return ads[i+2 : i+1+n], true
		}
		i += 1 + n
	}
	return nil, false
}

// FindInScan is Find applied to a scan buffer, skipping the PDU header and
// advertiser address.
func FindInScan(scan []byte, kind byte) ([]byte, bool) {
	if len(scan) < ScanHeaderLen {
		return nil, false
	}
	return Find(scan[ScanHeaderLen:], kind)
}

// ExtractForService returns the payload of service data addressed to uuid.
func ExtractForService(uuid [2]byte, data []byte) ([]byte, bool) {
	if len(data) < 2 || data[0] != uuid[0] || data[1] != uuid[1] {
		return nil, false
	}
	return data[2:], true
}

// ScanPacket builds a scan buffer the way the radio reports it: a two-byte
// PDU header, the advertiser address, then the advertising data.
func ScanPacket(addr [6]byte, ads []byte) []byte {
	out := make([]byte, 0, ScanHeaderLen+len(ads))
	out = append(out, pduAdvNonConnInd, byte(len(addr)+len(ads)))
	out = append(out, addr[:]...)
	return append(out, ads...)
}
