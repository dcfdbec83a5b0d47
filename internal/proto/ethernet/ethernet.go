package ethernet

import (
	"encoding/binary"
	"fmt"
	"net"
)

// HeaderSize is the size of an Ethernet II header on the wire: two MAC
// addresses followed by a 16-bit EtherType.
const HeaderSize = 14

// Addr is a 48-bit IEEE 802 MAC address.
type Addr [6]byte

// Broadcast is the all-ones MAC address. Frames sent to it are delivered
// to every station on the link.
var Broadcast = Addr{0xff, 0xff, 0xff, 0xff, 0xff, 0xff}

// ParseAddr parses a textual MAC address ("02:00:00:00:00:01") into an Addr.
func ParseAddr(s string) (Addr, error) {
	hw, err := net.ParseMAC(s)
	if err != nil {
		return Addr{}, fmt.Errorf("failed to parse MAC address: %w", err)
	}
	if len(hw) != 6 {
		return Addr{}, fmt.Errorf("unexpected MAC address length %d, want 6", len(hw))
	}
	return Addr(hw), nil
}

// String returns the canonical colon-separated form of this address.
func (m Addr) String() string {
	return net.HardwareAddr(m[:]).String()
}

// IsBroadcast reports whether this is the all-ones broadcast address.
func (m Addr) IsBroadcast() bool {
	return m == Broadcast
}

// EtherType identifies the protocol carried in a frame's payload.
type EtherType uint16

const (
	// TypeIPv4 marks a payload containing an IPv4 datagram.
	TypeIPv4 EtherType = 0x0800
	// TypeARP marks a payload containing an ARP message.
	TypeARP EtherType = 0x0806
)

// String returns a human-readable name for well-known EtherTypes.
func (m EtherType) String() string {
	switch m {
	case TypeIPv4:
		return "IPv4"
	case TypeARP:
		return "ARP"
	default:
		return fmt.Sprintf("0x%04x", uint16(m))
	}
}

// Header is an Ethernet II frame header.
type Header struct {
	// Dst is the destination MAC address.
	Dst Addr
	// Src is the source MAC address.
	Src Addr
	// Type identifies the payload protocol.
	Type EtherType
}

// Frame is an Ethernet II frame: a header followed by an opaque payload.
//
// The codec does not enforce minimum frame sizes; padding, if any, is the
// transmitting medium's concern.
type Frame struct {
	Header  Header
	Payload []byte
}

// Marshal serializes the frame into wire format.
func (m *Frame) Marshal() []byte {
	b := make([]byte, HeaderSize+len(m.Payload))
	copy(b[0:6], m.Header.Dst[:])
	copy(b[6:12], m.Header.Src[:])
	binary.BigEndian.PutUint16(b[12:14], uint16(m.Header.Type))
	copy(b[HeaderSize:], m.Payload)
	return b
}

// Parse decodes a frame from wire format.
//
// The payload slice aliases b; callers that retain the frame past the
// lifetime of b must copy it.
func Parse(b []byte) (Frame, error) {
	if len(b) < HeaderSize {
		return Frame{}, fmt.Errorf("frame too short: %d bytes, want at least %d", len(b), HeaderSize)
	}

	frame := Frame{
		Header: Header{
			Dst:  Addr(b[0:6]),
			Src:  Addr(b[6:12]),
			Type: EtherType(binary.BigEndian.Uint16(b[12:14])),
		},
		Payload: b[HeaderSize:],
	}
	return frame, nil
}
