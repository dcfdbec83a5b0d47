// Package ipv4 implements parsing and serialization of IPv4 datagrams
// (RFC 791), without fragment reassembly.
package ipv4

import (
	"encoding/binary"
	"fmt"
	"net/netip"
)

// HeaderSize is the size of an IPv4 header without options.
const HeaderSize = 20

const version = 4

// Header is a parsed IPv4 header.
//
// The version, IHL, and total length fields are derived from the structure
// on marshalling. The checksum is stored explicitly: mutate the header, then
// call UpdateChecksum before serializing.
type Header struct {
	// TOS is the type-of-service / DSCP+ECN byte.
	TOS uint8
	// ID is the fragment identification field.
	ID uint16
	// Flags holds the three fragmentation flag bits (reserved, DF, MF).
	Flags uint8
	// FragOffset is the fragment offset in 8-byte units.
	FragOffset uint16
	// TTL is the remaining hop count.
	TTL uint8
	// Protocol identifies the payload protocol.
	Protocol uint8
	// Checksum is the header checksum as seen or to be written on the wire.
	Checksum uint16
	// Src is the source address.
	Src netip.Addr
	// Dst is the destination address.
	Dst netip.Addr
	// Options holds raw header options, if any. Length must be a multiple
	// of four bytes.
	Options []byte
}

// Len returns the header length in bytes, including options.
func (m *Header) Len() int {
	return HeaderSize + len(m.Options)
}

// marshalInto writes the header into b, which must be at least m.Len()
// bytes, using the stored checksum. totalLen is the datagram's full length.
func (m *Header) marshalInto(b []byte, totalLen int) {
	ihl := m.Len() / 4
	b[0] = version<<4 | uint8(ihl)
	b[1] = m.TOS
	binary.BigEndian.PutUint16(b[2:4], uint16(totalLen))
	binary.BigEndian.PutUint16(b[4:6], m.ID)
	binary.BigEndian.PutUint16(b[6:8], uint16(m.Flags)<<13|m.FragOffset&0x1fff)
	b[8] = m.TTL
	b[9] = m.Protocol
	binary.BigEndian.PutUint16(b[10:12], m.Checksum)
	src := m.Src.As4()
	copy(b[12:16], src[:])
	dst := m.Dst.As4()
	copy(b[16:20], dst[:])
	copy(b[20:], m.Options)
}

// UpdateChecksum recomputes the header checksum and stores it.
//
// payloadLen is the length of the datagram payload, needed because the
// total length field participates in the checksum.
func (m *Header) UpdateChecksum(payloadLen int) {
	b := make([]byte, m.Len())
	m.Checksum = 0
	m.marshalInto(b, m.Len()+payloadLen)
	m.Checksum = Checksum(b, 0)
}

// String summarizes the header for logging.
func (m *Header) String() string {
	return fmt.Sprintf("IPv4 %s -> %s, proto %d, ttl %d", m.Src, m.Dst, m.Protocol, m.TTL)
}

// Datagram is a parsed IPv4 datagram.
type Datagram struct {
	Header  Header
	Payload []byte
}

// New builds a datagram with a valid checksum, ready to serialize.
func New(src, dst netip.Addr, proto, ttl uint8, payload []byte) Datagram {
	d := Datagram{
		Header: Header{
			TTL:      ttl,
			Protocol: proto,
			Src:      src,
			Dst:      dst,
		},
		Payload: payload,
	}
	d.Header.UpdateChecksum(len(payload))
	return d
}

// Size returns the serialized size of the datagram in bytes.
func (m *Datagram) Size() int {
	return m.Header.Len() + len(m.Payload)
}

// Marshal serializes the datagram into wire format using the stored
// checksum. The length fields are derived from the structure.
func (m *Datagram) Marshal() []byte {
	b := make([]byte, m.Size())
	m.Header.marshalInto(b, len(b))
	copy(b[m.Header.Len():], m.Payload)
	return b
}

// Parse decodes a datagram from wire format.
//
// The header checksum is verified; datagrams with a bad checksum, a bad
// version, or inconsistent lengths are rejected. Trailing bytes beyond the
// total length field (link-layer padding) are ignored.
func Parse(b []byte) (Datagram, error) {
	if len(b) < HeaderSize {
		return Datagram{}, fmt.Errorf("datagram too short: %d bytes, want at least %d", len(b), HeaderSize)
	}
	if v := b[0] >> 4; v != version {
		return Datagram{}, fmt.Errorf("unexpected IP version %d", v)
	}

	hdrLen := int(b[0]&0x0f) * 4
	if hdrLen < HeaderSize {
		return Datagram{}, fmt.Errorf("header length %d below minimum %d", hdrLen, HeaderSize)
	}
	if len(b) < hdrLen {
		return Datagram{}, fmt.Errorf("truncated header: %d bytes, want %d", len(b), hdrLen)
	}

	totalLen := int(binary.BigEndian.Uint16(b[2:4]))
	if totalLen < hdrLen {
		return Datagram{}, fmt.Errorf("total length %d below header length %d", totalLen, hdrLen)
	}
	if len(b) < totalLen {
		return Datagram{}, fmt.Errorf("truncated datagram: %d bytes, want %d", len(b), totalLen)
	}

	if Checksum(b[:hdrLen], 0) != 0 {
		return Datagram{}, fmt.Errorf("bad header checksum")
	}

	flagsFrag := binary.BigEndian.Uint16(b[6:8])

	d := Datagram{
		Header: Header{
			TOS:        b[1],
			ID:         binary.BigEndian.Uint16(b[4:6]),
			Flags:      uint8(flagsFrag >> 13),
			FragOffset: flagsFrag & 0x1fff,
			TTL:        b[8],
			Protocol:   b[9],
			Checksum:   binary.BigEndian.Uint16(b[10:12]),
			Src:        netip.AddrFrom4([4]byte(b[12:16])),
			Dst:        netip.AddrFrom4([4]byte(b[16:20])),
		},
		Payload: b[hdrLen:totalLen],
	}
	if hdrLen > HeaderSize {
		d.Header.Options = b[HeaderSize:hdrLen]
	}
	return d, nil
}
