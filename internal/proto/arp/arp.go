// Package arp implements the Address Resolution Protocol message format for
// IPv4 over Ethernet, as defined by RFC 826.
package arp

import (
	"encoding/binary"
	"fmt"
	"net/netip"

	"github.com/softroute/softroute/internal/proto/ethernet"
)

// MessageSize is the wire size of an IPv4-over-Ethernet ARP message.
const MessageSize = 28

const (
	hardwareEthernet = 1
	protocolIPv4     = uint16(ethernet.TypeIPv4)
	hardwareAddrLen  = 6
	protocolAddrLen  = 4
)

// Opcode distinguishes ARP requests from replies.
type Opcode uint16

const (
	// OpRequest asks the holder of the target protocol address to reply
	// with its hardware address.
	OpRequest Opcode = 1
	// OpReply answers a request with the sender's hardware address.
	OpReply Opcode = 2
)

// String returns a human-readable opcode name.
func (m Opcode) String() string {
	switch m {
	case OpRequest:
		return "request"
	case OpReply:
		return "reply"
	default:
		return fmt.Sprintf("opcode(%d)", uint16(m))
	}
}

// Message is an ARP message for resolving IPv4 addresses to MAC addresses.
//
// The fixed hardware/protocol type and length fields are implied and
// regenerated on marshalling.
type Message struct {
	// Opcode is either OpRequest or OpReply.
	Opcode Opcode
	// SenderHardwareAddr is the MAC address of the message originator.
	SenderHardwareAddr ethernet.Addr
	// SenderProtoAddr is the IPv4 address of the message originator.
	SenderProtoAddr netip.Addr
	// TargetHardwareAddr is the MAC address being asked about. Zero in
	// requests, where it is the answer being sought.
	TargetHardwareAddr ethernet.Addr
	// TargetProtoAddr is the IPv4 address being asked about.
	TargetProtoAddr netip.Addr
}

// Request builds an ARP request asking for the MAC address that holds
// targetProto.
func Request(senderHW ethernet.Addr, senderProto, targetProto netip.Addr) Message {
	return Message{
		Opcode:             OpRequest,
		SenderHardwareAddr: senderHW,
		SenderProtoAddr:    senderProto,
		TargetProtoAddr:    targetProto,
	}
}

// Reply builds an ARP reply announcing the sender pair to the target.
func Reply(senderHW ethernet.Addr, senderProto netip.Addr, targetHW ethernet.Addr, targetProto netip.Addr) Message {
	return Message{
		Opcode:             OpReply,
		SenderHardwareAddr: senderHW,
		SenderProtoAddr:    senderProto,
		TargetHardwareAddr: targetHW,
		TargetProtoAddr:    targetProto,
	}
}

// String summarizes the message for logging.
func (m Message) String() string {
	return fmt.Sprintf("ARP %s: %s/%s -> %s/%s",
		m.Opcode,
		m.SenderHardwareAddr, m.SenderProtoAddr,
		m.TargetHardwareAddr, m.TargetProtoAddr,
	)
}

// Marshal serializes the message into wire format.
func (m *Message) Marshal() []byte {
	b := make([]byte, MessageSize)
	binary.BigEndian.PutUint16(b[0:2], hardwareEthernet)
	binary.BigEndian.PutUint16(b[2:4], protocolIPv4)
	b[4] = hardwareAddrLen
	b[5] = protocolAddrLen
	binary.BigEndian.PutUint16(b[6:8], uint16(m.Opcode))

	copy(b[8:14], m.SenderHardwareAddr[:])
	spa := m.SenderProtoAddr.As4()
	copy(b[14:18], spa[:])
	copy(b[18:24], m.TargetHardwareAddr[:])
	tpa := m.TargetProtoAddr.As4()
	copy(b[24:28], tpa[:])
	return b
}

// Parse decodes a message from wire format.
//
// Messages that are not IPv4-over-Ethernet ARP, or whose opcode is neither
// request nor reply, are rejected.
func Parse(b []byte) (Message, error) {
	if len(b) < MessageSize {
		return Message{}, fmt.Errorf("ARP message too short: %d bytes, want at least %d", len(b), MessageSize)
	}

	if htype := binary.BigEndian.Uint16(b[0:2]); htype != hardwareEthernet {
		return Message{}, fmt.Errorf("unsupported hardware type %d", htype)
	}
	if ptype := binary.BigEndian.Uint16(b[2:4]); ptype != protocolIPv4 {
		return Message{}, fmt.Errorf("unsupported protocol type 0x%04x", ptype)
	}
	if b[4] != hardwareAddrLen {
		return Message{}, fmt.Errorf("unsupported hardware address length %d", b[4])
	}
	if b[5] != protocolAddrLen {
		return Message{}, fmt.Errorf("unsupported protocol address length %d", b[5])
	}

	msg := Message{
		Opcode:             Opcode(binary.BigEndian.Uint16(b[6:8])),
		SenderHardwareAddr: ethernet.Addr(b[8:14]),
		SenderProtoAddr:    netip.AddrFrom4([4]byte(b[14:18])),
		TargetHardwareAddr: ethernet.Addr(b[18:24]),
		TargetProtoAddr:    netip.AddrFrom4([4]byte(b[24:28])),
	}
	if msg.Opcode != OpRequest && msg.Opcode != OpReply {
		return Message{}, fmt.Errorf("unsupported %s", msg.Opcode)
	}
	return msg, nil
}
