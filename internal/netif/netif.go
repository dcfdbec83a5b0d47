// Package netif implements a link-layer network interface: the glue between
// the internet layer (IPv4 datagrams) and the link layer (Ethernet frames).
//
// The interface translates outbound datagrams into Ethernet frames, using
// ARP to discover the MAC address of each next hop and parking datagrams
// while resolution is in flight. Inbound frames addressed to the interface
// are classified: IPv4 payloads are surfaced to the caller, ARP messages
// update the neighbor cache and are answered when they ask for this
// interface's address.
//
// The interface is passive: time advances only through Tick, and frames
// move only through HandleFrame and PollFrame. Callers that share an
// Interface across goroutines must serialize access themselves.
package netif

import (
	"net/netip"
	"time"

	"github.com/c2h5oh/datasize"
	"go.uber.org/zap"

	"github.com/softroute/softroute/internal/proto/arp"
	"github.com/softroute/softroute/internal/proto/ethernet"
	"github.com/softroute/softroute/internal/proto/ipv4"
)

// Interface is a single network interface with its own MAC and IPv4
// address, neighbor cache, and transmit queue.
type Interface struct {
	mac  ethernet.Addr
	addr netip.Addr

	// neighbors is the ARP cache, keyed by next-hop IPv4 address.
	neighbors map[netip.Addr]*neighbor
	// txq holds frames awaiting transmission, oldest first.
	txq []ethernet.Frame

	// pendingLimit caps the bytes queued behind each pending neighbor;
	// zero means unlimited.
	pendingLimit int

	log *zap.SugaredLogger
}

// Option is a functional option for the Interface.
type Option func(*Interface)

// WithLog sets the logger.
func WithLog(log *zap.SugaredLogger) Option {
	return func(m *Interface) {
		m.log = log
	}
}

// WithPendingLimit caps the bytes of datagrams queued behind a single
// unresolved neighbor. When the budget is exhausted the newest datagram is
// dropped, which to the sender is indistinguishable from expiry-driven
// loss.
func WithPendingLimit(limit datasize.ByteSize) Option {
	return func(m *Interface) {
		m.pendingLimit = int(limit.Bytes())
	}
}

// New constructs a network interface with the given Ethernet and IPv4
// addresses.
func New(mac ethernet.Addr, addr netip.Addr, opts ...Option) *Interface {
	m := &Interface{
		mac:       mac,
		addr:      addr,
		neighbors: map[netip.Addr]*neighbor{},
		log:       zap.NewNop().Sugar(),
	}
	for _, opt := range opts {
		opt(m)
	}

	m.log.Debugf("interface has Ethernet address %s and IP address %s", mac, addr)
	return m
}

// HardwareAddr returns the interface's MAC address.
func (m *Interface) HardwareAddr() ethernet.Addr {
	return m.mac
}

// Addr returns the interface's IPv4 address.
func (m *Interface) Addr() netip.Addr {
	return m.addr
}

// SendDatagram queues dgram for transmission to nextHop.
//
// If nextHop's MAC address is cached the datagram is framed immediately.
// Otherwise it is parked on the neighbor entry; the first datagram for an
// unknown neighbor triggers a broadcast ARP request, subsequent ones only
// queue up, so at most one request is outstanding per neighbor lifetime.
func (m *Interface) SendDatagram(dgram ipv4.Datagram, nextHop netip.Addr) {
	entry, ok := m.neighbors[nextHop]
	switch {
	case ok && entry.state == stateResolved:
		m.pushFrame(entry.mac, ethernet.TypeIPv4, dgram.Marshal())

	case ok:
		// Resolution in flight. Park the datagram without touching the
		// entry's lifetime and without another request on the wire.
		m.enqueuePending(entry, nextHop, dgram)

	default:
		entry = &neighbor{
			state: statePending,
			ttl:   pendingTTL,
			queue: []ipv4.Datagram{},
		}
		m.neighbors[nextHop] = entry
		m.enqueuePending(entry, nextHop, dgram)

		request := arp.Request(m.mac, m.addr, nextHop)
		m.pushFrame(ethernet.Broadcast, ethernet.TypeARP, request.Marshal())
		m.log.Debugf("resolving %s: sent ARP request", nextHop)
	}
}

// HandleFrame processes an inbound Ethernet frame.
//
// Frames addressed to neither this interface nor the broadcast address are
// ignored. IPv4 payloads are parsed and returned. ARP payloads update the
// neighbor cache, may flush parked datagrams, and generate a reply when the
// request asks for this interface's address; they are never surfaced as
// datagrams. The second return value reports whether a datagram was
// surfaced.
func (m *Interface) HandleFrame(frame ethernet.Frame) (ipv4.Datagram, bool) {
	if frame.Header.Dst != m.mac && !frame.Header.Dst.IsBroadcast() {
		return ipv4.Datagram{}, false
	}

	switch frame.Header.Type {
	case ethernet.TypeIPv4:
		dgram, err := ipv4.Parse(frame.Payload)
		if err != nil {
			m.log.Debugf("dropping malformed IPv4 payload from %s: %v", frame.Header.Src, err)
			return ipv4.Datagram{}, false
		}
		return dgram, true

	case ethernet.TypeARP:
		msg, err := arp.Parse(frame.Payload)
		if err != nil {
			m.log.Debugf("dropping malformed ARP payload from %s: %v", frame.Header.Src, err)
			return ipv4.Datagram{}, false
		}
		m.handleARP(msg)
	}

	return ipv4.Datagram{}, false
}

// Tick advances the interface's clock, expiring neighbor entries whose
// lifetime has run out. Datagrams parked behind an expired pending entry
// are dropped; a later SendDatagram to the same address starts resolution
// over.
func (m *Interface) Tick(elapsed time.Duration) {
	for addr, entry := range m.neighbors {
		entry.ttl -= elapsed
		if entry.ttl > 0 {
			continue
		}

		if entry.state == statePending && len(entry.queue) > 0 {
			m.log.Debugf("neighbor %s expired unresolved, dropping %d queued datagrams", addr, len(entry.queue))
		}
		delete(m.neighbors, addr)
	}
}

// PollFrame dequeues the next frame awaiting transmission. Frames come out
// in the order they were generated.
func (m *Interface) PollFrame() (ethernet.Frame, bool) {
	if len(m.txq) == 0 {
		return ethernet.Frame{}, false
	}

	frame := m.txq[0]
	m.txq = m.txq[1:]
	return frame, true
}

// handleARP learns from the sender pair of an ARP message and answers
// requests for this interface's address.
func (m *Interface) handleARP(msg arp.Message) {
	m.learn(msg.SenderHardwareAddr, msg.SenderProtoAddr)

	if msg.Opcode == arp.OpRequest && msg.TargetProtoAddr == m.addr {
		reply := arp.Reply(m.mac, m.addr, msg.SenderHardwareAddr, msg.SenderProtoAddr)
		m.pushFrame(msg.SenderHardwareAddr, ethernet.TypeARP, reply.Marshal())
		m.log.Debugf("answered ARP request from %s/%s", msg.SenderHardwareAddr, msg.SenderProtoAddr)
	}
}

// learn records that addr is reachable at mac, resolving a pending entry
// and flushing its parked datagrams in arrival order.
//
// An already-resolved entry gets its lifetime restarted and its MAC
// updated: the most recent ARP traffic wins, so a neighbor that changes
// hardware is picked up without waiting for expiry.
func (m *Interface) learn(mac ethernet.Addr, addr netip.Addr) {
	entry, ok := m.neighbors[addr]
	switch {
	case !ok:
		m.neighbors[addr] = &neighbor{
			state: stateResolved,
			mac:   mac,
			ttl:   resolvedTTL,
		}

	case entry.state == statePending:
		for i := range entry.queue {
			m.pushFrame(mac, ethernet.TypeIPv4, entry.queue[i].Marshal())
		}
		m.log.Debugf("resolved %s to %s, flushed %d queued datagrams", addr, mac, len(entry.queue))

		entry.state = stateResolved
		entry.mac = mac
		entry.ttl = resolvedTTL
		entry.queue = nil
		entry.queueBytes = 0

	default:
		entry.mac = mac
		entry.ttl = resolvedTTL
	}
}

// enqueuePending parks a datagram behind an unresolved neighbor, honoring
// the configured byte budget.
func (m *Interface) enqueuePending(entry *neighbor, addr netip.Addr, dgram ipv4.Datagram) {
	if m.pendingLimit > 0 && entry.queueBytes+dgram.Size() > m.pendingLimit {
		m.log.Debugf("pending queue for %s over budget, dropping datagram of %d bytes", addr, dgram.Size())
		return
	}

	entry.queue = append(entry.queue, dgram)
	entry.queueBytes += dgram.Size()
}

// pushFrame appends a frame built from this interface to the transmit
// queue.
func (m *Interface) pushFrame(dst ethernet.Addr, etherType ethernet.EtherType, payload []byte) {
	m.txq = append(m.txq, ethernet.Frame{
		Header: ethernet.Header{
			Dst:  dst,
			Src:  m.mac,
			Type: etherType,
		},
		Payload: payload,
	})
}
