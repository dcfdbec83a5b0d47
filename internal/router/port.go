package router

import (
	"github.com/softroute/softroute/internal/netif"
	"github.com/softroute/softroute/internal/proto/ethernet"
	"github.com/softroute/softroute/internal/proto/ipv4"
)

// Port couples a network interface with a queue of inbound datagrams, so
// that frame delivery and datagram consumption can happen at different
// times. Datagrams come back out of PollInbound in the order their frames
// were delivered.
type Port struct {
	*netif.Interface

	inbound []ipv4.Datagram
}

// NewPort wraps a network interface.
func NewPort(iface *netif.Interface) *Port {
	return &Port{Interface: iface}
}

// Deliver hands an inbound frame to the interface and parks any surfaced
// datagram for later retrieval.
func (m *Port) Deliver(frame ethernet.Frame) {
	if dgram, ok := m.Interface.HandleFrame(frame); ok {
		m.inbound = append(m.inbound, dgram)
	}
}

// PollInbound dequeues the next received datagram.
func (m *Port) PollInbound() (ipv4.Datagram, bool) {
	if len(m.inbound) == 0 {
		return ipv4.Datagram{}, false
	}

	dgram := m.inbound[0]
	m.inbound = m.inbound[1:]
	return dgram, true
}
