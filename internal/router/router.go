// Package router implements an IPv4 router: a set of network interfaces
// and a longest-prefix-match routing table that moves datagrams between
// them.
//
// The router is as passive as the interfaces it owns: forwarding happens
// only inside Process, and the host remains responsible for driving each
// interface's clock and transmit queue.
package router

import (
	"net/netip"

	"go.uber.org/zap"

	"github.com/softroute/softroute/internal/netif"
	"github.com/softroute/softroute/internal/proto/ipv4"
)

// Route is a single forwarding rule.
type Route struct {
	// Prefix is the destination network this rule covers.
	Prefix netip.Prefix
	// NextHop is the address of the neighbor to forward through. The zero
	// Addr marks a directly attached network, where the datagram's own
	// destination is the next hop.
	NextHop netip.Addr
	// Port is the index of the egress interface.
	Port int
}

// Router owns an append-only set of ports and a routing table.
type Router struct {
	ports []*Port
	// table stores routes per masked prefix in installation order, so the
	// first entry of the longest matching prefix wins: equal-specificity
	// conflicts resolve to the earliest-installed route.
	table  mapTrie[[]Route]
	nroute int

	log *zap.SugaredLogger
}

// Option is a functional option for the Router.
type Option func(*Router)

// WithLog sets the logger.
func WithLog(log *zap.SugaredLogger) Option {
	return func(m *Router) {
		m.log = log
	}
}

// New constructs a router with no interfaces and an empty routing table.
func New(opts ...Option) *Router {
	m := &Router{
		table: newMapTrie[[]Route](),
		log:   zap.NewNop().Sugar(),
	}
	for _, opt := range opts {
		opt(m)
	}

	return m
}

// AddInterface appends an interface to the router and returns its index.
// Indices are stable for the router's lifetime.
func (m *Router) AddInterface(iface *netif.Interface) int {
	m.ports = append(m.ports, NewPort(iface))
	idx := len(m.ports) - 1

	m.log.Debugf("added interface %d with Ethernet address %s and IP address %s",
		idx, iface.HardwareAddr(), iface.Addr())
	return idx
}

// Port returns the port at index n.
func (m *Router) Port(n int) *Port {
	return m.ports[n]
}

// AddRoute installs a forwarding rule: datagrams destined to prefix leave
// through interface port, addressed to nextHop. Pass the zero Addr as
// nextHop for a directly attached network. Routes are never removed, and
// duplicate prefixes are allowed.
func (m *Router) AddRoute(prefix netip.Prefix, nextHop netip.Addr, port int) {
	route := Route{
		Prefix:  prefix,
		NextHop: nextHop,
		Port:    port,
	}

	m.table.InsertOrUpdate(
		route.Prefix,
		func() []Route {
			return []Route{route}
		},
		func(routes []Route) []Route {
			return append(routes, route)
		},
	)
	m.nroute++

	nextHopText := "(direct)"
	if nextHop.IsValid() {
		nextHopText = nextHop.String()
	}
	m.log.Debugf("added route %s => %s on interface %d", prefix, nextHopText, port)
}

// Process drains every port's inbound datagrams, in port order, and
// forwards each one along its longest-prefix-match route.
//
// Datagrams with no matching route or with a TTL that would expire are
// dropped. Forwarded datagrams leave with the TTL decremented and the
// header checksum recomputed.
func (m *Router) Process() {
	for idx, port := range m.ports {
		for {
			dgram, ok := port.PollInbound()
			if !ok {
				break
			}
			m.forward(idx, dgram)
		}
	}
}

// forward routes a single datagram received on the port at index ingress.
func (m *Router) forward(ingress int, dgram ipv4.Datagram) {
	dst := dgram.Header.Dst

	route, ok := m.lookup(dst)
	if !ok {
		m.log.Debugf("no route to %s, dropping datagram from interface %d", dst, ingress)
		return
	}

	if dgram.Header.TTL <= 1 {
		m.log.Debugf("TTL expired for datagram to %s from interface %d", dst, ingress)
		return
	}
	dgram.Header.TTL--
	dgram.Header.UpdateChecksum(len(dgram.Payload))

	nextHop := route.NextHop
	if !nextHop.IsValid() {
		// Directly attached network: deliver straight to the destination.
		nextHop = dst
	}

	m.ports[route.Port].SendDatagram(dgram, nextHop)
}

// lookup returns the winning route for dst.
func (m *Router) lookup(dst netip.Addr) (Route, bool) {
	_, routes, ok := m.table.Lookup(dst)
	if !ok {
		return Route{}, false
	}
	return routes[0], true
}

// RouteCount returns the number of installed routes, counting duplicates.
func (m *Router) RouteCount() int {
	return m.nroute
}
